package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"order_composer/internal/composer"
	"order_composer/internal/models"
	"order_composer/internal/redis"
	"order_composer/internal/repository"
	"order_composer/pkg/backend"
)

var (
	ErrSubmissionInProgress     = errors.New("order submission already in progress")
	ErrEmptyOrder               = errors.New("order has no items")
	ErrCustomerRequired         = errors.New("order needs a customer")
	ErrShippingAddressRequired  = errors.New("delivery orders need a shipping address")
	ErrPickupLocationRequired   = errors.New("pickup orders need a pickup location")
	ErrUncommittedFreeQuantity  = errors.New("a free item quantity edit has not been committed")
	ErrSubmissionRecordNotFound = errors.New("submission record for submitted draft not found")
	ErrSubmissionOutcomeUnknown = errors.New("the previous attempt got no answer from the backend and may have created the order; confirm it was not created before submitting a changed order")
)

// DraftSyncer re-derives a stored draft against the current discount rules
// and reports whether it changed.
type DraftSyncer interface {
	SyncDraft(ctx context.Context, draft *models.OrderDraft) (bool, error)
}

// DuplicateCustomerError is advisory: the operator can resubmit with
// confirmNewCustomer or pick one of the candidates.
type DuplicateCustomerError struct {
	Candidates []models.Customer `json:"candidates"`
}

func (e *DuplicateCustomerError) Error() string {
	return fmt.Sprintf("%d existing customer(s) match the new customer", len(e.Candidates))
}

type SubmitInput struct {
	ConfirmNewCustomer    bool         `json:"confirmNewCustomer"`
	UseExistingCustomerID models.RefID `json:"useExistingCustomerId"`
	// ConfirmNotCreated lets a changed order go out under a new token after
	// an attempt whose outcome is unknown.
	ConfirmNotCreated bool `json:"confirmNotCreated"`
}

type SubmitResult struct {
	DraftID  string          `json:"draftId"`
	Token    string          `json:"submissionToken"`
	OrderID  models.RefID    `json:"orderId"`
	Order    *models.Order   `json:"order,omitempty"`
	Totals   composer.Totals `json:"totals"`
	Replayed bool            `json:"replayed"`
}

type SubmissionService interface {
	Submit(ctx context.Context, draftID, operator string, in SubmitInput) (*SubmitResult, error)
	History(ctx context.Context, draftID string) ([]models.OrderSubmission, error)
}

type submissionService struct {
	store          *redis.Client
	backend        Backend
	drafts         DraftSyncer
	submissionRepo repository.SubmissionRepository
	locks          *DraftLocks
	customers      singleflight.Group
	lockTTL        time.Duration
	draftTTL       time.Duration
	logger         logrus.FieldLogger
}

func NewSubmissionService(store *redis.Client, backend Backend, drafts DraftSyncer, submissionRepo repository.SubmissionRepository, locks *DraftLocks, lockTTL, draftTTL time.Duration, logger logrus.FieldLogger) SubmissionService {
	return &submissionService{
		store:          store,
		backend:        backend,
		drafts:         drafts,
		submissionRepo: submissionRepo,
		locks:          locks,
		lockTTL:        lockTTL,
		draftTTL:       draftTTL,
		logger:         logger,
	}
}

// Fingerprint hashes the outgoing payload so the ledger shows whether two
// attempts under one token carried the same order.
func Fingerprint(payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func validateForSubmit(d *models.OrderDraft, in SubmitInput) error {
	if len(d.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range d.Items {
		if item.QuantityPending {
			return ErrUncommittedFreeQuantity
		}
	}
	if d.Customer == nil && d.NewCustomer == nil && in.UseExistingCustomerID.IsZero() {
		return ErrCustomerRequired
	}
	switch d.DeliveryMethod {
	case models.DeliveryPickup:
		if d.PickupLocationID.IsZero() {
			return ErrPickupLocationRequired
		}
	default:
		if d.ShippingAddressID.IsZero() && d.NewShippingAddress == nil {
			return ErrShippingAddressRequired
		}
	}
	return nil
}

func (s *submissionService) Submit(ctx context.Context, draftID, operator string, in SubmitInput) (*SubmitResult, error) {
	holder := uuid.NewString()
	ok, err := s.store.AcquireSubmitLock(ctx, draftID, holder, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubmissionInProgress
	}
	defer func() {
		if err := s.store.ReleaseSubmitLock(context.Background(), draftID, holder); err != nil {
			s.logger.WithError(err).WithField("draft", draftID).Warn("failed to release submit lock")
		}
	}()

	unlock := s.locks.Lock(draftID)
	defer unlock()

	draft, err := s.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status == models.DraftSubmitted {
		return s.replay(draft)
	}
	changed, err := s.drafts.SyncDraft(ctx, draft)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.store.SaveDraft(ctx, draft, s.draftTTL); err != nil {
			return nil, fmt.Errorf("failed to save draft: %w", err)
		}
		s.logger.WithField("draft", draft.ID).Info("draft re-derived against current discount rules before submit")
	}
	if err := validateForSubmit(draft, in); err != nil {
		return nil, err
	}
	if operator == "" {
		operator = draft.Operator
	}

	if draft.SubmissionToken == "" {
		draft.SubmissionToken = uuid.NewString()
	}
	sub, err := s.submissionRepo.GetByToken(draft.SubmissionToken)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		sub = &models.OrderSubmission{
			Token:    draft.SubmissionToken,
			DraftID:  draft.ID,
			Operator: operator,
			Status:   models.SubmissionStarted,
		}
		if err := s.submissionRepo.Create(sub); err != nil {
			return nil, fmt.Errorf("failed to record submission: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to get submission: %w", err)
	case sub.Status == models.SubmissionSucceeded:
		draft.Status = models.DraftSubmitted
		draft.SubmittedOrderID = models.RefID(sub.RemoteOrderID)
		if err := s.store.SaveDraft(ctx, draft, s.draftTTL); err != nil {
			return nil, fmt.Errorf("failed to save draft: %w", err)
		}
		return s.replay(draft)
	}

	sub.Attempts++
	sub.Status = models.SubmissionStarted
	draft.Status = models.DraftSubmitting
	if err := s.store.SaveDraft(ctx, draft, s.draftTTL); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{"draft": draft.ID, "token": draft.SubmissionToken, "attempt": sub.Attempts})
	fail := func(cause error) error {
		msg := cause.Error()
		sub.Status = models.SubmissionFailed
		sub.LastError = &msg
		if err := s.submissionRepo.Update(sub); err != nil {
			log.WithError(err).Error("failed to record failed submission")
		}
		draft.Status = models.DraftOpen
		if err := s.store.SaveDraft(ctx, draft, s.draftTTL); err != nil {
			log.WithError(err).Error("failed to reopen draft")
		}
		return cause
	}

	if err := s.resolveCustomer(ctx, draft, sub, in); err != nil {
		var dup *DuplicateCustomerError
		if !errors.As(err, &dup) {
			log.WithError(err).Error("customer resolution failed")
		}
		return nil, fail(err)
	}
	if err := s.resolveAddress(ctx, draft); err != nil {
		log.WithError(err).Error("shipping address creation failed")
		return nil, fail(err)
	}

	totals := composer.ComputeTotals(composer.InputFromDraft(draft))
	payload := composer.BuildPayload(draft, totals)
	fingerprint, err := Fingerprint(payload)
	if err != nil {
		return nil, fail(err)
	}
	if sub.Fingerprint != "" && sub.Fingerprint != fingerprint {
		// The order changed after a failed attempt; its key must not carry a different body.
		if sub.OutcomeUnknown && !in.ConfirmNotCreated {
			log.Warn("refusing to rotate token after an attempt with unknown outcome")
			draft.Status = models.DraftOpen
			if err := s.store.SaveDraft(ctx, draft, s.draftTTL); err != nil {
				log.WithError(err).Error("failed to reopen draft")
			}
			return nil, ErrSubmissionOutcomeUnknown
		}
		rotated, err := s.rotateToken(draft, sub, operator)
		if err != nil {
			return nil, fail(err)
		}
		sub.Status = models.SubmissionFailed
		if err := s.submissionRepo.Update(sub); err != nil {
			log.WithError(err).Warn("failed to close superseded submission")
		}
		sub = rotated
		log = log.WithField("token", draft.SubmissionToken)
	}
	sub.Fingerprint = fingerprint
	sub.Subtotal = totals.Subtotal
	sub.DiscountAmount = totals.DiscountAmount
	sub.TaxAmount = totals.TaxAmount
	sub.ShippingCost = totals.ShippingCost
	sub.Adjustment = totals.Adjustment
	sub.StoreCreditApplied = totals.StoreCreditApplied
	sub.GrandTotal = totals.GrandTotal
	if err := s.submissionRepo.Update(sub); err != nil {
		return nil, fail(fmt.Errorf("failed to update submission: %w", err))
	}

	var order *models.Order
	if draft.OrderID.IsZero() {
		order, err = s.backend.CreateOrder(ctx, payload, draft.SubmissionToken)
	} else {
		order, err = s.backend.PatchOrder(ctx, draft.OrderID, payload, draft.SubmissionToken)
	}
	if err != nil {
		log.WithError(err).Error("order submission failed")
		var apiErr *backend.APIError
		sub.OutcomeUnknown = !errors.As(err, &apiErr)
		return nil, fail(err)
	}

	orderID := order.ID
	if orderID.IsZero() {
		orderID = draft.OrderID
	}
	sub.Status = models.SubmissionSucceeded
	sub.RemoteOrderID = orderID.String()
	sub.LastError = nil
	sub.OutcomeUnknown = false
	if err := s.submissionRepo.Update(sub); err != nil {
		log.WithError(err).Error("failed to record successful submission")
	}
	draft.Status = models.DraftSubmitted
	draft.SubmittedOrderID = orderID
	if err := s.store.SaveDraft(ctx, draft, s.draftTTL); err != nil {
		log.WithError(err).Error("failed to mark draft submitted")
	}
	log.WithField("order", orderID).Info("order submitted")

	return &SubmitResult{
		DraftID: draft.ID,
		Token:   draft.SubmissionToken,
		OrderID: orderID,
		Order:   order,
		Totals:  totals,
	}, nil
}

func (s *submissionService) replay(draft *models.OrderDraft) (*SubmitResult, error) {
	sub, err := s.submissionRepo.GetByToken(draft.SubmissionToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubmissionRecordNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &SubmitResult{
		DraftID: draft.ID,
		Token:   sub.Token,
		OrderID: models.RefID(sub.RemoteOrderID),
		Totals: composer.Totals{
			Currency:           draft.Currency,
			Subtotal:           sub.Subtotal,
			DiscountAmount:     sub.DiscountAmount,
			TaxAmount:          sub.TaxAmount,
			ShippingCost:       sub.ShippingCost,
			Adjustment:         sub.Adjustment,
			StoreCreditApplied: sub.StoreCreditApplied,
			GrandTotal:         sub.GrandTotal,
		},
		Replayed: true,
	}, nil
}

func (s *submissionService) rotateToken(draft *models.OrderDraft, prev *models.OrderSubmission, operator string) (*models.OrderSubmission, error) {
	draft.SubmissionToken = uuid.NewString()
	sub := &models.OrderSubmission{
		Token:             draft.SubmissionToken,
		DraftID:           draft.ID,
		Operator:          operator,
		Status:            models.SubmissionStarted,
		CreatedCustomerID: prev.CreatedCustomerID,
		Attempts:          1,
	}
	if err := s.submissionRepo.Create(sub); err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}
	return sub, nil
}

// resolveCustomer makes sure the draft references a backend customer before
// the order is posted. Temporary customers stay inline.
func (s *submissionService) resolveCustomer(ctx context.Context, draft *models.OrderDraft, sub *models.OrderSubmission, in SubmitInput) error {
	if !in.UseExistingCustomerID.IsZero() {
		customer, err := s.backend.GetCustomer(ctx, in.UseExistingCustomerID)
		if err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}
		draft.Customer = customer
		draft.NewCustomer = nil
		draft.CreatedCustomerID = ""
		return nil
	}
	if draft.Customer != nil || draft.NewCustomer == nil || draft.NewCustomer.Temporary {
		return nil
	}
	if !draft.CreatedCustomerID.IsZero() {
		return nil
	}
	if sub.CreatedCustomerID != "" {
		draft.CreatedCustomerID = models.RefID(sub.CreatedCustomerID)
		return nil
	}

	if !in.ConfirmNewCustomer {
		candidates, err := s.findDuplicates(ctx, *draft.NewCustomer)
		if err != nil {
			return err
		}
		if len(candidates) > 0 {
			return &DuplicateCustomerError{Candidates: candidates}
		}
	}

	key := draft.SubmissionToken + "-customer"
	newCustomer := *draft.NewCustomer
	v, err, _ := s.customers.Do(key, func() (interface{}, error) {
		return s.backend.CreateCustomer(ctx, newCustomer, key)
	})
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	created := v.(*models.Customer)
	draft.CreatedCustomerID = created.ID
	sub.CreatedCustomerID = created.ID.String()
	if err := s.submissionRepo.Update(sub); err != nil {
		return fmt.Errorf("failed to record created customer: %w", err)
	}
	if err := s.store.SaveDraft(ctx, draft, s.draftTTL); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"draft": draft.ID, "customer": created.ID}).Info("customer created for order")
	return nil
}

func (s *submissionService) resolveAddress(ctx context.Context, draft *models.OrderDraft) error {
	if draft.DeliveryMethod == models.DeliveryPickup || draft.NewShippingAddress == nil {
		return nil
	}
	customerID := draft.CustomerID()
	if customerID.IsZero() {
		return nil
	}
	created, err := s.backend.CreateShippingAddress(ctx, customerID, *draft.NewShippingAddress, draft.SubmissionToken+"-address")
	if err != nil {
		return fmt.Errorf("failed to create shipping address: %w", err)
	}
	draft.ShippingAddressID = created.ID
	draft.NewShippingAddress = nil
	if err := s.store.SaveDraft(ctx, draft, s.draftTTL); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// findDuplicates searches the directory by phone and email. With neither
// given, an exact name match counts.
func (s *submissionService) findDuplicates(ctx context.Context, nc models.NewCustomer) ([]models.Customer, error) {
	phone := normalizePhone(nc.Phone)
	email := strings.ToLower(strings.TrimSpace(nc.Email))
	name := strings.ToLower(strings.TrimSpace(nc.Name))

	var searches []string
	if phone != "" {
		searches = append(searches, nc.Phone)
	}
	if email != "" {
		searches = append(searches, email)
	}
	if len(searches) == 0 && name != "" {
		searches = append(searches, nc.Name)
	}

	seen := map[models.RefID]bool{}
	var matches []models.Customer
	for _, q := range searches {
		customers, err := s.backend.ListCustomers(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to search customers: %w", err)
		}
		for _, c := range customers {
			if seen[c.ID] {
				continue
			}
			match := (phone != "" && normalizePhone(c.Phone) == phone) ||
				(email != "" && strings.EqualFold(strings.TrimSpace(c.Email), email)) ||
				(phone == "" && email == "" && strings.EqualFold(strings.TrimSpace(c.Name), name))
			if match {
				seen[c.ID] = true
				matches = append(matches, c)
			}
		}
	}
	return matches, nil
}

func (s *submissionService) History(ctx context.Context, draftID string) ([]models.OrderSubmission, error) {
	return s.submissionRepo.GetByDraftID(draftID)
}
