package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"order_composer/internal/composer"
	"order_composer/internal/models"
	"order_composer/internal/redis"
	"order_composer/internal/repository"
)

var (
	ErrDraftNotEditable = errors.New("draft is being submitted or was already submitted")
	ErrNoCustomer       = errors.New("draft has no existing customer")
)

// DraftView is what every draft command returns: the draft, its derived
// totals and the current Buy-X-Get-Y allocations.
type DraftView struct {
	Draft       *models.OrderDraft          `json:"draft"`
	Totals      composer.Totals             `json:"totals"`
	Allocations []models.BuyXGetYAllocation `json:"allocations"`
}

type AddItemInput struct {
	LineRef
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	StockPolicy string `json:"stockPolicy" binding:"omitempty,oneof=cancel fill force always"`
}

type UpdateItemInput struct {
	Quantity           *int             `json:"quantity" binding:"omitempty,min=1"`
	Commit             bool             `json:"commit"`
	Price              *decimal.Decimal `json:"price"`
	Discount           *decimal.Decimal `json:"discount"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage"`
	Tax                *decimal.Decimal `json:"tax"`
	DiscountRuleID     models.RefID     `json:"discountRuleId"`
}

type CustomerInput struct {
	CustomerID  models.RefID        `json:"customerId"`
	NewCustomer *models.NewCustomer `json:"newCustomer"`
}

type FieldsInput struct {
	DeliveryMethod     *models.DeliveryMethod   `json:"deliveryMethod" binding:"omitempty,oneof=delivery pickup"`
	ShippingAddressID  *models.RefID            `json:"shippingAddressId"`
	NewShippingAddress *models.ShippingAddress  `json:"newShippingAddress"`
	PickupLocationID   *models.RefID            `json:"pickupLocationId"`
	ShippingCost       *decimal.Decimal         `json:"shippingCost"`
	ResetShipping      bool                     `json:"resetShipping"`
	DiscountValue      *decimal.Decimal         `json:"discountValue"`
	DiscountType       models.OrderDiscountType `json:"discountType" binding:"omitempty,oneof=flat rate"`
	Adjustment         *decimal.Decimal         `json:"adjustment"`
	TaxEnabled         *bool                    `json:"taxEnabled"`
	TaxRate            *decimal.Decimal         `json:"taxRate"`
	ApplyStoreCredit   *bool                    `json:"applyStoreCredit"`
	StoreCreditAmount  *decimal.Decimal         `json:"storeCreditAmount"`
	Currency           *string                  `json:"currency" binding:"omitempty,len=3"`
	PaymentMethod      *string                  `json:"paymentMethod"`
	PaymentStatus      *string                  `json:"paymentStatus"`
	Notes              *string                  `json:"notes" binding:"omitempty,max=2000"`
	DocumentIDs        []string                 `json:"documentIds"`
}

type DraftConfig struct {
	TTL             time.Duration
	DefaultCurrency string
	Options         composer.Options
}

type DraftService interface {
	CreateDraft(ctx context.Context, operator string) (*DraftView, error)
	GetDraft(ctx context.Context, draftID string) (*DraftView, error)
	SyncDraft(ctx context.Context, draft *models.OrderDraft) (bool, error)
	DeleteDraft(ctx context.Context, draftID string) error
	EditOrder(ctx context.Context, operator string, orderID models.RefID) (*DraftView, error)
	AddItem(ctx context.Context, draftID, operator string, in AddItemInput) (*DraftView, composer.AddResult, error)
	UpdateItem(ctx context.Context, draftID, itemID string, in UpdateItemInput) (*DraftView, error)
	CommitItem(ctx context.Context, draftID, itemID string) (*DraftView, error)
	RemoveItem(ctx context.Context, draftID, itemID string) (*DraftView, error)
	SetCustomer(ctx context.Context, draftID string, in CustomerInput) (*DraftView, error)
	UpdateFields(ctx context.Context, draftID string, in FieldsInput) (*DraftView, error)
	SetGrandTotal(ctx context.Context, draftID string, desired decimal.Decimal) (*DraftView, error)
	RefreshDiscounts(ctx context.Context, draftID string) (*DraftView, error)
	AddPendingServices(ctx context.Context, draftID string) (*DraftView, error)
}

type draftService struct {
	store        *redis.Client
	catalog      CatalogService
	backend      Backend
	settingsRepo repository.SettingsRepository
	prefRepo     repository.PreferenceRepository
	locks        *DraftLocks
	cfg          DraftConfig
	logger       logrus.FieldLogger
}

func NewDraftService(store *redis.Client, catalog CatalogService, backend Backend, settingsRepo repository.SettingsRepository, prefRepo repository.PreferenceRepository, locks *DraftLocks, cfg DraftConfig, logger logrus.FieldLogger) DraftService {
	return &draftService{
		store:        store,
		catalog:      catalog,
		backend:      backend,
		settingsRepo: settingsRepo,
		prefRepo:     prefRepo,
		locks:        locks,
		cfg:          cfg,
		logger:       logger,
	}
}

func (s *draftService) now() time.Time {
	if s.cfg.Options.Now != nil {
		return s.cfg.Options.Now()
	}
	return time.Now()
}

// composerFor loads rules and shipping settings and wraps draft in a Composer.
func (s *draftService) composerFor(ctx context.Context, draft *models.OrderDraft) (*composer.Composer, error) {
	rules, err := s.catalog.Discounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load discounts: %w", err)
	}
	shipping, err := s.catalog.ShippingSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipping settings: %w", err)
	}
	if shipping.Currency == "" {
		shipping.Currency = s.cfg.DefaultCurrency
	}

	opts := s.cfg.Options
	if draft.Operator != "" {
		policy, err := s.prefRepo.Get(draft.Operator, models.PreferenceStockPolicy)
		switch {
		case err == nil:
			opts.AllowOversell = composer.StockPolicy(policy) == composer.StockAlways
		case !errors.Is(err, repository.ErrNotFound):
			s.logger.WithError(err).WithField("operator", draft.Operator).Warn("failed to read stock policy preference")
		}
	}
	return composer.New(draft, rules, shipping, opts), nil
}

func (s *draftService) view(c *composer.Composer) *DraftView {
	v := &DraftView{Draft: c.Draft(), Totals: c.Totals(), Allocations: c.Allocations()}
	if v.Allocations == nil {
		v.Allocations = []models.BuyXGetYAllocation{}
	}
	if v.Totals.GrandTotal.IsNegative() {
		s.logger.WithFields(logrus.Fields{
			"draft":      v.Draft.ID,
			"grandTotal": v.Totals.GrandTotal.StringFixed(2),
			"adjustment": v.Totals.Adjustment.StringFixed(2),
		}).Warn("draft grand total is negative")
	}
	return v
}

// mutate runs fn on the draft under its lock and saves the result. Nothing is
// saved when fn fails.
func (s *draftService) mutate(ctx context.Context, draftID string, fn func(c *composer.Composer) error) (*DraftView, error) {
	unlock := s.locks.Lock(draftID)
	defer unlock()

	draft, err := s.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status != models.DraftOpen {
		return nil, ErrDraftNotEditable
	}
	c, err := s.composerFor(ctx, draft)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.store.SaveDraft(ctx, c.Draft(), s.cfg.TTL); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return s.view(c), nil
}

// applySettings seeds tax and currency from the stored composer settings.
func (s *draftService) applySettings(draft *models.OrderDraft) {
	draft.Currency = s.cfg.DefaultCurrency

	if setting, err := s.settingsRepo.GetSettings(models.SettingTaxRate); err == nil {
		draft.TaxRate = setting.PercentageValue
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.WithError(err).Warn("failed to get tax settings")
	}
	if setting, err := s.settingsRepo.GetSettings(models.SettingTaxEnabled); err == nil {
		enabled, perr := strconv.ParseBool(setting.TextValue)
		draft.TaxEnabled = perr == nil && enabled
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.WithError(err).Warn("failed to get tax enabled setting")
	}
	if setting, err := s.settingsRepo.GetSettings(models.SettingDefaultCurrency); err == nil && setting.TextValue != "" {
		draft.Currency = setting.TextValue
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.WithError(err).Warn("failed to get currency setting")
	}
}

func (s *draftService) CreateDraft(ctx context.Context, operator string) (*DraftView, error) {
	now := s.now()
	draft := &models.OrderDraft{
		ID:             uuid.NewString(),
		Operator:       operator,
		DeliveryMethod: models.DeliveryShipping,
		Items:          []models.OrderItem{},
		DiscountType:   models.OrderDiscountFlat,
		Status:         models.DraftOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.applySettings(draft)

	c, err := s.composerFor(ctx, draft)
	if err != nil {
		return nil, err
	}
	c.ResetShipping()
	if err := s.store.SaveDraft(ctx, draft, s.cfg.TTL); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"draft": draft.ID, "operator": operator}).Info("draft created")
	return s.view(c), nil
}

// GetDraft returns the draft re-derived against the current discount rules.
// An open draft whose free lines changed in the process is saved.
func (s *draftService) GetDraft(ctx context.Context, draftID string) (*DraftView, error) {
	draft, err := s.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status == models.DraftOpen {
		unlock := s.locks.Lock(draftID)
		defer unlock()
		if draft, err = s.store.GetDraft(ctx, draftID); err != nil {
			return nil, err
		}
	}

	c, err := s.composerFor(ctx, draft)
	if err != nil {
		return nil, err
	}
	if draft.Status == models.DraftOpen && c.Sync() {
		if err := s.store.SaveDraft(ctx, draft, s.cfg.TTL); err != nil {
			return nil, fmt.Errorf("failed to save draft: %w", err)
		}
		s.logger.WithField("draft", draftID).Info("draft re-derived against current discount rules")
	}
	return s.view(c), nil
}

// SyncDraft re-derives draft in place. The caller holds the draft lock and
// saves it.
func (s *draftService) SyncDraft(ctx context.Context, draft *models.OrderDraft) (bool, error) {
	c, err := s.composerFor(ctx, draft)
	if err != nil {
		return false, err
	}
	return c.Sync(), nil
}

func (s *draftService) DeleteDraft(ctx context.Context, draftID string) error {
	unlock := s.locks.Lock(draftID)
	defer unlock()

	if _, err := s.store.GetDraft(ctx, draftID); err != nil {
		return err
	}
	return s.store.DeleteDraft(ctx, draftID)
}

// EditOrder opens a draft over an existing backend order. Submitting it
// patches that order instead of creating a new one.
func (s *draftService) EditOrder(ctx context.Context, operator string, orderID models.RefID) (*DraftView, error) {
	order, err := s.backend.Order(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	now := s.now()
	draft := &models.OrderDraft{
		ID:                 uuid.NewString(),
		OrderID:            order.ID,
		Operator:           operator,
		Customer:           order.Customer,
		DeliveryMethod:     order.DeliveryMethod,
		ShippingAddressID:  order.ShippingAddressID,
		PickupLocationID:   order.PickupLocationID,
		Items:              models.CloneItems(order.Items),
		Currency:           order.Currency,
		ShippingCost:       order.ShippingCost,
		ShippingOverridden: true,
		DiscountValue:      order.DiscountValue,
		DiscountType:       order.DiscountType,
		Adjustment:         order.Adjustment,
		TaxRate:            order.TaxRate,
		TaxEnabled:         order.TaxEnabled,
		PaymentMethod:      order.PaymentMethod,
		PaymentStatus:      order.PaymentStatus,
		Notes:              order.Notes,
		DocumentIDs:        order.DocumentIDs,
		Status:             models.DraftOpen,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if draft.Items == nil {
		draft.Items = []models.OrderItem{}
	}
	if draft.DeliveryMethod == "" {
		draft.DeliveryMethod = models.DeliveryShipping
	}
	if draft.DiscountType == "" {
		draft.DiscountType = models.OrderDiscountFlat
	}
	if draft.Currency == "" {
		draft.Currency = s.cfg.DefaultCurrency
	}
	for i := range draft.Items {
		if draft.Items[i].ID == "" {
			draft.Items[i].ID = uuid.NewString()
		}
		draft.Items[i].Recalculate()
	}

	if !order.CustomerID.IsZero() {
		customer, err := s.backend.GetCustomer(ctx, order.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load customer: %w", err)
		}
		prices, err := s.backend.CustomerPrices(ctx, order.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load customer prices: %w", err)
		}
		draft.Customer = customer
		draft.CustomerPrices = prices
	}

	c, err := s.composerFor(ctx, draft)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveDraft(ctx, draft, s.cfg.TTL); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"draft": draft.ID, "order": order.ID}).Info("draft opened for existing order")
	return s.view(c), nil
}

func (s *draftService) AddItem(ctx context.Context, draftID, operator string, in AddItemInput) (*DraftView, composer.AddResult, error) {
	policy, err := composer.ParseStockPolicy(in.StockPolicy)
	if err != nil {
		return nil, composer.AddResult{}, err
	}
	src, err := s.catalog.Resolve(ctx, in.LineRef)
	if err != nil {
		return nil, composer.AddResult{}, err
	}

	var res composer.AddResult
	view, err := s.mutate(ctx, draftID, func(c *composer.Composer) error {
		res, err = c.AddItem(src, in.Quantity, policy)
		return err
	})
	if err != nil {
		return nil, composer.AddResult{}, err
	}

	if policy == composer.StockAlways {
		if operator == "" {
			operator = view.Draft.Operator
		}
		if operator != "" {
			if err := s.prefRepo.Set(operator, models.PreferenceStockPolicy, string(composer.StockAlways)); err != nil {
				s.logger.WithError(err).WithField("operator", operator).Warn("failed to save stock policy preference")
			}
		}
	}
	return view, res, nil
}

func (s *draftService) UpdateItem(ctx context.Context, draftID, itemID string, in UpdateItemInput) (*DraftView, error) {
	return s.mutate(ctx, draftID, func(c *composer.Composer) error {
		if in.Price != nil {
			if err := c.SetPrice(itemID, *in.Price); err != nil {
				return err
			}
		}
		if in.Quantity != nil {
			if err := c.SetQuantity(itemID, *in.Quantity, in.Commit); err != nil {
				return err
			}
		} else if in.Commit {
			if err := c.CommitQuantity(itemID); err != nil {
				return err
			}
		}
		if in.Discount != nil || in.DiscountPercentage != nil {
			amount, pct := decimal.Zero, decimal.Zero
			if in.Discount != nil {
				amount = *in.Discount
			}
			if in.DiscountPercentage != nil {
				pct = *in.DiscountPercentage
			}
			if err := c.SetItemDiscount(itemID, amount, pct); err != nil {
				return err
			}
		}
		if in.Tax != nil {
			if err := c.SetItemTax(itemID, *in.Tax); err != nil {
				return err
			}
		}
		if !in.DiscountRuleID.IsZero() {
			return c.ApplyDiscountRule(itemID, in.DiscountRuleID)
		}
		return nil
	})
}

func (s *draftService) CommitItem(ctx context.Context, draftID, itemID string) (*DraftView, error) {
	return s.mutate(ctx, draftID, func(c *composer.Composer) error {
		return c.CommitQuantity(itemID)
	})
}

func (s *draftService) RemoveItem(ctx context.Context, draftID, itemID string) (*DraftView, error) {
	return s.mutate(ctx, draftID, func(c *composer.Composer) error {
		return c.RemoveItem(itemID)
	})
}

func (s *draftService) SetCustomer(ctx context.Context, draftID string, in CustomerInput) (*DraftView, error) {
	var (
		customer *models.Customer
		prices   []models.CustomerPrice
		err      error
	)
	if !in.CustomerID.IsZero() {
		customer, err = s.backend.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load customer: %w", err)
		}
		prices, err = s.backend.CustomerPrices(ctx, in.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load customer prices: %w", err)
		}
	}

	return s.mutate(ctx, draftID, func(c *composer.Composer) error {
		catalog, err := s.catalog.Snapshot(ctx, c.Draft().Items)
		if err != nil {
			return err
		}
		if customer == nil && in.NewCustomer != nil {
			c.SetNewCustomer(in.NewCustomer, catalog)
			return nil
		}
		c.SetCustomer(customer, prices, catalog)
		return nil
	})
}

func (s *draftService) UpdateFields(ctx context.Context, draftID string, in FieldsInput) (*DraftView, error) {
	return s.mutate(ctx, draftID, func(c *composer.Composer) error {
		d := c.Draft()
		if in.DeliveryMethod != nil || in.ShippingAddressID != nil || in.NewShippingAddress != nil || in.PickupLocationID != nil {
			delivery := composer.Delivery{
				Method:             d.DeliveryMethod,
				ShippingAddressID:  d.ShippingAddressID,
				NewShippingAddress: d.NewShippingAddress,
				PickupLocationID:   d.PickupLocationID,
			}
			if in.DeliveryMethod != nil {
				delivery.Method = *in.DeliveryMethod
			}
			if in.ShippingAddressID != nil {
				delivery.ShippingAddressID = *in.ShippingAddressID
				delivery.NewShippingAddress = nil
			}
			if in.NewShippingAddress != nil {
				delivery.NewShippingAddress = in.NewShippingAddress
				delivery.ShippingAddressID = ""
			}
			if in.PickupLocationID != nil {
				delivery.PickupLocationID = *in.PickupLocationID
			}
			c.SetDelivery(delivery)
		}

		if in.ResetShipping {
			c.ResetShipping()
		} else if in.ShippingCost != nil {
			if err := c.SetShippingCost(*in.ShippingCost); err != nil {
				return err
			}
		}

		if in.DiscountValue != nil || in.DiscountType != "" {
			value, typ := d.DiscountValue, d.DiscountType
			if in.DiscountValue != nil {
				value = *in.DiscountValue
			}
			if in.DiscountType != "" {
				typ = in.DiscountType
			}
			if err := c.SetOrderDiscount(value, typ); err != nil {
				return err
			}
		}

		if in.Adjustment != nil {
			c.SetAdjustment(*in.Adjustment)
		}

		if in.TaxEnabled != nil || in.TaxRate != nil {
			enabled, rate := d.TaxEnabled, d.TaxRate
			if in.TaxEnabled != nil {
				enabled = *in.TaxEnabled
			}
			if in.TaxRate != nil {
				rate = *in.TaxRate
			}
			if err := c.SetTax(enabled, rate); err != nil {
				return err
			}
		}

		if in.ApplyStoreCredit != nil || in.StoreCreditAmount != nil {
			apply, amount := d.ApplyStoreCredit, decimal.Zero
			if in.ApplyStoreCredit != nil {
				apply = *in.ApplyStoreCredit
			}
			if in.StoreCreditAmount != nil {
				amount = *in.StoreCreditAmount
			}
			if err := c.SetStoreCredit(apply, amount); err != nil {
				return err
			}
		}

		c.UpdateDetails(composer.Details{
			Currency:      in.Currency,
			PaymentMethod: in.PaymentMethod,
			PaymentStatus: in.PaymentStatus,
			Notes:         in.Notes,
			DocumentIDs:   in.DocumentIDs,
		})
		return nil
	})
}

func (s *draftService) SetGrandTotal(ctx context.Context, draftID string, desired decimal.Decimal) (*DraftView, error) {
	return s.mutate(ctx, draftID, func(c *composer.Composer) error {
		c.SetGrandTotal(desired)
		return nil
	})
}

// RefreshDiscounts drops the cached rules and shipping settings and
// re-derives the draft against fresh ones.
func (s *draftService) RefreshDiscounts(ctx context.Context, draftID string) (*DraftView, error) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to invalidate catalog cache")
	}
	return s.mutate(ctx, draftID, func(c *composer.Composer) error {
		rules, err := s.catalog.Discounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to load discounts: %w", err)
		}
		shipping, err := s.catalog.ShippingSettings(ctx)
		if err != nil {
			return fmt.Errorf("failed to load shipping settings: %w", err)
		}
		if shipping.Currency == "" {
			shipping.Currency = s.cfg.DefaultCurrency
		}
		if c.Refresh(rules, shipping) {
			s.logger.WithField("draft", draftID).Info("draft items changed after discount refresh")
		}
		return nil
	})
}

func (s *draftService) AddPendingServices(ctx context.Context, draftID string) (*DraftView, error) {
	draft, err := s.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	customerID := draft.CustomerID()
	if customerID.IsZero() {
		return nil, ErrNoCustomer
	}
	pending, err := s.backend.PendingServices(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending services: %w", err)
	}
	return s.mutate(ctx, draftID, func(c *composer.Composer) error {
		c.AddPendingServices(pending)
		return nil
	})
}
