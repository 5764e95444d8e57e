package composer

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"order_composer/internal/models"
)

type Options struct {
	Overlap          OverlapPolicy
	AutoAddFreeItems bool
	// AllowOversell skips stock checks, set once an operator chose "always".
	AllowOversell bool
	Now           func() time.Time
	NewID         func() string
}

// Composer owns one OrderDraft and is the only place its items are mutated.
// Every command finishes by running the allocation pipeline once.
type Composer struct {
	draft    *models.OrderDraft
	rules    []models.DiscountRule
	shipping models.ShippingSettings
	opts     Options
	allocs   []models.BuyXGetYAllocation
}

func New(draft *models.OrderDraft, rules []models.DiscountRule, shipping models.ShippingSettings, opts Options) *Composer {
	if opts.Overlap == "" {
		opts.Overlap = OverlapExclusive
	}
	c := &Composer{draft: draft, rules: rules, shipping: shipping, opts: opts}
	c.allocs = ComputeAllocations(draft.Items, EligibleRules(rules, c.now()), opts.Overlap)
	return c
}

func (c *Composer) now() time.Time {
	if c.opts.Now != nil {
		return c.opts.Now()
	}
	return time.Now()
}

func (c *Composer) newID() string {
	if c.opts.NewID != nil {
		return c.opts.NewID()
	}
	return uuid.NewString()
}

func (c *Composer) Draft() *models.OrderDraft { return c.draft }

func (c *Composer) Allocations() []models.BuyXGetYAllocation { return c.allocs }

func (c *Composer) Totals() Totals { return ComputeTotals(InputFromDraft(c.draft)) }

func (c *Composer) settle() bool {
	d := Derive(c.draft.Items, c.rules, c.now(), c.opts.Overlap, ReconcileOptions{
		AutoAdd: c.opts.AutoAddFreeItems,
		NewID:   c.newID,
	})
	c.draft.Items = d.Items
	c.allocs = d.Allocations
	if !c.draft.ShippingOverridden {
		c.draft.ShippingCost = DefaultShipping(c.draft.DeliveryMethod, Subtotal(c.draft.Items), c.shipping)
	}
	if c.draft.Currency == "" {
		c.draft.Currency = c.shipping.Currency
	}
	c.draft.UpdatedAt = c.now()
	return d.Changed
}

// Refresh swaps in freshly fetched discount rules and shipping settings and
// re-derives the draft. It reports whether any item changed.
func (c *Composer) Refresh(rules []models.DiscountRule, shipping models.ShippingSettings) bool {
	c.rules = rules
	c.shipping = shipping
	return c.settle()
}

// Sync re-derives the draft against the rules it was built with, dropping
// free lines whose rule no longer applies. It reports whether the draft needs
// saving.
func (c *Composer) Sync() bool {
	prevUpdated, prevShipping := c.draft.UpdatedAt, c.draft.ShippingCost
	if !c.settle() && c.draft.ShippingCost.Equal(prevShipping) {
		c.draft.UpdatedAt = prevUpdated
		return false
	}
	return true
}

func (c *Composer) item(id string) (int, *models.OrderItem, error) {
	idx, item := c.draft.FindItem(id)
	if item == nil {
		return -1, nil, ErrItemNotFound
	}
	return idx, item, nil
}

func (c *Composer) findRule(id models.RefID) (models.DiscountRule, bool) {
	for _, r := range c.rules {
		if r.ID == id {
			return r, true
		}
	}
	return models.DiscountRule{}, false
}

func (c *Composer) findPaid(ref models.OrderItem) int {
	for i, item := range c.draft.Items {
		if !item.IsFreeItem && item.SameReference(ref) {
			return i
		}
	}
	return -1
}

// refreshLineDiscount keeps an absolute line discount consistent after the
// quantity or price changed.
func (c *Composer) refreshLineDiscount(item *models.OrderItem) {
	if item.AppliedDiscountType != "" && item.AppliedDiscountType != models.DiscountBuyXGetY {
		if rule, ok := c.findRule(item.AppliedDiscountID); ok {
			applyRule(item, rule)
			return
		}
	}
	if item.DiscountPercentage.IsZero() {
		item.Discount = decimal.Min(item.Discount, decimal.Max(item.LineAmount(), decimal.Zero))
	}
	item.Recalculate()
}

type AddResult struct {
	Added        bool     `json:"added"`
	FreeQuantity int      `json:"freeQuantity"`
	PaidQuantity int      `json:"paidQuantity"`
	ItemIDs      []string `json:"itemIds"`
}

// AddItem adds quantity units of src. Units that fit an open free slot of a
// matching Buy-X-Get-Y allocation become a free line right away, the rest is
// added as a paid line.
func (c *Composer) AddItem(src LineSource, quantity int, policy StockPolicy) (AddResult, error) {
	if src.empty() {
		return AddResult{}, ErrEmptyLine
	}
	if quantity < 1 {
		return AddResult{}, ErrInvalidQuantity
	}
	qty, err := resolveStock(c.draft.Items, src, quantity, policy, c.opts.AllowOversell)
	if err != nil {
		return AddResult{}, err
	}
	if qty == 0 {
		return AddResult{}, nil
	}

	price := UnitPrice(src, c.draft.PriceTier(), c.draft.CustomerPrices)
	line := models.OrderItem{
		ProductID:     src.ProductID,
		VariantID:     src.VariantID,
		ServiceID:     src.ServiceID,
		BundleID:      src.BundleID,
		CategoryID:    src.CategoryID,
		Name:          src.Name,
		ImageURL:      src.ImageURL,
		LandingCost:   src.LandingCost,
		Price:         price,
		OriginalPrice: price,
	}

	res := AddResult{Added: true}
	if !src.ProductID.IsZero() {
		allocs := ComputeAllocations(c.draft.Items, EligibleRules(c.rules, c.now()), c.opts.Overlap)
		for _, a := range allocs {
			if a.RemainingFreeSlots == 0 || !a.Matches(line) || hasPending(c.draft.Items, a) {
				continue
			}
			free := min(qty, a.RemainingFreeSlots)
			res.ItemIDs = append(res.ItemIDs, c.addFree(line, a, free))
			res.FreeQuantity = free
			qty -= free
			break
		}
	}
	if qty > 0 {
		line.Quantity = qty
		res.ItemIDs = append(res.ItemIDs, c.addPaid(line))
		res.PaidQuantity = qty
	}
	c.settle()
	return res, nil
}

func (c *Composer) addFree(line models.OrderItem, a models.BuyXGetYAllocation, qty int) string {
	for i := range c.draft.Items {
		item := &c.draft.Items[i]
		if a.Holds(*item) && item.SameReference(line) {
			item.Quantity += qty
			item.Recalculate()
			return item.ID
		}
	}
	free := freeLineFrom(line, a, qty, c.newID())
	c.draft.Items = append(c.draft.Items, free)
	return free.ID
}

func (c *Composer) addPaid(line models.OrderItem) string {
	if p := c.findPaid(line); p >= 0 {
		item := &c.draft.Items[p]
		item.Quantity += line.Quantity
		c.refreshLineDiscount(item)
		return item.ID
	}
	line.ID = c.newID()
	if rule, ok := BestRule(c.rules, line, c.now()); ok {
		applyRule(&line, rule)
	} else {
		line.Recalculate()
	}
	c.draft.Items = append(c.draft.Items, line)
	return line.ID
}

// SetQuantity changes a line quantity. On a free line an uncommitted edit is
// stored as pending and only validated against the allocation by CommitQuantity.
func (c *Composer) SetQuantity(itemID string, quantity int, commit bool) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	_, item, err := c.item(itemID)
	if err != nil {
		return err
	}
	item.Quantity = quantity
	if item.IsFreeItem {
		item.QuantityPending = true
		if commit {
			return c.CommitQuantity(itemID)
		}
		c.settle()
		return nil
	}
	c.refreshLineDiscount(item)
	c.settle()
	return nil
}

func (c *Composer) SetPrice(itemID string, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidAmount
	}
	_, item, err := c.item(itemID)
	if err != nil {
		return err
	}
	if item.IsFreeItem {
		return ErrFreeItemPrice
	}
	item.Price = price
	c.refreshLineDiscount(item)
	c.settle()
	return nil
}

// SetItemDiscount sets a manual line discount, either a percentage or an
// absolute amount capped at the line value. It replaces any applied rule.
func (c *Composer) SetItemDiscount(itemID string, amount, percentage decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	_, item, err := c.item(itemID)
	if err != nil {
		return err
	}
	if item.IsFreeItem {
		return ErrFreeItemPrice
	}
	if item.AppliedDiscountType != models.DiscountBuyXGetY {
		item.ClearAppliedDiscount()
	}
	item.DiscountPercentage = percentage
	if percentage.IsZero() {
		item.Discount = decimal.Min(amount, decimal.Max(item.LineAmount(), decimal.Zero))
	}
	item.Recalculate()
	c.settle()
	return nil
}

func (c *Composer) SetItemTax(itemID string, tax decimal.Decimal) error {
	if tax.IsNegative() {
		return ErrInvalidAmount
	}
	_, item, err := c.item(itemID)
	if err != nil {
		return err
	}
	if item.IsFreeItem {
		return ErrFreeItemPrice
	}
	item.Tax = tax
	item.Recalculate()
	c.settle()
	return nil
}

func (c *Composer) RemoveItem(itemID string) error {
	idx, _, err := c.item(itemID)
	if err != nil {
		return err
	}
	c.draft.Items = append(c.draft.Items[:idx], c.draft.Items[idx+1:]...)
	c.settle()
	return nil
}

// ApplyDiscountRule applies a percentage or fixed rule chosen by the operator.
func (c *Composer) ApplyDiscountRule(itemID string, ruleID models.RefID) error {
	rule, ok := c.findRule(ruleID)
	if !ok {
		return ErrRuleNotFound
	}
	_, item, err := c.item(itemID)
	if err != nil {
		return err
	}
	if item.IsFreeItem || rule.Type == models.DiscountBuyXGetY {
		return ErrRuleNotApplicable
	}
	if !rule.ActiveOn(c.now()) || !rule.AppliesTo(*item) {
		return ErrRuleNotApplicable
	}
	item.Discount = decimal.Zero
	applyRule(item, rule)
	c.settle()
	return nil
}

// SetCustomer selects an existing customer and reprices product lines for
// the customer's tier and negotiated prices.
func (c *Composer) SetCustomer(customer *models.Customer, prices []models.CustomerPrice, catalog Catalog) {
	c.draft.Customer = customer
	c.draft.CustomerPrices = prices
	if customer != nil {
		c.draft.NewCustomer = nil
	} else {
		c.draft.ApplyStoreCredit = false
		c.draft.StoreCreditAmount = decimal.Zero
	}
	c.reprice(catalog)
	c.settle()
}

// SetNewCustomer records inline customer data created on submit.
func (c *Composer) SetNewCustomer(customer *models.NewCustomer, catalog Catalog) {
	c.draft.Customer = nil
	c.draft.NewCustomer = customer
	c.draft.CustomerPrices = nil
	c.draft.CreatedCustomerID = ""
	c.draft.ApplyStoreCredit = false
	c.draft.StoreCreditAmount = decimal.Zero
	c.reprice(catalog)
	c.settle()
}

func (c *Composer) reprice(catalog Catalog) {
	if catalog == nil {
		return
	}
	tier := c.draft.PriceTier()
	for i := range c.draft.Items {
		item := &c.draft.Items[i]
		if item.ProductID.IsZero() {
			continue
		}
		src, ok := catalog.Source(*item)
		if !ok {
			continue
		}
		price := UnitPrice(src, tier, c.draft.CustomerPrices)
		item.OriginalPrice = price
		if item.IsFreeItem {
			item.Recalculate()
			continue
		}
		item.Price = price
		c.refreshLineDiscount(item)
	}
}

func (c *Composer) SetOrderDiscount(value decimal.Decimal, typ models.OrderDiscountType) error {
	if value.IsNegative() {
		return ErrInvalidAmount
	}
	if typ == "" {
		typ = models.OrderDiscountFlat
	}
	if typ == models.OrderDiscountRate && value.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	c.draft.DiscountValue = value
	c.draft.DiscountType = typ
	c.settle()
	return nil
}

// SetAdjustment stores a manual correction. It is unbounded and may take the
// grand total below zero.
func (c *Composer) SetAdjustment(adjustment decimal.Decimal) {
	c.draft.Adjustment = adjustment
	c.settle()
}

// SetGrandTotal back-solves the adjustment so the total before store credit
// equals desired.
func (c *Composer) SetGrandTotal(desired decimal.Decimal) Totals {
	c.settle()
	c.draft.Adjustment = AdjustmentFor(InputFromDraft(c.draft), desired.Round(2))
	return c.Totals()
}

func (c *Composer) SetShippingCost(cost decimal.Decimal) error {
	if cost.IsNegative() {
		return ErrInvalidAmount
	}
	c.draft.ShippingCost = cost
	c.draft.ShippingOverridden = true
	c.settle()
	return nil
}

func (c *Composer) ResetShipping() {
	c.draft.ShippingOverridden = false
	c.settle()
}

type Delivery struct {
	Method             models.DeliveryMethod
	ShippingAddressID  models.RefID
	NewShippingAddress *models.ShippingAddress
	PickupLocationID   models.RefID
}

func (c *Composer) SetDelivery(d Delivery) {
	c.draft.DeliveryMethod = d.Method
	if d.Method == models.DeliveryPickup {
		c.draft.PickupLocationID = d.PickupLocationID
		c.draft.ShippingAddressID = ""
		c.draft.NewShippingAddress = nil
	} else {
		c.draft.PickupLocationID = ""
		c.draft.ShippingAddressID = d.ShippingAddressID
		c.draft.NewShippingAddress = d.NewShippingAddress
	}
	c.settle()
}

func (c *Composer) SetTax(enabled bool, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	c.draft.TaxEnabled = enabled
	c.draft.TaxRate = rate
	c.settle()
	return nil
}

// SetStoreCredit records the requested credit. A zero amount with apply set
// requests the full available balance; the cap is applied by ComputeTotals.
func (c *Composer) SetStoreCredit(apply bool, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if apply && amount.IsZero() {
		amount = c.draft.AvailableStoreCredit()
	}
	c.draft.ApplyStoreCredit = apply
	c.draft.StoreCreditAmount = amount
	c.settle()
	return nil
}

// AddPendingServices appends the customer's outstanding services as paid lines.
func (c *Composer) AddPendingServices(services []models.PendingService) []string {
	ids := make([]string, 0, len(services))
	for _, s := range services {
		qty := s.Quantity
		if qty < 1 {
			qty = 1
		}
		ids = append(ids, c.addPaid(models.OrderItem{
			ServiceID:     s.ServiceID,
			Name:          s.Name,
			Quantity:      qty,
			Price:         s.Price,
			OriginalPrice: s.Price,
		}))
	}
	c.settle()
	return ids
}

type Details struct {
	Currency      *string
	PaymentMethod *string
	PaymentStatus *string
	Notes         *string
	DocumentIDs   []string
}

func (c *Composer) UpdateDetails(d Details) {
	if d.Currency != nil {
		c.draft.Currency = *d.Currency
	}
	if d.PaymentMethod != nil {
		c.draft.PaymentMethod = *d.PaymentMethod
	}
	if d.PaymentStatus != nil {
		c.draft.PaymentStatus = *d.PaymentStatus
	}
	if d.Notes != nil {
		c.draft.Notes = *d.Notes
	}
	if d.DocumentIDs != nil {
		c.draft.DocumentIDs = d.DocumentIDs
	}
	c.draft.UpdatedAt = c.now()
}
