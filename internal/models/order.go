package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DraftStatus string

const (
	DraftOpen       DraftStatus = "open"
	DraftSubmitting DraftStatus = "submitting"
	DraftSubmitted  DraftStatus = "submitted"
)

type DeliveryMethod string

const (
	DeliveryShipping DeliveryMethod = "delivery"
	DeliveryPickup   DeliveryMethod = "pickup"
)

type OrderDiscountType string

const (
	OrderDiscountFlat OrderDiscountType = "flat"
	OrderDiscountRate OrderDiscountType = "rate"
)

// OrderDraft is the single aggregate behind the order form. Every mutation
// goes through the composer so line invariants hold in one place.
type OrderDraft struct {
	ID                 string            `json:"id"`
	OrderID            RefID             `json:"orderId,omitempty"`
	Operator           string            `json:"operator,omitempty"`
	Customer           *Customer         `json:"customer,omitempty"`
	NewCustomer        *NewCustomer      `json:"newCustomer,omitempty"`
	CustomerPrices     []CustomerPrice   `json:"customerPrices,omitempty"`
	DeliveryMethod     DeliveryMethod    `json:"deliveryMethod"`
	ShippingAddressID  RefID             `json:"shippingAddressId,omitempty"`
	NewShippingAddress *ShippingAddress  `json:"newShippingAddress,omitempty"`
	PickupLocationID   RefID             `json:"pickupLocationId,omitempty"`
	Items              []OrderItem       `json:"items"`
	Currency           string            `json:"currency"`
	ShippingCost       decimal.Decimal   `json:"shippingCost"`
	ShippingOverridden bool              `json:"shippingOverridden"`
	DiscountValue      decimal.Decimal   `json:"discountValue"`
	DiscountType       OrderDiscountType `json:"discountType"`
	Adjustment         decimal.Decimal   `json:"adjustment"`
	TaxRate            decimal.Decimal   `json:"taxRate"`
	TaxEnabled         bool              `json:"taxEnabled"`
	ApplyStoreCredit   bool              `json:"applyStoreCredit"`
	StoreCreditAmount  decimal.Decimal   `json:"storeCreditAmount"`
	PaymentMethod      string            `json:"paymentMethod,omitempty"`
	PaymentStatus      string            `json:"paymentStatus,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	DocumentIDs        []string          `json:"documentIds,omitempty"`
	SubmissionToken    string            `json:"submissionToken,omitempty"`
	CreatedCustomerID  RefID             `json:"createdCustomerId,omitempty"`
	Status             DraftStatus       `json:"status"`
	SubmittedOrderID   RefID             `json:"submittedOrderId,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func (d *OrderDraft) FindItem(id string) (int, *OrderItem) {
	for i := range d.Items {
		if d.Items[i].ID == id {
			return i, &d.Items[i]
		}
	}
	return -1, nil
}

func (d *OrderDraft) AvailableStoreCredit() decimal.Decimal {
	if d.Customer == nil || d.Customer.StoreCredit.IsNegative() {
		return decimal.Zero
	}
	return d.Customer.StoreCredit
}

// CustomerID returns the backend id to submit: the selected customer, or the
// one created for this draft on an earlier submission attempt.
func (d *OrderDraft) CustomerID() RefID {
	if d.Customer != nil && !d.Customer.ID.IsZero() {
		return d.Customer.ID
	}
	return d.CreatedCustomerID
}

func (d *OrderDraft) PriceTier() PriceTier {
	if d.Customer != nil && d.Customer.PriceTier != "" {
		return d.Customer.PriceTier
	}
	if d.NewCustomer != nil && d.NewCustomer.PriceTier != "" {
		return d.NewCustomer.PriceTier
	}
	return PriceTierRetail
}

// Order is an order as the backend returns it.
type Order struct {
	ID                RefID             `json:"id"`
	OrderNumber       string            `json:"orderNumber,omitempty"`
	CustomerID        RefID             `json:"customerId,omitempty"`
	Customer          *Customer         `json:"customer,omitempty"`
	Status            string            `json:"status,omitempty"`
	Currency          string            `json:"currency,omitempty"`
	Items             []OrderItem       `json:"items"`
	ShippingCost      decimal.Decimal   `json:"shippingCost"`
	DiscountValue     decimal.Decimal   `json:"discountValue"`
	DiscountType      OrderDiscountType `json:"discountType,omitempty"`
	Adjustment        decimal.Decimal   `json:"adjustment"`
	TaxRate           decimal.Decimal   `json:"taxRate"`
	TaxEnabled        bool              `json:"taxEnabled"`
	DeliveryMethod    DeliveryMethod    `json:"deliveryMethod,omitempty"`
	ShippingAddressID RefID             `json:"shippingAddressId,omitempty"`
	PickupLocationID  RefID             `json:"pickupLocationId,omitempty"`
	PaymentMethod     string            `json:"paymentMethod,omitempty"`
	PaymentStatus     string            `json:"paymentStatus,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	DocumentIDs       []string          `json:"documentIds,omitempty"`
	GrandTotal        decimal.Decimal   `json:"grandTotal"`
	CreatedAt         *Date             `json:"createdAt,omitempty"`
}
