package composer

import (
	"github.com/shopspring/decimal"

	"order_composer/internal/models"
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

type PayloadItem struct {
	ProductID            models.RefID         `json:"productId,omitempty"`
	VariantID            models.RefID         `json:"variantId,omitempty"`
	ServiceID            models.RefID         `json:"serviceId,omitempty"`
	BundleID             models.RefID         `json:"bundleId,omitempty"`
	CategoryID           models.RefID         `json:"categoryId,omitempty"`
	Name                 string               `json:"name"`
	Quantity             int                  `json:"quantity"`
	Price                string               `json:"price"`
	OriginalPrice        string               `json:"originalPrice"`
	Discount             string               `json:"discount"`
	DiscountPercentage   string               `json:"discountPercentage"`
	Tax                  string               `json:"tax"`
	Total                string               `json:"total"`
	IsFreeItem           bool                 `json:"isFreeItem"`
	AppliedDiscountID    models.RefID         `json:"appliedDiscountId,omitempty"`
	AppliedDiscountLabel string               `json:"appliedDiscountLabel,omitempty"`
	AppliedDiscountType  models.DiscountType  `json:"appliedDiscountType,omitempty"`
	AppliedDiscountScope models.DiscountScope `json:"appliedDiscountScope,omitempty"`
}

// OrderPayload is the body of POST/PATCH /api/orders. Totals are advisory;
// the backend recomputes them.
type OrderPayload struct {
	CustomerID            models.RefID             `json:"customerId,omitempty"`
	Customer              *models.NewCustomer      `json:"customer,omitempty"`
	Items                 []PayloadItem            `json:"items"`
	DeliveryMethod        models.DeliveryMethod    `json:"deliveryMethod,omitempty"`
	ShippingAddressID     models.RefID             `json:"shippingAddressId,omitempty"`
	ShippingAddress       *models.ShippingAddress  `json:"shippingAddress,omitempty"`
	PickupLocationID      models.RefID             `json:"pickupLocationId,omitempty"`
	Currency              string                   `json:"currency"`
	Subtotal              string                   `json:"subtotal"`
	DiscountValue         string                   `json:"discountValue"`
	DiscountType          models.OrderDiscountType `json:"discountType"`
	DiscountAmount        string                   `json:"discountAmount"`
	TaxEnabled            bool                     `json:"taxEnabled"`
	TaxRate               string                   `json:"taxRate"`
	TaxAmount             string                   `json:"taxAmount"`
	ShippingCost          string                   `json:"shippingCost"`
	Adjustment            string                   `json:"adjustment"`
	StoreCreditAdjustment *string                  `json:"storeCreditAdjustment,omitempty"`
	GrandTotal            string                   `json:"grandTotal"`
	PaymentMethod         string                   `json:"paymentMethod,omitempty"`
	PaymentStatus         string                   `json:"paymentStatus,omitempty"`
	Notes                 string                   `json:"notes,omitempty"`
	DocumentIDs           []string                 `json:"documentIds,omitempty"`
}

func BuildPayload(d *models.OrderDraft, t Totals) OrderPayload {
	p := OrderPayload{
		Items:             make([]PayloadItem, 0, len(d.Items)),
		DeliveryMethod:    d.DeliveryMethod,
		ShippingAddressID: d.ShippingAddressID,
		PickupLocationID:  d.PickupLocationID,
		Currency:          d.Currency,
		Subtotal:          money(t.Subtotal),
		DiscountValue:     money(d.DiscountValue),
		DiscountType:      d.DiscountType,
		DiscountAmount:    money(t.DiscountAmount),
		TaxEnabled:        d.TaxEnabled,
		TaxRate:           money(d.TaxRate),
		TaxAmount:         money(t.TaxAmount),
		ShippingCost:      money(t.ShippingCost),
		Adjustment:        money(t.Adjustment),
		GrandTotal:        money(t.GrandTotal),
		PaymentMethod:     d.PaymentMethod,
		PaymentStatus:     d.PaymentStatus,
		Notes:             d.Notes,
		DocumentIDs:       d.DocumentIDs,
	}
	if p.DiscountType == "" {
		p.DiscountType = models.OrderDiscountFlat
	}

	if id := d.CustomerID(); !id.IsZero() {
		p.CustomerID = id
	} else {
		p.Customer = d.NewCustomer
	}
	if d.DeliveryMethod != models.DeliveryPickup && p.ShippingAddressID.IsZero() {
		p.ShippingAddress = d.NewShippingAddress
	}
	if t.StoreCreditApplied.IsPositive() {
		credit := money(t.StoreCreditApplied)
		p.StoreCreditAdjustment = &credit
	}

	for _, item := range d.Items {
		p.Items = append(p.Items, PayloadItem{
			ProductID:            item.ProductID,
			VariantID:            item.VariantID,
			ServiceID:            item.ServiceID,
			BundleID:             item.BundleID,
			CategoryID:           item.CategoryID,
			Name:                 item.Name,
			Quantity:             item.Quantity,
			Price:                money(item.Price),
			OriginalPrice:        money(item.OriginalPrice),
			Discount:             money(item.Discount),
			DiscountPercentage:   money(item.DiscountPercentage),
			Tax:                  money(item.Tax),
			Total:                money(item.Total),
			IsFreeItem:           item.IsFreeItem,
			AppliedDiscountID:    item.AppliedDiscountID,
			AppliedDiscountLabel: item.AppliedDiscountLabel,
			AppliedDiscountType:  item.AppliedDiscountType,
			AppliedDiscountScope: item.AppliedDiscountScope,
		})
	}
	return p
}
