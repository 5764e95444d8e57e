package models

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type OrderItem struct {
	ID                   string          `json:"id"`
	ProductID            RefID           `json:"productId,omitempty"`
	VariantID            RefID           `json:"variantId,omitempty"`
	ServiceID            RefID           `json:"serviceId,omitempty"`
	BundleID             RefID           `json:"bundleId,omitempty"`
	CategoryID           RefID           `json:"categoryId,omitempty"`
	Name                 string          `json:"name"`
	ImageURL             string          `json:"imageUrl,omitempty"`
	LandingCost          decimal.Decimal `json:"landingCost"`
	Quantity             int             `json:"quantity"`
	Price                decimal.Decimal `json:"price"`
	OriginalPrice        decimal.Decimal `json:"originalPrice"`
	Discount             decimal.Decimal `json:"discount"`
	DiscountPercentage   decimal.Decimal `json:"discountPercentage"`
	Tax                  decimal.Decimal `json:"tax"`
	Total                decimal.Decimal `json:"total"`
	IsFreeItem           bool            `json:"isFreeItem"`
	AppliedDiscountID    RefID           `json:"appliedDiscountId,omitempty"`
	AppliedDiscountLabel string          `json:"appliedDiscountLabel,omitempty"`
	AppliedDiscountType  DiscountType    `json:"appliedDiscountType,omitempty"`
	AppliedDiscountScope DiscountScope   `json:"appliedDiscountScope,omitempty"`
	// QuantityPending marks a free-item quantity edit that has not been committed yet.
	QuantityPending bool `json:"quantityPending,omitempty"`
}

// Recalculate enforces the line invariants: a free item is always priced and
// totalled at zero, everything else totals quantity*price - discount + tax.
func (i *OrderItem) Recalculate() {
	if i.IsFreeItem {
		i.Price = decimal.Zero
		i.Discount = decimal.Zero
		i.DiscountPercentage = decimal.Zero
		i.Tax = decimal.Zero
		i.Total = decimal.Zero
		return
	}
	gross := i.LineAmount()
	if i.DiscountPercentage.IsPositive() {
		i.Discount = gross.Mul(i.DiscountPercentage).Div(hundred).Round(2)
	}
	i.Total = gross.Sub(i.Discount).Add(i.Tax)
}

func (i OrderItem) LineAmount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SameReference reports whether both lines point at the same catalog entry.
func (i OrderItem) SameReference(o OrderItem) bool {
	return i.ProductID == o.ProductID &&
		i.VariantID == o.VariantID &&
		i.ServiceID == o.ServiceID &&
		i.BundleID == o.BundleID
}

func (i *OrderItem) ClearAppliedDiscount() {
	i.AppliedDiscountID = ""
	i.AppliedDiscountLabel = ""
	i.AppliedDiscountType = ""
	i.AppliedDiscountScope = ""
}

func (i OrderItem) Equal(o OrderItem) bool {
	return i.ID == o.ID &&
		i.SameReference(o) &&
		i.CategoryID == o.CategoryID &&
		i.Name == o.Name &&
		i.ImageURL == o.ImageURL &&
		i.LandingCost.Equal(o.LandingCost) &&
		i.Quantity == o.Quantity &&
		i.Price.Equal(o.Price) &&
		i.OriginalPrice.Equal(o.OriginalPrice) &&
		i.Discount.Equal(o.Discount) &&
		i.DiscountPercentage.Equal(o.DiscountPercentage) &&
		i.Tax.Equal(o.Tax) &&
		i.Total.Equal(o.Total) &&
		i.IsFreeItem == o.IsFreeItem &&
		i.AppliedDiscountID == o.AppliedDiscountID &&
		i.AppliedDiscountLabel == o.AppliedDiscountLabel &&
		i.AppliedDiscountType == o.AppliedDiscountType &&
		i.AppliedDiscountScope == o.AppliedDiscountScope &&
		i.QuantityPending == o.QuantityPending
}

func ItemsEqual(a, b []OrderItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func CloneItems(items []OrderItem) []OrderItem {
	if items == nil {
		return nil
	}
	out := make([]OrderItem, len(items))
	copy(out, items)
	return out
}
