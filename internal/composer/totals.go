package composer

import (
	"github.com/shopspring/decimal"

	"order_composer/internal/models"
)

var hundred = decimal.NewFromInt(100)

type TotalsInput struct {
	Items                []models.OrderItem
	Currency             string
	ShippingCost         decimal.Decimal
	DiscountValue        decimal.Decimal
	DiscountType         models.OrderDiscountType
	Adjustment           decimal.Decimal
	TaxRate              decimal.Decimal
	TaxEnabled           bool
	AvailableStoreCredit decimal.Decimal
	ApplyStoreCredit     bool
	StoreCreditAmount    decimal.Decimal
}

type Totals struct {
	Currency               string          `json:"currency"`
	Subtotal               decimal.Decimal `json:"subtotal"`
	DiscountAmount         decimal.Decimal `json:"discountAmount"`
	SubtotalAfterDiscount  decimal.Decimal `json:"subtotalAfterDiscount"`
	TaxAmount              decimal.Decimal `json:"taxAmount"`
	ShippingCost           decimal.Decimal `json:"shippingCost"`
	Adjustment             decimal.Decimal `json:"adjustment"`
	TotalBeforeStoreCredit decimal.Decimal `json:"totalBeforeStoreCredit"`
	AvailableStoreCredit   decimal.Decimal `json:"availableStoreCredit"`
	MaxApplicableCredit    decimal.Decimal `json:"maxApplicableCredit"`
	StoreCreditApplied     decimal.Decimal `json:"storeCreditApplied"`
	GrandTotal             decimal.Decimal `json:"grandTotal"`
}

func InputFromDraft(d *models.OrderDraft) TotalsInput {
	return TotalsInput{
		Items:                d.Items,
		Currency:             d.Currency,
		ShippingCost:         d.ShippingCost,
		DiscountValue:        d.DiscountValue,
		DiscountType:         d.DiscountType,
		Adjustment:           d.Adjustment,
		TaxRate:              d.TaxRate,
		TaxEnabled:           d.TaxEnabled,
		AvailableStoreCredit: d.AvailableStoreCredit(),
		ApplyStoreCredit:     d.ApplyStoreCredit,
		StoreCreditAmount:    d.StoreCreditAmount,
	}
}

func Subtotal(items []models.OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total)
	}
	return sum
}

// preAdjustment returns subtotal, discount, tax and their combination with
// shipping: everything in the pre-credit total except the adjustment.
func preAdjustment(in TotalsInput) (subtotal, discount, tax, base decimal.Decimal) {
	subtotal = Subtotal(in.Items)
	if in.DiscountType == models.OrderDiscountRate {
		discount = subtotal.Mul(in.DiscountValue).Div(hundred).Round(2)
	} else {
		discount = in.DiscountValue.Round(2)
	}
	afterDiscount := subtotal.Sub(discount)
	tax = decimal.Zero
	if in.TaxEnabled {
		tax = afterDiscount.Mul(in.TaxRate).Div(hundred).Round(2)
	}
	base = afterDiscount.Add(tax).Add(in.ShippingCost)
	return subtotal, discount, tax, base
}

func ComputeTotals(in TotalsInput) Totals {
	subtotal, discount, tax, base := preAdjustment(in)
	t := Totals{
		Currency:              in.Currency,
		Subtotal:              subtotal,
		DiscountAmount:        discount,
		SubtotalAfterDiscount: subtotal.Sub(discount),
		TaxAmount:             tax,
		ShippingCost:          in.ShippingCost,
		Adjustment:            in.Adjustment,
		AvailableStoreCredit:  decimal.Max(in.AvailableStoreCredit, decimal.Zero),
		StoreCreditApplied:    decimal.Zero,
	}
	t.TotalBeforeStoreCredit = base.Add(in.Adjustment)

	t.MaxApplicableCredit = decimal.Min(t.AvailableStoreCredit, decimal.Max(decimal.Zero, t.TotalBeforeStoreCredit))
	if in.ApplyStoreCredit {
		t.StoreCreditApplied = decimal.Max(decimal.Zero, decimal.Min(in.StoreCreditAmount, t.MaxApplicableCredit))
	}
	t.GrandTotal = t.TotalBeforeStoreCredit.Sub(t.StoreCreditApplied)
	return t
}

// AdjustmentFor back-solves the adjustment that makes the pre-credit total
// equal desired, using the same components as ComputeTotals.
func AdjustmentFor(in TotalsInput, desired decimal.Decimal) decimal.Decimal {
	_, _, _, base := preAdjustment(in)
	return desired.Sub(base)
}
