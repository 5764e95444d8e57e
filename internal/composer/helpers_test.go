package composer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"order_composer/internal/models"
)

var testNow = time.Date(2025, time.March, 15, 14, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("line-%d", n)
	}
}

func paidItem(id, product, category, price string, qty int) models.OrderItem {
	item := models.OrderItem{
		ID:            id,
		ProductID:     models.RefID(product),
		CategoryID:    models.RefID(category),
		Name:          "Product " + product,
		Quantity:      qty,
		Price:         dec(price),
		OriginalPrice: dec(price),
	}
	item.Recalculate()
	return item
}

func freeItem(id, product, category, originalPrice string, qty int, rule models.DiscountRule) models.OrderItem {
	item := models.OrderItem{
		ID:                   id,
		ProductID:            models.RefID(product),
		CategoryID:           models.RefID(category),
		Name:                 "Product " + product,
		Quantity:             qty,
		OriginalPrice:        dec(originalPrice),
		IsFreeItem:           true,
		AppliedDiscountID:    rule.ID,
		AppliedDiscountLabel: rule.Label(),
		AppliedDiscountType:  models.DiscountBuyXGetY,
		AppliedDiscountScope: rule.Scope,
	}
	item.Recalculate()
	return item
}

func categoryRule(id, category string, buy, get int) models.DiscountRule {
	return models.DiscountRule{
		ID:          models.RefID(id),
		Name:        fmt.Sprintf("Buy %d get %d", buy, get),
		Type:        models.DiscountBuyXGetY,
		Scope:       models.ScopeSpecificCategory,
		CategoryID:  models.RefID(category),
		BuyQuantity: buy,
		GetQuantity: get,
		Status:      models.DiscountStatusActive,
	}
}

func productRule(id, product string, buy, get int) models.DiscountRule {
	r := categoryRule(id, "", buy, get)
	r.Scope = models.ScopeSpecificProduct
	r.ProductID = models.RefID(product)
	return r
}

func testOptions(autoAdd bool) Options {
	return Options{
		Overlap:          OverlapExclusive,
		AutoAddFreeItems: autoAdd,
		Now:              func() time.Time { return testNow },
		NewID:            sequentialIDs(),
	}
}

func newTestComposer(items []models.OrderItem, rules []models.DiscountRule, autoAdd bool) *Composer {
	draft := &models.OrderDraft{
		ID:             "draft-1",
		Items:          items,
		DeliveryMethod: models.DeliveryShipping,
		Status:         models.DraftOpen,
	}
	return New(draft, rules, models.ShippingSettings{Currency: "USD"}, testOptions(autoAdd))
}

func freeQuantity(items []models.OrderItem) int {
	n := 0
	for _, item := range items {
		if item.IsFreeItem {
			n += item.Quantity
		}
	}
	return n
}

func paidLines(items []models.OrderItem, product string) []models.OrderItem {
	var out []models.OrderItem
	for _, item := range items {
		if !item.IsFreeItem && item.ProductID == models.RefID(product) {
			out = append(out, item)
		}
	}
	return out
}

func freeLines(items []models.OrderItem) []models.OrderItem {
	var out []models.OrderItem
	for _, item := range items {
		if item.IsFreeItem {
			out = append(out, item)
		}
	}
	return out
}
