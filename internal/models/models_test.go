package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefIDAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		A RefID `json:"a"`
		B RefID `json:"b"`
		C RefID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 42, "b": "abc-1", "c": null}`), &payload))
	assert.Equal(t, RefID("42"), payload.A)
	assert.Equal(t, RefID("abc-1"), payload.B)
	assert.True(t, payload.C.IsZero())
	assert.True(t, RefID("  ").IsZero())

	var bad RefID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &bad))
}

func TestDateLayouts(t *testing.T) {
	for _, in := range []string{`"2025-03-15"`, `"2025-03-15T10:00:00"`, `"2025-03-15T10:00:00Z"`} {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(in), &d), in)
		assert.Equal(t, time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC), UTCDay(d.Time), in)
	}

	var empty Date
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())
	out, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	var bad Date
	assert.Error(t, json.Unmarshal([]byte(`"15/03/2025"`), &bad))
}

func TestRecalculate(t *testing.T) {
	item := OrderItem{Quantity: 3, Price: decimal.NewFromInt(10), DiscountPercentage: decimal.NewFromInt(15), Tax: decimal.NewFromFloat(1.5)}
	item.Recalculate()
	assert.True(t, item.Discount.Equal(decimal.RequireFromString("4.5")))
	assert.True(t, item.Total.Equal(decimal.RequireFromString("27")))

	free := OrderItem{Quantity: 4, Price: decimal.NewFromInt(10), Tax: decimal.NewFromInt(2), IsFreeItem: true}
	free.Recalculate()
	assert.True(t, free.Price.IsZero())
	assert.True(t, free.Total.IsZero())
	assert.True(t, free.Tax.IsZero())
	assert.Equal(t, 4, free.Quantity)
}

func TestDiscountRuleActiveOn(t *testing.T) {
	now := time.Date(2025, time.March, 15, 23, 0, 0, 0, time.UTC)
	rule := DiscountRule{Status: DiscountStatusActive}
	assert.True(t, rule.ActiveOn(now))

	rule.StartDate = NewDate(2025, time.March, 15)
	rule.EndDate = NewDate(2025, time.March, 15)
	assert.True(t, rule.ActiveOn(now))

	rule.EndDate = NewDate(2025, time.March, 14)
	assert.False(t, rule.ActiveOn(now))

	rule.EndDate = nil
	rule.Status = "inactive"
	assert.False(t, rule.ActiveOn(now))
}

func TestDiscountRuleAppliesTo(t *testing.T) {
	item := OrderItem{ProductID: "p-1", CategoryID: "7"}
	tests := []struct {
		name string
		rule DiscountRule
		want bool
	}{
		{name: "all products", rule: DiscountRule{Scope: ScopeAllProducts}, want: true},
		{name: "specific product", rule: DiscountRule{Scope: ScopeSpecificProduct, ProductID: "p-1"}, want: true},
		{name: "other product", rule: DiscountRule{Scope: ScopeSpecificProduct, ProductID: "p-2"}, want: false},
		{name: "selected products", rule: DiscountRule{Scope: ScopeSelectedProducts, ProductIDs: []RefID{"p-3", "p-1"}}, want: true},
		{name: "category", rule: DiscountRule{Scope: ScopeSpecificCategory, CategoryID: "7"}, want: true},
		{name: "category without id", rule: DiscountRule{Scope: ScopeSpecificCategory}, want: false},
		{name: "unknown scope", rule: DiscountRule{Scope: "customer_group"}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rule.AppliesTo(item))
		})
	}
	assert.False(t, DiscountRule{Scope: ScopeAllProducts}.AppliesTo(OrderItem{ServiceID: "s-1"}))
}

func TestDraftHelpers(t *testing.T) {
	d := &OrderDraft{Items: []OrderItem{{ID: "a"}, {ID: "b"}}}
	idx, item := d.FindItem("b")
	assert.Equal(t, 1, idx)
	require.NotNil(t, item)
	_, missing := d.FindItem("z")
	assert.Nil(t, missing)

	assert.True(t, d.AvailableStoreCredit().IsZero())
	assert.Equal(t, PriceTierRetail, d.PriceTier())

	d.CreatedCustomerID = "9"
	assert.Equal(t, RefID("9"), d.CustomerID())
	d.Customer = &Customer{ID: "3", PriceTier: PriceTierWholesale, StoreCredit: decimal.NewFromInt(-4)}
	assert.Equal(t, RefID("3"), d.CustomerID())
	assert.Equal(t, PriceTierWholesale, d.PriceTier())
	assert.True(t, d.AvailableStoreCredit().IsZero())
}
