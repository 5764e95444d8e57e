package composer

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order_composer/internal/models"
)

func product(id, category, price string) models.Product {
	return models.Product{
		ID:         models.RefID(id),
		Name:       "Product " + id,
		CategoryID: models.RefID(category),
		Price:      dec(price),
	}
}

type fakeCatalog map[models.RefID]LineSource

func (f fakeCatalog) Source(item models.OrderItem) (LineSource, bool) {
	src, ok := f[item.ProductID]
	return src, ok
}

func TestAddItemUsesOpenFreeSlotsFirst(t *testing.T) {
	rule := categoryRule("r1", "C", 5, 1)
	c := newTestComposer([]models.OrderItem{paidItem("a", "p-a", "C", "10", 10)}, []models.DiscountRule{rule}, false)
	require.Equal(t, 2, c.Allocations()[0].RemainingFreeSlots)

	res, err := c.AddItem(FromProduct(product("p-b", "C", "7"), nil), 3, StockAsk)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.Equal(t, 2, res.FreeQuantity)
	assert.Equal(t, 1, res.PaidQuantity)
	require.Len(t, res.ItemIDs, 2)

	free := freeLines(c.Draft().Items)
	require.Len(t, free, 1)
	assert.Equal(t, models.RefID("p-b"), free[0].ProductID)
	assert.Equal(t, 2, free[0].Quantity)
	assert.True(t, free[0].OriginalPrice.Equal(dec("7")))

	paid := paidLines(c.Draft().Items, "p-b")
	require.Len(t, paid, 1)
	assert.Equal(t, 1, paid[0].Quantity)

	require.Len(t, c.Allocations(), 1)
	assert.Equal(t, 2, c.Allocations()[0].FreeItemsAssigned)
	assert.Equal(t, 0, c.Allocations()[0].RemainingFreeSlots)
}

func TestAddItemMergesPaidLines(t *testing.T) {
	c := newTestComposer(nil, nil, true)
	src := FromProduct(product("p-a", "C", "10"), nil)

	_, err := c.AddItem(src, 2, StockAsk)
	require.NoError(t, err)
	_, err = c.AddItem(src, 3, StockAsk)
	require.NoError(t, err)

	items := c.Draft().Items
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.True(t, items[0].Total.Equal(dec("50")))
}

func TestAddItemTriggersReconciliation(t *testing.T) {
	rule := categoryRule("r1", "C", 5, 1)
	c := newTestComposer(nil, []models.DiscountRule{rule}, true)

	_, err := c.AddItem(FromProduct(product("p-a", "C", "10"), nil), 10, StockAsk)
	require.NoError(t, err)
	assert.Equal(t, 2, freeQuantity(c.Draft().Items))

	paid := paidLines(c.Draft().Items, "p-a")
	require.Len(t, paid, 1)
	require.NoError(t, c.RemoveItem(paid[0].ID))
	assert.Empty(t, c.Draft().Items)
}

func TestAddItemValidation(t *testing.T) {
	c := newTestComposer(nil, nil, true)

	_, err := c.AddItem(LineSource{Name: "nothing"}, 1, StockAsk)
	assert.ErrorIs(t, err, ErrEmptyLine)

	_, err = c.AddItem(FromService(models.Service{ID: "s1", Name: "Fitting", Price: dec("15")}), 0, StockAsk)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddItemStockPolicies(t *testing.T) {
	p := product("p-a", "C", "10")
	p.Stock = 5
	p.TrackStock = true
	src := FromProduct(p, nil)

	t.Run("asks by default", func(t *testing.T) {
		c := newTestComposer(nil, nil, true)
		_, err := c.AddItem(src, 6, StockAsk)
		var conflict *StockConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, 6, conflict.Requested)
		assert.Equal(t, 5, conflict.Available)
		assert.Empty(t, c.Draft().Items)
	})

	t.Run("fill adds what is available", func(t *testing.T) {
		c := newTestComposer(nil, nil, true)
		res, err := c.AddItem(src, 6, StockFill)
		require.NoError(t, err)
		assert.Equal(t, 5, res.PaidQuantity)
	})

	t.Run("cancel adds nothing", func(t *testing.T) {
		c := newTestComposer([]models.OrderItem{paidItem("a", "p-a", "C", "10", 5)}, nil, true)
		res, err := c.AddItem(src, 1, StockCancel)
		require.NoError(t, err)
		assert.False(t, res.Added)
		assert.Equal(t, 5, c.Draft().Items[0].Quantity)
	})

	t.Run("force and always add anyway", func(t *testing.T) {
		for _, policy := range []StockPolicy{StockForce, StockAlways} {
			c := newTestComposer(nil, nil, true)
			res, err := c.AddItem(src, 8, policy)
			require.NoError(t, err)
			assert.Equal(t, 8, res.PaidQuantity)
		}
	})

	t.Run("oversell option skips the check", func(t *testing.T) {
		opts := testOptions(true)
		opts.AllowOversell = true
		c := New(&models.OrderDraft{}, nil, models.ShippingSettings{}, opts)
		_, err := c.AddItem(src, 8, StockAsk)
		require.NoError(t, err)
	})

	t.Run("free lines count against stock", func(t *testing.T) {
		rule := categoryRule("r1", "C", 2, 1)
		c := newTestComposer([]models.OrderItem{
			paidItem("a", "p-a", "C", "10", 2),
			freeItem("f", "p-a", "C", "10", 1, rule),
		}, []models.DiscountRule{rule}, true)
		_, err := c.AddItem(src, 3, StockAsk)
		var conflict *StockConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, 2, conflict.Available)
	})
}

func TestParseStockPolicy(t *testing.T) {
	p, err := ParseStockPolicy(" Fill ")
	require.NoError(t, err)
	assert.Equal(t, StockFill, p)

	p, err = ParseStockPolicy("")
	require.NoError(t, err)
	assert.Equal(t, StockAsk, p)

	_, err = ParseStockPolicy("sometimes")
	assert.ErrorIs(t, err, ErrUnknownStockPolicy)
}

func TestPriceTiers(t *testing.T) {
	p := product("p-a", "C", "10")
	p.WholesalePrice = dec("8")
	variant := models.ProductVariant{ID: "v-1", ProductID: "p-a", Name: "Large", Price: dec("12"), WholesalePrice: dec("9")}

	tests := []struct {
		name   string
		src    LineSource
		tier   models.PriceTier
		prices []models.CustomerPrice
		want   string
	}{
		{name: "retail", src: FromProduct(p, nil), tier: models.PriceTierRetail, want: "10"},
		{name: "wholesale", src: FromProduct(p, nil), tier: models.PriceTierWholesale, want: "8"},
		{name: "wholesale variant", src: FromProduct(p, &variant), tier: models.PriceTierWholesale, want: "9"},
		{
			name:   "negotiated beats wholesale",
			src:    FromProduct(p, nil),
			tier:   models.PriceTierWholesale,
			prices: []models.CustomerPrice{{ProductID: "p-a", Price: dec("7.5")}},
			want:   "7.5",
		},
		{
			name: "variant price beats product price",
			src:  FromProduct(p, &variant),
			prices: []models.CustomerPrice{
				{ProductID: "p-a", Price: dec("7.5")},
				{ProductID: "p-a", VariantID: "v-1", Price: dec("11")},
			},
			want: "11",
		},
		{
			name: "wholesale without wholesale price falls back to retail",
			src:  FromService(models.Service{ID: "s1", Price: dec("20")}),
			tier: models.PriceTierWholesale,
			want: "20",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := UnitPrice(tc.src, tc.tier, tc.prices)
			assert.True(t, got.Equal(dec(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestSetCustomerReprices(t *testing.T) {
	p := product("p-a", "C", "10")
	p.WholesalePrice = dec("8")
	catalog := fakeCatalog{"p-a": FromProduct(p, nil)}
	rule := categoryRule("r1", "C", 2, 1)

	c := newTestComposer(nil, []models.DiscountRule{rule}, true)
	_, err := c.AddItem(FromProduct(p, nil), 2, StockAsk)
	require.NoError(t, err)
	require.Equal(t, 1, freeQuantity(c.Draft().Items))

	c.SetCustomer(&models.Customer{ID: "cust-1", Name: "Ana", PriceTier: models.PriceTierWholesale}, nil, catalog)

	for _, item := range c.Draft().Items {
		assert.True(t, item.OriginalPrice.Equal(dec("8")))
		if item.IsFreeItem {
			assert.True(t, item.Price.IsZero())
			continue
		}
		assert.True(t, item.Price.Equal(dec("8")))
		assert.True(t, item.Total.Equal(dec("16")))
	}

	c.SetNewCustomer(&models.NewCustomer{Name: "Walk-in"}, catalog)
	paid := paidLines(c.Draft().Items, "p-a")
	require.Len(t, paid, 1)
	assert.True(t, paid[0].Price.Equal(dec("10")))
	assert.Nil(t, c.Draft().Customer)
}

func TestAddItemMatchesBestDiscount(t *testing.T) {
	percent := models.DiscountRule{
		ID: "pct", Type: models.DiscountPercentage, Scope: models.ScopeAllProducts,
		Value: dec("10"), Status: models.DiscountStatusActive,
	}
	fixed := models.DiscountRule{
		ID: "fixed", Type: models.DiscountFixedAmount, Scope: models.ScopeSpecificProduct,
		ProductID: "p-a", Value: dec("3"), Status: models.DiscountStatusActive,
	}
	expired := models.DiscountRule{
		ID: "old", Type: models.DiscountPercentage, Scope: models.ScopeAllProducts,
		Value: dec("50"), Status: models.DiscountStatusActive, EndDate: models.NewDate(2024, 1, 1),
	}
	c := newTestComposer(nil, []models.DiscountRule{percent, fixed, expired}, true)

	_, err := c.AddItem(FromProduct(product("p-a", "C", "10"), nil), 2, StockAsk)
	require.NoError(t, err)
	_, err = c.AddItem(FromProduct(product("p-b", "C", "10"), nil), 2, StockAsk)
	require.NoError(t, err)

	a := paidLines(c.Draft().Items, "p-a")[0]
	assert.Equal(t, models.RefID("fixed"), a.AppliedDiscountID)
	assert.True(t, a.Discount.Equal(dec("6")))
	assert.True(t, a.Total.Equal(dec("14")))

	b := paidLines(c.Draft().Items, "p-b")[0]
	assert.Equal(t, models.RefID("pct"), b.AppliedDiscountID)
	assert.True(t, b.Discount.Equal(dec("2")))
	assert.True(t, b.Total.Equal(dec("18")))

	require.NoError(t, c.SetQuantity(a.ID, 4, true))
	a = paidLines(c.Draft().Items, "p-a")[0]
	assert.True(t, a.Discount.Equal(dec("12")), "fixed discount follows quantity")
}

func TestApplyDiscountRule(t *testing.T) {
	bxgy := categoryRule("r1", "C", 5, 1)
	percent := models.DiscountRule{
		ID: "pct", Type: models.DiscountPercentage, Scope: models.ScopeSpecificCategory,
		CategoryID: "C", Value: dec("25"), Status: models.DiscountStatusActive,
	}
	other := models.DiscountRule{
		ID: "other", Type: models.DiscountPercentage, Scope: models.ScopeSpecificCategory,
		CategoryID: "Z", Value: dec("25"), Status: models.DiscountStatusActive,
	}
	c := newTestComposer([]models.OrderItem{
		paidItem("a", "p-a", "C", "10", 2),
		freeItem("f", "p-a", "C", "10", 1, bxgy),
	}, []models.DiscountRule{bxgy, percent, other}, false)

	require.NoError(t, c.ApplyDiscountRule("a", "pct"))
	_, a := c.Draft().FindItem("a")
	require.NotNil(t, a)
	assert.True(t, a.DiscountPercentage.Equal(dec("25")))
	assert.True(t, a.Total.Equal(dec("15")))

	assert.ErrorIs(t, c.ApplyDiscountRule("a", "missing"), ErrRuleNotFound)
	assert.ErrorIs(t, c.ApplyDiscountRule("a", "other"), ErrRuleNotApplicable)
	assert.ErrorIs(t, c.ApplyDiscountRule("a", "r1"), ErrRuleNotApplicable)
	assert.ErrorIs(t, c.ApplyDiscountRule("missing", "pct"), ErrItemNotFound)
}

func TestLineEditsRejectFreeItems(t *testing.T) {
	rule := categoryRule("r1", "C", 1, 1)
	c := newTestComposer([]models.OrderItem{
		paidItem("a", "p-a", "C", "10", 1),
		freeItem("f", "p-a", "C", "10", 1, rule),
	}, []models.DiscountRule{rule}, true)

	assert.ErrorIs(t, c.SetPrice("f", dec("5")), ErrFreeItemPrice)
	assert.ErrorIs(t, c.SetItemDiscount("f", dec("1"), decimal.Zero), ErrFreeItemPrice)
	assert.ErrorIs(t, c.SetItemTax("f", dec("1")), ErrFreeItemPrice)
	assert.ErrorIs(t, c.SetPrice("a", dec("-1")), ErrInvalidAmount)
	assert.ErrorIs(t, c.SetQuantity("a", 0, true), ErrInvalidQuantity)
	assert.ErrorIs(t, c.SetQuantity("missing", 1, true), ErrItemNotFound)
	assert.ErrorIs(t, c.SetItemDiscount("a", decimal.Zero, dec("101")), ErrInvalidPercentage)
}

func TestLineEdits(t *testing.T) {
	c := newTestComposer([]models.OrderItem{paidItem("a", "p-a", "C", "10", 2)}, nil, true)

	require.NoError(t, c.SetPrice("a", dec("12.50")))
	require.NoError(t, c.SetItemDiscount("a", dec("100"), decimal.Zero))
	_, a := c.Draft().FindItem("a")
	assert.True(t, a.Discount.Equal(dec("25")), "absolute discount is capped at the line value")
	assert.True(t, a.Total.IsZero())

	require.NoError(t, c.SetItemDiscount("a", decimal.Zero, dec("10")))
	require.NoError(t, c.SetItemTax("a", dec("1.25")))
	_, a = c.Draft().FindItem("a")
	assert.True(t, a.Discount.Equal(dec("2.5")))
	assert.True(t, a.Total.Equal(dec("23.75")))
}

func TestShippingDefaults(t *testing.T) {
	settings := models.ShippingSettings{DefaultCost: dec("5"), FreeShippingThreshold: dec("100")}

	assert.True(t, DefaultShipping(models.DeliveryPickup, dec("10"), settings).IsZero())
	assert.True(t, DefaultShipping(models.DeliveryShipping, dec("99.99"), settings).Equal(dec("5")))
	assert.True(t, DefaultShipping(models.DeliveryShipping, dec("100"), settings).IsZero())
	assert.True(t, DefaultShipping(models.DeliveryShipping, dec("1000"), models.ShippingSettings{DefaultCost: dec("5")}).Equal(dec("5")))

	c := New(&models.OrderDraft{DeliveryMethod: models.DeliveryShipping}, nil, settings, testOptions(true))
	_, err := c.AddItem(FromProduct(product("p-a", "C", "10"), nil), 1, StockAsk)
	require.NoError(t, err)
	assert.True(t, c.Draft().ShippingCost.Equal(dec("5")))

	require.NoError(t, c.SetShippingCost(dec("12")))
	_, err = c.AddItem(FromProduct(product("p-a", "C", "10"), nil), 20, StockAsk)
	require.NoError(t, err)
	assert.True(t, c.Draft().ShippingCost.Equal(dec("12")), "operator value is kept")
	assert.True(t, c.Draft().ShippingOverridden)

	c.ResetShipping()
	assert.True(t, c.Draft().ShippingCost.IsZero(), "over the free shipping threshold")

	c.SetDelivery(Delivery{Method: models.DeliveryPickup, PickupLocationID: "store-1"})
	assert.Equal(t, models.RefID("store-1"), c.Draft().PickupLocationID)
	assert.True(t, c.Draft().ShippingCost.IsZero())
}

func TestAddPendingServices(t *testing.T) {
	c := newTestComposer(nil, nil, true)
	ids := c.AddPendingServices([]models.PendingService{
		{ID: "ps-1", ServiceID: "s1", Name: "Alteration", Price: dec("15"), Quantity: 2},
		{ID: "ps-2", ServiceID: "s2", Name: "Pressing", Price: dec("4")},
	})
	require.Len(t, ids, 2)
	items := c.Draft().Items
	require.Len(t, items, 2)
	assert.Equal(t, models.RefID("s1"), items[0].ServiceID)
	assert.True(t, items[0].Total.Equal(dec("30")))
	assert.Equal(t, 1, items[1].Quantity)
}

func TestRefreshAppliesNewRules(t *testing.T) {
	c := newTestComposer([]models.OrderItem{paidItem("a", "p-a", "C", "10", 6)}, nil, true)
	assert.Empty(t, c.Allocations())

	changed := c.Refresh([]models.DiscountRule{categoryRule("r1", "C", 3, 1)}, models.ShippingSettings{})
	assert.True(t, changed)
	assert.Equal(t, 2, freeQuantity(c.Draft().Items))

	changed = c.Refresh(nil, models.ShippingSettings{})
	assert.True(t, changed)
	assert.Zero(t, freeQuantity(c.Draft().Items), "free lines of a withdrawn rule are dropped")
}

func TestSyncDropsFreeLinesOfExpiredRule(t *testing.T) {
	rule := categoryRule("r1", "C", 5, 1)
	draft := &models.OrderDraft{Items: []models.OrderItem{paidItem("a", "p-a", "C", "10", 10)}}

	c := New(draft, []models.DiscountRule{rule}, models.ShippingSettings{}, testOptions(true))
	require.True(t, c.Sync())
	require.Equal(t, 2, freeQuantity(draft.Items))
	assert.False(t, c.Sync(), "a settled draft needs no save")

	rule.Status = "expired"
	c = New(draft, []models.DiscountRule{rule}, models.ShippingSettings{}, testOptions(true))
	assert.Empty(t, c.Allocations())
	require.True(t, c.Sync())
	assert.Zero(t, freeQuantity(draft.Items))
	require.Len(t, draft.Items, 1)
	assert.Empty(t, draft.Items[0].AppliedDiscountID)

	payload := BuildPayload(draft, c.Totals())
	require.Len(t, payload.Items, 1)
	assert.False(t, payload.Items[0].IsFreeItem)
}
