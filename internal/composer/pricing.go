package composer

import (
	"time"

	"github.com/shopspring/decimal"

	"order_composer/internal/models"
)

// LineSource is the catalog entry a line is created from.
type LineSource struct {
	ProductID      models.RefID
	VariantID      models.RefID
	ServiceID      models.RefID
	BundleID       models.RefID
	CategoryID     models.RefID
	Name           string
	ImageURL       string
	Price          decimal.Decimal
	WholesalePrice decimal.Decimal
	LandingCost    decimal.Decimal
	Stock          int
	TrackStock     bool
}

func FromProduct(p models.Product, v *models.ProductVariant) LineSource {
	src := LineSource{
		ProductID:      p.ID,
		CategoryID:     p.CategoryID,
		Name:           p.Name,
		ImageURL:       p.ImageURL,
		Price:          p.Price,
		WholesalePrice: p.WholesalePrice,
		LandingCost:    p.LandingCost,
		Stock:          p.Stock,
		TrackStock:     p.TrackStock,
	}
	if v == nil {
		return src
	}
	src.VariantID = v.ID
	if v.Name != "" {
		src.Name = p.Name + " - " + v.Name
	}
	if v.ImageURL != "" {
		src.ImageURL = v.ImageURL
	}
	src.Price = v.Price
	src.WholesalePrice = v.WholesalePrice
	if !v.LandingCost.IsZero() {
		src.LandingCost = v.LandingCost
	}
	src.Stock = v.Stock
	src.TrackStock = v.TrackStock
	return src
}

func FromService(s models.Service) LineSource {
	return LineSource{ServiceID: s.ID, Name: s.Name, Price: s.Price}
}

func FromBundle(b models.Bundle) LineSource {
	return LineSource{
		BundleID:   b.ID,
		Name:       b.Name,
		ImageURL:   b.ImageURL,
		Price:      b.Price,
		Stock:      b.Stock,
		TrackStock: b.TrackStock,
	}
}

func (s LineSource) empty() bool {
	return s.ProductID.IsZero() && s.ServiceID.IsZero() && s.BundleID.IsZero()
}

func (s LineSource) reference() models.OrderItem {
	return models.OrderItem{ProductID: s.ProductID, VariantID: s.VariantID, ServiceID: s.ServiceID, BundleID: s.BundleID}
}

// Catalog resolves the catalog entry behind an existing line, used to reprice
// lines when the customer changes.
type Catalog interface {
	Source(item models.OrderItem) (LineSource, bool)
}

// UnitPrice picks the price for a customer: a negotiated price first, then the
// wholesale price for wholesale customers, then retail.
func UnitPrice(src LineSource, tier models.PriceTier, prices []models.CustomerPrice) decimal.Decimal {
	if !src.ProductID.IsZero() {
		var productLevel *models.CustomerPrice
		for i := range prices {
			cp := &prices[i]
			if cp.ProductID != src.ProductID {
				continue
			}
			if cp.VariantID == src.VariantID {
				return cp.Price
			}
			if cp.VariantID.IsZero() && productLevel == nil {
				productLevel = cp
			}
		}
		if productLevel != nil {
			return productLevel.Price
		}
	}
	if tier == models.PriceTierWholesale && src.WholesalePrice.IsPositive() {
		return src.WholesalePrice
	}
	return src.Price
}

func ruleDiscount(rule models.DiscountRule, item models.OrderItem) decimal.Decimal {
	gross := item.LineAmount()
	switch {
	case rule.Type == models.DiscountPercentage:
		pct := decimal.Min(rule.Value, hundred)
		return gross.Mul(pct).Div(hundred).Round(2)
	case rule.IsFixed():
		return decimal.Min(rule.Value.Mul(decimal.NewFromInt(int64(item.Quantity))), gross).Round(2)
	}
	return decimal.Zero
}

// BestRule returns the active percentage or fixed rule that gives item the
// largest discount today.
func BestRule(rules []models.DiscountRule, item models.OrderItem, now time.Time) (models.DiscountRule, bool) {
	var best models.DiscountRule
	bestAmount := decimal.Zero
	found := false
	for _, r := range rules {
		if r.Type != models.DiscountPercentage && !r.IsFixed() {
			continue
		}
		if !r.ActiveOn(now) || !r.AppliesTo(item) || !r.Value.IsPositive() {
			continue
		}
		amount := ruleDiscount(r, item)
		if !found || amount.GreaterThan(bestAmount) {
			best, bestAmount, found = r, amount, true
		}
	}
	return best, found
}

func applyRule(item *models.OrderItem, rule models.DiscountRule) {
	if rule.Type == models.DiscountPercentage {
		item.DiscountPercentage = decimal.Min(rule.Value, hundred)
	} else {
		item.DiscountPercentage = decimal.Zero
		item.Discount = ruleDiscount(rule, *item)
	}
	item.AppliedDiscountID = rule.ID
	item.AppliedDiscountLabel = rule.Label()
	item.AppliedDiscountType = rule.Type
	item.AppliedDiscountScope = rule.Scope
	item.Recalculate()
}
