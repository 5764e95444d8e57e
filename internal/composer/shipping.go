package composer

import (
	"github.com/shopspring/decimal"

	"order_composer/internal/models"
)

// DefaultShipping is the shipping cost used until the operator types one.
func DefaultShipping(method models.DeliveryMethod, subtotal decimal.Decimal, settings models.ShippingSettings) decimal.Decimal {
	if method == models.DeliveryPickup {
		return decimal.Zero
	}
	threshold := settings.FreeShippingThreshold
	if threshold.IsPositive() && subtotal.GreaterThanOrEqual(threshold) {
		return decimal.Zero
	}
	return settings.DefaultCost
}
