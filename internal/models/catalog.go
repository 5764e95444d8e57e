package models

import (
	"github.com/shopspring/decimal"
)

type Product struct {
	ID             RefID           `json:"id"`
	Name           string          `json:"name"`
	SKU            string          `json:"sku,omitempty"`
	CategoryID     RefID           `json:"categoryId,omitempty"`
	Price          decimal.Decimal `json:"price"`
	WholesalePrice decimal.Decimal `json:"wholesalePrice"`
	LandingCost    decimal.Decimal `json:"landingCost"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	Stock          int             `json:"stock"`
	TrackStock     bool            `json:"trackStock"`
	HasVariants    bool            `json:"hasVariants"`
}

type ProductVariant struct {
	ID             RefID           `json:"id"`
	ProductID      RefID           `json:"productId"`
	Name           string          `json:"name"`
	SKU            string          `json:"sku,omitempty"`
	Price          decimal.Decimal `json:"price"`
	WholesalePrice decimal.Decimal `json:"wholesalePrice"`
	LandingCost    decimal.Decimal `json:"landingCost"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	Stock          int             `json:"stock"`
	TrackStock     bool            `json:"trackStock"`
}

type Service struct {
	ID    RefID           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Bundle struct {
	ID         RefID           `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	ImageURL   string          `json:"imageUrl,omitempty"`
	Stock      int             `json:"stock"`
	TrackStock bool            `json:"trackStock"`
}

// CustomerPrice is a negotiated unit price for one customer.
type CustomerPrice struct {
	ProductID RefID           `json:"productId"`
	VariantID RefID           `json:"variantId,omitempty"`
	Price     decimal.Decimal `json:"price"`
}

type PendingService struct {
	ID        RefID           `json:"id"`
	ServiceID RefID           `json:"serviceId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type PickupLocation struct {
	ID      RefID  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type ShippingSettings struct {
	Currency              string           `json:"currency,omitempty"`
	DefaultCost           decimal.Decimal  `json:"defaultCost"`
	FreeShippingThreshold decimal.Decimal  `json:"freeShippingThreshold"`
	PickupLocations       []PickupLocation `json:"pickupLocations,omitempty"`
}
