package models

import (
	"github.com/shopspring/decimal"
)

type PriceTier string

const (
	PriceTierRetail    PriceTier = "retail"
	PriceTierWholesale PriceTier = "wholesale"
)

type Customer struct {
	ID          RefID           `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	FacebookURL string          `json:"facebookUrl,omitempty"`
	PriceTier   PriceTier       `json:"priceTier,omitempty"`
	StoreCredit decimal.Decimal `json:"storeCredit"`
}

// NewCustomer is inline customer data entered on the order form; it is only
// created on the backend when the order is submitted.
type NewCustomer struct {
	Name        string    `json:"name" binding:"required"`
	Phone       string    `json:"phone,omitempty" binding:"omitempty,min=6,max=32"`
	Email       string    `json:"email,omitempty" binding:"omitempty,email"`
	FacebookURL string    `json:"facebookUrl,omitempty" binding:"omitempty,url"`
	PriceTier   PriceTier `json:"priceTier,omitempty" binding:"omitempty,oneof=retail wholesale"`
	Temporary   bool      `json:"temporary,omitempty"`
}

type ShippingAddress struct {
	ID         RefID    `json:"id,omitempty"`
	CustomerID RefID    `json:"customerId,omitempty"`
	Label      string   `json:"label,omitempty"`
	Recipient  string   `json:"recipient,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Line1      string   `json:"line1" binding:"required"`
	Line2      string   `json:"line2,omitempty"`
	City       string   `json:"city" binding:"required"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Country    string   `json:"country,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}
