package services

import (
	"context"
	"io"

	"order_composer/internal/models"
	"order_composer/pkg/backend"
)

// Backend is the order-management API the composer reads from and submits to.
// *backend.Client satisfies it.
type Backend interface {
	ListCustomers(ctx context.Context, search string) ([]models.Customer, error)
	GetCustomer(ctx context.Context, id models.RefID) (*models.Customer, error)
	ShippingAddresses(ctx context.Context, customerID models.RefID) ([]models.ShippingAddress, error)
	CustomerPrices(ctx context.Context, customerID models.RefID) ([]models.CustomerPrice, error)
	PendingServices(ctx context.Context, customerID models.RefID) ([]models.PendingService, error)
	CreateCustomer(ctx context.Context, customer models.NewCustomer, idempotencyKey string) (*models.Customer, error)
	CreateShippingAddress(ctx context.Context, customerID models.RefID, address models.ShippingAddress, idempotencyKey string) (*models.ShippingAddress, error)
	PatchCustomer(ctx context.Context, id models.RefID, fields map[string]interface{}) (*models.Customer, error)

	Products(ctx context.Context) ([]models.Product, error)
	Variants(ctx context.Context, productID models.RefID) ([]models.ProductVariant, error)
	Services(ctx context.Context) ([]models.Service, error)
	Bundles(ctx context.Context) ([]models.Bundle, error)
	Discounts(ctx context.Context) ([]models.DiscountRule, error)
	ShippingSettings(ctx context.Context) (*models.ShippingSettings, error)

	Orders(ctx context.Context) ([]models.Order, error)
	Order(ctx context.Context, id models.RefID) (*models.Order, error)
	CreateOrder(ctx context.Context, payload interface{}, idempotencyKey string) (*models.Order, error)
	PatchOrder(ctx context.Context, id models.RefID, payload interface{}, idempotencyKey string) (*models.Order, error)
	UploadDocument(ctx context.Context, fileName string, content io.Reader) (*backend.Document, error)

	FacebookProfile(ctx context.Context, profileURL string) (*backend.FacebookProfile, error)
	ParseAddress(ctx context.Context, text string) (*models.ShippingAddress, error)
	Geocode(ctx context.Context, address string) ([]backend.GeocodeResult, error)
	AutocompleteAddress(ctx context.Context, input string) ([]backend.AddressSuggestion, error)
}

var _ Backend = (*backend.Client)(nil)
