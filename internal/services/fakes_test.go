package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"order_composer/internal/composer"
	"order_composer/internal/database"
	"order_composer/internal/models"
	"order_composer/internal/redis"
	"order_composer/internal/repository"
	"order_composer/pkg/backend"
)

var testNow = time.Date(2025, time.March, 15, 14, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeBackend struct {
	mu sync.Mutex

	products  []models.Product
	variants  map[models.RefID][]models.ProductVariant
	services  []models.Service
	bundles   []models.Bundle
	discounts []models.DiscountRule
	shipping  models.ShippingSettings
	customers []models.Customer
	prices    map[models.RefID][]models.CustomerPrice
	pending   map[models.RefID][]models.PendingService
	orders    map[models.RefID]*models.Order

	createOrderErr error

	calls        map[string]int
	orderKeys    []string
	customerKeys []string
	addressKeys  []string
	payloads     []composer.OrderPayload
	nextID       int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		variants: map[models.RefID][]models.ProductVariant{},
		prices:   map[models.RefID][]models.CustomerPrice{},
		pending:  map[models.RefID][]models.PendingService{},
		orders:   map[models.RefID]*models.Order{},
		calls:    map[string]int{},
	}
}

func (f *fakeBackend) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeBackend) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) notFound(method, path string) error {
	return &backend.APIError{StatusCode: http.StatusNotFound, Method: method, Path: path, Message: "not found"}
}

func (f *fakeBackend) ListCustomers(ctx context.Context, search string) ([]models.Customer, error) {
	f.count("ListCustomers")
	return f.customers, nil
}

func (f *fakeBackend) GetCustomer(ctx context.Context, id models.RefID) (*models.Customer, error) {
	f.count("GetCustomer")
	for _, c := range f.customers {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, f.notFound(http.MethodGet, "/api/customers/"+id.String())
}

func (f *fakeBackend) ShippingAddresses(ctx context.Context, customerID models.RefID) ([]models.ShippingAddress, error) {
	f.count("ShippingAddresses")
	return nil, nil
}

func (f *fakeBackend) CustomerPrices(ctx context.Context, customerID models.RefID) ([]models.CustomerPrice, error) {
	f.count("CustomerPrices")
	return f.prices[customerID], nil
}

func (f *fakeBackend) PendingServices(ctx context.Context, customerID models.RefID) ([]models.PendingService, error) {
	f.count("PendingServices")
	return f.pending[customerID], nil
}

func (f *fakeBackend) CreateCustomer(ctx context.Context, customer models.NewCustomer, idempotencyKey string) (*models.Customer, error) {
	f.count("CreateCustomer")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.customerKeys = append(f.customerKeys, idempotencyKey)
	created := models.Customer{ID: models.RefID(fmt.Sprintf("cust-%d", f.nextID)), Name: customer.Name, Phone: customer.Phone}
	f.customers = append(f.customers, created)
	return &created, nil
}

func (f *fakeBackend) CreateShippingAddress(ctx context.Context, customerID models.RefID, address models.ShippingAddress, idempotencyKey string) (*models.ShippingAddress, error) {
	f.count("CreateShippingAddress")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.addressKeys = append(f.addressKeys, idempotencyKey)
	address.ID = models.RefID(fmt.Sprintf("addr-%d", f.nextID))
	address.CustomerID = customerID
	return &address, nil
}

func (f *fakeBackend) PatchCustomer(ctx context.Context, id models.RefID, fields map[string]interface{}) (*models.Customer, error) {
	f.count("PatchCustomer")
	return f.GetCustomer(ctx, id)
}

func (f *fakeBackend) Products(ctx context.Context) ([]models.Product, error) {
	f.count("Products")
	return f.products, nil
}

func (f *fakeBackend) Variants(ctx context.Context, productID models.RefID) ([]models.ProductVariant, error) {
	f.count("Variants")
	return f.variants[productID], nil
}

func (f *fakeBackend) Services(ctx context.Context) ([]models.Service, error) {
	f.count("Services")
	return f.services, nil
}

func (f *fakeBackend) Bundles(ctx context.Context) ([]models.Bundle, error) {
	f.count("Bundles")
	return f.bundles, nil
}

func (f *fakeBackend) Discounts(ctx context.Context) ([]models.DiscountRule, error) {
	f.count("Discounts")
	return f.discounts, nil
}

func (f *fakeBackend) ShippingSettings(ctx context.Context) (*models.ShippingSettings, error) {
	f.count("ShippingSettings")
	s := f.shipping
	return &s, nil
}

func (f *fakeBackend) Orders(ctx context.Context) ([]models.Order, error) {
	f.count("Orders")
	var out []models.Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeBackend) Order(ctx context.Context, id models.RefID) (*models.Order, error) {
	f.count("Order")
	o, ok := f.orders[id]
	if !ok {
		return nil, f.notFound(http.MethodGet, "/api/orders/"+id.String())
	}
	return o, nil
}

func (f *fakeBackend) CreateOrder(ctx context.Context, payload interface{}, idempotencyKey string) (*models.Order, error) {
	f.count("CreateOrder")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderKeys = append(f.orderKeys, idempotencyKey)
	f.payloads = append(f.payloads, payload.(composer.OrderPayload))
	if f.createOrderErr != nil {
		return nil, f.createOrderErr
	}
	f.nextID++
	order := &models.Order{ID: models.RefID(fmt.Sprintf("ord-%d", f.nextID)), Status: "pending"}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeBackend) PatchOrder(ctx context.Context, id models.RefID, payload interface{}, idempotencyKey string) (*models.Order, error) {
	f.count("PatchOrder")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderKeys = append(f.orderKeys, idempotencyKey)
	f.payloads = append(f.payloads, payload.(composer.OrderPayload))
	o, ok := f.orders[id]
	if !ok {
		return nil, f.notFound(http.MethodPatch, "/api/orders/"+id.String())
	}
	return o, nil
}

func (f *fakeBackend) UploadDocument(ctx context.Context, fileName string, content io.Reader) (*backend.Document, error) {
	f.count("UploadDocument")
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return nil, err
	}
	return &backend.Document{ID: "doc-1", FileName: fileName}, nil
}

func (f *fakeBackend) FacebookProfile(ctx context.Context, profileURL string) (*backend.FacebookProfile, error) {
	f.count("FacebookProfile")
	return &backend.FacebookProfile{Name: "Profile"}, nil
}

func (f *fakeBackend) ParseAddress(ctx context.Context, text string) (*models.ShippingAddress, error) {
	f.count("ParseAddress")
	return &models.ShippingAddress{Line1: text, City: "Springfield"}, nil
}

func (f *fakeBackend) Geocode(ctx context.Context, address string) ([]backend.GeocodeResult, error) {
	f.count("Geocode")
	return nil, nil
}

func (f *fakeBackend) AutocompleteAddress(ctx context.Context, input string) ([]backend.AddressSuggestion, error) {
	f.count("AutocompleteAddress")
	return nil, nil
}

// testEnv wires the services over miniredis, in-memory sqlite and a fake backend.
type testEnv struct {
	backend     *fakeBackend
	store       *redis.Client
	mr          *miniredis.Miniredis
	settings    repository.SettingsRepository
	prefs       repository.PreferenceRepository
	submissions repository.SubmissionRepository
	catalog     CatalogService
	drafts      DraftService
	submit      SubmissionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := redis.NewClient(rdb)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	log := logrus.New()
	log.SetOutput(io.Discard)

	fb := newFakeBackend()
	fb.shipping = models.ShippingSettings{DefaultCost: dec("10"), FreeShippingThreshold: dec("100")}

	env := &testEnv{
		backend:     fb,
		store:       store,
		mr:          mr,
		settings:    repository.NewSettingsRepository(db),
		prefs:       repository.NewPreferenceRepository(db),
		submissions: repository.NewSubmissionRepository(db),
	}
	locks := NewDraftLocks()
	env.catalog = NewCatalogService(fb, store, time.Minute, log)

	ids := 0
	env.drafts = NewDraftService(store, env.catalog, fb, env.settings, env.prefs, locks, DraftConfig{
		TTL:             time.Hour,
		DefaultCurrency: "USD",
		Options: composer.Options{
			Overlap:          composer.OverlapExclusive,
			AutoAddFreeItems: true,
			Now:              func() time.Time { return testNow },
			NewID: func() string {
				ids++
				return fmt.Sprintf("line-%d", ids)
			},
		},
	}, log)
	env.submit = NewSubmissionService(store, fb, env.drafts, env.submissions, locks, 30*time.Second, time.Hour, log)
	return env
}

func shirt(id, category, price string, stock int) models.Product {
	return models.Product{
		ID:         models.RefID(id),
		Name:       "Shirt " + id,
		CategoryID: models.RefID(category),
		Price:      dec(price),
		Stock:      stock,
		TrackStock: stock > 0,
	}
}

func bxgyRule(id, category string, buy, get int) models.DiscountRule {
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
