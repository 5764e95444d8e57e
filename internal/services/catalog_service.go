package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"order_composer/internal/composer"
	"order_composer/internal/models"
	"order_composer/internal/redis"
)

var ErrCatalogEntryNotFound = errors.New("catalog entry not found")

const (
	cacheKeyProducts  = "products"
	cacheKeyServices  = "services"
	cacheKeyBundles   = "bundles"
	cacheKeyDiscounts = "discounts"
	cacheKeyShipping  = "shipping-settings"
)

// LineRef points at the catalog entry a new line is built from.
type LineRef struct {
	ProductID models.RefID `json:"productId"`
	VariantID models.RefID `json:"variantId"`
	ServiceID models.RefID `json:"serviceId"`
	BundleID  models.RefID `json:"bundleId"`
}

type CatalogService interface {
	Products(ctx context.Context) ([]models.Product, error)
	Variants(ctx context.Context, productID models.RefID) ([]models.ProductVariant, error)
	Services(ctx context.Context) ([]models.Service, error)
	Bundles(ctx context.Context) ([]models.Bundle, error)
	Discounts(ctx context.Context) ([]models.DiscountRule, error)
	ShippingSettings(ctx context.Context) (models.ShippingSettings, error)
	Resolve(ctx context.Context, ref LineRef) (composer.LineSource, error)
	Snapshot(ctx context.Context, items []models.OrderItem) (composer.Catalog, error)
	Invalidate(ctx context.Context) error
}

type catalogService struct {
	backend Backend
	cache   *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	logger  logrus.FieldLogger
}

func NewCatalogService(backend Backend, cache *redis.Client, ttl time.Duration, logger logrus.FieldLogger) CatalogService {
	return &catalogService{backend: backend, cache: cache, ttl: ttl, logger: logger}
}

// cached serves key from redis, falling back to fetch. Concurrent misses for
// the same key share one backend call.
func cached[T any](ctx context.Context, s *catalogService, key string, fetch func(context.Context) (T, error)) (T, error) {
	var out T
	err := s.cache.GetCatalog(ctx, key, &out)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, redis.ErrCacheMiss) {
		s.logger.WithError(err).WithField("key", key).Warn("catalog cache read failed")
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetCatalog(ctx, key, fetched, s.ttl); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("catalog cache write failed")
		}
		return fetched, nil
	})
	if err != nil {
		return out, err
	}
	return v.(T), nil
}

func (s *catalogService) Products(ctx context.Context) ([]models.Product, error) {
	return cached(ctx, s, cacheKeyProducts, s.backend.Products)
}

func (s *catalogService) Variants(ctx context.Context, productID models.RefID) ([]models.ProductVariant, error) {
	return cached(ctx, s, "variants:"+productID.String(), func(ctx context.Context) ([]models.ProductVariant, error) {
		return s.backend.Variants(ctx, productID)
	})
}

func (s *catalogService) Services(ctx context.Context) ([]models.Service, error) {
	return cached(ctx, s, cacheKeyServices, s.backend.Services)
}

func (s *catalogService) Bundles(ctx context.Context) ([]models.Bundle, error) {
	return cached(ctx, s, cacheKeyBundles, s.backend.Bundles)
}

func (s *catalogService) Discounts(ctx context.Context) ([]models.DiscountRule, error) {
	return cached(ctx, s, cacheKeyDiscounts, s.backend.Discounts)
}

func (s *catalogService) ShippingSettings(ctx context.Context) (models.ShippingSettings, error) {
	return cached(ctx, s, cacheKeyShipping, func(ctx context.Context) (models.ShippingSettings, error) {
		settings, err := s.backend.ShippingSettings(ctx)
		if err != nil {
			return models.ShippingSettings{}, err
		}
		return *settings, nil
	})
}

func (s *catalogService) Invalidate(ctx context.Context) error {
	return s.cache.InvalidateCatalog(ctx, cacheKeyProducts, cacheKeyServices, cacheKeyBundles, cacheKeyDiscounts, cacheKeyShipping)
}

func (s *catalogService) Resolve(ctx context.Context, ref LineRef) (composer.LineSource, error) {
	switch {
	case !ref.ProductID.IsZero():
		products, err := s.Products(ctx)
		if err != nil {
			return composer.LineSource{}, fmt.Errorf("failed to load products: %w", err)
		}
		for _, p := range products {
			if p.ID != ref.ProductID {
				continue
			}
			if ref.VariantID.IsZero() {
				return composer.FromProduct(p, nil), nil
			}
			variants, err := s.Variants(ctx, p.ID)
			if err != nil {
				return composer.LineSource{}, fmt.Errorf("failed to load variants: %w", err)
			}
			for i := range variants {
				if variants[i].ID == ref.VariantID {
					return composer.FromProduct(p, &variants[i]), nil
				}
			}
			break
		}
	case !ref.ServiceID.IsZero():
		services, err := s.Services(ctx)
		if err != nil {
			return composer.LineSource{}, fmt.Errorf("failed to load services: %w", err)
		}
		for _, svc := range services {
			if svc.ID == ref.ServiceID {
				return composer.FromService(svc), nil
			}
		}
	case !ref.BundleID.IsZero():
		bundles, err := s.Bundles(ctx)
		if err != nil {
			return composer.LineSource{}, fmt.Errorf("failed to load bundles: %w", err)
		}
		for _, b := range bundles {
			if b.ID == ref.BundleID {
				return composer.FromBundle(b), nil
			}
		}
	default:
		return composer.LineSource{}, composer.ErrEmptyLine
	}
	return composer.LineSource{}, ErrCatalogEntryNotFound
}

// Snapshot loads the catalog entries behind items so lines can be repriced
// without further calls.
func (s *catalogService) Snapshot(ctx context.Context, items []models.OrderItem) (composer.Catalog, error) {
	snap := &catalogSnapshot{
		products: map[models.RefID]models.Product{},
		variants: map[[2]models.RefID]models.ProductVariant{},
		services: map[models.RefID]models.Service{},
		bundles:  map[models.RefID]models.Bundle{},
	}
	var needProducts, needServices, needBundles bool
	variantProducts := map[models.RefID]bool{}
	for _, item := range items {
		switch {
		case !item.ProductID.IsZero():
			needProducts = true
			if !item.VariantID.IsZero() {
				variantProducts[item.ProductID] = true
			}
		case !item.ServiceID.IsZero():
			needServices = true
		case !item.BundleID.IsZero():
			needBundles = true
		}
	}

	if needProducts {
		products, err := s.Products(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load products: %w", err)
		}
		for _, p := range products {
			snap.products[p.ID] = p
		}
	}
	for productID := range variantProducts {
		variants, err := s.Variants(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("failed to load variants: %w", err)
		}
		for _, v := range variants {
			snap.variants[[2]models.RefID{productID, v.ID}] = v
		}
	}
	if needServices {
		services, err := s.Services(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load services: %w", err)
		}
		for _, svc := range services {
			snap.services[svc.ID] = svc
		}
	}
	if needBundles {
		bundles, err := s.Bundles(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load bundles: %w", err)
		}
		for _, b := range bundles {
			snap.bundles[b.ID] = b
		}
	}
	return snap, nil
}

type catalogSnapshot struct {
	products map[models.RefID]models.Product
	variants map[[2]models.RefID]models.ProductVariant
	services map[models.RefID]models.Service
	bundles  map[models.RefID]models.Bundle
}

func (c *catalogSnapshot) Source(item models.OrderItem) (composer.LineSource, bool) {
	switch {
	case !item.ProductID.IsZero():
		p, ok := c.products[item.ProductID]
		if !ok {
			return composer.LineSource{}, false
		}
		if item.VariantID.IsZero() {
			return composer.FromProduct(p, nil), true
		}
		v, ok := c.variants[[2]models.RefID{item.ProductID, item.VariantID}]
		if !ok {
			return composer.LineSource{}, false
		}
		return composer.FromProduct(p, &v), true
	case !item.ServiceID.IsZero():
		svc, ok := c.services[item.ServiceID]
		return composer.FromService(svc), ok
	case !item.BundleID.IsZero():
		b, ok := c.bundles[item.BundleID]
		return composer.FromBundle(b), ok
	}
	return composer.LineSource{}, false
}
