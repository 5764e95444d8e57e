package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixed       DiscountType = "fixed"
	DiscountFixedAmount DiscountType = "fixed_amount"
	DiscountBuyXGetY    DiscountType = "buy_x_get_y"
)

type DiscountScope string

const (
	ScopeSpecificProduct  DiscountScope = "specific_product"
	ScopeSelectedProducts DiscountScope = "selected_products"
	ScopeSpecificCategory DiscountScope = "specific_category"
	ScopeCategory         DiscountScope = "category"
	ScopeAllProducts      DiscountScope = "all_products"
)

const DiscountStatusActive = "active"

type DiscountRule struct {
	ID          RefID           `json:"id"`
	Name        string          `json:"name"`
	Type        DiscountType    `json:"type"`
	Scope       DiscountScope   `json:"scope"`
	Value       decimal.Decimal `json:"value"`
	ProductID   RefID           `json:"productId,omitempty"`
	ProductIDs  []RefID         `json:"productIds,omitempty"`
	CategoryID  RefID           `json:"categoryId,omitempty"`
	BuyQuantity int             `json:"buyQuantity"`
	GetQuantity int             `json:"getQuantity"`
	StartDate   *Date           `json:"startDate,omitempty"`
	EndDate     *Date           `json:"endDate,omitempty"`
	Status      string          `json:"status"`
}

func (r DiscountRule) IsFixed() bool {
	return r.Type == DiscountFixed || r.Type == DiscountFixedAmount
}

// ActiveOn reports whether the rule is active and the UTC day of now falls
// inside [StartDate, EndDate]. A missing bound is open on that side.
func (r DiscountRule) ActiveOn(now time.Time) bool {
	if r.Status != DiscountStatusActive {
		return false
	}
	today := UTCDay(now)
	if r.StartDate != nil && !r.StartDate.IsZero() && today.Before(UTCDay(r.StartDate.Time)) {
		return false
	}
	if r.EndDate != nil && !r.EndDate.IsZero() && today.After(UTCDay(r.EndDate.Time)) {
		return false
	}
	return true
}

// AppliesTo matches an item against the rule scope.
func (r DiscountRule) AppliesTo(item OrderItem) bool {
	switch r.Scope {
	case ScopeAllProducts:
		return !item.ProductID.IsZero()
	case ScopeSpecificProduct:
		return !r.ProductID.IsZero() && item.ProductID == r.ProductID
	case ScopeSelectedProducts:
		for _, id := range r.ProductIDs {
			if id == item.ProductID {
				return true
			}
		}
		return !r.ProductID.IsZero() && item.ProductID == r.ProductID
	case ScopeSpecificCategory, ScopeCategory:
		return !r.CategoryID.IsZero() && item.CategoryID.String() == r.CategoryID.String()
	}
	return false
}

func (r DiscountRule) Label() string {
	if r.Name != "" {
		return r.Name
	}
	switch r.Type {
	case DiscountBuyXGetY:
		return fmt.Sprintf("Buy %d Get %d", r.BuyQuantity, r.GetQuantity)
	case DiscountPercentage:
		return r.Value.String() + "% off"
	}
	return r.Value.StringFixed(2) + " off"
}

// BuyXGetYAllocation is a derived, never persisted view of one Buy-X-Get-Y
// rule against the current order items.
type BuyXGetYAllocation struct {
	DiscountID         RefID         `json:"discountId"`
	DiscountName       string        `json:"discountName"`
	Scope              DiscountScope `json:"scope"`
	CategoryID         RefID         `json:"categoryId,omitempty"`
	ProductID          RefID         `json:"productId,omitempty"`
	IsProductScope     bool          `json:"isProductScope"`
	BuyQty             int           `json:"buyQty"`
	GetQty             int           `json:"getQty"`
	TotalPaidItems     int           `json:"totalPaidItems"`
	FreeItemsEarned    int           `json:"freeItemsEarned"`
	FreeItemsAssigned  int           `json:"freeItemsAssigned"`
	RemainingFreeSlots int           `json:"remainingFreeSlots"`
}

func (a BuyXGetYAllocation) Matches(item OrderItem) bool {
	if a.IsProductScope {
		return !a.ProductID.IsZero() && item.ProductID == a.ProductID
	}
	return !a.CategoryID.IsZero() && item.CategoryID.String() == a.CategoryID.String()
}

// Holds reports whether item is a free line issued under this allocation.
func (a BuyXGetYAllocation) Holds(item OrderItem) bool {
	return item.IsFreeItem && item.AppliedDiscountID == a.DiscountID
}
