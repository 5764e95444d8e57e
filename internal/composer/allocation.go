package composer

import (
	"sort"
	"time"

	"order_composer/internal/models"
)

// OverlapPolicy decides how paid units are shared between Buy-X-Get-Y rules
// whose scopes match the same item.
type OverlapPolicy string

const (
	// OverlapExclusive counts every paid unit toward one rule only: product
	// scoped rules first, then by rule id.
	OverlapExclusive OverlapPolicy = "exclusive"
	// OverlapIndependent evaluates each rule on its own, so one unit may earn
	// free items under several rules.
	OverlapIndependent OverlapPolicy = "independent"
)

func ParseOverlapPolicy(s string) OverlapPolicy {
	if OverlapPolicy(s) == OverlapIndependent {
		return OverlapIndependent
	}
	return OverlapExclusive
}

// EligibleRules keeps the active Buy-X-Get-Y rules that can trigger today.
func EligibleRules(rules []models.DiscountRule, now time.Time) []models.DiscountRule {
	out := make([]models.DiscountRule, 0, len(rules))
	for _, r := range rules {
		if r.Type != models.DiscountBuyXGetY || r.ID.IsZero() {
			continue
		}
		if r.BuyQuantity <= 0 || r.GetQuantity <= 0 {
			continue
		}
		switch r.Scope {
		case models.ScopeSpecificProduct:
			if r.ProductID.IsZero() {
				continue
			}
		case models.ScopeSpecificCategory, models.ScopeCategory:
			if r.CategoryID.IsZero() {
				continue
			}
		default:
			continue
		}
		if !r.ActiveOn(now) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func newAllocation(r models.DiscountRule) models.BuyXGetYAllocation {
	a := models.BuyXGetYAllocation{
		DiscountID:     r.ID,
		DiscountName:   r.Label(),
		Scope:          r.Scope,
		IsProductScope: r.Scope == models.ScopeSpecificProduct,
		BuyQty:         r.BuyQuantity,
		GetQty:         r.GetQuantity,
	}
	if a.IsProductScope {
		a.ProductID = r.ProductID
	} else {
		a.CategoryID = r.CategoryID
	}
	return a
}

func orderRules(rules []models.DiscountRule) []models.DiscountRule {
	ordered := make([]models.DiscountRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi := ordered[i].Scope == models.ScopeSpecificProduct
		pj := ordered[j].Scope == models.ScopeSpecificProduct
		if pi != pj {
			return pi
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})
	return ordered
}

// ComputeAllocations projects every rule against the items. The result has
// one allocation per rule, including rules that earn nothing yet.
func ComputeAllocations(items []models.OrderItem, rules []models.DiscountRule, policy OverlapPolicy) []models.BuyXGetYAllocation {
	if policy != OverlapIndependent {
		rules = orderRules(rules)
	}
	allocs := make([]models.BuyXGetYAllocation, len(rules))
	for i, r := range rules {
		allocs[i] = newAllocation(r)
	}

	for _, item := range items {
		if item.IsFreeItem {
			for i := range allocs {
				if allocs[i].Holds(item) {
					allocs[i].FreeItemsAssigned += item.Quantity
				}
			}
			continue
		}
		for i := range allocs {
			if !allocs[i].Matches(item) {
				continue
			}
			allocs[i].TotalPaidItems += item.Quantity
			if policy != OverlapIndependent {
				break
			}
		}
	}

	for i := range allocs {
		a := &allocs[i]
		if a.BuyQty > 0 {
			a.FreeItemsEarned = (a.TotalPaidItems / a.BuyQty) * a.GetQty
		}
		a.RemainingFreeSlots = a.FreeItemsEarned - a.FreeItemsAssigned
		if a.RemainingFreeSlots < 0 {
			a.RemainingFreeSlots = 0
		}
	}
	return allocs
}

func findAllocation(allocs []models.BuyXGetYAllocation, id models.RefID) (models.BuyXGetYAllocation, bool) {
	for _, a := range allocs {
		if a.DiscountID == id {
			return a, true
		}
	}
	return models.BuyXGetYAllocation{}, false
}

// ApplyLabels stamps paid items that earn a free item with the rule metadata
// and clears stale Buy-X-Get-Y stamps. Items carrying another discount are
// left alone. It returns a new slice and whether anything changed.
func ApplyLabels(items []models.OrderItem, allocs []models.BuyXGetYAllocation) ([]models.OrderItem, bool) {
	out := models.CloneItems(items)
	changed := false
	for i := range out {
		item := &out[i]
		if item.IsFreeItem {
			continue
		}
		if item.AppliedDiscountType != "" && item.AppliedDiscountType != models.DiscountBuyXGetY {
			continue
		}

		var match *models.BuyXGetYAllocation
		for j := range allocs {
			if allocs[j].FreeItemsEarned > 0 && allocs[j].Matches(*item) {
				match = &allocs[j]
				break
			}
		}

		if match != nil && item.Quantity >= match.BuyQty {
			if item.AppliedDiscountID != match.DiscountID ||
				item.AppliedDiscountLabel != match.DiscountName ||
				item.AppliedDiscountType != models.DiscountBuyXGetY ||
				item.AppliedDiscountScope != match.Scope {
				item.AppliedDiscountID = match.DiscountID
				item.AppliedDiscountLabel = match.DiscountName
				item.AppliedDiscountType = models.DiscountBuyXGetY
				item.AppliedDiscountScope = match.Scope
				changed = true
			}
			continue
		}
		if item.AppliedDiscountType == models.DiscountBuyXGetY {
			item.ClearAppliedDiscount()
			changed = true
		}
	}
	return out, changed
}
