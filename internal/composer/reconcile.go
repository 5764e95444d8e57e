package composer

import (
	"time"

	"github.com/google/uuid"

	"order_composer/internal/models"
)

type ReconcileOptions struct {
	// AutoAdd materializes earned but unassigned free quantity. Excess free
	// quantity is always clawed back.
	AutoAdd bool
	// Overlap must match the policy the allocations were computed with.
	Overlap OverlapPolicy
	NewID   func() string
}

func (o ReconcileOptions) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func hasPending(items []models.OrderItem, a models.BuyXGetYAllocation) bool {
	for _, item := range items {
		if a.Holds(item) && item.QuantityPending {
			return true
		}
	}
	return false
}

// cheapestPaid returns the index of the lowest priced paid item counted
// toward allocs[k], the first one on ties, or -1. Under the exclusive policy an
// item already counted by an earlier allocation is not a candidate.
func cheapestPaid(items []models.OrderItem, allocs []models.BuyXGetYAllocation, k int, policy OverlapPolicy) int {
	a := allocs[k]
	best := -1
	for i, item := range items {
		if item.IsFreeItem || !a.Matches(item) {
			continue
		}
		if policy != OverlapIndependent && countedEarlier(item, allocs[:k]) {
			continue
		}
		if best < 0 || item.Price.LessThan(items[best].Price) {
			best = i
		}
	}
	return best
}

func countedEarlier(item models.OrderItem, earlier []models.BuyXGetYAllocation) bool {
	for _, a := range earlier {
		if a.Matches(item) {
			return true
		}
	}
	return false
}

func freeLineFrom(template models.OrderItem, a models.BuyXGetYAllocation, qty int, id string) models.OrderItem {
	original := template.Price
	if original.IsZero() {
		original = template.OriginalPrice
	}
	line := models.OrderItem{
		ID:                   id,
		ProductID:            template.ProductID,
		VariantID:            template.VariantID,
		CategoryID:           template.CategoryID,
		Name:                 template.Name,
		ImageURL:             template.ImageURL,
		LandingCost:          template.LandingCost,
		Quantity:             qty,
		OriginalPrice:        original,
		IsFreeItem:           true,
		AppliedDiscountID:    a.DiscountID,
		AppliedDiscountLabel: a.DiscountName,
		AppliedDiscountType:  models.DiscountBuyXGetY,
		AppliedDiscountScope: a.Scope,
	}
	line.Recalculate()
	return line
}

// Reconcile brings the free quantity held under each allocation in line with
// what it has earned. Allocations holding a pending quantity edit are skipped.
func Reconcile(items []models.OrderItem, allocs []models.BuyXGetYAllocation, opts ReconcileOptions) ([]models.OrderItem, bool) {
	out := models.CloneItems(items)
	changed := false

	for k, a := range allocs {
		if hasPending(out, a) {
			continue
		}
		current := 0
		for _, item := range out {
			if a.Holds(item) {
				current += item.Quantity
			}
		}

		switch {
		case current < a.FreeItemsEarned && opts.AutoAdd:
			t := cheapestPaid(out, allocs, k, opts.Overlap)
			if t < 0 {
				continue
			}
			delta := a.FreeItemsEarned - current
			template := out[t]
			grown := false
			for i := range out {
				if a.Holds(out[i]) && out[i].SameReference(template) {
					out[i].Quantity += delta
					out[i].Recalculate()
					grown = true
					break
				}
			}
			if !grown {
				out = append(out, freeLineFrom(template, a, delta, opts.newID()))
			}
			changed = true

		case current > a.FreeItemsEarned:
			excess := current - a.FreeItemsEarned
			for i := len(out) - 1; i >= 0 && excess > 0; i-- {
				if !a.Holds(out[i]) {
					continue
				}
				if out[i].Quantity > excess {
					out[i].Quantity -= excess
					out[i].Recalculate()
					excess = 0
				} else {
					excess -= out[i].Quantity
					out = append(out[:i], out[i+1:]...)
				}
			}
			changed = true
		}
	}

	// Free lines of a rule that is no longer eligible have nothing backing them.
	live := make(map[models.RefID]bool, len(allocs))
	for _, a := range allocs {
		live[a.DiscountID] = true
	}
	kept := out[:0]
	for _, item := range out {
		if item.IsFreeItem && item.AppliedDiscountType == models.DiscountBuyXGetY &&
			!item.QuantityPending && !live[item.AppliedDiscountID] {
			changed = true
			continue
		}
		kept = append(kept, item)
	}
	return kept, changed
}

// Derivation is the result of one pass of the allocation pipeline.
type Derivation struct {
	Items       []models.OrderItem
	Allocations []models.BuyXGetYAllocation
	Changed     bool
}

// Derive runs allocations, labels, reconciliation and a final allocation
// projection over items. The input slice is never modified.
func Derive(items []models.OrderItem, rules []models.DiscountRule, now time.Time, policy OverlapPolicy, opts ReconcileOptions) Derivation {
	eligible := EligibleRules(rules, now)

	allocs := ComputeAllocations(items, eligible, policy)
	opts.Overlap = policy
	labelled, _ := ApplyLabels(items, allocs)
	reconciled, _ := Reconcile(labelled, allocs, opts)
	final := ComputeAllocations(reconciled, eligible, policy)

	d := Derivation{Items: reconciled, Allocations: final}
	d.Changed = !models.ItemsEqual(items, reconciled)
	if !d.Changed {
		d.Items = items
	}
	return d
}
