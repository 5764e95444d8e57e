package composer

import (
	"order_composer/internal/models"
)

// CommitQuantity validates a pending free-line quantity against its
// allocation. Whatever does not fit stays in the order as paid quantity.
func (c *Composer) CommitQuantity(itemID string) error {
	idx, item, err := c.item(itemID)
	if err != nil {
		return err
	}
	if item.IsFreeItem && item.QuantityPending {
		c.splitFree(idx)
	} else {
		item.QuantityPending = false
	}
	c.settle()
	return nil
}

func (c *Composer) splitFree(idx int) {
	c.draft.Items[idx].QuantityPending = false
	item := c.draft.Items[idx]
	requested := item.Quantity

	maxFree := 0
	allocs := ComputeAllocations(c.draft.Items, EligibleRules(c.rules, c.now()), c.opts.Overlap)
	if a, ok := findAllocation(allocs, item.AppliedDiscountID); ok {
		others := a.FreeItemsAssigned - requested
		maxFree = max(0, a.FreeItemsEarned-others)
	}
	if requested <= maxFree {
		return
	}

	if maxFree > 0 {
		c.draft.Items[idx].Quantity = maxFree
		c.draft.Items[idx].Recalculate()
		c.routeToPaid(item, requested-maxFree)
		return
	}

	if p := c.findPaid(item); p >= 0 {
		c.draft.Items[p].Quantity += requested
		c.refreshLineDiscount(&c.draft.Items[p])
		c.draft.Items = append(c.draft.Items[:idx], c.draft.Items[idx+1:]...)
		return
	}
	converted := &c.draft.Items[idx]
	converted.IsFreeItem = false
	converted.Price = converted.OriginalPrice
	converted.ClearAppliedDiscount()
	converted.Recalculate()
}

// routeToPaid merges qty into the paid line for the same product and variant,
// or appends one priced at the free line's original price.
func (c *Composer) routeToPaid(free models.OrderItem, qty int) {
	if p := c.findPaid(free); p >= 0 {
		c.draft.Items[p].Quantity += qty
		c.refreshLineDiscount(&c.draft.Items[p])
		return
	}
	paid := models.OrderItem{
		ID:            c.newID(),
		ProductID:     free.ProductID,
		VariantID:     free.VariantID,
		CategoryID:    free.CategoryID,
		Name:          free.Name,
		ImageURL:      free.ImageURL,
		LandingCost:   free.LandingCost,
		Quantity:      qty,
		Price:         free.OriginalPrice,
		OriginalPrice: free.OriginalPrice,
	}
	paid.Recalculate()
	c.draft.Items = append(c.draft.Items, paid)
}
