package composer

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound       = errors.New("order item not found")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInvalidAmount      = errors.New("amount must not be negative")
	ErrInvalidPercentage  = errors.New("percentage must be between 0 and 100")
	ErrFreeItemPrice      = errors.New("free items are always priced at zero")
	ErrRuleNotApplicable  = errors.New("discount rule does not apply to this item")
	ErrRuleNotFound       = errors.New("discount rule not found")
	ErrEmptyLine          = errors.New("line must reference a product, service or bundle")
	ErrUnknownStockPolicy = errors.New("unknown stock policy")
)

// StockConflictError is returned by AddItem when the requested quantity is
// above tracked stock and no policy was chosen.
type StockConflictError struct {
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}
