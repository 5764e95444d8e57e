package composer

import (
	"strings"

	"order_composer/internal/models"
)

type StockPolicy string

const (
	StockAsk    StockPolicy = ""
	StockCancel StockPolicy = "cancel"
	StockFill   StockPolicy = "fill"
	StockForce  StockPolicy = "force"
	// StockAlways forces the add; the caller remembers the choice for the operator.
	StockAlways StockPolicy = "always"
)

func ParseStockPolicy(s string) (StockPolicy, error) {
	switch p := StockPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case StockAsk, StockCancel, StockFill, StockForce, StockAlways:
		return p, nil
	}
	return StockAsk, ErrUnknownStockPolicy
}

// reservedQuantity is what the order already holds of the source, free lines included.
func reservedQuantity(items []models.OrderItem, src LineSource) int {
	ref := src.reference()
	n := 0
	for _, item := range items {
		if item.SameReference(ref) {
			n += item.Quantity
		}
	}
	return n
}

// resolveStock returns the quantity to add under policy. Zero means nothing is added.
func resolveStock(items []models.OrderItem, src LineSource, qty int, policy StockPolicy, allowOversell bool) (int, error) {
	if !src.TrackStock || allowOversell {
		return qty, nil
	}
	available := src.Stock - reservedQuantity(items, src)
	if available < 0 {
		available = 0
	}
	if qty <= available {
		return qty, nil
	}
	switch policy {
	case StockCancel:
		return 0, nil
	case StockFill:
		return available, nil
	case StockForce, StockAlways:
		return qty, nil
	}
	return 0, &StockConflictError{Name: src.Name, Requested: qty, Available: available}
}
