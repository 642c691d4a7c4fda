package pharmacy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput wraps deterministic validation failures. Callers test
	// with errors.Is; handlers map it to 400.
	ErrInvalidInput = errors.New("invalid input")

	ErrItemNotFound         = errors.New("inventory item not found")
	ErrDispensationNotFound = errors.New("dispensation not found")
	ErrDuplicateName        = errors.New("inventory item name already in use")

	// ErrItemInUse is returned when deleting an item that dispensations
	// still reference.
	ErrItemInUse = errors.New("inventory item is referenced by dispensations")

	// ErrStockConflict is returned when the guarded decrement finds less
	// stock than the caller observed under the row lock.
	ErrStockConflict = errors.New("stock changed concurrently")
)

// InsufficientStockError reports a fulfillment request that exceeds the stock
// on hand. Available is the stock observed under the row lock, so the caller
// can surface exactly how short the request fell.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available, %d requested", e.Available, e.Requested)
}
