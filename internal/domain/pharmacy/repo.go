package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type InventoryRepository interface {
	Create(ctx context.Context, item *InventoryItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error)
	// GetForUpdate loads the item under a row lock; it must be called inside
	// a transaction. Concurrent fulfillments of the same item serialize here.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*InventoryItem, error)
	Update(ctx context.Context, item *InventoryItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*InventoryItem, int, error)
	ListLowStock(ctx context.Context, limit, offset int) ([]*InventoryItem, int, error)
	// DecrementStock subtracts qty guarded by current_stock >= qty in the
	// UPDATE predicate. Returns ErrItemNotFound when the guard rejects the
	// row; under the fulfillment row lock that cannot happen after a
	// successful stock check.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
}

type DispensationRepository interface {
	Create(ctx context.Context, d *Dispensation) error
	GetByID(ctx context.Context, id uuid.UUID) (*DispensationDetail, error)
	List(ctx context.Context, filter DispensationFilter, limit, offset int) ([]*DispensationDetail, int, error)
}

// TxRunner runs fn inside a database transaction carried on the context, so
// repository calls made within fn share one atomic unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
