package pharmacy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service implements the inventory ledger: item administration, the
// fulfillment transaction and the dispensation log.
type Service struct {
	items         InventoryRepository
	dispensations DispensationRepository
	tx            TxRunner
}

func NewService(items InventoryRepository, dispensations DispensationRepository, tx TxRunner) *Service {
	return &Service{
		items:         items,
		dispensations: dispensations,
		tx:            tx,
	}
}

// -- Inventory --

func (s *Service) CreateItem(ctx context.Context, item *InventoryItem) error {
	if err := validateItem(item); err != nil {
		return err
	}
	return s.items.Create(ctx, item)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	return s.items.GetByID(ctx, id)
}

// UpdateItem applies a partial update. Nil fields keep their current value;
// an input with no fields set is rejected. The item row stays locked from
// read to write-back, so the update cannot overwrite a stock decrement that
// commits concurrently.
func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, in *UpdateItemInput) (*InventoryItem, error) {
	if in.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	var item *InventoryItem
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.items.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if in.Name != nil {
			item.Name = *in.Name
		}
		if in.Unit != nil {
			item.Unit = *in.Unit
		}
		if in.Description != nil {
			item.Description = in.Description
		}
		if in.CurrentStock != nil {
			item.CurrentStock = *in.CurrentStock
		}
		if in.ReorderPoint != nil {
			item.ReorderPoint = *in.ReorderPoint
		}
		if in.PricePerUnit != nil {
			item.PricePerUnit = *in.PricePerUnit
		}
		if in.Supplier != nil {
			item.Supplier = in.Supplier
		}

		if err := validateItem(item); err != nil {
			return err
		}
		return s.items.Update(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return s.items.Delete(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, lowStockOnly bool, limit, offset int) ([]*InventoryItem, int, error) {
	if lowStockOnly {
		return s.items.ListLowStock(ctx, limit, offset)
	}
	return s.items.List(ctx, limit, offset)
}

func validateItem(item *InventoryItem) error {
	if item.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if item.Unit == "" {
		return fmt.Errorf("%w: unit is required", ErrInvalidInput)
	}
	if item.PricePerUnit <= 0 {
		return fmt.Errorf("%w: price_per_unit must be positive", ErrInvalidInput)
	}
	if item.CurrentStock < 0 {
		return fmt.Errorf("%w: current_stock cannot be negative", ErrInvalidInput)
	}
	if item.ReorderPoint < 0 {
		return fmt.Errorf("%w: reorder_point cannot be negative", ErrInvalidInput)
	}
	return nil
}

// -- Fulfillment --

// Fulfill atomically checks stock, decrements it and appends a dispensation
// for the given prescription. The item row is locked for the duration of the
// transaction, so concurrent fulfillments of the same item serialize in the
// database rather than in process. On any error the transaction rolls back
// and no state changes.
func (s *Service) Fulfill(ctx context.Context, prescriptionID, itemID uuid.UUID, quantity int, actingUserID string) (*DispensationDetail, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	if prescriptionID == uuid.Nil {
		return nil, fmt.Errorf("%w: prescription_id is required", ErrInvalidInput)
	}
	if itemID == uuid.Nil {
		return nil, fmt.Errorf("%w: inventory_item_id is required", ErrInvalidInput)
	}
	if actingUserID == "" {
		return nil, fmt.Errorf("%w: acting user is required", ErrInvalidInput)
	}

	d := &Dispensation{
		PrescriptionID:  prescriptionID,
		InventoryItemID: itemID,
		Quantity:        quantity,
		DispensedBy:     actingUserID,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		item, err := s.items.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if item.CurrentStock < quantity {
			return &InsufficientStockError{Available: item.CurrentStock, Requested: quantity}
		}
		if err := s.items.DecrementStock(ctx, itemID, quantity); err != nil {
			return err
		}
		return s.dispensations.Create(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	return s.dispensations.GetByID(ctx, d.ID)
}

// -- Dispensation log --

func (s *Service) GetDispensation(ctx context.Context, id uuid.UUID) (*DispensationDetail, error) {
	return s.dispensations.GetByID(ctx, id)
}

func (s *Service) ListDispensations(ctx context.Context, filter DispensationFilter, limit, offset int) ([]*DispensationDetail, int, error) {
	return s.dispensations.List(ctx, filter, limit, offset)
}
