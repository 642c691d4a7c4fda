package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem maps to the inventory_item table. CurrentStock only changes
// through administrative updates or the fulfillment transaction; the table
// carries a CHECK (current_stock >= 0) as a last line of defence against
// concurrent decrements.
type InventoryItem struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Unit         string    `db:"unit" json:"unit"`
	Description  *string   `db:"description" json:"description,omitempty"`
	CurrentStock int       `db:"current_stock" json:"current_stock"`
	ReorderPoint int       `db:"reorder_point" json:"reorder_point"`
	PricePerUnit float64   `db:"price_per_unit" json:"price_per_unit"`
	Supplier     *string   `db:"supplier" json:"supplier,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the item is at or below its reorder point.
func (i *InventoryItem) LowStock() bool {
	return i.CurrentStock <= i.ReorderPoint
}

// Dispensation maps to the dispensation table. Rows are append-only: they are
// created by the fulfillment transaction and never updated or deleted.
type Dispensation struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PrescriptionID  uuid.UUID `db:"prescription_id" json:"prescription_id"`
	InventoryItemID uuid.UUID `db:"inventory_item_id" json:"inventory_item_id"`
	Quantity        int       `db:"quantity" json:"quantity"`
	DispensedBy     string    `db:"dispensed_by" json:"dispensed_by"`
	DateDispensed   time.Time `db:"date_dispensed" json:"date_dispensed"`
}

// DispensationDetail is a dispensation joined with the item and prescription
// it references, as returned by the read endpoints.
type DispensationDetail struct {
	Dispensation
	ItemName       string    `json:"item_name"`
	ItemUnit       string    `json:"item_unit"`
	MedicationName string    `json:"medication_name"`
	PatientID      uuid.UUID `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
}

// UpdateItemInput is a partial update; nil fields are left unchanged.
type UpdateItemInput struct {
	Name         *string  `json:"name,omitempty"`
	Unit         *string  `json:"unit,omitempty"`
	Description  *string  `json:"description,omitempty"`
	CurrentStock *int     `json:"current_stock,omitempty"`
	ReorderPoint *int     `json:"reorder_point,omitempty"`
	PricePerUnit *float64 `json:"price_per_unit,omitempty"`
	Supplier     *string  `json:"supplier,omitempty"`
}

// Empty reports whether no field is set.
func (in *UpdateItemInput) Empty() bool {
	return in.Name == nil && in.Unit == nil && in.Description == nil &&
		in.CurrentStock == nil && in.ReorderPoint == nil &&
		in.PricePerUnit == nil && in.Supplier == nil
}

// DispensationFilter narrows dispensation listings.
type DispensationFilter struct {
	InventoryItemID *uuid.UUID
	PrescriptionID  *uuid.UUID
}
