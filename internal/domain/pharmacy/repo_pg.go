package pharmacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichq/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// =========== Inventory Repository ===========

type inventoryRepoPG struct{ pool *pgxpool.Pool }

func NewInventoryRepoPG(pool *pgxpool.Pool) InventoryRepository {
	return &inventoryRepoPG{pool: pool}
}

func (r *inventoryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const itemCols = `id, name, unit, description, current_stock, reorder_point,
	price_per_unit, supplier, created_at, updated_at`

func scanItem(row pgx.Row) (*InventoryItem, error) {
	var i InventoryItem
	err := row.Scan(&i.ID, &i.Name, &i.Unit, &i.Description, &i.CurrentStock, &i.ReorderPoint,
		&i.PricePerUnit, &i.Supplier, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *inventoryRepoPG) Create(ctx context.Context, item *InventoryItem) error {
	item.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO inventory_item (id, name, unit, description, current_stock, reorder_point,
			price_per_unit, supplier)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		item.ID, item.Name, item.Unit, item.Description, item.CurrentStock, item.ReorderPoint,
		item.PricePerUnit, item.Supplier)
	if err := row.Scan(&item.CreatedAt, &item.UpdatedAt); err != nil {
		if isPGError(err, pgUniqueViolation) {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

func (r *inventoryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM inventory_item WHERE id = $1`, id))
}

func (r *inventoryRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM inventory_item WHERE id = $1 FOR UPDATE`, id))
}

func (r *inventoryRepoPG) Update(ctx context.Context, item *InventoryItem) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE inventory_item SET name=$2, unit=$3, description=$4, current_stock=$5,
			reorder_point=$6, price_per_unit=$7, supplier=$8, updated_at=NOW()
		WHERE id = $1`,
		item.ID, item.Name, item.Unit, item.Description, item.CurrentStock,
		item.ReorderPoint, item.PricePerUnit, item.Supplier)
	if err != nil {
		if isPGError(err, pgUniqueViolation) {
			return ErrDuplicateName
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *inventoryRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM inventory_item WHERE id = $1`, id)
	if err != nil {
		if isPGError(err, pgForeignKeyViolation) {
			return ErrItemInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *inventoryRepoPG) List(ctx context.Context, limit, offset int) ([]*InventoryItem, int, error) {
	return r.list(ctx, ``, limit, offset)
}

func (r *inventoryRepoPG) ListLowStock(ctx context.Context, limit, offset int) ([]*InventoryItem, int, error) {
	return r.list(ctx, `WHERE current_stock <= reorder_point`, limit, offset)
}

func (r *inventoryRepoPG) list(ctx context.Context, where string, limit, offset int) ([]*InventoryItem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM inventory_item `+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM inventory_item `+where+` ORDER BY name ASC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*InventoryItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, i)
	}
	return items, total, rows.Err()
}

func (r *inventoryRepoPG) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE inventory_item SET current_stock = current_stock - $2, updated_at = NOW()
		WHERE id = $1 AND current_stock >= $2`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// The fulfillment path locks the row and checks stock before calling
		// this, so zero rows means the guard rejected the decrement, not that
		// the item vanished.
		return ErrStockConflict
	}
	return nil
}

// =========== Dispensation Repository ===========

type dispensationRepoPG struct{ pool *pgxpool.Pool }

func NewDispensationRepoPG(pool *pgxpool.Pool) DispensationRepository {
	return &dispensationRepoPG{pool: pool}
}

func (r *dispensationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *dispensationRepoPG) Create(ctx context.Context, d *Dispensation) error {
	d.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO dispensation (id, prescription_id, inventory_item_id, quantity, dispensed_by)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING date_dispensed`,
		d.ID, d.PrescriptionID, d.InventoryItemID, d.Quantity, d.DispensedBy)
	if err := row.Scan(&d.DateDispensed); err != nil {
		if isPGError(err, pgForeignKeyViolation) {
			return fmt.Errorf("%w: prescription %s does not exist", ErrInvalidInput, d.PrescriptionID)
		}
		return err
	}
	return nil
}

const dispCols = `d.id, d.prescription_id, d.inventory_item_id, d.quantity, d.dispensed_by,
	d.date_dispensed, i.name, i.unit, p.medication_name, pt.id, pt.first_name || ' ' || pt.last_name`

const dispJoins = `FROM dispensation d
	JOIN inventory_item i ON i.id = d.inventory_item_id
	JOIN prescription p ON p.id = d.prescription_id
	JOIN patient pt ON pt.id = p.patient_id`

func scanDispensation(row pgx.Row) (*DispensationDetail, error) {
	var d DispensationDetail
	err := row.Scan(&d.ID, &d.PrescriptionID, &d.InventoryItemID, &d.Quantity, &d.DispensedBy,
		&d.DateDispensed, &d.ItemName, &d.ItemUnit, &d.MedicationName, &d.PatientID, &d.PatientName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDispensationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *dispensationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DispensationDetail, error) {
	return scanDispensation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+dispCols+` `+dispJoins+` WHERE d.id = $1`, id))
}

func (r *dispensationRepoPG) List(ctx context.Context, filter DispensationFilter, limit, offset int) ([]*DispensationDetail, int, error) {
	where := ``
	args := []interface{}{}
	if filter.InventoryItemID != nil {
		args = append(args, *filter.InventoryItemID)
		where += fmt.Sprintf(" AND d.inventory_item_id = $%d", len(args))
	}
	if filter.PrescriptionID != nil {
		args = append(args, *filter.PrescriptionID)
		where += fmt.Sprintf(" AND d.prescription_id = $%d", len(args))
	}
	if where != "" {
		where = " WHERE" + where[4:]
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM dispensation d`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s %s%s ORDER BY d.date_dispensed DESC LIMIT $%d OFFSET $%d`,
			dispCols, dispJoins, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*DispensationDetail
	for rows.Next() {
		d, err := scanDispensation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Transaction runner ===========

type pgTxRunner struct{ pool *pgxpool.Pool }

// NewTxRunnerPG returns a TxRunner backed by the connection pool.
func NewTxRunnerPG(pool *pgxpool.Pool) TxRunner {
	return &pgTxRunner{pool: pool}
}

func (t *pgTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, t.pool, fn)
}

func isPGError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
