package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Fakes --
//
// The fakes model the database's row locking: GetForUpdate takes a per-item
// mutex that is held until the surrounding transaction finishes, and writes
// made inside a transaction are staged and only become visible on commit.
// That keeps the concurrency tests honest about what the real store does.

type txKeyType struct{}

var txKey txKeyType

type fakeTx struct {
	held      []*sync.Mutex
	staged    map[uuid.UUID]*InventoryItem
	newDisp   []*Dispensation
	store     *fakeStore
	committed bool
}

func txFrom(ctx context.Context) *fakeTx {
	tx, _ := ctx.Value(txKey).(*fakeTx)
	return tx
}

type fakeStore struct {
	mu            sync.Mutex
	items         map[uuid.UUID]*InventoryItem
	rowLocks      map[uuid.UUID]*sync.Mutex
	dispensations map[uuid.UUID]*Dispensation

	// failDispCreate forces the dispensation insert to fail, for rollback tests.
	failDispCreate bool

	// failDecrement forces the guarded decrement to report a conflict.
	failDecrement bool

	// fixed join values returned by dispensation reads
	medicationName string
	patientID      uuid.UUID
	patientName    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:          make(map[uuid.UUID]*InventoryItem),
		rowLocks:       make(map[uuid.UUID]*sync.Mutex),
		dispensations:  make(map[uuid.UUID]*Dispensation),
		medicationName: "Amoxicillin 500mg",
		patientID:      uuid.New(),
		patientName:    "Jo Bloggs",
	}
}

func (s *fakeStore) rowLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	return l
}

func (s *fakeStore) addItem(item *InventoryItem) *InventoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	s.items[item.ID] = item
	return item
}

func copyItem(i *InventoryItem) *InventoryItem {
	c := *i
	return &c
}

// -- fake InventoryRepository --

type fakeInventoryRepo struct{ store *fakeStore }

func (r *fakeInventoryRepo) Create(_ context.Context, item *InventoryItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.items {
		if existing.Name == item.Name {
			return ErrDuplicateName
		}
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	r.store.items[item.ID] = copyItem(item)
	return nil
}

func (r *fakeInventoryRepo) GetByID(_ context.Context, id uuid.UUID) (*InventoryItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return copyItem(item), nil
}

func (r *fakeInventoryRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	tx := txFrom(ctx)
	if tx == nil {
		return nil, errors.New("GetForUpdate outside transaction")
	}

	lock := r.store.rowLock(id)
	lock.Lock()
	tx.held = append(tx.held, lock)

	r.store.mu.Lock()
	item, ok := r.store.items[id]
	r.store.mu.Unlock()
	if !ok {
		return nil, ErrItemNotFound
	}

	staged := copyItem(item)
	tx.staged[id] = staged
	return copyItem(staged), nil
}

func (r *fakeInventoryRepo) Update(ctx context.Context, item *InventoryItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.items[item.ID]; !ok {
		return ErrItemNotFound
	}
	for _, existing := range r.store.items {
		if existing.ID != item.ID && existing.Name == item.Name {
			return ErrDuplicateName
		}
	}
	item.UpdatedAt = time.Now()
	if tx := txFrom(ctx); tx != nil {
		tx.staged[item.ID] = copyItem(item)
		return nil
	}
	r.store.items[item.ID] = copyItem(item)
	return nil
}

func (r *fakeInventoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.items[id]; !ok {
		return ErrItemNotFound
	}
	for _, d := range r.store.dispensations {
		if d.InventoryItemID == id {
			return ErrItemInUse
		}
	}
	delete(r.store.items, id)
	return nil
}

func (r *fakeInventoryRepo) List(_ context.Context, limit, offset int) ([]*InventoryItem, int, error) {
	return r.list(func(*InventoryItem) bool { return true }, limit, offset)
}

func (r *fakeInventoryRepo) ListLowStock(_ context.Context, limit, offset int) ([]*InventoryItem, int, error) {
	return r.list(func(i *InventoryItem) bool { return i.LowStock() }, limit, offset)
}

func (r *fakeInventoryRepo) list(keep func(*InventoryItem) bool, limit, offset int) ([]*InventoryItem, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []*InventoryItem
	for _, item := range r.store.items {
		if keep(item) {
			result = append(result, copyItem(item))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	total := len(result)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func (r *fakeInventoryRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	tx := txFrom(ctx)
	if tx == nil {
		return errors.New("DecrementStock outside transaction")
	}
	staged, ok := tx.staged[id]
	if !ok {
		return ErrItemNotFound
	}
	if r.store.failDecrement || staged.CurrentStock < qty {
		return ErrStockConflict
	}
	staged.CurrentStock -= qty
	return nil
}

// -- fake DispensationRepository --

type fakeDispensationRepo struct{ store *fakeStore }

func (r *fakeDispensationRepo) Create(ctx context.Context, d *Dispensation) error {
	if r.store.failDispCreate {
		return errors.New("insert failed")
	}
	d.ID = uuid.New()
	d.DateDispensed = time.Now()
	if tx := txFrom(ctx); tx != nil {
		tx.newDisp = append(tx.newDisp, d)
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.dispensations[d.ID] = d
	return nil
}

func (r *fakeDispensationRepo) GetByID(_ context.Context, id uuid.UUID) (*DispensationDetail, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.dispensations[id]
	if !ok {
		return nil, ErrDispensationNotFound
	}
	return r.detail(d), nil
}

func (r *fakeDispensationRepo) List(_ context.Context, filter DispensationFilter, limit, offset int) ([]*DispensationDetail, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []*DispensationDetail
	for _, d := range r.store.dispensations {
		if filter.InventoryItemID != nil && d.InventoryItemID != *filter.InventoryItemID {
			continue
		}
		if filter.PrescriptionID != nil && d.PrescriptionID != *filter.PrescriptionID {
			continue
		}
		result = append(result, r.detail(d))
	}
	total := len(result)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func (r *fakeDispensationRepo) detail(d *Dispensation) *DispensationDetail {
	detail := &DispensationDetail{
		Dispensation:   *d,
		MedicationName: r.store.medicationName,
		PatientID:      r.store.patientID,
		PatientName:    r.store.patientName,
	}
	if item, ok := r.store.items[d.InventoryItemID]; ok {
		detail.ItemName = item.Name
		detail.ItemUnit = item.Unit
	}
	return detail
}

// -- fake TxRunner --

type fakeTxRunner struct{ store *fakeStore }

func (t *fakeTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx := &fakeTx{
		staged: make(map[uuid.UUID]*InventoryItem),
		store:  t.store,
	}
	defer func() {
		for _, l := range tx.held {
			l.Unlock()
		}
	}()

	err := fn(context.WithValue(ctx, txKey, tx))
	if err != nil {
		return err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for id, staged := range tx.staged {
		t.store.items[id] = staged
	}
	for _, d := range tx.newDisp {
		t.store.dispensations[d.ID] = d
	}
	tx.committed = true
	return nil
}

func newTestService() (*Service, *fakeStore) {
	store := newFakeStore()
	return NewService(
		&fakeInventoryRepo{store: store},
		&fakeDispensationRepo{store: store},
		&fakeTxRunner{store: store},
	), store
}

func testItem(name string, stock int) *InventoryItem {
	return &InventoryItem{
		Name:         name,
		Unit:         "tablet",
		CurrentStock: stock,
		ReorderPoint: 10,
		PricePerUnit: 2.50,
	}
}

// -- Inventory tests --

func TestCreateItem_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		item *InventoryItem
	}{
		{"missing name", &InventoryItem{Unit: "tablet", PricePerUnit: 1}},
		{"missing unit", &InventoryItem{Name: "Ibuprofen", PricePerUnit: 1}},
		{"zero price", &InventoryItem{Name: "Ibuprofen", Unit: "tablet"}},
		{"negative price", &InventoryItem{Name: "Ibuprofen", Unit: "tablet", PricePerUnit: -1}},
		{"negative stock", &InventoryItem{Name: "Ibuprofen", Unit: "tablet", PricePerUnit: 1, CurrentStock: -5}},
		{"negative reorder point", &InventoryItem{Name: "Ibuprofen", Unit: "tablet", PricePerUnit: 1, ReorderPoint: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.CreateItem(ctx, tc.item)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCreateItem_DuplicateName(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.CreateItem(ctx, testItem("Paracetamol", 100)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := svc.CreateItem(ctx, testItem("Paracetamol", 50))
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestUpdateItem_Partial(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	item := store.addItem(testItem("Paracetamol", 100))

	newStock := 80
	updated, err := svc.UpdateItem(ctx, item.ID, &UpdateItemInput{CurrentStock: &newStock})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CurrentStock != 80 {
		t.Errorf("current_stock = %d, want 80", updated.CurrentStock)
	}
	if updated.Name != "Paracetamol" || updated.Unit != "tablet" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
}

func TestUpdateItem_EmptyPatch(t *testing.T) {
	svc, store := newTestService()
	item := store.addItem(testItem("Paracetamol", 100))

	_, err := svc.UpdateItem(context.Background(), item.ID, &UpdateItemInput{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty patch, got %v", err)
	}
}

func TestUpdateItem_NotFound(t *testing.T) {
	svc, _ := newTestService()
	name := "Anything"
	_, err := svc.UpdateItem(context.Background(), uuid.New(), &UpdateItemInput{Name: &name})
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestUpdateItem_ConcurrentFulfillKeepsDecrement(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	item := store.addItem(testItem("Amoxicillin", 50))
	newName := "Amoxicillin 500mg"

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Fulfill(ctx, uuid.New(), item.ID, 5, "pharm-1")
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := svc.UpdateItem(ctx, item.ID, &UpdateItemInput{Name: &newName})
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent operation failed: %v", err)
		}
	}

	got, err := svc.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.CurrentStock != 45 {
		t.Errorf("stock = %d after a rename concurrent with a 5-unit dispensation from 50, want 45", got.CurrentStock)
	}
	if got.Name != newName {
		t.Errorf("name = %q, want %q", got.Name, newName)
	}
}

func TestDeleteItem_InUse(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	item := store.addItem(testItem("Paracetamol", 100))

	_, err := svc.Fulfill(ctx, uuid.New(), item.ID, 5, "user-1")
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	err = svc.DeleteItem(ctx, item.ID)
	if !errors.Is(err, ErrItemInUse) {
		t.Fatalf("expected ErrItemInUse, got %v", err)
	}
}

func TestListItems_LowStockFilter(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	low := testItem("Aspirin", 5) // reorder point 10
	store.addItem(low)
	store.addItem(testItem("Paracetamol", 100))

	items, total, err := svc.ListItems(ctx, true, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Name != "Aspirin" {
		t.Fatalf("low stock list = %v (total %d), want only Aspirin", items, total)
	}

	_, total, err = svc.ListItems(ctx, false, 20, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 2 {
		t.Fatalf("full list total = %d, want 2", total)
	}
}

func TestListItems_OrderedByName(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	store.addItem(testItem("Cetirizine", 30))
	store.addItem(testItem("Aspirin", 30))
	store.addItem(testItem("Bisoprolol", 30))

	items, _, err := svc.ListItems(ctx, false, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Aspirin", "Bisoprolol", "Cetirizine"}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, name := range want {
		if items[i].Name != name {
			t.Errorf("items[%d].Name = %q, want %q", i, items[i].Name, name)
		}
	}
}

// -- Fulfillment tests --

func TestFulfill_Success(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	item := store.addItem(testItem("Amoxicillin", 100))
	prescriptionID := uuid.New()

	d, err := svc.Fulfill(ctx, prescriptionID, item.ID, 30, "pharm-1")
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	if d.Quantity != 30 || d.DispensedBy != "pharm-1" || d.PrescriptionID != prescriptionID {
		t.Errorf("dispensation = %+v", d)
	}
	if d.ItemName != "Amoxicillin" || d.ItemUnit != "tablet" {
		t.Errorf("detail missing item fields: %+v", d)
	}
	if d.MedicationName == "" || d.PatientName == "" {
		t.Errorf("detail missing prescription summary: %+v", d)
	}
	if d.DateDispensed.IsZero() {
		t.Error("date_dispensed not set")
	}

	got, err := svc.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.CurrentStock != 70 {
		t.Errorf("stock = %d, want 70", got.CurrentStock)
	}
}

func TestFulfill_InsufficientStock(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	item := store.addItem(testItem("Amoxicillin", 10))

	_, err := svc.Fulfill(ctx, uuid.New(), item.ID, 25, "pharm-1")

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 10 || stockErr.Requested != 25 {
		t.Errorf("stock error = %+v, want available 10 requested 25", stockErr)
	}

	// Nothing committed.
	got, _ := svc.GetItem(ctx, item.ID)
	if got.CurrentStock != 10 {
		t.Errorf("stock changed on rejected fulfillment: %d", got.CurrentStock)
	}
	_, total, _ := svc.ListDispensations(ctx, DispensationFilter{}, 20, 0)
	if total != 0 {
		t.Errorf("dispensation count = %d, want 0", total)
	}
}

func TestFulfill_InvalidInput(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	item := store.addItem(testItem("Amoxicillin", 100))

	cases := []struct {
		name           string
		prescriptionID uuid.UUID
		itemID         uuid.UUID
		quantity       int
		actingUser     string
	}{
		{"zero quantity", uuid.New(), item.ID, 0, "pharm-1"},
		{"negative quantity", uuid.New(), item.ID, -3, "pharm-1"},
		{"nil prescription", uuid.Nil, item.ID, 1, "pharm-1"},
		{"nil item", uuid.New(), uuid.Nil, 1, "pharm-1"},
		{"missing acting user", uuid.New(), item.ID, 1, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Fulfill(ctx, tc.prescriptionID, tc.itemID, tc.quantity, tc.actingUser)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestFulfill_ItemNotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Fulfill(context.Background(), uuid.New(), uuid.New(), 1, "pharm-1")
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestFulfill_RollbackOnInsertFailure(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	item := store.addItem(testItem("Amoxicillin", 100))
	store.failDispCreate = true

	_, err := svc.Fulfill(ctx, uuid.New(), item.ID, 30, "pharm-1")
	if err == nil {
		t.Fatal("expected error when dispensation insert fails")
	}

	got, _ := svc.GetItem(ctx, item.ID)
	if got.CurrentStock != 100 {
		t.Errorf("stock = %d after rollback, want 100", got.CurrentStock)
	}
}

func TestFulfill_DecrementConflictRollsBack(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	item := store.addItem(testItem("Amoxicillin", 100))
	store.failDecrement = true

	_, err := svc.Fulfill(ctx, uuid.New(), item.ID, 30, "pharm-1")
	if !errors.Is(err, ErrStockConflict) {
		t.Fatalf("expected ErrStockConflict, got %v", err)
	}

	got, _ := svc.GetItem(ctx, item.ID)
	if got.CurrentStock != 100 {
		t.Errorf("stock = %d after rollback, want 100", got.CurrentStock)
	}
	_, total, _ := svc.ListDispensations(ctx, DispensationFilter{}, 20, 0)
	if total != 0 {
		t.Errorf("dispensation count = %d, want 0", total)
	}
}

func TestFulfill_PartialFillsAccumulate(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	item := store.addItem(testItem("Amoxicillin", 100))
	prescriptionID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := svc.Fulfill(ctx, prescriptionID, item.ID, 10, "pharm-1"); err != nil {
			t.Fatalf("fill %d: %v", i+1, err)
		}
	}

	got, _ := svc.GetItem(ctx, item.ID)
	if got.CurrentStock != 70 {
		t.Errorf("stock = %d, want 70", got.CurrentStock)
	}
	_, total, _ := svc.ListDispensations(ctx, DispensationFilter{PrescriptionID: &prescriptionID}, 20, 0)
	if total != 3 {
		t.Errorf("dispensations for prescription = %d, want 3", total)
	}
}

func TestFulfill_ConcurrentNeverOversells(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	const (
		initialStock = 50
		workers      = 20
		qtyEach      = 5
	)
	item := store.addItem(testItem("Amoxicillin", initialStock))

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Fulfill(ctx, uuid.New(), item.ID, qtyEach, fmt.Sprintf("pharm-%d", n))
			results <- err
		}(w)
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			var stockErr *InsufficientStockError
			if !errors.As(err, &stockErr) {
				t.Fatalf("unexpected error: %v", err)
			}
			rejected++
		}
	}

	if succeeded != initialStock/qtyEach {
		t.Errorf("succeeded = %d, want %d", succeeded, initialStock/qtyEach)
	}
	if rejected != workers-succeeded {
		t.Errorf("rejected = %d, want %d", rejected, workers-succeeded)
	}

	got, _ := svc.GetItem(ctx, item.ID)
	if got.CurrentStock != 0 {
		t.Errorf("final stock = %d, want 0", got.CurrentStock)
	}
	if got.CurrentStock < 0 {
		t.Error("stock went negative")
	}

	// Every committed dispensation matches exactly one decrement.
	items, total, _ := svc.ListDispensations(ctx, DispensationFilter{}, 100, 0)
	if total != succeeded {
		t.Errorf("dispensation count = %d, want %d", total, succeeded)
	}
	sum := 0
	for _, d := range items {
		sum += d.Quantity
	}
	if sum != initialStock-got.CurrentStock {
		t.Errorf("dispensed total = %d, want %d", sum, initialStock-got.CurrentStock)
	}
}
