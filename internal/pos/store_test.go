package pos

import (
	"context"
	"sync"
	"testing"

	"tpv-haido/internal/domain"
	"tpv-haido/internal/storage"

	"go.uber.org/zap"
)

// recordingAdapter captures every persistence call in order.
type recordingAdapter struct {
	mu     sync.Mutex
	ops    []string
	orders map[int64]domain.Order
	err    error // returned by every call when set
}

func newRecordingAdapter() *recordingAdapter {
	return &recordingAdapter{orders: make(map[int64]domain.Order)}
}

func (r *recordingAdapter) record(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return r.err
}

func (r *recordingAdapter) callOps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *recordingAdapter) GetProducts(ctx context.Context) ([]domain.Product, error) {
	return []domain.Product{}, r.record("get_products")
}
func (r *recordingAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	return r.record("create_product")
}
func (r *recordingAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	return r.record("update_product")
}
func (r *recordingAdapter) DeleteProduct(ctx context.Context, id int64) error {
	return r.record("delete_product")
}
func (r *recordingAdapter) GetCategories(ctx context.Context) ([]domain.Category, error) {
	return []domain.Category{}, r.record("get_categories")
}
func (r *recordingAdapter) CreateCategory(ctx context.Context, c domain.Category) error {
	return r.record("create_category")
}
func (r *recordingAdapter) UpdateCategory(ctx context.Context, c domain.Category) error {
	return r.record("update_category")
}
func (r *recordingAdapter) DeleteCategory(ctx context.Context, id int64) error {
	return r.record("delete_category")
}
func (r *recordingAdapter) GetOrders(ctx context.Context) ([]domain.Order, error) {
	r.mu.Lock()
	orders := []domain.Order{}
	for _, o := range r.orders {
		orders = append(orders, o)
	}
	r.mu.Unlock()
	return orders, r.record("get_orders")
}
func (r *recordingAdapter) CreateOrder(ctx context.Context, o domain.Order) error {
	r.mu.Lock()
	r.orders[o.ID] = o
	r.mu.Unlock()
	return r.record("create_order")
}
func (r *recordingAdapter) UpdateOrder(ctx context.Context, o domain.Order) error {
	r.mu.Lock()
	r.orders[o.ID] = o
	r.mu.Unlock()
	return r.record("update_order")
}
func (r *recordingAdapter) DeleteOrder(ctx context.Context, id int64) error {
	r.mu.Lock()
	delete(r.orders, id)
	r.mu.Unlock()
	return r.record("delete_order")
}

func newTestStore(t *testing.T) (*Store, *recordingAdapter) {
	t.Helper()
	adapter := newRecordingAdapter()
	store := NewStore(adapter, zap.NewNop())
	t.Cleanup(store.Close)
	return store, adapter
}

func TestOrderLifecycleScenario(t *testing.T) {
	store, adapter := newTestStore(t)
	cafe := domain.Product{ID: 1, Name: "Cafe", Price: 1.5, Category: "Bebidas"}

	order := store.AssignTable(3)
	if order.TableNumber != 3 || order.Status != domain.StatusInProgress || len(order.Items) != 0 {
		t.Fatalf("unexpected new order: %+v", order)
	}

	store.AddProduct(order.ID, cafe)
	updated, ok := store.AddProduct(order.ID, cafe)
	if !ok {
		t.Fatal("order not found")
	}
	if len(updated.Items) != 1 || updated.Items[0].Quantity != 2 {
		t.Fatalf("expected one line with quantity 2, got %+v", updated.Items)
	}
	if updated.Total != 3.0 || updated.ItemCount != 2 {
		t.Errorf("expected total 3.0 / count 2, got %f / %d", updated.Total, updated.ItemCount)
	}

	updated, _ = store.RemoveItem(order.ID, 1)
	if updated.Items[0].Quantity != 1 || updated.Total != 1.5 {
		t.Errorf("expected quantity 1 / total 1.5, got %d / %f", updated.Items[0].Quantity, updated.Total)
	}

	completed, ok := store.CompleteOrder(order.ID, 2.0, 0.5)
	if !ok {
		t.Fatal("order not found")
	}
	if completed.Status != domain.StatusPaid {
		t.Errorf("expected status paid, got %s", completed.Status)
	}

	for _, o := range store.ActiveOrders() {
		if o.ID == order.ID {
			t.Error("completed order still in active set")
		}
	}
	history := store.History()
	if len(history) != 1 || history[0].ID != order.ID {
		t.Errorf("completed order missing from history: %+v", history)
	}

	store.Flush()
	persisted := adapter.orders[order.ID]
	if persisted.Status != domain.StatusPaid || persisted.Total != 1.5 {
		t.Errorf("final persisted state wrong: %+v", persisted)
	}
}

func TestAssignTableIsIdempotentPerTable(t *testing.T) {
	store, _ := newTestStore(t)

	first := store.AssignTable(3)
	for i := 0; i < 5; i++ {
		again := store.AssignTable(3)
		if again.ID != first.ID {
			t.Fatalf("second assignment created a different order: %d != %d", again.ID, first.ID)
		}
	}

	count := 0
	for _, o := range store.ActiveOrders() {
		if o.TableNumber == 3 && o.Status == domain.StatusInProgress {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one inProgress order on table 3, got %d", count)
	}
}

func TestAssignTableReusesEmptySlot(t *testing.T) {
	store, adapter := newTestStore(t)

	bar := store.AssignTable(domain.BarTable)
	store.Flush()

	rebound := store.AssignTable(7)
	if rebound.ID != bar.ID {
		t.Fatalf("expected the empty bar order to be rebound, got new order %d", rebound.ID)
	}
	if rebound.TableNumber != 7 {
		t.Errorf("expected tableNumber 7, got %d", rebound.TableNumber)
	}

	store.Flush()
	ops := adapter.callOps()
	// One create for the bar order, then an update for the rebind; no
	// second create.
	creates := 0
	for _, op := range ops {
		if op == "create_order" {
			creates++
		}
	}
	if creates != 1 {
		t.Errorf("expected a single create_order, ops: %v", ops)
	}
}

func TestBoundEmptyOrderIsNotReused(t *testing.T) {
	store, _ := newTestStore(t)

	onTable := store.AssignTable(2) // empty but bound to table 2
	other := store.AssignTable(5)
	if other.ID == onTable.ID {
		t.Error("order bound to another table must not be rebound")
	}
}

func TestPersistenceFailureDoesNotRollBack(t *testing.T) {
	store, adapter := newTestStore(t)
	adapter.err = storage.NewError(storage.WriteFailed, "backend down", nil)

	order := store.AssignTable(4)
	store.AddItem(order.ID, domain.OrderItem{ID: 1, Name: "Cafe", Price: 1.5, Quantity: 1})
	store.Flush()

	selected, ok := store.Selected()
	if !ok {
		t.Fatal("selection lost")
	}
	if selected.Total != 1.5 || selected.ItemCount != 1 {
		t.Errorf("in-memory state must survive persistence failure: %+v", selected)
	}
}

func TestCloseOrderRemovesEvenWhenDeleteFails(t *testing.T) {
	store, adapter := newTestStore(t)

	order := store.AssignTable(6)
	store.Flush()
	adapter.err = storage.NewError(storage.DeleteFailed, "backend down", nil)

	store.CloseOrder(order.ID)
	store.Flush()

	if len(store.ActiveOrders()) != 0 {
		t.Error("closed order still active despite best-effort delete")
	}
	if _, ok := store.Selected(); ok {
		t.Error("selection should be cleared")
	}
}

func TestWritesPerOrderReachBackendInMutationOrder(t *testing.T) {
	store, adapter := newTestStore(t)

	order := store.AssignTable(1)
	item := domain.OrderItem{ID: 1, Name: "Cafe", Price: 1.5, Quantity: 1}
	store.AddItem(order.ID, item)
	store.AddItem(order.ID, item)
	store.RemoveItem(order.ID, 1)
	store.Flush()

	// The last write the backend saw must match the final in-memory state.
	persisted := adapter.orders[order.ID]
	if persisted.ItemCount != 1 || persisted.Total != 1.5 {
		t.Errorf("backend ended on a stale write: %+v", persisted)
	}
}

func TestSwapAdapterCapturesAdapterPerJob(t *testing.T) {
	store, first := newTestStore(t)
	second := newRecordingAdapter()

	order := store.AssignTable(2)
	store.SwapAdapter(second) // drains first

	store.AddItem(order.ID, domain.OrderItem{ID: 1, Price: 1, Quantity: 1})
	store.Flush()

	for _, op := range first.callOps() {
		if op == "update_order" {
			t.Error("write issued after the swap reached the old adapter")
		}
	}
	if len(second.callOps()) == 0 {
		t.Error("new adapter received no writes")
	}
}

func TestLoadSplitsActiveAndHistory(t *testing.T) {
	adapter := newRecordingAdapter()
	adapter.orders[1] = domain.Order{ID: 1, Status: domain.StatusInProgress, TableNumber: 2}
	adapter.orders[2] = domain.Order{ID: 2, Status: domain.StatusPaid}
	adapter.orders[3] = domain.Order{ID: 3, Status: domain.StatusUnpaid}

	store := NewStore(adapter, zap.NewNop())
	defer store.Close()

	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(store.ActiveOrders()) != 1 {
		t.Errorf("expected 1 active order, got %d", len(store.ActiveOrders()))
	}
	if len(store.History()) != 2 {
		t.Errorf("expected 2 historical orders, got %d", len(store.History()))
	}
}

func TestSetProductsDeduplicatesByID(t *testing.T) {
	store, _ := newTestStore(t)

	store.SetProducts([]domain.Product{
		{ID: 1, Name: "Cafe"},
		{ID: 1, Name: "Cafe duplicate"},
		{ID: 2, Name: "Tostada"},
	})
	if got := store.Products(); len(got) != 2 {
		t.Errorf("expected 2 unique products, got %d", len(got))
	}
}
