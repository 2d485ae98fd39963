// Package pos holds the in-memory working set of orders in progress plus
// cached reference data, and drives the order lifecycle:
//
//	inProgress -> paid | unpaid | deleted
//
// Mutations are synchronous and in-memory first; persistence happens
// afterwards through the active storage adapter on a single background
// worker, so for any one order the backend sees writes in mutation order.
// Persistence failures are logged, never rolled back: the working set
// stays authoritative and the operator re-triggers the action if needed.
package pos

import (
	"context"
	"fmt"
	"sync"

	"tpv-haido/internal/domain"
	"tpv-haido/internal/storage"

	"go.uber.org/zap"
)

// Store is the order working set. All exported methods are safe for
// concurrent use.
type Store struct {
	logger *zap.Logger

	mu         sync.Mutex
	adapter    storage.Adapter
	products   []domain.Product
	categories []domain.Category
	tables     []domain.Table
	active     []domain.Order
	history    []domain.Order
	selectedID int64 // 0 = nothing selected

	paymentMethod string
	cashAmount    string

	jobs chan persistJob
	wg   sync.WaitGroup
}

// persistJob is one pending write. The adapter is captured when the job is
// enqueued: a storage-mode switch never redirects writes already in
// flight.
type persistJob struct {
	adapter storage.Adapter
	op      string
	orderID int64
	run     func(ctx context.Context, adapter storage.Adapter) error
}

// NewStore creates a store persisting through adapter. Call Close when
// done to drain pending writes.
func NewStore(adapter storage.Adapter, logger *zap.Logger) *Store {
	s := &Store{
		adapter:       adapter,
		logger:        logger,
		paymentMethod: "efectivo",
		jobs:          make(chan persistJob, 256),
	}
	go s.worker()
	return s
}

func (s *Store) worker() {
	for job := range s.jobs {
		if err := job.run(context.Background(), job.adapter); err != nil {
			s.logger.Error("Persistence call failed",
				zap.String("op", job.op),
				zap.Int64("order_id", job.orderID),
				zap.Error(err),
			)
		}
		s.wg.Done()
	}
}

// enqueue schedules a write against the currently-active adapter. Must be
// called with s.mu held so the adapter snapshot and the in-memory mutation
// it follows are taken together.
func (s *Store) enqueue(op string, orderID int64, run func(context.Context, storage.Adapter) error) {
	s.wg.Add(1)
	s.jobs <- persistJob{adapter: s.adapter, op: op, orderID: orderID, run: run}
}

// Flush blocks until every enqueued write has been attempted.
func (s *Store) Flush() { s.wg.Wait() }

// Close drains pending writes and stops the worker.
func (s *Store) Close() {
	s.wg.Wait()
	close(s.jobs)
}

// SwapAdapter switches the active backend after draining in-flight writes
// against the previous one. It does not migrate any data; that is the
// migration service's job and callers invoke it explicitly.
func (s *Store) SwapAdapter(adapter storage.Adapter) {
	s.wg.Wait()
	s.mu.Lock()
	s.adapter = adapter
	s.mu.Unlock()
}

// Adapter returns the currently-active adapter.
func (s *Store) Adapter() storage.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

// Load primes the caches and splits persisted orders into the active
// working set (inProgress) and order history.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	adapter := s.adapter
	s.mu.Unlock()

	products, err := adapter.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	categories, err := adapter.GetCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	orders, err := adapter.GetOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}

	var tables []domain.Table
	if ts, ok := adapter.(storage.TableStore); ok {
		if tables, err = ts.GetTables(ctx); err != nil {
			// Tables are non-essential reference data; start without them.
			s.logger.Warn("Failed to load tables", zap.Error(err))
			tables = nil
		}
	}

	var active, history []domain.Order
	for _, o := range orders {
		if o.Status == domain.StatusInProgress {
			active = append(active, o)
		} else {
			history = append(history, o)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setProductsLocked(products)
	s.categories = categories
	s.tables = tables
	s.active = active
	s.history = history
	return nil
}

// ==================== Reference data ====================

func (s *Store) setProductsLocked(products []domain.Product) {
	// Deduplicate by id; duplicates have shown up in imported data.
	seen := make(map[int64]bool, len(products))
	unique := products[:0]
	for _, p := range products {
		if !seen[p.ID] {
			seen[p.ID] = true
			unique = append(unique, p)
		}
	}
	s.products = unique
}

func (s *Store) SetProducts(products []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setProductsLocked(products)
}

func (s *Store) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Product(nil), s.products...)
}

func (s *Store) SetCategories(categories []domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = categories
}

func (s *Store) Categories() []domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Category(nil), s.categories...)
}

func (s *Store) SetTables(tables []domain.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = tables
}

func (s *Store) Tables() []domain.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Table(nil), s.tables...)
}

// ==================== Payment UI state ====================

func (s *Store) SetPaymentMethod(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentMethod = method
}

func (s *Store) PaymentMethod() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentMethod
}

func (s *Store) SetCashAmount(amount string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cashAmount = amount
}

func (s *Store) CashAmount() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cashAmount
}

// ==================== Order access ====================

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

func (s *Store) ActiveOrders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, len(s.active))
	for i, o := range s.active {
		out[i] = cloneOrder(o)
	}
	return out
}

func (s *Store) History() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, len(s.history))
	for i, o := range s.history {
		out[i] = cloneOrder(o)
	}
	return out
}

func (s *Store) findActiveLocked(orderID int64) int {
	for i := range s.active {
		if s.active[i].ID == orderID {
			return i
		}
	}
	return -1
}

// SelectOrder makes orderID the selected order when it is active.
func (s *Store) SelectOrder(orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findActiveLocked(orderID) >= 0 {
		s.selectedID = orderID
	}
}

// Selected returns a copy of the selected order, when any.
func (s *Store) Selected() (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.findActiveLocked(s.selectedID); i >= 0 {
		return cloneOrder(s.active[i]), true
	}
	return domain.Order{}, false
}

// ==================== Lifecycle ====================

// AssignTable selects the order for tableID, creating or rebinding one
// when necessary:
//
//  1. an inProgress order already on the table is selected as-is;
//  2. otherwise an unbound empty order is rebound to the table;
//  3. otherwise a fresh order is synthesized.
//
// Because the whole lookup runs under the store lock, a table can never
// end up with two inProgress orders.
func (s *Store) AssignTable(tableID int64) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.findTableOrderLocked(tableID); i >= 0 {
		s.selectedID = s.active[i].ID
		return cloneOrder(s.active[i])
	}

	for i := range s.active {
		if s.active[i].IsEmptySlot() {
			s.active[i].TableNumber = tableID
			s.selectedID = s.active[i].ID
			rebound := cloneOrder(s.active[i])
			s.enqueue("update_order", rebound.ID, func(ctx context.Context, adapter storage.Adapter) error {
				return adapter.UpdateOrder(ctx, rebound)
			})
			return rebound
		}
	}

	order := domain.NewOrder(tableID)
	s.active = append(s.active, order)
	s.selectedID = order.ID
	created := cloneOrder(order)
	s.enqueue("create_order", created.ID, func(ctx context.Context, adapter storage.Adapter) error {
		return adapter.CreateOrder(ctx, created)
	})
	return cloneOrder(order)
}

func (s *Store) findTableOrderLocked(tableID int64) int {
	for i := range s.active {
		if s.active[i].TableNumber == tableID && s.active[i].Status == domain.StatusInProgress {
			return i
		}
	}
	return -1
}

// AddItem adds one unit of item to the order, settles the derived totals
// and schedules the update.
func (s *Store) AddItem(orderID int64, item domain.OrderItem) (domain.Order, bool) {
	return s.mutate(orderID, func(o *domain.Order) {
		o.AddItem(item)
	})
}

// AddProduct snapshots the product into the order.
func (s *Store) AddProduct(orderID int64, p domain.Product) (domain.Order, bool) {
	return s.AddItem(orderID, p.ToOrderItem())
}

// RemoveItem removes one unit of productID from the order, dropping the
// line at quantity zero.
func (s *Store) RemoveItem(orderID, productID int64) (domain.Order, bool) {
	return s.mutate(orderID, func(o *domain.Order) {
		o.RemoveItem(productID)
	})
}

// mutate applies fn to the order, recomputes the derived fields and
// schedules the async update. The recomputation runs even when fn already
// settled totals; summing over items is the guarantee against drift.
func (s *Store) mutate(orderID int64, fn func(*domain.Order)) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findActiveLocked(orderID)
	if i < 0 {
		return domain.Order{}, false
	}
	fn(&s.active[i])
	s.active[i].Recalculate()

	updated := cloneOrder(s.active[i])
	s.enqueue("update_order", updated.ID, func(ctx context.Context, adapter storage.Adapter) error {
		return adapter.UpdateOrder(ctx, updated)
	})
	return updated, true
}

// CompleteOrder stamps the order paid, persists it and moves it from the
// active set into history, clearing transient payment state.
func (s *Store) CompleteOrder(orderID int64, totalPaid, change float64) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findActiveLocked(orderID)
	if i < 0 {
		return domain.Order{}, false
	}

	order := &s.active[i]
	order.Status = domain.StatusPaid
	order.PaymentMethod = s.paymentMethod
	order.TotalPaid = totalPaid
	order.Change = change
	order.Recalculate()
	order.TicketPath = fmt.Sprintf("tickets/ticket-%d_%s.pdf", order.ID, order.Date)

	completed := cloneOrder(*order)
	s.enqueue("update_order", completed.ID, func(ctx context.Context, adapter storage.Adapter) error {
		return adapter.UpdateOrder(ctx, completed)
	})

	s.history = append(s.history, completed)
	s.active = append(s.active[:i], s.active[i+1:]...)
	s.paymentMethod = "efectivo"
	s.cashAmount = ""
	if s.selectedID == orderID {
		s.selectedID = 0
	}
	return completed, true
}

// CloseOrder deletes the order from the backend and drops it from both
// the active set and history. The in-memory removal happens regardless of
// the delete outcome.
func (s *Store) CloseOrder(orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enqueue("delete_order", orderID, func(ctx context.Context, adapter storage.Adapter) error {
		return adapter.DeleteOrder(ctx, orderID)
	})

	if i := s.findActiveLocked(orderID); i >= 0 {
		s.active = append(s.active[:i], s.active[i+1:]...)
	}
	for i := range s.history {
		if s.history[i].ID == orderID {
			s.history = append(s.history[:i], s.history[i+1:]...)
			break
		}
	}
	if s.selectedID == orderID {
		s.selectedID = 0
		if len(s.active) > 0 {
			s.selectedID = s.active[0].ID
		}
	}
}
