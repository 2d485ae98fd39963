package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tpv-haido/internal/domain"
	"tpv-haido/internal/middleware"
	"tpv-haido/internal/migration"
	"tpv-haido/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// memAdapter is an in-memory backend for handler tests.
type memAdapter struct {
	products   map[int64]domain.Product
	categories map[int64]domain.Category
	orders     map[int64]domain.Order
	users      map[int64]domain.User
	readErr    error
}

func newMemAdapter() *memAdapter {
	return &memAdapter{
		products:   make(map[int64]domain.Product),
		categories: make(map[int64]domain.Category),
		orders:     make(map[int64]domain.Order),
		users:      make(map[int64]domain.User),
	}
}

func (m *memAdapter) GetProducts(ctx context.Context) ([]domain.Product, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := []domain.Product{}
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}
func (m *memAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	if _, exists := m.products[p.ID]; exists {
		return storage.NewError(storage.WriteFailed, "duplicate id", nil)
	}
	m.products[p.ID] = p
	return nil
}
func (m *memAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	m.products[p.ID] = p
	return nil
}
func (m *memAdapter) DeleteProduct(ctx context.Context, id int64) error {
	delete(m.products, id)
	return nil
}
func (m *memAdapter) GetCategories(ctx context.Context) ([]domain.Category, error) {
	out := []domain.Category{}
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}
func (m *memAdapter) CreateCategory(ctx context.Context, c domain.Category) error {
	m.categories[c.ID] = c
	return nil
}
func (m *memAdapter) UpdateCategory(ctx context.Context, c domain.Category) error {
	m.categories[c.ID] = c
	return nil
}
func (m *memAdapter) DeleteCategory(ctx context.Context, id int64) error {
	delete(m.categories, id)
	return nil
}
func (m *memAdapter) GetOrders(ctx context.Context) ([]domain.Order, error) {
	out := []domain.Order{}
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}
func (m *memAdapter) CreateOrder(ctx context.Context, o domain.Order) error {
	m.orders[o.ID] = o
	return nil
}
func (m *memAdapter) UpdateOrder(ctx context.Context, o domain.Order) error {
	m.orders[o.ID] = o
	return nil
}
func (m *memAdapter) DeleteOrder(ctx context.Context, id int64) error {
	delete(m.orders, id)
	return nil
}
func (m *memAdapter) GetUsers(ctx context.Context) ([]domain.User, error) {
	out := []domain.User{}
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}
func (m *memAdapter) CreateUser(ctx context.Context, u domain.User) error {
	m.users[u.ID] = u
	return nil
}
func (m *memAdapter) UpdateUser(ctx context.Context, u domain.User) error {
	m.users[u.ID] = u
	return nil
}
func (m *memAdapter) DeleteUser(ctx context.Context, id int64) error {
	delete(m.users, id)
	return nil
}
func (m *memAdapter) ExportData(ctx context.Context) (storage.Snapshot, error) {
	products, _ := m.GetProducts(ctx)
	categories, _ := m.GetCategories(ctx)
	orders, _ := m.GetOrders(ctx)
	return storage.Snapshot{Products: products, Categories: categories, Orders: orders}, nil
}

func newCatalogRouter(adapter storage.Adapter) chi.Router {
	r := chi.NewRouter()
	NewCatalogHandler(adapter, zap.NewNop()).RegisterRoutes(r)
	NewOrderHandler(adapter, zap.NewNop()).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestProductCRUD(t *testing.T) {
	adapter := newMemAdapter()
	router := newCatalogRouter(adapter)

	cafe := domain.Product{ID: 1, Name: "Cafe", Price: 1.5, Category: "Bebidas"}
	if w := doJSON(t, router, "POST", "/products", cafe); w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w := doJSON(t, router, "GET", "/products", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var products []domain.Product
	if err := json.Unmarshal(w.Body.Bytes(), &products); err != nil {
		t.Fatalf("list decode failed: %v", err)
	}
	if len(products) != 1 || products[0].Name != "Cafe" {
		t.Errorf("unexpected products: %+v", products)
	}

	cafe.Price = 1.8
	if w := doJSON(t, router, "PUT", "/products/1", cafe); w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", w.Code)
	}
	if adapter.products[1].Price != 1.8 {
		t.Errorf("update did not land: %+v", adapter.products[1])
	}
}

func TestDeleteReturnsNoContentWithEmptyBody(t *testing.T) {
	adapter := newMemAdapter()
	adapter.products[1] = domain.Product{ID: 1, Name: "Cafe"}
	router := newCatalogRouter(adapter)

	w := doJSON(t, router, "DELETE", "/products/1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}

	// Deleting again still succeeds.
	if w := doJSON(t, router, "DELETE", "/products/1", nil); w.Code != http.StatusNoContent {
		t.Errorf("repeat delete: expected 204, got %d", w.Code)
	}
}

func TestCreateProductValidation(t *testing.T) {
	router := newCatalogRouter(newMemAdapter())

	w := doJSON(t, router, "POST", "/products", map[string]interface{}{"id": 1, "price": -2.0})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp middleware.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error decode failed: %v", err)
	}
	if _, ok := resp.Error.Details["validation_errors"]; !ok {
		t.Errorf("expected validation_errors in details: %+v", resp.Error)
	}
}

func TestReadFailureMapsToBadGateway(t *testing.T) {
	adapter := newMemAdapter()
	adapter.readErr = storage.NewError(storage.ReadFailed, "backend unreachable", nil)
	router := newCatalogRouter(adapter)

	if w := doJSON(t, router, "GET", "/products", nil); w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestOrderTotalsAreSettledOnWrite(t *testing.T) {
	adapter := newMemAdapter()
	router := newCatalogRouter(adapter)

	order := domain.Order{
		ID:          10,
		TableNumber: 3,
		Status:      domain.StatusInProgress,
		Items: []domain.OrderItem{
			{ID: 1, Name: "Cafe", Price: 1.5, Quantity: 2},
		},
		Total:     99, // wrong on purpose
		ItemCount: 7,
	}
	w := doJSON(t, router, "POST", "/orders", order)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	stored := adapter.orders[10]
	if stored.Total != 3.0 || stored.ItemCount != 2 {
		t.Errorf("totals not settled: total=%f count=%d", stored.Total, stored.ItemCount)
	}
}

func TestUpdateOrderPathIDWins(t *testing.T) {
	adapter := newMemAdapter()
	router := newCatalogRouter(adapter)

	order := domain.Order{ID: 999, Status: domain.StatusPaid, Items: []domain.OrderItem{}}
	if w := doJSON(t, router, "PUT", "/orders/10", order); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, ok := adapter.orders[10]; !ok {
		t.Error("order not stored under the path id")
	}
	if _, ok := adapter.orders[999]; ok {
		t.Error("body id must not override the path id")
	}
}

func TestMigrateRejectsUnknownBackends(t *testing.T) {
	adapter := newMemAdapter()
	backends := map[storage.Mode]storage.Adapter{storage.ModeSQLite: adapter}
	r := chi.NewRouter()
	// No auth middleware so the handler logic is what gets tested.
	NewDataHandler(adapter, backends, migration.New(zap.NewNop()), zap.NewNop()).
		RegisterRoutes(r, func(next http.Handler) http.Handler { return next })

	w := doJSON(t, r, "POST", "/api/data/migrate", MigrateRequest{
		Source:      storage.ModeSQLite,
		Destination: "tape",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown destination, got %d", w.Code)
	}

	w = doJSON(t, r, "POST", "/api/data/migrate", MigrateRequest{
		Source:      storage.ModeSQLite,
		Destination: storage.ModeSQLite,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for same-backend migration, got %d", w.Code)
	}
}

func TestExportReturnsSnapshot(t *testing.T) {
	adapter := newMemAdapter()
	adapter.products[1] = domain.Product{ID: 1, Name: "Cafe", Price: 1.5}
	backends := map[storage.Mode]storage.Adapter{storage.ModeSQLite: adapter}
	r := chi.NewRouter()
	NewDataHandler(adapter, backends, migration.New(zap.NewNop()), zap.NewNop()).
		RegisterRoutes(r, func(next http.Handler) http.Handler { return next })

	w := doJSON(t, r, "GET", "/api/data/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap storage.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("snapshot decode failed: %v", err)
	}
	if len(snap.Products) != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}
