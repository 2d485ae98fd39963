// Package httpapi implements the storage contract against a remote REST
// backend: one request per CRUD call, JSON bodies, bounded timeout.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"tpv-haido/internal/domain"
	"tpv-haido/internal/storage"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds every request; calls fail rather than hang.
const DefaultTimeout = 30 * time.Second

// Adapter is the remote-API storage adapter. It implements storage.Adapter
// and storage.UserStore. It has no ImportData/ClearAllData; the migration
// service detects that and falls back to per-entity calls.
type Adapter struct {
	baseURL string
	client  *http.Client
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClient injects a custom http.Client. A desktop shell passes a client
// carrying its native transport; the default client only sets the timeout.
func WithClient(client *http.Client) Option {
	return func(a *Adapter) { a.client = client }
}

// New creates an adapter for the API rooted at baseURL (e.g.
// "http://localhost:3000/api").
func New(baseURL string, opts ...Option) *Adapter {
	a := &Adapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// request performs one HTTP round trip and decodes the response body into
// out when non-empty. An empty 2xx body (typical for DELETE) is success
// with no payload, not a decode error.
func (a *Adapter) request(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("http error: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// ==================== Products ====================

func (a *Adapter) GetProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := a.request(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to fetch products", err)
	}
	return products, nil
}

func (a *Adapter) CreateProduct(ctx context.Context, p domain.Product) error {
	if err := a.request(ctx, http.MethodPost, "/products", p, nil); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create product", err)
	}
	return nil
}

func (a *Adapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	if err := a.request(ctx, http.MethodPut, "/products/"+itoa(p.ID), p, nil); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update product", err)
	}
	return nil
}

func (a *Adapter) DeleteProduct(ctx context.Context, id int64) error {
	if err := a.request(ctx, http.MethodDelete, "/products/"+itoa(id), nil, nil); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete product", err)
	}
	return nil
}

// ==================== Categories ====================

func (a *Adapter) GetCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := a.request(ctx, http.MethodGet, "/categories", nil, &categories); err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to fetch categories", err)
	}
	return categories, nil
}

func (a *Adapter) CreateCategory(ctx context.Context, c domain.Category) error {
	if err := a.request(ctx, http.MethodPost, "/categories", c, nil); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create category", err)
	}
	return nil
}

func (a *Adapter) UpdateCategory(ctx context.Context, c domain.Category) error {
	if err := a.request(ctx, http.MethodPut, "/categories/"+itoa(c.ID), c, nil); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update category", err)
	}
	return nil
}

func (a *Adapter) DeleteCategory(ctx context.Context, id int64) error {
	if err := a.request(ctx, http.MethodDelete, "/categories/"+itoa(id), nil, nil); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete category", err)
	}
	return nil
}

// ==================== Orders ====================

func (a *Adapter) GetOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := a.request(ctx, http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to fetch orders", err)
	}
	return orders, nil
}

func (a *Adapter) CreateOrder(ctx context.Context, o domain.Order) error {
	if err := a.request(ctx, http.MethodPost, "/orders", o, nil); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create order", err)
	}
	return nil
}

func (a *Adapter) UpdateOrder(ctx context.Context, o domain.Order) error {
	if err := a.request(ctx, http.MethodPut, "/orders/"+itoa(o.ID), o, nil); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update order", err)
	}
	return nil
}

func (a *Adapter) DeleteOrder(ctx context.Context, id int64) error {
	if err := a.request(ctx, http.MethodDelete, "/orders/"+itoa(id), nil, nil); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete order", err)
	}
	return nil
}

// ==================== Users ====================

func (a *Adapter) GetUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := a.request(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to fetch users", err)
	}
	return users, nil
}

func (a *Adapter) CreateUser(ctx context.Context, u domain.User) error {
	if err := a.request(ctx, http.MethodPost, "/users", u, nil); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create user", err)
	}
	return nil
}

func (a *Adapter) UpdateUser(ctx context.Context, u domain.User) error {
	if err := a.request(ctx, http.MethodPut, "/users/"+itoa(u.ID), u, nil); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update user", err)
	}
	return nil
}

func (a *Adapter) DeleteUser(ctx context.Context, id int64) error {
	if err := a.request(ctx, http.MethodDelete, "/users/"+itoa(id), nil, nil); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete user", err)
	}
	return nil
}

// ==================== Bulk ====================

// ExportData synthesizes a snapshot client-side: the three collection
// fetches run concurrently, and an entity type whose fetch fails exports
// as empty instead of failing the snapshot as a whole.
func (a *Adapter) ExportData(ctx context.Context) (storage.Snapshot, error) {
	snap := storage.Snapshot{
		Products:   []domain.Product{},
		Categories: []domain.Category{},
		Orders:     []domain.Order{},
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if products, err := a.GetProducts(ctx); err == nil {
			snap.Products = products
		}
		return nil
	})
	g.Go(func() error {
		if categories, err := a.GetCategories(ctx); err == nil {
			snap.Categories = categories
		}
		return nil
	})
	g.Go(func() error {
		if orders, err := a.GetOrders(ctx); err == nil {
			snap.Orders = orders
		}
		return nil
	})
	g.Wait()

	return snap, nil
}
