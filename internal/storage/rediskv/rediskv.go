// Package rediskv implements the storage contract on a Redis key-value
// store: one hash per collection keyed by entity id, plus secondary index
// sets on order status and table number. The indexes are maintained on
// every write even though no caller range-queries them yet.
package rediskv

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"tpv-haido/internal/domain"
	"tpv-haido/internal/storage"

	"github.com/redis/go-redis/v9"
)

const (
	keyProducts   = "tpv:products"
	keyCategories = "tpv:categories"
	keyOrders     = "tpv:orders"
	keyTables     = "tpv:tables"
	keyUsers      = "tpv:users"
	keySchema     = "tpv:schema_version"

	schemaVersion = "1"
)

func statusKey(s domain.OrderStatus) string { return "tpv:orders:status:" + string(s) }
func tableKey(n int64) string               { return "tpv:orders:table:" + strconv.FormatInt(n, 10) }

// Adapter is the key-value storage adapter. It implements storage.Adapter,
// storage.TableStore, storage.UserStore and storage.BulkStore.
type Adapter struct {
	client *redis.Client

	initOnce sync.Once
	initErr  error
}

// New creates an adapter on the given client. The store is opened lazily:
// the first operation pings the server and stamps the schema version, and
// every operation waits for that to have happened.
func New(client *redis.Client) *Adapter {
	return &Adapter{client: client}
}

// ensure performs the lazy, idempotent initialization.
func (a *Adapter) ensure(ctx context.Context) error {
	a.initOnce.Do(func() {
		if err := a.client.Ping(ctx).Err(); err != nil {
			a.initErr = err
			return
		}
		// SetNX so only the first-ever open writes the schema stamp.
		a.initErr = a.client.SetNX(ctx, keySchema, schemaVersion, 0).Err()
	})
	return a.initErr
}

// getAll decodes every field of a collection hash.
func getAll[T any](ctx context.Context, a *Adapter, key string) ([]T, error) {
	if err := a.ensure(ctx); err != nil {
		return nil, err
	}
	fields, err := a.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := []T{}
	for _, raw := range fields {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (a *Adapter) create(ctx context.Context, key string, id int64, v any) error {
	if err := a.ensure(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	set, err := a.client.HSetNX(ctx, key, strconv.FormatInt(id, 10), raw).Result()
	if err != nil {
		return err
	}
	if !set {
		return errors.New("id already exists")
	}
	return nil
}

func (a *Adapter) upsert(ctx context.Context, key string, id int64, v any) error {
	if err := a.ensure(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return a.client.HSet(ctx, key, strconv.FormatInt(id, 10), raw).Err()
}

func (a *Adapter) remove(ctx context.Context, key string, id int64) error {
	if err := a.ensure(ctx); err != nil {
		return err
	}
	// HDel of a missing field is a no-op, which keeps delete idempotent.
	return a.client.HDel(ctx, key, strconv.FormatInt(id, 10)).Err()
}

// ==================== Products ====================

func (a *Adapter) GetProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := getAll[domain.Product](ctx, a, keyProducts)
	if err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to fetch products", err)
	}
	return products, nil
}

func (a *Adapter) CreateProduct(ctx context.Context, p domain.Product) error {
	if err := a.create(ctx, keyProducts, p.ID, p); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create product", err)
	}
	return nil
}

func (a *Adapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	if err := a.upsert(ctx, keyProducts, p.ID, p); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update product", err)
	}
	return nil
}

func (a *Adapter) DeleteProduct(ctx context.Context, id int64) error {
	if err := a.remove(ctx, keyProducts, id); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete product", err)
	}
	return nil
}

// ==================== Categories ====================

func (a *Adapter) GetCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := getAll[domain.Category](ctx, a, keyCategories)
	if err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to fetch categories", err)
	}
	return categories, nil
}

func (a *Adapter) CreateCategory(ctx context.Context, c domain.Category) error {
	if err := a.create(ctx, keyCategories, c.ID, c); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create category", err)
	}
	return nil
}

func (a *Adapter) UpdateCategory(ctx context.Context, c domain.Category) error {
	if err := a.upsert(ctx, keyCategories, c.ID, c); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update category", err)
	}
	return nil
}

func (a *Adapter) DeleteCategory(ctx context.Context, id int64) error {
	if err := a.remove(ctx, keyCategories, id); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete category", err)
	}
	return nil
}

// ==================== Orders ====================

func (a *Adapter) GetOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := getAll[domain.Order](ctx, a, keyOrders)
	if err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to fetch orders", err)
	}
	return orders, nil
}

// loadOrder fetches the stored copy of an order, or nil when absent.
func (a *Adapter) loadOrder(ctx context.Context, id int64) (*domain.Order, error) {
	raw, err := a.client.HGet(ctx, keyOrders, strconv.FormatInt(id, 10)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var o domain.Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// writeOrder stores the order and settles both index sets in one
// transaction, removing the entries for the previous copy when it moved.
func (a *Adapter) writeOrder(ctx context.Context, o domain.Order, prev *domain.Order, createOnly bool) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	field := strconv.FormatInt(o.ID, 10)

	if createOnly {
		set, err := a.client.HSetNX(ctx, keyOrders, field, raw).Result()
		if err != nil {
			return err
		}
		if !set {
			return errors.New("id already exists")
		}
	}

	pipe := a.client.TxPipeline()
	if !createOnly {
		pipe.HSet(ctx, keyOrders, field, raw)
	}
	if prev != nil {
		if prev.Status != o.Status {
			pipe.SRem(ctx, statusKey(prev.Status), field)
		}
		if prev.TableNumber != o.TableNumber {
			pipe.SRem(ctx, tableKey(prev.TableNumber), field)
		}
	}
	pipe.SAdd(ctx, statusKey(o.Status), field)
	pipe.SAdd(ctx, tableKey(o.TableNumber), field)
	_, err = pipe.Exec(ctx)
	return err
}

func (a *Adapter) CreateOrder(ctx context.Context, o domain.Order) error {
	if err := a.ensure(ctx); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create order", err)
	}
	if err := a.writeOrder(ctx, o, nil, true); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create order", err)
	}
	return nil
}

func (a *Adapter) UpdateOrder(ctx context.Context, o domain.Order) error {
	if err := a.ensure(ctx); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update order", err)
	}
	prev, err := a.loadOrder(ctx, o.ID)
	if err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update order", err)
	}
	if err := a.writeOrder(ctx, o, prev, false); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update order", err)
	}
	return nil
}

func (a *Adapter) DeleteOrder(ctx context.Context, id int64) error {
	if err := a.ensure(ctx); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete order", err)
	}
	prev, err := a.loadOrder(ctx, id)
	if err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete order", err)
	}
	if prev == nil {
		return nil
	}
	field := strconv.FormatInt(id, 10)
	pipe := a.client.TxPipeline()
	pipe.HDel(ctx, keyOrders, field)
	pipe.SRem(ctx, statusKey(prev.Status), field)
	pipe.SRem(ctx, tableKey(prev.TableNumber), field)
	if _, err := pipe.Exec(ctx); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete order", err)
	}
	return nil
}

// ==================== Tables ====================

func (a *Adapter) GetTables(ctx context.Context) ([]domain.Table, error) {
	tables, err := getAll[domain.Table](ctx, a, keyTables)
	if err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to fetch tables", err)
	}
	return tables, nil
}

func (a *Adapter) CreateTable(ctx context.Context, t domain.Table) error {
	if err := a.create(ctx, keyTables, t.ID, t); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create table", err)
	}
	return nil
}

func (a *Adapter) UpdateTable(ctx context.Context, t domain.Table) error {
	if err := a.upsert(ctx, keyTables, t.ID, t); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update table", err)
	}
	return nil
}

func (a *Adapter) DeleteTable(ctx context.Context, id int64) error {
	if err := a.remove(ctx, keyTables, id); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete table", err)
	}
	return nil
}

// ==================== Users ====================

func (a *Adapter) GetUsers(ctx context.Context) ([]domain.User, error) {
	users, err := getAll[domain.User](ctx, a, keyUsers)
	if err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to fetch users", err)
	}
	return users, nil
}

func (a *Adapter) CreateUser(ctx context.Context, u domain.User) error {
	if err := a.create(ctx, keyUsers, u.ID, u); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create user", err)
	}
	return nil
}

func (a *Adapter) UpdateUser(ctx context.Context, u domain.User) error {
	if err := a.upsert(ctx, keyUsers, u.ID, u); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update user", err)
	}
	return nil
}

func (a *Adapter) DeleteUser(ctx context.Context, id int64) error {
	if err := a.remove(ctx, keyUsers, id); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete user", err)
	}
	return nil
}

// ==================== Bulk ====================

func (a *Adapter) ExportData(ctx context.Context) (storage.Snapshot, error) {
	var snap storage.Snapshot
	var err error

	if snap.Products, err = a.GetProducts(ctx); err != nil {
		return storage.Snapshot{}, err
	}
	if snap.Categories, err = a.GetCategories(ctx); err != nil {
		return storage.Snapshot{}, err
	}
	if snap.Orders, err = a.GetOrders(ctx); err != nil {
		return storage.Snapshot{}, err
	}
	return snap, nil
}

// ImportData clears everything, then inserts every record. Individual
// insert failures do not stop the batch, but the aggregate error reflects
// them so the caller can observe the partial import.
func (a *Adapter) ImportData(ctx context.Context, snap storage.Snapshot) error {
	if err := a.ClearAllData(ctx); err != nil {
		return err
	}

	var failures []error
	for _, c := range snap.Categories {
		if err := a.CreateCategory(ctx, c); err != nil {
			failures = append(failures, err)
		}
	}
	for _, p := range snap.Products {
		if err := a.CreateProduct(ctx, p); err != nil {
			failures = append(failures, err)
		}
	}
	for _, o := range snap.Orders {
		if err := a.CreateOrder(ctx, o); err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return storage.NewError(storage.WriteFailed, "import completed with failures", errors.Join(failures...))
	}
	return nil
}

// ClearAllData deletes every collection hash and every index key in a
// single MULTI/EXEC, so a clear either applies wholly or reports failure.
func (a *Adapter) ClearAllData(ctx context.Context) error {
	if err := a.ensure(ctx); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to clear data", err)
	}

	indexKeys, err := a.client.Keys(ctx, "tpv:orders:status:*").Result()
	if err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to enumerate index keys", err)
	}
	tableKeys, err := a.client.Keys(ctx, "tpv:orders:table:*").Result()
	if err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to enumerate index keys", err)
	}

	keys := append([]string{keyProducts, keyCategories, keyOrders, keyTables, keyUsers}, indexKeys...)
	keys = append(keys, tableKeys...)

	pipe := a.client.TxPipeline()
	pipe.Del(ctx, keys...)
	if _, err := pipe.Exec(ctx); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to clear data", err)
	}
	return nil
}
