// Package sqlite implements the storage contract on an embedded SQLite
// database. Writes are synchronous-durable: a successful create or update
// has committed before the call returns.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"tpv-haido/internal/domain"
	"tpv-haido/internal/storage"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Adapter is the embedded-database storage adapter. It implements
// storage.Adapter, storage.TableStore, storage.UserStore and
// storage.BulkStore.
type Adapter struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies pending schema
// migrations. Use ":memory:" for an in-process throwaway database.
func Open(path string) (*Adapter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// modernc's driver mishandles concurrent writers on a single file;
	// serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Adapter{db: db}, nil
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (a *Adapter) Close() error { return a.db.Close() }

// DB exposes the underlying handle for health checks.
func (a *Adapter) DB() *sql.DB { return a.db }

// ==================== Products ====================

func (a *Adapter) GetProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, name, price, category, brand, icon FROM products`)
	if err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to list products", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.Brand, &p.Icon); err != nil {
			return nil, storage.NewError(storage.ReadFailed, "failed to scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewError(storage.ReadFailed, "error iterating products", err)
	}
	return products, nil
}

func (a *Adapter) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price, category, brand, icon) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Price, p.Category, p.Brand, p.Icon,
	)
	if err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create product", err)
	}
	return nil
}

func (a *Adapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price, category, brand, icon) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price,
		 category = excluded.category, brand = excluded.brand, icon = excluded.icon`,
		p.ID, p.Name, p.Price, p.Category, p.Brand, p.Icon,
	)
	if err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update product", err)
	}
	return nil
}

func (a *Adapter) DeleteProduct(ctx context.Context, id int64) error {
	// Idempotent: zero rows affected is not an error.
	if _, err := a.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete product", err)
	}
	return nil
}

// ==================== Categories ====================

func (a *Adapter) GetCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, name, description FROM categories`)
	if err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to list categories", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, storage.NewError(storage.ReadFailed, "failed to scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewError(storage.ReadFailed, "error iterating categories", err)
	}
	return categories, nil
}

func (a *Adapter) CreateCategory(ctx context.Context, c domain.Category) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, description) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.Description,
	)
	if err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create category", err)
	}
	return nil
}

func (a *Adapter) UpdateCategory(ctx context.Context, c domain.Category) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, description) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description`,
		c.ID, c.Name, c.Description,
	)
	if err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update category", err)
	}
	return nil
}

func (a *Adapter) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete category", err)
	}
	return nil
}

// ==================== Orders ====================

const orderColumns = `id, table_number, status, items, total, item_count, date, payment_method, total_paid, change, ticket_path`

func scanOrder(rows *sql.Rows) (domain.Order, error) {
	var o domain.Order
	var status string
	var items []byte
	err := rows.Scan(&o.ID, &o.TableNumber, &status, &items, &o.Total, &o.ItemCount,
		&o.Date, &o.PaymentMethod, &o.TotalPaid, &o.Change, &o.TicketPath)
	if err != nil {
		return o, err
	}
	o.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("failed to decode order items: %w", err)
	}
	return o, nil
}

func (a *Adapter) GetOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders`)
	if err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to list orders", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storage.NewError(storage.ReadFailed, "failed to scan order", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewError(storage.ReadFailed, "error iterating orders", err)
	}
	return orders, nil
}

func execOrder(ctx context.Context, db interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, query string, o domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query,
		o.ID, o.TableNumber, string(o.Status), items, o.Total, o.ItemCount,
		o.Date, o.PaymentMethod, o.TotalPaid, o.Change, o.TicketPath,
	)
	return err
}

const insertOrderQuery = `INSERT INTO orders (` + orderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const upsertOrderQuery = insertOrderQuery + `
	ON CONFLICT(id) DO UPDATE SET table_number = excluded.table_number, status = excluded.status,
	items = excluded.items, total = excluded.total, item_count = excluded.item_count,
	date = excluded.date, payment_method = excluded.payment_method,
	total_paid = excluded.total_paid, change = excluded.change, ticket_path = excluded.ticket_path`

func (a *Adapter) CreateOrder(ctx context.Context, o domain.Order) error {
	if err := execOrder(ctx, a.db, insertOrderQuery, o); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create order", err)
	}
	return nil
}

func (a *Adapter) UpdateOrder(ctx context.Context, o domain.Order) error {
	if err := execOrder(ctx, a.db, upsertOrderQuery, o); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update order", err)
	}
	return nil
}

func (a *Adapter) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete order", err)
	}
	return nil
}

// ==================== Tables ====================

func (a *Adapter) GetTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, name, available FROM tables`)
	if err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to list tables", err)
	}
	defer rows.Close()

	tables := []domain.Table{}
	for rows.Next() {
		var t domain.Table
		if err := rows.Scan(&t.ID, &t.Name, &t.Available); err != nil {
			return nil, storage.NewError(storage.ReadFailed, "failed to scan table", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewError(storage.ReadFailed, "error iterating tables", err)
	}
	return tables, nil
}

func (a *Adapter) CreateTable(ctx context.Context, t domain.Table) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO tables (id, name, available) VALUES (?, ?, ?)`, t.ID, t.Name, t.Available)
	if err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create table", err)
	}
	return nil
}

func (a *Adapter) UpdateTable(ctx context.Context, t domain.Table) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO tables (id, name, available) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, available = excluded.available`,
		t.ID, t.Name, t.Available)
	if err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update table", err)
	}
	return nil
}

func (a *Adapter) DeleteTable(ctx context.Context, id int64) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM tables WHERE id = ?`, id); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to delete table", err)
	}
	return nil
}

// ==================== Users ====================

func (a *Adapter) GetUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, name, pin, profile_picture FROM users`)
	if err != nil {
		return nil, storage.NewError(storage.ReadFailed, "failed to list users", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.PIN, &u.ProfilePicture); err != nil {
			return nil, storage.NewError(storage.ReadFailed, "failed to scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewError(storage.ReadFailed, "error iterating users", err)
	}
	return users, nil
}

func (a *Adapter) CreateUser(ctx context.Context, u domain.User) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO users (id, name, pin, profile_picture) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.PIN, u.ProfilePicture)
	if err != nil {
		return storage.NewError(storage.WriteFailed, "failed to create user", err)
	}
	return nil
}

func (a *Adapter) UpdateUser(ctx context.Context, u domain.User) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO users (id, name, pin, profile_picture) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, pin = excluded.pin,
		 profile_picture = excluded.profile_picture`,
		u.ID, u.Name, u.PIN, u.ProfilePicture)
	if err != nil {
		return storage.NewError(storage.WriteFailed, "failed to update user", err)
	}
	return nil
}

func (a *Adapter) DeleteUser(ctx context.Context, id int64) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
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

// ImportData clears the three migratable collections and inserts the
// snapshot in a single transaction.
func (a *Adapter) ImportData(ctx context.Context, snap storage.Snapshot) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.NewError(storage.WriteFailed, "failed to begin import transaction", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"products", "categories", "orders"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return storage.NewError(storage.WriteFailed, "failed to clear "+table, err)
		}
	}

	for _, c := range snap.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, name, description) VALUES (?, ?, ?)`,
			c.ID, c.Name, c.Description); err != nil {
			return storage.NewError(storage.WriteFailed, "failed to import category", err)
		}
	}
	for _, p := range snap.Products {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products (id, name, price, category, brand, icon) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Price, p.Category, p.Brand, p.Icon); err != nil {
			return storage.NewError(storage.WriteFailed, "failed to import product", err)
		}
	}
	for _, o := range snap.Orders {
		if err := execOrder(ctx, tx, insertOrderQuery, o); err != nil {
			return storage.NewError(storage.WriteFailed, "failed to import order", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.NewError(storage.WriteFailed, "failed to commit import", err)
	}
	return nil
}

// ClearAllData removes every record from every collection in one
// transaction; it never partially clears.
func (a *Adapter) ClearAllData(ctx context.Context) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to begin clear transaction", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"products", "categories", "orders", "tables", "users"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return storage.NewError(storage.DeleteFailed, "failed to clear "+table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storage.NewError(storage.DeleteFailed, "failed to commit clear", err)
	}
	return nil
}
