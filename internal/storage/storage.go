// Package storage defines the backend-agnostic persistence contract the
// rest of the application programs against. Exactly one adapter is active
// at a time; the order store and transport layer receive it at
// construction time rather than reading a global.
package storage

import (
	"context"

	"tpv-haido/internal/domain"
)

// Mode selects which adapter backs the application.
type Mode string

const (
	ModeSQLite Mode = "sqlite"
	ModeHTTP   Mode = "http"
	ModeRedis  Mode = "redis"
)

// Valid reports whether m names a known storage mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeSQLite, ModeHTTP, ModeRedis:
		return true
	}
	return false
}

// Snapshot is the bulk-transfer shape used by export, import and migration.
type Snapshot struct {
	Products   []domain.Product  `json:"products"`
	Categories []domain.Category `json:"categories"`
	Orders     []domain.Order    `json:"orders"`
}

// Empty reports whether the snapshot holds no records at all.
func (s Snapshot) Empty() bool {
	return len(s.Products) == 0 && len(s.Categories) == 0 && len(s.Orders) == 0
}

// Adapter is the capability set every backend implements.
//
// Contract, identical for all backends:
//   - Create assigns/validates a unique id.
//   - Update is a full-replace upsert keyed by id.
//   - Delete is idempotent; deleting a non-existent id is not an error.
//   - Get returns the full current collection, unordered.
//
// All methods report failures as *storage.Error; they never panic across
// the boundary.
type Adapter interface {
	GetProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) error
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	GetCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c domain.Category) error
	UpdateCategory(ctx context.Context, c domain.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	GetOrders(ctx context.Context) ([]domain.Order, error)
	CreateOrder(ctx context.Context, o domain.Order) error
	UpdateOrder(ctx context.Context, o domain.Order) error
	DeleteOrder(ctx context.Context, id int64) error
}

// TableStore is the optional table persistence capability. Callers must
// feature-test with a type assertion before use.
type TableStore interface {
	GetTables(ctx context.Context) ([]domain.Table, error)
	CreateTable(ctx context.Context, t domain.Table) error
	UpdateTable(ctx context.Context, t domain.Table) error
	DeleteTable(ctx context.Context, id int64) error
}

// UserStore is the optional operator-account persistence capability.
type UserStore interface {
	GetUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, u domain.User) error
	UpdateUser(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, id int64) error
}

// Exporter is the optional bulk-read capability.
type Exporter interface {
	ExportData(ctx context.Context) (Snapshot, error)
}

// Importer is the optional bulk-write capability. A destination without it
// is still migratable: the migration service falls back to per-entity
// creates.
type Importer interface {
	ImportData(ctx context.Context, snap Snapshot) error
}

// Clearer is the optional wipe capability. Implementations must clear all
// collections atomically or report failure; a silent partial clear is not
// allowed.
type Clearer interface {
	ClearAllData(ctx context.Context) error
}

// BulkStore groups the three bulk capabilities for backends that support
// them all.
type BulkStore interface {
	Exporter
	Importer
	Clearer
}
