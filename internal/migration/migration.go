// Package migration moves bulk data between storage backends. It always
// operates on an explicit (source, destination) adapter pair, never on the
// globally-active adapter: which backend the app uses and which backends
// are being migrated are independent choices.
package migration

import (
	"context"
	"fmt"

	"tpv-haido/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Counts summarizes how many records of each entity a snapshot held.
type Counts struct {
	Products   int `json:"products"`
	Categories int `json:"categories"`
	Orders     int `json:"orders"`
}

func countsOf(snap storage.Snapshot) Counts {
	return Counts{
		Products:   len(snap.Products),
		Categories: len(snap.Categories),
		Orders:     len(snap.Orders),
	}
}

// RecordOutcome is the result of one per-record operation during a
// fallback migration or clear. Callers decide their own failure policy
// from the list; the service itself never aborts on a single record.
type RecordOutcome struct {
	Entity string
	ID     int64
	Err    error
}

// Report summarizes a migration. Counts reflect the source snapshot (what
// was attempted), not necessarily what landed on the destination in the
// fallback path.
type Report struct {
	Message  string
	Counts   Counts
	Outcomes []RecordOutcome
}

// Failed returns the outcomes that carry an error.
func (r Report) Failed() []RecordOutcome {
	var failed []RecordOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Service migrates data between adapters.
type Service struct {
	logger *zap.Logger
}

// New creates a migration service.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Migrate copies everything from src to dst. The source export failing
// aborts the whole operation with the underlying error; an empty source is
// a valid zero-count migration, not a failure. A destination with bulk
// import gets the whole snapshot at once; otherwise records are created
// one by one (categories first, so the name references products carry are
// coherent on arrival), and individual failures are logged and reported
// without stopping the batch.
func (s *Service) Migrate(ctx context.Context, src, dst storage.Adapter) (Report, error) {
	exporter, ok := src.(storage.Exporter)
	if !ok {
		return Report{}, fmt.Errorf("source backend does not support export")
	}

	snap, err := exporter.ExportData(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("export failed: %w", err)
	}

	counts := countsOf(snap)
	if snap.Empty() {
		return Report{Message: "no data to migrate", Counts: counts}, nil
	}

	if importer, ok := dst.(storage.Importer); ok {
		if err := importer.ImportData(ctx, snap); err != nil {
			return Report{Counts: counts}, fmt.Errorf("import failed: %w", err)
		}
		return Report{Message: s.summary(counts), Counts: counts}, nil
	}

	report := Report{Counts: counts}
	for _, c := range snap.Categories {
		err := dst.CreateCategory(ctx, c)
		s.record(&report, "category", c.ID, err)
	}
	for _, p := range snap.Products {
		err := dst.CreateProduct(ctx, p)
		s.record(&report, "product", p.ID, err)
	}
	for _, o := range snap.Orders {
		err := dst.CreateOrder(ctx, o)
		s.record(&report, "order", o.ID, err)
	}
	report.Message = s.summary(counts)
	return report, nil
}

func (s *Service) record(report *Report, entity string, id int64, err error) {
	report.Outcomes = append(report.Outcomes, RecordOutcome{Entity: entity, ID: id, Err: err})
	if err != nil {
		s.logger.Warn("Record migration failed",
			zap.String("entity", entity),
			zap.Int64("id", id),
			zap.Error(err),
		)
	}
}

func (s *Service) summary(c Counts) string {
	return fmt.Sprintf("migration completed: %d products, %d categories, %d orders",
		c.Products, c.Categories, c.Orders)
}

// Probe checks a backend with a single no-op read.
func (s *Service) Probe(ctx context.Context, adapter storage.Adapter) bool {
	if _, err := adapter.GetProducts(ctx); err != nil {
		s.logger.Warn("Backend probe failed", zap.Error(err))
		return false
	}
	return true
}

// Stats counts records on two backends by exporting both in parallel. A
// side that fails to export counts as zero rather than failing the
// comparison.
func (s *Service) Stats(ctx context.Context, a, b storage.Adapter) (Counts, Counts) {
	var left, right Counts

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		left = s.Count(ctx, a)
		return nil
	})
	g.Go(func() error {
		right = s.Count(ctx, b)
		return nil
	})
	g.Wait()

	return left, right
}

// Count reports record counts on one backend, zero when it cannot export.
func (s *Service) Count(ctx context.Context, adapter storage.Adapter) Counts {
	exporter, ok := adapter.(storage.Exporter)
	if !ok {
		return Counts{}
	}
	snap, err := exporter.ExportData(ctx)
	if err != nil {
		s.logger.Warn("Stats export failed", zap.Error(err))
		return Counts{}
	}
	return countsOf(snap)
}

// ClearData wipes a backend: natively when it supports ClearAllData,
// otherwise by exporting and deleting record by record (best effort, with
// per-record outcomes).
func (s *Service) ClearData(ctx context.Context, adapter storage.Adapter) (Report, error) {
	if clearer, ok := adapter.(storage.Clearer); ok {
		if err := clearer.ClearAllData(ctx); err != nil {
			return Report{}, fmt.Errorf("clear failed: %w", err)
		}
		return Report{Message: "all data cleared"}, nil
	}

	exporter, ok := adapter.(storage.Exporter)
	if !ok {
		return Report{}, fmt.Errorf("backend supports neither clear nor export")
	}
	snap, err := exporter.ExportData(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("export failed: %w", err)
	}

	report := Report{Counts: countsOf(snap)}
	for _, p := range snap.Products {
		err := adapter.DeleteProduct(ctx, p.ID)
		s.record(&report, "product", p.ID, err)
	}
	for _, c := range snap.Categories {
		err := adapter.DeleteCategory(ctx, c.ID)
		s.record(&report, "category", c.ID, err)
	}
	for _, o := range snap.Orders {
		err := adapter.DeleteOrder(ctx, o.ID)
		s.record(&report, "order", o.ID, err)
	}
	report.Message = "all data cleared"
	return report, nil
}
