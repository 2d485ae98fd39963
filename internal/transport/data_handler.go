package transport

import (
	"net/http"

	"tpv-haido/internal/middleware"
	"tpv-haido/internal/migration"
	"tpv-haido/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DataHandler handles bulk data operations: export, import, wipe and
// migration between configured backends.
type DataHandler struct {
	adapter  storage.Adapter
	backends map[storage.Mode]storage.Adapter
	migrator *migration.Service
	logger   *zap.Logger
}

// NewDataHandler creates a new DataHandler. backends maps every configured
// mode to its adapter so migrations can address them by name.
func NewDataHandler(adapter storage.Adapter, backends map[storage.Mode]storage.Adapter, migrator *migration.Service, logger *zap.Logger) *DataHandler {
	return &DataHandler{
		adapter:  adapter,
		backends: backends,
		migrator: migrator,
		logger:   logger,
	}
}

// RegisterRoutes registers the bulk data routes. Clearing and migrating
// whole backends is destructive, so the group sits behind operator auth.
func (h *DataHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/data", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
		r.Post("/clear", h.Clear)
		r.Post("/migrate", h.Migrate)
		r.Get("/stats", h.Stats)
	})
}

// MigrateRequest names the two backends of a migration.
type MigrateRequest struct {
	Source      storage.Mode `json:"source" validate:"required"`
	Destination storage.Mode `json:"destination" validate:"required"`
}

// MigrateResponse reports a finished migration.
type MigrateResponse struct {
	Message string           `json:"message"`
	Counts  migration.Counts `json:"counts"`
	Failed  int              `json:"failed"`
}

// Export returns a full snapshot of the active backend.
func (h *DataHandler) Export(w http.ResponseWriter, r *http.Request) {
	exporter, ok := h.adapter.(storage.Exporter)
	if !ok {
		middleware.RespondWithError(w, http.StatusNotImplemented, "active backend does not support export")
		return
	}
	snap, err := exporter.ExportData(r.Context())
	if err != nil {
		respondStorageError(w, h.logger, "export", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, snap)
}

// Import replaces the active backend's data with the posted snapshot.
func (h *DataHandler) Import(w http.ResponseWriter, r *http.Request) {
	importer, ok := h.adapter.(storage.Importer)
	if !ok {
		middleware.RespondWithError(w, http.StatusNotImplemented, "active backend does not support import")
		return
	}

	var snap storage.Snapshot
	if err := middleware.DecodeAndValidate(r, &snap); err != nil {
		h.logger.Debug("Import decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := importer.ImportData(r.Context(), snap); err != nil {
		respondStorageError(w, h.logger, "import", err)
		return
	}

	h.logger.Info("Data imported",
		zap.Int("products", len(snap.Products)),
		zap.Int("categories", len(snap.Categories)),
		zap.Int("orders", len(snap.Orders)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "import completed"})
}

// Clear wipes the active backend.
func (h *DataHandler) Clear(w http.ResponseWriter, r *http.Request) {
	report, err := h.migrator.ClearData(r.Context(), h.adapter)
	if err != nil {
		respondStorageError(w, h.logger, "clear", err)
		return
	}
	h.logger.Info("Data cleared", zap.Int("failed_records", len(report.Failed())))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": report.Message})
}

// Migrate copies all data from one configured backend to another.
func (h *DataHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	var req MigrateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Migrate decode failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	src, ok := h.backends[req.Source]
	if !ok {
		middleware.RespondWithError(w, http.StatusBadRequest, "unknown source backend")
		return
	}
	dst, ok := h.backends[req.Destination]
	if !ok {
		middleware.RespondWithError(w, http.StatusBadRequest, "unknown destination backend")
		return
	}
	if req.Source == req.Destination {
		middleware.RespondWithError(w, http.StatusBadRequest, "source and destination are the same backend")
		return
	}

	report, err := h.migrator.Migrate(r.Context(), src, dst)
	if err != nil {
		h.logger.Error("Migration failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, MigrateResponse{
		Message: report.Message,
		Counts:  report.Counts,
		Failed:  len(report.Failed()),
	})
}

// Stats reports record counts for every configured backend.
func (h *DataHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[storage.Mode]migration.Counts, len(h.backends))
	for mode, adapter := range h.backends {
		stats[mode] = h.migrator.Count(r.Context(), adapter)
	}
	middleware.RespondWithJSON(w, http.StatusOK, stats)
}
