// Package transport exposes the storage contract over HTTP. The routes
// mirror what the http storage adapter consumes, so one instance can act
// as the remote backend for another.
package transport

import (
	"net/http"
	"strconv"

	"tpv-haido/internal/domain"
	"tpv-haido/internal/middleware"
	"tpv-haido/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductRequest is the create/update payload for products.
type ProductRequest struct {
	ID       int64   `json:"id" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Category string  `json:"category"`
	Brand    string  `json:"brand"`
	Icon     string  `json:"icon"`
}

// CategoryRequest is the create/update payload for categories.
type CategoryRequest struct {
	ID          int64  `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// CatalogHandler handles HTTP requests for products and categories.
type CatalogHandler struct {
	adapter storage.Adapter
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(adapter storage.Adapter, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{adapter: adapter, logger: logger}
}

// RegisterRoutes registers the catalog routes.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Put("/{id}", h.UpdateProduct)
		r.Delete("/{id}", h.DeleteProduct)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Post("/", h.CreateCategory)
		r.Put("/{id}", h.UpdateCategory)
		r.Delete("/{id}", h.DeleteCategory)
	})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// decodeOrReject decodes and validates the payload, writing the error
// response itself. Returns false when the request was rejected.
func (h *CatalogHandler) decodeOrReject(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		h.logger.Debug("Request validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondStorageError(w http.ResponseWriter, logger *zap.Logger, action string, err error) {
	logger.Error("Storage operation failed", zap.String("action", action), zap.Error(err))
	status := http.StatusInternalServerError
	if storage.CodeOf(err) == storage.ReadFailed {
		status = http.StatusBadGateway
	}
	middleware.RespondWithError(w, status, action+" failed")
}

// ListProducts returns the full product collection.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.adapter.GetProducts(r.Context())
	if err != nil {
		respondStorageError(w, h.logger, "load products", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// CreateProduct creates a product.
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	product := domain.Product{
		ID:       req.ID,
		Name:     req.Name,
		Price:    req.Price,
		Category: req.Category,
		Brand:    req.Brand,
		Icon:     req.Icon,
	}
	if err := h.adapter.CreateProduct(r.Context(), product); err != nil {
		respondStorageError(w, h.logger, "create product", err)
		return
	}

	h.logger.Info("Product created", zap.Int64("id", product.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct replaces a product.
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req ProductRequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	product := domain.Product{
		ID:       id,
		Name:     req.Name,
		Price:    req.Price,
		Category: req.Category,
		Brand:    req.Brand,
		Icon:     req.Icon,
	}
	if err := h.adapter.UpdateProduct(r.Context(), product); err != nil {
		respondStorageError(w, h.logger, "update product", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct deletes a product. Deleting an unknown id succeeds.
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := h.adapter.DeleteProduct(r.Context(), id); err != nil {
		respondStorageError(w, h.logger, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories returns the full category collection.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.adapter.GetCategories(r.Context())
	if err != nil {
		respondStorageError(w, h.logger, "load categories", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// CreateCategory creates a category.
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	category := domain.Category{ID: req.ID, Name: req.Name, Description: req.Description}
	if err := h.adapter.CreateCategory(r.Context(), category); err != nil {
		respondStorageError(w, h.logger, "create category", err)
		return
	}

	h.logger.Info("Category created", zap.Int64("id", category.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

// UpdateCategory replaces a category.
func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req CategoryRequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	category := domain.Category{ID: id, Name: req.Name, Description: req.Description}
	if err := h.adapter.UpdateCategory(r.Context(), category); err != nil {
		respondStorageError(w, h.logger, "update category", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

// DeleteCategory deletes a category. Deleting an unknown id succeeds.
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := h.adapter.DeleteCategory(r.Context(), id); err != nil {
		respondStorageError(w, h.logger, "delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
