package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/repository"
	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/search"
	"github.com/emiliopc17/redmil-crm/pkg/httpapi"
)

// maxLimit caps any limit query parameter.
const maxLimit = 500

// ProductReader is the read side of the catalog store.
type ProductReader interface {
	GetByCode(ctx context.Context, code string) (*catalog.Entry, error)
	ListHistory(ctx context.Context, productID uuid.UUID, limit int) ([]catalog.PriceHistoryEntry, error)
}

// BrandLister lists and suggests brands.
type BrandLister interface {
	List(ctx context.Context) ([]string, error)
	Suggest(ctx context.Context, query string, limit int) ([]string, error)
}

// CatalogHandler serves product search, price history and brands.
type CatalogHandler struct {
	index  *search.Index
	store  ProductReader
	brands BrandLister
	logger *slog.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(index *search.Index, store ProductReader, brands BrandLister, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		index:  index,
		store:  store,
		brands: brands,
		logger: logger,
	}
}

// Register mounts the catalog routes.
func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/products/search", h.SearchProducts)
	mux.HandleFunc("GET /v1/products/{code}", h.GetProduct)
	mux.HandleFunc("GET /v1/products/{code}/history", h.GetPriceHistory)
	mux.HandleFunc("GET /v1/brands", h.ListBrands)
}

// SearchResponse wraps search hits.
type SearchResponse struct {
	Query string       `json:"query"`
	Brand string       `json:"brand,omitempty"`
	Hits  []search.Hit `json:"hits"`
}

// SearchProducts runs a fuzzy search over code, description and brand.
func (h *CatalogHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	brand := strings.TrimSpace(r.URL.Query().Get("brand"))

	hits, err := h.index.Search(q, brand, limit)
	if err != nil {
		h.logger.Error("product search failed", slog.String("query", q), slog.Any("error", err))
		httpapi.WriteError(w, http.StatusInternalServerError, "search failed", nil)
		return
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	httpapi.WriteJSON(w, http.StatusOK, SearchResponse{Query: q, Brand: brand, Hits: hits})
}

// GetProduct returns one catalog entry.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, entry)
}

// HistoryResponse is an entry with its price changes, newest first.
type HistoryResponse struct {
	Product *catalog.Entry              `json:"product"`
	History []catalog.PriceHistoryEntry `json:"history"`
}

// GetPriceHistory returns the price history of one product.
func (h *CatalogHandler) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}

	history, err := h.store.ListHistory(r.Context(), entry.ID, limit)
	if err != nil {
		h.logger.Error("failed to list price history",
			slog.String("product_code", entry.ProductCode),
			slog.Any("error", err))
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to list price history", nil)
		return
	}
	if history == nil {
		history = []catalog.PriceHistoryEntry{}
	}
	httpapi.WriteJSON(w, http.StatusOK, HistoryResponse{Product: entry, History: history})
}

// BrandsResponse lists brand names.
type BrandsResponse struct {
	Brands []string `json:"brands"`
}

// ListBrands returns every known brand, or suggestions for q.
func (h *CatalogHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	var (
		brands []string
		err    error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		if limit == 0 {
			limit = 10
		}
		brands, err = h.brands.Suggest(r.Context(), q, limit)
	} else {
		brands, err = h.brands.List(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list brands", slog.Any("error", err))
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to list brands", nil)
		return
	}
	if brands == nil {
		brands = []string{}
	}
	httpapi.WriteJSON(w, http.StatusOK, BrandsResponse{Brands: brands})
}

func (h *CatalogHandler) lookup(w http.ResponseWriter, r *http.Request) (*catalog.Entry, bool) {
	code := strings.TrimSpace(r.PathValue("code"))
	entry, err := h.store.GetByCode(r.Context(), code)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "product not found", map[string]string{"product_code": code})
		return nil, false
	case err != nil:
		h.logger.Error("failed to get product", slog.String("product_code", code), slog.Any("error", err))
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to get product", nil)
		return nil, false
	}
	return entry, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer", nil)
		return 0, false
	}
	return min(limit, maxLimit), true
}
