package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/emiliopc17/redmil-crm/internal/domain/forex"
	"github.com/emiliopc17/redmil-crm/internal/domain/import/parser"
	importservice "github.com/emiliopc17/redmil-crm/internal/domain/import/service"
	"github.com/emiliopc17/redmil-crm/pkg/httpapi"
)

// DefaultMaxUploadBytes bounds an uploaded price list.
const DefaultMaxUploadBytes = 32 << 20

// Importer is the import service as seen by the handler.
type Importer interface {
	Import(ctx context.Context, data []byte, filename string, opts importservice.ImportOptions) (*importservice.ImportResult, error)
}

// ImportHandler serves price-list uploads.
type ImportHandler struct {
	importSvc Importer
	maxBytes  int64
	logger    *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc Importer, maxBytes int64, logger *slog.Logger) *ImportHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ImportHandler{
		importSvc: importSvc,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// Register mounts the import routes.
func (h *ImportHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/imports", h.Import)
	mux.HandleFunc("POST /v1/imports/preview", h.Preview)
}

// Import ingests the uploaded file and merges it into the catalog.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, false)
}

// Preview extracts and prices the uploaded file without saving anything.
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, true)
}

func (h *ImportHandler) handle(w http.ResponseWriter, r *http.Request, dryRun bool) {
	if r.ContentLength > h.maxBytes {
		httpapi.WriteError(w, http.StatusRequestEntityTooLarge, "file too large", nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpapi.WriteError(w, http.StatusRequestEntityTooLarge, "file too large", nil)
			return
		}
		httpapi.WriteError(w, http.StatusBadRequest, "expected a multipart form with a file field", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "missing file field", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "failed to read upload", nil)
		return
	}

	opts := importservice.ImportOptions{
		BrandOverride: r.FormValue("brand_override"),
		ChangedBy:     r.FormValue("changed_by"),
		DryRun:        dryRun,
	}

	result, err := h.importSvc.Import(r.Context(), data, header.Filename, opts)
	if err != nil {
		h.writeImportError(w, header.Filename, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) writeImportError(w http.ResponseWriter, filename string, err error) {
	var schema *parser.SchemaUnresolvedError
	switch {
	case errors.As(err, &schema):
		httpapi.WriteError(w, http.StatusUnprocessableEntity, err.Error(), map[string]any{
			"missing": schema.Missing,
			"headers": schema.Headers,
		})
	case errors.Is(err, parser.ErrUnsupportedFormat):
		httpapi.WriteError(w, http.StatusUnsupportedMediaType, err.Error(), nil)
	case importservice.IsInputError(err):
		httpapi.WriteError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, parser.ErrPDFToolNotFound):
		httpapi.WriteError(w, http.StatusServiceUnavailable, parser.InstallInstructions(), nil)
	case errors.Is(err, forex.ErrRateUnavailable), errors.Is(err, forex.ErrInvalidRate):
		httpapi.WriteError(w, http.StatusServiceUnavailable, "exchange rate unavailable", nil)
	default:
		h.logger.Error("import failed", slog.String("filename", filename), slog.Any("error", err))
		httpapi.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("import of %s failed", filename), nil)
	}
}
