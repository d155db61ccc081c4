package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/emiliopc17/redmil-crm/internal/domain/forex"
	"github.com/emiliopc17/redmil-crm/pkg/httpapi"
)

// RateService is the forex service as seen by the handler.
type RateService interface {
	CurrentRate(ctx context.Context) (*forex.Rate, error)
	Refresh(ctx context.Context) (*forex.Rate, error)
	SetManualRate(ctx context.Context, value decimal.Decimal) (*forex.Rate, error)
	History(ctx context.Context, limit int) ([]forex.Rate, error)
}

// RatesHandler serves the exchange rate.
type RatesHandler struct {
	rates  RateService
	logger *slog.Logger
}

// NewRatesHandler creates a new rates handler
func NewRatesHandler(rates RateService, logger *slog.Logger) *RatesHandler {
	return &RatesHandler{rates: rates, logger: logger}
}

// Register mounts the rate routes.
func (h *RatesHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/rates/current", h.GetCurrent)
	mux.HandleFunc("GET /v1/rates", h.ListRates)
	mux.HandleFunc("POST /v1/rates", h.SetRate)
	mux.HandleFunc("POST /v1/rates/refresh", h.RefreshRate)
}

// SetRateRequest carries a manual rate as a decimal string.
type SetRateRequest struct {
	RateValue string `json:"rate_value"`
}

// GetCurrent returns the rate imports would use right now.
func (h *RatesHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	rate, err := h.rates.CurrentRate(r.Context())
	if err != nil {
		h.logger.Error("failed to get current rate", slog.Any("error", err))
		httpapi.WriteError(w, http.StatusServiceUnavailable, "exchange rate unavailable", nil)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, rate)
}

// ListRates returns persisted rates, newest first.
func (h *RatesHandler) ListRates(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpapi.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}

	rates, err := h.rates.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list rates", slog.Any("error", err))
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to list rates", nil)
		return
	}
	if rates == nil {
		rates = []forex.Rate{}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"rates": rates})
}

// SetRate records a manual rate.
func (h *RatesHandler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req SetRateRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	value, err := decimal.NewFromString(req.RateValue)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "rate_value must be a decimal number", nil)
		return
	}

	rate, err := h.rates.SetManualRate(r.Context(), value)
	if err != nil {
		if errors.Is(err, forex.ErrInvalidRate) {
			httpapi.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		h.logger.Error("failed to set rate", slog.Any("error", err))
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to set rate", nil)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, rate)
}

// RefreshRate fetches the feed now.
func (h *RatesHandler) RefreshRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.rates.Refresh(r.Context())
	if err != nil {
		httpapi.WriteError(w, http.StatusBadGateway, err.Error(), nil)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, rate)
}
