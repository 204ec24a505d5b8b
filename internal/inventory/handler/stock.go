package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/medflow/pharmacy-stock/pkg/httputil"
	"github.com/medflow/pharmacy-stock/pkg/logger"
)

// StockHandler handles stock movement endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// Add records incoming stock
func (h *StockHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.service.AddStock)
}

// Reduce records outgoing stock
func (h *StockHandler) Reduce(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.service.ReduceStock)
}

type movementFunc func(ctx context.Context, in service.StockInput) (*service.MovementResult, error)

func (h *StockHandler) move(w http.ResponseWriter, r *http.Request, fn movementFunc) {
	var req StockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	in, err := req.input(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := fn(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, res)
}

// ListMovements lists ledger entries
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r, service.DefaultPerPage, service.MaxPerPage)
	q := r.URL.Query()

	result, err := h.service.ListMovements(r.Context(), domain.MovementFilter{
		ItemID:        q.Get("item_id"),
		OperationType: domain.OperationType(q.Get("operation_type")),
		Search:        q.Get("search"),
		Sort:          domain.SortDirection(q.Get("sort")),
		Page:          page,
		PerPage:       perPage,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, result.Entries, httputil.NewMeta(result.Page, result.PerPage, result.Total))
}
