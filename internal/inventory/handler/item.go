package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/packaging"
	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/medflow/pharmacy-stock/pkg/httputil"
	"github.com/medflow/pharmacy-stock/pkg/logger"
)

// ItemHandler handles item endpoints
type ItemHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.StockService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

// ItemResponse is an item with its balance rendered in full mode.
type ItemResponse struct {
	*domain.InventoryItem
	Balance string `json:"balance"`
}

func (h *ItemHandler) respond(item *domain.InventoryItem) ItemResponse {
	return ItemResponse{InventoryItem: item, Balance: h.service.FormatBalance(item, packaging.ModeFull)}
}

// Create creates a new item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.CreateItem(r.Context(), req.item())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, h.respond(item))
}

// Get gets an item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, h.respond(item))
}

// Delete deletes an item
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// UpdateThreshold sets or clears the low-stock threshold
func (h *ItemHandler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ThresholdRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.UpdateThreshold(r.Context(), id, req.LowStockThreshold)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, h.respond(item))
}

// Balance renders the balance in the requested display mode
func (h *ItemHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	mode, err := packaging.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{"mode": err.Error()}))
		return
	}

	balance, err := h.service.Balance(r.Context(), id, mode)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, balance)
}

// VerifyLedger replays the item's ledger
func (h *ItemHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.service.VerifyLedger(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// ListUnits lists the unit catalog
func (h *ItemHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListUnits(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, units)
}
