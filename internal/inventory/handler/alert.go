package handler

import (
	"net/http"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/medflow/pharmacy-stock/pkg/httputil"
	"github.com/medflow/pharmacy-stock/pkg/logger"
)

// AlertHandler handles alert endpoints
type AlertHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc *service.StockService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

// List lists alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r, service.DefaultPerPage, service.MaxPerPage)
	q := r.URL.Query()

	result, err := h.service.ListAlerts(r.Context(), domain.AlertFilter{
		ItemID:  q.Get("item_id"),
		Kind:    domain.AlertKind(q.Get("kind")),
		Status:  domain.AlertStatus(q.Get("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, result.Alerts, httputil.NewMeta(result.Page, result.PerPage, result.Total))
}
