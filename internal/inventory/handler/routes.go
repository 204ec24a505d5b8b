// Package handler exposes the inventory core over HTTP.
package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/medflow/pharmacy-stock/pkg/logger"
)

// Mount registers the inventory API under /api/v1/inventory.
func Mount(r chi.Router, svc *service.StockService, log *logger.Logger) {
	itemHandler := NewItemHandler(svc, log)
	stockHandler := NewStockHandler(svc, log)
	alertHandler := NewAlertHandler(svc, log)

	r.Route("/api/v1/inventory", func(r chi.Router) {
		// Item routes
		r.Route("/items", func(r chi.Router) {
			r.Post("/", itemHandler.Create)
			r.Get("/{id}", itemHandler.Get)
			r.Delete("/{id}", itemHandler.Delete)
			r.Put("/{id}/threshold", itemHandler.UpdateThreshold)
			r.Get("/{id}/balance", itemHandler.Balance)
			r.Get("/{id}/ledger/verify", itemHandler.VerifyLedger)
			r.Post("/{id}/stock/add", stockHandler.Add)
			r.Post("/{id}/stock/reduce", stockHandler.Reduce)
		})

		r.Get("/movements", stockHandler.ListMovements)
		r.Get("/alerts", alertHandler.List)
		r.Get("/units", itemHandler.ListUnits)
	})
}
