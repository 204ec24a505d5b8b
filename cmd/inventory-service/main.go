package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medflow/pharmacy-stock/internal/inventory/consumers"
	"github.com/medflow/pharmacy-stock/internal/inventory/events"
	"github.com/medflow/pharmacy-stock/internal/inventory/handler"
	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/medflow/pharmacy-stock/internal/inventory/storage"
	"github.com/medflow/pharmacy-stock/pkg/config"
	"github.com/medflow/pharmacy-stock/pkg/httputil"
	"github.com/medflow/pharmacy-stock/pkg/logger"
	"github.com/medflow/pharmacy-stock/pkg/messaging"
)

const serviceName = "inventory-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment).WithLevel(cfg.Log.Level)
	log.Info().Str("driver", cfg.Database.Driver).Str("alerts_mode", cfg.Alerts.Mode).Msg("starting Inventory Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := storage.Open(ctx, &cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()
	stores := store.Stores

	// Messaging is optional; without it activity and events are not reported.
	var (
		rmq       *messaging.RabbitMQ
		activity  service.ActivityRecorder
		publisher service.EventPublisher
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		p, err := events.NewInventoryEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		activity, publisher = p, p
	}

	// Initialize services
	monitor := service.NewMonitor(stores.Alerts, service.SystemClock, log)
	ledger := service.NewLedger(stores, monitor, service.SystemClock, service.NewLedgerConfig(cfg.Ledger, cfg.Alerts), log)
	auditor := service.NewLedgerAuditor(stores, log)
	stockService := service.NewStockService(stores, ledger, monitor, auditor, activity, publisher, service.SystemClock, log)

	if cfg.Alerts.Mode == config.AlertModeAsync {
		stockConsumer, err := consumers.NewStockEventConsumer(rmq, cfg.Alerts.Queue, stockService, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create stock event consumer")
		}
		if err := stockConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start stock event consumer")
		}
	}

	sweeper := service.NewSweeper(stockService, cfg.Alerts.SweepInterval, log)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", httputil.HeaderRequestID, httputil.HeaderUserID, httputil.HeaderUserName, httputil.HeaderUserEmail},
		ExposedHeaders:   []string{httputil.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Actor)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": store.Health(r.Context()),
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	// API routes
	handler.Mount(r, stockService, log)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers and the sweeper
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
