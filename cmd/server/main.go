package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/retailanalytics/internal/config"
	"github.com/rpattn/retailanalytics/internal/db"
	"github.com/rpattn/retailanalytics/internal/ingestion"
	"github.com/rpattn/retailanalytics/internal/logging"
	"github.com/rpattn/retailanalytics/internal/metrics"
	"github.com/rpattn/retailanalytics/internal/middleware"
	"github.com/rpattn/retailanalytics/internal/report"
	"github.com/rpattn/retailanalytics/internal/repository"
	"github.com/rpattn/retailanalytics/internal/repository/duckdb"
	"github.com/rpattn/retailanalytics/internal/repository/memory"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	handler := newRouter(cfg, store, logger, m)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("store", cfg.Store.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

// openStore opens the configured store. The Postgres schema is migrated
// before the pool is handed out.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if err := db.RunMigrations(cfg.Database, logger); err != nil {
			return nil, err
		}
		conn, err := db.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresStore(conn), nil
	case config.DriverDuckDB:
		return duckdb.Open(ctx, cfg.Store.DuckDBPath, logger)
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newRouter(cfg config.Config, store repository.Store, logger *zap.Logger, m *metrics.Metrics) http.Handler {
	reports := report.NewService(store, report.Config{
		CacheTTL:        cfg.Reports.CacheTTL,
		CacheSize:       cfg.Reports.CacheSize,
		DefaultSupplier: cfg.Reports.DefaultSupplier,
	}, report.WithLogger(logger), report.WithMetrics(m))

	ingest := ingestion.NewService(ingestion.Repositories{
		Staging:   store,
		Promotion: store,
		Errors:    store,
	},
		ingestion.WithLogger(logger),
		ingestion.WithMetrics(m),
		ingestion.OnIngest(reports.Purge),
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger, m))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Retail Analytics API", "version": "1.0"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := store.CountSales(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	ingestion.NewHTTPHandler(ingest, logger, cfg.Server.MaxUploadBytes).Register(r)
	report.NewHTTPHandler(reports, logger).Register(r)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})
	return corsHandler.Handler(r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
