package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"retail-analytics/internal/config"
	"retail-analytics/internal/handlers"
	"retail-analytics/internal/middleware"
	"retail-analytics/internal/observability"
	"retail-analytics/internal/server"
	"retail-analytics/internal/services"
	"retail-analytics/internal/store"
	"retail-analytics/internal/ui/templates"
)

const (
	renderTimeout    = 10 * time.Second
	storeOpenTimeout = 15 * time.Second
	cacheMaxAge      = "public, max-age=300"

	limiterSweepInterval = 5 * time.Minute
)

// handleDashboard serves the upload page.
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// newHandler builds the routed server behind the middleware chain.
func newHandler(cfg *config.Config, analyzer handlers.Analyzer, ledger handlers.RunLedger, rateLimiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(analyzer, ledger, logger, cfg.Upload.MaxBytes, templateHandlers)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.BodyLimit(cfg.Upload.MaxBytes, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	analyzer := services.NewAnalyzer(cfg.Analysis, logger)

	var ledger handlers.RunLedger
	var runStore *store.Store
	if cfg.Store.Driver != "" {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
		start := time.Now()
		runStore, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		cancel()
		if err != nil {
			logger.Error("failed to open run store", "driver", cfg.Store.Driver, "error", err)
			os.Exit(1)
		}
		ledger = runStore
		logger.Info("run store ready", "driver", cfg.Store.Driver, "duration", time.Since(start))
	} else {
		logger.Info("run history disabled")
	}

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go rateLimiter.Run(sweepCtx, limiterSweepInterval)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analyzer, ledger, rateLimiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		stopSweep()
		return nil
	})

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("analyzer totals", "stats", analyzer.Stats())
		return nil
	})

	if runStore != nil {
		gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
			logger.Info("closing run store")
			return runStore.Close()
		})
	}

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
