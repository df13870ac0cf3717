package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prompt-architect/relay/internal/cache"
	"github.com/prompt-architect/relay/internal/config"
	"github.com/prompt-architect/relay/internal/gateway"
	"github.com/prompt-architect/relay/internal/ratelimit"
	"github.com/prompt-architect/relay/internal/telemetry"
	"github.com/prompt-architect/relay/internal/upstream"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Telemetry.LogLevel),
	}))
	slog.SetDefault(logger)

	if cfg.Upstream.APIKey == "" {
		logger.Warn("no upstream API credential configured; /api/chat will fail until one is set")
	}

	logger.Info("budget configuration",
		"profile", cfg.Chat.BudgetProfile,
		"max_output_tokens", cfg.Chat.MaxOutputTokens,
		"max_input_chars", cfg.Chat.MaxInputChars,
		"cache_ttl_seconds", int(cfg.Cache.TTL.Std().Seconds()),
		"rate_limit_window_seconds", int(cfg.RateLimit.Window.Std().Seconds()),
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
	)

	metrics := telemetry.NewMetrics()
	store := cache.NewStore(cfg.Cache.TTL.Std())
	limiter := ratelimit.NewLimiter(cfg.RateLimit.Window.Std(), cfg.RateLimit.MaxRequests)

	client := upstream.NewReloadableClient(
		upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Upstream.Timeout.Std()))
	loader.OnReload(func() {
		newCfg := loader.Config()
		client.Swap(upstream.NewClient(newCfg.Upstream.BaseURL, newCfg.Upstream.APIKey, newCfg.Upstream.Timeout.Std()))
		logger.Info("upstream client reloaded", "base_url", newCfg.Upstream.BaseURL)
	})

	handler := gateway.NewHandler(loader.Config, client, store, limiter, metrics)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go janitor(janitorCtx, store, limiter, metrics, cfg.Cache.SweepInterval.Std())

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(corsMiddleware)

	r.Get("/api/health", handler.Health)
	r.Post("/api/chat", handler.Chat)

	if dir := cfg.Server.StaticDir; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		} else {
			logger.Warn("static dir not found, skipping file serving", "dir", dir)
		}
	}

	if port := cfg.Telemetry.MetricsPort; port > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", port)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listener starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown.Std())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("relay stopped")
}

// janitor periodically evicts expired cache entries and idle rate-limit
// windows. Lazy expiry on read stays authoritative; this only bounds memory
// for keys that are never touched again.
func janitor(ctx context.Context, store *cache.Store, limiter *ratelimit.Limiter, metrics *telemetry.Metrics, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := store.Sweep()
			dropped := limiter.Prune()
			metrics.CacheEntries.Set(float64(store.Len()))
			if evicted > 0 || dropped > 0 {
				slog.Debug("janitor pass", "cache_evicted", evicted, "clients_dropped", dropped)
			}
		}
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = "req_" + ulid.Make().String()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware mirrors the permissive policy the browser client expects:
// any origin may POST JSON to the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
