package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dictcache/internal/cache"
	"github.com/kailas-cloud/dictcache/internal/config"
	"github.com/kailas-cloud/dictcache/internal/db"
	dbRedis "github.com/kailas-cloud/dictcache/internal/db/redis"
	logpkg "github.com/kailas-cloud/dictcache/internal/logger"
	"github.com/kailas-cloud/dictcache/internal/metrics"
	"github.com/kailas-cloud/dictcache/internal/repository/snapshot"
	chiTransport "github.com/kailas-cloud/dictcache/internal/transport/chi"
	natsTransport "github.com/kailas-cloud/dictcache/internal/transport/nats"
	"github.com/kailas-cloud/dictcache/internal/transport/upstream"
	"github.com/kailas-cloud/dictcache/internal/version"
	dictionaryuc "github.com/kailas-cloud/dictcache/internal/usecase/dictionary"
	healthuc "github.com/kailas-cloud/dictcache/internal/usecase/health"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	reg, err := cfg.Registry()
	if err != nil {
		logger.Fatal("Invalid dictionary registry", zap.Error(err))
	}

	logger.Info("Starting dictcache API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Int("dictionaries", reg.Len()),
		zap.String("snapshot_driver", cfg.Snapshot.Driver),
	)

	// Register dictionary metrics explicitly (no init())
	metrics.RegisterDictionaryMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	up := upstream.NewClient(&upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Token:   cfg.Upstream.Token,
		Timeout: time.Duration(cfg.Upstream.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	store := cache.New(nil)
	dictSvc := dictionaryuc.New(reg, store, up, logger).
		WithLookupCounter(metrics.DictionaryLookupsTotal).
		WithFetchTimeout(time.Duration(cfg.Upstream.TimeoutSec) * time.Second)

	// Pass nil interface (not typed nil pointer!) when snapshots are disabled.
	var snapshotPinger healthuc.Pinger
	if snapStore := openSnapshotStore(ctx, cfg, logger); snapStore != nil {
		defer snapStore.Close()
		dictSvc = dictSvc.WithSnapshots(snapshot.New(
			snapStore,
			cfg.Snapshot.KeyPrefix,
			time.Duration(cfg.Snapshot.TTLSec)*time.Second,
		))
		snapshotPinger = snapStore
	}

	healthSvc := healthuc.New(up, snapshotPinger, store)

	if cfg.Preload.OnStart {
		preloadCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Preload.TimeoutSec)*time.Second)
		report := dictSvc.PreloadAll(preloadCtx)
		cancel()
		if !report.OK() {
			logger.Warn("Preload incomplete, continuing with partial cache",
				zap.Strings("failed_collections", report.FailedCollections),
				zap.Strings("failed_schemas", report.FailedSchemas),
			)
		}
	}

	if cfg.Events.NATSURL != "" {
		listener := startListener(ctx, cfg, dictSvc, reg, logger)
		if listener != nil {
			defer listener.Stop()
		}
	}

	// Create chi server
	server := chiTransport.NewServer(dictSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openSnapshotStore connects to the snapshot store, or returns nil when it is disabled.
// A store that does not become ready is fatal: the operator asked for warm starts.
func openSnapshotStore(ctx context.Context, cfg config.Config, logger *zap.Logger) db.Store {
	switch cfg.Snapshot.Driver {
	case "":
		return nil
	case "redis":
	default:
		logger.Fatal("Unknown snapshot driver", zap.String("driver", cfg.Snapshot.Driver))
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Snapshot.Addrs,
		Password: cfg.Snapshot.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create snapshot store", zap.Error(err))
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Snapshot.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		logger.Fatal("Snapshot store not ready", zap.Error(err))
	}
	logger.Info("Connected to snapshot store", zap.Strings("addrs", cfg.Snapshot.Addrs))
	return store
}

// startListener subscribes to invalidation events. A broker that cannot be
// reached is logged and skipped; TTL expiry still refreshes the cache.
func startListener(
	ctx context.Context,
	cfg config.Config,
	dictSvc *dictionaryuc.Service,
	reg natsTransport.Registry,
	logger *zap.Logger,
) *natsTransport.Listener {
	nc, err := natsTransport.Connect(cfg.Events.NATSURL)
	if err != nil {
		logger.Warn("Invalidation events disabled", zap.Error(err))
		return nil
	}

	listener := natsTransport.NewListener(nc, cfg.Events.Subject, dictSvc, reg, logger).
		WithTimeout(time.Duration(cfg.Upstream.TimeoutSec) * time.Second)
	if err := listener.Start(ctx); err != nil {
		nc.Close()
		logger.Warn("Invalidation events disabled", zap.Error(err))
		return nil
	}
	return listener
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    chiTransport.CodeInternalError,
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("dictionary_status", ww.Header().Get(chiTransport.StatusHeader)),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
