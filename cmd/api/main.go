package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hylo-so/hylo-engine/internal/api"
	"github.com/hylo-so/hylo-engine/internal/config"
	"github.com/hylo-so/hylo-engine/internal/jobs"
	"github.com/hylo-so/hylo-engine/internal/log"
	"github.com/hylo-so/hylo-engine/internal/metrics"
	"github.com/hylo-so/hylo-engine/internal/onchain"
	"github.com/hylo-so/hylo-engine/internal/prices"
	"github.com/hylo-so/hylo-engine/internal/prices/binance"
	"github.com/hylo-so/hylo-engine/internal/prices/mock"
	"github.com/hylo-so/hylo-engine/internal/snapshot"
	"github.com/hylo-so/hylo-engine/internal/store"
	"github.com/hylo-so/hylo-engine/internal/ws"
	"github.com/hylo-so/hylo-engine/pkg/kv"
	_ "github.com/hylo-so/hylo-engine/pkg/kv/memory"
	_ "github.com/hylo-so/hylo-engine/pkg/kv/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, &log.FileSink{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting Hylo quote engine",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"snapshot_source", cfg.Snapshot.Source,
		"strategy", cfg.Engine.Strategy,
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatalw("Server stopped with error", "error", err)
	}
	logger.Infow("Server stopped")
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("hylo-engine")
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}

	// Setup KV store; redis falls back to memory while unreachable
	kvStore, err := kv.NewStoreFromConfig(kv.Config{
		Backend:         kv.Backend(cfg.Cache.Backend),
		RedisURL:        cfg.Cache.RedisURL,
		FailoverEnabled: cfg.Cache.Failover,
		Logger:          logger.Infow,
	})
	if err != nil {
		return fmt.Errorf("setup kv store: %w", err)
	}
	cache := store.NewCache(kvStore, store.BusFor(kvStore), logger, metricsObj)
	defer cache.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := cache.Ping(pingCtx); err != nil {
		logger.Warnw("Cache ping failed", "error", err)
	} else {
		logger.Infow("Cache connection established", "backend", cfg.Cache.Backend)
	}
	cancelPing()

	// Protocol state and quoting
	var source snapshot.Source
	switch cfg.Snapshot.Source {
	case "kv":
		source = snapshot.NewKVSource(kvStore)
	default:
		source = snapshot.NewFileSource(cfg.Snapshot.File)
	}
	opts, err := onchain.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	overlay := prices.NewOverlay(cfg.Prices.ConfBps)
	protocolSvc := onchain.NewProtocolService(source, overlay, cache, opts, logger, metricsObj)
	quoteSvc, err := onchain.NewQuoteService(protocolSvc, cache, cfg.Engine.Strategy, cfg.Cache.QuoteTTL, logger, metricsObj)
	if err != nil {
		return err
	}

	// Setup WebSocket hub and SSE handler
	wsHub := ws.NewHub(cache, cfg.Security.CORSAllowedOrigins, logger, metricsObj)
	wsHub.SetInitial(ws.TopicState, func(ctx context.Context) (any, error) {
		return protocolSvc.Summary(ctx)
	})
	wsHub.SetInitial(ws.TopicPrice, func(context.Context) (any, error) {
		tick, ok := overlay.Latest()
		if !ok {
			return nil, errors.New("no price yet")
		}
		return tick, nil
	})
	sseHandler := ws.NewSSEHandler(cache, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	refresher := jobs.NewSnapshotRefresher(protocolSvc, cache, cfg.Snapshot.RefreshInterval, logger)
	g.Go(func() error { return ignoreCanceled(refresher.Start(gctx)) })

	if feeder, err := newPriceFeeder(cfg, overlay, protocolSvc, cache, logger, metricsObj); err != nil {
		return err
	} else if feeder != nil {
		g.Go(func() error { return ignoreCanceled(feeder.Start(gctx)) })
	}

	// Setup API handler and middleware
	handler := api.NewHandler(protocolSvc, quoteSvc, wsHub, sseHandler, cache, logger)
	middleware := api.NewMiddleware(logger, metricsObj)
	router := handler.Routes(middleware, api.RouteConfig{
		CORSOrigins:    cfg.Security.CORSAllowedOrigins,
		RateLimitRPM:   cfg.Security.RateLimitRPM,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Metrics:        metricsHandler,
	})
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// WriteTimeout stays unset so websocket and SSE streams survive; plain
	// requests are bounded by the router timeout.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		logger.Infow("API server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Infow("Shutting down", "reason", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			return server.Close()
		}
		return nil
	})

	return g.Wait()
}

// newPriceFeeder returns nil when live prices are disabled. The mock
// generator doubles as the fallback for the binance feed.
func newPriceFeeder(
	cfg *config.Config,
	overlay *prices.Overlay,
	protocolSvc *onchain.ProtocolService,
	cache *store.Cache,
	logger *zap.SugaredLogger,
	m *metrics.Metrics,
) (*jobs.PriceFeeder, error) {
	generator := mock.NewGenerator(logger, cfg.Prices.MockBasePrice, cfg.Prices.MockVolatility)

	var primary, fallback prices.Provider
	switch cfg.Prices.Provider {
	case "binance":
		primary, fallback = binance.NewProvider(logger), generator
	case "mock":
		primary = generator
	default:
		logger.Infow("Live price feed disabled; quoting snapshot prices")
		return nil, nil
	}

	return jobs.NewPriceFeeder(primary, fallback, overlay, protocolSvc, cache, logger, m, jobs.PriceFeederConfig{
		Symbol:        cfg.Prices.Symbol,
		RetryInterval: cfg.Prices.RetryInterval,
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
