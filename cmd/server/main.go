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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	catalogapp "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/application/profile"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/shopify"
	"github.com/storefront/backend/internal/infrastructure/storage"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a config file (default ./config.toml)")
	pflag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "server exited: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, baseLog)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		_ = providers.Shutdown(context.Background())
	}()

	log := providers.BridgeLogger(baseLog)
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting storefront backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	kv, err := storage.NewFactory(cfg.Storage,
		storage.WithLogger(log),
		storage.WithMemoryFallback(cfg.Storage.AllowMemoryFallback),
	).Create()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Error("Error closing storage", zap.Error(err))
		}
	}()
	root := storage.Namespaced(kv, cfg.Storage.Namespace)

	bus := event.NewBus(log)
	if err := event.RegisterObservers(bus, log, metrics); err != nil {
		return fmt.Errorf("failed to register event observers: %w", err)
	}

	platform, err := shopify.NewClient(shopify.FromAppConfig(cfg.Shopify),
		shopify.WithLogger(log),
		shopify.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create shopify client: %w", err)
	}

	registry := profile.NewRegistry(root, platform,
		profile.WithPublisher(bus),
		profile.WithLogger(log),
		profile.WithMetrics(metrics),
		profile.WithIdleTTL(cfg.Profile.IdleTTL),
	)
	queries := catalogapp.NewService(platform, catalogapp.Config{
		PageLimit: cfg.Shopify.PageLimit,
		MaxPages:  cfg.Shopify.MaxPages,
		Timeout:   cfg.Shopify.RequestTimeout,
		Search: catalogapp.SearchConfig{
			Debounce:  cfg.Catalog.SearchDebounce,
			MinLength: cfg.Catalog.SearchMinLength,
			Limit:     cfg.Catalog.SearchLimit,
		},
	}, log)

	tokens, err := auth.NewTokenService(cfg.Profile)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	engine, err := router.NewEngine(router.Dependencies{
		Config:      cfg,
		Logger:      log,
		Registry:    registry,
		Queries:     queries,
		Catalog:     platform,
		Tokens:      tokens,
		Revocations: auth.NewRevocations(root),
		RateLimiter: limiter,
		HealthChecks: map[string]handler.HealthCheck{
			"storage": storageCheck(root),
		},
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		registry.Run(gctx)
		return nil
	})
	if limiter != nil {
		g.Go(func() error {
			limiter.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}

// storageCheck reads a key that never exists; anything but ErrNotFound
// means the store is unreachable
func storageCheck(kv storage.KV) handler.HealthCheck {
	return func(ctx context.Context) error {
		_, err := kv.Get(ctx, "health:ping")
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
}
