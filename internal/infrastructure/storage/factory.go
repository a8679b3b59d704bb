package storage

import (
	"fmt"

	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Factory creates the configured KV driver
type Factory struct {
	cfg    config.StorageConfig
	logger *zap.Logger
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory and the SQLite driver
func WithLogger(l *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = l
	}
}

// WithMemoryFallback overrides storage.allow_memory_fallback
func WithMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.cfg.AllowMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.StorageConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create builds the configured driver. When the driver cannot be reached and
// memory fallback is allowed, it returns an in-memory KV with a warning.
func (f *Factory) Create() (KV, error) {
	kv, err := f.create()
	if err == nil {
		f.logger.Info("durable storage ready", zap.String("driver", f.cfg.Driver))
		return kv, nil
	}
	if !f.cfg.AllowMemoryFallback || f.cfg.Driver == DriverMemory {
		return nil, err
	}

	f.logger.Warn("storage driver unavailable, falling back to in-memory storage. "+
		"Carts and sessions will not survive a restart.",
		zap.String("driver", f.cfg.Driver),
		zap.Error(err),
	)
	return NewMemoryKV(), nil
}

func (f *Factory) create() (KV, error) {
	switch f.cfg.Driver {
	case DriverMemory, "":
		return NewMemoryKV(), nil
	case DriverRedis:
		kv, err := NewRedisKV(RedisOptions{
			Addr:     f.cfg.Redis.Addr,
			Username: f.cfg.Redis.Username,
			Password: f.cfg.Redis.Password,
			DB:       f.cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis storage: %w", err)
		}
		return kv, nil
	case DriverSQLite:
		kv, err := NewSQLiteKV(f.cfg.SQLite.DSN, logger.NewGormLogger(f.logger, gormlogger.Warn))
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite storage: %w", err)
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", f.cfg.Driver)
	}
}
