package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Log       LogConfig
	Storage   StorageConfig
	Shopify   ShopifyConfig
	Catalog   CatalogConfig
	Profile   ProfileConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string `validate:"oneof=development test staging production"`
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string

	// Rate limiting of the anonymous and credential endpoints, per client IP
	RateLimitEnabled  bool
	RateLimitRequests int `validate:"gte=0"`
	RateLimitWindow   time.Duration
}

// StorageConfig selects and configures the durable key-value driver
type StorageConfig struct {
	Driver              string `validate:"oneof=memory redis sqlite"`
	Namespace           string `validate:"required"`
	AllowMemoryFallback bool
	Redis               RedisConfig
	SQLite              SQLiteConfig
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// SQLiteConfig holds SQLite settings for the gorm-backed driver
type SQLiteConfig struct {
	DSN string
}

// ShopifyConfig holds commerce platform connection settings
type ShopifyConfig struct {
	StoreDomain     string
	APIVersion      string
	StorefrontToken string
	AdminToken      string
	RequestTimeout  time.Duration `validate:"gt=0"`
	PageLimit       int           `validate:"gt=0,lte=250"`
	MaxPages        int           `validate:"gt=0"`
	RetryAttempts   int           `validate:"gte=0"`
	RetryBackoff    time.Duration
}

// CatalogConfig holds catalog query settings
type CatalogConfig struct {
	SearchDebounce  time.Duration `validate:"gte=0"`
	SearchMinLength int           `validate:"gte=1"`
	SearchLimit     int           `validate:"gt=0"`
}

// ProfileConfig holds settings for signed profile tokens and in-memory profiles
type ProfileConfig struct {
	TokenSecret string
	TokenTTL    time.Duration `validate:"gt=0"`
	Issuer      string
	IdleTTL     time.Duration `validate:"gt=0"`
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled           bool
	ServiceName       string
	CollectorEndpoint string
	Insecure          bool
	SamplingRatio     float64 `validate:"gte=0,lte=1"`
	MetricsInterval   time.Duration
	LogsEnabled       bool
}

// Load reads configuration from config.toml and environment variables.
// Environment variables use the STOREFRONT_ prefix, e.g. STOREFRONT_SHOPIFY_STORE_DOMAIN.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads an explicit config file when path is not empty
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Storage: StorageConfig{
			Driver:              v.GetString("storage.driver"),
			Namespace:           v.GetString("storage.namespace"),
			AllowMemoryFallback: v.GetBool("storage.allow_memory_fallback"),
			Redis: RedisConfig{
				Addr:     v.GetString("storage.redis.addr"),
				Username: v.GetString("storage.redis.username"),
				Password: v.GetString("storage.redis.password"),
				DB:       v.GetInt("storage.redis.db"),
			},
			SQLite: SQLiteConfig{
				DSN: v.GetString("storage.sqlite.dsn"),
			},
		},
		Shopify: ShopifyConfig{
			StoreDomain:     v.GetString("shopify.store_domain"),
			APIVersion:      v.GetString("shopify.api_version"),
			StorefrontToken: v.GetString("shopify.storefront_token"),
			AdminToken:      v.GetString("shopify.admin_token"),
			RequestTimeout:  v.GetDuration("shopify.request_timeout"),
			PageLimit:       v.GetInt("shopify.page_limit"),
			MaxPages:        v.GetInt("shopify.max_pages"),
			RetryAttempts:   v.GetInt("shopify.retry_attempts"),
			RetryBackoff:    v.GetDuration("shopify.retry_backoff"),
		},
		Catalog: CatalogConfig{
			SearchDebounce:  v.GetDuration("catalog.search_debounce"),
			SearchMinLength: v.GetInt("catalog.search_min_length"),
			SearchLimit:     v.GetInt("catalog.search_limit"),
		},
		Profile: ProfileConfig{
			TokenSecret: v.GetString("profile.token_secret"),
			TokenTTL:    v.GetDuration("profile.token_ttl"),
			Issuer:      v.GetString("profile.issuer"),
			IdleTTL:     v.GetDuration("profile.idle_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			ServiceName:       v.GetString("telemetry.service_name"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			Insecure:          v.GetBool("telemetry.insecure"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 20
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// An empty origin list allows no cross-origin requests.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.Namespace == "" {
		cfg.Storage.Namespace = "storefront"
	}
	if cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = "localhost:6379"
	}
	if cfg.Storage.SQLite.DSN == "" {
		cfg.Storage.SQLite.DSN = "storefront.db"
	}
	if cfg.Shopify.APIVersion == "" {
		cfg.Shopify.APIVersion = "2024-10"
	}
	if cfg.Shopify.RequestTimeout == 0 {
		cfg.Shopify.RequestTimeout = 15 * time.Second
	}
	if cfg.Shopify.PageLimit == 0 {
		cfg.Shopify.PageLimit = 20
	}
	if cfg.Shopify.MaxPages == 0 {
		cfg.Shopify.MaxPages = 10
	}
	if cfg.Shopify.RetryBackoff == 0 {
		cfg.Shopify.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.Catalog.SearchDebounce == 0 {
		cfg.Catalog.SearchDebounce = 300 * time.Millisecond
	}
	if cfg.Catalog.SearchMinLength == 0 {
		cfg.Catalog.SearchMinLength = 2
	}
	if cfg.Catalog.SearchLimit == 0 {
		cfg.Catalog.SearchLimit = 10
	}
	if cfg.Profile.TokenTTL == 0 {
		cfg.Profile.TokenTTL = 30 * 24 * time.Hour
	}
	if cfg.Profile.IdleTTL == 0 {
		cfg.Profile.IdleTTL = 30 * time.Minute
	}
	if cfg.Profile.Issuer == "" {
		cfg.Profile.Issuer = "storefront-backend"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "storefront-backend"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.App.Env == "production" {
		if len(c.Profile.TokenSecret) < 32 {
			return fmt.Errorf("profile.token_secret must be at least 32 characters in production")
		}
		if c.Shopify.StoreDomain == "" {
			return fmt.Errorf("shopify.store_domain is required in production")
		}
		if c.Storage.Driver == "memory" {
			return fmt.Errorf("storage.driver=memory is not durable and cannot be used in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// StorefrontEndpoint returns the Storefront GraphQL endpoint for the store
func (s ShopifyConfig) StorefrontEndpoint() string {
	return fmt.Sprintf("https://%s/api/%s/graphql.json", s.StoreDomain, s.APIVersion)
}

// AdminEndpoint returns the Admin GraphQL endpoint for the store
func (s ShopifyConfig) AdminEndpoint() string {
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", s.StoreDomain, s.APIVersion)
}
