package shopify

import (
	"errors"
	"fmt"
	"time"

	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/infrastructure/config"
)

// Defaults applied by Validate
const (
	DefaultAPIVersion     = "2024-10"
	DefaultRequestTimeout = 15 * time.Second
	DefaultPageLimit      = 20
	DefaultMaxPages       = 10
)

// Errors for Shopify configuration
var (
	ErrConfigMissingStoreDomain = errors.New("shopify: store domain is required")
	ErrConfigNegativeRetries    = errors.New("shopify: retry attempts must not be negative")
)

// Config holds the settings of the Shopify GraphQL client
type Config struct {
	// StoreDomain is the myshopify domain, e.g. "brand.myshopify.com"
	StoreDomain string
	// APIVersion is the dated API version used in endpoint paths
	APIVersion string
	// StorefrontToken authenticates the customer-facing Storefront API
	StorefrontToken string
	// AdminToken authenticates the Admin API
	AdminToken string
	// StorefrontURL and AdminURL override the endpoints derived from StoreDomain
	StorefrontURL string
	AdminURL      string
	// RequestTimeout bounds every platform call
	RequestTimeout time.Duration
	// PageLimit is the default page size of catalog listings
	PageLimit int
	// MaxPages bounds cursor following in AllProducts
	MaxPages int
	// RetryAttempts re-runs failed idempotent reads; zero disables retries
	RetryAttempts int
	RetryBackoff  time.Duration
	// Currency is used when the platform omits a currency code
	Currency valueobject.Currency
}

// FromAppConfig builds a client Config from the application configuration
func FromAppConfig(cfg config.ShopifyConfig) *Config {
	c := &Config{
		StoreDomain:     cfg.StoreDomain,
		APIVersion:      cfg.APIVersion,
		StorefrontToken: cfg.StorefrontToken,
		AdminToken:      cfg.AdminToken,
		RequestTimeout:  cfg.RequestTimeout,
		PageLimit:       cfg.PageLimit,
		MaxPages:        cfg.MaxPages,
		RetryAttempts:   cfg.RetryAttempts,
		RetryBackoff:    cfg.RetryBackoff,
	}
	if cfg.StoreDomain != "" {
		c.StorefrontURL = cfg.StorefrontEndpoint()
		c.AdminURL = cfg.AdminEndpoint()
	}
	return c
}

// Validate checks the configuration and fills defaults
func (c *Config) Validate() error {
	if c.StoreDomain == "" && (c.StorefrontURL == "" || c.AdminURL == "") {
		return ErrConfigMissingStoreDomain
	}
	if c.RetryAttempts < 0 {
		return ErrConfigNegativeRetries
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.StorefrontURL == "" {
		c.StorefrontURL = fmt.Sprintf("https://%s/api/%s/graphql.json", c.StoreDomain, c.APIVersion)
	}
	if c.AdminURL == "" {
		c.AdminURL = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.StoreDomain, c.APIVersion)
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.PageLimit <= 0 {
		c.PageLimit = DefaultPageLimit
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.Currency == "" {
		c.Currency = valueobject.DefaultCurrency
	}
	return nil
}
