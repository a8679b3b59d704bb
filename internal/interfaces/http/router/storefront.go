package router

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	catalogapp "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/application/profile"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Dependencies are the services the storefront API is built from
type Dependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	Registry     *profile.Registry
	Queries      *catalogapp.Service
	Catalog      commerce.CatalogReader
	Tokens       *auth.TokenService
	Revocations  *auth.Revocations // optional
	// RateLimiter guards profile creation, login and signup; nil disables it
	RateLimiter  *middleware.RateLimiter
	HealthChecks map[string]handler.HealthCheck
	Version      string
}

func (d Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return errors.New("router: config is required")
	case d.Registry == nil:
		return errors.New("router: profile registry is required")
	case d.Queries == nil:
		return errors.New("router: catalog queries are required")
	case d.Catalog == nil:
		return errors.New("router: catalog reader is required")
	case d.Tokens == nil:
		return errors.New("router: token service is required")
	}
	return nil
}

// NewEngine builds the gin engine serving /api/v1
func NewEngine(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := deps.Config

	middleware.SetupValidator()

	engine := gin.New()
	// Product ids are platform gids and arrive URL-encoded in path segments
	engine.UseRawPath = true
	engine.UnescapePathValues = true

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	corsConfig := middleware.CORSConfigFromHTTP(cfg.HTTP)

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(cfg.Telemetry.Enabled))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.NoRoute(func(c *gin.Context) {
		var h handler.BaseHandler
		h.NotFound(c, "Route not found")
	})

	requireProfile := middleware.ProfileAuth(middleware.ProfileAuthConfig{
		Tokens:      deps.Tokens,
		Revocations: deps.Revocations,
		Profiles:    deps.Registry,
		Logger:      log,
	})

	var throttle gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		throttle = middleware.RateLimit(deps.RateLimiter)
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(
		systemRoutes(deps),
		profileRoutes(deps, requireProfile, throttle),
		cartRoutes(deps, requireProfile),
		sessionRoutes(requireProfile, throttle),
		catalogRoutes(deps, corsConfig.AllowOrigins),
	)
	r.Setup()

	return engine, nil
}

func systemRoutes(deps Dependencies) *DomainGroup {
	h := handler.NewSystemHandler(deps.Config.App.Name, deps.Version, deps.HealthChecks)
	return NewDomainGroup("system", "").
		GET("/health", h.Health)
}

func profileRoutes(deps Dependencies, requireProfile, throttle gin.HandlerFunc) *DomainGroup {
	h := handler.NewProfileHandler(deps.Registry, deps.Tokens, deps.Revocations)
	g := NewDomainGroup("profiles", "/profiles")
	g.POST("", throttle, h.Create)
	g.Group("current", "/current").
		Use(requireProfile).
		DELETE("", h.Delete)
	return g
}

func cartRoutes(deps Dependencies, requireProfile gin.HandlerFunc) *DomainGroup {
	h := handler.NewCartHandler(deps.Catalog)
	return NewDomainGroup("cart", "/cart").
		Use(requireProfile).
		GET("", h.Get).
		DELETE("", h.Clear).
		POST("/items", h.AddItem).
		PUT("/items/:productId", h.UpdateItem).
		DELETE("/items/:productId", h.RemoveItem).
		POST("/checkout", h.Checkout)
}

func sessionRoutes(requireProfile, throttle gin.HandlerFunc) *DomainGroup {
	h := handler.NewSessionHandler()
	g := NewDomainGroup("session", "").Use(requireProfile)
	g.Group("session", "/session").
		GET("", h.Get).
		DELETE("", h.Logout).
		POST("/login", throttle, h.Login).
		PUT("/customer", h.UpdateCustomer).
		GET("/orders", h.Orders).
		GET("/orders/:id", h.Order)
	g.POST("/customers", throttle, h.Signup)
	return g
}

func catalogRoutes(deps Dependencies, allowOrigins []string) *DomainGroup {
	h := handler.NewCatalogHandler(deps.Queries)
	ws := handler.NewSearchSocketHandler(deps.Queries, originChecker(allowOrigins))
	return NewDomainGroup("catalog", "").
		GET("/products", h.ListProducts).
		GET("/products/:handle", h.GetProduct).
		GET("/products/:handle/reviews", h.GetProductReviews).
		GET("/collections", h.ListCollections).
		GET("/collections/:handle", h.GetCollection).
		GET("/shop", h.GetShop).
		GET("/search", h.Search).
		GET("/ws/search", ws.Serve)
}

// originChecker mirrors the CORS policy for websocket upgrades. No
// configured origins, or a wildcard, accepts any origin.
func originChecker(allowOrigins []string) func(r *http.Request) bool {
	if len(allowOrigins) == 0 || slices.Contains(allowOrigins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowOrigins, origin)
	}
}
