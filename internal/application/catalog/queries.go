package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/session"
	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Config bounds the listings the queries request
type Config struct {
	PageLimit int
	MaxPages  int
	Timeout   time.Duration
	Search    SearchConfig
}

// ProductsParams selects a product listing. AllPages follows cursors up to
// MaxPages; otherwise only the first page is read.
type ProductsParams struct {
	Limit    int
	AllPages bool
}

// CollectionParams selects one collection and how many of its products
type CollectionParams struct {
	Handle string
	Limit  int
}

// OrdersParams selects the admin order listing
type OrdersParams struct {
	Limit  int
	Status catalog.OrderStatus
}

// Service builds queries over the platform. Each call returns a fresh,
// independent query; nothing is cached across parameter sets.
type Service struct {
	platform commerce.Platform
	config   Config
	logger   *zap.Logger
}

// NewService creates a query service
func NewService(platform commerce.Platform, cfg Config, logger *zap.Logger) *Service {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 20
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{platform: platform, config: cfg, logger: logger.Named("catalog")}
}

func (s *Service) limit(n int) int {
	if n <= 0 || n > 250 {
		return s.config.PageLimit
	}
	return n
}

func options[P comparable, T any](s *Service) []QueryOption[P, T] {
	return []QueryOption[P, T]{WithQueryLogger[P, T](s.logger), WithTimeout[P, T](s.config.Timeout)}
}

// Products lists products, newest first
func (s *Service) Products() *Query[ProductsParams, []catalog.Product] {
	return NewQuery("products", func(ctx context.Context, p ProductsParams) ([]catalog.Product, error) {
		limit := s.limit(p.Limit)
		if p.AllPages {
			return commerce.AllProducts(ctx, s.platform, limit, s.config.MaxPages)
		}
		page, err := s.platform.ProductsPage(ctx, commerce.PageRequest{Limit: limit})
		if err != nil {
			return nil, err
		}
		return nonNil(page.Items), nil
	}, emptyProducts, options[ProductsParams, []catalog.Product](s)...)
}

// Product reads one product by handle; an unknown handle is ErrNotFound
func (s *Service) Product() *Query[string, *catalog.Product] {
	return NewQuery("product", func(ctx context.Context, handle string) (*catalog.Product, error) {
		if handle == "" {
			return nil, shared.ErrValidation.WithMessage("handle is required")
		}
		product, err := s.platform.ProductByHandle(ctx, handle)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, shared.ErrNotFound.WithMessage("product not found")
		}
		return product, nil
	}, nilOf[catalog.Product], options[string, *catalog.Product](s)...)
}

// ProductReviews reads the review metafields of the product with handle
func (s *Service) ProductReviews() *Query[string, []catalog.Metafield] {
	return NewQuery("product_reviews", func(ctx context.Context, handle string) ([]catalog.Metafield, error) {
		if handle == "" {
			return nil, shared.ErrValidation.WithMessage("handle is required")
		}
		product, err := s.platform.ProductByHandle(ctx, handle)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, shared.ErrNotFound.WithMessage("product not found")
		}
		reviews, err := s.platform.ProductMetafields(ctx, product.ID, catalog.ReviewsNamespace)
		return nonNil(reviews), err
	}, emptyOf[catalog.Metafield], options[string, []catalog.Metafield](s)...)
}

// Collections lists collections
func (s *Service) Collections() *Query[int, []catalog.Collection] {
	return NewQuery("collections", func(ctx context.Context, limit int) ([]catalog.Collection, error) {
		collections, err := s.platform.Collections(ctx, s.limit(limit))
		return nonNil(collections), err
	}, emptyOf[catalog.Collection], options[int, []catalog.Collection](s)...)
}

// Collection reads one collection with its products
func (s *Service) Collection() *Query[CollectionParams, *catalog.Collection] {
	return NewQuery("collection", func(ctx context.Context, p CollectionParams) (*catalog.Collection, error) {
		if p.Handle == "" {
			return nil, shared.ErrValidation.WithMessage("handle is required")
		}
		collection, err := s.platform.CollectionByHandle(ctx, p.Handle, s.limit(p.Limit))
		if err != nil {
			return nil, err
		}
		if collection == nil {
			return nil, shared.ErrNotFound.WithMessage("collection not found")
		}
		return collection, nil
	}, nilOf[catalog.Collection], options[CollectionParams, *catalog.Collection](s)...)
}

// Shop reads the shop information
func (s *Service) Shop() *Query[struct{}, *catalog.Shop] {
	return NewQuery("shop", func(ctx context.Context, _ struct{}) (*catalog.Shop, error) {
		return s.platform.ShopInfo(ctx)
	}, nilOf[catalog.Shop], options[struct{}, *catalog.Shop](s)...)
}

// Orders lists orders through the admin scope
func (s *Service) Orders() *Query[OrdersParams, []catalog.Order] {
	return NewQuery("orders", func(ctx context.Context, p OrdersParams) ([]catalog.Order, error) {
		status := p.Status
		if status == "" {
			status = catalog.OrderStatusAny
		}
		orders, err := s.platform.Orders(ctx, s.limit(p.Limit), status)
		return nonNil(orders), err
	}, emptyOf[catalog.Order], options[OrdersParams, []catalog.Order](s)...)
}

// CustomerOrders lists the orders of the customer owning the access token
func (s *Service) CustomerOrders() *Query[string, []catalog.Order] {
	return NewQuery("customer_orders", func(ctx context.Context, accessToken string) ([]catalog.Order, error) {
		if accessToken == "" {
			return nil, shared.ErrAuthRequired
		}
		orders, err := s.platform.CustomerOrders(ctx, accessToken)
		return nonNil(orders), err
	}, emptyOf[catalog.Order], options[string, []catalog.Order](s)...)
}

// Customers lists customers through the admin scope
func (s *Service) Customers() *Query[int, []session.Customer] {
	return NewQuery("customers", func(ctx context.Context, limit int) ([]session.Customer, error) {
		customers, err := s.platform.Customers(ctx, s.limit(limit))
		return nonNil(customers), err
	}, emptyOf[session.Customer], options[int, []session.Customer](s)...)
}

// SearchResults runs one product search per call, without debounce. Blank
// terms answer an empty result without a platform call.
func (s *Service) SearchResults() *Query[string, []catalog.Product] {
	limit := s.config.Search.withDefaults().Limit
	return NewQuery("search_results", func(ctx context.Context, term string) ([]catalog.Product, error) {
		term = strings.TrimSpace(term)
		if term == "" {
			return emptyProducts(), nil
		}
		products, err := s.platform.SearchProducts(ctx, term, limit)
		return nonNil(products), err
	}, emptyProducts, options[string, []catalog.Product](s)...)
}

// Search creates a debounced search scoped to ctx
func (s *Service) Search(ctx context.Context, opts ...QueryOption[string, []catalog.Product]) *Search {
	return NewSearch(ctx, s.platform, s.config.Search, append(options[string, []catalog.Product](s), opts...)...)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func emptyOf[T any]() []T {
	return []T{}
}

func nilOf[T any]() *T {
	return nil
}
