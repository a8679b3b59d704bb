package catalog

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Search defaults
const (
	DefaultSearchDebounce  = 300 * time.Millisecond
	DefaultSearchMinLength = 2
	DefaultSearchLimit     = 10
)

// SearchConfig tunes the debounced search
type SearchConfig struct {
	Debounce  time.Duration
	MinLength int
	Limit     int
}

func (c SearchConfig) withDefaults() SearchConfig {
	if c.Debounce <= 0 {
		c.Debounce = DefaultSearchDebounce
	}
	if c.MinLength <= 0 {
		c.MinLength = DefaultSearchMinLength
	}
	if c.Limit <= 0 {
		c.Limit = DefaultSearchLimit
	}
	return c
}

// Search is a debounced product search driven by keystrokes. Input shorter
// than MinLength runes clears the result without a call; longer input is
// sent once Debounce has passed without another keystroke.
type Search struct {
	query  *Query[string, []catalog.Product]
	config SearchConfig

	mu     sync.Mutex
	ctx    context.Context
	input  string
	typed  uint64
	timer  *time.Timer
	closed bool
}

// NewSearch creates a search over reader. ctx scopes every request it sends
// and is usually the lifetime of the consumer (a websocket, a test).
func NewSearch(ctx context.Context, reader commerce.CatalogReader, cfg SearchConfig, opts ...QueryOption[string, []catalog.Product]) *Search {
	cfg = cfg.withDefaults()
	limit := cfg.Limit
	fetch := func(ctx context.Context, term string) ([]catalog.Product, error) {
		telemetry.SetAttributes(trace.SpanFromContext(ctx), telemetry.AttrQueryInput, term)
		products, err := reader.SearchProducts(ctx, term, limit)
		if products == nil {
			products = []catalog.Product{}
		}
		return products, err
	}
	return &Search{
		query:  NewQuery("search", fetch, emptyProducts, opts...),
		config: cfg,
		ctx:    ctx,
	}
}

// Type records the current input. Each call restarts the debounce delay.
func (s *Search) Type(input string) {
	term := strings.TrimSpace(input)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.typed++
	typed := s.typed
	s.input = term
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if utf8.RuneCountInString(term) < s.config.MinLength {
		s.mu.Unlock()
		s.query.Reset()
		return
	}
	s.timer = time.AfterFunc(s.config.Debounce, func() { s.fire(typed, term) })
	s.mu.Unlock()
}

func (s *Search) fire(typed uint64, term string) {
	s.mu.Lock()
	if s.closed || typed != s.typed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	ctx := s.ctx
	s.mu.Unlock()

	s.query.Run(ctx, term)
}

// Input returns the latest trimmed input
func (s *Search) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Pending reports whether a debounced request is waiting to be sent
func (s *Search) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// State returns the current result state
func (s *Search) State() State[[]catalog.Product] {
	return s.query.State()
}

// Await waits for the request in flight, if any
func (s *Search) Await(ctx context.Context) (State[[]catalog.Product], error) {
	return s.query.Await(ctx)
}

// Close stops the pending delay and drops any response still in flight
func (s *Search) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.query.Close()
}

func emptyProducts() []catalog.Product {
	return []catalog.Product{}
}
