// Package cart holds the cart store: the single owner of a profile's cart
// state and of its "cart" storage key.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/storage"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// StorageKey is the durable key holding the serialized line items
const StorageKey = "cart"

// Store serializes every cart operation behind one mutex. Each mutation
// updates memory and writes the full item list to storage in the same
// locked step, so storage never holds a state memory did not pass through.
type Store struct {
	mu        sync.Mutex
	profileID string
	kv        storage.KV
	cart      *cart.Cart
	restored  bool

	publisher shared.EventPublisher
	logger    *zap.Logger
	metrics   *telemetry.Metrics
}

// Option configures a Store
type Option func(*Store)

// WithPublisher publishes cart events to p
func WithPublisher(p shared.EventPublisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the store logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records corruption on m
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates a cart store over kv. The cart is loaded by Restore, or
// lazily by the first mutation.
func NewStore(profileID string, kv storage.KV, opts ...Option) *Store {
	s := &Store{
		profileID: profileID,
		kv:        kv,
		cart:      cart.New(profileID),
		publisher: shared.NopPublisher{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted cart. A missing key is an empty cart; a
// malformed value or one that breaks a cart invariant is discarded, the key
// purged and the cart started empty.
func (s *Store) Restore(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
}

func (s *Store) restoreLocked(ctx context.Context) {
	if s.restored {
		return
	}
	s.restored = true
	log := s.log(ctx)

	raw, err := s.kv.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err == nil {
		var restored *cart.Cart
		if restored, err = decodeCart(s.profileID, raw); err == nil {
			s.cart = restored
			log.Debug("Cart restored", zap.Int("items", restored.Len()))
			return
		}
	}

	log.Warn("Discarding unreadable cart", zap.Error(err))
	s.metrics.RecordCorruption(ctx, "cart")
	s.cart = cart.New(s.profileID)
	if err := s.kv.Delete(ctx, StorageKey); err != nil {
		log.Error("Failed to purge corrupt cart", zap.Error(err))
	}
}

func decodeCart(profileID string, raw []byte) (*cart.Cart, error) {
	var items *[]cart.LineItem
	if err := sonic.Unmarshal(raw, &items); err != nil {
		return nil, shared.ErrStorageCorruption.Wrap(err)
	}
	if items == nil {
		return nil, shared.ErrStorageCorruption.WithMessage("stored cart is null")
	}
	return cart.FromItems(profileID, *items)
}

// AddItem adds quantity units of product. An existing line item with the
// same (product, variant) key is incremented and keeps its original
// snapshot; otherwise a new item is appended.
func (s *Store) AddItem(ctx context.Context, product cart.ProductSnapshot, quantity int, variantKey *string) shared.Result {
	return s.mutate(ctx, "add", func(c *cart.Cart) (bool, error) {
		if err := c.Add(product, quantity, variantKey); err != nil {
			return false, err
		}
		return true, nil
	})
}

// RemoveItem deletes the line item with the given key; absent keys are a no-op
func (s *Store) RemoveItem(ctx context.Context, productID string, variantKey *string) shared.Result {
	return s.mutate(ctx, "remove", func(c *cart.Cart) (bool, error) {
		return c.Remove(productID, variantKey), nil
	})
}

// SetQuantity sets an absolute quantity; zero or less removes the item
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int, variantKey *string) shared.Result {
	return s.mutate(ctx, "set_quantity", func(c *cart.Cart) (bool, error) {
		return c.SetQuantity(productID, quantity, variantKey), nil
	})
}

// Clear empties the cart
func (s *Store) Clear(ctx context.Context) shared.Result {
	return s.mutate(ctx, "clear", func(c *cart.Cart) (bool, error) {
		c.Clear()
		return true, nil
	})
}

func (s *Store) mutate(ctx context.Context, op string, fn func(*cart.Cart) (bool, error)) shared.Result {
	ctx, span := telemetry.StartSpan(ctx, "cart."+op,
		telemetry.WithAttribute(telemetry.AttrProfileID, s.profileID),
	)
	defer span.End()

	s.mu.Lock()
	s.restoreLocked(ctx)
	changed, err := fn(s.cart)
	if err != nil {
		s.mu.Unlock()
		telemetry.RecordError(span, err)
		s.log(ctx).Debug("Cart operation rejected", zap.String("operation", op), zap.Error(err))
		return shared.Rejected(err)
	}
	if changed {
		s.persistLocked(ctx)
	}
	events := s.cart.PullEvents()
	count := s.cart.Count()
	s.mu.Unlock()

	telemetry.SetAttributes(span, telemetry.AttrItemCount, count)
	telemetry.SetOK(span)
	s.publisher.Publish(events...)
	return shared.Ok()
}

// persistLocked writes the whole item list. A failed write leaves memory
// ahead of storage; it is logged and the next mutation writes again.
func (s *Store) persistLocked(ctx context.Context) {
	raw, err := sonic.Marshal(s.cart.Items())
	if err == nil {
		err = s.kv.Set(ctx, StorageKey, raw)
	}
	if err != nil {
		s.log(ctx).Error("Failed to persist cart", zap.Error(fmt.Errorf("persist cart: %w", err)))
	}
}

// Items returns a copy of the line items in insertion order
func (s *Store) Items() []cart.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Items()
}

// Total returns the sum of unit price times quantity
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

// Count returns the number of units in the cart
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Count()
}

// View is a consistent read of the cart
type View struct {
	Items []cart.LineItem
	Total decimal.Decimal
	Count int
}

// Snapshot returns items, total and count taken under one lock
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{Items: s.cart.Items(), Total: s.cart.Total(), Count: s.cart.Count()}
}

func (s *Store) log(ctx context.Context) *logger.ContextLogger {
	if logger.GetProfileID(ctx) == "" {
		ctx = logger.WithProfileID(ctx, s.profileID)
	}
	return logger.WithLogger(ctx, s.logger).With(zap.String("store", "cart"))
}
