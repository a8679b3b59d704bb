// Package profile manages storefront profiles: one cart store and one
// session store per shopper, persisted under the profile's own namespace.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	cartapp "github.com/storefront/backend/internal/application/cart"
	sessionapp "github.com/storefront/backend/internal/application/session"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/storage"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MarkerKey holds the profile record; its presence means the profile exists
const MarkerKey = "profile"

// DefaultIdleTTL is how long an unused profile stays in memory
const DefaultIdleTTL = 30 * time.Minute

// ErrProfileNotFound is returned for ids that were never created or were deleted
var ErrProfileNotFound = shared.NewDomainError("PROFILE_NOT_FOUND", "profile not found")

// record is the persisted profile marker
type record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// entry is a profile held in memory and the time it was last handed out
type entry struct {
	profile    *Profile
	lastAccess atomic.Int64 // unix nanoseconds
}

func (e *entry) touch(now time.Time) *Profile {
	e.lastAccess.Store(now.UnixNano())
	return e.profile
}

// Registry lazily builds and restores the stores of each profile. Concurrent
// first access to the same profile restores it once. Profiles unused for the
// idle TTL are dropped from memory and restored from storage on next access.
type Registry struct {
	kv       storage.KV
	platform commerce.Platform

	mu       sync.RWMutex
	profiles map[string]*entry
	loads    singleflight.Group
	idleTTL  time.Duration

	publisher shared.EventPublisher
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithPublisher wires store events of every profile to p
func WithPublisher(p shared.EventPublisher) Option {
	return func(r *Registry) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithLogger sets the logger shared by the registry and its stores
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records store metrics on m
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithIdleTTL sets how long an unused profile is kept in memory
func WithIdleTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleTTL = d
		}
	}
}

// NewRegistry creates a registry over kv. Every profile sees kv through a
// "<profile id>:" namespace.
func NewRegistry(kv storage.KV, platform commerce.Platform, opts ...Option) *Registry {
	r := &Registry{
		kv:        kv,
		platform:  platform,
		profiles:  make(map[string]*entry),
		idleTTL:   DefaultIdleTTL,
		publisher: shared.NopPublisher{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create allocates a new profile with an empty cart and no session
func (r *Registry) Create(ctx context.Context) (*Profile, error) {
	id := uuid.New().String()
	raw, err := sonic.Marshal(record{ID: id, CreatedAt: r.now().UTC()})
	if err != nil {
		return nil, err
	}
	kv := storage.Namespaced(r.kv, id)
	if err := kv.Set(ctx, MarkerKey, raw); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	p := r.build(ctx, id, kv)
	r.store(id, p)

	logger.WithLogger(logger.WithProfileID(ctx, id), r.logger).Info("Profile created")
	return p, nil
}

// Get returns the profile with id, restoring its stores on first access
func (r *Registry) Get(ctx context.Context, id string) (*Profile, error) {
	if p, ok := r.lookup(id); ok {
		return p, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrProfileNotFound
	}

	v, err, _ := r.loads.Do(id, func() (interface{}, error) {
		if p, ok := r.lookup(id); ok {
			return p, nil
		}

		kv := storage.Namespaced(r.kv, id)
		if _, err := kv.Get(ctx, MarkerKey); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrProfileNotFound
			}
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}

		p := r.build(ctx, id, kv)
		r.store(id, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Profile), nil
}

// Delete logs the profile out, clears its cart and forgets it
func (r *Registry) Delete(ctx context.Context, id string) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	p.Session.Logout(ctx)
	p.Cart.Clear(ctx)

	kv := storage.Namespaced(r.kv, id)
	if err := kv.Delete(ctx, MarkerKey, cartapp.StorageKey); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	r.mu.Lock()
	delete(r.profiles, id)
	r.mu.Unlock()

	logger.WithLogger(logger.WithProfileID(ctx, id), r.logger).Info("Profile deleted")
	return nil
}

// Run evicts idle profiles every half idle TTL until ctx is done
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				r.logger.Debug("Evicted idle profiles", zap.Int("count", n))
			}
		}
	}
}

// Evict drops profiles not handed out within the idle TTL and returns how
// many were dropped. Their state stays in storage.
func (r *Registry) Evict() int {
	cutoff := r.now().Add(-r.idleTTL).UnixNano()
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.profiles {
		if e.lastAccess.Load() < cutoff {
			delete(r.profiles, id)
			evicted++
		}
	}
	return evicted
}

func (r *Registry) lookup(id string) (*Profile, bool) {
	r.mu.RLock()
	e, ok := r.profiles[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.touch(r.now()), true
}

func (r *Registry) store(id string, p *Profile) {
	e := &entry{profile: p}
	e.touch(r.now())
	r.mu.Lock()
	r.profiles[id] = e
	r.mu.Unlock()
}

// Len returns the number of profiles currently held in memory
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

func (r *Registry) build(ctx context.Context, id string, kv storage.KV) *Profile {
	cartStore := cartapp.NewStore(id, kv,
		cartapp.WithPublisher(r.publisher),
		cartapp.WithLogger(r.logger),
		cartapp.WithMetrics(r.metrics),
	)
	sessionStore := sessionapp.NewStore(id, kv, r.platform,
		sessionapp.WithPublisher(r.publisher),
		sessionapp.WithLogger(r.logger),
		sessionapp.WithMetrics(r.metrics),
	)
	cartStore.Restore(ctx)
	sessionStore.Restore(ctx)

	return &Profile{
		ID:       id,
		Cart:     cartStore,
		Session:  sessionStore,
		platform: r.platform,
		logger:   r.logger,
	}
}
