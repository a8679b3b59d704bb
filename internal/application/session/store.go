// Package session holds the session store: the single owner of a profile's
// identity and bearer credential and of their storage keys.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/session"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/storage"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Storage keys owned by the session store
const (
	AccessTokenKey = "customerAccessToken"
	CustomerKey    = "customer"
	// ExpiresAtKey is optional; stores written without it restore fine
	ExpiresAtKey = "customerAccessTokenExpiresAt"
)

var allKeys = []string{AccessTokenKey, CustomerKey, ExpiresAtKey}

// ErrLoginSuperseded is returned by a login that finished after a newer
// login or a logout was issued on the same store
var ErrLoginSuperseded = shared.NewDomainError("LOGIN_SUPERSEDED", "login superseded by a newer request")

// Store owns the session of one profile. Identity and credential change
// together under one mutex; the platform is called outside the lock.
type Store struct {
	mu         sync.Mutex
	profileID  string
	kv         storage.KV
	auth       commerce.CustomerAuth
	session    session.Session
	generation uint64
	restored   bool

	publisher shared.EventPublisher
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithPublisher publishes session events to p
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

// WithClock replaces time.Now for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a logged-out session store over kv
func NewStore(profileID string, kv storage.KV, auth commerce.CustomerAuth, opts ...Option) *Store {
	s := &Store{
		profileID: profileID,
		kv:        kv,
		auth:      auth,
		session:   session.LoggedOut(),
		publisher: shared.NopPublisher{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted session. Both keys present and well formed
// restore LoggedIn; anything else leaves the store LoggedOut with every
// session key purged. Storage read errors count as corruption. Only the
// first restore publishes a Restored event.
func (s *Store) Restore(ctx context.Context) {
	s.mu.Lock()
	if !s.restoreLocked(ctx) {
		s.mu.Unlock()
		return
	}
	events := []shared.DomainEvent{session.NewChangedEvent(session.EventTypeRestored, s.profileID, s.session)}
	s.mu.Unlock()
	s.publisher.Publish(events...)
}

// restoreLocked reports whether this call performed the restore
func (s *Store) restoreLocked(ctx context.Context) bool {
	if s.restored {
		return false
	}
	s.restored = true
	log := s.log(ctx)

	restored, present, err := s.readPersisted(ctx)
	if err == nil && restored.IsAuthenticated() {
		s.session = restored
		log.Debug("Session restored", zap.String("state", string(restored.State())))
		return true
	}
	if err != nil {
		log.Warn("Discarding unreadable session", zap.Error(err))
		s.metrics.RecordCorruption(ctx, "session")
	}
	if present || err != nil {
		if err := s.kv.Delete(ctx, allKeys...); err != nil {
			log.Error("Failed to purge session keys", zap.Error(err))
		}
	}
	s.session = session.LoggedOut()
	return true
}

// readPersisted decodes the stored session. present reports whether any
// session key held a value.
func (s *Store) readPersisted(ctx context.Context) (session.Session, bool, error) {
	token, tokenErr := s.kv.Get(ctx, AccessTokenKey)
	rawCustomer, customerErr := s.kv.Get(ctx, CustomerKey)
	tokenMissing := errors.Is(tokenErr, storage.ErrNotFound)
	customerMissing := errors.Is(customerErr, storage.ErrNotFound)

	switch {
	case tokenMissing && customerMissing:
		return session.LoggedOut(), false, nil
	case tokenErr != nil && !tokenMissing:
		return session.Session{}, true, shared.ErrStorageCorruption.Wrap(tokenErr)
	case customerErr != nil && !customerMissing:
		return session.Session{}, true, shared.ErrStorageCorruption.Wrap(customerErr)
	case tokenMissing || customerMissing:
		return session.Session{}, true, shared.ErrStorageCorruption.WithMessage("session keys are incomplete")
	}

	var customer *session.Customer
	if err := sonic.Unmarshal(rawCustomer, &customer); err != nil {
		return session.Session{}, true, shared.ErrStorageCorruption.Wrap(err)
	}
	if customer == nil {
		return session.Session{}, true, shared.ErrStorageCorruption.WithMessage("stored customer is null")
	}

	credential := session.Credential{AccessToken: strings.TrimSpace(string(token))}
	if rawExpiry, err := s.kv.Get(ctx, ExpiresAtKey); err == nil {
		expiresAt, err := time.Parse(time.RFC3339, string(rawExpiry))
		if err != nil {
			return session.Session{}, true, shared.ErrStorageCorruption.Wrap(err)
		}
		if !expiresAt.IsZero() && !expiresAt.After(s.now()) {
			return session.LoggedOut(), true, nil
		}
		credential.ExpiresAt = expiresAt
	}

	restored, err := session.LoggedIn(*customer, credential)
	if err != nil {
		return session.Session{}, true, shared.ErrStorageCorruption.Wrap(err)
	}
	return restored, true, nil
}

// Login exchanges credentials for a token, then fetches the identity with
// that token. Only when both succeed are identity and credential swapped in
// and persisted. A failed login leaves the current session untouched.
func (s *Store) Login(ctx context.Context, email, password string) shared.Result {
	ctx, span := telemetry.StartSpan(ctx, "session.login",
		telemetry.WithAttribute(telemetry.AttrProfileID, s.profileID),
	)
	defer span.End()
	log := s.log(ctx)

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return s.reject(span, shared.ErrValidation.WithMessage("email and password are required"))
	}

	s.mu.Lock()
	s.restoreLocked(ctx)
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	token, err := s.auth.CreateAccessToken(ctx, email, password)
	if err != nil {
		log.Info("Login rejected", zap.Error(err))
		return s.reject(span, err)
	}
	customer, err := s.auth.Customer(ctx, token.Token)
	if err != nil {
		log.Warn("Failed to fetch customer after token exchange", zap.Error(err))
		return s.reject(span, err)
	}
	next, err := session.LoggedIn(*customer, session.Credential{AccessToken: token.Token, ExpiresAt: token.ExpiresAt})
	if err != nil {
		return s.reject(span, commerce.ErrInvalidResponse.Wrap(err))
	}

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		log.Info("Discarding superseded login")
		return s.reject(span, ErrLoginSuperseded)
	}
	s.session = next
	s.persistLocked(ctx)
	event := session.NewChangedEvent(session.EventTypeLoggedIn, s.profileID, next)
	s.mu.Unlock()

	log.Info("Customer logged in", zap.String("customer_id", customer.ID))
	telemetry.SetOK(span)
	s.publisher.Publish(event)
	return shared.Ok()
}

// Logout clears identity and credential and purges their keys. It also
// invalidates any login still in flight. Logging out twice is harmless.
func (s *Store) Logout(ctx context.Context) shared.Result {
	s.mu.Lock()
	s.restoreLocked(ctx)
	s.generation++
	wasLoggedIn := s.session.IsAuthenticated()
	s.session = session.LoggedOut()
	if err := s.kv.Delete(ctx, allKeys...); err != nil {
		s.log(ctx).Error("Failed to purge session keys", zap.Error(err))
	}
	s.mu.Unlock()

	if wasLoggedIn {
		s.publisher.Publish(session.NewChangedEvent(session.EventTypeLoggedOut, s.profileID, session.LoggedOut()))
	}
	return shared.Ok()
}

// UpdateIdentity replaces the identity and re-persists it; the credential is
// untouched. Without a session it is rejected with ErrAuthRequired.
func (s *Store) UpdateIdentity(ctx context.Context, customer session.Customer) shared.Result {
	s.mu.Lock()
	s.restoreLocked(ctx)
	next, err := s.session.WithIdentity(customer)
	if err != nil {
		s.mu.Unlock()
		return shared.Rejected(err)
	}
	s.session = next
	s.persistCustomerLocked(ctx)
	event := session.NewChangedEvent(session.EventTypeIdentityUpdated, s.profileID, next)
	s.mu.Unlock()

	s.publisher.Publish(event)
	return shared.Ok()
}

// Snapshot returns the current session; identity and credential are
// always read together
func (s *Store) Snapshot() session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// IsAuthenticated reports whether a customer is logged in
func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated()
}

// AccessToken returns the bearer credential, or "" when logged out
func (s *Store) AccessToken() string {
	return s.Snapshot().AccessToken()
}

func (s *Store) persistLocked(ctx context.Context) {
	credential, _ := s.session.Credential()
	if err := s.kv.Set(ctx, AccessTokenKey, []byte(credential.AccessToken)); err != nil {
		s.log(ctx).Error("Failed to persist access token", zap.Error(err))
	}
	if credential.ExpiresAt.IsZero() {
		if err := s.kv.Delete(ctx, ExpiresAtKey); err != nil {
			s.log(ctx).Error("Failed to clear token expiry", zap.Error(err))
		}
	} else if err := s.kv.Set(ctx, ExpiresAtKey, []byte(credential.ExpiresAt.UTC().Format(time.RFC3339))); err != nil {
		s.log(ctx).Error("Failed to persist token expiry", zap.Error(err))
	}
	s.persistCustomerLocked(ctx)
}

func (s *Store) persistCustomerLocked(ctx context.Context) {
	identity, _ := s.session.Identity()
	raw, err := sonic.Marshal(identity)
	if err == nil {
		err = s.kv.Set(ctx, CustomerKey, raw)
	}
	if err != nil {
		s.log(ctx).Error("Failed to persist customer", zap.Error(err))
	}
}

func (s *Store) reject(span trace.Span, err error) shared.Result {
	telemetry.RecordError(span, err)
	return shared.Rejected(err)
}

func (s *Store) log(ctx context.Context) *logger.ContextLogger {
	if logger.GetProfileID(ctx) == "" {
		ctx = logger.WithProfileID(ctx, s.profileID)
	}
	return logger.WithLogger(ctx, s.logger).With(zap.String("store", "session"))
}
