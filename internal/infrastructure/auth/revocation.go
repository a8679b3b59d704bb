package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/storefront/backend/internal/infrastructure/storage"
)

// Revocations records profile tokens that were withdrawn before they expired,
// e.g. when a profile is deleted. Entries are keyed by the token id (jti).
type Revocations struct {
	kv  storage.KV
	now func() time.Time
}

// NewRevocations stores revocations in kv under the "revoked:" prefix
func NewRevocations(kv storage.KV) *Revocations {
	return &Revocations{kv: storage.Namespaced(kv, "revoked"), now: time.Now}
}

// Revoke marks the token as revoked until it would have expired anyway
func (r *Revocations) Revoke(ctx context.Context, claims *Claims) error {
	if claims.ID == "" {
		return ErrInvalidClaims
	}
	until := claims.GetExpiresAtTime()
	if until.IsZero() {
		until = r.now().Add(24 * time.Hour)
	}
	if err := r.kv.Set(ctx, claims.ID, []byte(strconv.FormatInt(until.Unix(), 10))); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id was revoked. Entries past their
// expiry are dropped on read.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	raw, err := r.kv.Get(ctx, jti)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}

	until, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse revocation timestamp: %w", err)
	}
	if r.now().Unix() >= until {
		_ = r.kv.Delete(ctx, jti)
		return false, nil
	}
	return true, nil
}
