package session

import (
	"strings"
	"time"

	"github.com/storefront/backend/internal/domain/shared"
)

// State is the authentication state of a session
type State string

const (
	StateLoggedOut State = "logged_out"
	StateLoggedIn  State = "logged_in"
)

// Credential is the opaque bearer token obtained from the token exchange
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the credential carries a token
func (c Credential) Valid() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

// Session pairs an identity with its credential. Both are set or both are
// unset; there is no way to build a Session holding only one of them.
type Session struct {
	identity   *Customer
	credential *Credential
}

// LoggedOut returns the empty session
func LoggedOut() Session {
	return Session{}
}

// LoggedIn returns an authenticated session. It rejects an empty token or an
// identity without an id, so a partial session can never be constructed.
func LoggedIn(identity Customer, credential Credential) (Session, error) {
	if !credential.Valid() {
		return Session{}, shared.ErrValidation.WithMessage("access token is empty")
	}
	if err := identity.Validate(); err != nil {
		return Session{}, err
	}
	id := identity.Clone()
	cred := credential
	return Session{identity: &id, credential: &cred}, nil
}

// State returns LoggedIn or LoggedOut
func (s Session) State() State {
	if s.IsAuthenticated() {
		return StateLoggedIn
	}
	return StateLoggedOut
}

// IsAuthenticated reports identity != nil and credential != nil
func (s Session) IsAuthenticated() bool {
	return s.identity != nil && s.credential != nil
}

// Identity returns a copy of the identity, if any
func (s Session) Identity() (Customer, bool) {
	if s.identity == nil {
		return Customer{}, false
	}
	return s.identity.Clone(), true
}

// Credential returns the credential, if any
func (s Session) Credential() (Credential, bool) {
	if s.credential == nil {
		return Credential{}, false
	}
	return *s.credential, true
}

// AccessToken returns the bearer token, or "" when logged out
func (s Session) AccessToken() string {
	if s.credential == nil {
		return ""
	}
	return s.credential.AccessToken
}

// WithIdentity returns a copy with the identity replaced and the credential
// untouched. It is only valid within LoggedIn.
func (s Session) WithIdentity(identity Customer) (Session, error) {
	if !s.IsAuthenticated() {
		return s, shared.ErrAuthRequired
	}
	if err := identity.Validate(); err != nil {
		return s, err
	}
	id := identity.Clone()
	return Session{identity: &id, credential: s.credential}, nil
}
