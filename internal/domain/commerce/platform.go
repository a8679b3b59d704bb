// Package commerce describes the external commerce platform the storefront
// reads its catalog, customers and orders from.
package commerce

import (
	"context"
	"errors"
	"time"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/session"
	"github.com/storefront/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Platform Errors
// ---------------------------------------------------------------------------

var (
	// ErrNetwork means the request could not complete (dial, TLS, reset, HTTP 5xx)
	ErrNetwork = shared.NewDomainError("NETWORK_ERROR", "commerce platform unreachable")
	// ErrAPI means the platform answered with a structured error payload
	ErrAPI = shared.NewDomainError("API_ERROR", "commerce platform returned an error")
	// ErrTimeout means the request deadline expired before a response arrived
	ErrTimeout = shared.NewDomainError("TIMEOUT", "commerce platform request timed out")
	// ErrInvalidResponse means the response could not be decoded
	ErrInvalidResponse = shared.NewDomainError("INVALID_RESPONSE", "invalid commerce platform response")
	// ErrAuthFailed means the credential exchange was refused
	ErrAuthFailed = shared.NewDomainError("AUTH_FAILED", "customer authentication failed")

	// ErrNotConfigured is returned when a scope's access token is missing
	ErrNotConfigured = errors.New("commerce: platform not configured")
)

// UserError is a field-level error returned by a platform mutation
type UserError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
}

// ---------------------------------------------------------------------------
// Inputs and outputs
// ---------------------------------------------------------------------------

// AccessToken is the result of a successful customer token exchange
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// CustomerInput carries fields for customer create/update mutations
type CustomerInput struct {
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Password  string `json:"password,omitempty"`
}

// DraftOrderLine is one line of a draft order
type DraftOrderLine struct {
	VariantID string
	Quantity  int
}

// DraftOrder is the result of creating a draft order for checkout
type DraftOrder struct {
	ID         string
	InvoiceURL string
}

// PageRequest selects a page of a listing. The zero After means first page.
type PageRequest struct {
	Limit int
	After string
}

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// CatalogReader reads the public catalog
type CatalogReader interface {
	ProductsPage(ctx context.Context, page PageRequest) (catalog.Page[catalog.Product], error)
	SearchProducts(ctx context.Context, query string, limit int) ([]catalog.Product, error)
	ProductByHandle(ctx context.Context, handle string) (*catalog.Product, error)
	Collections(ctx context.Context, limit int) ([]catalog.Collection, error)
	CollectionByHandle(ctx context.Context, handle string, limit int) (*catalog.Collection, error)
	ShopInfo(ctx context.Context) (*catalog.Shop, error)
	// ProductMetafields reads up to 20 metafields of productID in namespace
	ProductMetafields(ctx context.Context, productID, namespace string) ([]catalog.Metafield, error)
}

// CustomerAuth exchanges credentials for a token and reads the identity
type CustomerAuth interface {
	CreateAccessToken(ctx context.Context, email, password string) (AccessToken, error)
	Customer(ctx context.Context, accessToken string) (*session.Customer, error)
	CustomerOrders(ctx context.Context, accessToken string) ([]catalog.Order, error)
	// CustomerOrder returns one order of the customer behind accessToken with
	// its shipping address, or nil when the customer has no such order
	CustomerOrder(ctx context.Context, accessToken, orderID string) (*catalog.Order, error)
}

// Admin covers admin-scoped reads and writes
type Admin interface {
	Orders(ctx context.Context, limit int, status catalog.OrderStatus) ([]catalog.Order, error)
	Customers(ctx context.Context, limit int) ([]session.Customer, error)
	CreateCustomer(ctx context.Context, input CustomerInput) (*session.Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, input CustomerInput) (*session.Customer, error)
	CreateDraftOrder(ctx context.Context, lines []DraftOrderLine, email string) (*DraftOrder, error)
}

// Platform is the full commerce platform surface
type Platform interface {
	CatalogReader
	CustomerAuth
	Admin
}

// Classify maps an arbitrary error to the platform taxonomy used in
// user-facing messages: timeout, network, api or invalid response.
func Classify(err error) *shared.DomainError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, ErrAPI), errors.Is(err, ErrAuthFailed):
		return ErrAPI
	case errors.Is(err, ErrInvalidResponse):
		return ErrInvalidResponse
	case errors.Is(err, shared.ErrValidation):
		return shared.ErrValidation
	case errors.Is(err, shared.ErrAuthRequired):
		return shared.ErrAuthRequired
	default:
		return ErrNetwork
	}
}
