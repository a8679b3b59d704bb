package profile

import (
	"context"
	"strings"

	cartapp "github.com/storefront/backend/internal/application/cart"
	sessionapp "github.com/storefront/backend/internal/application/session"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/session"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Profile is one shopper: a cart store and a session store sharing a
// storage namespace, plus the operations that need both
type Profile struct {
	ID      string
	Cart    *cartapp.Store
	Session *sessionapp.Store

	platform commerce.Platform
	logger   *zap.Logger
}

// Checkout turns the cart into a draft order for the logged-in customer and
// returns it. The cart is left as is; it is the caller's choice to clear it
// once payment completes.
func (p *Profile) Checkout(ctx context.Context) (*commerce.DraftOrder, error) {
	ctx, span := telemetry.StartSpan(ctx, "profile.checkout",
		telemetry.WithAttribute(telemetry.AttrProfileID, p.ID),
	)
	defer span.End()

	identity, ok := p.Session.Snapshot().Identity()
	if !ok {
		return nil, shared.ErrAuthRequired
	}

	view := p.Cart.Snapshot()
	if len(view.Items) == 0 {
		return nil, shared.ErrValidation.WithMessage("cart is empty")
	}
	lines := make([]commerce.DraftOrderLine, 0, len(view.Items))
	for _, item := range view.Items {
		if item.VariantKey == nil || *item.VariantKey == "" {
			return nil, shared.ErrValidation.WithMessage("item " + item.Title + " has no variant selected")
		}
		lines = append(lines, commerce.DraftOrderLine{VariantID: *item.VariantKey, Quantity: item.Quantity})
	}

	order, err := p.platform.CreateDraftOrder(ctx, lines, identity.Email)
	if err != nil {
		telemetry.RecordError(span, err)
		p.log(ctx).Warn("Checkout failed", zap.Error(err))
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.AttrItemCount, view.Count)
	telemetry.SetOK(span)
	p.log(ctx).Info("Draft order created", zap.String("draft_order_id", order.ID))
	return order, nil
}

// Register creates a customer account and logs the new customer in
func (p *Profile) Register(ctx context.Context, input commerce.CustomerInput) (*session.Customer, error) {
	input.Email = strings.TrimSpace(input.Email)
	if input.Email == "" || input.Password == "" {
		return nil, shared.ErrValidation.WithMessage("email and password are required")
	}

	customer, err := p.platform.CreateCustomer(ctx, input)
	if err != nil {
		p.log(ctx).Info("Signup rejected", zap.Error(err))
		return nil, err
	}
	if res := p.Session.Login(ctx, input.Email, input.Password); !res.OK() {
		return nil, res.Err()
	}

	identity, _ := p.Session.Snapshot().Identity()
	p.log(ctx).Info("Customer registered", zap.String("customer_id", customer.ID))
	return &identity, nil
}

// UpdateCustomer saves profile edits on the platform and then replaces the
// session identity with the saved record. Addresses the platform did not
// return are kept from the current identity.
func (p *Profile) UpdateCustomer(ctx context.Context, input commerce.CustomerInput) (*session.Customer, error) {
	current, ok := p.Session.Snapshot().Identity()
	if !ok {
		return nil, shared.ErrAuthRequired
	}

	updated, err := p.platform.UpdateCustomer(ctx, current.ID, input)
	if err != nil {
		p.log(ctx).Warn("Customer update failed", zap.Error(err))
		return nil, err
	}
	merged := updated.Clone()
	if merged.DefaultAddress == nil {
		merged.DefaultAddress = current.DefaultAddress
	}
	if len(merged.Addresses) == 0 {
		merged.Addresses = current.Addresses
	}

	if res := p.Session.UpdateIdentity(ctx, merged); !res.OK() {
		return nil, res.Err()
	}
	return &merged, nil
}

// Orders lists the logged-in customer's orders
func (p *Profile) Orders(ctx context.Context) ([]catalog.Order, error) {
	token := p.Session.AccessToken()
	if token == "" {
		return nil, shared.ErrAuthRequired
	}
	return p.platform.CustomerOrders(ctx, token)
}

// Order returns one of the logged-in customer's orders by id
func (p *Profile) Order(ctx context.Context, orderID string) (*catalog.Order, error) {
	token := p.Session.AccessToken()
	if token == "" {
		return nil, shared.ErrAuthRequired
	}
	order, err := p.platform.CustomerOrder(ctx, token, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, shared.ErrNotFound.WithMessage("order not found")
	}
	return order, nil
}

func (p *Profile) log(ctx context.Context) *logger.ContextLogger {
	if logger.GetProfileID(ctx) == "" {
		ctx = logger.WithProfileID(ctx, p.ID)
	}
	return logger.WithLogger(ctx, p.logger)
}
