// Package shopify implements the commerce platform against the Shopify
// Admin and Storefront GraphQL APIs.
package shopify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/session"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/retry"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxResponseSize is the maximum accepted response body (10MB)
const maxResponseSize = 10 * 1024 * 1024

const (
	adminTokenHeader      = "X-Shopify-Access-Token"
	storefrontTokenHeader = "X-Shopify-Storefront-Access-Token"
)

// Metric outcomes
const (
	outcomeOK              = "ok"
	outcomeTimeout         = "timeout"
	outcomeNetwork         = "network"
	outcomeAPI             = "api"
	outcomeInvalidResponse = "invalid_response"
	outcomeCanceled        = "canceled"
	outcomeNotConfigured   = "not_configured"
)

// Client implements commerce.Platform over HTTP
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *telemetry.Metrics
}

var _ commerce.Platform = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l.Named("shopify")
	}
}

// WithMetrics records every call on m
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient validates the configuration and every GraphQL document, then
// returns a ready client
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := validateDocuments(operations); err != nil {
		return nil, err
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// ProductsPage returns one page of products, newest first
func (c *Client) ProductsPage(ctx context.Context, page commerce.PageRequest) (catalog.Page[catalog.Product], error) {
	vars := map[string]any{"limit": c.limit(page.Limit)}
	if page.After != "" {
		vars["after"] = page.After
	}

	var data productsData
	if err := c.execute(ctx, opProducts, vars, &data); err != nil {
		return catalog.Page[catalog.Product]{}, err
	}
	items, err := productsToDomain(data.Products.nodes(), c.config.Currency)
	if err != nil {
		return catalog.Page[catalog.Product]{}, err
	}

	result := catalog.Page[catalog.Product]{Items: items, HasNextPage: data.Products.PageInfo.HasNextPage}
	if data.Products.PageInfo.EndCursor != nil {
		result.EndCursor = *data.Products.PageInfo.EndCursor
	} else if n := len(data.Products.Edges); n > 0 {
		result.EndCursor = data.Products.Edges[n-1].Cursor
	}
	return result, nil
}

// AllProducts follows product cursors up to the configured page bound
func (c *Client) AllProducts(ctx context.Context, limit int) ([]catalog.Product, error) {
	return commerce.AllProducts(ctx, c, c.limit(limit), c.config.MaxPages)
}

// SearchProducts runs a platform product search
func (c *Client) SearchProducts(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
	var data productsData
	vars := map[string]any{"query": query, "limit": c.limit(limit)}
	if err := c.execute(ctx, opSearchProducts, vars, &data); err != nil {
		return nil, err
	}
	return productsToDomain(data.Products.nodes(), c.config.Currency)
}

// ProductByHandle returns the product with handle, or nil when none exists
func (c *Client) ProductByHandle(ctx context.Context, handle string) (*catalog.Product, error) {
	var data productByHandleData
	if err := c.execute(ctx, opProductByHandle, map[string]any{"handle": handle}, &data); err != nil {
		return nil, err
	}
	if data.ProductByHandle == nil {
		return nil, nil
	}
	p, err := data.ProductByHandle.toDomain(c.config.Currency)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Collections lists collections with a preview of their products
func (c *Client) Collections(ctx context.Context, limit int) ([]catalog.Collection, error) {
	var data collectionsData
	if err := c.execute(ctx, opCollections, map[string]any{"limit": c.limit(limit)}, &data); err != nil {
		return nil, err
	}
	nodes := data.Collections.nodes()
	out := make([]catalog.Collection, 0, len(nodes))
	for _, n := range nodes {
		col, err := n.toDomain(c.config.Currency)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}

// CollectionByHandle returns a collection with up to limit products, or nil
func (c *Client) CollectionByHandle(ctx context.Context, handle string, limit int) (*catalog.Collection, error) {
	var data collectionByHandleData
	vars := map[string]any{"handle": handle, "limit": c.limit(limit)}
	if err := c.execute(ctx, opCollectionByHandle, vars, &data); err != nil {
		return nil, err
	}
	if data.CollectionByHandle == nil {
		return nil, nil
	}
	col, err := data.CollectionByHandle.toDomain(c.config.Currency)
	if err != nil {
		return nil, err
	}
	return &col, nil
}

// ShopInfo returns the public shop information
func (c *Client) ShopInfo(ctx context.Context) (*catalog.Shop, error) {
	var data shopData
	if err := c.execute(ctx, opShop, nil, &data); err != nil {
		return nil, err
	}
	return &catalog.Shop{
		Name:         data.Shop.Name,
		Description:  data.Shop.Description,
		URL:          data.Shop.PrimaryDomain.URL,
		CurrencyCode: data.Shop.PaymentSettings.CurrencyCode,
	}, nil
}

// ---------------------------------------------------------------------------
// Customer auth
// ---------------------------------------------------------------------------

// CreateAccessToken exchanges customer credentials for an access token
func (c *Client) CreateAccessToken(ctx context.Context, email, password string) (commerce.AccessToken, error) {
	var data accessTokenCreateData
	vars := map[string]any{"input": map[string]any{"email": email, "password": password}}
	if err := c.execute(ctx, opAccessTokenCreate, vars, &data); err != nil {
		return commerce.AccessToken{}, err
	}

	payload := data.CustomerAccessTokenCreate
	if len(payload.CustomerUserErrors) > 0 {
		return commerce.AccessToken{}, commerce.ErrAuthFailed.WithMessage(payload.CustomerUserErrors[0].Message)
	}
	if payload.CustomerAccessToken == nil || payload.CustomerAccessToken.AccessToken == "" {
		return commerce.AccessToken{}, commerce.ErrAuthFailed.WithMessage("empty customer access token")
	}
	return commerce.AccessToken{
		Token:     payload.CustomerAccessToken.AccessToken,
		ExpiresAt: payload.CustomerAccessToken.ExpiresAt,
	}, nil
}

// Customer reads the identity behind a customer access token
func (c *Client) Customer(ctx context.Context, accessToken string) (*session.Customer, error) {
	var data customerData
	vars := map[string]any{"customerAccessToken": accessToken}
	if err := c.execute(ctx, opCustomer, vars, &data); err != nil {
		return nil, err
	}
	if data.Customer == nil {
		return nil, commerce.ErrAuthFailed.WithMessage("no customer for access token")
	}
	customer := data.Customer.toDomain()
	return &customer, nil
}

// CustomerOrders lists the orders of the customer behind accessToken
func (c *Client) CustomerOrders(ctx context.Context, accessToken string) ([]catalog.Order, error) {
	var data customerOrdersData
	vars := map[string]any{"customerAccessToken": accessToken}
	if err := c.execute(ctx, opCustomerOrders, vars, &data); err != nil {
		return nil, err
	}
	if data.Customer == nil {
		return nil, commerce.ErrAuthFailed.WithMessage("no customer for access token")
	}

	nodes := data.Customer.Orders.nodes()
	out := make([]catalog.Order, 0, len(nodes))
	for _, n := range nodes {
		o, err := n.toDomain(c.config.Currency)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// CustomerOrder looks orderID up among the orders of the customer behind
// accessToken, so an id belonging to another customer reads as nil
func (c *Client) CustomerOrder(ctx context.Context, accessToken, orderID string) (*catalog.Order, error) {
	if orderID == "" {
		return nil, shared.ErrValidation.WithMessage("order id is required")
	}
	var data customerOrdersData
	vars := map[string]any{"customerAccessToken": accessToken}
	if err := c.execute(ctx, opCustomerOrder, vars, &data); err != nil {
		return nil, err
	}
	if data.Customer == nil {
		return nil, commerce.ErrAuthFailed.WithMessage("no customer for access token")
	}

	for _, n := range data.Customer.Orders.nodes() {
		if n.ID != orderID {
			continue
		}
		o, err := n.toDomain(c.config.Currency)
		if err != nil {
			return nil, err
		}
		return &o, nil
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

// ProductMetafields reads the metafields of productID in namespace
func (c *Client) ProductMetafields(ctx context.Context, productID, namespace string) ([]catalog.Metafield, error) {
	if namespace == "" {
		namespace = catalog.ReviewsNamespace
	}
	var data productMetafieldsData
	vars := map[string]any{"id": productID, "namespace": namespace}
	if err := c.execute(ctx, opProductMetafields, vars, &data); err != nil {
		return nil, err
	}
	if data.Product == nil {
		return []catalog.Metafield{}, nil
	}
	return data.Product.Metafields.nodes(), nil
}

// Orders lists orders filtered by status; OrderStatusAny applies no filter
func (c *Client) Orders(ctx context.Context, limit int, status catalog.OrderStatus) ([]catalog.Order, error) {
	if status != "" && !status.IsValid() {
		return nil, shared.ErrValidation.WithMessage(fmt.Sprintf("unknown order status %q", status))
	}
	vars := map[string]any{"limit": c.limit(limit)}
	if status != "" && status != catalog.OrderStatusAny {
		vars["query"] = "status:" + strings.ToLower(string(status))
	}

	var data ordersData
	if err := c.execute(ctx, opOrders, vars, &data); err != nil {
		return nil, err
	}
	nodes := data.Orders.nodes()
	out := make([]catalog.Order, 0, len(nodes))
	for _, n := range nodes {
		o, err := n.toDomain(c.config.Currency)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Customers lists customers through the admin scope
func (c *Client) Customers(ctx context.Context, limit int) ([]session.Customer, error) {
	var data customersData
	if err := c.execute(ctx, opCustomers, map[string]any{"limit": c.limit(limit)}, &data); err != nil {
		return nil, err
	}
	nodes := data.Customers.nodes()
	out := make([]session.Customer, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.toDomain())
	}
	return out, nil
}

// CreateCustomer registers a new customer
func (c *Client) CreateCustomer(ctx context.Context, input commerce.CustomerInput) (*session.Customer, error) {
	var data customerCreateData
	if err := c.execute(ctx, opCustomerCreate, map[string]any{"input": customerInputVars(input, "")}, &data); err != nil {
		return nil, err
	}
	return mutationCustomer(data.CustomerCreate)
}

// UpdateCustomer changes profile fields of an existing customer
func (c *Client) UpdateCustomer(ctx context.Context, customerID string, input commerce.CustomerInput) (*session.Customer, error) {
	if customerID == "" {
		return nil, shared.ErrValidation.WithMessage("customer id is required")
	}
	var data customerUpdateData
	vars := map[string]any{"input": customerInputVars(input, customerID)}
	if err := c.execute(ctx, opCustomerUpdate, vars, &data); err != nil {
		return nil, err
	}
	return mutationCustomer(data.CustomerUpdate)
}

// CreateDraftOrder creates a draft order and returns its invoice URL
func (c *Client) CreateDraftOrder(ctx context.Context, lines []commerce.DraftOrderLine, email string) (*commerce.DraftOrder, error) {
	if len(lines) == 0 {
		return nil, shared.ErrValidation.WithMessage("draft order needs at least one line")
	}
	lineItems := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		lineItems = append(lineItems, map[string]any{"variantId": l.VariantID, "quantity": l.Quantity})
	}
	input := map[string]any{"lineItems": lineItems}
	if email != "" {
		input["email"] = email
	}

	var data draftOrderCreateData
	if err := c.execute(ctx, opDraftOrderCreate, map[string]any{"input": input}, &data); err != nil {
		return nil, err
	}
	payload := data.DraftOrderCreate
	if err := userErrorsToError(payload.UserErrors); err != nil {
		return nil, err
	}
	if payload.DraftOrder == nil {
		return nil, commerce.ErrInvalidResponse.WithMessage("draft order missing from response")
	}
	return &commerce.DraftOrder{ID: payload.DraftOrder.ID, InvoiceURL: payload.DraftOrder.InvoiceURL}, nil
}

func customerInputVars(input commerce.CustomerInput, id string) map[string]any {
	vars := make(map[string]any)
	if id != "" {
		vars["id"] = id
	}
	for key, value := range map[string]string{
		"email":     input.Email,
		"firstName": input.FirstName,
		"lastName":  input.LastName,
		"phone":     input.Phone,
		"password":  input.Password,
	} {
		if value != "" {
			vars[key] = value
		}
	}
	return vars
}

func mutationCustomer(payload customerMutationPayload) (*session.Customer, error) {
	if err := userErrorsToError(payload.UserErrors); err != nil {
		return nil, err
	}
	if payload.Customer == nil {
		return nil, commerce.ErrInvalidResponse.WithMessage("customer missing from response")
	}
	customer := payload.Customer.toDomain()
	return &customer, nil
}

func userErrorsToError(errs []commerce.UserError) error {
	if len(errs) == 0 {
		return nil
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Message)
	}
	return commerce.ErrAPI.WithMessage(strings.Join(messages, "; "))
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) limit(n int) int {
	if n <= 0 {
		return c.config.PageLimit
	}
	return n
}

func (c *Client) endpoint(s scope) (url, header, token string) {
	if s == scopeStorefront {
		return c.config.StorefrontURL, storefrontTokenHeader, c.config.StorefrontToken
	}
	return c.config.AdminURL, adminTokenHeader, c.config.AdminToken
}

// execute runs op under the request timeout, retrying read-only operations
// on network errors when retries are enabled, and decodes data into out
func (c *Client) execute(ctx context.Context, op operation, vars map[string]any, out any) error {
	ctx, span := telemetry.StartSpan(ctx, "shopify."+op.name,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.AttrOperation, op.name),
		telemetry.WithAttribute(telemetry.AttrScope, string(op.scope)),
	)
	defer span.End()

	start := time.Now()
	attempts := 0
	err := c.call(ctx, op, vars, out, &attempts)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	c.metrics.RecordPlatformCall(ctx, op.name, string(op.scope), outcome, elapsed)
	telemetry.SetAttributes(span, telemetry.AttrAttempts, attempts)

	log := logger.WithLogger(ctx, c.logger)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("Shopify request failed",
			zap.String("operation", op.name),
			zap.String("scope", string(op.scope)),
			zap.String("outcome", outcome),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}
	telemetry.SetOK(span)
	log.Debug("Shopify request",
		zap.String("operation", op.name),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (c *Client) call(ctx context.Context, op operation, vars map[string]any, out any, attempts *int) error {
	url, header, token := c.endpoint(op.scope)
	if token == "" {
		return fmt.Errorf("%w: missing %s access token", commerce.ErrNotConfigured, op.scope)
	}

	body, err := sonic.Marshal(graphQLRequest{Query: op.document, OperationName: op.name, Variables: vars})
	if err != nil {
		return fmt.Errorf("shopify: encode %s request: %w", op.name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	policy := retry.Config{MaxAttempts: 1}
	if op.readOnly && c.config.RetryAttempts > 0 {
		policy = retry.Config{
			MaxAttempts: c.config.RetryAttempts + 1,
			Backoff:     retry.ExponentialBackoff(c.config.RetryBackoff),
			ShouldRetry: isTransient,
		}
	}

	raw, err := retry.DoWithResult(ctx, policy, func() ([]byte, error) {
		*attempts++
		return c.roundTrip(ctx, url, header, token, body)
	})
	if err != nil {
		return timeoutOr(ctx, err)
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return commerce.ErrInvalidResponse.WithMessage(fmt.Sprintf("decode %s data", op.name)).Wrap(err)
	}
	return nil
}

// roundTrip posts one request and returns the raw data member of the response
func (c *Client) roundTrip(ctx context.Context, url, header, token string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("shopify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(header, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, commerce.ErrNetwork.Wrap(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, commerce.ErrNetwork.Wrap(err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, commerce.ErrNetwork.WithMessage(fmt.Sprintf("HTTP %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, commerce.ErrAPI.WithMessage(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	var envelope graphQLResponse
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, commerce.ErrInvalidResponse.Wrap(err)
	}
	if len(envelope.Errors) > 0 {
		return nil, commerce.ErrAPI.WithMessage(envelope.Errors[0].Message)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, commerce.ErrInvalidResponse.WithMessage("response carries no data")
	}
	return envelope.Data, nil
}

// timeoutOr maps an expired request deadline to ErrTimeout
func timeoutOr(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return commerce.ErrTimeout.Wrap(err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("shopify: %w", context.Canceled)
	}
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, commerce.ErrNetwork)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, commerce.ErrNotConfigured):
		return outcomeNotConfigured
	case errors.Is(err, commerce.ErrTimeout):
		return outcomeTimeout
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case errors.Is(err, commerce.ErrAPI), errors.Is(err, commerce.ErrAuthFailed):
		return outcomeAPI
	case errors.Is(err, commerce.ErrInvalidResponse):
		return outcomeInvalidResponse
	default:
		return outcomeNetwork
	}
}
