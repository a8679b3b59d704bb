// Package testutil provides common test utilities for the storefront backend.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/session"
)

// Account is a customer known to the FakePlatform
type Account struct {
	Password string
	Customer session.Customer
	Orders   []catalog.Order
}

// Call records one FakePlatform invocation
type Call struct {
	Method string
	Arg    string
}

// FakePlatform is an in-memory commerce.Platform. Zero values are usable;
// populate the exported fields before use and read calls with Calls.
type FakePlatform struct {
	mu sync.Mutex

	Products       []catalog.Product
	CollectionList []catalog.Collection
	Shop           *catalog.Shop
	AdminOrders    []catalog.Order
	Accounts       map[string]*Account            // by email
	Metafields     map[string][]catalog.Metafield // by product id

	// Errors forces a method to fail, keyed by method name
	Errors map[string]error
	// Hook runs at the start of every method; a non-nil error is returned
	Hook func(ctx context.Context, method, arg string) error

	tokens      map[string]string // token -> email
	calls       []Call
	draftOrders [][]commerce.DraftOrderLine
}

var _ commerce.Platform = (*FakePlatform)(nil)

// NewFakePlatform creates a fake with no data
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{Accounts: map[string]*Account{}}
}

// AddAccount registers a customer that can log in with password
func (f *FakePlatform) AddAccount(customer session.Customer, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Accounts == nil {
		f.Accounts = map[string]*Account{}
	}
	f.Accounts[strings.ToLower(customer.Email)] = &Account{Password: password, Customer: customer}
}

// SetError makes method fail with err; nil clears it
func (f *FakePlatform) SetError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors == nil {
		f.Errors = map[string]error{}
	}
	f.Errors[method] = err
}

// Calls returns the recorded calls in order
func (f *FakePlatform) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// DraftOrders returns the lines of every draft order created so far
func (f *FakePlatform) DraftOrders() [][]commerce.DraftOrderLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]commerce.DraftOrderLine(nil), f.draftOrders...)
}

// CallCount returns how many times method was called
func (f *FakePlatform) CallCount(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *FakePlatform) enter(ctx context.Context, method, arg string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Arg: arg})
	hook := f.Hook
	err := f.Errors[method]
	f.mu.Unlock()

	if hook != nil {
		if herr := hook(ctx, method, arg); herr != nil {
			return herr
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// ProductsPage serves Products with the index of the next item as cursor
func (f *FakePlatform) ProductsPage(ctx context.Context, page commerce.PageRequest) (catalog.Page[catalog.Product], error) {
	if err := f.enter(ctx, "ProductsPage", page.After); err != nil {
		return catalog.Page[catalog.Product]{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	start := 0
	if page.After != "" {
		for i, p := range f.Products {
			if p.ID == page.After {
				start = i + 1
			}
		}
	}
	end := len(f.Products)
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}
	out := catalog.Page[catalog.Product]{Items: append([]catalog.Product{}, f.Products[start:end]...)}
	if end < len(f.Products) {
		out.HasNextPage = true
		out.EndCursor = f.Products[end-1].ID
	}
	return out, nil
}

// SearchProducts matches query against titles, case-insensitively
func (f *FakePlatform) SearchProducts(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
	if err := f.enter(ctx, "SearchProducts", query); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []catalog.Product{}
	for _, p := range f.Products {
		if strings.Contains(strings.ToLower(p.Title), strings.ToLower(query)) {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ProductByHandle returns nil when no product has handle
func (f *FakePlatform) ProductByHandle(ctx context.Context, handle string) (*catalog.Product, error) {
	if err := f.enter(ctx, "ProductByHandle", handle); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.Products {
		if p.Handle == handle {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

// Collections returns up to limit collections
func (f *FakePlatform) Collections(ctx context.Context, limit int) ([]catalog.Collection, error) {
	if err := f.enter(ctx, "Collections", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]catalog.Collection{}, f.CollectionList...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CollectionByHandle returns nil when no collection has handle
func (f *FakePlatform) CollectionByHandle(ctx context.Context, handle string, _ int) (*catalog.Collection, error) {
	if err := f.enter(ctx, "CollectionByHandle", handle); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.CollectionList {
		if c.Handle == handle {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

// ShopInfo returns Shop
func (f *FakePlatform) ShopInfo(ctx context.Context) (*catalog.Shop, error) {
	if err := f.enter(ctx, "ShopInfo", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Shop == nil {
		return nil, commerce.ErrInvalidResponse.WithMessage("shop is null")
	}
	shop := *f.Shop
	return &shop, nil
}

// ProductMetafields returns the Metafields of productID in namespace
func (f *FakePlatform) ProductMetafields(ctx context.Context, productID, namespace string) ([]catalog.Metafield, error) {
	if err := f.enter(ctx, "ProductMetafields", productID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []catalog.Metafield{}
	for _, m := range f.Metafields[productID] {
		if m.Namespace == namespace {
			out = append(out, m)
		}
	}
	return out, nil
}

// CreateAccessToken checks the password of a registered account
func (f *FakePlatform) CreateAccessToken(ctx context.Context, email, password string) (commerce.AccessToken, error) {
	if err := f.enter(ctx, "CreateAccessToken", email); err != nil {
		return commerce.AccessToken{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	acct, ok := f.Accounts[strings.ToLower(email)]
	if !ok || acct.Password != password {
		return commerce.AccessToken{}, commerce.ErrAuthFailed.WithMessage("Unidentified customer")
	}
	token := "tok-" + uuid.New().String()
	if f.tokens == nil {
		f.tokens = map[string]string{}
	}
	f.tokens[token] = strings.ToLower(email)
	return commerce.AccessToken{Token: token}, nil
}

func (f *FakePlatform) accountLocked(token string) (*Account, error) {
	email, ok := f.tokens[token]
	if !ok {
		return nil, commerce.ErrAuthFailed
	}
	return f.Accounts[email], nil
}

// Customer returns the account behind accessToken
func (f *FakePlatform) Customer(ctx context.Context, accessToken string) (*session.Customer, error) {
	if err := f.enter(ctx, "Customer", accessToken); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, err := f.accountLocked(accessToken)
	if err != nil {
		return nil, err
	}
	c := acct.Customer.Clone()
	return &c, nil
}

// CustomerOrders returns the orders of the account behind accessToken
func (f *FakePlatform) CustomerOrders(ctx context.Context, accessToken string) ([]catalog.Order, error) {
	if err := f.enter(ctx, "CustomerOrders", accessToken); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, err := f.accountLocked(accessToken)
	if err != nil {
		return nil, err
	}
	return append([]catalog.Order{}, acct.Orders...), nil
}

// CustomerOrder returns the account's order with orderID, or nil
func (f *FakePlatform) CustomerOrder(ctx context.Context, accessToken, orderID string) (*catalog.Order, error) {
	if err := f.enter(ctx, "CustomerOrder", orderID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, err := f.accountLocked(accessToken)
	if err != nil {
		return nil, err
	}
	for _, o := range acct.Orders {
		if o.ID == orderID {
			o := o
			return &o, nil
		}
	}
	return nil, nil
}

// Orders returns AdminOrders regardless of status
func (f *FakePlatform) Orders(ctx context.Context, limit int, status catalog.OrderStatus) ([]catalog.Order, error) {
	if err := f.enter(ctx, "Orders", string(status)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]catalog.Order{}, f.AdminOrders...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Customers lists the registered accounts
func (f *FakePlatform) Customers(ctx context.Context, limit int) ([]session.Customer, error) {
	if err := f.enter(ctx, "Customers", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.Customer, 0, len(f.Accounts))
	for _, a := range f.Accounts {
		out = append(out, a.Customer.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// CreateCustomer registers a new account; duplicate emails are rejected
func (f *FakePlatform) CreateCustomer(ctx context.Context, input commerce.CustomerInput) (*session.Customer, error) {
	if err := f.enter(ctx, "CreateCustomer", input.Email); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	email := strings.ToLower(input.Email)
	if _, exists := f.Accounts[email]; exists {
		return nil, commerce.ErrAPI.WithMessage("Email has already been taken")
	}
	c := session.Customer{
		ID:        "gid://shopify/Customer/" + uuid.New().String(),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Phone:     input.Phone,
	}
	if f.Accounts == nil {
		f.Accounts = map[string]*Account{}
	}
	f.Accounts[email] = &Account{Password: input.Password, Customer: c}
	out := c.Clone()
	return &out, nil
}

// UpdateCustomer applies the non-empty fields of input to the account with customerID
func (f *FakePlatform) UpdateCustomer(ctx context.Context, customerID string, input commerce.CustomerInput) (*session.Customer, error) {
	if err := f.enter(ctx, "UpdateCustomer", customerID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, acct := range f.Accounts {
		if acct.Customer.ID != customerID {
			continue
		}
		if input.FirstName != "" {
			acct.Customer.FirstName = input.FirstName
		}
		if input.LastName != "" {
			acct.Customer.LastName = input.LastName
		}
		if input.Phone != "" {
			acct.Customer.Phone = input.Phone
		}
		if input.Email != "" {
			acct.Customer.Email = input.Email
		}
		// the admin mutation does not echo addresses back
		out := acct.Customer.Clone()
		out.Addresses = nil
		out.DefaultAddress = nil
		return &out, nil
	}
	return nil, commerce.ErrAPI.WithMessage("Customer does not exist")
}

// CreateDraftOrder records lines and returns a fixed invoice URL
func (f *FakePlatform) CreateDraftOrder(ctx context.Context, lines []commerce.DraftOrderLine, email string) (*commerce.DraftOrder, error) {
	if err := f.enter(ctx, "CreateDraftOrder", email); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draftOrders = append(f.draftOrders, append([]commerce.DraftOrderLine{}, lines...))
	return &commerce.DraftOrder{
		ID:         "gid://shopify/DraftOrder/1",
		InvoiceURL: "https://shop.example.com/invoices/1",
	}, nil
}
