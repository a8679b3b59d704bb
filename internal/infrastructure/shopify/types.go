package shopify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/session"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// ---------------------------------------------------------------------------
// Shared wire shapes
// ---------------------------------------------------------------------------

type connection[T any] struct {
	Edges    []edge[T] `json:"edges"`
	PageInfo pageInfo  `json:"pageInfo"`
}

type edge[T any] struct {
	Cursor string `json:"cursor"`
	Node   T      `json:"node"`
}

type pageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

func (c connection[T]) nodes() []T {
	out := make([]T, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node)
	}
	return out
}

type moneyV2 struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type moneyBag struct {
	ShopMoney moneyV2 `json:"shopMoney"`
}

type imageNode struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	AltText string `json:"altText"`
}

// toMoney converts a wire amount; an empty amount reads as zero
func toMoney(m moneyV2, fallback valueobject.Currency) (valueobject.Money, error) {
	currency := valueobject.Currency(m.CurrencyCode)
	if currency == "" {
		currency = fallback
	}
	if m.Amount == "" {
		return valueobject.Zero(currency), nil
	}
	money, err := valueobject.NewMoneyFromString(m.Amount, currency)
	if err != nil {
		return valueobject.Money{}, fmt.Errorf("%w: %v", commerce.ErrInvalidResponse, err)
	}
	return money, nil
}

// ---------------------------------------------------------------------------
// Products and collections
// ---------------------------------------------------------------------------

type variantNode struct {
	ID               string                   `json:"id"`
	Title            string                   `json:"title"`
	Price            moneyV2                  `json:"price"`
	AvailableForSale bool                     `json:"availableForSale"`
	Inventory        *int                     `json:"inventory"`
	SelectedOptions  []catalog.SelectedOption `json:"selectedOptions"`
}

type collectionRefNode struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

type productNode struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Description string    `json:"description"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"productType"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	PriceRange  struct {
		MinVariantPrice moneyV2 `json:"minVariantPrice"`
		MaxVariantPrice moneyV2 `json:"maxVariantPrice"`
	} `json:"priceRange"`
	Images      connection[imageNode]         `json:"images"`
	Variants    connection[variantNode]       `json:"variants"`
	Collections connection[collectionRefNode] `json:"collections"`
}

func (n productNode) toDomain(currency valueobject.Currency) (catalog.Product, error) {
	minPrice, err := toMoney(n.PriceRange.MinVariantPrice, currency)
	if err != nil {
		return catalog.Product{}, err
	}
	maxPrice, err := toMoney(n.PriceRange.MaxVariantPrice, minPrice.Currency())
	if err != nil {
		return catalog.Product{}, err
	}

	p := catalog.Product{
		ID:          n.ID,
		Title:       n.Title,
		Handle:      n.Handle,
		Description: n.Description,
		Vendor:      n.Vendor,
		ProductType: n.ProductType,
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		Images:      make([]catalog.Image, 0, len(n.Images.Edges)),
		Variants:    make([]catalog.Variant, 0, len(n.Variants.Edges)),
		Tags:        n.Tags,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
	for _, img := range n.Images.nodes() {
		p.Images = append(p.Images, catalog.Image{ID: img.ID, URL: img.URL, AltText: img.AltText})
	}
	for _, v := range n.Variants.nodes() {
		price, err := toMoney(v.Price, minPrice.Currency())
		if err != nil {
			return catalog.Product{}, err
		}
		p.Variants = append(p.Variants, catalog.Variant{
			ID:                v.ID,
			Title:             v.Title,
			Price:             price,
			AvailableForSale:  v.AvailableForSale,
			InventoryQuantity: v.Inventory,
			SelectedOptions:   v.SelectedOptions,
		})
	}
	for _, c := range n.Collections.nodes() {
		p.Collections = append(p.Collections, catalog.CollectionRef{ID: c.ID, Title: c.Title, Handle: c.Handle})
	}
	return p, nil
}

func productsToDomain(nodes []productNode, currency valueobject.Currency) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(nodes))
	for _, n := range nodes {
		p, err := n.toDomain(currency)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", n.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

type collectionNode struct {
	ID          string                  `json:"id"`
	Title       string                  `json:"title"`
	Handle      string                  `json:"handle"`
	Description string                  `json:"description"`
	Image       *imageNode              `json:"image"`
	Products    connection[productNode] `json:"products"`
}

func (n collectionNode) toDomain(currency valueobject.Currency) (catalog.Collection, error) {
	products, err := productsToDomain(n.Products.nodes(), currency)
	if err != nil {
		return catalog.Collection{}, err
	}
	c := catalog.Collection{
		ID:          n.ID,
		Title:       n.Title,
		Handle:      n.Handle,
		Description: n.Description,
		Products:    products,
	}
	if n.Image != nil {
		c.Image = &catalog.Image{ID: n.Image.ID, URL: n.Image.URL, AltText: n.Image.AltText}
	}
	return c, nil
}

type productsData struct {
	Products connection[productNode] `json:"products"`
}

type productByHandleData struct {
	ProductByHandle *productNode `json:"productByHandle"`
}

type collectionsData struct {
	Collections connection[collectionNode] `json:"collections"`
}

type collectionByHandleData struct {
	CollectionByHandle *collectionNode `json:"collectionByHandle"`
}

type productMetafieldsData struct {
	Product *struct {
		Metafields connection[catalog.Metafield] `json:"metafields"`
	} `json:"product"`
}

type shopData struct {
	Shop struct {
		Name          string `json:"name"`
		Description   string `json:"description"`
		PrimaryDomain struct {
			URL string `json:"url"`
		} `json:"primaryDomain"`
		PaymentSettings struct {
			CurrencyCode string `json:"currencyCode"`
		} `json:"paymentSettings"`
	} `json:"shop"`
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

type customerNode struct {
	ID             string                      `json:"id"`
	FirstName      string                      `json:"firstName"`
	LastName       string                      `json:"lastName"`
	Email          string                      `json:"email"`
	Phone          string                      `json:"phone"`
	DefaultAddress *session.Address            `json:"defaultAddress"`
	Addresses      connection[session.Address] `json:"addresses"`
}

func (n customerNode) toDomain() session.Customer {
	c := session.Customer{
		ID:             n.ID,
		FirstName:      n.FirstName,
		LastName:       n.LastName,
		Email:          n.Email,
		Phone:          n.Phone,
		DefaultAddress: n.DefaultAddress,
	}
	if len(n.Addresses.Edges) > 0 {
		c.Addresses = n.Addresses.nodes()
	}
	return c
}

type customersData struct {
	Customers connection[customerNode] `json:"customers"`
}

type customerData struct {
	Customer *customerNode `json:"customer"`
}

type customerMutationPayload struct {
	Customer   *customerNode        `json:"customer"`
	UserErrors []commerce.UserError `json:"userErrors"`
}

type customerCreateData struct {
	CustomerCreate customerMutationPayload `json:"customerCreate"`
}

type customerUpdateData struct {
	CustomerUpdate customerMutationPayload `json:"customerUpdate"`
}

type customerUserError struct {
	Code    string   `json:"code"`
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type accessTokenCreateData struct {
	CustomerAccessTokenCreate struct {
		CustomerAccessToken *struct {
			AccessToken string    `json:"accessToken"`
			ExpiresAt   time.Time `json:"expiresAt"`
		} `json:"customerAccessToken"`
		CustomerUserErrors []customerUserError `json:"customerUserErrors"`
	} `json:"customerAccessTokenCreate"`
}

type draftOrderCreateData struct {
	DraftOrderCreate struct {
		DraftOrder *struct {
			ID         string `json:"id"`
			InvoiceURL string `json:"invoiceUrl"`
		} `json:"draftOrder"`
		UserErrors []commerce.UserError `json:"userErrors"`
	} `json:"draftOrderCreate"`
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

type adminOrderNode struct {
	ID                       string     `json:"id"`
	Name                     string     `json:"name"`
	Email                    string     `json:"email"`
	Phone                    string     `json:"phone"`
	ProcessedAt              time.Time  `json:"processedAt"`
	CancelledAt              *time.Time `json:"cancelledAt"`
	DisplayFulfillmentStatus string     `json:"displayFulfillmentStatus"`
	TotalPriceSet            moneyBag   `json:"totalPriceSet"`
	LineItems                connection[struct {
		ID               string   `json:"id"`
		Title            string   `json:"title"`
		VariantTitle     string   `json:"variantTitle"`
		Quantity         int      `json:"quantity"`
		OriginalTotalSet moneyBag `json:"originalTotalSet"`
		Image            *struct {
			URL string `json:"url"`
		} `json:"image"`
	}] `json:"lineItems"`
}

func (n adminOrderNode) toDomain(currency valueobject.Currency) (catalog.Order, error) {
	total, err := toMoney(n.TotalPriceSet.ShopMoney, currency)
	if err != nil {
		return catalog.Order{}, err
	}
	o := catalog.Order{
		ID:                n.ID,
		Name:              n.Name,
		Email:             n.Email,
		Phone:             n.Phone,
		ProcessedAt:       n.ProcessedAt,
		CancelledAt:       n.CancelledAt,
		Total:             total,
		FulfillmentStatus: n.DisplayFulfillmentStatus,
		LineItems:         make([]catalog.OrderLineItem, 0, len(n.LineItems.Edges)),
	}
	for _, li := range n.LineItems.nodes() {
		lineTotal, err := toMoney(li.OriginalTotalSet.ShopMoney, total.Currency())
		if err != nil {
			return catalog.Order{}, err
		}
		item := catalog.OrderLineItem{
			ID:           li.ID,
			Title:        li.Title,
			VariantTitle: li.VariantTitle,
			Quantity:     li.Quantity,
			Total:        lineTotal,
		}
		if li.Image != nil {
			item.ImageURL = li.Image.URL
		}
		o.LineItems = append(o.LineItems, item)
	}
	return o, nil
}

type storefrontOrderNode struct {
	ID                string                   `json:"id"`
	Name              string                   `json:"name"`
	OrderNumber       int                      `json:"orderNumber"`
	ProcessedAt       time.Time                `json:"processedAt"`
	CanceledAt        *time.Time               `json:"canceledAt"`
	StatusURL         string                   `json:"statusUrl"`
	FulfillmentStatus string                   `json:"fulfillmentStatus"`
	TotalPrice        moneyV2                  `json:"totalPrice"`
	ShippingAddress   *catalog.ShippingAddress `json:"shippingAddress"`
	LineItems         connection[struct {
		Title              string  `json:"title"`
		Quantity           int     `json:"quantity"`
		OriginalTotalPrice moneyV2 `json:"originalTotalPrice"`
		Variant            *struct {
			Title string `json:"title"`
			Image *struct {
				URL string `json:"url"`
			} `json:"image"`
		} `json:"variant"`
	}] `json:"lineItems"`
}

func (n storefrontOrderNode) toDomain(currency valueobject.Currency) (catalog.Order, error) {
	total, err := toMoney(n.TotalPrice, currency)
	if err != nil {
		return catalog.Order{}, err
	}
	o := catalog.Order{
		ID:                n.ID,
		Name:              n.Name,
		OrderNumber:       n.OrderNumber,
		ProcessedAt:       n.ProcessedAt,
		CancelledAt:       n.CanceledAt,
		Total:             total,
		StatusURL:         n.StatusURL,
		FulfillmentStatus: n.FulfillmentStatus,
		ShippingAddress:   n.ShippingAddress,
		LineItems:         make([]catalog.OrderLineItem, 0, len(n.LineItems.Edges)),
	}
	for _, li := range n.LineItems.nodes() {
		lineTotal, err := toMoney(li.OriginalTotalPrice, total.Currency())
		if err != nil {
			return catalog.Order{}, err
		}
		item := catalog.OrderLineItem{Title: li.Title, Quantity: li.Quantity, Total: lineTotal}
		if li.Variant != nil {
			item.VariantTitle = li.Variant.Title
			if li.Variant.Image != nil {
				item.ImageURL = li.Variant.Image.URL
			}
		}
		o.LineItems = append(o.LineItems, item)
	}
	return o, nil
}

type ordersData struct {
	Orders connection[adminOrderNode] `json:"orders"`
}

type customerOrdersData struct {
	Customer *struct {
		Orders connection[storefrontOrderNode] `json:"orders"`
	} `json:"customer"`
}
