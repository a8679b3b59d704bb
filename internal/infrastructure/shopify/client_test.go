package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{
			name:    "store domain",
			config:  &Config{StoreDomain: "brand.myshopify.com"},
			wantErr: nil,
		},
		{
			name:    "explicit endpoints",
			config:  &Config{StorefrontURL: "http://localhost/sf", AdminURL: "http://localhost/admin"},
			wantErr: nil,
		},
		{
			name:    "missing store domain",
			config:  &Config{AdminURL: "http://localhost/admin"},
			wantErr: ErrConfigMissingStoreDomain,
		},
		{
			name:    "negative retries",
			config:  &Config{StoreDomain: "brand.myshopify.com", RetryAttempts: -1},
			wantErr: ErrConfigNegativeRetries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tt.config.StorefrontURL)
			assert.NotEmpty(t, tt.config.AdminURL)
			assert.Equal(t, DefaultRequestTimeout, tt.config.RequestTimeout)
			assert.Equal(t, DefaultPageLimit, tt.config.PageLimit)
		})
	}
}

func TestConfig_DerivedEndpoints(t *testing.T) {
	c := &Config{StoreDomain: "brand.myshopify.com"}
	require.NoError(t, c.Validate())
	assert.Equal(t, "https://brand.myshopify.com/api/2024-10/graphql.json", c.StorefrontURL)
	assert.Equal(t, "https://brand.myshopify.com/admin/api/2024-10/graphql.json", c.AdminURL)
}

func TestFromAppConfig(t *testing.T) {
	c := FromAppConfig(config.ShopifyConfig{
		StoreDomain:    "brand.myshopify.com",
		APIVersion:     "2024-07",
		AdminToken:     "admin",
		RequestTimeout: 5 * time.Second,
		PageLimit:      30,
	})
	require.NoError(t, c.Validate())
	assert.Equal(t, "https://brand.myshopify.com/admin/api/2024-07/graphql.json", c.AdminURL)
	assert.Equal(t, 5*time.Second, c.RequestTimeout)
	assert.Equal(t, 30, c.PageLimit)

	empty := FromAppConfig(config.ShopifyConfig{})
	assert.ErrorIs(t, empty.Validate(), ErrConfigMissingStoreDomain)
}

func TestValidateDocuments(t *testing.T) {
	require.NoError(t, validateDocuments(operations))

	tests := []struct {
		name string
		op   operation
	}{
		{name: "syntax error", op: operation{name: "Broken", document: "query Broken { products( }"}},
		{name: "name mismatch", op: operation{name: "Products", document: "query Other { shop { name } }"}},
		{name: "undefined fragment", op: operation{name: "Spread", document: "query Spread { shop { ...Missing } }"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validateDocuments([]operation{tt.op}))
		})
	}
}

// ---------------------------------------------------------------------------
// Client Tests
// ---------------------------------------------------------------------------

type capturedRequest struct {
	Path    string
	Header  http.Header
	Payload graphQLRequest
}

type requestRecorder struct {
	mu   sync.Mutex
	reqs []capturedRequest
}

func (r *requestRecorder) all() []capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capturedRequest(nil), r.reqs...)
}

func createMockServer(t *testing.T, handler func(w http.ResponseWriter, req capturedRequest)) (*httptest.Server, *requestRecorder) {
	t.Helper()
	rec := &requestRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload graphQLRequest
		_ = json.Unmarshal(body, &payload)
		req := capturedRequest{Path: r.URL.Path, Header: r.Header.Clone(), Payload: payload}
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, req)
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func createTestClient(t *testing.T, serverURL string, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := &Config{
		StorefrontURL:   serverURL + "/api/graphql.json",
		AdminURL:        serverURL + "/admin/graphql.json",
		StorefrontToken: "sf-token",
		AdminToken:      "admin-token",
		RequestTimeout:  2 * time.Second,
	}
	for _, m := range mutate {
		m(cfg)
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func writeData(w http.ResponseWriter, data string) {
	_, _ = io.WriteString(w, `{"data":`+data+`}`)
}

const productsPageJSON = `{
  "products": {
    "edges": [
      {
        "cursor": "c1",
        "node": {
          "id": "gid://shopify/Product/1",
          "title": "Silk Saree",
          "handle": "silk-saree",
          "vendor": "Atelier",
          "productType": "Saree",
          "tags": ["silk", "wedding"],
          "createdAt": "2024-05-01T10:00:00Z",
          "priceRange": {
            "minVariantPrice": {"amount": "4999.00", "currencyCode": "INR"},
            "maxVariantPrice": {"amount": "5999.00", "currencyCode": "INR"}
          },
          "images": {"edges": [{"node": {"id": "img1", "url": "https://cdn/img1.jpg", "altText": "front"}}]},
          "variants": {"edges": [
            {"node": {"id": "gid://shopify/ProductVariant/11", "title": "S", "price": {"amount": "4999.00", "currencyCode": "INR"}, "availableForSale": true, "inventory": 4}},
            {"node": {"id": "gid://shopify/ProductVariant/12", "title": "M", "price": {"amount": "5999.00", "currencyCode": "INR"}, "availableForSale": false}}
          ]},
          "collections": {"edges": [{"node": {"id": "col1", "title": "Festive", "handle": "festive"}}]}
        }
      }
    ],
    "pageInfo": {"hasNextPage": true, "endCursor": "c1"}
  }
}`

func TestClient_ProductsPage(t *testing.T) {
	server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		writeData(w, productsPageJSON)
	})
	client := createTestClient(t, server.URL)

	page, err := client.ProductsPage(context.Background(), commerce.PageRequest{})
	require.NoError(t, err)

	require.Len(t, seen.all(), 1)
	req := seen.all()[0]
	assert.Equal(t, "/admin/graphql.json", req.Path)
	assert.Equal(t, "admin-token", req.Header.Get(adminTokenHeader))
	assert.Equal(t, "Products", req.Payload.OperationName)
	assert.EqualValues(t, DefaultPageLimit, req.Payload.Variables["limit"])
	assert.NotContains(t, req.Payload.Variables, "after")

	assert.True(t, page.HasNextPage)
	assert.Equal(t, "c1", page.EndCursor)
	require.Len(t, page.Items, 1)

	p := page.Items[0]
	assert.Equal(t, "silk-saree", p.Handle)
	assert.Equal(t, "4999", p.MinPrice.Amount().String())
	assert.Equal(t, "INR", string(p.MinPrice.Currency()))
	assert.Equal(t, "https://cdn/img1.jpg", p.FeaturedImage())
	require.Len(t, p.Variants, 2)
	require.NotNil(t, p.Variants[0].InventoryQuantity)
	assert.Equal(t, 4, *p.Variants[0].InventoryQuantity)
	assert.Nil(t, p.Variants[1].InventoryQuantity)
	assert.Equal(t, []catalog.CollectionRef{{ID: "col1", Title: "Festive", Handle: "festive"}}, p.Collections)
	assert.Equal(t, 2024, p.CreatedAt.Year())
}

func TestClient_ProductsPage_Cursor(t *testing.T) {
	server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		writeData(w, `{"products":{"edges":[],"pageInfo":{"hasNextPage":false,"endCursor":null}}}`)
	})
	client := createTestClient(t, server.URL)

	page, err := client.ProductsPage(context.Background(), commerce.PageRequest{Limit: 5, After: "c9"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.False(t, page.HasNextPage)

	assert.Equal(t, "c9", seen.all()[0].Payload.Variables["after"])
	assert.EqualValues(t, 5, seen.all()[0].Payload.Variables["limit"])
}

func TestClient_AllProducts(t *testing.T) {
	var calls atomic.Int32
	server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		calls.Add(1)
		writeData(w, productsPageJSON)
	})
	client := createTestClient(t, server.URL, func(c *Config) { c.MaxPages = 3 })

	products, err := client.AllProducts(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, products, 3)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_SearchProducts(t *testing.T) {
	server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		writeData(w, productsPageJSON)
	})
	client := createTestClient(t, server.URL)

	products, err := client.SearchProducts(context.Background(), "saree", 10)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, "saree", seen.all()[0].Payload.Variables["query"])
	assert.Equal(t, "SearchProducts", seen.all()[0].Payload.OperationName)
}

func TestClient_ProductByHandle(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			writeData(w, `{"productByHandle":{"id":"p1","title":"Kurta","handle":"kurta",
				"priceRange":{"minVariantPrice":{"amount":"10.5","currencyCode":"USD"},"maxVariantPrice":{"amount":"10.5"}},
				"variants":{"edges":[{"node":{"id":"v1","title":"L","price":{"amount":"10.5"},
				"selectedOptions":[{"name":"Size","value":"L"}]}}]}}}`)
		})
		client := createTestClient(t, server.URL)

		p, err := client.ProductByHandle(context.Background(), "kurta")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "USD", string(p.MaxPrice.Currency()))
		assert.Equal(t, "USD", string(p.Variants[0].Price.Currency()))
		assert.Equal(t, []catalog.SelectedOption{{Name: "Size", Value: "L"}}, p.Variants[0].SelectedOptions)
	})

	t.Run("missing", func(t *testing.T) {
		server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			writeData(w, `{"productByHandle":null}`)
		})
		client := createTestClient(t, server.URL)

		p, err := client.ProductByHandle(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("malformed price", func(t *testing.T) {
		server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			writeData(w, `{"productByHandle":{"id":"p1","priceRange":{"minVariantPrice":{"amount":"ten"}}}}`)
		})
		client := createTestClient(t, server.URL)

		_, err := client.ProductByHandle(context.Background(), "kurta")
		assert.ErrorIs(t, err, commerce.ErrInvalidResponse)
	})
}

func TestClient_Collections(t *testing.T) {
	server, _ := createMockServer(t, func(w http.ResponseWriter, req capturedRequest) {
		if req.Payload.OperationName == "CollectionByHandle" {
			writeData(w, `{"collectionByHandle":{"id":"col1","title":"Festive","handle":"festive",
				"image":{"url":"https://cdn/festive.jpg"},
				"products":{"edges":[{"node":{"id":"p1","title":"Saree","handle":"saree"}}]}}}`)
			return
		}
		writeData(w, `{"collections":{"edges":[{"node":{"id":"col1","title":"Festive","handle":"festive",
			"products":{"edges":[]}}}]}}`)
	})
	client := createTestClient(t, server.URL)

	cols, err := client.Collections(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Nil(t, cols[0].Image)
	assert.Empty(t, cols[0].Products)

	col, err := client.CollectionByHandle(context.Background(), "festive", 50)
	require.NoError(t, err)
	require.NotNil(t, col)
	require.NotNil(t, col.Image)
	assert.Equal(t, "https://cdn/festive.jpg", col.Image.URL)
	assert.Len(t, col.Products, 1)
}

func TestClient_ShopInfo(t *testing.T) {
	server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		writeData(w, `{"shop":{"name":"Brand","description":"Handloom","primaryDomain":{"url":"https://brand.in"},
			"paymentSettings":{"currencyCode":"INR"}}}`)
	})
	client := createTestClient(t, server.URL)

	shop, err := client.ShopInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &catalog.Shop{Name: "Brand", Description: "Handloom", URL: "https://brand.in", CurrencyCode: "INR"}, shop)
	assert.Equal(t, "/api/graphql.json", seen.all()[0].Path)
	assert.Equal(t, "sf-token", seen.all()[0].Header.Get(storefrontTokenHeader))
}

// ---------------------------------------------------------------------------
// Customer auth
// ---------------------------------------------------------------------------

func TestClient_CreateAccessToken(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantToken string
		wantErr   error
	}{
		{
			name:      "success",
			response:  `{"customerAccessTokenCreate":{"customerAccessToken":{"accessToken":"tok","expiresAt":"2030-01-01T00:00:00Z"},"customerUserErrors":[]}}`,
			wantToken: "tok",
		},
		{
			name:     "bad credentials",
			response: `{"customerAccessTokenCreate":{"customerAccessToken":null,"customerUserErrors":[{"code":"UNIDENTIFIED_CUSTOMER","field":["input"],"message":"Unidentified customer"}]}}`,
			wantErr:  commerce.ErrAuthFailed,
		},
		{
			name:     "empty token",
			response: `{"customerAccessTokenCreate":{"customerAccessToken":{"accessToken":""},"customerUserErrors":[]}}`,
			wantErr:  commerce.ErrAuthFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
				writeData(w, tt.response)
			})
			client := createTestClient(t, server.URL)

			tok, err := client.CreateAccessToken(context.Background(), "a@b.co", "secret")
			input, _ := seen.all()[0].Payload.Variables["input"].(map[string]any)
			assert.Equal(t, "a@b.co", input["email"])
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, tok.Token)
			assert.Equal(t, 2030, tok.ExpiresAt.Year())
		})
	}
}

func TestClient_Customer(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			writeData(w, `{"customer":{"id":"gid://shopify/Customer/7","firstName":"Asha","lastName":"Rao","email":"asha@example.com",
				"defaultAddress":{"id":"a1","city":"Jaipur","country":"India"},
				"addresses":{"edges":[{"node":{"id":"a1","city":"Jaipur"}},{"node":{"id":"a2","city":"Pune"}}]}}}`)
		})
		client := createTestClient(t, server.URL)

		c, err := client.Customer(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "Asha Rao", c.DisplayName())
		require.NotNil(t, c.DefaultAddress)
		assert.Equal(t, "Jaipur", c.DefaultAddress.City)
		assert.Len(t, c.Addresses, 2)
		assert.Equal(t, "tok", seen.all()[0].Payload.Variables["customerAccessToken"])
	})

	t.Run("unknown token", func(t *testing.T) {
		server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			writeData(w, `{"customer":null}`)
		})
		client := createTestClient(t, server.URL)

		_, err := client.Customer(context.Background(), "stale")
		assert.ErrorIs(t, err, commerce.ErrAuthFailed)
	})
}

func TestClient_CustomerOrders(t *testing.T) {
	server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		writeData(w, `{"customer":{"orders":{"edges":[{"node":{"id":"o1","name":"#1001","orderNumber":1001,
			"processedAt":"2024-06-01T08:00:00Z","statusUrl":"https://status","fulfillmentStatus":"FULFILLED",
			"totalPrice":{"amount":"150.00","currencyCode":"INR"},
			"lineItems":{"edges":[{"node":{"title":"Kurta","quantity":3,"originalTotalPrice":{"amount":"150.00"},
			"variant":{"title":"M","image":{"url":"https://cdn/k.jpg"}}}}]}}}]}}}`)
	})
	client := createTestClient(t, server.URL)

	orders, err := client.CustomerOrders(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, 1001, o.OrderNumber)
	assert.Equal(t, 3, o.ItemCount())
	assert.Equal(t, "M", o.LineItems[0].VariantTitle)
	assert.Equal(t, "https://cdn/k.jpg", o.LineItems[0].ImageURL)
	assert.Equal(t, "INR", string(o.LineItems[0].Total.Currency()))
}

func TestClient_CustomerOrder(t *testing.T) {
	server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		writeData(w, `{"customer":{"orders":{"edges":[
			{"node":{"id":"o2","orderNumber":1002,"totalPrice":{"amount":"80.00","currencyCode":"INR"},"lineItems":{"edges":[]}}},
			{"node":{"id":"o1","name":"#1001","orderNumber":1001,"statusUrl":"https://status",
			"totalPrice":{"amount":"150.00","currencyCode":"INR"},
			"shippingAddress":{"name":"Ada L","address1":"1 MG Road","city":"Pune","country":"India","zip":"411001"},
			"lineItems":{"edges":[{"node":{"title":"Kurta","quantity":3,"originalTotalPrice":{"amount":"150.00"},
			"variant":{"title":"M","image":{"url":"https://cdn/k.jpg"}}}}]}}}]}}}`)
	})
	client := createTestClient(t, server.URL)
	ctx := context.Background()

	o, err := client.CustomerOrder(ctx, "tok", "o1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, 1001, o.OrderNumber)
	assert.Equal(t, "https://status", o.StatusURL)
	require.NotNil(t, o.ShippingAddress)
	assert.Equal(t, "Pune", o.ShippingAddress.City)
	assert.Equal(t, "Ada L", o.ShippingAddress.Name)
	assert.Equal(t, "https://cdn/k.jpg", o.LineItems[0].ImageURL)

	req := seen.all()[0]
	assert.Equal(t, "CustomerOrder", req.Payload.OperationName)
	assert.Equal(t, "tok", req.Payload.Variables["customerAccessToken"])

	missing, err := client.CustomerOrder(ctx, "tok", "o9")
	require.NoError(t, err)
	assert.Nil(t, missing, "ids outside the customer's orders read as nil")

	_, err = client.CustomerOrder(ctx, "tok", "")
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Len(t, seen.all(), 2)
}

func TestClient_CustomerOrderUnknownToken(t *testing.T) {
	server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		writeData(w, `{"customer":null}`)
	})
	client := createTestClient(t, server.URL)

	_, err := client.CustomerOrder(context.Background(), "expired", "o1")
	assert.ErrorIs(t, err, commerce.ErrAuthFailed)
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

func TestClient_Orders(t *testing.T) {
	tests := []struct {
		name      string
		status    catalog.OrderStatus
		wantQuery any
		wantErr   error
	}{
		{name: "any applies no filter", status: catalog.OrderStatusAny, wantQuery: nil},
		{name: "open", status: catalog.OrderStatusOpen, wantQuery: "status:open"},
		{name: "cancelled", status: catalog.OrderStatusCancelled, wantQuery: "status:cancelled"},
		{name: "unknown status", status: "SHIPPED", wantErr: shared.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
				writeData(w, `{"orders":{"edges":[{"node":{"id":"o1","name":"#1","displayFulfillmentStatus":"UNFULFILLED",
					"totalPriceSet":{"shopMoney":{"amount":"99.00","currencyCode":"INR"}},
					"lineItems":{"edges":[{"node":{"id":"li1","title":"Dupatta","quantity":1,"originalTotalSet":{"shopMoney":{"amount":"99.00"}}}}]}}}]}}`)
			})
			client := createTestClient(t, server.URL)

			orders, err := client.Orders(context.Background(), 10, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, seen.all())
				return
			}
			require.NoError(t, err)
			require.Len(t, orders, 1)
			assert.Equal(t, "UNFULFILLED", orders[0].FulfillmentStatus)
			assert.Equal(t, tt.wantQuery, seen.all()[0].Payload.Variables["query"])
		})
	}
}

func TestClient_ProductMetafields(t *testing.T) {
	server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		writeData(w, `{"product":{"metafields":{"edges":[
			{"node":{"id":"m1","namespace":"reviews","key":"rating","value":"4.5","type":"number_decimal"}},
			{"node":{"id":"m2","namespace":"reviews","key":"count","value":"12","type":"number_integer"}}]}}}`)
	})
	client := createTestClient(t, server.URL)

	fields, err := client.ProductMetafields(context.Background(), "gid://shopify/Product/1", "")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "rating", fields[0].Key)
	assert.Equal(t, "4.5", fields[0].Value)

	req := seen.all()[0]
	assert.Equal(t, "/admin/graphql.json", req.Path)
	assert.Equal(t, catalog.ReviewsNamespace, req.Payload.Variables["namespace"])
	assert.Equal(t, "gid://shopify/Product/1", req.Payload.Variables["id"])
}

func TestClient_CustomerMutations(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			writeData(w, `{"customerCreate":{"customer":{"id":"c1","email":"new@example.com","firstName":"Nia"},"userErrors":[]}}`)
		})
		client := createTestClient(t, server.URL)

		c, err := client.CreateCustomer(context.Background(), commerce.CustomerInput{Email: "new@example.com", FirstName: "Nia"})
		require.NoError(t, err)
		assert.Equal(t, "c1", c.ID)
		input, _ := seen.all()[0].Payload.Variables["input"].(map[string]any)
		assert.Equal(t, map[string]any{"email": "new@example.com", "firstName": "Nia"}, input)
	})

	t.Run("user errors", func(t *testing.T) {
		server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			writeData(w, `{"customerCreate":{"customer":null,"userErrors":[{"field":["email"],"message":"Email has already been taken"}]}}`)
		})
		client := createTestClient(t, server.URL)

		_, err := client.CreateCustomer(context.Background(), commerce.CustomerInput{Email: "dup@example.com"})
		require.ErrorIs(t, err, commerce.ErrAPI)
		assert.Contains(t, err.Error(), "Email has already been taken")
	})

	t.Run("update sends id", func(t *testing.T) {
		server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			writeData(w, `{"customerUpdate":{"customer":{"id":"c1","phone":"+911234"},"userErrors":[]}}`)
		})
		client := createTestClient(t, server.URL)

		c, err := client.UpdateCustomer(context.Background(), "c1", commerce.CustomerInput{Phone: "+911234"})
		require.NoError(t, err)
		assert.Equal(t, "+911234", c.Phone)
		input, _ := seen.all()[0].Payload.Variables["input"].(map[string]any)
		assert.Equal(t, "c1", input["id"])
	})

	t.Run("update needs id", func(t *testing.T) {
		client := createTestClient(t, "http://127.0.0.1:1")
		_, err := client.UpdateCustomer(context.Background(), "", commerce.CustomerInput{})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestClient_CreateDraftOrder(t *testing.T) {
	server, seen := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		writeData(w, `{"draftOrderCreate":{"draftOrder":{"id":"d1","invoiceUrl":"https://brand/invoices/d1"},"userErrors":[]}}`)
	})
	client := createTestClient(t, server.URL)

	order, err := client.CreateDraftOrder(context.Background(), []commerce.DraftOrderLine{
		{VariantID: "v1", Quantity: 2},
	}, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://brand/invoices/d1", order.InvoiceURL)

	input, _ := seen.all()[0].Payload.Variables["input"].(map[string]any)
	assert.Equal(t, "asha@example.com", input["email"])
	lines, _ := input["lineItems"].([]any)
	require.Len(t, lines, 1)

	_, err = client.CreateDraftOrder(context.Background(), nil, "")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

// ---------------------------------------------------------------------------
// Transport failures
// ---------------------------------------------------------------------------

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, req capturedRequest)
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ capturedRequest) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: commerce.ErrNetwork,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, _ capturedRequest) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantErr: commerce.ErrAPI,
		},
		{
			name: "graphql errors",
			handler: func(w http.ResponseWriter, _ capturedRequest) {
				_, _ = io.WriteString(w, `{"errors":[{"message":"Field 'x' doesn't exist"}]}`)
			},
			wantErr: commerce.ErrAPI,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ capturedRequest) {
				_, _ = io.WriteString(w, `{"data":`)
			},
			wantErr: commerce.ErrInvalidResponse,
		},
		{
			name: "null data",
			handler: func(w http.ResponseWriter, _ capturedRequest) {
				_, _ = io.WriteString(w, `{"data":null}`)
			},
			wantErr: commerce.ErrInvalidResponse,
		},
		{
			name: "wrong data shape",
			handler: func(w http.ResponseWriter, _ capturedRequest) {
				writeData(w, `{"products":"nope"}`)
			},
			wantErr: commerce.ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := createMockServer(t, tt.handler)
			client := createTestClient(t, server.URL)

			_, err := client.SearchProducts(context.Background(), "saree", 5)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		<-release
	})
	defer close(release)
	client := createTestClient(t, server.URL, func(c *Config) { c.RequestTimeout = 50 * time.Millisecond })

	start := time.Now()
	_, err := client.ShopInfo(context.Background())
	assert.ErrorIs(t, err, commerce.ErrTimeout)
	assert.Equal(t, commerce.ErrTimeout.Code, commerce.Classify(err).Code)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_NotConfigured(t *testing.T) {
	client := createTestClient(t, "http://127.0.0.1:1", func(c *Config) { c.StorefrontToken = "" })

	_, err := client.Customer(context.Background(), "tok")
	assert.ErrorIs(t, err, commerce.ErrNotConfigured)
}

func TestClient_Retry(t *testing.T) {
	t.Run("reads retry transient failures", func(t *testing.T) {
		var calls atomic.Int32
		server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writeData(w, productsPageJSON)
		})
		client := createTestClient(t, server.URL, func(c *Config) {
			c.RetryAttempts = 2
			c.RetryBackoff = time.Millisecond
		})

		products, err := client.SearchProducts(context.Background(), "saree", 5)
		require.NoError(t, err)
		assert.Len(t, products, 1)
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("api errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			calls.Add(1)
			_, _ = io.WriteString(w, `{"errors":[{"message":"bad query"}]}`)
		})
		client := createTestClient(t, server.URL, func(c *Config) { c.RetryAttempts = 3 })

		_, err := client.SearchProducts(context.Background(), "saree", 5)
		assert.ErrorIs(t, err, commerce.ErrAPI)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("mutations are never retried", func(t *testing.T) {
		var calls atomic.Int32
		server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		client := createTestClient(t, server.URL, func(c *Config) {
			c.RetryAttempts = 3
			c.RetryBackoff = time.Millisecond
		})

		_, err := client.CreateAccessToken(context.Background(), "a@b.co", "pw")
		assert.ErrorIs(t, err, commerce.ErrNetwork)
		assert.EqualValues(t, 1, calls.Load())
	})
}

func TestClient_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := telemetry.NewMetricsWithMeter(provider.Meter("test"))
	require.NoError(t, err)

	server, _ := createMockServer(t, func(w http.ResponseWriter, _ capturedRequest) {
		writeData(w, productsPageJSON)
	})
	cfg := &Config{
		StorefrontURL:  server.URL + "/api/graphql.json",
		AdminURL:       server.URL + "/admin/graphql.json",
		AdminToken:     "admin-token",
		RequestTimeout: time.Second,
	}
	client, err := NewClient(cfg, WithMetrics(metrics))
	require.NoError(t, err)

	_, err = client.SearchProducts(context.Background(), "saree", 5)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "storefront.platform.requests" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.EqualValues(t, 1, sum.DataPoints[0].Value)
			outcome, _ := sum.DataPoints[0].Attributes.Value(telemetry.AttrKeyOutcome)
			assert.Equal(t, outcomeOK, outcome.AsString())
			found = true
		}
	}
	assert.True(t, found)
}
