package shopify

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// scope selects which Shopify API an operation is sent to
type scope string

const (
	scopeAdmin      scope = "admin"
	scopeStorefront scope = "storefront"
)

// operation is one named GraphQL document
type operation struct {
	name     string
	scope    scope
	document string
	// readOnly operations may be retried
	readOnly bool
}

const productCardFields = `
fragment ProductCard on Product {
  id
  title
  handle
  description
  vendor
  productType
  tags
  createdAt
  updatedAt
  priceRange {
    minVariantPrice { amount currencyCode }
    maxVariantPrice { amount currencyCode }
  }
  images(first: 10) {
    edges { node { id url altText } }
  }
  variants(first: 5) {
    edges {
      node {
        id
        title
        price { amount currencyCode }
        availableForSale
        inventory: inventoryQuantity
      }
    }
  }
  collections(first: 5) {
    edges { node { id title handle } }
  }
}
`

const productDetailFields = `
fragment ProductDetail on Product {
  id
  title
  handle
  description
  vendor
  productType
  tags
  createdAt
  updatedAt
  priceRange {
    minVariantPrice { amount currencyCode }
    maxVariantPrice { amount currencyCode }
  }
  images(first: 20) {
    edges { node { id url altText } }
  }
  variants(first: 20) {
    edges {
      node {
        id
        title
        price { amount currencyCode }
        availableForSale
        inventory: inventoryQuantity
        selectedOptions { name value }
      }
    }
  }
  collections(first: 10) {
    edges { node { id title handle } }
  }
}
`

const addressFields = `
fragment AddressFields on MailingAddress {
  id
  address1
  address2
  city
  province
  country
  zip
}
`

var (
	opProducts = operation{
		name:     "Products",
		scope:    scopeAdmin,
		readOnly: true,
		document: `
query Products($limit: Int!, $after: String) {
  products(first: $limit, after: $after, sortKey: CREATED_AT, reverse: true) {
    edges { cursor node { ...ProductCard } }
    pageInfo { hasNextPage endCursor }
  }
}
` + productCardFields,
	}

	opSearchProducts = operation{
		name:     "SearchProducts",
		scope:    scopeAdmin,
		readOnly: true,
		document: `
query SearchProducts($query: String!, $limit: Int!) {
  products(first: $limit, query: $query) {
    edges { node { ...ProductCard } }
  }
}
` + productCardFields,
	}

	opProductByHandle = operation{
		name:     "ProductByHandle",
		scope:    scopeAdmin,
		readOnly: true,
		document: `
query ProductByHandle($handle: String!) {
  productByHandle(handle: $handle) { ...ProductDetail }
}
` + productDetailFields,
	}

	opCollections = operation{
		name:     "Collections",
		scope:    scopeAdmin,
		readOnly: true,
		document: `
query Collections($limit: Int!) {
  collections(first: $limit) {
    edges {
      node {
        id
        title
        handle
        description
        image { url altText }
        products(first: 10) { edges { node { ...ProductCard } } }
      }
    }
  }
}
` + productCardFields,
	}

	opCollectionByHandle = operation{
		name:     "CollectionByHandle",
		scope:    scopeAdmin,
		readOnly: true,
		document: `
query CollectionByHandle($handle: String!, $limit: Int!) {
  collectionByHandle(handle: $handle) {
    id
    title
    handle
    description
    image { url altText }
    products(first: $limit) { edges { node { ...ProductCard } } }
  }
}
` + productCardFields,
	}

	opCustomers = operation{
		name:     "Customers",
		scope:    scopeAdmin,
		readOnly: true,
		document: `
query Customers($limit: Int!) {
  customers(first: $limit) {
    edges {
      node {
        id
        email
        firstName
        lastName
        phone
        defaultAddress { ...AddressFields }
      }
    }
  }
}
` + addressFields,
	}

	opOrders = operation{
		name:     "Orders",
		scope:    scopeAdmin,
		readOnly: true,
		document: `
query Orders($limit: Int!, $query: String) {
  orders(first: $limit, query: $query, reverse: true) {
    edges {
      node {
        id
        name
        email
        phone
        processedAt
        cancelledAt
        displayFulfillmentStatus
        totalPriceSet { shopMoney { amount currencyCode } }
        lineItems(first: 10) {
          edges {
            node {
              id
              title
              variantTitle
              quantity
              originalTotalSet { shopMoney { amount currencyCode } }
              image { url }
            }
          }
        }
      }
    }
  }
}
`,
	}

	opCustomerCreate = operation{
		name:  "CustomerCreate",
		scope: scopeAdmin,
		document: `
mutation CustomerCreate($input: CustomerInput!) {
  customerCreate(input: $input) {
    customer { id email firstName lastName phone }
    userErrors { field message }
  }
}
`,
	}

	opCustomerUpdate = operation{
		name:  "CustomerUpdate",
		scope: scopeAdmin,
		document: `
mutation CustomerUpdate($input: CustomerInput!) {
  customerUpdate(input: $input) {
    customer {
      id
      email
      firstName
      lastName
      phone
      defaultAddress { ...AddressFields }
    }
    userErrors { field message }
  }
}
` + addressFields,
	}

	opDraftOrderCreate = operation{
		name:  "DraftOrderCreate",
		scope: scopeAdmin,
		document: `
mutation DraftOrderCreate($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder { id invoiceUrl }
    userErrors { field message }
  }
}
`,
	}

	opAccessTokenCreate = operation{
		name:  "CustomerAccessTokenCreate",
		scope: scopeStorefront,
		document: `
mutation CustomerAccessTokenCreate($input: CustomerAccessTokenCreateInput!) {
  customerAccessTokenCreate(input: $input) {
    customerAccessToken { accessToken expiresAt }
    customerUserErrors { code field message }
  }
}
`,
	}

	opCustomer = operation{
		name:     "Customer",
		scope:    scopeStorefront,
		readOnly: true,
		document: `
query Customer($customerAccessToken: String!) {
  customer(customerAccessToken: $customerAccessToken) {
    id
    firstName
    lastName
    email
    phone
    defaultAddress { ...AddressFields }
    addresses(first: 10) { edges { node { ...AddressFields } } }
  }
}
` + addressFields,
	}

	opCustomerOrders = operation{
		name:     "CustomerOrders",
		scope:    scopeStorefront,
		readOnly: true,
		document: `
query CustomerOrders($customerAccessToken: String!) {
  customer(customerAccessToken: $customerAccessToken) {
    orders(first: 20, reverse: true) {
      edges {
        node {
          id
          name
          orderNumber
          processedAt
          canceledAt
          statusUrl
          fulfillmentStatus
          totalPrice { amount currencyCode }
          lineItems(first: 20) {
            edges {
              node {
                title
                quantity
                originalTotalPrice { amount currencyCode }
                variant { title image { url } }
              }
            }
          }
        }
      }
    }
  }
}
`,
	}

	opCustomerOrder = operation{
		name:     "CustomerOrder",
		scope:    scopeStorefront,
		readOnly: true,
		document: `
query CustomerOrder($customerAccessToken: String!) {
  customer(customerAccessToken: $customerAccessToken) {
    orders(first: 100, reverse: true) {
      edges {
        node {
          id
          name
          orderNumber
          processedAt
          canceledAt
          statusUrl
          fulfillmentStatus
          totalPrice { amount currencyCode }
          shippingAddress { name address1 address2 city province country zip phone }
          lineItems(first: 50) {
            edges {
              node {
                title
                quantity
                originalTotalPrice { amount currencyCode }
                variant { title image { url } }
              }
            }
          }
        }
      }
    }
  }
}
`,
	}

	opProductMetafields = operation{
		name:     "ProductMetafields",
		scope:    scopeAdmin,
		readOnly: true,
		document: `
query ProductMetafields($id: ID!, $namespace: String!) {
  product(id: $id) {
    metafields(first: 20, namespace: $namespace) {
      edges { node { id namespace key value type } }
    }
  }
}
`,
	}

	opShop = operation{
		name:     "Shop",
		scope:    scopeStorefront,
		readOnly: true,
		document: `
query Shop {
  shop {
    name
    description
    primaryDomain { url }
    paymentSettings { currencyCode }
  }
}
`,
	}
)

var operations = []operation{
	opProducts, opSearchProducts, opProductByHandle, opCollections, opCollectionByHandle,
	opCustomers, opOrders, opCustomerCreate, opCustomerUpdate, opDraftOrderCreate,
	opAccessTokenCreate, opCustomer, opCustomerOrders, opCustomerOrder, opProductMetafields, opShop,
}

// validateDocuments parses every document and checks it holds exactly one
// operation with the expected name and that every fragment spread resolves.
func validateDocuments(ops []operation) error {
	for _, op := range ops {
		doc, gqlErr := parser.ParseQuery(&ast.Source{Name: op.name, Input: op.document})
		if gqlErr != nil {
			return fmt.Errorf("shopify: invalid %s document: %w", op.name, gqlErr)
		}
		if len(doc.Operations) != 1 || doc.Operations[0].Name != op.name {
			return fmt.Errorf("shopify: %s document must hold exactly one operation named %s", op.name, op.name)
		}
		for _, spread := range collectSpreads(doc.Operations[0].SelectionSet, doc.Fragments) {
			if doc.Fragments.ForName(spread) == nil {
				return fmt.Errorf("shopify: %s document spreads undefined fragment %s", op.name, spread)
			}
		}
	}
	return nil
}

func collectSpreads(set ast.SelectionSet, fragments ast.FragmentDefinitionList) []string {
	var names []string
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			names = append(names, collectSpreads(s.SelectionSet, fragments)...)
		case *ast.InlineFragment:
			names = append(names, collectSpreads(s.SelectionSet, fragments)...)
		case *ast.FragmentSpread:
			names = append(names, s.Name)
			if def := fragments.ForName(s.Name); def != nil {
				names = append(names, collectSpreads(def.SelectionSet, fragments)...)
			}
		}
	}
	return names
}
