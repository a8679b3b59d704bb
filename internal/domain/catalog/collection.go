package catalog

// Collection groups products under a handle
type Collection struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Description string    `json:"description,omitempty"`
	Image       *Image    `json:"image,omitempty"`
	Products    []Product `json:"products"`
}

// Shop is the storefront's public shop information
type Shop struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	URL          string `json:"url,omitempty"`
	CurrencyCode string `json:"currencyCode,omitempty"`
}
