package session

import (
	"strings"

	"github.com/storefront/backend/internal/domain/shared"
)

// Address is a customer mailing address
type Address struct {
	ID       string `json:"id,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
	Zip      string `json:"zip,omitempty"`
}

// Customer is the identity record of a logged-in shopper
type Customer struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	DefaultAddress *Address  `json:"defaultAddress,omitempty"`
	Addresses      []Address `json:"addresses,omitempty"`
}

// DisplayName returns "First Last", falling back to the email
func (c Customer) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.Email
	}
	return name
}

// Validate checks the record is usable as a session identity
func (c Customer) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return shared.ErrValidation.WithMessage("customer id is required")
	}
	return nil
}

// Clone returns a deep copy
func (c Customer) Clone() Customer {
	out := c
	if c.DefaultAddress != nil {
		a := *c.DefaultAddress
		out.DefaultAddress = &a
	}
	if c.Addresses != nil {
		out.Addresses = append([]Address(nil), c.Addresses...)
	}
	return out
}
