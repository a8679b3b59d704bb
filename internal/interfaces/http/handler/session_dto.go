package handler

import (
	"time"

	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/session"
)

// LoginRequest exchanges customer credentials for a session
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignupRequest creates a customer account and logs it in
type SignupRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=5"`
	FirstName string `json:"firstName" binding:"max=255"`
	LastName  string `json:"lastName" binding:"max=255"`
	Phone     string `json:"phone" binding:"omitempty,e164"`
}

func (r SignupRequest) toInput() commerce.CustomerInput {
	return commerce.CustomerInput{
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
}

// UpdateCustomerRequest edits the logged-in customer's profile
type UpdateCustomerRequest struct {
	Email     string `json:"email" binding:"omitempty,email"`
	FirstName string `json:"firstName" binding:"max=255"`
	LastName  string `json:"lastName" binding:"max=255"`
	Phone     string `json:"phone" binding:"omitempty,e164"`
}

func (r UpdateCustomerRequest) toInput() commerce.CustomerInput {
	return commerce.CustomerInput{
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
}

// SessionResponse describes the session without exposing the access token
type SessionResponse struct {
	State     session.State     `json:"state"`
	Customer  *session.Customer `json:"customer,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

func toSessionResponse(s session.Session) SessionResponse {
	resp := SessionResponse{State: s.State()}
	if identity, ok := s.Identity(); ok {
		resp.Customer = &identity
	}
	if cred, ok := s.Credential(); ok && !cred.ExpiresAt.IsZero() {
		expiresAt := cred.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	return resp
}
