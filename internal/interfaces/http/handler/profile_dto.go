package handler

import "time"

// ProfileResponse returns a new profile with the token that addresses it
type ProfileResponse struct {
	ProfileID string    `json:"profile_id"`
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}
