package models

import "time"

// RefreshTokenRecord is the single active refresh token of a user.
type RefreshTokenRecord struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}
