package models

import "time"

//nolint:gosec //file not handles sensitive data
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	MwUserKey = "user"
)

// ClientMeta describes the caller of an auth flow. It only feeds session
// events and logs.
type ClientMeta struct {
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address"`
}

const (
	EventRegister = "register"
	EventLogin    = "login"
	EventLogout   = "logout"
)

type SessionEvent struct {
	Event      string    `json:"event"`
	UserID     string    `json:"user_id"`
	IPAddress  string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	OccurredAt time.Time `json:"occurred_at"`
}
