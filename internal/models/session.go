package models

import "time"

// Session is a server-side record of an issued session token, keyed by the token's jti.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	ExpiresAt time.Time  `json:"expires"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Active reports whether the session can still authenticate requests at now.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// SignInResult mirrors the result object returned to a credentials sign-in call.
// Exactly one of OK or Error is meaningful.
type SignInResult struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Status int    `json:"status"`
	URL    string `json:"url,omitempty"`
}
