package models

import "time"

// Event represents a loggable action or alert in the gateway.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "auth.signin.success", "upstream.down"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	Subject   *string   `json:"subject,omitempty"` // user email or upstream URL; nil for system-wide events
	CreatedAt time.Time `json:"createdAt"`
}

const (
	EventSignInSuccess = "auth.signin.success"
	EventSignInFail    = "auth.signin.fail"
	EventSignOut       = "auth.signout"
	EventUpstreamUp    = "upstream.up"
	EventUpstreamDown  = "upstream.down"
)
