package websocket

import (
	"encoding/json"

	"github.com/biometriscan/gateway/internal/models"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// ToastPayload is rendered by dashboards as a transient notification.
type ToastPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

const (
	ActionEvent = "event"
	ActionError = "error"
)

// NewEventMessage wraps a gateway event together with the toast it should raise.
func NewEventMessage(event models.Event) []byte {
	return encode(Message{Action: ActionEvent, Payload: map[string]interface{}{
		"event": event,
		"toast": ToastPayload{Level: toastLevel(event.Level), Message: event.Message},
	}})
}

// NewErrorMessage builds an error frame for a single client.
func NewErrorMessage(msg string) []byte {
	return encode(Message{Action: ActionError, Payload: map[string]string{"message": msg}})
}

func toastLevel(level string) string {
	switch level {
	case "error", "warn":
		return "error"
	default:
		return "success"
	}
}

func encode(m Message) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		return []byte(`{"action":"error","payload":{"message":"encode failed"}}`)
	}
	return b
}
