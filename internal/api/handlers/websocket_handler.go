package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/biometriscan/gateway/internal/auth"
	"github.com/biometriscan/gateway/internal/services"
	ws "github.com/biometriscan/gateway/internal/websocket"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades signed-in clients to the live event stream.
type WebSocketHandler struct {
	hub      *ws.Hub
	events   services.EventServiceProvider
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. checkOrigin may be nil to
// accept only same-host origins.
func NewWebSocketHandler(hub *ws.Hub, events services.EventServiceProvider, checkOrigin func(r *http.Request) bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	topic := "global"
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		topic = ws.UserTopic(claims.Email)
	}

	client := ws.NewClient(h.hub, conn, topic)
	if !h.hub.Attach(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleIncomingWSMessage)
		h.hub.Detach(client)
	}()
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Warn().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		h.hub.SendTo(client, ws.NewErrorMessage("Invalid message"))
		return
	}

	switch msg.Action {
	case "recent_events":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		events, err := h.events.GetRecentEvents(ctx, defaultEventLimit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load recent events for websocket client")
			h.hub.SendTo(client, ws.NewErrorMessage("Failed to load events"))
			return
		}
		// Oldest first so clients can append in order.
		for i := len(events) - 1; i >= 0; i-- {
			h.hub.SendTo(client, ws.NewEventMessage(events[i]))
		}
	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		h.hub.SendTo(client, ws.NewErrorMessage("Unknown action: "+msg.Action))
	}
}
