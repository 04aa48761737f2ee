package websocket

import (
	"strings"
	"sync/atomic"

	"github.com/biometriscan/gateway/internal/models"
	"github.com/rs/zerolog/log"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages for every client.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Clients grouped by topic ("global", or UserTopic for a signed-in user).
	subscriptions map[string]map[*Client]bool

	targeted chan targetedMessage
	direct   chan directMessage
	done     chan struct{}
	count    atomic.Int64
}

type targetedMessage struct {
	topic   string
	message []byte
}

type directMessage struct {
	client  *Client
	message []byte
}

// UserTopic is the subscription topic for the user with the given email.
func UserTopic(email string) string {
	return "user:" + strings.ToLower(strings.TrimSpace(email))
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:     make(chan []byte, 64),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		targeted:      make(chan targetedMessage, 64),
		direct:        make(chan directMessage, 64),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			if client.Topic != "" {
				h.addSubscription(client, client.Topic)
			}
			log.Info().Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				h.send(client, message)
			}
		case tm := <-h.targeted:
			for client := range h.subscriptions[tm.topic] {
				h.send(client, tm.message)
			}
		case dm := <-h.direct:
			if h.clients[dm.client] {
				h.send(dm.client, dm.message)
			}
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Attach registers client unless the hub has stopped.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Detach unregisters client; it is a no-op after Stop.
func (h *Hub) Detach(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// ClientCount is the number of registered clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// BroadcastTo sends a message to all clients subscribed to topic.
func (h *Hub) BroadcastTo(topic string, message []byte) {
	select {
	case h.targeted <- targetedMessage{topic: topic, message: message}:
	case <-h.done:
	}
}

// SendTo queues a message for a single client. Messages for a client that has
// already been dropped are discarded.
func (h *Hub) SendTo(client *Client, message []byte) {
	select {
	case h.direct <- directMessage{client: client, message: message}:
	case <-h.done:
	}
}

// PublishEvent delivers auth events to the subject user's topic and every
// other event to all clients.
func (h *Hub) PublishEvent(event models.Event) {
	if strings.HasPrefix(event.Type, "auth.") && event.Subject != nil {
		h.BroadcastTo(UserTopic(*event.Subject), NewEventMessage(event))
		return
	}
	select {
	case h.Broadcast <- NewEventMessage(event):
	case <-h.done:
	}
}

func (h *Hub) send(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		// Slow consumer.
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	h.removeSubscription(client)
	h.count.Store(int64(len(h.clients)))
}

func (h *Hub) addSubscription(client *Client, topic string) {
	if h.subscriptions[topic] == nil {
		h.subscriptions[topic] = make(map[*Client]bool)
	}
	h.subscriptions[topic][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for topic, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, topic)
			}
		}
	}
}
