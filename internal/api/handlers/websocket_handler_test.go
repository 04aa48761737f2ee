package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/biometriscan/gateway/internal/models"
	ws "github.com/biometriscan/gateway/internal/websocket"
	"github.com/gorilla/websocket"
)

func dialEvents(t *testing.T, events *eventStub) (*websocket.Conn, *ws.Hub) {
	t.Helper()
	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := NewWebSocketHandler(hub, events, nil)
	srv := httptest.NewServer(http.HandlerFunc(h.Serve))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn, hub
}

func readMessage(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ws.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocketReceivesPublishedEvents(t *testing.T) {
	conn, hub := dialEvents(t, &eventStub{})

	hub.PublishEvent(models.Event{ID: "e1", Type: models.EventUpstreamDown, Level: "error", Message: "Backend down"})

	msg := readMessage(t, conn)
	if msg.Action != ws.ActionEvent {
		t.Fatalf("expected an event frame, got %+v", msg)
	}
	payload, _ := json.Marshal(msg.Payload)
	if !strings.Contains(string(payload), `"level":"error"`) || !strings.Contains(string(payload), "Backend down") {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestWebSocketRecentEvents(t *testing.T) {
	stub := &eventStub{events: []models.Event{
		{ID: "new", Type: models.EventSignOut, Level: "info", Message: "Signed out"},
		{ID: "old", Type: models.EventSignInSuccess, Level: "info", Message: "Sign in successful"},
	}}
	conn, _ := dialEvents(t, stub)

	if err := conn.WriteJSON(ws.Message{Action: "recent_events"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	first, second := readMessage(t, conn), readMessage(t, conn)
	a, _ := json.Marshal(first.Payload)
	b, _ := json.Marshal(second.Payload)
	if !strings.Contains(string(a), `"id":"old"`) || !strings.Contains(string(b), `"id":"new"`) {
		t.Fatalf("expected oldest first, got %s then %s", a, b)
	}
}

func TestWebSocketUnknownAction(t *testing.T) {
	conn, _ := dialEvents(t, &eventStub{})

	if err := conn.WriteJSON(ws.Message{Action: "launch"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Action != ws.ActionError {
		t.Fatalf("expected an error frame, got %+v", msg)
	}
}
