package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/biometriscan/gateway/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, subject *string) error
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
}

// EventService persists gateway events and forwards them to an optional publisher.
type EventService struct {
	db      *sql.DB
	publish func(models.Event)
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{db: db}
}

// SetPublisher registers fn to receive every stored event. Set it before serving traffic.
func (s *EventService) SetPublisher(fn func(models.Event)) {
	s.publish = fn
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, subject *string) error {
	event := models.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Level:   level,
		Message: message,
		Subject: subject,
	}

	_, err := s.db.ExecContext(ctx, "INSERT INTO events (id, type, level, message, subject) VALUES (?, ?, ?, ?, ?)",
		event.ID, event.Type, event.Level, event.Message, event.Subject)
	if err != nil {
		return err
	}

	if s.publish != nil {
		event.CreatedAt = time.Now().UTC()
		s.publish(event)
	}
	return nil
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, type, level, message, subject, created_at FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.Subject, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// record is a fire-and-forget helper for callers that must not fail on event storage.
func record(ctx context.Context, events EventServiceProvider, eventType, level, message string, subject *string) {
	if events == nil {
		return
	}
	if err := events.CreateEvent(ctx, eventType, level, message, subject); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("Failed to record event")
	}
}
