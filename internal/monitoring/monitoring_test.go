package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/biometriscan/gateway/internal/models"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *eventRecorder) CreateEvent(_ context.Context, eventType, level, message string, subject *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, models.Event{Type: eventType, Level: level, Message: message, Subject: subject})
	return nil
}

func (r *eventRecorder) GetRecentEvents(context.Context, int) ([]models.Event, error) {
	return nil, nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func TestUpstreamMonitorTransitions(t *testing.T) {
	var failing atomic.Bool
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"message":"Hello World"}`))
	}))
	defer backend.Close()

	events := &eventRecorder{}
	m := NewUpstreamMonitor(backend.URL, events, nil)
	ctx := context.Background()

	if st := m.Check(ctx); !st.Healthy {
		t.Fatalf("expected healthy, got %+v", st)
	}
	if len(events.types()) != 0 {
		t.Fatalf("an initial healthy probe records nothing")
	}

	failing.Store(true)
	m.Check(ctx)
	m.Check(ctx)
	failing.Store(false)
	m.Check(ctx)

	got := events.types()
	if len(got) != 2 || got[0] != models.EventUpstreamDown || got[1] != models.EventUpstreamUp {
		t.Fatalf("unexpected events %v", got)
	}
	if !m.Status().Healthy || m.Status().CheckedAt.IsZero() {
		t.Fatalf("unexpected status %+v", m.Status())
	}
}

func TestUpstreamMonitorUnreachableFirstProbe(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := backend.URL
	backend.Close()

	events := &eventRecorder{}
	st := NewUpstreamMonitor(url, events, nil).Check(context.Background())
	if st.Healthy || st.Error == "" {
		t.Fatalf("expected unhealthy status, got %+v", st)
	}
	if got := events.types(); len(got) != 1 || got[0] != models.EventUpstreamDown {
		t.Fatalf("unexpected events %v", got)
	}
}

type purgeStub struct {
	calls atomic.Int32
}

func (p *purgeStub) CreateSession(context.Context, models.Session) error { return nil }
func (p *purgeStub) GetSession(context.Context, string) (models.Session, error) {
	return models.Session{}, nil
}
func (p *purgeStub) IsActive(context.Context, string) (bool, error) { return true, nil }
func (p *purgeStub) RevokeSession(context.Context, string) error   { return nil }
func (p *purgeStub) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 3, nil
}

func TestNewSchedulerValidatesSpecs(t *testing.T) {
	m := NewUpstreamMonitor("http://127.0.0.1:1", nil, nil)
	if _, err := NewScheduler(m, &purgeStub{}, "not a schedule", "@hourly"); err == nil {
		t.Fatalf("expected invalid health schedule error")
	}
	if _, err := NewScheduler(m, &purgeStub{}, "@every 30s", "bogus"); err == nil {
		t.Fatalf("expected invalid purge schedule error")
	}
	s, err := NewScheduler(m, &purgeStub{}, "@every 30s", "@hourly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.cron.Entries()) != 2 {
		t.Fatalf("expected two jobs, got %d", len(s.cron.Entries()))
	}
}

func TestSchedulerPurgeJob(t *testing.T) {
	sessions := &purgeStub{}
	s, err := NewScheduler(nil, sessions, "@every 30s", "@hourly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.purgeSessions()
	if sessions.calls.Load() != 1 {
		t.Fatalf("expected purge call")
	}
	s.Run()
	s.Stop()
}

func TestReadHostStats(t *testing.T) {
	stats, err := ReadHostStats(context.Background())
	if err != nil {
		t.Skipf("host stats unavailable: %v", err)
	}
	if stats.MemPercent <= 0 || stats.MemPercent > 100 {
		t.Fatalf("unexpected memory percent %v", stats.MemPercent)
	}
}
