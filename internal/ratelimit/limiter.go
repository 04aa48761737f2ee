package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) Decision
	Close()
}

// Decision is the verdict for one hit.
type Decision struct {
	Allowed   bool
	Count     int
	WindowEnd time.Time
}

type memoryLimiter struct {
	mu      sync.Mutex
	entries map[string]state
	stopCh  chan struct{}
	once    sync.Once
	now     func() time.Time
}

type state struct {
	count     int
	windowEnd time.Time
}

// NewMemoryLimiter creates an in-process limiter with a background sweep of stale keys.
func NewMemoryLimiter() Limiter {
	rl := newMemoryLimiter(time.Now)
	go rl.sweepLoop()
	return rl
}

func newMemoryLimiter(now func() time.Time) *memoryLimiter {
	return &memoryLimiter{
		entries: make(map[string]state),
		stopCh:  make(chan struct{}),
		now:     now,
	}
}

func (rl *memoryLimiter) Allow(key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	st, ok := rl.entries[key]
	if !ok || now.After(st.windowEnd) {
		st = state{count: 1, windowEnd: now.Add(window)}
		rl.entries[key] = st
		return Decision{Allowed: true, Count: st.count, WindowEnd: st.windowEnd}
	}
	if st.count >= limit {
		return Decision{Allowed: false, Count: st.count, WindowEnd: st.windowEnd}
	}
	st.count++
	rl.entries[key] = st
	return Decision{Allowed: true, Count: st.count, WindowEnd: st.windowEnd}
}

func (rl *memoryLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(rl.now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, st := range rl.entries {
		if now.After(st.windowEnd) {
			delete(rl.entries, key)
		}
	}
}

func (rl *memoryLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}

// KeyIP keys requests by client address. chi's RealIP middleware has already
// folded X-Forwarded-For / X-Real-IP into RemoteAddr.
func KeyIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

// SetHeaders writes the X-RateLimit-* headers for a decision.
func SetHeaders(w http.ResponseWriter, limit int, d Decision) {
	if limit <= 0 {
		return
	}
	remaining := limit - d.Count
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !d.WindowEnd.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.WindowEnd.Unix(), 10))
	}
}
