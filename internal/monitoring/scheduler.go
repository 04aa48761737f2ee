package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/biometriscan/gateway/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the gateway's periodic jobs: the backend probe and the
// expired-session purge.
type Scheduler struct {
	cron     *cron.Cron
	upstream *UpstreamMonitor
	sessions services.SessionServiceProvider
}

// NewScheduler registers both jobs. Schedules use cron syntax, including
// descriptors such as "@every 30s" and "@hourly".
func NewScheduler(upstream *UpstreamMonitor, sessions services.SessionServiceProvider, healthSpec, purgeSpec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		upstream: upstream,
		sessions: sessions,
	}
	if upstream != nil {
		if _, err := s.cron.AddFunc(healthSpec, s.checkUpstream); err != nil {
			return nil, fmt.Errorf("invalid health check schedule %q: %w", healthSpec, err)
		}
	}
	if sessions != nil {
		if _, err := s.cron.AddFunc(purgeSpec, s.purgeSessions); err != nil {
			return nil, fmt.Errorf("invalid session purge schedule %q: %w", purgeSpec, err)
		}
	}
	return s, nil
}

// Run probes the backend once, then starts the cron loop in the background.
func (s *Scheduler) Run() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting background scheduler...")
	if s.upstream != nil {
		s.checkUpstream()
	}
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped background scheduler.")
}

func (s *Scheduler) checkUpstream() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.upstream.Check(ctx)
}

func (s *Scheduler) purgeSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: failed to purge sessions")
		return
	}
	if n > 0 {
		log.Info().Int64("purged", n).Msg("Scheduler: purged expired sessions")
	}
}
