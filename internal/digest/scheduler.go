package digest

import (
	"context"
	"log"
	"time"

	"github.com/panxpan/rsvpcast/internal/store"
)

// Scheduler fires the digest pipeline once per day inside a configured
// local-time window. The send log keeps it idempotent across restarts.
type Scheduler struct {
	pipeline *Pipeline
	store    *store.Store
	loc      *time.Location
	sendHour int
	interval time.Duration
}

func NewScheduler(pipeline *Pipeline, st *store.Store, loc *time.Location, sendHour int) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		store:    st,
		loc:      loc,
		sendHour: sendHour,
		interval: 15 * time.Minute,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.runIfDue()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("digest scheduler: shutting down")
			return
		case <-ticker.C:
			s.runIfDue()
		}
	}
}

func (s *Scheduler) runIfDue() {
	now := time.Now().In(s.loc)
	if now.Hour() != s.sendHour {
		return
	}

	sent, err := s.store.HasDigestForDate(now)
	if err != nil {
		log.Printf("digest scheduler: check send log: %v", err)
		return
	}
	if sent {
		return
	}

	if err := s.pipeline.Run(); err != nil {
		log.Printf("digest scheduler: %v", err)
	}
}
