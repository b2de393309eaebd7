package sqlite

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically deletes audit events older than the retention window.
type Sweeper struct {
	store     *Store
	retention time.Duration
	cron      *cron.Cron
}

// NewSweeper schedules a retention sweep on the given cron spec, for example
// "@hourly" or "0 3 * * *". Retention must be positive.
func NewSweeper(store *Store, spec string, retention time.Duration) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	sw := &Sweeper{
		store:     store,
		retention: retention,
		cron:      cron.New(),
	}
	if _, err := sw.cron.AddFunc(spec, sw.sweep); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}
	return sw, nil
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// SweepNow runs one retention pass immediately.
func (s *Sweeper) SweepNow(ctx context.Context) (int64, error) {
	return s.store.DeleteEventsBefore(ctx, time.Now().Add(-s.retention))
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.SweepNow(ctx)
	if err != nil {
		log.Printf("[audit] retention sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[audit] retention sweep deleted %d events", n)
	}
}
