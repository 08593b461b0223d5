package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts 5-field expressions and descriptors such as "@every 5m".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Janitor periodically evicts idle sessions from a Manager's cache.
type Janitor struct {
	cron   *cron.Cron
	mgr    *Manager
	idle   time.Duration
	logger *slog.Logger
}

// NewJanitor schedules cache sweeps on schedule. Entries idle longer than
// idle are evicted on each sweep.
func NewJanitor(mgr *Manager, schedule string, idle time.Duration, logger *slog.Logger) (*Janitor, error) {
	if idle <= 0 {
		return nil, fmt.Errorf("janitor: idle must be positive, got %s", idle)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	j := &Janitor{
		cron:   cron.New(cron.WithParser(cronParser)),
		mgr:    mgr,
		idle:   idle,
		logger: logger.With("component", "session-janitor"),
	}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, fmt.Errorf("janitor: parse schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Sweep evicts idle entries once.
func (j *Janitor) Sweep() {
	if n := j.mgr.Evict(j.idle); n > 0 {
		j.logger.Debug("evicted idle sessions", "count", n, "cached", j.mgr.Cached())
	}
}

// Start begins the schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to expire.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
