package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowlens/internal/batch"
)

// BatchRunner is the interface the scheduler uses to re-analyze files.
// Satisfied by the batch driver.
type BatchRunner interface {
	Run(ctx context.Context, files []string) (*batch.Report, error)
}

// Watch is a cron-scheduled re-analysis of a glob of workflow source files.
type Watch struct {
	ID             string
	Pattern        string
	CronExpression string
	LastRunAt      *time.Time
	NextRunAt      *time.Time
	LastRunStatus  string
}

// Scheduler periodically re-analyzes watched source files so the history
// store stays current as workflows evolve.
type Scheduler struct {
	runner BatchRunner
	parser cron.Parser
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	watchMu sync.Mutex
	watches map[string]*Watch

	inflightMu sync.Mutex
	inflight   map[string]struct{} // watch IDs currently executing (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(runner BatchRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		watches:  make(map[string]*Watch),
		inflight: make(map[string]struct{}),
	}
}

// AddWatch registers a watch. The cron expression is validated and the first
// run time computed immediately.
func (s *Scheduler) AddWatch(id, pattern, cronExpr string) (*Watch, error) {
	next, err := s.CalculateNextRun(cronExpr, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad watch pattern %q: %w", pattern, err)
	}

	w := &Watch{ID: id, Pattern: pattern, CronExpression: cronExpr, NextRunAt: &next}
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if _, exists := s.watches[id]; exists {
		return nil, fmt.Errorf("watch %q already registered", id)
	}
	s.watches[id] = w
	return w, nil
}

// RemoveWatch unregisters a watch. Removing an unknown ID is a no-op.
func (s *Scheduler) RemoveWatch(id string) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	delete(s.watches, id)
}

// Watches returns a snapshot of all registered watches.
func (s *Scheduler) Watches() []*Watch {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	out := make([]*Watch, 0, len(s.watches))
	for _, w := range s.watches {
		cp := *w
		out = append(out, &cp)
	}
	return out
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every watch that is due. Exported so callers can force a pass
// without waiting for the ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, w := range s.Watches() {
		if w.NextRunAt != nil && w.NextRunAt.After(now) {
			continue
		}
		if !s.tryAcquire(w.ID) {
			continue // already running (dedup)
		}
		if err := s.runWatch(ctx, w.ID, now); err != nil {
			s.logger.Error("watch run failed",
				slog.String("watch_id", w.ID),
				slog.String("error", err.Error()),
			)
		}
		s.release(w.ID)
	}
}

// runWatch expands the watch pattern and re-analyzes the matched files.
func (s *Scheduler) runWatch(ctx context.Context, id string, now time.Time) error {
	s.watchMu.Lock()
	w, ok := s.watches[id]
	s.watchMu.Unlock()
	if !ok {
		return nil // removed while due
	}

	files, err := filepath.Glob(w.Pattern)
	if err != nil {
		return s.updateWatch(id, now, "error")
	}

	s.logger.Info("running watch",
		slog.String("watch_id", id),
		slog.String("pattern", w.Pattern),
		slog.Int("files", len(files)),
	)

	status := "success"
	if len(files) > 0 {
		report, err := s.runner.Run(ctx, files)
		switch {
		case err != nil:
			status = "error"
			s.logger.Error("watch analysis failed",
				slog.String("watch_id", id),
				slog.String("error", err.Error()),
			)
		case report.Failed > 0:
			status = "partial"
		}
	}

	return s.updateWatch(id, now, status)
}

func (s *Scheduler) updateWatch(id string, now time.Time, status string) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	w, ok := s.watches[id]
	if !ok {
		return nil
	}
	next, err := s.CalculateNextRun(w.CronExpression, now)
	if err != nil {
		return fmt.Errorf("calculate next run for watch %q: %w", id, err)
	}
	w.LastRunAt = &now
	w.NextRunAt = &next
	w.LastRunStatus = status
	return nil
}

// tryAcquire returns true and marks the watch as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

// release removes the watch from the in-flight set.
func (s *Scheduler) release(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
