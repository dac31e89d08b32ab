// Package scheduler drives the Orchestrator's RunOnce on a cron schedule
// and exposes the entry's run state for the dashboard.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/zerowrap"
	"github.com/robfig/cron/v3"

	"github.com/baktainer/baktainer/internal/domain"
	"github.com/baktainer/baktainer/internal/orchestrator"
)

// runner is the surface Scheduler drives each tick; satisfied by
// *orchestrator.Orchestrator, and fakeable in tests.
type runner interface {
	RunOnce(ctx context.Context) (orchestrator.CycleResult, error)
}

// defaultExpr is the schedule New falls back to when the configured
// expression fails to parse, matching config.Load's own BT_CRON default.
const defaultExpr = "0 0 * * *"

// Scheduler wraps a robfig/cron engine, guarding against overlapping runs
// of the same entry the way the teacher's scheduler guards entries with
// a CompareAndSwap running flag.
type Scheduler struct {
	expr string
	orch runner
	log  zerowrap.Logger

	cron    *cron.Cron
	entryID cron.EntryID
	running atomic.Bool

	mu      sync.Mutex
	lastRun time.Time
}

// New validates expr as a standard 5-field cron expression and returns a
// Scheduler bound to orch. An expression that fails to parse falls back to
// defaultExpr rather than failing startup; the fallback is logged.
func New(expr string, orch runner, log zerowrap.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(expr); err != nil {
		log.Warn().Err(err).Str("cron", expr).Str("fallback", defaultExpr).
			Msg("invalid cron expression, falling back to default schedule")
		expr = defaultExpr
	}
	return &Scheduler{
		expr: expr,
		orch: orch,
		log:  log,
		cron: cron.New(),
	}, nil
}

// Run starts the cron engine and blocks until ctx is canceled, at which
// point the engine is stopped and any in-flight cycle is given a chance
// to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.expr, func() { s.tick(ctx) })
	if err != nil {
		return domain.NewConfigError("cron_schedule", "failed to register cron entry", err)
	}
	s.entryID = id

	s.cron.Start()
	s.log.Info().Str("cron", s.expr).Msg("scheduler started")

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out waiting for in-flight cycle")
	}
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("skipping tick: previous cycle still running")
		return
	}
	defer s.running.Store(false)

	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.mu.Unlock()

	result, err := s.orch.RunOnce(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled cycle failed")
		return
	}
	if result.Aborted {
		s.log.Warn().Str("reason", result.Reason).Msg("scheduled cycle aborted")
	}
}

// RunNow runs one cycle immediately, outside the cron schedule, for the
// CLI's --now flag. It shares the same overlap guard as scheduled ticks.
func (s *Scheduler) RunNow(ctx context.Context) (orchestrator.CycleResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return orchestrator.CycleResult{}, domain.NewRuntimeError("", "a backup cycle is already running", nil)
	}
	defer s.running.Store(false)

	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.mu.Unlock()

	return s.orch.RunOnce(ctx)
}

// Status returns a snapshot of the current entry's run state for the
// dashboard.
func (s *Scheduler) Status() domain.CronEntry {
	s.mu.Lock()
	last := s.lastRun
	s.mu.Unlock()

	var next time.Time
	if s.entryID != 0 {
		next = s.cron.Entry(s.entryID).Next
	}

	return domain.CronEntry{
		Schedule: domain.CronSchedule{Expression: s.expr},
		LastRun:  last,
		NextRun:  next,
		Running:  s.running.Load(),
	}
}
