// Package spinner runs the dedicated ticking loop that advances the active
// trigger map and hands due firings off to the dispatch manager. It is
// deliberately not a task on the general goroutine pool: its latency budget
// is bounded by map operations alone, and it must never be blocked by
// user-code-driven work elsewhere in the process.
package spinner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cronback-io/cronback/internal/activemap"
	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/repository"
	"github.com/cronback-io/cronback/pkg/clock"
)

// dispatcher is the subset of dispatch.Manager the spinner needs.
type dispatcher interface {
	Dispatch(ctx context.Context, run domain.Run, trigger domain.Trigger) error
}

// checkpointer is the subset of repository.TriggerRepository the spinner's
// periodic flush needs.
type checkpointer interface {
	Checkpoint(ctx context.Context, batch []repository.CheckpointRow) error
}

// Config bounds the spinner's tick cadence and per-tick work.
type Config struct {
	TickFloor          time.Duration
	MaxTriggersPerTick int
	CheckpointInterval time.Duration

	// DispatchQueueSize bounds the hand-off channel between the tick loop
	// and the dispatch workers. A full queue is the mechanism by which a
	// saturated dispatch manager applies backpressure to the tick loop
	// itself, rather than letting it spawn unbounded goroutines.
	DispatchQueueSize int
	// DispatchWorkers is the fixed size of the pool draining the hand-off
	// channel into dm.Dispatch.
	DispatchWorkers int
}

// dispatchJob is one due firing handed from the tick loop to a dispatch
// worker.
type dispatchJob struct {
	run     domain.Run
	trigger domain.Trigger
}

// Spinner is a single dedicated loop per scheduler cell.
type Spinner struct {
	active *activemap.Map
	clock  clock.Clock
	dm     dispatcher
	store  checkpointer
	logger *slog.Logger
	cfg    Config

	handoff chan dispatchJob
	workers sync.WaitGroup

	shutdown atomic.Bool
}

// New constructs a Spinner. active must already be populated with the
// cell's triggers (via startup replay) before Run is called.
func New(active *activemap.Map, clk clock.Clock, dm dispatcher, store checkpointer, logger *slog.Logger, cfg Config) *Spinner {
	if cfg.TickFloor <= 0 {
		cfg.TickFloor = 500 * time.Millisecond
	}
	if cfg.MaxTriggersPerTick <= 0 {
		cfg.MaxTriggersPerTick = 1000
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 5 * time.Second
	}
	if cfg.DispatchQueueSize <= 0 {
		cfg.DispatchQueueSize = 64
	}
	if cfg.DispatchWorkers <= 0 {
		cfg.DispatchWorkers = 8
	}
	return &Spinner{
		active:  active,
		clock:   clk,
		dm:      dm,
		store:   store,
		logger:  logger.With("component", "spinner"),
		cfg:     cfg,
		handoff: make(chan dispatchJob, cfg.DispatchQueueSize),
	}
}

// Run executes ticks until Shutdown is called or ctx is cancelled. It
// blocks the calling goroutine — callers run it on its own dedicated
// goroutine (or, per the spec's rationale, their own OS thread via
// runtime.LockOSThread), never on a shared worker pool.
func (s *Spinner) Run(ctx context.Context) {
	s.logger.Info("spinner started", "tick_floor", s.cfg.TickFloor, "max_triggers_per_tick", s.cfg.MaxTriggersPerTick,
		"dispatch_queue_size", s.cfg.DispatchQueueSize, "dispatch_workers", s.cfg.DispatchWorkers)

	s.startDispatchWorkers(ctx)

	lastFlush := s.clock.Now()

	for {
		if s.shutdown.Load() || ctx.Err() != nil {
			s.flush(ctx)
			close(s.handoff)
			s.workers.Wait()
			s.logger.Info("spinner shut down")
			return
		}

		tickStart := s.clock.Now()
		s.tick(ctx, tickStart)

		if s.clock.Now().Sub(lastFlush) >= s.cfg.CheckpointInterval {
			s.flush(ctx)
			lastFlush = s.clock.Now()
		}

		s.sleepUntilNextDeadline(ctx, tickStart)
	}
}

// startDispatchWorkers launches the fixed pool that drains the hand-off
// channel into dm.Dispatch. Each worker runs one dispatch at a time; with
// the channel's capacity exhausted and every worker busy, tick's send to
// s.handoff blocks — that block is the tick loop's only exposure to
// dispatch saturation, and it is deliberate backpressure, not a bug.
func (s *Spinner) startDispatchWorkers(ctx context.Context) {
	for i := 0; i < s.cfg.DispatchWorkers; i++ {
		s.workers.Add(1)
		go func() {
			defer s.workers.Done()
			for job := range s.handoff {
				if err := s.dm.Dispatch(ctx, job.run, job.trigger); err != nil {
					s.logger.ErrorContext(ctx, "dispatch failed", "run_id", job.run.ID, "trigger_id", job.trigger.ID, "error", err)
				}
			}
		}()
	}
}

func (s *Spinner) tick(ctx context.Context, now time.Time) {
	due := s.active.DrainDue(now, s.cfg.MaxTriggersPerTick)
	for _, entry := range due {
		run := domain.Run{
			ID:        domain.NewRunID(entry.Trigger.ProjectID),
			TriggerID: entry.Trigger.ID,
			ProjectID: entry.Trigger.ProjectID,
			Action:    entry.Trigger.Action,
			Payload:   entry.Trigger.Payload,
			Status:    domain.RunAttempting,
			CreatedAt: entry.FiredAt,
		}
		job := dispatchJob{run: run, trigger: entry.Trigger}
		select {
		case s.handoff <- job:
		case <-ctx.Done():
			return
		}
	}
}

// sleepUntilNextDeadline sleeps until min(next due instant, tickStart +
// tick floor), bounding both idle wakeups and worst-case dispatch latency.
func (s *Spinner) sleepUntilNextDeadline(ctx context.Context, tickStart time.Time) {
	deadline := tickStart.Add(s.cfg.TickFloor)
	if next, ok := s.active.NextEarliestDue(); ok && next.Before(deadline) {
		deadline = next
	}

	sleep := deadline.Sub(s.clock.Now())
	if sleep <= 0 {
		return
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *Spinner) flush(ctx context.Context) {
	dirty := s.active.SnapshotDirty()
	if len(dirty) == 0 {
		return
	}
	batch := make([]repository.CheckpointRow, len(dirty))
	for i, e := range dirty {
		batch[i] = repository.CheckpointRow{
			TriggerID: e.TriggerID,
			NextDue:   e.NextDue.Unix(),
			Remaining: e.Remaining,
			Status:    e.Status,
			LastRanAt: e.LastRanAt.Unix(),
		}
	}
	if err := s.store.Checkpoint(ctx, batch); err != nil {
		s.logger.ErrorContext(ctx, "checkpoint failed", "batch_size", len(batch), "error", err)
	}
}

// Shutdown sets the cooperative shutdown flag; the spinner performs one
// final checkpoint and exits at the top of its next tick, within one
// tick floor.
func (s *Spinner) Shutdown() {
	s.shutdown.Store(true)
}
