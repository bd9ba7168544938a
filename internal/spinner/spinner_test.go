package spinner

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cronback-io/cronback/internal/activemap"
	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/repository"
	"github.com/cronback-io/cronback/pkg/clock"
)

type countingDispatcher struct {
	calls atomic.Int32
	done  chan struct{}
}

func (d *countingDispatcher) Dispatch(_ context.Context, _ domain.Run, _ domain.Trigger) error {
	d.calls.Add(1)
	select {
	case d.done <- struct{}{}:
	default:
	}
	return nil
}

type fakeCheckpointer struct {
	mu     sync.Mutex
	batches [][]repository.CheckpointRow
}

func (f *fakeCheckpointer) Checkpoint(_ context.Context, batch []repository.CheckpointRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	return nil
}

func TestSpinner_DispatchesDueTrigger(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	active := activemap.New(false)

	tr := domain.Trigger{
		ID: "trig_1", ProjectID: "prj_1", Status: domain.StatusActive, CreatedAt: now,
		Schedule: &domain.Schedule{Kind: domain.RecurringSchedule, Cron: "* * * * * *", Timezone: "UTC"},
	}
	require.NoError(t, active.Install(tr, now))

	due, ok := active.NextEarliestDue()
	require.True(t, ok)
	clk.Set(due.Add(time.Millisecond))

	dm := &countingDispatcher{done: make(chan struct{}, 1)}
	cp := &fakeCheckpointer{}
	s := New(active, clk, dm, cp, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{TickFloor: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	select {
	case <-dm.done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch was never called")
	}
	s.Shutdown()
	cancel()

	assert.GreaterOrEqual(t, dm.calls.Load(), int32(1))
}

func TestSpinner_ShutdownStopsLoop(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	active := activemap.New(false)
	dm := &countingDispatcher{done: make(chan struct{}, 1)}
	cp := &fakeCheckpointer{}
	s := New(active, clk, dm, cp, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{TickFloor: 5 * time.Millisecond})

	ctx := context.Background()
	runDone := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(runDone)
	}()

	time.Sleep(20 * time.Millisecond)
	s.Shutdown()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("spinner did not shut down")
	}
}

// blockingDispatcher holds every Dispatch call open until release is closed,
// so a test can saturate the worker pool and hand-off queue deterministically.
type blockingDispatcher struct {
	started chan struct{}
	release chan struct{}
}

func (d *blockingDispatcher) Dispatch(_ context.Context, _ domain.Run, _ domain.Trigger) error {
	select {
	case d.started <- struct{}{}:
	default:
	}
	<-d.release
	return nil
}

func TestSpinner_TickBlocksWhenDispatchQueueSaturated(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	active := activemap.New(false)

	// One worker, one queue slot: the third due entry in a single tick has
	// nowhere to go until the first Dispatch call releases.
	dm := &blockingDispatcher{started: make(chan struct{}, 1), release: make(chan struct{})}
	cp := &fakeCheckpointer{}
	s := New(active, clk, dm, cp, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		DispatchWorkers:   1,
		DispatchQueueSize: 1,
	})

	for i := 0; i < 3; i++ {
		tr := domain.Trigger{
			ID: "trig_" + string(rune('a'+i)), ProjectID: "prj_1", Status: domain.StatusActive, CreatedAt: now,
			Schedule: &domain.Schedule{Kind: domain.RecurringSchedule, Cron: "* * * * * *", Timezone: "UTC"},
		}
		require.NoError(t, active.Install(tr, now))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.startDispatchWorkers(ctx)

	tickDone := make(chan struct{})
	go func() {
		s.tick(ctx, now.Add(time.Second))
		close(tickDone)
	}()

	select {
	case <-dm.started:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch was never called")
	}

	select {
	case <-tickDone:
		t.Fatal("tick returned before the saturated hand-off queue was drained")
	case <-time.After(50 * time.Millisecond):
	}

	close(dm.release)

	select {
	case <-tickDone:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never unblocked after dispatch released")
	}
}
