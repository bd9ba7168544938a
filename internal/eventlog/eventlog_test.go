package eventlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	events  []Event
	failNext bool
}

func (f *fakeSink) Append(_ context.Context, e Event) error {
	if f.failNext {
		f.failNext = false
		return errors.New("boom")
	}
	f.events = append(f.events, e)
	return nil
}

func newTestLog(sink Sink) *Log {
	return New(sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunCreatedEvent(t *testing.T) {
	sink := &fakeSink{}
	l := newTestLog(sink)

	l.RunCreatedEvent(context.Background(), "prj_1", "trig_1", "run_1")

	require.Len(t, sink.events, 1)
	assert.Equal(t, RunCreated, sink.events[0].Kind)
	assert.Equal(t, "run_1", sink.events[0].RunID)
	assert.NotEmpty(t, sink.events[0].ID)
	assert.False(t, sink.events[0].CreatedAt.IsZero())
}

func TestAppendFailureIsSwallowed(t *testing.T) {
	sink := &fakeSink{failNext: true}
	l := newTestLog(sink)

	assert.NotPanics(t, func() {
		l.RunFailedEvent(context.Background(), "prj_1", "trig_1", "run_1", "boom")
	})
	assert.Empty(t, sink.events)
}

func TestAttemptCompletedEventCarriesResponseCode(t *testing.T) {
	sink := &fakeSink{}
	l := newTestLog(sink)

	code := 200
	l.AttemptCompletedEvent(context.Background(), "prj_1", "trig_1", "run_1", "att_1", &code, 0.123)

	require.Len(t, sink.events, 1)
	details := sink.events[0].Details.(map[string]any)
	assert.Equal(t, &code, details["response_code"])
}
