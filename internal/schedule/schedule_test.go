package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cronback-io/cronback/internal/domain"
)

func TestNextAfter_Cron5Field(t *testing.T) {
	s := &domain.Schedule{
		Kind:     domain.RecurringSchedule,
		Cron:     "0 9 * * *",
		Timezone: "UTC",
	}
	from := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	next, ok, err := NextAfter(s, from)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC), next)
}

func TestNextAfter_Cron6FieldWithSeconds(t *testing.T) {
	s := &domain.Schedule{
		Kind:     domain.RecurringSchedule,
		Cron:     "30 * * * * *",
		Timezone: "UTC",
	}
	from := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	next, ok, err := NextAfter(s, from)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 7, 30, 10, 0, 30, 0, time.UTC), next)
}

func TestNextAfter_InvalidCron(t *testing.T) {
	s := &domain.Schedule{Kind: domain.RecurringSchedule, Cron: "not a cron", Timezone: "UTC"}
	_, _, err := NextAfter(s, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidCron)
}

func TestNextAfter_InvalidTimezone(t *testing.T) {
	s := &domain.Schedule{Kind: domain.RecurringSchedule, Cron: "0 9 * * *", Timezone: "Not/AZone"}
	_, _, err := NextAfter(s, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)
}

func TestNextAfter_RunAtPicksFirstFuture(t *testing.T) {
	from := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s := &domain.Schedule{
		Kind: domain.RunAtSchedule,
		Timepoints: []time.Time{
			from.Add(-time.Hour),
			from.Add(time.Hour),
			from.Add(2 * time.Hour),
		},
		Remaining: 3,
	}

	next, ok, err := NextAfter(s, from)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, from.Add(time.Hour), next)
}

func TestNextAfter_RunAtExhausted(t *testing.T) {
	from := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s := &domain.Schedule{
		Kind:       domain.RunAtSchedule,
		Timepoints: []time.Time{from.Add(-time.Hour)},
		Remaining:  0,
	}

	_, ok, err := NextAfter(s, from)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextAfter_RecurringLimitExhausted(t *testing.T) {
	limit := 1
	s := &domain.Schedule{
		Kind:      domain.RecurringSchedule,
		Cron:      "0 9 * * *",
		Timezone:  "UTC",
		Limit:     &limit,
		Remaining: 0,
	}
	_, ok, err := NextAfter(s, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextAfter_NilSchedule(t *testing.T) {
	_, ok, err := NextAfter(nil, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFastForwardFrom(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	created := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, created, FastForwardFrom(true, now, created))
	assert.Equal(t, now, FastForwardFrom(false, now, created))
}
