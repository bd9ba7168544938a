// Package schedule computes the next due instant for a trigger's schedule.
package schedule

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cronback-io/cronback/internal/domain"
)

// cronParser accepts both 5-field (no seconds) and 6-field (leading seconds)
// expressions, matching the dialect most operators already write triggers in.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// NextAfter computes the next instant, strictly greater than from, that the
// schedule fires. It returns ok == false when the schedule has no future
// occurrence (an exhausted RunAt list, or a limit of zero) rather than an
// error; callers use that to move the trigger to Expired.
//
// from is truncated to whole seconds first: all persisted instants are
// second-granular, and comparing against a sub-second "now" would make the
// tie-break with a persisted next_due nondeterministic.
func NextAfter(s *domain.Schedule, from time.Time) (next time.Time, ok bool, err error) {
	if s == nil {
		return time.Time{}, false, nil
	}
	from = from.Truncate(time.Second)

	if s.IsLimited() && s.Remaining <= 0 {
		return time.Time{}, false, nil
	}

	switch s.Kind {
	case domain.RecurringSchedule:
		return nextCron(s, from)
	case domain.RunAtSchedule:
		return nextTimepoint(s, from)
	default:
		return time.Time{}, false, domain.ErrInvalidCron
	}
}

func nextCron(s *domain.Schedule, from time.Time) (time.Time, bool, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Time{}, false, domain.ErrInvalidTimezone
	}
	parsed, err := cronParser.Parse(s.Cron)
	if err != nil {
		return time.Time{}, false, domain.ErrInvalidCron
	}
	next := parsed.Next(from.In(loc)).UTC().Truncate(time.Second)
	if next.IsZero() {
		return time.Time{}, false, nil
	}
	return next, true, nil
}

func nextTimepoint(s *domain.Schedule, from time.Time) (time.Time, bool, error) {
	for _, tp := range s.Timepoints {
		if tp.After(from) {
			return tp.Truncate(time.Second), true, nil
		}
	}
	return time.Time{}, false, nil
}

// FastForwardFrom picks the instant cron iteration should start from: when
// dangerousFastForward is set, iteration starts at createdAt so firings
// missed since install replay immediately instead of being skipped. Only
// meaningful for Recurring schedules; RunAt always skips past timepoints
// regardless of this flag.
func FastForwardFrom(dangerousFastForward bool, now, createdAt time.Time) time.Time {
	if dangerousFastForward {
		return createdAt
	}
	return now
}
