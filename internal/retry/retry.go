// Package retry turns a domain.RetryPolicy into a stateful sequence of
// delays, one call per failed attempt.
package retry

import (
	"time"

	"github.com/cronback-io/cronback/internal/domain"
)

// Iterator hands out the sleep duration before the next attempt, or reports
// that retrying should stop. It is not safe for concurrent use; each run's
// dispatch goroutine owns one.
type Iterator struct {
	policy      domain.RetryPolicy
	numAttempts int
}

// NewIterator starts an iterator at zero attempts made.
func NewIterator(policy domain.RetryPolicy) *Iterator {
	return &Iterator{policy: policy}
}

// NextDelay records that an attempt was just made and returns the delay
// before the next one. ok is false once the policy's retry budget is
// exhausted, at which point the caller must stop retrying.
//
// MaxNumAttempts counts attempts including the first: a policy with
// MaxNumAttempts == 3 permits three attempts total, yielding two delays
// before NextDelay reports ok == false.
func (it *Iterator) NextDelay() (delay time.Duration, ok bool) {
	it.numAttempts++

	limit := it.policy.MaxNumAttempts
	if it.policy.Kind == domain.RetryNone || it.policy.Kind == "" {
		limit = 0
	}
	if it.numAttempts >= limit {
		return 0, false
	}

	switch it.policy.Kind {
	case domain.RetrySimple:
		return time.Duration(it.policy.DelaySeconds) * time.Second, true
	case domain.RetryExponential:
		base := time.Duration(it.policy.DelaySeconds) * time.Second
		max := time.Duration(it.policy.MaxDelaySeconds) * time.Second
		d := base << uint(it.numAttempts-1)
		if d > max || d <= 0 {
			d = max
		}
		return d, true
	default:
		return 0, false
	}
}

// AttemptsMade returns how many attempts NextDelay has accounted for so far.
func (it *Iterator) AttemptsMade() int {
	return it.numAttempts
}
