package domain

import "errors"

// Sentinel errors returned by the trigger store and scheduling core. HTTP
// status mapping happens at the transport boundary, in the handlers of
// internal/transport/http/handler; errors.go there holds only the response
// message strings.
var (
	ErrTriggerNotFound  = errors.New("trigger not found")
	ErrRunNotFound      = errors.New("run not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrDuplicateName    = errors.New("trigger with this name already exists in the project")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrNotModified      = errors.New("not modified")

	ErrInvalidCron        = errors.New("invalid cron expression")
	ErrInvalidTimezone    = errors.New("invalid timezone")
	ErrNoFutureOccurrence = errors.New("schedule has no future occurrences")
	ErrPayloadTooLarge    = errors.New("payload exceeds 1 MiB limit")
	ErrInvalidAction      = errors.New("invalid action")
	ErrNonRoutableDestination = errors.New("destination resolves to a non-routable address")

	ErrTriggerTerminal     = errors.New("trigger is in a terminal state")
	ErrTriggerNotPaused    = errors.New("trigger is not paused")
	ErrTriggerAlreadyPaused = errors.New("trigger is already paused")

	ErrInvalidRetryPolicy = errors.New("invalid retry policy")

	ErrAPIKeyInvalid = errors.New("invalid api key")

	// ErrTransient marks a store failure the caller may retry. No store
	// implementation returns it and the spinner does not inspect it: a
	// failed checkpoint is logged, and the entries of that batch are written
	// again only after a later change marks them dirty.
	ErrTransient = errors.New("transient store error")
)
