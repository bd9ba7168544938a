package domain

import "time"

// RunStatus tracks a run from dispatch to its terminal outcome.
type RunStatus string

const (
	RunAttempting RunStatus = "attempting"
	RunSucceeded  RunStatus = "succeeded"
	RunFailed     RunStatus = "failed"
)

// Run is a single firing of a trigger: a snapshot of the action and payload
// at fire time, plus the outcome of however many attempts the retry policy
// allowed.
type Run struct {
	ID        string `json:"id"`
	TriggerID string `json:"trigger_id"`
	ProjectID string `json:"project_id"`

	// Action and Payload are copied from the trigger at fire time so a
	// later edit to the trigger never changes an in-flight or historical
	// run's behavior.
	Action  Action   `json:"action"`
	Payload *Payload `json:"payload,omitempty"`

	Status         RunStatus `json:"status"`
	LatestAttemptID *string  `json:"latest_attempt_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Attempt is one HTTP execution of a run's action.
type Attempt struct {
	ID     string `json:"id"`
	RunID  string `json:"run_id"`
	Number int    `json:"attempt_number"`

	WebhookDetails WebhookAttemptDetails `json:"webhook_details"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// WebhookAttemptDetails records the observable result of a webhook call.
// ResponseCode is nil when the attempt failed before receiving a response
// (DNS, connect, timeout, non-routable destination).
type WebhookAttemptDetails struct {
	ResponseCode    *int    `json:"response_code,omitempty"`
	ResponseLatencyS float64 `json:"response_latency_s"`
	ErrorMessage    *string `json:"error_message,omitempty"`
}

// Succeeded reports whether this attempt counts as a success: a response
// was received with a 2xx status.
func (d WebhookAttemptDetails) Succeeded() bool {
	return d.ResponseCode != nil && *d.ResponseCode >= 200 && *d.ResponseCode < 300
}
