package domain

// ActionKind discriminates the tagged Action union. Webhook is the only
// action kind today; the tag exists so a second kind never requires an
// incompatible schema change.
type ActionKind string

const WebhookActionKind ActionKind = "webhook"

// Action is the side effect a trigger performs when it fires.
type Action struct {
	Kind ActionKind `json:"kind"`

	// Webhook fields, populated when Kind == WebhookActionKind.
	URL            string `json:"url"`
	Method         string `json:"method"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// AllowedWebhookMethods are the HTTP methods a webhook action may use.
var AllowedWebhookMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "HEAD": true,
}

// Validate checks the action's own shape, independent of the payload.
func (a Action) Validate() error {
	if a.Kind != WebhookActionKind {
		return ErrInvalidAction
	}
	if !AllowedWebhookMethods[a.Method] {
		return ErrInvalidAction
	}
	if a.TimeoutSeconds < 1 || a.TimeoutSeconds > 30 {
		return ErrInvalidAction
	}
	return nil
}

// MaxPayloadBytes bounds the serialized size of a trigger's payload body.
const MaxPayloadBytes = 1 << 20 // 1 MiB

// DefaultContentType is used when a payload omits one.
const DefaultContentType = "application/json; charset=utf-8"

// Payload is the headers/content-type/body snapshot sent with every attempt.
type Payload struct {
	Headers     map[string]string `json:"headers,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

// Validate enforces the payload size bound.
func (p *Payload) Validate() error {
	if p == nil {
		return nil
	}
	if len(p.Body) > MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

// EffectiveContentType returns the payload's content type, defaulting when unset.
func (p *Payload) EffectiveContentType() string {
	if p == nil || p.ContentType == "" {
		return DefaultContentType
	}
	return p.ContentType
}
