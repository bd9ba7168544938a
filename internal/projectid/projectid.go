// Package projectid propagates the authenticated project id through a
// request's context, mirroring internal/requestid.
package projectid

import "context"

type ctxKey struct{}

// WithProjectID returns a copy of ctx with the project id attached.
func WithProjectID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the project id from ctx. Returns "" if absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
