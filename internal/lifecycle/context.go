package lifecycle

import "context"

type sessionKey struct{}

// WithSession tags ctx with the conversation session id so events emitted
// deeper in a run can be grouped with the turn that caused them.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionFromContext returns the session id set by WithSession.
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
