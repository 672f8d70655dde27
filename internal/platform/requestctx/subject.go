// Package requestctx carries request-scoped identity through context.
// The grant middleware stores the verified subject here so write handlers
// can name the actor without re-parsing the token.
package requestctx

import "context"

// subjectContextKey is the context key for the verified grant subject.
type subjectContextKey struct{}

// WithSubject stores a grant subject in context.
func WithSubject(ctx context.Context, subject string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// SubjectFromContext returns the grant subject stored in context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(subjectContextKey{}).(string)
	return value
}
