package docmap

import (
	"context"

	"github.com/segmentio/ksuid"
)

type ctxKey int

const (
	contextIDKey ctxKey = 0
)

// WithContextID returns a copy of the context carrying the id. Log lines written with the
// context are tagged with it.
func WithContextID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextIDKey, id)
}

// ContextID returns the id carried by the context, if any
func ContextID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(contextIDKey).(string)
	return id, ok
}

func newContextID() string {
	return ksuid.New().String()
}
