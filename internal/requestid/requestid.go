// Package requestid carries a per-request correlation ID through contexts.
// The portal and the auth service share it; sessionctl mints one per command
// so a single invocation can be traced across both processes.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header the ID travels in.
const Header = "X-Request-ID"

const maxLen = 128

type ctxKey struct{}

func New() string {
	return uuid.NewString()
}

// Accept returns incoming if it is safe to echo into logs and headers,
// otherwise a fresh ID.
func Accept(incoming string) string {
	if Valid(incoming) {
		return incoming
	}
	return New()
}

// Valid allows non-empty IDs of at most 128 characters from [A-Za-z0-9._-].
func Valid(id string) bool {
	if id == "" || len(id) > maxLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns "" if no ID is attached.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
