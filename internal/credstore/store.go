// Package credstore holds the single session credential across process
// restarts. Reads are defensive: anything that does not parse into a complete
// credential is cleared and reported as absent.
package credstore

import (
	"context"

	"github.com/ErlanBelekov/safejob-auth/internal/domain"
)

// Store is written only by the session manager.
type Store interface {
	// Read returns (nil, nil) when no valid credential is stored. A non-nil
	// error wraps domain.ErrStorage and still means "absent".
	Read(ctx context.Context) (*domain.Credential, error)
	// Write atomically replaces the stored credential.
	Write(ctx context.Context, cred *domain.Credential) error
	// Clear removes any stored credential. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
