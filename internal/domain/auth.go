package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrTokenInvalid = errors.New("token is invalid or expired")
	ErrUnauthorized = errors.New("unauthorized")
)

// Client-side error taxonomy. The auth client wraps these with the service's
// error code; callers match with errors.Is.
var (
	// ErrNetwork is transient. The session layer never retries it on its own.
	ErrNetwork = errors.New("auth service unreachable")
	// ErrInvalidCredentials means the magic-link target was rejected.
	ErrInvalidCredentials = errors.New("magic link request rejected")
	// ErrTokenRedemption is terminal for the token; a new link is required.
	ErrTokenRedemption = errors.New("magic link token rejected")
	// ErrRefreshRevoked forces a logout.
	ErrRefreshRevoked = errors.New("refresh token revoked or expired")
	// ErrStorage means the credential could not be persisted. The in-memory
	// session keeps working for the lifetime of the process.
	ErrStorage = errors.New("credential storage unavailable")

	ErrInvalidEmail      = errors.New("email address is not plausible")
	ErrNoRefreshToken    = errors.New("no refreshable credential")
	ErrSessionSuperseded = errors.New("session changed while refresh was in flight")
	ErrMalformedResponse = errors.New("malformed auth service response")
	ErrUnknownRole       = errors.New("unknown role")
	ErrInvalidCredential = errors.New("credential is incomplete or malformed")
)

type User struct {
	ID        string
	Email     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MagicToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// MagicLinkRequest lives only for one request round trip.
type MagicLinkRequest struct {
	Email       string    `validate:"required,email"`
	RequestedAt time.Time `validate:"required"`
}

// TokenPair is what the auth service hands out on redeem and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
