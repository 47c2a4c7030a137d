package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

type Role string

// RoleAny is only valid as a route requirement: any authenticated role.
const (
	RoleAny       Role = ""
	RoleCandidate Role = "candidate"
	RoleEmployer  Role = "employer"
	RoleAdmin     Role = "admin"
)

// Roles lists the closed role set in a stable order.
func Roles() []Role {
	return []Role{RoleCandidate, RoleEmployer, RoleAdmin}
}

// ParseRole rejects anything outside the closed role set.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCandidate, RoleEmployer, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	if r == RoleAny {
		return "any"
	}
	return string(r)
}

// Credential is the client's proof of identity. It is either complete or
// absent; Validate is the single structural gate used on every read and write.
type Credential struct {
	SubjectID    string    `json:"subjectId"              validate:"required"`
	Role         Role      `json:"role"                   validate:"required,oneof=candidate employer admin"`
	AccessToken  string    `json:"accessToken"            validate:"required"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"              validate:"required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func (c *Credential) Validate() error {
	if c == nil {
		return ErrInvalidCredential
	}
	if err := Validator().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return nil
}

// Expired reports whether the access token must no longer be used at now.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func (c *Credential) CanRefresh() bool {
	return c != nil && c.RefreshToken != ""
}

func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (c *Credential) Equal(o *Credential) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.SubjectID == o.SubjectID &&
		c.Role == o.Role &&
		c.AccessToken == o.AccessToken &&
		c.RefreshToken == o.RefreshToken &&
		c.ExpiresAt.Equal(o.ExpiresAt)
}

// WithTokens returns a copy carrying a refreshed access token. Identity and
// role never change on refresh; the refresh token only changes when rotated.
func (c *Credential) WithTokens(p TokenPair) *Credential {
	next := c.Clone()
	next.AccessToken = p.AccessToken
	next.ExpiresAt = p.ExpiresAt
	if p.RefreshToken != "" {
		next.RefreshToken = p.RefreshToken
	}
	return next
}
