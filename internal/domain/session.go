package domain

type SessionStatus int

const (
	StatusUnauthenticated SessionStatus = iota
	StatusAuthenticating
	StatusAuthenticated
	StatusRefreshing
)

func (s SessionStatus) String() string {
	switch s {
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusRefreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// SessionState is derived from the credential and in-flight bookkeeping.
// It is never persisted. Credential is set only for Authenticated and
// Refreshing and is a private copy.
type SessionState struct {
	Status     SessionStatus
	Credential *Credential
}

// HasSession reports whether the state carries a usable identity.
func (s SessionState) HasSession() bool {
	return (s.Status == StatusAuthenticated || s.Status == StatusRefreshing) && s.Credential != nil
}

func (s SessionState) Role() Role {
	if !s.HasSession() {
		return RoleAny
	}
	return s.Credential.Role
}
