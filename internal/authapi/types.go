// Package authapi holds the JSON shapes exchanged with the auth service.
package authapi

import "time"

const (
	PathMagicLink = "/auth/magic-link"
	PathRedeem    = "/auth/magic-link/redeem"
	PathRefresh   = "/auth/refresh"
	PathLogout    = "/auth/logout"
	PathMe        = "/auth/me"
	PathHealth    = "/healthz"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidEmail   = "INVALID_EMAIL"
	CodeTokenInvalid   = "TOKEN_INVALID"
	CodeRefreshInvalid = "REFRESH_INVALID"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternal       = "INTERNAL"
)

type MagicLinkRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type RedeemRequest struct {
	Token string `json:"token" binding:"required"`
}

type RedeemResponse struct {
	SubjectID    string    `json:"subjectId"`
	Role         string    `json:"role"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type RefreshResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

type MeResponse struct {
	SubjectID string `json:"subjectId"`
	Role      string `json:"role"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
