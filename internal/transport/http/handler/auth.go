package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/safejob-auth/internal/authapi"
	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	RequestMagicLink(ctx context.Context, email string) error
	Redeem(ctx context.Context, rawToken string) (*usecase.Grant, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

// POST /auth/magic-link
// Always returns 202 for a well-formed email to avoid revealing whether the
// address is known or whether delivery failed.
func (h *AuthHandler) RequestMagicLink(c *gin.Context) {
	var req authapi.MagicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		code, msg := authapi.CodeInvalidRequest, errInvalidRequest
		if strings.Contains(err.Error(), "Email") {
			code, msg = authapi.CodeInvalidEmail, errInvalidEmail
		}
		abort(c, http.StatusBadRequest, msg, code)
		return
	}

	if err := h.authUsecase.RequestMagicLink(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email))); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "request magic link", "error", err)
	}

	c.Status(http.StatusAccepted)
}

// POST /auth/magic-link/redeem
func (h *AuthHandler) Redeem(c *gin.Context) {
	var req authapi.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, errInvalidRequest, authapi.CodeInvalidRequest)
		return
	}

	grant, err := h.authUsecase.Redeem(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			abort(c, http.StatusUnauthorized, errTokenInvalid, authapi.CodeTokenInvalid)
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "redeem magic link", "error", err)
		abort(c, http.StatusInternalServerError, errInternalServer, authapi.CodeInternal)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "magic link redeemed", "user_id", grant.User.ID, "role", grant.User.Role)
	c.JSON(http.StatusOK, authapi.RedeemResponse{
		SubjectID:    grant.User.ID,
		Role:         string(grant.User.Role),
		AccessToken:  grant.Tokens.AccessToken,
		RefreshToken: grant.Tokens.RefreshToken,
		ExpiresAt:    grant.Tokens.ExpiresAt,
	})
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req authapi.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, errInvalidRequest, authapi.CodeInvalidRequest)
		return
	}

	pair, err := h.authUsecase.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			abort(c, http.StatusUnauthorized, errRefreshInvalid, authapi.CodeRefreshInvalid)
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "refresh", "error", err)
		abort(c, http.StatusInternalServerError, errInternalServer, authapi.CodeInternal)
		return
	}

	c.JSON(http.StatusOK, authapi.RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

// POST /auth/logout
// Tokens are stateless, so there is nothing to revoke server side; the
// client discarding them ends the session.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.logger.InfoContext(c.Request.Context(), "logout", "bearer", c.GetHeader("Authorization") != "")
	c.Status(http.StatusNoContent)
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authUsecase.Me(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			abort(c, http.StatusUnauthorized, errUnauthorized, authapi.CodeUnauthorized)
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "me", "error", err)
		abort(c, http.StatusInternalServerError, errInternalServer, authapi.CodeInternal)
		return
	}

	c.JSON(http.StatusOK, authapi.MeResponse{SubjectID: user.ID, Role: string(user.Role)})
}
