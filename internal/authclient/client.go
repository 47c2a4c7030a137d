// Package authclient talks to the external auth service. It never retries:
// magic-link tokens are single use and refresh tokens may be rotated, so a
// blind retry would fail identically or trip reuse detection.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ErlanBelekov/safejob-auth/internal/authapi"
	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/requestid"
	"github.com/samber/oops"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "authclient"),
	}
}

// RequestMagicLink asks the service to email a sign-in link. A nil error
// means the service accepted the request.
func (c *Client) RequestMagicLink(ctx context.Context, email string) error {
	resp, err := c.post(ctx, authapi.PathMagicLink, authapi.MagicLinkRequest{Email: email}, "")
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return c.failure(resp, domain.ErrInvalidCredentials)
}

// Redeem exchanges a magic-link token for a complete credential.
func (c *Client) Redeem(ctx context.Context, token string) (*domain.Credential, error) {
	resp, err := c.post(ctx, authapi.PathRedeem, authapi.RedeemRequest{Token: token}, "")
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, c.failure(resp, domain.ErrTokenRedemption)
	}

	var body authapi.RedeemResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, oops.In("authclient").Code("MALFORMED_RESPONSE").Wrapf(domain.ErrMalformedResponse, "decode redeem response: %v", err)
	}

	role, err := domain.ParseRole(body.Role)
	if err != nil {
		return nil, oops.In("authclient").Code("MALFORMED_RESPONSE").Wrapf(domain.ErrMalformedResponse, "redeem response: %v", err)
	}
	cred := &domain.Credential{
		SubjectID:    body.SubjectID,
		Role:         role,
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    body.ExpiresAt,
	}
	if err := cred.Validate(); err != nil {
		return nil, oops.In("authclient").Code("MALFORMED_RESPONSE").Wrapf(domain.ErrMalformedResponse, "redeem response: %v", err)
	}
	return cred, nil
}

// Refresh exchanges a refresh token for a new access token. Any 4xx is
// reported as domain.ErrRefreshRevoked.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	resp, err := c.post(ctx, authapi.PathRefresh, authapi.RefreshRequest{RefreshToken: refreshToken}, "")
	if err != nil {
		return domain.TokenPair{}, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return domain.TokenPair{}, c.failure(resp, domain.ErrRefreshRevoked)
	}

	var body authapi.RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.TokenPair{}, oops.In("authclient").Code("MALFORMED_RESPONSE").Wrapf(domain.ErrMalformedResponse, "decode refresh response: %v", err)
	}
	if body.AccessToken == "" || body.ExpiresAt.IsZero() {
		return domain.TokenPair{}, oops.In("authclient").Code("MALFORMED_RESPONSE").Wrapf(domain.ErrMalformedResponse, "refresh response missing access token or expiry")
	}
	return domain.TokenPair{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    body.ExpiresAt,
	}, nil
}

// Logout tells the service the session is over. Callers treat it as best effort.
func (c *Client) Logout(ctx context.Context, cred *domain.Credential) error {
	var access, refresh string
	if cred != nil {
		access, refresh = cred.AccessToken, cred.RefreshToken
	}
	resp, err := c.post(ctx, authapi.PathLogout, authapi.LogoutRequest{RefreshToken: refresh}, access)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode >= 300 {
		return c.failure(resp, domain.ErrUnauthorized)
	}
	return nil
}

// Me asks the service who the access token belongs to.
func (c *Client) Me(ctx context.Context, accessToken string) (authapi.MeResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, authapi.PathMe, nil, accessToken)
	if err != nil {
		return authapi.MeResponse{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return authapi.MeResponse{}, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return authapi.MeResponse{}, c.failure(resp, domain.ErrUnauthorized)
	}
	var body authapi.MeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return authapi.MeResponse{}, oops.In("authclient").Code("MALFORMED_RESPONSE").Wrapf(domain.ErrMalformedResponse, "decode me response: %v", err)
	}
	return body, nil
}

// Ping satisfies health.Pinger.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, authapi.PathHealth, nil, "")
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth service health: status %d", resp.StatusCode)
	}
	return nil
}

// ErrorCode returns the auth service's error code carried by err, or "".
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	return fmt.Sprint(oopsErr.Code())
}

func (c *Client) post(ctx context.Context, path string, body any, bearer string) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(raw), bearer)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, bearer string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	req.Header.Set(requestid.Header, requestid.Accept(requestid.FromContext(ctx)))

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.DebugContext(req.Context(), "auth service unreachable", "path", req.URL.Path, "error", err)
		return nil, oops.In("authclient").Code("NETWORK").With("path", req.URL.Path).Wrapf(domain.ErrNetwork, "%s %s: %v", req.Method, req.URL.Path, err)
	}
	c.logger.DebugContext(req.Context(), "auth service call", "path", req.URL.Path, "status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

// failure maps a non-success response to kind, preserving the service's
// error code and message verbatim. 5xx is transient and reported as a
// network failure.
func (c *Client) failure(resp *http.Response, kind error) error {
	var body authapi.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	if body.Code == "" {
		body.Code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
	}

	if resp.StatusCode >= 500 {
		kind = domain.ErrNetwork
	}

	return oops.In("authclient").
		Code(body.Code).
		With("status", resp.StatusCode).
		With("path", resp.Request.URL.Path).
		Wrapf(kind, "%s", body.Error)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused by the pool
	_ = resp.Body.Close()
}

// IsTransient reports whether err is worth a manual retry by the user.
func IsTransient(err error) bool {
	return errors.Is(err, domain.ErrNetwork)
}
