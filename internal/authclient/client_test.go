package authclient_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ErlanBelekov/safejob-auth/internal/authapi"
	"github.com/ErlanBelekov/safejob-auth/internal/authclient"
	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/requestid"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newServer serves a single route with the given handler.
func newServer(t *testing.T, method, path string, h gin.HandlerFunc) *authclient.Client {
	t.Helper()
	r := gin.New()
	r.Handle(method, path, h)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return authclient.New(srv.URL, 2*time.Second, slog.Default())
}

func TestRequestMagicLink_Accepted(t *testing.T) {
	var gotEmail string
	c := newServer(t, http.MethodPost, authapi.PathMagicLink, func(ctx *gin.Context) {
		var req authapi.MagicLinkRequest
		_ = ctx.ShouldBindJSON(&req)
		gotEmail = req.Email
		ctx.Status(http.StatusAccepted)
	})

	if err := c.RequestMagicLink(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotEmail != "a@example.com" {
		t.Errorf("server saw email %q", gotEmail)
	}
}

func TestRequestMagicLink_RejectedCarriesServiceCode(t *testing.T) {
	c := newServer(t, http.MethodPost, authapi.PathMagicLink, func(ctx *gin.Context) {
		ctx.JSON(http.StatusUnprocessableEntity, authapi.ErrorResponse{Error: "domain not allowed", Code: "EMAIL_DOMAIN_BLOCKED"})
	})

	err := c.RequestMagicLink(context.Background(), "a@blocked.example")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if code := authclient.ErrorCode(err); code != "EMAIL_DOMAIN_BLOCKED" {
		t.Errorf("ErrorCode = %q, want EMAIL_DOMAIN_BLOCKED", code)
	}
}

func TestRedeem_Success(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
	c := newServer(t, http.MethodPost, authapi.PathRedeem, func(ctx *gin.Context) {
		var req authapi.RedeemRequest
		if err := ctx.ShouldBindJSON(&req); err != nil || req.Token != "tok-1" {
			ctx.JSON(http.StatusBadRequest, authapi.ErrorResponse{Error: "bad"})
			return
		}
		ctx.JSON(http.StatusOK, authapi.RedeemResponse{
			SubjectID:    "user-1",
			Role:         "employer",
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    exp,
		})
	})

	cred, err := c.Redeem(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &domain.Credential{SubjectID: "user-1", Role: domain.RoleEmployer, AccessToken: "access", RefreshToken: "refresh", ExpiresAt: exp}
	if !cred.Equal(want) {
		t.Errorf("credential = %+v, want %+v", cred, want)
	}
}

func TestRedeem_RejectedToken(t *testing.T) {
	c := newServer(t, http.MethodPost, authapi.PathRedeem, func(ctx *gin.Context) {
		ctx.JSON(http.StatusUnauthorized, authapi.ErrorResponse{Error: "token already used", Code: authapi.CodeTokenInvalid})
	})

	_, err := c.Redeem(context.Background(), "used")
	if !errors.Is(err, domain.ErrTokenRedemption) {
		t.Fatalf("err = %v, want ErrTokenRedemption", err)
	}
	if code := authclient.ErrorCode(err); code != authapi.CodeTokenInvalid {
		t.Errorf("ErrorCode = %q", code)
	}
	if authclient.IsTransient(err) {
		t.Error("a rejected token must not be reported as transient")
	}
}

func TestRedeem_IncompleteResponseIsMalformed(t *testing.T) {
	cases := map[string]authapi.RedeemResponse{
		"unknown role":   {SubjectID: "u", Role: "root", AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)},
		"missing access": {SubjectID: "u", Role: "candidate", ExpiresAt: time.Now().Add(time.Hour)},
		"missing expiry": {SubjectID: "u", Role: "candidate", AccessToken: "a"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newServer(t, http.MethodPost, authapi.PathRedeem, func(ctx *gin.Context) {
				ctx.JSON(http.StatusOK, body)
			})
			cred, err := c.Redeem(context.Background(), "tok")
			if !errors.Is(err, domain.ErrMalformedResponse) {
				t.Fatalf("err = %v, want ErrMalformedResponse", err)
			}
			if cred != nil {
				t.Fatalf("partial credential returned: %+v", cred)
			}
		})
	}
}

func TestRefresh_Success(t *testing.T) {
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	c := newServer(t, http.MethodPost, authapi.PathRefresh, func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, authapi.RefreshResponse{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresAt: exp})
	})

	pair, err := c.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.AccessToken != "access-2" || pair.RefreshToken != "refresh-2" || !pair.ExpiresAt.Equal(exp) {
		t.Errorf("pair = %+v", pair)
	}
}

func TestRefresh_401IsRevoked(t *testing.T) {
	c := newServer(t, http.MethodPost, authapi.PathRefresh, func(ctx *gin.Context) {
		ctx.JSON(http.StatusUnauthorized, authapi.ErrorResponse{Error: "revoked", Code: authapi.CodeRefreshInvalid})
	})

	_, err := c.Refresh(context.Background(), "refresh-1")
	if !errors.Is(err, domain.ErrRefreshRevoked) {
		t.Fatalf("err = %v, want ErrRefreshRevoked", err)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	c := newServer(t, http.MethodPost, authapi.PathRefresh, func(ctx *gin.Context) {
		ctx.String(http.StatusBadGateway, "upstream down")
	})

	_, err := c.Refresh(context.Background(), "refresh-1")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	if code := authclient.ErrorCode(err); code != "HTTP_502" {
		t.Errorf("ErrorCode = %q, want HTTP_502", code)
	}
}

func TestUnreachableServiceIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := authclient.New(url, time.Second, slog.Default())
	err := c.RequestMagicLink(context.Background(), "a@example.com")
	if !errors.Is(err, domain.ErrNetwork) || !authclient.IsTransient(err) {
		t.Fatalf("err = %v, want transient ErrNetwork", err)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	var got string
	c := newServer(t, http.MethodPost, authapi.PathLogout, func(ctx *gin.Context) {
		got = ctx.GetHeader("X-Request-ID")
		ctx.Status(http.StatusNoContent)
	})

	ctx := requestid.WithRequestID(context.Background(), "req-123")
	if err := c.Logout(ctx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
}

func TestMe_SendsBearer(t *testing.T) {
	c := newServer(t, http.MethodGet, authapi.PathMe, func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") != "Bearer access-1" {
			ctx.JSON(http.StatusUnauthorized, authapi.ErrorResponse{Error: "Unauthorized", Code: authapi.CodeUnauthorized})
			return
		}
		ctx.JSON(http.StatusOK, authapi.MeResponse{SubjectID: "user-1", Role: "admin"})
	})

	me, err := c.Me(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if me.SubjectID != "user-1" || me.Role != "admin" {
		t.Errorf("me = %+v", me)
	}

	if _, err := c.Me(context.Background(), "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}
