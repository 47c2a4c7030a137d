package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/email"
	"github.com/ErlanBelekov/safejob-auth/internal/metrics"
	"github.com/ErlanBelekov/safejob-auth/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultTokenTTL   = 15 * time.Minute
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TTLs bounds the lifetime of each token kind. Zero values use the defaults.
type TTLs struct {
	MagicLink time.Duration
	Access    time.Duration
	Refresh   time.Duration
}

// Grant is a successful redemption.
type Grant struct {
	User   *domain.User
	Tokens domain.TokenPair
}

// Claims is what a verified token says about its bearer.
type Claims struct {
	UserID string
	Role   domain.Role
}

type AuthUsecase struct {
	users         repository.UserRepository
	email         email.Sender
	jwtKey        []byte
	tokenTTL      time.Duration
	accessTTL     time.Duration
	refreshTTL    time.Duration
	magicLinkBase string
	now           func() time.Time
}

func NewAuthUsecase(users repository.UserRepository, emailSender email.Sender, jwtKey []byte, magicLinkBase string, ttls TTLs) *AuthUsecase {
	u := &AuthUsecase{
		users:         users,
		email:         emailSender,
		jwtKey:        jwtKey,
		tokenTTL:      defaultTokenTTL,
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		magicLinkBase: magicLinkBase,
		now:           time.Now,
	}
	if ttls.MagicLink > 0 {
		u.tokenTTL = ttls.MagicLink
	}
	if ttls.Access > 0 {
		u.accessTTL = ttls.Access
	}
	if ttls.Refresh > 0 {
		u.refreshTTL = ttls.Refresh
	}
	return u
}

// RequestMagicLink finds or creates the user, generates a secure token,
// stores its hash, and emails the verify link.
func (u *AuthUsecase) RequestMagicLink(ctx context.Context, emailAddr string) error {
	err := u.requestMagicLink(ctx, emailAddr)
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	metrics.MagicLinksRequestedTotal.WithLabelValues(outcome).Inc()
	return err
}

func (u *AuthUsecase) requestMagicLink(ctx context.Context, emailAddr string) error {
	user, err := u.users.FindOrCreate(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("find or create user: %w", err)
	}

	raw := make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, raw); err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	rawToken := hex.EncodeToString(raw)

	expiresAt := u.now().Add(u.tokenTTL)
	if err = u.users.CreateMagicToken(ctx, user.ID, hashToken(rawToken), expiresAt); err != nil {
		return fmt.Errorf("store magic token: %w", err)
	}

	subject, body := email.MagicLink(u.magicLinkBase+"/auth/verify?token="+rawToken, u.tokenTTL)
	if err = u.email.Send(ctx, emailAddr, subject, body); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	return nil
}

// Redeem hashes the raw token, atomically claims it, and issues an access and
// refresh token for its owner. A token can be redeemed once.
func (u *AuthUsecase) Redeem(ctx context.Context, rawToken string) (*Grant, error) {
	mt, err := u.users.ClaimMagicToken(ctx, hashToken(rawToken))
	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues("rejected").Inc()
		if errors.Is(err, domain.ErrTokenInvalid) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("claim magic token: %w", err)
	}

	user, err := u.users.FindByID(ctx, mt.UserID)
	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("find user: %w", err)
	}

	pair, err := u.issue(user)
	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.RedemptionsTotal.WithLabelValues("redeemed").Inc()
	metrics.TokensIssuedTotal.WithLabelValues("magic_link").Inc()
	return &Grant{User: user, Tokens: pair}, nil
}

// Refresh verifies a refresh token and issues a new pair. The user must still
// exist, but the role is carried over from the refresh token: clients keep
// the role they signed in with, so a role change needs a new sign-in.
func (u *AuthUsecase) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := u.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}

	user, err := u.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.TokenPair{}, domain.ErrTokenInvalid
		}
		return domain.TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	signedIn := *user
	signedIn.Role = claims.Role
	pair, err := u.issue(&signedIn)
	if err != nil {
		return domain.TokenPair{}, err
	}
	metrics.TokensIssuedTotal.WithLabelValues("refresh").Inc()
	return pair, nil
}

// Me returns the user an access token was issued to.
func (u *AuthUsecase) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// Verify checks signature, expiry and token type.
func (u *AuthUsecase) Verify(raw, wantType string) (Claims, error) {
	return VerifyToken(u.jwtKey, raw, wantType)
}

// VerifyToken is shared with the bearer middleware.
func VerifyToken(key []byte, raw, wantType string) (Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Claims{}, domain.ErrTokenInvalid
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, domain.ErrTokenInvalid
	}
	if typ, _ := mc["typ"].(string); typ != wantType {
		return Claims{}, domain.ErrTokenInvalid
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, domain.ErrTokenInvalid
	}
	roleClaim, _ := mc["role"].(string)
	role, err := domain.ParseRole(roleClaim)
	if err != nil {
		return Claims{}, domain.ErrTokenInvalid
	}
	return Claims{UserID: sub, Role: role}, nil
}

func (u *AuthUsecase) issue(user *domain.User) (domain.TokenPair, error) {
	now := u.now()
	expiresAt := now.Add(u.accessTTL)

	access, err := u.sign(user, TokenTypeAccess, now, expiresAt)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := u.sign(user, TokenTypeRefresh, now, now.Add(u.refreshTTL))
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Unix(expiresAt.Unix(), 0).UTC(),
	}, nil
}

func (u *AuthUsecase) sign(user *domain.User, typ string, now, exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"typ":   typ,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(u.jwtKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func hashToken(raw string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}
