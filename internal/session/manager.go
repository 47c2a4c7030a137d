// Package session is the single authority over the client's session state.
//
// The Manager owns the credential cell and is the only writer of the
// credential store. Every replacement or removal of the credential bumps a
// generation counter; an in-flight refresh is applied only if the generation
// it started under is still current, so a logout (or a fresh login) always
// wins over a refresh that resolves later.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/safejob-auth/internal/credstore"
	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/metrics"
)

const defaultExchangeTimeout = 30 * time.Second

// authService is the subset of authclient.Client the manager needs.
// Defined here (point of use) so tests can inject a fake.
type authService interface {
	RequestMagicLink(ctx context.Context, email string) error
	Redeem(ctx context.Context, token string) (*domain.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	Logout(ctx context.Context, cred *domain.Credential) error
}

type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRefreshSkew makes EnsureFresh refresh this long before expiry.
func WithRefreshSkew(d time.Duration) Option {
	return func(m *Manager) { m.skew = d }
}

// WithExchangeTimeout bounds redeem, refresh and logout exchanges, which run
// detached from the caller's context.
func WithExchangeTimeout(d time.Duration) Option {
	return func(m *Manager) { m.exchangeTimeout = d }
}

// subscriber remembers the last state it was sent so repeated notifications
// of an unchanged state are dropped.
type subscriber struct {
	ch   chan domain.SessionState
	last domain.SessionState
}

type refreshCall struct {
	done chan struct{}
	gen  uint64
	cred *domain.Credential
	err  error
}

type Manager struct {
	auth            authService
	store           credstore.Store
	logger          *slog.Logger
	now             func() time.Time
	skew            time.Duration
	exchangeTimeout time.Duration

	mu           sync.Mutex
	cred         *domain.Credential
	gen          uint64
	authInFlight int
	refreshing   *refreshCall
	subs         map[int]*subscriber
	nextSub      int
	lastStatus   domain.SessionStatus

	wg sync.WaitGroup
}

// NewManager restores any persisted credential. An expired credential is kept
// so it can still be refreshed, but it reads as unauthenticated until then.
func NewManager(ctx context.Context, auth authService, store credstore.Store, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		auth:            auth,
		store:           store,
		logger:          logger.With("component", "session"),
		now:             time.Now,
		exchangeTimeout: defaultExchangeTimeout,
		subs:            make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(m)
	}

	cred, err := store.Read(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "credential store unavailable, starting without a session", "error", err)
	}

	m.mu.Lock()
	m.cred = cred
	m.lastStatus = m.stateLocked().Status
	m.mu.Unlock()
	metrics.SessionState.WithLabelValues(m.lastStatus.String()).Set(1)

	if cred != nil {
		m.logger.InfoContext(ctx, "session restored", "subject_id", cred.SubjectID, "role", cred.Role, "expires_at", cred.ExpiresAt)
	}
	return m
}

// Current derives the session state. It never performs I/O.
func (m *Manager) Current() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// RequestMagicLink asks the auth service to email a sign-in link. It never
// touches the stored credential; a nil error means the link was sent.
func (m *Manager) RequestMagicLink(ctx context.Context, email string) error {
	req := domain.MagicLinkRequest{Email: strings.TrimSpace(email), RequestedAt: m.now()}
	if err := domain.Validator().Struct(req); err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidEmail, email)
	}

	m.beginAuth()
	err := m.auth.RequestMagicLink(ctx, req.Email)
	m.endAuth()

	if err != nil {
		m.logger.WarnContext(ctx, "magic link request failed", "error", err)
		return fmt.Errorf("request magic link: %w", err)
	}
	m.logger.InfoContext(ctx, "magic link requested")
	return nil
}

// RedeemToken exchanges a single-use token for a credential. On failure the
// current credential, if any, is left untouched and nothing is retried.
//
// If the exchange succeeds but the credential cannot be persisted, the
// credential is returned together with an error wrapping domain.ErrStorage:
// the session is live in memory for the lifetime of the process.
func (m *Manager) RedeemToken(ctx context.Context, token string) (*domain.Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrTokenRedemption)
	}

	m.beginAuth()

	exCtx, cancel := m.detached(ctx)
	cred, err := m.auth.Redeem(exCtx, token)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.authInFlight--

	if err != nil {
		m.notifyLocked()
		m.logger.WarnContext(ctx, "magic link redemption failed", "error", err)
		return nil, fmt.Errorf("redeem token: %w", err)
	}

	m.cred = cred.Clone()
	m.refreshing = nil
	m.gen++
	storeErr := m.store.Write(ctx, cred)
	m.notifyLocked()

	m.logger.InfoContext(ctx, "signed in", "subject_id", cred.SubjectID, "role", cred.Role)
	if storeErr != nil {
		m.logger.WarnContext(ctx, "session will not survive a restart", "error", storeErr)
		return cred.Clone(), fmt.Errorf("persist credential: %w", storeErr)
	}
	return cred.Clone(), nil
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers share a single exchange and observe the same result. The exchange
// is not cancelled with ctx; ctx only bounds how long this caller waits.
//
// Any failure of the exchange ends the session. A result that arrives after
// the session changed (logout, new login) is discarded and reported as
// domain.ErrSessionSuperseded.
func (m *Manager) Refresh(ctx context.Context) (*domain.Credential, error) {
	m.mu.Lock()
	if call := m.refreshing; call != nil && call.gen == m.gen {
		m.mu.Unlock()
		return await(ctx, call)
	}
	cred := m.cred
	if !cred.CanRefresh() {
		m.mu.Unlock()
		return nil, domain.ErrNoRefreshToken
	}
	call := &refreshCall{done: make(chan struct{}), gen: m.gen}
	m.refreshing = call
	m.notifyLocked()
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runRefresh(ctx, call, cred.Clone())
	return await(ctx, call)
}

// EnsureFresh refreshes when the credential is expired, or about to expire,
// and can be refreshed. It is a no-op otherwise.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	m.mu.Lock()
	cred := m.cred
	stale := cred.CanRefresh() && !m.now().Add(m.skew).Before(cred.ExpiresAt)
	m.mu.Unlock()

	if !stale {
		return nil
	}
	_, err := m.Refresh(ctx)
	return err
}

// Logout ends the session locally without waiting on the network, then tells
// the auth service in the background. The returned error only reports that
// the store could not be cleared; the session is unauthenticated either way.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	cred := m.cred
	m.cred = nil
	m.refreshing = nil
	m.gen++
	storeErr := m.store.Clear(ctx)
	m.notifyLocked()
	if cred != nil {
		m.wg.Add(1)
	}
	m.mu.Unlock()

	if cred != nil {
		m.logger.InfoContext(ctx, "signed out", "subject_id", cred.SubjectID)
		go m.revoke(ctx, cred)
	}
	if storeErr != nil {
		m.logger.WarnContext(ctx, "clear stored credential", "error", storeErr)
		return fmt.Errorf("clear credential: %w", storeErr)
	}
	return nil
}

// Sync adopts the store's contents after another process changed it.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("sync credential: %w", err)
	}
	if cred.Equal(m.cred) {
		return nil
	}

	m.cred = cred
	m.refreshing = nil
	m.gen++
	m.notifyLocked()
	m.logger.InfoContext(ctx, "session changed by another process", "authenticated", cred != nil)
	return nil
}

// Subscribe delivers the current state immediately and then the latest state
// after every change. Slow readers only ever see the newest state.
func (m *Manager) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 1)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	st := m.stateLocked()
	m.subs[id] = &subscriber{ch: ch, last: st}
	ch <- st
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			close(ch)
			m.mu.Unlock()
		})
	}
}

// Close waits for background exchanges (logout notifications, refreshes
// nobody is waiting for) to finish.
func (m *Manager) Close() {
	m.wg.Wait()
}

func (m *Manager) runRefresh(ctx context.Context, call *refreshCall, cred *domain.Credential) {
	defer m.wg.Done()

	exCtx, cancel := m.detached(ctx)
	start := time.Now()
	pair, err := m.auth.Refresh(exCtx, cred.RefreshToken)
	cancel()
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	defer close(call.done)

	if m.refreshing == call {
		m.refreshing = nil
	}

	var next *domain.Credential
	if err == nil {
		next = cred.WithTokens(pair)
		if vErr := next.Validate(); vErr != nil {
			err = vErr
		}
	}

	switch {
	case call.gen != m.gen:
		call.err = domain.ErrSessionSuperseded
		metrics.RefreshTotal.WithLabelValues("superseded").Inc()
		m.logger.InfoContext(ctx, "discarding refresh result, session changed while in flight")

	case err != nil:
		call.err = fmt.Errorf("refresh: %w", err)
		outcome := "failed"
		if errors.Is(err, domain.ErrRefreshRevoked) {
			outcome = "revoked"
		}
		metrics.RefreshTotal.WithLabelValues(outcome).Inc()
		m.logger.WarnContext(ctx, "refresh failed, ending session", "subject_id", cred.SubjectID, "error", err)

		m.cred = nil
		m.gen++
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.logger.WarnContext(ctx, "clear stored credential", "error", clearErr)
		}

	default:
		m.cred = next
		m.gen++
		call.cred = next.Clone()
		metrics.RefreshTotal.WithLabelValues("success").Inc()
		m.logger.DebugContext(ctx, "credential refreshed", "subject_id", next.SubjectID, "expires_at", next.ExpiresAt)

		if storeErr := m.store.Write(ctx, next); storeErr != nil {
			m.logger.WarnContext(ctx, "refreshed session will not survive a restart", "error", storeErr)
			call.err = fmt.Errorf("persist credential: %w", storeErr)
		}
	}

	m.notifyLocked()
}

func (m *Manager) revoke(ctx context.Context, cred *domain.Credential) {
	defer m.wg.Done()

	exCtx, cancel := m.detached(ctx)
	defer cancel()
	if err := m.auth.Logout(exCtx, cred); err != nil {
		m.logger.DebugContext(ctx, "server-side logout failed", "error", err)
	}
}

func await(ctx context.Context, call *refreshCall) (*domain.Credential, error) {
	select {
	case <-call.done:
		return call.cred.Clone(), call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// detached keeps ctx's values (request id) but not its cancellation, so
// navigating away does not abort an exchange whose result must be applied.
func (m *Manager) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.exchangeTimeout)
}

func (m *Manager) beginAuth() {
	m.mu.Lock()
	m.authInFlight++
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Manager) endAuth() {
	m.mu.Lock()
	m.authInFlight--
	m.notifyLocked()
	m.mu.Unlock()
}

// publish re-sends the state; used when time alone changed it (expiry).
func (m *Manager) publish() {
	m.mu.Lock()
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Manager) stateLocked() domain.SessionState {
	switch {
	case m.cred != nil && m.refreshing != nil && m.refreshing.gen == m.gen:
		return domain.SessionState{Status: domain.StatusRefreshing, Credential: m.cred.Clone()}
	case m.cred != nil && !m.cred.Expired(m.now()):
		return domain.SessionState{Status: domain.StatusAuthenticated, Credential: m.cred.Clone()}
	case m.authInFlight > 0:
		return domain.SessionState{Status: domain.StatusAuthenticating}
	default:
		return domain.SessionState{Status: domain.StatusUnauthenticated}
	}
}

func (m *Manager) notifyLocked() {
	st := m.stateLocked()

	if st.Status != m.lastStatus {
		metrics.SessionState.WithLabelValues(m.lastStatus.String()).Set(0)
		metrics.SessionState.WithLabelValues(st.Status.String()).Set(1)
		metrics.SessionTransitionsTotal.WithLabelValues(st.Status.String()).Inc()
		m.logger.Debug("session state changed", "from", m.lastStatus, "to", st.Status)
		m.lastStatus = st.Status
	}

	for _, sub := range m.subs {
		if sameState(sub.last, st) {
			continue
		}
		sub.last = st
		select {
		case sub.ch <- st:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- st:
			default:
			}
		}
	}
}

func sameState(a, b domain.SessionState) bool {
	return a.Status == b.Status && a.Credential.Equal(b.Credential)
}
