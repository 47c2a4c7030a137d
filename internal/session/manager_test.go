package session_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ErlanBelekov/safejob-auth/internal/credstore"
	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/session"
	"go.uber.org/goleak"
)

// ---- fakes ----

type fakeAuth struct {
	requestMagicLink func(ctx context.Context, email string) error
	redeem           func(ctx context.Context, token string) (*domain.Credential, error)
	refresh          func(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	logout           func(ctx context.Context, cred *domain.Credential) error
}

func (f *fakeAuth) RequestMagicLink(ctx context.Context, email string) error {
	if f.requestMagicLink == nil {
		return nil
	}
	return f.requestMagicLink(ctx, email)
}

func (f *fakeAuth) Redeem(ctx context.Context, token string) (*domain.Credential, error) {
	return f.redeem(ctx, token)
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	return f.refresh(ctx, refreshToken)
}

func (f *fakeAuth) Logout(ctx context.Context, cred *domain.Credential) error {
	if f.logout == nil {
		return nil
	}
	return f.logout(ctx, cred)
}

// failingStore accepts reads and clears but fails every write.
type failingStore struct {
	credstore.MemoryStore
}

func (s *failingStore) Write(_ context.Context, _ *domain.Credential) error {
	return domain.ErrStorage
}

// ---- helpers ----

func credential(subject string, role domain.Role, expiresIn time.Duration) *domain.Credential {
	return &domain.Credential{
		SubjectID:    subject,
		Role:         role,
		AccessToken:  "access-" + subject,
		RefreshToken: "refresh-" + subject,
		ExpiresAt:    time.Now().Add(expiresIn).UTC().Truncate(time.Second),
	}
}

func newManager(t *testing.T, auth *fakeAuth, store credstore.Store) *session.Manager {
	t.Helper()
	m := session.NewManager(context.Background(), auth, store, slog.Default())
	t.Cleanup(m.Close)
	return m
}

func seededStore(t *testing.T, cred *domain.Credential) *credstore.MemoryStore {
	t.Helper()
	s := credstore.NewMemoryStore()
	if err := s.Write(context.Background(), cred); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}

func storedCredential(t *testing.T, s credstore.Store) *domain.Credential {
	t.Helper()
	c, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	return c
}

// ---- RequestMagicLink ----

func TestRequestMagicLink_NeverAuthenticates(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	entered := make(chan struct{})
	auth := &fakeAuth{
		requestMagicLink: func(_ context.Context, _ string) error {
			close(entered)
			<-release
			return nil
		},
	}
	store := credstore.NewMemoryStore()
	m := session.NewManager(context.Background(), auth, store, slog.Default())
	defer m.Close()

	errc := make(chan error, 1)
	go func() { errc <- m.RequestMagicLink(context.Background(), "a@example.com") }()

	<-entered
	if got := m.Current().Status; got != domain.StatusAuthenticating {
		t.Errorf("status while in flight = %s, want authenticating", got)
	}
	close(release)

	if err := <-errc; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Current().Status; got != domain.StatusUnauthenticated {
		t.Errorf("status after sent = %s, want unauthenticated", got)
	}
	if c := storedCredential(t, store); c != nil {
		t.Errorf("request must not touch the store, found %+v", c)
	}
}

func TestRequestMagicLink_ImplausibleEmailIsRejectedLocally(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	auth := &fakeAuth{
		requestMagicLink: func(_ context.Context, _ string) error {
			calls.Add(1)
			return nil
		},
	}
	m := newManager(t, auth, credstore.NewMemoryStore())

	for _, email := range []string{"", "not-an-email", "a@", "@example.com"} {
		if err := m.RequestMagicLink(context.Background(), email); !errors.Is(err, domain.ErrInvalidEmail) {
			t.Errorf("RequestMagicLink(%q) err = %v, want ErrInvalidEmail", email, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("auth service called %d times for invalid input", calls.Load())
	}
}

func TestRequestMagicLink_FailureIsReturned(t *testing.T) {
	defer goleak.VerifyNone(t)

	auth := &fakeAuth{
		requestMagicLink: func(_ context.Context, _ string) error { return domain.ErrNetwork },
	}
	m := newManager(t, auth, credstore.NewMemoryStore())

	if err := m.RequestMagicLink(context.Background(), "a@example.com"); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	if got := m.Current().Status; got != domain.StatusUnauthenticated {
		t.Errorf("status = %s", got)
	}
}

// ---- RedeemToken ----

func TestRedeemToken_SuccessAuthenticatesAndPersists(t *testing.T) {
	defer goleak.VerifyNone(t)

	want := credential("user-1", domain.RoleCandidate, time.Hour)
	auth := &fakeAuth{
		redeem: func(_ context.Context, token string) (*domain.Credential, error) {
			if token != "tok" {
				return nil, domain.ErrTokenRedemption
			}
			return want.Clone(), nil
		},
	}
	store := credstore.NewMemoryStore()
	m := newManager(t, auth, store)

	got, err := m.RedeemToken(context.Background(), " tok ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("credential = %+v, want %+v", got, want)
	}

	st := m.Current()
	if st.Status != domain.StatusAuthenticated || !st.Credential.Equal(want) {
		t.Errorf("state = %+v", st)
	}
	if !storedCredential(t, store).Equal(want) {
		t.Error("credential was not persisted")
	}
}

func TestRedeemToken_FailureLeavesExistingCredential(t *testing.T) {
	defer goleak.VerifyNone(t)

	existing := credential("user-1", domain.RoleEmployer, time.Hour)
	var calls atomic.Int32
	auth := &fakeAuth{
		redeem: func(_ context.Context, _ string) (*domain.Credential, error) {
			calls.Add(1)
			return nil, domain.ErrTokenRedemption
		},
	}
	store := seededStore(t, existing)
	m := newManager(t, auth, store)

	if _, err := m.RedeemToken(context.Background(), "used-token"); !errors.Is(err, domain.ErrTokenRedemption) {
		t.Fatalf("err = %v, want ErrTokenRedemption", err)
	}
	if calls.Load() != 1 {
		t.Errorf("redeem attempted %d times, want exactly 1", calls.Load())
	}

	st := m.Current()
	if st.Status != domain.StatusAuthenticated || !st.Credential.Equal(existing) {
		t.Errorf("existing session disturbed: %+v", st)
	}
	if !storedCredential(t, store).Equal(existing) {
		t.Error("stored credential changed")
	}
}

func TestRedeemToken_FailureFromUnauthenticatedStaysUnauthenticated(t *testing.T) {
	defer goleak.VerifyNone(t)

	auth := &fakeAuth{
		redeem: func(_ context.Context, _ string) (*domain.Credential, error) {
			return nil, domain.ErrTokenRedemption
		},
	}
	m := newManager(t, auth, credstore.NewMemoryStore())

	if _, err := m.RedeemToken(context.Background(), ""); !errors.Is(err, domain.ErrTokenRedemption) {
		t.Errorf("empty token err = %v", err)
	}
	if _, err := m.RedeemToken(context.Background(), "expired"); err == nil {
		t.Fatal("expected error")
	}
	if got := m.Current().Status; got != domain.StatusUnauthenticated {
		t.Errorf("status = %s, want unauthenticated", got)
	}
}

func TestRedeemToken_StorageFailureKeepsInMemorySession(t *testing.T) {
	defer goleak.VerifyNone(t)

	want := credential("user-1", domain.RoleCandidate, time.Hour)
	auth := &fakeAuth{
		redeem: func(_ context.Context, _ string) (*domain.Credential, error) { return want.Clone(), nil },
	}
	m := newManager(t, auth, &failingStore{})

	got, err := m.RedeemToken(context.Background(), "tok")
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	if !got.Equal(want) {
		t.Errorf("credential = %+v", got)
	}
	if st := m.Current(); st.Status != domain.StatusAuthenticated {
		t.Errorf("status = %s, want authenticated in memory", st.Status)
	}
}

func TestRedeemToken_NotCancelledByCaller(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	want := credential("user-1", domain.RoleCandidate, time.Hour)
	auth := &fakeAuth{
		redeem: func(exCtx context.Context, _ string) (*domain.Credential, error) {
			cancel() // caller navigates away mid-exchange
			if exCtx.Err() != nil {
				return nil, exCtx.Err()
			}
			return want.Clone(), nil
		},
	}
	m := newManager(t, auth, credstore.NewMemoryStore())

	if _, err := m.RedeemToken(ctx, "tok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Current().Status; got != domain.StatusAuthenticated {
		t.Errorf("status = %s, want authenticated", got)
	}
}

// ---- Refresh ----

func TestRefresh_SuccessKeepsIdentity(t *testing.T) {
	defer goleak.VerifyNone(t)

	old := credential("user-1", domain.RoleAdmin, time.Minute)
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	auth := &fakeAuth{
		refresh: func(_ context.Context, rt string) (domain.TokenPair, error) {
			if rt != old.RefreshToken {
				return domain.TokenPair{}, domain.ErrRefreshRevoked
			}
			return domain.TokenPair{AccessToken: "access-new", ExpiresAt: exp}, nil
		},
	}
	store := seededStore(t, old)
	m := newManager(t, auth, store)

	got, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SubjectID != old.SubjectID || got.Role != old.Role || got.RefreshToken != old.RefreshToken {
		t.Errorf("identity changed: %+v", got)
	}
	if got.AccessToken != "access-new" || !got.ExpiresAt.Equal(exp) {
		t.Errorf("tokens not updated: %+v", got)
	}
	if !storedCredential(t, store).Equal(got) {
		t.Error("refreshed credential not persisted")
	}
	if st := m.Current(); st.Status != domain.StatusAuthenticated {
		t.Errorf("status = %s", st.Status)
	}
}

func TestRefresh_ConcurrentCallersShareOneExchange(t *testing.T) {
	defer goleak.VerifyNone(t)

	old := credential("user-1", domain.RoleCandidate, time.Minute)
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	auth := &fakeAuth{
		refresh: func(_ context.Context, _ string) (domain.TokenPair, error) {
			if calls.Add(1) == 1 {
				close(entered)
			}
			<-release
			return domain.TokenPair{
				AccessToken:  "access-2",
				RefreshToken: "refresh-2",
				ExpiresAt:    time.Now().Add(time.Hour),
			}, nil
		},
	}
	m := newManager(t, auth, seededStore(t, old))

	const callers = 8
	results := make([]*domain.Credential, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = m.Refresh(context.Background())
	}()
	<-entered

	if got := m.Current().Status; got != domain.StatusRefreshing {
		t.Errorf("status while in flight = %s, want refreshing", got)
	}

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Refresh(context.Background())
		}(i)
	}
	// let the late callers reach the in-flight exchange
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("refresh exchanges = %d, want 1", n)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !results[i].Equal(results[0]) {
			t.Errorf("caller %d saw %+v, caller 0 saw %+v", i, results[i], results[0])
		}
	}
	if results[0].RefreshToken != "refresh-2" {
		t.Errorf("rotated refresh token not applied: %+v", results[0])
	}
}

func TestRefresh_LogoutWinsOverInFlightRefresh(t *testing.T) {
	defer goleak.VerifyNone(t)

	old := credential("user-1", domain.RoleCandidate, time.Minute)
	entered := make(chan struct{})
	release := make(chan struct{})
	auth := &fakeAuth{
		refresh: func(_ context.Context, _ string) (domain.TokenPair, error) {
			close(entered)
			<-release
			return domain.TokenPair{AccessToken: "access-2", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	store := seededStore(t, old)
	m := newManager(t, auth, store)

	errc := make(chan error, 1)
	go func() {
		_, err := m.Refresh(context.Background())
		errc <- err
	}()
	<-entered

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got := m.Current().Status; got != domain.StatusUnauthenticated {
		t.Errorf("status after logout = %s", got)
	}

	close(release)
	if err := <-errc; !errors.Is(err, domain.ErrSessionSuperseded) {
		t.Errorf("refresh err = %v, want ErrSessionSuperseded", err)
	}

	if got := m.Current().Status; got != domain.StatusUnauthenticated {
		t.Errorf("late refresh resurrected the session: %s", got)
	}
	if c := storedCredential(t, store); c != nil {
		t.Errorf("late refresh resurrected the stored credential: %+v", c)
	}
}

func TestRefresh_NewLoginWinsOverInFlightRefresh(t *testing.T) {
	defer goleak.VerifyNone(t)

	old := credential("user-1", domain.RoleCandidate, time.Minute)
	fresh := credential("user-2", domain.RoleEmployer, time.Hour)
	entered := make(chan struct{})
	release := make(chan struct{})
	auth := &fakeAuth{
		refresh: func(_ context.Context, _ string) (domain.TokenPair, error) {
			close(entered)
			<-release
			return domain.TokenPair{}, domain.ErrRefreshRevoked
		},
		redeem: func(_ context.Context, _ string) (*domain.Credential, error) { return fresh.Clone(), nil },
	}
	store := seededStore(t, old)
	m := newManager(t, auth, store)

	errc := make(chan error, 1)
	go func() {
		_, err := m.Refresh(context.Background())
		errc <- err
	}()
	<-entered

	if _, err := m.RedeemToken(context.Background(), "tok"); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	close(release)
	<-errc

	// the stale refresh failure must not log the new user out
	st := m.Current()
	if st.Status != domain.StatusAuthenticated || !st.Credential.Equal(fresh) {
		t.Errorf("state = %+v, want authenticated as user-2", st)
	}
	if !storedCredential(t, store).Equal(fresh) {
		t.Error("new login's credential was cleared")
	}
}

func TestRefresh_FailureEndsSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	for name, refreshErr := range map[string]error{
		"revoked": domain.ErrRefreshRevoked,
		"network": domain.ErrNetwork,
	} {
		t.Run(name, func(t *testing.T) {
			auth := &fakeAuth{
				refresh: func(_ context.Context, _ string) (domain.TokenPair, error) {
					return domain.TokenPair{}, refreshErr
				},
			}
			store := seededStore(t, credential("user-1", domain.RoleCandidate, time.Hour))
			m := newManager(t, auth, store)

			if _, err := m.Refresh(context.Background()); !errors.Is(err, refreshErr) {
				t.Fatalf("err = %v, want %v", err, refreshErr)
			}
			if got := m.Current().Status; got != domain.StatusUnauthenticated {
				t.Errorf("status = %s, want unauthenticated", got)
			}
			if c := storedCredential(t, store); c != nil {
				t.Errorf("store not cleared: %+v", c)
			}
		})
	}
}

func TestRefresh_RequiresRefreshToken(t *testing.T) {
	defer goleak.VerifyNone(t)

	noRefresh := credential("user-1", domain.RoleCandidate, time.Hour)
	noRefresh.RefreshToken = ""
	m := newManager(t, &fakeAuth{}, seededStore(t, noRefresh))

	if _, err := m.Refresh(context.Background()); !errors.Is(err, domain.ErrNoRefreshToken) {
		t.Fatalf("err = %v, want ErrNoRefreshToken", err)
	}
	if got := m.Current().Status; got != domain.StatusAuthenticated {
		t.Errorf("precondition failure changed state to %s", got)
	}

	empty := newManager(t, &fakeAuth{}, credstore.NewMemoryStore())
	if _, err := empty.Refresh(context.Background()); !errors.Is(err, domain.ErrNoRefreshToken) {
		t.Fatalf("err = %v, want ErrNoRefreshToken", err)
	}
}

func TestEnsureFresh_ExpiredCredentialRevokedScenario(t *testing.T) {
	defer goleak.VerifyNone(t)

	expired := credential("user-1", domain.RoleEmployer, -time.Minute)
	var calls atomic.Int32
	auth := &fakeAuth{
		refresh: func(_ context.Context, _ string) (domain.TokenPair, error) {
			calls.Add(1)
			return domain.TokenPair{}, domain.ErrRefreshRevoked
		},
	}
	store := seededStore(t, expired)
	m := newManager(t, auth, store)

	if got := m.Current().Status; got != domain.StatusUnauthenticated {
		t.Errorf("expired credential reads as %s, want unauthenticated", got)
	}

	if err := m.EnsureFresh(context.Background()); !errors.Is(err, domain.ErrRefreshRevoked) {
		t.Fatalf("err = %v, want ErrRefreshRevoked", err)
	}
	if calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", calls.Load())
	}
	if got := m.Current().Status; got != domain.StatusUnauthenticated {
		t.Errorf("status = %s", got)
	}
	if c := storedCredential(t, store); c != nil {
		t.Errorf("store not empty: %+v", c)
	}
}

func TestEnsureFresh_SkipsValidCredential(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	auth := &fakeAuth{
		refresh: func(_ context.Context, _ string) (domain.TokenPair, error) {
			calls.Add(1)
			return domain.TokenPair{}, nil
		},
	}
	m := newManager(t, auth, seededStore(t, credential("user-1", domain.RoleCandidate, time.Hour)))

	if err := m.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("refreshed a credential that is not near expiry")
	}
}

func TestEnsureFresh_RefreshesWithinSkew(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	auth := &fakeAuth{
		refresh: func(_ context.Context, _ string) (domain.TokenPair, error) {
			calls.Add(1)
			return domain.TokenPair{AccessToken: "a2", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	m := session.NewManager(context.Background(), auth,
		seededStore(t, credential("user-1", domain.RoleCandidate, 10*time.Second)),
		slog.Default(), session.WithRefreshSkew(30*time.Second))
	defer m.Close()

	if err := m.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", calls.Load())
	}
}

// ---- Logout ----

func TestLogout_AlwaysUnauthenticated(t *testing.T) {
	defer goleak.VerifyNone(t)

	notified := make(chan *domain.Credential, 1)
	auth := &fakeAuth{
		logout: func(_ context.Context, cred *domain.Credential) error {
			notified <- cred
			return domain.ErrNetwork
		},
	}
	store := seededStore(t, credential("user-1", domain.RoleCandidate, time.Hour))
	m := newManager(t, auth, store)

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got := m.Current().Status; got != domain.StatusUnauthenticated {
		t.Errorf("status = %s", got)
	}
	if c := storedCredential(t, store); c != nil {
		t.Errorf("store not cleared: %+v", c)
	}

	m.Close()
	select {
	case cred := <-notified:
		if cred.SubjectID != "user-1" {
			t.Errorf("server logout for %q", cred.SubjectID)
		}
	default:
		t.Error("server-side logout was not attempted")
	}
}

func TestLogout_WithoutSessionSkipsServer(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	auth := &fakeAuth{
		logout: func(_ context.Context, _ *domain.Credential) error {
			calls.Add(1)
			return nil
		},
	}
	m := newManager(t, auth, credstore.NewMemoryStore())

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	m.Close()
	if calls.Load() != 0 {
		t.Errorf("server logout called without a session")
	}
}

// ---- Subscribe / Sync ----

func TestSubscribe_SeesTransitions(t *testing.T) {
	defer goleak.VerifyNone(t)

	auth := &fakeAuth{
		redeem: func(_ context.Context, _ string) (*domain.Credential, error) {
			return credential("user-1", domain.RoleCandidate, time.Hour), nil
		},
	}
	m := newManager(t, auth, credstore.NewMemoryStore())

	ch, cancel := m.Subscribe()
	defer cancel()

	if st := <-ch; st.Status != domain.StatusUnauthenticated {
		t.Fatalf("initial state = %s", st.Status)
	}

	if _, err := m.RedeemToken(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}
	if st := <-ch; st.Status != domain.StatusAuthenticated {
		t.Errorf("after redeem = %s, want authenticated", st.Status)
	}

	if err := m.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := <-ch; st.Status != domain.StatusUnauthenticated {
		t.Errorf("after logout = %s, want unauthenticated", st.Status)
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
}

func TestSubscribe_UnchangedStateIsNotRepeated(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newManager(t, &fakeAuth{},
		seededStore(t, credential("user-1", domain.RoleCandidate, time.Hour)))

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()
	if st := <-ch; st.Status != domain.StatusAuthenticated {
		t.Fatalf("initial state = %s", st.Status)
	}

	// background ticks over a fresh credential change nothing
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	session.NewRefresher(m, slog.Default(), 5*time.Millisecond).Start(ctx)

	select {
	case st := <-ch:
		t.Fatalf("repeated state delivered: %+v", st)
	default:
	}

	if err := m.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := <-ch; st.Status != domain.StatusUnauthenticated {
		t.Errorf("after logout = %s, want unauthenticated", st.Status)
	}
}

func TestSync_AdoptsExternalChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := seededStore(t, credential("user-1", domain.RoleCandidate, time.Hour))
	m := newManager(t, &fakeAuth{}, store)

	// another process signs out
	if err := store.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := m.Current().Status; got != domain.StatusUnauthenticated {
		t.Errorf("status = %s, want unauthenticated", got)
	}

	// and signs in as someone else
	other := credential("user-2", domain.RoleAdmin, time.Hour)
	if err := store.Write(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	if err := m.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := m.Current(); !st.Credential.Equal(other) {
		t.Errorf("state = %+v, want user-2", st)
	}
}
