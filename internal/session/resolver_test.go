package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type mockUsers struct {
	getUserFn func(ctx context.Context, id int64) (*domain.User, error)
}

func (m *mockUsers) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return m.getUserFn(ctx, id)
}

func knownUsers(users ...*domain.User) *mockUsers {
	return &mockUsers{getUserFn: func(_ context.Context, id int64) (*domain.User, error) {
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		return nil, domain.ErrUserNotFound
	}}
}

type mockStore struct {
	domain.SessionStore
	getFn    func(ctx context.Context, id string) (*domain.Session, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	return m.getFn(ctx, id)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func newTestResolver(t *testing.T, users userLookup) (*Resolver, *MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	cookies := NewCookieStore(testSecret, time.Hour, false)
	return NewResolver(cookies, store, users, time.Hour), store, clock
}

// login runs Login against a recorder and returns a request carrying the issued cookie.
func login(t *testing.T, r *Resolver, userID int64, from *http.Request) (*http.Request, *domain.Session) {
	t.Helper()
	if from == nil {
		from = httptest.NewRequest(http.MethodPost, "/api/login", nil)
	}
	rec := httptest.NewRecorder()
	sess, err := r.Login(rec, from, userID)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(cookies[0])
	return req, sess
}

func TestResolve_LoginRoundTrip(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice"}
	r, _, _ := newTestResolver(t, knownUsers(alice))

	req, _ := login(t, r, alice.ID, nil)
	user, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestResolve_NoCookie(t *testing.T) {
	r, _, _ := newTestResolver(t, knownUsers())

	_, err := r.Resolve(httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve_TamperedCookie(t *testing.T) {
	r, _, _ := newTestResolver(t, knownUsers())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged-value"})
	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve_CookieSignedWithOtherSecret(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice"}
	other := NewResolver(NewCookieStore([]byte("ffffffffffffffffffffffffffffffff"), time.Hour, false),
		NewMemoryStore(clockwork.NewFakeClock()), knownUsers(alice), time.Hour)
	req, _ := login(t, other, alice.ID, nil)

	r, _, _ := newTestResolver(t, knownUsers(alice))
	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve_ExpiredSession(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice"}
	r, _, clock := newTestResolver(t, knownUsers(alice))
	req, _ := login(t, r, alice.ID, nil)

	clock.Advance(time.Hour)
	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve_DeletedUserInvalidatesSession(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice"}
	users := knownUsers(alice)
	r, store, _ := newTestResolver(t, users)
	req, sess := login(t, r, alice.ID, nil)

	users.getUserFn = func(context.Context, int64) (*domain.User, error) { return nil, domain.ErrUserNotFound }
	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = store.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestResolve_StoreFailureIsNotUnauthenticated(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice"}
	r, _, _ := newTestResolver(t, knownUsers(alice))
	req, _ := login(t, r, alice.ID, nil)

	r.store = &mockStore{getFn: func(context.Context, string) (*domain.Session, error) {
		return nil, errors.New("redis: connection refused")
	}}
	_, err := r.Resolve(req)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorContains(t, err, "connection refused")
}

func TestResolve_CollapsesConcurrentLookups(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice"}
	r, _, _ := newTestResolver(t, knownUsers(alice))
	req, sess := login(t, r, alice.ID, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	r.store = &mockStore{getFn: func(context.Context, string) (*domain.Session, error) {
		calls.Add(1)
		<-release
		return sess, nil
	}}

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan *domain.User, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := r.Resolve(req.Clone(context.Background()))
			if assert.NoError(t, err) {
				results <- u
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	assert.LessOrEqual(t, calls.Load(), int32(callers))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	seen := map[*domain.User]bool{}
	for u := range results {
		assert.Equal(t, "alice", u.Username)
		assert.False(t, seen[u], "callers must not share the same *User")
		seen[u] = true
	}
}

func TestResolve_JoinedCallerSurvivesLeaderCancellation(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice"}
	r, _, _ := newTestResolver(t, knownUsers(alice))
	req, sess := login(t, r, alice.ID, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	var enterOnce sync.Once
	r.store = &mockStore{getFn: func(ctx context.Context, _ string) (*domain.Session, error) {
		enterOnce.Do(func() { close(entered) })
		select {
		case <-release:
			return sess, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := r.Resolve(req.Clone(leaderCtx))
		leaderDone <- err
	}()
	<-entered

	joinedDone := make(chan error, 1)
	go func() {
		_, err := r.Resolve(req.Clone(context.Background()))
		joinedDone <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-joinedDone)
	require.NoError(t, <-leaderDone)
}

func TestLogin_RotatesSessionID(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice"}
	r, store, _ := newTestResolver(t, knownUsers(alice))

	firstReq, first := login(t, r, alice.ID, nil)
	secondReq, second := login(t, r, alice.ID, firstReq)

	assert.NotEqual(t, first.ID, second.ID)
	_, err := store.Get(context.Background(), first.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = r.Resolve(firstReq)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = r.Resolve(secondReq)
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice"}
	r, store, _ := newTestResolver(t, knownUsers(alice))
	req, sess := login(t, r, alice.ID, nil)

	rec := httptest.NewRecorder()
	require.NoError(t, r.Logout(rec, req))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)

	_, err := store.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = r.Resolve(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	anon := httptest.NewRecorder()
	assert.NoError(t, r.Logout(anon, httptest.NewRequest(http.MethodPost, "/api/logout", nil)))
}
