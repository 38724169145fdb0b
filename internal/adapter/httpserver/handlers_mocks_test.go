package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/madhavanSPR/VDI-DASHBOARD/internal/broadcast"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/config"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockAppService struct {
	listVDIsFn       func(ctx context.Context) ([]domain.VDIView, error)
	assignVDIFn      func(ctx context.Context, vdiID string, userID int64) (domain.VDI, error)
	requestVDIFn     func(ctx context.Context, vdiID string, userID int64) domain.VDIRequest
	approveRequestFn func(ctx context.Context, requestID int64) (domain.VDIRequest, error)
	rejectRequestFn  func(ctx context.Context, requestID int64) (domain.VDIRequest, error)
	listRequestsFn   func(ctx context.Context) ([]domain.RequestView, error)
	registerFn       func(ctx context.Context, username, password string) (*domain.User, error)
	loginFn          func(ctx context.Context, username, password string) (*domain.User, error)
}

func (m *mockAppService) ListVDIs(ctx context.Context) ([]domain.VDIView, error) {
	if m.listVDIsFn != nil {
		return m.listVDIsFn(ctx)
	}
	return []domain.VDIView{}, nil
}

func (m *mockAppService) AssignVDI(ctx context.Context, vdiID string, userID int64) (domain.VDI, error) {
	if m.assignVDIFn != nil {
		return m.assignVDIFn(ctx, vdiID, userID)
	}
	return domain.VDI{ID: vdiID, Status: domain.VDIStatusAssigned, AssignedUserID: &userID}, nil
}

func (m *mockAppService) RequestVDI(ctx context.Context, vdiID string, userID int64) domain.VDIRequest {
	if m.requestVDIFn != nil {
		return m.requestVDIFn(ctx, vdiID, userID)
	}
	return domain.VDIRequest{ID: 1, VDIID: vdiID, RequestedByUserID: userID, Status: domain.RequestStatusPending}
}

func (m *mockAppService) ApproveRequest(ctx context.Context, requestID int64) (domain.VDIRequest, error) {
	if m.approveRequestFn != nil {
		return m.approveRequestFn(ctx, requestID)
	}
	return domain.VDIRequest{ID: requestID, Status: domain.RequestStatusApproved}, nil
}

func (m *mockAppService) RejectRequest(ctx context.Context, requestID int64) (domain.VDIRequest, error) {
	if m.rejectRequestFn != nil {
		return m.rejectRequestFn(ctx, requestID)
	}
	return domain.VDIRequest{ID: requestID, Status: domain.RequestStatusRejected}, nil
}

func (m *mockAppService) ListRequests(ctx context.Context) ([]domain.RequestView, error) {
	if m.listRequestsFn != nil {
		return m.listRequestsFn(ctx)
	}
	return []domain.RequestView{}, nil
}

func (m *mockAppService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, username, password)
	}
	return &domain.User{ID: 10, Username: username}, nil
}

func (m *mockAppService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, domain.ErrInvalidCredentials
}

// mockResolver treats the "Authorization: user <name>" header as a session.
type mockResolver struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	err      error
	logins   []int64
	logouts  int
	loginErr error
}

func (m *mockResolver) Resolve(r *http.Request) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	name, ok := strings.CutPrefix(r.Header.Get("Authorization"), "user ")
	if !ok {
		return nil, session.ErrUnauthenticated
	}
	user, ok := m.users[name]
	if !ok {
		return nil, session.ErrUnauthenticated
	}
	return user, nil
}

func (m *mockResolver) Login(_ http.ResponseWriter, _ *http.Request, userID int64) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	m.logins = append(m.logins, userID)
	return &domain.Session{ID: "sid", UserID: userID}, nil
}

func (m *mockResolver) Logout(http.ResponseWriter, *http.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logouts++
	return nil
}

type mockFanout struct {
	mu          sync.Mutex
	registered  map[int64][]broadcast.Channel
	registerErr error
	stopped     bool
}

func (m *mockFanout) Register(userID int64, ch broadcast.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return m.registerErr
	}
	if m.registered == nil {
		m.registered = make(map[int64][]broadcast.Channel)
	}
	m.registered[userID] = append(m.registered[userID], ch)
	return nil
}

func (m *mockFanout) Unregister(userID int64, ch broadcast.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chans := m.registered[userID]
	for i, c := range chans {
		if c == ch {
			m.registered[userID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(m.registered[userID]) == 0 {
		delete(m.registered, userID)
	}
}

func (m *mockFanout) Stats() broadcast.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := broadcast.Stats{Users: len(m.registered)}
	for _, chans := range m.registered {
		s.Channels += len(chans)
	}
	return s
}

func (m *mockFanout) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *mockFanout) channels(userID int64) []broadcast.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]broadcast.Channel(nil), m.registered[userID]...)
}

// --- Test helpers ---

var (
	alice = &domain.User{ID: 1, Username: "alice"}
	bob   = &domain.User{ID: 2, Username: "bob"}
)

type testDeps struct {
	app      *mockAppService
	resolver *mockResolver
	fanout   *mockFanout
	checks   []HealthCheck
}

func newTestServer(t *testing.T, deps testDeps) *Server {
	t.Helper()
	if deps.app == nil {
		deps.app = &mockAppService{}
	}
	if deps.resolver == nil {
		deps.resolver = &mockResolver{}
	}
	if deps.resolver.users == nil {
		deps.resolver.users = map[string]*domain.User{"alice": alice, "bob": bob}
	}
	if deps.fanout == nil {
		deps.fanout = &mockFanout{}
	}

	cfg := &config.Config{
		AppEnv:        "test",
		Port:          "0",
		AppURL:        "https://vdi.example.com",
		AuthRateLimit: 100,
		AuthRateBurst: 100,

		MaxWebSocketConnections: 100,
		MaxWebSocketConnsPerIP:  100,
		WebSocketConnectRate:    100,
		WebSocketConnectBurst:   100,
	}
	return NewServer(cfg, deps.app, deps.resolver, deps.fanout, prometheus.NewRegistry(), deps.checks)
}

func do(t *testing.T, srv *Server, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("Authorization", "user "+user)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func requireJSON(t *testing.T, rec *httptest.ResponseRecorder, status int, want string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	require.JSONEq(t, want, rec.Body.String())
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
