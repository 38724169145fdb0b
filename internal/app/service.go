package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/madhavanSPR/VDI-DASHBOARD/internal/adapter/metrics"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/ledger"
)

// Notifier pushes state changes to connected clients. Both calls are
// fire-and-forget.
type Notifier interface {
	BroadcastSnapshot(ctx context.Context)
	NotifyHolder(ctx context.Context, req domain.VDIRequest)
}

// Identity is the subset of the identity store the service needs.
type Identity interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateUser(ctx context.Context, username, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
}

// Service coordinates the ledger, the identity store and the fan-out.
type Service struct {
	ledger   *ledger.Ledger
	identity Identity
	notifier Notifier
	metrics  *metrics.LedgerMetrics
}

func NewService(l *ledger.Ledger, identity Identity, notifier Notifier, m *metrics.LedgerMetrics) *Service {
	s := &Service{ledger: l, identity: identity, notifier: notifier, metrics: m}
	s.updateGauges()
	return s
}

// ListVDIs returns the pool with holder usernames joined in.
func (s *Service) ListVDIs(ctx context.Context) ([]domain.VDIView, error) {
	vdis := s.ledger.ListVDIs()
	usernames, err := s.usernames(ctx, domain.HolderIDs(vdis))
	if err != nil {
		return nil, err
	}
	return domain.ViewsOf(vdis, usernames), nil
}

// AssignVDI gives a free VDI to userID and broadcasts the new pool.
func (s *Service) AssignVDI(ctx context.Context, vdiID string, userID int64) (domain.VDI, error) {
	vdi, err := s.ledger.Assign(vdiID, userID)
	s.record("assign", err)
	if err != nil {
		return domain.VDI{}, err
	}

	s.notifier.BroadcastSnapshot(ctx)
	return vdi, nil
}

// RequestVDI records a request, alerts the current holder and broadcasts.
func (s *Service) RequestVDI(ctx context.Context, vdiID string, userID int64) domain.VDIRequest {
	req := s.ledger.CreateRequest(vdiID, userID)
	s.record("request", nil)

	s.notifier.NotifyHolder(ctx, req)
	s.notifier.BroadcastSnapshot(ctx)
	return req
}

// ApproveRequest transfers the VDI to the requester and broadcasts.
func (s *Service) ApproveRequest(ctx context.Context, requestID int64) (domain.VDIRequest, error) {
	req, err := s.ledger.ApproveRequest(requestID)
	s.record("approve", err)
	if err != nil {
		return domain.VDIRequest{}, err
	}

	s.notifier.BroadcastSnapshot(ctx)
	return req, nil
}

// RejectRequest closes a pending request without touching the VDI.
func (s *Service) RejectRequest(ctx context.Context, requestID int64) (domain.VDIRequest, error) {
	req, err := s.ledger.RejectRequest(requestID)
	s.record("reject", err)
	if err != nil {
		return domain.VDIRequest{}, err
	}

	s.notifier.BroadcastSnapshot(ctx)
	return req, nil
}

// ListRequests returns the full request history with requester usernames.
func (s *Service) ListRequests(ctx context.Context) ([]domain.RequestView, error) {
	reqs := s.ledger.ListRequests()

	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.RequestedByUserID)
	}
	usernames, err := s.usernames(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]domain.RequestView, 0, len(reqs))
	for _, r := range reqs {
		views = append(views, domain.RequestView{VDIRequest: r, RequestedByUsername: usernames[r.RequestedByUserID]})
	}
	return views, nil
}

func (s *Service) Register(ctx context.Context, username, password string) (*domain.User, error) {
	return s.identity.CreateUser(ctx, username, password)
}

func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, error) {
	return s.identity.Authenticate(ctx, username, password)
}

func (s *Service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.identity.GetUser(ctx, id)
}

// usernames resolves each distinct id once. Unknown users are left out;
// store failures abort the read.
func (s *Service) usernames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	for _, id := range ids {
		if _, ok := names[id]; ok {
			continue
		}
		user, err := s.identity.GetUser(ctx, id)
		if errors.Is(err, domain.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("look up user %d: %w", id, err)
		}
		names[id] = user.Username
	}
	return names, nil
}

func (s *Service) record(operation string, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultOK
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		result = metrics.ResultNotFound
	case errors.Is(err, domain.ErrConflict):
		result = metrics.ResultConflict
	default:
		result = metrics.ResultError
	}
	s.metrics.Operations.WithLabelValues(operation, result).Inc()
	s.updateGauges()
}

func (s *Service) updateGauges() {
	if s.metrics == nil {
		return
	}

	assigned := 0
	for _, v := range s.ledger.ListVDIs() {
		if v.IsAssigned() {
			assigned++
		}
	}
	pending := 0
	for _, r := range s.ledger.ListRequests() {
		if r.Status == domain.RequestStatusPending {
			pending++
		}
	}
	s.metrics.AssignedVDIs.Set(float64(assigned))
	s.metrics.PendingReqs.Set(float64(pending))
}
