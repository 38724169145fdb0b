package ledger

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
)

// PoolIDs returns the fixed pool identifiers prefix01..prefixNN.
func PoolIDs(prefix string, size int) []string {
	ids := make([]string, 0, size)
	for i := 1; i <= size; i++ {
		ids = append(ids, fmt.Sprintf("%s%02d", prefix, i))
	}
	return ids
}

type Ledger struct {
	mu    sync.Mutex
	clock clockwork.Clock

	vdis     []*domain.VDI
	vdiIndex map[string]*domain.VDI

	requests      []*domain.VDIRequest
	requestIndex  map[int64]*domain.VDIRequest
	lastRequestID int64
}

// New creates a ledger whose pool holds the given IDs, all free, in the given order.
// Duplicate IDs are collapsed.
func New(vdiIDs []string, clock clockwork.Clock) *Ledger {
	l := &Ledger{
		clock:        clock,
		vdis:         make([]*domain.VDI, 0, len(vdiIDs)),
		vdiIndex:     make(map[string]*domain.VDI, len(vdiIDs)),
		requestIndex: make(map[int64]*domain.VDIRequest),
	}
	for _, id := range vdiIDs {
		if _, exists := l.vdiIndex[id]; exists {
			continue
		}
		vdi := &domain.VDI{ID: id, Status: domain.VDIStatusFree}
		l.vdis = append(l.vdis, vdi)
		l.vdiIndex[id] = vdi
	}
	return l
}

// --- VDIs ---

func (l *Ledger) ListVDIs() []domain.VDI {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.VDI, 0, len(l.vdis))
	for _, vdi := range l.vdis {
		out = append(out, copyVDI(vdi))
	}
	return out
}

func (l *Ledger) GetVDI(vdiID string) (domain.VDI, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	vdi, ok := l.vdiIndex[vdiID]
	if !ok {
		return domain.VDI{}, domain.ErrVDINotFound
	}
	return copyVDI(vdi), nil
}

// Assign gives a free VDI to userID. Assigning an assigned VDI fails with
// ErrVDIAlreadyAssigned, even when userID already holds it.
func (l *Ledger) Assign(vdiID string, userID int64) (domain.VDI, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	vdi, err := l.assignLocked(vdiID, userID)
	if err != nil {
		return domain.VDI{}, err
	}
	return copyVDI(vdi), nil
}

// Unassign frees a VDI. Freeing a free VDI is a no-op.
func (l *Ledger) Unassign(vdiID string) (domain.VDI, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	vdi, err := l.unassignLocked(vdiID)
	if err != nil {
		return domain.VDI{}, err
	}
	return copyVDI(vdi), nil
}

func (l *Ledger) assignLocked(vdiID string, userID int64) (*domain.VDI, error) {
	vdi, ok := l.vdiIndex[vdiID]
	if !ok {
		return nil, domain.ErrVDINotFound
	}
	if vdi.IsAssigned() {
		return nil, domain.ErrVDIAlreadyAssigned
	}
	holder := userID
	vdi.Status = domain.VDIStatusAssigned
	vdi.AssignedUserID = &holder
	return vdi, nil
}

func (l *Ledger) unassignLocked(vdiID string) (*domain.VDI, error) {
	vdi, ok := l.vdiIndex[vdiID]
	if !ok {
		return nil, domain.ErrVDINotFound
	}
	vdi.Status = domain.VDIStatusFree
	vdi.AssignedUserID = nil
	return vdi, nil
}

// --- Requests ---

// CreateRequest records a pending request. It does not check that the VDI exists
// or that someone else holds it; the current holder, if any, is recorded on the request.
func (l *Ledger) CreateRequest(vdiID string, requestingUserID int64) domain.VDIRequest {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastRequestID++
	req := &domain.VDIRequest{
		ID:                l.lastRequestID,
		VDIID:             vdiID,
		RequestedByUserID: requestingUserID,
		Status:            domain.RequestStatusPending,
		CreatedAt:         l.clock.Now(),
	}
	if vdi, ok := l.vdiIndex[vdiID]; ok && vdi.AssignedUserID != nil {
		holder := *vdi.AssignedUserID
		req.HolderUserID = &holder
	}

	l.requests = append(l.requests, req)
	l.requestIndex[req.ID] = req
	return copyRequest(req)
}

// ApproveRequest hands the VDI to the requester. All checks run before any
// mutation, so a failed approval changes neither the request nor the VDI.
func (l *Ledger) ApproveRequest(requestID int64) (domain.VDIRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.requestIndex[requestID]
	if !ok {
		return domain.VDIRequest{}, domain.ErrRequestNotFound
	}
	if req.Status != domain.RequestStatusPending {
		return domain.VDIRequest{}, domain.ErrRequestNotPending
	}

	vdi, ok := l.vdiIndex[req.VDIID]
	if !ok {
		return domain.VDIRequest{}, domain.ErrVDINotFound
	}
	if vdi.IsAssigned() && !sameHolder(vdi.AssignedUserID, req.HolderUserID) {
		return domain.VDIRequest{}, domain.ErrHolderChanged
	}

	if _, err := l.unassignLocked(req.VDIID); err != nil {
		return domain.VDIRequest{}, err
	}
	if _, err := l.assignLocked(req.VDIID, req.RequestedByUserID); err != nil {
		return domain.VDIRequest{}, err
	}

	l.resolveLocked(req, domain.RequestStatusApproved)
	return copyRequest(req), nil
}

// RejectRequest closes a pending request without touching any VDI.
func (l *Ledger) RejectRequest(requestID int64) (domain.VDIRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.requestIndex[requestID]
	if !ok {
		return domain.VDIRequest{}, domain.ErrRequestNotFound
	}
	if req.Status != domain.RequestStatusPending {
		return domain.VDIRequest{}, domain.ErrRequestNotPending
	}

	l.resolveLocked(req, domain.RequestStatusRejected)
	return copyRequest(req), nil
}

func (l *Ledger) GetRequest(requestID int64) (domain.VDIRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.requestIndex[requestID]
	if !ok {
		return domain.VDIRequest{}, domain.ErrRequestNotFound
	}
	return copyRequest(req), nil
}

// ListRequests returns every request ever made, oldest first.
func (l *Ledger) ListRequests() []domain.VDIRequest {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.VDIRequest, 0, len(l.requests))
	for _, req := range l.requests {
		out = append(out, copyRequest(req))
	}
	return out
}

func (l *Ledger) resolveLocked(req *domain.VDIRequest, status domain.RequestStatus) {
	now := l.clock.Now()
	req.Status = status
	req.ResolvedAt = &now
}

func sameHolder(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyVDI(v *domain.VDI) domain.VDI {
	out := *v
	if v.AssignedUserID != nil {
		id := *v.AssignedUserID
		out.AssignedUserID = &id
	}
	return out
}

func copyRequest(r *domain.VDIRequest) domain.VDIRequest {
	out := *r
	if r.HolderUserID != nil {
		id := *r.HolderUserID
		out.HolderUserID = &id
	}
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}
