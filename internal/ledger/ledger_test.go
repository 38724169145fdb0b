package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userA int64 = 1
	userB int64 = 2
	userC int64 = 3
)

func newTestLedger(t *testing.T) (*Ledger, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	return New(PoolIDs("VDI", 9), clock), clock
}

func assertInvariant(t *testing.T, l *Ledger) {
	t.Helper()
	for _, vdi := range l.ListVDIs() {
		assert.Equal(t, vdi.Status == domain.VDIStatusAssigned, vdi.AssignedUserID != nil, "vdi %s", vdi.ID)
	}
}

func TestPoolIDs(t *testing.T) {
	assert.Equal(t, []string{"VDI01", "VDI02", "VDI03"}, PoolIDs("VDI", 3))
	assert.Equal(t, "DESK12", PoolIDs("DESK", 12)[11])
	assert.Empty(t, PoolIDs("VDI", 0))
}

func TestNew_AllFreeInOrder(t *testing.T) {
	l, _ := newTestLedger(t)

	vdis := l.ListVDIs()
	require.Len(t, vdis, 9)
	for i, vdi := range vdis {
		assert.Equal(t, PoolIDs("VDI", 9)[i], vdi.ID)
		assert.Equal(t, domain.VDIStatusFree, vdi.Status)
		assert.Nil(t, vdi.AssignedUserID)
	}
}

func TestNew_CollapsesDuplicateIDs(t *testing.T) {
	l := New([]string{"A", "B", "A"}, clockwork.NewRealClock())
	assert.Len(t, l.ListVDIs(), 2)
}

func TestAssign_Success(t *testing.T) {
	l, _ := newTestLedger(t)

	vdi, err := l.Assign("VDI01", userA)
	require.NoError(t, err)
	assert.Equal(t, domain.VDIStatusAssigned, vdi.Status)
	require.NotNil(t, vdi.AssignedUserID)
	assert.Equal(t, userA, *vdi.AssignedUserID)

	stored, err := l.GetVDI("VDI01")
	require.NoError(t, err)
	assert.Equal(t, vdi, stored)
	assertInvariant(t, l)
}

func TestAssign_UnknownVDI(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.Assign("VDI99", userA)
	assert.ErrorIs(t, err, domain.ErrVDINotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssign_AlreadyAssignedLeavesRecordUnchanged(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Assign("VDI01", userA)
	require.NoError(t, err)

	for _, user := range []int64{userA, userB} {
		_, err := l.Assign("VDI01", user)
		assert.ErrorIs(t, err, domain.ErrVDIAlreadyAssigned)
		assert.ErrorIs(t, err, domain.ErrConflict)

		vdi, err := l.GetVDI("VDI01")
		require.NoError(t, err)
		assert.Equal(t, userA, *vdi.AssignedUserID)
	}
	assertInvariant(t, l)
}

func TestUnassign_Idempotent(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Assign("VDI02", userA)
	require.NoError(t, err)

	for range 2 {
		vdi, err := l.Unassign("VDI02")
		require.NoError(t, err)
		assert.Equal(t, domain.VDIStatusFree, vdi.Status)
		assert.Nil(t, vdi.AssignedUserID)
	}

	_, err = l.Unassign("nope")
	assert.ErrorIs(t, err, domain.ErrVDINotFound)
	assertInvariant(t, l)
}

func TestUnassignThenAssign(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Assign("VDI03", userA)
	require.NoError(t, err)

	_, err = l.Unassign("VDI03")
	require.NoError(t, err)
	vdi, err := l.Assign("VDI03", userC)
	require.NoError(t, err)

	assert.Equal(t, domain.VDIStatusAssigned, vdi.Status)
	assert.Equal(t, userC, *vdi.AssignedUserID)
}

func TestListVDIs_ReturnsCopies(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Assign("VDI01", userA)
	require.NoError(t, err)

	vdis := l.ListVDIs()
	*vdis[0].AssignedUserID = userB
	vdis[0].Status = domain.VDIStatusFree

	stored, err := l.GetVDI("VDI01")
	require.NoError(t, err)
	assert.Equal(t, userA, *stored.AssignedUserID)
	assert.Equal(t, domain.VDIStatusAssigned, stored.Status)
}

func TestCreateRequest_RecordsHolderAndClock(t *testing.T) {
	l, clock := newTestLedger(t)
	_, err := l.Assign("VDI01", userA)
	require.NoError(t, err)

	req := l.CreateRequest("VDI01", userB)

	assert.Equal(t, int64(1), req.ID)
	assert.Equal(t, "VDI01", req.VDIID)
	assert.Equal(t, userB, req.RequestedByUserID)
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	require.NotNil(t, req.HolderUserID)
	assert.Equal(t, userA, *req.HolderUserID)
	assert.Equal(t, clock.Now(), req.CreatedAt)
	assert.Nil(t, req.ResolvedAt)
}

// CreateRequest is deliberately permissive: unknown VDIs, free VDIs and
// self-requests are all recorded as pending requests.
func TestCreateRequest_DoesNotValidate(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Assign("VDI02", userA)
	require.NoError(t, err)

	unknown := l.CreateRequest("VDI99", userB)
	free := l.CreateRequest("VDI01", userB)
	self := l.CreateRequest("VDI02", userA)

	for _, req := range []domain.VDIRequest{unknown, free, self} {
		assert.Equal(t, domain.RequestStatusPending, req.Status)
	}
	assert.Nil(t, unknown.HolderUserID)
	assert.Nil(t, free.HolderUserID)
	assert.Len(t, l.ListRequests(), 3)
}

func TestRequestIDs_StrictlyIncreasingAcrossRejections(t *testing.T) {
	l, _ := newTestLedger(t)

	var last int64
	for i := range 5 {
		req := l.CreateRequest("VDI01", userB)
		assert.Greater(t, req.ID, last)
		last = req.ID
		if i%2 == 0 {
			_, err := l.RejectRequest(req.ID)
			require.NoError(t, err)
		}
	}
}

func TestApproveRequest_TransfersOwnership(t *testing.T) {
	l, clock := newTestLedger(t)
	_, err := l.Assign("VDI01", userA)
	require.NoError(t, err)
	req := l.CreateRequest("VDI01", userB)

	clock.Advance(time.Minute)
	approved, err := l.ApproveRequest(req.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusApproved, approved.Status)
	require.NotNil(t, approved.ResolvedAt)
	assert.Equal(t, clock.Now(), *approved.ResolvedAt)

	vdi, err := l.GetVDI("VDI01")
	require.NoError(t, err)
	assert.Equal(t, domain.VDIStatusAssigned, vdi.Status)
	assert.Equal(t, userB, *vdi.AssignedUserID)
	assertInvariant(t, l)
}

func TestApproveRequest_FreeVDIGoesToRequester(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Assign("VDI01", userA)
	require.NoError(t, err)
	req := l.CreateRequest("VDI01", userB)
	_, err = l.Unassign("VDI01")
	require.NoError(t, err)

	_, err = l.ApproveRequest(req.ID)
	require.NoError(t, err)

	vdi, _ := l.GetVDI("VDI01")
	assert.Equal(t, userB, *vdi.AssignedUserID)
}

func TestApproveRequest_ThirdPartyHolderConflicts(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Assign("VDI01", userA)
	require.NoError(t, err)
	req := l.CreateRequest("VDI01", userB)

	_, err = l.Unassign("VDI01")
	require.NoError(t, err)
	_, err = l.Assign("VDI01", userC)
	require.NoError(t, err)

	_, err = l.ApproveRequest(req.ID)
	assert.ErrorIs(t, err, domain.ErrHolderChanged)
	assert.ErrorIs(t, err, domain.ErrConflict)

	stored, err := l.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, stored.Status, "failed approval must not mark the request")

	vdi, _ := l.GetVDI("VDI01")
	assert.Equal(t, userC, *vdi.AssignedUserID)
	assertInvariant(t, l)
}

func TestApproveRequest_UnknownVDIFails(t *testing.T) {
	l, _ := newTestLedger(t)
	req := l.CreateRequest("VDI99", userB)

	_, err := l.ApproveRequest(req.ID)
	assert.ErrorIs(t, err, domain.ErrVDINotFound)

	stored, _ := l.GetRequest(req.ID)
	assert.Equal(t, domain.RequestStatusPending, stored.Status)
}

func TestApproveRequest_NotFound(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.ApproveRequest(42)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestResolvedRequestsAreImmutable(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Assign("VDI01", userA)
	require.NoError(t, err)

	approved := l.CreateRequest("VDI01", userB)
	_, err = l.ApproveRequest(approved.ID)
	require.NoError(t, err)

	rejected := l.CreateRequest("VDI01", userC)
	_, err = l.RejectRequest(rejected.ID)
	require.NoError(t, err)

	for _, id := range []int64{approved.ID, rejected.ID} {
		_, err := l.ApproveRequest(id)
		assert.ErrorIs(t, err, domain.ErrRequestNotPending)
		_, err = l.RejectRequest(id)
		assert.ErrorIs(t, err, domain.ErrRequestNotPending)
	}

	a, _ := l.GetRequest(approved.ID)
	r, _ := l.GetRequest(rejected.ID)
	assert.Equal(t, domain.RequestStatusApproved, a.Status)
	assert.Equal(t, domain.RequestStatusRejected, r.Status)
}

func TestRejectRequest_NeverTouchesVDIs(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Assign("VDI01", userA)
	require.NoError(t, err)
	before := l.ListVDIs()

	req := l.CreateRequest("VDI01", userB)
	rejected, err := l.RejectRequest(req.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusRejected, rejected.Status)
	assert.NotNil(t, rejected.ResolvedAt)
	assert.Equal(t, before, l.ListVDIs())

	_, err = l.RejectRequest(999)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestListRequests_InsertionOrderWithHistory(t *testing.T) {
	l, _ := newTestLedger(t)
	r1 := l.CreateRequest("VDI01", userB)
	r2 := l.CreateRequest("VDI02", userC)
	_, err := l.RejectRequest(r1.ID)
	require.NoError(t, err)

	reqs := l.ListRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, r1.ID, reqs[0].ID)
	assert.Equal(t, domain.RequestStatusRejected, reqs[0].Status)
	assert.Equal(t, r2.ID, reqs[1].ID)
	assert.Equal(t, domain.RequestStatusPending, reqs[1].Status)
}

func TestConcurrentAssign_ExactlyOneWinner(t *testing.T) {
	l, _ := newTestLedger(t)

	const workers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		conflict int
	)
	for i := range workers {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			_, err := l.Assign("VDI05", user)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else if assert.ErrorIs(t, err, domain.ErrVDIAlreadyAssigned) {
				conflict++
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, workers-1, conflict)
	assertInvariant(t, l)
}

func TestConcurrentApproveAndReject_OneOutcome(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Assign("VDI01", userA)
	require.NoError(t, err)
	req := l.CreateRequest("VDI01", userB)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, errs[0] = l.ApproveRequest(req.ID) }()
	go func() { defer wg.Done(); _, errs[1] = l.RejectRequest(req.ID) }()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrRequestNotPending)
		}
	}
	assert.Equal(t, 1, succeeded)

	final, _ := l.GetRequest(req.ID)
	vdi, _ := l.GetVDI("VDI01")
	if final.Status == domain.RequestStatusApproved {
		assert.Equal(t, userB, *vdi.AssignedUserID)
	} else {
		assert.Equal(t, userA, *vdi.AssignedUserID)
	}
}
