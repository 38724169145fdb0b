package domain

import "time"

type VDIStatus string

const (
	VDIStatusFree     VDIStatus = "free"
	VDIStatusAssigned VDIStatus = "assigned"
)

// VDI is one virtual desktop from the fixed pool.
// Status is VDIStatusAssigned exactly when AssignedUserID is non-nil.
type VDI struct {
	ID             string    `json:"id"`
	Status         VDIStatus `json:"status"`
	AssignedUserID *int64    `json:"assignedUserId"`
}

func (v VDI) IsAssigned() bool {
	return v.AssignedUserID != nil
}

// VDIView is a VDI enriched with the holder's username for clients.
type VDIView struct {
	VDI
	AssignedUsername *string `json:"assignedUsername,omitempty"`
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// IsTerminal reports whether the status can no longer change.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// VDIRequest asks the current holder of a VDI to hand it over.
// HolderUserID records who held the VDI when the request was made (nil if nobody did).
type VDIRequest struct {
	ID                int64         `json:"id"`
	VDIID             string        `json:"vdiId"`
	RequestedByUserID int64         `json:"requestedByUserId"`
	HolderUserID      *int64        `json:"holderUserId,omitempty"`
	Status            RequestStatus `json:"status"`
	CreatedAt         time.Time     `json:"createdAt"`
	ResolvedAt        *time.Time    `json:"resolvedAt,omitempty"`
}

// RequestView is a VDIRequest enriched with the requester's username.
type RequestView struct {
	VDIRequest
	RequestedByUsername string `json:"requestedByUsername"`
}

// HolderIDs returns the distinct IDs of users holding a VDI, in pool order.
func HolderIDs(vdis []VDI) []int64 {
	seen := make(map[int64]struct{}, len(vdis))
	ids := make([]int64, 0, len(vdis))
	for _, v := range vdis {
		if v.AssignedUserID == nil {
			continue
		}
		if _, ok := seen[*v.AssignedUserID]; ok {
			continue
		}
		seen[*v.AssignedUserID] = struct{}{}
		ids = append(ids, *v.AssignedUserID)
	}
	return ids
}

// ViewsOf joins vdis with holder usernames. A holder missing from usernames is
// left without AssignedUsername.
func ViewsOf(vdis []VDI, usernames map[int64]string) []VDIView {
	views := make([]VDIView, 0, len(vdis))
	for _, v := range vdis {
		view := VDIView{VDI: v}
		if v.AssignedUserID != nil {
			if name, ok := usernames[*v.AssignedUserID]; ok {
				view.AssignedUsername = &name
			}
		}
		views = append(views, view)
	}
	return views
}
