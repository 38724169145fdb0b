package domain

// MessageType is the discriminant carried in every push envelope.
type MessageType string

const (
	MessageTypeVDIUpdate  MessageType = "vdi_update"
	MessageTypeVDIRequest MessageType = "vdi_request"
)

// Message is a server-to-client push. The set of implementations is closed:
// VDIUpdate and VDIRequestAlert.
type Message interface {
	Type() MessageType
	isMessage()
}

// VDIUpdate carries the full pool snapshot.
type VDIUpdate struct {
	VDIs []VDIView
}

func (VDIUpdate) Type() MessageType { return MessageTypeVDIUpdate }
func (VDIUpdate) isMessage()        {}

// VDIRequestAlert tells a holder that someone wants their VDI.
type VDIRequestAlert struct {
	RequestingUser UserRef `json:"requestingUser"`
	VDIID          string  `json:"vdiId"`
	RequestID      int64   `json:"requestId"`
}

func (VDIRequestAlert) Type() MessageType { return MessageTypeVDIRequest }
func (VDIRequestAlert) isMessage()        {}
