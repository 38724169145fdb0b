package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
)

type envelope struct {
	Type domain.MessageType `json:"type"`
	Data json.RawMessage    `json:"data"`
}

// Encode renders msg as {"type": ..., "data": ...}.
func Encode(msg domain.Message) ([]byte, error) {
	var data any
	switch m := msg.(type) {
	case domain.VDIUpdate:
		vdis := m.VDIs
		if vdis == nil {
			vdis = []domain.VDIView{}
		}
		data = vdis
	case domain.VDIRequestAlert:
		data = m
	default:
		return nil, fmt.Errorf("unsupported message type %T", msg)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msg.Type(), err)
	}
	return json.Marshal(envelope{Type: msg.Type(), Data: raw})
}

// Decode parses an envelope produced by Encode.
func Decode(b []byte) (domain.Message, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case domain.MessageTypeVDIUpdate:
		var vdis []domain.VDIView
		if err := json.Unmarshal(env.Data, &vdis); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return domain.VDIUpdate{VDIs: vdis}, nil
	case domain.MessageTypeVDIRequest:
		var alert domain.VDIRequestAlert
		if err := json.Unmarshal(env.Data, &alert); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return alert, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
