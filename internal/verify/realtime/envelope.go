package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
)

// Frame kinds the server sends in reply to an identify message. They share
// the event envelope so clients decode one shape.
const (
	KindIdentified       = "identified"
	KindIdentifyRejected = "identify_rejected"
)

// Envelope is every outbound frame: {"kind": ..., "payload": ...}.
type Envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// InboundMessage is the only client frame we act on.
type InboundMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

const inboundIdentify = "identify"

// IdentifiedPayload acknowledges a successful identify.
type IdentifiedPayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// RejectedPayload explains a failed identify.
type RejectedPayload struct {
	Reason string `json:"reason"`
}

// PresencePayload carries the live connection count.
type PresencePayload struct {
	Count int `json:"count"`
}

func encodeEvent(ev domain.Event) ([]byte, error) {
	var payload any
	switch p := ev.Payload.(type) {
	case domain.VerificationRequest:
		payload = p.ToWire()
	case int:
		payload = PresencePayload{Count: p}
	default:
		return nil, fmt.Errorf("realtime: unsupported payload %T for %s", ev.Payload, ev.Kind)
	}
	return json.Marshal(Envelope{Kind: string(ev.Kind), Payload: payload})
}

func encodeControl(kind string, payload any) []byte {
	b, _ := json.Marshal(Envelope{Kind: kind, Payload: payload})
	return b
}
