package ws

import (
	"github.com/media-bridge/backend/internal/session"
)

type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgDelta    MessageType = "delta"
	MsgEvent    MessageType = "event"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Sessions []*session.Record `json:"sessions"`
}

type DeltaPayload struct {
	Updates []*session.Record `json:"updates"`
	Removed []string          `json:"removed,omitempty"`
}

// EventPayload mirrors one bridge event onto the wire. Session is absent
// for sessionremoved.
type EventPayload struct {
	Kind      session.EventKind `json:"kind"`
	SessionID string            `json:"sessionId"`
	Session   *session.Record   `json:"session,omitempty"`
}
