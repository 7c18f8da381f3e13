package nats

import (
	"time"

	"github.com/agentic-qe/kernel/internal/events"
)

// SubjectEventMirror is the wildcard subject under which the kernel mirrors
// coordination and recovery events (internal/events.Bus's NATS fan-out): one
// subject per event type, all rooted at "kernel.events.".
const SubjectEventMirror = "kernel.events.>"

// MirroredEvent wraps a bus event crossing the NATS boundary with the id of
// the kernel instance that published it, so a receiving Handler can tell its
// own echo apart from a peer kernel's event and avoid re-publishing it.
type MirroredEvent struct {
	KernelID string       `json:"kernel_id"`
	Event    events.Event `json:"event"`
}

// ClientInfo represents a connected NATS client, reported by the embedded
// server's client tracking.
type ClientInfo struct {
	ClientID    string    `json:"client_id"`
	ConnectedAt time.Time `json:"connected_at"`
}
