package kernel

import (
	"github.com/agentic-qe/kernel/internal/events"
	"github.com/agentic-qe/kernel/internal/nats"
)

// natsMirror adapts a *nats.Client to events.NATSMirror, tagging every
// mirrored event with the publishing kernel's instance id so a Handler on
// the receiving side (internal/nats.Handler) can recognize and discard its
// own echo instead of replaying it back onto the local bus forever.
type natsMirror struct {
	client   *nats.Client
	kernelID string
}

func (m *natsMirror) PublishMirroredEvent(subject string, event *events.Event) error {
	return m.client.PublishJSON(subject, nats.MirroredEvent{KernelID: m.kernelID, Event: *event})
}
