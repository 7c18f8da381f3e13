package nats

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
)

// HandlerCallbacks defines callbacks the handler invokes for messages it
// receives. OnMirroredEvent fires once per event mirrored onto NATS by any
// kernel instance's event bus (including, unless filtered by the caller,
// this instance's own).
type HandlerCallbacks struct {
	OnMirroredEvent func(evt MirroredEvent) error
}

// Handler subscribes to the kernel event mirror and delegates to callbacks.
// It is the receiving half of events.Bus's NATS fan-out: one kernel process
// embeds or connects to a NATS server and mirrors its bus onto it (see
// internal/events.Bus.SetNATSMirror); any process running a Handler against
// that same server observes the mirrored stream, which is how a fleet of
// cooperating kernels stays aware of each other's consensus/GOAP/recovery
// activity without a direct connection between them.
type Handler struct {
	client    *Client
	callbacks HandlerCallbacks

	subs   []*nats.Subscription
	subsMu sync.Mutex

	running bool
}

// NewHandler creates a new NATS message handler.
func NewHandler(client *Client, callbacks HandlerCallbacks) *Handler {
	return &Handler{
		client:    client,
		callbacks: callbacks,
		subs:      make([]*nats.Subscription, 0),
	}
}

// Start begins processing mirrored events.
func (h *Handler) Start() error {
	if h.running {
		return fmt.Errorf("handler already running")
	}
	h.running = true

	sub, err := h.client.Subscribe(SubjectEventMirror, h.handleMirroredEvent)
	if err != nil {
		h.running = false
		return fmt.Errorf("failed to subscribe to %s: %w", SubjectEventMirror, err)
	}
	h.addSub(sub)

	log.Printf("[NATS-HANDLER] Started, subscribed to %s", SubjectEventMirror)
	return nil
}

// Stop terminates message processing.
func (h *Handler) Stop() {
	if !h.running {
		return
	}

	h.subsMu.Lock()
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}
	h.subs = nil
	h.subsMu.Unlock()

	h.running = false
	log.Printf("[NATS-HANDLER] Stopped")
}

func (h *Handler) addSub(sub *nats.Subscription) {
	h.subsMu.Lock()
	h.subs = append(h.subs, sub)
	h.subsMu.Unlock()
}

func (h *Handler) handleMirroredEvent(msg *Message) {
	var evt MirroredEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		log.Printf("[NATS-HANDLER] invalid mirrored event on %s: %v", msg.Subject, err)
		return
	}

	if h.callbacks.OnMirroredEvent != nil {
		if err := h.callbacks.OnMirroredEvent(evt); err != nil {
			log.Printf("[NATS-HANDLER] mirrored event callback error: %v", err)
		}
	}
}
