package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ConsoleSink writes one JSON line per span to an io.Writer (stdout by
// default), matching the teacher's plain fmt.Printf-based logging idiom
// rather than a structured-logging library the pack never uses.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a sink writing to w. A nil w defaults to os.Stdout.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{out: w}
}

// Emit writes span as a single JSON line, falling back to a plain Fprintf
// if marshaling somehow fails (spans contain no cyclic or unmarshalable
// fields, so this is defensive only).
func (c *ConsoleSink) Emit(span Span) {
	payload, err := json.Marshal(span)
	if err != nil {
		fmt.Fprintf(c.out, "telemetry: span=%+v marshal_error=%v\n", span, err)
		return
	}
	fmt.Fprintln(c.out, string(payload))
}

// JSONPublisher is the subset of internal/nats.Client's surface a NATS sink
// needs, kept narrow so tests can supply a fake.
type JSONPublisher interface {
	PublishJSON(subject string, v interface{}) error
}

// NatsSink publishes each span as JSON to a fixed NATS subject.
type NatsSink struct {
	client  JSONPublisher
	subject string
}

// NewNatsSink creates a sink publishing spans to subject via client.
func NewNatsSink(client JSONPublisher, subject string) *NatsSink {
	if subject == "" {
		subject = "telemetry.spans"
	}
	return &NatsSink{client: client, subject: subject}
}

// Emit publishes span to the configured subject. Telemetry is best-effort:
// the Sink interface has no error return, so a publish failure is dropped
// rather than surfaced to the instrumented call site.
func (n *NatsSink) Emit(span Span) {
	if n.client == nil {
		return
	}
	_ = n.client.PublishJSON(n.subject, span)
}
