// Package telemetry provides thin instrumentation spans for memory
// operations (spec.md §6's Telemetry paragraph). The teacher carries no
// tracing library, so spans are a lightweight struct plus a pluggable sink
// interface rather than an OpenTelemetry SDK dependency.
package telemetry

import "time"

// Span is one completed operation's telemetry record, matching spec.md §6's
// attribute set exactly: {agent_id, namespace, key, value_size?, duration_ms, success}.
type Span struct {
	AgentID    string `json:"agent_id"`
	Namespace  string `json:"namespace"`
	Key        string `json:"key"`
	ValueSize  *int64 `json:"value_size,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Success    bool   `json:"success"`
}

// Sink receives completed spans. Implementations must not block the caller
// for long; Tracer calls sinks synchronously in registration order.
type Sink interface {
	Emit(Span)
}

// Tracer fans a completed span out to every registered sink.
type Tracer struct {
	sinks []Sink
}

// New creates a Tracer with the given sinks. A nil or empty sink list is a
// valid no-op tracer.
func New(sinks ...Sink) *Tracer {
	return &Tracer{sinks: sinks}
}

// active is an in-flight span timer returned by Start.
type active struct {
	tracer    *Tracer
	agentID   string
	namespace string
	key       string
	startedAt time.Time
}

// Start begins timing an operation. Call Stop on the result once the
// operation completes.
func (t *Tracer) Start(agentID, namespace, key string) *active {
	return &active{tracer: t, agentID: agentID, namespace: namespace, key: key, startedAt: time.Now()}
}

// Stop finalizes the span and emits it to every registered sink. valueSize
// is optional; pass -1 to omit it.
func (a *active) Stop(success bool, valueSize int64) {
	if a == nil || a.tracer == nil {
		return
	}
	span := Span{
		AgentID:    a.agentID,
		Namespace:  a.namespace,
		Key:        a.key,
		DurationMS: time.Since(a.startedAt).Milliseconds(),
		Success:    success,
	}
	if valueSize >= 0 {
		span.ValueSize = &valueSize
	}
	for _, s := range a.tracer.sinks {
		s.Emit(span)
	}
}
