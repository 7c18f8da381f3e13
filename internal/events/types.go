package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

// Event type constants
const (
	EventMessage      EventType = "message"
	EventAgentSignal  EventType = "agent_signal"
	EventAlert        EventType = "alert"
	EventTask         EventType = "task"
	EventStopApproval EventType = "stop_approval" // Response to stop approval request

	// Coordination and recovery topics, published by internal/coordination and
	// internal/orchestrator. The consensus:*, goap:*, hint-posted and recovery-*
	// types are also mirrored to NATS, on subject "kernel.events." plus the type
	// with ':' and '-' replaced by '.' (see mirrorable and mirrorSubject).
	EventConsensusProposed  EventType = "consensus:proposed"
	EventConsensusVoteCast  EventType = "consensus:vote-cast"
	EventConsensusReached   EventType = "consensus:reached"
	EventConsensusRejected  EventType = "consensus:rejected"
	EventGoapPlanCreated    EventType = "goap:plan-created"
	EventGoapPlanExecuting  EventType = "goap:plan-executing"
	EventGoapActionComplete EventType = "goap:action-completed"
	EventGoapPlanCompleted  EventType = "goap:plan-completed"
	EventGoapPlanFailed     EventType = "goap:plan-failed"
	EventHintPosted         EventType = "hint-posted"
	EventRecoverySuccess    EventType = "recovery-success"
	EventRecoveryFailed     EventType = "recovery-failed"
	EventDegradationMode    EventType = "degradation-mode"
	EventRollbackRequested  EventType = "rollback-requested"
	EventEscalation         EventType = "escalation"
	EventFallbackUsed       EventType = "fallback-used"

	// Routing topics, published by internal/routing.
	EventRouterModelSelected   EventType = "router:model-selected"
	EventRouterCostTracked     EventType = "router:cost-tracked"
	EventRouterFallbackChosen  EventType = "router:fallback-selected"
	EventRouterCostOptimized   EventType = "router:cost-optimized"
)

// Priority constants for events
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityNormal   = 3
	PriorityLow      = 4
)

// Event represents a system event that can be published and subscribed to
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Target    string                 `json:"target"`
	Priority  int                    `json:"priority"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType EventType, source, target string, priority int, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Target:    target,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// AllEventTypes returns all defined event types
func AllEventTypes() []EventType {
	return []EventType{
		EventMessage,
		EventAgentSignal,
		EventAlert,
		EventTask,
		EventStopApproval,
		EventConsensusProposed,
		EventConsensusVoteCast,
		EventConsensusReached,
		EventConsensusRejected,
		EventGoapPlanCreated,
		EventGoapPlanExecuting,
		EventGoapActionComplete,
		EventGoapPlanCompleted,
		EventGoapPlanFailed,
		EventHintPosted,
		EventRecoverySuccess,
		EventRecoveryFailed,
		EventDegradationMode,
		EventRollbackRequested,
		EventEscalation,
		EventFallbackUsed,
		EventRouterModelSelected,
		EventRouterCostTracked,
		EventRouterFallbackChosen,
		EventRouterCostOptimized,
	}
}
