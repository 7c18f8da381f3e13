package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/agentic-qe/kernel/internal/events"
	"github.com/agentic-qe/kernel/internal/kerrors"
)

// RecoveryStrategy names one step of the attemptRecovery chain.
type RecoveryStrategy string

const (
	StrategyRetry        RecoveryStrategy = "retry"
	StrategyFallback     RecoveryStrategy = "fallback"
	StrategyCircuitBreak RecoveryStrategy = "circuit-break"
	StrategyDegrade      RecoveryStrategy = "graceful-degradation"
	StrategyRollback     RecoveryStrategy = "rollback"
	StrategyEscalate     RecoveryStrategy = "escalate"
)

// recoveryOrder is the fixed strategy sequence of spec.md §4.4. Escalate is
// always attempted last and always succeeds, so the chain is total.
var recoveryOrder = []RecoveryStrategy{
	StrategyRetry, StrategyFallback, StrategyCircuitBreak,
	StrategyDegrade, StrategyRollback, StrategyEscalate,
}

// DegradationHandler switches component into a reduced-capability mode and
// describes what was degraded.
type DegradationHandler func(ctx context.Context, cause error) (string, error)

// RollbackHandler reverts component to its last known-good state.
type RollbackHandler func(ctx context.Context, cause error) (string, error)

// RecoveryOutcome reports which strategy resolved a recovery attempt.
type RecoveryOutcome struct {
	Strategy RecoveryStrategy
	Success  bool
	Detail   string
	Result   interface{}
}

// RegisterDegradationHandler attaches the graceful-degradation action for component.
func (o *Orchestrator) RegisterDegradationHandler(component string, h DegradationHandler) {
	o.degradeMu.Lock()
	defer o.degradeMu.Unlock()
	o.degrade[component] = h
}

// RegisterRollbackHandler attaches the rollback action for component.
func (o *Orchestrator) RegisterRollbackHandler(component string, h RollbackHandler) {
	o.rollbackMu.Lock()
	defer o.rollbackMu.Unlock()
	o.rollback[component] = h
}

// AttemptRecovery runs the attemptRecovery chain for component against cause.
// retry, if non-nil, is re-run under ExecuteWithRecovery for the retry
// strategy step; the fallback step invokes the Fallback registered for
// (component, operationID).
func (o *Orchestrator) AttemptRecovery(ctx context.Context, component, operationID string, cause error, retry Operation) (*RecoveryOutcome, error) {
	if !o.limiter.allow(component) {
		o.recordHistory(component, StrategyEscalate, false, "rate-limited")
		o.publish(events.EventEscalation, map[string]interface{}{"component": component, "reason": "rate-limited"})
		return &RecoveryOutcome{Strategy: StrategyEscalate, Detail: "rate-limited"},
			kerrors.RateLimited("orchestrator.attemptRecovery", "recovery rate exceeded for %s", component)
	}
	if !o.limiter.start(component) {
		return nil, kerrors.Conflict("orchestrator.attemptRecovery", "recovery already in progress for %s", component)
	}
	defer o.limiter.finish(component)

	for _, strategy := range recoveryOrder {
		success, detail, result := o.runStrategy(ctx, strategy, component, operationID, cause, retry)
		o.recordHistory(component, strategy, success, detail)
		if success {
			o.publish(events.EventRecoverySuccess, map[string]interface{}{
				"component": component, "strategy": string(strategy), "detail": detail,
			})
			return &RecoveryOutcome{Strategy: strategy, Success: true, Detail: detail, Result: result}, nil
		}
	}

	o.publish(events.EventRecoveryFailed, map[string]interface{}{
		"component": component, "cause": cause.Error(),
	})
	return &RecoveryOutcome{Strategy: StrategyEscalate, Success: false, Detail: "all strategies exhausted"}, cause
}

func (o *Orchestrator) runStrategy(ctx context.Context, strategy RecoveryStrategy, component, operationID string, cause error, retry Operation) (bool, string, interface{}) {
	switch strategy {
	case StrategyRetry:
		if retry == nil {
			return false, "no retry operation supplied", nil
		}
		result, err := o.ExecuteWithRecovery(ctx, component, operationID, retry)
		if err != nil {
			return false, err.Error(), nil
		}
		return true, "retry succeeded", result

	case StrategyFallback:
		fb, ok := o.fallbackFor(component, operationID)
		if !ok {
			return false, "no fallback registered", nil
		}
		result, err := fb(ctx)
		if err != nil {
			return false, err.Error(), nil
		}
		return true, "fallback satisfied request", result

	case StrategyCircuitBreak:
		// Opening the breaker shields callers but does not resolve the
		// failure, so this step never stops the chain.
		entry := o.breakers.entry(component, operationID)
		if entry.forceOpen() {
			return false, "circuit already open", nil
		}
		return false, "circuit forced open", nil

	case StrategyDegrade:
		o.degradeMu.Lock()
		h, ok := o.degrade[component]
		o.degradeMu.Unlock()
		if !ok {
			return false, "no degradation handler registered", nil
		}
		detail, err := h(ctx, cause)
		if err != nil {
			return false, err.Error(), nil
		}
		o.publish(events.EventDegradationMode, map[string]interface{}{"component": component, "detail": detail})
		return true, detail, nil

	case StrategyRollback:
		o.rollbackMu.Lock()
		h, ok := o.rollback[component]
		o.rollbackMu.Unlock()
		if !ok {
			return false, "no rollback handler registered", nil
		}
		detail, err := h(ctx, cause)
		if err != nil {
			return false, err.Error(), nil
		}
		o.publish(events.EventRollbackRequested, map[string]interface{}{"component": component, "detail": detail})
		return true, detail, nil

	case StrategyEscalate:
		o.publish(events.EventEscalation, map[string]interface{}{"component": component, "cause": cause.Error()})
		return true, "escalated: " + cause.Error(), nil

	default:
		return false, "unknown strategy", nil
	}
}

// historyEntry is one recorded recovery strategy attempt.
type historyEntry struct {
	Component string
	Strategy  RecoveryStrategy
	Success   bool
	Detail    string
	At        time.Time
}

// StrategyStats aggregates attempts/successes for one strategy.
type StrategyStats struct {
	Attempts  int
	Successes int
}

// ComponentStats aggregates recovery history for one component.
type ComponentStats struct {
	Attempts   int
	Successes  int
	ByStrategy map[RecoveryStrategy]*StrategyStats
}

// recoveryHistory keeps the last capacity recovery attempts in a ring and
// computes per-component/per-strategy statistics on demand.
type recoveryHistory struct {
	mu       sync.Mutex
	entries  []historyEntry
	capacity int
}

func newRecoveryHistory(capacity int) *recoveryHistory {
	return &recoveryHistory{capacity: capacity}
}

func (h *recoveryHistory) add(e historyEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
}

func (h *recoveryHistory) stats() map[string]*ComponentStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]*ComponentStats)
	for _, e := range h.entries {
		cs, ok := out[e.Component]
		if !ok {
			cs = &ComponentStats{ByStrategy: make(map[RecoveryStrategy]*StrategyStats)}
			out[e.Component] = cs
		}
		cs.Attempts++
		if e.Success {
			cs.Successes++
		}
		ss, ok := cs.ByStrategy[e.Strategy]
		if !ok {
			ss = &StrategyStats{}
			cs.ByStrategy[e.Strategy] = ss
		}
		ss.Attempts++
		if e.Success {
			ss.Successes++
		}
	}
	return out
}

func (o *Orchestrator) recordHistory(component string, strategy RecoveryStrategy, success bool, detail string) {
	o.history.add(historyEntry{Component: component, Strategy: strategy, Success: success, Detail: detail, At: time.Now()})
}

// RecoveryStats returns recovery statistics grouped by component.
func (o *Orchestrator) RecoveryStats() map[string]*ComponentStats {
	return o.history.stats()
}

// recoveryLimiter rate-limits recovery attempts per component and
// de-duplicates concurrent in-flight recoveries for the same component.
type recoveryLimiter struct {
	mu           sync.Mutex
	maxPerMinute int
	timestamps   map[string][]time.Time
	inProgress   map[string]bool
}

func newRecoveryLimiter(maxPerMinute int) *recoveryLimiter {
	return &recoveryLimiter{
		maxPerMinute: maxPerMinute,
		timestamps:   make(map[string][]time.Time),
		inProgress:   make(map[string]bool),
	}
}

func (l *recoveryLimiter) allow(component string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-time.Minute)
	kept := l.timestamps[component][:0]
	for _, t := range l.timestamps[component] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.maxPerMinute {
		l.timestamps[component] = kept
		return false
	}
	l.timestamps[component] = append(kept, now)
	return true
}

func (l *recoveryLimiter) start(component string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inProgress[component] {
		return false
	}
	l.inProgress[component] = true
	return true
}

func (l *recoveryLimiter) finish(component string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inProgress, component)
}
