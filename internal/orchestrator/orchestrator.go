package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentic-qe/kernel/internal/events"
	"github.com/agentic-qe/kernel/internal/kerrors"
)

// Operation is a caller-supplied unit of work executed under the
// retry+circuit-breaker+fallback stack.
type Operation func(ctx context.Context) (interface{}, error)

// Fallback produces a substitute result when an Operation cannot succeed.
type Fallback func(ctx context.Context) (interface{}, error)

// Orchestrator wraps operations with the protective stack of spec.md §4.4
// and runs attemptRecovery when the stack is exhausted.
type Orchestrator struct {
	bus      *events.Bus
	breakers *breakerManager

	mu        sync.Mutex
	fallbacks map[breakerKey]Fallback

	degradeMu sync.Mutex
	degrade   map[string]DegradationHandler

	rollbackMu sync.Mutex
	rollback   map[string]RollbackHandler

	history *recoveryHistory
	limiter *recoveryLimiter

	healthMu sync.Mutex
	checkers map[string]HealthChecker
	cache    map[string]Health
}

// New creates an Orchestrator publishing recovery events to bus (nil is
// allowed; events are then dropped silently).
func New(bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		bus:       bus,
		breakers:  newBreakerManager(defaultBreakerConfig),
		fallbacks: make(map[breakerKey]Fallback),
		degrade:   make(map[string]DegradationHandler),
		rollback:  make(map[string]RollbackHandler),
		history:   newRecoveryHistory(1000),
		limiter:   newRecoveryLimiter(10),
		checkers:  make(map[string]HealthChecker),
		cache:     make(map[string]Health),
	}
}

// RegisterFallback attaches fb as the fallback for (component, operationID),
// invoked when the breaker short-circuits or the retry budget is exhausted.
func (o *Orchestrator) RegisterFallback(component, operationID string, fb Fallback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks[breakerKey{component, operationID}] = fb
}

func (o *Orchestrator) fallbackFor(component, operationID string) (Fallback, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fb, ok := o.fallbacks[breakerKey{component, operationID}]
	return fb, ok
}

func (o *Orchestrator) publish(t events.EventType, payload map[string]interface{}) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.NewEvent(t, "orchestrator", "all", events.PriorityNormal, payload))
}

// BreakerState reports the current circuit breaker state for
// (component, operationID): "closed", "open" or "half_open".
func (o *Orchestrator) BreakerState(component, operationID string) string {
	return o.breakers.state(component, operationID)
}

// ExecuteWithRecovery runs op under the breaker for (component, operationID),
// retrying per component's strategy and falling back to the registered
// Fallback on circuit-open or retry exhaustion (spec.md §4.4).
func (o *Orchestrator) ExecuteWithRecovery(ctx context.Context, component, operationID string, op Operation) (interface{}, error) {
	entry := o.breakers.entry(component, operationID)
	cfg := o.breakers.config

	if !entry.allow(cfg.cooldown) {
		return o.useFallbackOrFail(ctx, component, operationID, "circuit-open",
			kerrors.CircuitOpen("orchestrator.executeWithRecovery", "%s/%s circuit open", component, operationID))
	}

	strategy := strategyFor(component)
	attempts := strategy.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if !entry.allow(cfg.cooldown) {
			lastErr = kerrors.CircuitOpen("orchestrator.executeWithRecovery", "%s/%s circuit open", component, operationID)
			break
		}
		result, err := op(ctx)
		if err == nil {
			entry.recordSuccess()
			return result, nil
		}
		entry.recordFailure(cfg.failureThreshold)
		lastErr = err
		if attempt == attempts {
			break
		}
		if sleepErr := sleep(ctx, delayForAttempt(strategy, attempt)); sleepErr != nil {
			return nil, sleepErr
		}
	}

	return o.useFallbackOrFail(ctx, component, operationID, "retry-exhausted", lastErr)
}

func (o *Orchestrator) useFallbackOrFail(ctx context.Context, component, operationID, reason string, cause error) (interface{}, error) {
	fb, ok := o.fallbackFor(component, operationID)
	if !ok {
		return nil, cause
	}
	result, err := fb(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w (fallback also failed: %v)", cause, err)
	}
	o.publish(events.EventFallbackUsed, map[string]interface{}{
		"component": component, "operation": operationID, "reason": reason,
	})
	return result, nil
}
