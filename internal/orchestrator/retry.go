// Package orchestrator wraps operations with retry, circuit-breaker and
// fallback protection, and runs a separate multi-strategy recovery attempt
// when failures persist (spec.md §4.4). Grounded on the execution/dispatch
// shape of internal/supervisor/executor.go and dispatcher.go, enriched with
// the circuit-breaker state machine from
// itsneelabh-gomind/resilience/circuit_breaker.go.
package orchestrator

import (
	"context"
	"time"
)

// Component names recognised by the retry table and recovery chain.
const (
	ComponentTransport     = "transport"
	ComponentMemory        = "memory"
	ComponentDatabase      = "database"
	ComponentOrchestration = "orchestration"
	ComponentAgent         = "agent"
	ComponentWorkflow      = "workflow"
)

type backoffKind string

const (
	backoffExponential backoffKind = "exponential"
	backoffLinear      backoffKind = "linear"
	backoffConstant    backoffKind = "constant"
)

type retryStrategy struct {
	initialDelay time.Duration
	backoff      backoffKind
	maxAttempts  int
}

// retryStrategies holds the per-component retry table of spec.md §4.4.
// Components not listed fall back to a single attempt, no delay.
var retryStrategies = map[string]retryStrategy{
	ComponentTransport:     {1000 * time.Millisecond, backoffExponential, 4},
	ComponentMemory:        {500 * time.Millisecond, backoffExponential, 3},
	ComponentDatabase:      {500 * time.Millisecond, backoffExponential, 3},
	ComponentOrchestration: {2000 * time.Millisecond, backoffLinear, 2},
	ComponentAgent:         {1000 * time.Millisecond, backoffConstant, 2},
	ComponentWorkflow:      {1000 * time.Millisecond, backoffExponential, 3},
}

func strategyFor(component string) retryStrategy {
	if s, ok := retryStrategies[component]; ok {
		return s
	}
	return retryStrategy{initialDelay: 0, backoff: backoffConstant, maxAttempts: 1}
}

// delayForAttempt returns the backoff delay to wait after a failed attempt
// numbered attempt (1-indexed) before trying attempt+1.
func delayForAttempt(s retryStrategy, attempt int) time.Duration {
	switch s.backoff {
	case backoffExponential:
		return s.initialDelay * time.Duration(uint(1)<<uint(attempt-1))
	case backoffLinear:
		return s.initialDelay * time.Duration(attempt)
	default:
		return s.initialDelay
	}
}

// sleep waits d, returning ctx.Err() if ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
