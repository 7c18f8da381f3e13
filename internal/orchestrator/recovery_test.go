package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/agentic-qe/kernel/internal/events"
)

func TestAttemptRecoverySucceedsOnRetryStrategy(t *testing.T) {
	o := New(events.NewBus(nil))
	cause := errors.New("connection reset")

	calls := 0
	outcome, err := o.AttemptRecovery(context.Background(), "custom-retry", "ping", cause, func(ctx context.Context) (interface{}, error) {
		calls++
		return "pong", nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if outcome.Strategy != StrategyRetry {
		t.Fatalf("expected retry strategy to resolve, got %s", outcome.Strategy)
	}
	if calls != 1 {
		t.Fatalf("expected retry operation invoked once, got %d", calls)
	}
}

func TestAttemptRecoveryFallsThroughToFallback(t *testing.T) {
	o := New(events.NewBus(nil))
	o.RegisterFallback("custom-fallback", "ping", func(ctx context.Context) (interface{}, error) {
		return "cached", nil
	})

	outcome, err := o.AttemptRecovery(context.Background(), "custom-fallback", "ping", errors.New("boom"), nil)
	if err != nil {
		t.Fatalf("expected fallback to resolve, got %v", err)
	}
	if outcome.Strategy != StrategyFallback {
		t.Fatalf("expected fallback strategy, got %s", outcome.Strategy)
	}
}

func TestAttemptRecoveryResolvesAtDegradation(t *testing.T) {
	o := New(events.NewBus(nil))
	degraded := false
	o.RegisterDegradationHandler("custom-degrade", func(ctx context.Context, cause error) (string, error) {
		degraded = true
		return "reduced to read-only", nil
	})

	outcome, err := o.AttemptRecovery(context.Background(), "custom-degrade", "write", errors.New("disk full"), nil)
	if err != nil {
		t.Fatalf("expected degradation to resolve, got %v", err)
	}
	if !degraded || outcome.Strategy != StrategyDegrade {
		t.Fatalf("expected degrade strategy to resolve, got %s", outcome.Strategy)
	}
}

func TestAttemptRecoveryEscalatesWhenNoHandlerMatches(t *testing.T) {
	o := New(events.NewBus(nil))
	cause := errors.New("unrecoverable")

	outcome, err := o.AttemptRecovery(context.Background(), "custom-escalate", "op", cause, nil)
	if err != nil {
		t.Fatalf("escalate always resolves the chain, got %v", err)
	}
	if outcome.Strategy != StrategyEscalate || !outcome.Success {
		t.Fatalf("expected chain to terminate at escalate, got %+v", outcome)
	}
}

func TestAttemptRecoveryRateLimited(t *testing.T) {
	o := New(events.NewBus(nil))
	o.limiter = newRecoveryLimiter(1)

	if _, err := o.AttemptRecovery(context.Background(), "custom-limited", "op", errors.New("x"), nil); err != nil {
		t.Fatalf("first attempt should pass the limiter, got %v", err)
	}
	_, err := o.AttemptRecovery(context.Background(), "custom-limited", "op", errors.New("x"), nil)
	if err == nil {
		t.Fatal("expected second attempt within the same minute to be rate-limited")
	}
}

func TestAttemptRecoveryDedupesConcurrentRuns(t *testing.T) {
	o := New(events.NewBus(nil))
	if !o.limiter.start("custom-dedup") {
		t.Fatal("expected first start to succeed")
	}
	_, err := o.AttemptRecovery(context.Background(), "custom-dedup", "op", errors.New("x"), nil)
	if err == nil {
		t.Fatal("expected recovery already in progress to be rejected")
	}
	o.limiter.finish("custom-dedup")
}

func TestRecoveryStatsAggregatesByComponentAndStrategy(t *testing.T) {
	o := New(events.NewBus(nil))
	_, _ = o.AttemptRecovery(context.Background(), "custom-stats", "op", errors.New("x"), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})

	stats := o.RecoveryStats()
	cs, ok := stats["custom-stats"]
	if !ok {
		t.Fatal("expected stats entry for custom-stats")
	}
	if cs.Attempts != 1 || cs.Successes != 1 {
		t.Fatalf("unexpected component stats: %+v", cs)
	}
	if cs.ByStrategy[StrategyRetry].Successes != 1 {
		t.Fatalf("expected retry strategy recorded as successful: %+v", cs.ByStrategy)
	}
}
