package routing

import (
	"testing"

	"github.com/agentic-qe/kernel/internal/events"
)

func TestRouteSelectsModelPerComplexity(t *testing.T) {
	r := New(events.NewBus(nil), NewCostTracker(nil, ModelGPT35Turbo), 0)

	decision := r.Route(Task{ID: "t1", Type: "test-generator", Description: "write a unit test"})
	if decision.Model != ModelGPT35Turbo {
		t.Errorf("expected gpt-3.5-turbo for simple test-generator task, got %s", decision.Model)
	}

	decision = r.Route(Task{ID: "t2", Type: "test-generator", Description: "production security compliance audit"})
	if decision.Model != ModelClaudeSonnet45 {
		t.Errorf("expected claude-sonnet-4.5 for critical task, got %s", decision.Model)
	}
}

func TestRouteDowngradesOnCostThreshold(t *testing.T) {
	r := New(events.NewBus(nil), NewCostTracker(nil, ModelGPT35Turbo), 0.001)

	decision := r.Route(Task{ID: "t3", Type: "test-generator", Description: "production security compliance audit"})
	if !decision.Downgraded {
		t.Fatal("expected complexity to downgrade under a tight cost threshold")
	}
	if decision.OriginalComplexity != ComplexityCritical {
		t.Errorf("expected original complexity critical, got %s", decision.OriginalComplexity)
	}
	if decision.Complexity != ComplexityComplex {
		t.Errorf("expected downgraded complexity complex, got %s", decision.Complexity)
	}
}

func TestRouteUnknownAgentTypeFallsBackToDefaultTable(t *testing.T) {
	r := New(events.NewBus(nil), NewCostTracker(nil, ModelGPT35Turbo), 0)
	decision := r.Route(Task{ID: "t4", Type: "unregistered-agent-type", Description: "write a unit test"})
	if decision.Model != ModelGPT35Turbo {
		t.Errorf("expected default table's simple model, got %s", decision.Model)
	}
}

func TestFallbackPicksDifferentModel(t *testing.T) {
	r := New(events.NewBus(nil), NewCostTracker(nil, ModelGPT35Turbo), 0)
	task := Task{ID: "t5", Type: "test-generator", Description: "write a unit test"}
	fb := r.Fallback(task, ModelGPT35Turbo)
	if fb == ModelGPT35Turbo {
		t.Error("expected fallback to choose a model other than the failed one")
	}
}
