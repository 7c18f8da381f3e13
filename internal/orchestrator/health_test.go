package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentic-qe/kernel/internal/events"
)

func TestRefreshHealthCachesCheckerResult(t *testing.T) {
	o := New(events.NewBus(nil))
	o.RegisterHealthChecker(ComponentDatabase, func(ctx context.Context) (Health, error) {
		return Health{Status: StatusDegraded, ErrorRate: 0.2, LatencyP95: 120 * time.Millisecond}, nil
	})

	o.RefreshHealth(context.Background())

	h, ok := o.Health(ComponentDatabase)
	if !ok {
		t.Fatal("expected cached health entry")
	}
	if h.Status != StatusDegraded || h.ErrorRate != 0.2 {
		t.Fatalf("unexpected health: %+v", h)
	}
}

func TestRefreshHealthMapsCheckerErrorToUnknown(t *testing.T) {
	o := New(events.NewBus(nil))
	o.RegisterHealthChecker(ComponentTransport, func(ctx context.Context) (Health, error) {
		return Health{}, errors.New("checker unavailable")
	})

	o.RefreshHealth(context.Background())

	h, ok := o.Health(ComponentTransport)
	if !ok {
		t.Fatal("expected cached health entry even on checker error")
	}
	if h.Status != StatusUnknown {
		t.Fatalf("expected unknown status, got %s", h.Status)
	}
}

func TestHealthMissingComponentNotOK(t *testing.T) {
	o := New(events.NewBus(nil))
	if _, ok := o.Health("never-registered"); ok {
		t.Fatal("expected no cached health for unregistered component")
	}
}
