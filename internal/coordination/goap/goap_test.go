package goap

import (
	"path/filepath"
	"testing"

	"github.com/agentic-qe/kernel/internal/memory"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	db, err := memory.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestPlanCompileThenTest(t *testing.T) {
	planner := newTestPlanner(t)

	compile := &Action{
		ID:            "compile",
		Preconditions: map[string]interface{}{"source": "ready"},
		Effects:       map[string]interface{}{"binary": "ready"},
		Cost:          2,
	}
	test := &Action{
		ID:            "test",
		Preconditions: map[string]interface{}{"binary": "ready"},
		Effects:       map[string]interface{}{"tested": true},
		Cost:          1,
	}
	if err := planner.RegisterAction(compile); err != nil {
		t.Fatalf("failed to register compile: %v", err)
	}
	if err := planner.RegisterAction(test); err != nil {
		t.Fatalf("failed to register test: %v", err)
	}

	goal := &memory.Goal{ID: "goal-1", Conditions: map[string]interface{}{"tested": true}, Cost: 0}
	if err := planner.RegisterGoal(goal); err != nil {
		t.Fatalf("failed to register goal: %v", err)
	}

	start := WorldState{"source": "ready"}
	plan, err := planner.Plan(goal.ID, start)
	if err != nil {
		t.Fatalf("failed to compute plan: %v", err)
	}
	if plan.TotalCost != 3 {
		t.Errorf("expected total cost 3, got %d", plan.TotalCost)
	}
	if len(plan.Actions) != 2 || plan.Actions[0].ID != "compile" || plan.Actions[1].ID != "test" {
		t.Fatalf("unexpected action sequence: %+v", plan.Actions)
	}

	end, err := planner.Execute(plan, start)
	if err != nil {
		t.Fatalf("failed to execute plan: %v", err)
	}
	if end["source"] != "ready" || end["binary"] != "ready" || end["tested"] != true {
		t.Errorf("unexpected end state: %+v", end)
	}
}

func TestPlanUnreachableGoalFails(t *testing.T) {
	planner := newTestPlanner(t)

	goal := &memory.Goal{ID: "goal-2", Conditions: map[string]interface{}{"deployed": true}}
	if err := planner.RegisterGoal(goal); err != nil {
		t.Fatalf("failed to register goal: %v", err)
	}

	if _, err := planner.Plan(goal.ID, WorldState{}); err == nil {
		t.Fatal("expected plan failure for unreachable goal")
	}
}

func TestExecuteFailsOnPreconditionViolation(t *testing.T) {
	planner := newTestPlanner(t)

	action := &Action{
		ID:            "deploy",
		Preconditions: map[string]interface{}{"tested": true},
		Effects:       map[string]interface{}{"deployed": true},
		Cost:          1,
	}
	plan := &Plan{ID: "plan-manual", Actions: []*Action{action}, TotalCost: 1}

	if _, err := planner.Execute(plan, WorldState{}); err == nil {
		t.Fatal("expected execute to fail on unmet precondition")
	}
}

func TestSerializeAndRestorePlan(t *testing.T) {
	planner := newTestPlanner(t)

	action := &Action{
		ID:            "compile",
		Preconditions: map[string]interface{}{"source": "ready"},
		Effects:       map[string]interface{}{"binary": "ready"},
		Cost:          2,
	}
	if err := planner.RegisterAction(action); err != nil {
		t.Fatalf("failed to register action: %v", err)
	}
	goal := &memory.Goal{ID: "goal-3", Conditions: map[string]interface{}{"binary": "ready"}}
	if err := planner.RegisterGoal(goal); err != nil {
		t.Fatalf("failed to register goal: %v", err)
	}

	plan, err := planner.Plan(goal.ID, WorldState{"source": "ready"})
	if err != nil {
		t.Fatalf("failed to compute plan: %v", err)
	}

	serial := plan.Serializable()
	if err := planner.db.PutPlan(serial); err != nil {
		t.Fatalf("failed to persist plan: %v", err)
	}

	loaded, err := planner.db.GetPlan(serial.ID)
	if err != nil {
		t.Fatalf("failed to load plan: %v", err)
	}

	restored, err := planner.RestorePlan(loaded)
	if err != nil {
		t.Fatalf("failed to restore plan: %v", err)
	}
	if len(restored.Actions) != 1 || restored.Actions[0].ID != "compile" {
		t.Fatalf("unexpected restored actions: %+v", restored.Actions)
	}
}

func TestRestoreUnknownActionFails(t *testing.T) {
	planner := newTestPlanner(t)

	serial := &memory.Plan{ID: "plan-x", GoalID: "goal-x", Sequence: []string{"ghost"}, TotalCost: 1}
	if _, err := planner.RestorePlan(serial); err == nil {
		t.Fatal("expected restore with unregistered action id to fail")
	}
}
