package routing

import "testing"

func TestCostTrackerAccumulatesByModel(t *testing.T) {
	tr := NewCostTracker(nil, ModelGPT35Turbo)
	tr.Record(ModelGPT4, 1000, 0.03)
	tr.Record(ModelGPT4, 500, 0.015)
	tr.Record(ModelClaudeHaiku, 2000, 0.005)

	dash := tr.Dashboard()
	gpt4 := dash.ByModel[ModelGPT4]
	if gpt4.TokensUsed != 1500 || gpt4.RequestCount != 2 {
		t.Fatalf("unexpected gpt-4 stats: %+v", gpt4)
	}
	if dash.Totals.RequestCount != 3 {
		t.Fatalf("expected 3 total requests, got %d", dash.Totals.RequestCount)
	}
	wantCost := 0.03 + 0.015 + 0.005
	if diff := dash.Totals.EstimatedCost - wantCost; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected total cost %f, got %f", wantCost, dash.Totals.EstimatedCost)
	}
}

func TestCostTrackerSavingsVsBaseline(t *testing.T) {
	tr := NewCostTracker(nil, ModelGPT4)
	tr.Record(ModelGPT35Turbo, 1000, modelCostPer1KTokens[ModelGPT35Turbo])

	dash := tr.Dashboard()
	baselineCost := modelCostPer1KTokens[ModelGPT4]
	wantSavings := baselineCost - modelCostPer1KTokens[ModelGPT35Turbo]
	if diff := dash.SavingsVsBaseline - wantSavings; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected savings %f, got %f", wantSavings, dash.SavingsVsBaseline)
	}
}

func TestCostTrackerSnapshotWithNilDBIsNoop(t *testing.T) {
	tr := NewCostTracker(nil, ModelGPT35Turbo)
	if err := tr.Snapshot(); err != nil {
		t.Fatalf("expected nil-db snapshot to be a no-op, got %v", err)
	}
}
