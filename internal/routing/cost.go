package routing

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/agentic-qe/kernel/internal/memory"
)

// ModelStats accumulates spend for one model.
type ModelStats struct {
	TokensUsed    int64   `json:"tokens_used"`
	EstimatedCost float64 `json:"estimated_cost"`
	RequestCount  int64   `json:"request_count"`
}

// Dashboard is the cost-dashboard view of spec.md §4.5: totals, per-model
// distribution, session duration and derived averages.
type Dashboard struct {
	Totals                ModelStats            `json:"totals"`
	ByModel               map[ModelID]ModelStats `json:"by_model"`
	SessionDuration       time.Duration          `json:"session_duration"`
	AverageCostPerRequest float64                `json:"average_cost_per_request"`
	SavingsVsBaseline     float64                `json:"savings_vs_baseline"`
}

const (
	costsPartition = "coordination"
	costsKey       = "routing/costs"
	costsTTL       = 24 * time.Hour
)

// CostTracker accumulates per-model (tokensUsed, estimatedCost, requestCount)
// and persists dashboard snapshots to the memory store.
type CostTracker struct {
	db            *memory.DB
	baselineModel ModelID

	mu        sync.Mutex
	byModel   map[ModelID]*ModelStats
	startedAt time.Time
}

// NewCostTracker creates a tracker persisting snapshots through db (nil
// disables persistence, useful in tests) and computing savings against
// baseline at equal token volume.
func NewCostTracker(db *memory.DB, baseline ModelID) *CostTracker {
	return &CostTracker{
		db:            db,
		baselineModel: baseline,
		byModel:       make(map[ModelID]*ModelStats),
		startedAt:     time.Now(),
	}
}

// Record adds one completed task's usage to model's running totals.
func (t *CostTracker) Record(model ModelID, tokensUsed int, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byModel[model]
	if !ok {
		s = &ModelStats{}
		t.byModel[model] = s
	}
	s.TokensUsed += int64(tokensUsed)
	s.EstimatedCost += cost
	s.RequestCount++
}

// Dashboard computes totals, per-model distribution, and savings versus the
// baseline model at the same token volume actually spent.
func (t *CostTracker) Dashboard() Dashboard {
	t.mu.Lock()
	defer t.mu.Unlock()

	byModel := make(map[ModelID]ModelStats, len(t.byModel))
	var totals ModelStats
	for m, s := range t.byModel {
		byModel[m] = *s
		totals.TokensUsed += s.TokensUsed
		totals.EstimatedCost += s.EstimatedCost
		totals.RequestCount += s.RequestCount
	}

	var avg float64
	if totals.RequestCount > 0 {
		avg = totals.EstimatedCost / float64(totals.RequestCount)
	}

	baselineCost := modelCostPer1KTokens[t.baselineModel] * (float64(totals.TokensUsed) / 1000.0)

	return Dashboard{
		Totals:                totals,
		ByModel:               byModel,
		SessionDuration:       time.Since(t.startedAt),
		AverageCostPerRequest: avg,
		SavingsVsBaseline:     baselineCost - totals.EstimatedCost,
	}
}

// Snapshot persists the current dashboard to partition "coordination", key
// "routing/costs", with a 24h TTL (spec.md §6).
func (t *CostTracker) Snapshot() error {
	if t.db == nil {
		return nil
	}
	payload, err := json.Marshal(t.Dashboard())
	if err != nil {
		return err
	}
	return t.db.StoreEntry(costsKey, string(payload), memory.StoreOptions{
		Partition:   costsPartition,
		TTL:         costsTTL,
		Owner:       "router",
		AccessLevel: memory.AccessSystem,
	})
}
