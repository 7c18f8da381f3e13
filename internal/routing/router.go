package routing

import (
	"github.com/agentic-qe/kernel/internal/events"
)

// ModelID names a routable LLM backend.
type ModelID string

const (
	ModelGPT35Turbo     ModelID = "gpt-3.5-turbo"
	ModelClaudeHaiku    ModelID = "claude-haiku"
	ModelGPT4           ModelID = "gpt-4"
	ModelClaudeSonnet45 ModelID = "claude-sonnet-4.5"
)

// modelCostPer1KTokens is the estimation table used for cost-threshold
// enforcement and savings accounting; not a live pricing feed.
var modelCostPer1KTokens = map[ModelID]float64{
	ModelGPT35Turbo:     0.0015,
	ModelClaudeHaiku:    0.0025,
	ModelGPT4:           0.0300,
	ModelClaudeSonnet45: 0.0150,
}

// routingTable maps agent type -> complexity -> model (spec.md §6, example rows).
var routingTable = map[string]map[Complexity]ModelID{
	"test-generator": {
		ComplexitySimple:   ModelGPT35Turbo,
		ComplexityModerate: ModelClaudeHaiku,
		ComplexityComplex:  ModelGPT4,
		ComplexityCritical: ModelClaudeSonnet45,
	},
	"test-executor": {
		ComplexitySimple:   ModelGPT35Turbo,
		ComplexityModerate: ModelGPT35Turbo,
		ComplexityComplex:  ModelClaudeHaiku,
		ComplexityCritical: ModelGPT4,
	},
	"coverage-analyzer": {
		ComplexitySimple:   ModelClaudeHaiku,
		ComplexityModerate: ModelClaudeHaiku,
		ComplexityComplex:  ModelGPT4,
		ComplexityCritical: ModelClaudeSonnet45,
	},
}

const defaultAgentType = "test-generator"

// estimatedTokensPerTask is the token volume assumed when estimating a
// task's cost for complexity-downgrade decisions.
const estimatedTokensPerTask = 1000.0

func modelFor(agentType string, complexity Complexity) ModelID {
	table, ok := routingTable[agentType]
	if !ok {
		table = routingTable[defaultAgentType]
	}
	if model, ok := table[complexity]; ok {
		return model
	}
	return table[ComplexitySimple]
}

func estimateCost(model ModelID, tokens float64) float64 {
	return modelCostPer1KTokens[model] * (tokens / 1000.0)
}

// Decision is the outcome of routing one task.
type Decision struct {
	Model              ModelID
	Complexity         Complexity
	OriginalComplexity Complexity
	EstimatedCost      float64
	Downgraded         bool
}

// Router chooses a model per task and tracks the resulting spend.
type Router struct {
	bus           *events.Bus
	tracker       *CostTracker
	costThreshold float64
}

// New creates a Router that downgrades complexity when the estimated cost of
// the initially-selected model exceeds costThreshold (0 disables the check),
// recording reported spend in tracker (nil disables recording).
func New(bus *events.Bus, tracker *CostTracker, costThreshold float64) *Router {
	return &Router{bus: bus, tracker: tracker, costThreshold: costThreshold}
}

// Route selects a model for task, downgrading complexity once if the
// estimated cost exceeds the configured threshold, and emits
// router:model-selected (plus router:cost-optimized on downgrade).
func (r *Router) Route(task Task) Decision {
	agentType := task.Type
	complexity := ClassifyComplexity(task)
	original := complexity
	model := modelFor(agentType, complexity)
	cost := estimateCost(model, estimatedTokensPerTask)
	downgraded := false

	if r.costThreshold > 0 && cost > r.costThreshold && complexity != ComplexitySimple {
		complexity = complexity.downgrade()
		model = modelFor(agentType, complexity)
		cost = estimateCost(model, estimatedTokensPerTask)
		downgraded = true
	}

	decision := Decision{
		Model:              model,
		Complexity:         complexity,
		OriginalComplexity: original,
		EstimatedCost:      cost,
		Downgraded:         downgraded,
	}

	r.publish(events.EventRouterModelSelected, map[string]interface{}{
		"task_id": task.ID, "agent_type": agentType, "model": string(model), "complexity": string(complexity),
	})
	if downgraded {
		r.publish(events.EventRouterCostOptimized, map[string]interface{}{
			"task_id": task.ID, "original_complexity": string(original), "new_complexity": string(complexity),
		})
	}

	return decision
}

// Report records actual token usage for a completed task against the
// model chosen by a prior Route call, updating the cost tracker.
func (r *Router) Report(model ModelID, tokensUsed int) {
	if r.tracker == nil {
		return
	}
	cost := estimateCost(model, float64(tokensUsed))
	r.tracker.Record(model, tokensUsed, cost)
	r.publish(events.EventRouterCostTracked, map[string]interface{}{
		"model": string(model), "tokens_used": tokensUsed, "estimated_cost": cost,
	})
}

// Fallback returns the first model in agentType's routing row, scanning from
// simple to critical, that differs from failed, or failed itself when no other
// model is listed. The result is not necessarily cheaper than failed. It is
// used when the selected model's provider fails transiently.
func (r *Router) Fallback(task Task, failed ModelID) ModelID {
	agentType := task.Type
	table, ok := routingTable[agentType]
	if !ok {
		table = routingTable[defaultAgentType]
	}
	for _, c := range []Complexity{ComplexitySimple, ComplexityModerate, ComplexityComplex, ComplexityCritical} {
		if m, ok := table[c]; ok && m != failed {
			r.publish(events.EventRouterFallbackChosen, map[string]interface{}{
				"task_id": task.ID, "failed_model": string(failed), "fallback_model": string(m),
			})
			return m
		}
	}
	return failed
}

func (r *Router) publish(t events.EventType, payload map[string]interface{}) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.NewEvent(t, "router", "all", events.PriorityNormal, payload))
}
