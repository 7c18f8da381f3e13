// Package routing selects the cheapest model whose capability set covers a
// task's estimated complexity, tracks per-model spend, and persists a cost
// dashboard snapshot (spec.md §4.5). Grounded on internal/agents/config.go's
// declarative agent-type/model table shape and internal/metrics/collector.go's
// bounded-history accumulator.
package routing

import "strings"

// Complexity is the kernel's coarse task-difficulty classification.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
	ComplexityCritical Complexity = "critical"
)

// downgrade steps complexity down one rung, floor at simple.
func (c Complexity) downgrade() Complexity {
	switch c {
	case ComplexityCritical:
		return ComplexityComplex
	case ComplexityComplex:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

// Task is the subset of the external agent task contract (spec.md §6) that
// routing needs to classify and route.
type Task struct {
	ID          string
	Type        string
	Description string
	Payload     map[string]interface{}
}

// Keyword buckets for the complexity classifier. Order matters: the first
// matching bucket, most severe first, wins.
var (
	criticalKeywords = []string{"production", "security", "compliance", "breaking change", "critical", "outage"}
	complexKeywords  = []string{"integration", "concurrency", "distributed", "migration", "architecture", "race condition"}
	moderateKeywords = []string{"refactor", "optimi", "edge case", "regression", "performance"}
)

// ClassifyComplexity infers a complexity rating from a task's type and
// description using keyword/context rules (spec.md §4.5). Unmatched tasks
// default to simple.
func ClassifyComplexity(task Task) Complexity {
	text := strings.ToLower(task.Type + " " + task.Description)
	switch {
	case containsAny(text, criticalKeywords):
		return ComplexityCritical
	case containsAny(text, complexKeywords):
		return ComplexityComplex
	case containsAny(text, moderateKeywords):
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
