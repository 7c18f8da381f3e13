// Package goap implements Goal-Oriented Action Planning: A* search over
// symbolic world states returning the cheapest action sequence that
// satisfies a goal's conditions (spec.md §4.3). Grounded on
// internal/supervisor/planner.go's task-analysis-to-plan shape (the teacher
// generates a heuristic deployment strategy, not a search); the A* search
// itself and the live/persisted plan split are new, required by the spec.
package goap

import (
	"container/heap"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/agentic-qe/kernel/internal/kerrors"
	"github.com/agentic-qe/kernel/internal/memory"
)

// WorldState is a symbolic state: arbitrary key -> typed value.
type WorldState map[string]interface{}

// clone returns a shallow copy of s.
func (s WorldState) clone() WorldState {
	out := make(WorldState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// satisfies reports whether s contains every key/value pair in conditions.
func (s WorldState) satisfies(conditions map[string]interface{}) bool {
	for k, v := range conditions {
		if sv, ok := s[k]; !ok || sv != v {
			return false
		}
	}
	return true
}

// key returns a canonical serialisation of s, used as the A* node identity.
// encoding/json marshals map[string]interface{} with keys in sorted order,
// which is exactly the canonical form the search needs.
func (s WorldState) key() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("canonicalize world state: %w", err)
	}
	return string(b), nil
}

// Action is the live, executable form of a goap_actions row. Execute is an
// optional closure bound at registration time; a plan restored from disk
// carries only action ids and must be re-bound against a Planner's
// registered actions before it can run.
type Action struct {
	ID            string
	Preconditions map[string]interface{}
	Effects       map[string]interface{}
	Cost          int
	AgentType     string
	Execute       func(WorldState) (WorldState, error)
}

func (a *Action) applicable(s WorldState) bool {
	return s.satisfies(a.Preconditions)
}

func (a *Action) apply(s WorldState) WorldState {
	next := s.clone()
	for k, v := range a.Effects {
		next[k] = v
	}
	return next
}

// Plan is the live form of a computed action sequence, with actions bound.
type Plan struct {
	ID        string
	GoalID    string
	Actions   []*Action
	TotalCost int
}

// Serializable returns the disk-safe form: action ids only.
func (p *Plan) Serializable() *memory.Plan {
	ids := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		ids[i] = a.ID
	}
	return &memory.Plan{ID: p.ID, GoalID: p.GoalID, Sequence: ids, TotalCost: p.TotalCost}
}

// Planner registers goals and actions and computes plans between them.
type Planner struct {
	db      *memory.DB
	actions map[string]*Action
}

// New creates a Planner backed by db for goal/action/plan persistence.
func New(db *memory.DB) *Planner {
	return &Planner{db: db, actions: make(map[string]*Action)}
}

// RegisterAction persists an action's declarative shape and keeps its live
// Execute binding (if any) in the in-process registry.
func (p *Planner) RegisterAction(a *Action) error {
	if err := p.db.PutAction(&memory.Action{
		ID:            a.ID,
		Preconditions: a.Preconditions,
		Effects:       a.Effects,
		Cost:          a.Cost,
		AgentType:     a.AgentType,
	}); err != nil {
		return err
	}
	p.actions[a.ID] = a
	return nil
}

// RegisterGoal persists a goal.
func (p *Planner) RegisterGoal(g *memory.Goal) error {
	return p.db.PutGoal(g)
}

// searchNode is one entry in the A* open list.
type searchNode struct {
	state     WorldState
	g         int
	f         int
	seq       int // insertion order, used to break ties on equal f
	actions   []*Action
	stateHash string
}

type openList []*searchNode

func (o openList) Len() int { return len(o) }
func (o openList) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	return o[i].seq < o[j].seq
}
func (o openList) Swap(i, j int)      { o[i], o[j] = o[j], o[i] }
func (o *openList) Push(x interface{}) { *o = append(*o, x.(*searchNode)) }
func (o *openList) Pop() interface{} {
	old := *o
	n := len(old)
	item := old[n-1]
	*o = old[:n-1]
	return item
}

func heuristic(s WorldState, goal map[string]interface{}) int {
	unsatisfied := 0
	for k, v := range goal {
		if sv, ok := s[k]; !ok || sv != v {
			unsatisfied++
		}
	}
	return unsatisfied
}

// Plan runs A* from start to a state satisfying goal's conditions, expanding
// the lowest f = g + h node and breaking ties by insertion order (spec.md
// §4.3). It returns the cheapest action sequence, or a PlanFailure error if
// no sequence of the registered actions reaches the goal.
func (p *Planner) Plan(goalID string, start WorldState) (*Plan, error) {
	goal, err := p.db.GetGoal(goalID)
	if err != nil {
		return nil, err
	}

	actions := make([]*Action, 0, len(p.actions))
	for _, a := range p.actions {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })

	startKey, err := start.key()
	if err != nil {
		return nil, err
	}

	var seqCounter int
	open := &openList{}
	heap.Init(open)
	heap.Push(open, &searchNode{
		state:     start,
		g:         0,
		f:         heuristic(start, goal.Conditions),
		seq:       seqCounter,
		stateHash: startKey,
	})

	bestG := map[string]int{startKey: 0}

	for open.Len() > 0 {
		node := heap.Pop(open).(*searchNode)

		if node.state.satisfies(goal.Conditions) {
			return &Plan{
				ID:        "plan:" + uuid.New().String(),
				GoalID:    goalID,
				Actions:   node.actions,
				TotalCost: node.g,
			}, nil
		}

		if g, ok := bestG[node.stateHash]; ok && g < node.g {
			continue
		}

		for _, action := range actions {
			if !action.applicable(node.state) {
				continue
			}
			next := action.apply(node.state)
			nextKey, err := next.key()
			if err != nil {
				return nil, err
			}
			g := node.g + action.Cost
			if existing, ok := bestG[nextKey]; ok && existing <= g {
				continue
			}
			bestG[nextKey] = g

			nextActions := make([]*Action, len(node.actions)+1)
			copy(nextActions, node.actions)
			nextActions[len(node.actions)] = action

			seqCounter++
			heap.Push(open, &searchNode{
				state:     next,
				g:         g,
				f:         g + heuristic(next, goal.Conditions),
				seq:       seqCounter,
				actions:   nextActions,
				stateHash: nextKey,
			})
		}
	}

	return nil, kerrors.PlanFailure("goap.plan", "no action sequence satisfies goal %q from the given state", goalID)
}

// RestorePlan re-binds a persisted plan's action ids against this Planner's
// currently registered actions. An id with no registered action fails with
// UnknownAction.
func (p *Planner) RestorePlan(serial *memory.Plan) (*Plan, error) {
	actions := make([]*Action, len(serial.Sequence))
	for i, id := range serial.Sequence {
		a, ok := p.actions[id]
		if !ok {
			return nil, fmt.Errorf("goap.restorePlan: action %q is not registered: %w", id, kerrors.ErrUnknownAction)
		}
		actions[i] = a
	}
	return &Plan{ID: serial.ID, GoalID: serial.GoalID, Actions: actions, TotalCost: serial.TotalCost}, nil
}

// Execute runs a plan's actions in order against start, verifying
// preconditions before each step. A precondition violation transitions the
// plan to failed and abandons the remainder; each effect is folded into the
// world state on success (spec.md §4.3).
func (p *Planner) Execute(plan *Plan, start WorldState) (WorldState, error) {
	state := start.clone()
	for i, action := range plan.Actions {
		if !action.applicable(state) {
			return state, kerrors.PlanFailure("goap.execute", "plan %q step %d (%s): preconditions not met", plan.ID, i, action.ID)
		}
		if action.Execute != nil {
			next, err := action.Execute(state)
			if err != nil {
				return state, kerrors.PlanFailure("goap.execute", "plan %q step %d (%s): %v", plan.ID, i, action.ID, err)
			}
			state = next
		} else {
			state = action.apply(state)
		}
	}
	return state, nil
}
