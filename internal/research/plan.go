// Package research plans and executes budget-capped web research for a
// product before the review is drafted.
package research

import (
	"fmt"
	"sort"
	"strings"
)

// Strategy selects a planner.
type Strategy string

const (
	StrategyFixed    Strategy = "fixed"
	StrategyWeighted Strategy = "weighted"
)

// Importance shifts a weighted plan toward breadth (low) or depth (high).
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Operation names shared by both planners.
const (
	OpBasicInfo       = "basic_info"
	OpGapAnalysis     = "gap_analysis"
	OpDeepDive        = "deep_dive"
	OpUserExperiences = "user_experiences"
	OpAlternatives    = "alternatives"
)

// Operation is one unit of research work.
type Operation struct {
	Name        string
	Description string
	Priority    float64
	// Allocation is the share of the plan total in USD.
	Allocation float64
	MaxTokens  int
	// Template names the research prompt; Topic is passed to it.
	Template string
	Topic    string
}

// Plan is a prioritized, budget-partitioned set of operations. The sum of
// allocations never exceeds the remaining budget the plan was built from.
type Plan struct {
	Strategy   Strategy
	Total      float64
	Operations []Operation
}

// Allocated returns the sum of all operation allocations.
func (p Plan) Allocated() float64 {
	sum := 0.0
	for _, op := range p.Operations {
		sum += op.Allocation
	}
	return sum
}

// Ordered returns the operations with non-zero allocation, highest priority first.
func (p Plan) Ordered() []Operation {
	ops := make([]Operation, 0, len(p.Operations))
	for _, op := range p.Operations {
		if op.Allocation > 0 {
			ops = append(ops, op)
		}
	}
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].Priority > ops[j].Priority
	})
	return ops
}

// Find returns the operation with the given name.
func (p Plan) Find(name string) (Operation, bool) {
	for _, op := range p.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Planner builds a plan from the remaining budget.
type Planner interface {
	Plan(remaining float64, category string, importance Importance) Plan
}

// NewPlanner returns the planner for strategy.
func NewPlanner(strategy Strategy) (Planner, error) {
	switch strategy {
	case StrategyFixed:
		return FixedRatio{}, nil
	case StrategyWeighted, "":
		return PriorityWeighted{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFixed:
		return StrategyFixed, nil
	case StrategyWeighted, "":
		return StrategyWeighted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// ParseImportance validates an importance tier. Empty means medium.
func ParseImportance(s string) (Importance, error) {
	switch Importance(strings.ToLower(strings.TrimSpace(s))) {
	case ImportanceLow:
		return ImportanceLow, nil
	case ImportanceMedium, "":
		return ImportanceMedium, nil
	case ImportanceHigh:
		return ImportanceHigh, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownImportance, s)
	}
}
