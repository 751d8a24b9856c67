package research

import (
	"sort"
	"strings"
)

type phaseSpec struct {
	name        string
	description string
	priority    float64
	// floor is the minimum share of the total budget.
	floor     float64
	maxTokens int
}

var weightedPhases = []phaseSpec{
	{OpBasicInfo, "Specifications, price and positioning", 0.8, 0.10, 800},
	{OpGapAnalysis, "Find what the review leaves out", 1.0, 0.15, 1200},
	{OpDeepDive, "Detailed performance and durability", 0.7, 0.10, 1500},
	{OpUserExperiences, "Long-term owner experiences", 0.6, 0.05, 1200},
	{OpAlternatives, "Competing products", 0.4, 0.05, 1000},
}

var categoryBoosts = map[string]map[string]float64{
	"electronics": {OpDeepDive: 1.5, OpAlternatives: 1.2},
	"kitchen":     {OpUserExperiences: 1.3},
	"outdoor":     {OpDeepDive: 1.3, OpUserExperiences: 1.2},
	"beauty":      {OpUserExperiences: 1.5, OpDeepDive: 0.8},
	"clothing":    {OpUserExperiences: 1.4, OpAlternatives: 0.8},
	"toys":        {OpUserExperiences: 1.3, OpDeepDive: 0.8},
}

var importanceBoosts = map[Importance]map[string]float64{
	ImportanceLow:  {OpBasicInfo: 1.2, OpDeepDive: 0.7, OpAlternatives: 0.7},
	ImportanceHigh: {OpDeepDive: 1.3, OpUserExperiences: 1.2, OpAlternatives: 1.2},
}

// PriorityWeighted gives each research phase a floor plus a share of the
// rest proportional to its adjusted priority.
type PriorityWeighted struct{}

var _ Planner = PriorityWeighted{}

// Plan builds the five-phase plan. At low importance only the three
// highest-priority phases keep an allocation; the rest is folded into the
// top phase so the total is preserved.
func (PriorityWeighted) Plan(remaining float64, category string, importance Importance) Plan {
	plan := Plan{Strategy: StrategyWeighted, Total: remaining}
	if remaining <= 0 {
		return plan
	}

	boosts := categoryBoosts[strings.ToLower(category)]
	tier := importanceBoosts[importance]

	ops := make([]Operation, len(weightedPhases))
	floorSum, prioritySum := 0.0, 0.0
	for i, p := range weightedPhases {
		priority := p.priority
		if b, ok := boosts[p.name]; ok {
			priority *= b
		}
		if b, ok := tier[p.name]; ok {
			priority *= b
		}
		ops[i] = Operation{
			Name:        p.name,
			Description: p.description,
			Priority:    priority,
			MaxTokens:   p.maxTokens,
			Template:    p.name,
		}
		floorSum += p.floor
		prioritySum += priority
	}

	pool := remaining * (1 - floorSum)
	for i, p := range weightedPhases {
		ops[i].Allocation = remaining*p.floor + pool*ops[i].Priority/prioritySum
	}

	if importance == ImportanceLow {
		foldIntoTop(ops, 3)
	}

	plan.Operations = ops
	return plan
}

// foldIntoTop zeroes every operation outside the top keep by priority and
// adds the freed allocation to the highest-priority operation.
func foldIntoTop(ops []Operation, keep int) {
	if len(ops) <= keep {
		return
	}
	idx := make([]int, len(ops))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return ops[idx[a]].Priority > ops[idx[b]].Priority
	})

	freed := 0.0
	for _, i := range idx[keep:] {
		freed += ops[i].Allocation
		ops[i].Allocation = 0
	}
	ops[idx[0]].Allocation += freed
}
