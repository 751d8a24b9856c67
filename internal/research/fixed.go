package research

import "strings"

// Budget split of the fixed-ratio planner.
const (
	GapAnalysisShare     = 0.35
	ProductResearchShare = 0.65
)

type topic struct {
	name   string
	focus  string
	weight float64
}

var defaultTopics = []topic{
	{"specifications", "specifications, price and what is in the box", 3},
	{"reliability", "durability and common failures", 2},
	{"owner_feedback", "long-term owner feedback", 2},
	{"comparisons", "how it compares with direct alternatives", 1},
}

var categoryTopics = map[string][]topic{
	"electronics": {
		{"specifications", "specifications and firmware features", 3},
		{"battery", "battery life and charging in real use", 3},
		{"performance", "benchmarks and measured performance", 2},
		{"reliability", "build quality and failure reports", 2},
		{"comparisons", "competing models at a similar price", 1},
	},
	"kitchen": {
		{"specifications", "capacity, materials and power", 2},
		{"cleaning", "ease of cleaning and maintenance", 2},
		{"safety", "food safety and material certifications", 1.5},
		{"owner_feedback", "long-term owner feedback", 2},
	},
	"outdoor": {
		{"specifications", "weight, materials and ratings", 2},
		{"durability", "durability in harsh conditions", 3},
		{"weather", "weather resistance testing", 2},
		{"comparisons", "alternatives used by enthusiasts", 1},
	},
	"beauty": {
		{"ingredients", "ingredients and known sensitivities", 3},
		{"results", "reported results over weeks of use", 2},
		{"owner_feedback", "reviews by skin or hair type", 2},
	},
	"clothing": {
		{"sizing", "fit and sizing consistency", 3},
		{"fabric", "fabric quality and care", 2},
		{"durability", "how it holds up after washing", 2},
	},
}

// FixedRatio splits the budget into a constant gap-analysis share and a
// product-research share divided across category topics.
type FixedRatio struct{}

var _ Planner = FixedRatio{}

// Topics returns the topic names used for a category.
func (FixedRatio) Topics(category string) []string {
	ts := topicsFor(category)
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.name
	}
	return names
}

// Plan allocates GapAnalysisShare of remaining to gap analysis and the rest
// to topics in proportion to their normalized weights.
func (FixedRatio) Plan(remaining float64, category string, _ Importance) Plan {
	plan := Plan{Strategy: StrategyFixed, Total: remaining}
	if remaining <= 0 {
		return plan
	}

	plan.Operations = append(plan.Operations, Operation{
		Name:        OpGapAnalysis,
		Description: "Find what the review leaves out",
		Priority:    1,
		Allocation:  remaining * GapAnalysisShare,
		MaxTokens:   1200,
		Template:    OpGapAnalysis,
	})

	topics := topicsFor(category)
	sum := 0.0
	for _, t := range topics {
		sum += t.weight
	}
	productBudget := remaining * ProductResearchShare
	for _, t := range topics {
		w := t.weight / sum
		plan.Operations = append(plan.Operations, Operation{
			Name:        t.name,
			Description: "Research " + t.focus,
			// Topic priorities stay below gap analysis.
			Priority:   w,
			Allocation: productBudget * w,
			MaxTokens:  1000,
			Template:   "topic",
			Topic:      t.focus,
		})
	}
	return plan
}

func topicsFor(category string) []topic {
	if ts, ok := categoryTopics[strings.ToLower(category)]; ok {
		return ts
	}
	return defaultTopics
}
