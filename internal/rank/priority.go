package rank

import "github.com/thebtf/ideaforge/pkg/models"

// Priority labels derived from the composite score.
const (
	PriorityCritical = "Critical"
	PriorityHigh     = "High"
	PriorityMedium   = "Medium"
	PriorityLow      = "Low"
)

// Priority maps a ranked idea to a priority label. Ideas with desirability above 0.9
// and feasibility above 0.7 are critical regardless of their score.
func Priority(idea models.RankedIdea) string {
	switch {
	case idea.CompositeScore > 0.75 || (idea.Desirability > 0.9 && idea.Feasibility > 0.7):
		return PriorityCritical
	case idea.CompositeScore > 0.6:
		return PriorityHigh
	case idea.CompositeScore > 0.45:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
