// Package rank orders idea clusters by a weighted composite score.
package rank

import (
	"fmt"
	"math"
	"sort"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/pkg/models"
)

// Stage is the pipeline stage name used in errors and progress events.
const Stage = "rank"

// WeightTolerance is the allowed distance of the weight sum from 1.0.
const WeightTolerance = 0.01

// ValidateWeights rejects negative weights and weights that do not sum to 1.0
// within WeightTolerance.
func ValidateWeights(w models.Weights) error {
	for name, v := range map[string]float64{
		"novelty":      w.Novelty,
		"feasibility":  w.Feasibility,
		"desirability": w.Desirability,
		"attention":    w.Attention,
	} {
		if v < 0 || math.IsNaN(v) {
			return &apperr.ConfigurationError{Field: "weights." + name, Message: fmt.Sprintf("must be non-negative, got %g", v)}
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > WeightTolerance {
		return &apperr.ConfigurationError{Field: "weights", Message: fmt.Sprintf("must sum to 1.0 (±%.2f), got %.4f", WeightTolerance, sum)}
	}
	return nil
}

// Score returns the composite score of m under w, rounded to four decimals so that
// equal inputs always compare equal.
func Score(m models.Metrics, w models.Weights) float64 {
	s := m.Novelty*w.Novelty + m.Feasibility*w.Feasibility + m.Desirability*w.Desirability + m.Attention*w.Attention
	return math.Round(s*1e4) / 1e4
}

// Ranker orders clusters with a fixed weight configuration.
type Ranker struct {
	weights models.Weights
}

// New validates weights and creates a Ranker.
func New(weights models.Weights) (*Ranker, error) {
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	return &Ranker{weights: weights}, nil
}

// Weights returns the configured weights.
func (r *Ranker) Weights() models.Weights {
	return r.weights
}

// Rank scores clusters and returns them in total order: composite score, then
// desirability, then feasibility, all descending, then representative title
// ascending by byte order, then cluster id ascending. Ranks are 1-based.
func (r *Ranker) Rank(clusters []models.IdeaCluster) []models.RankedIdea {
	ideas := make([]models.RankedIdea, 0, len(clusters))
	for _, c := range clusters {
		ideas = append(ideas, models.RankedIdea{
			IdeaCluster:    c,
			CompositeScore: Score(c.Metrics, r.weights),
		})
	}

	sort.SliceStable(ideas, func(i, j int) bool {
		return less(ideas[i], ideas[j])
	})
	for i := range ideas {
		ideas[i].Rank = i + 1
	}
	return ideas
}

func less(a, b models.RankedIdea) bool {
	if a.CompositeScore != b.CompositeScore {
		return a.CompositeScore > b.CompositeScore
	}
	if a.Desirability != b.Desirability {
		return a.Desirability > b.Desirability
	}
	if a.Feasibility != b.Feasibility {
		return a.Feasibility > b.Feasibility
	}
	if a.RepresentativeTitle != b.RepresentativeTitle {
		return a.RepresentativeTitle < b.RepresentativeTitle
	}
	return a.ClusterID < b.ClusterID
}
