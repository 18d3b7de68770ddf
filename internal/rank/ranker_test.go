package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/pkg/models"
)

func idea(id, title string, m models.Metrics) models.IdeaCluster {
	return models.IdeaCluster{ClusterID: id, RepresentativeTitle: title, MemberIssueIDs: []int64{1}, Metrics: m}
}

type RankerSuite struct {
	suite.Suite
	ranker *Ranker
}

func (s *RankerSuite) SetupTest() {
	r, err := New(models.DefaultWeights)
	s.Require().NoError(err)
	s.ranker = r
}

func TestRankerSuite(t *testing.T) {
	suite.Run(t, new(RankerSuite))
}

func (s *RankerSuite) TestCompositeScore() {
	m := models.Metrics{Novelty: 0.4, Feasibility: 0.8, Desirability: 0.9, Attention: 0.5}
	// 0.4*0.25 + 0.8*0.25 + 0.9*0.30 + 0.5*0.20
	s.InDelta(0.67, Score(m, models.DefaultWeights), 1e-9)
}

func (s *RankerSuite) TestOrderByScore() {
	ranked := s.ranker.Rank([]models.IdeaCluster{
		idea("a", "Low", models.Metrics{Novelty: 0.1, Feasibility: 0.1, Desirability: 0.1, Attention: 0.1}),
		idea("b", "High", models.Metrics{Novelty: 0.9, Feasibility: 0.9, Desirability: 0.9, Attention: 0.9}),
		idea("c", "Mid", models.Metrics{Novelty: 0.5, Feasibility: 0.5, Desirability: 0.5, Attention: 0.5}),
	})

	s.Require().Len(ranked, 3)
	s.Equal([]string{"High", "Mid", "Low"}, []string{ranked[0].RepresentativeTitle, ranked[1].RepresentativeTitle, ranked[2].RepresentativeTitle})
	s.Equal([]int{1, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank})
}

func (s *RankerSuite) TestTitleBreaksFullTie() {
	// Both score 0.70 with desirability 0.80 and feasibility 0.60.
	w := models.Weights{Novelty: 0.25, Feasibility: 0.25, Desirability: 0.30, Attention: 0.20}
	m := models.Metrics{Novelty: 0.6, Feasibility: 0.6, Desirability: 0.8, Attention: 0.8}
	s.InDelta(0.70, Score(m, w), 1e-9)

	r, err := New(w)
	s.Require().NoError(err)
	ranked := r.Rank([]models.IdeaCluster{idea("ui-001", "Dark mode", m), idea("ui-002", "Accessibility", m)})

	s.Equal("Accessibility", ranked[0].RepresentativeTitle)
	s.Equal("Dark mode", ranked[1].RepresentativeTitle)
}

func (s *RankerSuite) TestTieBreakLevels() {
	w := models.Weights{Novelty: 0.5, Attention: 0.5}
	r, err := New(w)
	s.Require().NoError(err)

	// Equal scores throughout; desirability then feasibility decide.
	ranked := r.Rank([]models.IdeaCluster{
		idea("a", "A", models.Metrics{Novelty: 0.5, Attention: 0.5, Desirability: 0.2, Feasibility: 0.9}),
		idea("b", "B", models.Metrics{Novelty: 0.5, Attention: 0.5, Desirability: 0.8, Feasibility: 0.1}),
		idea("c", "C", models.Metrics{Novelty: 0.5, Attention: 0.5, Desirability: 0.8, Feasibility: 0.3}),
		idea("e", "a", models.Metrics{Novelty: 0.5, Attention: 0.5, Desirability: 0.2, Feasibility: 0.9}),
	})

	var order []string
	for _, x := range ranked {
		order = append(order, x.ClusterID)
	}
	// Uppercase sorts before lowercase in byte order.
	s.Equal([]string{"c", "b", "a", "e"}, order)
}

func (s *RankerSuite) TestDeterministicRegardlessOfInputOrder() {
	m := models.Metrics{Novelty: 0.5, Feasibility: 0.5, Desirability: 0.5, Attention: 0.5}
	in := []models.IdeaCluster{idea("x-2", "Same", m), idea("x-1", "Same", m), idea("x-3", "Other", m)}
	reversed := []models.IdeaCluster{in[2], in[1], in[0]}

	s.Equal(s.ranker.Rank(in), s.ranker.Rank(reversed))
}

func (s *RankerSuite) TestEmpty() {
	s.Empty(s.ranker.Rank(nil))
}

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights models.Weights
		wantErr bool
	}{
		{name: "default", weights: models.Weights{Novelty: 0.25, Feasibility: 0.25, Desirability: 0.30, Attention: 0.20}},
		{name: "sum 0.95", weights: models.Weights{Novelty: 0.25, Feasibility: 0.25, Desirability: 0.25, Attention: 0.20}, wantErr: true},
		{name: "within tolerance", weights: models.Weights{Novelty: 0.25, Feasibility: 0.25, Desirability: 0.30, Attention: 0.205}},
		{name: "sum 1.05", weights: models.Weights{Novelty: 0.3, Feasibility: 0.25, Desirability: 0.30, Attention: 0.20}, wantErr: true},
		{name: "negative", weights: models.Weights{Novelty: -0.1, Feasibility: 0.35, Desirability: 0.55, Attention: 0.20}, wantErr: true},
		{name: "single metric", weights: models.Weights{Desirability: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeights(tt.weights)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.IsConfiguration(err))
		})
	}
}

func TestNewRejectsInvalidWeights(t *testing.T) {
	r, err := New(models.Weights{Novelty: 0.25, Feasibility: 0.25, Desirability: 0.25, Attention: 0.20})
	assert.Nil(t, r)
	assert.True(t, apperr.IsConfiguration(err))
}

func TestPriority(t *testing.T) {
	tests := []struct {
		name     string
		idea     models.RankedIdea
		expected string
	}{
		{name: "high score", idea: models.RankedIdea{CompositeScore: 0.76}, expected: PriorityCritical},
		{
			name: "desirable and feasible",
			idea: models.RankedIdea{
				CompositeScore: 0.5,
				IdeaCluster:    models.IdeaCluster{Metrics: models.Metrics{Desirability: 0.95, Feasibility: 0.75}},
			},
			expected: PriorityCritical,
		},
		{name: "boundary 0.75 is high", idea: models.RankedIdea{CompositeScore: 0.75}, expected: PriorityHigh},
		{name: "medium", idea: models.RankedIdea{CompositeScore: 0.5}, expected: PriorityMedium},
		{name: "boundary 0.45 is low", idea: models.RankedIdea{CompositeScore: 0.45}, expected: PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Priority(tt.idea))
		})
	}
}
