package normalize

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/pkg/models"
)

type NormalizerSuite struct {
	suite.Suite
	n    *Normalizer
	base time.Time
}

func (s *NormalizerSuite) SetupTest() {
	n, err := New(DefaultOptions())
	s.Require().NoError(err)
	s.n = n
	s.base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestNormalizerSuite(t *testing.T) {
	suite.Run(t, new(NormalizerSuite))
}

func (s *NormalizerSuite) genuine() models.RawIssue {
	return models.RawIssue{
		ID:        101,
		Number:    7,
		Title:     "Add dark mode to settings",
		Body:      "## Motivation\n\nPlease add a **dark mode** toggle to the [settings page](http://x/settings).",
		State:     "open",
		URL:       "https://github.com/acme/app/issues/7",
		User:      &models.User{Login: "alice"},
		Labels:    []models.Label{{Name: "enhancement"}},
		Reactions: models.RawReactions{PlusOne: 4, Heart: 1},
		CreatedAt: s.base,
		UpdatedAt: s.base.Add(time.Hour),
	}
}

func (s *NormalizerSuite) TestGenuineIssue() {
	issue, err := s.n.Normalize(s.genuine())
	s.Require().NoError(err)

	s.Equal(int64(101), issue.ID)
	s.Equal(7, issue.Number)
	s.Equal("Motivation\n\nPlease add a dark mode toggle to the settings page.", issue.Body)
	s.Equal([]string{"enhancement"}, issue.Labels)
	s.Equal(models.Reactions{"+1": 4, "heart": 1}, issue.Reactions)
	s.False(issue.IsNoise)
	s.Empty(issue.NoiseReason)
	s.False(issue.Truncated)
}

func (s *NormalizerSuite) TestCommentsSortedAndDeduplicated() {
	raw := s.genuine()
	raw.Comments = []models.RawComment{
		{ID: 2, Body: "Same thing", User: &models.User{Login: "bob"}, CreatedAt: s.base.Add(2 * time.Hour)},
		{ID: 1, Body: "**same thing**", CreatedAt: s.base.Add(time.Hour)},
		{ID: 3, Body: "<!-- empty -->", CreatedAt: s.base.Add(3 * time.Hour)},
		{ID: 4, Body: "Another view", User: &models.User{Login: "carol"}, Reactions: models.RawReactions{Rocket: 2}, CreatedAt: s.base.Add(4 * time.Hour)},
	}

	issue, err := s.n.Normalize(raw)
	s.Require().NoError(err)

	s.Require().Len(issue.Comments, 2)
	s.Equal(int64(1), issue.Comments[0].ID)
	s.Equal("same thing", issue.Comments[0].Body)
	s.Nil(issue.Comments[0].Author)
	s.Equal("deleted-user", issue.Comments[0].AuthorOr("deleted-user"))
	s.Equal(int64(4), issue.Comments[1].ID)
	s.Equal("carol", issue.Comments[1].AuthorOr("deleted-user"))
	s.Equal(models.Reactions{"rocket": 2}, issue.Comments[1].Reactions)
}

func (s *NormalizerSuite) TestNoiseRules() {
	tests := []struct {
		name   string
		mutate func(*models.RawIssue)
		reason string
	}{
		{
			name:   "spam label",
			mutate: func(r *models.RawIssue) { r.Labels = []models.Label{{Name: "bug"}, {Name: "Duplicate"}} },
			reason: "spam label: Duplicate",
		},
		{
			name:   "bot author",
			mutate: func(r *models.RawIssue) { r.User = &models.User{Login: "dependabot[bot]"} },
			reason: "bot author: dependabot[bot]",
		},
		{
			name:   "single word title",
			mutate: func(r *models.RawIssue) { r.Title = "Crash" },
			reason: "single-word title",
		},
		{
			name:   "short body",
			mutate: func(r *models.RawIssue) { r.Body = "`tiny`" },
			reason: "empty or very short body",
		},
		{
			name:   "support label",
			mutate: func(r *models.RawIssue) { r.Labels = []models.Label{{Name: "question"}} },
			reason: "support: label question",
		},
		{
			name:   "interrogative title",
			mutate: func(r *models.RawIssue) { r.Title = "How can I enable dark mode" },
			reason: "support: interrogative title",
		},
		{
			name:   "question mark title",
			mutate: func(r *models.RawIssue) { r.Title = "Dark mode in settings?" },
			reason: "support: question title",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			raw := s.genuine()
			tt.mutate(&raw)

			issue, err := s.n.Normalize(raw)
			s.Require().NoError(err)
			s.True(issue.IsNoise)
			s.Equal(tt.reason, issue.NoiseReason)
		})
	}
}

func (s *NormalizerSuite) TestSpamTitle() {
	rules := DefaultNoiseRules()
	long := "a body that is long enough"
	s.Equal("single-word title", rules.classify(noiseInput{Title: "hello   ", Body: long}))

	rules.SpamTitles = []*regexp.Regexp{regexp.MustCompile(`^test plan\b`)}
	s.Equal("spam title: Test plan for release", rules.classify(noiseInput{Title: "Test plan for release", Body: long}))
	s.Equal("", rules.classify(noiseInput{Title: "Release plan", Body: long}))
}

func (s *NormalizerSuite) TestRuleToggles() {
	opts := DefaultOptions()
	opts.Support.Enabled = false
	n, err := New(opts)
	s.Require().NoError(err)

	raw := s.genuine()
	raw.Title = "Why is the sidebar slow?"
	issue, err := n.Normalize(raw)
	s.Require().NoError(err)
	s.False(issue.IsNoise)

	opts.Noise.Enabled = false
	n, err = New(opts)
	s.Require().NoError(err)

	raw.Labels = []models.Label{{Name: "spam"}}
	issue, err = n.Normalize(raw)
	s.Require().NoError(err)
	s.False(issue.IsNoise)
}

func (s *NormalizerSuite) TestTruncatesLongIssues() {
	opts := DefaultOptions()
	opts.Budget = 200
	n, err := New(opts)
	s.Require().NoError(err)

	raw := s.genuine()
	raw.Body = strings.Repeat("word ", 100)
	issue, err := n.Normalize(raw)
	s.Require().NoError(err)

	s.True(issue.Truncated)
	s.Equal(499, issue.OriginalLength)
	s.True(strings.HasSuffix(issue.Body, TruncationMarker))
}

func (s *NormalizerSuite) TestNormalizeAllKeepsOrderAndNoise() {
	noisy := s.genuine()
	noisy.ID = 102
	noisy.Title = "hi"

	out, err := s.n.NormalizeAll([]models.RawIssue{s.genuine(), noisy})
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal(int64(101), out[0].ID)
	s.Equal(int64(102), out[1].ID)
	s.True(out[1].IsNoise)
}

func (s *NormalizerSuite) TestNewRejectsBudget() {
	opts := DefaultOptions()
	opts.Budget = 10
	_, err := New(opts)

	var cfgErr *apperr.ConfigurationError
	s.True(errors.As(err, &cfgErr))
}
