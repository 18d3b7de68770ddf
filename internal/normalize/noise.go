package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// NoiseRules configures the spam and low-signal classifier.
type NoiseRules struct {
	SpamLabels    []string
	BotPatterns   []string
	SpamTitles    []*regexp.Regexp
	MinBodyLength int
	Enabled       bool
}

// SupportRules configures the support/question classifier. It runs after NoiseRules
// and can be toggled independently.
type SupportRules struct {
	Labels         []string
	Interrogatives []string
	Enabled        bool
}

// DefaultNoiseRules returns the built-in spam and low-signal rules.
func DefaultNoiseRules() NoiseRules {
	return NoiseRules{
		Enabled:       true,
		SpamLabels:    []string{"spam", "invalid", "wontfix", "duplicate"},
		BotPatterns:   []string{"[bot]", "-bot", "bot-", "dependabot", "renovate"},
		MinBodyLength: 10,
		SpamTitles: []*regexp.Regexp{
			regexp.MustCompile(`^test\s*$`),
			regexp.MustCompile(`^testing\s*$`),
			regexp.MustCompile(`^hello\s*$`),
			regexp.MustCompile(`^hi\s*$`),
			regexp.MustCompile(`^hey\s*$`),
		},
	}
}

// DefaultSupportRules returns the built-in support/question rules.
func DefaultSupportRules() SupportRules {
	return SupportRules{
		Enabled: true,
		Labels:  []string{"question", "support", "help wanted", "how-to", "usage"},
		Interrogatives: []string{
			"how", "what", "why", "where", "when", "which", "who",
			"can", "could", "is", "are", "does", "do", "should",
		},
	}
}

// noiseInput is the subset of an issue the classifiers look at.
type noiseInput struct {
	Title  string
	Body   string // cleaned body, before truncation
	Author string
	Labels []string
}

// classify returns the reason of the first matching rule, or "" when the issue looks genuine.
func (r NoiseRules) classify(in noiseInput) string {
	if !r.Enabled {
		return ""
	}

	var spam []string
	for _, label := range in.Labels {
		if containsFold(r.SpamLabels, label) {
			spam = append(spam, label)
		}
	}
	if len(spam) > 0 {
		return fmt.Sprintf("spam label: %s", strings.Join(spam, ", "))
	}

	if in.Author != "" {
		author := strings.ToLower(in.Author)
		for _, pattern := range r.BotPatterns {
			if strings.Contains(author, pattern) {
				return "bot author: " + in.Author
			}
		}
	}

	if len(strings.Fields(in.Title)) <= 1 {
		return "single-word title"
	}

	if utf8.RuneCountInString(strings.TrimSpace(in.Body)) < r.MinBodyLength {
		return "empty or very short body"
	}

	title := strings.ToLower(strings.TrimSpace(in.Title))
	for _, re := range r.SpamTitles {
		if re.MatchString(title) {
			return "spam title: " + in.Title
		}
	}
	return ""
}

// classify returns a "support:" reason when the issue reads as a support request.
func (r SupportRules) classify(in noiseInput) string {
	if !r.Enabled {
		return ""
	}

	for _, label := range in.Labels {
		if containsFold(r.Labels, label) {
			return "support: label " + label
		}
	}

	title := strings.TrimSpace(in.Title)
	if strings.HasSuffix(title, "?") {
		return "support: question title"
	}
	words := strings.Fields(strings.ToLower(title))
	if len(words) > 0 {
		first := strings.Trim(words[0], ",.:;!")
		for _, w := range r.Interrogatives {
			if first == w {
				return "support: interrogative title"
			}
		}
	}
	return ""
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
