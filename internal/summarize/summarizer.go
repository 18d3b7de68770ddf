// Package summarize turns normalized issues into structured summaries, one
// generation call per issue, with a per-issue cache.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/internal/cache"
	"github.com/thebtf/ideaforge/internal/llm"
	"github.com/thebtf/ideaforge/internal/persona"
	"github.com/thebtf/ideaforge/internal/progress"
	"github.com/thebtf/ideaforge/internal/retry"
	"github.com/thebtf/ideaforge/internal/telemetry"
	"github.com/thebtf/ideaforge/pkg/models"
)

// Stage is the pipeline stage name used in errors and progress events.
const Stage = "summarize"

// DefaultRetry is the retry policy used when Options.Retry has no attempts set.
var DefaultRetry = retry.Policy{
	Name:        Stage,
	MaxAttempts: 3,
	Backoff:     retry.Exponential(2*time.Second, 30*time.Second),
}

// CacheKey returns the cache key of the summary of issue id.
func CacheKey(id int64) string {
	return fmt.Sprintf("summary_%d", id)
}

// Options configures a Summarizer. Generator and Persona.SystemPrompt are required.
type Options struct {
	Generator llm.Generator
	// Cache stores summaries by CacheKey. Nil disables caching.
	Cache     cache.Store
	Reporter  progress.Reporter
	Telemetry *telemetry.Instruments
	Logger    *zerolog.Logger
	Persona   persona.Persona
	// Model overrides Persona.Model when set.
	Model     string
	Retry     retry.Policy
	MaxTokens int
	SkipNoise bool
}

// Stats counts what happened to each input issue.
type Stats struct {
	FailedIDs []int64 `json:"failed_ids,omitempty"`
	Processed int     `json:"processed"`
	Cached    int     `json:"cached"`
	Generated int     `json:"generated"`
	Skipped   int     `json:"skipped"`
	Failed    int     `json:"failed"`
}

// Summarizer issues one generation request per issue, strictly one at a time.
type Summarizer struct {
	gen       llm.Generator
	store     cache.Store
	reporter  progress.Reporter
	metrics   *telemetry.Instruments
	prompts   *PromptBuilder
	logger    zerolog.Logger
	persona   persona.Persona
	model     string
	policy    retry.Policy
	skipNoise bool
}

// New validates opts and creates a Summarizer.
func New(opts Options) (*Summarizer, error) {
	if opts.Generator == nil {
		return nil, errors.New("summarize: generator is required")
	}
	if opts.Persona.SystemPrompt == "" {
		return nil, &apperr.ConfigurationError{Field: "persona.summarizer", Message: "system prompt is empty"}
	}
	model := opts.Model
	if model == "" {
		model = opts.Persona.Model
	}
	if model == "" {
		return nil, &apperr.ConfigurationError{Field: "models.summarizer", Message: "no model configured"}
	}

	prompts, err := NewPromptBuilder(opts.MaxTokens)
	if err != nil {
		return nil, err
	}

	policy := opts.Retry
	if policy.MaxAttempts == 0 {
		policy = DefaultRetry
	}
	if policy.Name == "" {
		policy.Name = Stage
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Summarizer{
		gen:       opts.Generator,
		store:     opts.Cache,
		reporter:  progress.OrNop(opts.Reporter),
		metrics:   opts.Telemetry,
		prompts:   prompts,
		logger:    logger.With().Str("stage", Stage).Logger(),
		persona:   opts.Persona,
		model:     model,
		policy:    policy,
		skipNoise: opts.SkipNoise,
	}, nil
}

// Summarize returns the summary of one issue. A cached summary is returned unless
// force is set. Rejected replies are retried under the policy; the last error is
// returned when the attempt budget runs out.
func (s *Summarizer) Summarize(ctx context.Context, issue models.NormalizedIssue, force bool) (models.SummarizedIssue, bool, error) {
	if !force {
		if cached, ok := s.loadCached(ctx, issue.ID); ok {
			s.metrics.CacheHit(ctx)
			return cached, true, nil
		}
	}

	req := llm.Request{
		Model:       s.model,
		System:      s.persona.SystemPrompt,
		Prompt:      s.prompts.Build(issue),
		Temperature: s.persona.Temperature,
		JSON:        true,
	}

	res := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) (models.SummarizedIssue, error) {
		s.metrics.GenerationCall(ctx, persona.Summarizer)
		text, err := s.gen.Generate(ctx, req)
		if err != nil {
			return models.SummarizedIssue{}, err
		}
		summary, failure := ParseReply(text, issue).Unpack()
		if failure != nil {
			s.metrics.ReplyFailure(ctx, persona.Summarizer, string(failure.Reason))
			s.logger.Debug().
				Int64("issue_id", issue.ID).
				Int("attempt", attempt).
				Str("failure", failure.String()).
				Msg("Summary reply rejected")
			return models.SummarizedIssue{}, failure.Err()
		}
		return summary, nil
	})
	if !res.OK() {
		return models.SummarizedIssue{}, false, res.Err
	}

	if s.store != nil {
		if err := cache.PutJSON(ctx, s.store, CacheKey(issue.ID), res.Value); err != nil {
			s.logger.Warn().Err(err).Int64("issue_id", issue.ID).Msg("Failed to cache summary")
		}
	}
	return res.Value, false, nil
}

func (s *Summarizer) loadCached(ctx context.Context, id int64) (models.SummarizedIssue, bool) {
	if s.store == nil {
		return models.SummarizedIssue{}, false
	}
	var cached models.SummarizedIssue
	ok, err := cache.GetJSON(ctx, s.store, CacheKey(id), &cached)
	if err != nil {
		s.logger.Warn().Err(err).Int64("issue_id", id).Msg("Ignoring unreadable cached summary")
		return models.SummarizedIssue{}, false
	}
	return cached, ok
}

// SummarizeAll summarizes issues in input order. Issues whose replies stay invalid
// after all retries are logged and left out. Any other failure aborts the stage with
// an apperr.StageError naming the issue.
func (s *Summarizer) SummarizeAll(ctx context.Context, issues []models.NormalizedIssue, force bool) ([]models.SummarizedIssue, Stats, error) {
	var stats Stats
	out := make([]models.SummarizedIssue, 0, len(issues))
	total := len(issues)

	for i, issue := range issues {
		item := fmt.Sprintf("issue #%d (id %d)", issue.Number, issue.ID)
		event := progress.Event{Stage: Stage, Item: item, Index: i + 1, Total: total}

		if s.skipNoise && issue.IsNoise {
			stats.Skipped++
			event.Kind = progress.ItemSkipped
			event.Message = issue.NoiseReason
			s.reporter.Report(event)
			continue
		}

		stats.Processed++
		summary, cached, err := s.Summarize(ctx, issue, force)
		if err != nil {
			if apperr.IsSchema(err) {
				stats.Failed++
				stats.FailedIDs = append(stats.FailedIDs, issue.ID)
				s.logger.Error().Err(err).Int64("issue_id", issue.ID).Int("number", issue.Number).Msg("Summarization failed, issue excluded")
				event.Kind = progress.ItemFailed
				event.Message = err.Error()
				s.reporter.Report(event)
				continue
			}
			return nil, stats, &apperr.StageError{Stage: Stage, Item: item, Err: err}
		}

		if cached {
			stats.Cached++
			event.Kind = progress.ItemCached
		} else {
			stats.Generated++
			event.Kind = progress.ItemDone
		}
		s.reporter.Report(event)
		out = append(out, summary)
	}

	s.logger.Info().
		Int("summaries", len(out)).
		Int("cached", stats.Cached).
		Int("generated", stats.Generated).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Summarization complete")

	return out, stats, nil
}
