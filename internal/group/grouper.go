// Package group clusters summarized issues into ideas. Summaries are split into
// bounded batches, each batch is clustered by the grouper persona, and the combined
// result is repaired until it is an exact partition of the input.
package group

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/internal/llm"
	"github.com/thebtf/ideaforge/internal/persona"
	"github.com/thebtf/ideaforge/internal/progress"
	"github.com/thebtf/ideaforge/internal/retry"
	"github.com/thebtf/ideaforge/internal/telemetry"
	"github.com/thebtf/ideaforge/pkg/models"
)

// Stage is the pipeline stage name used in errors and progress events.
const Stage = "group"

// DefaultValidationAttempts allows one retry of a batch whose reply is rejected.
const DefaultValidationAttempts = 2

// DefaultRetry retries transport failures of a single grouping request.
var DefaultRetry = retry.Policy{
	Name:        Stage,
	MaxAttempts: 3,
	Backoff:     retry.Exponential(2*time.Second, 30*time.Second),
	Retryable:   apperr.IsTransient,
}

// Options configures a Grouper. Generator and Persona.SystemPrompt are required.
type Options struct {
	Generator llm.Generator
	Reporter  progress.Reporter
	Telemetry *telemetry.Instruments
	Logger    *zerolog.Logger
	Persona   persona.Persona
	// Model overrides Persona.Model when set.
	Model string
	// Retry applies to transport failures of one request.
	Retry  retry.Policy
	Limits Limits
	// ValidationAttempts bounds how often a batch is asked again after a rejected reply.
	ValidationAttempts int
	// Parallelism is the number of batches in flight. Values below 2 process batches
	// one at a time.
	Parallelism int
	SkipNoise   bool
}

// Stats describes one grouping run.
type Stats struct {
	ConflictIDs     []int64 `json:"conflict_ids,omitempty"`
	RepairedIDs     []int64 `json:"repaired_ids,omitempty"`
	Batches         int     `json:"batches"`
	FallbackBatches int     `json:"fallback_batches"`
	Skipped         int     `json:"skipped"`
	Clusters        int     `json:"clusters"`
}

// Grouper turns summaries into a partition of idea clusters.
type Grouper struct {
	gen         llm.Generator
	reporter    progress.Reporter
	metrics     *telemetry.Instruments
	logger      zerolog.Logger
	persona     persona.Persona
	model       string
	transport   retry.Policy
	validation  retry.Policy
	limits      Limits
	parallelism int
	skipNoise   bool
}

// New validates opts and creates a Grouper.
func New(opts Options) (*Grouper, error) {
	if opts.Generator == nil {
		return nil, errors.New("group: generator is required")
	}
	if opts.Persona.SystemPrompt == "" {
		return nil, &apperr.ConfigurationError{Field: "persona.grouper", Message: "system prompt is empty"}
	}
	model := opts.Model
	if model == "" {
		model = opts.Persona.Model
	}
	if model == "" {
		return nil, &apperr.ConfigurationError{Field: "models.grouper", Message: "no model configured"}
	}

	limits := opts.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	transport := opts.Retry
	if transport.MaxAttempts == 0 {
		transport = DefaultRetry
	}
	if transport.Retryable == nil {
		transport.Retryable = apperr.IsTransient
	}
	if transport.Name == "" {
		transport.Name = Stage
	}

	attempts := opts.ValidationAttempts
	if attempts < 1 {
		attempts = DefaultValidationAttempts
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Grouper{
		gen:       opts.Generator,
		reporter:  progress.OrNop(opts.Reporter),
		metrics:   opts.Telemetry,
		logger:    logger.With().Str("stage", Stage).Logger(),
		persona:   opts.Persona,
		model:     model,
		transport: transport,
		validation: retry.Policy{
			Name:        Stage + ".validate",
			MaxAttempts: attempts,
			Retryable:   apperr.IsSchema,
		},
		limits:      limits,
		parallelism: opts.Parallelism,
		skipNoise:   opts.SkipNoise,
	}, nil
}

// batchResult is what one batch contributes before cross-batch post-processing.
type batchResult struct {
	clusters  []models.IdeaCluster
	conflicts []int64
	fallback  bool
}

// Group clusters summaries. The returned clusters partition the grouped summaries
// exactly, have run-wide unique ids and carry member-mean metrics. They are ordered
// by cluster id.
func (g *Grouper) Group(ctx context.Context, summaries []models.SummarizedIssue) ([]models.IdeaCluster, Stats, error) {
	var stats Stats

	input := summaries
	if g.skipNoise {
		input = make([]models.SummarizedIssue, 0, len(summaries))
		for _, s := range summaries {
			if s.NoiseFlag {
				stats.Skipped++
				continue
			}
			input = append(input, s)
		}
	}
	if len(input) == 0 {
		g.logger.Info().Int("skipped", stats.Skipped).Msg("No summaries to group")
		return []models.IdeaCluster{}, stats, nil
	}

	batches, err := Batch(input, g.limits)
	if err != nil {
		return nil, stats, err
	}
	stats.Batches = len(batches)
	g.logger.Info().
		Int("summaries", len(input)).
		Int("batches", len(batches)).
		Int("max_batch_size", g.limits.MaxSize).
		Int("max_batch_chars", g.limits.MaxChars).
		Msg("Grouping summaries")

	results, err := g.runBatches(ctx, batches)
	if err != nil {
		return nil, stats, err
	}

	// Renumber in batch order so ids do not depend on completion order.
	alloc := newIDAllocator()
	var all []models.IdeaCluster
	conflicts := make(map[int64]struct{})
	for _, r := range results {
		if r.fallback {
			stats.FallbackBatches++
		}
		for _, id := range r.conflicts {
			conflicts[id] = struct{}{}
		}
		for _, c := range r.clusters {
			c.ClusterID = alloc.allocate(c.TopicArea)
			all = append(all, c)
		}
	}

	all, crossBatch := ResolveConflicts(all)
	for _, id := range crossBatch {
		conflicts[id] = struct{}{}
	}
	all, missing := RepairCoverage(all, input, alloc.allocate)
	AggregateMetrics(all, input)
	sort.SliceStable(all, func(i, j int) bool { return all[i].ClusterID < all[j].ClusterID })

	stats.ConflictIDs = sortedIDs(conflicts)
	stats.RepairedIDs = missing
	stats.Clusters = len(all)

	if cov := (&apperr.CoverageError{Missing: missing, Duplicated: stats.ConflictIDs}); !cov.Empty() {
		g.logger.Warn().Err(cov).Msg("Cluster coverage repaired")
	}
	if cov := CheckPartition(all, input); cov != nil {
		// Unreachable unless the repair steps above are broken.
		return nil, stats, &apperr.StageError{Stage: Stage, Err: cov}
	}

	g.logger.Info().
		Int("clusters", len(all)).
		Int("fallback_batches", stats.FallbackBatches).
		Int("conflicts", len(stats.ConflictIDs)).
		Int("repaired", len(missing)).
		Msg("Grouping complete")

	return all, stats, nil
}

func (g *Grouper) runBatches(ctx context.Context, batches [][]models.SummarizedIssue) ([]batchResult, error) {
	results := make([]batchResult, len(batches))

	if g.parallelism < 2 {
		for i, batch := range batches {
			r, err := g.groupBatch(ctx, i, len(batches), batch)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelism)
	for i, batch := range batches {
		eg.Go(func() error {
			r, err := g.groupBatch(egCtx, i, len(batches), batch)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// groupBatch asks the grouper persona to cluster one batch. Rejected replies are
// retried under the validation policy and then replaced by singletons. Conflicts
// inside the batch are resolved on the reply's own cluster ids.
func (g *Grouper) groupBatch(ctx context.Context, index, total int, batch []models.SummarizedIssue) (batchResult, error) {
	item := fmt.Sprintf("batch %d/%d (%d issues, first id %d)", index+1, total, len(batch), batch[0].IssueID)
	event := progress.Event{Stage: Stage, Item: item, Index: index + 1, Total: total}

	prompt, err := BuildPrompt(batch)
	if err != nil {
		return batchResult{}, &apperr.StageError{Stage: Stage, Item: item, Err: err}
	}
	req := llm.Request{
		Model:       g.model,
		System:      g.persona.SystemPrompt,
		Prompt:      prompt,
		Temperature: g.persona.Temperature,
		JSON:        true,
	}

	res := retry.Do(ctx, g.validation, func(ctx context.Context, attempt int) ([]models.IdeaCluster, error) {
		reply := retry.Do(ctx, g.transport, func(ctx context.Context, _ int) (string, error) {
			g.metrics.GenerationCall(ctx, persona.Grouper)
			return g.gen.Generate(ctx, req)
		})
		if !reply.OK() {
			return nil, reply.Err
		}

		clusters, failure := ParseClusters(reply.Value, batch).Unpack()
		if failure != nil {
			g.metrics.ReplyFailure(ctx, persona.Grouper, string(failure.Reason))
			g.logger.Warn().
				Str("batch", item).
				Int("attempt", attempt).
				Str("failure", failure.String()).
				Msg("Grouping reply rejected")
			return nil, failure.Err()
		}
		return clusters, nil
	})

	if !res.OK() {
		if !apperr.IsSchema(res.Err) {
			return batchResult{}, &apperr.StageError{Stage: Stage, Item: item, Err: res.Err}
		}
		g.logger.Error().
			Err(res.Err).
			Str("batch", item).
			Int("attempts", res.Attempts).
			Msg("Grouping failed, falling back to singletons")
		singletons := make([]models.IdeaCluster, 0, len(batch))
		for _, s := range batch {
			singletons = append(singletons, Singleton(fmt.Sprintf("singleton-%d", s.IssueID), s))
		}
		event.Kind = progress.BatchFallback
		event.Message = res.Err.Error()
		g.reporter.Report(event)
		return batchResult{clusters: singletons, fallback: true}, nil
	}

	clusters, conflicts := ResolveConflicts(res.Value)
	event.Kind = progress.BatchDone
	event.Message = fmt.Sprintf("%d clusters", len(clusters))
	g.reporter.Report(event)
	return batchResult{clusters: clusters, conflicts: conflicts}, nil
}
