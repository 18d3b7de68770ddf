// Package orchestrator runs the idea pipeline: normalize, summarize, group and rank.
// Each stage's output is stored as an artifact keyed by repository, and an existing
// artifact is loaded instead of recomputed unless the run forces that stage.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/internal/cache"
	"github.com/thebtf/ideaforge/internal/group"
	"github.com/thebtf/ideaforge/internal/normalize"
	"github.com/thebtf/ideaforge/internal/progress"
	"github.com/thebtf/ideaforge/internal/rank"
	"github.com/thebtf/ideaforge/internal/report"
	"github.com/thebtf/ideaforge/internal/summarize"
	"github.com/thebtf/ideaforge/internal/telemetry"
	"github.com/thebtf/ideaforge/pkg/models"
)

// IssueSource delivers the already-paginated raw issues of a repository.
type IssueSource interface {
	Issues(ctx context.Context, repo string) ([]models.RawIssue, error)
}

// IssueSourceFunc adapts a function to IssueSource.
type IssueSourceFunc func(ctx context.Context, repo string) ([]models.RawIssue, error)

// Issues calls f.
func (f IssueSourceFunc) Issues(ctx context.Context, repo string) ([]models.RawIssue, error) {
	return f(ctx, repo)
}

// RunRecord describes a finished run for a RunRecorder.
type RunRecord struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Err          error
	RunID        string
	RunKey       string
	FailedStage  string
	LoadedStages []string
	Issues       int
	Summaries    int
	Clusters     int
}

// RunRecorder keeps a history of runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// Options configures an Orchestrator. Source and Store are required.
type Options struct {
	Source IssueSource
	// Store holds stage artifacts and the per-issue summary cache.
	Store     cache.Store
	Recorder  RunRecorder
	Reporter  progress.Reporter
	Telemetry *telemetry.Instruments
	Logger    *zerolog.Logger
	Normalize normalize.Options
	// Summarize and Group are templates; Cache, Reporter, Telemetry and Logger are
	// filled in per run.
	Summarize summarize.Options
	Group     group.Options
	Weights   models.Weights
	Now       func() time.Time
}

// Result is the outcome of a successful run.
type Result struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Summarize    *summarize.Stats
	Group        *group.Stats
	RunID        string
	RunKey       string
	LoadedStages []string
	Report       models.Report
	Issues       int
	Summaries    int
	Clusters     int
}

// Orchestrator sequences the pipeline stages.
type Orchestrator struct {
	source     IssueSource
	store      cache.Store
	recorder   RunRecorder
	reporter   progress.Reporter
	metrics    *telemetry.Instruments
	normalizer *normalize.Normalizer
	ranker     *rank.Ranker
	now        func() time.Time
	logger     zerolog.Logger
	summarize  summarize.Options
	group      group.Options
}

// New validates the whole configuration, so that a bad weight set or batch limit
// fails before any generation call.
func New(opts Options) (*Orchestrator, error) {
	if opts.Source == nil {
		return nil, errors.New("orchestrator: issue source is required")
	}
	if opts.Store == nil {
		return nil, errors.New("orchestrator: store is required")
	}

	ranker, err := rank.New(opts.Weights)
	if err != nil {
		return nil, err
	}
	normalizer, err := normalize.New(opts.Normalize)
	if err != nil {
		return nil, err
	}
	if _, err := summarize.New(opts.Summarize); err != nil {
		return nil, err
	}
	if _, err := group.New(opts.Group); err != nil {
		return nil, err
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		source:     opts.Source,
		store:      opts.Store,
		recorder:   opts.Recorder,
		reporter:   progress.OrNop(opts.Reporter),
		metrics:    opts.Telemetry,
		normalizer: normalizer,
		ranker:     ranker,
		now:        now,
		logger:     logger,
		summarize:  opts.Summarize,
		group:      opts.Group,
	}, nil
}

// run is the state of one Run call.
type run struct {
	reporter   progress.Reporter
	artifacts  artifacts
	logger     zerolog.Logger
	result     *Result
	force      Force
	recomputed bool
}

// stale reports whether stage must be recomputed: it is forced, or an earlier stage
// produced fresh output in this run.
func (r *run) stale(stage string) bool {
	return r.force.Forces(stage) || r.recomputed
}

// Run executes the pipeline for repo. On failure, artifacts of completed stages are
// kept and the error is an apperr.StageError naming the failed stage.
func (o *Orchestrator) Run(ctx context.Context, repo string, force Force) (_ *Result, err error) {
	runKey, err := RunKey(repo)
	if err != nil {
		return nil, err
	}
	if force == "" {
		force = ForceNone
	}

	runID := uuid.NewString()
	result := &Result{RunID: runID, RunKey: runKey, StartedAt: o.now(), LoadedStages: []string{}}
	r := &run{
		reporter:  progress.Stamped(o.reporter, runID, o.now),
		artifacts: artifacts{store: o.store, runKey: runKey},
		logger:    o.logger.With().Str("run_id", runID).Str("run_key", runKey).Logger(),
		result:    result,
		force:     force,
	}
	r.logger.Info().Str("repo", repo).Str("force", string(force)).Msg("Pipeline run started")

	defer func() {
		result.FinishedAt = o.now()
		o.record(ctx, result, err)
	}()

	issues, err := o.normalizeStage(ctx, r, repo)
	if err != nil {
		return nil, err
	}
	result.Issues = len(issues)
	if len(issues) == 0 {
		return o.finish(ctx, r, issues, nil, nil), nil
	}

	summaries, err := o.summarizeStage(ctx, r, issues)
	if err != nil {
		return nil, err
	}
	result.Summaries = len(summaries)
	if len(summaries) == 0 {
		return o.finish(ctx, r, issues, summaries, nil), nil
	}

	clusters, err := o.groupStage(ctx, r, summaries)
	if err != nil {
		return nil, err
	}
	result.Clusters = len(clusters)

	return o.finish(ctx, r, issues, summaries, clusters), nil
}

// finish ranks clusters and builds the report. Ranking has no artifact; it is cheap
// and always recomputed.
func (o *Orchestrator) finish(ctx context.Context, r *run, issues []models.NormalizedIssue, summaries []models.SummarizedIssue, clusters []models.IdeaCluster) *Result {
	started := time.Now()
	r.reporter.Report(progress.Event{Stage: StageRank, Kind: progress.StageStarted, Total: len(clusters)})
	ranked := o.ranker.Rank(clusters)
	r.reporter.Report(progress.Event{Stage: StageRank, Kind: progress.StageDone, Total: len(ranked)})
	o.metrics.StageDuration(ctx, StageRank, time.Since(started))

	res := r.result
	res.Report = report.Build(report.Input{
		GeneratedAt: o.now(),
		RunKey:      res.RunKey,
		Ranked:      ranked,
		Summaries:   summaries,
		Issues:      issues,
		Weights:     o.ranker.Weights(),
	})
	r.reporter.Report(progress.Event{Stage: StageRank, Kind: progress.RunDone, Message: fmt.Sprintf("%d ideas", len(ranked))})
	r.logger.Info().
		Int("issues", res.Issues).
		Int("summaries", res.Summaries).
		Int("clusters", res.Clusters).
		Strs("loaded", res.LoadedStages).
		Msg("Pipeline run complete")
	return res
}

func (o *Orchestrator) normalizeStage(ctx context.Context, r *run, repo string) ([]models.NormalizedIssue, error) {
	var issues []models.NormalizedIssue
	if loaded, err := o.loadStage(ctx, r, StageNormalize, IssuesArtifact, &issues); err != nil || loaded {
		return issues, err
	}

	return runStage(ctx, o, r, StageNormalize, IssuesArtifact, func(ctx context.Context) ([]models.NormalizedIssue, error) {
		raw, err := o.source.Issues(ctx, repo)
		if err != nil {
			var upstream *apperr.UpstreamError
			if !errors.As(err, &upstream) {
				err = &apperr.UpstreamError{Source: repo, Err: err}
			}
			return nil, &apperr.StageError{Stage: StageNormalize, Item: "issue source", Err: err}
		}
		issues, err := o.normalizer.NormalizeAll(raw)
		if err != nil {
			return nil, &apperr.StageError{Stage: StageNormalize, Err: err}
		}
		return issues, nil
	})
}

func (o *Orchestrator) summarizeStage(ctx context.Context, r *run, issues []models.NormalizedIssue) ([]models.SummarizedIssue, error) {
	var summaries []models.SummarizedIssue
	if loaded, err := o.loadStage(ctx, r, StageSummarize, SummariesArtifact, &summaries); err != nil || loaded {
		return summaries, err
	}

	opts := o.summarize
	opts.Cache = cache.WithPrefix(o.store, r.artifacts.runKey+"_")
	opts.Reporter = r.reporter
	opts.Telemetry = o.metrics
	opts.Logger = &r.logger
	s, err := summarize.New(opts)
	if err != nil {
		return nil, err
	}

	return runStage(ctx, o, r, StageSummarize, SummariesArtifact, func(ctx context.Context) ([]models.SummarizedIssue, error) {
		out, stats, err := s.SummarizeAll(ctx, issues, r.force.BypassesSummaryCache())
		r.result.Summarize = &stats
		return out, err
	})
}

func (o *Orchestrator) groupStage(ctx context.Context, r *run, summaries []models.SummarizedIssue) ([]models.IdeaCluster, error) {
	var clusters []models.IdeaCluster
	if loaded, err := o.loadStage(ctx, r, StageGroup, ClustersArtifact, &clusters); err != nil || loaded {
		return clusters, err
	}

	opts := o.group
	opts.Reporter = r.reporter
	opts.Telemetry = o.metrics
	opts.Logger = &r.logger
	g, err := group.New(opts)
	if err != nil {
		return nil, err
	}

	return runStage(ctx, o, r, StageGroup, ClustersArtifact, func(ctx context.Context) ([]models.IdeaCluster, error) {
		out, stats, err := g.Group(ctx, summaries)
		r.result.Group = &stats
		return out, err
	})
}

// loadStage loads the stage artifact into v unless the stage is stale.
func (o *Orchestrator) loadStage(ctx context.Context, r *run, stage, artifact string, v any) (bool, error) {
	if r.stale(stage) {
		return false, nil
	}
	ok, err := r.artifacts.load(ctx, artifact, v)
	if err != nil {
		return false, &apperr.StageError{Stage: stage, Item: r.artifacts.key(artifact), Err: err}
	}
	if !ok {
		return false, nil
	}
	r.result.LoadedStages = append(r.result.LoadedStages, stage)
	r.reporter.Report(progress.Event{Stage: stage, Kind: progress.StageLoaded, Item: r.artifacts.key(artifact)})
	r.logger.Info().Str("stage", stage).Str("artifact", r.artifacts.key(artifact)).Msg("Loaded stage artifact")
	return true, nil
}

// runStage computes a stage and writes its artifact only after the whole stage
// succeeded. Downstream artifacts are dropped first, so a later failure never leaves
// them paired with the new artifact.
func runStage[T any](ctx context.Context, o *Orchestrator, r *run, stage, artifact string, compute func(context.Context) ([]T, error)) ([]T, error) {
	started := time.Now()
	r.reporter.Report(progress.Event{Stage: stage, Kind: progress.StageStarted})

	out, err := compute(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = r.artifacts.dropAfter(ctx, stage)
		if err == nil {
			err = r.artifacts.save(ctx, artifact, out)
		}
		if err != nil {
			err = &apperr.StageError{Stage: stage, Item: r.artifacts.key(artifact), Err: err}
		}
	}
	o.metrics.StageDuration(ctx, stage, time.Since(started))

	if err != nil {
		var se *apperr.StageError
		if !errors.As(err, &se) {
			se = &apperr.StageError{Stage: stage, Err: err}
			err = se
		}
		r.reporter.Report(progress.Event{Stage: stage, Kind: progress.StageFailed, Item: se.Item, Message: err.Error()})
		r.logger.Error().Err(err).Str("stage", stage).Msg("Stage failed")
		return nil, err
	}

	r.recomputed = true
	r.reporter.Report(progress.Event{Stage: stage, Kind: progress.StageDone, Total: len(out)})
	r.logger.Info().Str("stage", stage).Int("items", len(out)).Dur("elapsed", time.Since(started)).Msg("Stage complete")
	return out, nil
}

func (o *Orchestrator) record(ctx context.Context, res *Result, err error) {
	if o.recorder == nil {
		return
	}
	rec := RunRecord{
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
		Err:          err,
		RunID:        res.RunID,
		RunKey:       res.RunKey,
		LoadedStages: res.LoadedStages,
		Issues:       res.Issues,
		Summaries:    res.Summaries,
		Clusters:     res.Clusters,
	}
	var se *apperr.StageError
	if errors.As(err, &se) {
		rec.FailedStage = se.Stage
	}
	if rerr := o.recorder.RecordRun(context.WithoutCancel(ctx), rec); rerr != nil {
		o.logger.Warn().Err(rerr).Str("run_id", res.RunID).Msg("Failed to record run")
	}
}
