package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thebtf/ideaforge/internal/cache"
	"github.com/thebtf/ideaforge/internal/config"
	"github.com/thebtf/ideaforge/internal/db/gorm"
	"github.com/thebtf/ideaforge/internal/db/sqlite"
	"github.com/thebtf/ideaforge/internal/group"
	"github.com/thebtf/ideaforge/internal/llm"
	"github.com/thebtf/ideaforge/internal/normalize"
	"github.com/thebtf/ideaforge/internal/orchestrator"
	"github.com/thebtf/ideaforge/internal/persona"
	"github.com/thebtf/ideaforge/internal/progress"
	"github.com/thebtf/ideaforge/internal/retry"
	"github.com/thebtf/ideaforge/internal/source"
	"github.com/thebtf/ideaforge/internal/summarize"
	"github.com/thebtf/ideaforge/internal/telemetry"
)

// backend is an opened store plus what else the backend offers.
type backend struct {
	store    cache.Store
	recorder orchestrator.RunRecorder
	closer   io.Closer
}

func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// openBackend opens the store selected by cfg.Store.Backend.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return &backend{store: cache.NewMemoryStore()}, nil

	case config.BackendFile:
		s, err := cache.NewFileStore(cfg.CacheDir())
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return &backend{store: s}, nil

	case config.BackendSQLite:
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		s, err := sqlite.NewStore(sqlite.StoreConfig{Path: cfg.DBPath(), MaxConns: 4, WALMode: true})
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return &backend{store: s, closer: s}, nil

	case config.BackendPostgres:
		s, err := gorm.NewStore(gorm.Config{DSN: cfg.Store.DSN, MaxConns: 4, LogLevel: gormlogger.Silent})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return &backend{store: s, recorder: s, closer: s}, nil

	case config.BackendRedis:
		s, err := cache.NewRedisStore(ctx, cache.RedisConfig{URL: cfg.Store.RedisURL})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return &backend{store: s, closer: s}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// pipelineDeps are the collaborators injected into the orchestrator. Tests replace
// the generator and source.
type pipelineDeps struct {
	generator llm.Generator
	source    orchestrator.IssueSource
	reporter  progress.Reporter
	backend   *backend
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.Retry.Attempts,
		Backoff:     retry.Exponential(cfg.Retry.InitialBackoff, cfg.Retry.MaxBackoff),
	}
}

// newOrchestrator builds the pipeline from configuration.
func newOrchestrator(cfg *config.Config, deps pipelineDeps) (*orchestrator.Orchestrator, error) {
	personas, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		return nil, err
	}
	metrics, err := telemetry.Global()
	if err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}

	norm := normalize.DefaultOptions()
	norm.Budget = cfg.Normalize.MaxTextLength
	norm.Noise.Enabled = cfg.Normalize.NoiseRules
	norm.Support.Enabled = cfg.Normalize.SupportRules

	policy := retryPolicy(cfg)
	transport := policy
	transport.Retryable = group.DefaultRetry.Retryable

	return orchestrator.New(orchestrator.Options{
		Source:    deps.source,
		Store:     deps.backend.store,
		Recorder:  deps.backend.recorder,
		Reporter:  deps.reporter,
		Telemetry: metrics,
		Normalize: norm,
		Summarize: summarize.Options{
			Generator: deps.generator,
			Persona:   personas.MustGet(persona.Summarizer),
			Model:     cfg.Ollama.SummarizerModel,
			Retry:     policy,
			MaxTokens: cfg.Summarize.MaxTokens,
			SkipNoise: cfg.Summarize.SkipNoise,
		},
		Group: group.Options{
			Generator:          deps.generator,
			Persona:            personas.MustGet(persona.Grouper),
			Model:              cfg.Ollama.GrouperModel,
			Retry:              transport,
			Limits:             cfg.Group.Limits(),
			ValidationAttempts: cfg.Group.ValidationAttempts,
			Parallelism:        cfg.Group.Parallelism,
			SkipNoise:          cfg.Group.SkipNoise,
		},
		Weights: cfg.Weights,
	})
}

// loadConfig loads and validates the configuration, applying flag overrides.
func loadConfig(override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Repo == "" {
		return nil, errors.New("no repository configured (set repo in the config file, IDEAFORGE_REPO or --repo)")
	}
	if cfg.Input == "" {
		return nil, errors.New("no input configured (set input in the config file, IDEAFORGE_INPUT or --input)")
	}
	return cfg, nil
}

// defaultDeps wires the real Ollama client and file source.
func defaultDeps(ctx context.Context, cfg *config.Config, reporter progress.Reporter) (pipelineDeps, error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return pipelineDeps{}, err
	}
	log.Debug().Str("backend", cfg.Store.Backend).Msg("Store opened")
	return pipelineDeps{
		generator: llm.NewOllamaClient(llm.OllamaConfig{BaseURL: cfg.Ollama.URL, Timeout: cfg.Ollama.Timeout}),
		source:    source.NewFile(cfg.Input),
		reporter:  reporter,
		backend:   b,
	}, nil
}
