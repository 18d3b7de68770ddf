// Package config provides configuration management for ideaforge.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/internal/group"
	"github.com/thebtf/ideaforge/internal/normalize"
	"github.com/thebtf/ideaforge/internal/rank"
	"github.com/thebtf/ideaforge/internal/summarize"
	"github.com/thebtf/ideaforge/pkg/models"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IDEAFORGE_"

// Defaults.
const (
	DefaultConfigFile     = "ideaforge.yaml"
	DefaultEnvFile        = ".env"
	DefaultDataDir        = ".ideaforge"
	DefaultOutputDir      = "reports"
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultModel          = "llama3.2"
	DefaultTimeout        = 120 * time.Second
	DefaultRetryAttempts  = 3
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultTopN           = 10
	DefaultServeAddr      = "127.0.0.1:8080"
	DefaultDebounce       = 500 * time.Millisecond
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Backends lists the supported store backends.
var Backends = []string{BackendMemory, BackendFile, BackendSQLite, BackendPostgres, BackendRedis}

// OllamaConfig configures the generation service.
type OllamaConfig struct {
	URL             string        `yaml:"url"`
	SummarizerModel string        `yaml:"summarizer_model"`
	GrouperModel    string        `yaml:"grouper_model"`
	Timeout         time.Duration `yaml:"timeout"`
}

// RetryConfig configures retries of generation calls.
type RetryConfig struct {
	Attempts       int           `yaml:"attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// NormalizeConfig configures the normalizer.
type NormalizeConfig struct {
	MaxTextLength int  `yaml:"max_text_length"`
	NoiseRules    bool `yaml:"noise_rules"`
	SupportRules  bool `yaml:"support_rules"`
}

// SummarizeConfig configures the summarizer.
type SummarizeConfig struct {
	MaxTokens int  `yaml:"max_tokens"`
	SkipNoise bool `yaml:"skip_noise"`
}

// GroupConfig configures the grouper.
type GroupConfig struct {
	MaxBatchSize       int  `yaml:"max_batch_size"`
	MaxBatchChars      int  `yaml:"max_batch_chars"`
	Parallelism        int  `yaml:"parallelism"`
	ValidationAttempts int  `yaml:"validation_attempts"`
	SkipNoise          bool `yaml:"skip_noise"`
}

// Limits returns the batch limits.
func (g GroupConfig) Limits() group.Limits {
	return group.Limits{MaxSize: g.MaxBatchSize, MaxChars: g.MaxBatchChars}
}

// StoreConfig selects where artifacts and caches are kept.
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	DSN      string `yaml:"dsn"`
	RedisURL string `yaml:"redis_url"`
}

// ServeConfig configures the status server.
type ServeConfig struct {
	Addr     string        `yaml:"addr"`
	Debounce time.Duration `yaml:"debounce"`
}

// Config is the complete ideaforge configuration.
type Config struct {
	Repo        string          `yaml:"repo"`
	Input       string          `yaml:"input"`
	DataDir     string          `yaml:"data_dir"`
	OutputDir   string          `yaml:"output_dir"`
	PersonaFile string          `yaml:"persona_file"`
	Ollama      OllamaConfig    `yaml:"ollama"`
	Retry       RetryConfig     `yaml:"retry"`
	Normalize   NormalizeConfig `yaml:"normalize"`
	Summarize   SummarizeConfig `yaml:"summarize"`
	Group       GroupConfig     `yaml:"group"`
	Weights     models.Weights  `yaml:"weights"`
	TopN        int             `yaml:"top_n"`
	Store       StoreConfig     `yaml:"store"`
	Serve       ServeConfig     `yaml:"serve"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir:   DefaultDataDir,
		OutputDir: DefaultOutputDir,
		Ollama: OllamaConfig{
			URL:             DefaultOllamaURL,
			SummarizerModel: DefaultModel,
			GrouperModel:    DefaultModel,
			Timeout:         DefaultTimeout,
		},
		Retry: RetryConfig{
			Attempts:       DefaultRetryAttempts,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
		},
		Normalize: NormalizeConfig{
			MaxTextLength: normalize.DefaultBudget,
			NoiseRules:    true,
			SupportRules:  true,
		},
		Summarize: SummarizeConfig{MaxTokens: summarize.DefaultMaxTokens},
		Group: GroupConfig{
			MaxBatchSize:       group.DefaultMaxBatchSize,
			MaxBatchChars:      group.DefaultMaxBatchChars,
			Parallelism:        1,
			ValidationAttempts: group.DefaultValidationAttempts,
		},
		Weights: models.DefaultWeights,
		TopN:    DefaultTopN,
		Store:   StoreConfig{Backend: BackendFile},
		Serve:   ServeConfig{Addr: DefaultServeAddr, Debounce: DefaultDebounce},
	}
}

// Load builds the configuration from, in increasing priority, defaults, the YAML
// file at path, the .env file next to it and IDEAFORGE_ environment variables.
// An empty path uses DefaultConfigFile. Missing files are not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &apperr.ConfigurationError{Field: path, Message: err.Error()}
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	dotenv, err := readDotenv(filepath.Join(filepath.Dir(path), DefaultEnvFile))
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readDotenv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, &apperr.ConfigurationError{Field: path, Message: err.Error()}
	}
	return values, nil
}

// applyEnv overrides fields from IDEAFORGE_ variables. Unparseable values are
// configuration errors.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	p := envParser{lookup: lookup}

	p.str("REPO", &c.Repo)
	p.str("INPUT", &c.Input)
	p.str("DATA_DIR", &c.DataDir)
	p.str("OUTPUT_DIR", &c.OutputDir)
	p.str("PERSONA_FILE", &c.PersonaFile)
	p.str("OLLAMA_URL", &c.Ollama.URL)
	p.str("SUMMARIZER_MODEL", &c.Ollama.SummarizerModel)
	p.str("GROUPER_MODEL", &c.Ollama.GrouperModel)
	p.duration("OLLAMA_TIMEOUT", &c.Ollama.Timeout)
	p.integer("RETRY_ATTEMPTS", &c.Retry.Attempts)
	p.integer("MAX_TEXT_LENGTH", &c.Normalize.MaxTextLength)
	p.boolean("NOISE_RULES", &c.Normalize.NoiseRules)
	p.boolean("SUPPORT_RULES", &c.Normalize.SupportRules)
	p.integer("MAX_TOKENS", &c.Summarize.MaxTokens)
	p.integer("MAX_BATCH_SIZE", &c.Group.MaxBatchSize)
	p.integer("MAX_BATCH_CHARS", &c.Group.MaxBatchChars)
	p.integer("PARALLELISM", &c.Group.Parallelism)
	p.integer("TOP_N", &c.TopN)
	p.str("STORE_BACKEND", &c.Store.Backend)
	p.str("STORE_DSN", &c.Store.DSN)
	p.str("REDIS_URL", &c.Store.RedisURL)
	p.str("SERVE_ADDR", &c.Serve.Addr)

	var skipNoise bool
	if p.boolean("SKIP_NOISE", &skipNoise) {
		c.Summarize.SkipNoise = skipNoise
		c.Group.SkipNoise = skipNoise
	}
	if v, ok := lookup(EnvPrefix + "WEIGHTS"); ok {
		w, err := ParseWeights(v)
		if err != nil {
			p.fail("WEIGHTS", err)
		} else {
			c.Weights = w
		}
	}
	return p.err
}

type envParser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *envParser) get(name string) (string, bool) {
	v, ok := p.lookup(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (p *envParser) fail(name string, err error) {
	if p.err == nil {
		p.err = &apperr.ConfigurationError{Field: EnvPrefix + name, Message: err.Error()}
	}
}

func (p *envParser) str(name string, dst *string) {
	if v, ok := p.get(name); ok {
		*dst = v
	}
}

func (p *envParser) integer(name string, dst *int) {
	if v, ok := p.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(name, err)
			return
		}
		*dst = n
	}
}

func (p *envParser) boolean(name string, dst *bool) bool {
	v, ok := p.get(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(name, err)
		return false
	}
	*dst = b
	return true
}

func (p *envParser) duration(name string, dst *time.Duration) {
	if v, ok := p.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(name, err)
			return
		}
		*dst = d
	}
}

// ParseWeights parses "novelty,feasibility,desirability,attention".
func ParseWeights(s string) (models.Weights, error) {
	parts := splitTrim(s)
	if len(parts) != 4 {
		return models.Weights{}, fmt.Errorf("want 4 comma-separated weights, got %d", len(parts))
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return models.Weights{}, fmt.Errorf("weight %q: %w", p, err)
		}
		vals[i] = v
	}
	return models.Weights{Novelty: vals[0], Feasibility: vals[1], Desirability: vals[2], Attention: vals[3]}, nil
}

// splitTrim splits a comma-separated string and trims whitespace from each part.
// Empty parts are dropped.
func splitTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks every setting that would otherwise fail later in the pipeline.
func (c *Config) Validate() error {
	if err := rank.ValidateWeights(c.Weights); err != nil {
		return err
	}
	if err := normalize.ValidateBudget(c.Normalize.MaxTextLength); err != nil {
		return err
	}
	if err := c.Group.Limits().Validate(); err != nil {
		return err
	}

	checks := []struct {
		field string
		bad   bool
		msg   string
	}{
		{"retry.attempts", c.Retry.Attempts < 1, "must be at least 1"},
		{"retry.initial_backoff", c.Retry.InitialBackoff < 0, "must not be negative"},
		{"retry.max_backoff", c.Retry.MaxBackoff < c.Retry.InitialBackoff, "must not be below initial_backoff"},
		{"ollama.timeout", c.Ollama.Timeout <= 0, "must be positive"},
		{"ollama.summarizer_model", c.Ollama.SummarizerModel == "", "must be set"},
		{"ollama.grouper_model", c.Ollama.GrouperModel == "", "must be set"},
		{"summarize.max_tokens", c.Summarize.MaxTokens <= 0, "must be positive"},
		{"group.parallelism", c.Group.Parallelism < 1, "must be at least 1"},
		{"group.validation_attempts", c.Group.ValidationAttempts < 1, "must be at least 1"},
		{"top_n", c.TopN < 0, "must not be negative"},
		{"data_dir", c.DataDir == "", "must be set"},
	}
	for _, chk := range checks {
		if chk.bad {
			return &apperr.ConfigurationError{Field: chk.field, Message: chk.msg}
		}
	}

	if !validBackend(c.Store.Backend) {
		return &apperr.ConfigurationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend %q (want one of %s)", c.Store.Backend, strings.Join(Backends, ", ")),
		}
	}
	if c.Store.Backend == BackendPostgres && c.Store.DSN == "" {
		return &apperr.ConfigurationError{Field: "store.dsn", Message: "required for the postgres backend"}
	}
	if c.Store.Backend == BackendRedis && c.Store.RedisURL == "" {
		return &apperr.ConfigurationError{Field: "store.redis_url", Message: "required for the redis backend"}
	}
	return nil
}

func validBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

// CacheDir is where the file backend keeps its entries.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

// DBPath is the SQLite database used by the sqlite backend.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "ideaforge.db")
}

// EnsureDataDir creates the data directory if needed.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o750)
}
