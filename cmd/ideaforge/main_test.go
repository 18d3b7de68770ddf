package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/ideaforge/internal/config"
	"github.com/thebtf/ideaforge/internal/llm"
	"github.com/thebtf/ideaforge/internal/orchestrator"
	"github.com/thebtf/ideaforge/internal/persona"
	"github.com/thebtf/ideaforge/internal/progress"
	"github.com/thebtf/ideaforge/internal/report"
	"github.com/thebtf/ideaforge/internal/source"
)

const issueExport = `[
  {"id": 1, "number": 10, "title": "Add dark mode", "body": "A dark theme would help at night.",
   "user": {"login": "alice"}, "state": "open", "html_url": "https://example.com/10"},
  {"id": 2, "number": 11, "title": "Dark theme support", "body": "Please support a dark colour scheme.",
   "user": {"login": "bob"}, "state": "open", "html_url": "https://example.com/11"}
]`

var idRegex = regexp.MustCompile(`"issue_id": (\d+)`)

// fakeOllama answers like a model that summarizes each issue and groups a batch
// into one cluster.
func fakeOllama(_ context.Context, req llm.Request) (string, error) {
	if req.System == persona.Builtin().MustGet(persona.Summarizer).SystemPrompt {
		return `{"title":"Dark mode","summary":"Users want a dark theme.","topic_area":"UI",` +
			`"novelty":0.3,"feasibility":0.8,"desirability":0.9,"attention":0.5,"noise_flag":false}`, nil
	}
	var ids []string
	for _, m := range idRegex.FindAllStringSubmatch(req.Prompt, -1) {
		ids = append(ids, m[1])
	}
	return fmt.Sprintf(`{"clusters":[{"cluster_id":"x","representative_title":"Dark mode","summary":"Dark theme.",`+
		`"topic_area":"UI","member_issue_ids":[%s]}]}`, strings.Join(ids, ",")), nil
}

type CLISuite struct {
	suite.Suite
	dir string
	cfg *config.Config
}

func (s *CLISuite) SetupTest() {
	s.dir = s.T().TempDir()
	input := filepath.Join(s.dir, "issues.json")
	s.Require().NoError(os.WriteFile(input, []byte(issueExport), 0o644))

	cfg := config.Default()
	cfg.Repo = "acme/widgets"
	cfg.Input = input
	cfg.DataDir = filepath.Join(s.dir, "data")
	cfg.OutputDir = filepath.Join(s.dir, "reports")
	cfg.Store.Backend = config.BackendMemory
	cfg.Retry.InitialBackoff = 0
	cfg.Retry.MaxBackoff = 0
	s.cfg = cfg
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) orchestrator() *orchestrator.Orchestrator {
	b, err := openBackend(context.Background(), s.cfg)
	s.Require().NoError(err)
	o, err := newOrchestrator(s.cfg, pipelineDeps{
		generator: llm.GeneratorFunc(fakeOllama),
		source:    source.NewFile(s.cfg.Input),
		reporter:  progress.Nop,
		backend:   b,
	})
	s.Require().NoError(err)
	return o
}

func (s *CLISuite) TestRunAndWrite() {
	var out bytes.Buffer
	err := runAndWrite(context.Background(), s.orchestrator(), s.cfg, orchestrator.ForceNone, &out)
	s.Require().NoError(err)

	s.Contains(out.String(), "Dark mode")
	s.Contains(out.String(), "2 issues, 2 summaries, 1 clusters")
	s.FileExists(filepath.Join(s.cfg.OutputDir, report.JSONFile))
	s.FileExists(filepath.Join(s.cfg.OutputDir, report.MarkdownFile))

	r, ok := loadLastReport(s.cfg)
	s.Require().True(ok)
	s.Equal("acme_widgets", r.RunKey)
	s.Len(r.Ideas, 1)

	s.cfg.Repo = "acme/gadgets"
	_, ok = loadLastReport(s.cfg)
	s.False(ok)
}

func (s *CLISuite) TestPipelineRunFuncReReadsInputAfterFirstRun() {
	run := pipelineRunFunc(s.orchestrator(), s.cfg)

	first, err := run(context.Background())
	s.Require().NoError(err)
	s.Len(first.Ideas, 1)

	more := strings.Replace(issueExport, "\n]", `,
  {"id": 3, "number": 12, "title": "Night mode for editor", "body": "Editor should follow the dark theme.",
   "user": {"login": "carol"}, "state": "open", "html_url": "https://example.com/12"}
]`, 1)
	s.Require().NoError(os.WriteFile(s.cfg.Input, []byte(more), 0o644))

	second, err := run(context.Background())
	s.Require().NoError(err)
	s.Equal(3, second.Stats.TotalIssues)
}

func (s *CLISuite) TestOpenBackends() {
	for _, backend := range []string{config.BackendMemory, config.BackendFile, config.BackendSQLite} {
		s.Run(backend, func() {
			s.cfg.Store.Backend = backend
			b, err := openBackend(context.Background(), s.cfg)
			s.Require().NoError(err)
			defer b.Close()

			s.Require().NoError(b.store.Put(context.Background(), "k", []byte("v")))
			ok, err := b.store.Exists(context.Background(), "k")
			s.Require().NoError(err)
			s.True(ok)
		})
	}

	s.cfg.Store.Backend = "mongo"
	_, err := openBackend(context.Background(), s.cfg)
	s.Error(err)
}

func (s *CLISuite) TestHealthCommand() {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"}]}`))
	}))
	defer ollama.Close()

	path := filepath.Join(s.dir, "ideaforge.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(fmt.Sprintf(
		"ollama:\n  url: %s\nstore:\n  backend: memory\n", ollama.URL)), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"health", "--config", path})
	defer rootCmd.SetArgs(nil)

	s.Require().NoError(rootCmd.Execute())
	s.Contains(out.String(), "model      ok (llama3.2)")
	s.Contains(out.String(), "store      ok (memory)")
}

func TestUniqueModels(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, []string{config.DefaultModel}, uniqueModels(cfg))

	cfg.Ollama.GrouperModel = "qwen2.5"
	assert.Equal(t, []string{config.DefaultModel, "qwen2.5"}, uniqueModels(cfg))
}

func TestLoadConfigRequiresRepoAndInput(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "missing.yaml")
	defer func() { configPath = config.DefaultConfigFile }()

	_, err := loadConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no repository")

	cfg, err := loadConfig(func(c *config.Config) {
		c.Repo = "acme/widgets"
		c.Input = "issues.json"
	})
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets", cfg.Repo)
}
