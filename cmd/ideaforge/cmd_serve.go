package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/ideaforge/internal/config"
	"github.com/thebtf/ideaforge/internal/orchestrator"
	"github.com/thebtf/ideaforge/internal/progress"
	"github.com/thebtf/ideaforge/internal/progress/sse"
	"github.com/thebtf/ideaforge/internal/report"
	"github.com/thebtf/ideaforge/internal/server"
	"github.com/thebtf/ideaforge/internal/watcher"
	"github.com/thebtf/ideaforge/pkg/models"
)

var serveFlags struct {
	addr       string
	repo       string
	input      string
	runOnStart bool
	watch      bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the latest report and live progress over HTTP",
	Long: `Starts the status server:

  GET  /health           liveness and version
  GET  /api/ideas        latest report (404 until a report exists)
  GET  /api/events       server-sent progress events
  POST /api/runs         start a pipeline run
  GET  /api/runs/latest  state of the last run

With --watch, a change of the input file starts a run.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "Listen address (default from config)")
	f.StringVar(&serveFlags.repo, "repo", "", "Repository in owner/repo form")
	f.StringVarP(&serveFlags.input, "input", "i", "", "Issue export file or directory")
	f.BoolVar(&serveFlags.runOnStart, "run", false, "Start a run immediately")
	f.BoolVarP(&serveFlags.watch, "watch", "w", false, "Start a run when the input file changes")
}

func applyServeFlags(cfg *config.Config) {
	if serveFlags.addr != "" {
		cfg.Serve.Addr = serveFlags.addr
	}
	if serveFlags.repo != "" {
		cfg.Repo = serveFlags.repo
	}
	if serveFlags.input != "" {
		cfg.Input = serveFlags.input
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(applyServeFlags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broadcaster := sse.NewBroadcaster()
	deps, err := defaultDeps(ctx, cfg, progress.Multi{progress.NewLogReporter(), broadcaster})
	if err != nil {
		return err
	}
	defer deps.backend.Close()

	o, err := newOrchestrator(cfg, deps)
	if err != nil {
		return err
	}

	srv := server.New(ctx, Version, broadcaster, pipelineRunFunc(o, cfg))
	if r, ok := loadLastReport(cfg); ok {
		srv.SetReport(r)
	}

	if serveFlags.runOnStart {
		if err := srv.Trigger(); err != nil {
			return err
		}
	}
	if serveFlags.watch {
		w, err := watcher.New(cfg.Input, cfg.Serve.Debounce, func() {
			if err := srv.Schedule(); err != nil {
				log.Warn().Err(err).Msg("Run not scheduled")
			}
		})
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Serve.Addr).Msg("Status server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Status server shutdown")
	}
	srv.Wait()
	return nil
}

// pipelineRunFunc resumes from artifacts on the first run and re-reads the input on
// later runs, which are triggered by input changes or explicit requests.
func pipelineRunFunc(o *orchestrator.Orchestrator, cfg *config.Config) server.RunFunc {
	var ran atomic.Bool
	return func(ctx context.Context) (models.Report, error) {
		force := orchestrator.ForceNone
		if ran.Swap(true) {
			force = orchestrator.ForceNormalize
		}
		res, err := o.Run(ctx, cfg.Repo, force)
		if err != nil {
			return models.Report{}, err
		}
		if _, err := report.WriteFiles(cfg.OutputDir, res.Report, cfg.TopN); err != nil {
			return models.Report{}, err
		}
		return res.Report, nil
	}
}

// loadLastReport reads the report written by a previous run, if it matches the
// configured repository.
func loadLastReport(cfg *config.Config) (models.Report, bool) {
	f, err := os.Open(filepath.Join(cfg.OutputDir, report.JSONFile))
	if err != nil {
		return models.Report{}, false
	}
	defer f.Close()

	r, err := report.ReadJSON(f)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable previous report")
		return models.Report{}, false
	}
	key, err := orchestrator.RunKey(cfg.Repo)
	if err != nil || r.RunKey != key {
		return models.Report{}, false
	}
	return r, true
}
