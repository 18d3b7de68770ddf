package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/ideaforge/internal/config"
	"github.com/thebtf/ideaforge/internal/orchestrator"
	"github.com/thebtf/ideaforge/internal/progress"
	"github.com/thebtf/ideaforge/internal/report"
	"github.com/thebtf/ideaforge/internal/watcher"
)

var runFlags struct {
	repo   string
	input  string
	output string
	force  string
	top    int
	watch  bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline and write the reports",
	Long: `Runs normalize, summarize, group and rank for one repository. Stage outputs are
stored as artifacts; a later run resumes from them unless --force names a stage.

Force levels: none, normalize (re-read the input, keep cached summaries),
summarize, group, all.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.repo, "repo", "", "Repository in owner/repo form")
	f.StringVarP(&runFlags.input, "input", "i", "", "Issue export file or directory")
	f.StringVarP(&runFlags.output, "output", "o", "", "Report output directory")
	f.StringVar(&runFlags.force, "force", "none", "Recompute from this stage: none, normalize, summarize, group or all")
	f.IntVar(&runFlags.top, "top", 0, "Number of ideas in the Markdown report and table")
	f.BoolVarP(&runFlags.watch, "watch", "w", false, "Re-run when the input file changes")
}

func applyRunFlags(cfg *config.Config) {
	if runFlags.repo != "" {
		cfg.Repo = runFlags.repo
	}
	if runFlags.input != "" {
		cfg.Input = runFlags.input
	}
	if runFlags.output != "" {
		cfg.OutputDir = runFlags.output
	}
	if runFlags.top > 0 {
		cfg.TopN = runFlags.top
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	force, err := orchestrator.ParseForce(runFlags.force)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(applyRunFlags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := defaultDeps(ctx, cfg, progress.NewLogReporter())
	if err != nil {
		return err
	}
	defer deps.backend.Close()

	o, err := newOrchestrator(cfg, deps)
	if err != nil {
		return err
	}

	if err := runAndWrite(ctx, o, cfg, force, cmd.OutOrStdout()); err != nil {
		return err
	}
	if !runFlags.watch {
		return nil
	}
	return watchAndRun(ctx, cfg, func() error {
		return runAndWrite(ctx, o, cfg, orchestrator.ForceNormalize, cmd.OutOrStdout())
	})
}

// runAndWrite runs the pipeline once, writes the report files and prints the table.
func runAndWrite(ctx context.Context, o *orchestrator.Orchestrator, cfg *config.Config, force orchestrator.Force, out io.Writer) error {
	res, err := o.Run(ctx, cfg.Repo, force)
	if err != nil {
		return err
	}
	paths, err := report.WriteFiles(cfg.OutputDir, res.Report, cfg.TopN)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, report.RenderTable(res.Report, cfg.TopN))
	fmt.Fprintf(out, "Run %s: %d issues, %d summaries, %d clusters", res.RunID, res.Issues, res.Summaries, res.Clusters)
	if len(res.LoadedStages) > 0 {
		fmt.Fprintf(out, " (loaded: %v)", res.LoadedStages)
	}
	fmt.Fprintln(out)
	for _, p := range paths {
		fmt.Fprintf(out, "Wrote %s\n", p)
	}
	return nil
}

// watchAndRun calls run after every change of the input file until ctx is done.
// A change that arrives during a run is coalesced into one follow-up run.
func watchAndRun(ctx context.Context, cfg *config.Config, run func() error) error {
	trigger := make(chan struct{}, 1)
	w, err := watcher.New(cfg.Input, cfg.Serve.Debounce, func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("watch %s: %w", cfg.Input, err)
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopped watching")
			return nil
		case <-trigger:
			if err := run(); err != nil {
				log.Error().Err(err).Msg("Pipeline run failed, waiting for the next change")
			}
		}
	}
}
