package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thebtf/ideaforge/internal/config"
	"github.com/thebtf/ideaforge/internal/llm"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the generation service, configured models and store",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	out := cmd.OutOrStdout()

	client := llm.NewOllamaClient(llm.OllamaConfig{BaseURL: cfg.Ollama.URL, Timeout: 10 * time.Second})
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("ollama at %s: %w", cfg.Ollama.URL, err)
	}
	fmt.Fprintf(out, "ollama     ok (%s)\n", cfg.Ollama.URL)

	for _, model := range uniqueModels(cfg) {
		ok, err := client.ModelExists(ctx, model)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("model %q is not installed (ollama pull %s)", model, model)
		}
		fmt.Fprintf(out, "model      ok (%s)\n", model)
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	if _, err := b.store.Exists(ctx, "health_probe"); err != nil {
		return fmt.Errorf("store %s: %w", cfg.Store.Backend, err)
	}
	fmt.Fprintf(out, "store      ok (%s)\n", cfg.Store.Backend)
	return nil
}

func uniqueModels(cfg *config.Config) []string {
	models := []string{cfg.Ollama.SummarizerModel}
	if cfg.Ollama.GrouperModel != cfg.Ollama.SummarizerModel {
		models = append(models, cfg.Ollama.GrouperModel)
	}
	return models
}
