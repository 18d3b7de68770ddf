package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/internal/cache"
)

// RunKey derives the artifact key prefix from an "owner/repo" name.
func RunKey(repo string) (string, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repo), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", &apperr.ConfigurationError{Field: "repo", Message: fmt.Sprintf("%q is not in owner/repo form", repo)}
	}
	key := owner + "_" + name
	if err := cache.ValidateKey(key); err != nil {
		return "", &apperr.ConfigurationError{Field: "repo", Message: err.Error()}
	}
	return key, nil
}

// ArtifactKey returns the store key of a stage artifact.
func ArtifactKey(runKey, artifact string) string {
	return runKey + "_" + artifact
}

// Artifact names.
const (
	IssuesArtifact    = "issues"
	SummariesArtifact = "summaries"
	ClustersArtifact  = "clusters"
)

// stageArtifacts pairs each persisted stage with its artifact, in execution order.
var stageArtifacts = []struct {
	stage    string
	artifact string
}{
	{StageNormalize, IssuesArtifact},
	{StageSummarize, SummariesArtifact},
	{StageGroup, ClustersArtifact},
}

// artifacts reads and writes the stage artifacts of one run key.
type artifacts struct {
	store  cache.Store
	runKey string
}

func (a artifacts) key(name string) string {
	return ArtifactKey(a.runKey, name)
}

// load decodes the artifact into v. A present but unreadable artifact is an error.
func (a artifacts) load(ctx context.Context, name string, v any) (bool, error) {
	ok, err := cache.GetJSON(ctx, a.store, a.key(name), v)
	if err != nil {
		return false, fmt.Errorf("load artifact %s: %w", a.key(name), err)
	}
	return ok, nil
}

func (a artifacts) save(ctx context.Context, name string, v any) error {
	if err := cache.PutJSON(ctx, a.store, a.key(name), v); err != nil {
		return fmt.Errorf("save artifact %s: %w", a.key(name), err)
	}
	return nil
}

// dropAfter deletes the artifacts of every stage after stage. They were derived from
// the artifact about to be replaced and must not be loaded against the new one.
func (a artifacts) dropAfter(ctx context.Context, stage string) error {
	found := false
	for _, sa := range stageArtifacts {
		if found {
			if err := a.store.Delete(ctx, a.key(sa.artifact)); err != nil {
				return fmt.Errorf("drop artifact %s: %w", a.key(sa.artifact), err)
			}
			continue
		}
		found = sa.stage == stage
	}
	return nil
}
