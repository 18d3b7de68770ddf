// Package source provides issue sources for the pipeline.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/pkg/models"
)

// File reads raw issues exported by the issue tracker. Path is either a JSON file
// or a directory holding one "{owner}_{repo}.json" file per repository.
//
// The file holds a JSON array of issues, or an object with an "issues" array.
type File struct {
	Path string
}

// NewFile creates a File source.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Resolve returns the file that holds the issues of repo.
func (f *File) Resolve(repo string) (string, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return f.Path, nil
	}
	return filepath.Join(f.Path, strings.ReplaceAll(repo, "/", "_")+".json"), nil
}

// Issues loads the raw issues of repo. Every failure is an apperr.UpstreamError.
func (f *File) Issues(ctx context.Context, repo string) ([]models.RawIssue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := f.Resolve(repo)
	if err != nil {
		return nil, &apperr.UpstreamError{Source: f.Path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperr.UpstreamError{Source: path, Err: err}
	}

	issues, err := Decode(data)
	if err != nil {
		return nil, &apperr.UpstreamError{Source: path, Err: err}
	}
	log.Debug().Str("path", path).Int("issues", len(issues)).Msg("Loaded raw issues")
	return issues, nil
}

// Decode parses an issue export. Pull requests, which the tracker lists among
// issues, are dropped.
func Decode(data []byte) ([]models.RawIssue, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty issue export")
	}

	var records []rawRecord
	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			Issues []rawRecord `json:"issues"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("decode issue export: %w", err)
		}
		records = envelope.Issues
	} else if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode issue export: %w", err)
	}

	issues := make([]models.RawIssue, 0, len(records))
	for _, r := range records {
		if r.PullRequest != nil {
			continue
		}
		issues = append(issues, r.RawIssue)
	}
	return issues, nil
}

type rawRecord struct {
	PullRequest *json.RawMessage `json:"pull_request"`
	models.RawIssue
}
