package orchestrator

import (
	"fmt"
	"strings"

	"github.com/thebtf/ideaforge/internal/apperr"
)

// Stage names in execution order.
const (
	StageNormalize = "normalize"
	StageSummarize = "summarize"
	StageGroup     = "group"
	StageRank      = "rank"
)

// Stages lists every stage in execution order.
var Stages = []string{StageNormalize, StageSummarize, StageGroup, StageRank}

// Force selects the first stage to recompute regardless of existing artifacts.
// Every stage after it is recomputed as well.
type Force string

const (
	ForceNone Force = "none"
	// ForceNormalize re-reads the issue source but keeps cached summaries.
	ForceNormalize Force = "normalize"
	ForceSummarize Force = "summarize"
	ForceGroup     Force = "group"
	ForceAll       Force = "all"
)

// ParseForce converts a command-line value into a Force. An empty string means ForceNone.
func ParseForce(s string) (Force, error) {
	switch f := Force(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return ForceNone, nil
	case ForceNone, ForceNormalize, ForceSummarize, ForceGroup, ForceAll:
		return f, nil
	default:
		return "", &apperr.ConfigurationError{
			Field:   "force",
			Message: fmt.Sprintf("unknown level %q (want none, normalize, summarize, group or all)", s),
		}
	}
}

// from returns the index of the first forced stage, or len(Stages) when nothing is forced.
func (f Force) from() int {
	switch f {
	case ForceAll, ForceNormalize:
		return 0
	case ForceSummarize:
		return 1
	case ForceGroup:
		return 2
	default:
		return len(Stages)
	}
}

// Forces reports whether stage must be recomputed.
func (f Force) Forces(stage string) bool {
	for i, s := range Stages {
		if s == stage {
			return i >= f.from()
		}
	}
	return false
}

// BypassesSummaryCache reports whether cached per-issue summaries are ignored.
func (f Force) BypassesSummaryCache() bool {
	return f == ForceSummarize || f == ForceAll
}
