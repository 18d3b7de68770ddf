package llm

import (
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/thebtf/ideaforge/internal/apperr"
)

var fencedBlockRegex = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// ExtractJSON locates a JSON value inside a reply. It tries, in order, the whole
// trimmed reply, the first fenced code block, and then the outermost {...} and
// [...] spans, starting with whichever bracket opens first.
func ExtractJSON(reply string) Outcome[[]byte] {
	text := strings.TrimSpace(reply)
	if text == "" {
		return Rejected[[]byte](apperr.ReasonParse, "empty reply")
	}

	if json.Valid([]byte(text)) {
		return Valid([]byte(text))
	}

	if m := fencedBlockRegex.FindStringSubmatch(text); m != nil {
		block := strings.TrimSpace(m[1])
		if json.Valid([]byte(block)) {
			return Valid([]byte(block))
		}
	}

	pairs := [][2]string{{"{", "}"}, {"[", "]"}}
	if arr, obj := strings.Index(text, "["), strings.Index(text, "{"); arr >= 0 && (obj < 0 || arr < obj) {
		pairs[0], pairs[1] = pairs[1], pairs[0]
	}
	for _, pair := range pairs {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start >= 0 && end > start {
			span := text[start : end+1]
			if json.Valid([]byte(span)) {
				return Valid([]byte(span))
			}
		}
	}

	return Rejected[[]byte](apperr.ReasonParse, "no JSON value found in reply (%d chars)", len(text))
}
