// Package normalize turns raw issue records into cleaned, truncated and
// noise-annotated NormalizedIssue values without any external calls.
package normalize

import (
	"regexp"
	"strings"
)

var (
	// htmlCommentRegex matches <!-- ... --> blocks, including multi-line ones
	htmlCommentRegex = regexp.MustCompile(`(?s)<!--.*?-->`)

	fenceOpenRegex  = regexp.MustCompile("```[a-zA-Z0-9_+-]*\n")
	fenceRegex      = regexp.MustCompile("```")
	inlineCodeRegex = regexp.MustCompile("`([^`]+)`")

	imageRegex = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	linkRegex  = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)

	headerRegex = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)

	boldStarRegex         = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicStarRegex       = regexp.MustCompile(`\*([^*\n]+)\*`)
	boldUnderscoreRegex   = regexp.MustCompile(`__([^_\n]+)__`)
	italicUnderscoreRegex = regexp.MustCompile(`\b_([^_\n]+)_\b`)

	horizontalRuleRegex = regexp.MustCompile(`(?m)^[-*_]{3,}[ \t]*$`)

	bulletRegex     = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	orderedRegex    = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	blockquoteRegex = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)

	inlineSpaceRegex   = regexp.MustCompile(`[ \t]+`)
	trailingSpaceRegex = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRunRegex      = regexp.MustCompile(`\n{3,}`)
)

// CleanMarkup strips markdown and HTML noise while keeping the readable text.
// The same function is applied to issue bodies and comment bodies.
func CleanMarkup(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = htmlCommentRegex.ReplaceAllString(text, "")

	// Code fences keep their content.
	text = fenceOpenRegex.ReplaceAllString(text, "")
	text = fenceRegex.ReplaceAllString(text, "")
	text = inlineCodeRegex.ReplaceAllString(text, "$1")

	// Images before links: the image syntax contains a link.
	text = imageRegex.ReplaceAllString(text, "$1")
	text = linkRegex.ReplaceAllString(text, "$1")

	text = headerRegex.ReplaceAllString(text, "")

	text = boldStarRegex.ReplaceAllString(text, "$1")
	text = italicStarRegex.ReplaceAllString(text, "$1")
	text = boldUnderscoreRegex.ReplaceAllString(text, "$1")
	text = italicUnderscoreRegex.ReplaceAllString(text, "$1")

	text = horizontalRuleRegex.ReplaceAllString(text, "")

	text = bulletRegex.ReplaceAllString(text, "")
	text = orderedRegex.ReplaceAllString(text, "")
	text = blockquoteRegex.ReplaceAllString(text, "")

	text = inlineSpaceRegex.ReplaceAllString(text, " ")
	text = trailingSpaceRegex.ReplaceAllString(text, "")
	text = blankRunRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
