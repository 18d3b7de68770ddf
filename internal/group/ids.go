package group

import (
	"fmt"
	"strings"
	"unicode"
)

// TopicSlug lowercases topic, turns spaces, slashes and underscores into hyphens
// and drops every other non-alphanumeric rune. An empty result becomes "general".
func TopicSlug(topic string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(topic)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '/' || r == '-' || r == '_':
			if s := b.String(); s != "" && !strings.HasSuffix(s, "-") {
				b.WriteByte('-')
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "general"
	}
	return slug
}

// idAllocator hands out run-wide unique cluster ids of the form {topic-slug}-{seq:03d}.
type idAllocator struct {
	next map[string]int
	used map[string]struct{}
}

func newIDAllocator() *idAllocator {
	return &idAllocator{
		next: make(map[string]int),
		used: make(map[string]struct{}),
	}
}

func (a *idAllocator) allocate(topic string) string {
	slug := TopicSlug(topic)
	seq := a.next[slug]
	if seq == 0 {
		seq = 1
	}
	id := fmt.Sprintf("%s-%03d", slug, seq)
	for {
		if _, taken := a.used[id]; !taken {
			break
		}
		seq++
		id = fmt.Sprintf("%s-%03d", slug, seq)
	}
	a.used[id] = struct{}{}
	a.next[slug] = seq + 1
	return id
}
