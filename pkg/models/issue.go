// Package models contains domain models for ideaforge.
package models

import (
	"time"
)

// ReactionKinds lists the reaction names reported by the issue tracker, in display order.
var ReactionKinds = []string{"+1", "-1", "laugh", "hooray", "confused", "heart", "rocket", "eyes"}

// Reactions maps a reaction name to its count. Zero counts are never stored.
type Reactions map[string]int

// Total returns the sum of all reaction counts.
func (r Reactions) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// User is the author reference of a raw issue or comment.
type User struct {
	Login string `json:"login"`
}

// Label is a raw issue label.
type Label struct {
	Name string `json:"name"`
}

// RawReactions is the reaction rollup attached to raw issues and comments.
type RawReactions struct {
	PlusOne  int `json:"+1"`
	MinusOne int `json:"-1"`
	Laugh    int `json:"laugh"`
	Hooray   int `json:"hooray"`
	Confused int `json:"confused"`
	Heart    int `json:"heart"`
	Rocket   int `json:"rocket"`
	Eyes     int `json:"eyes"`
}

// Counts converts the rollup into a Reactions map without zero entries.
func (r RawReactions) Counts() Reactions {
	values := []int{r.PlusOne, r.MinusOne, r.Laugh, r.Hooray, r.Confused, r.Heart, r.Rocket, r.Eyes}
	counts := make(Reactions)
	for i, kind := range ReactionKinds {
		if values[i] > 0 {
			counts[kind] = values[i]
		}
	}
	return counts
}

// RawComment is a comment as delivered by the issue source.
type RawComment struct {
	CreatedAt time.Time    `json:"created_at"`
	User      *User        `json:"user"`
	Body      string       `json:"body"`
	Reactions RawReactions `json:"reactions"`
	ID        int64        `json:"id"`
}

// Author returns the comment author login, or nil for deleted users.
func (c RawComment) Author() *string {
	if c.User == nil || c.User.Login == "" {
		return nil
	}
	login := c.User.Login
	return &login
}

// RawIssue is an issue record as delivered by the issue source, already paginated
// and joined with its comments.
type RawIssue struct {
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	User      *User        `json:"user"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	State     string       `json:"state"`
	URL       string       `json:"html_url"`
	Labels    []Label      `json:"labels"`
	Comments  []RawComment `json:"comments"`
	Reactions RawReactions `json:"reactions"`
	ID        int64        `json:"id"`
	Number    int          `json:"number"`
}

// Author returns the issue author login, or an empty string when unknown.
func (i RawIssue) Author() string {
	if i.User == nil {
		return ""
	}
	return i.User.Login
}

// LabelNames returns label names in source order.
func (i RawIssue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

// NormalizedComment is a cleaned issue comment.
type NormalizedComment struct {
	CreatedAt time.Time `json:"created_at"`
	Author    *string   `json:"author"`
	Reactions Reactions `json:"reactions"`
	Body      string    `json:"body"`
	ID        int64     `json:"id"`
}

// AuthorOr returns the author login or fallback for deleted users.
func (c NormalizedComment) AuthorOr(fallback string) string {
	if c.Author == nil || *c.Author == "" {
		return fallback
	}
	return *c.Author
}

// NormalizedIssue is an issue with cleaned, truncated text and noise annotations.
// It is immutable once written to the issues artifact.
type NormalizedIssue struct {
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Reactions      Reactions           `json:"reactions"`
	Title          string              `json:"title"`
	Body           string              `json:"body"`
	State          string              `json:"state"`
	URL            string              `json:"url"`
	NoiseReason    string              `json:"noise_reason,omitempty"`
	Labels         []string            `json:"labels"`
	Comments       []NormalizedComment `json:"comments"`
	ID             int64               `json:"id"`
	Number         int                 `json:"number"`
	OriginalLength int                 `json:"original_length"`
	IsNoise        bool                `json:"is_noise"`
	Truncated      bool                `json:"truncated"`
}
