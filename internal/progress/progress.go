// Package progress carries stage and item level progress events out of the pipeline.
// Reporting is a side effect only; nothing in the pipeline reads events back.
package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Kind classifies a progress event.
type Kind string

const (
	StageStarted  Kind = "stage_started"
	StageLoaded   Kind = "stage_loaded"
	StageDone     Kind = "stage_done"
	StageFailed   Kind = "stage_failed"
	ItemDone      Kind = "item_done"
	ItemCached    Kind = "item_cached"
	ItemSkipped   Kind = "item_skipped"
	ItemFailed    Kind = "item_failed"
	BatchDone     Kind = "batch_done"
	BatchFallback Kind = "batch_fallback"
	RunDone       Kind = "run_done"
)

// Event is one progress notification. Index is 1-based; Total is 0 when unknown.
type Event struct {
	Time    time.Time `json:"time"`
	RunID   string    `json:"run_id,omitempty"`
	Stage   string    `json:"stage"`
	Kind    Kind      `json:"kind"`
	Item    string    `json:"item,omitempty"`
	Message string    `json:"message,omitempty"`
	Index   int       `json:"index,omitempty"`
	Total   int       `json:"total,omitempty"`
}

// Reporter receives progress events. Implementations must be safe for concurrent use.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Event)

// Report calls f.
func (f ReporterFunc) Report(e Event) { f(e) }

// Nop discards every event.
var Nop Reporter = ReporterFunc(func(Event) {})

// OrNop returns r, or Nop when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop
	}
	return r
}

// LogReporter writes events to a zerolog logger at debug level, and failures at warn.
type LogReporter struct {
	Logger zerolog.Logger
}

// NewLogReporter creates a LogReporter on the global logger.
func NewLogReporter() *LogReporter {
	return &LogReporter{Logger: log.Logger}
}

// Report logs e.
func (l *LogReporter) Report(e Event) {
	ev := l.Logger.Debug()
	if e.Kind == StageFailed || e.Kind == ItemFailed || e.Kind == BatchFallback {
		ev = l.Logger.Warn()
	}
	ev = ev.Str("stage", e.Stage).Str("kind", string(e.Kind))
	if e.Item != "" {
		ev = ev.Str("item", e.Item)
	}
	if e.Total > 0 {
		ev = ev.Int("index", e.Index).Int("total", e.Total)
	}
	ev.Msg(e.Message)
}

// Multi fans events out to several reporters in order.
type Multi []Reporter

// Report forwards e to every non-nil reporter.
func (m Multi) Report(e Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}

// Recorder keeps every event in memory. It is used by tests and by the status server
// to expose the latest run.
type Recorder struct {
	events []Event
	mu     sync.Mutex
}

// Report appends e.
func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events for stage, in order.
func (r *Recorder) Kinds(stage string) []Kind {
	var kinds []Kind
	for _, e := range r.Events() {
		if e.Stage == stage {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

// Stamped returns a reporter that fills Time and RunID on events before passing them on.
func Stamped(r Reporter, runID string, now func() time.Time) Reporter {
	r = OrNop(r)
	if now == nil {
		now = time.Now
	}
	return ReporterFunc(func(e Event) {
		if e.Time.IsZero() {
			e.Time = now()
		}
		if e.RunID == "" {
			e.RunID = runID
		}
		r.Report(e)
	})
}
