// Package coverage tracks how much of a requested time range has been
// covered by records received so far.
package coverage

import (
	"time"

	"github.com/gridwatch/psefetch/internal/models"
)

// Tracker maps received record timestamps onto one fetch window and
// reports a progress fraction in [0, 1]. Progress is a running maximum,
// so out-of-order records within a page never make it regress. A tracker
// belongs to exactly one fetch; it is not safe for concurrent use.
type Tracker struct {
	start, end time.Time
	span       time.Duration
	progress   float64
	earliest   time.Time
	latest     time.Time
	observed   int
}

// NewTracker creates a tracker for the window. An empty window is
// trivially complete, so its progress starts at 1.0.
func NewTracker(w models.Window) *Tracker {
	t := &Tracker{
		start: w.Start,
		end:   w.End,
		span:  w.End.Sub(w.Start),
	}
	if w.IsEmpty() {
		t.progress = 1.0
	}
	return t
}

// Observe folds one record timestamp into the coverage state.
func (t *Tracker) Observe(ts time.Time) {
	t.observed++
	if t.earliest.IsZero() || ts.Before(t.earliest) {
		t.earliest = ts
	}
	if t.latest.IsZero() || ts.After(t.latest) {
		t.latest = ts
	}
	if t.span <= 0 {
		return
	}
	p := float64(ts.Sub(t.start)) / float64(t.span)
	if p > 1.0 {
		p = 1.0
	}
	if p > t.progress {
		t.progress = p
	}
}

// Progress returns the covered fraction of the window.
func (t *Tracker) Progress() float64 {
	return t.progress
}

// interval is the reading resolution of the upstream API.
const interval = 15 * time.Minute

// Complete reports whether the observed records reach the end of the
// window. Readings arrive at 15-minute resolution, so the window counts
// as filled once the final slot before End has been seen.
func (t *Tracker) Complete() bool {
	if t.span <= 0 {
		return true
	}
	return !t.latest.IsZero() && !t.latest.Add(interval).Before(t.end)
}

// Bounds returns the earliest and latest timestamps seen. ok is false
// until at least one record has been observed.
func (t *Tracker) Bounds() (earliest, latest time.Time, ok bool) {
	return t.earliest, t.latest, t.observed > 0
}

// ExpectedIntervals is the number of 15-minute reading slots inside the
// window, inclusive of both ends.
func ExpectedIntervals(w models.Window) int {
	return int(w.Duration().Minutes()/15) + 1
}
