package api

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gridwatch/psefetch/internal/coverage"
	"github.com/gridwatch/psefetch/internal/models"
)

// WalkState enumerates the pagination state machine.
type WalkState int

const (
	StateFetching WalkState = iota
	StateExhausted
	StateFailed
)

func (s WalkState) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PaginationError reports a continuation-cursor anomaly that would make
// pagination loop or move backwards in time. It is fatal to the current
// fetch and never retried.
type PaginationError struct {
	Page   int
	Cursor string
	Reason string
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("pagination invariant violated at page %d: %s (cursor %q)", e.Page, e.Reason, e.Cursor)
}

// Progress is the per-page notification emitted while a fetch runs, so a
// presentation layer can render status without waiting for completion.
type Progress struct {
	RunID    string
	State    WalkState
	Page     int
	Records  int
	Fraction float64
	Earliest time.Time
	Latest   time.Time
	Partial  bool
}

type ProgressFunc func(Progress)

// PageSource abstracts the page-fetching client so the walker can be
// tested against a fake sequence of pages.
type PageSource interface {
	FirstPageURL(w models.Window, pageSize int) string
	FetchPage(ctx context.Context, pageURL string) (models.Page, error)
}

// Walker drives continuation-token pagination for one window at a time.
// Pages are requested strictly sequentially because each cursor depends
// on the previous response. Every page request goes through the retry
// executor; cursor anomalies bypass it and fail the fetch directly.
type Walker struct {
	source     PageSource
	exec       *Executor
	pageSize   int
	logger     *logrus.Logger
	onProgress ProgressFunc
}

// NewWalker creates a walker. onProgress may be nil. pageSize is clamped
// by the caller to the API's documented maximum.
func NewWalker(source PageSource, exec *Executor, pageSize int, logger *logrus.Logger, onProgress ProgressFunc) *Walker {
	return &Walker{
		source:     source,
		exec:       exec,
		pageSize:   pageSize,
		logger:     logger,
		onProgress: onProgress,
	}
}

// Run walks every page of the window. On failure it returns the records
// accumulated so far with Partial set, alongside the error: completed
// pages are never discarded. The walk stops early once coverage reaches
// the end of the window even if the server offers further pages.
func (w *Walker) Run(ctx context.Context, window models.Window) (models.FetchResult, error) {
	result := models.FetchResult{Window: window}

	if err := window.Validate(); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}

	runID := uuid.NewString()
	log := w.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"start":  window.Start.Format(time.RFC3339),
		"end":    window.End.Format(time.RFC3339),
	})

	tracker := coverage.NewTracker(window)

	if window.IsEmpty() {
		log.Info("Empty window, nothing to fetch")
		w.emit(Progress{RunID: runID, State: StateExhausted, Fraction: 1.0})
		return result, nil
	}

	state := StateFetching
	cursor := w.source.FirstPageURL(window, w.pageSize)
	seenCursors := map[string]struct{}{cursor: {}}
	seenRecords := make(map[string]struct{})
	var prevPageMax time.Time

	for state == StateFetching {
		if err := ctx.Err(); err != nil {
			result.Partial = true
			w.emit(w.snapshot(runID, StateFailed, result, tracker))
			return result, err
		}

		pageIndex := result.Pages + 1
		log.WithField("page", pageIndex).Debug("Requesting page")

		var page models.Page
		err := w.exec.Do(ctx, func(ctx context.Context) error {
			var fetchErr error
			page, fetchErr = w.source.FetchPage(ctx, cursor)
			return fetchErr
		})
		if err != nil {
			pagesFetched.WithLabelValues("error").Inc()
			result.Partial = true
			w.emit(w.snapshot(runID, StateFailed, result, tracker))
			return result, fmt.Errorf("fetching page %d (cursor %q): %w", pageIndex, cursor, err)
		}
		pagesFetched.WithLabelValues("ok").Inc()
		recordsFetched.Add(float64(len(page.Records)))

		var pageMax time.Time
		for _, rec := range page.Records {
			ts := rec.Timestamp()
			tracker.Observe(ts)
			if ts.After(pageMax) {
				pageMax = ts
			}
			key := recordKey(rec)
			if _, dup := seenRecords[key]; dup {
				continue
			}
			seenRecords[key] = struct{}{}
			result.Records = append(result.Records, rec)
		}
		result.Pages++
		result.Earliest, result.Latest, _ = tracker.Bounds()

		// Pagination must be strictly monotonic in time; a page whose
		// newest record is older than the previous page's means the
		// cursor went backwards.
		if !pageMax.IsZero() {
			if !prevPageMax.IsZero() && pageMax.Before(prevPageMax) {
				result.Partial = true
				w.emit(w.snapshot(runID, StateFailed, result, tracker))
				return result, &PaginationError{Page: pageIndex, Cursor: cursor, Reason: "page timestamps moved backwards"}
			}
			prevPageMax = pageMax
		}

		switch {
		case page.NextLink == "":
			state = StateExhausted
		case tracker.Complete():
			// Window filled; remaining pages lie past the requested range.
			state = StateExhausted
		default:
			if _, dup := seenCursors[page.NextLink]; dup {
				result.Partial = true
				w.emit(w.snapshot(runID, StateFailed, result, tracker))
				return result, &PaginationError{Page: pageIndex, Cursor: page.NextLink, Reason: "continuation token repeated"}
			}
			seenCursors[page.NextLink] = struct{}{}
			cursor = page.NextLink
		}

		log.WithFields(logrus.Fields{
			"page":     result.Pages,
			"records":  len(result.Records),
			"coverage": fmt.Sprintf("%.1f%%", tracker.Progress()*100),
			"state":    state.String(),
		}).Info("Page complete")

		w.emit(w.snapshot(runID, state, result, tracker))
	}

	log.WithFields(logrus.Fields{
		"pages":   result.Pages,
		"records": len(result.Records),
	}).Info("Fetch complete")

	return result, nil
}

func (w *Walker) snapshot(runID string, state WalkState, result models.FetchResult, tracker *coverage.Tracker) Progress {
	earliest, latest, _ := tracker.Bounds()
	return Progress{
		RunID:    runID,
		State:    state,
		Page:     result.Pages,
		Records:  len(result.Records),
		Fraction: tracker.Progress(),
		Earliest: earliest,
		Latest:   latest,
		Partial:  result.Partial,
	}
}

func (w *Walker) emit(p Progress) {
	if w.onProgress != nil {
		w.onProgress(p)
	}
}

// recordKey identifies a reading for deduplication across overlapping
// pages.
func recordKey(r models.Record) string {
	return r.ResourceCode + "|" + r.OperatingMode + "|" + r.Timestamp().UTC().Format(time.RFC3339)
}
