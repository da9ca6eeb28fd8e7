package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PageResponse is the raw JSON envelope returned by the PSE reporting API.
// The value array holds the records for this page; nextLink, when present,
// is the verbatim URL of the following page.
type PageResponse struct {
	Value    []Record `json:"value"`
	NextLink string   `json:"nextLink,omitempty"`
}

// timeLayout is the dtime format the reporting API emits.
const timeLayout = "2006-01-02 15:04:05"

// Timestamp decodes the API's "YYYY-MM-DD HH:MM:SS" dtime strings,
// accepting RFC 3339 as well. Bare values are interpreted as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(timeLayout))
}

// Record is a single generator-unit reading at 15-minute resolution.
// Numeric fields are pointers because the upstream API reports them as
// nullable; a nil value means the reading was absent for that field.
type Record struct {
	BusinessDate  string    `json:"business_date"`
	Dtime         Timestamp `json:"dtime"`
	DtimeUTC      Timestamp `json:"dtime_utc"`
	ResourceCode  string    `json:"resource_code"`
	PowerPlant    string    `json:"power_plant"`
	OperatingMode string    `json:"operating_mode"`
	GenerationMW  *float64  `json:"gen_mw"`
	CapacityMW    *float64  `json:"cap_mw"`
}

// Timestamp returns the reading time, preferring dtime and falling back
// to dtime_utc when the API omits it.
func (r Record) Timestamp() time.Time {
	if !r.Dtime.IsZero() {
		return r.Dtime.Time
	}
	return r.DtimeUTC.Time
}

// Page is a decoded page of records plus the continuation cursor.
// An empty NextLink signals exhaustion.
type Page struct {
	Records  []Record
	NextLink string
}

// Filter restricts a fetch to a set of power plants or a set of resource
// codes. Both slices empty means no filtering. Plants and Resources are
// mutually exclusive; Validate rejects a filter that sets both.
type Filter struct {
	Plants    []string
	Resources []string
}

// IsZero reports whether the filter imposes no restriction.
func (f Filter) IsZero() bool {
	return len(f.Plants) == 0 && len(f.Resources) == 0
}

// Validate checks the filter for internal consistency.
func (f Filter) Validate() error {
	if len(f.Plants) > 0 && len(f.Resources) > 0 {
		return fmt.Errorf("filter cannot combine power plants and resource codes")
	}
	return nil
}

// Window is a half-open fetch range [Start, End) with an optional filter.
// It is immutable after creation and drives one pagination run.
type Window struct {
	Start  time.Time
	End    time.Time
	Filter Filter
}

// Validate rejects inverted ranges and inconsistent filters.
func (w Window) Validate() error {
	if w.Start.After(w.End) {
		return fmt.Errorf("window start %s is after end %s",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return w.Filter.Validate()
}

// IsEmpty reports whether the window spans no time at all.
func (w Window) IsEmpty() bool {
	return w.Start.Equal(w.End)
}

// Duration is the span of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Key returns a stable identifier for the window and its filter, used as
// a cache key so identical queries are not refetched within one process.
func (w Window) Key(pageSize int) string {
	filter := "all"
	switch {
	case len(w.Filter.Resources) > 0:
		filter = "res:" + strings.Join(sortedCopy(w.Filter.Resources), ",")
	case len(w.Filter.Plants) > 0:
		filter = "plant:" + strings.Join(sortedCopy(w.Filter.Plants), ",")
	}
	return fmt.Sprintf("%s_%s_%d_%s",
		w.Start.UTC().Format("2006-01-02T15:04:05"),
		w.End.UTC().Format("2006-01-02T15:04:05"),
		pageSize,
		filter,
	)
}

// HourlyAggregate holds the per-field arithmetic mean of all readings for
// one resource code within one UTC hour. The counts record how many
// non-nil readings contributed to each mean; hours with fewer than four
// readings are still emitted from whatever readings are present.
type HourlyAggregate struct {
	ResourceCode    string
	PowerPlant      string
	Hour            time.Time
	GenerationMW    *float64
	CapacityMW      *float64
	GenerationCount int
	CapacityCount   int
	SampleCount     int
}

// FetchResult is the caller-visible outcome of one pagination run. When
// Partial is true the fetch stopped early but Records still holds every
// record from the pages that completed.
type FetchResult struct {
	Window   Window
	Records  []Record
	Pages    int
	Partial  bool
	Earliest time.Time
	Latest   time.Time
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
