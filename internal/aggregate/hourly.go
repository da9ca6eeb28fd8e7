// Package aggregate collapses 15-minute generator readings into hourly
// values. All functions are pure: they never touch the network or mutate
// their inputs, so they need no synchronization.
package aggregate

import (
	"sort"
	"time"

	"github.com/gridwatch/psefetch/internal/models"
)

type hourKey struct {
	resourceCode string
	hourUnix     int64
}

type accumulator struct {
	plant   string
	hour    time.Time
	genSum  float64
	genN    int
	capSum  float64
	capN    int
	samples int
}

// Hourly groups records by (resource code, UTC hour) and computes the
// unweighted arithmetic mean of each numeric field. Hours with fewer than
// four readings are aggregated from whatever readings are present; a nil
// field excludes the record from that field's mean only. Output is sorted
// by resource code then hour so identical inputs always yield identical
// output.
func Hourly(records []models.Record) []models.HourlyAggregate {
	buckets := make(map[hourKey]*accumulator)

	for _, rec := range records {
		hour := rec.Timestamp().UTC().Truncate(time.Hour)
		key := hourKey{resourceCode: rec.ResourceCode, hourUnix: hour.Unix()}

		acc, ok := buckets[key]
		if !ok {
			acc = &accumulator{plant: rec.PowerPlant, hour: hour}
			buckets[key] = acc
		}
		acc.samples++
		if rec.GenerationMW != nil {
			acc.genSum += *rec.GenerationMW
			acc.genN++
		}
		if rec.CapacityMW != nil {
			acc.capSum += *rec.CapacityMW
			acc.capN++
		}
	}

	out := make([]models.HourlyAggregate, 0, len(buckets))
	for key, acc := range buckets {
		agg := models.HourlyAggregate{
			ResourceCode:    key.resourceCode,
			PowerPlant:      acc.plant,
			Hour:            acc.hour,
			GenerationCount: acc.genN,
			CapacityCount:   acc.capN,
			SampleCount:     acc.samples,
		}
		if acc.genN > 0 {
			mean := acc.genSum / float64(acc.genN)
			agg.GenerationMW = &mean
		}
		if acc.capN > 0 {
			mean := acc.capSum / float64(acc.capN)
			agg.CapacityMW = &mean
		}
		out = append(out, agg)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ResourceCode != out[j].ResourceCode {
			return out[i].ResourceCode < out[j].ResourceCode
		}
		return out[i].Hour.Before(out[j].Hour)
	})

	return out
}
