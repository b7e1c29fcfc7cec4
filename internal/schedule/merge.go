// Package schedule turns concrete occurrences into the day-by-day busy grid
// published in the schedule document.
package schedule

import (
	"sort"
	"time"

	"availgrid/internal/model"
)

// Merge clips every occurrence to w, converts it to loc and coalesces the
// result into a sorted set of disjoint, non-touching busy intervals.
//
// The output depends only on the set of inputs, not on their order.
func Merge(occs []model.Occurrence, w model.Window, loc *time.Location) []model.BusyInterval {
	if loc == nil {
		loc = time.UTC
	}

	clipped := make([]model.BusyInterval, 0, len(occs))
	for _, o := range occs {
		start, end := o.Start, o.End
		if start.Before(w.Start) {
			start = w.Start
		}
		if end.After(w.End) {
			end = w.End
		}
		if !end.After(start) {
			continue
		}
		clipped = append(clipped, model.BusyInterval{Start: start.In(loc), End: end.In(loc)})
	}

	return Coalesce(clipped)
}

// Coalesce sorts intervals by (start, end) and joins any that overlap or
// touch. Empty intervals are dropped. The input slice is not modified.
func Coalesce(in []model.BusyInterval) []model.BusyInterval {
	sorted := make([]model.BusyInterval, 0, len(in))
	for _, iv := range in {
		if iv.End.After(iv.Start) {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].End.Before(sorted[j].End)
	})

	out := make([]model.BusyInterval, 0, len(sorted))
	for _, iv := range sorted {
		if n := len(out); n > 0 && !iv.Start.After(out[n-1].End) {
			if iv.End.After(out[n-1].End) {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
