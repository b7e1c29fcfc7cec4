package schedule

import (
	"fmt"
	"time"

	"availgrid/internal/model"
)

// Grid projects merged busy intervals onto the owner's workday hours.
type Grid struct {
	Location     *time.Location
	WorkdayStart int // hour, 0-23
	WorkdayEnd   int // hour, 1-24; 24 means midnight of the next day
}

// Bucket returns one DayBucket per owner-zone calendar date, starting at the
// date containing w.Start and continuing while that date's midnight is
// before w.End. Each busy range is the intersection of an interval with
// [WorkdayStart:00, WorkdayEnd:00) on that date, in ascending order.
// A day with nothing busy carries an empty, non-nil list.
func (g Grid) Bucket(intervals []model.BusyInterval, w model.Window) []model.DayBucket {
	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}

	first := w.Start.In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)

	days := []model.DayBucket{}
	i := 0
	for ; day.Before(w.End); day = day.AddDate(0, 0, 1) {
		bucket := model.DayBucket{
			Date:    day.Format("2006-01-02"),
			Weekday: day.Weekday().String(),
			Busy:    []model.BusyRange{},
		}

		opens := time.Date(day.Year(), day.Month(), day.Day(), g.WorkdayStart, 0, 0, 0, loc)
		closes := time.Date(day.Year(), day.Month(), day.Day(), g.WorkdayEnd, 0, 0, 0, loc)

		// Intervals are sorted and disjoint; those ending before today's
		// workday opens can never matter for later days either.
		for i < len(intervals) && !intervals[i].End.After(opens) {
			i++
		}
		for j := i; j < len(intervals) && intervals[j].Start.Before(closes); j++ {
			start, end := intervals[j].Start, intervals[j].End
			if start.Before(opens) {
				start = opens
			}
			if end.After(closes) {
				end = closes
			}
			if !end.After(start) {
				continue
			}
			bucket.Busy = append(bucket.Busy, model.BusyRange{
				Start: clockLabel(start, day, loc),
				End:   clockLabel(end, day, loc),
			})
		}

		days = append(days, bucket)
	}
	return days
}

// clockLabel formats t as "HH:MM" relative to day, so the following
// midnight reads "24:00" rather than "00:00".
func clockLabel(t, day time.Time, loc *time.Location) string {
	local := t.In(loc)
	if local.Year() != day.Year() || local.YearDay() != day.YearDay() {
		return "24:00"
	}
	return fmt.Sprintf("%02d:%02d", local.Hour(), local.Minute())
}
