package model

import "time"

// Occurrence is a single concrete instance of a calendar event after
// recurrence expansion and timezone resolution.
//
// It deliberately has no title, description, location or attendee fields:
// nothing downstream of the parser can leak event content.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// BusyInterval is a half-open range [Start, End) in the owner's timezone.
// Within a merged set no two intervals overlap or touch.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Window is the half-open horizon [Start, End) that all intervals are
// clipped to.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns [now, now + weeks). AddDate keeps the edge on the same
// wall-clock time across DST changes.
func NewWindow(now time.Time, weeks int) Window {
	return Window{Start: now, End: now.AddDate(0, 0, 7*weeks)}
}

// BusyRange is a wall-clock range within one day's workday window,
// formatted as "HH:MM". End may be "24:00" when the workday ends at midnight.
type BusyRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DayBucket is the per-day slice of the schedule restricted to workday hours.
type DayBucket struct {
	Date    string      `json:"date"` // YYYY-MM-DD in the owner's timezone
	Weekday string      `json:"weekday"`
	Busy    []BusyRange `json:"busy"`
}

// ScheduleDocument is the sole persisted artifact. It is regenerated from
// the feeds on every run and fully replaces the previous one.
type ScheduleDocument struct {
	LastUpdated        time.Time   `json:"lastUpdated"`
	OwnerName          string      `json:"ownerName"`
	WeeklyProjectHours float64     `json:"weeklyProjectHours"`
	Timezone           string      `json:"timezone"`
	WorkdayStart       int         `json:"workdayStart"`
	WorkdayEnd         int         `json:"workdayEnd"`
	HorizonWeeks       int         `json:"horizonWeeks"`
	Configured         bool        `json:"configured"` // false when no feed URL is set
	Days               []DayBucket `json:"days"`
}
