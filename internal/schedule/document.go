package schedule

import (
	"time"

	"availgrid/internal/model"
)

// Display holds the configuration values echoed into the document for the
// page to render. None of them influence the computation.
type Display struct {
	OwnerName          string
	WeeklyProjectHours float64
	Timezone           string
	WorkdayStart       int
	WorkdayEnd         int
	HorizonWeeks       int
	Configured         bool
}

// Assemble builds the schedule document from the bucketed days.
func Assemble(d Display, days []model.DayBucket, generatedAt time.Time) *model.ScheduleDocument {
	if days == nil {
		days = []model.DayBucket{}
	}
	return &model.ScheduleDocument{
		LastUpdated:        generatedAt,
		OwnerName:          d.OwnerName,
		WeeklyProjectHours: d.WeeklyProjectHours,
		Timezone:           d.Timezone,
		WorkdayStart:       d.WorkdayStart,
		WorkdayEnd:         d.WorkdayEnd,
		HorizonWeeks:       d.HorizonWeeks,
		Configured:         d.Configured,
		Days:               days,
	}
}
