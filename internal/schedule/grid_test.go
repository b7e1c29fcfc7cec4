package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availgrid/internal/model"
)

func TestBucketClipsToWorkday(t *testing.T) {
	g := Grid{Location: time.UTC, WorkdayStart: 8, WorkdayEnd: 18}
	days := g.Bucket([]model.BusyInterval{iv(7, 0, 9, 0), iv(12, 15, 12, 45), iv(17, 30, 21, 0)}, dayWindow())

	require.Len(t, days, 1)
	assert.Equal(t, "2025-01-06", days[0].Date)
	assert.Equal(t, "Monday", days[0].Weekday)
	assert.Equal(t, []model.BusyRange{
		{Start: "08:00", End: "09:00"},
		{Start: "12:15", End: "12:45"},
		{Start: "17:30", End: "18:00"},
	}, days[0].Busy)
}

func TestBucketOutsideWorkdayIsFree(t *testing.T) {
	g := Grid{Location: time.UTC, WorkdayStart: 8, WorkdayEnd: 18}
	days := g.Bucket([]model.BusyInterval{iv(6, 0, 8, 0), iv(18, 0, 22, 0)}, dayWindow())

	require.Len(t, days, 1)
	assert.NotNil(t, days[0].Busy)
	assert.Empty(t, days[0].Busy)
}

func TestBucketAllDayFillsWorkday(t *testing.T) {
	g := Grid{Location: time.UTC, WorkdayStart: 8, WorkdayEnd: 19}
	w := model.Window{Start: base, End: base.AddDate(0, 0, 3)}
	days := g.Bucket([]model.BusyInterval{{Start: base.AddDate(0, 0, 1), End: base.AddDate(0, 0, 2)}}, w)

	require.Len(t, days, 3)
	assert.Empty(t, days[0].Busy)
	assert.Equal(t, []model.BusyRange{{Start: "08:00", End: "19:00"}}, days[1].Busy)
	assert.Empty(t, days[2].Busy)
}

func TestBucketMultiDayInterval(t *testing.T) {
	g := Grid{Location: time.UTC, WorkdayStart: 9, WorkdayEnd: 17}
	w := model.Window{Start: base, End: base.AddDate(0, 0, 3)}
	// Monday 15:00 until Wednesday 10:00.
	days := g.Bucket([]model.BusyInterval{{Start: at(15, 0), End: at(24+24+10, 0)}}, w)

	require.Len(t, days, 3)
	assert.Equal(t, []model.BusyRange{{Start: "15:00", End: "17:00"}}, days[0].Busy)
	assert.Equal(t, []model.BusyRange{{Start: "09:00", End: "17:00"}}, days[1].Busy)
	assert.Equal(t, []model.BusyRange{{Start: "09:00", End: "10:00"}}, days[2].Busy)
}

func TestBucketWorkdayEndingAtMidnight(t *testing.T) {
	g := Grid{Location: time.UTC, WorkdayStart: 0, WorkdayEnd: 24}
	w := model.Window{Start: base, End: base.AddDate(0, 0, 2)}
	days := g.Bucket([]model.BusyInterval{{Start: at(22, 0), End: at(26, 0)}}, w)

	require.Len(t, days, 2)
	assert.Equal(t, []model.BusyRange{{Start: "22:00", End: "24:00"}}, days[0].Busy)
	assert.Equal(t, []model.BusyRange{{Start: "00:00", End: "02:00"}}, days[1].Busy)
}

func TestBucketEnumeratesHorizonDays(t *testing.T) {
	g := Grid{Location: time.UTC, WorkdayStart: 8, WorkdayEnd: 18}

	days := g.Bucket(nil, model.NewWindow(base, 8))
	require.Len(t, days, 56)
	assert.Equal(t, "2025-01-06", days[0].Date)
	assert.Equal(t, "2025-03-02", days[55].Date)
	assert.Equal(t, "Sunday", days[55].Weekday)

	// Starting mid-day, the partial last day is included.
	days = g.Bucket(nil, model.NewWindow(at(10, 0), 1))
	require.Len(t, days, 8)
	assert.Equal(t, "2025-01-13", days[7].Date)
}

func TestBucketUsesOwnerDates(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	g := Grid{Location: ny, WorkdayStart: 8, WorkdayEnd: 18}
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, ny)
	w := model.Window{Start: start, End: start.AddDate(0, 0, 1)}

	// 14:00-15:00 UTC is 09:00-10:00 in New York.
	busy := model.BusyInterval{
		Start: time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC).In(ny),
		End:   time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC).In(ny),
	}
	days := g.Bucket([]model.BusyInterval{busy}, w)

	require.Len(t, days, 1)
	assert.Equal(t, "2025-01-06", days[0].Date)
	assert.Equal(t, []model.BusyRange{{Start: "09:00", End: "10:00"}}, days[0].Busy)
}

func TestBucketAcrossDSTTransition(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	g := Grid{Location: berlin, WorkdayStart: 8, WorkdayEnd: 18}
	start := time.Date(2025, 3, 29, 0, 0, 0, 0, berlin)
	w := model.Window{Start: start, End: start.AddDate(0, 0, 3)}

	var in []model.BusyInterval
	for d := 0; d < 3; d++ {
		s := time.Date(2025, 3, 29+d, 9, 0, 0, 0, berlin)
		in = append(in, model.BusyInterval{Start: s, End: s.Add(time.Hour)})
	}
	days := g.Bucket(in, w)

	require.Len(t, days, 3)
	assert.Equal(t, "2025-03-30", days[1].Date)
	for _, d := range days {
		assert.Equal(t, []model.BusyRange{{Start: "09:00", End: "10:00"}}, d.Busy, d.Date)
	}
}

func TestBucketEmptyDayMarshalsAsList(t *testing.T) {
	g := Grid{Location: time.UTC, WorkdayStart: 8, WorkdayEnd: 18}
	days := g.Bucket(nil, dayWindow())

	data, err := json.Marshal(days)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"date":"2025-01-06","weekday":"Monday","busy":[]}]`, string(data))
}
