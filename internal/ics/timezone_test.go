package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]icsDuration{
		"PT1H":      {Clock: time.Hour},
		"PT1H30M":   {Clock: 90 * time.Minute},
		"PT45S":     {Clock: 45 * time.Second},
		"P1D":       {Days: 1},
		"P2W":       {Days: 14},
		"P1DT12H":   {Days: 1, Clock: 12 * time.Hour},
		"+PT15M":    {Clock: 15 * time.Minute},
		" pt2h ":    {Clock: 2 * time.Hour},
		"P0DT0H30M": {Clock: 30 * time.Minute},
	}
	for in, want := range cases {
		got, err := parseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "P", "PT", "-PT1H", "1H", "PT1D", "P1H", "PT1H2", "PTT1H"} {
		_, err := parseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestDurationNominalDaysKeepWallClock(t *testing.T) {
	berlin := mustLoc(t, "Europe/Berlin")
	start := time.Date(2025, 3, 29, 10, 0, 0, 0, berlin)
	d, err := parseDuration("P1D")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 30, 10, 0, 0, 0, berlin), d.addTo(start))
}

func TestResolveValue(t *testing.T) {
	owner := mustLoc(t, "Europe/Berlin")

	tv, err := resolveValue("20250107", nil, owner)
	require.NoError(t, err)
	assert.True(t, tv.IsDate)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, owner), tv.T)

	tv, err = resolveValue("20250107T0930", nil, owner)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 7, 9, 30, 0, 0, owner), tv.T)

	tv, err = resolveValue("20250107T093000", map[string][]string{"tzid": {`"Asia/Tokyo"`}}, owner)
	require.NoError(t, err)
	assert.True(t, tv.T.Equal(time.Date(2025, 1, 7, 9, 30, 0, 0, mustLoc(t, "Asia/Tokyo"))))

	tv, err = resolveValue("20250107T093000", map[string][]string{"TZID": {"/mozilla.org/20050126_1/America/Chicago"}}, owner)
	require.NoError(t, err)
	assert.True(t, tv.T.Equal(time.Date(2025, 1, 7, 9, 30, 0, 0, mustLoc(t, "America/Chicago"))))
	assert.Empty(t, tv.UnknownTZID)

	tv, err = resolveValue("20250107T093000", map[string][]string{"TZID": {"Atlantis"}}, owner)
	require.NoError(t, err)
	assert.Equal(t, "Atlantis", tv.UnknownTZID)
	assert.Equal(t, time.Date(2025, 1, 7, 9, 30, 0, 0, owner), tv.T)

	for _, bad := range []string{"", "2025-01-07", "20251307T000000Z", "20250107T25"} {
		_, err := resolveValue(bad, nil, owner)
		assert.Error(t, err, bad)
	}
}
