package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availgrid/internal/config"
	appLog "availgrid/internal/log"
	"availgrid/internal/model"
)

func execute(ctx context.Context, args ...string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(ctx)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func readSchedule(t *testing.T, path string) model.ScheduleDocument {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc model.ScheduleDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

const validConfig = `ownerName: Nikki
timezone: UTC
workdayStart: 8
workdayEnd: 18
fetchRetries: 0
`

func TestInitWritesLoadableConfig(t *testing.T) {
	t.Setenv("ICS_URLS", "")
	p := filepath.Join(t.TempDir(), "availgrid", "config.yaml")

	err := execute(context.Background(), "init", "--config", p, "--owner", "Nikki", "--timezone", "Europe/Berlin")
	require.NoError(t, err)

	cfg, err := config.Load(p)
	require.NoError(t, err)
	assert.Equal(t, "Nikki", cfg.OwnerName)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, config.DefaultConfig().Refresh, cfg.Refresh)

	err = execute(context.Background(), "init", "--config", p, "--owner", "Someone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, execute(context.Background(), "init", "--config", p, "--owner", "Someone", "--force"))
	cfg, err = config.Load(p)
	require.NoError(t, err)
	assert.Equal(t, "Someone", cfg.OwnerName)
}

func TestInitRejectsInvalidValues(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")

	err := execute(context.Background(), "init", "--config", p, "--owner", "Nikki", "--timezone", "Nowhere/Special")
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Equal(t, 2, ExitCode(err))

	_, statErr := os.Stat(p)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateWritesSchedule(t *testing.T) {
	day := time.Now().UTC().AddDate(0, 0, 2)
	start := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
	body := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:x",
		"SUMMARY:Dentist",
		"DTSTART:" + start.Format("20060102T150405Z"),
		"DTEND:" + start.Add(time.Hour).Format("20060102T150405Z"),
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	t.Setenv("ICS_URLS", srv.URL+"/a.ics, ")
	p := writeConfig(t, validConfig+"icsUrls:\n  - https://ignored.example/cal.ics\n")
	out := filepath.Join(t.TempDir(), "public", "schedule.json")

	require.NoError(t, execute(context.Background(), "generate", "--config", p, "--output", out, "--horizon-weeks", "1"))

	doc := readSchedule(t, out)
	assert.True(t, doc.Configured)
	assert.Equal(t, 1, doc.HorizonWeeks)
	assert.GreaterOrEqual(t, len(doc.Days), 7)
	assert.LessOrEqual(t, len(doc.Days), 8)

	var found bool
	for _, d := range doc.Days {
		if d.Date == start.Format("2006-01-02") {
			found = true
			assert.Equal(t, []model.BusyRange{{Start: "10:00", End: "11:00"}}, d.Busy)
		}
	}
	assert.True(t, found)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Dentist")
}

func TestRootDefaultsToGenerate(t *testing.T) {
	t.Setenv("ICS_URLS", "")
	dir := t.TempDir()
	prom := filepath.Join(dir, "availgrid.prom")
	p := writeConfig(t, validConfig+"metricsFile: "+prom+"\nicsUrls:\n  - YOUR_ICS_URL_HERE\n")
	out := filepath.Join(dir, "schedule.json")

	require.NoError(t, execute(context.Background(), "--config", p, "--output", out))

	metricsText, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), `availgrid_runs_total{result="ok"} 1`)
	assert.Contains(t, string(metricsText), "availgrid_last_run_sources 0")

	doc := readSchedule(t, out)
	assert.False(t, doc.Configured)
	assert.Equal(t, 8, doc.HorizonWeeks)
	for _, d := range doc.Days {
		assert.Empty(t, d.Busy)
	}
}

func TestGenerateInvalidConfigKeepsOutput(t *testing.T) {
	t.Setenv("ICS_URLS", "")
	p := writeConfig(t, "timezone: UTC\nworkdayStart: 10\nworkdayEnd: 9\n")
	out := filepath.Join(t.TempDir(), "schedule.json")
	require.NoError(t, os.WriteFile(out, []byte("previous"), 0o644))

	err := execute(context.Background(), "generate", "--config", p, "--output", out)
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Equal(t, 2, ExitCode(err))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestGenerateMissingConfig(t *testing.T) {
	err := execute(context.Background(), "generate", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestWatchRunNowThenStops(t *testing.T) {
	t.Setenv("ICS_URLS", "")
	p := writeConfig(t, validConfig)
	out := filepath.Join(t.TempDir(), "schedule.json")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, execute(ctx, "watch", "--run-now", "--config", p, "--output", out))

	doc := readSchedule(t, out)
	assert.Equal(t, "Nikki", doc.OwnerName)
}

func TestCronLoggerForwardsErrors(t *testing.T) {
	var buf bytes.Buffer
	appLog.Init(appLog.Options{Level: "debug", Format: "json", Writer: &buf})
	t.Cleanup(func() { appLog.Init(appLog.Options{}) })

	cronLogger{}.Error(errors.New("boom"), "panic", "stack", "trace")
	cronLogger{}.Info("wake", "now", "later")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "cron: panic", first["message"])
	assert.Equal(t, "error", first["level"])
	assert.Equal(t, "trace", first["stack"])
	assert.Contains(t, fmt.Sprint(first["error"]), "boom")

	assert.Contains(t, lines[1], `"cron: wake"`)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("x")))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("wrap: %w", config.ErrInvalid)))
}
