package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// calendar wraps lines in a VCALENDAR with CRLF line endings.
func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//availgrid//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR")
	return []byte(strings.Join(all, "\r\n") + "\r\n")
}

func vevent(props ...string) []string {
	out := append([]string{"BEGIN:VEVENT"}, props...)
	return append(out, "END:VEVENT")
}

func events(blocks ...[]string) []string {
	var out []string
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

var testSource = Source{ID: "feed-1", URL: "https://example.com/cal.ics"}
