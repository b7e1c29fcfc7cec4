package ics

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	layoutDate     = "20060102"
	layoutLocal    = "20060102T150405"
	layoutUTC      = "20060102T150405Z"
	layoutLocalMin = "20060102T1504"
)

// Map of common Windows timezone names (as emitted by Outlook/Exchange) to
// IANA timezone names.
var windowsToIANA = map[string]string{
	"Pacific Standard Time":          "America/Los_Angeles",
	"Mountain Standard Time":         "America/Denver",
	"US Mountain Standard Time":      "America/Phoenix",
	"Central Standard Time":          "America/Chicago",
	"Eastern Standard Time":          "America/New_York",
	"Atlantic Standard Time":         "America/Halifax",
	"Alaskan Standard Time":          "America/Anchorage",
	"Hawaiian Standard Time":         "Pacific/Honolulu",
	"GMT Standard Time":              "Europe/London",
	"Greenwich Standard Time":        "Atlantic/Reykjavik",
	"W. Europe Standard Time":        "Europe/Berlin",
	"Central Europe Standard Time":   "Europe/Budapest",
	"Central European Standard Time": "Europe/Warsaw",
	"Romance Standard Time":          "Europe/Paris",
	"E. Europe Standard Time":        "Europe/Chisinau",
	"FLE Standard Time":              "Europe/Kiev",
	"Russian Standard Time":          "Europe/Moscow",
	"China Standard Time":            "Asia/Shanghai",
	"Tokyo Standard Time":            "Asia/Tokyo",
	"Korea Standard Time":            "Asia/Seoul",
	"India Standard Time":            "Asia/Kolkata",
	"Singapore Standard Time":        "Asia/Singapore",
	"AUS Eastern Standard Time":      "Australia/Sydney",
	"New Zealand Standard Time":      "Pacific/Auckland",
	"UTC":                            "UTC",
	"Coordinated Universal Time":     "UTC",
}

var (
	tzCacheMu sync.Mutex
	tzCache   = map[string]*time.Location{}
)

// resolveTZID maps a TZID parameter to a location. It understands IANA
// names, Windows names and path-prefixed IDs such as
// "/mozilla.org/20050126_1/America/New_York". ok is false when nothing
// matched; the caller then falls back to the owner's zone.
func resolveTZID(tzid string) (*time.Location, bool) {
	tzid = strings.Trim(strings.TrimSpace(tzid), `"`)
	if tzid == "" {
		return nil, false
	}

	tzCacheMu.Lock()
	defer tzCacheMu.Unlock()
	if loc, ok := tzCache[tzid]; ok {
		return loc, loc != nil
	}

	loc := lookupTZID(tzid)
	tzCache[tzid] = loc
	return loc, loc != nil
}

func lookupTZID(tzid string) *time.Location {
	candidates := []string{tzid}
	if iana, ok := windowsToIANA[tzid]; ok {
		candidates = append([]string{iana}, candidates...)
	}
	if parts := strings.Split(strings.Trim(tzid, "/"), "/"); len(parts) > 2 {
		candidates = append(candidates, strings.Join(parts[len(parts)-2:], "/"))
	}

	for _, c := range candidates {
		// time.LoadLocation("") and "Local" mean something else entirely.
		if c == "" || strings.EqualFold(c, "local") {
			continue
		}
		if loc, err := time.LoadLocation(c); err == nil {
			return loc
		}
	}
	return nil
}

// timeValue is one resolved DATE or DATE-TIME value.
type timeValue struct {
	T      time.Time
	IsDate bool
	// UnknownTZID is set when a TZID was present but could not be resolved
	// and the floating zone was used instead.
	UnknownTZID string
}

// resolveValue parses a DATE / DATE-TIME value with its property
// parameters into an absolute instant:
//
//   - VALUE=DATE or an 8-digit value: midnight in floating
//   - trailing Z: UTC
//   - TZID=...: that zone (Windows names mapped)
//   - otherwise (floating time): floating
func resolveValue(v string, params map[string][]string, floating *time.Location) (timeValue, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return timeValue{}, errors.New("empty time value")
	}
	if floating == nil {
		floating = time.UTC
	}

	if strings.EqualFold(paramValue(params, "VALUE"), "DATE") || !strings.ContainsAny(v, "Tt") {
		t, err := time.ParseInLocation(layoutDate, v, floating)
		if err != nil {
			return timeValue{}, fmt.Errorf("bad date %q", v)
		}
		return timeValue{T: t, IsDate: true}, nil
	}

	v = strings.ToUpper(v)
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(layoutUTC, v)
		if err != nil {
			return timeValue{}, fmt.Errorf("bad UTC date-time %q", v)
		}
		return timeValue{T: t}, nil
	}

	out := timeValue{}
	loc := floating
	if tzid := paramValue(params, "TZID"); tzid != "" {
		if l, ok := resolveTZID(tzid); ok {
			loc = l
		} else {
			out.UnknownTZID = tzid
		}
	}

	t, err := time.ParseInLocation(layoutLocal, v, loc)
	if err != nil {
		// Some producers drop the seconds.
		if t2, err2 := time.ParseInLocation(layoutLocalMin, v, loc); err2 == nil {
			t, err = t2, nil
		}
	}
	if err != nil {
		return timeValue{}, fmt.Errorf("bad date-time %q", v)
	}
	out.T = t
	return out, nil
}

// paramValue returns the first value of a property parameter, matching
// the name case-insensitively.
func paramValue(params map[string][]string, name string) string {
	for k, vs := range params {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// icsDuration is an RFC 5545 dur-value split into its nominal (days) and
// exact (clock) parts, so that "P1D" keeps wall-clock time across DST.
type icsDuration struct {
	Days  int
	Clock time.Duration
}

func (d icsDuration) addTo(t time.Time) time.Time {
	return t.AddDate(0, 0, d.Days).Add(d.Clock)
}

// parseDuration parses values like "PT1H30M", "P1D", "P2W", "P1DT12H".
// Negative durations are rejected since they cannot describe an event.
func parseDuration(v string) (icsDuration, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	s = strings.TrimPrefix(s, "+")
	if strings.HasPrefix(s, "-") {
		return icsDuration{}, fmt.Errorf("negative duration %q", v)
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return icsDuration{}, fmt.Errorf("bad duration %q", v)
	}
	s = s[1:]

	var out icsDuration
	inTime := false
	num := 0
	haveNum := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			haveNum = true
			continue
		case r == 'T':
			if inTime || haveNum {
				return icsDuration{}, fmt.Errorf("bad duration %q", v)
			}
			inTime = true
			continue
		}
		if !haveNum {
			return icsDuration{}, fmt.Errorf("bad duration %q", v)
		}
		switch {
		case r == 'W' && !inTime:
			out.Days += 7 * num
		case r == 'D' && !inTime:
			out.Days += num
		case r == 'H' && inTime:
			out.Clock += time.Duration(num) * time.Hour
		case r == 'M' && inTime:
			out.Clock += time.Duration(num) * time.Minute
		case r == 'S' && inTime:
			out.Clock += time.Duration(num) * time.Second
		default:
			return icsDuration{}, fmt.Errorf("bad duration %q", v)
		}
		num = 0
		haveNum = false
	}
	if haveNum {
		return icsDuration{}, fmt.Errorf("bad duration %q", v)
	}
	return out, nil
}
