package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "availgrid/internal/log"
)

// Property names the library has no stable constant for across versions.
const (
	propDuration     ical.ComponentProperty = "DURATION"
	propRDate        ical.ComponentProperty = "RDATE"
	propRecurrenceID ical.ComponentProperty = "RECURRENCE-ID"
	propStatus       ical.ComponentProperty = "STATUS"
	propTransp       ical.ComponentProperty = "TRANSP"
	propMSBusyStatus ical.ComponentProperty = "X-MICROSOFT-CDO-BUSYSTATUS"
)

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion operates on this type.
//
// It carries timing data only. Summary, description, location and
// attendees are never read from the document.
type ParsedEvent struct {
	Source Source

	UID string

	// Start / End are absolute instants. For timed events Start keeps the
	// event's own location so RRULE expansion follows its wall clock.
	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	RDates     []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool       // true if this VEVENT is an override for a recurring instance

	// Free is set for transparent, Outlook "free" and cancelled events.
	// They produce no busy time but still replace the instance they override.
	Free bool
}

// ParseResult is the outcome of parsing one document.
type ParseResult struct {
	Events []ParsedEvent
	// Skipped holds one ErrMalformedEvent per VEVENT that was dropped.
	Skipped []error
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - floating is the zone for times without TZID or Z suffix, and for
//     all-day dates.
//   - A body that is not an iCalendar document yields ErrMalformedDocument.
//   - A VEVENT whose range cannot be determined is skipped and reported in
//     ParseResult.Skipped; its siblings are unaffected.
//   - RRULE/EXDATE/RDATE/RECURRENCE-ID are recorded but not expanded;
//     expansion is done in expand.go.
func ParseICS(src Source, body []byte, floating *time.Location) (ParseResult, error) {
	var res ParseResult
	if floating == nil {
		floating = time.UTC
	}

	if err := validateICalFormat(body); err != nil {
		return res, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, src.ID, err)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return res, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, src.ID, err)
	}

	for i, comp := range cal.Events() {
		ev, warn, perr := parseVEvent(src, comp, floating)
		if perr != nil {
			perr = fmt.Errorf("%w: %s: vevent #%d: %v", ErrMalformedEvent, src.ID, i+1, perr)
			res.Skipped = append(res.Skipped, perr)
			appLog.Warn("ics vevent skipped", perr, "id", src.ID)
			continue
		}
		if warn != "" {
			appLog.Warn("ics vevent timezone unknown; using owner timezone", nil, "id", src.ID, "tzid", warn)
		}
		if ev.UID == "" {
			// Without a UID the event cannot be overridden; keep it standalone.
			ev.UID = fmt.Sprintf("%s#%d", src.ID, i+1)
		}
		res.Events = append(res.Events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "event_count", len(res.Events), "skipped", len(res.Skipped))
	return res, nil
}

// validateICalFormat rejects bodies that are obviously not calendars
// (empty responses, HTML login pages) before handing them to the parser.
func validateICalFormat(body []byte) error {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return errors.New("empty ICS body")
	}

	upper := strings.ToUpper(string(trimmed[:min(len(trimmed), 64)]))
	if strings.HasPrefix(upper, "<!DOCTYPE") || strings.HasPrefix(upper, "<HTML") {
		return errors.New("received HTML instead of iCalendar data")
	}
	if !strings.HasPrefix(upper, "BEGIN:VCALENDAR") {
		return errors.New("expected BEGIN:VCALENDAR")
	}
	return nil
}

// parseVEvent extracts timing data from one VEVENT. The returned string is
// a TZID that could not be resolved (empty when all zones were known).
func parseVEvent(src Source, ve *ical.VEvent, floating *time.Location) (ParsedEvent, string, error) {
	var out ParsedEvent
	out.Source = src
	unknownTZ := ""

	if uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId); uidProp != nil {
		out.UID = strings.TrimSpace(uidProp.Value)
	}

	out.Free = isFree(ve)

	// RECURRENCE-ID (overridden instance)
	if ridProp := ve.GetProperty(propRecurrenceID); ridProp != nil {
		rid, err := resolveValue(ridProp.Value, ridProp.ICalParameters, floating)
		if err != nil {
			return out, "", fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		out.Recurrence = &rid.T
		out.IsOverride = true
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil {
		return out, "", errors.New("missing DTSTART")
	}
	start, err := resolveValue(dtStartProp.Value, dtStartProp.ICalParameters, floating)
	if err != nil {
		return out, "", fmt.Errorf("DTSTART: %w", err)
	}
	if start.UnknownTZID != "" {
		unknownTZ = start.UnknownTZID
	}
	out.Start = start.T
	out.AllDay = start.IsDate

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		p := ve.GetProperty(ical.ComponentPropertyDtEnd)
		end, err := resolveValue(p.Value, p.ICalParameters, floating)
		if err != nil {
			return out, "", fmt.Errorf("DTEND: %w", err)
		}
		if end.UnknownTZID != "" {
			unknownTZ = end.UnknownTZID
		}
		out.End = end.T
	case ve.GetProperty(propDuration) != nil:
		d, err := parseDuration(ve.GetProperty(propDuration).Value)
		if err != nil {
			return out, "", fmt.Errorf("DURATION: %w", err)
		}
		out.End = d.addTo(out.Start)
	case out.AllDay:
		// RFC 5545: a DATE DTSTART without DTEND lasts one day.
		out.End = out.Start.AddDate(0, 0, 1)
	default:
		out.End = out.Start
	}

	// A cancelled or free override only needs its RECURRENCE-ID.
	if !out.Free && !out.End.After(out.Start) {
		return out, "", fmt.Errorf("end %s is not after start %s",
			out.End.Format(time.RFC3339), out.Start.Format(time.RFC3339))
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = strings.TrimSpace(rruleProp.Value)
	}

	// EXDATE / RDATE can appear multiple times, each with a comma list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		out.ExDates = append(out.ExDates, listValues(p, out, floating)...)
	}
	for _, p := range ve.GetProperties(propRDate) {
		out.RDates = append(out.RDates, listValues(p, out, floating)...)
	}

	return out, unknownTZ, nil
}

// listValues resolves a multi-valued EXDATE/RDATE property. Unparseable
// entries are dropped. A date-only entry on a timed event is moved to the
// event's clock time so it lines up with generated instances. PERIOD
// values keep only their start.
func listValues(p *ical.IANAProperty, ev ParsedEvent, floating *time.Location) []time.Time {
	var out []time.Time
	for _, part := range strings.Split(p.Value, ",") {
		part = strings.TrimSpace(part)
		if i := strings.IndexByte(part, '/'); i >= 0 {
			part = part[:i]
		}
		if part == "" {
			continue
		}
		tv, err := resolveValue(part, p.ICalParameters, floating)
		if err != nil {
			continue
		}
		t := tv.T
		if tv.IsDate && !ev.AllDay {
			s := ev.Start
			t = time.Date(t.Year(), t.Month(), t.Day(), s.Hour(), s.Minute(), s.Second(), 0, s.Location())
		}
		out = append(out, t)
	}
	return out
}

func isFree(ve *ical.VEvent) bool {
	if p := ve.GetProperty(propTransp); p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "TRANSPARENT") {
		return true
	}
	if p := ve.GetProperty(propMSBusyStatus); p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "FREE") {
		return true
	}
	if p := ve.GetProperty(propStatus); p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED") {
		return true
	}
	return false
}
