package ics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "availgrid/internal/log"
	"availgrid/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be
	// converted, and in which all-day occurrences are anchored.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences. Expansion never
	// generates instances starting after RangeEnd.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid extremely large
	// expansions (e.g. FREQ=MINUTELY). If zero, defaultMaxOccurrencesPerEvent
	// is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
	// Skipped holds one ErrMalformedEvent per event whose RRULE was unusable.
	Skipped []error
}

// ExpandOccurrences takes the events of one document and expands them into
// concrete occurrences within the given time range. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.) and RDATE
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides, which replace the generated instance
//   - All-day semantics (owner-zone midnight to midnight)
//   - Free/cancelled events, which occupy nothing
//
// All resulting occurrences are converted into DisplayLocation.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if !cfg.RangeEnd.After(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is not after RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	uids := make([]string, 0)

	for _, ev := range events {
		if _, seen := baseByUID[ev.UID]; !seen {
			if _, seen := overridesByUID[ev.UID]; !seen {
				uids = append(uids, ev.UID)
			}
		}
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}
	sort.Strings(uids)

	for _, uid := range uids {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			occ, hitCap, err := expandEvent(ev, ov, cfg)
			if err != nil {
				err = fmt.Errorf("%w: %s: uid %s: %v", ErrMalformedEvent, ev.Source.ID, uid, err)
				result.Skipped = append(result.Skipped, err)
				appLog.Warn("expand: event skipped", err, "id", ev.Source.ID)
				continue
			}
			if hitCap {
				truncated = true
			}
			result.Occurrences = append(result.Occurrences, occ...)
		}

		// Overrides stand on their own: their new time range may lie
		// anywhere, independent of where the replaced instance was.
		for _, o := range ov {
			if o.Free {
				continue
			}
			if occ, ok := makeOccurrence(o.Start, o.End, cfg); ok {
				result.Occurrences = append(result.Occurrences, occ)
			}
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	return result, nil
}

// expandEvent expands a single base event, suppressing any instance that
// one of overrides replaces, and reports whether the cap was hit.
func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	if ev.Free {
		return nil, false, nil
	}

	// Single non-recurring event
	if ev.RawRRule == "" && len(ev.RDates) == 0 {
		if isOverridden(ev.Start, overrides) {
			return nil, false, nil
		}
		occ, ok := makeOccurrence(ev.Start, ev.End, cfg)
		if !ok {
			return nil, false, nil
		}
		return []model.Occurrence{occ}, false, nil
	}

	return expandRecurringEvent(ev, overrides, cfg)
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	set := &rrule.Set{}

	if ev.RawRRule != "" {
		opt, err := rrule.StrToROptionInLocation(ev.RawRRule, ev.Start.Location())
		if err != nil {
			return nil, false, fmt.Errorf("RRULE %q: %w", ev.RawRRule, err)
		}
		// DTSTART anchors the rule in the event's own zone so instances
		// follow its wall clock across DST.
		opt.Dtstart = ev.Start
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, false, fmt.Errorf("RRULE %q: %w", ev.RawRRule, err)
		}
		set.RRule(r)
	} else {
		// RDATE-only sets still include DTSTART itself.
		set.RDate(ev.Start)
	}

	for _, rd := range ev.RDates {
		set.RDate(rd)
	}
	for _, ex := range ev.ExDates {
		set.ExDate(ex)
	}
	// An override replaces the generated instance it points at.
	for _, o := range overrides {
		set.ExDate(*o.Recurrence)
	}

	dur := ev.End.Sub(ev.Start)
	days := 0
	if ev.AllDay {
		days = int(math.Round(dur.Hours() / 24))
		if days < 1 {
			days = 1
		}
		// Leave room for a DST hour when looking back.
		dur = time.Duration(days)*24*time.Hour + time.Hour
	}

	// Instances starting before RangeStart-dur cannot reach the range.
	occTimes := set.Between(cfg.RangeStart.Add(-dur), cfg.RangeEnd, true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(occTimes))
	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			// All-day: [date 00:00, date+days 00:00) in the owner's timezone.
			local := occStart.In(cfg.DisplayLocation)
			occStart = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, cfg.DisplayLocation)
			occEnd = occStart.AddDate(0, 0, days)
		} else {
			// Preserve original duration.
			occEnd = occStart.Add(ev.End.Sub(ev.Start))
		}

		if occ, ok := makeOccurrence(occStart, occEnd, cfg); ok {
			out = append(out, occ)
		}
	}

	return out, hitCap, nil
}

// isOverridden reports whether any override's RECURRENCE-ID names start.
func isOverridden(start time.Time, overrides []ParsedEvent) bool {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return true
		}
	}
	return false
}

// makeOccurrence converts a start/end pair into a model.Occurrence
// normalized into DisplayLocation. ok is false for empty ranges and for
// ranges that do not intersect [RangeStart, RangeEnd).
func makeOccurrence(start, end time.Time, cfg ExpandConfig) (model.Occurrence, bool) {
	if !end.After(start) {
		return model.Occurrence{}, false
	}
	if !end.After(cfg.RangeStart) || !start.Before(cfg.RangeEnd) {
		return model.Occurrence{}, false
	}
	return model.Occurrence{
		Start: start.In(cfg.DisplayLocation),
		End:   end.In(cfg.DisplayLocation),
	}, true
}
