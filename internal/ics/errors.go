package ics

import "errors"

// Error taxonomy. All three are recoverable: the caller logs them and
// moves on to the next feed, document or event.
var (
	// ErrFeedUnavailable covers network errors, timeouts and non-2xx
	// responses for one source.
	ErrFeedUnavailable = errors.New("feed unavailable")

	// ErrMalformedDocument means the body is not an iCalendar document.
	ErrMalformedDocument = errors.New("malformed calendar document")

	// ErrMalformedEvent means one VEVENT could not be turned into a time
	// range (bad timestamps, end <= start, broken RRULE).
	ErrMalformedEvent = errors.New("malformed event")
)
