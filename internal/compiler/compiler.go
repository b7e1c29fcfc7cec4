// Package compiler runs the one-pass pipeline from ICS feeds to the
// published schedule document.
package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"availgrid/internal/atomicfile"
	"availgrid/internal/config"
	"availgrid/internal/ics"
	appLog "availgrid/internal/log"
	"availgrid/internal/model"
	"availgrid/internal/schedule"
)

const (
	// DefaultHorizonWeeks is how far ahead the grid reaches.
	DefaultHorizonWeeks = 8

	maxOccurrencesPerEvent = 5000
	outputPerm             = 0o644
)

// Fetcher retrieves raw ICS documents. *ics.Fetcher satisfies it.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Report summarizes what a compile run skipped or degraded. None of these
// conditions fail the run.
type Report struct {
	RunID  string
	Window model.Window

	Sources        int
	FeedErrors     []error // ics.ErrFeedUnavailable
	DocumentErrors []error // ics.ErrMalformedDocument
	SkippedEvents  []error // ics.ErrMalformedEvent
	TruncatedUIDs  []string

	Occurrences   int
	BusyIntervals int
}

// Degraded reports whether any feed, document or event was left out.
func (r Report) Degraded() bool {
	return len(r.FeedErrors) > 0 || len(r.DocumentErrors) > 0 || len(r.SkippedEvents) > 0
}

// Err joins every recorded problem into one error, or nil.
func (r Report) Err() error {
	all := make([]error, 0, len(r.FeedErrors)+len(r.DocumentErrors)+len(r.SkippedEvents))
	all = append(all, r.FeedErrors...)
	all = append(all, r.DocumentErrors...)
	all = append(all, r.SkippedEvents...)
	return errors.Join(all...)
}

// Compiler turns feeds into a ScheduleDocument for one configured owner.
type Compiler struct {
	cfg     *config.Config
	loc     *time.Location
	fetcher Fetcher

	now   func() time.Time
	weeks int
	runID string
}

// Option customizes a Compiler.
type Option func(*Compiler)

// WithClock replaces time.Now. The clock is read once per Compile.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

// WithHorizonWeeks sets the number of weeks covered by the grid.
func WithHorizonWeeks(weeks int) Option {
	return func(c *Compiler) { c.weeks = weeks }
}

// WithRunID fixes the run ID used in logs; by default each Compile gets a
// fresh one.
func WithRunID(id string) Option {
	return func(c *Compiler) { c.runID = id }
}

// New validates cfg and returns a Compiler. Every error wraps
// config.ErrInvalid.
func New(cfg *config.Config, fetcher Fetcher, opts ...Option) (*Compiler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", config.ErrInvalid)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher is nil", config.ErrInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", config.ErrInvalid, cfg.Timezone, err)
	}

	c := &Compiler{
		cfg:     cfg,
		loc:     loc,
		fetcher: fetcher,
		now:     time.Now,
		weeks:   DefaultHorizonWeeks,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.weeks <= 0 {
		return nil, fmt.Errorf("%w: horizon weeks must be positive, got %d", config.ErrInvalid, c.weeks)
	}
	return c, nil
}

// Sources returns the feed sources configured in cfg.
func Sources(cfg *config.Config) []ics.Source {
	return ics.SourcesFromURLs(cfg.FeedURLs())
}

// NewFetcher builds the HTTP fetcher described by cfg.
func NewFetcher(cfg *config.Config) *ics.Fetcher {
	return ics.NewFetcher(ics.FetcherOptions{
		Timeout:  time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		Retries:  cfg.FetchRetries,
		CacheDir: cfg.CacheDir,
	})
}

// Compile fetches, parses, expands, merges and buckets all sources once.
//
// Unreachable feeds, unparseable documents and malformed events are
// recorded in the Report and logged; they never fail the run. An error is
// returned only when ctx is cancelled or the pipeline itself cannot proceed.
func (c *Compiler) Compile(ctx context.Context, sources []ics.Source) (*model.ScheduleDocument, Report, error) {
	now := c.now().In(c.loc)
	w := model.NewWindow(now, c.weeks)

	rep := Report{
		RunID:   c.runID,
		Window:  w,
		Sources: len(sources),
	}
	if rep.RunID == "" {
		rep.RunID = uuid.NewString()
	}

	appLog.Info("compile start",
		"run_id", rep.RunID,
		"sources", len(sources),
		"range_start", w.Start.Format(time.RFC3339),
		"range_end", w.End.Format(time.RFC3339),
		"timezone", c.loc.String(),
	)

	var results []ics.FetchResult
	if len(sources) > 0 {
		results, rep.FeedErrors = c.fetcher.FetchAll(ctx, sources)
	}
	if err := ctx.Err(); err != nil {
		return nil, rep, fmt.Errorf("compile: %w", err)
	}

	parsed := make([]ics.ParsedEvent, 0)
	for _, res := range results {
		pr, err := ics.ParseICS(res.Source, res.Body, c.loc)
		if err != nil {
			rep.DocumentErrors = append(rep.DocumentErrors, err)
			appLog.Warn("compile: document dropped", err, "run_id", rep.RunID, "id", res.Source.ID)
			continue
		}
		rep.SkippedEvents = append(rep.SkippedEvents, pr.Skipped...)
		parsed = append(parsed, pr.Events...)
	}

	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation:        c.loc,
		RangeStart:             w.Start,
		RangeEnd:               w.End,
		MaxOccurrencesPerEvent: maxOccurrencesPerEvent,
	})
	if err != nil {
		return nil, rep, fmt.Errorf("compile: %w", err)
	}
	rep.SkippedEvents = append(rep.SkippedEvents, expanded.Skipped...)
	rep.TruncatedUIDs = expanded.TruncatedEvents
	rep.Occurrences = len(expanded.Occurrences)

	busy := schedule.Merge(expanded.Occurrences, w, c.loc)
	rep.BusyIntervals = len(busy)

	grid := schedule.Grid{
		Location:     c.loc,
		WorkdayStart: c.cfg.WorkdayStart,
		WorkdayEnd:   c.cfg.WorkdayEnd,
	}
	days := grid.Bucket(busy, w)

	doc := schedule.Assemble(schedule.Display{
		OwnerName:          c.cfg.OwnerName,
		WeeklyProjectHours: c.cfg.WeeklyProjectHours,
		Timezone:           c.cfg.Timezone,
		WorkdayStart:       c.cfg.WorkdayStart,
		WorkdayEnd:         c.cfg.WorkdayEnd,
		HorizonWeeks:       c.weeks,
		Configured:         len(sources) > 0,
	}, days, now)

	if rep.Degraded() {
		appLog.Warn("compile finished with omissions", rep.Err(),
			"run_id", rep.RunID,
			"feed_errors", len(rep.FeedErrors),
			"document_errors", len(rep.DocumentErrors),
			"skipped_events", len(rep.SkippedEvents),
		)
	}
	appLog.Info("compile done",
		"run_id", rep.RunID,
		"occurrences", rep.Occurrences,
		"busy_intervals", rep.BusyIntervals,
		"days", len(days),
		"truncated", len(rep.TruncatedUIDs),
	)
	return doc, rep, nil
}

// Run compiles the document and atomically replaces outputPath with it.
// When anything fails before the write, the previous file is left as is.
func (c *Compiler) Run(ctx context.Context, sources []ics.Source, outputPath string) (Report, error) {
	doc, rep, err := c.Compile(ctx, sources)
	if err != nil {
		return rep, err
	}

	data, err := Encode(doc)
	if err != nil {
		return rep, fmt.Errorf("encode schedule: %w", err)
	}
	if err := atomicfile.Write(outputPath, data, outputPerm); err != nil {
		return rep, fmt.Errorf("write schedule: %w", err)
	}

	appLog.Info("schedule written", "run_id", rep.RunID, "path", outputPath, "bytes", len(data))
	return rep, nil
}

// Encode renders doc as indented JSON with a trailing newline.
func Encode(doc *model.ScheduleDocument) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
