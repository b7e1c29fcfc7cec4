// Package metrics records run outcomes for the node_exporter textfile
// collector. There is no HTTP endpoint; the file is rewritten after every
// run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"availgrid/internal/compiler"
)

const namespace = "availgrid"

// Recorder holds the gauges and counters of one process.
type Recorder struct {
	reg *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	lastRun         prometheus.Gauge
	lastSuccess     prometheus.Gauge
	lastDuration    prometheus.Gauge
	sources         prometheus.Gauge
	feedErrors      prometheus.Gauge
	documentErrors  prometheus.Gauge
	skippedEvents   prometheus.Gauge
	truncatedEvents prometheus.Gauge
	busyIntervals   prometheus.Gauge
}

// New returns a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &Recorder{
		reg: reg,
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Compile runs by result (ok, degraded, failed).",
		}, []string{"result"}),
		lastRun:         gauge("last_run_timestamp_seconds", "Unix time the last run finished."),
		lastSuccess:     gauge("last_success_timestamp_seconds", "Unix time a schedule document was last written."),
		lastDuration:    gauge("last_run_duration_seconds", "Wall time of the last run."),
		sources:         gauge("last_run_sources", "Feeds configured for the last run."),
		feedErrors:      gauge("last_run_feed_errors", "Feeds that could not be fetched in the last run."),
		documentErrors:  gauge("last_run_document_errors", "Fetched documents that could not be parsed in the last run."),
		skippedEvents:   gauge("last_run_skipped_events", "Malformed events left out of the last run."),
		truncatedEvents: gauge("last_run_truncated_events", "Recurring events that hit the expansion cap in the last run."),
		busyIntervals:   gauge("last_run_busy_intervals", "Merged busy intervals in the last document."),
	}
}

// Observe records the outcome of one run that finished at now.
func (r *Recorder) Observe(rep compiler.Report, took time.Duration, err error, now time.Time) {
	result := "ok"
	switch {
	case err != nil:
		result = "failed"
	case rep.Degraded():
		result = "degraded"
	}
	r.runsTotal.WithLabelValues(result).Inc()

	r.lastRun.Set(float64(now.Unix()))
	r.lastDuration.Set(took.Seconds())
	r.sources.Set(float64(rep.Sources))
	r.feedErrors.Set(float64(len(rep.FeedErrors)))
	r.documentErrors.Set(float64(len(rep.DocumentErrors)))
	r.skippedEvents.Set(float64(len(rep.SkippedEvents)))
	r.truncatedEvents.Set(float64(len(rep.TruncatedUIDs)))

	if err == nil {
		r.lastSuccess.Set(float64(now.Unix()))
		r.busyIntervals.Set(float64(rep.BusyIntervals))
	}
}

// WriteTextfile atomically replaces path with the current metric values
// in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
