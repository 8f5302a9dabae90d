// Package metrics records Prometheus metrics about diff runs.
//
// A Recorder owns its own registry, so the CLI can write a node_exporter
// textfile after one run and the MCP server can accumulate counts across
// tool calls without touching the default registry.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/ironsheep/annodiff/internal/match"
	"github.com/ironsheep/annodiff/internal/report"
)

const namespace = "annodiff"

// Run results.
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultError   = "error"
)

// Recorder collects diff metrics. It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	items         *prometheus.CounterVec
	pairs         *prometheus.CounterVec
	unmatched     *prometheus.CounterVec
	lowConfidence prometheus.Counter
	overlap       prometheus.Histogram
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of diff runs",
			},
			[]string{"result"}, // ok, partial, error
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of diff runs in seconds",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Total number of items by status",
			},
			[]string{"status"},
		),
		pairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pairs_total",
				Help:      "Total number of paired annotations by outcome",
			},
			[]string{"outcome"}, // match, label_mismatch
		),
		unmatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unmatched_total",
				Help:      "Total number of unmatched annotations by side",
			},
			[]string{"side"}, // reference, candidate
		),
		lowConfidence: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "low_confidence_total",
				Help:      "Total number of candidate annotations ignored for low confidence",
			},
		),
		overlap: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pair_overlap",
				Help:      "Overlap of paired annotations",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
	}

	r.registry.MustRegister(
		r.runs, r.runDuration, r.items, r.pairs,
		r.unmatched, r.lowConfidence, r.overlap,
	)
	return r
}

// Registry returns the registry the metrics are registered with.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveRun records one diff run. rep may be nil when the run failed before
// any item was compared.
func (r *Recorder) ObserveRun(rep *report.DiffReport, err error, elapsed time.Duration) {
	result := ResultOK
	switch {
	case err != nil && rep == nil:
		result = ResultError
	case err != nil || (rep != nil && len(rep.Failures) > 0):
		result = ResultPartial
	}
	r.runs.WithLabelValues(result).Inc()
	r.runDuration.Observe(elapsed.Seconds())

	if rep == nil {
		return
	}

	for _, it := range rep.Items {
		r.items.WithLabelValues(string(it.Status)).Inc()
		for _, pairs := range [][]match.Pair{it.Matches, it.LabelMismatches} {
			for _, p := range pairs {
				r.overlap.Observe(p.Overlap)
			}
		}
	}

	t := rep.Totals
	r.pairs.WithLabelValues("match").Add(float64(t.Matches))
	r.pairs.WithLabelValues("label_mismatch").Add(float64(t.LabelMismatches))
	r.unmatched.WithLabelValues("reference").Add(float64(t.UnmatchedReference + t.PartialReference))
	r.unmatched.WithLabelValues("candidate").Add(float64(t.UnmatchedCandidate + t.PartialCandidate))
	r.lowConfidence.Add(float64(t.LowConfidence))
}

// WriteText writes the current metrics in the Prometheus text format.
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// WriteTextfile writes the metrics to path for the node_exporter textfile
// collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
