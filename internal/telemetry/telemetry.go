// Package telemetry keeps the Prometheus collectors for pipeline runs and the
// query API on a private registry.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	SourceRows    *prometheus.GaugeVec
	LookupMisses  *prometheus.CounterVec
	DuplicateKeys *prometheus.CounterVec
	RowsRejected  *prometheus.CounterVec
	CoercedValues *prometheus.CounterVec
	RowsWritten   *prometheus.GaugeVec
	StageSeconds  *prometheus.HistogramVec

	AgentQueries *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	sourceRows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "filflo_source_rows",
		Help: "Rows loaded per input source in the last run",
	}, []string{"source"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filflo_lookup_misses_total",
		Help: "Order rows whose lookup fell back to defaults",
	}, []string{"lookup"})
	dups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filflo_duplicate_keys_total",
		Help: "Master rows that overwrote an earlier row with the same key",
	}, []string{"lookup"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filflo_rows_rejected_total",
		Help: "Rows dropped for missing critical fields",
	}, []string{"reason"})
	coerced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filflo_coerced_values_total",
		Help: "Unparsable values coerced to a default",
	}, []string{"column"})
	written := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "filflo_rows_written",
		Help: "Rows written per output artifact in the last run",
	}, []string{"artifact"})
	stage := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filflo_stage_duration_seconds",
		Help:    "Wall time per pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filflo_agent_queries_total",
		Help: "Questions answered by the analytical agent",
	}, []string{"outcome"})
	httpReqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filflo_http_requests_total",
		Help: "HTTP requests served",
	}, []string{"method", "path", "status"})
	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filflo_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	r.MustRegister(sourceRows, misses, dups, rejected, coerced, written, stage, queries, httpReqs, httpLatency)
	return &Registry{
		reg:           r,
		SourceRows:    sourceRows,
		LookupMisses:  misses,
		DuplicateKeys: dups,
		RowsRejected:  rejected,
		CoercedValues: coerced,
		RowsWritten:   written,
		StageSeconds:  stage,
		AgentQueries:  queries,
		HTTPRequests:  httpReqs,
		HTTPLatency:   httpLatency,
	}
}

// ObserveStage records the elapsed time since start for a stage. A nil
// registry is a no-op so callers need not guard.
func (r *Registry) ObserveStage(stage string, start time.Time) {
	if r == nil {
		return
	}
	r.StageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// AddMisses adds n lookup misses.
func (r *Registry) AddMisses(lookup string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.LookupMisses.WithLabelValues(lookup).Add(float64(n))
}

// AddDuplicates adds n overwritten master keys.
func (r *Registry) AddDuplicates(lookup string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.DuplicateKeys.WithLabelValues(lookup).Add(float64(n))
}

// AddRejected adds n dropped rows.
func (r *Registry) AddRejected(reason string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.RowsRejected.WithLabelValues(reason).Add(float64(n))
}

// AddCoerced adds n values that fell back to a default.
func (r *Registry) AddCoerced(column string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.CoercedValues.WithLabelValues(column).Add(float64(n))
}

// SetSourceRows records the row count of a loaded source.
func (r *Registry) SetSourceRows(source string, n int) {
	if r == nil {
		return
	}
	r.SourceRows.WithLabelValues(source).Set(float64(n))
}

// SetRowsWritten records the row count of a written artifact.
func (r *Registry) SetRowsWritten(artifact string, n int) {
	if r == nil {
		return
	}
	r.RowsWritten.WithLabelValues(artifact).Set(float64(n))
}

// CountQuery records an agent answer outcome ("ok" or "error").
func (r *Registry) CountQuery(outcome string) {
	if r == nil {
		return
	}
	r.AgentQueries.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(method, path string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.HTTPLatency.WithLabelValues(method, path).Observe(d.Seconds())
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// WriteTextfile dumps the registry in text exposition format, for node
// exporter's textfile collector after a batch run.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
