package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	bodySizeBuckets     = []float64{100, 1024, 10240, 102400, 1048576}
	// Stage durations run from minutes (applicant stages) to days (council
	// stages); buckets are in seconds.
	stageDurationBuckets = []float64{60, 300, 1800, 3600, 14400, 86400, 259200, 604800, 1209600}
)

// Metrics holds all Prometheus metric instruments for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Progress tracking metrics
	InitializationsTotal  *prometheus.CounterVec
	FieldUpdatesTotal     *prometheus.CounterVec
	StageCompletionsTotal *prometheus.CounterVec
	StageAdvancesTotal    *prometheus.CounterVec
	StatusChangesTotal    *prometheus.CounterVec
	NotesAddedTotal       prometheus.Counter
	BlockersAddedTotal    *prometheus.CounterVec
	BlockersResolvedTotal prometheus.Counter
	ActiveRecords         *prometheus.GaugeVec
	StageDurationSeconds  *prometheus.HistogramVec
	TemplatesLoaded       prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Progress tracking
		InitializationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_progress_initializations_total",
			Help: "Total number of progress records initialized.",
		}, []string{"template_id"}),
		FieldUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_field_updates_total",
			Help: "Total number of field completion updates.",
		}, []string{"template_id"}),
		StageCompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_stage_completions_total",
			Help: "Total number of stage completions.",
		}, []string{"template_id", "stage"}),
		StageAdvancesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_stage_advances_total",
			Help: "Total number of stage advances.",
		}, []string{"template_id", "forced"}),
		StatusChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_status_changes_total",
			Help: "Total number of application status changes.",
		}, []string{"new_status"}),
		NotesAddedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_notes_added_total",
			Help: "Total number of notes added.",
		}),
		BlockersAddedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_blockers_added_total",
			Help: "Total number of blockers added.",
		}, []string{"severity"}),
		BlockersResolvedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_blockers_resolved_total",
			Help: "Total number of blockers resolved.",
		}),
		ActiveRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulse_active_progress_records",
			Help: "Number of progress records initialized and not yet in a final status.",
		}, []string{"template_id"}),
		StageDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_stage_duration_seconds",
			Help:    "Actual stage duration in seconds, recorded on completion.",
			Buckets: stageDurationBuckets,
		}, []string{"template_id", "stage"}),
		TemplatesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_templates_loaded",
			Help: "Number of registered workflow templates.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Progress tracking
		m.InitializationsTotal,
		m.FieldUpdatesTotal,
		m.StageCompletionsTotal,
		m.StageAdvancesTotal,
		m.StatusChangesTotal,
		m.NotesAddedTotal,
		m.BlockersAddedTotal,
		m.BlockersResolvedTotal,
		m.ActiveRecords,
		m.StageDurationSeconds,
		m.TemplatesLoaded,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordInitialization records a new progress record.
func (m *Metrics) RecordInitialization(templateID string) {
	m.InitializationsTotal.WithLabelValues(templateID).Inc()
	m.ActiveRecords.WithLabelValues(templateID).Inc()
}

// RecordFieldUpdate records a field completion update.
func (m *Metrics) RecordFieldUpdate(templateID string) {
	m.FieldUpdatesTotal.WithLabelValues(templateID).Inc()
}

// RecordStageCompletion records a stage reaching its completion criterion,
// along with the actual time spent in the stage.
func (m *Metrics) RecordStageCompletion(templateID, stage string, actualMinutes int) {
	m.StageCompletionsTotal.WithLabelValues(templateID, stage).Inc()
	m.StageDurationSeconds.WithLabelValues(templateID, stage).Observe(float64(actualMinutes) * 60)
}

// RecordStageAdvance records a stage advance.
func (m *Metrics) RecordStageAdvance(templateID string, forced bool) {
	m.StageAdvancesTotal.WithLabelValues(templateID, strconv.FormatBool(forced)).Inc()
}

// RecordStatusChange records an application status change. Final statuses
// retire the record from the active gauge.
func (m *Metrics) RecordStatusChange(templateID, newStatus string, final bool) {
	m.StatusChangesTotal.WithLabelValues(newStatus).Inc()
	if final {
		m.ActiveRecords.WithLabelValues(templateID).Dec()
	}
}

// RecordNoteAdded records a note addition.
func (m *Metrics) RecordNoteAdded() {
	m.NotesAddedTotal.Inc()
}

// RecordBlockerAdded records a blocker addition.
func (m *Metrics) RecordBlockerAdded(severity string) {
	m.BlockersAddedTotal.WithLabelValues(severity).Inc()
}

// RecordBlockerResolved records a blocker resolution.
func (m *Metrics) RecordBlockerResolved() {
	m.BlockersResolvedTotal.Inc()
}

// SetTemplatesLoaded sets the number of registered workflow templates.
func (m *Metrics) SetTemplatesLoaded(count float64) {
	m.TemplatesLoaded.Set(count)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
