package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for document analyses.
// Tracks outcomes per risk level, collaborator latency and failures,
// per-field validation outcomes and rate limit rejections.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AnalysesTotal        *prometheus.CounterVec
	AnalysisFailures     *prometheus.CounterVec
	AnalysisDuration     prometheus.Histogram
	RiskScore            prometheus.Histogram
	CollaboratorDuration *prometheus.HistogramVec
	FieldOutcomes        *prometheus.CounterVec
	RateLimitedRequests  prometheus.Counter
	FieldRulesLoaded     *prometheus.GaugeVec
}

var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harpia_analyses_total",
			Help: "Total number of completed document analyses by risk level",
		}, []string{"risk_level"}),
		AnalysisFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harpia_analysis_failures_total",
			Help: "Total number of aborted analyses by stage and failure category",
		}, []string{"stage", "category"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "harpia_analysis_duration_seconds",
			Help:    "Duration of complete document analyses",
			Buckets: durationBuckets,
		}),
		RiskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "harpia_risk_score",
			Help:    "Distribution of computed risk scores",
			Buckets: []float64{0, 20, 50, 75, 100},
		}),
		CollaboratorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harpia_collaborator_duration_seconds",
			Help:    "Duration of calls to external collaborators",
			Buckets: durationBuckets,
		}, []string{"collaborator"}),
		FieldOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harpia_field_outcomes_total",
			Help: "Validated fields by kind and bucket",
		}, []string{"kind", "bucket"}),
		RateLimitedRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "harpia_rate_limited_requests_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		FieldRulesLoaded: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harpia_field_rules_loaded",
			Help: "Number of custom field rules currently loaded per tenant",
		}, []string{"tenant"}),
	}
}

// IncrementAnalyses records a completed analysis and its score.
func (m *Metrics) IncrementAnalyses(level string, score int) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(level).Inc()
	m.RiskScore.Observe(float64(score))
}

// IncrementFailures records an aborted analysis.
func (m *Metrics) IncrementFailures(stage, category string) {
	if m == nil {
		return
	}
	m.AnalysisFailures.WithLabelValues(stage, category).Inc()
}

// ObserveAnalysis records the duration of a complete analysis.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAnalysis(start time.Time) {
	if m == nil {
		return
	}
	m.AnalysisDuration.Observe(time.Since(start).Seconds())
}

// ObserveCollaborator records the duration of a collaborator call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveCollaborator(collaborator string, start time.Time) {
	if m == nil {
		return
	}
	m.CollaboratorDuration.WithLabelValues(collaborator).Observe(time.Since(start).Seconds())
}

// IncrementFieldOutcome records one validated field.
func (m *Metrics) IncrementFieldOutcome(kind, bucket string) {
	if m == nil {
		return
	}
	m.FieldOutcomes.WithLabelValues(kind, bucket).Inc()
}

// IncrementRateLimited records a rejected request.
func (m *Metrics) IncrementRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedRequests.Inc()
}

// SetFieldRulesLoaded records how many custom field rules a tenant has loaded.
func (m *Metrics) SetFieldRulesLoaded(tenant string, count int) {
	if m == nil {
		return
	}
	m.FieldRulesLoaded.WithLabelValues(tenant).Set(float64(count))
}
