package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the engine
type Registry struct {
	meter metric.Meter

	// Analysis Metrics
	AnalysisDuration   metric.Float64Histogram
	AnalysisCounter    metric.Int64Counter
	ViolationCounter   metric.Int64Counter
	AnalysesInFlight   metric.Int64ObservableGauge
	SensitiveItemCount metric.Int64Histogram

	// External Analyzer Metrics
	ExternalAttemptCounter metric.Int64Counter
	ExternalFailureCounter metric.Int64Counter
	ExternalDuration       metric.Float64Histogram

	// Knowledge Base Metrics
	KBQueryCounter  metric.Int64Counter
	KBSearchLatency metric.Float64Histogram

	// System Metrics
	APIRequestDuration metric.Float64Histogram
	APIRequestCounter  metric.Int64Counter

	// State for observable metrics
	mu       sync.RWMutex
	inFlight int64
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	if err := r.initAnalysisMetrics(); err != nil {
		return nil, err
	}

	if err := r.initExternalMetrics(); err != nil {
		return nil, err
	}

	if err := r.initKnowledgeMetrics(); err != nil {
		return nil, err
	}

	if err := r.initSystemMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

// initAnalysisMetrics initializes analysis pipeline metrics
func (r *Registry) initAnalysisMetrics() error {
	var err error

	r.AnalysisDuration, err = r.meter.Float64Histogram(
		"dpa.analysis.duration",
		metric.WithDescription("Duration of a full compliance analysis in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 15000),
	)
	if err != nil {
		return err
	}

	r.AnalysisCounter, err = r.meter.Int64Counter(
		"dpa.analysis.total",
		metric.WithDescription("Total compliance analyses performed"),
	)
	if err != nil {
		return err
	}

	r.ViolationCounter, err = r.meter.Int64Counter(
		"dpa.analysis.violations",
		metric.WithDescription("Violations detected, by type and severity"),
	)
	if err != nil {
		return err
	}

	r.SensitiveItemCount, err = r.meter.Int64Histogram(
		"dpa.analysis.sensitive_items",
		metric.WithDescription("Sensitive items per analyzed document"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50, 100),
	)
	if err != nil {
		return err
	}

	r.AnalysesInFlight, err = r.meter.Int64ObservableGauge(
		"dpa.analysis.in_flight",
		metric.WithDescription("Analyses currently executing"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.inFlight)
			return nil
		}),
	)
	return err
}

// initExternalMetrics initializes external-model analyzer metrics
func (r *Registry) initExternalMetrics() error {
	var err error

	r.ExternalAttemptCounter, err = r.meter.Int64Counter(
		"dpa.external.attempts",
		metric.WithDescription("External analyzer calls attempted"),
	)
	if err != nil {
		return err
	}

	r.ExternalFailureCounter, err = r.meter.Int64Counter(
		"dpa.external.failures",
		metric.WithDescription("External analyzer calls that failed or returned malformed output"),
	)
	if err != nil {
		return err
	}

	r.ExternalDuration, err = r.meter.Float64Histogram(
		"dpa.external.duration",
		metric.WithDescription("External analyzer call duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000),
	)
	return err
}

// initKnowledgeMetrics initializes knowledge-base query metrics
func (r *Registry) initKnowledgeMetrics() error {
	var err error

	r.KBQueryCounter, err = r.meter.Int64Counter(
		"dpa.kb.queries",
		metric.WithDescription("Knowledge base queries, by operation"),
	)
	if err != nil {
		return err
	}

	r.KBSearchLatency, err = r.meter.Float64Histogram(
		"dpa.kb.search_latency",
		metric.WithDescription("Knowledge base search latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50),
	)
	return err
}

// initSystemMetrics initializes HTTP surface metrics
func (r *Registry) initSystemMetrics() error {
	var err error

	r.APIRequestDuration, err = r.meter.Float64Histogram(
		"dpa.api.request_duration",
		metric.WithDescription("API request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.APIRequestCounter, err = r.meter.Int64Counter(
		"dpa.api.requests",
		metric.WithDescription("Total API requests"),
	)
	return err
}

// BeginAnalysis marks an analysis as in flight.
func (r *Registry) BeginAnalysis() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.inFlight++
	r.mu.Unlock()
}

// RecordAnalysis records the outcome of one analysis. All Record/Inc
// methods are nil-safe so the service layer never branches on metrics
// being configured.
func (r *Registry) RecordAnalysis(ctx context.Context, durationMS float64, status string, violations, sensitiveItems int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.inFlight > 0 {
		r.inFlight--
	}
	r.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("status", status))
	r.AnalysisDuration.Record(ctx, durationMS, attrs)
	r.AnalysisCounter.Add(ctx, 1, attrs)
	r.SensitiveItemCount.Record(ctx, int64(sensitiveItems))
}

// RecordViolation counts one detected violation.
func (r *Registry) RecordViolation(ctx context.Context, violationType, severity, source string) {
	if r == nil {
		return
	}
	r.ViolationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", violationType),
		attribute.String("severity", severity),
		attribute.String("source", source),
	))
}

// RecordExternalCall records an external analyzer attempt.
func (r *Registry) RecordExternalCall(ctx context.Context, durationMS float64, success bool) {
	if r == nil {
		return
	}
	r.ExternalAttemptCounter.Add(ctx, 1)
	r.ExternalDuration.Record(ctx, durationMS, metric.WithAttributes(
		attribute.Bool("success", success),
	))
	if !success {
		r.ExternalFailureCounter.Add(ctx, 1)
	}
}

// RecordKBQuery counts one knowledge base query.
func (r *Registry) RecordKBQuery(ctx context.Context, operation string, hit bool) {
	if r == nil {
		return
	}
	r.KBQueryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("hit", hit),
	))
}

// RecordKBSearch records one search with its latency.
func (r *Registry) RecordKBSearch(ctx context.Context, durationMS float64, results int) {
	if r == nil {
		return
	}
	r.KBQueryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "search"),
		attribute.Bool("hit", results > 0),
	))
	r.KBSearchLatency.Record(ctx, durationMS)
}

// RecordAPIRequest records HTTP request metrics
func (r *Registry) RecordAPIRequest(ctx context.Context, durationMS float64, method, path string, statusCode int) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	)
	r.APIRequestDuration.Record(ctx, durationMS, attrs)
	r.APIRequestCounter.Add(ctx, 1, attrs)
}
