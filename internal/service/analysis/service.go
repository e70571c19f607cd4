package analysis

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
	"github.com/privacyguard/dpa-engine/internal/domain/knowledge"
	"github.com/privacyguard/dpa-engine/internal/domain/signal"
	"github.com/privacyguard/dpa-engine/internal/infrastructure/telemetry"
	"github.com/privacyguard/dpa-engine/internal/metrics"
)

// Config controls the analysis pipeline.
type Config struct {
	// SecondaryEnabled gates the external-model second opinion globally.
	SecondaryEnabled bool
	// SecondaryTimeout bounds one external analyzer call.
	SecondaryTimeout time.Duration
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		SecondaryEnabled: true,
		SecondaryTimeout: 30 * time.Second,
	}
}

// Request is one analysis job. Items come from the upstream entity
// extractor; Secondary carries an already-obtained second opinion, which
// takes precedence over calling the configured analyzer.
type Request struct {
	DocumentName  string
	Text          string
	Items         []compliance.DetectedItem
	SkipSecondary bool
	Secondary     *SecondaryResult
}

// Service orchestrates the full compliance analysis: signal extraction,
// rule evaluation, risk assessment, recommendations, and optional
// reconciliation with the external model. Analyze never returns an
// error; every failure path degrades to a complete baseline report.
type Service struct {
	kb        *knowledge.Base
	evaluator *Evaluator
	secondary SecondaryAnalyzer
	metrics   *metrics.Registry
	tracer    telemetry.TracerInterface
	logger    *zap.Logger
	cfg       Config
}

// NewService wires the analysis pipeline. secondary and reg may be nil.
func NewService(kb *knowledge.Base, secondary SecondaryAnalyzer, reg *metrics.Registry, logger *zap.Logger, cfg Config) *Service {
	if kb == nil {
		kb = knowledge.NewEmpty()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SecondaryTimeout <= 0 {
		cfg.SecondaryTimeout = DefaultConfig().SecondaryTimeout
	}
	return &Service{
		kb:        kb,
		evaluator: NewEvaluator(kb, logger),
		secondary: secondary,
		metrics:   reg,
		tracer:    telemetry.NewOpenTelemetryTracer("service.analysis"),
		logger:    logger.Named("analysis"),
		cfg:       cfg,
	}
}

// KnowledgeBase exposes the backing knowledge base for query endpoints.
func (s *Service) KnowledgeBase() *knowledge.Base {
	return s.kb
}

// Analyze runs one compliance analysis. The returned report is always
// complete: all collection fields initialized, verdict fields set, and
// degraded conditions recorded in AnalysisNotes.
func (s *Service) Analyze(ctx context.Context, req Request) *compliance.Report {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, "analysis", "analyze")
	defer span.End()

	start := time.Now()
	s.metrics.BeginAnalysis()

	report := compliance.NewReport(req.DocumentName)
	logger := s.logger.With(
		zap.String("analysis_id", report.AnalysisID.String()),
		zap.String("document", report.DocumentName),
	)

	if strings.TrimSpace(req.Text) == "" {
		report.AnalysisNotes = append(report.AnalysisNotes, "document text is empty")
	}
	if s.kb.Empty() {
		report.AnalysisNotes = append(report.AnalysisNotes, "knowledge base unavailable, statute excerpts omitted")
	}

	report.ItemSummary = signal.Partition(req.Items)
	report.Violations = s.evaluator.Evaluate(req.Text, report.ItemSummary)
	report.RiskLevel = AssessRisk(report.Violations, report.ItemSummary)
	report.Recommendations = BuildRecommendations(report.Violations, report.ItemSummary)
	report.RecomputeStatus()

	s.applySecondary(ctx, req, report, logger)

	report.Normalize()

	for _, v := range report.Violations {
		s.metrics.RecordViolation(ctx, v.ViolationType, v.Severity.String(), string(v.Source))
	}
	s.metrics.RecordAnalysis(ctx,
		float64(time.Since(start).Milliseconds()),
		string(report.ComplianceStatus),
		len(report.Violations),
		report.ItemSummary.SensitiveCount,
	)

	s.tracer.SetAttributes(span, map[string]interface{}{
		"analysis.status":     string(report.ComplianceStatus),
		"analysis.risk_level": report.RiskLevel.String(),
		"analysis.violations": len(report.Violations),
	})

	logger.Info("analysis complete",
		zap.String("status", string(report.ComplianceStatus)),
		zap.String("risk_level", report.RiskLevel.String()),
		zap.Int("violations", len(report.Violations)),
		zap.Int("recommendations", len(report.Recommendations)),
		zap.Strings("entity_types", signal.EntityTypes(req.Items, 10)),
		zap.Bool("external_applied", report.ExternalApplied),
		zap.Duration("duration", time.Since(start)),
	)

	return report
}

// applySecondary reconciles a second opinion into the report. An inline
// result bypasses the analyzer; otherwise one attempt is made against
// the configured analyzer with a bounded timeout. Any failure leaves the
// baseline report untouched apart from an analysis note.
func (s *Service) applySecondary(ctx context.Context, req Request, report *compliance.Report, logger *zap.Logger) {
	if req.Secondary != nil {
		Merge(report, req.Secondary)
		return
	}
	if req.SkipSecondary || !s.cfg.SecondaryEnabled || s.secondary == nil {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.SecondaryTimeout)
	defer cancel()

	callStart := time.Now()
	result, err := s.secondary.Analyze(callCtx, SecondaryRequest{
		DocumentName: report.DocumentName,
		Text:         req.Text,
		Items:        req.Items,
	})
	s.metrics.RecordExternalCall(ctx, float64(time.Since(callStart).Milliseconds()), err == nil)

	if err != nil {
		logger.Warn("external analysis unavailable, baseline report only",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(callStart)),
		)
		report.AnalysisNotes = append(report.AnalysisNotes, "external analysis unavailable")
		return
	}

	Merge(report, result)
}
