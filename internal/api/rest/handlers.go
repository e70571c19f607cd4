package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/privacyguard/dpa-engine/internal/errors"
	"github.com/privacyguard/dpa-engine/internal/infrastructure/telemetry"
	"github.com/privacyguard/dpa-engine/internal/service/analysis"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// handleAnalyze runs one compliance analysis.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.StartSpan(r.Context(), "analysis.analyze")
	defer span.End()

	var req AnalyzeRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, apperrors.NewValidationError("PAYLOAD_TOO_LARGE", "Request body exceeds limit"), nil)
			return
		}
		s.writeError(w, r, http.StatusBadRequest, apperrors.NewValidationError("INVALID_JSON", "Request body is not valid JSON"), nil)
		return
	}

	if err := s.validator.Struct(req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, apperrors.NewValidationError("VALIDATION_FAILED", "Request validation failed"), validationFields(err))
		return
	}

	report := s.analysis.Analyze(ctx, analysis.Request{
		DocumentName:  req.DocumentName,
		Text:          req.Text,
		Items:         req.items(),
		SkipSecondary: req.SkipExternal,
		Secondary:     req.ExternalResult,
	})

	s.tracer.SetAttributes(span, map[string]interface{}{
		"analysis.id":         report.AnalysisID.String(),
		"analysis.status":     string(report.ComplianceStatus),
		"analysis.risk_level": report.RiskLevel.String(),
		"analysis.violations": len(report.Violations),
	})

	s.writeJSON(w, r, http.StatusOK, newAnalyzeResponse(report))
}

// handleKBSection returns the condensed view of one statute section.
func (s *Server) handleKBSection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_, span := telemetry.StartKnowledgeSpan(r.Context(), s.tracer, "section", id)
	defer span.End()

	summary, ok := s.kb.Summary(id)
	s.metrics.RecordKBQuery(r.Context(), "section", ok)
	if !ok {
		s.writeError(w, r, http.StatusNotFound, apperrors.NewNotFoundError("Unknown section"), nil)
		return
	}

	s.writeJSON(w, r, http.StatusOK, summary)
}

// handleKBDefinition looks up a statutory term.
func (s *Server) handleKBDefinition(w http.ResponseWriter, r *http.Request) {
	term := r.PathValue("term")

	def, ok := s.kb.Definition(term)
	s.metrics.RecordKBQuery(r.Context(), "definition", ok)
	if !ok {
		s.writeError(w, r, http.StatusNotFound, apperrors.NewNotFoundError("No definition matches the term"), nil)
		return
	}

	s.writeJSON(w, r, http.StatusOK, def)
}

// handleKBPenalty returns penalty information for a section.
func (s *Server) handleKBPenalty(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	penalty, ok := s.kb.Penalty(id)
	s.metrics.RecordKBQuery(r.Context(), "penalty", ok)
	if !ok {
		s.writeError(w, r, http.StatusNotFound, apperrors.NewNotFoundError("No penalties recorded for the section"), nil)
		return
	}

	s.writeJSON(w, r, http.StatusOK, penalty)
}

// handleKBSearch ranks knowledge base content for a keyword.
func (s *Server) handleKBSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, r, http.StatusBadRequest, apperrors.NewValidationError("VALIDATION_FAILED", "Query parameter q is required"), nil)
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, r, http.StatusBadRequest, apperrors.NewValidationError("VALIDATION_FAILED", "limit must be a positive integer"), nil)
			return
		}
		limit = parsed
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}
	}

	ctx, span := s.tracer.StartSpan(r.Context(), "kb.search")
	defer span.End()
	span.SetAttributes(attribute.String("kb.query", query), attribute.Int("kb.limit", limit))

	start := time.Now()
	results := s.kb.Search(query, limit)
	s.metrics.RecordKBSearch(ctx, float64(time.Since(start).Microseconds())/1000.0, len(results))

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
	})
}

// handleKBStats describes the loaded knowledge base.
func (s *Server) handleKBStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.kb.Stats())
}

// handleHealth serves liveness and readiness probes. The engine is
// ready even with an empty knowledge base; degraded mode is visible in
// the payload.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:           "healthy",
		Version:          s.cfg.Version,
		KnowledgeLoaded:  !s.kb.Empty(),
		ExternalAnalyzer: s.externalConfigured,
	})
}

// validationFields flattens validator errors into a field error map.
func validationFields(err error) map[string][]string {
	fields := make(map[string][]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], fe.Tag())
		}
	}
	return fields
}
