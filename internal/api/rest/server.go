// Package rest exposes the engine over HTTP: one analysis endpoint, the
// knowledge base query surface, and health probes.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/privacyguard/dpa-engine/internal/domain/knowledge"
	apperrors "github.com/privacyguard/dpa-engine/internal/errors"
	"github.com/privacyguard/dpa-engine/internal/infrastructure/config"
	"github.com/privacyguard/dpa-engine/internal/infrastructure/telemetry"
	"github.com/privacyguard/dpa-engine/internal/metrics"
	"github.com/privacyguard/dpa-engine/internal/service/analysis"
)

const maxRequestBody = 2 << 20

// Server is the HTTP surface of the engine. It builds the routed,
// middleware-wrapped handler; the caller owns the http.Server.
type Server struct {
	cfg       *config.Config
	analysis  *analysis.Service
	kb        *knowledge.Base
	metrics   *metrics.Registry
	validator *validator.Validate
	tracer    telemetry.TracerInterface
	logger    *slog.Logger
	rl        *inMemoryRateLimiter

	externalConfigured bool
}

// NewServer wires the routes and middleware chain.
func NewServer(cfg *config.Config, svc *analysis.Service, reg *metrics.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	rl := newInMemoryRateLimiter(
		float64(cfg.RateLimit.RequestsPerSecond),
		cfg.RateLimit.BurstSize,
	)
	rl.cleanup(5 * time.Minute)
	return &Server{
		cfg:                cfg,
		analysis:           svc,
		kb:                 svc.KnowledgeBase(),
		metrics:            reg,
		validator:          validator.New(),
		tracer:             telemetry.NewOpenTelemetryTracer("api.rest"),
		logger:             logger,
		rl:                 rl,
		externalConfigured: cfg.Analyzer.Enabled,
	}
}

// Close stops the server's background work.
func (s *Server) Close() {
	s.rl.Stop()
}

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/analyses", s.handleAnalyze)
	mux.HandleFunc("GET /api/v1/kb/sections/{id}", s.handleKBSection)
	mux.HandleFunc("GET /api/v1/kb/definitions/{term}", s.handleKBDefinition)
	mux.HandleFunc("GET /api/v1/kb/penalties/{id}", s.handleKBPenalty)
	mux.HandleFunc("GET /api/v1/kb/search", s.handleKBSearch)
	mux.HandleFunc("GET /api/v1/kb/stats", s.handleKBStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleHealth)

	var handler http.Handler = mux
	handler = s.metricsMiddleware(handler)
	handler = timeoutMiddleware(s.cfg.Server.RequestTimeout)(handler)
	handler = rateLimitMiddleware(s.rl)(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = s.tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return handler
}

// tracingMiddleware opens the request span. It sits outside the logging
// middleware so log lines carry the trace and span IDs.
func (s *Server) tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := telemetry.StartHTTPSpan(r.Context(), s.tracer, r.Method, r.URL.Path)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// metricsMiddleware records request duration and counts.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.metrics.RecordAPIRequest(r.Context(),
			float64(time.Since(start).Milliseconds()),
			r.Method, r.URL.Path, wrapped.status,
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	envelope := ResponseEnvelope{
		Success: status < 400,
		Data:    data,
		Meta: ResponseMeta{
			RequestID: requestIDFrom(r.Context()),
			Timestamp: time.Now().UTC(),
			Version:   s.cfg.Version,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		s.logger.ErrorContext(r.Context(), "response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, appErr *apperrors.AppError, fields map[string][]string) {
	envelope := ResponseEnvelope{
		Success: false,
		Error: &ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Fields:  fields,
		},
		Meta: ResponseMeta{
			RequestID: requestIDFrom(r.Context()),
			Timestamp: time.Now().UTC(),
			Version:   s.cfg.Version,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		s.logger.ErrorContext(r.Context(), "response encoding failed", "error", err)
	}
}
