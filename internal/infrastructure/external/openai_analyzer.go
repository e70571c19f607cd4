// Package external adapts OpenAI-compatible chat-completion endpoints
// as secondary compliance analyzers.
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
	"github.com/privacyguard/dpa-engine/internal/domain/knowledge"
	"github.com/privacyguard/dpa-engine/internal/infrastructure/telemetry"
	"github.com/privacyguard/dpa-engine/internal/service/analysis"
)

const systemPrompt = "You are a Philippine Data Privacy Act (RA 10173) compliance expert. " +
	"Respond with a single JSON object and nothing else."

// Input bounds applied before the request is built.
const (
	maxPromptTextLen = 2000
	maxPromptItems   = 5
)

// Config configures the analyzer client. BaseURL may point at any
// OpenAI-compatible endpoint; empty means the default OpenAI API.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	// RequestsPerMinute throttles outbound calls; zero disables the
	// limiter.
	RequestsPerMinute float64
	Burst             int
}

// Analyzer is an analysis.SecondaryAnalyzer backed by a chat-completion
// model. Responses are parsed strictly; anything unparseable degrades to
// a neutral result rather than an error, since the model output is
// untrusted by contract.
type Analyzer struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	limiter     *rate.Limiter
	kb          *knowledge.Base
	tracer      telemetry.TracerInterface
	endpoint    string
	logger      *zap.Logger
}

// NewAnalyzer builds the analyzer. kb supplies the statute context
// embedded in each prompt; an empty kb just produces a context-free
// prompt.
func NewAnalyzer(cfg Config, kb *knowledge.Base, logger *zap.Logger) *Analyzer {
	if kb == nil {
		kb = knowledge.NewEmpty()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), burst)
	}

	return &Analyzer{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     limiter,
		kb:          kb,
		tracer:      telemetry.NewOpenTelemetryTracer("infrastructure.external"),
		endpoint:    clientCfg.BaseURL,
		logger:      logger.Named("external"),
	}
}

// Analyze requests one second opinion. Transport failures return an
// error; malformed model output does not.
func (a *Analyzer) Analyze(ctx context.Context, req analysis.SecondaryRequest) (*analysis.SecondaryResult, error) {
	ctx, span := telemetry.StartExternalSpan(ctx, a.tracer, a.endpoint, a.model)
	defer span.End()

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			telemetry.WithSpanError(span, err)
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: a.buildPrompt(req)},
		},
		Temperature: a.temperature,
	}
	if a.maxTokens > 0 {
		chatReq.MaxTokens = a.maxTokens
	}

	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		err = fmt.Errorf("chat completion: %w", err)
		telemetry.WithSpanError(span, err)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		err = fmt.Errorf("chat completion: empty response")
		telemetry.WithSpanError(span, err)
		return nil, err
	}

	result := a.parseResponse(resp.Choices[0].Message.Content)
	a.logger.Debug("secondary analysis parsed",
		zap.String("model", a.model),
		zap.Int("violations", len(result.Violations)),
		zap.Int("recommendations", len(result.Recommendations)),
		zap.String("risk", result.Risk.OverallRisk),
	)
	return result, nil
}

// buildPrompt assembles the analysis prompt: bounded document text, an
// item inventory, the relevant statute context, and the required JSON
// response shape.
func (a *Analyzer) buildPrompt(req analysis.SecondaryRequest) string {
	var b strings.Builder

	b.WriteString("PHILIPPINE DPA COMPLIANCE ANALYSIS\n\n")
	b.WriteString("DOCUMENT TEXT TO ANALYZE:\n")
	b.WriteString(knowledge.Excerpt(req.Text, maxPromptTextLen))
	b.WriteString("\n\nPERSONAL INFORMATION DETECTED:\n")
	b.WriteString(itemInventory(req.Items))
	b.WriteString("\n\nDPA LEGAL CONTEXT:\n")
	b.WriteString(a.statuteContext())
	b.WriteString(`

ANALYSIS REQUIREMENTS:
1. Identify specific DPA violations based on the provided legal context
2. Assess compliance with each relevant section (11, 12, 13, 16, 20, 21)
3. Evaluate the adequacy of consent mechanisms
4. Check for proper handling of sensitive personal information
5. Assess transparency and data subject rights compliance
6. Identify security and accountability issues

RESPONSE FORMAT (JSON):
{
  "ai_violations": [{"section": "Section X", "violation_type": "specific_violation_name", "severity": "LOW|MEDIUM|HIGH|CRITICAL", "description": "...", "legal_basis": "...", "confidence": 0.0}],
  "ai_recommendations": [{"priority": "LOW|MEDIUM|HIGH|CRITICAL", "action": "...", "description": "...", "section_reference": "...", "implementation": "..."}],
  "ai_risk_assessment": {"overall_risk": "LOW|MEDIUM|HIGH|CRITICAL", "risk_factors": ["..."], "mitigation_priority": "immediate|short_term|medium_term|long_term"},
  "ai_insights": {"document_type": "...", "processing_purpose": "...", "data_flow": "...", "compliance_gaps": ["..."]}
}
`)

	return b.String()
}

func itemInventory(items []compliance.DetectedItem) string {
	if len(items) == 0 {
		return "No personal information detected"
	}
	parts := make([]string, 0, maxPromptItems)
	for i, item := range items {
		if i == maxPromptItems {
			break
		}
		parts = append(parts, fmt.Sprintf("%s: %s", item.EntityType, knowledge.Excerpt(item.Text, 20)))
	}
	return fmt.Sprintf("Found %d instances: %s", len(items), strings.Join(parts, ", "))
}

// statuteContext renders titles and bounded excerpts of the sections the
// rule table covers.
func (a *Analyzer) statuteContext() string {
	sections := []string{"11", "12", "13", "16", "20", "21"}
	ctx := make(map[string]string, len(sections))
	for _, n := range sections {
		s := a.kb.Section(n)
		if s.Content == "" {
			continue
		}
		ctx["Section "+n+" - "+s.Title] = knowledge.Excerpt(s.Content, 300)
	}
	if len(ctx) == 0 {
		return "Statute context unavailable"
	}
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return "Statute context unavailable"
	}
	return string(data)
}

// wireResponse is the JSON shape the prompt demands of the model.
type wireResponse struct {
	Violations      []analysis.SecondaryViolation      `json:"ai_violations"`
	Recommendations []analysis.SecondaryRecommendation `json:"ai_recommendations"`
	Risk            analysis.SecondaryRisk             `json:"ai_risk_assessment"`
	Insights        compliance.ExternalInsights        `json:"ai_insights"`
}

// parseResponse extracts the first top-level JSON object from the raw
// completion. Any decode failure yields the neutral fallback result:
// no findings, MEDIUM risk, insights marked unknown.
func (a *Analyzer) parseResponse(raw string) *analysis.SecondaryResult {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		a.logger.Warn("secondary response contained no JSON object")
		return neutralResult()
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		a.logger.Warn("secondary response unparseable", zap.Error(err))
		return neutralResult()
	}

	result := &analysis.SecondaryResult{
		Violations:      wire.Violations,
		Recommendations: wire.Recommendations,
		Risk:            wire.Risk,
		Insights:        wire.Insights,
	}
	if result.Violations == nil {
		result.Violations = []analysis.SecondaryViolation{}
	}
	if result.Recommendations == nil {
		result.Recommendations = []analysis.SecondaryRecommendation{}
	}
	if result.Insights.ComplianceGaps == nil {
		result.Insights.ComplianceGaps = []string{}
	}
	return result
}

func neutralResult() *analysis.SecondaryResult {
	return &analysis.SecondaryResult{
		Violations:      []analysis.SecondaryViolation{},
		Recommendations: []analysis.SecondaryRecommendation{},
		Risk: analysis.SecondaryRisk{
			OverallRisk:        "MEDIUM",
			RiskFactors:        []string{"response parsing error"},
			MitigationPriority: "immediate",
		},
		Insights: compliance.ExternalInsights{
			DocumentType:      "unknown",
			ProcessingPurpose: "unknown",
			DataFlow:          "unknown",
			ComplianceGaps:    []string{"external analysis incomplete"},
		},
	}
}
