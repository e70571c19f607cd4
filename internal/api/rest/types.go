package rest

import (
	"time"

	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
	"github.com/privacyguard/dpa-engine/internal/service/analysis"
)

// ResponseEnvelope wraps all API responses
type ResponseEnvelope struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
	Meta    ResponseMeta   `json:"meta"`
}

// ResponseMeta contains response metadata
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ErrorResponse provides detailed error information
type ErrorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// DetectedItemRequest is one extractor finding supplied by the caller.
type DetectedItemRequest struct {
	EntityType  string  `json:"entity_type" validate:"required,max=64"`
	Text        string  `json:"text" validate:"required,max=1024"`
	Start       int     `json:"start" validate:"gte=0"`
	End         int     `json:"end" validate:"gte=0"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
	IsSensitive bool    `json:"is_sensitive"`
}

// AnalyzeRequest is the body of POST /api/v1/analyses. Text may be
// empty; the engine reports on whatever it is given.
type AnalyzeRequest struct {
	DocumentName   string                    `json:"document_name" validate:"max=512"`
	Text           string                    `json:"text" validate:"max=1000000"`
	Items          []DetectedItemRequest     `json:"detected_items" validate:"max=10000,dive"`
	SkipExternal   bool                      `json:"skip_external"`
	ExternalResult *analysis.SecondaryResult `json:"external_result,omitempty"`
}

func (r AnalyzeRequest) items() []compliance.DetectedItem {
	items := make([]compliance.DetectedItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = compliance.DetectedItem{
			EntityType:  it.EntityType,
			Text:        it.Text,
			Start:       it.Start,
			End:         it.End,
			Confidence:  it.Confidence,
			IsSensitive: it.IsSensitive,
		}
	}
	return items
}

// displayRecommendationCap bounds the highlighted recommendation list in
// the analyze response. The full report is returned untruncated.
const displayRecommendationCap = 5

// AnalyzeResponse pairs the full report with its rendered digest.
type AnalyzeResponse struct {
	Report             *compliance.Report          `json:"report"`
	Summary            compliance.Summary          `json:"summary"`
	TopRecommendations []compliance.Recommendation `json:"top_recommendations"`
}

func newAnalyzeResponse(report *compliance.Report) AnalyzeResponse {
	top := report.Recommendations
	if len(top) > displayRecommendationCap {
		top = top[:displayRecommendationCap]
	}
	return AnalyzeResponse{
		Report:             report,
		Summary:            report.Summarize(),
		TopRecommendations: top,
	}
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	KnowledgeLoaded  bool   `json:"knowledge_loaded"`
	ExternalAnalyzer bool   `json:"external_analyzer"`
}
