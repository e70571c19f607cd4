package analysis

import (
	"context"

	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
)

// SecondaryRequest carries the document and its detected items to the
// external analyzer.
type SecondaryRequest struct {
	DocumentName string
	Text         string
	Items        []compliance.DetectedItem
}

// SecondaryViolation is a violation candidate reported by the external
// model. Fields are raw strings; the reconciler parses and defaults them.
type SecondaryViolation struct {
	Section       string  `json:"section"`
	ViolationType string  `json:"violation_type"`
	Severity      string  `json:"severity"`
	Description   string  `json:"description"`
	LegalBasis    string  `json:"legal_basis"`
	Confidence    float64 `json:"confidence"`
}

// SecondaryRecommendation is a remediation candidate from the external
// model.
type SecondaryRecommendation struct {
	Priority         string `json:"priority"`
	Action           string `json:"action"`
	Description      string `json:"description"`
	SectionReference string `json:"section_reference"`
	Implementation   string `json:"implementation"`
}

// SecondaryRisk is the external model's overall risk assessment.
type SecondaryRisk struct {
	OverallRisk        string   `json:"overall_risk"`
	RiskFactors        []string `json:"risk_factors"`
	MitigationPriority string   `json:"mitigation_priority"`
}

// SecondaryResult is the complete second opinion. Its content is
// untrusted: the reconciler defaults missing fields and never lets a
// malformed result abort the baseline analysis.
type SecondaryResult struct {
	Violations      []SecondaryViolation      `json:"violations"`
	Recommendations []SecondaryRecommendation `json:"recommendations"`
	Risk            SecondaryRisk             `json:"risk_assessment"`
	Insights        compliance.ExternalInsights `json:"insights"`
}

// SecondaryAnalyzer obtains a second opinion from an external model.
// Implementations must honor ctx cancellation; any error is treated as
// analyzer-unavailable and the baseline report ships without it.
type SecondaryAnalyzer interface {
	Analyze(ctx context.Context, req SecondaryRequest) (*SecondaryResult, error)
}
