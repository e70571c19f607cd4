package compliance

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Severity classifies how grave a single violation is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity maps a severity label to its enum value. Unrecognized
// labels degrade to MEDIUM, the neutral default used for untrusted
// secondary results.
func ParseSeverity(s string) Severity {
	switch s {
	case "LOW":
		return SeverityLow
	case "MEDIUM":
		return SeverityMedium
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	*s = ParseSeverity(label)
	return nil
}

// RiskLevel is the aggregate, report-wide classification, as opposed to
// the per-violation Severity.
type RiskLevel int

const (
	RiskUnknown RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseRiskLevel maps a risk label to its enum value; anything else is
// RiskUnknown, which sorts below LOW so it can never raise a merged level.
func ParseRiskLevel(s string) RiskLevel {
	switch s {
	case "LOW":
		return RiskLow
	case "MEDIUM":
		return RiskMedium
	case "HIGH":
		return RiskHigh
	case "CRITICAL":
		return RiskCritical
	default:
		return RiskUnknown
	}
}

func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	*r = ParseRiskLevel(label)
	return nil
}

// MaxRiskLevel returns the higher of two risk levels under the total
// order UNKNOWN < LOW < MEDIUM < HIGH < CRITICAL.
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if b > a {
		return b
	}
	return a
}

// Source identifies which analysis pipeline produced a finding.
type Source string

const (
	SourceRuleBased     Source = "rule_based"
	SourceExternalModel Source = "external_model"
)

// Status is the overall compliance verdict of a report.
type Status string

const (
	StatusCompliant    Status = "COMPLIANT"
	StatusNonCompliant Status = "NON-COMPLIANT"
	StatusUnknown      Status = "UNKNOWN"
)

// DetectedItem is a sensitive-data finding supplied by the entity
// extractor collaborator. The engine never produces these itself.
type DetectedItem struct {
	EntityType  string  `json:"entity_type"`
	Text        string  `json:"text"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Confidence  float64 `json:"confidence"`
	IsSensitive bool    `json:"is_sensitive"`
}

// Violation records a single statute breach detected in a document.
// Violations are immutable after creation; reconciliation may drop
// duplicate candidates but never edits survivors.
type Violation struct {
	ID            uuid.UUID `json:"id"`
	Section       string    `json:"section"`
	ViolationType string    `json:"violation_type"`
	Title         string    `json:"title"`
	Severity      Severity  `json:"severity"`
	Description   string    `json:"description"`
	Details       string    `json:"details"`
	AffectedData  []string  `json:"affected_data"`
	StatuteRef    string    `json:"statute_reference"`
	Source        Source    `json:"source"`
	Confidence    float64   `json:"confidence"`
}

// Recommendation is a prioritized remediation action. One recommendation
// is generated per distinct triggering violation type, not per instance.
type Recommendation struct {
	Priority         Severity `json:"priority"`
	Action           string   `json:"action"`
	Description      string   `json:"description"`
	SectionReference string   `json:"section_reference"`
	Source           Source   `json:"source"`
}

// ItemSummary partitions the detected items into regular and sensitive
// groups with their counts.
type ItemSummary struct {
	TotalCount     int            `json:"total_count"`
	SensitiveCount int            `json:"sensitive_count"`
	RegularCount   int            `json:"regular_count"`
	RegularItems   []DetectedItem `json:"regular_items"`
	SensitiveItems []DetectedItem `json:"sensitive_items"`
}

// ExternalInsights carries the secondary analyzer's narrative findings.
// They are informational only and never influence violations or risk.
type ExternalInsights struct {
	DocumentType      string   `json:"document_type"`
	ProcessingPurpose string   `json:"processing_purpose"`
	DataFlow          string   `json:"data_flow"`
	ComplianceGaps    []string `json:"compliance_gaps"`
}

// Report is the canonical output of one compliance analysis. Every field
// is always present in serialized form; absent data collapses to typed
// defaults so downstream renderers never branch on field existence.
type Report struct {
	AnalysisID        uuid.UUID        `json:"analysis_id"`
	DocumentName      string           `json:"document_name"`
	AnalysisTimestamp time.Time        `json:"analysis_timestamp"`
	ItemSummary       ItemSummary      `json:"pii_summary"`
	Violations        []Violation      `json:"violations"`
	Recommendations   []Recommendation `json:"recommendations"`
	ComplianceStatus  Status           `json:"compliance_status"`
	RiskLevel         RiskLevel        `json:"risk_level"`
	ExternalInsights  ExternalInsights `json:"external_insights"`
	ExternalRiskLevel RiskLevel        `json:"external_risk_level"`
	ExternalApplied   bool             `json:"external_applied"`
	AnalysisNotes     []string         `json:"analysis_notes"`
}

// NewReport creates a report with all collection fields initialized and
// the verdict fields set to their compliant defaults.
func NewReport(documentName string) *Report {
	if documentName == "" {
		documentName = "Unknown Document"
	}
	return &Report{
		AnalysisID:        uuid.New(),
		DocumentName:      documentName,
		AnalysisTimestamp: time.Now().UTC(),
		ItemSummary: ItemSummary{
			RegularItems:   []DetectedItem{},
			SensitiveItems: []DetectedItem{},
		},
		Violations:      []Violation{},
		Recommendations: []Recommendation{},
		ComplianceStatus: StatusCompliant,
		RiskLevel:        RiskLow,
		ExternalInsights: ExternalInsights{ComplianceGaps: []string{}},
		AnalysisNotes:    []string{},
	}
}

// RecomputeStatus re-derives the compliance verdict from the violation
// list. The invariant is: NON-COMPLIANT iff at least one violation.
func (r *Report) RecomputeStatus() {
	if len(r.Violations) > 0 {
		r.ComplianceStatus = StatusNonCompliant
	} else {
		r.ComplianceStatus = StatusCompliant
	}
}

// Normalize replaces nil collections with empty ones and fills verdict
// fields that were never set, guaranteeing the all-fields-present output
// contract.
func (r *Report) Normalize() {
	if r.Violations == nil {
		r.Violations = []Violation{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []Recommendation{}
	}
	if r.ItemSummary.RegularItems == nil {
		r.ItemSummary.RegularItems = []DetectedItem{}
	}
	if r.ItemSummary.SensitiveItems == nil {
		r.ItemSummary.SensitiveItems = []DetectedItem{}
	}
	if r.ExternalInsights.ComplianceGaps == nil {
		r.ExternalInsights.ComplianceGaps = []string{}
	}
	if r.AnalysisNotes == nil {
		r.AnalysisNotes = []string{}
	}
	if r.ComplianceStatus == "" {
		r.ComplianceStatus = StatusUnknown
	}
	if r.DocumentName == "" {
		r.DocumentName = "Unknown Document"
	}
}

// Summary is the compact, human-oriented digest of a report.
type Summary struct {
	Document           string   `json:"document"`
	Status             Status   `json:"status"`
	RiskLevel          RiskLevel `json:"risk_level"`
	TotalViolations    int      `json:"total_violations"`
	ItemsFound         int      `json:"items_found"`
	SensitiveFound     int      `json:"sensitive_found"`
	KeyIssues          []string `json:"key_issues"`
	TopRecommendations []string `json:"top_recommendations"`
	ExternalViolations int      `json:"external_violations"`
	ComplianceGaps     []string `json:"compliance_gaps"`
}

// Summarize condenses the report into its top findings: at most three
// key issues and three recommended actions.
func (r *Report) Summarize() Summary {
	s := Summary{
		Document:           r.DocumentName,
		Status:             r.ComplianceStatus,
		RiskLevel:          r.RiskLevel,
		TotalViolations:    len(r.Violations),
		ItemsFound:         r.ItemSummary.TotalCount,
		SensitiveFound:     r.ItemSummary.SensitiveCount,
		KeyIssues:          []string{},
		TopRecommendations: []string{},
		ComplianceGaps:     []string{},
	}
	for i, v := range r.Violations {
		if i >= 3 {
			break
		}
		s.KeyIssues = append(s.KeyIssues, v.Description)
	}
	for i, rec := range r.Recommendations {
		if i >= 3 {
			break
		}
		s.TopRecommendations = append(s.TopRecommendations, rec.Action)
	}
	for _, v := range r.Violations {
		if v.Source == SourceExternalModel {
			s.ExternalViolations++
		}
	}
	if r.ExternalApplied {
		s.ComplianceGaps = append(s.ComplianceGaps, r.ExternalInsights.ComplianceGaps...)
	}
	return s
}
