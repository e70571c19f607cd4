package compliance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityLow, ParseSeverity("LOW"))
	assert.Equal(t, SeverityCritical, ParseSeverity("CRITICAL"))
	// Unknown labels degrade to the neutral default.
	assert.Equal(t, SeverityMedium, ParseSeverity("SEVERE"))
	assert.Equal(t, SeverityMedium, ParseSeverity(""))
}

func TestParseRiskLevel(t *testing.T) {
	assert.Equal(t, RiskHigh, ParseRiskLevel("HIGH"))
	assert.Equal(t, RiskUnknown, ParseRiskLevel("bogus"))
	assert.Equal(t, RiskUnknown, ParseRiskLevel(""))

	// UNKNOWN sorts below every real level.
	for _, level := range []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical} {
		assert.Equal(t, level, MaxRiskLevel(RiskUnknown, level))
	}
}

func TestSeverityJSON(t *testing.T) {
	data, err := json.Marshal(SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, `"CRITICAL"`, string(data))

	var s Severity
	require.NoError(t, json.Unmarshal([]byte(`"HIGH"`), &s))
	assert.Equal(t, SeverityHigh, s)
}

func TestNewReport(t *testing.T) {
	r := NewReport("")

	assert.Equal(t, "Unknown Document", r.DocumentName)
	assert.Equal(t, StatusCompliant, r.ComplianceStatus)
	assert.Equal(t, RiskLow, r.RiskLevel)
	assert.NotNil(t, r.Violations)
	assert.NotNil(t, r.Recommendations)
	assert.NotNil(t, r.AnalysisNotes)
	assert.False(t, r.AnalysisTimestamp.IsZero())
}

func TestRecomputeStatus(t *testing.T) {
	r := NewReport("doc")
	r.RecomputeStatus()
	assert.Equal(t, StatusCompliant, r.ComplianceStatus)

	r.Violations = append(r.Violations, Violation{ViolationType: "x"})
	r.RecomputeStatus()
	assert.Equal(t, StatusNonCompliant, r.ComplianceStatus)
}

func TestNormalize_AllFieldsPresent(t *testing.T) {
	r := &Report{}
	r.Normalize()

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "Unknown Document", decoded["document_name"])
	assert.Equal(t, "UNKNOWN", decoded["compliance_status"])
	assert.NotNil(t, decoded["violations"])
	assert.NotNil(t, decoded["recommendations"])
	assert.NotNil(t, decoded["analysis_notes"])

	// Serialized collections are arrays, not null.
	assert.IsType(t, []any{}, decoded["violations"])
	assert.IsType(t, []any{}, decoded["recommendations"])
}

func TestSummarize(t *testing.T) {
	r := NewReport("contract.pdf")
	r.Violations = []Violation{
		{Description: "first", Source: SourceRuleBased},
		{Description: "second", Source: SourceExternalModel},
		{Description: "third", Source: SourceRuleBased},
		{Description: "fourth", Source: SourceExternalModel},
	}
	r.Recommendations = []Recommendation{
		{Action: "a"}, {Action: "b"}, {Action: "c"}, {Action: "d"},
	}
	r.ItemSummary = ItemSummary{TotalCount: 7, SensitiveCount: 2}
	r.ExternalApplied = true
	r.ExternalInsights.ComplianceGaps = []string{"no retention policy"}
	r.RecomputeStatus()

	s := r.Summarize()

	assert.Equal(t, "contract.pdf", s.Document)
	assert.Equal(t, StatusNonCompliant, s.Status)
	assert.Equal(t, 4, s.TotalViolations)
	assert.Equal(t, []string{"first", "second", "third"}, s.KeyIssues)
	assert.Equal(t, []string{"a", "b", "c"}, s.TopRecommendations)
	assert.Equal(t, 2, s.ExternalViolations)
	assert.Equal(t, []string{"no retention policy"}, s.ComplianceGaps)
}

func TestSummarize_GapsOnlyWhenExternalApplied(t *testing.T) {
	r := NewReport("doc")
	r.ExternalInsights.ComplianceGaps = []string{"gap"}

	s := r.Summarize()
	assert.Empty(t, s.ComplianceGaps)
}
