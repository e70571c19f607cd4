package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
)

func violationOf(violationType string, severity compliance.Severity) compliance.Violation {
	return compliance.Violation{
		ViolationType: violationType,
		Severity:      severity,
		Source:        compliance.SourceRuleBased,
	}
}

func TestAssessRisk(t *testing.T) {
	tests := []struct {
		name       string
		violations []compliance.Violation
		items      compliance.ItemSummary
		want       compliance.RiskLevel
	}{
		{
			name: "no violations is low regardless of items",
			items: compliance.ItemSummary{
				TotalCount:     50,
				SensitiveCount: 20,
			},
			want: compliance.RiskLow,
		},
		{
			name:       "critical violation",
			violations: []compliance.Violation{violationOf(TypeInadequateSPIProtection, compliance.SeverityCritical)},
			items:      compliance.ItemSummary{TotalCount: 1, SensitiveCount: 1},
			want:       compliance.RiskCritical,
		},
		{
			name:       "many sensitive items escalate medium to critical",
			violations: []compliance.Violation{violationOf(TypeLackOfTransparency, compliance.SeverityMedium)},
			items:      compliance.ItemSummary{TotalCount: 6, SensitiveCount: 6},
			want:       compliance.RiskCritical,
		},
		{
			name:       "high violation",
			violations: []compliance.Violation{violationOf(TypeUnauthorizedProcessing, compliance.SeverityHigh)},
			items:      compliance.ItemSummary{TotalCount: 2},
			want:       compliance.RiskHigh,
		},
		{
			name:       "many items escalate medium to high",
			violations: []compliance.Violation{violationOf(TypeExcessiveProcessing, compliance.SeverityMedium)},
			items:      compliance.ItemSummary{TotalCount: 11},
			want:       compliance.RiskHigh,
		},
		{
			name:       "medium violation only",
			violations: []compliance.Violation{violationOf(TypeLackOfTransparency, compliance.SeverityMedium)},
			items:      compliance.ItemSummary{TotalCount: 2},
			want:       compliance.RiskMedium,
		},
		{
			name:       "sensitive boundary not exceeded",
			violations: []compliance.Violation{violationOf(TypeLackOfTransparency, compliance.SeverityMedium)},
			items:      compliance.ItemSummary{TotalCount: 5, SensitiveCount: 5},
			want:       compliance.RiskMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssessRisk(tt.violations, tt.items))
		})
	}
}

func TestMaxRiskLevel_Commutative(t *testing.T) {
	levels := []compliance.RiskLevel{
		compliance.RiskUnknown,
		compliance.RiskLow,
		compliance.RiskMedium,
		compliance.RiskHigh,
		compliance.RiskCritical,
	}
	for _, a := range levels {
		for _, b := range levels {
			assert.Equal(t,
				compliance.MaxRiskLevel(a, b),
				compliance.MaxRiskLevel(b, a),
			)
		}
	}
	assert.Equal(t, compliance.RiskCritical, compliance.MaxRiskLevel(compliance.RiskLow, compliance.RiskCritical))
	assert.Equal(t, compliance.RiskMedium, compliance.MaxRiskLevel(compliance.RiskMedium, compliance.RiskUnknown))
}

func TestBuildRecommendations(t *testing.T) {
	tests := []struct {
		name        string
		violations  []compliance.Violation
		items       compliance.ItemSummary
		wantActions []string
	}{
		{
			name: "table order regardless of violation order",
			violations: []compliance.Violation{
				violationOf(TypeInadequateSecurity, compliance.SeverityHigh),
				violationOf(TypeUnauthorizedProcessing, compliance.SeverityHigh),
			},
			items: compliance.ItemSummary{TotalCount: 3},
			wantActions: []string{
				"Obtain proper consent",
				"Implement security measures",
				"Conduct privacy impact assessment",
			},
		},
		{
			name: "set semantics deduplicate repeated types",
			violations: []compliance.Violation{
				violationOf(TypeInadequateSecurity, compliance.SeverityHigh),
				violationOf(TypeInadequateSecurity, compliance.SeverityHigh),
			},
			items: compliance.ItemSummary{TotalCount: 1},
			wantActions: []string{
				"Implement security measures",
				"Conduct privacy impact assessment",
			},
		},
		{
			name:        "impact assessment requires detected items",
			violations:  []compliance.Violation{violationOf(TypeInadequateSecurity, compliance.SeverityHigh)},
			items:       compliance.ItemSummary{},
			wantActions: []string{"Implement security measures"},
		},
		{
			name:        "nothing at all",
			violations:  nil,
			items:       compliance.ItemSummary{},
			wantActions: []string{},
		},
		{
			name:       "unknown external type contributes nothing",
			violations: []compliance.Violation{violationOf("cross_border_transfer", compliance.SeverityHigh)},
			items:      compliance.ItemSummary{TotalCount: 1},
			wantActions: []string{
				"Conduct privacy impact assessment",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := BuildRecommendations(tt.violations, tt.items)
			actions := make([]string, len(recs))
			for i, r := range recs {
				actions[i] = r.Action
			}
			assert.Equal(t, tt.wantActions, actions)
			for _, r := range recs {
				assert.Equal(t, compliance.SourceRuleBased, r.Source)
			}
		})
	}
}

func TestBuildRecommendations_Priorities(t *testing.T) {
	violations := []compliance.Violation{
		violationOf(TypeInadequateSPIProtection, compliance.SeverityCritical),
		violationOf(TypeLackOfTransparency, compliance.SeverityMedium),
	}
	recs := BuildRecommendations(violations, compliance.ItemSummary{TotalCount: 2})

	assert.Equal(t, compliance.SeverityCritical, recs[0].Priority)
	assert.Equal(t, "Section 13, Section 20", recs[0].SectionReference)
	assert.Equal(t, compliance.SeverityMedium, recs[1].Priority)
	assert.Equal(t, compliance.SeverityLow, recs[2].Priority)
}
