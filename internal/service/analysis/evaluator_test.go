package analysis

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
	"github.com/privacyguard/dpa-engine/internal/domain/knowledge"
	"github.com/privacyguard/dpa-engine/internal/domain/signal"
)

func fixtureKB(t *testing.T) *knowledge.Base {
	t.Helper()
	b := knowledge.Load(filepath.Join("testdata", "kb.json"), zaptest.NewLogger(t))
	require.False(t, b.Empty())
	return b
}

func regularItems(n int) []compliance.DetectedItem {
	items := make([]compliance.DetectedItem, n)
	for i := range items {
		items[i] = compliance.DetectedItem{EntityType: "EMAIL", Text: "user@example.ph"}
	}
	return items
}

func violationTypes(violations []compliance.Violation) []string {
	types := make([]string, len(violations))
	for i, v := range violations {
		types[i] = v.ViolationType
	}
	return types
}

func TestEvaluator_RuleTable(t *testing.T) {
	kb := fixtureKB(t)

	tests := []struct {
		name     string
		text     string
		items    []compliance.DetectedItem
		want     []string
		validate func(t *testing.T, violations []compliance.Violation)
	}{
		{
			name:  "no consent no purpose",
			text:  "Employee records include email addresses and phone numbers.",
			items: regularItems(3),
			want:  []string{TypeUnauthorizedProcessing, TypeLackOfTransparency},
			validate: func(t *testing.T, violations []compliance.Violation) {
				v := violations[0]
				assert.Equal(t, "Section 12", v.Section)
				assert.Equal(t, compliance.SeverityHigh, v.Severity)
				assert.Equal(t, compliance.SourceRuleBased, v.Source)
				assert.Equal(t, 1.0, v.Confidence)
				assert.Contains(t, v.Details, "Found 3 personal information instances")
				assert.NotEmpty(t, v.StatuteRef)
				assert.Len(t, v.AffectedData, 3)
			},
		},
		{
			name: "sensitive items always violate",
			text: "The patient gave consent to processing for the purpose of treatment.",
			items: []compliance.DetectedItem{
				{EntityType: "HEALTH_INFO", Text: "hypertension"},
			},
			want: []string{TypeInadequateSPIProtection},
			validate: func(t *testing.T, violations []compliance.Violation) {
				v := violations[0]
				assert.Equal(t, "Section 13", v.Section)
				assert.Equal(t, compliance.SeverityCritical, v.Severity)
				assert.Equal(t, []string{"hypertension"}, v.AffectedData)
			},
		},
		{
			name:  "consent and purpose present",
			text:  "The customer gave consent; data is used for billing only.",
			items: regularItems(2),
			want:  []string{},
		},
		{
			name:  "excessive processing",
			text:  "Subscribers consent to processing for the purpose of delivery.",
			items: regularItems(11),
			want:  []string{TypeExcessiveProcessing},
			validate: func(t *testing.T, violations []compliance.Violation) {
				assert.Contains(t, violations[0].Details, "(11 instances)")
				assert.Empty(t, violations[0].AffectedData)
			},
		},
		{
			name:  "threshold boundary not exceeded",
			text:  "Subscribers consent to processing for the purpose of delivery.",
			items: regularItems(10),
			want:  []string{},
		},
		{
			name:  "insecure storage reported once",
			text:  "With consent, data used for audits is kept unencrypted and unsecured with no password.",
			items: regularItems(1),
			want:  []string{TypeInadequateSecurity},
			validate: func(t *testing.T, violations []compliance.Violation) {
				assert.Contains(t, violations[0].Details, "unencrypted")
				assert.NotContains(t, violations[0].Details, "unsecured")
			},
		},
		{
			name:  "no items no violations",
			text:  "This memo contains no personal data at all.",
			items: nil,
			want:  []string{},
		},
		{
			name: "all rules fire in order",
			text: "Collected records are stored in plain text.",
			items: append(regularItems(9),
				compliance.DetectedItem{EntityType: "PH_TIN", Text: "123-456-789-000"},
				compliance.DetectedItem{EntityType: "PH_SSS", Text: "34-1234567-8"},
			),
			want: []string{
				TypeUnauthorizedProcessing,
				TypeInadequateSPIProtection,
				TypeLackOfTransparency,
				TypeExcessiveProcessing,
				TypeInadequateSecurity,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(kb, zaptest.NewLogger(t))
			violations := e.Evaluate(tt.text, signal.Partition(tt.items))
			assert.Equal(t, tt.want, violationTypes(violations))
			if tt.validate != nil {
				tt.validate(t, violations)
			}
		})
	}
}

func TestEvaluator_StatuteExcerptBounded(t *testing.T) {
	kb := fixtureKB(t)
	e := NewEvaluator(kb, zaptest.NewLogger(t))

	violations := e.Evaluate("no consent language here", signal.Partition(regularItems(1)))
	require.NotEmpty(t, violations)
	for _, v := range violations {
		assert.LessOrEqual(t, len([]rune(strings.TrimSuffix(v.StatuteRef, "..."))), statuteExcerptLen)
	}
}

func TestEvaluator_EmptyKnowledgeBase(t *testing.T) {
	e := NewEvaluator(knowledge.NewEmpty(), zaptest.NewLogger(t))

	violations := e.Evaluate("records stored with no encryption", signal.Partition(regularItems(2)))
	require.NotEmpty(t, violations)

	// Degraded KB still yields fully populated violations.
	for _, v := range violations {
		assert.NotEmpty(t, v.Title)
		assert.Contains(t, v.Details, "Section content not available")
		assert.Empty(t, v.StatuteRef)
	}
}

func TestEvaluator_AffectedDataCap(t *testing.T) {
	kb := fixtureKB(t)
	e := NewEvaluator(kb, zaptest.NewLogger(t))

	violations := e.Evaluate("plain document", signal.Partition(regularItems(8)))
	require.NotEmpty(t, violations)
	assert.Len(t, violations[0].AffectedData, 5)
}
