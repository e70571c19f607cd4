package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
)

type stubAnalyzer struct {
	result *SecondaryResult
	err    error
	calls  int
	delay  time.Duration
}

func (s *stubAnalyzer) Analyze(ctx context.Context, req SecondaryRequest) (*SecondaryResult, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestService(t *testing.T, secondary SecondaryAnalyzer, cfg Config) *Service {
	t.Helper()
	return NewService(fixtureKB(t), secondary, nil, zaptest.NewLogger(t), cfg)
}

func TestAnalyze_NonCompliantDocument(t *testing.T) {
	svc := newTestService(t, nil, Config{})

	report := svc.Analyze(context.Background(), Request{
		DocumentName: "hr_form.docx",
		Text:         "Employee list with contact numbers stored unencrypted.",
		Items: []compliance.DetectedItem{
			{EntityType: "NAME", Text: "Juan dela Cruz"},
			{EntityType: "PH_PHONE", Text: "+63 912 345 6789", IsSensitive: true},
		},
	})

	assert.Equal(t, compliance.StatusNonCompliant, report.ComplianceStatus)
	assert.Equal(t, compliance.RiskCritical, report.RiskLevel)
	assert.Equal(t, 2, report.ItemSummary.TotalCount)
	assert.Equal(t, 1, report.ItemSummary.SensitiveCount)
	assert.NotEmpty(t, report.Violations)
	assert.NotEmpty(t, report.Recommendations)
	assert.NotEqual(t, "", report.AnalysisID.String())
}

func TestAnalyze_CompliantDocument(t *testing.T) {
	svc := newTestService(t, nil, Config{})

	report := svc.Analyze(context.Background(), Request{
		DocumentName: "privacy_notice.txt",
		Text:         "With your consent, this data is used for account servicing.",
		Items: []compliance.DetectedItem{
			{EntityType: "EMAIL", Text: "user@example.ph"},
		},
	})

	assert.Equal(t, compliance.StatusCompliant, report.ComplianceStatus)
	assert.Equal(t, compliance.RiskLow, report.RiskLevel)
	assert.Empty(t, report.Violations)
	// The impact-assessment entry still applies when items were found.
	require.Len(t, report.Recommendations, 1)
	assert.Equal(t, "Conduct privacy impact assessment", report.Recommendations[0].Action)
}

func TestAnalyze_EmptyInput(t *testing.T) {
	svc := newTestService(t, nil, Config{})

	report := svc.Analyze(context.Background(), Request{})

	assert.Equal(t, "Unknown Document", report.DocumentName)
	assert.Equal(t, compliance.StatusCompliant, report.ComplianceStatus)
	assert.Equal(t, compliance.RiskLow, report.RiskLevel)
	assert.Contains(t, report.AnalysisNotes, "document text is empty")
	assert.NotNil(t, report.Violations)
	assert.NotNil(t, report.Recommendations)
	assert.NotNil(t, report.ItemSummary.RegularItems)
}

func TestAnalyze_SecondaryMerged(t *testing.T) {
	stub := &stubAnalyzer{
		result: &SecondaryResult{
			Violations: []SecondaryViolation{
				{Section: "Section 16", ViolationType: "rights_not_disclosed", Severity: "MEDIUM"},
			},
			Risk:     SecondaryRisk{OverallRisk: "CRITICAL"},
			Insights: compliance.ExternalInsights{DocumentType: "consent form"},
		},
	}
	svc := newTestService(t, stub, Config{SecondaryEnabled: true})

	report := svc.Analyze(context.Background(), Request{
		DocumentName: "form.pdf",
		Text:         "Names collected with consent, used for enrollment.",
		Items:        []compliance.DetectedItem{{EntityType: "NAME", Text: "Maria"}},
	})

	assert.Equal(t, 1, stub.calls)
	assert.True(t, report.ExternalApplied)
	assert.Equal(t, compliance.RiskCritical, report.RiskLevel)
	assert.Equal(t, compliance.RiskCritical, report.ExternalRiskLevel)
	assert.Equal(t, "consent form", report.ExternalInsights.DocumentType)
	assert.Equal(t, compliance.StatusNonCompliant, report.ComplianceStatus)
}

func TestAnalyze_SecondaryFailureDegrades(t *testing.T) {
	stub := &stubAnalyzer{err: errors.New("connection refused")}
	svc := newTestService(t, stub, Config{SecondaryEnabled: true})

	report := svc.Analyze(context.Background(), Request{
		DocumentName: "doc.txt",
		Text:         "Records without safeguards.",
		Items:        []compliance.DetectedItem{{EntityType: "EMAIL", Text: "a@b.ph"}},
	})

	assert.Equal(t, 1, stub.calls)
	assert.False(t, report.ExternalApplied)
	assert.Contains(t, report.AnalysisNotes, "external analysis unavailable")
	// Baseline findings survive intact.
	assert.Equal(t, compliance.StatusNonCompliant, report.ComplianceStatus)
	assert.NotEmpty(t, report.Violations)
}

func TestAnalyze_SecondaryTimeout(t *testing.T) {
	stub := &stubAnalyzer{
		delay:  200 * time.Millisecond,
		result: &SecondaryResult{Risk: SecondaryRisk{OverallRisk: "CRITICAL"}},
	}
	svc := newTestService(t, stub, Config{
		SecondaryEnabled: true,
		SecondaryTimeout: 10 * time.Millisecond,
	})

	report := svc.Analyze(context.Background(), Request{
		Text:  "text",
		Items: []compliance.DetectedItem{{EntityType: "EMAIL", Text: "a@b.ph"}},
	})

	assert.False(t, report.ExternalApplied)
	assert.Contains(t, report.AnalysisNotes, "external analysis unavailable")
}

func TestAnalyze_SecondarySkips(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		req  Request
	}{
		{
			name: "disabled globally",
			cfg:  Config{SecondaryEnabled: false},
			req:  Request{Text: "text"},
		},
		{
			name: "skipped per request",
			cfg:  Config{SecondaryEnabled: true},
			req:  Request{Text: "text", SkipSecondary: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubAnalyzer{result: &SecondaryResult{}}
			svc := newTestService(t, stub, tt.cfg)

			report := svc.Analyze(context.Background(), tt.req)

			assert.Equal(t, 0, stub.calls)
			assert.False(t, report.ExternalApplied)
		})
	}
}

func TestAnalyze_InlineSecondaryBypassesAnalyzer(t *testing.T) {
	stub := &stubAnalyzer{result: &SecondaryResult{}}
	svc := newTestService(t, stub, Config{SecondaryEnabled: true})

	report := svc.Analyze(context.Background(), Request{
		Text: "text",
		Secondary: &SecondaryResult{
			Risk: SecondaryRisk{OverallRisk: "HIGH"},
		},
	})

	assert.Equal(t, 0, stub.calls)
	assert.True(t, report.ExternalApplied)
	assert.Equal(t, compliance.RiskHigh, report.RiskLevel)
}

func TestAnalyze_Idempotent(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	req := Request{
		DocumentName: "repeat.txt",
		Text:         "Customer data held in plain text without authorization language.",
		Items: []compliance.DetectedItem{
			{EntityType: "EMAIL", Text: "x@y.ph"},
			{EntityType: "HEALTH_INFO", Text: "asthma"},
		},
	}

	first := svc.Analyze(context.Background(), req)
	second := svc.Analyze(context.Background(), req)

	assert.Equal(t, violationTypes(first.Violations), violationTypes(second.Violations))
	assert.Equal(t, first.RiskLevel, second.RiskLevel)
	assert.Equal(t, first.ComplianceStatus, second.ComplianceStatus)
	assert.Equal(t, len(first.Recommendations), len(second.Recommendations))
	assert.NotEqual(t, first.AnalysisID, second.AnalysisID)
}

// Adding detected items can only hold or raise the risk level, never
// lower it.
func TestAnalyze_RiskMonotonicInItems(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	text := "Inventory of customer records."

	var items []compliance.DetectedItem
	prev := compliance.RiskUnknown
	for i := 0; i < 15; i++ {
		items = append(items, compliance.DetectedItem{EntityType: "EMAIL", Text: "a@b.ph"})
		report := svc.Analyze(context.Background(), Request{Text: text, Items: items})
		require.GreaterOrEqual(t, report.RiskLevel, prev)
		prev = report.RiskLevel
	}
}
