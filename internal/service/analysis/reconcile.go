package analysis

import (
	"strings"

	"github.com/google/uuid"

	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
)

// Defaults applied to underspecified secondary findings.
const (
	defaultSecondarySection    = "External Analysis"
	defaultSecondaryType       = "external_detected"
	defaultSecondaryConfidence = 0.8
)

// Merge folds a secondary result into the baseline report: non-duplicate
// violations and recommendations are appended, the risk level is raised
// to the maximum of both assessments, narrative insights are carried
// verbatim, and the compliance status is recomputed from the merged
// violation list. Baseline findings are never modified or removed.
func Merge(report *compliance.Report, secondary *SecondaryResult) {
	if report == nil || secondary == nil {
		return
	}

	for _, sv := range secondary.Violations {
		if isDuplicateViolation(sv, report.Violations) {
			continue
		}
		report.Violations = append(report.Violations, convertViolation(sv))
	}

	for _, sr := range secondary.Recommendations {
		if isDuplicateRecommendation(sr, report.Recommendations) {
			continue
		}
		report.Recommendations = append(report.Recommendations, convertRecommendation(sr))
	}

	if level := compliance.ParseRiskLevel(secondary.Risk.OverallRisk); level != compliance.RiskUnknown {
		report.ExternalRiskLevel = level
		report.RiskLevel = compliance.MaxRiskLevel(report.RiskLevel, level)
	}

	report.ExternalInsights = secondary.Insights
	if report.ExternalInsights.ComplianceGaps == nil {
		report.ExternalInsights.ComplianceGaps = []string{}
	}
	report.ExternalApplied = true
	report.RecomputeStatus()
}

func convertViolation(sv SecondaryViolation) compliance.Violation {
	section := sv.Section
	if section == "" {
		section = defaultSecondarySection
	}
	violationType := sv.ViolationType
	if violationType == "" {
		violationType = defaultSecondaryType
	}
	confidence := sv.Confidence
	if confidence == 0 {
		confidence = defaultSecondaryConfidence
	}
	return compliance.Violation{
		ID:            uuid.New(),
		Section:       section,
		ViolationType: violationType,
		Title:         section,
		Severity:      compliance.ParseSeverity(sv.Severity),
		Description:   sv.Description,
		Details:       sv.LegalBasis,
		AffectedData:  []string{},
		Source:        compliance.SourceExternalModel,
		Confidence:    confidence,
	}
}

func convertRecommendation(sr SecondaryRecommendation) compliance.Recommendation {
	ref := sr.SectionReference
	if ref == "" {
		ref = defaultSecondarySection
	}
	return compliance.Recommendation{
		Priority:         compliance.ParseSeverity(sr.Priority),
		Action:           sr.Action,
		Description:      sr.Description,
		SectionReference: ref,
		Source:           compliance.SourceExternalModel,
	}
}

// isDuplicateViolation reports whether a secondary violation restates a
// baseline one. Matching is case-insensitive mutual containment on both
// section and violation type, so "Section 12" matches "section 12:
// lawful processing" in either direction.
func isDuplicateViolation(sv SecondaryViolation, baseline []compliance.Violation) bool {
	section := strings.ToLower(sv.Section)
	violationType := strings.ToLower(sv.ViolationType)

	for _, b := range baseline {
		bSection := strings.ToLower(b.Section)
		bType := strings.ToLower(b.ViolationType)
		if mutualContains(section, bSection) && mutualContains(violationType, bType) {
			return true
		}
	}
	return false
}

// isDuplicateRecommendation matches on the action text alone.
func isDuplicateRecommendation(sr SecondaryRecommendation, baseline []compliance.Recommendation) bool {
	action := strings.ToLower(sr.Action)
	for _, b := range baseline {
		if mutualContains(action, strings.ToLower(b.Action)) {
			return true
		}
	}
	return false
}

func mutualContains(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
