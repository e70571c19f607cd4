package analysis

import (
	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
)

// Risk thresholds on item counts.
const (
	criticalSensitiveThreshold = 5
	highItemThreshold          = 10
)

// AssessRisk derives the report-wide risk level from the violation list
// and item counts. Precedence runs top down: CRITICAL, HIGH, MEDIUM,
// LOW. A document with no violations is always LOW regardless of item
// counts.
func AssessRisk(violations []compliance.Violation, items compliance.ItemSummary) compliance.RiskLevel {
	if len(violations) == 0 {
		return compliance.RiskLow
	}

	var criticalCount, highCount int
	for _, v := range violations {
		switch v.Severity {
		case compliance.SeverityCritical:
			criticalCount++
		case compliance.SeverityHigh:
			highCount++
		}
	}

	switch {
	case criticalCount > 0 || items.SensitiveCount > criticalSensitiveThreshold:
		return compliance.RiskCritical
	case highCount > 0 || items.TotalCount > highItemThreshold:
		return compliance.RiskHigh
	default:
		return compliance.RiskMedium
	}
}

// recommendationEntry is one row of the fixed remediation table.
type recommendationEntry struct {
	violationType    string
	priority         compliance.Severity
	action           string
	description      string
	sectionReference string
}

// recommendationTable maps violation types to remediation actions.
// Output order follows table order, not violation order.
var recommendationTable = []recommendationEntry{
	{
		violationType:    TypeUnauthorizedProcessing,
		priority:         compliance.SeverityHigh,
		action:           "Obtain proper consent",
		description:      "Implement consent mechanisms before processing personal information",
		sectionReference: "Section 12",
	},
	{
		violationType:    TypeInadequateSPIProtection,
		priority:         compliance.SeverityCritical,
		action:           "Enhance SPI protection",
		description:      "Implement additional security measures for sensitive personal information",
		sectionReference: "Section 13, Section 20",
	},
	{
		violationType:    TypeLackOfTransparency,
		priority:         compliance.SeverityMedium,
		action:           "Add purpose statements",
		description:      "Clearly state the purpose for processing personal information",
		sectionReference: "Section 11",
	},
	{
		violationType:    TypeExcessiveProcessing,
		priority:         compliance.SeverityMedium,
		action:           "Review data minimization",
		description:      "Ensure only necessary personal information is processed",
		sectionReference: "Section 11",
	},
	{
		violationType:    TypeInadequateSecurity,
		priority:         compliance.SeverityHigh,
		action:           "Implement security measures",
		description:      "Deploy appropriate technical and organizational security measures",
		sectionReference: "Section 20",
	},
}

// BuildRecommendations produces one recommendation per distinct
// triggering violation type (set semantics: repeated violations of a
// type yield a single entry), plus the unconditional privacy impact
// assessment entry whenever any item was detected.
func BuildRecommendations(violations []compliance.Violation, items compliance.ItemSummary) []compliance.Recommendation {
	present := make(map[string]bool, len(violations))
	for _, v := range violations {
		present[v.ViolationType] = true
	}

	recs := []compliance.Recommendation{}
	for _, entry := range recommendationTable {
		if !present[entry.violationType] {
			continue
		}
		recs = append(recs, compliance.Recommendation{
			Priority:         entry.priority,
			Action:           entry.action,
			Description:      entry.description,
			SectionReference: entry.sectionReference,
			Source:           compliance.SourceRuleBased,
		})
	}

	if items.TotalCount > 0 {
		recs = append(recs, compliance.Recommendation{
			Priority:         compliance.SeverityLow,
			Action:           "Conduct privacy impact assessment",
			Description:      "Perform a comprehensive privacy impact assessment for this document",
			SectionReference: "General DPA Compliance",
			Source:           compliance.SourceRuleBased,
		})
	}

	return recs
}
