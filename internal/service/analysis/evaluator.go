package analysis

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
	"github.com/privacyguard/dpa-engine/internal/domain/knowledge"
	"github.com/privacyguard/dpa-engine/internal/domain/signal"
)

// Violation type identifiers, in rule order.
const (
	TypeUnauthorizedProcessing  = "unauthorized_processing"
	TypeInadequateSPIProtection = "inadequate_spi_protection"
	TypeLackOfTransparency      = "lack_of_transparency"
	TypeExcessiveProcessing     = "excessive_processing"
	TypeInadequateSecurity      = "inadequate_security"
)

// excessiveItemThreshold is the item count above which processing is
// presumed disproportionate.
const excessiveItemThreshold = 10

// statuteExcerptLen bounds the statute text embedded in each violation.
const statuteExcerptLen = 200

// Fallback titles used when the knowledge base has no content for the
// section.
var sectionTitleFallbacks = map[string]string{
	"11": "General Data Privacy Principles",
	"12": "Criteria for Lawful Processing of Personal Information",
	"13": "Sensitive Personal Information and Privileged Information",
	"20": "Security of Personal Information",
}

// Evaluator runs the fixed, ordered violation rule table against a
// document. Rule order is part of the output contract: reports list
// violations in rule order, so two runs over the same input are
// byte-identical apart from generated IDs.
type Evaluator struct {
	kb     *knowledge.Base
	logger *zap.Logger
}

// NewEvaluator creates an evaluator over the given knowledge base.
func NewEvaluator(kb *knowledge.Base, logger *zap.Logger) *Evaluator {
	if kb == nil {
		kb = knowledge.NewEmpty()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		kb:     kb,
		logger: logger.Named("evaluator"),
	}
}

// Evaluate applies every rule in order and returns the violations found.
// The text signals (consent, purpose, insecurity) are derived here so
// callers pass only the raw inputs.
func (e *Evaluator) Evaluate(text string, items compliance.ItemSummary) []compliance.Violation {
	hasConsent := signal.HasConsentIndicator(text)
	hasPurpose := signal.HasPurposeStatement(text)

	violations := []compliance.Violation{}

	if items.TotalCount > 0 && !hasConsent {
		violations = append(violations, e.newViolation("12", TypeUnauthorizedProcessing,
			compliance.SeverityHigh,
			"Personal information detected without evidence of consent or other lawful basis as required by Section 12",
			fmt.Sprintf("Found %d personal information instances without consent indicators. Section 12 requires: %s",
				items.TotalCount, e.sectionBrief("12")),
			itemTexts(items.RegularItems, 5),
		))
	}

	if items.SensitiveCount > 0 {
		violations = append(violations, e.newViolation("13", TypeInadequateSPIProtection,
			compliance.SeverityCritical,
			"Sensitive personal information detected without adequate protection measures as required by Section 13",
			fmt.Sprintf("Found %d sensitive personal information instances. Section 13 states: %s",
				items.SensitiveCount, e.sectionBrief("13")),
			itemTexts(items.SensitiveItems, 5),
		))
	}

	if items.TotalCount > 0 && !hasPurpose {
		violations = append(violations, e.newViolation("11", TypeLackOfTransparency,
			compliance.SeverityMedium,
			"Personal information processing without clear purpose statement violates transparency principle",
			fmt.Sprintf("No purpose statement found for data processing. Section 11 requires: %s",
				e.sectionBrief("11")),
			nil,
		))
	}

	if items.TotalCount > excessiveItemThreshold {
		violations = append(violations, e.newViolation("11", TypeExcessiveProcessing,
			compliance.SeverityMedium,
			"Potentially excessive personal information processing violates proportionality principle",
			fmt.Sprintf("Large amount of personal information detected (%d instances) may violate proportionality requirements",
				items.TotalCount),
			nil,
		))
	}

	if phrase, found := signal.FirstInsecurityMatch(text); found {
		violations = append(violations, e.newViolation("20", TypeInadequateSecurity,
			compliance.SeverityHigh,
			"Inadequate security measures for personal information as required by Section 20",
			fmt.Sprintf("Security concern detected: %s. Section 20 requires: %s",
				phrase, e.sectionBrief("20")),
			nil,
		))
	}

	e.logger.Debug("rule evaluation complete",
		zap.Int("violations", len(violations)),
		zap.Int("items", items.TotalCount),
		zap.Int("sensitive_items", items.SensitiveCount),
		zap.Bool("consent_found", hasConsent),
		zap.Bool("purpose_found", hasPurpose),
	)

	return violations
}

func (e *Evaluator) newViolation(sectionNumber, violationType string, severity compliance.Severity, description, details string, affected []string) compliance.Violation {
	if affected == nil {
		affected = []string{}
	}
	return compliance.Violation{
		ID:            uuid.New(),
		Section:       "Section " + sectionNumber,
		ViolationType: violationType,
		Title:         e.sectionTitle(sectionNumber),
		Severity:      severity,
		Description:   description,
		Details:       details,
		AffectedData:  affected,
		StatuteRef:    knowledge.Excerpt(e.kb.Section(sectionNumber).Content, statuteExcerptLen),
		Source:        compliance.SourceRuleBased,
		Confidence:    1.0,
	}
}

func (e *Evaluator) sectionTitle(number string) string {
	if s := e.kb.Section(number); s.Title != "" {
		return s.Title
	}
	return sectionTitleFallbacks[number]
}

// sectionBrief condenses a section to its first sentence, capped at 100
// runes. Used inside violation detail strings.
func (e *Evaluator) sectionBrief(number string) string {
	content := e.kb.Section(number).Content
	if content == "" {
		return "Section content not available"
	}
	if i := strings.Index(content, ". "); i >= 0 {
		content = content[:i]
	}
	return knowledge.Excerpt(content, 100)
}

func itemTexts(items []compliance.DetectedItem, max int) []string {
	out := []string{}
	for _, item := range items {
		out = append(out, item.Text)
		if len(out) == max {
			break
		}
	}
	return out
}
