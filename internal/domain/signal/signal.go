// Package signal provides the pure text and item detectors the violation
// rules consume. Everything here is deterministic and stateless.
package signal

import (
	"regexp"

	"github.com/privacyguard/dpa-engine/internal/domain/compliance"
)

// consentPatterns flag language that suggests a consent mechanism is
// present. Includes Filipino variants alongside English. Word boundaries
// keep derived words ("disagree", "unacceptable") from matching.
var consentPatterns = compileKeywordPatterns(
	"consent",
	"agree",
	"authorize",
	"permit",
	"allow",
	"approve",
	"accept",
	"payag",
	"sang-ayon",
	"pahintulot",
)

// purposePatterns flag a declared processing purpose.
var purposePatterns = compileKeywordPatterns(
	"purpose",
	"intended for",
	"used for",
	"processed for",
	"layunin",
	"gagamitin",
)

func compileKeywordPatterns(keywords ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return patterns
}

// insecurityPattern pairs a compiled expression with the phrase reported
// in the resulting violation.
type insecurityPattern struct {
	phrase string
	re     *regexp.Regexp
}

// insecurityPatterns are checked in order; the evaluator reports only
// the first match.
var insecurityPatterns = []insecurityPattern{
	{phrase: "unencrypted", re: regexp.MustCompile(`(?i)\bunencrypted\b`)},
	{phrase: "plain text", re: regexp.MustCompile(`(?i)\bplain text\b`)},
	{phrase: "no encryption", re: regexp.MustCompile(`(?i)\bno encryption\b`)},
	{phrase: "unsecured", re: regexp.MustCompile(`(?i)\bunsecured\b`)},
	{phrase: "no password", re: regexp.MustCompile(`(?i)\bno password\b`)},
	{phrase: "no security", re: regexp.MustCompile(`(?i)\bno security\b`)},
}

// sensitiveEntityTypes are treated as sensitive regardless of the
// extractor's per-item flag.
var sensitiveEntityTypes = map[string]bool{
	"HEALTH_INFO":    true,
	"RELIGIOUS_INFO": true,
	"FINANCIAL_INFO": true,
	"PH_TIN":         true,
	"PH_SSS":         true,
	"PH_PHILHEALTH":  true,
}

// HasConsentIndicator reports whether the text contains any consent
// keyword as a whole word, case-insensitively.
func HasConsentIndicator(text string) bool {
	return matchesAny(text, consentPatterns)
}

// HasPurposeStatement reports whether the text declares a processing
// purpose.
func HasPurposeStatement(text string) bool {
	return matchesAny(text, purposePatterns)
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// FirstInsecurityMatch returns the phrase of the first insecurity
// pattern found in the text. Later matches are ignored so a document
// full of insecure language still yields a single finding.
func FirstInsecurityMatch(text string) (string, bool) {
	for _, p := range insecurityPatterns {
		if p.re.MatchString(text) {
			return p.phrase, true
		}
	}
	return "", false
}

// IsSensitive reports whether a detected item counts as sensitive
// personal information: either the extractor flagged it or its entity
// type is in the fixed sensitive set.
func IsSensitive(item compliance.DetectedItem) bool {
	return item.IsSensitive || sensitiveEntityTypes[item.EntityType]
}

// Partition splits detected items into regular and sensitive groups,
// preserving input order within each group.
func Partition(items []compliance.DetectedItem) compliance.ItemSummary {
	summary := compliance.ItemSummary{
		RegularItems:   []compliance.DetectedItem{},
		SensitiveItems: []compliance.DetectedItem{},
	}
	for _, item := range items {
		if IsSensitive(item) {
			summary.SensitiveItems = append(summary.SensitiveItems, item)
		} else {
			summary.RegularItems = append(summary.RegularItems, item)
		}
	}
	summary.TotalCount = len(items)
	summary.SensitiveCount = len(summary.SensitiveItems)
	summary.RegularCount = len(summary.RegularItems)
	return summary
}

// EntityTypes returns the distinct entity types of the given items in
// first-seen order, capped at max when max > 0. Violation records use
// these as affected-data samples.
func EntityTypes(items []compliance.DetectedItem, max int) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, item := range items {
		if seen[item.EntityType] {
			continue
		}
		seen[item.EntityType] = true
		out = append(out, item.EntityType)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
