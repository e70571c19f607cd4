// Package knowledge holds the statute knowledge base: an immutable,
// in-memory representation of the Data Privacy Act's sections,
// definitions, penalties and rights, loaded once at startup and safe for
// unsynchronized concurrent reads.
package knowledge

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Section is one statutory section, keyed by its section number.
type Section struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Rules    []string `json:"rules,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Definition is a statutory term definition keyed by the lowercase term.
type Definition struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Section    string `json:"section"`
}

// Penalty lists the fines and imprisonment ranges attached to a section.
type Penalty struct {
	Title        string   `json:"title"`
	Fines        []string `json:"fines"`
	Imprisonment []string `json:"imprisonment"`
}

// RuleSet is the per-section compliance-rule summary produced by the
// offline knowledge-base builder.
type RuleSet struct {
	Rules []string `json:"rules"`
}

// IndexEntry is one posting of the inverted search index. Type is either
// "section" or "definition".
type IndexEntry struct {
	Type       string `json:"type"`
	Section    string `json:"section,omitempty"`
	Term       string `json:"term,omitempty"`
	Title      string `json:"title,omitempty"`
	Definition string `json:"definition,omitempty"`
}

// SearchResult is a ranked hit returned by Search.
type SearchResult struct {
	Type      string `json:"type"`
	Section   string `json:"section,omitempty"`
	Term      string `json:"term,omitempty"`
	Title     string `json:"title"`
	Relevance int    `json:"relevance"`
}

// SectionSummary is the condensed view of a section together with its
// compliance rules and penalties.
type SectionSummary struct {
	Section   string   `json:"section"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Rules     []string `json:"compliance_rules"`
	Penalties Penalty  `json:"related_penalties"`
}

// Stats describes the loaded knowledge base.
type Stats struct {
	Sections             int    `json:"total_sections"`
	Definitions          int    `json:"definitions"`
	PenaltySections      int    `json:"penalty_sections"`
	DataSubjectRights    int    `json:"data_subject_rights"`
	CommissionFunctions  int    `json:"npc_functions"`
	ProcessingPrinciples int    `json:"processing_principles"`
	RuleSets             int    `json:"compliance_rule_sets"`
	IndexTerms           int    `json:"search_index_terms"`
	Source               string `json:"source"`
	ProcessedDate        string `json:"last_updated"`
}

// document is the persisted knowledge-base form: a single JSON document
// keyed by section-number strings plus the auxiliary top-level maps.
type document struct {
	Metadata struct {
		Source        string `json:"source"`
		Version       string `json:"version"`
		ProcessedDate string `json:"processed_date"`
	} `json:"metadata"`
	Sections             map[string]Section      `json:"sections"`
	Definitions          map[string]Definition   `json:"definitions"`
	Penalties            map[string]Penalty      `json:"penalties"`
	DataSubjectRights    map[string]string       `json:"data_subject_rights"`
	CommissionFunctions  map[string]string       `json:"npc_functions"`
	ProcessingPrinciples map[string]string       `json:"processing_principles"`
	ComplianceRules      map[string]RuleSet      `json:"compliance_rules"`
	SearchIndex          map[string][]IndexEntry `json:"search_index"`
}

// Base is the loaded, read-only knowledge base. A missing or corrupt
// backing file is a degraded condition, not an error: the base starts
// empty and every query returns empty results.
type Base struct {
	doc    document
	loaded bool
}

// NewEmpty returns a knowledge base with no content. All lookups return
// sentinel values.
func NewEmpty() *Base {
	return &Base{}
}

// Load reads the knowledge base from path. It never fails: on any read
// or decode problem the returned base is empty and the condition is
// logged, per the engine's never-fail-the-caller contract.
func Load(path string, logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("knowledge base unavailable, starting empty",
			zap.String("path", path),
			zap.Error(err),
		)
		return NewEmpty()
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("knowledge base corrupt, starting empty",
			zap.String("path", path),
			zap.Error(err),
		)
		return NewEmpty()
	}

	b := &Base{doc: doc, loaded: true}
	logger.Info("knowledge base loaded",
		zap.String("path", path),
		zap.Int("sections", len(doc.Sections)),
		zap.Int("definitions", len(doc.Definitions)),
		zap.String("version", doc.Metadata.Version),
	)
	return b
}

// Empty reports whether the base holds no content.
func (b *Base) Empty() bool {
	return !b.loaded || len(b.doc.Sections) == 0
}

// Section returns the section for the given number. Unknown numbers
// return an empty sentinel section, never an error.
func (b *Base) Section(number string) Section {
	if s, ok := b.doc.Sections[number]; ok {
		return s
	}
	return Section{}
}

// Definition looks up a term. Matching is substring-tolerant in both
// directions: the query matches an indexed key when either contains the
// other. Candidate keys are scanned in sorted order so the result is
// deterministic.
func (b *Base) Definition(term string) (Definition, bool) {
	q := strings.ToLower(strings.TrimSpace(term))
	if q == "" {
		return Definition{}, false
	}
	keys := make([]string, 0, len(b.doc.Definitions))
	for k := range b.doc.Definitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, q) || strings.Contains(q, k) {
			return b.doc.Definitions[k], true
		}
	}
	return Definition{}, false
}

// Penalty returns the penalty record for a section, if any.
func (b *Base) Penalty(number string) (Penalty, bool) {
	p, ok := b.doc.Penalties[number]
	return p, ok
}

// Rules returns the compliance-rule summaries for a section. Unknown
// sections return an empty slice.
func (b *Base) Rules(number string) []string {
	if rs, ok := b.doc.ComplianceRules[number]; ok {
		return rs.Rules
	}
	return nil
}

// DataSubjectRights returns a copy of the rights map.
func (b *Base) DataSubjectRights() map[string]string {
	return copyMap(b.doc.DataSubjectRights)
}

// CommissionFunctions returns a copy of the privacy commission function map.
func (b *Base) CommissionFunctions() map[string]string {
	return copyMap(b.doc.CommissionFunctions)
}

// ProcessingPrinciples returns a copy of the processing-principle map.
func (b *Base) ProcessingPrinciples() map[string]string {
	return copyMap(b.doc.ProcessingPrinciples)
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Search ranks knowledge-base content for a keyword. Relevance is the
// term frequency in section content with title matches weighted double;
// inverted-index postings for the exact token are included as well. Ties
// break by ascending section number, then term, so output is stable.
func (b *Base) Search(keyword string, limit int) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(keyword))
	if q == "" || limit <= 0 {
		return []SearchResult{}
	}

	results := make([]SearchResult, 0, limit)
	seenSections := make(map[string]bool)

	for _, entry := range b.doc.SearchIndex[q] {
		r := SearchResult{
			Type:      entry.Type,
			Section:   entry.Section,
			Term:      entry.Term,
			Title:     entry.Title,
			Relevance: 1,
		}
		if entry.Type == "section" {
			seenSections[entry.Section] = true
		}
		results = append(results, r)
	}

	numbers := make([]string, 0, len(b.doc.Sections))
	for n := range b.doc.Sections {
		numbers = append(numbers, n)
	}
	sort.Sort(bySectionNumber(numbers))

	for _, n := range numbers {
		if seenSections[n] {
			continue
		}
		s := b.doc.Sections[n]
		content := strings.Count(strings.ToLower(s.Content), q)
		title := strings.Count(strings.ToLower(s.Title), q)
		score := content + 2*title
		if score == 0 {
			continue
		}
		results = append(results, SearchResult{
			Type:      "section",
			Section:   n,
			Title:     s.Title,
			Relevance: score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		if results[i].Section != results[j].Section {
			return lessSectionNumber(results[i].Section, results[j].Section)
		}
		return results[i].Term < results[j].Term
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Summary returns the condensed view of a section; ok is false when the
// section is unknown.
func (b *Base) Summary(number string) (SectionSummary, bool) {
	s, ok := b.doc.Sections[number]
	if !ok {
		return SectionSummary{}, false
	}
	penalty, _ := b.Penalty(number)
	rules := b.Rules(number)
	if rules == nil {
		rules = []string{}
	}
	return SectionSummary{
		Section:   number,
		Title:     s.Title,
		Summary:   Excerpt(s.Content, 300),
		Rules:     rules,
		Penalties: penalty,
	}, true
}

// Stats describes the loaded content.
func (b *Base) Stats() Stats {
	return Stats{
		Sections:             len(b.doc.Sections),
		Definitions:          len(b.doc.Definitions),
		PenaltySections:      len(b.doc.Penalties),
		DataSubjectRights:    len(b.doc.DataSubjectRights),
		CommissionFunctions:  len(b.doc.CommissionFunctions),
		ProcessingPrinciples: len(b.doc.ProcessingPrinciples),
		RuleSets:             len(b.doc.ComplianceRules),
		IndexTerms:           len(b.doc.SearchIndex),
		Source:               b.doc.Metadata.Source,
		ProcessedDate:        b.doc.Metadata.ProcessedDate,
	}
}

// Excerpt truncates content to at most n runes, appending an ellipsis
// when anything was cut. Violation records embed these excerpts so
// consumers need no second knowledge-base query.
func Excerpt(content string, n int) string {
	if content == "" {
		return ""
	}
	if utf8.RuneCountInString(content) <= n {
		return content
	}
	runes := []rune(content)
	return string(runes[:n]) + "..."
}

// bySectionNumber sorts section-number strings numerically where
// possible ("2" before "11"), falling back to lexical order.
type bySectionNumber []string

func (s bySectionNumber) Len() int      { return len(s) }
func (s bySectionNumber) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s bySectionNumber) Less(i, j int) bool {
	return lessSectionNumber(s[i], s[j])
}

func lessSectionNumber(a, b string) bool {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
