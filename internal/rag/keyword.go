package rag

import (
	"strings"
	"unicode"

	"github.com/xxxsen/legalrag/internal/model"
)

// Stage is the first-pass routing decision: LocalMatch or NeedsRetrieval.
type Stage interface {
	stage()
}

// LocalMatch narrows retrieval to the categories the question names.
type LocalMatch struct {
	Categories []model.Category
	Keywords   []string
}

// NeedsRetrieval searches the whole corpus.
type NeedsRetrieval struct{}

func (LocalMatch) stage()     {}
func (NeedsRetrieval) stage() {}

type KeywordRule struct {
	Category model.Category `json:"category"`
	Keywords []string       `json:"keywords"`
}

func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{Category: model.CategoryCaseLaw, Keywords: []string{"case law", "precedent", "judgment", "judgement", "ruling", "court held", "appeal"}},
		{Category: model.CategoryStatute, Keywords: []string{"statute", "statutory", "legislation", "act of parliament"}},
		{Category: model.CategoryRegulation, Keywords: []string{"regulation", "regulations", "regulatory", "code of conduct", "sra"}},
	}
}

type KeywordMatcher struct {
	rules []KeywordRule
}

func NewKeywordMatcher(rules []KeywordRule) *KeywordMatcher {
	normalized := make([]KeywordRule, 0, len(rules))
	for _, rule := range rules {
		var kws []string
		for _, kw := range rule.Keywords {
			if kw = normalizeText(kw); kw != "" {
				kws = append(kws, kw)
			}
		}
		if len(kws) == 0 {
			continue
		}
		normalized = append(normalized, KeywordRule{Category: rule.Category, Keywords: kws})
	}
	return &KeywordMatcher{rules: normalized}
}

// Match is deterministic: rule order decides category order.
func (m *KeywordMatcher) Match(question string) Stage {
	if m == nil || len(m.rules) == 0 {
		return NeedsRetrieval{}
	}
	text := " " + normalizeText(question) + " "
	var match LocalMatch
	for _, rule := range m.rules {
		hit := false
		for _, kw := range rule.Keywords {
			if strings.Contains(text, " "+kw+" ") {
				match.Keywords = append(match.Keywords, kw)
				hit = true
			}
		}
		if hit {
			match.Categories = append(match.Categories, rule.Category)
		}
	}
	if len(match.Categories) == 0 {
		return NeedsRetrieval{}
	}
	return match
}

// normalizeText lowercases s and collapses every run of non-alphanumerics
// into a single space so keywords only match whole words.
func normalizeText(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
