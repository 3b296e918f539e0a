package rag

import (
	"strings"
	"unicode"

	"github.com/xxxsen/legalrag/internal/model"
)

const (
	DefaultSnippetLength = 200
	snippetEllipsis      = "..."
)

// Snippet truncates content to at most max runes, marking the cut with an
// ellipsis. max counts the marker.
func Snippet(content string, max int) string {
	content = strings.TrimSpace(content)
	if max <= 0 {
		max = DefaultSnippetLength
	}
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	cut := max - len(snippetEllipsis)
	if cut < 0 {
		cut = 0
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + snippetEllipsis
}

// BuildSources keeps the order of chunks, which is similarity rank.
func BuildSources(chunks []model.ScoredChunk, snippetLength int) []model.Source {
	sources := make([]model.Source, 0, len(chunks))
	for _, chunk := range chunks {
		sources = append(sources, model.Source{
			Title:      chunk.Title,
			URL:        chunk.URL,
			Snippet:    Snippet(chunk.Content, snippetLength),
			Category:   chunk.Category,
			Confidence: clampUnit(chunk.Similarity),
		})
	}
	return sources
}

// MeanConfidence is the arithmetic mean of source confidences, 0 for none.
func MeanConfidence(sources []model.Source) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		sum += s.Confidence
	}
	return clampUnit(sum / float64(len(sources)))
}

func Refusal() *model.Answer {
	return &model.Answer{
		Text:       RefusalMessage,
		Sources:    []model.Source{},
		Confidence: 0,
		Outcome:    model.OutcomeRefused,
	}
}

func assemble(text string, chunks []model.ScoredChunk, snippetLength int, outcome model.Outcome) *model.Answer {
	sources := BuildSources(chunks, snippetLength)
	return &model.Answer{
		Text:       text,
		Sources:    sources,
		Confidence: MeanConfidence(sources),
		Outcome:    outcome,
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
