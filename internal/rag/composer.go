package rag

import (
	"fmt"
	"strings"

	"github.com/xxxsen/legalrag/internal/model"
)

const DefaultHistoryWindow = 5

const groundingRules = `You are a legal information assistant. Answer the question using ONLY the numbered sources below.
Rules:
- Use only the information contained in the provided sources.
- Never fabricate facts, cases, statutes or citations.
- Cite every statement with its source as [Source N].
- If the sources do not contain enough information to answer, say so explicitly.
- Be concise and professional.`

type Composer struct {
	historyWindow int
}

func NewComposer(historyWindow int) *Composer {
	if historyWindow < 0 {
		historyWindow = 0
	}
	return &Composer{historyWindow: historyWindow}
}

// Compose renders the grounded prompt. Chunk content is copied verbatim.
func (c *Composer) Compose(question string, userContext string, chunks []model.ScoredChunk, history []model.HistoryMessage) string {
	var sb strings.Builder
	sb.WriteString(groundingRules)
	sb.WriteString("\n\nSOURCES:\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&sb, "[Source %d] %s\n%s\n\n", i+1, chunk.Title, chunk.Content)
	}

	if recent := c.recentHistory(history); len(recent) > 0 {
		sb.WriteString("CONVERSATION:\n")
		for _, msg := range recent {
			fmt.Fprintf(&sb, "%s: %s\n", msg.Speaker, msg.Message)
		}
		sb.WriteString("\n")
	}

	if ctx := strings.TrimSpace(userContext); ctx != "" {
		sb.WriteString("CONTEXT:\n")
		sb.WriteString(ctx)
		sb.WriteString("\n\n")
	}

	sb.WriteString("QUESTION:\n")
	sb.WriteString(question)
	return sb.String()
}

func (c *Composer) recentHistory(history []model.HistoryMessage) []model.HistoryMessage {
	if c.historyWindow == 0 {
		return nil
	}
	kept := make([]model.HistoryMessage, 0, len(history))
	for _, msg := range history {
		if strings.TrimSpace(msg.Message) == "" {
			continue
		}
		kept = append(kept, msg)
	}
	if len(kept) > c.historyWindow {
		kept = kept[len(kept)-c.historyWindow:]
	}
	return kept
}
