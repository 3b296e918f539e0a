package model

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryStatute    Category = "statute"
	CategoryCaseLaw    Category = "case-law"
	CategoryRegulation Category = "regulation"
	CategoryGuide      Category = "guide"
)

var categories = []Category{CategoryStatute, CategoryCaseLaw, CategoryRegulation, CategoryGuide}

func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func ParseCategory(s string) (Category, error) {
	key := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range categories {
		if c == key {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category: %q", s)
}

// Chunk is an immutable unit of retrievable source text. EmbeddingModel tags
// the model version that produced Embedding.
type Chunk struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"document_id"`
	Seq            int64     `json:"seq"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Category       Category  `json:"category"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"embedding"`
	EmbeddingModel string    `json:"embedding_model"`
	Position       int       `json:"position"`
	Ctime          int64     `json:"ctime"`
}

type ScoredChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
}
