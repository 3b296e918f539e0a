package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xxxsen/legalrag/internal/config"
)

// Store archives the raw text of ingested documents so the corpus can be
// rebuilt after a chunking or embedding model change.
type Store interface {
	Type() string
	Save(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Factory func(args interface{}) (Store, error)

// factories is filled from init functions only.
var factories = map[string]Factory{}

func register(name string, factory Factory) {
	factories[name] = factory
}

func New(cfg config.FileStoreConfig) (Store, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Type))
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unsupported file store type: %q", cfg.Type)
	}
	return factory(cfg.Data)
}

// SourceKey names the archived source of a document.
func SourceKey(docID string) string {
	return docID + ".md"
}

// SaveText archives text under key.
func SaveText(ctx context.Context, s Store, key, text string) error {
	return s.Save(ctx, key, strings.NewReader(text), int64(len(text)))
}

// Keys are flat names; anything that could escape the store root is refused.
func validKey(key string) error {
	if key == "" || key == "." || strings.Contains(key, "..") || strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("invalid file key: %q", key)
	}
	return nil
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("file_store.data is required")
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode file_store.data: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode file_store.data: %w", err)
	}
	return nil
}
