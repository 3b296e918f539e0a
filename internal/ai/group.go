package ai

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var errNoMember = errors.New("no model configured")

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// firstSuccess tries members in order and returns the first result. It stops
// as soon as ctx is done so a cancelled request never reaches a fallback.
func firstSuccess[T any](ctx context.Context, kind string, names []string, call func(i int) (T, error)) (T, error) {
	var zero T
	lastErr := errNoMember
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		res, err := call(i)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn(kind+" failed, trying next",
			zap.Int("index", i),
			zap.String("name", name),
			zap.Error(err),
		)
	}
	return zero, lastErr
}

type groupGenerator struct {
	names []string
	items []IGenerator
}

// NewGroupGenerator returns nil for no entries and the entry itself for one.
func NewGroupGenerator(entries []GeneratorEntry) IGenerator {
	g := &groupGenerator{}
	for _, e := range entries {
		if e.Generator == nil {
			continue
		}
		g.names = append(g.names, e.Name)
		g.items = append(g.items, e.Generator)
	}
	switch len(g.items) {
	case 0:
		return nil
	case 1:
		return g.items[0]
	}
	return g
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return firstSuccess(ctx, "generator", g.names, func(i int) (string, error) {
		return g.items[i].Generate(ctx, prompt)
	})
}

// groupEmbedder falls back across embedders. Members must share one embedding
// space: every vector is tagged with the primary member's model name.
type groupEmbedder struct {
	names []string
	items []IEmbedder
}

func NewGroupEmbedder(entries []EmbedderEntry) IEmbedder {
	g := &groupEmbedder{}
	for _, e := range entries {
		if e.Embedder == nil {
			continue
		}
		g.names = append(g.names, e.Name)
		g.items = append(g.items, e.Embedder)
	}
	switch len(g.items) {
	case 0:
		return nil
	case 1:
		return g.items[0]
	}
	return g
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return firstSuccess(ctx, "embedder", g.names, func(i int) ([]float32, error) {
		return g.items[i].Embed(ctx, text, taskType)
	})
}

func (g *groupEmbedder) ModelName() string {
	return g.items[0].ModelName()
}
