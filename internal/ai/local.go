package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultLocalDimension = 256

type localConfig struct {
	Dimension int `json:"dimension"`
}

// localProvider is an offline bag-of-words embedder using feature hashing.
// Useful for development corpora; it has no generation capability.
type localProvider struct {
	dimension int
}

func (p *localProvider) Name() string {
	return "local"
}

func (p *localProvider) Generate(ctx context.Context, model string, prompt string, decoding DecodingConfig) (string, error) {
	return "", ErrUnavailable
}

func (p *localProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, p.dimension)
	for _, token := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dimension))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func createLocalFactory(args interface{}) (IProvider, error) {
	cfg := &localConfig{}
	if args != nil {
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = defaultLocalDimension
	}
	return &localProvider{dimension: cfg.Dimension}, nil
}

func init() {
	Register("local", createLocalFactory)
}
