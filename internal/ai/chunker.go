package ai

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"
)

const (
	defaultChunkTokens   = 400
	defaultOverlapTokens = 80
)

type Section struct {
	Heading    string
	Content    string
	TokenCount int
	Position   int
}

type ChunkerConfig struct {
	MaxTokens     int
	OverlapTokens int
}

// Chunker splits markdown (plain text is valid markdown) into sections at
// H1/H2 boundaries, bounded by a token budget, with paragraph overlap
// between consecutive sections of the same heading.
type Chunker struct {
	cfg ChunkerConfig
}

func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg == (ChunkerConfig{}) {
		cfg = ChunkerConfig{MaxTokens: defaultChunkTokens, OverlapTokens: defaultOverlapTokens}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultChunkTokens
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.MaxTokens {
		cfg.OverlapTokens = 0
	}
	return &Chunker{cfg: cfg}
}

func (c *Chunker) Chunk(ctx context.Context, markdown string) []Section {
	logger := logutil.GetLogger(ctx)
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var sections []Section
	var current []string
	var currentTokens int
	var heading string
	// parts already emitted as overlap; a flush of only these is skipped
	carried := 0
	position := 0

	flush := func(keepOverlap bool) {
		if len(current) == 0 || len(current) == carried {
			if !keepOverlap {
				current = nil
				currentTokens = 0
				carried = 0
			}
			return
		}
		content := strings.Join(current, "\n\n")
		if heading != "" {
			content = heading + "\n" + content
		}
		sections = append(sections, Section{
			Heading:    heading,
			Content:    content,
			TokenCount: estimateTokens(content),
			Position:   position,
		})
		position++

		if !keepOverlap || c.cfg.OverlapTokens == 0 || len(current) < 2 {
			current = nil
			currentTokens = 0
			carried = 0
			return
		}
		overlapTokens := 0
		var overlap []string
		for i := len(current) - 1; i > 0; i-- {
			t := estimateTokens(current[i])
			if overlapTokens+t > c.cfg.OverlapTokens {
				break
			}
			overlapTokens += t
			overlap = append([]string{current[i]}, overlap...)
		}
		current = overlap
		currentTokens = overlapTokens
		carried = len(overlap)
	}

	add := func(txt string) {
		tokens := estimateTokens(txt)
		if currentTokens > 0 && currentTokens+tokens > c.cfg.MaxTokens {
			flush(true)
		}
		current = append(current, txt)
		currentTokens += tokens
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			txt := strings.TrimSpace(string(n.Text(reader.Source())))
			if n.Level <= 2 {
				flush(false)
				heading = txt
				continue
			}
			if txt != "" {
				add(txt)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			var sb strings.Builder
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sb.Write(line.Value(reader.Source()))
			}
			if txt := strings.TrimSpace(sb.String()); txt != "" {
				add(txt)
			}
		default:
			if txt := extractText(n, reader.Source()); txt != "" {
				add(txt)
			}
		}
	}
	flush(false)
	logger.Debug("chunking completed", zap.Int("size", len(markdown)), zap.Int("sections", len(sections)))
	return sections
}

func estimateTokens(text string) int {
	// words for latin scripts, one token per rune for CJK
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if node.Kind() == ast.KindParagraph || node.Kind() == ast.KindListItem {
				sb.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteString(" ")
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
