package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	appErr "github.com/xxxsen/legalrag/internal/pkg/errors"
)

// Extract returns the text of a source document. PDFs go through the pdf
// reader; .md, .markdown and .txt are read as UTF-8.
func Extract(name string, r io.ReaderAt, size int64) (string, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		text, err = pdfText(r, size)
	case ".md", ".markdown", ".txt", "":
		text, err = plainText(r, size)
	default:
		return "", fmt.Errorf("%w: unsupported source type %q", appErr.ErrInvalid, ext)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text in %s", appErr.ErrInvalid, name)
	}
	return text, nil
}

// ExtractFile opens path and extracts its text.
func ExtractFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", err
	}
	return Extract(filepath.Base(path), f, st.Size())
}

func pdfText(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", appErr.ErrInvalid, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read pdf text: %w", appErr.ErrInvalid, err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return sb.String(), nil
}

func plainText(r io.ReaderAt, size int64) (string, error) {
	raw, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: source is not valid utf-8", appErr.ErrInvalid)
	}
	return string(raw), nil
}
