// Package extract pulls per-page text out of PDF files.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageBreak follows every page in the stored text.
const PageBreak = "\n\n--- Page Break ---\n\n"

// Extractor returns the text of each page of the PDF at path, in order.
type Extractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}

// Join concatenates pages, terminating each one with PageBreak.
func Join(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p)
		b.WriteString(PageBreak)
	}
	return b.String()
}

// Text runs ex and joins the result.
func Text(ctx context.Context, ex Extractor, path string) (string, error) {
	pages, err := ex.ExtractPages(ctx, path)
	if err != nil {
		return "", err
	}
	return Join(pages), nil
}

// PDFExtractor reads PDFs in-process with github.com/ledongthuc/pdf.
type PDFExtractor struct{}

var _ Extractor = PDFExtractor{}

func (PDFExtractor) ExtractPages(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extract: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("extract: stat %s: %w", path, err)
	}

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("extract: reading %s: %w", path, err)
	}

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract: page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
