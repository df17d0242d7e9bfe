package parser

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LedongthucStrategy reads the PDF text layer page by page. It copes with
// the widest range of well-formed PDFs and is the cheapest to run.
type LedongthucStrategy struct{}

func (s *LedongthucStrategy) Name() string { return StrategyLedongthuc }

func (s *LedongthucStrategy) Attempt(ctx context.Context, path string) (text string) {
	defer recoverEmpty(&text, s.Name(), path)

	f, reader, err := pdf.Open(path)
	if err != nil {
		slog.Debug("pdf: open failed", "path", path, "error", err)
		return ""
	}
	defer f.Close()

	var b strings.Builder
	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		if ctx.Err() != nil {
			break
		}
		content := pageText(reader, i)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(content)
	}
	return b.String()
}

// pageText extracts one page. The library panics on some broken content
// streams, so a bad page is skipped rather than failing the document.
func pageText(reader *pdf.Reader, n int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("pdf: page extraction panicked", "page", n, "panic", r)
			text = ""
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
