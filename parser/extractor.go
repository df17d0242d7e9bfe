package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Extractor turns a stored file into plain text by classifying it and
// running the chain registered for its format.
type Extractor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExtractor creates an Extractor over reg. A nil logger uses slog.Default.
func NewExtractor(reg *Registry, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{registry: reg, logger: logger}
}

// ExtractText returns normalized text for the file at path.
//
// Errors:
//   - ErrUnreadableFile when the file cannot be opened
//   - ErrUnsupportedFormat when an unknown file is not a DOCX package either
//   - ErrNoExtractableText when a PDF or DOCX yields no text (scanned images)
func (e *Extractor) ExtractText(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, path, err)
	}
	f.Close()

	format := Classify(path)
	chain, err := e.registry.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	e.logger.Debug("extracting document", "path", path, "format", format, "chain", chain.Names())

	raw, strategy := chain.Run(ctx, path)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := Normalize(raw)
	if text == "" {
		if format == FormatUnknown {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}
		e.logger.Info("no extractable text", "path", path, "format", format)
		return nil, fmt.Errorf("%w: %s", ErrNoExtractableText, path)
	}

	e.logger.Info("extracted document text",
		"path", path,
		"format", format,
		"strategy", strategy,
		"chars", len([]rune(text)),
	)

	return &Result{Text: text, Strategy: strategy, Format: format}, nil
}
