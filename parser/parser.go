package parser

import (
	"context"
	"errors"
)

// Format is the document type derived from a file's leading bytes and extension.
type Format string

const (
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatUnknown Format = "unknown"
)

// Strategy names, recorded on Result for observability.
const (
	StrategyLedongthuc = "ledongthuc"
	StrategyPDFCPU     = "pdfcpu"
	StrategyPDFToText  = "pdftotext"
	StrategyDOCX       = "docx"
)

var (
	// ErrUnreadableFile is returned when the source file cannot be opened.
	ErrUnreadableFile = errors.New("docqa: file unreadable")

	// ErrUnsupportedFormat is returned when no strategy applies and the
	// DOCX fallback for unknown files produced nothing.
	ErrUnsupportedFormat = errors.New("docqa: unsupported document format")

	// ErrNoExtractableText is returned when every applicable strategy ran and
	// produced empty text, e.g. a scanned image-only PDF.
	ErrNoExtractableText = errors.New("docqa: no extractable text")
)

// Result is the outcome of a successful extraction. Text is never blank.
type Result struct {
	Text     string `json:"text"`
	Strategy string `json:"strategy"`
	Format   Format `json:"format"`
}

// Strategy is one attempt at pulling plain text out of a file.
// Attempt never fails: any internal error or panic yields "".
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, path string) string
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc struct {
	Label string
	Fn    func(ctx context.Context, path string) string
}

func (s StrategyFunc) Name() string { return s.Label }

func (s StrategyFunc) Attempt(ctx context.Context, path string) string {
	return s.Fn(ctx, path)
}
