package parser

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"time"
)

const (
	defaultPDFToTextPath    = "pdftotext"
	defaultPDFToTextTimeout = 10 * time.Second
)

// PDFToTextStrategy shells out to poppler's pdftotext in layout mode.
// The tool is optional: when it is missing, times out or exits non-zero
// the strategy simply yields no text.
type PDFToTextStrategy struct {
	bin     string
	timeout time.Duration
}

// NewPDFToTextStrategy returns a strategy running bin (default "pdftotext")
// bounded by timeout (default 10s).
func NewPDFToTextStrategy(bin string, timeout time.Duration) *PDFToTextStrategy {
	if bin == "" {
		bin = defaultPDFToTextPath
	}
	if timeout <= 0 {
		timeout = defaultPDFToTextTimeout
	}
	return &PDFToTextStrategy{bin: bin, timeout: timeout}
}

func (s *PDFToTextStrategy) Name() string { return StrategyPDFToText }

func (s *PDFToTextStrategy) Attempt(ctx context.Context, path string) string {
	bin, err := exec.LookPath(s.bin)
	if err != nil {
		slog.Debug("pdftotext: not installed", "bin", s.bin)
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, "-layout", path, "-")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		slog.Debug("pdftotext: failed", "path", path, "error", err, "timed_out", ctx.Err() != nil)
		return ""
	}
	return stdout.String()
}
