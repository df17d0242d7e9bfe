package parser

import (
	"fmt"
	"time"
)

// ChainConfig controls which strategies are assembled per format.
type ChainConfig struct {
	// PDFToText enables the external pdftotext fallback.
	PDFToText bool
	// PDFToTextPath is the binary name or path (default "pdftotext").
	PDFToTextPath string
	// PDFToTextTimeout bounds the subprocess (default 10s).
	PDFToTextTimeout time.Duration
}

// Registry maps each format to its ordered extraction chain.
type Registry struct {
	chains map[Format]Chain
}

// NewRegistry builds the default chains:
//
//	pdf:     ledongthuc -> pdfcpu -> pdftotext (when enabled)
//	docx:    docx
//	unknown: docx
func NewRegistry(cfg ChainConfig) *Registry {
	pdfChain := Chain{&LedongthucStrategy{}, &PDFCPUStrategy{}}
	if cfg.PDFToText {
		pdfChain = append(pdfChain, NewPDFToTextStrategy(cfg.PDFToTextPath, cfg.PDFToTextTimeout))
	}
	docx := &DOCXStrategy{}

	return &Registry{chains: map[Format]Chain{
		FormatPDF:     pdfChain,
		FormatDOCX:    {docx},
		FormatUnknown: {docx},
	}}
}

// Get returns the chain registered for format.
func (r *Registry) Get(format Format) (Chain, error) {
	c, ok := r.chains[format]
	if !ok || len(c) == 0 {
		return nil, fmt.Errorf("no extraction chain for format: %s", format)
	}
	return c, nil
}

// Register replaces the chain for format.
func (r *Registry) Register(format Format, c Chain) {
	r.chains[format] = c
}
