package parser

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Keep pdfcpu from creating its config directory under $HOME.
	api.DisableConfigDir()
}

// PDFCPUStrategy validates the PDF structure with pdfcpu and walks every
// page's content stream, decoding the text-showing operators itself.
// It recovers text from files whose text layer the first strategy misses.
type PDFCPUStrategy struct{}

func (s *PDFCPUStrategy) Name() string { return StrategyPDFCPU }

func (s *PDFCPUStrategy) Attempt(ctx context.Context, path string) (text string) {
	defer recoverEmpty(&text, s.Name(), path)

	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		slog.Debug("pdfcpu: read failed", "path", path, "error", err)
		return ""
	}

	var b strings.Builder
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if ctx.Err() != nil {
			break
		}
		content := pdfcpuPageText(pctx, pageNr)
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

func pdfcpuPageText(pctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return contentStreamText(data)
}
