package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"strings"
)

// DOCXStrategy reads raw paragraph text from word/document.xml. Formatting,
// drawings and embedded objects are dropped; headers and footers live in
// separate package parts and are never read.
type DOCXStrategy struct{}

func (s *DOCXStrategy) Name() string { return StrategyDOCX }

func (s *DOCXStrategy) Attempt(ctx context.Context, path string) string {
	r, err := zip.OpenReader(path)
	if err != nil {
		slog.Debug("docx: not a zip package", "path", path, "error", err)
		return ""
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		slog.Debug("docx: word/document.xml not found", "path", path)
		return ""
	}

	rc, err := docFile.Open()
	if err != nil {
		slog.Debug("docx: opening document.xml", "path", path, "error", err)
		return ""
	}
	defer rc.Close()

	return docxBodyText(rc)
}

// docxBodyText streams the document XML and emits one line per paragraph.
// Only w:t runs count as text; w:tab and w:br map to tab and newline.
func docxBodyText(r io.Reader) string {
	decoder := xml.NewDecoder(r)

	var (
		out     strings.Builder
		para    strings.Builder
		inText  bool
		skipped int // depth inside elements whose text is discarded
	)

	for {
		tok, err := decoder.Token()
		if err != nil {
			// io.EOF or a truncated part: keep what was read.
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "drawing", "pict", "object", "instrText", "delText":
				skipped++
			case "t":
				inText = skipped == 0
			case "tab":
				if skipped == 0 {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if skipped == 0 {
					para.WriteByte('\n')
				}
			case "p":
				if skipped == 0 {
					para.Reset()
				}
			}

		case xml.CharData:
			if inText {
				para.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "drawing", "pict", "object", "instrText", "delText":
				if skipped > 0 {
					skipped--
				}
			case "t":
				inText = false
			case "p":
				if skipped > 0 {
					// Text boxes nest paragraphs inside drawings.
					continue
				}
				text := strings.TrimSpace(para.String())
				if text != "" {
					if out.Len() > 0 {
						out.WriteByte('\n')
					}
					out.WriteString(text)
				}
				para.Reset()
			}
		}
	}

	return out.String()
}
