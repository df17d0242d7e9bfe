package parser

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// Classify returns the format of the file at path. It reads at most the
// first five bytes and never fails: a file that cannot be opened is
// FormatUnknown whatever its extension.
func Classify(path string) Format {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown
	}
	head := make([]byte, len(pdfMagic))
	n, _ := io.ReadFull(f, head)
	f.Close()
	return SniffBytes(head[:n], filepath.Ext(path))
}

// SniffBytes classifies a file from its leading bytes and declared extension.
// The PDF magic number takes precedence over any extension.
func SniffBytes(head []byte, ext string) Format {
	if bytes.HasPrefix(head, pdfMagic) {
		return FormatPDF
	}
	switch strings.ToLower(ext) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	default:
		return FormatUnknown
	}
}
