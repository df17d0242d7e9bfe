package parser

import (
	"strings"
)

var controlReplacer = strings.NewReplacer(
	"\u0000", "",
	"\ufffd", "",
	"\u001b", "",
	"\r\n", "\n",
	"\r", "\n",
	"\f", "\n",
)

// Normalize strips control noise left by PDF and DOCX decoders, trims
// trailing blanks on every line and collapses runs of blank lines to one.
// The result is trimmed; whitespace-only input becomes "".
func Normalize(text string) string {
	text = controlReplacer.Replace(text)

	lines := strings.Split(text, "\n")
	var b strings.Builder
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if blank > 0 {
				b.WriteByte('\n')
			}
		}
		blank = 0
		b.WriteString(line)
	}
	return strings.TrimSpace(b.String())
}
