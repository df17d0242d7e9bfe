package parser

import (
	"context"
	"testing"
)

func TestContentStreamText(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "single Tj",
			stream: "BT /F1 12 Tf 72 712 Td (Invoice Total: $42) Tj ET",
			want:   "Invoice Total: $42",
		},
		{
			name:   "Td with vertical move starts a new line",
			stream: "BT (first) Tj 0 -14 Td (second) Tj ET",
			want:   "first\nsecond",
		},
		{
			name:   "TJ array with kerning gap",
			stream: "BT [(Hel) -20 (lo) -300 (World)] TJ ET",
			want:   "Hello World",
		},
		{
			name:   "quote operators",
			stream: "BT (a) Tj (b) ' 1 2 (c) \" ET",
			want:   "a\nb\nc",
		},
		{
			name:   "escapes and nesting",
			stream: `BT (paren \(x\) and (nested) ok) Tj T* (oct\101l) Tj ET`,
			want:   "paren (x) and (nested) ok\noctAl",
		},
		{
			name:   "hex string",
			stream: "BT <48656C6C6F> Tj ET",
			want:   "Hello",
		},
		{
			name:   "utf16 hex string",
			stream: "BT <FEFF00E9007400E9> Tj ET",
			want:   "été",
		},
		{
			name:   "winansi punctuation",
			stream: `BT (\223quoted\224 \226 \200 5 caf\351) Tj ET`,
			want:   "\u201cquoted\u201d \u2013 \u20ac 5 caf\u00e9",
		},
		{
			name:   "winansi hex string",
			stream: "BT <9361749420> Tj ET",
			want:   "\u201cat\u201d",
		},
		{
			name:   "comments and dictionaries ignored",
			stream: "% comment (not text) Tj\n/Span << /MCID 0 >> BDC BT (kept) Tj ET EMC",
			want:   "kept",
		},
		{
			name:   "inline image skipped",
			stream: "BI /W 2 /H 2 /BPC 8 ID \x00\x01(junk) Tj\x02 EI BT (after) Tj ET",
			want:   "after",
		},
		{
			name:   "no text operators",
			stream: "q 100 0 0 100 0 0 cm /Im1 Do Q",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := contentStreamText([]byte(tt.stream)); got != tt.want {
				t.Errorf("contentStreamText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContentStreamTextMalformed(t *testing.T) {
	// Unterminated constructs must not hang or panic.
	for _, stream := range []string{
		"BT (unterminated Tj",
		"BT <4865 Tj",
		"BT [(a) (b) TJ",
		")))) ]]] >> Tj",
		"BI ID never ends",
	} {
		_ = contentStreamText([]byte(stream))
	}
}

func TestPDFCPUStrategyRejectsGarbage(t *testing.T) {
	path := writeFile(t, "garbage.pdf", []byte("%PDF-1.4\nthis is not really a pdf"))
	if got := (&PDFCPUStrategy{}).Attempt(context.Background(), path); got != "" {
		t.Errorf("Attempt = %q, want empty", got)
	}
}

func TestLedongthucStrategyRejectsGarbage(t *testing.T) {
	path := writeFile(t, "garbage.pdf", []byte("%PDF-1.4\nthis is not really a pdf"))
	if got := (&LedongthucStrategy{}).Attempt(context.Background(), path); got != "" {
		t.Errorf("Attempt = %q, want empty", got)
	}
}
