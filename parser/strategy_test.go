package parser

import (
	"context"
	"reflect"
	"testing"
)

// recordingStrategy returns a fixed text and counts its calls.
type recordingStrategy struct {
	name  string
	text  string
	calls int
}

func (s *recordingStrategy) Name() string { return s.name }

func (s *recordingStrategy) Attempt(ctx context.Context, path string) string {
	s.calls++
	return s.text
}

func TestChainShortCircuits(t *testing.T) {
	first := &recordingStrategy{name: "first", text: ""}
	second := &recordingStrategy{name: "second", text: "found it"}
	third := &recordingStrategy{name: "third", text: "too late"}

	text, name := Chain{first, second, third}.Run(context.Background(), "doc.pdf")
	if text != "found it" || name != "second" {
		t.Fatalf("Run = (%q, %q), want (\"found it\", \"second\")", text, name)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = first:%d second:%d, want 1 each", first.calls, second.calls)
	}
	if third.calls != 0 {
		t.Errorf("third strategy called %d times after success", third.calls)
	}
}

func TestChainWhitespaceIsEmpty(t *testing.T) {
	blank := &recordingStrategy{name: "blank", text: " \n\t "}
	solid := &recordingStrategy{name: "real", text: "text"}

	_, name := Chain{blank, solid}.Run(context.Background(), "doc.pdf")
	if name != "real" {
		t.Errorf("whitespace-only result accepted from %q", name)
	}
}

func TestChainSkipsDecoderNoise(t *testing.T) {
	noise := &recordingStrategy{name: "noise", text: "\x00\x00\ufffd \x1b\n"}
	solid := &recordingStrategy{name: "solid", text: "Invoice Total: $42"}

	text, name := Chain{noise, solid}.Run(context.Background(), "doc.pdf")
	if text != "Invoice Total: $42" || name != "solid" {
		t.Errorf("Run = (%q, %q), want text from %q", text, name, "solid")
	}
	if solid.calls != 1 {
		t.Errorf("fallback strategy called %d times, want 1", solid.calls)
	}
}

func TestChainExhausted(t *testing.T) {
	a := &recordingStrategy{name: "a"}
	b := &recordingStrategy{name: "b", text: "   "}

	text, name := Chain{a, b}.Run(context.Background(), "doc.pdf")
	if text != "" || name != "" {
		t.Errorf("Run = (%q, %q), want empty", text, name)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("every strategy should run once, got a:%d b:%d", a.calls, b.calls)
	}
}

func TestChainAbsorbsPanics(t *testing.T) {
	boom := StrategyFunc{Label: "boom", Fn: func(ctx context.Context, path string) string {
		panic("corrupt stream")
	}}
	ok := &recordingStrategy{name: "ok", text: "recovered"}

	text, name := Chain{boom, ok}.Run(context.Background(), "doc.pdf")
	if text != "recovered" || name != "ok" {
		t.Errorf("Run = (%q, %q), want (\"recovered\", \"ok\")", text, name)
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &recordingStrategy{name: "s", text: "text"}
	if text, _ := (Chain{s}).Run(ctx, "doc.pdf"); text != "" {
		t.Errorf("cancelled Run returned %q", text)
	}
	if s.calls != 0 {
		t.Errorf("strategy ran %d times on cancelled context", s.calls)
	}
}

func TestRegistryDefaultChains(t *testing.T) {
	tests := []struct {
		cfg    ChainConfig
		format Format
		want   []string
	}{
		{ChainConfig{}, FormatPDF, []string{StrategyLedongthuc, StrategyPDFCPU}},
		{ChainConfig{PDFToText: true}, FormatPDF, []string{StrategyLedongthuc, StrategyPDFCPU, StrategyPDFToText}},
		{ChainConfig{}, FormatDOCX, []string{StrategyDOCX}},
		{ChainConfig{}, FormatUnknown, []string{StrategyDOCX}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			c, err := NewRegistry(tt.cfg).Get(tt.format)
			if err != nil {
				t.Fatalf("Get(%q): %v", tt.format, err)
			}
			if got := c.Names(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("chain = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry(ChainConfig{})
	stub := &recordingStrategy{name: "stub", text: "x"}
	reg.Register(FormatPDF, Chain{stub})

	c, err := reg.Get(FormatPDF)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(c) != 1 || c[0].Name() != "stub" {
		t.Errorf("chain = %v, want [stub]", c.Names())
	}

	reg.Register(FormatDOCX, nil)
	if _, err := reg.Get(FormatDOCX); err == nil {
		t.Error("expected error for empty chain")
	}
	if _, err := reg.Get(Format("xlsx")); err == nil {
		t.Error("expected error for unregistered format")
	}
}
