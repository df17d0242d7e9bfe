package parser

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain is an ordered list of strategies. Each one is only tried after
// every cheaper strategy before it came back empty.
type Chain []Strategy

// Run tries each strategy in order and returns the first result that is
// non-empty after normalization, along with the name of the strategy that
// produced it. Output made only of decoder noise (NUL, U+FFFD, ESC) counts
// as empty. Both are empty when the chain is exhausted.
func (c Chain) Run(ctx context.Context, path string) (string, string) {
	for _, s := range c {
		if ctx.Err() != nil {
			return "", ""
		}
		text := Normalize(safeAttempt(ctx, s, path))
		if text != "" {
			return text, s.Name()
		}
		slog.Debug("extraction strategy produced no text", "strategy", s.Name(), "path", path)
	}
	return "", ""
}

// Names lists the strategy names in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return names
}

// safeAttempt runs a strategy and converts a panic into an empty result.
func safeAttempt(ctx context.Context, s Strategy, path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("extraction strategy panicked",
				"strategy", s.Name(),
				"path", path,
				"panic", fmt.Sprintf("%v", r),
			)
			text = ""
		}
	}()
	return s.Attempt(ctx, path)
}

// recoverEmpty is deferred by strategies backed by libraries that panic on
// malformed input.
func recoverEmpty(text *string, name, path string) {
	if r := recover(); r != nil {
		slog.Debug("extraction strategy recovered", "strategy", name, "path", path, "panic", r)
		*text = ""
	}
}
