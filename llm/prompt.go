package llm

import (
	"fmt"
	"unicode/utf8"
)

const (
	// DefaultMaxChars bounds the document text sent upstream.
	DefaultMaxChars = 20000

	// TruncationMarker is appended to clipped text so the model knows it
	// did not see the whole document.
	TruncationMarker = "\n\n[... document truncated ...]"

	// PlaceholderAnswer is returned when a successful response carries no
	// candidate text.
	PlaceholderAnswer = "No answer could be generated from the document."
)

// ClipText keeps the first max characters of text. When anything was cut,
// TruncationMarker is appended and the second result is true.
func ClipText(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i] + TruncationMarker, true
		}
		n++
	}
	return text, false
}

const promptTemplate = `You are answering a question about a document. Use only the information in the document below. If the document does not contain the answer, say that it does not.

Document:
"""
%s
"""

Question: %s

Answer:`

// BuildPrompt embeds the (already clipped) document text and the question
// in a single prompt.
func BuildPrompt(documentText, question string) string {
	return fmt.Sprintf(promptTemplate, documentText, question)
}
