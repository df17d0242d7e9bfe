package docqa

import (
	"errors"

	"github.com/brunobiangulo/docqa/llm"
	"github.com/brunobiangulo/docqa/parser"
	"github.com/brunobiangulo/docqa/store"
)

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("docqa: invalid configuration")

	// ErrEmptyUpload is returned when an uploaded file has no bytes.
	ErrEmptyUpload = errors.New("docqa: uploaded file is empty")

	// ErrEmptyQuestion is returned when Ask is called with a blank question.
	ErrEmptyQuestion = errors.New("docqa: question is empty")

	// ErrMissingAPIKey is returned when a question is asked without a
	// generation service key configured.
	ErrMissingAPIKey = errors.New("docqa: generation service API key not configured")
)

// Errors from the lower layers, re-exported so callers only import docqa.
var (
	ErrDocumentNotFound = store.ErrNotFound
	ErrDocumentExists   = store.ErrConflict

	ErrUnreadableFile    = parser.ErrUnreadableFile
	ErrUnsupportedFormat = parser.ErrUnsupportedFormat
	ErrNoExtractableText = parser.ErrNoExtractableText

	ErrUpstreamUnreachable = llm.ErrUpstreamUnreachable
	ErrUpstreamMalformed   = llm.ErrUpstreamMalformed
	ErrUpstream            = llm.ErrUpstream
)

// UpstreamError is a provider error response forwarded verbatim.
type UpstreamError = llm.UpstreamError
