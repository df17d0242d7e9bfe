package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnreachable is returned when every attempt failed before an
	// HTTP response was received (timeout, connection reset, DNS failure).
	ErrUpstreamUnreachable = errors.New("docqa: generation service unreachable")

	// ErrUpstreamMalformed is returned when a response arrived but its body
	// is not JSON.
	ErrUpstreamMalformed = errors.New("docqa: generation service returned a malformed response")

	// ErrUpstream matches every *UpstreamError.
	ErrUpstream = errors.New("docqa: generation service error")
)

// UpstreamError carries a well-formed error response from the provider.
// Body is forwarded verbatim so callers can show the provider's own payload.
type UpstreamError struct {
	StatusCode int
	Body       json.RawMessage
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("docqa: generation service returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("docqa: generation service returned status %d", e.StatusCode)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// transportError marks failures that happened before a status was read.
// Only these are retried.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransportError(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}
