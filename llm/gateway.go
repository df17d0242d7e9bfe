package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel      = "gemini-2.0-flash"
	DefaultTimeout    = 20 * time.Second
	DefaultRetryDelay = 800 * time.Millisecond

	maxResponseSize = 10 * 1024 * 1024
)

// Config configures the generation endpoint.
type Config struct {
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Model      string        `json:"model" yaml:"model"`
	APIKey     string        `json:"api_key" yaml:"api_key"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`         // per attempt
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"` // wait before the single retry
	MaxChars   int           `json:"max_chars" yaml:"max_chars"`
}

// DefaultConfig returns the production settings: 20 s per attempt, one
// retry after 800 ms, 20,000 characters of document text.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Model:      DefaultModel,
		Timeout:    DefaultTimeout,
		RetryDelay: DefaultRetryDelay,
		MaxChars:   DefaultMaxChars,
	}
}

// AnswerRequest is a question about one document's extracted text.
type AnswerRequest struct {
	DocumentText string `json:"document_text"`
	Question     string `json:"question"`
}

// Answer is the model's reply.
type Answer struct {
	Text      string `json:"answer"`
	Truncated bool   `json:"truncated"`
	Attempts  int    `json:"attempts"`
	Model     string `json:"model"`
}

// Gateway answers questions about document text through a Gemini-style
// generateContent endpoint. It is safe for concurrent use.
type Gateway struct {
	cfg    Config
	client *http.Client
	policy Policy
}

// NewGateway creates a Gateway. Zero fields in cfg take their defaults.
// A nil client uses a fresh http.Client; the per-attempt timeout is applied
// through the request context, not the client.
func NewGateway(cfg Config, client *http.Client) *Gateway {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Gateway{
		cfg:    cfg,
		client: client,
		policy: Policy{Attempts: 2, Delay: cfg.RetryDelay},
	}
}

// Answer sends the clipped document and question upstream.
//
// Errors:
//   - ErrUpstreamUnreachable when both attempts failed at the transport level
//   - ErrUpstreamMalformed when the response body is not JSON
//   - *UpstreamError (matching ErrUpstream) for a non-2xx JSON response
//
// A 2xx response without candidate text yields PlaceholderAnswer.
func (g *Gateway) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	clipped, truncated := ClipText(req.DocumentText, g.cfg.MaxChars)
	payload, err := json.Marshal(generateRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: BuildPrompt(clipped, req.Question)}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var (
		status int
		body   []byte
	)
	start := time.Now()
	attempts, err := Retry(ctx, g.policy, func(ctx context.Context) error {
		s, b, err := g.post(ctx, payload)
		if err != nil {
			return err
		}
		status, body = s, b
		return nil
	}, isTransportError)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isTransportError(err) {
			slog.Warn("llm: generation service unreachable",
				"model", g.cfg.Model,
				"attempts", attempts,
				"error", g.redact(err.Error()),
			)
			return nil, fmt.Errorf("%w after %d attempts: %s", ErrUpstreamUnreachable, attempts, g.redact(err.Error()))
		}
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w (status %d): %v", ErrUpstreamMalformed, status, err)
	}

	if status < 200 || status > 299 {
		upErr := &UpstreamError{StatusCode: status, Body: json.RawMessage(body)}
		if resp.Error != nil {
			upErr.Message = g.redact(resp.Error.Message)
		}
		return nil, upErr
	}

	text := strings.TrimSpace(resp.firstText())
	if text == "" {
		slog.Warn("llm: response has no candidate text", "model", g.cfg.Model, "status", status)
		text = PlaceholderAnswer
	}

	slog.Info("llm: answer generated",
		"model", g.cfg.Model,
		"attempts", attempts,
		"truncated", truncated,
		"duration", time.Since(start),
	)

	return &Answer{
		Text:      text,
		Truncated: truncated,
		Attempts:  attempts,
		Model:     g.cfg.Model,
	}, nil
}
