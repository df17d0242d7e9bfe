package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Wire types for the generateContent endpoint.

type generateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// firstText returns candidates[0].content.parts[0].text, or "" when any
// step of that path is missing.
func (r *generateResponse) firstText() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

func (g *Gateway) endpoint() string {
	u := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(g.cfg.BaseURL, "/"), url.PathEscape(g.cfg.Model))
	if g.cfg.APIKey != "" {
		u += "?" + url.Values{"key": {g.cfg.APIKey}}.Encode()
	}
	return u
}

// post performs a single attempt bounded by the per-attempt timeout.
// Failures before the status line and body are read come back as
// *transportError.
func (g *Gateway) post(ctx context.Context, payload []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %s", g.redact(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, &transportError{err: fmt.Errorf("reading response body: %w", err)}
	}
	return resp.StatusCode, body, nil
}

// redact removes the API key from s. Transport errors embed the request
// URL, which carries the key as a query parameter.
func (g *Gateway) redact(s string) string {
	if g.cfg.APIKey == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(g.cfg.APIKey), "REDACTED")
	return strings.ReplaceAll(s, g.cfg.APIKey, "REDACTED")
}
