package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testKey = "test-secret-key"

// faultTransport fails the first `failures` round trips with a transport
// error and forwards the rest.
type faultTransport struct {
	failures int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *faultTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if n := f.calls.Add(1); n <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return f.next.RoundTrip(r)
}

// upstream is a stub generation service that records what it received.
type upstream struct {
	srv    *httptest.Server
	hits   atomic.Int32
	prompt atomic.Value
	key    atomic.Value
	path   atomic.Value
}

func newUpstream(t *testing.T, status int, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.key.Store(r.URL.Query().Get("key"))
		u.path.Store(r.URL.Path)

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil &&
			len(req.Contents) == 1 && len(req.Contents[0].Parts) == 1 {
			u.prompt.Store(req.Contents[0].Parts[0].Text)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) gateway(cfg Config, failures int32) (*Gateway, *faultTransport) {
	ft := &faultTransport{failures: failures, next: http.DefaultTransport}
	cfg.BaseURL = u.srv.URL
	cfg.APIKey = testKey
	return NewGateway(cfg, &http.Client{Transport: ft}), ft
}

const okBody = `{"candidates":[{"content":{"parts":[{"text":"The total is $42."}]},"finishReason":"STOP"}]}`

func TestAnswerSuccess(t *testing.T) {
	u := newUpstream(t, http.StatusOK, okBody)
	g, ft := u.gateway(Config{Model: "gemini-test"}, 0)

	ans, err := g.Answer(context.Background(), AnswerRequest{
		DocumentText: "Invoice Total: $42",
		Question:     "What is the total?",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "The total is $42." {
		t.Errorf("answer = %q", ans.Text)
	}
	if ans.Truncated || ans.Attempts != 1 || ft.calls.Load() != 1 {
		t.Errorf("truncated=%v attempts=%d calls=%d", ans.Truncated, ans.Attempts, ft.calls.Load())
	}
	if got := u.path.Load(); got != "/models/gemini-test:generateContent" {
		t.Errorf("path = %v", got)
	}
	if got := u.key.Load(); got != testKey {
		t.Errorf("key query param = %v, want %q", got, testKey)
	}
	prompt, _ := u.prompt.Load().(string)
	if !strings.Contains(prompt, "Invoice Total: $42") || !strings.Contains(prompt, "What is the total?") {
		t.Errorf("prompt does not embed text and question:\n%s", prompt)
	}
}

func TestAnswerClipsDocument(t *testing.T) {
	u := newUpstream(t, http.StatusOK, okBody)
	g, _ := u.gateway(Config{}, 0)

	doc := strings.Repeat("a", DefaultMaxChars+5000)
	ans, err := g.Answer(context.Background(), AnswerRequest{DocumentText: doc, Question: "q"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !ans.Truncated {
		t.Error("Truncated = false, want true")
	}
	prompt, _ := u.prompt.Load().(string)
	if !strings.Contains(prompt, strings.Repeat("a", DefaultMaxChars)+TruncationMarker) {
		t.Error("prompt does not contain the clipped text followed by the marker")
	}
	if strings.Contains(prompt, strings.Repeat("a", DefaultMaxChars+1)) {
		t.Error("prompt contains more than the clipping bound")
	}
}

func TestAnswerRetriesTransportFailureOnce(t *testing.T) {
	u := newUpstream(t, http.StatusOK, okBody)
	g, ft := u.gateway(Config{}, 1)

	start := time.Now()
	ans, err := g.Answer(context.Background(), AnswerRequest{DocumentText: "doc", Question: "q"})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "The total is $42." {
		t.Errorf("answer = %q", ans.Text)
	}
	if ft.calls.Load() != 2 || ans.Attempts != 2 {
		t.Errorf("outbound attempts = %d (reported %d), want 2", ft.calls.Load(), ans.Attempts)
	}
	if elapsed < DefaultRetryDelay {
		t.Errorf("elapsed %v, want at least the %v backoff", elapsed, DefaultRetryDelay)
	}
}

func TestAnswerUnreachable(t *testing.T) {
	u := newUpstream(t, http.StatusOK, okBody)
	g, ft := u.gateway(Config{RetryDelay: 10 * time.Millisecond}, 100)

	_, err := g.Answer(context.Background(), AnswerRequest{DocumentText: "doc", Question: "q"})
	if !errors.Is(err, ErrUpstreamUnreachable) {
		t.Fatalf("err = %v, want ErrUpstreamUnreachable", err)
	}
	if ft.calls.Load() != 2 {
		t.Errorf("outbound attempts = %d, want exactly 2", ft.calls.Load())
	}
	if u.hits.Load() != 0 {
		t.Errorf("server hits = %d, want 0", u.hits.Load())
	}
	if strings.Contains(err.Error(), testKey) {
		t.Errorf("error leaks the API key: %v", err)
	}
}

func TestAnswerAttemptTimeout(t *testing.T) {
	hits := atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g := NewGateway(Config{
		BaseURL:    srv.URL,
		APIKey:     testKey,
		Timeout:    50 * time.Millisecond,
		RetryDelay: 10 * time.Millisecond,
	}, nil)

	start := time.Now()
	_, err := g.Answer(context.Background(), AnswerRequest{DocumentText: "doc", Question: "q"})
	if !errors.Is(err, ErrUpstreamUnreachable) {
		t.Fatalf("err = %v, want ErrUpstreamUnreachable", err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Errorf("elapsed %v, per-attempt timeout not applied", elapsed)
	}
}

func TestAnswerPlaceholder(t *testing.T) {
	bodies := map[string]string{
		"empty object":      `{}`,
		"no candidates":     `{"candidates":[]}`,
		"no parts":          `{"candidates":[{"content":{"parts":[]}}]}`,
		"blank text":        `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`,
		"unexpected fields": `{"promptFeedback":{"blockReason":"SAFETY"}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			u := newUpstream(t, http.StatusOK, body)
			g, _ := u.gateway(Config{}, 0)

			ans, err := g.Answer(context.Background(), AnswerRequest{DocumentText: "doc", Question: "q"})
			if err != nil {
				t.Fatalf("Answer: %v", err)
			}
			if ans.Text != PlaceholderAnswer {
				t.Errorf("answer = %q, want placeholder", ans.Text)
			}
		})
	}
}

func TestAnswerMalformed(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"html on success", http.StatusOK, "<html>oops</html>"},
		{"empty body", http.StatusOK, ""},
		{"html error page", http.StatusBadGateway, "<html>bad gateway</html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t, tt.status, tt.body)
			g, _ := u.gateway(Config{}, 0)

			_, err := g.Answer(context.Background(), AnswerRequest{DocumentText: "doc", Question: "q"})
			if !errors.Is(err, ErrUpstreamMalformed) {
				t.Fatalf("err = %v, want ErrUpstreamMalformed", err)
			}
			if u.hits.Load() != 1 {
				t.Errorf("server hits = %d, want 1", u.hits.Load())
			}
		})
	}
}

func TestAnswerForwardsUpstreamError(t *testing.T) {
	body := `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		u := newUpstream(t, status, body)
		g, _ := u.gateway(Config{RetryDelay: 10 * time.Millisecond}, 0)

		_, err := g.Answer(context.Background(), AnswerRequest{DocumentText: "doc", Question: "q"})
		if !errors.Is(err, ErrUpstream) {
			t.Fatalf("status %d: err = %v, want ErrUpstream", status, err)
		}
		var upErr *UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("status %d: err is %T, want *UpstreamError", status, err)
		}
		if upErr.StatusCode != status {
			t.Errorf("StatusCode = %d, want %d", upErr.StatusCode, status)
		}
		if string(upErr.Body) != body {
			t.Errorf("Body = %s, want verbatim provider payload", upErr.Body)
		}
		if !strings.Contains(upErr.Error(), "API key not valid") {
			t.Errorf("Error() = %q, want provider message", upErr.Error())
		}
		if u.hits.Load() != 1 {
			t.Errorf("status %d: server hits = %d, status errors must not be retried", status, u.hits.Load())
		}
	}
}

func TestAnswerCancelled(t *testing.T) {
	u := newUpstream(t, http.StatusOK, okBody)
	g, _ := u.gateway(Config{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Answer(ctx, AnswerRequest{DocumentText: "doc", Question: "q"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrUpstreamUnreachable) {
		t.Error("caller cancellation must not be reported as unreachable")
	}
}

func TestNewGatewayDefaults(t *testing.T) {
	g := NewGateway(Config{}, nil)
	if g.cfg.BaseURL != DefaultBaseURL || g.cfg.Model != DefaultModel {
		t.Errorf("endpoint defaults = %q %q", g.cfg.BaseURL, g.cfg.Model)
	}
	if g.cfg.Timeout != 20*time.Second || g.cfg.RetryDelay != 800*time.Millisecond {
		t.Errorf("timing defaults = %v %v", g.cfg.Timeout, g.cfg.RetryDelay)
	}
	if g.policy.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", g.policy.Attempts)
	}
	if g.cfg.MaxChars != 20000 {
		t.Errorf("MaxChars = %d, want 20000", g.cfg.MaxChars)
	}
}
