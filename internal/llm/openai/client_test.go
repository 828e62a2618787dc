package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mathsnap-backend/internal/llm"
)

func newTestClient(t *testing.T, apiKey string, models []string, url string) *Client {
	t.Helper()
	c, err := NewClient(apiKey, models)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.apiURL = url
	return c
}

func TestExtractRejectsShortCredentialWithoutNetworkCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, "short", []string{"model-a"}, srv.URL)
	_, err := c.ExtractLaTeX(context.Background(), llm.ExtractInput{ImageJPEG: []byte{0xff, 0xd8}})
	if llm.KindOf(err) != llm.KindInvalidCredentials {
		t.Fatalf("expected invalid_credentials, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no network call, got %d", calls)
	}
}

func TestExtractFallsBackThroughCandidates(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		models = append(models, req.Model)
		if req.Model != "model-c" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "x^2 + y^2 = z^2"}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, "sk-test-key-long-enough", []string{"model-a", "model-b", "model-c"}, srv.URL)
	got, err := c.ExtractLaTeX(context.Background(), llm.ExtractInput{ImageJPEG: []byte{0xff, 0xd8}})
	if err != nil {
		t.Fatalf("ExtractLaTeX: %v", err)
	}
	if got != "x^2 + y^2 = z^2" {
		t.Fatalf("content = %q", got)
	}
	want := []string{"model-a", "model-b", "model-c"}
	if len(models) != len(want) {
		t.Fatalf("calls = %v, want %v", models, want)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Fatalf("call order = %v, want %v", models, want)
		}
	}
}

func TestExtractSurfacesLastCandidateFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limited: " + req.Model))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, "sk-test-key-long-enough", []string{"model-a", "model-b"}, srv.URL)
	_, err := c.ExtractLaTeX(context.Background(), llm.ExtractInput{ImageJPEG: []byte{0xff, 0xd8}})
	if llm.KindOf(err) != llm.KindHTTPError {
		t.Fatalf("expected http_error, got %v", err)
	}
	var extractErr *llm.Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *llm.Error, got %T", err)
	}
	if extractErr.Status != http.StatusTooManyRequests {
		t.Fatalf("status = %d", extractErr.Status)
	}
	if !strings.Contains(extractErr.Detail, "model-b") {
		t.Fatalf("detail should carry the last candidate's body, got %q", extractErr.Detail)
	}
}

func TestExtractEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, "sk-test-key-long-enough", []string{"model-a"}, srv.URL)
	_, err := c.ExtractLaTeX(context.Background(), llm.ExtractInput{ImageJPEG: []byte{0xff, 0xd8}})
	if llm.KindOf(err) != llm.KindEmptyResponse {
		t.Fatalf("expected empty_response, got %v", err)
	}
}

func TestExtractNetworkErrorAbortsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from the first candidate on

	c := newTestClient(t, "sk-test-key-long-enough", []string{"model-a", "model-b"}, srv.URL)
	_, err := c.ExtractLaTeX(context.Background(), llm.ExtractInput{ImageJPEG: []byte{0xff, 0xd8}})
	if llm.KindOf(err) != llm.KindNetworkError {
		t.Fatalf("expected network_error, got %v", err)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "latex fence", in: "```latex\n\\frac{1}{2}\n```", want: "\\frac{1}{2}"},
		{name: "tex fence", in: "```tex\nx+y\n```", want: "x+y"},
		{name: "bare fence", in: "```\nx+y\n```", want: "x+y"},
		{name: "no fence", in: "\\sum_{i=0}^n i", want: "\\sum_{i=0}^n i"},
		{name: "inner backticks preserved", in: "```\na `tick` b\n```", want: "a `tick` b"},
		{name: "whitespace", in: "  x = 1  ", want: "x = 1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Fatalf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
