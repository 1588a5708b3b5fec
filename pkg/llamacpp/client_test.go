package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, content any, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request: %v", err)
		}
		if len(req.Messages) != 1 || req.Stream {
			t.Errorf("unexpected request %+v", req)
		}
		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: content}}},
		})
	}))
}

func TestSuggestPresetStringContent(t *testing.T) {
	server := newTestServer(t, `{"preset": "smoothed", "confidence": 0.4, "reason": "photo"}`, http.StatusOK)
	defer server.Close()

	c, _ := NewClient(server.URL + "/")
	s, err := c.SuggestPreset(context.Background(), "minicpm", "which preset?", "aGVsbG8=")
	if err != nil {
		t.Fatalf("SuggestPreset failed: %v", err)
	}
	if s.Preset != "smoothed" || s.Reason != "photo" {
		t.Errorf("unexpected suggestion %+v", s)
	}
}

func TestSimpleQueryPartsContent(t *testing.T) {
	parts := []map[string]any{{"type": "text", "text": "hello"}}
	server := newTestServer(t, parts, http.StatusOK)
	defer server.Close()

	c, _ := NewClient(server.URL)
	got, err := c.SimpleQuery(context.Background(), "m", "hi", "")
	if err != nil || got != "hello" {
		t.Errorf("SimpleQuery = %q, %v", got, err)
	}
}

func TestSimpleQueryServerError(t *testing.T) {
	server := newTestServer(t, "", http.StatusServiceUnavailable)
	defer server.Close()

	c, _ := NewClient(server.URL)
	if _, err := c.SimpleQuery(context.Background(), "m", "hi", ""); err == nil {
		t.Error("expected error for 503")
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("")
	if err != nil || c.baseURL != DefaultURL {
		t.Errorf("expected default URL, got %v %v", c, err)
	}
	if _, err := NewClient("unix:///tmp/sock"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
