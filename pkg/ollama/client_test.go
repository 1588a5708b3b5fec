package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSuggestPreset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req["model"] != "llava" {
			t.Errorf("unexpected model %v", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "llava",
			"message": map[string]any{
				"role":    "assistant",
				"content": "```json\n{\"preset\": \"curvy\", \"confidence\": 0.7}\n```",
			},
			"done": true,
		})
	}))
	defer server.Close()

	c, err := NewClient(server.URL + "/api/chat")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	s, err := c.SuggestPreset(context.Background(), "llava", "which preset?", "")
	if err != nil {
		t.Fatalf("SuggestPreset failed: %v", err)
	}
	if s.Preset != "curvy" || s.Confidence != 0.7 {
		t.Errorf("unexpected suggestion %+v", s)
	}
}

func TestNewClientInvalidURL(t *testing.T) {
	if _, err := NewClient("localhost"); err == nil {
		t.Error("expected error for URL without scheme")
	}
}

func TestModelOptions(t *testing.T) {
	if opts := modelOptions("openbmb/minicpm-v4.5"); opts["num_ctx"] != 4096 {
		t.Errorf("expected tuned options, got %v", opts)
	}
	if opts := modelOptions("llava"); len(opts) != 0 {
		t.Errorf("expected no options, got %v", opts)
	}
}
