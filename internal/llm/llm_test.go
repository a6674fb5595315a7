package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseProviderFlag(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantProv string
		wantMod  string
		wantErr  bool
	}{
		{"empty defaults to google", "", "google", "gemini-2.5-flash", false},
		{"google flash", "google/gemini-2.5-flash", "google", "gemini-2.5-flash", false},
		{"openrouter model", "openrouter/openai/gpt-4o-mini", "openrouter", "openai/gpt-4o-mini", false},
		{"unknown provider", "anthropic/claude-4", "", "", true},
		{"no slash", "gemini-2.5-flash", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseProviderFlag(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Provider != tt.wantProv {
				t.Errorf("provider: got %q, want %q", cfg.Provider, tt.wantProv)
			}
			if cfg.Model != tt.wantMod {
				t.Errorf("model: got %q, want %q", cfg.Model, tt.wantMod)
			}
		})
	}
}

func TestNewProviderErrors(t *testing.T) {
	_, err := NewProvider(Config{Provider: "unknown"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	_, err = NewProvider(Config{Provider: "google"})
	if err == nil {
		t.Fatal("expected error for google without API key")
	}

	t.Setenv("OPENROUTER_API_KEY", "")
	_, err = NewProvider(Config{Provider: "openrouter"})
	if err == nil {
		t.Fatal("expected error for openrouter without API key")
	}
}

func TestOpenrouterComplete(t *testing.T) {
	var gotReq orRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "generated brief"}},
			},
		})
	}))
	defer server.Close()

	p := newOpenrouterProvider("test-key", "openai/gpt-4o-mini", server.URL, time.Second)

	messages := []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "write the brief"},
		{Role: RoleAssistant, Content: "previous attempt"},
		{Role: RoleUser, Content: "fix it"},
	}
	got, err := p.Complete(context.Background(), messages, CompletionOpts{MaxTokens: 256})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "generated brief" {
		t.Fatalf("content = %q", got)
	}

	if len(gotReq.Messages) != 4 {
		t.Fatalf("messages = %d, want 4 (conversation must be preserved in order)", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[2].Role != "assistant" {
		t.Fatalf("roles not preserved: %+v", gotReq.Messages)
	}
	if gotReq.MaxTokens != 256 {
		t.Fatalf("max_tokens = %d, want 256", gotReq.MaxTokens)
	}
}

func TestOpenrouterCompleteServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := newOpenrouterProvider("test-key", "openai/gpt-4o-mini", server.URL, time.Second)
	_, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, CompletionOpts{})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", httpErr.StatusCode)
	}
	if httpErr.RetryAfter != 30*time.Second {
		t.Fatalf("retry-after = %v, want 30s", httpErr.RetryAfter)
	}
}

func TestGoogleComplete(t *testing.T) {
	var gotReq googleRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  generated brief  "}]}}]}`))
	}))
	defer server.Close()

	p := newGoogleProvider("test-key", "gemini-2.5-flash", server.URL, time.Second)

	messages := []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "write the brief"},
		{Role: RoleAssistant, Content: "previous attempt"},
	}
	got, err := p.Complete(context.Background(), messages, CompletionOpts{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "generated brief" {
		t.Fatalf("content = %q", got)
	}

	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("system instruction not carried out of band: %+v", gotReq.SystemInstruction)
	}
	if len(gotReq.Contents) != 2 {
		t.Fatalf("contents = %d, want 2 (system excluded)", len(gotReq.Contents))
	}
	if gotReq.Contents[1].Role != "model" {
		t.Fatalf("assistant turn should map to model role, got %q", gotReq.Contents[1].Role)
	}
}
