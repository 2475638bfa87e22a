package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/meetnav/pkg/provider/llm"
)

// chatServer is a minimal OpenAI-compatible server recording the last
// request body.
func chatServer(t *testing.T, status int, reply string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var last map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &last)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

const okReply = `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 1760781600, "model": "local-model",
  "choices": [{"index": 0, "finish_reason": "stop",
    "message": {"role": "assistant", "content": "- Budget agreed\n- Bob hires two engineers"}}],
  "usage": {"prompt_tokens": 120, "completion_tokens": 14, "total_tokens": 134}
}`

func TestComplete_CompatibleServer(t *testing.T) {
	t.Parallel()
	srv, last := chatServer(t, http.StatusOK, okReply)

	p, err := New("", "local-model", WithBaseURL(srv.URL+"/v1"), WithContextWindow(8192))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You are a meeting assistant.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "[10:00:01] Alice: Budget?"}},
		Temperature:  0.2,
		MaxTokens:    256,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.HasPrefix(resp.Content, "- Budget agreed") || resp.Usage.TotalTokens != 134 {
		t.Errorf("response = %+v", resp)
	}

	req := *last
	if req["model"] != "local-model" || req["temperature"] != 0.2 || req["max_completion_tokens"] != float64(256) {
		t.Errorf("request = %v", req)
	}
	msgs, _ := req["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", msgs)
	}
	if first := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("first message = %v, want the system prompt", first)
	}
	if got := p.Capabilities().ContextWindow; got != 8192 {
		t.Errorf("context window = %d, want the override", got)
	}
}

func TestComplete_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		reply  string
		want   string
	}{
		{"bad request", http.StatusBadRequest, `{"error": {"message": "model not found", "type": "invalid_request_error"}}`, "chat completion"},
		{"no choices", http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`, "no choices"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := chatServer(t, tt.status, tt.reply)
			p, err := New("sk-test", "gpt-4o", WithBaseURL(srv.URL))
			if err != nil {
				t.Fatal(err)
			}
			_, err = p.Complete(context.Background(), llm.CompletionRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestComplete_UnknownRole(t *testing.T) {
	t.Parallel()
	p, err := New("sk-test", "gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "tool", Content: "x"}},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown message role") {
		t.Errorf("err = %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		key     string
		model   string
		opts    []Option
		wantErr bool
	}{
		{"hosted", "sk-test", "gpt-4o", nil, false},
		{"empty model", "sk-test", "", nil, true},
		{"hosted without key", "", "gpt-4o", nil, true},
		{"local without key", "", "qwen2.5", []Option{WithBaseURL("http://127.0.0.1:1234/v1")}, false},
		{"azure without endpoint", "k", "my-deployment", []Option{WithAzure("2024-10-21")}, true},
		{"azure without key", "", "my-deployment", []Option{WithBaseURL("https://x.openai.azure.com"), WithAzure("2024-10-21")}, true},
		{"azure", "k", "my-deployment", []Option{WithBaseURL("https://x.openai.azure.com"), WithAzure("2024-10-21")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.key, tt.model, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCapabilitiesFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		model  string
		window int
	}{
		{"gpt-4o", 128_000},
		{"gpt-4", 8_192},
		{"gpt-35-turbo", 16_385},
		{"o1-preview", 200_000},
		{"gpt-4.1-mini", 1_047_576},
		{"my-deployment", 128_000},
	}
	for _, tt := range tests {
		if got := capabilitiesFor(tt.model).ContextWindow; got != tt.window {
			t.Errorf("%s: context window %d, want %d", tt.model, got, tt.window)
		}
	}
}
