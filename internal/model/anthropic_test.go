package model

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/revcraft/revcraft/internal/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Anthropic {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewAnthropic(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})
	if err != nil {
		t.Fatalf("NewAnthropic() error: %v", err)
	}
	return client
}

func TestInvokeSendsRequest(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q, want test-key", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != apiVersion {
			t.Errorf("anthropic-version = %q, want %q", r.Header.Get("anthropic-version"), apiVersion)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		_, _ = io.WriteString(w, `{
			"content": [
				{"type": "server_tool_use", "id": "x"},
				{"type": "text", "text": "Battery life "},
				{"type": "text", "text": "is about 3 hours."}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 120, "output_tokens": 45}
		}`)
	})

	msgs := []session.Message{
		{Role: session.RoleUser, Parts: []session.Part{session.TextPart("hello"), session.ImagePart("image/png", "AAAA")}},
		session.AssistantText("hi"),
		session.UserText("more"),
	}
	resp, err := client.Invoke(context.Background(), msgs, "be helpful", Options{WebSearch: true, MaxTokens: 500, MaxSearches: 3})
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}

	if resp.Text != "Battery life is about 3 hours." {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 120 || resp.Usage.OutputTokens != 45 {
		t.Errorf("Usage = %+v, want 120/45", resp.Usage)
	}

	if got["model"] != "test-model" {
		t.Errorf("model = %v, want test-model", got["model"])
	}
	if got["system"] != "be helpful" {
		t.Errorf("system = %v, want be helpful", got["system"])
	}
	if got["max_tokens"] != float64(500) {
		t.Errorf("max_tokens = %v, want 500", got["max_tokens"])
	}
	tools, _ := got["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v, want one web search tool", got["tools"])
	}
	if tool := tools[0].(map[string]any); tool["type"] != webSearchTool {
		t.Errorf("tool type = %v, want %s", tool["type"], webSearchTool)
	}
	messages, _ := got["messages"].([]any)
	if len(messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(messages))
	}
	if _, ok := messages[0].(map[string]any)["content"].([]any); !ok {
		t.Error("first message content is not an array of parts")
	}
	if _, ok := messages[1].(map[string]any)["content"].(string); !ok {
		t.Error("assistant message content is not a string")
	}
}

func TestInvokeOmitsToolsWithoutWebSearch(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":1}}`)
	})

	if _, err := client.Invoke(context.Background(), []session.Message{session.UserText("x")}, "", Options{}); err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if _, ok := got["tools"]; ok {
		t.Errorf("tools present without web search: %v", got["tools"])
	}
	if got["max_tokens"] != float64(DefaultMaxTokens) {
		t.Errorf("max_tokens = %v, want %d", got["max_tokens"], DefaultMaxTokens)
	}
}

func TestInvokeClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthInvalid},
		{"forbidden", http.StatusForbidden, ErrAuthInvalid},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"bad request", http.StatusBadRequest, ErrBadRequest},
		{"server error", http.StatusInternalServerError, ErrTransport},
		{"overloaded", 529, ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("retry-after", "7")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"type":"error","error":{"type":"some_error","message":"nope"}}`)
			})

			_, err := client.Invoke(context.Background(), []session.Message{session.UserText("x")}, "", Options{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Invoke() error = %v, want %v", err, tt.want)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Invoke() error %T is not *APIError", err)
			}
			if apiErr.Status != tt.status {
				t.Errorf("Status = %d, want %d", apiErr.Status, tt.status)
			}
			if apiErr.Message != "nope" {
				t.Errorf("Message = %q, want nope", apiErr.Message)
			}
			if apiErr.RetryAfter != 7*time.Second {
				t.Errorf("RetryAfter = %v, want 7s", apiErr.RetryAfter)
			}
		})
	}
}

func TestInvokeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := NewAnthropic(Config{APIKey: "k", BaseURL: url})
	if err != nil {
		t.Fatalf("NewAnthropic() error: %v", err)
	}
	_, err = client.Invoke(context.Background(), []session.Message{session.UserText("x")}, "", Options{})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Invoke() error = %v, want ErrTransport", err)
	}
	if !IsTransient(err) {
		t.Error("IsTransient() = false for transport failure")
	}
}

func TestNewAnthropicRequiresKey(t *testing.T) {
	if _, err := NewAnthropic(Config{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("NewAnthropic() error = %v, want ErrNoAPIKey", err)
	}
}

func TestNewHTTPClientProxySchemes(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"", false},
		{"socks5://127.0.0.1:1080", false},
		{"socks://127.0.0.1:1080", false},
		{"http://proxy.local:3128", false},
		{"ftp://proxy.local", true},
	}
	for _, tt := range tests {
		_, err := NewHTTPClient(tt.addr, time.Minute)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewHTTPClient(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
		}
	}
}
