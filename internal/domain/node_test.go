package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseConfig_API(t *testing.T) {
	node := &Node{
		ID:   "node-1",
		Type: NodeTypeAPI,
		Data: json.RawMessage(`{
			"url": "https://discord.com/api/webhooks/123",
			"method": "POST",
			"headers": {"Authorization": "Bot token"},
			"body": {"embeds": [{"description": "{{ replace }}"}]}
		}`),
	}

	cfg, err := node.ParseConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	api, ok := cfg.(APIConfig)
	if !ok {
		t.Fatalf("expected APIConfig, got %T", cfg)
	}
	if api.URL != "https://discord.com/api/webhooks/123" {
		t.Errorf("unexpected url: %s", api.URL)
	}
	if api.Method != "POST" {
		t.Errorf("unexpected method: %s", api.Method)
	}
	if api.Headers["Authorization"] != "Bot token" {
		t.Errorf("unexpected headers: %v", api.Headers)
	}
}

func TestParseConfig_API_DefaultMethod(t *testing.T) {
	node := &Node{
		Type: NodeTypeAPI,
		Data: json.RawMessage(`{"url": "http://localhost:9000/hook"}`),
	}

	cfg, err := node.ParseConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.(APIConfig).Method != "GET" {
		t.Errorf("expected default method GET, got %s", cfg.(APIConfig).Method)
	}
}

func TestParseConfig_API_Invalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"missing url", `{"method": "GET"}`},
		{"bad scheme", `{"url": "ftp://example.com"}`},
		{"relative url", `{"url": "not-a-url"}`},
		{"bad method", `{"url": "http://example.com", "method": "TRACE"}`},
		{"broken json", `{"url": `},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node := &Node{Type: NodeTypeAPI, Data: json.RawMessage(tc.data)}
			if _, err := node.ParseConfig(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseConfig_Ollama(t *testing.T) {
	node := &Node{
		Type: NodeTypeOllama,
		Data: json.RawMessage(`{"prompt": "Summarize: {{ replace }}"}`),
	}

	cfg, err := node.ParseConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.(OllamaConfig).Prompt != "Summarize: {{ replace }}" {
		t.Errorf("unexpected prompt: %s", cfg.(OllamaConfig).Prompt)
	}
}

func TestParseConfig_Ollama_EmptyPrompt(t *testing.T) {
	node := &Node{Type: NodeTypeOllama, Data: json.RawMessage(`{}`)}
	if _, err := node.ParseConfig(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestParseConfig_Webhook(t *testing.T) {
	// Webhook не несёт конфигурации — даже с мусором в Data.
	node := &Node{Type: NodeTypeWebhook, Data: json.RawMessage(`{"whatever": 1}`)}

	cfg, err := node.ParseConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cfg.(WebhookConfig); !ok {
		t.Fatalf("expected WebhookConfig, got %T", cfg)
	}
}

func TestParseConfig_UnknownType(t *testing.T) {
	node := &Node{Type: "CRON", Data: json.RawMessage(`{}`)}
	if _, err := node.ParseConfig(); !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("expected ErrUnknownNodeType, got %v", err)
	}
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	if ExecutionStatusRunning.IsTerminal() || ExecutionStatusPending.IsTerminal() {
		t.Error("running/pending should not be terminal")
	}
	if !ExecutionStatusCompleted.IsTerminal() || !ExecutionStatusError.IsTerminal() {
		t.Error("completed/error should be terminal")
	}
}
