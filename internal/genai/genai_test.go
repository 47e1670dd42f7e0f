package genai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp       openai.ChatCompletion
	err        error
	lastParams openai.ChatCompletionNewParams
	calls      int
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.calls++
	m.lastParams = params
	return m.resp, m.err
}

func textCompletion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGenerateWithMessages_Success(t *testing.T) {
	mock := &mockChatService{resp: textCompletion("Hello World")}
	client := &Client{chat: mock, model: DefaultModel, temperature: DefaultTemperature}

	out, err := client.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("system prompt"),
		openai.UserMessage("user prompt"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if !mock.lastParams.Temperature.Valid() || mock.lastParams.Temperature.Value != DefaultTemperature {
		t.Errorf("expected default temperature, got %+v", mock.lastParams.Temperature)
	}
}

func TestGenerateDeterministic_UsesZeroTemperature(t *testing.T) {
	mock := &mockChatService{resp: textCompletion("anxious")}
	client := &Client{chat: mock, model: DefaultModel, temperature: DefaultTemperature}

	out, err := client.GenerateDeterministic(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage("classify this"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "anxious" {
		t.Errorf("expected 'anxious', got '%s'", out)
	}
	if !mock.lastParams.Temperature.Valid() || mock.lastParams.Temperature.Value != 0 {
		t.Errorf("expected temperature 0, got %+v", mock.lastParams.Temperature)
	}
}

func TestGenerateWithMessages_ServiceError(t *testing.T) {
	mock := &mockChatService{err: errors.New("service failure")}
	client := &Client{chat: mock, model: DefaultModel}

	_, err := client.GenerateWithMessages(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerateWithMessages_NoChoices(t *testing.T) {
	mock := &mockChatService{resp: openai.ChatCompletion{}}
	client := &Client{chat: mock, model: DefaultModel}

	_, err := client.GenerateWithMessages(context.Background(), nil)
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestGenerateWithTools_ToolCallConversion(t *testing.T) {
	resp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Content: "",
				ToolCalls: []openai.ChatCompletionMessageToolCall{
					{
						ID: "call_1",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      "get_mood_history",
							Arguments: `{"days":7}`,
						},
					},
				},
			}},
		},
	}
	mock := &mockChatService{resp: resp}
	client := &Client{chat: mock, model: DefaultModel, temperature: DefaultTemperature}

	out, err := client.GenerateWithTools(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(out.ToolCalls))
	}
	tc := out.ToolCalls[0]
	if tc.ID != "call_1" || tc.Function.Name != "get_mood_history" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	var args struct {
		Days int `json:"days"`
	}
	if err := json.Unmarshal(tc.Function.Arguments, &args); err != nil {
		t.Fatalf("failed to decode arguments: %v", err)
	}
	if args.Days != 7 {
		t.Errorf("expected days=7, got %d", args.Days)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("expected ErrAPIKeyNotSet when API key not provided, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Error("expected client instance, got nil")
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"rate limit text", errors.New("429: Rate limit exceeded"), true},
		{"rate_limit_exceeded code", errors.New("error code rate_limit_exceeded"), true},
		{"unrelated error", errors.New("connection refused"), false},
		{"rate without limit", errors.New("heart rate monitor"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimitError(tt.err); got != tt.want {
				t.Errorf("IsRateLimitError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"invalid api key", errors.New("Invalid API Key provided"), true},
		{"unauthorized", errors.New("401 Unauthorized"), true},
		{"authentication error", errors.New("Authentication Error: check credentials"), true},
		{"rate limit", errors.New("rate limit exceeded"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
