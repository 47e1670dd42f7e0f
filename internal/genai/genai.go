// Package genai provides GenAI-enhanced operations using the OpenAI API.
//
// It wraps chat completions behind a small interface so that callers can be
// tested with mocks, and exposes tool-calling support for agents that consult
// stored user data while generating a reply.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// Error variables for better error handling and testability
var (
	ErrAPIKeyNotSet      = errors.New("OPENAI_API_KEY not set")
	ErrNoChoicesReturned = errors.New("no choices returned")
)

// ToolCall represents a function invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the name and raw JSON arguments of a requested tool call.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResponse is the result of a completion that may include tool calls.
// Content is empty when the model chose to call tools instead of answering.
type ToolCallResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ClientInterface defines the GenAI operations used by the rest of the
// application. Implemented by Client and by test mocks.
type ClientInterface interface {
	// GenerateWithMessages produces a reply at the configured temperature.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	// GenerateDeterministic produces a reply at temperature 0, for
	// classification tasks where the answer must be stable.
	GenerateDeterministic(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	// GenerateWithTools produces a reply with the given tools offered to the model.
	GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error)
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the official client to the chatService interface.
type openaiChatService struct {
	client openai.Client
}

func (s *openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key (overrides $OPENAI_API_KEY).
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL sets a custom API endpoint, e.g. a proxy or compatible server.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the chat model to use.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the default sampling temperature for dialogue calls.
func WithTemperature(temp float64) Option {
	return func(o *Opts) { o.Temperature = temp }
}

// Default model and temperature for dialogue generation
const (
	DefaultModel       = openai.ChatModelGPT4oMini
	DefaultTemperature = 0.7
)

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat        chatService
	model       string
	temperature float64
}

// NewClient initializes a new GenAI client. The API key is taken from
// options or falls back to the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		slog.Error("GenAI.NewClient: API key not provided")
		return nil, ErrAPIKeyNotSet
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	slog.Debug("GenAI.NewClient: client initialized", "model", cfg.Model, "base_url_set", cfg.BaseURL != "")
	return &Client{
		chat:        &openaiChatService{client: cli},
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// GenerateWithMessages generates a reply for the given conversation messages
// at the client's configured temperature.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return c.generate(ctx, messages, c.temperature)
}

// GenerateDeterministic generates a reply at temperature 0. Used for routing
// and mood classification where identical input must produce identical output.
func (c *Client) GenerateDeterministic(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return c.generate(ctx, messages, 0)
}

func (c *Client) generate(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: param.NewOpt(temperature),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("GenAI.generate: chat completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI.generate: no choices returned")
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	slog.Debug("GenAI.generate: completion succeeded", "response_length", len(content))
	return content, nil
}

// GenerateWithTools generates a reply with tools offered to the model. The
// caller is responsible for executing any requested tool calls and feeding
// the results back via a follow-up completion.
func (c *Client) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: param.NewOpt(c.temperature),
		Tools:       tools,
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("GenAI.GenerateWithTools: chat completion failed", "error", err)
		return nil, fmt.Errorf("chat completion with tools failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI.GenerateWithTools: no choices returned")
		return nil, ErrNoChoicesReturned
	}

	msg := resp.Choices[0].Message
	result := &ToolCallResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			},
		})
	}
	slog.Debug("GenAI.GenerateWithTools: completion succeeded", "tool_calls", len(result.ToolCalls), "has_content", result.Content != "")
	return result, nil
}

// IsRateLimitError reports whether the error text indicates API rate limiting.
// Matched on text so it works for wrapped errors from any transport layer.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "rate") && strings.Contains(text, "limit")
}

// IsAuthError reports whether the error text indicates a credential problem.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "invalid api key") ||
		strings.Contains(text, "unauthorized") ||
		strings.Contains(text, "authentication error")
}
