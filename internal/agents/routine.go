package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/synermind/synermind/internal/genai"
	"github.com/synermind/synermind/internal/models"
)

// defaultHistoryLimit is how many mood logs the tool returns when the model
// does not ask for a specific count.
const defaultHistoryLimit = 14

// MoodHistoryProvider supplies recent mood logs for the history tool.
// Satisfied by the store.
type MoodHistoryProvider interface {
	ListMoodLogs(userID string, limit int) ([]models.MoodLog, error)
}

// RoutineAgent is the wellness coach. It can consult the user's mood history
// through a tool, but the tool is only offered when the message explicitly
// asks for history-based advice; the model never decides on its own to read
// stored user data.
type RoutineAgent struct {
	*dialogueAgent
	history MoodHistoryProvider
}

// NewRoutineAgent creates the wellness coach backed by the given mood
// history provider.
func NewRoutineAgent(client genai.ClientInterface, history MoodHistoryProvider) *RoutineAgent {
	return &RoutineAgent{
		dialogueAgent: newDialogueAgent(models.AgentRoutine, routinePersona, client, RoutineMemoryWindow),
		history:       history,
	}
}

// historyCues are the phrasings that unlock the mood history tool.
var historyCues = []string{
	"mood history",
	"my history",
	"based on my history",
	"past moods",
	"my moods",
	"mood log",
	"mood logs",
	"my mood lately",
	"how have i been feeling",
}

// wantsHistory reports whether the message explicitly asks for advice
// grounded in stored mood data.
func wantsHistory(message string) bool {
	lower := strings.ToLower(message)
	for _, cue := range historyCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func (a *RoutineAgent) Respond(ctx context.Context, req Request) (string, error) {
	if !wantsHistory(req.Message) {
		return a.dialogueAgent.Respond(ctx, req)
	}

	messages := a.buildMessages(req)
	tools := []openai.ChatCompletionToolParam{moodHistoryToolDefinition()}

	toolResponse, err := a.client.GenerateWithTools(ctx, messages, tools)
	if err != nil {
		return "", fmt.Errorf("routine agent generation failed: %w", err)
	}
	if len(toolResponse.ToolCalls) == 0 {
		a.memory.Record(req.Message, toolResponse.Content)
		return toolResponse.Content, nil
	}

	reply, err := a.resolveToolCalls(ctx, req, toolResponse, messages, tools)
	if err != nil {
		return "", err
	}
	a.memory.Record(req.Message, reply)
	return reply, nil
}

// resolveToolCalls executes the requested history lookups and asks the model
// for a final reply with the results in context.
func (a *RoutineAgent) resolveToolCalls(ctx context.Context, req Request, toolResponse *genai.ToolCallResponse, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (string, error) {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, tc := range toolResponse.ToolCalls {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: string(tc.Function.Arguments),
			},
		})
	}
	assistantMessage := openai.ChatCompletionAssistantMessageParam{
		Content: openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: param.NewOpt(toolResponse.Content),
		},
		ToolCalls: toolCalls,
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantMessage})

	for _, tc := range toolResponse.ToolCalls {
		result := a.executeToolCall(req.UserID, tc)
		messages = append(messages, openai.ToolMessage(result, tc.ID))
	}

	reply, err := a.client.GenerateWithMessages(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("routine agent follow-up generation failed: %w", err)
	}
	return reply, nil
}

// executeToolCall runs one tool call and renders its result for the model.
// Lookup failures are reported to the model as text rather than aborting the
// turn; the user still gets a reply either way.
func (a *RoutineAgent) executeToolCall(userID string, tc genai.ToolCall) string {
	if tc.Function.Name != "get_mood_history" {
		slog.Warn("RoutineAgent.executeToolCall: unknown tool requested", "tool", tc.Function.Name)
		return fmt.Sprintf("unknown tool %q", tc.Function.Name)
	}

	var args struct {
		Limit int `json:"limit"`
	}
	if len(tc.Function.Arguments) > 0 {
		if err := json.Unmarshal(tc.Function.Arguments, &args); err != nil {
			slog.Warn("RoutineAgent.executeToolCall: bad tool arguments", "error", err)
		}
	}
	limit := args.Limit
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}

	logs, err := a.history.ListMoodLogs(userID, limit)
	if err != nil {
		slog.Error("RoutineAgent.executeToolCall: mood history lookup failed", "error", err, "user_id", userID)
		return "mood history is unavailable right now"
	}
	if len(logs) == 0 {
		return "no mood logs recorded yet"
	}

	var b strings.Builder
	for _, l := range logs {
		fmt.Fprintf(&b, "%s: %s (%d/10)", l.CreatedAt.Format(time.DateOnly), l.Mood, l.Intensity)
		if l.Note != "" {
			fmt.Fprintf(&b, " - %s", l.Note)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func moodHistoryToolDefinition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        "get_mood_history",
			Description: openai.String("Fetch the user's recent mood logs so routine advice can be grounded in how they have actually been feeling. Each entry has a date, a mood label, and an intensity from 1 to 10."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "How many recent mood logs to fetch (default 14)",
					},
				},
			},
		},
	}
}
