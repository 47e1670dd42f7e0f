// Package router decides which specialist agent should handle a message.
//
// The decision is made fresh for every message from the full recent
// transcript, so a conversation naturally escalates or de-escalates between
// agents as its content shifts. A crisis keyword match short-circuits the
// decision entirely and never touches the network.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/synermind/synermind/internal/crisis"
	"github.com/synermind/synermind/internal/genai"
	"github.com/synermind/synermind/internal/models"
)

const routingPrompt = `You are the routing layer of a mental-wellness chat service.
Read the conversation and the newest user message, then pick the single best
specialist to handle the newest message:

- mood: everyday check-ins, naming feelings, small talk about how the day went
- therapy: persistent negative thoughts, rumination, relationship or self-worth
  struggles, anything that calls for working through thoughts with CBT
- routine: habits, sleep, exercise, daily structure, planning, practical coaching
- crisis: mentions of self-harm, suicide, or acute despair, even oblique ones

Watch for escalation across the conversation: if earlier messages were light
but the newest one turns dark, route to therapy or crisis accordingly.
Answer with exactly one word: mood, therapy, routine, or crisis.`

// Request carries the routing input for one message.
type Request struct {
	UserID   string
	Username string
	Message  string
	Context  string // trimmed transcript of recent persisted turns
}

// Router picks the agent for each incoming message.
type Router struct {
	client genai.ClientInterface
}

// NewRouter creates a router backed by the given GenAI client.
func NewRouter(client genai.ClientInterface) *Router {
	return &Router{client: client}
}

// Route returns the agent that should handle the message. It never fails:
// crisis keywords decide locally, and any remote failure or malformed answer
// falls back to the mood agent so the user always gets a reply.
func (r *Router) Route(ctx context.Context, req Request) models.AgentType {
	if crisis.Detected(req.Message) {
		slog.Info("Router.Route: crisis keywords detected, bypassing model", "user_id", req.UserID)
		return models.AgentCrisis
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(routingPrompt),
		openai.UserMessage(r.buildTranscript(req)),
	}
	raw, err := r.client.GenerateDeterministic(ctx, messages)
	if err != nil {
		slog.Warn("Router.Route: routing call failed, defaulting to mood", "error", err, "user_id", req.UserID)
		return models.AgentMood
	}

	label := normalizeLabel(raw)
	agent := models.AgentType(label)
	if !models.IsValidAgentType(agent) {
		slog.Warn("Router.Route: label outside agent set, defaulting to mood", "label", label)
		return models.AgentMood
	}
	slog.Debug("Router.Route: routed", "agent", agent, "user_id", req.UserID)
	return agent
}

// buildTranscript assembles the routing input: an identity line so multi-user
// transcripts stay unambiguous, the recent context, then the new message.
func (r *Router) buildTranscript(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User-Identifier: %s (id:%s)\n", req.Username, req.UserID)
	if req.Context != "" {
		b.WriteString(req.Context)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "user: %s", req.Message)
	return b.String()
}

// normalizeLabel cleans up a model answer so near-conforming responses such
// as "Therapy." still map onto the agent set.
func normalizeLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.TrimSuffix(label, ".")
	return strings.TrimSpace(label)
}
