// Package agents implements the specialist conversational agents.
//
// Each agent owns a persona prompt and a bounded in-memory window of its own
// past exchanges. Agents are per-session objects: the dispatcher creates a
// fresh set for every session so no dialogue state leaks between users.
package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"

	"github.com/synermind/synermind/internal/genai"
	"github.com/synermind/synermind/internal/models"
)

// Memory window sizes, in exchanges (one user message plus one reply).
// The crisis window is slightly larger than routine so the agent keeps more
// of a distressed conversation in view.
const (
	MoodMemoryWindow    = 10
	TherapyMemoryWindow = 10
	RoutineMemoryWindow = 6
	CrisisMemoryWindow  = 8
)

// Request carries everything an agent needs to produce one reply.
type Request struct {
	UserID   string
	Username string
	Message  string
	Context  string // trimmed transcript of recent persisted turns
}

// Agent produces a reply to a user message in its persona.
type Agent interface {
	Type() models.AgentType
	Respond(ctx context.Context, req Request) (string, error)
}

// dialogueAgent is the shared implementation for personas without tools.
type dialogueAgent struct {
	agentType models.AgentType
	persona   string
	client    genai.ClientInterface
	memory    *Memory
}

func newDialogueAgent(agentType models.AgentType, persona string, client genai.ClientInterface, window int) *dialogueAgent {
	return &dialogueAgent{
		agentType: agentType,
		persona:   persona,
		client:    client,
		memory:    NewMemory(window),
	}
}

func (a *dialogueAgent) Type() models.AgentType {
	return a.agentType
}

func (a *dialogueAgent) Respond(ctx context.Context, req Request) (string, error) {
	messages := a.buildMessages(req)
	reply, err := a.client.GenerateWithMessages(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%s agent generation failed: %w", a.agentType, err)
	}
	// Only successful exchanges enter the window; a failed attempt must not
	// poison future context.
	a.memory.Record(req.Message, reply)
	slog.Debug("Agent.Respond: reply generated", "agent", a.agentType, "memory_len", a.memory.Len())
	return reply, nil
}

// buildMessages assembles the completion input: persona, recent persisted
// context, the agent's own memory window, then the new message.
func (a *dialogueAgent) buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(a.persona),
	}
	if req.Context != "" {
		messages = append(messages, openai.SystemMessage("Recent conversation history:\n"+req.Context))
	}
	for _, ex := range a.memory.Exchanges() {
		messages = append(messages, openai.UserMessage(ex.UserMsg))
		messages = append(messages, openai.AssistantMessage(ex.Reply))
	}
	messages = append(messages, openai.UserMessage(req.Message))
	return messages
}

// NewMoodAgent creates the everyday mood companion.
func NewMoodAgent(client genai.ClientInterface) Agent {
	return newDialogueAgent(models.AgentMood, moodPersona, client, MoodMemoryWindow)
}

// NewTherapyAgent creates the CBT-style guide.
func NewTherapyAgent(client genai.ClientInterface) Agent {
	return newDialogueAgent(models.AgentTherapy, therapyPersona, client, TherapyMemoryWindow)
}

// NewCrisisAgent creates the calm crisis responder. Safety notifications are
// handled by the dispatch layer before this agent is ever reached, so the
// persona focuses purely on steady, supportive dialogue.
func NewCrisisAgent(client genai.ClientInterface) Agent {
	return newDialogueAgent(models.AgentCrisis, crisisPersona, client, CrisisMemoryWindow)
}
