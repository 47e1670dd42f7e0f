// Package mood extracts mood observations from user messages.
//
// Classification asks the model for a single label out of a closed set and
// treats anything else as "no mood detected". Intensity is estimated locally
// from the message text so it works without another remote call.
package mood

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/synermind/synermind/internal/genai"
	"github.com/synermind/synermind/internal/models"
)

const classifierPrompt = `You analyze one message from a mental-wellness chat and name the mood it expresses.
Respond with exactly one word from this list: happy, sad, anxious, angry, content, stressed, neutral.
If the message does not clearly express a mood, respond with: None.
Do not explain your answer.`

// Classifier determines the mood label of a message via the GenAI client.
type Classifier struct {
	client genai.ClientInterface
}

// NewClassifier creates a mood classifier backed by the given GenAI client.
func NewClassifier(client genai.ClientInterface) *Classifier {
	return &Classifier{client: client}
}

// Classify returns the mood expressed in the message. The second return value
// is false when no mood could be determined, whether because the model
// declined, answered outside the label set, or the call failed. Classification
// failures never propagate; the caller treats them as "no observation".
func (c *Classifier) Classify(ctx context.Context, message string) (models.Mood, bool) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(classifierPrompt),
		openai.UserMessage(message),
	}
	raw, err := c.client.GenerateDeterministic(ctx, messages)
	if err != nil {
		slog.Warn("Classifier.Classify: classification call failed", "error", err)
		return "", false
	}

	label := normalizeLabel(raw)
	if label == "none" {
		slog.Debug("Classifier.Classify: no mood detected")
		return "", false
	}
	m := models.Mood(label)
	if !models.IsValidMood(m) {
		slog.Warn("Classifier.Classify: label outside closed set", "label", label)
		return "", false
	}
	slog.Debug("Classifier.Classify: mood detected", "mood", m)
	return m, true
}

// normalizeLabel cleans up a model answer so that near-conforming responses
// such as "Anxious." still map onto the label set.
func normalizeLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.TrimSuffix(label, ".")
	return strings.TrimSpace(label)
}

// Observation couples a classified mood with its estimated intensity.
type Observation struct {
	Mood      models.Mood
	Intensity int
}

// String renders the observation for logging.
func (o Observation) String() string {
	return fmt.Sprintf("%s(%d)", o.Mood, o.Intensity)
}
