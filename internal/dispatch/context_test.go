package dispatch

import (
	"strings"
	"testing"

	"github.com/synermind/synermind/internal/models"
)

func TestBuildContextEmpty(t *testing.T) {
	if got := BuildContext(nil); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestBuildContextRendersSpeakers(t *testing.T) {
	turns := []models.Turn{
		{Agent: models.AgentMood, UserMsg: "hi", Reply: "hello!"},
		{Agent: models.AgentTherapy, UserMsg: "bad week", Reply: "tell me more"},
	}
	got := BuildContext(turns)
	want := "user: hi\nmood: hello!\nuser: bad week\ntherapy: tell me more"
	if got != want {
		t.Errorf("BuildContext() = %q, want %q", got, want)
	}
}

func TestBuildContextDropsOldestFirst(t *testing.T) {
	// Each turn is ~100 tokens, so only a handful fit in the 800 budget.
	filler := strings.Repeat("w ", 200)
	var turns []models.Turn
	for i := 0; i < 20; i++ {
		turns = append(turns, models.Turn{
			Agent:   models.AgentMood,
			UserMsg: filler,
			Reply:   string(rune('a' + i)),
		})
	}
	got := BuildContext(turns)

	if estimateTokens(got) > contextTokenBudget {
		t.Errorf("context exceeds budget: %d tokens", estimateTokens(got))
	}
	// Newest turn survives, oldest is gone
	if !strings.Contains(got, "mood: t") {
		t.Error("newest turn missing from trimmed context")
	}
	if strings.Contains(got, "mood: a\n") {
		t.Error("oldest turn should have been dropped")
	}
}

func TestBuildContextKeepsOversizedNewestTurn(t *testing.T) {
	turns := []models.Turn{
		{Agent: models.AgentMood, UserMsg: "old", Reply: "old reply"},
		{Agent: models.AgentMood, UserMsg: strings.Repeat("x", 5000), Reply: "newest"},
	}
	got := BuildContext(turns)
	if !strings.Contains(got, "newest") {
		t.Error("newest turn must survive even when over budget")
	}
	if strings.Contains(got, "old reply") {
		t.Error("older turn should have been dropped")
	}
}
