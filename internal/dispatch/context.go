package dispatch

import (
	"fmt"
	"strings"

	"github.com/synermind/synermind/internal/models"
)

// contextTokenBudget caps how much persisted transcript is fed back into
// routing and generation. Tokens are estimated at four characters each, which
// is close enough for budgeting.
const contextTokenBudget = 800

// maxContextTurns bounds how many persisted turns are even considered before
// the token trim.
const maxContextTurns = 50

func estimateTokens(s string) int {
	return len(s) / 4
}

// BuildContext renders persisted turns as a transcript, newest kept, oldest
// dropped first once the token budget is exceeded. Turns arrive oldest first
// and the output preserves that order.
func BuildContext(turns []models.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	rendered := make([]string, len(turns))
	for i, t := range turns {
		rendered[i] = fmt.Sprintf("user: %s\n%s: %s", t.UserMsg, t.Agent, t.Reply)
	}

	// Walk backwards from the newest turn, keeping whole turns while they fit.
	total := 0
	start := len(rendered)
	for i := len(rendered) - 1; i >= 0; i-- {
		cost := estimateTokens(rendered[i]) + 1
		if total+cost > contextTokenBudget {
			break
		}
		total += cost
		start = i
	}
	if start == len(rendered) {
		// Even the newest turn alone is over budget; keep it anyway so the
		// context is never silently empty while history exists.
		start = len(rendered) - 1
	}
	return strings.Join(rendered[start:], "\n")
}
