package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/synermind/synermind/internal/agents"
	"github.com/synermind/synermind/internal/genai"
	"github.com/synermind/synermind/internal/models"
)

// Session holds the per-user conversational state: one instance of each
// specialist agent with its own memory window, and the response cache. The
// mutex serializes turns so agent memory is never mutated concurrently.
type Session struct {
	mu     sync.Mutex
	userID string
	agents map[models.AgentType]agents.Agent
	cache  *ResponseCache
}

// Agent returns the session's instance of the given specialist.
func (s *Session) Agent(agentType models.AgentType) agents.Agent {
	return s.agents[agentType]
}

// SessionManager owns the live sessions, one per user. Sessions are created
// lazily on first message and dropped on signout; nothing in them survives a
// process restart by design.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	client   genai.ClientInterface
	history  agents.MoodHistoryProvider
	clock    func() time.Time
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithClock sets the clock used by per-session response caches. Tests use
// this to drive cache expiry deterministically.
func WithClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) { m.clock = now }
}

// NewSessionManager creates a session manager. The history provider feeds
// the routine agent's mood history tool.
func NewSessionManager(client genai.ClientInterface, history agents.MoodHistoryProvider, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		sessions: make(map[string]*Session),
		client:   client,
		history:  history,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the user's session, creating it on first use.
func (m *SessionManager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := &Session{
		userID: userID,
		agents: map[models.AgentType]agents.Agent{
			models.AgentMood:    agents.NewMoodAgent(m.client),
			models.AgentTherapy: agents.NewTherapyAgent(m.client),
			models.AgentRoutine: agents.NewRoutineAgent(m.client, m.history),
			models.AgentCrisis:  agents.NewCrisisAgent(m.client),
		},
		cache: NewResponseCacheWithClock(m.clock),
	}
	m.sessions[userID] = s
	slog.Debug("SessionManager.Get: session created", "user_id", userID)
	return s
}

// End drops the user's session and all its in-memory state.
func (m *SessionManager) End(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	slog.Debug("SessionManager.End: session dropped", "user_id", userID)
}
