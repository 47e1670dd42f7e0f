package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/synermind/synermind/internal/agents"
	"github.com/synermind/synermind/internal/alert"
	"github.com/synermind/synermind/internal/crisis"
	"github.com/synermind/synermind/internal/genai"
	"github.com/synermind/synermind/internal/models"
	"github.com/synermind/synermind/internal/mood"
	"github.com/synermind/synermind/internal/router"
	"github.com/synermind/synermind/internal/store"
	"github.com/synermind/synermind/internal/util"
)

// CrisisReply is the fixed response for messages that trip the crisis gate.
// It is deliberately not generated: in a safety situation the wording must
// be known in advance.
const CrisisReply = "Thank you for telling me. What you're feeling matters, and you don't have to carry it alone. " +
	"I've asked someone you trust to check in on you. " +
	"If you are in immediate danger, please call 911. You can also call or text 988 to reach the Suicide & Crisis Lifeline at any time. " +
	"I'm here with you. Please keep talking to me."

// crisisAlertSubject is the subject line for crisis notifications.
const crisisAlertSubject = "Synermind wellness alert"

// Dispatcher is the turn controller. For each message it runs the crisis
// gate, best-effort mood extraction, routing, the cache and retry layers
// around the chosen agent, and persistence, in that order.
type Dispatcher struct {
	store    store.Store
	router   *router.Router
	moods    *mood.Classifier
	sessions *SessionManager
	alerts   *alert.Service
	sleep    sleepFunc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSleep replaces the backoff sleep, letting tests observe retry delays
// without waiting them out.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = sleep }
}

// NewDispatcher creates the turn controller. The alert service may be nil
// when no notification channel is configured; alert records are still
// persisted in that case.
func NewDispatcher(st store.Store, client genai.ClientInterface, alerts *alert.Service, sessions *SessionManager, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:    st,
		router:   router.NewRouter(client),
		moods:    mood.NewClassifier(client),
		sessions: sessions,
		alerts:   alerts,
		sleep:    sleepWithContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleMessage processes one chat message end to end and returns the reply
// with its routing outcome. Errors are only returned for invalid input or
// unrecoverable generation failures; everything on the safety path degrades
// instead of failing.
func (d *Dispatcher) HandleMessage(ctx context.Context, user *models.User, message string) (*models.TurnResult, error) {
	if message == "" {
		return nil, models.ErrEmptyMessage
	}
	if len(message) > models.MaxMessageLength {
		return nil, models.ErrMessageTooLong
	}

	session := d.sessions.Get(user.ID)
	session.mu.Lock()
	defer session.mu.Unlock()

	start := time.Now()

	// The crisis gate runs before anything that could fail or stall. No
	// remote call stands between a distress signal and the safety path.
	if crisis.Detected(message) {
		return d.handleCrisis(ctx, user, message, start)
	}

	observation := d.extractMood(ctx, user.ID, message)

	turns, err := d.store.ListRecentTurns(user.ID, maxContextTurns)
	if err != nil {
		slog.Error("Dispatcher.HandleMessage: failed to load context, continuing without", "error", err, "user_id", user.ID)
		turns = nil
	}
	transcript := BuildContext(turns)

	agentType := d.router.Route(ctx, router.Request{
		UserID:   user.ID,
		Username: user.Username,
		Message:  message,
		Context:  transcript,
	})

	reply, cached, err := d.generateReply(ctx, session, agentType, user, message, transcript)
	if err != nil {
		return nil, err
	}

	d.persistTurn(user.ID, agentType, message, reply, start)

	result := &models.TurnResult{
		Agent:     agentType,
		Reply:     reply,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if observation != nil {
		result.Mood = observation.Mood
		result.Intensity = observation.Intensity
	}
	slog.Info("Dispatcher.HandleMessage: turn complete", "user_id", user.ID, "agent", agentType, "cached", cached, "latency_ms", result.LatencyMs)
	return result, nil
}

// extractMood runs the classifier and logs the observation. Every failure is
// swallowed: mood extraction must never block or fail a turn.
func (d *Dispatcher) extractMood(ctx context.Context, userID, message string) *mood.Observation {
	label, ok := d.moods.Classify(ctx, message)
	if !ok {
		return nil
	}
	obs := &mood.Observation{Mood: label, Intensity: mood.EstimateIntensity(message)}
	log := models.MoodLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mood:      obs.Mood,
		Intensity: obs.Intensity,
		CreatedAt: time.Now(),
	}
	if err := d.store.AddMoodLog(log); err != nil {
		slog.Error("Dispatcher.extractMood: failed to persist mood log", "error", err, "user_id", userID)
	}
	slog.Debug("Dispatcher.extractMood: observation recorded", "user_id", userID, "observation", obs.String())
	return obs
}

// generateReply serves from the session cache when possible, otherwise
// invokes the routed agent under the retry policy and caches the result.
// Only genuine upstream replies are cached: the fixed degraded fallbacks
// stay out so the next identical message tries upstream again.
func (d *Dispatcher) generateReply(ctx context.Context, session *Session, agentType models.AgentType, user *models.User, message, transcript string) (reply string, cached bool, err error) {
	if cachedReply, ok := session.cache.Get(agentType, message, transcript); ok {
		return cachedReply, true, nil
	}

	ag := session.Agent(agentType)
	reply, degraded, err := callWithRetry(ctx, d.sleep, func(ctx context.Context) (string, error) {
		return ag.Respond(ctx, agents.Request{
			UserID:   user.ID,
			Username: user.Username,
			Message:  message,
			Context:  transcript,
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("agent %s failed: %w", agentType, err)
	}
	if !degraded {
		session.cache.Put(agentType, message, transcript, reply)
	}
	return reply, false, nil
}

// handleCrisis runs the bypass path: record the alert, attempt delivery,
// answer with the fixed reply. Nothing on this path can fail the turn.
func (d *Dispatcher) handleCrisis(ctx context.Context, user *models.User, message string, start time.Time) (*models.TurnResult, error) {
	recipient, channel, resolvable := alert.ResolveRecipient(user)
	body := fmt.Sprintf("%s may need support right now. A message they sent raised a crisis signal:\n\n%q\n\nPlease check in with them as soon as you can.", user.Username, message)

	// The audit record is written before any delivery attempt so it exists
	// even when no recipient could be resolved or the send fails.
	record := models.Alert{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		AlertType: "crisis",
		Message:   body,
		Recipient: recipient,
		CreatedAt: time.Now(),
	}
	if err := d.store.AddAlert(record); err != nil {
		slog.Error("Dispatcher.handleCrisis: failed to persist alert record", "error", err, "user_id", user.ID)
	}

	switch {
	case !resolvable:
		slog.Error("Dispatcher.handleCrisis: no resolvable recipient for alert", "user_id", user.ID)
	case d.alerts == nil:
		slog.Error("Dispatcher.handleCrisis: no alert service configured", "user_id", user.ID, "recipient", recipient)
	default:
		if err := d.alerts.Send(ctx, channel, recipient, crisisAlertSubject, body); err != nil {
			slog.Error("Dispatcher.handleCrisis: alert delivery failed", "error", err, "user_id", user.ID, "recipient", recipient)
			if updateErr := d.store.UpdateAlertDelivery(record.ID, false, err.Error()); updateErr != nil {
				slog.Error("Dispatcher.handleCrisis: failed to record delivery failure", "error", updateErr, "alert_id", record.ID)
			}
		} else if updateErr := d.store.UpdateAlertDelivery(record.ID, true, ""); updateErr != nil {
			slog.Error("Dispatcher.handleCrisis: failed to record delivery success", "error", updateErr, "alert_id", record.ID)
		}
	}

	d.persistTurn(user.ID, models.AgentCrisis, message, CrisisReply, start)
	return &models.TurnResult{
		Agent:     models.AgentCrisis,
		Reply:     CrisisReply,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// persistTurn writes the completed exchange. Persistence is best effort: the
// user already has their reply, so a storage failure is logged, not surfaced.
func (d *Dispatcher) persistTurn(userID string, agentType models.AgentType, message, reply string, start time.Time) {
	turn := models.Turn{
		ID:        util.GenerateTurnID(),
		UserID:    userID,
		Agent:     agentType,
		UserMsg:   message,
		Reply:     reply,
		LatencyMs: time.Since(start).Milliseconds(),
		CreatedAt: time.Now(),
	}
	if err := d.store.AddTurn(turn); err != nil {
		slog.Error("Dispatcher.persistTurn: failed to persist turn", "error", err, "user_id", userID, "agent", agentType)
	}
}
