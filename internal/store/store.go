// Package store provides storage backends for Synermind.
//
// It defines the Store interface over users, conversation turns, mood logs,
// alerts, feedback, and login events, with SQLite and PostgreSQL backends for
// production and an in-memory backend for tests.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/synermind/synermind/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DSNType identifies which database backend a connection string targets.
type DSNType string

const (
	// DSNTypePostgres indicates a PostgreSQL connection string.
	DSNTypePostgres DSNType = "postgres"
	// DSNTypeSQLite indicates a SQLite file path.
	DSNTypeSQLite DSNType = "sqlite"
)

// DetectDSNType determines the backend from the connection string format.
// PostgreSQL DSNs use URL or key=value form; everything else is treated as a
// SQLite file path.
func DetectDSNType(dsn string) DSNType {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}

// Store defines the persistence operations used across Synermind modules.
type Store interface {
	// Users
	CreateUser(u models.User) error
	GetUserByID(id string) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	UpdateUserLoginState(id string, failedLogins int, lockedUntil time.Time) error

	// Conversation turns
	AddTurn(t models.Turn) error
	ListRecentTurns(userID string, limit int) ([]models.Turn, error)

	// Mood logs
	AddMoodLog(m models.MoodLog) error
	ListMoodLogs(userID string, limit int) ([]models.MoodLog, error)

	// Alerts
	AddAlert(a models.Alert) error
	UpdateAlertDelivery(id string, delivered bool, deliveryError string) error
	ListAlerts(userID string) ([]models.Alert, error)

	// Feedback and engagement
	AddFeedback(f models.Feedback) error
	AddLoginEvent(e models.LoginEvent) error
	GetUserMetrics(userID string) (*models.UserMetrics, error)

	Close() error
}

// InMemoryStore is a mutex-guarded in-memory implementation of Store, used
// in tests and for ephemeral deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User // keyed by user ID
	turns    []models.Turn
	moods    []models.MoodLog
	alerts   []models.Alert
	feedback []models.Feedback
	logins   []models.LoginEvent
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[string]models.User),
	}
}

func (s *InMemoryStore) CreateUser(u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return models.ErrUsernameTaken
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *InMemoryStore) GetUserByID(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &u, nil
}

func (s *InMemoryStore) GetUserByUsername(username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			copied := u
			return &copied, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *InMemoryStore) UpdateUserLoginState(id string, failedLogins int, lockedUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.FailedLogins = failedLogins
	u.LockedUntil = lockedUntil
	s.users[id] = u
	return nil
}

func (s *InMemoryStore) AddTurn(t models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	return nil
}

// ListRecentTurns returns the most recent turns for the user in chronological
// order (oldest first). A limit of 0 or less returns all turns.
func (s *InMemoryStore) ListRecentTurns(userID string, limit int) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var turns []models.Turn
	for _, t := range s.turns {
		if t.UserID == userID {
			turns = append(turns, t)
		}
	}
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].CreatedAt.Before(turns[j].CreatedAt) })
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (s *InMemoryStore) AddMoodLog(m models.MoodLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moods = append(s.moods, m)
	return nil
}

// ListMoodLogs returns the most recent mood logs for the user in
// chronological order. A limit of 0 or less returns all logs.
func (s *InMemoryStore) ListMoodLogs(userID string, limit int) ([]models.MoodLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var logs []models.MoodLog
	for _, m := range s.moods {
		if m.UserID == userID {
			logs = append(logs, m)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].CreatedAt.Before(logs[j].CreatedAt) })
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	return logs, nil
}

func (s *InMemoryStore) AddAlert(a models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *InMemoryStore) UpdateAlertDelivery(id string, delivered bool, deliveryError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Delivered = delivered
			s.alerts[i].DeliveryError = deliveryError
			return nil
		}
	}
	return models.ErrAlertNotFound
}

func (s *InMemoryStore) ListAlerts(userID string) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var alerts []models.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

func (s *InMemoryStore) AddFeedback(f models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, f)
	return nil
}

func (s *InMemoryStore) AddLoginEvent(e models.LoginEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins = append(s.logins, e)
	return nil
}

func (s *InMemoryStore) GetUserMetrics(userID string) (*models.UserMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := &models.UserMetrics{AgentUsage: make(map[models.AgentType]int)}
	for _, t := range s.turns {
		if t.UserID == userID {
			metrics.TotalTurns++
			metrics.AgentUsage[t.Agent]++
		}
	}
	for _, m := range s.moods {
		if m.UserID == userID {
			metrics.MoodsLogged++
		}
	}

	var sum, count int
	for _, f := range s.feedback {
		if f.UserID == userID {
			sum += f.Rating
			count++
		}
	}
	if count > 0 {
		metrics.AvgFeedback = float64(sum) / float64(count)
	}

	var loginDays []time.Time
	for _, e := range s.logins {
		if e.UserID == userID {
			loginDays = append(loginDays, e.CreatedAt)
		}
	}
	metrics.DailyLogins, metrics.LoginStreakDays = computeLoginStats(loginDays, time.Now())

	return metrics, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
