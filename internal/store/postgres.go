// Package store provides storage backends for Synermind.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/lib/pq"

	"github.com/synermind/synermind/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateUser(u models.User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, username, password_hash, email, emergency_contact, failed_logins, locked_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Username, u.PasswordHash, u.Email, nilIfEmpty(u.EmergencyContact), u.FailedLogins, nullableTime(u.LockedUntil), u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return models.ErrUsernameTaken
		}
		slog.Error("PostgresStore CreateUser failed", "error", err, "username", u.Username)
		return fmt.Errorf("failed to insert user %s: %w", u.Username, err)
	}
	slog.Debug("PostgresStore CreateUser succeeded", "user_id", u.ID)
	return nil
}

func (s *PostgresStore) GetUserByID(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, email, emergency_contact, failed_logins, locked_until, created_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByUsername(username string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, email, emergency_contact, failed_logins, locked_until, created_at
		FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *PostgresStore) UpdateUserLoginState(id string, failedLogins int, lockedUntil time.Time) error {
	res, err := s.db.Exec(`UPDATE users SET failed_logins = $1, locked_until = $2 WHERE id = $3`,
		failedLogins, nullableTime(lockedUntil), id)
	if err != nil {
		slog.Error("PostgresStore UpdateUserLoginState failed", "error", err, "user_id", id)
		return fmt.Errorf("failed to update login state for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) AddTurn(t models.Turn) error {
	_, err := s.db.Exec(`INSERT INTO turns (id, user_id, agent, user_msg, reply, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, string(t.Agent), t.UserMsg, t.Reply, t.LatencyMs, t.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddTurn failed", "error", err, "user_id", t.UserID)
		return fmt.Errorf("failed to insert turn for %s: %w", t.UserID, err)
	}
	return nil
}

func (s *PostgresStore) ListRecentTurns(userID string, limit int) ([]models.Turn, error) {
	query := `SELECT id, user_id, agent, user_msg, reply, latency_ms, created_at FROM turns
		WHERE user_id = $1 ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListRecentTurns query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Agent, &t.UserMsg, &t.Reply, &t.LatencyMs, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}
	reverseTurns(turns)
	return turns, nil
}

func (s *PostgresStore) AddMoodLog(m models.MoodLog) error {
	_, err := s.db.Exec(`INSERT INTO mood_logs (id, user_id, mood, intensity, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.UserID, string(m.Mood), m.Intensity, nilIfEmpty(m.Note), m.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddMoodLog failed", "error", err, "user_id", m.UserID)
		return fmt.Errorf("failed to insert mood log for %s: %w", m.UserID, err)
	}
	return nil
}

func (s *PostgresStore) ListMoodLogs(userID string, limit int) ([]models.MoodLog, error) {
	query := `SELECT id, user_id, mood, intensity, note, created_at FROM mood_logs
		WHERE user_id = $1 ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListMoodLogs query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query mood logs: %w", err)
	}
	defer rows.Close()

	var logs []models.MoodLog
	for rows.Next() {
		var m models.MoodLog
		var note sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.Mood, &m.Intensity, &note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mood log row: %w", err)
		}
		m.Note = stringOrEmpty(note)
		logs = append(logs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mood log rows: %w", err)
	}
	reverseMoodLogs(logs)
	return logs, nil
}

func (s *PostgresStore) AddAlert(a models.Alert) error {
	_, err := s.db.Exec(`INSERT INTO alerts (id, user_id, alert_type, message, recipient, delivered, delivery_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UserID, a.AlertType, a.Message, nilIfEmpty(a.Recipient), a.Delivered, nilIfEmpty(a.DeliveryError), a.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddAlert failed", "error", err, "user_id", a.UserID)
		return fmt.Errorf("failed to insert alert for %s: %w", a.UserID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateAlertDelivery(id string, delivered bool, deliveryError string) error {
	res, err := s.db.Exec(`UPDATE alerts SET delivered = $1, delivery_error = $2 WHERE id = $3`,
		delivered, nilIfEmpty(deliveryError), id)
	if err != nil {
		slog.Error("PostgresStore UpdateAlertDelivery failed", "error", err, "alert_id", id)
		return fmt.Errorf("failed to update alert %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrAlertNotFound
	}
	return nil
}

func (s *PostgresStore) ListAlerts(userID string) ([]models.Alert, error) {
	rows, err := s.db.Query(`SELECT id, user_id, alert_type, message, recipient, delivered, delivery_error, created_at
		FROM alerts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		slog.Error("PostgresStore ListAlerts query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var recipient, deliveryError sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.AlertType, &a.Message, &recipient, &a.Delivered, &deliveryError, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		a.Recipient = stringOrEmpty(recipient)
		a.DeliveryError = stringOrEmpty(deliveryError)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rows: %w", err)
	}
	return alerts, nil
}

func (s *PostgresStore) AddFeedback(f models.Feedback) error {
	_, err := s.db.Exec(`INSERT INTO feedback (id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		f.ID, f.UserID, f.Rating, nilIfEmpty(f.Comment), f.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddFeedback failed", "error", err, "user_id", f.UserID)
		return fmt.Errorf("failed to insert feedback for %s: %w", f.UserID, err)
	}
	return nil
}

func (s *PostgresStore) AddLoginEvent(e models.LoginEvent) error {
	_, err := s.db.Exec(`INSERT INTO login_events (id, user_id, created_at) VALUES ($1, $2, $3)`,
		e.ID, e.UserID, e.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddLoginEvent failed", "error", err, "user_id", e.UserID)
		return fmt.Errorf("failed to insert login event for %s: %w", e.UserID, err)
	}
	return nil
}

func (s *PostgresStore) GetUserMetrics(userID string) (*models.UserMetrics, error) {
	metrics := &models.UserMetrics{AgentUsage: make(map[models.AgentType]int)}

	rows, err := s.db.Query(`SELECT agent, COUNT(*) FROM turns WHERE user_id = $1 GROUP BY agent`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent usage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var agent models.AgentType
		var count int
		if err := rows.Scan(&agent, &count); err != nil {
			return nil, fmt.Errorf("failed to scan agent usage row: %w", err)
		}
		metrics.AgentUsage[agent] = count
		metrics.TotalTurns += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate agent usage rows: %w", err)
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM mood_logs WHERE user_id = $1`, userID).Scan(&metrics.MoodsLogged); err != nil {
		return nil, fmt.Errorf("failed to count mood logs: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COALESCE(AVG(rating), 0) FROM feedback WHERE user_id = $1`, userID).Scan(&metrics.AvgFeedback); err != nil {
		return nil, fmt.Errorf("failed to average feedback: %w", err)
	}

	loginRows, err := s.db.Query(`SELECT created_at FROM login_events WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query login events: %w", err)
	}
	defer loginRows.Close()
	var logins []time.Time
	for loginRows.Next() {
		var t time.Time
		if err := loginRows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan login event row: %w", err)
		}
		logins = append(logins, t)
	}
	if err := loginRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate login event rows: %w", err)
	}
	metrics.DailyLogins, metrics.LoginStreakDays = computeLoginStats(logins, time.Now())

	return metrics, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
