// Package store provides storage backends for Synermind.
//
// This file implements a SQLite-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/mattn/go-sqlite3"

	"github.com/synermind/synermind/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateUser(u models.User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, username, password_hash, email, emergency_contact, failed_logins, locked_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.Email, nilIfEmpty(u.EmergencyContact), u.FailedLogins, nullableTime(u.LockedUntil), u.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return models.ErrUsernameTaken
		}
		slog.Error("SQLiteStore CreateUser failed", "error", err, "username", u.Username)
		return fmt.Errorf("failed to insert user %s: %w", u.Username, err)
	}
	slog.Debug("SQLiteStore CreateUser succeeded", "user_id", u.ID)
	return nil
}

func (s *SQLiteStore) GetUserByID(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, email, emergency_contact, failed_logins, locked_until, created_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByUsername(username string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, email, emergency_contact, failed_logins, locked_until, created_at
		FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var contact sql.NullString
	var lockedUntil sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &contact, &u.FailedLogins, &lockedUntil, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore scanUser failed", "error", err)
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	u.EmergencyContact = stringOrEmpty(contact)
	u.LockedUntil = timeOrZero(lockedUntil)
	return &u, nil
}

func (s *SQLiteStore) UpdateUserLoginState(id string, failedLogins int, lockedUntil time.Time) error {
	res, err := s.db.Exec(`UPDATE users SET failed_logins = ?, locked_until = ? WHERE id = ?`,
		failedLogins, nullableTime(lockedUntil), id)
	if err != nil {
		slog.Error("SQLiteStore UpdateUserLoginState failed", "error", err, "user_id", id)
		return fmt.Errorf("failed to update login state for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (s *SQLiteStore) AddTurn(t models.Turn) error {
	_, err := s.db.Exec(`INSERT INTO turns (id, user_id, agent, user_msg, reply, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Agent), t.UserMsg, t.Reply, t.LatencyMs, t.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddTurn failed", "error", err, "user_id", t.UserID)
		return fmt.Errorf("failed to insert turn for %s: %w", t.UserID, err)
	}
	slog.Debug("SQLiteStore AddTurn succeeded", "turn_id", t.ID, "agent", t.Agent)
	return nil
}

func (s *SQLiteStore) ListRecentTurns(userID string, limit int) ([]models.Turn, error) {
	query := `SELECT id, user_id, agent, user_msg, reply, latency_ms, created_at FROM turns
		WHERE user_id = ? ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListRecentTurns query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Agent, &t.UserMsg, &t.Reply, &t.LatencyMs, &t.CreatedAt); err != nil {
			slog.Error("SQLiteStore ListRecentTurns scan failed", "error", err)
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

func (s *SQLiteStore) AddMoodLog(m models.MoodLog) error {
	_, err := s.db.Exec(`INSERT INTO mood_logs (id, user_id, mood, intensity, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, string(m.Mood), m.Intensity, nilIfEmpty(m.Note), m.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddMoodLog failed", "error", err, "user_id", m.UserID)
		return fmt.Errorf("failed to insert mood log for %s: %w", m.UserID, err)
	}
	slog.Debug("SQLiteStore AddMoodLog succeeded", "mood", m.Mood, "intensity", m.Intensity)
	return nil
}

func (s *SQLiteStore) ListMoodLogs(userID string, limit int) ([]models.MoodLog, error) {
	query := `SELECT id, user_id, mood, intensity, note, created_at FROM mood_logs
		WHERE user_id = ? ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListMoodLogs query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query mood logs: %w", err)
	}
	defer rows.Close()

	var logs []models.MoodLog
	for rows.Next() {
		var m models.MoodLog
		var note sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.Mood, &m.Intensity, &note, &m.CreatedAt); err != nil {
			slog.Error("SQLiteStore ListMoodLogs scan failed", "error", err)
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

func (s *SQLiteStore) AddAlert(a models.Alert) error {
	_, err := s.db.Exec(`INSERT INTO alerts (id, user_id, alert_type, message, recipient, delivered, delivery_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.AlertType, a.Message, nilIfEmpty(a.Recipient), a.Delivered, nilIfEmpty(a.DeliveryError), a.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddAlert failed", "error", err, "user_id", a.UserID)
		return fmt.Errorf("failed to insert alert for %s: %w", a.UserID, err)
	}
	slog.Debug("SQLiteStore AddAlert succeeded", "alert_id", a.ID, "alert_type", a.AlertType)
	return nil
}

func (s *SQLiteStore) UpdateAlertDelivery(id string, delivered bool, deliveryError string) error {
	res, err := s.db.Exec(`UPDATE alerts SET delivered = ?, delivery_error = ? WHERE id = ?`,
		delivered, nilIfEmpty(deliveryError), id)
	if err != nil {
		slog.Error("SQLiteStore UpdateAlertDelivery failed", "error", err, "alert_id", id)
		return fmt.Errorf("failed to update alert %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrAlertNotFound
	}
	return nil
}

func (s *SQLiteStore) ListAlerts(userID string) ([]models.Alert, error) {
	rows, err := s.db.Query(`SELECT id, user_id, alert_type, message, recipient, delivered, delivery_error, created_at
		FROM alerts WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListAlerts query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var recipient, deliveryError sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.AlertType, &a.Message, &recipient, &a.Delivered, &deliveryError, &a.CreatedAt); err != nil {
			slog.Error("SQLiteStore ListAlerts scan failed", "error", err)
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

func (s *SQLiteStore) AddFeedback(f models.Feedback) error {
	_, err := s.db.Exec(`INSERT INTO feedback (id, user_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.Rating, nilIfEmpty(f.Comment), f.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddFeedback failed", "error", err, "user_id", f.UserID)
		return fmt.Errorf("failed to insert feedback for %s: %w", f.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) AddLoginEvent(e models.LoginEvent) error {
	_, err := s.db.Exec(`INSERT INTO login_events (id, user_id, created_at) VALUES (?, ?, ?)`,
		e.ID, e.UserID, e.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddLoginEvent failed", "error", err, "user_id", e.UserID)
		return fmt.Errorf("failed to insert login event for %s: %w", e.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) GetUserMetrics(userID string) (*models.UserMetrics, error) {
	metrics := &models.UserMetrics{AgentUsage: make(map[models.AgentType]int)}

	rows, err := s.db.Query(`SELECT agent, COUNT(*) FROM turns WHERE user_id = ? GROUP BY agent`, userID)
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

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM mood_logs WHERE user_id = ?`, userID).Scan(&metrics.MoodsLogged); err != nil {
		return nil, fmt.Errorf("failed to count mood logs: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COALESCE(AVG(rating), 0) FROM feedback WHERE user_id = ?`, userID).Scan(&metrics.AvgFeedback); err != nil {
		return nil, fmt.Errorf("failed to average feedback: %w", err)
	}

	loginRows, err := s.db.Query(`SELECT created_at FROM login_events WHERE user_id = ?`, userID)
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

	slog.Debug("SQLiteStore GetUserMetrics succeeded", "user_id", userID, "total_turns", metrics.TotalTurns)
	return metrics, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nullableTime returns nil for zero times so the column stores NULL.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func reverseTurns(turns []models.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

func reverseMoodLogs(logs []models.MoodLog) {
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
}
