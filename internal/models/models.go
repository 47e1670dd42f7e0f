// Package models defines the core data structures for Synermind.
//
// It includes the user, conversation turn, mood log, alert, and feedback
// types shared across modules, plus the API response envelope.
package models

import (
	"errors"
	"time"
)

// AgentType identifies which specialist agent handled a conversation turn.
type AgentType string

const (
	// AgentMood is the default mood companion for everyday check-ins.
	AgentMood AgentType = "mood"
	// AgentTherapy is the CBT-style guide for deeper emotional work.
	AgentTherapy AgentType = "therapy"
	// AgentRoutine is the wellness coach for habits and daily structure.
	AgentRoutine AgentType = "routine"
	// AgentCrisis is the safety-focused responder for distress signals.
	AgentCrisis AgentType = "crisis"
)

// IsValidAgentType checks if the given agent type is supported.
func IsValidAgentType(a AgentType) bool {
	switch a {
	case AgentMood, AgentTherapy, AgentRoutine, AgentCrisis:
		return true
	default:
		return false
	}
}

// Mood is one of the closed set of mood labels the classifier may emit.
type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodSad      Mood = "sad"
	MoodAnxious  Mood = "anxious"
	MoodAngry    Mood = "angry"
	MoodContent  Mood = "content"
	MoodStressed Mood = "stressed"
	MoodNeutral  Mood = "neutral"
)

// IsValidMood checks if the given mood label is part of the closed set.
func IsValidMood(m Mood) bool {
	switch m {
	case MoodHappy, MoodSad, MoodAnxious, MoodAngry, MoodContent, MoodStressed, MoodNeutral:
		return true
	default:
		return false
	}
}

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for a chat message
	MaxMessageLength = 4096
	// MinIntensity is the lowest mood intensity on the 1-10 scale
	MinIntensity = 1
	// MaxIntensity is the highest mood intensity on the 1-10 scale
	MaxIntensity = 10
	// MinFeedbackRating is the lowest feedback rating
	MinFeedbackRating = 1
	// MaxFeedbackRating is the highest feedback rating
	MaxFeedbackRating = 5
	// MaxUsernameLength defines the maximum allowed username length
	MaxUsernameLength = 64
	// MaxLoginFailures is the number of failed signins before lockout
	MaxLoginFailures = 5
	// LoginLockoutDuration is how long an account stays locked after
	// too many failed signins.
	LoginLockoutDuration = 15 * time.Minute
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage       = errors.New("message cannot be empty")
	ErrMessageTooLong     = errors.New("message exceeds maximum length")
	ErrInvalidAgentType   = errors.New("invalid agent type")
	ErrInvalidMood        = errors.New("invalid mood label")
	ErrInvalidIntensity   = errors.New("intensity must be between 1 and 10")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrEmptyUsername      = errors.New("username cannot be empty")
	ErrUsernameTooLong    = errors.New("username exceeds maximum length")
	ErrEmptyPassword      = errors.New("password cannot be empty")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAlertNotFound      = errors.New("alert not found")
)

// User is a registered account. EmergencyContact is free-form and may hold
// an email address or a phone number; the alert resolver decides the channel.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	PasswordHash     string    `json:"-"`
	Email            string    `json:"email"`
	EmergencyContact string    `json:"emergency_contact,omitempty"`
	FailedLogins     int       `json:"-"`
	LockedUntil      time.Time `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// Turn is one completed conversational exchange. Turns are immutable once
// persisted and form the durable transcript used to build agent context.
type Turn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Agent     AgentType `json:"agent"`
	UserMsg   string    `json:"user_msg"`
	Reply     string    `json:"reply"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// MoodLog is a single mood observation, either extracted from conversation
// or logged manually by the user.
type MoodLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Mood      Mood      `json:"mood"`
	Intensity int       `json:"intensity"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the mood label and intensity range.
func (m *MoodLog) Validate() error {
	if !IsValidMood(m.Mood) {
		return ErrInvalidMood
	}
	if m.Intensity < MinIntensity || m.Intensity > MaxIntensity {
		return ErrInvalidIntensity
	}
	return nil
}

// Alert is an audit record of a crisis notification attempt. It is persisted
// before delivery is tried, so the record exists even when no recipient could
// be resolved or the send fails.
type Alert struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AlertType     string    `json:"alert_type"`
	Message       string    `json:"message"`
	Recipient     string    `json:"recipient,omitempty"`
	Delivered     bool      `json:"delivered"`
	DeliveryError string    `json:"delivery_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Feedback is a user rating of the service.
type Feedback struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the rating range.
func (f *Feedback) Validate() error {
	if f.Rating < MinFeedbackRating || f.Rating > MaxFeedbackRating {
		return ErrInvalidRating
	}
	return nil
}

// LoginEvent records a successful signin for engagement metrics.
type LoginEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMetrics aggregates engagement numbers for one user.
type UserMetrics struct {
	TotalTurns      int               `json:"total_turns"`
	AgentUsage      map[AgentType]int `json:"agent_usage"`
	MoodsLogged     int               `json:"moods_logged"`
	DailyLogins     int               `json:"daily_logins"`
	LoginStreakDays int               `json:"login_streak_days"`
	AvgFeedback     float64           `json:"avg_feedback"`
}

// TurnResult is what the dispatcher returns to the API for one chat message.
type TurnResult struct {
	Agent     AgentType `json:"agent"`
	Reply     string    `json:"reply"`
	Mood      Mood      `json:"mood,omitempty"`
	Intensity int       `json:"intensity,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
}
