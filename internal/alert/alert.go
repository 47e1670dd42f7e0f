// Package alert resolves and delivers crisis notifications to a user's
// trusted contact.
//
// Delivery is always best effort: the caller persists an audit record first
// and a failed send must never surface to the person in distress.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/synermind/synermind/internal/models"
)

// Channel identifies how a notification is delivered.
type Channel string

const (
	// ChannelEmail delivers via SMTP.
	ChannelEmail Channel = "email"
	// ChannelSMS delivers via Twilio SMS.
	ChannelSMS Channel = "sms"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// looksLikeEmail reports whether the contact string is a plausible address.
func looksLikeEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// looksLikePhone reports whether the contact string is a plausible phone
// number after stripping common formatting characters.
func looksLikePhone(s string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(s))
	return phonePattern.MatchString(cleaned)
}

// normalizePhone strips formatting so Twilio receives a dialable number.
func normalizePhone(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(s))
}

// ResolveRecipient picks the notification target for a user. The emergency
// contact wins when it is usable as an email or phone number; otherwise the
// user's own account email is the fallback. ok is false when nothing usable
// exists, in which case the caller still records the alert.
func ResolveRecipient(u *models.User) (recipient string, channel Channel, ok bool) {
	contact := strings.TrimSpace(u.EmergencyContact)
	switch {
	case contact != "" && looksLikeEmail(contact):
		return contact, ChannelEmail, true
	case contact != "" && looksLikePhone(contact):
		return normalizePhone(contact), ChannelSMS, true
	case looksLikeEmail(u.Email):
		return strings.TrimSpace(u.Email), ChannelEmail, true
	default:
		return "", "", false
	}
}

// Notifier delivers one notification over a single channel.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// Service routes notifications to the notifier for their channel. A nil
// notifier means that channel is not configured in this deployment.
type Service struct {
	email Notifier
	sms   Notifier
}

// NewService creates an alert service with the given channel notifiers.
// Either may be nil.
func NewService(email, sms Notifier) *Service {
	return &Service{email: email, sms: sms}
}

// Send delivers a notification over the given channel.
func (s *Service) Send(ctx context.Context, channel Channel, recipient, subject, body string) error {
	var n Notifier
	switch channel {
	case ChannelEmail:
		n = s.email
	case ChannelSMS:
		n = s.sms
	default:
		return fmt.Errorf("unknown alert channel %q", channel)
	}
	if n == nil {
		slog.Warn("Alert.Send: channel not configured", "channel", channel)
		return fmt.Errorf("no notifier configured for channel %s", channel)
	}
	if err := n.Notify(ctx, recipient, subject, body); err != nil {
		slog.Error("Alert.Send: delivery failed", "channel", channel, "recipient", recipient, "error", err)
		return err
	}
	slog.Info("Alert.Send: notification delivered", "channel", channel, "recipient", recipient)
	return nil
}

// MockNotifier records notifications for tests.
type MockNotifier struct {
	Sent []SentNotification
	Err  error
}

// SentNotification is one recorded delivery.
type SentNotification struct {
	Recipient string
	Subject   string
	Body      string
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentNotification{Recipient: recipient, Subject: subject, Body: body})
	return nil
}
