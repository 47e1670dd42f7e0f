package alert

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/synermind/synermind/internal/models"
)

func TestResolveRecipient(t *testing.T) {
	tests := []struct {
		name          string
		user          models.User
		wantRecipient string
		wantChannel   Channel
		wantOK        bool
	}{
		{
			name:          "emergency contact email",
			user:          models.User{Email: "me@example.com", EmergencyContact: "sister@example.com"},
			wantRecipient: "sister@example.com",
			wantChannel:   ChannelEmail,
			wantOK:        true,
		},
		{
			name:          "emergency contact phone",
			user:          models.User{Email: "me@example.com", EmergencyContact: "+1 (416) 555-0100"},
			wantRecipient: "+14165550100",
			wantChannel:   ChannelSMS,
			wantOK:        true,
		},
		{
			name:          "unusable contact falls back to user email",
			user:          models.User{Email: "me@example.com", EmergencyContact: "my neighbour Bob"},
			wantRecipient: "me@example.com",
			wantChannel:   ChannelEmail,
			wantOK:        true,
		},
		{
			name:          "empty contact falls back to user email",
			user:          models.User{Email: "me@example.com"},
			wantRecipient: "me@example.com",
			wantChannel:   ChannelEmail,
			wantOK:        true,
		},
		{
			name:   "nothing usable",
			user:   models.User{Email: "not-an-email", EmergencyContact: "???"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipient, channel, ok := ResolveRecipient(&tt.user)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if recipient != tt.wantRecipient || channel != tt.wantChannel {
				t.Errorf("got (%s, %s), want (%s, %s)", recipient, channel, tt.wantRecipient, tt.wantChannel)
			}
		})
	}
}

func TestServiceSendRouting(t *testing.T) {
	email := NewMockNotifier()
	sms := NewMockNotifier()
	svc := NewService(email, sms)

	if err := svc.Send(context.Background(), ChannelEmail, "a@example.com", "subject", "body"); err != nil {
		t.Fatalf("email send failed: %v", err)
	}
	if err := svc.Send(context.Background(), ChannelSMS, "+14165550100", "subject", "body"); err != nil {
		t.Fatalf("sms send failed: %v", err)
	}
	if len(email.Sent) != 1 || len(sms.Sent) != 1 {
		t.Errorf("expected one delivery per channel, got email=%d sms=%d", len(email.Sent), len(sms.Sent))
	}
}

func TestServiceSendUnconfiguredChannel(t *testing.T) {
	svc := NewService(NewMockNotifier(), nil)
	err := svc.Send(context.Background(), ChannelSMS, "+14165550100", "subject", "body")
	if err == nil {
		t.Error("expected error for unconfigured channel")
	}
}

func TestServiceSendPropagatesFailure(t *testing.T) {
	email := &MockNotifier{Err: errors.New("connection refused")}
	svc := NewService(email, nil)
	err := svc.Send(context.Background(), ChannelEmail, "a@example.com", "subject", "body")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected delivery error, got %v", err)
	}
}

func TestSMTPNotifierMessageFormat(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	n := &SMTPNotifier{
		addr: "mail.example.com:587",
		from: "alerts@example.com",
		sendMail: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	if err := n.Notify(context.Background(), "sister@example.com", "Wellness alert", "please check in"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if gotAddr != "mail.example.com:587" || gotFrom != "alerts@example.com" {
		t.Errorf("unexpected connection params: %s %s", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "sister@example.com" {
		t.Errorf("unexpected recipients: %v", gotTo)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: Wellness alert\r\n") || !strings.Contains(msg, "please check in") {
		t.Errorf("malformed message: %q", msg)
	}
}

func TestNewSMTPNotifierValidation(t *testing.T) {
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("SMTP_FROM", "")
	if _, err := NewSMTPNotifier(); err == nil {
		t.Error("expected error when host and port missing")
	}
	if _, err := NewSMTPNotifier(WithSMTPHost("mail.example.com"), WithSMTPPort("587")); err == nil {
		t.Error("expected error when from address missing")
	}
}

func TestNewTwilioNotifierValidation(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewTwilioNotifier(); err == nil {
		t.Error("expected error when credentials missing")
	}
	if _, err := NewTwilioNotifier(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error when from number missing")
	}
}
