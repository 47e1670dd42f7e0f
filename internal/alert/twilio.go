package alert

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioOpts holds configuration options for the Twilio SMS notifier.
// This focuses solely on Twilio API requirements.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioOption defines a configuration option for the Twilio SMS notifier.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromNumber = from }
}

// TwilioNotifier delivers alert texts through the Twilio SMS API.
type TwilioNotifier struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioNotifier creates an SMS notifier. Unset options fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_FROM_NUMBER environment
// variables.
func NewTwilioNotifier(opts ...TwilioOption) (*TwilioNotifier, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &TwilioNotifier{
		client:     client,
		fromNumber: cfg.FromNumber,
	}, nil
}

// Notify sends one alert text. The subject is folded into the body since SMS
// has no subject line.
func (n *TwilioNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(n.fromNumber)
	params.SetBody(subject + "\n" + body)

	_, err := n.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioNotifier.Notify failed", "to", recipient, "error", err)
		return fmt.Errorf("failed to send SMS to %s: %w", recipient, err)
	}
	slog.Debug("TwilioNotifier.Notify: SMS sent", "to", recipient)
	return nil
}
