package alert

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"os"
)

// SMTPOpts holds configuration options for the SMTP notifier.
type SMTPOpts struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPOption defines a configuration option for the SMTP notifier.
type SMTPOption func(*SMTPOpts)

// WithSMTPHost sets the SMTP server host.
func WithSMTPHost(host string) SMTPOption {
	return func(o *SMTPOpts) { o.Host = host }
}

// WithSMTPPort sets the SMTP server port.
func WithSMTPPort(port string) SMTPOption {
	return func(o *SMTPOpts) { o.Port = port }
}

// WithSMTPCredentials sets the SMTP username and password.
func WithSMTPCredentials(username, password string) SMTPOption {
	return func(o *SMTPOpts) {
		o.Username = username
		o.Password = password
	}
}

// WithSMTPFrom sets the sender address.
func WithSMTPFrom(from string) SMTPOption {
	return func(o *SMTPOpts) { o.From = from }
}

// sendMailFunc matches smtp.SendMail, injectable for tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier delivers alert emails through a plain SMTP relay.
type SMTPNotifier struct {
	addr     string
	auth     smtp.Auth
	from     string
	sendMail sendMailFunc
}

// NewSMTPNotifier creates an email notifier. Unset options fall back to the
// SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, and SMTP_FROM
// environment variables.
func NewSMTPNotifier(opts ...SMTPOption) (*SMTPNotifier, error) {
	var cfg SMTPOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Host == "" {
		cfg.Host = os.Getenv("SMTP_HOST")
	}
	if cfg.Port == "" {
		cfg.Port = os.Getenv("SMTP_PORT")
	}
	if cfg.Username == "" {
		cfg.Username = os.Getenv("SMTP_USERNAME")
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("SMTP_PASSWORD")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("SMTP_FROM")
	}
	slog.Debug("SMTP notifier config loaded",
		"host_set", cfg.Host != "",
		"port_set", cfg.Port != "",
		"from_set", cfg.From != "")

	if cfg.Host == "" || cfg.Port == "" {
		return nil, fmt.Errorf("SMTP host and port must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address must be provided")
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{
		addr:     cfg.Host + ":" + cfg.Port,
		auth:     auth,
		from:     cfg.From,
		sendMail: smtp.SendMail,
	}, nil
}

// Notify sends one alert email.
func (n *SMTPNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", n.from, recipient, subject, body)
	if err := n.sendMail(n.addr, n.auth, n.from, []string{recipient}, []byte(msg)); err != nil {
		slog.Error("SMTPNotifier.Notify failed", "to", recipient, "error", err)
		return fmt.Errorf("failed to send email to %s: %w", recipient, err)
	}
	slog.Debug("SMTPNotifier.Notify: email sent", "to", recipient)
	return nil
}
