// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package mail delivers the verification and reset emails built by the auth
// package.
package mail

import (
	"context"
	"errors"
	"log/slog"
	"net/textproto"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"gopkg.in/gomail.v2"

	"github.com/accountd/accountd/internal/auth"
)

// Drivers.
const (
	DriverSMTP = "smtp"
	DriverLog  = "log"
)

// Config selects and configures the mail driver.
type Config struct {
	Driver       string        `koanf:"driver" json:"driver" jsonschema:"enum=smtp,enum=log"`
	Host         string        `koanf:"host" json:"host,omitempty"`
	Port         int           `koanf:"port" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535"`
	Username     string        `koanf:"username" json:"username,omitempty"`
	Password     string        `koanf:"password" json:"password,omitempty"`
	From         string        `koanf:"from" json:"from,omitempty"`
	Retries      uint64        `koanf:"retries" json:"retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff" json:"retry_backoff" jsonschema:"oneof_type=string;integer"`
}

// DefaultConfig logs mail instead of sending it.
func DefaultConfig() Config {
	return Config{
		Driver:       DriverLog,
		Port:         587,
		Retries:      3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// Validate checks driver specific settings.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverLog:
		return nil
	case DriverSMTP:
		if c.Host == "" {
			return oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
		}
		if c.From == "" {
			return oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp from address is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return oops.Code("MAIL_CONFIG_INVALID").With("port", c.Port).Errorf("smtp port out of range")
		}
		return nil
	default:
		return oops.Code("MAIL_CONFIG_INVALID").
			With("driver", c.Driver).
			Errorf("unknown mail driver %q", c.Driver)
	}
}

// New returns the Mailer selected by cfg.Driver.
func New(cfg Config, logger *slog.Logger) (auth.Mailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Driver == DriverLog {
		return NewLogSender(logger), nil
	}
	return NewSMTPSender(cfg, logger), nil
}

// dialer is satisfied by *gomail.Dialer.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers mail over SMTP, retrying transient failures with
// exponential backoff. 5xx replies are permanent and not retried.
type SMTPSender struct {
	dialer  dialer
	from    string
	retries uint64
	backoff time.Duration
	logger  *slog.Logger
}

// NewSMTPSender creates an SMTPSender for cfg.
func NewSMTPSender(cfg Config, logger *slog.Logger) *SMTPSender {
	return newSMTPSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg, logger)
}

func newSMTPSender(d dialer, cfg Config, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultConfig().RetryBackoff
	}
	return &SMTPSender{
		dialer:  d,
		from:    cfg.From,
		retries: cfg.Retries,
		backoff: backoff,
		logger:  logger,
	}
}

// Send implements auth.Mailer.
func (s *SMTPSender) Send(ctx context.Context, msg auth.Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	attempt := 0
	err := retry.Do(ctx, retry.WithMaxRetries(s.retries, retry.NewExponential(s.backoff)), func(_ context.Context) error {
		attempt++
		sendErr := s.dialer.DialAndSend(m)
		if sendErr == nil {
			return nil
		}
		if isPermanent(sendErr) {
			return sendErr
		}
		s.logger.WarnContext(ctx, "smtp delivery attempt failed",
			"operation", "send mail",
			"attempt", attempt,
			"error", sendErr)
		return retry.RetryableError(sendErr)
	})
	if err != nil {
		return oops.Code(auth.CodeDeliveryFailed).
			With("subject", msg.Subject).
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}

func isPermanent(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr) && protoErr.Code >= 500
}

// LogSender writes messages to the log instead of sending them. It is meant
// for development, where the links in the body are needed by hand.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements auth.Mailer.
func (s *LogSender) Send(ctx context.Context, msg auth.Message) error {
	s.logger.InfoContext(ctx, "mail not sent (log driver)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}

var (
	_ auth.Mailer = (*SMTPSender)(nil)
	_ auth.Mailer = (*LogSender)(nil)
)
