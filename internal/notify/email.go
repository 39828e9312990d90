package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog/log"
)

// Sender delivers a one-time code to a user's registered address.
type Sender interface {
	Send(ctx context.Context, address, code, displayName string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSender returns an SMTP-backed sender, or a log-only sender when no
// SMTP host is configured (local development).
func NewSender(cfg SMTPConfig) Sender {
	if cfg.Host == "" {
		return &LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

type SMTPSender struct {
	cfg SMTPConfig
}

func (s *SMTPSender) Send(ctx context.Context, address, code, displayName string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your Quill verification code\r\n\r\n"+
			"Hi %s,\r\n\r\nYour device pairing code is: %s\r\n\r\n"+
			"The code expires in 10 minutes. If you did not request it, ignore this email.\r\n",
		s.cfg.From, address, displayName, code,
	)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{address}, []byte(msg)); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}

	log.Debug().Str("to", address).Msg("otp email sent")
	return nil
}

// LogSender writes the code to the log instead of sending email.
type LogSender struct{}

func (s *LogSender) Send(ctx context.Context, address, code, displayName string) error {
	log.Info().
		Str("to", address).
		Str("code", code).
		Msg("[DEV] otp email not sent (SMTP not configured)")
	return nil
}
