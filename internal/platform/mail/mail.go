// Package mail delivers notification email over SMTP.
package mail

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Config holds SMTP transport settings.
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	DefaultDomain string
}

const (
	defaultSMTPPort = 587
	defaultDomain   = "example.com"
)

// Sender delivers messages to developer recipients. A recipient without an
// address part is qualified with the configured default domain. When no SMTP
// credentials are configured the message is logged instead of sent so local
// setups run without a mail server.
type Sender struct {
	cfg  Config
	logf func(format string, args ...any)
}

// New constructs an SMTP sender.
func New(cfg Config, logf func(format string, args ...any)) *Sender {
	if cfg.Port <= 0 {
		cfg.Port = defaultSMTPPort
	}
	if strings.TrimSpace(cfg.DefaultDomain) == "" {
		cfg.DefaultDomain = defaultDomain
	}
	if strings.TrimSpace(cfg.From) == "" {
		cfg.From = "releaseline@" + cfg.DefaultDomain
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Sender{cfg: cfg, logf: logf}
}

// Send delivers one message to the recipient.
func (s *Sender) Send(ctx context.Context, recipient, subject, body string) error {
	if s == nil {
		return fmt.Errorf("mail sender is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}

	address := recipient
	if !strings.Contains(address, "@") {
		address = address + "@" + s.cfg.DefaultDomain
	}

	if !s.transportConfigured() {
		s.logf("mail transport disabled, would send to %s: %s", address, subject)
		return nil
	}

	message := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + address,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{address}, []byte(message)); err != nil {
		return fmt.Errorf("send mail to %s: %w", address, err)
	}
	return nil
}

func (s *Sender) transportConfigured() bool {
	return strings.TrimSpace(s.cfg.Host) != "" &&
		strings.TrimSpace(s.cfg.Username) != "" &&
		strings.TrimSpace(s.cfg.Password) != ""
}
