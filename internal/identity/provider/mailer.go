// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package provider

import (
	"fmt"
	"log/slog"
	"net/smtp"
)

// Mailer dispatches lifecycle emails (verification, password reset).
//
// # Why an interface?
//
// Email dispatch is the one provider side effect the tests must never
// perform for real. The service depends on this interface; production wires
// [SMTPMailer], development and tests wire [LogMailer] or a recording fake.
type Mailer interface {
	Send(to, subject, body string) error
}

// # SMTP Implementation

// SMTPMailer sends mail through a plain SMTP relay.
//
// No mail framework is involved: lifecycle emails are short single-part
// plain-text messages, which net/smtp covers entirely.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer constructs an SMTPMailer for the given relay.
//
// # Parameters
//   - host, port: SMTP relay address.
//   - from: Envelope and header sender.
//   - user, pass: PLAIN auth credentials; empty user disables auth.
func NewSMTPMailer(host, port, from, user, pass string) *SMTPMailer {
	mailer := &SMTPMailer{
		addr: host + ":" + port,
		from: from,
	}
	if user != "" {
		mailer.auth = smtp.PlainAuth("", user, pass, host)
	}
	return mailer
}

// Send dispatches a single plain-text message.
func (mailer *SMTPMailer) Send(to, subject, body string) error {
	message := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		mailer.from, to, subject, body,
	)

	if err := smtp.SendMail(mailer.addr, mailer.auth, mailer.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("smtp_send_failed: %w", err)
	}

	return nil
}

// # Development Implementation

// LogMailer writes would-be emails to the structured log instead of sending
// them. Used when no SMTP relay is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message instead of dispatching it.
func (mailer *LogMailer) Send(to, subject, body string) error {
	mailer.logger.Info("mail_logged_instead_of_sent",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}
