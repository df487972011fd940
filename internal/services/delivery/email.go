// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package delivery

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the connection settings for the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	StartTLS bool
}

// SMTPSender delivers access codes by email through go-mail.
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender creates an email sender for the given SMTP settings.
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config}
}

func (s *SMTPSender) Method() string { return "email" }

func (s *SMTPSender) Send(ctx context.Context, destination string, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.config.From); err != nil {
		return fmt.Errorf("setting from address: %w", err)
	}
	if err := m.To(destination); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	client, err := s.client()
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}

func (s *SMTPSender) client() (*mail.Client, error) {
	options := []mail.Option{
		mail.WithPort(s.config.Port),
	}

	if s.config.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
		)
	}

	if s.config.StartTLS {
		options = append(options, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		options = append(options, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	return mail.NewClient(s.config.Host, options...)
}
