// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"fmt"
	"os"
	"strconv"

	gomail "gopkg.in/gomail.v2"
)

// Operator addresses for claim notifications.
const (
	NotificationSender   = "noreply@yuumi-shop.com"
	NotificationOperator = "contact@yuumi-shop.com"
)

// Mailer sends notification mail. The claim workflow surfaces send
// failures; other call sites may silence them.
type Mailer interface {
	Send(subject, body, from string, to []string) error
}

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
}

// NewSMTPMailer creates a mailer for the given relay.
func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(host, port, username, password)}
}

// NewSMTPMailerFromEnv reads the relay settings from YUUMI_SMTP_HOST,
// YUUMI_SMTP_PORT, YUUMI_SMTP_USER and YUUMI_SMTP_PASSWORD.
func NewSMTPMailerFromEnv() (*SMTPMailer, error) {
	host := os.Getenv("YUUMI_SMTP_HOST")
	if host == "" {
		return nil, fmt.Errorf("YUUMI_SMTP_HOST is not set")
	}

	port := 587

	if p := os.Getenv("YUUMI_SMTP_PORT"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid YUUMI_SMTP_PORT: %w", err)
		}

		port = parsed
	}

	return NewSMTPMailer(host, port,
		os.Getenv("YUUMI_SMTP_USER"), os.Getenv("YUUMI_SMTP_PASSWORD")), nil
}

func (m *SMTPMailer) Send(subject, body, from string, to []string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}

	return nil
}
