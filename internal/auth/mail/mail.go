// Package mail delivers the few messages the login flows send: one-time
// codes, password reset links and temporary passwords.
package mail

import (
	"context"
	"fmt"
	"time"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a message. Callers treat delivery as best effort.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

func LoginCodeMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your sign-in code",
		Body: fmt.Sprintf("Your verification code is %s.\n\nIt expires in %d minutes. If you did not try to sign in, change your password.\n",
			code, int(ttl.Minutes())),
	}
}

func SetupCodeMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Confirm two-factor authentication",
		Body: fmt.Sprintf("Enter %s to finish turning on email two-factor authentication.\n\nThe code expires in %d minutes.\n",
			code, int(ttl.Minutes())),
	}
}

func ResetLinkMessage(to, link string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Use the link below to choose a new password. It expires in %d minutes.\n\n%s\n\nIf you did not ask for this, ignore this email.\n",
			int(ttl.Minutes()), link),
	}
}

func WelcomeMessage(to, name, tempPassword, loginURL string) Message {
	return Message{
		To:      to,
		Subject: "Your admin panel account",
		Body: fmt.Sprintf("Hi %s,\n\nAn account has been created for you at %s.\n\nTemporary password: %s\n\nYou will be asked to change it when you first sign in.\n",
			name, loginURL, tempPassword),
	}
}
