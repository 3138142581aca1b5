package mail

import (
	"context"

	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

// LogMailer writes messages to the request logger instead of sending them.
// Used when no SMTP relay is configured. Bodies are logged at debug level
// because they carry codes.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	log := slogx.FromContext(ctx)
	log.Info("mail_suppressed", "to", msg.To, "subject", msg.Subject)
	log.Debug("mail_body", "to", msg.To, "body", msg.Body)
	return nil
}

var _ Mailer = LogMailer{}
