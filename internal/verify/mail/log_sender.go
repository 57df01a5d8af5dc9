package mail

import (
	"context"

	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
)

// LogSender writes messages to the structured log instead of sending them.
// Used in development and tests.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	slogx.FromContext(ctx).Info("mail (log driver)",
		"template", msg.Template,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
