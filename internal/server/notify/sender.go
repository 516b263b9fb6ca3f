// Package notify delivers short out-of-band messages to users, such as
// password-reset codes.
package notify

import (
	"context"

	"github.com/avasilyev-dev/authkeeper/internal/logging"
)

// Sender delivers a message to a recipient. Implementations decide the
// channel (email, SMS, a log line in development).
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes messages to the application log instead of sending
// them. Meant for development and tests.
type LogSender struct {
	logger logging.Logger
}

// NewLogSender constructs a LogSender writing to the given logger.
func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message. The body is logged too, so never use LogSender
// in production.
func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.Info(ctx, "outgoing notification", "to", to, "subject", subject, "body", body)
	return nil
}
