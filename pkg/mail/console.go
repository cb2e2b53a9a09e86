package mail

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleMailer logs messages instead of sending them. Used in development
// and as the fallback when no transport is configured.
type ConsoleMailer struct {
	logger *zap.Logger
}

// NewConsoleMailer constructs a console mailer.
func NewConsoleMailer(logger *zap.Logger) *ConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMailer{logger: logger}
}

// Send logs the message.
func (m *ConsoleMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("email",
		zap.String("to", msg.ToEmail),
		zap.String("from", msg.FromEmail),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.TextBody),
	)
	return nil
}
