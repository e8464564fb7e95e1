package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is one outgoing email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs m.
func (l *LogMailer) Send(_ context.Context, m Message) error {
	l.logger.Info("email", zap.String("from", m.From), zap.String("to", m.To),
		zap.String("subject", m.Subject), zap.Int("body_bytes", len(m.Body)))
	return nil
}
