// Package notify delivers booking notifications to clients and coaches over
// email.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// SendRequest is one outbound email.
type SendRequest struct {
	To      []string
	Subject string
	HTML    string
}

// SendResult reports a delivered email.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers a single email. Implementations are expected to be safe
// for concurrent use.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// NoopSender drops emails on the floor. Used in development and tests.
type NoopSender struct {
	Logger *slog.Logger
}

func (s NoopSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if s.Logger != nil {
		s.Logger.LogAttrs(ctx, slog.LevelDebug, "dropped email",
			slog.Any("to", req.To),
			slog.String("subject", req.Subject))
	}
	return SendResult{MessageID: "noop", SentAt: time.Now()}, nil
}
