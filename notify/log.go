package notify

import (
	"context"
	"log/slog"
)

const logMsgNoticeSent = "notify: notice sent"

// LogNotifier writes notices to a structured logger instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier; a nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogNotifier{logger: logger}
}

// Send logs the notice at info level.
func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return ErrEmptyRecipient
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, logMsgNoticeSent, "to", to, "subject", subject, "body", body)

	return nil
}
