package core

import (
	"context"
	"log/slog"
)

// NoticeLevel is the severity of a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient, user-visible message (the equivalent of a toast).
type Notice struct {
	Level      NoticeLevel
	DocumentID string
	Message    string
	Err        error
}

// Notifier surfaces notices to the user. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// LogNotifier writes notices to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(ctx context.Context, n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	switch n.Level {
	case NoticeWarn:
		level = slog.LevelWarn
	case NoticeError:
		level = slog.LevelError
	}

	attrs := []any{"document", n.DocumentID}
	if n.Err != nil {
		attrs = append(attrs, "error", n.Err)
	}
	logger.Log(ctx, level, n.Message, attrs...)
}
