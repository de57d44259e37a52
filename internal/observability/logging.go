// Package observability provides logging, metrics, tracing and error reporting helpers.
package observability

import (
	"context"
	"log/slog"
)

// PushLogger provides structured logging for stream push connections.
type PushLogger struct {
	hubName string
}

// NewPushLogger creates a new PushLogger for the given hub.
func NewPushLogger(hubName string) *PushLogger {
	return &PushLogger{hubName: hubName}
}

func (l *PushLogger) attrs(streamID uint, audience, userID string) []any {
	return []any{
		slog.String("hub", l.hubName),
		slog.Uint64("stream_id", uint64(streamID)),
		slog.String("audience", audience),
		slog.String("user_id", userID),
	}
}

// LogConnect logs a new push connection.
func (l *PushLogger) LogConnect(ctx context.Context, streamID uint, audience, userID string) {
	slog.Default().InfoContext(ctx, "push connection opened", l.attrs(streamID, audience, userID)...)
}

// LogDisconnect logs a closed push connection.
func (l *PushLogger) LogDisconnect(ctx context.Context, streamID uint, audience, userID, reason string) {
	attrs := append(l.attrs(streamID, audience, userID), slog.String("reason", reason))
	slog.Default().InfoContext(ctx, "push connection closed", attrs...)
}

// LogLifecycle logs a hub lifecycle event.
func (l *PushLogger) LogLifecycle(ctx context.Context, event string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("hub", l.hubName),
		slog.String("event", event),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	slog.Default().InfoContext(ctx, "push hub lifecycle", attrs...)
}
