// Package service implements the stream lifecycle, moderation gate, chat delivery and viewer counting.
package service

import (
	"context"
	"log/slog"
	"time"

	"hubmedia/internal/models"
)

// EventPublisher receives every observable change of a stream.
// Publishing is outside the synchronous contract: failures are logged, never returned to callers.
type EventPublisher interface {
	PublishStreamEvent(ctx context.Context, ev models.StreamEvent) error
}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(ctx context.Context, ev models.StreamEvent) error

// PublishStreamEvent calls f.
func (f PublisherFunc) PublishStreamEvent(ctx context.Context, ev models.StreamEvent) error {
	return f(ctx, ev)
}

type nopPublisher struct{}

func (nopPublisher) PublishStreamEvent(context.Context, models.StreamEvent) error { return nil }

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func emit(ctx context.Context, p EventPublisher, ev models.StreamEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := p.PublishStreamEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "failed to publish stream event",
			slog.String("type", string(ev.Type)),
			slog.Uint64("stream_id", uint64(ev.StreamID)),
			slog.String("error", err.Error()),
		)
	}
}
