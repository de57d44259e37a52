// Package notifications fans stream events out to push subscribers over Redis and websockets.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"hubmedia/internal/models"
	"hubmedia/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	feedChannelPattern       = "stream:*:feed"
	moderationChannelPattern = "stream:*:moderation"
)

// Notifier provides helpers to publish stream events into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether the notifier has a Redis client to publish through.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// FeedChannel returns the channel carrying events every viewer of a stream receives.
func FeedChannel(streamID uint) string {
	return fmt.Sprintf("stream:%d:feed", streamID)
}

// ModerationChannel returns the channel carrying events for a stream's moderators.
func ModerationChannel(streamID uint) string {
	return fmt.Sprintf("stream:%d:moderation", streamID)
}

// ChannelFor maps an audience to its channel.
func ChannelFor(streamID uint, audience models.EventAudience) string {
	if audience == models.AudienceModeration {
		return ModerationChannel(streamID)
	}
	return FeedChannel(streamID)
}

// ParseStreamChannel is the inverse of ChannelFor.
func ParseStreamChannel(channel string) (uint, models.EventAudience, bool) {
	var streamID uint
	var audience string
	if _, err := fmt.Sscanf(channel, "stream:%d:%s", &streamID, &audience); err != nil {
		return 0, "", false
	}
	switch models.EventAudience(audience) {
	case models.AudienceFeed, models.AudienceModeration:
		return streamID, models.EventAudience(audience), true
	default:
		return 0, "", false
	}
}

// PublishStreamEvent publishes ev once per audience it targets.
func (n *Notifier) PublishStreamEvent(ctx context.Context, ev models.StreamEvent) error {
	if !n.Enabled() {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}

	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "publish")
	defer span.End()

	pipe := n.rdb.Pipeline()
	for _, audience := range ev.Audiences() {
		pipe.Publish(ctx, ChannelFor(ev.StreamID, audience), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RecordErrorInContext(ctx, err)
		return fmt.Errorf("publish stream event: %w", err)
	}
	return nil
}

// StartStreamSubscriber subscribes to every stream channel and calls onMessage
// for each incoming message until ctx is cancelled. It returns once the
// subscription is confirmed by Redis.
func (n *Notifier) StartStreamSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, feedChannelPattern, moderationChannelPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to stream channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("panic in stream subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
