package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"hubmedia/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishStreamEvent(context.Background(), models.StreamEvent{
		Type: models.EventMessageSent, StreamID: 1,
	}))
	assert.NoError(t, n.StartStreamSubscriber(context.Background(), func(string, string) {
		t.Fatal("no messages expected")
	}))
}

func TestStreamChannels(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "stream:7:feed", FeedChannel(7))
	assert.Equal(t, "stream:7:moderation", ModerationChannel(7))
	assert.Equal(t, ModerationChannel(3), ChannelFor(3, models.AudienceModeration))
	assert.Equal(t, FeedChannel(3), ChannelFor(3, models.AudienceFeed))
}

func TestParseStreamChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		channel  string
		streamID uint
		audience models.EventAudience
		ok       bool
	}{
		{"stream:12:feed", 12, models.AudienceFeed, true},
		{"stream:4:moderation", 4, models.AudienceModeration, true},
		{"stream:4:status", 0, "", false},
		{"notifications:user:4", 0, "", false},
		{"stream:abc:feed", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			streamID, audience, ok := ParseStreamChannel(tt.channel)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.streamID, streamID)
			assert.Equal(t, tt.audience, audience)
		})
	}
}

func TestNotifier_RoutesEventsByAudience(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channels := make(chan string, 8)
	require.NoError(t, n.StartStreamSubscriber(ctx, func(channel string, _ string) {
		channels <- channel
	}))

	require.NoError(t, n.PublishStreamEvent(ctx, models.StreamEvent{Type: models.EventMessageQueued, StreamID: 5}))
	assert.Equal(t, "stream:5:moderation", <-channels)

	require.NoError(t, n.PublishStreamEvent(ctx, models.StreamEvent{Type: models.EventMessageApproved, StreamID: 5}))
	got := map[string]bool{<-channels: true, <-channels: true}
	assert.True(t, got["stream:5:feed"])
	assert.True(t, got["stream:5:moderation"])

	require.NoError(t, n.PublishStreamEvent(ctx, models.StreamEvent{Type: models.EventViewerCount, StreamID: 5}))
	assert.Equal(t, "stream:5:feed", <-channels)
}

func TestNotifier_PayloadIsEventJSON(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payloads := make(chan string, 1)
	require.NoError(t, n.StartStreamSubscriber(ctx, func(_ string, payload string) {
		payloads <- payload
	}))

	msg := &models.Message{ID: 9, StreamID: 2, AuthorName: "Sarah J.", Text: "Hello!", IsApproved: true}
	require.NoError(t, n.PublishStreamEvent(ctx, models.StreamEvent{
		Type: models.EventMessageSent, StreamID: 2, Message: msg,
	}))

	var ev models.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(<-payloads), &ev))
	assert.Equal(t, models.EventMessageSent, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "Hello!", ev.Message.Text)
}

func TestNotifier_StartStreamSubscriber_StopsOnCancel(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	require.NoError(t, n.StartStreamSubscriber(ctx, func(string, string) {
		atomic.AddInt32(&received, 1)
	}))

	ev := models.StreamEvent{Type: models.EventViewerCount, StreamID: 1}
	require.NoError(t, n.PublishStreamEvent(context.Background(), ev))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) == 1
	}, testEventuallyTimeout, testPollInterval)

	cancel()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, n.PublishStreamEvent(context.Background(), ev))
	assert.Never(t, func() bool {
		return atomic.LoadInt32(&received) > 1
	}, 200*time.Millisecond, testPollInterval)
}

func TestNotifier_SubscriberRecoversFromPanic(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	require.NoError(t, n.StartStreamSubscriber(ctx, func(string, string) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
	}))

	ev := models.StreamEvent{Type: models.EventViewerCount, StreamID: 1}
	require.NoError(t, n.PublishStreamEvent(ctx, ev))
	require.NoError(t, n.PublishStreamEvent(ctx, ev))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, testEventuallyTimeout, testPollInterval)
}
