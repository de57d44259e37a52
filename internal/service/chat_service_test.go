package service

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"hubmedia/internal/models"
	"hubmedia/internal/chatter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatService_SendDelegatesToGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stream := f.start(t, "owner-1", true)

	msg, err := f.chat.Send(ctx, SendMessageInput{
		StreamID: stream.ID, Author: "Alice", AvatarURL: "https://example.com/a.png", Text: "hello",
	})
	require.NoError(t, err)
	assert.False(t, msg.IsApproved)
	assert.Equal(t, "https://example.com/a.png", msg.AvatarURL)
}

func TestChatService_SendSystemMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stream := f.start(t, "owner-1", true)

	msg, err := f.chat.SendSystemMessage(ctx, stream.ID, " Welcome ")
	require.NoError(t, err)
	assert.True(t, msg.IsSystem)
	assert.True(t, msg.IsApproved)
	assert.Equal(t, "Welcome", msg.Text)
	assert.Equal(t, models.SystemAuthorName, msg.AuthorName)

	_, err = f.chat.SendSystemMessage(ctx, stream.ID, "  ")
	assertCode(t, err, models.CodeValidation)

	_, err = f.chat.SendSystemMessage(ctx, 999, "hi")
	assertCode(t, err, models.CodeNotFound)

	_, err = f.streamSvc.EndStream(ctx, EndStreamInput{StreamID: stream.ID})
	require.NoError(t, err)
	_, err = f.chat.SendSystemMessage(ctx, stream.ID, "Thanks for watching")
	assert.NoError(t, err)
}

func TestChatService_GetVisibleFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stream := f.start(t, "owner-1", false)

	var ids []uint
	for i := 0; i < 5; i++ {
		msg, err := f.chat.Send(ctx, SendMessageInput{StreamID: stream.ID, Author: "A", Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	t.Run("full feed in id order", func(t *testing.T) {
		feed, err := f.chat.GetVisibleFeed(ctx, FeedQuery{StreamID: stream.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, userTexts(feed))
		for i := 1; i < len(feed); i++ {
			assert.Greater(t, feed[i].ID, feed[i-1].ID)
		}
	})

	t.Run("cursor and limit", func(t *testing.T) {
		feed, err := f.chat.GetVisibleFeed(ctx, FeedQuery{StreamID: stream.ID, AfterID: ids[1], Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"m2", "m3"}, userTexts(feed))
	})

	t.Run("unknown stream is empty", func(t *testing.T) {
		feed, err := f.chat.GetVisibleFeed(ctx, FeedQuery{StreamID: 999})
		require.NoError(t, err)
		assert.NotNil(t, feed)
		assert.Empty(t, feed)
	})

	t.Run("reading has no side effects", func(t *testing.T) {
		f.events.reset()
		_, err := f.chat.GetVisibleFeed(ctx, FeedQuery{StreamID: stream.ID, Limit: 10000})
		require.NoError(t, err)
		assert.Empty(t, f.events.types())
	})
}

func TestChatService_Simulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.chat.rng = rand.New(rand.NewSource(7))

	t.Run("moderation off publishes a canned line", func(t *testing.T) {
		stream := f.start(t, "owner-1", false)
		msg, err := f.chat.Simulate(ctx, stream.ID)
		require.NoError(t, err)
		assert.True(t, msg.IsApproved)
		assert.Contains(t, chatter.Users(), msg.AuthorName)
		assert.Contains(t, chatter.Messages(), msg.Text)
		assert.Equal(t, chatter.AvatarFor(msg.AuthorName), msg.AvatarURL)
	})

	t.Run("moderation applies", func(t *testing.T) {
		stream := f.start(t, "owner-2", true)
		msg, err := f.chat.Simulate(ctx, stream.ID)
		require.NoError(t, err)
		assert.False(t, msg.IsApproved)
	})
}
