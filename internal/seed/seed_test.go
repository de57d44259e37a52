package seed

import (
	"context"
	"strings"
	"testing"

	"hubmedia/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Stream{}, &models.Message{}))
	require.NoError(t, db.Exec("CREATE UNIQUE INDEX uniq_streams_owner_live ON streams (owner_id) WHERE is_live").Error)
	return db
}

func TestSeed_CreatesStreamsAndChat(t *testing.T) {
	db := setupTestDB(t)
	opts := DefaultOptions()
	opts.RandomSeed = 42
	opts.ModeratedRatio = 1
	opts.PendingRatio = 0.5

	res, err := Seed(context.Background(), db, opts)
	require.NoError(t, err)

	assert.Equal(t, opts.NumLiveStreams, res.LiveStreams)
	assert.Equal(t, opts.NumEndedStreams, res.EndedStreams)
	assert.Equal(t, (opts.NumLiveStreams+opts.NumEndedStreams)*opts.MessagesPerStream, res.Messages)

	var live, ended int64
	require.NoError(t, db.Model(&models.Stream{}).Where("is_live = ?", true).Count(&live).Error)
	require.NoError(t, db.Model(&models.Stream{}).Where("is_live = ? AND ended_at IS NOT NULL", false).Count(&ended).Error)
	assert.Equal(t, int64(opts.NumLiveStreams), live)
	assert.Equal(t, int64(opts.NumEndedStreams), ended)

	var pending int64
	require.NoError(t, db.Model(&models.Message{}).Where("is_approved = ? AND is_system = ?", false, false).Count(&pending).Error)
	assert.Equal(t, int64(res.Pending), pending)

	// one start announcement per stream, one end announcement per ended stream
	var started, endedAnnouncements int64
	require.NoError(t, db.Model(&models.Message{}).Where("is_system = ? AND text = ?", true, models.StreamStartedText).Count(&started).Error)
	require.NoError(t, db.Model(&models.Message{}).Where("is_system = ? AND text = ?", true, models.StreamEndedText).Count(&endedAnnouncements).Error)
	assert.Equal(t, int64(opts.NumLiveStreams+opts.NumEndedStreams), started)
	assert.Equal(t, int64(opts.NumEndedStreams), endedAnnouncements)
}

func TestSeed_ShouldCleanReplacesData(t *testing.T) {
	db := setupTestDB(t)
	opts := Options{NumLiveStreams: 2, MessagesPerStream: 3, RandomSeed: 7}

	_, err := Seed(context.Background(), db, opts)
	require.NoError(t, err)

	opts.ShouldClean = true
	_, err = Seed(context.Background(), db, opts)
	require.NoError(t, err)

	var streams, messages int64
	require.NoError(t, db.Model(&models.Stream{}).Count(&streams).Error)
	require.NoError(t, db.Model(&models.Message{}).Count(&messages).Error)
	assert.Equal(t, int64(2), streams)
	assert.Equal(t, int64(2*(3+1)), messages)
}

func TestFactory_DryRun(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, RandomSeed: 1})

	stream, err := f.CreateStream(context.Background(), func(s *models.Stream) {
		s.ModerationEnabled = false
	})
	require.NoError(t, err)
	assert.NotZero(t, stream.ID)
	assert.True(t, stream.IsLive)
	assert.NotEmpty(t, stream.OwnerID)
	assert.NotEmpty(t, stream.Title)

	msg, err := f.CreateMessage(context.Background(), stream)
	require.NoError(t, err)
	assert.Equal(t, stream.ID, msg.StreamID)
	assert.True(t, msg.IsApproved)
	assert.True(t, strings.HasPrefix(msg.AvatarURL, "https://ui-avatars.com/api/?name="))

	require.NoError(t, f.EndStream(context.Background(), stream))
	assert.False(t, stream.IsLive)
	require.NotNil(t, stream.EndedAt)
	assert.False(t, stream.EndedAt.Before(stream.StartedAt))
}
