package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"hubmedia/internal/cache"
	"hubmedia/internal/models"
	"hubmedia/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.StreamEvent
}

func (p *recordingPublisher) PublishStreamEvent(_ context.Context, ev models.StreamEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []models.StreamEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.StreamEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// streamRepoStub overrides selected methods and falls through to the embedded repository.
type streamRepoStub struct {
	repository.StreamRepository
	getByIDFn         func(context.Context, uint) (*models.Stream, error)
	findLiveByOwnerFn func(context.Context, string) (*models.Stream, error)
	markEndedFn       func(context.Context, uint, time.Time) (bool, error)
}

func (s *streamRepoStub) GetByID(ctx context.Context, id uint) (*models.Stream, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return s.StreamRepository.GetByID(ctx, id)
}

func (s *streamRepoStub) FindLiveByOwner(ctx context.Context, ownerID string) (*models.Stream, error) {
	if s.findLiveByOwnerFn != nil {
		return s.findLiveByOwnerFn(ctx, ownerID)
	}
	return s.StreamRepository.FindLiveByOwner(ctx, ownerID)
}

func (s *streamRepoStub) MarkEnded(ctx context.Context, id uint, endedAt time.Time) (bool, error) {
	if s.markEndedFn != nil {
		return s.markEndedFn(ctx, id, endedAt)
	}
	return s.StreamRepository.MarkEnded(ctx, id, endedAt)
}

type messageRepoStub struct {
	repository.MessageRepository
	createFn func(context.Context, *models.Message) error
}

func (s *messageRepoStub) Create(ctx context.Context, msg *models.Message) error {
	if s.createFn != nil {
		return s.createFn(ctx, msg)
	}
	return s.MessageRepository.Create(ctx, msg)
}

type fixture struct {
	db         *gorm.DB
	streams    repository.StreamRepository
	messages   repository.MessageRepository
	events     *recordingPublisher
	streamSvc  *StreamService
	moderation *ModerationService
	chat       *ChatService
	viewers    *ViewerService
}

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

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	return newFixtureWith(t, db, repository.NewStreamRepository(db), repository.NewMessageRepository(db), cache.NewStore(nil))
}

func newFixtureWith(
	t *testing.T, db *gorm.DB, streams repository.StreamRepository, messages repository.MessageRepository, store *cache.Store,
) *fixture {
	t.Helper()
	events := &recordingPublisher{}
	moderation := NewModerationService(streams, messages, events, 0)
	return &fixture{
		db:         db,
		streams:    streams,
		messages:   messages,
		events:     events,
		streamSvc:  NewStreamService(streams, messages, store, events, DefaultStatusTTL),
		moderation: moderation,
		chat:       NewChatService(moderation, streams, messages, events),
		viewers:    NewViewerService(streams, store, events),
	}
}

func (f *fixture) start(t *testing.T, owner string, moderation bool) *models.Stream {
	t.Helper()
	stream, err := f.streamSvc.StartStream(context.Background(), StartStreamInput{
		OwnerID:           owner,
		Title:             "Test stream",
		ModerationEnabled: moderation,
	})
	require.NoError(t, err)
	return stream
}

// userTexts returns the non-system texts of msgs in order.
func userTexts(msgs []*models.Message) []string {
	out := []string{}
	for _, m := range msgs {
		if !m.IsSystem {
			out = append(out, m.Text)
		}
	}
	return out
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, models.HasCode(err, code), "expected %s, got %v", code, err)
}
