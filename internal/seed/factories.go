// Package seed provides helpers to create demo streams and chat for local
// development and tests. Nothing here runs in production paths.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"hubmedia/internal/chatter"
	"hubmedia/internal/models"
	"hubmedia/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them through the repositories.
// It is a thin helper used by Seed and tests.
type Factory struct {
	streams  repository.StreamRepository
	messages repository.MessageRepository
	opts     Options
	faker    *gofakeit.Faker
	rng      *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. db may be nil when opts.DryRun is set.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	f := &Factory{
		opts:   opts,
		faker:  gofakeit.New(opts.randomSeed()),
		rng:    rand.New(rand.NewSource(opts.randomSeed())),
		nextID: 1000,
	}
	if db != nil {
		f.streams = repository.NewStreamRepository(db)
		f.messages = repository.NewMessageRepository(db)
	}
	return f
}

func (f *Factory) syntheticID() uint {
	f.nextID++
	return f.nextID
}

// BuildStream constructs a live stream without persisting it.
func (f *Factory) BuildStream(overrides ...func(*models.Stream)) *models.Stream {
	maxAge := f.opts.MaxAge
	if maxAge <= 0 {
		maxAge = 4 * time.Hour
	}
	started := time.Now().UTC().Add(-time.Duration(f.rng.Int63n(int64(maxAge))))

	stream := &models.Stream{
		// Owners must be unique while live.
		OwnerID:           fmt.Sprintf("%s_%d", strings.ToLower(f.faker.Username()), f.syntheticID()),
		Title:             strings.TrimSuffix(f.faker.HipsterSentence(4), "."),
		IsLive:            true,
		ModerationEnabled: f.rng.Float64() < f.opts.ModeratedRatio,
		ViewerCount:       f.faker.Number(0, 250),
		StartedAt:         started,
	}
	for _, override := range overrides {
		override(stream)
	}
	return stream
}

// CreateStream persists a stream and its start announcement.
func (f *Factory) CreateStream(ctx context.Context, overrides ...func(*models.Stream)) (*models.Stream, error) {
	stream := f.BuildStream(overrides...)
	if f.opts.DryRun {
		stream.ID = f.syntheticID()
		return stream, nil
	}

	if err := f.streams.Create(ctx, stream); err != nil {
		return nil, fmt.Errorf("create stream for %s: %w", stream.OwnerID, err)
	}
	if _, err := f.CreateSystemMessage(ctx, stream, models.StreamStartedText); err != nil {
		return nil, err
	}
	return stream, nil
}

// EndStream marks a persisted stream ended and posts the end announcement.
func (f *Factory) EndStream(ctx context.Context, stream *models.Stream) error {
	endedAt := stream.StartedAt.Add(time.Duration(f.faker.Number(5, 120)) * time.Minute)
	if now := time.Now().UTC(); endedAt.After(now) {
		endedAt = now
	}

	stream.IsLive = false
	stream.EndedAt = &endedAt
	stream.ViewerCount = 0
	if f.opts.DryRun {
		return nil
	}

	if _, err := f.streams.MarkEnded(ctx, stream.ID, endedAt); err != nil {
		return fmt.Errorf("end stream %d: %w", stream.ID, err)
	}
	_, err := f.CreateSystemMessage(ctx, stream, models.StreamEndedText)
	return err
}

// BuildMessage constructs a viewer message for stream. Messages on moderated
// streams are left pending with probability opts.PendingRatio.
func (f *Factory) BuildMessage(stream *models.Stream, overrides ...func(*models.Message)) *models.Message {
	name := f.faker.Name()
	authorID := strings.ToLower(f.faker.Username())

	text := f.faker.HipsterSentence(f.faker.Number(3, 12))
	switch f.rng.Intn(4) {
	case 0:
		text = chatter.Random(f.rng).Text
	case 1:
		text = f.faker.Emoji() + " " + text
	}

	msg := &models.Message{
		StreamID:     stream.ID,
		AuthorUserID: &authorID,
		AuthorName:   name,
		AvatarURL:    chatter.AvatarFor(name),
		Text:         text,
		IsApproved:   !stream.ModerationEnabled || f.rng.Float64() >= f.opts.PendingRatio,
	}
	for _, override := range overrides {
		override(msg)
	}
	return msg
}

// CreateMessage persists a viewer message.
func (f *Factory) CreateMessage(ctx context.Context, stream *models.Stream, overrides ...func(*models.Message)) (*models.Message, error) {
	msg := f.BuildMessage(stream, overrides...)
	if f.opts.DryRun {
		msg.ID = f.syntheticID()
		return msg, nil
	}
	if err := f.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message for stream %d: %w", stream.ID, err)
	}
	return msg, nil
}

// CreateSystemMessage persists an approved announcement.
func (f *Factory) CreateSystemMessage(ctx context.Context, stream *models.Stream, text string) (*models.Message, error) {
	msg := &models.Message{
		StreamID:   stream.ID,
		AuthorName: models.SystemAuthorName,
		AvatarURL:  models.DefaultAvatarURL,
		Text:       text,
		IsSystem:   true,
		IsApproved: true,
	}
	if f.opts.DryRun {
		msg.ID = f.syntheticID()
		return msg, nil
	}
	if err := f.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create system message for stream %d: %w", stream.ID, err)
	}
	return msg, nil
}
