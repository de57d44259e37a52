package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

// Options configures the demo seeder.
type Options struct {
	NumLiveStreams    int
	NumEndedStreams   int
	MessagesPerStream int
	// ModeratedRatio is the share of streams created with moderation on.
	ModeratedRatio float64
	// PendingRatio is the share of messages on moderated streams left in the queue.
	PendingRatio float64
	// MaxAge bounds how long ago a seeded stream started.
	MaxAge      time.Duration
	ShouldClean bool
	DryRun      bool
	// RandomSeed makes output reproducible; zero uses the clock.
	RandomSeed int64
}

// DefaultOptions returns the preset used by `cmd/seed` and SEED_DEMO_DATA.
func DefaultOptions() Options {
	return Options{
		NumLiveStreams:    3,
		NumEndedStreams:   2,
		MessagesPerStream: 20,
		ModeratedRatio:    0.5,
		PendingRatio:      0.3,
		MaxAge:            4 * time.Hour,
	}
}

func (o Options) randomSeed() int64 {
	if o.RandomSeed != 0 {
		return o.RandomSeed
	}
	return time.Now().UnixNano()
}

// Result summarizes what a seeding run created.
type Result struct {
	LiveStreams  int
	EndedStreams int
	Messages     int
	Pending      int
}

// Seed populates the database with demo streams and chat.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	log.Printf("🌱 Seeding %d live and %d ended streams with %d messages each...",
		opts.NumLiveStreams, opts.NumEndedStreams, opts.MessagesPerStream)

	if opts.ShouldClean && !opts.DryRun {
		if err := ClearData(ctx, db); err != nil {
			log.Printf("⚠️  Warning: could not clear existing data: %v", err)
		}
	}

	f := NewFactory(db, opts)
	res := &Result{}

	for i := 0; i < opts.NumLiveStreams+opts.NumEndedStreams; i++ {
		stream, err := f.CreateStream(ctx)
		if err != nil {
			return res, err
		}

		for j := 0; j < opts.MessagesPerStream; j++ {
			msg, err := f.CreateMessage(ctx, stream)
			if err != nil {
				return res, err
			}
			res.Messages++
			if msg.IsPending() {
				res.Pending++
			}
		}

		if i >= opts.NumLiveStreams {
			if err := f.EndStream(ctx, stream); err != nil {
				return res, err
			}
			res.EndedStreams++
			continue
		}
		res.LiveStreams++
	}

	log.Printf("✓ %d live streams, %d ended streams, %d messages (%d pending)",
		res.LiveStreams, res.EndedStreams, res.Messages, res.Pending)
	return res, nil
}

// ClearData removes every stream and message.
func ClearData(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database is required")
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"stream_messages", "streams"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}
