// Command main fills the database with demo streams and chat.
package main

import (
	"context"
	"flag"
	"log"

	"hubmedia/internal/config"
	"hubmedia/internal/database"
	"hubmedia/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	live := flag.Int("live", defaults.NumLiveStreams, "Number of live streams to create")
	ended := flag.Int("ended", defaults.NumEndedStreams, "Number of ended streams to create")
	messages := flag.Int("messages", defaults.MessagesPerStream, "Messages per stream")
	moderated := flag.Float64("moderated", defaults.ModeratedRatio, "Share of streams with moderation on (0-1)")
	pending := flag.Float64("pending", defaults.PendingRatio, "Share of messages left pending on moderated streams (0-1)")
	shouldClean := flag.Bool("clean", true, "Clean streams and messages before seeding")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = clock)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	opts := defaults
	opts.NumLiveStreams = *live
	opts.NumEndedStreams = *ended
	opts.MessagesPerStream = *messages
	opts.ModeratedRatio = *moderated
	opts.PendingRatio = *pending
	opts.ShouldClean = *shouldClean
	opts.RandomSeed = *randomSeed

	if _, err := seed.Seed(ctx, db, opts); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with demo streams.")
}
