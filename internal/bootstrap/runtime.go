// Package bootstrap wires the process-level dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"hubmedia/internal/cache"
	"hubmedia/internal/config"
	"hubmedia/internal/database"
	"hubmedia/internal/models"
	"hubmedia/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoData fills an empty database with demo streams and chat.
	SeedDemoData bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedDemoData && !cfg.IsProduction() {
		if err := seedDemoDataIfEmpty(ctx, db, seed.DefaultOptions()); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

func seedDemoDataIfEmpty(ctx context.Context, db *gorm.DB, opts seed.Options) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Stream{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Printf("demo seed skipped: %d streams already present", count)
		return nil
	}

	_, err := seed.Seed(ctx, db, opts)
	return err
}
