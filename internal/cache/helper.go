package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"hubmedia/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Store is a JSON cache on top of Redis. A Store with a nil client never hits
// and never stores, so callers do not need to branch on Redis availability.
type Store struct {
	rdb *redis.Client
}

// NewStore wraps rdb, which may be nil.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if s == nil || s.rdb == nil {
		return false, nil
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// errStaleFill aborts a guarded fill whose generation moved while fetch ran.
var errStaleFill = errors.New("cache generation changed during fill")

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, g getter, genKey string) (int64, error) {
	n, err := g.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// AsideGuarded tries Redis first and on a miss calls fetch, which must populate
// dest, then stores dest with ttl. Writers bump genKey through InvalidateGuarded;
// a value fetched before a concurrent invalidation is returned but never stored.
// Cache failures degrade to a plain fetch.
func (s *Store) AsideGuarded(
	ctx context.Context, key, genKey string, dest any, ttl time.Duration, fetch func() error,
) error {
	found, err := s.GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	if found {
		return nil
	}

	var gen int64
	canStore := ttl > 0 && s != nil && s.rdb != nil && err == nil
	if canStore {
		if gen, err = generation(ctx, s.rdb, genKey); err != nil {
			canStore = false
		}
	}

	if err := fetch(); err != nil {
		return err
	}
	if !canStore {
		return nil
	}

	b, err := json.Marshal(dest)
	if err != nil {
		return err
	}
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generation(ctx, tx, genKey)
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		middleware.Logger.DebugContext(ctx, "dropped stale cache fill", slog.String("key", key))
	case err != nil:
		middleware.Logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// InvalidateGuarded bumps genKey and removes keys in one transaction, so fills
// started before this call cannot store what they read.
func (s *Store) InvalidateGuarded(ctx context.Context, genKey string, keys ...string) {
	if s == nil || s.rdb == nil {
		return
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed",
			slog.String("generation_key", genKey),
			slog.Any("keys", keys),
			slog.String("error", err.Error()),
		)
	}
}
