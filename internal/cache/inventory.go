package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	StreamStatusKeyPrefix     = "stream:%d:status"
	StreamGenerationKeyPrefix = "stream:%d:gen"
)

// generationTTL outlives any cached projection by a wide margin.
const generationTTL = 24 * time.Hour

func StreamStatusKey(streamID uint) string {
	return fmt.Sprintf(StreamStatusKeyPrefix, streamID)
}

// StreamGenerationKey counts writes to a stream that affect its cached projections.
func StreamGenerationKey(streamID uint) string {
	return fmt.Sprintf(StreamGenerationKeyPrefix, streamID)
}

// StreamStatusAside reads the cached status of a stream, filling it through fetch.
func (s *Store) StreamStatusAside(ctx context.Context, streamID uint, dest any, ttl time.Duration, fetch func() error) error {
	return s.AsideGuarded(ctx, StreamStatusKey(streamID), StreamGenerationKey(streamID), dest, ttl, fetch)
}

// InvalidateStream drops every cached projection of a stream and fences
// in-flight fills that read it before the write.
func (s *Store) InvalidateStream(ctx context.Context, streamID uint) {
	s.InvalidateGuarded(ctx, StreamGenerationKey(streamID), StreamStatusKey(streamID))
}
