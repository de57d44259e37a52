package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"hubmedia/internal/cache"
	"hubmedia/internal/models"
	"hubmedia/internal/observability"
	"hubmedia/internal/repository"
	"hubmedia/internal/validation"
)

// DefaultStatusTTL is how long a status snapshot may be served from cache.
const DefaultStatusTTL = 2 * time.Second

// StreamService owns the stream lifecycle: LIVE --end--> ENDED.
type StreamService struct {
	streams   repository.StreamRepository
	messages  repository.MessageRepository
	cache     *cache.Store
	events    EventPublisher
	statusTTL time.Duration
	now       func() time.Time
}

// StartStreamInput is the input for starting a stream.
type StartStreamInput struct {
	OwnerID           string
	Title             string
	ModerationEnabled bool
}

// EndStreamInput is the input for ending a stream.
type EndStreamInput struct {
	StreamID uint
	ActorID  string
}

// SetModerationInput is the input for toggling the moderation gate.
type SetModerationInput struct {
	StreamID uint
	ActorID  string
	Enabled  bool
}

// StreamDetail is a stream with the size of its moderation queue.
type StreamDetail struct {
	Stream       *models.Stream `json:"stream"`
	PendingCount int64          `json:"pendingCount"`
}

// NewStreamService returns a new StreamService. statusCache may wrap a nil client.
func NewStreamService(
	streams repository.StreamRepository,
	messages repository.MessageRepository,
	statusCache *cache.Store,
	events EventPublisher,
	statusTTL time.Duration,
) *StreamService {
	if statusTTL < 0 {
		statusTTL = DefaultStatusTTL
	}
	return &StreamService{
		streams:   streams,
		messages:  messages,
		cache:     statusCache,
		events:    publisherOrNop(events),
		statusTTL: statusTTL,
		now:       utcNow,
	}
}

// StartStream creates a live stream for the owner and announces it.
func (s *StreamService) StartStream(ctx context.Context, in StartStreamInput) (stream *models.Stream, err error) {
	ctx, span := startSpan(ctx, "StreamService", "StartStream", 0)
	defer func() { finishSpan(ctx, span, err) }()

	ownerID := strings.TrimSpace(in.OwnerID)
	if ownerID == "" {
		return nil, models.NewValidationError("ownerId is required")
	}
	title, err := validation.StreamTitle(in.Title, models.DefaultStreamTitle)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.streams.FindLiveByOwner(ctx, ownerID)
	switch {
	case err == nil:
		return nil, models.NewConflictError(
			"Owner already has a live stream (ID " + uintString(existing.ID) + ")")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, models.NewStoreError(err)
	}

	stream = &models.Stream{
		OwnerID:           ownerID,
		Title:             title,
		IsLive:            true,
		ModerationEnabled: in.ModerationEnabled,
		ViewerCount:       0,
		StartedAt:         s.now(),
	}
	if err := s.streams.Create(ctx, stream); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, models.NewConflictError("Owner already has a live stream")
		}
		return nil, models.NewStoreError(err)
	}

	s.cache.InvalidateStream(ctx, stream.ID)
	observability.StreamLifecycle.WithLabelValues("started").Inc()
	slog.InfoContext(ctx, "stream started",
		slog.Uint64("stream_id", uint64(stream.ID)),
		slog.String("owner_id", ownerID),
		slog.Bool("moderation_enabled", stream.ModerationEnabled),
	)

	if _, err := postSystemMessage(ctx, s.messages, s.events, stream.ID, StreamStartedText); err != nil {
		slog.ErrorContext(ctx, "failed to post start announcement",
			slog.Uint64("stream_id", uint64(stream.ID)),
			slog.String("error", err.Error()),
		)
	}
	emit(ctx, s.events, models.StreamEvent{
		Type:     models.EventStreamStarted,
		StreamID: stream.ID,
		Status:   statusPtr(stream.Status()),
		At:       stream.StartedAt,
	})

	return stream, nil
}

// EndStream finalizes a live stream. Ending an ended stream returns it unchanged.
func (s *StreamService) EndStream(ctx context.Context, in EndStreamInput) (stream *models.Stream, err error) {
	ctx, span := startSpan(ctx, "StreamService", "EndStream", in.StreamID)
	defer func() { finishSpan(ctx, span, err) }()

	stream, err = loadStream(ctx, s.streams, in.StreamID)
	if err != nil {
		return nil, err
	}
	if err := CheckOwner(stream, in.ActorID); err != nil {
		return nil, err
	}
	if !stream.IsLive {
		return stream, nil
	}

	endedAt := s.now()
	changed, err := s.streams.MarkEnded(ctx, stream.ID, endedAt)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewNotFoundError("Stream", in.StreamID)
		}
		return nil, models.NewStoreError(err)
	}
	if !changed {
		// A concurrent end won the race; report the stored state.
		return loadStream(ctx, s.streams, in.StreamID)
	}

	stream.IsLive = false
	stream.EndedAt = &endedAt
	stream.ViewerCount = 0

	s.cache.InvalidateStream(ctx, stream.ID)
	observability.StreamLifecycle.WithLabelValues("ended").Inc()
	slog.InfoContext(ctx, "stream ended",
		slog.Uint64("stream_id", uint64(stream.ID)),
		slog.Duration("duration", stream.Duration(endedAt)),
	)

	if _, err := postSystemMessage(ctx, s.messages, s.events, stream.ID, StreamEndedText); err != nil {
		slog.ErrorContext(ctx, "failed to post end announcement",
			slog.Uint64("stream_id", uint64(stream.ID)),
			slog.String("error", err.Error()),
		)
	}
	emit(ctx, s.events, models.StreamEvent{
		Type:     models.EventStreamEnded,
		StreamID: stream.ID,
		Status:   statusPtr(stream.Status()),
		At:       endedAt,
	})

	return stream, nil
}

// GetStatus returns the polling snapshot. Unknown streams read as offline.
func (s *StreamService) GetStatus(ctx context.Context, id uint) (models.StreamStatus, error) {
	var status models.StreamStatus
	err := s.cache.StreamStatusAside(ctx, id, &status, s.statusTTL, func() error {
		stream, err := s.streams.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				status = models.StreamStatus{}
				return nil
			}
			return err
		}
		status = stream.Status()
		return nil
	})
	if err != nil {
		return models.StreamStatus{}, models.NewStoreError(err)
	}
	return status, nil
}

// GetStream returns a stream by id.
func (s *StreamService) GetStream(ctx context.Context, id uint) (*models.Stream, error) {
	return loadStream(ctx, s.streams, id)
}

// GetStreamDetail returns the stream together with its pending queue size.
func (s *StreamService) GetStreamDetail(ctx context.Context, id uint) (*StreamDetail, error) {
	stream, err := loadStream(ctx, s.streams, id)
	if err != nil {
		return nil, err
	}
	pending, err := s.messages.CountPending(ctx, id)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	return &StreamDetail{Stream: stream, PendingCount: pending}, nil
}

// ListLive returns a page of live streams, newest first, and the total live count.
func (s *StreamService) ListLive(ctx context.Context, limit, offset int) ([]*models.Stream, int64, error) {
	streams, total, err := s.streams.ListLive(ctx, limit, offset)
	if err != nil {
		return nil, 0, models.NewStoreError(err)
	}
	return streams, total, nil
}

// ListByOwner returns an owner's streams, newest first.
func (s *StreamService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Stream, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, models.NewValidationError("ownerId is required")
	}
	streams, err := s.streams.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	return streams, nil
}

// SetModeration switches the moderation gate. Only messages sent afterwards are affected.
func (s *StreamService) SetModeration(ctx context.Context, in SetModerationInput) (stream *models.Stream, err error) {
	ctx, span := startSpan(ctx, "StreamService", "SetModeration", in.StreamID)
	defer func() { finishSpan(ctx, span, err) }()

	stream, err = loadStream(ctx, s.streams, in.StreamID)
	if err != nil {
		return nil, err
	}
	if err := CheckOwner(stream, in.ActorID); err != nil {
		return nil, err
	}
	if stream.ModerationEnabled == in.Enabled {
		return stream, nil
	}

	if err := s.streams.SetModeration(ctx, stream.ID, in.Enabled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewNotFoundError("Stream", in.StreamID)
		}
		return nil, models.NewStoreError(err)
	}
	stream.ModerationEnabled = in.Enabled

	s.cache.InvalidateStream(ctx, stream.ID)
	enabled := in.Enabled
	emit(ctx, s.events, models.StreamEvent{
		Type:              models.EventModerationToggled,
		StreamID:          stream.ID,
		ModerationEnabled: &enabled,
	})
	return stream, nil
}
