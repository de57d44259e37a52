package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"hubmedia/internal/models"
	"hubmedia/internal/observability"
	"hubmedia/internal/repository"

	"go.opentelemetry.io/otel/trace"
)

const (
	// StreamStartedText is posted when a stream goes live.
	StreamStartedText = models.StreamStartedText
	// StreamEndedText is posted after a stream ends.
	StreamEndedText = models.StreamEndedText
)

// startSpan opens a service span tagged with the stream id; close it with finishSpan.
func startSpan(ctx context.Context, component, method string, streamID uint) (context.Context, trace.Span) {
	return observability.GetTraceLayer().TraceStreamService(ctx, component, method, streamID)
}

func finishSpan(ctx context.Context, span trace.Span, err error) {
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
	}
	span.End()
}

// loadStream maps a missing stream to NotFoundError and other failures to StoreError.
func loadStream(ctx context.Context, streams repository.StreamRepository, id uint) (*models.Stream, error) {
	stream, err := streams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewNotFoundError("Stream", id)
		}
		return nil, models.NewStoreError(err)
	}
	return stream, nil
}

// CheckOwner rejects an authenticated actor that does not own the stream.
// An empty actor id means the caller is unauthenticated and trusted by the transport.
func CheckOwner(stream *models.Stream, actorID string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID != "" && actorID != stream.OwnerID {
		return models.NewForbiddenError("Only the stream owner can do this")
	}
	return nil
}

// postSystemMessage stores an approved system message and announces it on the feed.
func postSystemMessage(
	ctx context.Context, messages repository.MessageRepository, events EventPublisher, streamID uint, text string,
) (*models.Message, error) {
	msg := &models.Message{
		StreamID:   streamID,
		AuthorName: models.SystemAuthorName,
		AvatarURL:  models.DefaultAvatarURL,
		Text:       text,
		IsSystem:   true,
		IsApproved: true,
	}
	if err := messages.Create(ctx, msg); err != nil {
		return nil, models.NewStoreError(err)
	}
	observability.ChatMessages.WithLabelValues("system").Inc()
	emit(ctx, events, models.StreamEvent{
		Type:      models.EventMessageSent,
		StreamID:  streamID,
		Message:   msg,
		MessageID: msg.ID,
		At:        msg.CreatedAt,
	})
	return msg, nil
}

func statusPtr(s models.StreamStatus) *models.StreamStatus { return &s }

func utcNow() time.Time { return time.Now().UTC() }

func uintString(v uint) string { return strconv.FormatUint(uint64(v), 10) }
