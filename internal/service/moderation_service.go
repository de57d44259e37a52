package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"hubmedia/internal/models"
	"hubmedia/internal/observability"
	"hubmedia/internal/repository"
	"hubmedia/internal/validation"
)

// ModerationService is the single decision point between immediate
// publication and the review queue.
type ModerationService struct {
	streams          repository.StreamRepository
	messages         repository.MessageRepository
	events           EventPublisher
	messageMaxLength int
}

// SubmitInput is a user chat submission.
type SubmitInput struct {
	StreamID     uint
	AuthorName   string
	AuthorUserID string
	AvatarURL    string
	Text         string
}

// ModerationActionInput identifies a message and the moderator acting on it.
type ModerationActionInput struct {
	MessageID uint
	ActorID   string
}

// QueueQuery selects the moderation queue of a stream.
type QueueQuery struct {
	StreamID uint
	ActorID  string
}

// NewModerationService returns a new ModerationService.
// A non-positive messageMaxLength selects validation.DefaultMessageMaxLength.
func NewModerationService(
	streams repository.StreamRepository,
	messages repository.MessageRepository,
	events EventPublisher,
	messageMaxLength int,
) *ModerationService {
	if messageMaxLength <= 0 {
		messageMaxLength = validation.DefaultMessageMaxLength
	}
	return &ModerationService{
		streams:          streams,
		messages:         messages,
		events:           publisherOrNop(events),
		messageMaxLength: messageMaxLength,
	}
}

// Submit validates and stores a user message. With moderation off it is visible
// immediately; with moderation on it waits in the queue.
func (s *ModerationService) Submit(ctx context.Context, in SubmitInput) (msg *models.Message, err error) {
	ctx, span := startSpan(ctx, "ModerationService", "Submit", in.StreamID)
	defer func() { finishSpan(ctx, span, err) }()

	text, err := validation.MessageText(in.Text, s.messageMaxLength)
	if err != nil {
		observability.ChatMessages.WithLabelValues("invalid").Inc()
		return nil, models.NewValidationError(err.Error())
	}
	author, err := validation.AuthorName(in.AuthorName)
	if err != nil {
		observability.ChatMessages.WithLabelValues("invalid").Inc()
		return nil, models.NewValidationError(err.Error())
	}
	avatar, err := validation.AvatarURL(in.AvatarURL, models.DefaultAvatarURL)
	if err != nil {
		observability.ChatMessages.WithLabelValues("invalid").Inc()
		return nil, models.NewValidationError(err.Error())
	}

	stream, err := loadStream(ctx, s.streams, in.StreamID)
	if err != nil {
		return nil, err
	}
	if !stream.IsLive {
		return nil, models.NewStreamEndedError(stream.ID)
	}

	msg = &models.Message{
		StreamID:   stream.ID,
		AuthorName: author,
		AvatarURL:  avatar,
		Text:       text,
		IsApproved: !stream.ModerationEnabled,
	}
	if uid := strings.TrimSpace(in.AuthorUserID); uid != "" {
		msg.AuthorUserID = &uid
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, models.NewStoreError(err)
	}

	ev := models.StreamEvent{
		Type:      models.EventMessageSent,
		StreamID:  stream.ID,
		Message:   msg,
		MessageID: msg.ID,
		At:        msg.CreatedAt,
	}
	if msg.IsApproved {
		observability.ChatMessages.WithLabelValues("published").Inc()
	} else {
		ev.Type = models.EventMessageQueued
		observability.ChatMessages.WithLabelValues("queued").Inc()
	}
	emit(ctx, s.events, ev)

	return msg, nil
}

// Approve makes a queued message visible. Approving an approved message is a no-op.
func (s *ModerationService) Approve(ctx context.Context, in ModerationActionInput) (msg *models.Message, err error) {
	ctx, span := startSpan(ctx, "ModerationService", "Approve", 0)
	defer func() { finishSpan(ctx, span, err) }()

	msg, err = s.loadForModeration(ctx, in)
	if err != nil {
		return nil, err
	}
	if msg.IsApproved {
		return msg, nil
	}

	changed, err := s.messages.Approve(ctx, msg.ID)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	if !changed {
		// Either approved concurrently or rejected concurrently; the stored row decides.
		current, err := s.messages.GetByID(ctx, msg.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, models.NewNotFoundError("Message", in.MessageID)
			}
			return nil, models.NewStoreError(err)
		}
		return current, nil
	}

	msg.IsApproved = true
	observability.ModerationDecisions.WithLabelValues("approved").Inc()
	slog.InfoContext(ctx, "message approved",
		slog.Uint64("stream_id", uint64(msg.StreamID)),
		slog.Uint64("message_id", uint64(msg.ID)),
	)
	emit(ctx, s.events, models.StreamEvent{
		Type:      models.EventMessageApproved,
		StreamID:  msg.StreamID,
		Message:   msg,
		MessageID: msg.ID,
	})
	return msg, nil
}

// Reject deletes a message permanently. A second reject reports NotFound.
func (s *ModerationService) Reject(ctx context.Context, in ModerationActionInput) (msg *models.Message, err error) {
	ctx, span := startSpan(ctx, "ModerationService", "Reject", 0)
	defer func() { finishSpan(ctx, span, err) }()

	msg, err = s.loadForModeration(ctx, in)
	if err != nil {
		return nil, err
	}
	if msg.IsSystem {
		return nil, models.NewValidationError("System messages cannot be rejected")
	}

	deleted, err := s.messages.Delete(ctx, msg.ID)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	if !deleted {
		return nil, models.NewNotFoundError("Message", in.MessageID)
	}

	observability.ModerationDecisions.WithLabelValues("rejected").Inc()
	slog.InfoContext(ctx, "message rejected",
		slog.Uint64("stream_id", uint64(msg.StreamID)),
		slog.Uint64("message_id", uint64(msg.ID)),
	)
	emit(ctx, s.events, models.StreamEvent{
		Type:      models.EventMessageRejected,
		StreamID:  msg.StreamID,
		MessageID: msg.ID,
	})
	return msg, nil
}

// ListQueue returns the pending messages of a stream in id order.
func (s *ModerationService) ListQueue(ctx context.Context, q QueueQuery) ([]*models.Message, error) {
	stream, err := loadStream(ctx, s.streams, q.StreamID)
	if err != nil {
		return nil, err
	}
	if err := CheckOwner(stream, q.ActorID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListPending(ctx, stream.ID)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	return msgs, nil
}

func (s *ModerationService) loadForModeration(ctx context.Context, in ModerationActionInput) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, in.MessageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewNotFoundError("Message", in.MessageID)
		}
		return nil, models.NewStoreError(err)
	}
	if strings.TrimSpace(in.ActorID) == "" {
		return msg, nil
	}

	stream, err := loadStream(ctx, s.streams, msg.StreamID)
	if err != nil {
		return nil, err
	}
	if err := CheckOwner(stream, in.ActorID); err != nil {
		return nil, err
	}
	return msg, nil
}
