package service

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"hubmedia/internal/chatter"
	"hubmedia/internal/models"
	"hubmedia/internal/repository"
)

const (
	// MaxFeedLimit caps a single feed page.
	MaxFeedLimit = 500
)

// ChatService is the entry point for sending and reading chat.
type ChatService struct {
	moderation *ModerationService
	streams    repository.StreamRepository
	messages   repository.MessageRepository
	events     EventPublisher

	mu  sync.Mutex
	rng *rand.Rand
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	StreamID     uint
	Author       string
	AuthorUserID string
	AvatarURL    string
	Text         string
}

// FeedQuery selects approved messages. AfterID is an exclusive cursor held by
// the client; a zero Limit returns everything after the cursor.
type FeedQuery struct {
	StreamID uint
	AfterID  uint
	Limit    int
}

// NewChatService returns a new ChatService.
func NewChatService(
	moderation *ModerationService,
	streams repository.StreamRepository,
	messages repository.MessageRepository,
	events EventPublisher,
) *ChatService {
	return &ChatService{
		moderation: moderation,
		streams:    streams,
		messages:   messages,
		events:     publisherOrNop(events),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Send routes a user message through the moderation gate.
func (s *ChatService) Send(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	return s.moderation.Submit(ctx, SubmitInput{
		StreamID:     in.StreamID,
		AuthorName:   in.Author,
		AuthorUserID: in.AuthorUserID,
		AvatarURL:    in.AvatarURL,
		Text:         in.Text,
	})
}

// SendSystemMessage posts an approved lifecycle announcement, bypassing the gate.
// It is accepted on ended streams.
func (s *ChatService) SendSystemMessage(ctx context.Context, streamID uint, text string) (msg *models.Message, err error) {
	ctx, span := startSpan(ctx, "ChatService", "SendSystemMessage", streamID)
	defer func() { finishSpan(ctx, span, err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("message text cannot be empty")
	}
	if _, err := loadStream(ctx, s.streams, streamID); err != nil {
		return nil, err
	}
	return postSystemMessage(ctx, s.messages, s.events, streamID, text)
}

// GetVisibleFeed returns approved messages in id order. It has no side effects.
func (s *ChatService) GetVisibleFeed(ctx context.Context, q FeedQuery) ([]*models.Message, error) {
	limit := q.Limit
	if limit < 0 {
		limit = 0
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}
	msgs, err := s.messages.ListVisible(ctx, q.StreamID, q.AfterID, limit)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return msgs, nil
}

// Simulate sends one canned viewer message through Send, so moderation applies.
func (s *ChatService) Simulate(ctx context.Context, streamID uint) (*models.Message, error) {
	s.mu.Lock()
	line := chatter.Random(s.rng)
	s.mu.Unlock()

	return s.Send(ctx, SendMessageInput{
		StreamID:  streamID,
		Author:    line.Name,
		AvatarURL: line.Avatar,
		Text:      line.Text,
	})
}
