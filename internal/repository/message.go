package repository

import (
	"context"
	"errors"

	"hubmedia/internal/models"

	"gorm.io/gorm"
)

const messagesTable = "stream_messages"

// MessageRepository is the append-only message store of every stream.
// All list queries are ordered by id ascending.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	ListVisible(ctx context.Context, streamID, afterID uint, limit int) ([]*models.Message, error)
	ListPending(ctx context.Context, streamID uint) ([]*models.Message, error)
	CountPending(ctx context.Context, streamID uint) (int64, error)
	Approve(ctx context.Context, id uint) (bool, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	ctx, done := startOp(ctx, "Create", messagesTable)
	defer done()

	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	ctx, done := startOp(ctx, "GetByID", messagesTable)
	defer done()

	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// ListVisible returns approved messages with id > afterID. A limit <= 0 means no limit.
func (r *messageRepository) ListVisible(ctx context.Context, streamID, afterID uint, limit int) ([]*models.Message, error) {
	ctx, done := startOp(ctx, "ListVisible", messagesTable)
	defer done()

	query := r.db.WithContext(ctx).
		Where("stream_id = ? AND is_approved = ?", streamID, true)
	if afterID > 0 {
		query = query.Where("id > ?", afterID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var msgs []*models.Message
	err := query.Order("id ASC").Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) ListPending(ctx context.Context, streamID uint) ([]*models.Message, error) {
	ctx, done := startOp(ctx, "ListPending", messagesTable)
	defer done()

	var msgs []*models.Message
	err := r.db.WithContext(ctx).
		Where("stream_id = ? AND is_approved = ?", streamID, false).
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) CountPending(ctx context.Context, streamID uint) (int64, error) {
	ctx, done := startOp(ctx, "CountPending", messagesTable)
	defer done()

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("stream_id = ? AND is_approved = ?", streamID, false).
		Count(&count).Error
	return count, err
}

// Approve flips a pending message to approved. It reports false when no pending
// row matched, either because the message is gone or was already approved.
func (r *messageRepository) Approve(ctx context.Context, id uint) (bool, error) {
	ctx, done := startOp(ctx, "Approve", messagesTable)
	defer done()

	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND is_approved = ?", id, false).
		Update("is_approved", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Delete removes a user message permanently. System messages are never deleted.
func (r *messageRepository) Delete(ctx context.Context, id uint) (bool, error) {
	ctx, done := startOp(ctx, "Delete", messagesTable)
	defer done()

	result := r.db.WithContext(ctx).
		Where("id = ? AND is_system = ?", id, false).
		Delete(&models.Message{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
