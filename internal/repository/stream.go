package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hubmedia/internal/models"

	"gorm.io/gorm"
)

const streamsTable = "streams"

// StreamRepository defines the interface for stream data operations
type StreamRepository interface {
	Create(ctx context.Context, stream *models.Stream) error
	GetByID(ctx context.Context, id uint) (*models.Stream, error)
	FindLiveByOwner(ctx context.Context, ownerID string) (*models.Stream, error)
	ListLive(ctx context.Context, limit, offset int) ([]*models.Stream, int64, error)
	ListLiveIDs(ctx context.Context) ([]uint, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Stream, error)
	MarkEnded(ctx context.Context, id uint, endedAt time.Time) (bool, error)
	SetModeration(ctx context.Context, id uint, enabled bool) error
	ApplyViewerDelta(ctx context.Context, id uint, delta int) (int, bool, error)
}

// streamRepository implements StreamRepository
type streamRepository struct {
	db *gorm.DB
}

// NewStreamRepository creates a new stream repository
func NewStreamRepository(db *gorm.DB) StreamRepository {
	return &streamRepository{db: db}
}

func (r *streamRepository) Create(ctx context.Context, stream *models.Stream) error {
	ctx, done := startOp(ctx, "Create", streamsTable)
	defer done()

	if err := r.db.WithContext(ctx).Create(stream).Error; err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("owner %s already has a live stream: %w", stream.OwnerID, ErrConflict)
		}
		return err
	}
	return nil
}

func (r *streamRepository) GetByID(ctx context.Context, id uint) (*models.Stream, error) {
	ctx, done := startOp(ctx, "GetByID", streamsTable)
	defer done()

	var stream models.Stream
	if err := r.db.WithContext(ctx).First(&stream, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &stream, nil
}

func (r *streamRepository) FindLiveByOwner(ctx context.Context, ownerID string) (*models.Stream, error) {
	ctx, done := startOp(ctx, "FindLiveByOwner", streamsTable)
	defer done()

	var stream models.Stream
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_live = ?", ownerID, true).
		Order("id DESC").
		First(&stream).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &stream, nil
}

func (r *streamRepository) ListLive(ctx context.Context, limit, offset int) ([]*models.Stream, int64, error) {
	ctx, done := startOp(ctx, "ListLive", streamsTable)
	defer done()

	var streams []*models.Stream
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Stream{}).Where("is_live = ?", true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("viewer_count DESC, started_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&streams).Error
	return streams, total, err
}

func (r *streamRepository) ListLiveIDs(ctx context.Context) ([]uint, error) {
	ctx, done := startOp(ctx, "ListLiveIDs", streamsTable)
	defer done()

	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("is_live = ?", true).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *streamRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Stream, error) {
	ctx, done := startOp(ctx, "ListByOwner", streamsTable)
	defer done()

	var streams []*models.Stream
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&streams).Error
	return streams, err
}

// MarkEnded flips a live stream to ended in one conditional update.
// It reports false when the stream was not live, which includes unknown ids.
func (r *streamRepository) MarkEnded(ctx context.Context, id uint, endedAt time.Time) (bool, error) {
	ctx, done := startOp(ctx, "MarkEnded", streamsTable)
	defer done()

	result := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("id = ? AND is_live = ?", id, true).
		Updates(map[string]interface{}{
			"is_live":      false,
			"ended_at":     endedAt,
			"viewer_count": 0,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *streamRepository) SetModeration(ctx context.Context, id uint, enabled bool) error {
	ctx, done := startOp(ctx, "SetModeration", streamsTable)
	defer done()

	result := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("id = ?", id).
		Update("moderation_enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyViewerDelta adds delta to a live stream's viewer count, flooring at zero.
// It returns the new count and false when the stream is unknown or not live.
func (r *streamRepository) ApplyViewerDelta(ctx context.Context, id uint, delta int) (int, bool, error) {
	ctx, done := startOp(ctx, "ApplyViewerDelta", streamsTable)
	defer done()

	result := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("id = ? AND is_live = ?", id, true).
		Update("viewer_count", gorm.Expr("CASE WHEN viewer_count + ? < 0 THEN 0 ELSE viewer_count + ? END", delta, delta))
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}

	var stream models.Stream
	if err := r.db.WithContext(ctx).Select("id", "viewer_count").First(&stream, id).Error; err != nil {
		return 0, false, err
	}
	return stream.ViewerCount, true, nil
}
