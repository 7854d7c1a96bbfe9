package repository

import (
	"context"
	"errors"
	"time"

	"solaralert/internal/models"

	"gorm.io/gorm"
)

type FeedSnapshotRepository interface {
	Create(ctx context.Context, snapshot *models.FeedSnapshot) error
	GetLatest(ctx context.Context, source models.FeedKind) (*models.FeedSnapshot, error)
	DeleteOld(ctx context.Context, olderThan time.Time) (int64, error)
}

type feedSnapshotRepository struct {
	db *gorm.DB
}

func NewFeedSnapshotRepository(db *gorm.DB) FeedSnapshotRepository {
	return &feedSnapshotRepository{db: db}
}

func (r *feedSnapshotRepository) Create(ctx context.Context, snapshot *models.FeedSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *feedSnapshotRepository) GetLatest(ctx context.Context, source models.FeedKind) (*models.FeedSnapshot, error) {
	var snapshot models.FeedSnapshot
	err := r.db.WithContext(ctx).
		Where("source = ?", source).
		Order("fetched_at DESC").
		First(&snapshot).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *feedSnapshotRepository) DeleteOld(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("fetched_at < ?", olderThan).
		Delete(&models.FeedSnapshot{})
	return result.RowsAffected, result.Error
}
