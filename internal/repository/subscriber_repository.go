package repository

import (
	"context"
	"errors"

	"solaralert/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriberRepository interface {
	FindSubscribed(ctx context.Context) ([]models.Subscriber, error)
	FindByPhone(ctx context.Context, phone string) (*models.Subscriber, error)
	Upsert(ctx context.Context, subscriber *models.Subscriber) error
	SetSubscribed(ctx context.Context, phone string, subscribed bool) error
	CountSubscribed(ctx context.Context) (int64, error)
}

type subscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

func (r *subscriberRepository) FindSubscribed(ctx context.Context) ([]models.Subscriber, error) {
	var subscribers []models.Subscriber
	err := r.db.WithContext(ctx).
		Where("subscribed = ?", true).
		Order("id").
		Find(&subscribers).
		Error
	return subscribers, err
}

func (r *subscriberRepository) FindByPhone(ctx context.Context, phone string) (*models.Subscriber, error) {
	var subscriber models.Subscriber
	err := r.db.WithContext(ctx).
		Where("phone_number = ?", phone).
		First(&subscriber).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &subscriber, nil
}

// Upsert inserts the subscriber or replaces the profile of the existing row
// with the same phone number.
func (r *subscriberRepository) Upsert(ctx context.Context, subscriber *models.Subscriber) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "phone_number"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"location", "role", "email", "subscribed", "preferences", "updated_at",
			}),
		}).
		Create(subscriber).
		Error
}

func (r *subscriberRepository) SetSubscribed(ctx context.Context, phone string, subscribed bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.Subscriber{}).
		Where("phone_number = ?", phone).
		Update("subscribed", subscribed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *subscriberRepository) CountSubscribed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscriber{}).
		Where("subscribed = ?", true).
		Count(&count).
		Error
	return count, err
}
