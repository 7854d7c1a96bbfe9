package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solaralert/internal/models"

	"gorm.io/gorm"
)

type AlertRepository interface {
	FindRecentByType(ctx context.Context, eventType models.EventType, since time.Time) (*models.Alert, error)
	Create(ctx context.Context, alert *models.Alert) error
	CreateUnlessRecent(ctx context.Context, alert *models.Alert, since time.Time) (*models.Alert, bool, error)
	GetByID(ctx context.Context, id uint) (*models.Alert, error)
	FindByUser(ctx context.Context, userID uint, phone string, limit int) ([]models.Alert, error)
	GetByDateRange(ctx context.Context, from, to time.Time) ([]models.Alert, error)
	FindLatest(ctx context.Context, limit int) ([]models.Alert, error)
}

type alertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// FindRecentByType returns the newest alert of the type sent after since,
// or nil when there is none.
func (r *alertRepository) FindRecentByType(ctx context.Context, eventType models.EventType, since time.Time) (*models.Alert, error) {
	return findRecent(r.db.WithContext(ctx), eventType, since)
}

func findRecent(db *gorm.DB, eventType models.EventType, since time.Time) (*models.Alert, error) {
	var alert models.Alert
	err := db.
		Where("type = ? AND sent_at > ?", eventType, since).
		Order("sent_at DESC").
		First(&alert).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) Create(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// CreateUnlessRecent inserts alert unless an alert of the same type was sent
// after since. The check and the insert run under a transaction-scoped
// advisory lock keyed by type, so concurrent writers serialise per type.
// It returns the stored row and whether it was created by this call.
func (r *alertRepository) CreateUnlessRecent(ctx context.Context, alert *models.Alert, since time.Time) (*models.Alert, bool, error) {
	var (
		stored  *models.Alert
		created bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", string(alert.Type)).Error; err != nil {
			return fmt.Errorf("acquire type lock: %w", err)
		}

		existing, err := findRecent(tx, alert.Type, since)
		if err != nil {
			return err
		}
		if existing != nil {
			stored = existing
			return nil
		}

		if err := tx.Create(alert).Error; err != nil {
			return err
		}
		stored, created = alert, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *alertRepository) GetByID(ctx context.Context, id uint) (*models.Alert, error) {
	var alert models.Alert
	err := r.db.WithContext(ctx).First(&alert, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindByUser returns the newest alerts addressed to the user directly or
// delivered to their phone number.
func (r *alertRepository) FindByUser(ctx context.Context, userID uint, phone string, limit int) ([]models.Alert, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}

	delivered := r.db.
		Model(&models.AlertDelivery{}).
		Select("alert_id").
		Where("phone_number = ?", phone)

	var alerts []models.Alert
	err := r.db.WithContext(ctx).
		Where("user_id = ? OR id IN (?)", userID, delivered).
		Order("sent_at DESC").
		Limit(limit).
		Find(&alerts).
		Error
	return alerts, err
}

func (r *alertRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]models.Alert, error) {
	var alerts []models.Alert
	err := r.db.WithContext(ctx).
		Where("sent_at BETWEEN ? AND ?", from, to).
		Order("sent_at DESC").
		Find(&alerts).
		Error
	return alerts, err
}

func (r *alertRepository) FindLatest(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}

	var alerts []models.Alert
	err := r.db.WithContext(ctx).
		Order("sent_at DESC").
		Limit(limit).
		Find(&alerts).
		Error
	return alerts, err
}
