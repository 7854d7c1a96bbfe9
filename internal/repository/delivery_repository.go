package repository

import (
	"context"
	"time"

	"solaralert/internal/models"

	"gorm.io/gorm"
)

type DeliveryRepository interface {
	Create(ctx context.Context, delivery *models.AlertDelivery) error
	UpdateStatusByProviderID(ctx context.Context, providerID, phone, status, failureReason string, receivedAt time.Time) error
	FindByAlert(ctx context.Context, alertID uint) ([]models.AlertDelivery, error)
}

type deliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

func (r *deliveryRepository) Create(ctx context.Context, delivery *models.AlertDelivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

// UpdateStatusByProviderID returns ErrNotFound for a blank id so that rows
// without a gateway message id are never matched.
func (r *deliveryRepository) UpdateStatusByProviderID(ctx context.Context, providerID, phone, status, failureReason string, receivedAt time.Time) error {
	if providerID == "" {
		return ErrNotFound
	}
	result := r.db.WithContext(ctx).
		Model(&models.AlertDelivery{}).
		Where("provider_message_id = ? AND phone_number = ?", providerID, phone).
		Updates(map[string]interface{}{
			"status":         status,
			"failure_reason": failureReason,
			"received_at":    receivedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *deliveryRepository) FindByAlert(ctx context.Context, alertID uint) ([]models.AlertDelivery, error) {
	var deliveries []models.AlertDelivery
	err := r.db.WithContext(ctx).
		Where("alert_id = ?", alertID).
		Order("id").
		Find(&deliveries).
		Error
	return deliveries, err
}
