package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"solaralert/internal/repository"
)

// DeliveryReport is the SMS gateway callback for one message.
type DeliveryReport struct {
	ID            string `form:"id" json:"id" binding:"required"`
	Status        string `form:"status" json:"status" binding:"required"`
	PhoneNumber   string `form:"phoneNumber" json:"phoneNumber" binding:"required"`
	FailureReason string `form:"failureReason" json:"failureReason"`
}

type DeliveryService interface {
	HandleReport(ctx context.Context, report DeliveryReport) error
}

type deliveryService struct {
	repo   repository.DeliveryRepository
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewDeliveryService(repo repository.DeliveryRepository, clock clockwork.Clock, logger *slog.Logger) DeliveryService {
	return &deliveryService{repo: repo, clock: clock, logger: logger}
}

// HandleReport corrects the status of the delivery sent under the gateway's
// message id to the reported phone number.
func (s *deliveryService) HandleReport(ctx context.Context, report DeliveryReport) error {
	id := strings.TrimSpace(report.ID)
	phone := strings.TrimSpace(report.PhoneNumber)
	if id == "" || phone == "" {
		return ErrInvalidReport
	}

	err := s.repo.UpdateStatusByProviderID(ctx, id, phone, report.Status, report.FailureReason, s.clock.Now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("delivery report for unknown message", "id", id, "phone", phone)
		return fmt.Errorf("%w: %s", ErrUnknownDelivery, id)
	}
	if err != nil {
		return fmt.Errorf("update delivery %s: %w", id, err)
	}

	s.logger.Info("delivery report received", "id", id, "status", report.Status, "phone", phone)
	return nil
}
