package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"solaralert/internal/repository"
	"solaralert/internal/utils"
)

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService interface {
	ExportAlerts(ctx context.Context, format string, from, to time.Time) (*ExportFile, error)
}

type exportService struct {
	alerts repository.AlertRepository
	clock  clockwork.Clock
}

func NewExportService(alerts repository.AlertRepository, clock clockwork.Clock) ExportService {
	return &exportService{alerts: alerts, clock: clock}
}

// ExportAlerts renders the alert ledger between from and to. A zero from
// means the last 30 days; a zero to means now.
func (s *exportService) ExportAlerts(ctx context.Context, format string, from, to time.Time) (*ExportFile, error) {
	now := s.clock.Now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}

	alerts, err := s.alerts.GetByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil, ErrNoData
	}

	timestamp := now.Format("20060102_150405")
	var buf bytes.Buffer

	switch strings.ToLower(format) {
	case "", "csv":
		if err := utils.WriteAlertsCSV(&buf, alerts); err != nil {
			return nil, err
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("alerts_export_%s.csv", timestamp),
			ContentType: "text/csv",
			Data:        buf.Bytes(),
		}, nil

	case "excel", "xlsx":
		if err := utils.WriteAlertsXLSX(&buf, alerts, now); err != nil {
			return nil, err
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("alerts_export_%s.xlsx", timestamp),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        buf.Bytes(),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
}

