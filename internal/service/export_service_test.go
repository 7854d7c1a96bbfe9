package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solaralert/internal/models"
)

func TestExportAlerts(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC))
	repo := &fakeAlertRepo{}
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Alert{
		Type: models.EventGeomagnetic, Level: models.LevelCritical, Message: "storm", SentAt: clock.Now().AddDate(0, 0, -2),
	}))
	require.NoError(t, repo.Create(ctx, &models.Alert{
		Type: models.EventCME, Level: models.LevelWarning, Message: "old", SentAt: clock.Now().AddDate(0, 0, -45),
	}))
	svc := NewExportService(repo, clock)

	t.Run("csv defaults to last 30 days", func(t *testing.T) {
		file, err := svc.ExportAlerts(ctx, "", time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, "alerts_export_20260310_083000.csv", file.Filename)
		assert.Equal(t, "text/csv", file.ContentType)
		assert.Contains(t, string(file.Data), "storm")
		assert.NotContains(t, string(file.Data), "old")
		assert.Equal(t, 2, strings.Count(strings.TrimSpace(string(file.Data)), "\n")+1)
	})

	t.Run("xlsx", func(t *testing.T) {
		file, err := svc.ExportAlerts(ctx, "Excel", time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(file.Filename, ".xlsx"))
		assert.NotEmpty(t, file.Data)
	})

	t.Run("explicit range", func(t *testing.T) {
		from := clock.Now().AddDate(0, 0, -60)
		file, err := svc.ExportAlerts(ctx, "csv", from, clock.Now())
		require.NoError(t, err)
		assert.Contains(t, string(file.Data), "old")
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := svc.ExportAlerts(ctx, "pdf", time.Time{}, time.Time{})
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("empty range", func(t *testing.T) {
		from := clock.Now().AddDate(1, 0, 0)
		_, err := svc.ExportAlerts(ctx, "csv", from, from.Add(time.Hour))
		assert.ErrorIs(t, err, ErrNoData)
	})
}
