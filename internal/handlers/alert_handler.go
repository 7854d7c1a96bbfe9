package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"solaralert/internal/service"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

type AlertHandler struct {
	alerts     service.AlertService
	deliveries service.DeliveryService
	exports    service.ExportService
	logger     *slog.Logger
}

func NewAlertHandler(alerts service.AlertService, deliveries service.DeliveryService, exports service.ExportService, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		alerts:     alerts,
		deliveries: deliveries,
		exports:    exports,
		logger:     logger,
	}
}

type sendRequest struct {
	Message string `json:"message" binding:"required"`
}

// DeliveryReport handles the SMS gateway's delivery callback. The gateway
// posts form fields; JSON is accepted for manual replays.
func (h *AlertHandler) DeliveryReport(c *gin.Context) {
	var report service.DeliveryReport
	if err := c.ShouldBind(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id, status and phoneNumber are required"})
		return
	}

	err := h.deliveries.HandleReport(c.Request.Context(), report)
	switch {
	case errors.Is(err, service.ErrInvalidReport):
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and phoneNumber must not be blank"})
	case errors.Is(err, service.ErrUnknownDelivery):
		c.JSON(http.StatusNotFound, gin.H{"error": "delivery not found"})
	case err != nil:
		h.logger.Error("delivery report failed", "id", report.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record delivery report"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (h *AlertHandler) GetHistory(c *gin.Context) {
	phone := c.Param("phoneNumber")

	alerts, err := h.alerts.GetHistory(c.Request.Context(), phone)
	if err != nil {
		h.logger.Error("alert history failed", "phone", phone, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alert history"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *AlertHandler) GetRecent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecentLimit)))
	if err != nil || limit < 1 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	alerts, err := h.alerts.GetRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("recent alerts failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(alerts), "items": alerts})
}

func (h *AlertHandler) Export(c *gin.Context) {
	var from, to time.Time
	var err error

	if fromStr := c.Query("from"); fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date format, use YYYY-MM-DD"})
			return
		}
	}
	if toStr := c.Query("to"); toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date format, use YYYY-MM-DD"})
			return
		}
		// include the whole day
		to = to.Add(24*time.Hour - time.Nanosecond)
	}

	file, err := h.exports.ExportAlerts(c.Request.Context(), c.DefaultQuery("format", "csv"), from, to)
	switch {
	case errors.Is(err, service.ErrUnsupported):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported format, use 'csv' or 'xlsx'"})
		return
	case errors.Is(err, service.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("alert export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export alerts"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Send broadcasts an operator message to every subscriber.
func (h *AlertHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	result, err := h.alerts.Broadcast(c.Request.Context(), req.Message)
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert store unavailable"})
	case err != nil:
		h.logger.Error("manual alert failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send alert"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"alert_id": result.AlertID,
			"sent":     result.Sent,
			"failed":   result.Failed,
		})
	}
}

// RunPoll triggers one poll cycle outside the schedule.
func (h *AlertHandler) RunPoll(c *gin.Context) {
	result, err := h.alerts.RunPollCycle(c.Request.Context())
	switch {
	case errors.Is(err, service.ErrPollInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": result})
	default:
		c.JSON(http.StatusOK, result)
	}
}
