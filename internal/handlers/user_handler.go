package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"solaralert/internal/clients"
	"solaralert/internal/repository"
	"solaralert/internal/service"
)

type UserHandler struct {
	subscribers service.SubscriberService
	logger      *slog.Logger
}

func NewUserHandler(subscribers service.SubscriberService, logger *slog.Logger) *UserHandler {
	return &UserHandler{subscribers: subscribers, logger: logger}
}

type unsubscribeRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

func (h *UserHandler) Subscribe(c *gin.Context) {
	var req service.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phoneNumber is required"})
		return
	}

	sub, err := h.subscribers.Subscribe(c.Request.Context(), req)
	switch {
	case errors.Is(err, clients.ErrInvalidPhoneNumber), errors.Is(err, service.ErrLocationRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Error("subscribe failed", "phone", req.PhoneNumber, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Subscribed", "user": sub})
	}
}

func (h *UserHandler) Unsubscribe(c *gin.Context) {
	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phoneNumber is required"})
		return
	}

	err := h.subscribers.Unsubscribe(c.Request.Context(), req.PhoneNumber)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case err != nil:
		h.logger.Error("unsubscribe failed", "phone", req.PhoneNumber, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unsubscribe"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed"})
	}
}

// USSD answers the gateway's session callback in plain text.
func (h *UserHandler) USSD(c *gin.Context) {
	var req service.USSDRequest
	if err := c.ShouldBind(&req); err != nil || req.SessionID == "" || req.PhoneNumber == "" {
		c.String(http.StatusOK, "END Invalid request.")
		return
	}
	c.String(http.StatusOK, h.subscribers.HandleUSSD(c.Request.Context(), req))
}
