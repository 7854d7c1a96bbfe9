package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// StatsFunc returns a named block for the system stats endpoint.
type StatsFunc func(ctx context.Context) (any, error)

type HealthHandler struct {
	checks map[string]Check
	stats  map[string]StatsFunc
	clock  clockwork.Clock
}

func NewHealthHandler(checks map[string]Check, stats map[string]StatsFunc, clock clockwork.Clock) *HealthHandler {
	return &HealthHandler{checks: checks, stats: stats, clock: clock}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	services := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			services[name] = "unavailable: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		services[name] = "connected"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}

func (h *HealthHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	out := gin.H{}
	for name, fn := range h.stats {
		value, err := fn(ctx)
		if err != nil {
			out[name] = gin.H{"error": err.Error()}
			continue
		}
		out[name] = value
	}
	c.JSON(http.StatusOK, out)
}
