package handlers

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"solaralert/internal/middleware"
)

type RouterConfig struct {
	Debug             bool
	FrontendURL       string
	RequestsPerSecond int
	Burst             int
}

type Handlers struct {
	Alerts *AlertHandler
	Users  *UserHandler
	Health *HealthHandler
}

// NewRouter wires middleware and routes. Rate limiting is off in debug mode.
func NewRouter(cfg RouterConfig, h Handlers, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	origins := []string{"http://localhost:3000"}
	if cfg.FrontendURL != "" && cfg.FrontendURL != origins[0] {
		origins = append(origins, cfg.FrontendURL)
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if !cfg.Debug {
		limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		r.Use(middleware.RateLimitMiddleware(limiter, logger))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.GET("/health", h.Health.Health)
	api.GET("/system/stats", h.Health.Stats)

	alerts := api.Group("/alerts")
	alerts.POST("/delivery-report", h.Alerts.DeliveryReport)
	alerts.GET("/history/:phoneNumber", h.Alerts.GetHistory)
	alerts.GET("/recent", h.Alerts.GetRecent)
	alerts.GET("/export", h.Alerts.Export)
	alerts.POST("/send", h.Alerts.Send)

	users := api.Group("/users")
	users.POST("/ussd", h.Users.USSD)
	signup := users.Group("", middleware.IPRateLimitMiddleware(
		middleware.NewIPRateLimiter(rate.Limit(1), 5),
	))
	signup.POST("/subscribe", h.Users.Subscribe)
	signup.POST("/unsubscribe", h.Users.Unsubscribe)

	if cfg.Debug {
		api.POST("/refresh/poll", h.Alerts.RunPoll)
	}

	return r
}
