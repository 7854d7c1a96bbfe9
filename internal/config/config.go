package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"solaralert/internal/clients"
	"solaralert/pkg/database"
	"solaralert/pkg/redis"
)

type Config struct {
	App struct {
		Port            string
		Debug           bool
		FrontendURL     string
		LogLevel        string
		LogFormat       string
		ShutdownTimeout time.Duration
	}
	DB    database.Config
	Redis redis.Config
	Feeds clients.FeedConfig
	Alerts struct {
		PollInterval        time.Duration
		CooldownWindow      time.Duration
		CycleTimeout        time.Duration
		DispatchConcurrency int
	}
	SMS    clients.SMSConfig
	Email  clients.EmailConfig
	Mapbox struct {
		Token   string
		Timeout time.Duration
	}
	Kafka struct {
		Enabled    bool
		Brokers    []string
		AlertTopic string
	}
	RateLimit struct {
		RequestsPerSecond int
		Burst             int
	}
	Retention struct {
		Enabled       bool
		SnapshotTTL   time.Duration
		SweepInterval time.Duration
	}
}

// Load reads configuration from the environment. Missing values fall back to
// defaults; values that parse but make no sense are rejected.
func Load() (*Config, error) {
	cfg := &Config{}

	// App
	cfg.App.Port = getEnv("PORT", "8080")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")
	cfg.App.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.App.LogFormat = getEnv("LOG_FORMAT", "json")
	cfg.App.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	// DB
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnv("DB_NAME", "solaralert")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.Debug = cfg.App.Debug

	// Redis
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// Feeds
	cfg.Feeds.KpIndexURL = getEnv("FEED_KP_URL", "https://services.swpc.noaa.gov/json/planetary_k_index_1m.json")
	cfg.Feeds.RadioFluxURL = getEnv("FEED_RADIO_FLUX_URL", "https://services.swpc.noaa.gov/json/solar-cycle/observed-solar-cycle-indices.json")
	cfg.Feeds.XRayURL = getEnv("FEED_XRAY_URL", "https://services.swpc.noaa.gov/json/goes/primary/xrays-6-hour.json")
	cfg.Feeds.ProtonURL = getEnv("FEED_PROTON_URL", "https://services.swpc.noaa.gov/json/goes/primary/integral-protons-6-hour.json")
	cfg.Feeds.DONKIURL = getEnv("NASA_DONKI_URL", "https://api.nasa.gov/DONKI")
	cfg.Feeds.NASAAPIKey = getEnv("NASA_API_KEY", "DEMO_KEY")
	cfg.Feeds.Timeout = getEnvAsDuration("FEED_TIMEOUT", 15*time.Second)
	cfg.Feeds.DONKILookbackDays = getEnvAsInt("DONKI_LOOKBACK_DAYS", 2)

	// Alerts
	cfg.Alerts.PollInterval = getEnvAsDuration("POLL_INTERVAL", 30*time.Minute)
	cfg.Alerts.CooldownWindow = getEnvAsDuration("COOLDOWN_WINDOW", 5*time.Minute)
	cfg.Alerts.CycleTimeout = getEnvAsDuration("CYCLE_TIMEOUT", 5*time.Minute)
	cfg.Alerts.DispatchConcurrency = getEnvAsInt("DISPATCH_CONCURRENCY", 8)

	// SMS
	cfg.SMS.Username = getEnv("AFRICASTALKING_USERNAME", "sandbox")
	cfg.SMS.APIKey = getEnv("AFRICASTALKING_API_KEY", "")
	cfg.SMS.SenderID = getEnv("AFRICASTALKING_SENDER_ID", "")
	cfg.SMS.BaseURL = getEnv("AFRICASTALKING_URL", "")
	cfg.SMS.Timeout = getEnvAsDuration("SMS_TIMEOUT", 10*time.Second)
	cfg.SMS.RatePerSecond = getEnvAsInt("SMS_RATE_PER_SECOND", 5)

	// Email
	cfg.Email.Host = getEnv("SMTP_HOST", "")
	cfg.Email.Port = getEnvAsInt("SMTP_PORT", 587)
	cfg.Email.Username = getEnv("SMTP_USERNAME", "")
	cfg.Email.Password = getEnv("SMTP_PASSWORD", "")
	cfg.Email.From = getEnv("SMTP_FROM", "alerts@solaralert.local")
	cfg.Email.Timeout = getEnvAsDuration("SMTP_TIMEOUT", 15*time.Second)

	// Mapbox
	cfg.Mapbox.Token = getEnv("MAPBOX_TOKEN", "")
	cfg.Mapbox.Timeout = getEnvAsDuration("MAPBOX_TIMEOUT", 5*time.Second)

	// Kafka
	cfg.Kafka.Enabled = getEnvAsBool("KAFKA_ENABLED", false)
	cfg.Kafka.Brokers = parseList(getEnv("KAFKA_BROKERS", "localhost:9092"))
	cfg.Kafka.AlertTopic = getEnv("KAFKA_ALERT_TOPIC", "space-weather-alerts")

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = getEnvAsInt("RATE_LIMIT_RPS", 10)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 20)

	// Retention
	cfg.Retention.Enabled = getEnvAsBool("RETENTION_ENABLED", true)
	cfg.Retention.SnapshotTTL = getEnvAsDuration("SNAPSHOT_TTL", 7*24*time.Hour)
	cfg.Retention.SweepInterval = getEnvAsDuration("RETENTION_INTERVAL", 6*time.Hour)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Alerts.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if c.Alerts.CooldownWindow <= 0 {
		return errors.New("COOLDOWN_WINDOW must be positive")
	}
	if c.Alerts.CycleTimeout <= 0 {
		return errors.New("CYCLE_TIMEOUT must be positive")
	}
	if c.Alerts.DispatchConcurrency < 1 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be at least 1, got %d", c.Alerts.DispatchConcurrency)
	}
	if c.Feeds.Timeout <= 0 {
		return errors.New("FEED_TIMEOUT must be positive")
	}
	if c.SMS.APIKey != "" && c.SMS.SenderID == "" {
		return errors.New("AFRICASTALKING_SENDER_ID is required when AFRICASTALKING_API_KEY is set")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if c.Kafka.Enabled && strings.TrimSpace(c.Kafka.AlertTopic) == "" {
		return errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_ENABLED is true")
	}
	if c.Retention.Enabled && c.Retention.SweepInterval <= 0 {
		return errors.New("RETENTION_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
