package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 30*time.Minute, cfg.Alerts.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Alerts.CooldownWindow)
	assert.Equal(t, 8, cfg.Alerts.DispatchConcurrency)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Contains(t, cfg.Feeds.KpIndexURL, "planetary_k_index_1m.json")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "10m")
	t.Setenv("DISPATCH_CONCURRENCY", "3")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Alerts.PollInterval)
	assert.Equal(t, 3, cfg.Alerts.DispatchConcurrency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.DB.Debug)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("REDIS_DB", "x")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Alerts.PollInterval)
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"zero concurrency", map[string]string{"DISPATCH_CONCURRENCY": "0"}, "DISPATCH_CONCURRENCY"},
		{"negative poll interval", map[string]string{"POLL_INTERVAL": "-1m"}, "POLL_INTERVAL"},
		{"sender id required", map[string]string{"AFRICASTALKING_API_KEY": "key"}, "AFRICASTALKING_SENDER_ID"},
		{"kafka topic required", map[string]string{"KAFKA_ENABLED": "true", "KAFKA_ALERT_TOPIC": " "}, "KAFKA_ALERT_TOPIC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
