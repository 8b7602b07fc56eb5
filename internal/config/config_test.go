package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("ESCALATION_SWEEP_INTERVAL_SECONDS", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SMTP_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Zero(t, cfg.Escalation.SweepInterval(), "sweep is off unless configured")
	assert.Equal(t, time.Minute, cfg.Escalation.LockTTL())
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Notification.MailEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("ESCALATION_SWEEP_INTERVAL_SECONDS", "300")
	t.Setenv("ESCALATION_SWEEP_LOCK_TTL_SECONDS", "45")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("NOTIFY_ADMIN_EMAILS", "ops@example.com")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("POSTGRES_MAX_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 5*time.Minute, cfg.Escalation.SweepInterval())
	assert.Equal(t, 45*time.Second, cfg.Escalation.LockTTL())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, []string{"ops@example.com"}, cfg.Notification.AdminEmails)
	assert.True(t, cfg.Notification.MailEnabled())
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns, "invalid numbers fall back to defaults")
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")
	_, err := Load()
	assert.Error(t, err)
}
