package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database:  DatabaseConfig{URL: "postgres://localhost/reminders"},
		Scheduler: SchedulerConfig{GenerationDaysAhead: 7, Timezone: "UTC"},
		Delivery:  DeliveryConfig{SendTimeout: 15 * time.Second, MaxRetries: 3},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/reminders")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.DispatchCron)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Lookback)
	assert.Equal(t, 3, cfg.Delivery.MaxRetries)
	assert.Equal(t, 15*time.Second, cfg.Delivery.SendTimeout)
	assert.False(t, cfg.StorageEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database", func(c *Config) { c.Database.URL = "" }, "database.url is required"},
		{"timeout too short", func(c *Config) { c.Delivery.SendTimeout = 5 * time.Second }, "sendtimeout"},
		{"timeout too long", func(c *Config) { c.Delivery.SendTimeout = time.Minute }, "sendtimeout"},
		{"no retries", func(c *Config) { c.Delivery.MaxRetries = 0 }, "maxretries"},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, "timezone"},
		{"sms without credentials", func(c *Config) { c.Delivery.Twilio.SMSFrom = "+15550001111" }, "twilio credentials"},
		{"short encryption key", func(c *Config) { c.Security.EncryptionKey = "c2hvcnQ=" }, "encryptionkey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
