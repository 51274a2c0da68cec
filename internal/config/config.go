package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	Delivery  DeliveryConfig
	Storage   StorageConfig
	Security  SecurityConfig
	Cache     CacheConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
	PublicURL       string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// SchedulerConfig holds the periodic driver configuration
type SchedulerConfig struct {
	Enabled             bool
	DispatchCron        string
	GenerationCron      string
	GenerationDaysAhead int
	Lookback            time.Duration
	BatchSize           int
	Timezone            string
}

// DeliveryConfig holds outbound delivery configuration
type DeliveryConfig struct {
	SendTimeout      time.Duration
	MaxRetries       int
	RateLimit        float64
	RateBurst        int
	BreakerFailures  uint32
	BreakerOpenFor   time.Duration
	BreakerHalfOpens uint32
	Twilio           TwilioConfig
	SMTP             SMTPConfig
	Push             PushConfig
}

// TwilioConfig holds Twilio SMS and WhatsApp configuration
type TwilioConfig struct {
	AccountSID         string
	AuthToken          string
	SMSFrom            string
	WhatsAppFrom       string
	StatusCallbackURL  string
	ValidateSignatures bool
}

// SMTPConfig holds e-mail delivery configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// PushConfig holds push gateway configuration
type PushConfig struct {
	GatewayURL string
	APIToken   string
}

// StorageConfig holds Azure Blob Storage configuration for reports
type StorageConfig struct {
	AccountName     string
	AccountKey      string
	ReportContainer string
}

// SecurityConfig holds at-rest encryption configuration
type SecurityConfig struct {
	EncryptionKey string // base64, 32 bytes decoded
}

// CacheConfig holds in-process cache configuration
type CacheConfig struct {
	ContactTTL time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from an optional .env file, environment variables and defaults
func Load() (*Config, error) {
	// A missing .env is fine; the environment is the source of truth.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.maxconns", 25)
	v.SetDefault("database.minconns", 2)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.dispatchcron", "*/5 * * * *")
	v.SetDefault("scheduler.generationcron", "0 2 * * *")
	v.SetDefault("scheduler.generationdaysahead", 7)
	v.SetDefault("scheduler.lookback", 24*time.Hour)
	v.SetDefault("scheduler.batchsize", 200)
	v.SetDefault("scheduler.timezone", "UTC")

	// Delivery defaults
	v.SetDefault("delivery.sendtimeout", 15*time.Second)
	v.SetDefault("delivery.maxretries", 3)
	v.SetDefault("delivery.ratelimit", 10.0)
	v.SetDefault("delivery.rateburst", 5)
	v.SetDefault("delivery.breakerfailures", 10)
	v.SetDefault("delivery.breakeropenfor", 20*time.Second)
	v.SetDefault("delivery.breakerhalfopens", 3)
	v.SetDefault("delivery.smtp.port", 587)

	// Storage defaults
	v.SetDefault("storage.reportcontainer", "adherence-reports")

	// Cache defaults
	v.SetDefault("cache.contactttl", 10*time.Minute)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")
	v.BindEnv("server.publicurl", "PUBLIC_URL")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")

	// Scheduler
	v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	v.BindEnv("scheduler.dispatchcron", "DISPATCH_CRON")
	v.BindEnv("scheduler.generationcron", "GENERATION_CRON")
	v.BindEnv("scheduler.generationdaysahead", "GENERATION_DAYS_AHEAD")
	v.BindEnv("scheduler.lookback", "DISPATCH_LOOKBACK")
	v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE", "TZ")

	// Delivery
	v.BindEnv("delivery.sendtimeout", "DELIVERY_SEND_TIMEOUT")
	v.BindEnv("delivery.maxretries", "DELIVERY_MAX_RETRIES")
	v.BindEnv("delivery.ratelimit", "DELIVERY_RATE_LIMIT")
	v.BindEnv("delivery.rateburst", "DELIVERY_RATE_BURST")

	// Twilio
	v.BindEnv("delivery.twilio.accountsid", "TWILIO_ACCOUNT_SID")
	v.BindEnv("delivery.twilio.authtoken", "TWILIO_AUTH_TOKEN")
	v.BindEnv("delivery.twilio.smsfrom", "TWILIO_SMS_FROM")
	v.BindEnv("delivery.twilio.whatsappfrom", "TWILIO_WHATSAPP_FROM")
	v.BindEnv("delivery.twilio.statuscallbackurl", "TWILIO_STATUS_CALLBACK_URL")
	v.BindEnv("delivery.twilio.validatesignatures", "TWILIO_VALIDATE_SIGNATURES")

	// SMTP
	v.BindEnv("delivery.smtp.host", "SMTP_HOST")
	v.BindEnv("delivery.smtp.port", "SMTP_PORT")
	v.BindEnv("delivery.smtp.username", "SMTP_USERNAME")
	v.BindEnv("delivery.smtp.password", "SMTP_PASSWORD")
	v.BindEnv("delivery.smtp.from", "SMTP_FROM")

	// Push
	v.BindEnv("delivery.push.gatewayurl", "PUSH_GATEWAY_URL")
	v.BindEnv("delivery.push.apitoken", "PUSH_API_TOKEN")

	// Azure Storage
	v.BindEnv("storage.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("storage.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("storage.reportcontainer", "AZURE_STORAGE_REPORT_CONTAINER")

	// Security
	v.BindEnv("security.encryptionkey", "ENCRYPTION_KEY")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Delivery.SendTimeout < 10*time.Second || c.Delivery.SendTimeout > 30*time.Second {
		return fmt.Errorf("delivery.sendtimeout must be between 10s and 30s, got %s", c.Delivery.SendTimeout)
	}

	if c.Delivery.MaxRetries < 1 {
		return fmt.Errorf("delivery.maxretries must be at least 1")
	}

	if c.Scheduler.GenerationDaysAhead < 1 {
		return fmt.Errorf("scheduler.generationdaysahead must be at least 1")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone is invalid: %w", err)
	}

	t := c.Delivery.Twilio
	if (t.SMSFrom != "" || t.WhatsAppFrom != "") && (t.AccountSID == "" || t.AuthToken == "") {
		return fmt.Errorf("twilio credentials are required when an sms or whatsapp sender is configured")
	}

	if c.Security.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.Security.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("security.encryptionkey must be base64 encoding of 32 bytes")
		}
	}

	return nil
}

// Location returns the scheduler time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StorageEnabled reports whether report storage credentials are present
func (c *Config) StorageEnabled() bool {
	return c.Storage.AccountName != "" && c.Storage.AccountKey != ""
}

// EncryptionKeyBytes decodes the configured encryption key, nil when unset
func (c *Config) EncryptionKeyBytes() []byte {
	if c.Security.EncryptionKey == "" {
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(c.Security.EncryptionKey)
	if err != nil {
		return nil
	}
	return key
}
