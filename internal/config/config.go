package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the billing service, read from the environment.
type Config struct {
	Port        int    `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWKSURL   string `mapstructure:"JWKS_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
	ReceiptBucket  string `mapstructure:"RECEIPT_BUCKET"`

	RazorpayKeyID         string `mapstructure:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret     string `mapstructure:"RAZORPAY_KEY_SECRET"`
	RazorpayWebhookSecret string `mapstructure:"RAZORPAY_WEBHOOK_SECRET"`
	RazorpayBaseURL       string `mapstructure:"RAZORPAY_BASE_URL"`

	ExpirySweepCron string `mapstructure:"EXPIRY_SWEEP_CRON"`
	ReminderCron    string `mapstructure:"REMINDER_CRON"`
	ScheduleTZ      string `mapstructure:"SCHEDULE_TZ"`
	TrialDays       int    `mapstructure:"TRIAL_DAYS"`
	RunMigrations   bool   `mapstructure:"RUN_MIGRATIONS"`

	WebhookRateLimit float64 `mapstructure:"WEBHOOK_RATE_LIMIT"`
	WebhookBurst     int     `mapstructure:"WEBHOOK_BURST"`

	// APIV1Sunset (YYYY-MM-DD) marks /v1 deprecated and announces its removal date.
	APIV1Sunset string `mapstructure:"API_V1_SUNSET"`
}

const sunsetLayout = "2006-01-02"

var keys = []string{
	"PORT", "DATABASE_URL",
	"JWT_SECRET", "JWKS_URL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_USE_SSL", "RECEIPT_BUCKET",
	"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET", "RAZORPAY_WEBHOOK_SECRET", "RAZORPAY_BASE_URL",
	"EXPIRY_SWEEP_CRON", "REMINDER_CRON", "SCHEDULE_TZ", "TRIAL_DAYS", "RUN_MIGRATIONS",
	"WEBHOOK_RATE_LIMIT", "WEBHOOK_BURST", "API_V1_SUNSET",
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", 8080)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("RECEIPT_BUCKET", "receipts")
	v.SetDefault("EXPIRY_SWEEP_CRON", "0 0 * * *")
	v.SetDefault("REMINDER_CRON", "0 9 * * *")
	v.SetDefault("SCHEDULE_TZ", "Asia/Kolkata")
	v.SetDefault("TRIAL_DAYS", 14)
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("WEBHOOK_RATE_LIMIT", 10)
	v.SetDefault("WEBHOOK_BURST", 20)
	v.AutomaticEnv()

	// Bind explicitly so keys without defaults appear in Unmarshal.
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.DatabaseURL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" && c.JWKSURL == "" {
		missing = append(missing, "JWT_SECRET or JWKS_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.TrialDays <= 0 {
		return errors.New("TRIAL_DAYS must be positive")
	}
	if c.WebhookRateLimit <= 0 || c.WebhookBurst <= 0 {
		return errors.New("WEBHOOK_RATE_LIMIT and WEBHOOK_BURST must be positive")
	}
	if c.APIV1Sunset != "" {
		if _, err := time.Parse(sunsetLayout, c.APIV1Sunset); err != nil {
			return fmt.Errorf("invalid API_V1_SUNSET %q: want YYYY-MM-DD", c.APIV1Sunset)
		}
	}
	return nil
}

// V1Sunset returns the announced removal date of /v1, if one is configured.
func (c *Config) V1Sunset() (time.Time, bool) {
	if c.APIV1Sunset == "" {
		return time.Time{}, false
	}
	sunset, err := time.Parse(sunsetLayout, c.APIV1Sunset)
	return sunset, err == nil
}

// RazorpayEnabled reports whether gateway credentials are present.
func (c *Config) RazorpayEnabled() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}

// MinioEnabled reports whether receipt storage credentials are present.
func (c *Config) MinioEnabled() bool {
	return c.MinioAccessKey != "" && c.MinioSecretKey != ""
}
