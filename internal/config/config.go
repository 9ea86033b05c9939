package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the easyremind application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	HTTPAddr    string `json:"http_addr"`
	DatabaseURL string `json:"database_url,omitempty"`
	RedisAddr   string `json:"redis_addr,omitempty"`

	DefaultTimezone string `json:"default_timezone"`
	NaturalDates    bool   `json:"natural_dates"`

	MaxHorizon    time.Duration `json:"-"`
	MaxHorizonStr string        `json:"max_horizon"`

	RemindCooldown       time.Duration `json:"-"`
	RemindCooldownStr    string        `json:"remind_cooldown"`
	RemindYouCooldown    time.Duration `json:"-"`
	RemindYouCooldownStr string        `json:"remindyou_cooldown"`

	ChannelWebhookURL string        `json:"channel_webhook_url"`
	DMWebhookURL      string        `json:"dm_webhook_url"`
	WebhookSecret     string        `json:"webhook_secret,omitempty"`
	WebhookTimeout    time.Duration `json:"-"`
	WebhookTimeoutStr string        `json:"webhook_timeout"`

	EventBusBufferSize int `json:"eventbus_buffer_size"`

	RecorderDrainTimeout    time.Duration `json:"-"`
	RecorderDrainTimeoutStr string        `json:"recorder_drain_timeout"`
	HTTPShutdownTimeout     time.Duration `json:"-"`
	HTTPShutdownTimeoutStr  string        `json:"http_shutdown_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`

	DigestEnabled   bool          `json:"digest_enabled"`
	DigestSchedule  string        `json:"digest_schedule"`
	DigestTimezone  string        `json:"digest_timezone"`
	DigestChannelID string        `json:"digest_channel_id,omitempty"`
	DigestWindow    time.Duration `json:"-"`
	DigestWindowStr string        `json:"digest_window"`

	ReconcileEnabled      bool          `json:"reconcile_enabled"`
	ReconcileInterval     time.Duration `json:"-"`
	ReconcileIntervalStr  string        `json:"reconcile_interval"`
	ReconcileThreshold    time.Duration `json:"-"`
	ReconcileThresholdStr string        `json:"reconcile_threshold"`
	ReconcileBatchSize    int           `json:"reconcile_batch_size"`

	AnalyticsWindow       time.Duration `json:"-"`
	AnalyticsWindowStr    string        `json:"analytics_window"`
	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		HTTPAddr:                os.Getenv("HTTP_ADDR"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		DefaultTimezone:         os.Getenv("DEFAULT_TIMEZONE"),
		NaturalDates:            os.Getenv("NATURAL_DATES") != "false",
		MaxHorizonStr:           os.Getenv("MAX_HORIZON"),
		RemindCooldownStr:       os.Getenv("REMIND_COOLDOWN"),
		RemindYouCooldownStr:    os.Getenv("REMINDYOU_COOLDOWN"),
		ChannelWebhookURL:       os.Getenv("CHANNEL_WEBHOOK_URL"),
		DMWebhookURL:            os.Getenv("DM_WEBHOOK_URL"),
		WebhookSecret:           os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeoutStr:       os.Getenv("WEBHOOK_TIMEOUT"),
		RecorderDrainTimeoutStr: os.Getenv("RECORDER_DRAIN_TIMEOUT"),
		HTTPShutdownTimeoutStr:  os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		DBConnMaxLifetimeStr:    os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:    os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		MetricsEnabled:          os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:             os.Getenv("METRICS_PATH"),
		DigestEnabled:           os.Getenv("DIGEST_ENABLED") == "true",
		DigestSchedule:          os.Getenv("DIGEST_SCHEDULE"),
		DigestTimezone:          os.Getenv("DIGEST_TIMEZONE"),
		DigestChannelID:         os.Getenv("DIGEST_CHANNEL_ID"),
		DigestWindowStr:         os.Getenv("DIGEST_WINDOW"),
		ReconcileEnabled:        os.Getenv("RECONCILE_ENABLED") == "true",
		ReconcileIntervalStr:    os.Getenv("RECONCILE_INTERVAL"),
		ReconcileThresholdStr:   os.Getenv("RECONCILE_THRESHOLD"),
		AnalyticsWindowStr:      os.Getenv("ANALYTICS_WINDOW"),
		AnalyticsRetentionStr:   os.Getenv("ANALYTICS_RETENTION"),
	}

	if bufStr := os.Getenv("EVENTBUS_BUFFER_SIZE"); bufStr != "" {
		if n, err := parseInt(bufStr); err == nil && n > 0 {
			cfg.EventBusBufferSize = n
		} else {
			log.Printf("config: invalid EVENTBUS_BUFFER_SIZE %q (must be a positive integer), using default 100", bufStr)
		}
	}
	if cfg.EventBusBufferSize == 0 {
		cfg.EventBusBufferSize = 100
	}

	if batchStr := os.Getenv("RECONCILE_BATCH_SIZE"); batchStr != "" {
		if batch, err := parseInt(batchStr); err == nil && batch > 0 {
			cfg.ReconcileBatchSize = batch
		}
	}
	if cfg.ReconcileBatchSize == 0 {
		cfg.ReconcileBatchSize = 100
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.MaxHorizonStr == "" {
		cfg.MaxHorizonStr = "720h"
	}
	if cfg.RemindCooldownStr == "" {
		cfg.RemindCooldownStr = "10s"
	}
	if cfg.RemindYouCooldownStr == "" {
		cfg.RemindYouCooldownStr = "10s"
	}
	if cfg.WebhookTimeoutStr == "" {
		cfg.WebhookTimeoutStr = "10s"
	}
	if cfg.RecorderDrainTimeoutStr == "" {
		cfg.RecorderDrainTimeoutStr = "30s"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.DigestSchedule == "" {
		cfg.DigestSchedule = "0 9 * * *"
	}
	if cfg.DigestTimezone == "" {
		cfg.DigestTimezone = cfg.DefaultTimezone
	}
	if cfg.DigestWindowStr == "" {
		cfg.DigestWindowStr = "24h"
	}
	if cfg.ReconcileIntervalStr == "" {
		cfg.ReconcileIntervalStr = "5m"
	}
	if cfg.ReconcileThresholdStr == "" {
		cfg.ReconcileThresholdStr = "1m"
	}
	if cfg.AnalyticsWindowStr == "" {
		cfg.AnalyticsWindowStr = "24h"
	}
	if cfg.AnalyticsRetentionStr == "" {
		cfg.AnalyticsRetentionStr = "720h"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.MaxHorizonStr); err == nil {
		cfg.MaxHorizon = d
	}
	if d, err := time.ParseDuration(cfg.RemindCooldownStr); err == nil {
		cfg.RemindCooldown = d
	}
	if d, err := time.ParseDuration(cfg.RemindYouCooldownStr); err == nil {
		cfg.RemindYouCooldown = d
	}
	if d, err := time.ParseDuration(cfg.WebhookTimeoutStr); err == nil {
		cfg.WebhookTimeout = d
	}
	if d, err := time.ParseDuration(cfg.RecorderDrainTimeoutStr); err == nil {
		cfg.RecorderDrainTimeout = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.DigestWindowStr); err == nil {
		cfg.DigestWindow = d
	}
	if d, err := time.ParseDuration(cfg.ReconcileIntervalStr); err == nil {
		cfg.ReconcileInterval = d
	}
	if d, err := time.ParseDuration(cfg.ReconcileThresholdStr); err == nil {
		cfg.ReconcileThreshold = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsWindowStr); err == nil {
		cfg.AnalyticsWindow = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsRetentionStr); err == nil {
		cfg.AnalyticsRetention = d
	}

	return cfg
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		HTTPAddr             string `json:"http_addr"`
		DatabaseURL          string `json:"database_url,omitempty"`
		RedisAddr            string `json:"redis_addr,omitempty"`
		DefaultTimezone      string `json:"default_timezone"`
		NaturalDates         bool   `json:"natural_dates"`
		MaxHorizon           string `json:"max_horizon"`
		RemindCooldown       string `json:"remind_cooldown"`
		RemindYouCooldown    string `json:"remindyou_cooldown"`
		ChannelWebhookURL    string `json:"channel_webhook_url"`
		DMWebhookURL         string `json:"dm_webhook_url"`
		WebhookSecret        string `json:"webhook_secret,omitempty"`
		WebhookTimeout       string `json:"webhook_timeout"`
		EventBusBufferSize   int    `json:"eventbus_buffer_size"`
		RecorderDrainTimeout string `json:"recorder_drain_timeout"`
		HTTPShutdownTimeout  string `json:"http_shutdown_timeout"`
		DBMaxOpenConns       int    `json:"db_max_open_conns"`
		DBMaxIdleConns       int    `json:"db_max_idle_conns"`
		DBConnMaxLifetime    string `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime    string `json:"db_conn_max_idle_time"`
		MetricsEnabled       bool   `json:"metrics_enabled"`
		MetricsPath          string `json:"metrics_path"`
		DigestEnabled        bool   `json:"digest_enabled"`
		DigestSchedule       string `json:"digest_schedule"`
		DigestTimezone       string `json:"digest_timezone"`
		DigestChannelID      string `json:"digest_channel_id,omitempty"`
		DigestWindow         string `json:"digest_window"`
		ReconcileEnabled     bool   `json:"reconcile_enabled"`
		ReconcileInterval    string `json:"reconcile_interval"`
		ReconcileThreshold   string `json:"reconcile_threshold"`
		ReconcileBatchSize   int    `json:"reconcile_batch_size"`
		AnalyticsWindow      string `json:"analytics_window"`
		AnalyticsRetention   string `json:"analytics_retention"`
	}{
		HTTPAddr:             c.HTTPAddr,
		DatabaseURL:          maskSecret(c.DatabaseURL),
		RedisAddr:            c.RedisAddr,
		DefaultTimezone:      c.DefaultTimezone,
		NaturalDates:         c.NaturalDates,
		MaxHorizon:           c.MaxHorizonStr,
		RemindCooldown:       c.RemindCooldownStr,
		RemindYouCooldown:    c.RemindYouCooldownStr,
		ChannelWebhookURL:    c.ChannelWebhookURL,
		DMWebhookURL:         c.DMWebhookURL,
		WebhookSecret:        maskIfSet(c.WebhookSecret),
		WebhookTimeout:       c.WebhookTimeoutStr,
		EventBusBufferSize:   c.EventBusBufferSize,
		RecorderDrainTimeout: c.RecorderDrainTimeoutStr,
		HTTPShutdownTimeout:  c.HTTPShutdownTimeoutStr,
		DBMaxOpenConns:       c.DBMaxOpenConns,
		DBMaxIdleConns:       c.DBMaxIdleConns,
		DBConnMaxLifetime:    c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:    c.DBConnMaxIdleTimeStr,
		MetricsEnabled:       c.MetricsEnabled,
		MetricsPath:          c.MetricsPath,
		DigestEnabled:        c.DigestEnabled,
		DigestSchedule:       c.DigestSchedule,
		DigestTimezone:       c.DigestTimezone,
		DigestChannelID:      c.DigestChannelID,
		DigestWindow:         c.DigestWindowStr,
		ReconcileEnabled:     c.ReconcileEnabled,
		ReconcileInterval:    c.ReconcileIntervalStr,
		ReconcileThreshold:   c.ReconcileThresholdStr,
		ReconcileBatchSize:   c.ReconcileBatchSize,
		AnalyticsWindow:      c.AnalyticsWindowStr,
		AnalyticsRetention:   c.AnalyticsRetentionStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}

func maskIfSet(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
