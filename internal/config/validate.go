package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// Both webhook URLs are required: the notifier cannot deliver
	// without them.
	if cfg.ChannelWebhookURL == "" {
		errs = append(errs, ValidationError{
			Field:   "CHANNEL_WEBHOOK_URL",
			Message: "required",
		})
	} else if err := validateWebhookURL(cfg.ChannelWebhookURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "CHANNEL_WEBHOOK_URL",
			Message: err.Error(),
		})
	}

	if cfg.DMWebhookURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DM_WEBHOOK_URL",
			Message: "required",
		})
	} else if err := validateWebhookURL(cfg.DMWebhookURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "DM_WEBHOOK_URL",
			Message: err.Error(),
		})
	}

	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		errs = append(errs, ValidationError{
			Field:   "DEFAULT_TIMEZONE",
			Message: fmt.Sprintf("invalid timezone: %v", err),
		})
	}

	errs = appendDurationErrors(errs, "MAX_HORIZON", cfg.MaxHorizonStr, true)
	errs = appendDurationErrors(errs, "REMIND_COOLDOWN", cfg.RemindCooldownStr, false)
	errs = appendDurationErrors(errs, "REMINDYOU_COOLDOWN", cfg.RemindYouCooldownStr, false)
	errs = appendDurationErrors(errs, "WEBHOOK_TIMEOUT", cfg.WebhookTimeoutStr, true)
	errs = appendDurationErrors(errs, "RECORDER_DRAIN_TIMEOUT", cfg.RecorderDrainTimeoutStr, true)
	errs = appendDurationErrors(errs, "HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr, true)

	if cfg.DigestEnabled {
		if cfg.DatabaseURL == "" {
			errs = append(errs, ValidationError{
				Field:   "DIGEST_ENABLED",
				Message: "digest requires DATABASE_URL",
			})
		}
		if cfg.DigestChannelID == "" {
			errs = append(errs, ValidationError{
				Field:   "DIGEST_CHANNEL_ID",
				Message: "required when digest is enabled",
			})
		}
		if err := validateCron(cfg.DigestSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "DIGEST_SCHEDULE",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
		if _, err := time.LoadLocation(cfg.DigestTimezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "DIGEST_TIMEZONE",
				Message: fmt.Sprintf("invalid timezone: %v", err),
			})
		}
	}

	if cfg.ReconcileEnabled {
		if cfg.DatabaseURL == "" {
			errs = append(errs, ValidationError{
				Field:   "RECONCILE_ENABLED",
				Message: "reconciliation requires DATABASE_URL",
			})
		}
		errs = appendDurationErrors(errs, "RECONCILE_INTERVAL", cfg.ReconcileIntervalStr, true)
		errs = appendDurationErrors(errs, "RECONCILE_THRESHOLD", cfg.ReconcileThresholdStr, true)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func appendDurationErrors(errs ValidationErrors, field, value string, requirePositive bool) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}
	if requirePositive && d <= 0 {
		return append(errs, ValidationError{
			Field:   field,
			Message: "must be positive",
		})
	}
	if !requirePositive && d < 0 {
		return append(errs, ValidationError{
			Field:   field,
			Message: "must not be negative",
		})
	}
	return errs
}

func validateCron(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(expr)
	return err
}

func validateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
