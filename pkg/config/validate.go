package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "admission.default_capacity").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All validation errors are
// collected and returned together as a ValidationError; nil means valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateAdmission(&cfg.Admission)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateAdmission(cfg *AdmissionConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultCapacity <= 0 {
		errs = append(errs, FieldError{
			Field:   "admission.default_capacity",
			Message: fmt.Sprintf("must be positive, got %d", cfg.DefaultCapacity),
		})
	}
	if cfg.DefaultRefillRate <= 0 {
		errs = append(errs, FieldError{
			Field:   "admission.default_refill_rate",
			Message: fmt.Sprintf("must be positive, got %v", cfg.DefaultRefillRate),
		})
	}
	if cfg.CleanupInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "admission.cleanup_interval",
			Message: fmt.Sprintf("must be positive, got %v", cfg.CleanupInterval),
		})
	}
	if cfg.MaxClients <= 0 {
		errs = append(errs, FieldError{
			Field:   "admission.max_clients",
			Message: fmt.Sprintf("must be positive, got %d", cfg.MaxClients),
		})
	}
	if cfg.LockTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "admission.lock_timeout",
			Message: fmt.Sprintf("must not be negative, got %v", cfg.LockTimeout),
		})
	}

	for id, override := range cfg.ClientOverrides {
		if override.Capacity <= 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("admission.client_overrides.%s.capacity", id),
				Message: fmt.Sprintf("must be positive, got %d", override.Capacity),
			})
		}
		if override.RefillRate <= 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("admission.client_overrides.%s.refill_rate", id),
				Message: fmt.Sprintf("must be positive, got %v", override.RefillRate),
			})
		}
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("must be 'memory' or 'sqlite', got %q", cfg.Backend),
		})
	}

	if cfg.Backend == "sqlite" && cfg.SQLitePath == "" {
		errs = append(errs, FieldError{
			Field:   "audit.sqlite_path",
			Message: "must not be empty for the sqlite backend",
		})
	}

	if cfg.Retention < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention",
			Message: fmt.Sprintf("must not be negative, got %v", cfg.Retention),
		})
	}

	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.PruneSchedule, err),
			})
		}
	}

	return errs
}
