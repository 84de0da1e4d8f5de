package config

import (
	"time"

	"mercator-hq/turnstile/pkg/admission"
	"mercator-hq/turnstile/pkg/admission/registry"
)

// Config is the root configuration structure for the admission gate.
type Config struct {
	// Admission contains the limiter configuration: default limits,
	// population cap, sweep interval, and per-client overrides.
	Admission AdmissionConfig `yaml:"admission"`

	// Audit contains configuration for the decision audit log.
	Audit AuditConfig `yaml:"audit"`
}

// AdmissionConfig contains configuration for the admission limiter.
type AdmissionConfig struct {
	// DefaultCapacity is the bucket capacity for clients without an override.
	// Default: 100
	DefaultCapacity int64 `yaml:"default_capacity"`

	// DefaultRefillRate is the tokens-per-second rate for clients without an
	// override. Default: 10
	DefaultRefillRate float64 `yaml:"default_refill_rate"`

	// CleanupInterval is both the idle sweep period and the idle threshold.
	// Expressed in nanoseconds in YAML. Default: 5 minutes
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// EnableMetrics toggles statistics collection. Omitting the field keeps
	// the default (enabled).
	EnableMetrics *bool `yaml:"enable_metrics"`

	// EnableLogging toggles per-decision log lines. Omitting the field keeps
	// the default (disabled).
	EnableLogging *bool `yaml:"enable_logging"`

	// MaxClients caps the number of concurrently tracked clients.
	// Default: 10000
	MaxClients int `yaml:"max_clients"`

	// LockTimeout is accepted for compatibility with the original
	// configuration surface; it has no observable effect. Default: 1ms
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// ClientOverrides maps client ids to their custom limits.
	ClientOverrides map[string]OverrideConfig `yaml:"client_overrides"`
}

// OverrideConfig is a per-client limit override.
type OverrideConfig struct {
	// Capacity is the client's bucket capacity.
	Capacity int64 `yaml:"capacity"`

	// RefillRate is the client's tokens-per-second rate.
	RefillRate float64 `yaml:"refill_rate"`
}

// AuditConfig contains configuration for the decision audit log.
type AuditConfig struct {
	// Enabled turns audit recording on. Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the store: "memory" or "sqlite". Default: "memory"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/audit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// MemoryMaxRecords bounds the memory backend. Default: 10000
	MemoryMaxRecords int `yaml:"memory_max_records"`

	// Buffer is the async recorder's channel size. Default: 1000
	Buffer int `yaml:"buffer"`

	// Retention is how long audit records are kept. 0 keeps them forever.
	// Default: 30 days
	Retention time.Duration `yaml:"retention"`

	// PruneSchedule is a cron expression for retention pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// Limits converts the override table to the registry's limit type.
func (c *AdmissionConfig) Limits() map[string]registry.Limit {
	if len(c.ClientOverrides) == 0 {
		return nil
	}
	limits := make(map[string]registry.Limit, len(c.ClientOverrides))
	for id, override := range c.ClientOverrides {
		limits[id] = registry.Limit{
			Capacity:   override.Capacity,
			RefillRate: override.RefillRate,
		}
	}
	return limits
}

// Options converts the file-level configuration into the limiter's runtime
// configuration. Logger, Registerer, and AuditRecorder are left for the
// caller to wire in.
func (c *AdmissionConfig) Options() admission.Config {
	opts := admission.Config{
		DefaultCapacity:   c.DefaultCapacity,
		DefaultRefillRate: c.DefaultRefillRate,
		CleanupInterval:   c.CleanupInterval,
		MaxClients:        c.MaxClients,
		LockTimeout:       c.LockTimeout,
		ClientLimits:      c.Limits(),
	}
	if c.EnableMetrics != nil {
		opts.EnableMetrics = *c.EnableMetrics
	}
	if c.EnableLogging != nil {
		opts.EnableLogging = *c.EnableLogging
	}
	return opts
}
