package config

import "time"

// Default values for configuration fields.
const (
	// Admission defaults
	DefaultCapacity        = int64(100)
	DefaultRefillRate      = 10.0
	DefaultCleanupInterval = 5 * time.Minute
	DefaultMaxClients      = 10000
	DefaultLockTimeout     = time.Millisecond
	DefaultEnableMetrics   = true
	DefaultEnableLogging   = false

	// Audit defaults
	DefaultAuditBackend          = "memory"
	DefaultAuditSQLitePath       = "data/audit.db"
	DefaultAuditMemoryMaxRecords = 10000
	DefaultAuditBuffer           = 1000
	DefaultAuditRetention        = 30 * 24 * time.Hour
	DefaultAuditPruneSchedule    = "0 3 * * *"
)

// ApplyDefaults fills in default values for fields left at their zero value.
// Boolean toggles use pointers so that an explicit false survives.
func ApplyDefaults(cfg *Config) {
	a := &cfg.Admission
	if a.DefaultCapacity == 0 {
		a.DefaultCapacity = DefaultCapacity
	}
	if a.DefaultRefillRate == 0 {
		a.DefaultRefillRate = DefaultRefillRate
	}
	if a.CleanupInterval == 0 {
		a.CleanupInterval = DefaultCleanupInterval
	}
	if a.MaxClients == 0 {
		a.MaxClients = DefaultMaxClients
	}
	if a.LockTimeout == 0 {
		a.LockTimeout = DefaultLockTimeout
	}
	if a.EnableMetrics == nil {
		enabled := DefaultEnableMetrics
		a.EnableMetrics = &enabled
	}
	if a.EnableLogging == nil {
		enabled := DefaultEnableLogging
		a.EnableLogging = &enabled
	}

	au := &cfg.Audit
	if au.Backend == "" {
		au.Backend = DefaultAuditBackend
	}
	if au.SQLitePath == "" {
		au.SQLitePath = DefaultAuditSQLitePath
	}
	if au.MemoryMaxRecords == 0 {
		au.MemoryMaxRecords = DefaultAuditMemoryMaxRecords
	}
	if au.Buffer == 0 {
		au.Buffer = DefaultAuditBuffer
	}
	if au.Retention == 0 {
		au.Retention = DefaultAuditRetention
	}
	if au.PruneSchedule == "" {
		au.PruneSchedule = DefaultAuditPruneSchedule
	}
}
