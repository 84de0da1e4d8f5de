package admission

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/turnstile/pkg/admission/registry"
	"mercator-hq/turnstile/pkg/admission/stats"
	"mercator-hq/turnstile/pkg/audit"
)

// Config contains configuration for the admission Limiter.
type Config struct {
	// DefaultCapacity is the bucket capacity for clients without an override.
	// Default: 100
	DefaultCapacity int64

	// DefaultRefillRate is the tokens-per-second rate for clients without an
	// override. Default: 10
	DefaultRefillRate float64

	// CleanupInterval is both the sweep period and the idle threshold: a
	// client untouched for longer than this interval is evicted on the next
	// sweep. Default: 5 minutes
	CleanupInterval time.Duration

	// EnableMetrics enables statistics collection (aggregate counters,
	// latency samples, Prometheus collectors). Admission decisions are
	// correct with or without it. Default: true
	EnableMetrics bool

	// EnableLogging emits one log line per decision. Default: false
	EnableLogging bool

	// MaxClients caps the number of concurrently tracked clients. Requests
	// from new clients beyond the cap are rejected. Default: 10000
	MaxClients int

	// LockTimeout is accepted for compatibility with the original
	// configuration surface but has no observable effect: no lock in this
	// design supports timed acquisition. Default: 1ms
	LockTimeout time.Duration

	// ClientLimits contains per-client limit overrides applied at
	// construction time.
	ClientLimits map[string]registry.Limit

	// Logger receives decision and sweep logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives the Prometheus collectors when EnableMetrics is
	// set. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// AuditRecorder, when non-nil, receives one audit record per decision.
	// Its lifecycle belongs to the caller.
	AuditRecorder *audit.Recorder
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{
		DefaultCapacity:   100,
		DefaultRefillRate: 10,
		CleanupInterval:   5 * time.Minute,
		EnableMetrics:     true,
		EnableLogging:     false,
		MaxClients:        10000,
		LockTimeout:       time.Millisecond,
	}
}

// validate rejects configurations that would corrupt the replenishment
// arithmetic or disable the registry entirely.
func (c *Config) validate() error {
	var errs []error

	if c.DefaultCapacity <= 0 {
		errs = append(errs, fmt.Errorf("default capacity must be positive, got %d", c.DefaultCapacity))
	}
	if c.DefaultRefillRate <= 0 {
		errs = append(errs, fmt.Errorf("default refill rate must be positive, got %v", c.DefaultRefillRate))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("cleanup interval must be positive, got %v", c.CleanupInterval))
	}
	if c.MaxClients <= 0 {
		errs = append(errs, fmt.Errorf("max clients must be positive, got %d", c.MaxClients))
	}
	if c.LockTimeout < 0 {
		errs = append(errs, fmt.Errorf("lock timeout must not be negative, got %v", c.LockTimeout))
	}
	for id, limit := range c.ClientLimits {
		if limit.Capacity <= 0 || limit.RefillRate <= 0 {
			errs = append(errs, fmt.Errorf("override for %q must have positive capacity and rate", id))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("admission: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Limiter is the admission gate facade. It composes the client registry,
// the statistics aggregator, and the idle sweeper.
type Limiter struct {
	cfg      Config
	registry *registry.Registry
	stats    *stats.Aggregator
	metrics  *Metrics
	sweeper  *sweeper
	audit    *audit.Recorder
	logger   *slog.Logger
}

// New creates a Limiter and starts its idle sweeper. The configuration is
// validated up front; a zero/negative capacity or rate is a construction
// error, never a silent corruption.
func New(cfg Config) (*Limiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "admission")

	l := &Limiter{
		cfg: cfg,
		registry: registry.New(
			registry.Limit{Capacity: cfg.DefaultCapacity, RefillRate: cfg.DefaultRefillRate},
			cfg.MaxClients,
			cfg.ClientLimits,
		),
		stats:  stats.NewAggregator(),
		audit:  cfg.AuditRecorder,
		logger: logger,
	}

	if cfg.EnableMetrics {
		l.metrics = NewMetrics(cfg.Registerer)
	}

	l.sweeper = newSweeper(cfg.CleanupInterval, func() { l.Sweep() })
	l.sweeper.start()

	return l, nil
}

// AllowRequest decides whether one request from clientID is admitted.
//
// The whole decision is timed and, when metrics are enabled, the outcome and
// latency are recorded in the aggregator. A registry at capacity rejects the
// request exactly like quota exhaustion does.
func (l *Limiter) AllowRequest(clientID string) bool {
	start := time.Now()

	allowed := l.admit(clientID, 1)
	elapsed := time.Since(start)

	if l.cfg.EnableMetrics {
		l.stats.RecordOutcome(allowed, elapsed)
		if l.metrics != nil {
			l.metrics.ObserveDecision(clientID, allowed, elapsed)
		}
	}

	if l.cfg.EnableLogging {
		verdict := "rejected"
		if allowed {
			verdict = "accepted"
		}
		l.logger.Info("admission decision", "client_id", clientID, "verdict", verdict)
	}

	if l.audit != nil {
		l.audit.Record(clientID, allowed, elapsed)
	}

	return allowed
}

// AllowRequests is the multi-token variant: it consumes n tokens in one
// decision. Unlike AllowRequest it does not update the global statistics.
func (l *Limiter) AllowRequests(clientID string, n int64) bool {
	return l.admit(clientID, n)
}

func (l *Limiter) admit(clientID string, n int64) bool {
	cell, created, err := l.registry.GetOrCreate(clientID)
	if err != nil {
		// Registry full for a new client: conflated with quota rejection at
		// the API, distinguishable only through metrics.
		if l.metrics != nil {
			l.metrics.IncRegistryFull()
		}
		return false
	}
	if created {
		l.stats.AddActiveClients(1)
		if l.metrics != nil {
			l.metrics.SetActiveClients(l.stats.ActiveClients())
		}
	}

	return cell.Consume(n)
}

// UpdateClientLimit stores a per-client override and drops the client's live
// cell so the next request starts a fresh cell with the new parameters. An
// in-flight decision against the old cell completes against stale state.
func (l *Limiter) UpdateClientLimit(clientID string, capacity int64, refillRate float64) error {
	if capacity <= 0 || refillRate <= 0 {
		return fmt.Errorf("admission: limit for %q must have positive capacity and rate", clientID)
	}

	removed := l.registry.UpdateLimit(clientID, registry.Limit{Capacity: capacity, RefillRate: refillRate})
	if removed {
		l.stats.AddActiveClients(-1)
		if l.metrics != nil {
			l.metrics.SetActiveClients(l.stats.ActiveClients())
		}
	}
	return nil
}

// ApplyOverrides replaces changed or new per-client overrides in bulk. It is
// the hook for configuration hot-reload: only clients whose limit actually
// differs from the stored override are cut over.
func (l *Limiter) ApplyOverrides(overrides map[string]registry.Limit) error {
	current := l.registry.Overrides()
	for id, limit := range overrides {
		if existing, ok := current[id]; ok && existing == limit {
			continue
		}
		if err := l.UpdateClientLimit(id, limit.Capacity, limit.RefillRate); err != nil {
			return err
		}
	}
	return nil
}

// RemoveClient evicts the client's quota cell if present. The client's
// override, if any, survives.
func (l *Limiter) RemoveClient(clientID string) {
	if l.registry.Remove(clientID) {
		l.stats.AddActiveClients(-1)
		if l.metrics != nil {
			l.metrics.SetActiveClients(l.stats.ActiveClients())
		}
	}
}

// GetStatistics returns the aggregate counters and derived rates.
func (l *Limiter) GetStatistics() Statistics {
	summary := l.stats.Snapshot()
	return Statistics{
		TotalRequests:    summary.TotalRequests,
		AcceptedRequests: summary.AcceptedRequests,
		RejectedRequests: summary.RejectedRequests,
		ActiveClients:    summary.ActiveClients,
		AverageLatency:   summary.AverageLatency,
		AcceptanceRate:   l.stats.AcceptanceRate(),
		RejectionRate:    l.stats.RejectionRate(),
	}
}

// GetClientStatistics returns the client's cell snapshot. An unseen client
// yields a default view with the process-default limits and a full,
// untouched quota rather than an error.
func (l *Limiter) GetClientStatistics(clientID string) ClientStatistics {
	if cell, ok := l.registry.Get(clientID); ok {
		snap := cell.Snapshot()
		return ClientStatistics{
			TokensRemaining:  snap.Tokens,
			Capacity:         snap.Capacity,
			RefillRate:       snap.RefillRate,
			TotalRequests:    snap.TotalRequests,
			AcceptedRequests: snap.AcceptedRequests,
			LastRefill:       snap.LastRefill,
		}
	}

	// The limits a cell would be created with: the client's override if one
	// is stored, the process defaults otherwise.
	limit := l.registry.LimitFor(clientID)
	return ClientStatistics{
		TokensRemaining: float64(limit.Capacity),
		Capacity:        limit.Capacity,
		RefillRate:      limit.RefillRate,
	}
}

// GetActiveClients returns a point-in-time snapshot of tracked client ids.
func (l *Limiter) GetActiveClients() []string {
	return l.registry.ListActive()
}

// GetLatencyPercentiles returns nearest-rank latency percentiles over the
// most recent decision samples.
func (l *Limiter) GetLatencyPercentiles() LatencyPercentiles {
	return l.stats.Percentiles()
}

// Sweep evicts every client idle for longer than the cleanup interval and
// returns the number of cells removed. The background sweeper calls this on
// its period; it is also safe to invoke directly.
func (l *Limiter) Sweep() int {
	removed := l.registry.Sweep(l.cfg.CleanupInterval)
	if removed > 0 {
		l.stats.AddActiveClients(int64(-removed))
		if l.metrics != nil {
			l.metrics.SetActiveClients(l.stats.ActiveClients())
			l.metrics.AddEvictions(removed)
		}
		l.logger.Debug("idle sweep evicted clients", "evicted", removed)
	}
	return removed
}

// Reset refills every tracked cell, zeroes all per-cell counters, and clears
// the aggregate counters and latency samples. Registry membership and
// overrides are unchanged.
func (l *Limiter) Reset() {
	l.registry.ResetAll()
	l.stats.Reset()
}

// Close stops the idle sweeper and waits for its goroutine to exit. No sweep
// runs after Close returns. Safe to call more than once.
func (l *Limiter) Close() error {
	l.sweeper.stop()
	return nil
}
