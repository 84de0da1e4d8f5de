package admission

import (
	"time"

	"mercator-hq/turnstile/pkg/admission/stats"
)

// Statistics is the aggregate view returned by Limiter.GetStatistics.
type Statistics struct {
	// TotalRequests is the number of decisions recorded process-wide.
	TotalRequests uint64

	// AcceptedRequests is the number of admitted requests.
	AcceptedRequests uint64

	// RejectedRequests is the number of rejected requests.
	RejectedRequests uint64

	// ActiveClients is the number of clients with a live quota cell.
	ActiveClients int64

	// AverageLatency is the mean decision latency.
	AverageLatency time.Duration

	// AcceptanceRate is the percentage of requests admitted (0-100).
	AcceptanceRate float64

	// RejectionRate is the percentage of requests rejected (0-100).
	RejectionRate float64
}

// ClientStatistics is the per-client view returned by
// Limiter.GetClientStatistics.
type ClientStatistics struct {
	// TokensRemaining is the current token level after a refill pass.
	TokensRemaining float64

	// Capacity is the cell's maximum token count.
	Capacity int64

	// RefillRate is the cell's tokens-per-second rate.
	RefillRate float64

	// TotalRequests is the number of consume calls against this cell.
	TotalRequests uint64

	// AcceptedRequests is the number of admitted consume calls.
	AcceptedRequests uint64

	// LastRefill is when the cell last replenished.
	LastRefill time.Time
}

// LatencyPercentiles re-exports the aggregator's percentile view so callers
// of the facade don't need to import the stats package.
type LatencyPercentiles = stats.LatencyPercentiles
