package admission

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/turnstile/pkg/admission/registry"
)

// testConfig returns a configuration with an isolated Prometheus registry so
// tests never collide on collector registration.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Registerer = prometheus.NewRegistry()
	return cfg
}

func newTestLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.DefaultCapacity = 0 }},
		{"negative rate", func(c *Config) { c.DefaultRefillRate = -1 }},
		{"zero cleanup interval", func(c *Config) { c.CleanupInterval = 0 }},
		{"zero max clients", func(c *Config) { c.MaxClients = 0 }},
		{"negative lock timeout", func(c *Config) { c.LockTimeout = -time.Second }},
		{"bad override", func(c *Config) {
			c.ClientLimits = map[string]registry.Limit{"x": {Capacity: -1, RefillRate: 1}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("Expected construction error")
			}
		})
	}
}

func TestAllowRequest_QuotaExhaustion(t *testing.T) {
	cfg := testConfig()
	// A rate this small replenishes nothing observable within the test.
	cfg.ClientLimits = map[string]registry.Limit{
		"x": {Capacity: 5, RefillRate: 0.0001},
	}
	l := newTestLimiter(t, cfg)

	for i := 0; i < 5; i++ {
		if !l.AllowRequest("x") {
			t.Fatalf("Expected request %d to be accepted", i+1)
		}
	}
	if l.AllowRequest("x") {
		t.Error("Expected 6th request to be rejected")
	}

	cs := l.GetClientStatistics("x")
	if cs.TokensRemaining >= 1 {
		t.Errorf("Expected tokens exhausted, got %v", cs.TokensRemaining)
	}
	if cs.TotalRequests != 6 {
		t.Errorf("Expected 6 total requests, got %d", cs.TotalRequests)
	}
	if cs.AcceptedRequests != 5 {
		t.Errorf("Expected 5 accepted requests, got %d", cs.AcceptedRequests)
	}
	if cs.Capacity != 5 {
		t.Errorf("Expected capacity 5, got %d", cs.Capacity)
	}
}

func TestAllowRequest_ClientIsolation(t *testing.T) {
	cfg := testConfig()
	cfg.ClientLimits = map[string]registry.Limit{
		"small": {Capacity: 1, RefillRate: 0.0001},
	}
	l := newTestLimiter(t, cfg)

	if !l.AllowRequest("small") {
		t.Fatal("Expected first request to be accepted")
	}
	if l.AllowRequest("small") {
		t.Error("Expected small client to be exhausted")
	}

	// Another client's quota is untouched by the first client's exhaustion.
	if !l.AllowRequest("other") {
		t.Error("Expected other client to be accepted")
	}
}

func TestAllowRequest_RegistryFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxClients = 2
	l := newTestLimiter(t, cfg)

	if !l.AllowRequest("a") || !l.AllowRequest("b") {
		t.Fatal("Expected first two clients to be accepted")
	}
	// Indistinguishable from quota exhaustion at the API.
	if l.AllowRequest("c") {
		t.Error("Expected new client beyond the population cap to be rejected")
	}

	if got := len(l.GetActiveClients()); got != 2 {
		t.Errorf("Expected 2 active clients, got %d", got)
	}

	// Room opens up once a tracked client is removed.
	l.RemoveClient("a")
	if !l.AllowRequest("c") {
		t.Error("Expected admission after a slot opened")
	}
}

func TestAllowRequests_MultiToken(t *testing.T) {
	cfg := testConfig()
	cfg.ClientLimits = map[string]registry.Limit{
		"x": {Capacity: 10, RefillRate: 0.0001},
	}
	l := newTestLimiter(t, cfg)

	if !l.AllowRequests("x", 7) {
		t.Error("Expected batch of 7 to be accepted")
	}
	if l.AllowRequests("x", 4) {
		t.Error("Expected batch of 4 to be rejected with 3 tokens left")
	}
	if !l.AllowRequests("x", 3) {
		t.Error("Expected batch of 3 to be accepted")
	}
}

func TestGetStatistics(t *testing.T) {
	cfg := testConfig()
	cfg.ClientLimits = map[string]registry.Limit{
		"x": {Capacity: 3, RefillRate: 0.0001},
	}
	l := newTestLimiter(t, cfg)

	for i := 0; i < 4; i++ {
		l.AllowRequest("x")
	}

	s := l.GetStatistics()
	if s.TotalRequests != 4 {
		t.Errorf("Expected 4 total requests, got %d", s.TotalRequests)
	}
	if s.AcceptedRequests != 3 {
		t.Errorf("Expected 3 accepted, got %d", s.AcceptedRequests)
	}
	if s.RejectedRequests != 1 {
		t.Errorf("Expected 1 rejected, got %d", s.RejectedRequests)
	}
	if s.TotalRequests != s.AcceptedRequests+s.RejectedRequests {
		t.Error("Expected accepted + rejected to equal total")
	}
	if s.ActiveClients != 1 {
		t.Errorf("Expected 1 active client, got %d", s.ActiveClients)
	}
	if s.AcceptanceRate != 75 {
		t.Errorf("Expected 75%% acceptance rate, got %v", s.AcceptanceRate)
	}
	if s.RejectionRate != 25 {
		t.Errorf("Expected 25%% rejection rate, got %v", s.RejectionRate)
	}
	if s.AverageLatency <= 0 {
		t.Errorf("Expected positive average latency, got %v", s.AverageLatency)
	}
}

func TestGetStatistics_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableMetrics = false
	l := newTestLimiter(t, cfg)

	// Decisions stay correct; the aggregate counters simply do not move.
	if !l.AllowRequest("x") {
		t.Error("Expected request to be accepted")
	}

	s := l.GetStatistics()
	if s.TotalRequests != 0 {
		t.Errorf("Expected no recorded requests with metrics disabled, got %d", s.TotalRequests)
	}
}

func TestGetClientStatistics_UnknownClient(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultCapacity = 42
	cfg.DefaultRefillRate = 7
	l := newTestLimiter(t, cfg)

	cs := l.GetClientStatistics("never-seen")
	if cs.TokensRemaining != 42 {
		t.Errorf("Expected full default quota, got %v", cs.TokensRemaining)
	}
	if cs.Capacity != 42 || cs.RefillRate != 7 {
		t.Errorf("Expected default limits, got capacity=%d rate=%v", cs.Capacity, cs.RefillRate)
	}
	if cs.TotalRequests != 0 || cs.AcceptedRequests != 0 {
		t.Error("Expected zero counters for an unseen client")
	}
	// Looking up statistics must not register the client.
	if got := len(l.GetActiveClients()); got != 0 {
		t.Errorf("Expected no tracked clients, got %d", got)
	}
}

func TestUpdateClientLimit(t *testing.T) {
	cfg := testConfig()
	l := newTestLimiter(t, cfg)

	l.AllowRequest("x")

	if err := l.UpdateClientLimit("x", 2, 0.0001); err != nil {
		t.Fatalf("UpdateClientLimit failed: %v", err)
	}

	// The next request starts a fresh cell with the new limits.
	cs := l.GetClientStatistics("x")
	if cs.Capacity != 2 {
		t.Errorf("Expected new capacity 2, got %d", cs.Capacity)
	}

	if !l.AllowRequest("x") || !l.AllowRequest("x") {
		t.Fatal("Expected 2 requests within the new capacity")
	}
	if l.AllowRequest("x") {
		t.Error("Expected rejection at the new, smaller capacity")
	}
}

func TestUpdateClientLimit_Invalid(t *testing.T) {
	l := newTestLimiter(t, testConfig())

	if err := l.UpdateClientLimit("x", 0, 1); err == nil {
		t.Error("Expected error for zero capacity")
	}
	if err := l.UpdateClientLimit("x", 1, -1); err == nil {
		t.Error("Expected error for negative rate")
	}
}

func TestUpdateClientLimit_ActiveClientAccounting(t *testing.T) {
	l := newTestLimiter(t, testConfig())

	l.AllowRequest("x")
	if got := l.GetStatistics().ActiveClients; got != 1 {
		t.Fatalf("Expected 1 active client, got %d", got)
	}

	// Cutting over drops the live cell until the client shows up again.
	if err := l.UpdateClientLimit("x", 10, 1); err != nil {
		t.Fatal(err)
	}
	if got := l.GetStatistics().ActiveClients; got != 0 {
		t.Errorf("Expected 0 active clients after cutover, got %d", got)
	}

	l.AllowRequest("x")
	if got := l.GetStatistics().ActiveClients; got != 1 {
		t.Errorf("Expected 1 active client after return, got %d", got)
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.ClientLimits = map[string]registry.Limit{
		"keep":   {Capacity: 10, RefillRate: 1},
		"change": {Capacity: 10, RefillRate: 1},
	}
	l := newTestLimiter(t, cfg)

	l.AllowRequest("keep")
	l.AllowRequest("change")

	err := l.ApplyOverrides(map[string]registry.Limit{
		"keep":   {Capacity: 10, RefillRate: 1},
		"change": {Capacity: 3, RefillRate: 0.0001},
		"new":    {Capacity: 7, RefillRate: 2},
	})
	if err != nil {
		t.Fatalf("ApplyOverrides failed: %v", err)
	}

	// Unchanged override keeps its live cell.
	if cs := l.GetClientStatistics("keep"); cs.TotalRequests != 1 {
		t.Errorf("Expected unchanged client to keep its cell, got %d total requests", cs.TotalRequests)
	}
	// Changed override is cut over to a fresh cell.
	if cs := l.GetClientStatistics("change"); cs.Capacity != 3 || cs.TotalRequests != 0 {
		t.Errorf("Expected fresh cell with capacity 3, got %+v", cs)
	}
	// New override applies to the first request.
	l.AllowRequest("new")
	if cs := l.GetClientStatistics("new"); cs.Capacity != 7 {
		t.Errorf("Expected capacity 7 for new override, got %d", cs.Capacity)
	}
}

func TestRemoveClient(t *testing.T) {
	l := newTestLimiter(t, testConfig())

	l.AllowRequest("x")
	l.RemoveClient("x")

	if got := len(l.GetActiveClients()); got != 0 {
		t.Errorf("Expected no tracked clients after removal, got %d", got)
	}
	if got := l.GetStatistics().ActiveClients; got != 0 {
		t.Errorf("Expected active client count 0, got %d", got)
	}

	// Removing an unknown client is a no-op.
	l.RemoveClient("absent")
	if got := l.GetStatistics().ActiveClients; got != 0 {
		t.Errorf("Expected active client count to stay 0, got %d", got)
	}
}

func TestReset(t *testing.T) {
	cfg := testConfig()
	cfg.ClientLimits = map[string]registry.Limit{
		"x": {Capacity: 2, RefillRate: 0.0001},
	}
	l := newTestLimiter(t, cfg)

	for i := 0; i < 3; i++ {
		l.AllowRequest("x")
	}

	l.Reset()

	s := l.GetStatistics()
	if s.TotalRequests != 0 || s.AcceptedRequests != 0 || s.RejectedRequests != 0 {
		t.Errorf("Expected zeroed aggregate counters, got %+v", s)
	}
	// Membership survives a reset.
	if s.ActiveClients != 1 {
		t.Errorf("Expected 1 active client after reset, got %d", s.ActiveClients)
	}

	// The cell is refilled with counters cleared.
	cs := l.GetClientStatistics("x")
	if cs.TotalRequests != 0 || cs.AcceptedRequests != 0 {
		t.Errorf("Expected zeroed cell counters, got %+v", cs)
	}
	if !l.AllowRequest("x") || !l.AllowRequest("x") {
		t.Error("Expected full quota after reset")
	}

	p := l.GetLatencyPercentiles()
	if p.P50 != 0 || p.P999 != 0 {
		t.Errorf("Expected empty percentiles after reset, got %+v", p)
	}
}

func TestGetLatencyPercentiles(t *testing.T) {
	l := newTestLimiter(t, testConfig())

	for i := 0; i < 100; i++ {
		l.AllowRequest(fmt.Sprintf("client-%d", i%5))
	}

	p := l.GetLatencyPercentiles()
	if p.P50 <= 0 {
		t.Errorf("Expected positive P50, got %v", p.P50)
	}
	if p.P50 > p.P90 || p.P90 > p.P95 || p.P95 > p.P99 || p.P99 > p.P999 {
		t.Errorf("Expected monotone percentiles, got %+v", p)
	}
}

func TestClose_Idempotent(t *testing.T) {
	l, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	if err := l.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestAllowRequest_Concurrent(t *testing.T) {
	cfg := testConfig()
	cfg.ClientLimits = map[string]registry.Limit{
		"shared": {Capacity: 100, RefillRate: 0.0001},
	}
	l := newTestLimiter(t, cfg)

	const workers = 20
	const perWorker = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				l.AllowRequest("shared")
			}
		}()
	}
	wg.Wait()

	cs := l.GetClientStatistics("shared")
	if cs.TotalRequests != workers*perWorker {
		t.Errorf("Expected %d total requests, got %d", workers*perWorker, cs.TotalRequests)
	}
	// Exactly the capacity is admitted: no overdraft under contention.
	if cs.AcceptedRequests != 100 {
		t.Errorf("Expected exactly 100 accepted requests, got %d", cs.AcceptedRequests)
	}

	s := l.GetStatistics()
	if s.TotalRequests != s.AcceptedRequests+s.RejectedRequests {
		t.Error("Expected accepted + rejected to equal total")
	}
}
