// Package metrics collects in-memory, process-lifetime execution counters
// per agent and derives an aggregate health verdict.
package metrics

import (
	"sync"
	"time"
)

const (
	// MaxStoredErrors bounds the per-agent error list.
	MaxStoredErrors = 100

	// MaxErrorLength truncates stored error messages.
	MaxErrorLength = 500

	// DegradedErrorRate is the threshold above which overall health is
	// reported as degraded. Exactly the threshold is still healthy.
	DegradedErrorRate = 0.1
)

// Status of a recorded execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorEntry is one stored failure, message truncated to MaxErrorLength.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// AgentMetrics accumulates counters for a single agent. Created lazily on
// first execution, never destroyed during the process lifetime.
type AgentMetrics struct {
	TotalCalls    int64         `json:"total_calls"`
	SuccessCount  int64         `json:"success_count"`
	ErrorCount    int64         `json:"error_count"`
	TotalDuration time.Duration `json:"-"`
	AvgDuration   float64       `json:"avg_duration"`
	LastExecution time.Time     `json:"last_execution"`
	Errors        []ErrorEntry  `json:"errors"`
}

// AgentHealth is the per-agent slice of a health snapshot.
type AgentHealth struct {
	Calls       int64   `json:"calls"`
	SuccessRate float64 `json:"success_rate"`
	AvgDuration float64 `json:"avg_duration"`
}

// HealthSnapshot is a derived, point-in-time summary across all agents.
// It is recomputed on demand and never stored.
type HealthSnapshot struct {
	Status      string                 `json:"status"`
	TotalCalls  int64                  `json:"total_calls"`
	TotalErrors int64                  `json:"total_errors"`
	ErrorRate   float64                `json:"error_rate"`
	Agents      map[string]AgentHealth `json:"agents"`
}

// Recorder is the write-side interface the executor depends on.
type Recorder interface {
	Record(agent string, duration time.Duration, status Status, errMsg string)
}

// Collector owns the per-agent metrics table. The bridge loop is single
// threaded, but the table is also read by health checks and shared with
// the telemetry exporter, so access is mutex-guarded.
type Collector struct {
	mu      sync.Mutex
	enabled bool
	agents  map[string]*AgentMetrics
}

// NewCollector returns a collector; a disabled collector records nothing
// but still serves empty (healthy) snapshots.
func NewCollector(enabled bool) *Collector {
	return &Collector{
		enabled: enabled,
		agents:  make(map[string]*AgentMetrics),
	}
}

// Record registers one execution outcome for the named agent.
func (c *Collector) Record(agent string, duration time.Duration, status Status, errMsg string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.agents[agent]
	if !ok {
		m = &AgentMetrics{}
		c.agents[agent] = m
	}

	m.TotalCalls++
	m.TotalDuration += duration
	m.AvgDuration = m.TotalDuration.Seconds() / float64(m.TotalCalls)
	m.LastExecution = time.Now()

	if status == StatusSuccess {
		m.SuccessCount++
		return
	}

	m.ErrorCount++
	if errMsg == "" {
		return
	}
	if len(errMsg) > MaxErrorLength {
		errMsg = errMsg[:MaxErrorLength]
	}
	if len(m.Errors) == MaxStoredErrors {
		m.Errors = m.Errors[1:]
	}
	m.Errors = append(m.Errors, ErrorEntry{Timestamp: time.Now(), Error: errMsg})
}

// Stats returns a copy of the metrics for one agent, or nil if the agent
// has never executed.
func (c *Collector) Stats(agent string) *AgentMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.agents[agent]
	if !ok {
		return nil
	}
	out := *m
	out.Errors = append([]ErrorEntry(nil), m.Errors...)
	return &out
}

// HealthSnapshot derives the current aggregate health. With zero recorded
// calls the error rate is defined as 0 and the status as healthy.
func (c *Collector) HealthSnapshot() HealthSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := HealthSnapshot{
		Status: "healthy",
		Agents: make(map[string]AgentHealth, len(c.agents)),
	}

	for name, m := range c.agents {
		snap.TotalCalls += m.TotalCalls
		snap.TotalErrors += m.ErrorCount

		calls := m.TotalCalls
		if calls == 0 {
			calls = 1
		}
		snap.Agents[name] = AgentHealth{
			Calls:       m.TotalCalls,
			SuccessRate: float64(m.SuccessCount) / float64(calls),
			AvgDuration: m.AvgDuration,
		}
	}

	divisor := snap.TotalCalls
	if divisor == 0 {
		divisor = 1
	}
	snap.ErrorRate = float64(snap.TotalErrors) / float64(divisor)
	if snap.ErrorRate > DegradedErrorRate {
		snap.Status = "degraded"
	}
	return snap
}
