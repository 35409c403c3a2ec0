// Package metrics aggregates live render statistics for the server.
package metrics

import "time"

// RenderStats summarizes the renders a server process has finished.
type RenderStats struct {
	Total        int64                      `json:"total"`
	ByOutcome    map[string]*OutcomeMetrics `json:"by_outcome"`
	FailedStages map[string]int64           `json:"failed_stages"`

	// SuccessRate is the share of ready runs among ready and failed ones,
	// 0-100. Cancelled and discarded runs do not count.
	SuccessRate float64 `json:"success_rate"`

	LastOutcome  string    `json:"last_outcome,omitempty"`
	LastFinished time.Time `json:"last_finished,omitempty"`
}

// OutcomeMetrics are the statistics for one outcome.
type OutcomeMetrics struct {
	Count       int64         `json:"count"`
	AvgDuration time.Duration `json:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration"`
}

// SystemStatus reports process health.
type SystemStatus struct {
	// Health is SystemHealthRunning, or SystemHealthError after
	// FailureThreshold consecutive failed renders.
	Health    string        `json:"health"`
	Version   string        `json:"version"`
	Uptime    time.Duration `json:"uptime"`
	LastCheck time.Time     `json:"last_check"`
}

// Health constants for SystemStatus
const (
	SystemHealthRunning = "running"
	SystemHealthError   = "error"
)

// FailureThreshold is the number of failed renders in a row that marks
// the system unhealthy.
const FailureThreshold = 3
