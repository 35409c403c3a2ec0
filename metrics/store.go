package metrics

import (
	"sync"
	"time"

	"rawdevelop/logging"
)

// Store is an in-memory Collector.
//
// Usage:
//
//	store := NewStore(StoreConfig{Version: core.Version}, time.Now())
//	store.RecordRender(m)
//	stats := store.RenderStats()
type Store struct {
	mu sync.RWMutex

	total        int64
	byOutcome    map[string]*outcomeStats
	failedStages map[string]int64
	failsInRow   int
	lastOutcome  string
	lastFinished time.Time

	startTime time.Time
	version   string
	now       func() time.Time
}

type outcomeStats struct {
	count         int64
	totalDuration time.Duration
	maxDuration   time.Duration
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Version is the application version string
	Version string
}

// NewStore returns an empty Store. startTime is used to calculate uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	return &Store{
		byOutcome:    make(map[string]*outcomeStats),
		failedStages: make(map[string]int64),
		startTime:    startTime,
		version:      config.Version,
		now:          time.Now,
	}
}

// RecordRender adds a finished render.
func (s *Store) RecordRender(m logging.RenderMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	stats, ok := s.byOutcome[m.Outcome]
	if !ok {
		stats = &outcomeStats{}
		s.byOutcome[m.Outcome] = stats
	}
	stats.count++
	stats.totalDuration += m.Duration
	stats.maxDuration = max(stats.maxDuration, m.Duration)

	switch m.Outcome {
	case logging.OutcomeFailed:
		stage := m.Stage
		if stage == "" {
			stage = "unknown"
		}
		s.failedStages[stage]++
		s.failsInRow++
	case logging.OutcomeReady:
		s.failsInRow = 0
	}
	if m.Outcome != logging.OutcomeDiscarded {
		s.lastOutcome = m.Outcome
		s.lastFinished = m.Started.Add(m.Duration)
	}
}

// RenderStats returns the aggregated statistics.
func (s *Store) RenderStats() RenderStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RenderStats{
		Total:        s.total,
		ByOutcome:    make(map[string]*OutcomeMetrics, len(s.byOutcome)),
		FailedStages: make(map[string]int64, len(s.failedStages)),
		LastOutcome:  s.lastOutcome,
		LastFinished: s.lastFinished,
	}
	for outcome, o := range s.byOutcome {
		stats.ByOutcome[outcome] = &OutcomeMetrics{
			Count:       o.count,
			AvgDuration: o.totalDuration / time.Duration(o.count),
			MaxDuration: o.maxDuration,
		}
	}
	for stage, n := range s.failedStages {
		stats.FailedStages[stage] = n
	}

	var ready, failed int64
	if o := s.byOutcome[logging.OutcomeReady]; o != nil {
		ready = o.count
	}
	if o := s.byOutcome[logging.OutcomeFailed]; o != nil {
		failed = o.count
	}
	if ready+failed > 0 {
		stats.SuccessRate = float64(ready) / float64(ready+failed) * 100
	}
	return stats
}

// SystemStatus returns the current health.
func (s *Store) SystemStatus() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := SystemHealthRunning
	if s.failsInRow >= FailureThreshold {
		health = SystemHealthError
	}
	now := s.now()
	return SystemStatus{
		Health:    health,
		Version:   s.version,
		Uptime:    now.Sub(s.startTime),
		LastCheck: now,
	}
}

var _ Collector = (*Store)(nil)
