package metrics

import "rawdevelop/logging"

// Collector gathers render statistics. Implementations are safe for
// concurrent use.
type Collector interface {
	// RecordRender adds a finished render.
	RecordRender(m logging.RenderMetrics)

	// RenderStats returns the aggregated statistics.
	RenderStats() RenderStats

	// SystemStatus returns the current health.
	SystemStatus() SystemStatus
}
