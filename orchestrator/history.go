package orchestrator

import (
	"sync"

	"rawdevelop/logging"
	"rawdevelop/params"
)

// Record is one finished run in the render history.
type Record struct {
	logging.RenderMetrics
	Params params.ParameterSet `json:"params"`
	Error  string              `json:"error,omitempty"`
}

// History is a fixed-size, thread-safe ring of the most recent records.
// When full, the oldest record is overwritten.
type History struct {
	mu   sync.RWMutex
	data []Record
	head int // next write
	size int
}

// NewHistory returns a History holding at most capacity records.
// Capacities below 1 are raised to 1.
func NewHistory(capacity int) *History {
	return &History{data: make([]Record, max(1, capacity))}
}

// Push appends r, evicting the oldest record when full.
func (h *History) Push(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data[h.head] = r
	h.head = (h.head + 1) % len(h.data)
	if h.size < len(h.data) {
		h.size++
	}
}

// Last returns up to n records, oldest first. n <= 0 returns all of them.
func (h *History) Last(n int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > h.size {
		n = h.size
	}
	out := make([]Record, n)
	start := h.head - n
	for i := range out {
		out[i] = h.data[(start+i+len(h.data))%len(h.data)]
	}
	return out
}

// Len is the number of stored records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Cap is the maximum number of stored records.
func (h *History) Cap() int { return len(h.data) }
