package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"rawdevelop/logging"
)

// DefaultChannelCapacity is the default buffer size for queued runs.
const DefaultChannelCapacity = 100

// DefaultBatchSize caps how many queued runs share one transaction.
const DefaultBatchSize = 32

// WriteHandler stores a batch of runs.
type WriteHandler func(ctx context.Context, batch []RunRecord) error

// AsyncWriterConfig holds configuration for the async writer.
type AsyncWriterConfig struct {
	ChannelCapacity int
	BatchSize       int
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		ChannelCapacity: DefaultChannelCapacity,
		BatchSize:       DefaultBatchSize,
	}
}

// AsyncWriter queues runs on a buffered channel and stores them from one
// background goroutine, so recording a run never waits on disk.
type AsyncWriter struct {
	writeChan chan RunRecord
	handler   WriteHandler
	batchSize int
	logger    *logging.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewAsyncWriter returns a writer that passes batches to handler. Call
// Start before Write.
func NewAsyncWriter(handler WriteHandler, config AsyncWriterConfig, logger *logging.Logger) *AsyncWriter {
	if config.ChannelCapacity < 1 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	if config.BatchSize < 1 {
		config.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AsyncWriter{
		writeChan: make(chan RunRecord, config.ChannelCapacity),
		handler:   handler,
		batchSize: config.BatchSize,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start launches the background goroutine. Repeat calls are no-ops.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	go w.processWrites()
}

func (w *AsyncWriter) processWrites() {
	defer close(w.done)
	batch := make([]RunRecord, 0, w.batchSize)
	for r := range w.writeChan {
		batch = append(batch[:0], r)
		// Take whatever else is already queued.
	fill:
		for len(batch) < w.batchSize {
			select {
			case next, ok := <-w.writeChan:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		w.flush(batch)
	}
}

func (w *AsyncWriter) flush(batch []RunRecord) {
	// Writes in flight finish even during shutdown; Close bounds the wait.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.handler(ctx, batch); err != nil {
		w.failed.Add(int64(len(batch)))
		w.logger.Error("failed to store render runs", zap.Int("count", len(batch)), zap.Error(err))
		return
	}
	w.written.Add(int64(len(batch)))
}

// Write queues r. It returns false when the queue is full or the writer is
// closed; the run is then dropped.
func (w *AsyncWriter) Write(r RunRecord) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.dropped.Add(1)
		return false
	}
	select {
	case w.writeChan <- r:
		return true
	default:
		w.dropped.Add(1)
		w.logger.Warn("render run queue full, dropping record",
			zap.String("request_id", r.RequestID), zap.Int("capacity", cap(w.writeChan)))
		return false
	}
}

// Pending is the number of queued runs.
func (w *AsyncWriter) Pending() int { return len(w.writeChan) }

// Stats reports how many runs were stored, dropped and failed.
func (w *AsyncWriter) Stats() (written, dropped, failed int64) {
	return w.written.Load(), w.dropped.Load(), w.failed.Load()
}

// Close stops accepting runs and waits for the queue to drain or ctx to
// end. Later calls wait again without error.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.writeChan)
	}
	started := w.started
	w.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
