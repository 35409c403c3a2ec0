package db

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"rawdevelop/logging"
	"rawdevelop/params"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	Path      string
	Retention time.Duration // 0 keeps runs forever
	MaxRuns   int           // 0 keeps any number
	Writer    AsyncWriterConfig
}

// Store records finished renders in the background and answers history
// queries.
type Store struct {
	db     *Database
	writer *AsyncWriter
	logger *logging.Logger
}

// OpenStore opens the database, applies the retention policy once and
// starts the background writer.
func OpenStore(ctx context.Context, cfg StoreConfig, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("db")

	d, err := Open(cfg.Path)
	if err != nil {
		return nil, err
	}
	res, err := d.Cleanup(ctx, cfg.Retention, cfg.MaxRuns)
	if err != nil {
		logger.Warn("render run cleanup failed", zap.Error(err))
	} else if res.Total() > 0 {
		logger.Info("removed old render runs",
			zap.Int64("expired", res.Expired),
			zap.Int64("trimmed", res.Trimmed),
			zap.Duration("took", res.Duration),
		)
	}

	s := &Store{db: d, logger: logger}
	s.writer = NewAsyncWriter(d.InsertRuns, cfg.Writer, logger)
	s.writer.Start()
	logger.Info("render history store opened", zap.String("path", cfg.Path))
	return s, nil
}

// RunFromMetrics builds a RunRecord from a finished render.
func RunFromMetrics(m logging.RenderMetrics, source string, ps *params.ParameterSet, errMsg string) RunRecord {
	return RunRecord{
		RequestID:  m.RequestID,
		Generation: m.Generation,
		Source:     source,
		Path:       m.Path,
		Outcome:    m.Outcome,
		Stage:      m.Stage,
		Width:      m.Width,
		Height:     m.Height,
		StartedAt:  m.Started,
		DurationMS: m.Duration.Milliseconds(),
		Params:     ps,
		Error:      errMsg,
	}
}

// Record queues r for storage. Discarded runs are not stored. It never
// blocks.
func (s *Store) Record(r RunRecord) bool {
	if r.Outcome == logging.OutcomeDiscarded {
		return false
	}
	return s.writer.Write(r)
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context, f RunFilter) ([]RunRecord, error) {
	return s.db.ListRuns(ctx, f)
}

// Summary aggregates stored runs per outcome.
func (s *Store) Summary(ctx context.Context) ([]OutcomeSummary, error) {
	return s.db.Summary(ctx)
}

// Database exposes the underlying database.
func (s *Store) Database() *Database { return s.db }

// Close drains queued runs until ctx ends, then closes the database.
func (s *Store) Close(ctx context.Context) error {
	werr := s.writer.Close(ctx)
	written, dropped, failed := s.writer.Stats()
	s.logger.Info("render history store closed",
		zap.Int64("written", written),
		zap.Int64("dropped", dropped),
		zap.Int64("failed", failed),
	)
	return errors.Join(werr, s.db.Close())
}
