package shutdown

import (
	"context"

	"go.uber.org/zap"

	"rawdevelop/core"
	"rawdevelop/logging"
	"rawdevelop/pipeline"
)

// CleanupTempExports returns a hook that removes in-progress export files
// left in dirs by an interrupted export. Failures are logged, never returned,
// so they cannot hold up shutdown.
func CleanupTempExports(logger *logging.Logger, dirs ...string) core.ShutdownFunc {
	return func(ctx context.Context) error {
		for _, dir := range dirs {
			if ctx.Err() != nil {
				logger.Warn("shutdown deadline reached during temp export cleanup")
				return nil
			}
			n, err := pipeline.RemoveTempExports(dir)
			if err != nil {
				logger.Warn("temp export cleanup failed", zap.String("dir", dir), zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("removed temp exports", zap.String("dir", dir), zap.Int("count", n))
			}
		}
		return nil
	}
}

// SyncLogger returns a hook that flushes logger.
func SyncLogger(logger *logging.Logger) core.ShutdownFunc {
	return func(context.Context) error {
		_ = logger.Sync()
		return nil
	}
}
