// Package logging wraps zap with the console + rotating file setup used by
// every rawdevelop command, plus field helpers for render events.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger and its sugared twin.
//
// Example:
//
//	logger, err := NewLogger(true, "rawdevelop.log")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("server started", zap.String("addr", "localhost:8420"))
//	logger.Infow("render complete", "generation", 3, "duration", d)
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger

	isDevelopment bool
	logFilePath   string
}

// NewLogger creates a Logger at DefaultLevel(isDevelopment). An empty
// logFilePath logs to the console only.
func NewLogger(isDevelopment bool, logFilePath string) (*Logger, error) {
	return NewLoggerWithLevel(DefaultLevel(isDevelopment), isDevelopment, logFilePath)
}

// NewLoggerWithLevel creates a Logger with an explicit minimum level.
func NewLoggerWithLevel(level zapcore.Level, isDevelopment bool, logFilePath string) (*Logger, error) {
	core := NewMultiCore(level, logFilePath, isDevelopment)
	return newLogger(core, isDevelopment, logFilePath), nil
}

// NewLoggerWithConfig creates a Logger with custom file rotation.
func NewLoggerWithConfig(isDevelopment bool, logFilePath string, fileConfig FileWriterConfig) (*Logger, error) {
	core := NewMultiCoreWithWriters(
		DefaultLevel(isDevelopment),
		zapcore.Lock(os.Stderr),
		NewFileWriterWithConfig(logFilePath, fileConfig),
		isDevelopment,
	)
	return newLogger(core, isDevelopment, logFilePath), nil
}

// NewFromCore wraps an existing core. Tests use it with zaptest/observer
// or a buffer-backed core.
func NewFromCore(core zapcore.Core) *Logger {
	return newLogger(core, false, "")
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return newLogger(zapcore.NewNopCore(), false, "")
}

func newLogger(core zapcore.Core, isDevelopment bool, logFilePath string) *Logger {
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{
		zap:           z,
		sugar:         z.Sugar(),
		isDevelopment: isDevelopment,
		logFilePath:   logFilePath,
	}
}

// Sync flushes buffered entries. Call it before exit.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

// Fatal logs then calls os.Exit(1).
func (l *Logger) Fatal(msg string, fields ...zap.Field) { l.zap.Fatal(msg, fields...) }

// Debugw logs loosely-typed key-value pairs at DebugLevel.
//
// Example:
//
//	logger.Debugw("stale render discarded", "generation", 4, "current", 6)
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Debugf(template string, args ...interface{}) { l.sugar.Debugf(template, args...) }
func (l *Logger) Infof(template string, args ...interface{})  { l.sugar.Infof(template, args...) }
func (l *Logger) Warnf(template string, args ...interface{})  { l.sugar.Warnf(template, args...) }
func (l *Logger) Errorf(template string, args ...interface{}) { l.sugar.Errorf(template, args...) }

// With returns a child logger that adds fields to every entry.
//
// Example:
//
//	runLog := logger.With(zap.Uint64("generation", gen), zap.String("path", path))
//	runLog.Info("render started")
func (l *Logger) With(fields ...zap.Field) *Logger {
	z := l.zap.With(fields...)
	return &Logger{zap: z, sugar: z.Sugar(), isDevelopment: l.isDevelopment, logFilePath: l.logFilePath}
}

// Named adds a component name, e.g. "pipeline" or "http".
func (l *Logger) Named(name string) *Logger {
	z := l.zap.Named(name)
	return &Logger{zap: z, sugar: z.Sugar(), isDevelopment: l.isDevelopment, logFilePath: l.logFilePath}
}

// Sugar exposes the underlying SugaredLogger.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.sugar }

// Zap exposes the underlying zap.Logger.
func (l *Logger) Zap() *zap.Logger { return l.zap }

func (l *Logger) IsDevelopment() bool { return l.isDevelopment }

func (l *Logger) LogFilePath() string { return l.logFilePath }
