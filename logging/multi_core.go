package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees log output to stderr and, when filePath is not empty, to a
// rotating JSON log file. The console uses the colored encoder in development
// mode and JSON otherwise.
func NewMultiCore(level zapcore.Level, filePath string, isDev bool) zapcore.Core {
	console := zapcore.Lock(os.Stderr)
	if filePath == "" {
		return newConsoleCore(level, console, isDev)
	}
	return NewMultiCoreWithWriters(level, console, NewFileWriter(filePath), isDev)
}

// NewMultiCoreWithWriters tees to the given writers. The file side is always JSON.
//
// Example:
//
//	var buf bytes.Buffer
//	core := NewMultiCoreWithWriters(zapcore.DebugLevel, os.Stderr, zapcore.AddSync(&buf), true)
//	logger := zap.New(core)
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level)
	return zapcore.NewTee(newConsoleCore(level, consoleWriter, isDev), fileCore)
}

func newConsoleCore(level zapcore.Level, w zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var enc zapcore.Encoder
	if isDev {
		enc = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	return zapcore.NewCore(enc, w, level)
}
