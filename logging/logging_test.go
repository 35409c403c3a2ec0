package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// syncLogger ignores the "invalid argument" Linux returns when syncing a terminal.
func syncLogger(t testing.TB, logger *Logger) {
	t.Helper()
	if err := logger.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") {
		t.Logf("Sync() warning: %v", err)
	}
}

func TestNewLogger_WritesFile(t *testing.T) {
	for _, dev := range []bool{true, false} {
		logPath := filepath.Join(t.TempDir(), "rawdevelop.log")
		logger, err := NewLogger(dev, logPath)
		if err != nil {
			t.Fatalf("NewLogger(%v) error: %v", dev, err)
		}
		if logger.IsDevelopment() != dev {
			t.Errorf("IsDevelopment() = %v, want %v", logger.IsDevelopment(), dev)
		}
		if logger.LogFilePath() != logPath {
			t.Errorf("LogFilePath() = %q, want %q", logger.LogFilePath(), logPath)
		}

		logger.Info("render complete", zap.String("path", "a.cr2"))
		syncLogger(t, logger)

		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		var entry map[string]interface{}
		if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
			t.Fatalf("log file line is not JSON: %v\n%s", err, data)
		}
		if entry[FieldMessage] != "render complete" || entry["path"] != "a.cr2" {
			t.Errorf("unexpected entry: %v", entry)
		}
	}
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	logger, err := NewLogger(false, "")
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	logger.Debug("dropped at info level")
	syncLogger(t, logger)
}

func TestMultiCoreWithWriters(t *testing.T) {
	tests := []struct {
		name        string
		isDev       bool
		consoleJSON bool
	}{
		{"development console is human readable", true, false},
		{"production console is JSON", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var consoleBuf, fileBuf bytes.Buffer
			core := NewMultiCoreWithWriters(zapcore.InfoLevel,
				zapcore.AddSync(&consoleBuf), zapcore.AddSync(&fileBuf), tt.isDev)
			logger := NewFromCore(core)
			logger.Info("hello", zap.Int("n", 1))
			logger.Debug("filtered")
			syncLogger(t, logger)

			if !json.Valid(bytes.TrimSpace(fileBuf.Bytes())) {
				t.Errorf("file output is not JSON: %s", fileBuf.String())
			}
			if got := json.Valid(bytes.TrimSpace(consoleBuf.Bytes())); got != tt.consoleJSON {
				t.Errorf("console JSON = %v, want %v: %s", got, tt.consoleJSON, consoleBuf.String())
			}
			if strings.Contains(fileBuf.String(), "filtered") {
				t.Error("debug entry written at info level")
			}
		})
	}
}

func TestWithAndNamed(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), zapcore.AddSync(&buf), zapcore.DebugLevel)
	logger := NewFromCore(core).Named("pipeline").With(zap.Uint64("generation", 7))
	logger.Debugw("stage done", "stage", "unpack")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry[FieldLogger] != "pipeline" {
		t.Errorf("logger name = %v, want pipeline", entry[FieldLogger])
	}
	if entry["generation"] != float64(7) || entry["stage"] != "unpack" {
		t.Errorf("fields missing: %v", entry)
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Error("ignored")
	logger.Infow("ignored", "k", "v")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() = %v", err)
	}
	var nilLogger *Logger
	if err := nilLogger.Sync(); err != nil {
		t.Errorf("nil Sync() = %v", err)
	}
}

func TestParseLogLevelString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" Warning ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"verbose", zapcore.WarnLevel},
		{"", zapcore.WarnLevel},
	}
	for _, tt := range tests {
		if got := ParseLogLevelString(tt.in, zapcore.WarnLevel); got != tt.want {
			t.Errorf("ParseLogLevelString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ValidLevel("verbose") || !ValidLevel("warn") {
		t.Error("ValidLevel() mismatch")
	}
}

func TestParseLogLevel_Env(t *testing.T) {
	t.Setenv("RAWDEV_TEST_LEVEL", "error")
	if got := ParseLogLevel("RAWDEV_TEST_LEVEL", zapcore.InfoLevel); got != zapcore.ErrorLevel {
		t.Errorf("ParseLogLevel() = %v, want error", got)
	}
	if got := ParseLogLevel("RAWDEV_TEST_LEVEL_UNSET", zapcore.InfoLevel); got != zapcore.InfoLevel {
		t.Errorf("ParseLogLevel(unset) = %v, want info", got)
	}
	if DefaultLevel(true) != zapcore.DebugLevel || DefaultLevel(false) != zapcore.InfoLevel {
		t.Error("DefaultLevel() mismatch")
	}
}

func TestFileWriterDefaults(t *testing.T) {
	got := applyFileWriterDefaults(FileWriterConfig{MaxSizeMB: 10})
	if got.MaxSizeMB != 10 || got.MaxBackups != DefaultMaxBackups || got.MaxAgeDays != DefaultMaxAgeDays {
		t.Errorf("applyFileWriterDefaults() = %+v", got)
	}
	if cfg := DefaultFileWriterConfig(); !cfg.Compress || cfg.MaxSizeMB != DefaultMaxSizeMB {
		t.Errorf("DefaultFileWriterConfig() = %+v", cfg)
	}
}

func TestRenderFields(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), zapcore.AddSync(&buf), zapcore.InfoLevel)
	logger := NewFromCore(core)

	timer := StartRender("req-1", 3, "/tmp/a.nef")
	m := timer.Finish(OutcomeReady, "", 6000, 4000)
	if m.Duration < 0 || m.Started.IsZero() {
		t.Errorf("timer not stamped: %+v", m)
	}
	logger.Info("render complete", RenderFields(m))

	var entry struct {
		Render map[string]interface{} `json:"render"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]interface{}{
		"request_id": "req-1",
		"generation": float64(3),
		"path":       "/tmp/a.nef",
		"outcome":    OutcomeReady,
		"width":      float64(6000),
		"height":     float64(4000),
	}
	for k, v := range want {
		if entry.Render[k] != v {
			t.Errorf("render.%s = %v, want %v", k, entry.Render[k], v)
		}
	}
	if _, ok := entry.Render["stage"]; ok {
		t.Error("empty stage should be omitted")
	}
}

func TestStageFields(t *testing.T) {
	fields := StageFields("unpack", -100008, "Corrupt data or unexpected EOF")
	if len(fields) != 3 || fields[0].Key != "stage" || fields[1].Integer != -100008 {
		t.Errorf("StageFields() = %+v", fields)
	}
}
