package core

import (
	"errors"
	"io/fs"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rawdevelop/logging"
	"rawdevelop/params"
	"rawdevelop/rawruntime"
)

// Defaults for every setting. Nothing is required.
const (
	DefaultHost            = "localhost"
	DefaultPort            = 8420
	DefaultLogFile         = "rawdevelop.log"
	DefaultExportQuality   = 0.9
	DefaultPreviewMaxEdge  = 1024
	DefaultHistorySize     = 50
	DefaultShutdownTimeout = 30 * time.Second
	DefaultDBRetentionDays = 30
	DefaultDBMaxRuns       = 10000
)

// Config holds process-wide settings read from RAWDEV_* variables.
type Config struct {
	// Decoding
	Decoder                  string // libraw or fixture
	TolerateMissingThumbnail bool
	PresetPath               string // optional YAML preset layered over defaults

	// Server
	Host            string
	Port            int
	PreviewMaxEdge  int // live preview longest edge; 0 serves full size
	HistorySize     int
	ShutdownTimeout time.Duration

	// Export
	ExportQuality float64
	ExportDir     string // base for relative export paths and temp cleanup

	// Render history database
	DBPath          string // empty disables persistent history
	DBRetentionDays int    // 0 keeps runs forever
	DBMaxRuns       int    // 0 keeps any number

	// Logging
	LogFile  string // empty logs to the console only
	LogLevel string
	DevMode  bool
}

// LoadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file returns ErrEnvFileMissing, which
// callers treat as a warning.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrEnvFileMissing(path)
		}
		return err
	}
	return nil
}

// LoadConfig reads the environment, applies defaults and validates the
// result. A malformed value is a *ConfigError, never a silent default.
func LoadConfig() (*Config, error) {
	var env envReader
	cfg := &Config{
		Decoder:                  strings.ToLower(env.String("RAWDEV_DECODER", rawruntime.KindLibRaw)),
		TolerateMissingThumbnail: env.Bool("RAWDEV_TOLERATE_MISSING_THUMBNAIL", false),
		PresetPath:               env.String("RAWDEV_PRESET", ""),

		Host:            env.String("RAWDEV_HOST", DefaultHost),
		Port:            env.Int("RAWDEV_PORT", DefaultPort),
		PreviewMaxEdge:  env.Int("RAWDEV_PREVIEW_MAX_EDGE", DefaultPreviewMaxEdge),
		HistorySize:     env.Int("RAWDEV_HISTORY_SIZE", DefaultHistorySize),
		ShutdownTimeout: env.Seconds("RAWDEV_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),

		ExportQuality: env.Float("RAWDEV_EXPORT_QUALITY", DefaultExportQuality),
		ExportDir:     env.String("RAWDEV_EXPORT_DIR", "."),

		DBPath:          env.String("RAWDEV_DB_PATH", ""),
		DBRetentionDays: env.Int("RAWDEV_DB_RETENTION_DAYS", DefaultDBRetentionDays),
		DBMaxRuns:       env.Int("RAWDEV_DB_MAX_RUNS", DefaultDBMaxRuns),

		LogFile:  env.String("RAWDEV_LOG_FILE", DefaultLogFile),
		LogLevel: strings.ToLower(env.String("RAWDEV_LOG_LEVEL", "")),
		DevMode:  env.Bool("RAWDEV_DEV_MODE", false),
	}
	if env.err != nil {
		return nil, env.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations. Flag overrides should be
// validated again before use.
func (c *Config) Validate() error {
	switch c.Decoder {
	case rawruntime.KindLibRaw, rawruntime.KindFixture:
	default:
		return ErrInvalidDecoder(c.Decoder)
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort(c.Port)
	}
	if math.IsNaN(c.ExportQuality) || c.ExportQuality < 0 || c.ExportQuality > 1 {
		return ErrInvalidQuality(c.ExportQuality)
	}
	if c.PreviewMaxEdge < 0 {
		return ErrInvalidValue("RAWDEV_PREVIEW_MAX_EDGE", strconv.Itoa(c.PreviewMaxEdge), "0 or a positive pixel count")
	}
	if c.HistorySize < 1 {
		return ErrInvalidValue("RAWDEV_HISTORY_SIZE", strconv.Itoa(c.HistorySize), "a positive count")
	}
	if c.DBRetentionDays < 0 {
		return ErrInvalidValue("RAWDEV_DB_RETENTION_DAYS", strconv.Itoa(c.DBRetentionDays), "0 or a positive number of days")
	}
	if c.DBMaxRuns < 0 {
		return ErrInvalidValue("RAWDEV_DB_MAX_RUNS", strconv.Itoa(c.DBMaxRuns), "0 or a positive count")
	}
	if c.LogLevel != "" && !logging.ValidLevel(c.LogLevel) {
		return &ConfigError{
			Code:    ErrCodeInvalidLevel,
			Message: "Invalid log level " + strconv.Quote(c.LogLevel),
			Action:  "Set RAWDEV_LOG_LEVEL to debug, info, warn, error or fatal",
		}
	}
	return nil
}

// DBRetention is the render history retention window.
func (c *Config) DBRetention() time.Duration {
	return time.Duration(c.DBRetentionDays) * 24 * time.Hour
}

// Addr is the host:port the server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Defaults returns the default parameter set with the configured preset
// layered on top.
func (c *Config) Defaults() (params.ParameterSet, error) {
	if c.PresetPath == "" {
		return params.Defaults(), nil
	}
	ps, err := params.LoadPreset(c.PresetPath)
	if err != nil {
		return params.ParameterSet{}, ErrInvalidPreset(c.PresetPath, err)
	}
	return ps, nil
}
