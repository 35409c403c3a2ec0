package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"rawdevelop/core"
	"rawdevelop/db"
	"rawdevelop/logging"
	"rawdevelop/params"
	"rawdevelop/pipeline"
	"rawdevelop/rawruntime"
)

// app holds what every configured command shares.
type app struct {
	cfg      *core.Config
	logger   *logging.Logger
	decoder  rawruntime.Decoder
	pipeline *pipeline.Pipeline
}

// setup loads .env and RAWDEV_* configuration, then builds the logger,
// decoder and pipeline. On failure it prints the problem and returns the
// exit code to use.
func setup(stderr io.Writer) (*app, int) {
	envFile := core.GetEnvOrDefault("RAWDEV_ENV_FILE", ".env")
	if err := core.LoadEnvFile(envFile); err != nil {
		if core.GetErrorCode(err) != core.ErrCodeEnvFileMissing {
			printConfigError(stderr, err)
			return nil, core.ExitCodeConfig
		}
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		printConfigError(stderr, err)
		return nil, core.ExitCodeConfig
	}

	level := logging.ParseLogLevelString(cfg.LogLevel, logging.DefaultLevel(cfg.DevMode))
	logger, err := logging.NewLoggerWithLevel(level, cfg.DevMode, cfg.LogFile)
	if err != nil {
		color.New(color.FgRed).Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return nil, core.ExitCodeError
	}

	decoder, err := rawruntime.New(cfg.Decoder)
	if err != nil {
		printConfigError(stderr, err)
		logger.Sync()
		return nil, core.ExitCodeConfig
	}
	logger.Debug("configuration loaded",
		zap.String("decoder", cfg.Decoder),
		zap.String("decoder_version", decoder.Version()),
		zap.Bool("tolerate_missing_thumbnail", cfg.TolerateMissingThumbnail),
		zap.String("preset", cfg.PresetPath),
		zap.String("log_file", cfg.LogFile),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		decoder: decoder,
		pipeline: pipeline.New(decoder, logger, pipeline.Options{
			TolerateMissingThumbnail: cfg.TolerateMissingThumbnail,
		}),
	}, core.ExitCodeSuccess
}

func (a *app) close() {
	a.logger.Sync()
}

// storeConfig describes the render history database.
func (a *app) storeConfig() db.StoreConfig {
	return db.StoreConfig{
		Path:      a.cfg.DBPath,
		Retention: a.cfg.DBRetention(),
		MaxRuns:   a.cfg.DBMaxRuns,
		Writer:    db.DefaultAsyncWriterConfig(),
	}
}

// recordRun stores a one-shot run when a history database is configured.
// Failures are logged; they never fail the command.
func (a *app) recordRun(m logging.RenderMetrics, ps params.ParameterSet, runErr error) {
	if a.cfg.DBPath == "" {
		return
	}
	d, err := db.Open(a.cfg.DBPath)
	if err != nil {
		a.logger.Warn("render history unavailable", zap.Error(err))
		return
	}
	defer d.Close()

	var msg string
	if runErr != nil {
		msg = runErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := d.InsertRun(ctx, db.RunFromMetrics(m, db.SourceCLI, &ps, msg)); err != nil {
		a.logger.Warn("failed to record render run", zap.Error(err))
	}
}

func printConfigError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(w, "Configuration error: ")
	fmt.Fprintln(w, err)
	var ce *core.ConfigError
	if errors.As(err, &ce) && ce.Code != "" {
		color.New(color.FgHiBlack).Fprintf(w, "(%s)\n", ce.Code)
	}
}
