package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"rawdevelop/core"
	"rawdevelop/db"
	"rawdevelop/metrics"
	"rawdevelop/orchestrator"
	"rawdevelop/pipeline"
	"rawdevelop/shutdown"
	"rawdevelop/webui"
)

// runServe runs the interactive render server in the foreground until
// SIGINT or SIGTERM.
func runServe(a *app, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&a.cfg.Host, "host", a.cfg.Host, "listen host")
	fs.IntVar(&a.cfg.Port, "port", a.cfg.Port, "listen port")
	fs.StringVar(&a.cfg.ExportDir, "export-dir", a.cfg.ExportDir, "directory for relative export paths")
	if code, done := parseFlags(fs, args); done {
		return code
	}
	if err := a.cfg.Validate(); err != nil {
		printConfigError(stderr, err)
		return core.ExitCodeConfig
	}

	m := shutdown.NewManager(a.logger, shutdown.WithTimeout(a.cfg.ShutdownTimeout))
	m.Start()

	l, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		m.Shutdown()
		color.New(color.FgRed).Fprintf(stderr, "listen on %s: %v\n", a.cfg.Addr(), err)
		return core.ExitCodeError
	}
	color.New(color.FgGreen).Fprintf(stdout, "Serving on http://%s\n", l.Addr())

	if err := serve(m, a, l); err != nil {
		var ce *core.ConfigError
		if errors.As(err, &ce) {
			printConfigError(stderr, err)
			return core.ExitCodeConfig
		}
		color.New(color.FgRed).Fprintf(stderr, "server error: %v\n", err)
		return core.ExitCodeError
	}
	return core.ExitCodeSuccess
}

// serve runs the orchestrator and HTTP server on l until m's context ends or
// the server fails, then shuts everything down through m.
func serve(m *shutdown.Manager, a *app, l net.Listener) error {
	defaults, err := a.cfg.Defaults()
	if err != nil {
		l.Close()
		m.Shutdown()
		return err
	}

	if n, err := pipeline.RemoveTempExports(a.cfg.ExportDir); err != nil {
		a.logger.Warn("temp export cleanup failed", zap.Error(err))
	} else if n > 0 {
		a.logger.Info("removed leftover temp exports", zap.Int("count", n))
	}

	var store *db.Store
	if a.cfg.DBPath != "" {
		store, err = db.OpenStore(m.Context(), a.storeConfig(), a.logger)
		if err != nil {
			l.Close()
			m.Shutdown()
			return fmt.Errorf("open render history: %w", err)
		}
	}

	stats := metrics.NewStore(metrics.StoreConfig{Version: core.Version}, time.Now())
	orch := orchestrator.New(a.pipeline, a.logger,
		orchestrator.WithDefaults(defaults),
		orchestrator.WithHistorySize(a.cfg.HistorySize),
		orchestrator.WithTracker(m.Tracker()),
		orchestrator.WithContext(m.Context()),
		orchestrator.WithRecorder(func(r orchestrator.Record) {
			stats.RecordRender(r.RenderMetrics)
			if store != nil {
				store.Record(db.RunFromMetrics(r.RenderMetrics, db.SourceServer, &r.Params, r.Error))
			}
		}),
	)

	srvCfg := webui.DefaultServerConfig()
	srvCfg.Addr = l.Addr().String()
	srvCfg.API.PreviewMaxEdge = a.cfg.PreviewMaxEdge
	srvCfg.API.ExportDir = a.cfg.ExportDir
	srvCfg.API.Quality = a.cfg.ExportQuality
	srvCfg.API.Metrics = stats
	if store != nil {
		srvCfg.API.Runs = store
	}
	srvCfg.Version = core.Version
	srv := webui.NewServer(srvCfg, orch, a.logger)

	m.Register("http server", shutdown.PriorityHTTPServer, srv.Shutdown)
	m.Register("renders", shutdown.PriorityRenders, orch.Close)
	if store != nil {
		m.Register("history store", shutdown.PriorityHistoryStore, store.Close)
	}
	m.Register("temp exports", shutdown.PriorityTempExports, shutdown.CleanupTempExports(a.logger, a.cfg.ExportDir))
	m.Register("logger", shutdown.PriorityLogger, shutdown.SyncLogger(a.logger))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(l) }()

	var runErr error
	select {
	case <-m.Context().Done():
	case runErr = <-serveErr:
		a.logger.Error("http server stopped unexpectedly", zap.Error(runErr))
	}
	return errors.Join(runErr, m.Shutdown())
}
