package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rawdevelop/core"
	"rawdevelop/logging"
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 30 * time.Second

// Manager owns the process lifetime context. A first SIGINT or SIGTERM
// cancels it; a second exits immediately.
//
//	m := shutdown.NewManager(logger)
//	m.Register("http", shutdown.PriorityHTTPServer, srv.Shutdown)
//	m.Start()
//	<-m.Context().Done()
//	err := m.Shutdown()
type Manager struct {
	logger  *logging.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	tracker *Tracker
	hooks   *Hooks
	signals *signalCounter
	sigCh   chan os.Signal

	mu       sync.Mutex
	started  bool
	finished bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the shutdown deadline.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithParent derives the lifetime context from parent instead of Background.
func WithParent(parent context.Context) Option {
	return func(m *Manager) {
		m.cancel()
		m.ctx, m.cancel = context.WithCancel(parent)
	}
}

// NewManager returns a Manager that has not yet subscribed to signals.
func NewManager(logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		logger:  logger.Named("shutdown"),
		timeout: DefaultTimeout,
		tracker: NewTracker(),
		hooks:   NewHooks(),
		sigCh:   make(chan os.Signal, 1),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(m)
	}
	m.signals = &signalCounter{forceAfter: 2, onForce: func() {
		m.logger.Warn("second signal received, exiting immediately")
		_ = m.logger.Sync()
		os.Exit(core.ExitCodeError)
	}}
	return m
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context { return m.ctx }

// Tracker is the in-flight work tracker Shutdown waits on.
func (m *Manager) Tracker() *Tracker { return m.tracker }

// Register adds a cleanup hook. Lower priorities run first.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.hooks.Add(name, priority, fn)
	m.logger.Debug("registered shutdown hook", zap.String("name", name), zap.Int("priority", priority))
}

// Handlers lists hook names in execution order.
func (m *Manager) Handlers() []string { return m.hooks.Names() }

// Start begins listening for SIGINT and SIGTERM. Repeat calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigCh {
			if m.signals.increment() == 1 {
				m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
				m.cancel()
			}
		}
	}()
}

// Trigger begins shutdown without a signal.
func (m *Manager) Trigger() { m.cancel() }

// ShuttingDown reports whether the lifetime context has been cancelled.
func (m *Manager) ShuttingDown() bool { return m.ctx.Err() != nil }

// Shutdown cancels the lifetime context, stops new work, waits for running
// renders and exports, then runs the hooks with whatever time remains.
// Later calls return nil.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return nil
	}
	m.finished = true
	started := m.started
	m.mu.Unlock()

	begin := time.Now()
	deadline, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.cancel()
	m.tracker.Close()
	if n := m.tracker.Active(); n > 0 {
		m.logger.Info("waiting for in-flight work", zap.Int64("active", n))
	}
	if err := m.tracker.Wait(deadline); err != nil {
		m.logger.Warn("in-flight work did not finish", zap.Error(err))
	}

	hookCtx := deadline
	if deadline.Err() != nil {
		var hookCancel context.CancelFunc
		hookCtx, hookCancel = context.WithTimeout(context.Background(), time.Second)
		defer hookCancel()
	}
	err := m.hooks.Run(hookCtx)
	if err != nil {
		m.logger.Error("shutdown hooks failed", zap.Error(err))
	} else {
		m.logger.Info("shutdown complete", zap.Duration("took", time.Since(begin)))
	}

	if started {
		signal.Stop(m.sigCh)
		close(m.sigCh)
	}
	return err
}
