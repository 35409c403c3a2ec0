// Package orchestrator serializes render requests for one open file. Every
// request gets a new generation; starting one cancels the previous run, and
// a run's result is published only if its generation is still current.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rawdevelop/logging"
	"rawdevelop/params"
	"rawdevelop/pipeline"
	"rawdevelop/shutdown"
)

var (
	ErrClosed  = errors.New("orchestrator: closed")
	ErrNoFile  = errors.New("orchestrator: no file open")
	ErrNoImage = errors.New("orchestrator: no rendered image")
)

// DefaultHistorySize is the number of runs kept by default.
const DefaultHistorySize = 50

// Renderer does the pipeline work. *pipeline.Pipeline implements it.
type Renderer interface {
	RenderObserved(ctx context.Context, path string, ps params.ParameterSet, onStage pipeline.StageFunc) (*pipeline.Bitmap, error)
	ReadMetadata(ctx context.Context, path string) (*pipeline.Metadata, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDefaults sets the parameters used by OpenFile and ResetToDefaults.
// An invalid set is ignored.
func WithDefaults(ps params.ParameterSet) Option {
	return func(o *Orchestrator) {
		if err := ps.Validate(); err != nil {
			o.logger.Warn("ignoring invalid default parameters", zap.Error(err))
			return
		}
		o.defaults = ps
	}
}

// WithHistorySize sets how many finished runs History keeps.
func WithHistorySize(n int) Option {
	return func(o *Orchestrator) { o.history = NewHistory(n) }
}

// WithTracker registers runs and exports with a shared shutdown tracker.
func WithTracker(t *shutdown.Tracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// WithContext derives every run's context from ctx, so cancelling it stops
// all renders.
func WithContext(ctx context.Context) Option {
	return func(o *Orchestrator) { o.base = ctx }
}

// WithRecorder calls fn with every finished run, after it is added to
// History. fn runs under the orchestrator lock and must not block.
func WithRecorder(fn func(Record)) Option {
	return func(o *Orchestrator) { o.recorder = fn }
}

// Orchestrator owns the current file, parameters and last good bitmap. All
// state transitions happen under one lock; renders run on their own
// goroutines and never block callers.
type Orchestrator struct {
	renderer Renderer
	logger   *logging.Logger
	defaults params.ParameterSet
	tracker  *shutdown.Tracker
	history  *History
	recorder func(Record)
	base     context.Context

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	subs   map[int]chan State
	nextID int
	closed bool
}

// New returns an idle Orchestrator.
func New(renderer Renderer, logger *logging.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		renderer: renderer,
		logger:   logger.Named("orchestrator"),
		defaults: params.Defaults(),
		tracker:  shutdown.NewTracker(),
		history:  NewHistory(DefaultHistorySize),
		base:     context.Background(),
		subs:     make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.state = State{Phase: PhaseIdle, Params: o.defaults, UpdatedAt: time.Now()}
	return o
}

// Defaults is the parameter set a newly opened file starts with.
func (o *Orchestrator) Defaults() params.ParameterSet { return o.defaults }

// OpenFile cancels any running render, loads metadata for path and starts
// an initial render with the default parameters. The previous bitmap is
// dropped. It returns the new generation.
func (o *Orchestrator) OpenFile(path string) (uint64, error) {
	if path == "" {
		return 0, fmt.Errorf("%w: empty path", ErrNoFile)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, ErrClosed
	}
	next := State{
		Phase:    PhaseLoading,
		Path:     path,
		Params:   o.defaults,
		Progress: ProgressLoading,
	}
	return o.startLocked(next, true)
}

// UpdateParams cancels any running render and starts a new one with ps.
// Invalid parameters are rejected without touching state. With no file
// open, ps is stored for the next render and the generation is unchanged.
func (o *Orchestrator) UpdateParams(ps params.ParameterSet) (uint64, error) {
	if err := ps.Validate(); err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, ErrClosed
	}
	return o.updateLocked(ps)
}

// UpdateParamsWith is UpdateParams with the next set derived from the
// current one by fn while the lock is held. fn must not call the
// orchestrator. An error from fn is returned unchanged and leaves the
// state untouched.
func (o *Orchestrator) UpdateParamsWith(fn func(params.ParameterSet) (params.ParameterSet, error)) (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, ErrClosed
	}
	ps, err := fn(o.state.Params)
	if err != nil {
		return 0, err
	}
	if err := ps.Validate(); err != nil {
		return 0, err
	}
	return o.updateLocked(ps)
}

func (o *Orchestrator) updateLocked(ps params.ParameterSet) (uint64, error) {
	if !o.state.HasFile() {
		o.state.Params = ps
		o.publishLocked()
		return o.state.Generation, nil
	}

	next := o.state
	next.Params = ps
	next.Err = nil
	needMetadata := next.Metadata == nil
	if needMetadata {
		next.Phase, next.Progress = PhaseLoading, ProgressLoading
	} else {
		next.Phase, next.Progress = PhaseRendering, ProgressProcessing
	}
	return o.startLocked(next, needMetadata)
}

// ResetToDefaults is UpdateParams with the default parameter set.
func (o *Orchestrator) ResetToDefaults() (uint64, error) {
	return o.UpdateParams(o.defaults)
}

// CurrentState returns a snapshot of the current state.
func (o *Orchestrator) CurrentState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History returns up to n recent runs, oldest first. n <= 0 returns all.
func (o *Orchestrator) History(n int) []Record { return o.history.Last(n) }

// ExportCurrentAsEncoded writes the last Ready bitmap to path.
func (o *Orchestrator) ExportCurrentAsEncoded(path string, quality float64) error {
	o.mu.Lock()
	bm, closed := o.state.Bitmap, o.closed
	gen := o.state.BitmapGeneration
	o.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if bm == nil {
		return ErrNoImage
	}
	if !o.tracker.Start() {
		return ErrClosed
	}
	defer o.tracker.Done()

	start := time.Now()
	if err := pipeline.SaveAsEncoded(bm, path, quality); err != nil {
		o.logger.Warn("export failed", zap.String("path", path), zap.Error(err))
		return err
	}
	o.logger.Info("exported image",
		zap.String("path", path),
		zap.Uint64("generation", gen),
		zap.Float64("quality", quality),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Subscribe returns a channel that always holds the latest state. Slow
// readers miss intermediate states but never the most recent one. The
// returned func unsubscribes and closes the channel.
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextID
	o.nextID++
	o.subs[id] = ch
	ch <- o.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if c, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(c)
			}
		})
	}
}

// WaitIdle blocks until no render or export is running, or ctx ends.
func (o *Orchestrator) WaitIdle(ctx context.Context) error {
	return o.tracker.Wait(ctx)
}

// Close cancels the running render, rejects further requests, closes all
// subscriptions and waits for in-flight work to release its resources.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		if o.cancel != nil {
			o.cancel()
			o.cancel = nil
		}
		for id, ch := range o.subs {
			delete(o.subs, id)
			close(ch)
		}
	}
	o.mu.Unlock()
	return o.tracker.Wait(ctx)
}

func (o *Orchestrator) startLocked(next State, needMetadata bool) (uint64, error) {
	if !o.tracker.Start() {
		return 0, ErrClosed
	}
	if o.cancel != nil {
		o.cancel()
	}
	ctx, cancel := context.WithCancel(o.base)
	o.cancel = cancel

	next.Generation = o.state.Generation + 1
	next.RequestID = uuid.NewString()
	o.state = next
	o.publishLocked()

	go o.run(ctx, cancel, next, needMetadata)
	return next.Generation, nil
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, req State, needMetadata bool) {
	defer o.tracker.Done()
	defer cancel()

	timer := logging.StartRender(req.RequestID, req.Generation, req.Path)
	if needMetadata {
		o.setProgress(req.Generation, PhaseLoading, ProgressMetadata)
		md, err := o.renderer.ReadMetadata(ctx, req.Path)
		if err != nil {
			o.finish(timer, req, nil, err)
			return
		}
		if !o.setMetadata(req.Generation, md) {
			o.finish(timer, req, nil, nil)
			return
		}
	}

	bm, err := o.renderer.RenderObserved(ctx, req.Path, req.Params, func(s pipeline.Stage) {
		o.setProgress(req.Generation, PhaseRendering, ProgressFor(s))
	})
	o.finish(timer, req, bm, err)
}

func (o *Orchestrator) setProgress(gen uint64, phase Phase, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.state.Generation {
		return
	}
	o.state.Phase = phase
	o.state.Progress = msg
	o.publishLocked()
}

func (o *Orchestrator) setMetadata(gen uint64, md *pipeline.Metadata) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.state.Generation {
		return false
	}
	o.state.Metadata = md
	o.state.Phase = PhaseRendering
	o.state.Progress = ProgressProcessing
	o.publishLocked()
	return true
}

// finish publishes a run's outcome if its generation is still current.
func (o *Orchestrator) finish(timer *logging.RenderTimer, req State, bm *pipeline.Bitmap, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec := Record{Params: req.Params}
	switch {
	case req.Generation != o.state.Generation:
		rec.RenderMetrics = timer.Finish(logging.OutcomeDiscarded, "", 0, 0)
		o.logger.Debug("discarded stale render",
			logging.RenderFields(rec.RenderMetrics),
			zap.Uint64("current_generation", o.state.Generation),
		)

	case pipeline.IsCancelled(err):
		// Only Close or the base context cancel the current generation.
		rec.RenderMetrics = timer.Finish(logging.OutcomeCancelled, "", 0, 0)
		o.logger.Info("render cancelled", logging.RenderFields(rec.RenderMetrics))

	case err != nil:
		var se *pipeline.StageError
		stage := ""
		if errors.As(err, &se) {
			stage = string(se.Stage)
		}
		rec.RenderMetrics = timer.Finish(logging.OutcomeFailed, stage, 0, 0)
		rec.Error = err.Error()
		o.state.Phase = PhaseFailed
		o.state.Err = err
		o.state.Progress = err.Error()
		o.cancel = nil
		o.publishLocked()
		o.logger.Warn("render failed", logging.RenderFields(rec.RenderMetrics), zap.Error(err))

	default:
		rec.RenderMetrics = timer.Finish(logging.OutcomeReady, "", bm.Width, bm.Height)
		o.state.Phase = PhaseReady
		o.state.Bitmap = bm
		o.state.BitmapGeneration = req.Generation
		o.state.Err = nil
		o.state.Progress = ProgressDone
		o.cancel = nil
		o.publishLocked()
		o.logger.Info("render ready", logging.RenderFields(rec.RenderMetrics))
	}
	o.history.Push(rec)
	if o.recorder != nil {
		o.recorder(rec)
	}
}

// publishLocked stamps the state and replaces whatever each subscriber has
// not yet read.
func (o *Orchestrator) publishLocked() {
	o.state.UpdatedAt = time.Now()
	for _, ch := range o.subs {
		select {
		case ch <- o.state:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		ch <- o.state
	}
}
