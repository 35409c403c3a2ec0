package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rawdevelop/logging"
	"rawdevelop/params"
	"rawdevelop/pipeline"
	"rawdevelop/rawruntime"
	"rawdevelop/shutdown"
)

func TestOpenFile_RendersWithDefaults(t *testing.T) {
	f := newFakeRenderer()
	o := newTestOrchestrator(t, f)

	if s := o.CurrentState(); s.Phase != PhaseIdle || s.HasFile() {
		t.Fatalf("initial state = %v (file %q), want idle with no file", s.Phase, s.Path)
	}

	gen, err := o.OpenFile("a.raw")
	if err != nil {
		t.Fatalf("OpenFile() error: %v", err)
	}
	s := waitFor(t, o, isPhase(PhaseReady))

	if s.Generation != gen || s.BitmapGeneration != gen {
		t.Errorf("generation = %d, bitmap generation = %d, want %d", s.Generation, s.BitmapGeneration, gen)
	}
	if s.Bitmap == nil || s.Bitmap.Width != 1 {
		t.Fatalf("bitmap = %+v, want first render", s.Bitmap)
	}
	if s.Metadata == nil || s.Metadata.Camera.Model != "a.raw" {
		t.Errorf("metadata = %+v", s.Metadata)
	}
	if diff := cmp.Diff(params.Defaults(), f.lastCall().ps); diff != "" {
		t.Errorf("render params mismatch (-want +got):\n%s", diff)
	}
	if s.RequestID == "" || s.Progress != ProgressDone {
		t.Errorf("request id %q, progress %q", s.RequestID, s.Progress)
	}
	recs := waitHistory(t, o, 1)
	if recs[0].Outcome != logging.OutcomeReady || recs[0].Generation != gen {
		t.Errorf("history = %+v", recs)
	}
}

func TestGenerationDiscard_OlderFinishesLast(t *testing.T) {
	f := newFakeRenderer()
	f.block, f.ignoreCancel = true, true
	o := newTestOrchestrator(t, f)

	if _, err := o.OpenFile("a.raw"); err != nil {
		t.Fatal(err)
	}
	first := waitStarted(t, f)

	ps := params.Defaults()
	ps.ExposureStops = 1
	gen2, err := o.UpdateParams(ps)
	if err != nil {
		t.Fatalf("UpdateParams() error: %v", err)
	}
	second := waitStarted(t, f)
	if first.ctx.Err() == nil {
		t.Error("older run was not cancelled when a newer one started")
	}

	close(second.proceed)
	s := waitFor(t, o, isPhase(PhaseReady))
	if s.BitmapGeneration != gen2 || s.Bitmap.Width != 2 {
		t.Fatalf("ready from generation %d (width %d), want %d", s.BitmapGeneration, s.Bitmap.Width, gen2)
	}

	close(first.proceed)
	if err := o.WaitIdle(context.Background()); err != nil {
		t.Fatal(err)
	}
	s = o.CurrentState()
	if s.BitmapGeneration != gen2 || s.Bitmap.Width != 2 || s.Params != ps {
		t.Errorf("stale result overwrote state: generation %d width %d", s.BitmapGeneration, s.Bitmap.Width)
	}

	recs := o.History(0)
	if len(recs) != 2 || recs[0].Outcome != logging.OutcomeReady || recs[1].Outcome != logging.OutcomeDiscarded {
		t.Errorf("history outcomes = %+v", recs)
	}
}

func TestGenerationDiscard_OlderFinishesFirst(t *testing.T) {
	f := newFakeRenderer()
	f.block, f.ignoreCancel = true, true
	o := newTestOrchestrator(t, f)

	if _, err := o.OpenFile("a.raw"); err != nil {
		t.Fatal(err)
	}
	first := waitStarted(t, f)
	gen2, err := o.UpdateParams(params.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	second := waitStarted(t, f)

	close(first.proceed)
	recs := waitHistory(t, o, 1)
	if recs[0].Outcome != logging.OutcomeDiscarded || recs[0].Generation != gen2-1 {
		t.Errorf("first record = %+v, want discarded older generation", recs[0])
	}
	if s := o.CurrentState(); s.Phase == PhaseReady || s.Bitmap != nil {
		t.Errorf("older result was published: phase %v bitmap %+v", s.Phase, s.Bitmap)
	}

	close(second.proceed)
	s := waitFor(t, o, isPhase(PhaseReady))
	if s.BitmapGeneration != gen2 {
		t.Errorf("ready generation = %d, want %d", s.BitmapGeneration, gen2)
	}
}

func TestUpdateParams_CancelsRunningRender(t *testing.T) {
	f := newFakeRenderer()
	f.block = true
	o := newTestOrchestrator(t, f)

	if _, err := o.OpenFile("a.raw"); err != nil {
		t.Fatal(err)
	}
	first := waitStarted(t, f)
	gen2, _ := o.UpdateParams(params.Defaults())
	second := waitStarted(t, f)

	select {
	case <-first.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("older render context was not cancelled")
	}
	close(second.proceed)
	if s := waitFor(t, o, isPhase(PhaseReady)); s.BitmapGeneration != gen2 {
		t.Errorf("ready generation = %d, want %d", s.BitmapGeneration, gen2)
	}
}

func TestFailedRender_KeepsLastGoodBitmap(t *testing.T) {
	f := newFakeRenderer()
	renderErr := &pipeline.StageError{
		Stage:   pipeline.StageRender,
		Code:    rawruntime.InsufficientMemory,
		Message: "insufficient memory",
		Kind:    pipeline.ErrRenderFailed,
	}
	f.renderErr = func(call int) error {
		if call == 1 {
			return renderErr
		}
		return nil
	}
	o := newTestOrchestrator(t, f)

	gen1, _ := o.OpenFile("a.raw")
	waitFor(t, o, isPhase(PhaseReady))

	ps := params.Defaults()
	ps.Brightness = 2
	if _, err := o.UpdateParams(ps); err != nil {
		t.Fatal(err)
	}
	s := waitFor(t, o, isPhase(PhaseFailed))

	if !errors.Is(s.Err, pipeline.ErrRenderFailed) {
		t.Errorf("Err = %v, want ErrRenderFailed", s.Err)
	}
	if s.Bitmap == nil || s.BitmapGeneration != gen1 {
		t.Errorf("last good bitmap not retained: %+v (generation %d)", s.Bitmap, s.BitmapGeneration)
	}
	recs := waitHistory(t, o, 2)
	if last := recs[len(recs)-1]; last.Outcome != logging.OutcomeFailed || last.Stage != "render" || last.Error == "" {
		t.Errorf("failure record = %+v", last)
	}

	if _, err := o.UpdateParams(params.Defaults()); err != nil {
		t.Fatal(err)
	}
	if s := waitFor(t, o, isPhase(PhaseReady)); s.Err != nil {
		t.Errorf("Err = %v after recovery, want nil", s.Err)
	}
}

func TestOpenFile_NewFileClearsBitmap(t *testing.T) {
	f := newFakeRenderer()
	o := newTestOrchestrator(t, f)

	o.OpenFile("a.raw")
	waitFor(t, o, isPhase(PhaseReady))

	f.metaErr = errors.New("no such file")
	if _, err := o.OpenFile("b.raw"); err != nil {
		t.Fatal(err)
	}
	s := waitFor(t, o, isPhase(PhaseFailed))
	if s.Path != "b.raw" || s.Bitmap != nil || s.Metadata != nil {
		t.Errorf("state after failed open = path %q bitmap %v metadata %v", s.Path, s.Bitmap, s.Metadata)
	}
	if f.callCount() != 1 {
		t.Errorf("render called %d times, want 1 (metadata failure stops the run)", f.callCount())
	}
}

func TestUpdateParams_RetriesMetadataAfterFailedOpen(t *testing.T) {
	f := newFakeRenderer()
	f.metaErr = errors.New("busy")
	o := newTestOrchestrator(t, f)

	o.OpenFile("a.raw")
	waitFor(t, o, isPhase(PhaseFailed))

	f.mu.Lock()
	f.metaErr = nil
	f.mu.Unlock()
	if _, err := o.UpdateParams(params.Defaults()); err != nil {
		t.Fatal(err)
	}
	s := waitFor(t, o, isPhase(PhaseReady))
	if s.Metadata == nil {
		t.Error("metadata not loaded on retry")
	}
}

func TestUpdateParams_NoFileStoresOnly(t *testing.T) {
	f := newFakeRenderer()
	o := newTestOrchestrator(t, f)

	ps := params.Defaults()
	ps.Gamma = 2.4
	gen, err := o.UpdateParams(ps)
	if err != nil {
		t.Fatalf("UpdateParams() error: %v", err)
	}
	if gen != 0 {
		t.Errorf("generation = %d, want 0", gen)
	}
	s := o.CurrentState()
	if s.Phase != PhaseIdle || s.Params != ps {
		t.Errorf("state = %v with params %+v", s.Phase, s.Params)
	}
	if f.callCount() != 0 {
		t.Error("render started without a file")
	}
}

func TestUpdateParams_RejectsInvalid(t *testing.T) {
	o := newTestOrchestrator(t, newFakeRenderer())
	o.OpenFile("a.raw")
	before := waitFor(t, o, isPhase(PhaseReady))

	ps := params.Defaults()
	ps.TemperatureK = 100
	if _, err := o.UpdateParams(ps); !errors.Is(err, params.ErrInvalidParams) {
		t.Fatalf("UpdateParams() error = %v, want ErrInvalidParams", err)
	}
	if after := o.CurrentState(); after.Generation != before.Generation || after.Params != before.Params {
		t.Error("invalid parameters changed state")
	}
}

func TestResetToDefaults(t *testing.T) {
	custom := params.Defaults()
	custom.DemosaicAlgorithm = params.DemosaicAHD
	f := newFakeRenderer()
	o := newTestOrchestrator(t, f, WithDefaults(custom))

	o.OpenFile("a.raw")
	waitFor(t, o, isPhase(PhaseReady))
	ps := custom
	ps.ExposureStops = -2
	o.UpdateParams(ps)
	waitFor(t, o, func(s State) bool { return s.Phase == PhaseReady && s.Params == ps })

	if _, err := o.ResetToDefaults(); err != nil {
		t.Fatalf("ResetToDefaults() error: %v", err)
	}
	s := waitFor(t, o, func(s State) bool { return s.Phase == PhaseReady && s.Params == custom })
	if f.lastCall().ps != custom {
		t.Errorf("reset rendered with %+v", f.lastCall().ps)
	}
	if s.Bitmap.Width != 3 {
		t.Errorf("bitmap from call %d, want 3", s.Bitmap.Width)
	}
}

func TestWithDefaults_IgnoresInvalid(t *testing.T) {
	bad := params.Defaults()
	bad.Brightness = 0
	o := newTestOrchestrator(t, newFakeRenderer(), WithDefaults(bad))
	if o.Defaults() != params.Defaults() {
		t.Errorf("Defaults() = %+v, want built-in defaults", o.Defaults())
	}
}

func TestExportCurrentAsEncoded(t *testing.T) {
	o := newTestOrchestrator(t, newFakeRenderer())
	dir := t.TempDir()
	out := filepath.Join(dir, "out.jpg")

	if err := o.ExportCurrentAsEncoded(out, 0.9); !errors.Is(err, ErrNoImage) {
		t.Fatalf("export before render error = %v, want ErrNoImage", err)
	}

	o.OpenFile("a.raw")
	waitFor(t, o, isPhase(PhaseReady))
	if err := o.ExportCurrentAsEncoded(out, 0.9); err != nil {
		t.Fatalf("ExportCurrentAsEncoded() error: %v", err)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Errorf("export not written: %v", err)
	}

	var ee *pipeline.EncodeError
	if err := o.ExportCurrentAsEncoded(filepath.Join(dir, "missing", "out.jpg"), 0.9); !errors.As(err, &ee) {
		t.Errorf("export to missing dir error = %v, want *EncodeError", err)
	}
}

func TestClose(t *testing.T) {
	f := newFakeRenderer()
	f.block = true
	tracker := shutdown.NewTracker()
	o := New(f, nil, WithTracker(tracker))

	o.OpenFile("a.raw")
	running := waitStarted(t, f)
	ch, _ := o.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.Close(ctx); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if running.ctx.Err() == nil {
		t.Error("running render was not cancelled")
	}
	if tracker.Active() != 0 {
		t.Errorf("%d runs still active after Close", tracker.Active())
	}
	for range ch {
	}

	if _, err := o.OpenFile("b.raw"); !errors.Is(err, ErrClosed) {
		t.Errorf("OpenFile() after Close error = %v, want ErrClosed", err)
	}
	if _, err := o.UpdateParams(params.Defaults()); !errors.Is(err, ErrClosed) {
		t.Errorf("UpdateParams() after Close error = %v, want ErrClosed", err)
	}
	if recs := o.History(0); len(recs) != 1 || recs[0].Outcome != logging.OutcomeCancelled {
		t.Errorf("history = %+v, want one cancelled run", recs)
	}
	late, _ := o.Subscribe()
	if s, ok := <-late; ok {
		t.Errorf("Subscribe() after Close delivered %v", s.Phase)
	}
}

func TestClosedTrackerRejectsRenders(t *testing.T) {
	tracker := shutdown.NewTracker()
	tracker.Close()
	o := New(newFakeRenderer(), nil, WithTracker(tracker))
	if _, err := o.OpenFile("a.raw"); !errors.Is(err, ErrClosed) {
		t.Errorf("OpenFile() error = %v, want ErrClosed", err)
	}
}

func TestOpenFile_EmptyPath(t *testing.T) {
	o := newTestOrchestrator(t, newFakeRenderer())
	if _, err := o.OpenFile(""); !errors.Is(err, ErrNoFile) {
		t.Errorf("OpenFile(\"\") error = %v, want ErrNoFile", err)
	}
}

func TestWithRecorder_SeesEveryRun(t *testing.T) {
	f := newFakeRenderer()
	got := make(chan Record, 4)
	o := newTestOrchestrator(t, f, WithRecorder(func(r Record) { got <- r }))

	if _, err := o.OpenFile("a.raw"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, o, isPhase(PhaseReady))

	ps := params.Defaults()
	ps.ExposureStops = 1
	gen, err := o.UpdateParams(ps)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, o, func(s State) bool { return s.Phase == PhaseReady && s.BitmapGeneration == gen })

	var recs []Record
	for len(recs) < 2 {
		select {
		case r := <-got:
			recs = append(recs, r)
		case <-time.After(2 * time.Second):
			t.Fatalf("recorder saw %d runs, want 2", len(recs))
		}
	}
	if recs[1].Generation != gen || recs[1].Params.ExposureStops != 1 {
		t.Errorf("second record = %+v", recs[1])
	}
	if diff := cmp.Diff(o.History(0), recs); diff != "" {
		t.Errorf("recorder and history disagree (-history +recorder):\n%s", diff)
	}
}

func TestUpdateParamsWith(t *testing.T) {
	f := newFakeRenderer()
	o := newTestOrchestrator(t, f)
	o.OpenFile("a.raw")
	before := waitFor(t, o, isPhase(PhaseReady))

	t.Run("fn error leaves state", func(t *testing.T) {
		errBody := errors.New("bad body")
		_, err := o.UpdateParamsWith(func(ps params.ParameterSet) (params.ParameterSet, error) {
			ps.Gamma = 3
			return ps, errBody
		})
		if !errors.Is(err, errBody) {
			t.Fatalf("error = %v, want %v", err, errBody)
		}
		if after := o.CurrentState(); after.Generation != before.Generation || after.Params != before.Params {
			t.Error("failed update changed state")
		}
	})

	t.Run("invalid result rejected", func(t *testing.T) {
		_, err := o.UpdateParamsWith(func(ps params.ParameterSet) (params.ParameterSet, error) {
			ps.Gamma = 10
			return ps, nil
		})
		if !errors.Is(err, params.ErrInvalidParams) {
			t.Fatalf("error = %v, want ErrInvalidParams", err)
		}
		if after := o.CurrentState(); after.Generation != before.Generation {
			t.Error("invalid update started a render")
		}
	})

	t.Run("derives from current", func(t *testing.T) {
		gen, err := o.UpdateParamsWith(func(ps params.ParameterSet) (params.ParameterSet, error) {
			if ps != before.Params {
				t.Errorf("fn got %+v, want current params", ps)
			}
			ps.Gamma = 3
			return ps, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		s := waitFor(t, o, isPhase(PhaseReady))
		if gen != before.Generation+1 || s.BitmapGeneration != gen {
			t.Errorf("generation = %d, bitmap generation = %d, want %d", gen, s.BitmapGeneration, before.Generation+1)
		}
		if got := f.lastCall().ps.Gamma; got != 3 {
			t.Errorf("rendered gamma = %v, want 3", got)
		}
	})
}

func TestUpdateParamsWith_ConcurrentEditsAllApply(t *testing.T) {
	o := newTestOrchestrator(t, newFakeRenderer())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.UpdateParamsWith(func(ps params.ParameterSet) (params.ParameterSet, error) {
				ps.Tint++
				return ps, nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := o.CurrentState().Params.Tint; got != n {
		t.Errorf("tint = %v, want %d", got, n)
	}
}
