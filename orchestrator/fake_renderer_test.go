package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"rawdevelop/logging"
	"rawdevelop/params"
	"rawdevelop/pipeline"
	"rawdevelop/rawruntime"
)

type renderCall struct {
	path    string
	ps      params.ParameterSet
	ctx     context.Context
	proceed chan struct{}
}

// fakeRenderer returns a bitmap whose width is the 1-based call number.
// With block set, each call waits for its proceed channel.
type fakeRenderer struct {
	block        bool
	ignoreCancel bool
	metaErr      error
	renderErr    func(call int) error

	started chan *renderCall

	mu        sync.Mutex
	calls     []*renderCall
	metaCalls int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{started: make(chan *renderCall, 16)}
}

func (f *fakeRenderer) ReadMetadata(_ context.Context, path string) (*pipeline.Metadata, error) {
	f.mu.Lock()
	f.metaCalls++
	err := f.metaErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &pipeline.Metadata{Camera: rawruntime.CameraInfo{Make: "Fake", Model: path}}, nil
}

func (f *fakeRenderer) RenderObserved(ctx context.Context, path string, ps params.ParameterSet, onStage pipeline.StageFunc) (*pipeline.Bitmap, error) {
	c := &renderCall{path: path, ps: ps, ctx: ctx, proceed: make(chan struct{})}
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	f.started <- c

	if onStage != nil {
		onStage(pipeline.StageOpen)
	}
	if f.block {
		if f.ignoreCancel {
			<-c.proceed
		} else {
			select {
			case <-c.proceed:
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", pipeline.ErrCancelled, ctx.Err())
			}
		}
	}
	if f.renderErr != nil {
		if err := f.renderErr(n); err != nil {
			return nil, err
		}
	}
	w := n + 1
	return &pipeline.Bitmap{Width: w, Height: 1, Channels: 3, BitsPerSample: 8, Pix: make([]byte, 3*w)}, nil
}

func (f *fakeRenderer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRenderer) lastCall() *renderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func newTestOrchestrator(t *testing.T, r Renderer, opts ...Option) *Orchestrator {
	t.Helper()
	o := New(r, logging.NewFromCore(zaptest.NewLogger(t).Core()), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = o.Close(ctx)
	})
	return o
}

func waitStarted(t *testing.T, f *fakeRenderer) *renderCall {
	t.Helper()
	select {
	case c := <-f.started:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("render did not start")
		return nil
	}
}

func waitFor(t *testing.T, o *Orchestrator, cond func(State) bool) State {
	t.Helper()
	ch, unsubscribe := o.Subscribe()
	defer unsubscribe()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				t.Fatal("subscription closed while waiting")
			}
			if cond(s) {
				return s
			}
		case <-timeout:
			t.Fatalf("timed out waiting; current state %+v", o.CurrentState())
		}
	}
}

func waitHistory(t *testing.T, o *Orchestrator, n int) []Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if recs := o.History(0); len(recs) >= n {
			return recs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("history never reached %d records", n)
	return nil
}

func isPhase(p Phase) func(State) bool {
	return func(s State) bool { return s.Phase == p }
}
