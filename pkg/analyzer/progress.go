package analyzer

import (
	"context"
	"sync"
	"sync/atomic"
)

// Stage names reported by the dead code pipeline.
const (
	StageParse   = "parse"
	StageResolve = "resolve"
)

// ProgressFunc is called to report analysis progress.
// stage names the pipeline phase, current is the number of items processed
// in that phase, total is its item count, and path is the item just finished.
type ProgressFunc func(stage string, current, total int, path string)

// StageFunc is called when a new stage begins.
type StageFunc func(stage string, total int)

// Tracker tracks progress across the stages of an analysis run.
// It is safe for concurrent use from multiple goroutines.
type Tracker struct {
	mu       sync.RWMutex
	stage    string
	total    atomic.Int32
	current  atomic.Int32
	callback ProgressFunc
	onStage  StageFunc
}

// NewTracker creates a new progress tracker with the given callback.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// OnStage registers fn to be called at every stage transition.
func (t *Tracker) OnStage(fn StageFunc) *Tracker {
	t.mu.Lock()
	t.onStage = fn
	t.mu.Unlock()
	return t
}

// Begin starts a new stage with total items, resetting the counters.
func (t *Tracker) Begin(stage string, total int) {
	t.mu.Lock()
	t.stage = stage
	t.total.Store(int32(total))
	t.current.Store(0)
	fn := t.onStage
	t.mu.Unlock()

	if fn != nil {
		fn(stage, total)
	}
}

// Tick marks one item of the current stage as completed.
func (t *Tracker) Tick(path string) {
	t.mu.RLock()
	stage := t.stage
	t.mu.RUnlock()

	current := int(t.current.Add(1))
	total := int(t.total.Load())
	if t.callback != nil {
		t.callback(stage, current, total, path)
	}
}

// Stage returns the name of the current stage.
func (t *Tracker) Stage() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stage
}

// Current returns the progress count of the current stage.
func (t *Tracker) Current() int {
	return int(t.current.Load())
}

// Total returns the item count of the current stage.
func (t *Tracker) Total() int {
	return int(t.total.Load())
}

type trackerKey struct{}

// WithTracker returns a context that carries a progress tracker.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext extracts the progress tracker from the context.
// Returns nil if no tracker was set.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
