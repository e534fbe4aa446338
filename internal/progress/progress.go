package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/panbanda/pydeadcode/pkg/analyzer"
)

// Tracker wraps a progress bar for file processing.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	w     io.Writer
}

// NewSpinner creates a spinner for operations with unknown total count.
func NewSpinner(w io.Writer, label string) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, label: label, w: w}
}

// NewTracker creates a progress bar with the given label and total count.
func NewTracker(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, w: w}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.bar.Add(1)
}

// FinishSuccess clears the bar completely (no output).
func (t *Tracker) FinishSuccess() {
	t.bar.Finish()
	t.bar.Clear()
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	t.bar.Finish()
	t.bar.Clear()
	fmt.Fprintf(t.w, "  %s error: %v\n", t.label, err)
}

// stageLabels maps analyzer stages to bar descriptions.
var stageLabels = map[string]string{
	analyzer.StageParse:   "Parsing",
	analyzer.StageResolve: "Resolving",
}

// Stages shows one bar per analyzer stage. The analyzer reports stage
// transitions and per-file completion through the tracker returned by
// Tracker; Stages swaps bars as stages begin.
type Stages struct {
	mu      sync.Mutex
	w       io.Writer
	current *Tracker
}

// NewStages creates a stage display writing to w (os.Stderr when nil).
func NewStages(w io.Writer) *Stages {
	if w == nil {
		w = os.Stderr
	}
	return &Stages{w: w}
}

// Tracker returns an analyzer tracker that drives this display.
func (s *Stages) Tracker() *analyzer.Tracker {
	return analyzer.NewTracker(s.onProgress).OnStage(s.onStage)
}

func (s *Stages) onStage(stage string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.FinishSuccess()
	}
	label, ok := stageLabels[stage]
	if !ok {
		label = stage
	}
	s.current = NewTracker(s.w, label, total)
}

func (s *Stages) onProgress(_ string, _, _ int, _ string) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current != nil {
		current.Tick()
	}
}

// Finish clears the active bar, if any.
func (s *Stages) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.FinishSuccess()
		s.current = nil
	}
}

// Fail clears the active bar and reports err.
func (s *Stages) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.FinishError(err)
		s.current = nil
	}
}
