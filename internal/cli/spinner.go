package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/AdenKoperczak/grib2pf/pkg/observability"
)

// Spinner provides a simple progress indicator with context cancellation support.
type Spinner struct {
	w       io.Writer
	message string
	width   int // widest message drawn, for clearing
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	frames  []string
	mu      sync.Mutex
}

// newSpinner creates a spinner on stderr that stops when ctx is cancelled.
func newSpinner(ctx context.Context, message string) *Spinner {
	return newSpinnerTo(ctx, os.Stderr, message)
}

func newSpinnerTo(ctx context.Context, w io.Writer, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		w:       w,
		message: message,
		ctx:     spinnerCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := s.frames[i%len(s.frames)]
				s.width = max(s.width, len(s.message))
				pad := strings.Repeat(" ", s.width-len(s.message))
				fmt.Fprintf(s.w, "\r%s %s%s", styleSpinner.Render(frame), StyleDim.Render(s.message), pad)
				s.mu.Unlock()
				i++
			}
		}
	}()
}

// Update replaces the message shown next to the spinner.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop stops the spinner and clears the line. It is safe to call more
// than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
		<-s.stopped
		s.clearLine()
	})
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", max(s.width, len(s.message))+4))
}

// Cancelled returns true if the spinner was stopped due to context cancellation.
func (s *Spinner) Cancelled() bool {
	return s.ctx.Err() != nil
}

// spinnerHooks narrates pipeline stages on a spinner.
type spinnerHooks struct {
	observability.NoopPipelineHooks
	s *Spinner
}

func (h spinnerHooks) OnFetchStart(_ context.Context, url string) {
	h.s.Update("Fetching " + path.Base(url))
}

func (h spinnerHooks) OnRenderStart(_ context.Context, output string) {
	h.s.Update("Rendering " + path.Base(output))
}

// withSpinner runs fn behind a spinner that follows the pipeline stages.
// With verbose logging the log lines already narrate progress and the
// spinner is skipped.
func (c *CLI) withSpinner(ctx context.Context, message string, fn func() error) error {
	if c.verbose() {
		return fn()
	}
	s := newSpinner(ctx, message)
	observability.SetPipelineHooks(spinnerHooks{s: s})
	defer observability.SetPipelineHooks(observability.NoopPipelineHooks{})

	s.Start()
	err := fn()
	s.Stop()
	return err
}
