package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AdenKoperczak/grib2pf/pkg/observability"
)

// syncBuffer guards a bytes.Buffer shared with the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerDrawsMessage(t *testing.T) {
	var out syncBuffer
	s := newSpinnerTo(context.Background(), &out, "Fetching")
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Update("Rendering refl.png")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	got := out.String()
	for _, want := range []string{"Fetching", "Rendering refl.png"} {
		if !strings.Contains(got, want) {
			t.Errorf("spinner output does not contain %q", want)
		}
	}
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerTo(ctx, &syncBuffer{}, "Testing with context...")
	s.Start()
	cancel()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context cancellation")
	}
	s.Stop()
}

func TestSpinnerWithTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := newSpinnerTo(ctx, &syncBuffer{}, "Testing with timeout...")
	s.Start()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context timeout")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinnerTo(context.Background(), &syncBuffer{}, "Testing idempotent stop...")
	s.Start()

	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerHooksUpdateMessage(t *testing.T) {
	s := newSpinnerTo(context.Background(), &syncBuffer{}, "start")
	h := spinnerHooks{s: s}

	h.OnFetchStart(context.Background(), "https://example.com/data/MRMS_Refl.latest.grib2.gz")
	if s.message != "Fetching MRMS_Refl.latest.grib2.gz" {
		t.Errorf("message = %q, want %q", s.message, "Fetching MRMS_Refl.latest.grib2.gz")
	}

	h.OnRenderStart(context.Background(), "/srv/pf/refl.png")
	if s.message != "Rendering refl.png" {
		t.Errorf("message = %q, want %q", s.message, "Rendering refl.png")
	}
}

func TestWithSpinnerRestoresHooks(t *testing.T) {
	t.Cleanup(observability.Reset)

	c := New(&syncBuffer{}, LogInfo)
	var during observability.PipelineHooks
	err := c.withSpinner(context.Background(), "working", func() error {
		during = observability.Pipeline()
		return nil
	})
	if err != nil {
		t.Fatalf("withSpinner() error: %v", err)
	}
	if _, ok := during.(spinnerHooks); !ok {
		t.Errorf("hooks during run = %T, want spinnerHooks", during)
	}
	if _, ok := observability.Pipeline().(observability.NoopPipelineHooks); !ok {
		t.Errorf("hooks after run = %T, want NoopPipelineHooks", observability.Pipeline())
	}
}
