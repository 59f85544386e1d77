package orchestrator

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeQueue struct{ stops atomic.Int32 }

func (f *fakeQueue) StopAll() { f.stops.Add(1) }

type fakeProcs struct{ shutdowns atomic.Int32 }

func (f *fakeProcs) Shutdown() { f.shutdowns.Add(1) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHandleInputRunsOneSession(t *testing.T) {
	var mu sync.Mutex
	var prompts []string
	done := make(chan struct{})

	o := New(Config{
		Run: func(_ context.Context, text string) (string, error) {
			mu.Lock()
			prompts = append(prompts, text)
			mu.Unlock()
			close(done)
			return "ok", nil
		},
	}, zerolog.Nop())

	o.HandleInput("  open the settings  ")
	<-done
	waitFor(t, func() bool { return !o.Busy() })

	mu.Lock()
	defer mu.Unlock()
	if len(prompts) != 1 || prompts[0] != "open the settings" {
		t.Errorf("prompts = %v", prompts)
	}
}

func TestHandleInputIgnoresWhileRunning(t *testing.T) {
	var runs atomic.Int32
	release := make(chan struct{})

	o := New(Config{
		Run: func(ctx context.Context, _ string) (string, error) {
			runs.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return "", nil
		},
	}, zerolog.Nop())

	o.HandleInput("first task")
	waitFor(t, o.Busy)
	o.HandleInput("second task")
	close(release)
	waitFor(t, func() bool { return !o.Busy() })

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestHandleInputDropsRapidDuplicate(t *testing.T) {
	var runs atomic.Int32
	o := New(Config{
		Run: func(context.Context, string) (string, error) {
			runs.Add(1)
			return "", nil
		},
	}, zerolog.Nop())

	o.HandleInput("same text")
	waitFor(t, func() bool { return runs.Load() == 1 && !o.Busy() })
	o.HandleInput("same text")
	time.Sleep(50 * time.Millisecond)

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestHandleInputIgnoresEmpty(t *testing.T) {
	o := New(Config{
		Run: func(context.Context, string) (string, error) {
			t.Error("session started for empty input")
			return "", nil
		},
	}, zerolog.Nop())
	o.HandleInput("   ")
	time.Sleep(20 * time.Millisecond)
}

func TestStopAllCancelsSessionAndFansOut(t *testing.T) {
	queue := &fakeQueue{}
	var visionStops atomic.Int32
	cancelled := make(chan struct{})

	o := New(Config{
		Run: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			close(cancelled)
			return "", ctx.Err()
		},
		StopVision: func() { visionStops.Add(1) },
		Queue:      queue,
	}, zerolog.Nop())

	o.HandleInput("long task")
	waitFor(t, o.Busy)
	o.StopAll()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("session not cancelled")
	}
	if visionStops.Load() != 1 || queue.stops.Load() != 1 {
		t.Errorf("vision stops = %d, queue stops = %d", visionStops.Load(), queue.stops.Load())
	}
	waitFor(t, func() bool { return !o.Busy() })

	// A new session is accepted after the stop.
	ran := make(chan struct{})
	o2 := o
	o2.cfg.Run = func(context.Context, string) (string, error) {
		close(ran)
		return "", nil
	}
	o2.HandleInput("next task")
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("new session not started after stop")
	}
}

func TestCaptureScreenshotStoresImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	o := New(Config{
		Run:     func(context.Context, string) (string, error) { return "", nil },
		Capture: func() (image.Image, error) { return img, nil },
	}, zerolog.Nop())

	if got := o.CaptureScreenshot(); got != img {
		t.Errorf("capture returned %v", got)
	}
	if got := o.Screenshots().Take(); got != img {
		t.Errorf("store returned %v", got)
	}
}

func TestStoreTakeClearsAndFallsBack(t *testing.T) {
	stored := image.NewRGBA(image.Rect(0, 0, 1, 1))
	fresh := image.NewRGBA(image.Rect(0, 0, 3, 3))
	s := NewStore(func() (image.Image, error) { return fresh, nil })

	s.Put(stored)
	if got := s.Take(); got != stored {
		t.Errorf("first take = %v", got)
	}
	if got := s.Take(); got != fresh {
		t.Errorf("second take = %v", got)
	}
}

func TestStoreTakeToleratesCaptureFailure(t *testing.T) {
	s := NewStore(func() (image.Image, error) { return nil, errors.New("no display") })
	if got := s.Take(); got != nil {
		t.Errorf("take = %v", got)
	}
}

func TestShutdownSignalsProcesses(t *testing.T) {
	procs := &fakeProcs{}
	queue := &fakeQueue{}
	o := New(Config{
		Run:   func(context.Context, string) (string, error) { return "", nil },
		Queue: queue,
		Procs: procs,
	}, zerolog.Nop())

	o.Shutdown()
	if procs.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d", procs.shutdowns.Load())
	}
	if queue.stops.Load() != 1 {
		t.Errorf("queue stops = %d", queue.stops.Load())
	}
}
