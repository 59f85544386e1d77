package draw

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/overlay"
)

type recordSink struct {
	mu     sync.Mutex
	frames []overlay.Payload
}

func (s *recordSink) Dispatch(p overlay.Payload) {
	s.mu.Lock()
	s.frames = append(s.frames, p)
	s.mu.Unlock()
}

func (s *recordSink) snapshot() []overlay.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]overlay.Payload, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *recordSink) waitFrames(t *testing.T, n int, timeout time.Duration) []overlay.Payload {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if frames := s.snapshot(); len(frames) >= n {
			return frames
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, have %d", n, len(s.snapshot()))
	return nil
}

func screen1080() (int, int) { return 1920, 1080 }

func newTestQueue(t *testing.T, sink Sink) *Queue {
	t.Helper()
	q := NewQueue(sink, screen1080, nil, zerolog.Nop())
	t.Cleanup(q.Close)
	return q
}

func TestQueueExecutesInFIFOOrder(t *testing.T) {
	sink := &recordSink{}
	q := newTestQueue(t, sink)

	q.DestroyBox(0, "first")
	q.DestroyBox(0.1, "second")
	q.DestroyBox(0.2, "third")

	frames := sink.waitFrames(t, 3, 5*time.Second)
	if frames[0].ID != "first" || frames[1].ID != "second" || frames[2].ID != "third" {
		t.Errorf("order = %s, %s, %s", frames[0].ID, frames[1].ID, frames[2].ID)
	}
}

func TestQueueSleepsTimeDeltas(t *testing.T) {
	sink := &recordSink{}
	q := newTestQueue(t, sink)

	start := time.Now()
	q.DestroyBox(0, "a")
	q.DestroyBox(0.3, "b")

	sink.waitFrames(t, 2, 5*time.Second)
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Errorf("second action ran after %v, want at least ~300ms", elapsed)
	}
}

func TestStopAllDropsPending(t *testing.T) {
	sink := &recordSink{}
	q := newTestQueue(t, sink)

	q.DestroyBox(5, "late")
	q.StopAll()

	time.Sleep(200 * time.Millisecond)
	if frames := sink.snapshot(); len(frames) != 0 {
		t.Errorf("dropped action still executed: %v", frames)
	}
	if q.Pending() != 0 {
		t.Errorf("pending = %d after stop", q.Pending())
	}
}

func TestDirectResponseDispatchesImmediately(t *testing.T) {
	sink := &recordSink{}
	q := newTestQueue(t, sink)

	q.DirectResponse("the answer is 42", TextOptions{})

	frames := sink.waitFrames(t, 1, time.Second)
	p := frames[0]
	if p.Command != overlay.CmdDrawText || p.ID != DirectResponseID {
		t.Fatalf("frame = %+v", p)
	}
	if p.Align != "left" || p.Baseline != "top" {
		t.Errorf("align/baseline = %q/%q", p.Align, p.Baseline)
	}
	if p.FontSize != defaultFontSize || p.FontFamily != defaultFontFamily {
		t.Errorf("font = %d %q", p.FontSize, p.FontFamily)
	}
	// Anchored under the command overlay at screen center.
	if p.X != 960 || p.Y != 580 {
		t.Errorf("anchor = (%v,%v), want (960,580)", p.X, p.Y)
	}
}

func TestDirectResponseGateHidesBeforeNextAction(t *testing.T) {
	orig := nowFunc
	// Backdate the hold so the gate fires without a real 4s wait.
	nowFunc = func() time.Time { return time.Now().Add(-directResponseHold) }
	defer func() { nowFunc = orig }()

	sink := &recordSink{}
	q := newTestQueue(t, sink)

	q.DirectResponse("done", TextOptions{})
	q.ClearScreen(0)

	frames := sink.waitFrames(t, 3, 5*time.Second)
	if frames[0].Command != overlay.CmdDrawText {
		t.Errorf("frame 0 = %q", frames[0].Command)
	}
	if frames[1].Command != overlay.CmdOverlayHide || frames[1].ID != DirectResponseID {
		t.Errorf("frame 1 = %+v, want overlay_hide of the direct response", frames[1])
	}
	if frames[2].Command != overlay.CmdClear {
		t.Errorf("frame 2 = %q, want clear", frames[2].Command)
	}
}

func TestDirectResponseGateFiresOnce(t *testing.T) {
	orig := nowFunc
	nowFunc = func() time.Time { return time.Now().Add(-directResponseHold) }
	defer func() { nowFunc = orig }()

	sink := &recordSink{}
	q := newTestQueue(t, sink)

	q.DirectResponse("done", TextOptions{})
	q.DestroyBox(0, "a")
	q.DestroyBox(0, "b")

	frames := sink.waitFrames(t, 4, 5*time.Second)
	hides := 0
	for _, f := range frames {
		if f.Command == overlay.CmdOverlayHide {
			hides++
		}
	}
	if hides != 1 {
		t.Errorf("overlay_hide sent %d times, want 1", hides)
	}
}

func TestCreateTextPanelsDoNotOverlap(t *testing.T) {
	sink := &recordSink{}
	q := newTestQueue(t, sink)

	q.CreateText(0, 500, 400, "first", TextOptions{ID: "t1"})
	q.CreateText(0, 500, 400, "second", TextOptions{ID: "t2"})

	frames := sink.waitFrames(t, 2, 5*time.Second)
	if frames[0].X == frames[1].X && frames[0].Y == frames[1].Y {
		t.Error("second panel not nudged away from the first")
	}

	q.layout.mu.Lock()
	r1, r2 := q.layout.rects["t1"], q.layout.rects["t2"]
	q.layout.mu.Unlock()
	if r1.overlaps(r2, 0) {
		t.Errorf("registered footprints overlap: %+v vs %+v", r1, r2)
	}
}

func TestDestroyTextFreesFootprint(t *testing.T) {
	sink := &recordSink{}
	q := newTestQueue(t, sink)

	q.CreateText(0, 500, 400, "label", TextOptions{ID: "t1"})
	q.DestroyText(0, "t1")
	q.CreateText(0, 500, 400, "label", TextOptions{ID: "t2"})

	frames := sink.waitFrames(t, 3, 5*time.Second)
	// With t1 gone, t2 lands on the original anchor.
	if frames[0].X != frames[2].X || frames[0].Y != frames[2].Y {
		t.Errorf("t2 at (%v,%v), want original anchor (%v,%v)",
			frames[2].X, frames[2].Y, frames[0].X, frames[0].Y)
	}
}

func TestCreateTextForBoxPositions(t *testing.T) {
	sink := &recordSink{}
	q := newTestQueue(t, sink)

	box := Box{X: 1100, Y: 1100, Width: 200, Height: 100}
	if err := q.CreateTextForBox(0, box, "label", "diagonal", TextOptions{}, 0); err == nil {
		t.Error("invalid position must error")
	}

	if err := q.CreateTextForBox(0, box, "above", "top", TextOptions{}, 0); err != nil {
		t.Fatal(err)
	}
	frames := sink.waitFrames(t, 1, 5*time.Second)
	p := frames[0]
	if p.Baseline != "bottom" || p.Align != "center" {
		t.Errorf("top label align/baseline = %q/%q, want center/bottom", p.Align, p.Baseline)
	}
	// Anchor sits above the box top edge.
	if p.Y >= 1100 {
		t.Errorf("top label y = %v, want above box top 1100", p.Y)
	}
}

func TestDrawBoundingBoxGeometry(t *testing.T) {
	sink := &recordSink{}
	q := newTestQueue(t, sink)

	// y_min, x_min, y_max, x_max in absolute pixels.
	q.DrawBoundingBox(0, 1200, 1100, 1300, 1500, BoxOptions{ID: "b"})

	frames := sink.waitFrames(t, 1, 5*time.Second)
	p := frames[0]
	if p.X != 1100 || p.Y != 1200 || p.Width != 400 || p.Height != 100 {
		t.Errorf("box = (%v,%v %vx%v)", p.X, p.Y, p.Width, p.Height)
	}
	if p.Stroke != defaultStroke || p.StrokeWidth != defaultStrokeWidth {
		t.Errorf("stroke = %q width %d", p.Stroke, p.StrokeWidth)
	}
}

func TestDrawPointerToObjectLinksDotAndLabel(t *testing.T) {
	sink := &recordSink{}
	q := newTestQueue(t, sink)

	q.DrawPointerToObject(0, 1100, 1200, "the button", 1300, 1250, PointerOptions{ID: "ptr1"})

	frames := sink.waitFrames(t, 2, 5*time.Second)
	dot, label := frames[0], frames[1]
	if dot.Command != overlay.CmdDrawDot || dot.ID != "ptr1" {
		t.Fatalf("dot frame = %+v", dot)
	}
	if dot.LineTargetTextID != "ptr1_text" {
		t.Errorf("line target = %q", dot.LineTargetTextID)
	}
	if dot.LineColor != "#ffffff" || dot.LineWidth != 2 {
		t.Errorf("line styling = %q/%d, want thin white", dot.LineColor, dot.LineWidth)
	}
	if label.Command != overlay.CmdDrawText || label.ID != "ptr1_text" {
		t.Errorf("label frame = %+v", label)
	}
}

func TestDenormalizeViewportFallsBackToScreen(t *testing.T) {
	sink := &recordSink{}
	q := NewQueue(sink, screen1080, func() (int, int) { return 0, 0 }, zerolog.Nop())
	defer q.Close()

	x, y := q.Denormalize(500, 500)
	if x != 960 || y != 540 {
		t.Errorf("denormalize = (%d,%d), want (960,540)", x, y)
	}
}

func TestDenormalizePrefersViewport(t *testing.T) {
	sink := &recordSink{}
	q := NewQueue(sink, screen1080, func() (int, int) { return 1512, 982 }, zerolog.Nop())
	defer q.Close()

	x, y := q.Denormalize(1000, 1000)
	if x != 1512 || y != 982 {
		t.Errorf("denormalize = (%d,%d), want viewport (1512,982)", x, y)
	}
}
