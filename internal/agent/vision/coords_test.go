package vision

import (
	"math"
	"testing"
)

func almost(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.01 {
		t.Errorf("got %.3f, want %.3f", got, want)
	}
}

func TestToPixelsBands(t *testing.T) {
	almost(t, toPixels(0.5, 1000), 500)     // ratio
	almost(t, toPixels(500, 2000), 1000)    // normalized 0-1000
	almost(t, toPixels(1500, 1000), 1500)   // absolute pixels
	almost(t, toPixels(1, 800), 800)        // 1 counts as ratio
	almost(t, toPixels(1000, 800), 800)     // 1000 counts as normalized
	almost(t, toPixels(0, 800), 0)
}

func TestCenterOnScreenNormalized(t *testing.T) {
	f := Frame{
		Width: 1920, Height: 1080,
		LogicalWidth: 1920, LogicalHeight: 1080,
		ScaleX: 1, ScaleY: 1,
	}
	x, y := centerOnScreen(f, bbox{YMin: 400, XMin: 400, YMax: 600, XMax: 600})
	almost(t, x, 960)
	almost(t, y, 540)
}

func TestCenterOnScreenAppliesWindowOffset(t *testing.T) {
	f := Frame{
		Width: 800, Height: 600,
		LogicalWidth: 800, LogicalHeight: 600,
		OffsetX: 100, OffsetY: 50,
		ScaleX:  1, ScaleY: 1,
	}
	x, y := centerOnScreen(f, bbox{YMin: 0, XMin: 0, YMax: 1000, XMax: 1000})
	almost(t, x, 500)
	almost(t, y, 350)
}

func TestCenterOnScreenSwapsInvertedEdges(t *testing.T) {
	f := frameFor(solidImage(1000, 1000), "full_screen")
	x1, y1 := centerOnScreen(f, bbox{YMin: 600, XMin: 600, YMax: 400, XMax: 400})
	x2, y2 := centerOnScreen(f, bbox{YMin: 400, XMin: 400, YMax: 600, XMax: 600})
	almost(t, x1, x2)
	almost(t, y1, y2)
}

func TestLogicalSize(t *testing.T) {
	f := Frame{LogicalWidth: 1000, LogicalHeight: 500, Width: 2000, Height: 1000, ScaleX: 2, ScaleY: 2}
	w, h := logicalSize(f, bbox{YMin: 100, XMin: 100, YMax: 300, XMax: 200})
	almost(t, w, 100) // 100 normalized units of 1000 logical px
	almost(t, h, 100) // 200 normalized units of 500 logical px
}

func TestShouldForceZoom(t *testing.T) {
	cases := []struct {
		name string
		w, h float64
		want bool
	}{
		{"tiny both sides", 50, 50, true},
		{"at side threshold", 96, 96, true},
		{"small area wide strip", 700, 20, true},
		{"at area threshold", 140, 100, true},
		{"large", 300, 200, false},
		{"one long side big area", 97, 200, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := shouldForceZoom(tc.w, tc.h); got != tc.want {
				t.Errorf("shouldForceZoom(%v, %v) = %v, want %v", tc.w, tc.h, got, tc.want)
			}
		})
	}
}

func TestFrameNormalizedFillsDefaults(t *testing.T) {
	f := Frame{Width: 640, Height: 480}.normalized()
	if f.LogicalWidth != 640 || f.LogicalHeight != 480 {
		t.Errorf("logical = %dx%d", f.LogicalWidth, f.LogicalHeight)
	}
	if f.ScaleX != 1 || f.ScaleY != 1 {
		t.Errorf("scale = %vx%v", f.ScaleX, f.ScaleY)
	}
}
