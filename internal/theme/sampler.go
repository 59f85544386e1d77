// Package theme decides overlay styling by sampling screen luminance.
//
// The sampler keeps the most recent screenshot and answers "should this
// element use light or dark text" per draw point. When no usable
// screenshot exists it retains its previous answer rather than flapping.
package theme

import (
	"image"
	"sync"
)

// Luminance thresholds, tuned against real desktops. Inverted panel
// modes (text panels, pills) render their own background, so they
// compare against different cut lines than bare strokes.
const (
	DarkLuminanceThreshold           = 112
	InvertedPanelDarkThreshold       = 45
	StatusInvertedPanelDarkThreshold = 132

	sampleRadius = 12
	sampleStep   = 4
)

// Sampler samples the cached screenshot to pick palettes.
type Sampler struct {
	mu       sync.Mutex
	img      image.Image
	lastDark bool
	cursorX  int
	cursorY  int

	// screenSize reports the logical screen dimensions for the status
	// bubble probe point; falls back to the screenshot size.
	screenSize func() (int, int)
}

// NewSampler creates a sampler. screenSize may be nil.
func NewSampler(screenSize func() (int, int)) *Sampler {
	return &Sampler{screenSize: screenSize}
}

// SetScreenshot replaces the cached screenshot. Invalid captures
// (nil or near-all-black) are dropped so the previous frame keeps
// answering.
func (s *Sampler) SetScreenshot(img image.Image) {
	if img == nil || LikelyInvalid(img) {
		return
	}
	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
}

// SetCursorPos records the last cursor position for cursor-pill theming.
func (s *Sampler) SetCursorPos(x, y int) {
	s.mu.Lock()
	s.cursorX, s.cursorY = x, y
	s.mu.Unlock()
}

// LikelyInvalid reports whether a capture is unusable: a sparse grid
// sample where at least 90% of pixels are near-black (every channel ≤ 4)
// indicates a failed capture path, not a dark desktop.
func LikelyInvalid(img image.Image) bool {
	if img == nil {
		return true
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return true
	}

	stepY := h / 6
	if stepY < 1 {
		stepY = 1
	}
	stepX := w / 6
	if stepX < 1 {
		stepX = 1
	}

	darkLike, total := 0, 0
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			total++
			if r>>8 <= 4 && g>>8 <= 4 && bl>>8 <= 4 {
				darkLike++
			}
		}
	}
	if total == 0 {
		return true
	}
	return float64(darkLike)/float64(total) >= 0.9
}

// darkAt averages Rec.709 luminance over a local neighborhood and
// compares against threshold. With no screenshot it returns the last
// decision.
func (s *Sampler) darkAt(x, y, threshold int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		return s.lastDark
	}
	b := s.img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return s.lastDark
	}

	px := clampInt(x, 0, w-1)
	py := clampInt(y, 0, h-1)

	var sum float64
	count := 0
	for dy := -sampleRadius; dy <= sampleRadius; dy += sampleStep {
		sy := clampInt(py+dy, 0, h-1)
		for dx := -sampleRadius; dx <= sampleRadius; dx += sampleStep {
			sx := clampInt(px+dx, 0, w-1)
			r, g, bl, _ := s.img.At(b.Min.X+sx, b.Min.Y+sy).RGBA()
			sum += 0.2126*float64(r>>8) + 0.7152*float64(g>>8) + 0.0722*float64(bl>>8)
			count++
		}
	}
	if count == 0 {
		return s.lastDark
	}

	dark := sum/float64(count) < float64(threshold)
	s.lastDark = dark
	return dark
}

// ForPoint returns the palette for a bare stroke (box, dot) at a point.
func (s *Sampler) ForPoint(x, y int) Palette {
	return palette(s.darkAt(x, y, DarkLuminanceThreshold))
}

// ForText returns the palette for a text panel anchored at a point. The
// panel paints its own background, so the result is inverted against a
// stricter threshold.
func (s *Sampler) ForText(x, y int) Palette {
	return palette(!s.darkAt(x, y, InvertedPanelDarkThreshold))
}

// ForStatus returns the palette for the top status bubble, probed at the
// top strip center with the lenient status threshold.
func (s *Sampler) ForStatus() Palette {
	w, h := 0, 0
	if s.screenSize != nil {
		w, h = s.screenSize()
	}
	if w == 0 || h == 0 {
		s.mu.Lock()
		if s.img != nil {
			b := s.img.Bounds()
			w = b.Dx()
		}
		s.mu.Unlock()
	}
	if w == 0 {
		w = 1920
	}
	return palette(!s.darkAt(w/2, 50, StatusInvertedPanelDarkThreshold))
}

// ForCursor returns the palette for the cursor pill at the last known
// cursor position.
func (s *Sampler) ForCursor() Palette {
	s.mu.Lock()
	x, y := s.cursorX, s.cursorY
	s.mu.Unlock()
	return palette(!s.darkAt(x, y, InvertedPanelDarkThreshold))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
