// Package draw schedules overlay operations on a single-consumer timed
// queue and resolves text panel placement so panels never overlap each
// other on screen.
package draw

import "math"

// Coordinate inputs arrive in three bands. Values in [0, 1] are ratios
// of the target dimension, values in (1, 1000] are normalized
// thousandths, anything larger is already absolute pixels.
func toPixels(v float64, size int) int {
	switch {
	case v >= 0 && v <= 1:
		return int(math.Round(v * float64(size)))
	case v > 1 && v <= 1000:
		return int(v / 1000 * float64(size))
	default:
		return int(v)
	}
}

// SizeFunc reports a dimension pair, width then height. A zero pair
// means the value is unknown.
type SizeFunc func() (int, int)

// surface resolves the drawing surface dimensions, preferring the
// renderer-reported viewport over the configured screen size.
func (q *Queue) surface() (int, int) {
	vw, vh := 0, 0
	if q.viewportSize != nil {
		vw, vh = q.viewportSize()
	}
	sw, sh := 0, 0
	if q.screenSize != nil {
		sw, sh = q.screenSize()
	}
	w, h := vw, vh
	if w == 0 {
		w = sw
	}
	if h == 0 {
		h = sh
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Denormalize converts a coordinate pair to pixels on the current
// drawing surface.
func (q *Queue) Denormalize(x, y float64) (int, int) {
	w, h := q.surface()
	return toPixels(x, w), toPixels(y, h)
}

// commandAnchor is where the direct response panel is pinned: just
// under the command overlay at the screen center.
func (q *Queue) commandAnchor() (int, int) {
	w, h := q.surface()
	centerX := w / 2
	baseY := h/2 - 20
	return centerX, baseY + 60
}
