package vision

// bbox is a model-supplied bounding box in ymin/xmin/ymax/xmax order,
// in any supported coordinate band.
type bbox struct {
	YMin, XMin, YMax, XMax float64
}

// Auto-refinement policy for small targets: bboxes at or under these
// logical dimensions trigger a forced crop-and-search pass.
const (
	autoZoomMinSidePx = 96
	autoZoomMaxAreaPx = 14000
	forcedZoomPadPx   = 400
)

// toPixels converts a coordinate in any supported band to pixels on
// an axis of the given size: ratio [0,1], normalized [0,1000], else
// absolute pixels.
func toPixels(value float64, size int) float64 {
	if value >= 0 && value <= 1 {
		return value * float64(size)
	}
	if value >= 0 && value <= 1000 {
		return value / 1000 * float64(size)
	}
	return value
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// sortedEdges orders a pair so a <= b.
func sortedEdges(a, b float64) (float64, float64) {
	if a > b {
		return b, a
	}
	return a, b
}

// edgesInLogical resolves a bbox to clamped logical-pixel edges for
// the frame: left, top, right, bottom.
func edgesInLogical(f Frame, b bbox) (float64, float64, float64, float64) {
	f = f.normalized()
	w, h := f.LogicalWidth, f.LogicalHeight

	top := toPixels(b.YMin, h)
	left := toPixels(b.XMin, w)
	bottom := toPixels(b.YMax, h)
	right := toPixels(b.XMax, w)

	left, right = sortedEdges(left, right)
	top, bottom = sortedEdges(top, bottom)

	left = clamp(left, 0, maxf(float64(w-1), 0))
	right = clamp(right, 1, maxf(float64(w), 1))
	top = clamp(top, 0, maxf(float64(h-1), 0))
	bottom = clamp(bottom, 1, maxf(float64(h), 1))
	return left, top, right, bottom
}

// centerOnScreen maps a bbox center from the frame's coordinate space
// to absolute screen coordinates.
func centerOnScreen(f Frame, b bbox) (float64, float64) {
	left, top, right, bottom := edgesInLogical(f, b)
	cx := left + (right-left)/2
	cy := top + (bottom-top)/2
	return cx + f.OffsetX, cy + f.OffsetY
}

// logicalSize returns the bbox width and height in logical screen
// pixels.
func logicalSize(f Frame, b bbox) (float64, float64) {
	f = f.normalized()
	w, h := f.LogicalWidth, f.LogicalHeight
	width := toPixels(b.XMax, w) - toPixels(b.XMin, w)
	height := toPixels(b.YMax, h) - toPixels(b.YMin, h)
	if width < 0 {
		width = -width
	}
	if height < 0 {
		height = -height
	}
	return width, height
}

// shouldForceZoom decides whether a bbox is small enough to warrant a
// precision crop refinement before positioning.
func shouldForceZoom(widthPx, heightPx float64) bool {
	w := maxf(widthPx, 0)
	h := maxf(heightPx, 0)
	if w <= autoZoomMinSidePx && h <= autoZoomMinSidePx {
		return true
	}
	return w*h <= autoZoomMaxAreaPx
}
