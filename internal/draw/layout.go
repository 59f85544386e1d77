package draw

import (
	"math"
	"strings"
	"sync"
)

// Approximate runtime layout model of the renderer's text panel CSS.
// The estimate only needs to be conservative enough for collision
// checks, not pixel-exact.
const (
	panelMaxWidth  = 320
	panelMinWidth  = 96
	panelMinHeight = 44

	panelPadH = 40 // 20px left + 20px right
	panelPadV = 32 // 16px top + 16px bottom

	lineHeightMultiplier = 1.6
	charWidthMultiplier  = 0.56

	sizeSafetyWidth  = 8
	sizeSafetyHeight = 16

	viewportMargin = 8
	layoutStep     = 28
	layoutMaxRings = 10
	overlapBuffer  = 0
)

type rect struct {
	left, top, right, bottom float64
}

func (r rect) overlaps(o rect, buffer float64) bool {
	return r.left < o.right-buffer &&
		r.right > o.left+buffer &&
		r.top < o.bottom-buffer &&
		r.bottom > o.top+buffer
}

func (r rect) intersectionArea(o rect) float64 {
	w := math.Max(0, math.Min(r.right, o.right)-math.Max(r.left, o.left))
	h := math.Max(0, math.Min(r.bottom, o.bottom)-math.Max(r.top, o.top))
	return w * h
}

// layout tracks the footprint of every live text panel so new panels
// can be nudged away from existing ones.
type layout struct {
	mu    sync.Mutex
	rects map[string]rect
}

func newLayout() *layout {
	return &layout{rects: make(map[string]rect)}
}

func (l *layout) register(id string, r rect) {
	l.mu.Lock()
	l.rects[id] = r
	l.mu.Unlock()
}

func (l *layout) forget(id string) {
	l.mu.Lock()
	delete(l.rects, id)
	l.mu.Unlock()
}

func (l *layout) reset() {
	l.mu.Lock()
	l.rects = make(map[string]rect)
	l.mu.Unlock()
}

func (l *layout) hasOverlap(r rect, ignoreID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, other := range l.rects {
		if ignoreID != "" && id == ignoreID {
			continue
		}
		if r.overlaps(other, overlapBuffer) {
			return true
		}
	}
	return false
}

func (l *layout) overlapScore(r rect, ignoreID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	score := 0.0
	for id, other := range l.rects {
		if ignoreID != "" && id == ignoreID {
			continue
		}
		score += r.intersectionArea(other)
	}
	return score
}

func normalizeAlign(align string) string {
	switch strings.ToLower(strings.TrimSpace(align)) {
	case "center":
		return "center"
	case "right":
		return "right"
	default:
		return "left"
	}
}

func normalizeBaseline(baseline string) string {
	switch strings.ToLower(strings.TrimSpace(baseline)) {
	case "middle", "center":
		return "middle"
	case "bottom":
		return "bottom"
	default:
		return "top"
	}
}

// wrapLineToWidth splits a raw line into chunks of at most maxChars,
// breaking oversized words mid-word the way the renderer does.
func wrapLineToWidth(raw string, maxChars int) []string {
	if maxChars <= 1 {
		if raw == "" {
			return []string{""}
		}
		out := make([]string, 0, len(raw))
		for _, r := range raw {
			out = append(out, string(r))
		}
		return out
	}

	words := strings.Split(raw, " ")
	var lines []string
	current := ""

	appendLongWord := func(word, existing string) string {
		local := existing
		runes := []rune(word)
		for i := 0; i < len(runes); i += maxChars {
			end := i + maxChars
			if end > len(runes) {
				end = len(runes)
			}
			chunk := string(runes[i:end])
			if i == 0 {
				local = chunk
			} else {
				lines = append(lines, local)
				local = chunk
			}
		}
		return local
	}

	for _, word := range words {
		if current == "" {
			if len(word) <= maxChars {
				current = word
			} else {
				current = appendLongWord(word, current)
			}
			continue
		}

		candidate := current + " " + word
		if len(candidate) <= maxChars {
			current = candidate
			continue
		}

		lines = append(lines, current)
		if len(word) <= maxChars {
			current = word
		} else {
			current = appendLongWord(word, "")
		}
	}

	lines = append(lines, current)
	return lines
}

// estimatePanelSize predicts the rendered panel footprint including
// padding and a safety slop, so collision checks cover the whole
// bubble instead of only the anchor point.
func estimatePanelSize(text string, fontSize int) (int, int) {
	if fontSize < 10 {
		fontSize = 10
	}

	contentMaxWidth := float64(panelMaxWidth - panelPadH)
	if contentMaxWidth < 40 {
		contentMaxWidth = 40
	}
	charWidth := math.Max(float64(fontSize)*charWidthMultiplier, 4.5)
	maxCharsPerLine := int(contentMaxWidth / charWidth)
	if maxCharsPerLine < 1 {
		maxCharsPerLine = 1
	}

	rawLines := strings.Split(text, "\n")
	var wrapped []string
	for _, raw := range rawLines {
		wrapped = append(wrapped, wrapLineToWidth(raw, maxCharsPerLine)...)
	}
	if len(wrapped) == 0 {
		wrapped = []string{""}
	}

	longest := 1
	for _, line := range wrapped {
		if len(line) > longest {
			longest = len(line)
		}
	}
	if longest < 2 {
		longest = 2
	}

	contentWidth := math.Min(contentMaxWidth, math.Max(charWidth*float64(longest), 24))
	lineHeight := math.Max(float64(fontSize)*lineHeightMultiplier, float64(fontSize+4))
	contentHeight := math.Max(float64(len(wrapped))*lineHeight, lineHeight)

	panelWidth := int(math.Round(clampFloat(
		contentWidth+panelPadH+sizeSafetyWidth,
		panelMinWidth,
		panelMaxWidth,
	)))
	panelHeight := int(math.Round(math.Max(
		contentHeight+panelPadV+sizeSafetyHeight,
		panelMinHeight,
	)))
	return panelWidth, panelHeight
}

// anchorToRect places a panel for an anchor under the given alignment,
// clamps it inside the viewport margins, and back-computes the anchor
// that lands the panel at the clamped position.
func anchorToRect(anchorX, anchorY float64, panelW, panelH int, align, baseline string, viewW, viewH int) (int, int, rect) {
	var left float64
	switch align {
	case "center":
		left = anchorX - float64(panelW)/2
	case "right":
		left = anchorX - float64(panelW)
	default:
		left = anchorX
	}

	var top float64
	switch baseline {
	case "middle":
		top = anchorY - float64(panelH)/2
	case "bottom":
		top = anchorY - float64(panelH)
	default:
		top = anchorY
	}

	hMargin, vMargin := float64(viewportMargin), float64(viewportMargin)
	if float64(panelW)+2*hMargin > float64(viewW) {
		hMargin = 0
	}
	if float64(panelH)+2*vMargin > float64(viewH) {
		vMargin = 0
	}

	maxLeft := math.Max(float64(viewW)-float64(panelW)-hMargin, hMargin)
	maxTop := math.Max(float64(viewH)-float64(panelH)-vMargin, vMargin)
	clampedLeft := clampFloat(left, hMargin, maxLeft)
	clampedTop := clampFloat(top, vMargin, maxTop)

	var resolvedX float64
	switch align {
	case "center":
		resolvedX = clampedLeft + float64(panelW)/2
	case "right":
		resolvedX = clampedLeft + float64(panelW)
	default:
		resolvedX = clampedLeft
	}

	var resolvedY float64
	switch baseline {
	case "middle":
		resolvedY = clampedTop + float64(panelH)/2
	case "bottom":
		resolvedY = clampedTop + float64(panelH)
	default:
		resolvedY = clampedTop
	}

	r := rect{
		left:   clampedLeft,
		top:    clampedTop,
		right:  clampedLeft + float64(panelW),
		bottom: clampedTop + float64(panelH),
	}
	return int(math.Round(resolvedX)), int(math.Round(resolvedY)), r
}

// resolveAnchor finds a placement for a text panel that avoids every
// registered panel. It spirals outward from the requested anchor in
// fixed rings; if no clean spot exists within the search budget it
// settles for the candidate with the least total overlap.
func (l *layout) resolveAnchor(anchorX, anchorY int, text string, fontSize int, align, baseline, textID string, viewW, viewH int) (int, int, rect) {
	normAlign := normalizeAlign(align)
	normBaseline := normalizeBaseline(baseline)
	panelW, panelH := estimatePanelSize(text, fontSize)

	ax, ay := float64(anchorX), float64(anchorY)
	resolvedX, resolvedY, baseRect := anchorToRect(ax, ay, panelW, panelH, normAlign, normBaseline, viewW, viewH)
	if !l.hasOverlap(baseRect, textID) {
		return resolvedX, resolvedY, baseRect
	}

	bestX, bestY, bestRect := resolvedX, resolvedY, baseRect
	bestScore := l.overlapScore(baseRect, textID)
	bestDistance := 0

	for ring := 1; ring <= layoutMaxRings; ring++ {
		delta := ring * layoutStep
		offsets := [12][2]int{
			{0, -delta},
			{0, delta},
			{delta, 0},
			{-delta, 0},
			{delta, -delta},
			{-delta, -delta},
			{delta, delta},
			{-delta, delta},
			{2 * delta, 0},
			{-2 * delta, 0},
			{0, 2 * delta},
			{0, -2 * delta},
		}
		for _, off := range offsets {
			candX, candY, candRect := anchorToRect(
				ax+float64(off[0]),
				ay+float64(off[1]),
				panelW, panelH,
				normAlign, normBaseline,
				viewW, viewH,
			)
			if !l.hasOverlap(candRect, textID) {
				return candX, candY, candRect
			}

			score := l.overlapScore(candRect, textID)
			distance := abs(off[0]) + abs(off[1])
			if score < bestScore || (score == bestScore && distance < bestDistance) {
				bestX, bestY, bestRect = candX, candY, candRect
				bestScore = score
				bestDistance = distance
			}
		}
	}

	return bestX, bestY, bestRect
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
