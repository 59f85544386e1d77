package draw

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/standardbeagle/clovis/internal/overlay"
)

// Defaults applied when a tool call leaves styling unset.
const (
	defaultFontSize    = 18
	defaultFontFamily  = "Helvetica"
	defaultStroke      = "#66B7FF"
	defaultStrokeWidth = 5
	defaultOpacity     = 0.8
	defaultDotColor    = "#ffffff"
	defaultRingColor   = "#66B7FF"
	defaultDotRadius   = 6
	defaultBoxPadding  = 6
)

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// TextOptions style a text panel. Zero values fall back to defaults.
type TextOptions struct {
	ID         string
	FontSize   int
	FontFamily string
	Align      string
	Baseline   string
	Source     string
}

func (o TextOptions) withDefaults() TextOptions {
	if o.FontSize == 0 {
		o.FontSize = defaultFontSize
	}
	if o.FontFamily == "" {
		o.FontFamily = defaultFontFamily
	}
	if o.Align == "" {
		o.Align = "left"
	}
	if o.Baseline == "" {
		o.Baseline = "top"
	}
	if o.Source == "" {
		o.Source = "clovis"
	}
	return o
}

// BoxOptions style a bounding box.
type BoxOptions struct {
	ID           string
	Stroke       string
	StrokeWidth  int
	Opacity      float64
	AutoContrast bool
	Fill         string
}

// PointerOptions style a pointer dot and its label link.
type PointerOptions struct {
	ID         string
	DotColor   string
	RingColor  string
	RingRadius int
}

// Box is an axis-aligned region in any coordinate band.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CreateText schedules a text panel at the given anchor. The anchor is
// nudged at execution time to avoid live panels.
func (q *Queue) CreateText(timeS, x, y float64, text string, opt TextOptions) {
	opt = opt.withDefaults()
	px, py := q.Denormalize(x, y)
	q.Enqueue(timeS, func() {
		q.createTextNonOverlapping(px, py, text, opt)
	})
}

// DirectResponse shows the model's conversational answer under the
// command overlay. It bypasses the queue and starts the hold window:
// the next queued action waits out the remainder of the hold, then
// hides the panel.
func (q *Queue) DirectResponse(text string, opt TextOptions) {
	opt = opt.withDefaults()
	opt.Align = "left"
	opt.Baseline = "top"

	q.mu.Lock()
	q.lastDirect = nowFunc()
	q.waitedAfterDirect = false
	q.mu.Unlock()

	x, y := q.commandAnchor()
	q.sink.Dispatch(overlay.Payload{
		Command:    overlay.CmdDrawText,
		ID:         DirectResponseID,
		Source:     opt.Source,
		X:          float64(x),
		Y:          float64(y),
		Text:       text,
		FontSize:   opt.FontSize,
		FontFamily: opt.FontFamily,
		Align:      opt.Align,
		Baseline:   opt.Baseline,
	})
}

// CreateTextForBox schedules a label beside a box edge. position is one
// of top, bottom, left, right. padding <= 0 uses the default gap.
func (q *Queue) CreateTextForBox(timeS float64, box Box, text, position string, opt TextOptions, padding int) error {
	if padding <= 0 {
		padding = defaultBoxPadding
	}
	bx, by := q.Denormalize(box.X, box.Y)
	bw, bh := q.Denormalize(box.Width, box.Height)
	centerX := float64(bx) + float64(bw)/2
	centerY := float64(by) + float64(bh)/2

	var anchorX, anchorY float64
	var baseline, defaultAlign string
	switch position {
	case "top":
		anchorX = centerX
		anchorY = float64(by - padding)
		baseline = "bottom"
		defaultAlign = "center"
	case "bottom":
		anchorX = centerX
		anchorY = float64(by + bh + padding)
		baseline = "top"
		defaultAlign = "center"
	case "left":
		anchorX = float64(bx - padding)
		anchorY = centerY
		baseline = "middle"
		defaultAlign = "right"
	case "right":
		anchorX = float64(bx + bw + padding)
		anchorY = centerY
		baseline = "middle"
		defaultAlign = "left"
	default:
		return fmt.Errorf("position must be one of: top, bottom, left, right (got %q)", position)
	}

	if opt.Align == "" {
		opt.Align = defaultAlign
	}
	opt.Baseline = baseline
	opt.ID = ""
	opt = opt.withDefaults()

	ax, ay := int(anchorX), int(anchorY)
	q.Enqueue(timeS, func() {
		q.createTextNonOverlapping(ax, ay, text, opt)
	})
	return nil
}

// DrawBoundingBox schedules a box given top/left/bottom/right edge
// coordinates (y_min, x_min, y_max, x_max order on the tool surface).
func (q *Queue) DrawBoundingBox(timeS, yMin, xMin, yMax, xMax float64, opt BoxOptions) {
	if opt.ID == "" {
		opt.ID = newID("box")
	}
	if opt.Stroke == "" && !opt.AutoContrast {
		opt.Stroke = defaultStroke
	}
	if opt.StrokeWidth == 0 {
		opt.StrokeWidth = defaultStrokeWidth
	}
	if opt.Opacity == 0 {
		opt.Opacity = defaultOpacity
	}

	x0, y0 := q.Denormalize(xMin, yMin)
	x1, y1 := q.Denormalize(xMax, yMax)

	q.Enqueue(timeS, func() {
		q.sink.Dispatch(overlay.Payload{
			Command:      overlay.CmdDrawBox,
			ID:           opt.ID,
			X:            float64(x0),
			Y:            float64(y0),
			Width:        float64(x1 - x0),
			Height:       float64(y1 - y0),
			Stroke:       opt.Stroke,
			StrokeWidth:  opt.StrokeWidth,
			Opacity:      opt.Opacity,
			AutoContrast: opt.AutoContrast,
			Fill:         opt.Fill,
		})
	})
}

// DrawPointerToObject schedules a dot at the target with a connected
// label panel. The renderer draws a thin white line between them.
func (q *Queue) DrawPointerToObject(timeS, x, y float64, text string, textX, textY float64, opt PointerOptions) {
	linkID := opt.ID
	if linkID == "" {
		linkID = newID("ptr")
	}
	textID := linkID + "_text"
	if opt.DotColor == "" {
		opt.DotColor = defaultDotColor
	}
	if opt.RingColor == "" {
		opt.RingColor = defaultRingColor
	}

	px, py := q.Denormalize(x, y)
	tx, ty := q.Denormalize(textX, textY)

	q.Enqueue(timeS, func() {
		q.sink.Dispatch(overlay.Payload{
			Command:          overlay.CmdDrawDot,
			ID:               linkID,
			X:                float64(px),
			Y:                float64(py),
			Radius:           defaultDotRadius,
			Color:            opt.DotColor,
			DotColor:         opt.DotColor,
			RingColor:        opt.RingColor,
			RingRadius:       opt.RingRadius,
			LineTargetTextID: textID,
			LineColor:        "#ffffff",
			LineWidth:        2,
		})
	})
	textOpt := TextOptions{ID: textID}.withDefaults()
	q.Enqueue(timeS, func() {
		q.createTextNonOverlapping(tx, ty, text, textOpt)
	})
}

// DestroyBox schedules removal of a box.
func (q *Queue) DestroyBox(timeS float64, boxID string) {
	q.Enqueue(timeS, func() {
		q.sink.Dispatch(overlay.Payload{Command: overlay.CmdRemoveBox, ID: boxID})
	})
}

// DestroyText schedules removal of a text panel and frees its
// layout footprint.
func (q *Queue) DestroyText(timeS float64, textID string) {
	q.Enqueue(timeS, func() {
		q.layout.forget(textID)
		q.sink.Dispatch(overlay.Payload{Command: overlay.CmdRemoveText, ID: textID})
	})
}

// ClearScreen schedules removal of every overlay entity.
func (q *Queue) ClearScreen(timeS float64) {
	q.Enqueue(timeS, func() {
		q.layout.reset()
		q.sink.Dispatch(overlay.Payload{Command: overlay.CmdClear})
	})
}

// SetModelName updates the model name shown in the response bubble.
// Sent immediately.
func (q *Queue) SetModelName(name string) {
	q.sink.Dispatch(overlay.Payload{Command: overlay.CmdSetModelName, Name: name})
}

func (q *Queue) createTextNonOverlapping(x, y int, text string, opt TextOptions) string {
	textID := opt.ID
	if textID == "" {
		textID = newID("text")
	}

	viewW, viewH := q.surface()
	resolvedX, resolvedY, r := q.layout.resolveAnchor(
		x, y, text, opt.FontSize, opt.Align, opt.Baseline, textID, viewW, viewH,
	)
	if resolvedX != x || resolvedY != y {
		q.log.Debug().
			Str("id", textID).
			Int("fromX", x).Int("fromY", y).
			Int("toX", resolvedX).Int("toY", resolvedY).
			Msg("nudged text to avoid overlap")
	}

	q.sink.Dispatch(overlay.Payload{
		Command:    overlay.CmdDrawText,
		ID:         textID,
		Source:     opt.Source,
		X:          float64(resolvedX),
		Y:          float64(resolvedY),
		Text:       text,
		FontSize:   opt.FontSize,
		FontFamily: opt.FontFamily,
		Align:      opt.Align,
		Baseline:   opt.Baseline,
	})
	q.layout.register(textID, r)
	return textID
}
