// Package overlay implements the WebSocket bridge to the on-screen
// renderer: one message bus out (draw and status commands) and one in
// (typed user input and lifecycle events).
package overlay

import "github.com/standardbeagle/clovis/internal/theme"

// Outbound command names.
const (
	CmdDrawBox              = "draw_box"
	CmdDrawText             = "draw_text"
	CmdDrawDot              = "draw_dot"
	CmdRemoveBox            = "remove_box"
	CmdRemoveText           = "remove_text"
	CmdRemoveDot            = "remove_dot"
	CmdClear                = "clear"
	CmdShowStatusBubble     = "show_status_bubble"
	CmdUpdateStatusBubble   = "update_status_bubble"
	CmdCompleteStatusBubble = "complete_status_bubble"
	CmdHideStatusBubble     = "hide_status_bubble"
	CmdShowCursorStatus     = "show_cursor_status"
	CmdUpdateCursorStatus   = "update_cursor_status"
	CmdHideCursorStatus     = "hide_cursor_status"
	CmdSetCursorStatusPos   = "set_cursor_status_position"
	CmdShowCommandOverlay   = "show_command_overlay"
	CmdOverlayHide          = "overlay_hide"
	CmdSetModelName         = "set_model_name"
	CmdSetBackground        = "set_background"
)

// Inbound event names.
const (
	EventOverlayInput      = "overlay_input"
	EventViewport          = "viewport"
	EventCaptureScreenshot = "capture_screenshot"
	EventStopAll           = "stop_all"
	EventClick             = "click"
)

// Payload is one overlay wire frame. Commands share a flat shape; fields
// irrelevant to a command are omitted from the encoded frame.
type Payload struct {
	Command string `json:"command,omitempty"`

	ID     string `json:"id,omitempty"`
	Source string `json:"source,omitempty"`

	// Geometry for boxes, dots, and text anchors.
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// Text panel fields.
	Text       string `json:"text,omitempty"`
	FontSize   int    `json:"fontSize,omitempty"`
	FontFamily string `json:"fontFamily,omitempty"`
	Align      string `json:"align,omitempty"`
	Baseline   string `json:"baseline,omitempty"`
	Color      string `json:"color,omitempty"`

	// Box styling.
	Stroke       string  `json:"stroke,omitempty"`
	StrokeWidth  int     `json:"strokeWidth,omitempty"`
	Opacity      float64 `json:"opacity,omitempty"`
	Fill         string  `json:"fill,omitempty"`
	AutoContrast bool    `json:"autoContrast,omitempty"`

	// Dot styling. The connecting line to a text panel is always thin
	// white; the renderer reads lineColor/lineWidth verbatim.
	Radius           int    `json:"radius,omitempty"`
	DotColor         string `json:"dotColor,omitempty"`
	RingColor        string `json:"ringColor,omitempty"`
	RingRadius       int    `json:"ringRadius,omitempty"`
	LineTargetTextID string `json:"lineTargetTextId,omitempty"`
	LineColor        string `json:"lineColor,omitempty"`
	LineWidth        int    `json:"lineWidth,omitempty"`

	// Status bubble completion flow.
	ResponseText string `json:"responseText,omitempty"`
	DoneText     string `json:"doneText,omitempty"`
	DelayMs      int    `json:"delayMs,omitempty"`
	Delay        int    `json:"delay,omitempty"`

	// set_model_name / set_background.
	Name       string `json:"name,omitempty"`
	Background string `json:"background,omitempty"`

	Theme *theme.Palette `json:"theme,omitempty"`
}

// Event is one inbound frame from the renderer.
type Event struct {
	Event     string  `json:"event,omitempty"`
	Text      string  `json:"text,omitempty"`
	RequestID string  `json:"requestId,omitempty"`
	ReqID     string  `json:"request_id,omitempty"`
	ID        string  `json:"id,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
}
