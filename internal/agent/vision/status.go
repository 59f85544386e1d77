package vision

import (
	"github.com/standardbeagle/clovis/internal/draw"
	"github.com/standardbeagle/clovis/internal/overlay"
)

const statusSource = "cua_vision"

// statusSurface mirrors engine progress onto both renderer surfaces:
// the cursor pill and the top status bubble. Repeated identical texts
// are not re-sent.
type statusSurface struct {
	sink     draw.Sink
	visible  bool
	lastText string
}

func newStatusSurface(sink draw.Sink) *statusSurface {
	return &statusSurface{sink: sink}
}

func (s *statusSurface) set(text string) {
	if s.sink == nil || text == "" || text == s.lastText {
		return
	}
	bubble := overlay.CmdUpdateStatusBubble
	cursor := overlay.CmdUpdateCursorStatus
	if !s.visible {
		bubble = overlay.CmdShowStatusBubble
		cursor = overlay.CmdShowCursorStatus
		s.visible = true
	}
	s.sink.Dispatch(overlay.Payload{Command: bubble, Text: text, Source: statusSource})
	s.sink.Dispatch(overlay.Payload{Command: cursor, Text: text, Source: statusSource})
	s.lastText = text
}

func (s *statusSurface) hide(delayMs int) {
	if s.sink == nil || !s.visible {
		return
	}
	s.sink.Dispatch(overlay.Payload{Command: overlay.CmdHideCursorStatus})
	s.sink.Dispatch(overlay.Payload{Command: overlay.CmdHideStatusBubble, DelayMs: delayMs})
	s.visible = false
	s.lastText = ""
}
