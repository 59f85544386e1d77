package overlay

import (
	"strings"
	"time"
)

const (
	requestIDWindow = 10 * time.Second
	repeatWindow    = 1200 * time.Millisecond
)

// inputDedup drops duplicate overlay_input events. Duplicates occur
// during rapid key/click interactions and transient websocket
// reconnects. A requestId wins over text matching when both are present.
type inputDedup struct {
	now      func() time.Time
	seenIDs  map[string]time.Time
	lastText string
	lastTS   time.Time
}

func newInputDedup(now func() time.Time) *inputDedup {
	if now == nil {
		now = time.Now
	}
	return &inputDedup{now: now, seenIDs: make(map[string]time.Time)}
}

// accept reports whether the event should be delivered.
func (d *inputDedup) accept(text, requestID string) bool {
	ts := d.now()

	if requestID != "" {
		for id, seen := range d.seenIDs {
			if ts.Sub(seen) > requestIDWindow {
				delete(d.seenIDs, id)
			}
		}
		if _, dup := d.seenIDs[requestID]; dup {
			return false
		}
		d.seenIDs[requestID] = ts
		return true
	}

	normalized := strings.Join(strings.Fields(text), " ")
	if normalized != "" && normalized == d.lastText && ts.Sub(d.lastTS) < repeatWindow {
		return false
	}
	d.lastText = normalized
	d.lastTS = ts
	return true
}
