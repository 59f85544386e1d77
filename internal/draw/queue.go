package draw

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/overlay"
)

// DirectResponseID is the fixed entity id of the direct response panel.
const DirectResponseID = "direct_response"

// directResponseHold is how long a direct response stays on screen
// before queued actions are allowed to replace it.
const directResponseHold = 4 * time.Second

// nowFunc is swapped in tests.
var nowFunc = time.Now

// Sink receives overlay wire frames. *overlay.Server satisfies it.
type Sink interface {
	Dispatch(p overlay.Payload)
}

type queued struct {
	timeS float64
	run   func()
}

// Queue executes overlay actions in FIFO order, sleeping the delta
// between each action's time offset and the previous one. A single
// consumer goroutine owns the timeline.
type Queue struct {
	sink         Sink
	log          zerolog.Logger
	screenSize   SizeFunc
	viewportSize SizeFunc

	layout *layout

	mu                sync.Mutex
	items             []queued
	resetCh           chan struct{}
	lastDirect        time.Time
	waitedAfterDirect bool

	closed    chan struct{}
	closeOnce sync.Once
}

// NewQueue creates the queue and starts its consumer. viewportSize may
// be nil; the screen size then drives all coordinate math.
func NewQueue(sink Sink, screenSize, viewportSize SizeFunc, log zerolog.Logger) *Queue {
	q := &Queue{
		sink:              sink,
		log:               log.With().Str("component", "draw").Logger(),
		screenSize:        screenSize,
		viewportSize:      viewportSize,
		layout:            newLayout(),
		resetCh:           make(chan struct{}),
		waitedAfterDirect: true,
		closed:            make(chan struct{}),
	}
	go q.run()
	return q
}

// Close stops the consumer permanently.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// Enqueue schedules fn at the given time offset in seconds.
func (q *Queue) Enqueue(timeS float64, fn func()) {
	q.mu.Lock()
	q.items = append(q.items, queued{timeS: timeS, run: fn})
	q.mu.Unlock()
}

// StopAll drops every pending action, abandons any in-flight delay,
// and resets the layout and direct response state.
func (q *Queue) StopAll() {
	q.mu.Lock()
	q.items = nil
	q.lastDirect = time.Time{}
	q.waitedAfterDirect = true
	close(q.resetCh)
	q.resetCh = make(chan struct{})
	q.mu.Unlock()

	q.layout.reset()
}

// Pending returns the number of queued actions.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) run() {
	lastTime := 0.0

	for {
		select {
		case <-q.closed:
			return
		default:
		}

		q.mu.Lock()
		if len(q.items) == 0 {
			lastTime = 0
			q.mu.Unlock()
			select {
			case <-q.closed:
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		it := q.items[0]
		q.items = q.items[1:]
		gateNeeded := !q.waitedAfterDirect
		lastDirect := q.lastDirect
		reset := q.resetCh
		q.mu.Unlock()

		if gateNeeded {
			if rem := directResponseHold - time.Since(lastDirect); rem > 0 {
				if !q.sleep(reset, rem) {
					lastTime = 0
					continue
				}
			}
			q.sink.Dispatch(overlay.Payload{Command: overlay.CmdOverlayHide, ID: DirectResponseID})
			q.mu.Lock()
			q.waitedAfterDirect = true
			q.mu.Unlock()
		}

		if delay := it.timeS - lastTime; delay > 0 {
			if !q.sleep(reset, time.Duration(delay*float64(time.Second))) {
				lastTime = 0
				continue
			}
		}

		it.run()
		lastTime = it.timeS
	}
}

// sleep waits for d unless the queue is reset or closed. It reports
// whether the full duration elapsed.
func (q *Queue) sleep(reset chan struct{}, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-reset:
		return false
	case <-q.closed:
		return false
	}
}
