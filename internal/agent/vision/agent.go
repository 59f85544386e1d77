// Package vision is the desktop computer-use agent: it looks at the
// active window through a vision model and acts on it with mouse and
// keyboard, one model call per step.
package vision

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/agent"
	"github.com/standardbeagle/clovis/internal/draw"
	"github.com/standardbeagle/clovis/internal/model"
)

// Speaker fires a text-to-speech side effect. A nil Speaker silently
// drops spoken output.
type Speaker func(ctx context.Context, text string)

// Agent owns the per-task engines and the shared stop flag.
type Agent struct {
	invoker model.Invoker
	locator model.Invoker
	screen  Screen
	input   Input
	sink    draw.Sink
	speak   Speaker
	log     zerolog.Logger

	stop atomic.Bool
}

// New assembles the vision agent. invoker handles the per-step action
// calls; locator is the (typically cheaper) model behind precision
// crop refinement and the legacy fallback.
func New(invoker, locator model.Invoker, screen Screen, input Input, sink draw.Sink, speak Speaker, log zerolog.Logger) *Agent {
	if locator == nil {
		locator = invoker
	}
	return &Agent{
		invoker: invoker,
		locator: locator,
		screen:  screen,
		input:   input,
		sink:    sink,
		speak:   speak,
		log:     log.With().Str("component", "vision").Logger(),
	}
}

func (a *Agent) Name() string { return agent.SourceVision }

// Stop requests that the running task stop at its next boundary.
func (a *Agent) Stop() { a.stop.Store(true) }

func (a *Agent) stopRequested() bool { return a.stop.Load() }

// Execute runs one desktop task to completion. State is fresh per
// task; any stop request left over from a previous task is cleared.
// The engine paints the cursor pill and status bubble itself, so the
// router's status callback goes unused here.
func (a *Agent) Execute(ctx context.Context, task string, _ agent.StatusFunc) (agent.Result, error) {
	a.stop.Store(false)

	err := newEngine(a).run(ctx, task)
	if err == nil {
		return agent.Result{Success: true, Message: "Task completed", Source: agent.SourceVision}, nil
	}
	if errors.Is(err, agent.ErrStopped) || errors.Is(err, context.Canceled) {
		return agent.Result{}, agent.ErrStopped
	}
	return agent.Result{Success: false, Message: err.Error(), Source: agent.SourceVision}, nil
}
