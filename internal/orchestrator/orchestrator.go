// Package orchestrator ties the overlay transport to the router: it
// gates one session at a time, keeps the pre-overlay screenshot, and
// fans a stop request out to everything in flight.
package orchestrator

import (
	"context"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// inputDedupWindow drops a repeated overlay input arriving within this
// window. The transport already de-duplicates request IDs; this guards
// against double submits from the renderer.
const inputDedupWindow = 1200 * time.Millisecond

// Queue is the slice of the draw queue the orchestrator needs.
type Queue interface {
	StopAll()
}

// Processes is the managed process table's shutdown surface.
type Processes interface {
	Shutdown()
}

// Config wires the orchestrator's collaborators. Run is required; the
// rest may be nil.
type Config struct {
	// Run executes one router session.
	Run func(ctx context.Context, text string) (string, error)
	// StopVision raises the vision agent's stop flag.
	StopVision func()
	Queue      Queue
	Procs      Processes
	// Capture grabs the current screen for the screenshot store and
	// theme sampler.
	Capture func() (image.Image, error)
}

// Orchestrator runs at most one router session at a time.
type Orchestrator struct {
	cfg   Config
	shots *Store
	log   zerolog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	session  uint64
	lastText string
	lastAt   time.Time

	base     context.Context
	baseStop context.CancelFunc
}

func New(cfg Config, log zerolog.Logger) *Orchestrator {
	base, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:      cfg,
		shots:    NewStore(cfg.Capture),
		log:      log.With().Str("component", "orchestrator").Logger(),
		base:     base,
		baseStop: stop,
	}
}

// Screenshots exposes the pre-overlay screenshot store.
func (o *Orchestrator) Screenshots() *Store { return o.shots }

// Busy reports whether a session is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancel != nil
}

// HandleInput receives one overlay input line and starts a session for
// it. Duplicate submissions and inputs during an active session are
// dropped.
func (o *Orchestrator) HandleInput(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	o.mu.Lock()
	now := time.Now()
	if text == o.lastText && now.Sub(o.lastAt) < inputDedupWindow {
		o.mu.Unlock()
		o.log.Debug().Str("text", text).Msg("duplicate overlay input ignored")
		return
	}
	o.lastText = text
	o.lastAt = now

	if o.cancel != nil {
		o.mu.Unlock()
		o.log.Info().Msg("overlay input ignored (task already running)")
		return
	}

	ctx, cancel := context.WithCancel(o.base)
	o.cancel = cancel
	o.session++
	id := o.session
	o.mu.Unlock()

	o.log.Info().Str("text", text).Msg("overlay input")
	go o.runSession(ctx, cancel, id, text)
}

func (o *Orchestrator) runSession(ctx context.Context, cancel context.CancelFunc, id uint64, text string) {
	defer func() {
		cancel()
		o.mu.Lock()
		if o.session == id {
			o.cancel = nil
		}
		o.mu.Unlock()
	}()

	if _, err := o.cfg.Run(ctx, text); err != nil {
		if ctx.Err() != nil {
			o.log.Info().Msg("active task cancelled")
			return
		}
		o.log.Error().Err(err).Msg("active task failed")
	}
}

// StopAll cancels the in-flight session, raises the vision stop flag,
// and drops every queued overlay action.
func (o *Orchestrator) StopAll() {
	o.log.Info().Msg("stop requested: cancelling active tasks")
	if o.cfg.StopVision != nil {
		o.cfg.StopVision()
	}

	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if o.cfg.Queue != nil {
		o.cfg.Queue.StopAll()
	}
}

// CaptureScreenshot grabs the screen, stores it for the next model
// call, and returns it for theme sampling.
func (o *Orchestrator) CaptureScreenshot() image.Image {
	if o.cfg.Capture == nil {
		return nil
	}
	img, err := o.cfg.Capture()
	if err != nil {
		o.log.Warn().Err(err).Msg("screenshot capture failed")
		return nil
	}
	o.shots.Put(img)
	return img
}

// Shutdown cancels everything and signals managed background
// processes. Called once at process exit.
func (o *Orchestrator) Shutdown() {
	o.StopAll()
	o.baseStop()
	if o.cfg.Procs != nil {
		o.cfg.Procs.Shutdown()
	}
}
