// Package annotate implements the screen-annotation agent. One
// tool-calling model pass over the current screenshot produces a timed
// sequence of draw calls (boxes, labels, pointers) that the draw queue
// plays back on the overlay.
package annotate

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/agent"
	"github.com/standardbeagle/clovis/internal/draw"
	"github.com/standardbeagle/clovis/internal/memory"
	"github.com/standardbeagle/clovis/internal/model"
)

// fallbackMessage is recorded as the chain step outcome when the model
// produced annotations without a textual summary.
const fallbackMessage = "Completed the visual guidance task."

// Surface is the subset of the draw queue the agent dispatches into.
// *draw.Queue satisfies it.
type Surface interface {
	CreateText(timeS, x, y float64, text string, opt draw.TextOptions)
	DirectResponse(text string, opt draw.TextOptions)
	CreateTextForBox(timeS float64, box draw.Box, text, position string, opt draw.TextOptions, padding int) error
	DrawBoundingBox(timeS, yMin, xMin, yMax, xMax float64, opt draw.BoxOptions)
	DrawPointerToObject(timeS, x, y float64, text string, textX, textY float64, opt draw.PointerOptions)
	DestroyBox(timeS float64, boxID string)
	DestroyText(timeS float64, textID string)
	ClearScreen(timeS float64)
	SetModelName(name string)
}

// Screenshot supplies the pre-overlay capture attached to the model
// call. A nil provider or a failed capture degrades to a text-only
// request.
type Screenshot func() (image.Image, error)

// Agent annotates the user's screen in response to explanation
// requests.
type Agent struct {
	invoker model.Invoker
	surface Surface
	capture Screenshot
	encode  func(image.Image) (model.Image, error)
	log     zerolog.Logger
}

// New creates the annotation agent. encode may be nil, in which case
// screenshots are sent as PNG.
func New(invoker model.Invoker, surface Surface, capture Screenshot, encode func(image.Image) (model.Image, error), log zerolog.Logger) *Agent {
	if encode == nil {
		encode = encodePNG
	}
	return &Agent{
		invoker: invoker,
		surface: surface,
		capture: capture,
		encode:  encode,
		log:     log.With().Str("component", "annotate").Logger(),
	}
}

func (a *Agent) Name() string { return agent.SourceClovis }

// Execute runs one annotation pass. The status callback is unused: the
// annotations themselves are the visible progress.
func (a *Agent) Execute(ctx context.Context, task string, _ agent.StatusFunc) (agent.Result, error) {
	a.surface.SetModelName(a.invoker.Model())

	req := model.Request{
		Prompt: systemPrompt + "\n# User's Request:\n" + task,
		Tools:  annotationTools(),
	}
	if a.capture != nil {
		shot, err := a.capture()
		switch {
		case err != nil:
			a.log.Warn().Err(err).Msg("screenshot capture failed")
		case shot != nil:
			img, err := a.encode(shot)
			if err != nil {
				a.log.Warn().Err(err).Msg("dropping screenshot")
				break
			}
			req.Images = []model.Image{img}
		}
	}

	res, err := a.invoker.Invoke(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return agent.Result{}, agent.ErrStopped
		}
		return a.failure(err.Error()), nil
	}

	summary := ""
	if len(res.Calls) == 0 {
		a.log.Debug().Msg("no function call in annotation response")
		summary = res.Text
	}
	for _, c := range res.Calls {
		a.log.Debug().Str("tool", c.Name).Msg("annotation call")
		if c.Name == "direct_response" {
			if text := argString(c.Args, "text"); text != "" {
				summary = text
			}
		}
		if err := a.dispatch(c); err != nil {
			return a.failure(err.Error()), nil
		}
	}

	return agent.Result{
		Success: true,
		Message: memory.Clean(summary, fallbackMessage, 420),
		Source:  agent.SourceClovis,
	}, nil
}

func (a *Agent) failure(msg string) agent.Result {
	return agent.Result{
		Success: false,
		Message: memory.Clean(msg, "Annotation task failed.", 420),
		Source:  agent.SourceClovis,
	}
}

func encodePNG(img image.Image) (model.Image, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return model.Image{}, err
	}
	return model.Image{MIME: "image/png", Data: buf.Bytes()}, nil
}
