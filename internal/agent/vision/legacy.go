package vision

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/model"
)

// legacyLocator is the older two-call click flow: one model call to
// localize the element, then a direct click. It survives as the
// fallback when single-call actions keep repeating without progress.
type legacyLocator struct {
	invoker model.Invoker
	screen  Screen
	input   Input
	status  *statusSurface
	log     zerolog.Logger
}

func legacyPrompt(activeWindow, description string) string {
	return fmt.Sprintf(`
This image is a screenshot of %s - an application that contains many interactive elements.

Give me a very in depth description of everything you see in this image. Include all icons that you may see such as search bars or home buttons, colors, position relative to one another and the screen, etc.
Describe what you suspect the purpose of every single element in the image may be responsible for.

Now use this description to assist your response, but no matter what do not reveal any of this description unless prompted to do so.
Please keep in mind that only one element can be pressed. Your bounding box should only contain at most one clickable element.
Return a bounding box for the %s. Do NOT output any words:
[ymin, xmin, ymax, xmax]
`, activeWindow, description)
}

// locateAndClick runs the legacy flow. It reports whether the click
// happened; localization failures and stop requests both come back as
// false so the engine can try something else.
func (l *legacyLocator) locateAndClick(ctx context.Context, clickType, description string, stopped func() bool) bool {
	statusChoices := []string{
		fmt.Sprintf("Searching for %s...", description),
		fmt.Sprintf("Scanning screen for %s...", description),
		fmt.Sprintf("Looking for the best match: %s...", description),
		fmt.Sprintf("Locating clickable target: %s...", description),
	}
	l.status.set(statusChoices[rand.Intn(len(statusChoices))])
	l.log.Info().Str("target", description).Msg("legacy locator searching")

	if stopped() {
		return false
	}

	screenshot, frame, err := l.screen.Capture()
	if err != nil {
		l.log.Warn().Err(err).Msg("legacy locator capture failed")
		return false
	}
	frame = frame.normalized()

	img, err := encodePNG(screenshot)
	if err != nil {
		l.log.Warn().Err(err).Msg("legacy locator encode failed")
		return false
	}
	res, err := l.invoker.Invoke(ctx, model.Request{
		Prompt: legacyPrompt(l.screen.ActiveWindowTitle(), description),
		Images: []model.Image{img},
	})
	if err != nil {
		l.log.Warn().Err(err).Msg("legacy locator model call failed")
		return false
	}

	l.status.set("Target located. Moving cursor...")
	box, err := parseBBox(res.Text)
	if err != nil {
		l.log.Warn().Err(err).Msg("legacy locator parse failed")
		return false
	}

	if stopped() {
		return false
	}

	x, y := centerOnScreen(frame, box)
	if err := l.input.MoveCursor(x, y); err != nil {
		l.log.Warn().Err(err).Msg("legacy locator cursor move failed")
		return false
	}
	if err := clickAs(l.input, clickType); err != nil {
		l.log.Warn().Err(err).Msg("legacy locator click failed")
		return false
	}
	return true
}
