package vision

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/agent"
	"github.com/standardbeagle/clovis/internal/model"
)

// Loop guards. Repeated identical actions are cheap to detect; the
// alternating position/click cycle needs its own counter because each
// half of the cycle looks fresh to the immediate-repeat check.
const (
	maxRetries                 = 3
	maxFailuresBeforeFallback  = 3
	autoClickAfterRepeatedPos  = 2
	positionBucketSize         = 40
	clickCycleLoopStop         = 4
	actionSettleDelay          = time.Second
	postBatchDelay             = 50 * time.Millisecond
	statusHideDelayMs          = 400
	terminalStatusHideDelayMs  = 700
	modelErrorRetryPause       = time.Second
)

var thinkingMessages = []string{
	"Analyzing screen...",
	"Reviewing visible UI elements...",
	"Planning the next action...",
	"Checking the safest interaction...",
}

type clickContext struct {
	clickType string
	target    string
}

// engine runs the main task loop: one model call per step, each
// returning the next action and its user-visible status text.
type engine struct {
	invoker model.Invoker
	locator model.Invoker
	screen  Screen
	input   Input
	status  *statusSurface
	legacy  *legacyLocator
	speak   Speaker
	stopped func() bool
	log     zerolog.Logger

	retries             int
	consecutiveFailures int

	lastActionSignature string
	repeatedActionCount int
	lastClickContext    *clickContext
	lastTarget          string

	pendingPositionSig      string
	lastClickCycleSig       string
	repeatedClickCycleCount int

	thinkingIndex int
	settleDelay   time.Duration

	memoryText []string
	lastImage  image.Image
	lastFrame  Frame
	hasFrame   bool
}

func newEngine(a *Agent) *engine {
	status := newStatusSurface(a.sink)
	return &engine{
		invoker: a.invoker,
		locator: a.locator,
		screen:  a.screen,
		input:   a.input,
		status:  status,
		legacy: &legacyLocator{
			invoker: a.locator,
			screen:  a.screen,
			input:   a.input,
			status:  status,
			log:     a.log,
		},
		speak:       a.speak,
		stopped:     a.stopRequested,
		log:         a.log,
		settleDelay: actionSettleDelay,
	}
}

func (e *engine) run(ctx context.Context, task string) error {
	defer e.status.hide(statusHideDelayMs)

	if err := e.checkStopped(ctx); err != nil {
		return err
	}
	for {
		if err := e.checkStopped(ctx); err != nil {
			return err
		}
		res, err := e.generateStep(ctx, task)
		if err != nil {
			return err
		}
		if err := e.checkStopped(ctx); err != nil {
			return err
		}

		calls := res.Calls
		if len(calls) == 0 {
			if err := e.handleNoFunctionCall(ctx, task); err != nil {
				return err
			}
			continue
		}

		calls = e.normalizeBatch(calls)
		if len(calls) > 1 {
			e.log.Debug().Int("calls", len(calls)).Msg("executing multi-call batch")
		}

		done, err := e.handleCalls(ctx, task, calls)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if err := e.checkStopped(ctx); err != nil {
			return err
		}
		if err := sleepCtx(ctx, postBatchDelay); err != nil {
			return err
		}
	}
}

// generateStep captures the screen and asks the model for the next
// action batch. Provider errors are retried up to the shared retry
// budget with a visible status line.
func (e *engine) generateStep(ctx context.Context, task string) (*model.Result, error) {
	for {
		if err := e.checkStopped(ctx); err != nil {
			return nil, err
		}
		activeWindow := e.screen.ActiveWindowTitle()
		prompt := buildStepPrompt(task, activeWindow, e.memoryText)

		screenshot, err := e.captureFrame()
		if err != nil {
			return nil, err
		}
		img, err := encodePNG(screenshot)
		if err != nil {
			return nil, err
		}

		thinking := thinkingMessages[e.thinkingIndex%len(thinkingMessages)]
		e.thinkingIndex++
		e.status.set(thinking)

		res, err := e.invoker.Invoke(ctx, model.Request{
			Prompt: prompt,
			Images: []model.Image{img},
			Tools:  visionTools(),
		})
		if err == nil {
			e.retries = 0
			return res, nil
		}

		e.retries++
		if e.retries >= maxRetries {
			return nil, err
		}
		e.status.set(fmt.Sprintf("Model error. Retrying (%d/%d)...", e.retries, maxRetries))
		if sleepErr := sleepCtx(ctx, modelErrorRetryPause); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

// captureFrame grabs the screen and caches image and frame for the
// positioning tools.
func (e *engine) captureFrame() (image.Image, error) {
	screenshot, frame, err := e.screen.Capture()
	if err != nil {
		return nil, fmt.Errorf("screen capture: %w", err)
	}
	e.lastImage = screenshot
	e.lastFrame = frame.normalized()
	e.hasFrame = true
	return screenshot, nil
}

func (e *engine) handleNoFunctionCall(ctx context.Context, task string) error {
	if err := e.checkStopped(ctx); err != nil {
		return err
	}
	e.consecutiveFailures++
	e.retries++

	if e.consecutiveFailures >= maxFailuresBeforeFallback {
		if e.attemptFallback(ctx, task, "", nil) {
			e.retries = 0
			e.consecutiveFailures = 0
			return nil
		}
	}

	if e.retries < maxRetries {
		e.status.set(fmt.Sprintf("No action selected. Retrying (%d/%d)...", e.retries, maxRetries))
		return nil
	}

	e.speakText(ctx, "I couldn't determine the next action. Please try again.")
	return fmt.Errorf("max retries reached without function call")
}

// normalizeBatch constrains a multi-call response to the allowed
// shapes: one call, position+click, position+click+complete, or
// click+complete. Anything else collapses to the first call.
func (e *engine) normalizeBatch(calls []model.Call) []model.Call {
	if len(calls) <= 1 {
		return calls
	}

	first := calls[0]
	if first.Name == "task_is_complete" {
		return calls[:1]
	}

	second := calls[1]
	_, firstPositions := positioningTools[first.Name]
	_, secondClicks := clickToolToType[second.Name]
	if firstPositions && secondClicks {
		if len(calls) >= 3 && calls[2].Name == "task_is_complete" {
			if len(calls) > 3 {
				e.log.Debug().Msg("dropping extra calls after position+click+complete")
			}
			return calls[:3]
		}
		if len(calls) > 2 {
			e.log.Debug().Msg("dropping extra calls after position+click")
		}
		return calls[:2]
	}

	_, firstClicks := clickToolToType[first.Name]
	if firstClicks && second.Name == "task_is_complete" {
		if len(calls) > 2 {
			e.log.Debug().Msg("dropping extra calls after click+complete")
		}
		return calls[:2]
	}

	e.log.Debug().Msg("unsupported multi-call sequence, executing only the first call")
	return calls[:1]
}

func (e *engine) handleCalls(ctx context.Context, task string, calls []model.Call) (bool, error) {
	hasExplicitClick := false
	for _, c := range calls {
		if _, ok := clickToolToType[c.Name]; ok {
			hasExplicitClick = true
			break
		}
	}
	for _, c := range calls {
		done, err := e.handleCall(ctx, task, c, !hasExplicitClick)
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
		if err := e.checkStopped(ctx); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (e *engine) handleCall(ctx context.Context, task string, call model.Call, allowAutoClick bool) (bool, error) {
	if err := e.checkStopped(ctx); err != nil {
		return false, err
	}
	name := call.Name
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	statusText := argString(args, "status_text")
	if statusText == "" {
		statusText = defaultStatusText(name)
	}
	e.status.set(statusText)

	clickType := clickToolToType[name]
	signature := e.actionSignature(name, args)
	if signature == e.lastActionSignature {
		e.repeatedActionCount++
	} else {
		e.lastActionSignature = signature
		e.repeatedActionCount = 1
	}

	if clickType != "" && e.repeatedActionCount >= maxFailuresBeforeFallback {
		if e.attemptFallback(ctx, task, clickType, args) {
			e.consecutiveFailures = 0
			e.repeatedActionCount = 0
			return false, nil
		}
	}

	_, isPositioning := positioningTools[name]
	if allowAutoClick && isPositioning && e.repeatedActionCount >= autoClickAfterRepeatedPos {
		return false, e.autoClickAfterRepeatedPositioning(ctx, task, args)
	}

	e.log.Debug().Str("tool", name).Interface("args", args).Msg("executing tool")

	if err := e.checkStopped(ctx); err != nil {
		return false, err
	}
	execErr := e.executeTool(ctx, name, args)
	if execErr != nil {
		return e.handleToolFailure(ctx, task, clickType, args, execErr)
	}
	e.consecutiveFailures = 0

	if isPositioning {
		e.lastTarget = e.resolveTargetDescription(task, args)
	}
	if clickType != "" {
		target := e.resolveTargetDescription(task, args)
		e.lastTarget = target
		e.lastClickContext = &clickContext{clickType: clickType, target: target}
	}

	if name == "tts_speak" || name == "task_is_complete" {
		e.status.set("Task complete")
		e.status.hide(terminalStatusHideDelayMs)
		return true, nil
	}

	if e.registerActionAndDetectClickLoop(task, name, signature, clickType) {
		target := e.resolveTargetDescription(task, args)
		e.status.set("Task appears complete. Stopping repeated clicks.")
		e.log.Info().Str("target", target).Msg("repeated position+click loop detected, stopping")
		e.status.hide(terminalStatusHideDelayMs)
		return true, nil
	}

	if err := e.waitForUISettle(ctx); err != nil {
		return false, err
	}
	return false, nil
}

func (e *engine) handleToolFailure(ctx context.Context, task, clickType string, args map[string]any, execErr error) (bool, error) {
	e.log.Warn().Err(execErr).Msg("tool execution failed")
	e.consecutiveFailures++

	if clickType != "" && e.consecutiveFailures >= maxFailuresBeforeFallback {
		if e.attemptFallback(ctx, task, clickType, args) {
			e.consecutiveFailures = 0
			e.repeatedActionCount = 0
			return false, nil
		}
	}

	if e.retries < maxRetries {
		e.retries++
		e.status.set(fmt.Sprintf("Action failed. Retrying (%d/%d)...", e.retries, maxRetries))
		return false, nil
	}
	return false, execErr
}

// autoClickAfterRepeatedPositioning synthesizes the click the model
// keeps positioning for but never issues.
func (e *engine) autoClickAfterRepeatedPositioning(ctx context.Context, task string, args map[string]any) error {
	clickType := inferClickType(task, args)
	target := e.resolveTargetDescription(task, args)
	e.status.set(fmt.Sprintf("Position repeated. Executing %s on %s...", clickType, target))

	if err := clickAs(e.input, clickType); err != nil {
		return err
	}
	e.lastTarget = target
	e.lastClickContext = &clickContext{clickType: clickType, target: target}
	e.lastActionSignature = ""
	e.repeatedActionCount = 0
	e.consecutiveFailures = 0
	e.log.Info().Str("clickType", clickType).Str("target", target).
		Msg("auto-click before repeated positioning")
	return e.waitForUISettle(ctx)
}

func (e *engine) executeTool(ctx context.Context, name string, args map[string]any) error {
	switch name {
	case "type_string":
		return e.input.TypeString(argString(args, "string"), argBool(args, "submit"))
	case "press_ctrl_hotkey":
		return e.input.CtrlHotkey(argString(args, "key"))
	case "press_alt_hotkey":
		return e.input.AltHotkey(argString(args, "key"))
	case "go_to_element":
		return e.goToElement(ctx, args)
	case "crop_and_search":
		return e.cropAndSearchTool(ctx, args)
	case "click_left_click":
		return e.input.ClickLeft()
	case "click_double_left_click":
		return e.input.ClickDoubleLeft()
	case "click_right_click":
		return e.input.ClickRight()
	case "hold_down_left_click":
		return e.input.HoldLeft()
	case "hold_down_right_click":
		return e.input.HoldRight()
	case "release_left_click":
		return e.input.ReleaseLeft()
	case "release_right_click":
		return e.input.ReleaseRight()
	case "press_key_for_duration":
		secs, _ := argFloat(args, "seconds")
		return e.input.PressKeyForDuration(argString(args, "key"), secs)
	case "hold_down_key":
		return e.input.HoldKey(argString(args, "key"))
	case "release_held_key":
		return e.input.ReleaseKey(argString(args, "key"))
	case "remember_information":
		e.remember(argString(args, "thing_to_remember"))
		return nil
	case "task_is_complete":
		message := strings.TrimSpace(argString(args, "text"))
		if message == "" {
			message = "Done."
		}
		e.speakText(ctx, message)
		return nil
	case "tts_speak":
		e.speakText(ctx, argString(args, "text"))
		return nil
	case "find_and_click_element":
		if e.legacy.locateAndClick(ctx, argString(args, "type_of_click"),
			argString(args, "element_description"), e.stopped) {
			return nil
		}
		return fmt.Errorf("legacy element localization failed")
	}
	return fmt.Errorf("unknown tool: %s", name)
}

// goToElement moves the cursor to the bbox center. Small targets are
// refined through a forced crop-and-search pass first.
func (e *engine) goToElement(ctx context.Context, args map[string]any) error {
	box, err := argBBox(args)
	if err != nil {
		return err
	}
	if !e.hasFrame {
		if _, err := e.captureFrame(); err != nil {
			return err
		}
	}

	target := strings.TrimSpace(argString(args, "target_description"))
	if target == "" {
		target = "target"
	}
	w, h := logicalSize(e.lastFrame, box)

	var x, y float64
	autoZoom := shouldForceZoom(w, h)
	if autoZoom {
		if err := e.checkStopped(ctx); err != nil {
			return err
		}
		x, y, err = cropAndSearch(ctx, e.locator, e.lastImage, e.lastFrame, box, target)
		if err != nil {
			return err
		}
	} else {
		x, y = centerOnScreen(e.lastFrame, box)
	}

	e.log.Debug().
		Str("target", target).
		Float64("x", x).Float64("y", y).
		Float64("bboxW", w).Float64("bboxH", h).
		Bool("autoZoom", autoZoom).
		Str("mode", e.lastFrame.Mode).
		Msg("go_to_element positioning")
	return e.input.MoveCursor(x, y)
}

func (e *engine) cropAndSearchTool(ctx context.Context, args map[string]any) error {
	target := strings.TrimSpace(argString(args, "target_description"))
	if target == "" {
		return fmt.Errorf("target_description is required for crop_and_search")
	}
	box, err := argBBox(args)
	if err != nil {
		return err
	}

	screenshot, err := e.captureFrame()
	if err != nil {
		return err
	}
	if err := e.checkStopped(ctx); err != nil {
		return err
	}
	x, y, err := cropAndSearch(ctx, e.locator, screenshot, e.lastFrame, box, target)
	if err != nil {
		return err
	}
	e.log.Debug().Str("target", target).Float64("x", x).Float64("y", y).
		Msg("crop_and_search positioned cursor")
	return e.input.MoveCursor(x, y)
}

func (e *engine) remember(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	e.memoryText = append(e.memoryText, text)
	e.log.Info().Str("fact", text).Msg("remembered")
}

// attemptFallback routes a stuck click through the legacy locator,
// using the failing call's context or the last known click.
func (e *engine) attemptFallback(ctx context.Context, task, clickType string, args map[string]any) bool {
	if e.stopped() {
		return false
	}

	var cc *clickContext
	if clickType != "" && args != nil {
		cc = &clickContext{clickType: clickType, target: e.resolveTargetDescription(task, args)}
	} else if e.lastClickContext != nil {
		cc = e.lastClickContext
	}
	if cc == nil || cc.target == "" || cc.clickType == "" {
		return false
	}

	e.status.set(fmt.Sprintf("%s is uncertain. Using precision fallback...", cc.target))
	if e.stopped() {
		return false
	}
	if e.legacy.locateAndClick(ctx, cc.clickType, cc.target, e.stopped) {
		e.status.set(fmt.Sprintf("Fallback located %s.", cc.target))
		return true
	}
	return false
}

// inferClickType guesses the intended click when auto-clicking after
// a positioning loop. Left unless the task or metadata says otherwise.
func inferClickType(task string, args map[string]any) string {
	haystack := strings.ToLower(strings.Join([]string{
		argString(args, "status_text"),
		argString(args, "target_description"),
		task,
	}, " "))
	if strings.Contains(haystack, "double click") || strings.Contains(haystack, "double-click") {
		return clickDouble
	}
	if strings.Contains(haystack, "right click") || strings.Contains(haystack, "right-click") ||
		strings.Contains(haystack, "context menu") {
		return clickRight
	}
	return clickLeft
}

// toNorm1000 lifts a coordinate into 0-1000 space. Pixel-band values
// pass through; bucketing still works heuristically for them.
func toNorm1000(value float64) float64 {
	if value >= 0 && value <= 1 {
		return value * 1000
	}
	return value
}

// positionBucket coarsens a bbox center so small jitter between steps
// still counts as repetition.
func positionBucket(args map[string]any) (int, int, bool) {
	ymin, ok1 := argFloat(args, "ymin")
	xmin, ok2 := argFloat(args, "xmin")
	ymax, ok3 := argFloat(args, "ymax")
	xmax, ok4 := argFloat(args, "xmax")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, 0, false
	}
	centerX := (toNorm1000(xmin) + toNorm1000(xmax)) / 2
	centerY := (toNorm1000(ymin) + toNorm1000(ymax)) / 2
	return int(centerX / positionBucketSize), int(centerY / positionBucketSize), true
}

// actionSignature canonicalizes one call for repeat detection.
// Positioning tools hash by center bucket so label jitter does not
// defeat the check; click tools inherit the last target when the
// model omits one.
func (e *engine) actionSignature(name string, args map[string]any) string {
	filtered := make(map[string]any, len(args))
	for k, v := range args {
		if _, meta := toolMetadataKeys[k]; meta {
			continue
		}
		filtered[k] = v
	}
	if _, isClick := clickToolToType[name]; isClick && e.lastTarget != "" {
		if _, ok := filtered["target_description"]; !ok {
			filtered["target_description"] = e.lastTarget
		}
	}
	if _, isPositioning := positioningTools[name]; isPositioning {
		if bx, by, ok := positionBucket(filtered); ok {
			return fmt.Sprintf("%s|bucket:%d,%d", name, bx, by)
		}
	}

	keys := make([]string, 0, len(filtered))
	for k := range filtered {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		fmt.Fprintf(&sb, "|%s=%v", k, filtered[k])
	}
	return sb.String()
}

var repeatedClickMarkers = []string{
	"times",
	"repeatedly",
	"keep clicking",
	"click again",
	"double click multiple",
	"spam click",
	"until",
	"every",
	"loop",
}

func taskExpectsRepeatedClicks(task string) bool {
	text := strings.ToLower(task)
	for _, marker := range repeatedClickMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// registerActionAndDetectClickLoop tracks the alternating A,B,A,B
// position+click pattern that evades the immediate-repeat check.
func (e *engine) registerActionAndDetectClickLoop(task, name, signature, clickType string) bool {
	if _, isPositioning := positioningTools[name]; isPositioning {
		e.pendingPositionSig = signature
		return false
	}

	if clickType != "" {
		if e.pendingPositionSig == "" {
			return false
		}
		cycleSig := e.pendingPositionSig + "->" + signature
		if cycleSig == e.lastClickCycleSig {
			e.repeatedClickCycleCount++
		} else {
			e.lastClickCycleSig = cycleSig
			e.repeatedClickCycleCount = 1
		}
		return e.repeatedClickCycleCount >= clickCycleLoopStop &&
			!taskExpectsRepeatedClicks(task)
	}

	// Any other action resets this specific loop detector.
	e.pendingPositionSig = ""
	e.lastClickCycleSig = ""
	e.repeatedClickCycleCount = 0
	return false
}

// resolveTargetDescription recovers a human target label: explicit
// target_description, then status_text stripped of verb prefixes,
// then the last known target, then a generic stand-in.
func (e *engine) resolveTargetDescription(task string, args map[string]any) string {
	if target := strings.TrimSpace(argString(args, "target_description")); target != "" {
		return target
	}

	if statusText := strings.TrimSpace(argString(args, "status_text")); statusText != "" {
		normalized := strings.TrimRight(statusText, ".")
		lower := strings.ToLower(normalized)
		for _, prefix := range []string{
			"searching for ",
			"looking for ",
			"locating ",
			"clicking ",
			"opening ",
			"selecting ",
		} {
			if strings.HasPrefix(lower, prefix) {
				if candidate := strings.TrimSpace(normalized[len(prefix):]); candidate != "" {
					return candidate
				}
			}
		}
		return normalized
	}

	if target := strings.TrimSpace(e.lastTarget); target != "" {
		return target
	}
	return "best target for task: " + task
}

func (e *engine) speakText(ctx context.Context, text string) {
	if e.speak == nil || strings.TrimSpace(text) == "" {
		return
	}
	e.speak(ctx, text)
}

// waitForUISettle pauses after a successful action so the screen can
// catch up before the next capture.
func (e *engine) waitForUISettle(ctx context.Context) error {
	if e.settleDelay <= 0 {
		return nil
	}
	if err := e.checkStopped(ctx); err != nil {
		return err
	}
	return sleepCtx(ctx, e.settleDelay)
}

func (e *engine) checkStopped(ctx context.Context) error {
	if e.stopped() {
		return agent.ErrStopped
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
