// Package router runs the per-request session loop: one routing model
// call per turn, delegation to agents with bounded chaining, and a
// single terminal direct response.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/agent"
	"github.com/standardbeagle/clovis/internal/draw"
	"github.com/standardbeagle/clovis/internal/judge"
	"github.com/standardbeagle/clovis/internal/memory"
	"github.com/standardbeagle/clovis/internal/model"
	"github.com/standardbeagle/clovis/internal/overlay"
)

const (
	// maxChainSteps bounds delegated steps per session.
	maxChainSteps = 6
	// repeatedStepLimit ends the session when one signature recurs.
	repeatedStepLimit = 3

	directSource = "rapid_response"
	memorySource = "rapid"
)

// Step records one delegated agent invocation.
type Step struct {
	Agent   string
	Task    string
	Success bool
	Message string
	Source  string
}

// JudgeFunc runs the screen judge over the current screen.
type JudgeFunc func(ctx context.Context, task, focus string) (judge.Context, error)

// Surface renders the terminal response. *draw.Queue satisfies it.
type Surface interface {
	DirectResponse(text string, opt draw.TextOptions)
	SetModelName(name string)
}

// Config wires the router's collaborators.
type Config struct {
	Invoker model.Invoker
	// Agents is keyed by routing target: clovis, browser, cua_cli,
	// cua_vision.
	Agents  map[string]agent.Agent
	Judge   JudgeFunc
	Memory  *memory.Ring
	Surface Surface
	// Sink carries status bubble frames for delegated steps. May be
	// nil.
	Sink            draw.Sink
	Personalization string
}

// Router dispatches user requests across the agents.
type Router struct {
	cfg Config
	log zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Router {
	return &Router{
		cfg: cfg,
		log: log.With().Str("component", "router").Logger(),
	}
}

// Run executes one session and returns the terminal response text.
// Cancellation returns an error without emitting a response.
func (r *Router) Run(ctx context.Context, userPrompt string) (string, error) {
	r.cfg.Memory.Append("user", "user", userPrompt)

	var steps []Step
	signatures := map[string]int{}
	var screenContext *judge.Context

	for stepIndex := 0; stepIndex < maxChainSteps; stepIndex++ {
		prompt := systemPrompt(r.cfg.Personalization) +
			r.cfg.Memory.RenderPrompt() +
			chainStateBlock(userPrompt, steps, maxChainSteps, screenContext) +
			"\n# User's Latest Request:\n" + userPrompt

		d, err := r.route(ctx, prompt)
		if err != nil {
			return "", err
		}

		if d.Agent == targetDirect {
			text := finalizeDirectText(userPrompt, steps,
				memory.Clean(d.Text, "Rapid response provided.", 420))
			r.emitDirect(text, d)
			return text, nil
		}

		sig := stepSignature(d)
		signatures[sig]++
		if signatures[sig] >= repeatedStepLimit {
			msg := "I stopped automatic multi-agent chaining because the next delegated step " +
				"kept repeating. Please rephrase or ask for one specific next action."
			r.emitDirect(msg, Decision{})
			return msg, nil
		}

		if d.Agent == targetScreenContext {
			step, sc := r.judgeStep(ctx, userPrompt, d)
			if sc != nil {
				screenContext = sc
			}
			steps = append(steps, step)
			r.cfg.Memory.Append("assistant", step.Source, step.Message)
			if !step.Success {
				msg := memory.Clean(
					"Stopping chained execution because screen context failed: "+step.Message,
					"Task failed.", 420)
				r.emitDirect(msg, Decision{})
				return msg, nil
			}
			continue
		}

		r.log.Info().
			Int("step", stepIndex+1).
			Str("agent", d.Agent).
			Str("task", memory.Clean(d.Task, "", 200)).
			Msg("delegating step")

		step, err := r.runStep(ctx, d)
		if err != nil {
			return "", err
		}
		steps = append(steps, step)
		r.cfg.Memory.Append("assistant", step.Source, step.Message)
		if !step.Success {
			msg := memory.Clean(
				fmt.Sprintf("Stopping chained execution because %s failed: %s", step.Agent, step.Message),
				"Task failed.", 420)
			r.emitDirect(msg, Decision{})
			return msg, nil
		}
	}

	msg := fmt.Sprintf(
		"I stopped after %d delegated steps to avoid loops. "+
			"If you want me to continue, ask for the next specific step.", maxChainSteps)
	r.emitDirect(msg, Decision{})
	return msg, nil
}

// route runs one routing model call. Model failures become a direct
// decision carrying the error; only cancellation propagates.
func (r *Router) route(ctx context.Context, prompt string) (Decision, error) {
	r.cfg.Surface.SetModelName(r.cfg.Invoker.Model())

	res, err := r.cfg.Invoker.Invoke(ctx, model.Request{
		Prompt: prompt,
		Tools:  routerTools(),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return Decision{}, agent.ErrStopped
		}
		return Decision{
			Agent: targetDirect,
			Text: memory.Clean("Router generation failed: "+err.Error(),
				"Router generation failed.", 420),
		}, nil
	}
	return decide(res), nil
}

func (r *Router) emitDirect(text string, d Decision) {
	r.cfg.Surface.DirectResponse(text, draw.TextOptions{
		FontSize:   d.FontSize,
		FontFamily: d.FontFamily,
		Source:     directSource,
	})
	r.cfg.Memory.Append("assistant", memorySource, text)
}

// stepSignature keys the repeat-loop counter.
func stepSignature(d Decision) string {
	task := strings.ToLower(memory.Clean(d.Task, "", 220))
	return strings.ToLower(strings.TrimSpace(d.Agent)) + "|" + task
}

// judgeStep collects screen context and records it as a chain step.
func (r *Router) judgeStep(ctx context.Context, userPrompt string, d Decision) (Step, *judge.Context) {
	task := d.Task
	if task == "" {
		task = userPrompt
	}
	r.log.Info().Str("task", memory.Clean(task, "", 200)).Msg("requesting screen context")

	step := Step{
		Agent:  targetScreenContext,
		Task:   memory.Clean(task, "", 220),
		Source: "screen_judge",
	}
	if r.cfg.Judge == nil {
		step.Message = "Screen judge is not configured."
		return step, nil
	}

	sc, err := r.cfg.Judge(ctx, task, d.Focus)
	if err != nil {
		step.Message = memory.Clean(err.Error(), "Failed to collect screen context.", 420)
		return step, nil
	}
	step.Success = true
	step.Message = sc.Message()
	return step, &sc
}

// runStep executes one delegated agent step.
func (r *Router) runStep(ctx context.Context, d Decision) (Step, error) {
	a, ok := r.cfg.Agents[d.Agent]
	if !ok {
		return Step{
			Agent:   d.Agent,
			Task:    memory.Clean(d.Task, "", 220),
			Message: "Router returned an unknown agent.",
			Source:  memorySource,
		}, nil
	}

	startText, withBubble := stepStatus(d.Agent)
	source := a.Name()
	if withBubble {
		r.showStatus(startText, source)
	}

	var status agent.StatusFunc
	if d.Agent == targetCLI {
		status = r.throttledStatus(source)
	}

	res, err := a.Execute(ctx, d.Task, status)
	if err != nil {
		if errors.Is(err, agent.ErrStopped) || ctx.Err() != nil {
			return Step{}, agent.ErrStopped
		}
		res = agent.Result{Success: false, Message: err.Error(), Source: source}
	}

	message := memory.Clean(res.Message, fallbackMessage(d.Agent, res.Success), 420)
	if withBubble {
		r.completeStatus(message, res.Success, source)
	}

	if res.Source != "" {
		source = res.Source
	}
	return Step{
		Agent:   d.Agent,
		Task:    memory.Clean(d.Task, "", 220),
		Success: res.Success,
		Message: message,
		Source:  source,
	}, nil
}

// stepStatus returns the status bubble start text for an agent, and
// whether the router manages a bubble for it at all. The annotation
// agent paints its own surfaces.
func stepStatus(target string) (string, bool) {
	switch target {
	case targetBrowser:
		return "Running browser task...", true
	case targetCLI:
		return "Running CLI task...", true
	case targetVision:
		return "Running computer-use task...", true
	default:
		return "", false
	}
}

func fallbackMessage(target string, success bool) string {
	switch target {
	case targetBrowser:
		if success {
			return "Browser task completed."
		}
		return "Browser task failed."
	case targetCLI:
		if success {
			return "CLI task completed."
		}
		return "CLI task failed."
	case targetVision:
		if success {
			return "Computer task completed."
		}
		return "Computer task failed."
	default:
		if success {
			return "Task completed."
		}
		return "Task failed."
	}
}

func (r *Router) showStatus(text, source string) {
	if r.cfg.Sink == nil {
		return
	}
	r.cfg.Sink.Dispatch(overlay.Payload{
		Command: overlay.CmdShowStatusBubble,
		Text:    text,
		Source:  source,
	})
}

func (r *Router) completeStatus(message string, success bool, source string) {
	if r.cfg.Sink == nil {
		return
	}
	doneText := "Task done"
	if !success {
		doneText = "Task failed"
	}
	r.cfg.Sink.Dispatch(overlay.Payload{
		Command:      overlay.CmdCompleteStatusBubble,
		ResponseText: message,
		DoneText:     doneText,
		DelayMs:      2000,
		Source:       source,
	})
}

// throttledStatus relays agent progress to the status bubble, dropping
// immediate duplicates and bursts.
func (r *Router) throttledStatus(source string) agent.StatusFunc {
	var lastText string
	var lastAt time.Time
	return func(text string) {
		if r.cfg.Sink == nil {
			return
		}
		cleaned := memory.Clean(text, "", 120)
		if cleaned == "" {
			return
		}
		now := time.Now()
		if cleaned == lastText && now.Sub(lastAt) < 200*time.Millisecond {
			return
		}
		if now.Sub(lastAt) < 100*time.Millisecond {
			return
		}
		lastText = cleaned
		lastAt = now
		r.cfg.Sink.Dispatch(overlay.Payload{
			Command: overlay.CmdUpdateStatusBubble,
			Text:    cleaned,
			Source:  source,
		})
	}
}
