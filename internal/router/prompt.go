package router

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/clovis/internal/judge"
	"github.com/standardbeagle/clovis/internal/memory"
)

const systemPromptHead = `
You are CLOVIS, a next generation computer use agent. You are the router/dispatcher that decides how to handle user requests.
`

const systemPromptBody = `
You have six tools available:

1. **direct_response** - Answer simple questions immediately
   - Simple math: "What's 2+2?"
   - Basic facts: "What's the capital of France?"
   - Greetings: "Hello" or "Hi there"

2. **invoke_clovis** - Annotate/explain things on the user's screen
   - "What's this button?"
   - "Explain what I'm looking at"
   - "Point to the settings"
   - Any mention of "this", "that", "here", "it" (referring to screen)
   - Questions about UI elements, code on screen, etc.

3. **invoke_browser** - Web automation tasks
   - "Search for X online"
   - "Book a flight to NYC"
   - "Fill out this form"
   - "Go to website X"
   - Any task requiring browser control

4. **invoke_cua_cli** - Shell-based desktop control
   - "Run this command"
   - "Create a new folder"
   - "Open terminal and..."
   - Tasks best handled via shell commands

5. **invoke_cua_vision** - GUI-based desktop control
   - "Click the settings button"
   - "Open Spotify" (when it requires clicking)
   - Tasks requiring visual interaction with the desktop

6. **request_screen_context** - One-shot screenshot context extraction for routing
   - Use when user refers to visible context like "this repo", "that URL", "on my screen"
   - Extract concrete details (repo URL, visible local URL, relevant UI state)
   - Then continue with actionable tools (invoke_cua_cli / invoke_browser / invoke_cua_vision)

ROUTING RULES:
- HARD RULE: ` + "`invoke_clovis`" + ` is for explanation/annotation only, not execution.
- If the user asks you to DO something ("for me", clone/run/open/click/type/install/start/etc.), never choose ` + "`invoke_clovis`" + `.
- For executable desktop workflows, choose one of: ` + "`invoke_cua_vision`, `invoke_cua_cli`, `invoke_browser`" + `.
- If execution depends on currently visible context, call ` + "`request_screen_context`" + ` first, then continue execution.
- Use ` + "`invoke_browser`" + ` for browser/web tasks.
- Use ` + "`invoke_cua_cli`" + ` for shell/file/localhost/server tasks.
- Use ` + "`invoke_cua_vision`" + ` for UI clicking/typing/navigation tasks on desktop apps.
- Only use ` + "`direct_response`" + ` for simple answers OR when a multi-step execution is fully complete.
- For multi-step requests, choose one actionable tool call per turn and continue step-by-step until done.
- IMPORTANT: When passing tasks to agents, preserve the user's original wording and context faithfully. Do NOT paraphrase, simplify, or strip away site names, URLs, or contextual details. The downstream agent needs full context to act correctly.
`

// systemPrompt renders the router instructions, with an optional
// personality section from settings.
func systemPrompt(personalization string) string {
	personality := ""
	if personalization != "" {
		personality = "\nPersonality Description: " + personalization + "\n"
	}
	return systemPromptHead + personality + systemPromptBody
}

// chainStateBlock renders the multi-agent chaining section of the
// router prompt: prior delegated steps plus the latest screen context.
func chainStateBlock(userPrompt string, steps []Step, maxSteps int, sc *judge.Context) string {
	contextLines := screenContextLines(sc)

	if len(steps) == 0 {
		return "\n# Multi-Agent Chaining Mode\n" +
			"This task may require multiple delegated tools.\n" +
			"Pick the best first tool call, and treat this as step 1 of a multi-step execution.\n" +
			"If the request depends on currently visible UI context, call `request_screen_context` first.\n" +
			"For action/execution requests ('do X for me', clone/run/open/click/type), do NOT use `invoke_clovis`.\n" +
			"Use `invoke_clovis` only for explanation/annotation requests.\n" +
			"When the overall user request is fully complete, call `direct_response`.\n" +
			contextLines +
			fmt.Sprintf("Never exceed %d delegated steps.\n", maxSteps)
	}

	var lines []string
	for i, step := range steps {
		lines = append(lines, fmt.Sprintf(
			"%d. agent=%s success=%t task=%s outcome=%s",
			i+1, step.Agent, step.Success, step.Task, step.Message,
		))
	}

	return "\n# Multi-Agent Chaining Mode\n" +
		"Continue from prior delegated work. Choose the single best next tool call.\n" +
		"If the original request is complete, call `direct_response` now.\n" +
		"Avoid repeating the exact same delegated step unless something materially changed.\n" +
		"If you still need visible context, call `request_screen_context` again.\n" +
		"For action/execution requests, do NOT use `invoke_clovis`.\n" +
		fmt.Sprintf("Original request: %s\n", userPrompt) +
		fmt.Sprintf("Completed delegated steps (%d/%d):\n", len(steps), maxSteps) +
		strings.Join(lines, "\n") +
		contextLines +
		"\n"
}

func screenContextLines(sc *judge.Context) string {
	if sc == nil {
		return ""
	}
	var rows []string
	if v := memory.Clean(sc.Summary, "", 260); v != "" {
		rows = append(rows, "- Summary: "+v)
	}
	if v := memory.Clean(sc.RepoURL, "", 220); v != "" {
		rows = append(rows, "- Repo URL: "+v)
	}
	if v := memory.Clean(sc.LocalURL, "", 220); v != "" {
		rows = append(rows, "- Local URL: "+v)
	}
	if v := memory.Clean(sc.RecommendedAgent, "", 40); v != "" {
		rows = append(rows, "- Recommended agent: "+v)
	}
	if v := memory.Clean(sc.RecommendedTask, "", 240); v != "" {
		rows = append(rows, "- Recommended next task: "+v)
	}
	if v := memory.Clean(sc.Hints, "", 240); v != "" {
		rows = append(rows, "- Extra hints: "+v)
	}
	if len(rows) == 0 {
		return ""
	}
	return "\n# Latest Screen Context\n" + strings.Join(rows, "\n") + "\n"
}
