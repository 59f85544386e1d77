package router

import (
	"github.com/standardbeagle/clovis/internal/model"
)

// Routing targets the model may pick. The exported names key
// Config.Agents.
const (
	AgentClovis  = "clovis"
	AgentBrowser = "browser"
	AgentCLI     = "cua_cli"
	AgentVision  = "cua_vision"

	targetDirect        = "direct"
	targetClovis        = AgentClovis
	targetBrowser       = AgentBrowser
	targetCLI           = AgentCLI
	targetVision        = AgentVision
	targetScreenContext = "screen_context"
)

// Decision is one routing verdict from the router model.
type Decision struct {
	Agent string
	// Task carries the delegated task (or annotation query).
	Task  string
	Focus string
	// Text and the font fields apply when Agent is direct.
	Text       string
	FontSize   int
	FontFamily string
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func taskSchema(desc string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"task": prop("string", desc)},
		"required":   []string{"task"},
	}
}

// routerTools declares the fixed routing tool set.
func routerTools() []model.Tool {
	return []model.Tool{
		{
			Name: "direct_response",
			Description: "Respond directly to the user for simple questions that don't require " +
				"screen access, browser, or desktop control.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":        prop("string", "Response text to render."),
					"font_size":   prop("integer", "Font size in pixels."),
					"font_family": prop("string", "Font family name."),
				},
				"required": []string{"text"},
			},
		},
		{
			Name: "invoke_clovis",
			Description: "Delegate to CLOVIS for screen annotation and explanation. Use when the user " +
				"wants to understand something on their screen, needs visual explanation, or refers to " +
				"'this', 'that', 'here', etc.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": prop("string", "The user's query to pass to CLOVIS.")},
				"required":   []string{"query"},
			},
		},
		{
			Name: "invoke_browser",
			Description: "Delegate to the Browser Agent for web automation. Use for tasks involving " +
				"websites, web searches, online forms, or any browser-based interactions.",
			Parameters: taskSchema("The browser task to perform. Preserve the user's original wording, " +
				"context, and any site/URL references faithfully. Do not paraphrase or strip context."),
		},
		{
			Name: "invoke_cua_cli",
			Description: "Delegate to the CLI Agent for shell-based desktop control. Use for running " +
				"commands, opening apps via terminal, file operations, and script execution.",
			Parameters: taskSchema("Description of the CLI task to perform."),
		},
		{
			Name: "invoke_cua_vision",
			Description: "Delegate to the Vision Agent for GUI-based desktop control. Use for clicking " +
				"buttons, interacting with visual interfaces, and tasks requiring screen understanding.",
			Parameters: taskSchema("Description of the vision-based task to perform."),
		},
		{
			Name: "request_screen_context",
			Description: "Request a one-shot multimodal screen context analysis to inform routing. " +
				"Use when the task references visible screen content (e.g., 'this repo', 'that URL', " +
				"'on my screen') and you need concrete context before choosing " +
				"invoke_cua_cli/invoke_browser/invoke_cua_vision.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task":  prop("string", "Original user task/request."),
					"focus": prop("string", "Optional thing to extract from screen (repo URL, local URL, etc.)."),
				},
				"required": []string{"task"},
			},
		},
	}
}

// decide maps a model result to a decision. A nil result is an invalid
// shape; a result without a recognized call falls back to its text.
func decide(res *model.Result) Decision {
	if res == nil {
		return Decision{Agent: targetDirect, Text: "Router returned an invalid response shape."}
	}

	for _, c := range res.Calls {
		switch c.Name {
		case "invoke_clovis":
			return Decision{Agent: targetClovis, Task: callString(c, "query")}
		case "invoke_browser":
			return Decision{Agent: targetBrowser, Task: callString(c, "task")}
		case "invoke_cua_cli":
			return Decision{Agent: targetCLI, Task: callString(c, "task")}
		case "invoke_cua_vision":
			return Decision{Agent: targetVision, Task: callString(c, "task")}
		case "request_screen_context":
			return Decision{
				Agent: targetScreenContext,
				Task:  callString(c, "task"),
				Focus: callString(c, "focus"),
			}
		case "direct_response":
			return Decision{
				Agent:      targetDirect,
				Text:       callString(c, "text"),
				FontSize:   callInt(c, "font_size"),
				FontFamily: callString(c, "font_family"),
			}
		}
	}

	return Decision{Agent: targetDirect, Text: res.Text}
}

func callString(c model.Call, key string) string {
	s, _ := c.Args[key].(string)
	return s
}

func callInt(c model.Call, key string) int {
	switch v := c.Args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
