package cli

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolCall is one tool invocation recovered from the CLI's stream-json
// output, with its result attached once the matching tool_result event
// arrives.
type ToolCall struct {
	Name       string
	ID         string
	Parameters map[string]any
	Result     string
	Status     string
	Error      string
}

// Response is the structured outcome of one CLI run.
type Response struct {
	Success   bool
	Output    string
	Error     string
	ToolCalls []ToolCall
}

// preview collapses whitespace and truncates to maxLen for status
// lines and error snippets.
func preview(value string, maxLen int) string {
	text := strings.Join(strings.Fields(value), " ")
	if len(text) > maxLen {
		return text[:maxLen-3] + "..."
	}
	return text
}

// cleanJoin merges non-empty whitespace-collapsed parts with " | ".
func cleanJoin(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if text := strings.Join(strings.Fields(part), " "); text != "" {
			cleaned = append(cleaned, text)
		}
	}
	return strings.Join(cleaned, " | ")
}

func stringField(event map[string]any, key string) string {
	if v, ok := event[key].(string); ok {
		return v
	}
	return ""
}

// errorText flattens an error payload that may be a plain string or an
// object with a message field.
func errorText(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return fmt.Sprintf("%v", v)
}

// parseStreamJSON folds the newline-delimited event stream into a
// Response. Non-JSON lines are skipped as debug noise.
func parseStreamJSON(stdout, stderr string, exitCode int) Response {
	var outputParts []string
	var toolCalls []ToolCall
	var errMsg string

	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if line == "" {
			continue
		}
		var event map[string]any
		if json.Unmarshal([]byte(line), &event) != nil {
			continue
		}

		switch stringField(event, "type") {
		case "message":
			if stringField(event, "role") != "assistant" {
				continue
			}
			if content := stringField(event, "content"); content != "" {
				outputParts = append(outputParts, content)
			}
		case "tool_use":
			call := ToolCall{
				Name: stringField(event, "tool_name"),
				ID:   stringField(event, "tool_id"),
			}
			if params, ok := event["parameters"].(map[string]any); ok {
				call.Parameters = params
			}
			toolCalls = append(toolCalls, call)
		case "tool_result":
			id := stringField(event, "tool_id")
			for i := range toolCalls {
				if toolCalls[i].ID == id {
					toolCalls[i].Result = stringField(event, "output")
					toolCalls[i].Status = stringField(event, "status")
					toolCalls[i].Error = errorText(event["error"])
				}
			}
		case "error":
			errMsg = stringField(event, "message")
			if errMsg == "" {
				errMsg = "Unknown error"
			}
		case "result":
			if stringField(event, "status") != "success" {
				errMsg = errorText(event["error"])
				if errMsg == "" {
					errMsg = "Task failed"
				}
			}
		}
	}

	out := Response{
		Success:   exitCode == 0 && errMsg == "",
		Output:    strings.Join(outputParts, ""),
		Error:     errMsg,
		ToolCalls: toolCalls,
	}
	if out.Error == "" && exitCode != 0 {
		out.Error = stderr
	}
	return out
}

func friendlyName(toolName string) string {
	name := strings.TrimSpace(toolName)
	if name == "" {
		name = "tool"
	}
	return strings.ReplaceAll(name, "_", " ")
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// formatToolStatus renders the live status line for a tool_use event.
func formatToolStatus(toolName string, params map[string]any) string {
	name := strings.TrimSpace(toolName)
	friendly := friendlyName(toolName)

	switch name {
	case "run_shell_command", "shell", "bash":
		for _, key := range []string{"command", "cmd", "script"} {
			if v, ok := params[key].(string); ok && v != "" {
				return "Running command: " + preview(v, 72)
			}
		}
		return "Running shell command..."
	case "read_file", "read_many_files":
		if path := firstString(params, "file_path", "path"); path != "" {
			return "Reading file: " + preview(path, 80)
		}
		return "Reading files..."
	case "write_file", "edit":
		if path := firstString(params, "file_path", "path"); path != "" {
			return "Updating file: " + preview(path, 80)
		}
		return "Updating files..."
	case "ls", "glob", "grep", "ripgrep":
		if path := firstString(params, "path", "query"); path != "" {
			return titleWords(friendly) + ": " + preview(path, 80)
		}
		return titleWords(friendly) + "..."
	}
	return "Using " + friendly + "..."
}

func firstString(params map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := params[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// statusFromEvent converts one stream event into a status line, or ""
// when the event carries nothing user-visible. toolByID accumulates
// tool names so results can be attributed.
func statusFromEvent(event map[string]any, toolByID map[string]string) string {
	switch stringField(event, "type") {
	case "init":
		return "CLI session started..."
	case "tool_use":
		toolName := stringField(event, "tool_name")
		if toolName == "" {
			toolName = "tool"
		}
		if id := stringField(event, "tool_id"); id != "" {
			toolByID[id] = toolName
		}
		params, _ := event["parameters"].(map[string]any)
		return formatToolStatus(toolName, params)
	case "tool_result":
		toolName := toolByID[stringField(event, "tool_id")]
		if toolName == "" {
			toolName = "tool"
		}
		if stringField(event, "status") == "error" {
			if msg := preview(errorText(event["error"]), 72); msg != "" {
				return titleWords(friendlyName(toolName)) + " failed: " + msg
			}
			return titleWords(friendlyName(toolName)) + " failed."
		}
		return "Finished " + friendlyName(toolName) + "."
	case "error":
		if msg := preview(stringField(event, "message"), 96); msg != "" {
			return "CLI error: " + msg
		}
		return "CLI error."
	case "result":
		if stringField(event, "status") == "success" {
			return "Finalizing CLI response..."
		}
		if msg := preview(errorText(event["error"]), 80); msg != "" {
			return "CLI task failed: " + msg
		}
		return "CLI task failed."
	}
	return ""
}
