package router

import (
	"strings"

	"github.com/standardbeagle/clovis/internal/memory"
)

// repeatRequestMarkers in the user prompt mean a repeated answer is
// intentional and must not be rewritten.
var repeatRequestMarkers = []string{
	"repeat",
	"again",
	"do it again",
	"rerun",
	"redo",
	"one more time",
}

// repeatArtifactMarkers flag final messages where the model narrates
// having nothing to do instead of summarizing what was done.
var repeatArtifactMarkers = []string{
	"repeat the exact same task",
	"already completed",
	"already created",
	"already moved",
	"already done",
	"is there anything else i can help you with",
}

func userRequestedRepeat(userPrompt string) bool {
	lowered := strings.ToLower(userPrompt)
	for _, marker := range repeatRequestMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func looksLikeRepeatArtifact(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range repeatArtifactMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// summarizeCompletedSteps builds the replacement response from the
// last one or two successful step messages.
func summarizeCompletedSteps(steps []Step) string {
	var messages []string
	for _, step := range steps {
		if !step.Success {
			continue
		}
		if msg := memory.Clean(step.Message, "", 220); msg != "" {
			messages = append(messages, msg)
		}
	}
	switch len(messages) {
	case 0:
		return "Task completed."
	case 1:
		return "Task completed: " + messages[0]
	default:
		return "Task completed: " + messages[len(messages)-2] + " Then: " + messages[len(messages)-1]
	}
}

// finalizeDirectText sanitizes the session's terminal response. After
// delegated work, a "nothing to do" artifact is replaced with a
// synthesis of what actually happened, unless the user explicitly
// asked for a repeat.
func finalizeDirectText(userPrompt string, steps []Step, text string) string {
	cleaned := memory.Clean(text, "Task completed.", 420)
	if len(steps) == 0 {
		return cleaned
	}
	if userRequestedRepeat(userPrompt) {
		return cleaned
	}
	if looksLikeRepeatArtifact(cleaned) {
		return summarizeCompletedSteps(steps)
	}
	return cleaned
}
