// Package memory keeps a bounded transcript of router-visible turns.
// Agent entries hold short summaries, not full transcripts, so the
// router prompt stays small across long sessions.
package memory

import (
	"strings"
	"sync"
)

const (
	// Capacity bounds the ring; older entries fall off.
	Capacity = 32
	// RenderLimit bounds how many trailing entries a prompt sees.
	RenderLimit = 20

	entryMaxLen = 600
)

// Agent sources whose assistant entries are labeled "Agent" instead of
// the router itself.
var agentSources = map[string]struct{}{
	"browser_use":  {},
	"cua_cli":      {},
	"cua_vision":   {},
	"clovis":       {},
	"screen_judge": {},
}

// Entry is one remembered turn.
type Entry struct {
	Role   string
	Source string
	Text   string
}

// Ring is a fixed-capacity conversation ring. Safe for concurrent use.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
}

func NewRing() *Ring {
	return &Ring{}
}

// Append records a turn. Text is whitespace-collapsed and truncated;
// empty text is dropped.
func (r *Ring) Append(role, source, text string) {
	cleaned := Clean(text, "", entryMaxLen)
	if cleaned == "" {
		return
	}
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Role: role, Source: source, Text: cleaned})
	if len(r.entries) > Capacity {
		r.entries = r.entries[len(r.entries)-Capacity:]
	}
	r.mu.Unlock()
}

// Len returns the number of stored entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns a copy of all stored entries, oldest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Last returns the most recent entry and whether one exists.
func (r *Ring) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// RenderPrompt formats the trailing entries as a prompt block, or ""
// when the ring is empty.
func (r *Ring) RenderPrompt() string {
	entries := r.Snapshot()
	if len(entries) == 0 {
		return ""
	}
	if len(entries) > RenderLimit {
		entries = entries[len(entries)-RenderLimit:]
	}

	var b strings.Builder
	b.WriteString("\n# Conversation History (Rapid-Model Messages Only)\n")
	b.WriteString("Use this history for context. Agent entries are short summaries only.\n")
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(label(e))
		b.WriteString(": ")
		b.WriteString(e.Text)
	}
	b.WriteString("\n")
	return b.String()
}

func label(e Entry) string {
	if e.Role == "user" {
		return "User"
	}
	if _, ok := agentSources[e.Source]; ok {
		return "Agent"
	}
	return "Rapid Assistant"
}

// Clean collapses whitespace and truncates to maxLen with an ellipsis.
// Returns fallback when the result is empty.
func Clean(value, fallback string, maxLen int) string {
	text := strings.Join(strings.Fields(value), " ")
	if text == "" {
		return fallback
	}
	if maxLen > 3 && len(text) > maxLen {
		return text[:maxLen-3] + "..."
	}
	return text
}
