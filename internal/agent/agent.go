// Package agent defines the contract every delegated agent satisfies
// and the result shape the router records as a chain step.
package agent

import (
	"context"
	"errors"
)

// Sources identify which agent produced a message.
const (
	SourceBrowser = "browser_use"
	SourceCLI     = "cua_cli"
	SourceVision  = "cua_vision"
	SourceClovis  = "clovis"
)

// ErrStopped is returned when a task is cancelled by the stop flag.
var ErrStopped = errors.New("task stopped")

// Result is the outcome of one delegated task.
type Result struct {
	Success bool
	// Message is the short human-readable outcome recorded in chain
	// state and conversation memory.
	Message string
	// Source names the agent for memory labeling.
	Source string
}

// StatusFunc receives progress strings for the on-screen status
// surface. Implementations must tolerate a nil callback.
type StatusFunc func(text string)

// Agent executes one task end to end.
type Agent interface {
	// Name is the routing identifier (cua_cli, cua_vision, browser, clovis).
	Name() string
	// Execute runs the task. Errors are reserved for infrastructure
	// failures; task-level failure is reported via Result.Success.
	Execute(ctx context.Context, task string, status StatusFunc) (Result, error)
}

// Notify invokes a status callback if present.
func Notify(status StatusFunc, text string) {
	if status != nil && text != "" {
		status(text)
	}
}
