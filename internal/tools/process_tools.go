package tools

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/clovis/internal/process"
)

// ProcessTable is the slice of the background process manager the MCP
// surface needs.
type ProcessTable interface {
	Start(ctx context.Context, command string, env []string, workingDir, task string) (*process.Managed, error)
	List() []process.Managed
	Stop(id string) error
	StopAll() int
}

// ProcInput defines input for the proc tool.
type ProcInput struct {
	Action     string `json:"action" jsonschema:"Action: run, list, stop, stop_all"`
	Command    string `json:"command,omitempty" jsonschema:"Shell command to launch (required for run)"`
	WorkingDir string `json:"working_dir,omitempty" jsonschema:"Working directory for run (defaults to current dir)"`
	Task       string `json:"task,omitempty" jsonschema:"Task description; port hints in it speed up health checks"`
	ProcessID  string `json:"process_id,omitempty" jsonschema:"Process ID (required for stop)"`
}

// ProcOutput defines output for proc.
type ProcOutput struct {
	// For run
	ProcessID  string `json:"process_id,omitempty"`
	PID        int    `json:"pid,omitempty"`
	LogPath    string `json:"log_path,omitempty"`
	ActivePort int    `json:"active_port,omitempty"`
	// For list
	Count     int         `json:"count,omitempty"`
	Processes []ProcEntry `json:"processes,omitempty"`
	// For stop / stop_all
	Success bool   `json:"success,omitempty"`
	Stopped int    `json:"stopped,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProcEntry is a process in the list.
type ProcEntry struct {
	ID         string `json:"id"`
	PID        int    `json:"pid"`
	Command    string `json:"command"`
	Task       string `json:"task,omitempty"`
	LogPath    string `json:"log_path"`
	ActivePort int    `json:"active_port,omitempty"`
	Runtime    string `json:"runtime"`
}

// RegisterProcessTools adds process-related MCP tools to the server.
func RegisterProcessTools(server *mcp.Server, pm ProcessTable) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "proc",
		Description: `Manage background processes (dev servers, watchers).
Processes run detached in their own process group with output captured
to a log file.
Examples:
  proc {action: "run", command: "npm run dev", task: "dev server on port 3000"}
  proc {action: "list"}
  proc {action: "stop", process_id: "a1b2c3d4"}
  proc {action: "stop_all"}`,
	}, makeProcHandler(pm))
}

func makeProcHandler(pm ProcessTable) func(context.Context, *mcp.CallToolRequest, ProcInput) (*mcp.CallToolResult, ProcOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ProcInput) (*mcp.CallToolResult, ProcOutput, error) {
		switch input.Action {
		case "run":
			return handleRun(ctx, pm, input)
		case "list":
			return handleList(pm)
		case "stop":
			return handleStop(pm, input)
		case "stop_all":
			n := pm.StopAll()
			return nil, ProcOutput{
				Success: true,
				Stopped: n,
				Message: fmt.Sprintf("Stopped %d background process(es)", n),
			}, nil
		default:
			return errorResult(fmt.Sprintf("unknown action %q. Use: run, list, stop, stop_all", input.Action)), ProcOutput{}, nil
		}
	}
}

func handleRun(ctx context.Context, pm ProcessTable, input ProcInput) (*mcp.CallToolResult, ProcOutput, error) {
	if input.Command == "" {
		return errorResult("command required for run"), ProcOutput{}, nil
	}

	wd := input.WorkingDir
	if wd == "" {
		wd = "."
	}

	proc, err := pm.Start(ctx, input.Command, os.Environ(), wd, input.Task)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to start: %v", err)), ProcOutput{}, nil
	}

	return nil, ProcOutput{
		ProcessID:  proc.ID,
		PID:        proc.PID,
		LogPath:    proc.LogPath,
		ActivePort: proc.ActivePort,
		Success:    true,
		Message:    proc.Summary(),
	}, nil
}

func handleList(pm ProcessTable) (*mcp.CallToolResult, ProcOutput, error) {
	procs := pm.List()

	entries := make([]ProcEntry, len(procs))
	for i, p := range procs {
		entries[i] = ProcEntry{
			ID:         p.ID,
			PID:        p.PID,
			Command:    p.Command,
			Task:       p.Task,
			LogPath:    p.LogPath,
			ActivePort: p.ActivePort,
			Runtime:    formatRuntime(time.Since(p.StartedAt)),
		}
	}

	return nil, ProcOutput{
		Count:     len(procs),
		Processes: entries,
	}, nil
}

func handleStop(pm ProcessTable, input ProcInput) (*mcp.CallToolResult, ProcOutput, error) {
	if input.ProcessID == "" {
		return errorResult("process_id required for stop"), ProcOutput{}, nil
	}

	if err := pm.Stop(input.ProcessID); err != nil {
		return errorResult(fmt.Sprintf("process not found: %s", input.ProcessID)), ProcOutput{}, nil
	}

	return nil, ProcOutput{
		Success: true,
		Message: fmt.Sprintf("Stopped background process %s", input.ProcessID),
	}, nil
}
