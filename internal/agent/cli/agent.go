package cli

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/agent"
	"github.com/standardbeagle/clovis/internal/process"
)

// quickLaunchTimeout keeps server-launch turns snappy so foreground
// dev servers are promoted to background quickly.
const quickLaunchTimeout = 3 * time.Second

const taskInstruction = "You are running inside CLOVIS with tool access enabled. " +
	"Execute the request directly using tools/shell commands instead of giving manual instructions. " +
	"Do not claim you cannot access the system. " +
	"If a command is blocked by policy or fails, report the exact command and exact error. " +
	"For long-running local servers, never run foreground. " +
	"Launch detached with nohup/background so it stays alive after this turn, " +
	"then verify localhost/port reachability before claiming success."

const retryInstruction = "Your previous response incorrectly refused execution. " +
	"You MUST execute the task now using tools (run_shell_command, file tools, etc.). " +
	"Do not provide a 'run this in terminal' suggestion. " +
	"Return what you executed and outcome."

var stopProcessRe = regexp.MustCompile(`(?i)(?:stop|kill)\s+background\s+process\s+([a-zA-Z0-9_-]+)`)

// Agent runs terminal tasks through the coding-agent CLI and keeps
// local dev servers alive through the process manager.
type Agent struct {
	cfg   Config
	run   *runner
	procs *process.Manager
	log   zerolog.Logger
}

// New builds the CLI agent. The process manager is shared so the
// router's stop-all can tear down promoted servers too.
func New(cfg Config, procs *process.Manager, log zerolog.Logger) (*Agent, error) {
	cfg.applyDefaults()
	run, err := newRunner(cfg)
	if err != nil {
		return nil, err
	}
	return &Agent{
		cfg:   cfg,
		run:   run,
		procs: procs,
		log:   log.With().Str("component", "cua_cli").Logger(),
	}, nil
}

func (a *Agent) Name() string { return agent.SourceCLI }

// Execute runs one terminal task end to end: background-process
// management shortcuts, explicit command launches, the CLI turn with
// refusal and timeout retries, server promotion, and localhost claim
// validation.
func (a *Agent) Execute(ctx context.Context, task string, status agent.StatusFunc) (agent.Result, error) {
	if res, handled := a.handleManagementTask(task); handled {
		return res, nil
	}

	if explicit := extractExplicitCommand(task); explicit != "" && wantsBackground(task) {
		return a.startBackground(ctx, explicit, workingDir(), task, "")
	}

	runTimeout := a.cfg.Timeout
	shortApplied := false
	if isQuickLaunch(task) && quickLaunchTimeout < runTimeout {
		runTimeout = quickLaunchTimeout
		shortApplied = true
	}

	prepared := taskInstruction + "\n\nTask:\n" + task
	resp, err := a.run.run(ctx, prepared, runTimeout, status)
	if err != nil {
		return agent.Result{}, err
	}

	if shortApplied && isTimeoutText(resp.Error) && len(resp.ToolCalls) == 0 {
		// Short timeout fired before any tool ran. Setup-heavy tasks
		// get the full window.
		resp, err = a.run.run(ctx, prepared, a.cfg.Timeout, status)
		if err != nil {
			return agent.Result{}, err
		}
	}

	if resp.Success && len(resp.ToolCalls) == 0 && looksLikeRefusal(resp.Output) {
		retry := retryInstruction + "\n\nTask:\n" + task
		resp, err = a.run.run(ctx, retry, runTimeout, status)
		if err != nil {
			return agent.Result{}, err
		}
	}

	// A server started in the CLI's foreground dies with the CLI turn.
	// Relaunch it under the process manager before reporting.
	if len(resp.ToolCalls) > 0 {
		if res, promoted, err := a.maybePromote(ctx, task, resp); err != nil {
			return agent.Result{}, err
		} else if promoted {
			return res, nil
		}
	}

	if claimErr := a.validateLocalServerClaim(ctx, resp.Output); claimErr != "" {
		if len(resp.ToolCalls) > 0 {
			if res, promoted, err := a.maybePromote(ctx, task, resp); err != nil {
				return agent.Result{}, err
			} else if promoted {
				return res, nil
			}
		}
		return agent.Result{Success: false, Message: claimErr, Source: agent.SourceCLI}, nil
	}

	return a.toResult(resp), nil
}

func (a *Agent) toResult(resp Response) agent.Result {
	if resp.Success {
		msg := strings.TrimSpace(resp.Output)
		if msg == "" {
			msg = "Task completed."
		}
		return agent.Result{Success: true, Message: msg, Source: agent.SourceCLI}
	}
	msg := strings.TrimSpace(resp.Error)
	if msg == "" {
		msg = strings.TrimSpace(resp.Output)
	}
	if msg == "" {
		msg = "CLI task failed."
	}
	return agent.Result{Success: false, Message: msg, Source: agent.SourceCLI}
}

// startBackground launches a command under the process manager and
// reports its summary. prefix optionally carries the CLI's own output.
func (a *Agent) startBackground(ctx context.Context, command, cwd, task, prefix string) (agent.Result, error) {
	env, err := a.run.buildEnv()
	if err != nil {
		return agent.Result{}, err
	}
	proc, err := a.procs.Start(ctx, command, env, cwd, task)
	if err != nil {
		return agent.Result{}, err
	}
	return agent.Result{
		Success: true,
		Message: cleanJoin(prefix, proc.Summary()),
		Source:  agent.SourceCLI,
	}, nil
}

// maybePromote relaunches a server-like command found in the CLI's
// shell history as a managed background process. It returns promoted
// false when the chain should continue with the original response.
func (a *Agent) maybePromote(ctx context.Context, task string, resp Response) (agent.Result, bool, error) {
	launch, ok := inferServerLaunch(resp.ToolCalls, workingDir())
	if !ok {
		return agent.Result{}, false, nil
	}

	combined := strings.Join([]string{task, resp.Output, launch.Command}, "\n")
	if ports := process.ExtractPortCandidates(combined); len(ports) > 0 {
		if opened, up := process.WaitForAnyPort(ctx, ports, process.PreCheckTimeout); up {
			if isTimeoutText(resp.Error) {
				// The CLI timed out but its server survived. Count the
				// task as done.
				msg := cleanJoin(resp.Output, fmt.Sprintf("Local server is reachable on http://127.0.0.1:%d.", opened))
				return agent.Result{Success: true, Message: msg, Source: agent.SourceCLI}, true, nil
			}
			return agent.Result{}, false, nil
		}
	}

	a.log.Info().Str("command", launch.Command).Str("cwd", launch.Cwd).Msg("promoting server launch to background")
	res, err := a.startBackground(ctx, launch.Command, launch.Cwd, task, resp.Output)
	if err != nil {
		return agent.Result{}, false, err
	}
	return res, true, nil
}

// validateLocalServerClaim checks "server is running on localhost"
// assertions against real ports. It returns a failure message when the
// claim does not hold.
func (a *Agent) validateLocalServerClaim(ctx context.Context, output string) string {
	if !claimsLocalServer(output) {
		return ""
	}
	ports := process.ExtractPortCandidates(output)
	if len(ports) == 0 {
		return ""
	}
	if _, up := process.WaitForAnyPort(ctx, ports, process.ClaimWaitTimeout); up {
		return ""
	}
	return fmt.Sprintf(
		"Task reported a local server as running, but none of the claimed ports are reachable: %v. "+
			"The process likely exited or never started successfully.", ports)
}

// handleManagementTask services list/stop requests for managed
// background processes without a CLI turn.
func (a *Agent) handleManagementTask(task string) (agent.Result, bool) {
	lower := strings.ToLower(strings.TrimSpace(task))

	if strings.Contains(lower, "list background process") || strings.Contains(lower, "show background process") {
		rows := a.procs.List()
		if len(rows) == 0 {
			return agent.Result{Success: true, Message: "No managed background processes.", Source: agent.SourceCLI}, true
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			port := "-"
			if row.ActivePort > 0 {
				port = fmt.Sprintf("%d", row.ActivePort)
			}
			uptime := int(time.Since(row.StartedAt).Seconds())
			if uptime < 0 {
				uptime = 0
			}
			lines = append(lines, fmt.Sprintf("%s pid=%d port=%s uptime=%ds cmd=%s",
				row.ID, row.PID, port, uptime, row.Command))
		}
		return agent.Result{
			Success: true,
			Message: "Managed background processes:\n" + strings.Join(lines, "\n"),
			Source:  agent.SourceCLI,
		}, true
	}

	if strings.Contains(lower, "stop all background process") || strings.Contains(lower, "kill all background process") {
		count := a.procs.StopAll()
		return agent.Result{
			Success: true,
			Message: fmt.Sprintf("Stopped %d background process(es).", count),
			Source:  agent.SourceCLI,
		}, true
	}

	if m := stopProcessRe.FindStringSubmatch(task); m != nil {
		id := strings.TrimSpace(m[1])
		if err := a.procs.Stop(id); err != nil {
			return agent.Result{Success: false, Message: "No background process found: " + id, Source: agent.SourceCLI}, true
		}
		return agent.Result{Success: true, Message: "Stopped background process " + id + ".", Source: agent.SourceCLI}, true
	}

	return agent.Result{}, false
}

func isTimeoutText(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout")
}

func workingDir() string {
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}
