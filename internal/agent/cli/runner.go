package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/standardbeagle/clovis/internal/agent"
)

// Config controls how the bundled coding-agent CLI is invoked.
type Config struct {
	// CLIPath is the directory holding the built CLI bundle.
	CLIPath string
	// NodeCommand launches the bundle. Defaults to "node".
	NodeCommand string
	// ApprovalMode is the CLI tool-approval mode. Defaults to "yolo".
	ApprovalMode string
	// OutputFormat selects the CLI output protocol. Defaults to
	// "stream-json".
	OutputFormat string
	// Model optionally overrides the CLI's default model.
	Model string
	// UsePTY runs the CLI under a pseudo-terminal. Some CLI builds
	// buffer or suppress streaming output without one.
	UsePTY bool
	// Timeout bounds one CLI run. Defaults to 5 minutes.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.NodeCommand == "" {
		c.NodeCommand = "node"
	}
	if c.ApprovalMode == "" {
		c.ApprovalMode = "yolo"
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "stream-json"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
}

func (c Config) bin() string {
	return filepath.Join(c.CLIPath, "bundle", "gemini.js")
}

// runner owns the CLI invocation details: binary location, trusted
// folder config, writable CLI home, and workspace include dirs.
type runner struct {
	cfg           Config
	workspaceDirs []string
	cliHome       string
	trustedPath   string
}

func newRunner(cfg Config) (*runner, error) {
	cfg.applyDefaults()
	if _, err := os.Stat(cfg.bin()); err != nil {
		return nil, fmt.Errorf("CLI not built, run 'npm install && npm run build' in %s: %w", cfg.CLIPath, err)
	}

	r := &runner{cfg: cfg, workspaceDirs: computeWorkspaceDirs()}
	var err error
	if r.cliHome, err = ensureCLIHome(cfg.CLIPath); err != nil {
		return nil, err
	}
	if r.trustedPath, err = writeTrustedFolders(cfg.CLIPath); err != nil {
		return nil, err
	}
	return r, nil
}

// computeWorkspaceDirs includes common directories so workspace-scoped
// tools can operate beyond the CLI's own folder.
func computeWorkspaceDirs() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home, filepath.Join(home, "Desktop"))
	}
	paths = append(paths, os.TempDir())

	var deduped []string
	seen := make(map[string]struct{})
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		seen[p] = struct{}{}
		deduped = append(deduped, p)
	}
	return deduped
}

func ensureCLIHome(cliPath string) (string, error) {
	home := filepath.Join(cliPath, ".clovis_gemini_home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", fmt.Errorf("create CLI home: %w", err)
	}
	return home, nil
}

// writeTrustedFolders marks the working directories as trusted so the
// CLI does not downgrade its approval mode in non-interactive runs.
func writeTrustedFolders(cliPath string) (string, error) {
	abs, err := filepath.Abs(cliPath)
	if err != nil {
		abs = cliPath
	}
	entries := map[string]string{
		abs: "TRUST_FOLDER",
		filepath.Dir(filepath.Dir(filepath.Dir(abs))): "TRUST_FOLDER",
	}
	if cwd, err := os.Getwd(); err == nil {
		entries[cwd] = "TRUST_FOLDER"
	}
	if home, err := os.UserHomeDir(); err == nil {
		entries[home] = "TRUST_FOLDER"
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(os.TempDir(), "clovis_gemini_trusted_folders.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write trusted folders: %w", err)
	}
	return path, nil
}

// buildEnv assembles the CLI environment. The API key must already be
// present in the process environment.
func (r *runner) buildEnv() ([]string, error) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return nil, errors.New("GEMINI_API_KEY not found in environment")
	}
	env := os.Environ()
	env = append(env,
		"CLOVIS_CLI_PERMISSIVE_POLICY=1",
		"GEMINI_CLI_TRUSTED_FOLDERS_PATH="+r.trustedPath,
		"GEMINI_CLI_HOME="+r.cliHome,
		"GEMINI_SANDBOX=false",
	)
	return env, nil
}

func (r *runner) buildArgs(task string) []string {
	args := []string{
		r.cfg.bin(),
		"--prompt", task,
		"--output-format", r.cfg.OutputFormat,
		"--approval-mode", r.cfg.ApprovalMode,
	}
	for _, dir := range r.workspaceDirs {
		args = append(args, "--include-directories", dir)
	}
	if r.cfg.Model != "" {
		args = append(args, "--model", r.cfg.Model)
	}
	return args
}

// run executes one CLI turn, streaming status lines as events arrive,
// and returns the parsed response. A timeout marks the response failed
// with a timeout error appended.
func (r *runner) run(ctx context.Context, task string, timeout time.Duration, status agent.StatusFunc) (Response, error) {
	env, err := r.buildEnv()
	if err != nil {
		return Response{}, err
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.cfg.NodeCommand, r.buildArgs(task)...)
	cmd.Env = env
	if cwd, err := os.Getwd(); err == nil {
		cmd.Dir = cwd
	}

	var stdout, stderr string
	if r.cfg.UsePTY {
		stdout, err = r.runPTY(cmd, status)
	} else {
		stdout, stderr, err = r.runPipe(cmd, status)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else if execCtx.Err() == nil {
			return Response{}, err
		} else {
			exitCode = -1
		}
	}

	resp := parseStreamJSON(stdout, stderr, exitCode)
	if execCtx.Err() == context.DeadlineExceeded {
		resp.Success = false
		resp.Error = cleanJoin(resp.Error, fmt.Sprintf("CLI task timed out after %d seconds", int(timeout.Seconds())))
	}
	return resp, nil
}

func (r *runner) runPipe(cmd *exec.Cmd, status agent.StatusFunc) (string, string, error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", err
	}
	if err := cmd.Start(); err != nil {
		return "", "", err
	}

	var wg sync.WaitGroup
	var outBuf, errBuf strings.Builder
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdoutPipe, &outBuf, status)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(&errBuf, stderrPipe)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	return outBuf.String(), errBuf.String(), waitErr
}

func (r *runner) runPTY(cmd *exec.Cmd, status agent.StatusFunc) (string, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", fmt.Errorf("start PTY: %w", err)
	}
	defer ptmx.Close()

	var outBuf strings.Builder
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanLines(ptmx, &outBuf, status)
	}()

	waitErr := cmd.Wait()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
	}
	return outBuf.String(), waitErr
}

// scanLines accumulates CLI output line by line, emitting a status
// update for every recognized stream event.
func scanLines(src io.Reader, buf *strings.Builder, status agent.StatusFunc) {
	toolByID := make(map[string]string)
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if status == nil {
			continue
		}
		var event map[string]any
		if json.Unmarshal([]byte(line), &event) != nil {
			continue
		}
		agent.Notify(status, statusFromEvent(event, toolByID))
	}
}
