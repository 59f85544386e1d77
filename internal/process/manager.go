// Package process manages background server processes promoted out of
// CLI tasks. Each process runs in its own process group with output
// captured to a log file, and the whole table is torn down with
// SIGTERM at shutdown.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

var ErrProcessNotFound = errors.New("process not found")

// launchShell picks the login shell used to spawn background commands.
// A login shell keeps user PATH entries (nvm, pyenv) visible.
func launchShell() string {
	for _, sh := range []string{"/bin/zsh", "/bin/bash"} {
		if _, err := os.Stat(sh); err == nil {
			return sh
		}
	}
	return "/bin/sh"
}

// Managed describes one supervised background process.
type Managed struct {
	ID            string
	PID           int
	PGID          int
	Command       string
	Cwd           string
	LogPath       string
	StartedAt     time.Time
	Task          string
	Ports         []int
	ActivePort    int
	HealthWarning string
}

// Summary is the one-line report returned to the chain after a
// successful launch.
func (m *Managed) Summary() string {
	parts := []string{
		fmt.Sprintf("Started background process %s", m.ID),
		fmt.Sprintf("(pid %d)", m.PID),
		fmt.Sprintf("command: %s", m.Command),
		fmt.Sprintf("log: %s", m.LogPath),
	}
	switch {
	case m.ActivePort > 0:
		parts = append(parts, fmt.Sprintf("verified on http://127.0.0.1:%d", m.ActivePort))
	case len(m.Ports) > 0:
		parts = append(parts, fmt.Sprintf("expected ports: %v", m.Ports))
		parts = append(parts, "health-check did not confirm readiness yet")
	}
	return strings.Join(parts, " | ")
}

// Manager owns the background process table.
type Manager struct {
	log zerolog.Logger

	mu    sync.Mutex
	table map[string]*Managed
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log:   log.With().Str("component", "process").Logger(),
		table: make(map[string]*Managed),
	}
}

// Start launches command detached under a login shell in its own
// process group, waits up to portWaitTimeout for any candidate port
// extracted from the task and command, and registers the process.
func (m *Manager) Start(ctx context.Context, command string, env []string, workingDir, task string) (*Managed, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	logPath := filepath.Join(os.TempDir(), fmt.Sprintf("clovis_cli_bg_%s.log", id))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open process log: %w", err)
	}

	cmd := exec.Command(launchShell(), "-lc", command)
	cmd.Dir = workingDir
	cmd.Env = env
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setDetached(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("start background process: %w", err)
	}
	logFile.Close()

	pid := cmd.Process.Pid
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		pgid = pid
	}

	// Reap the child when it exits so it never lingers as a zombie.
	go func() { _ = cmd.Wait() }()

	proc := &Managed{
		ID:        id,
		PID:       pid,
		PGID:      pgid,
		Command:   command,
		Cwd:       workingDir,
		LogPath:   logPath,
		StartedAt: time.Now(),
		Task:      task,
	}

	if ports := ExtractPortCandidates(task + "\n" + command); len(ports) > 0 {
		proc.Ports = ports
		if opened, ok := WaitForAnyPort(ctx, ports, portWaitTimeout); ok {
			proc.ActivePort = opened
		} else {
			proc.HealthWarning = fmt.Sprintf(
				"Started process %d, but no expected port became reachable: %v", pid, ports)
		}
	}

	m.mu.Lock()
	m.table[id] = proc
	m.mu.Unlock()

	m.log.Info().
		Str("id", id).Int("pid", pid).
		Str("command", command).Str("log", logPath).
		Int("active_port", proc.ActivePort).
		Msg("background process started")
	return proc, nil
}

// Stop sends SIGTERM to the process group and removes the entry.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	proc, ok := m.table[id]
	if ok {
		delete(m.table, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}

	m.terminate(proc)
	m.log.Info().Str("id", id).Int("pid", proc.PID).Msg("background process stopped")
	return nil
}

// StopAll terminates every managed process and returns how many were
// stopped.
func (m *Manager) StopAll() int {
	m.mu.Lock()
	procs := make([]*Managed, 0, len(m.table))
	for _, p := range m.table {
		procs = append(procs, p)
	}
	m.table = make(map[string]*Managed)
	m.mu.Unlock()

	for _, p := range procs {
		m.terminate(p)
	}
	return len(procs)
}

// List returns a snapshot of the table, ordered by start time.
func (m *Manager) List() []Managed {
	m.mu.Lock()
	out := make([]Managed, 0, len(m.table))
	for _, p := range m.table {
		out = append(out, *p)
	}
	m.mu.Unlock()

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].StartedAt.Before(out[j-1].StartedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Shutdown is the at-exit hook: SIGTERM to every process group.
func (m *Manager) Shutdown() {
	n := m.StopAll()
	if n > 0 {
		m.log.Info().Int("count", n).Msg("terminated background processes on shutdown")
	}
}

func (m *Manager) terminate(p *Managed) {
	var err error
	if p.PGID > 0 {
		err = unix.Kill(-p.PGID, unix.SIGTERM)
	} else if p.PID > 0 {
		err = unix.Kill(p.PID, unix.SIGTERM)
	}
	if err != nil && !errors.Is(err, unix.ESRCH) {
		m.log.Warn().Err(err).Int("pid", p.PID).Msg("terminate failed")
	}
}
