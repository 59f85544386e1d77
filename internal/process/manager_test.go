//go:build !windows

package process

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	t.Cleanup(m.Shutdown)
	return m
}

func TestStartRegistersProcess(t *testing.T) {
	m := newTestManager(t)

	proc, err := m.Start(context.Background(), "sleep 30", os.Environ(), t.TempDir(), "keep a sleeper alive")
	if err != nil {
		t.Fatal(err)
	}
	if proc.PID <= 0 {
		t.Errorf("pid = %d", proc.PID)
	}
	if len(proc.ID) != 8 {
		t.Errorf("id = %q, want 8 hex chars", proc.ID)
	}
	if !strings.Contains(proc.LogPath, "clovis_cli_bg_"+proc.ID) {
		t.Errorf("log path = %q", proc.LogPath)
	}
	if proc.ActivePort != 0 || proc.HealthWarning != "" {
		t.Errorf("portless task must skip health checks, got port=%d warning=%q", proc.ActivePort, proc.HealthWarning)
	}

	list := m.List()
	if len(list) != 1 || list[0].ID != proc.ID {
		t.Fatalf("list = %+v", list)
	}
}

func TestStopTerminatesGroup(t *testing.T) {
	m := newTestManager(t)

	proc, err := m.Start(context.Background(), "sleep 30", os.Environ(), t.TempDir(), "sleeper")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(proc.ID); err != nil {
		t.Fatal(err)
	}
	if got := m.List(); len(got) != 0 {
		t.Errorf("table not emptied: %+v", got)
	}

	err = m.Stop(proc.ID)
	if !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("second stop error = %v, want ErrProcessNotFound", err)
	}
}

func TestStopAllReturnsCount(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 2; i++ {
		if _, err := m.Start(context.Background(), "sleep 30", os.Environ(), t.TempDir(), "sleeper"); err != nil {
			t.Fatal(err)
		}
	}
	if n := m.StopAll(); n != 2 {
		t.Errorf("StopAll = %d, want 2", n)
	}
	if n := m.StopAll(); n != 0 {
		t.Errorf("second StopAll = %d, want 0", n)
	}
}

func TestListOrderedByStart(t *testing.T) {
	m := newTestManager(t)

	first, err := m.Start(context.Background(), "sleep 30", os.Environ(), t.TempDir(), "a")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	second, err := m.Start(context.Background(), "sleep 30", os.Environ(), t.TempDir(), "b")
	if err != nil {
		t.Fatal(err)
	}

	list := m.List()
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Errorf("list order = %+v", list)
	}
}

func TestStartCapturesOutputToLog(t *testing.T) {
	m := newTestManager(t)

	proc, err := m.Start(context.Background(), "echo hello-from-bg", os.Environ(), t.TempDir(), "print a line")
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		data, _ := os.ReadFile(proc.LogPath)
		if strings.Contains(string(data), "hello-from-bg") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("log %s never contained the output, got %q", proc.LogPath, data)
		}
		time.Sleep(25 * time.Millisecond)
	}
}
