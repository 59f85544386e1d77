package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// richRunner drives the rich automation backend: an external runner
// capable of on-page interaction, invoked per task against a shared
// profile directory so the browser session persists across tasks.
type richRunner struct {
	command    string
	args       []string
	model      string
	profileDir string
	timeout    time.Duration
	log        zerolog.Logger
}

type richResult struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
	Error   string `json:"error"`
}

func newRichRunner(command string, args []string, model string, timeout time.Duration, log zerolog.Logger) (*richRunner, error) {
	profileDir, err := os.MkdirTemp("", "clovis-browser-rich-")
	if err != nil {
		return nil, err
	}
	return &richRunner{
		command:    command,
		args:       args,
		model:      model,
		profileDir: profileDir,
		timeout:    timeout,
		log:        log,
	}, nil
}

// run executes one rich automation turn and returns its summary text.
// Stderr is folded into errors so bootstrap failures are recognizable.
func (r *richRunner) run(ctx context.Context, task string, files []string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append([]string{}, r.args...)
	args = append(args,
		"--task", task,
		"--model", r.model,
		"--profile-dir", r.profileDir,
	)
	for _, file := range files {
		args = append(args, "--file", file)
	}

	cmd := exec.CommandContext(runCtx, r.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail != "" {
			return "", fmt.Errorf("rich automation runner: %w: %s", err, detail)
		}
		return "", fmt.Errorf("rich automation runner: %w", err)
	}

	var result richResult
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		// Plain-text runners still count as long as they exit zero.
		text := strings.TrimSpace(stdout.String())
		if text == "" {
			return "", fmt.Errorf("rich automation runner produced no output")
		}
		return text, nil
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "rich automation task failed"
		}
		return "", fmt.Errorf("%s", msg)
	}
	if strings.TrimSpace(result.Result) == "" {
		return "Browser task completed.", nil
	}
	return result.Result, nil
}

func (r *richRunner) cleanup() {
	if r.profileDir != "" {
		os.RemoveAll(r.profileDir)
	}
}
