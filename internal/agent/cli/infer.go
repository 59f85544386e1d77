package cli

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var shellToolNames = map[string]struct{}{
	"run_shell_command": {},
	"shell":             {},
	"bash":              {},
}

var (
	cdChainRe = regexp.MustCompile(`(?is)^\s*cd\s+([^;&|]+?)\s*&&\s*(.+)$`)
	cdOnlyRe  = regexp.MustCompile(`(?is)^\s*cd\s+(.+?)\s*$`)
)

// launchCandidate is a server command recovered from the CLI session's
// shell history, with the working directory it ran in.
type launchCandidate struct {
	Command string
	Cwd     string
}

// inferServerLaunch replays the session's shell commands to find the
// dev-server launch worth promoting to a background process. It tracks
// cd chains so the relaunch happens in the right directory.
func inferServerLaunch(calls []ToolCall, startCwd string) (launchCandidate, bool) {
	cwd := startCwd
	var found launchCandidate
	var ok bool

	for _, call := range calls {
		if call.Status == "error" {
			continue
		}
		if _, shell := shellToolNames[strings.ToLower(call.Name)]; !shell {
			continue
		}
		command := shellCommandOf(call)
		if command == "" {
			continue
		}

		if m := cdChainRe.FindStringSubmatch(command); m != nil {
			cwd = resolvePath(m[1], cwd)
			if rest := strings.TrimSpace(m[2]); isServerLikeCommand(rest) {
				found = launchCandidate{Command: serverSegment(rest), Cwd: cwd}
				ok = true
			}
			continue
		}
		if m := cdOnlyRe.FindStringSubmatch(command); m != nil {
			cwd = resolvePath(m[1], cwd)
			continue
		}
		if isServerLikeCommand(command) {
			found = launchCandidate{Command: serverSegment(command), Cwd: cwd}
			ok = true
		}
	}
	return found, ok
}

func shellCommandOf(call ToolCall) string {
	for _, key := range []string{"command", "cmd", "script"} {
		if v, found := call.Parameters[key]; found {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// serverSegment keeps only the server-starting part of a && chain so
// setup steps (installs, builds) are not re-run on promotion.
func serverSegment(command string) string {
	segments := strings.Split(command, "&&")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := strings.TrimSpace(segments[i])
		if isServerLikeCommand(seg) {
			return seg
		}
	}
	return strings.TrimSpace(command)
}

// resolvePath expands ~ and environment variables, then resolves the
// result against base when it is relative.
func resolvePath(path, base string) string {
	p := strings.TrimSpace(path)
	p = strings.Trim(p, `"'`)
	if p == "" {
		return base
	}
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return base
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	p = os.ExpandEnv(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return filepath.Clean(p)
}
