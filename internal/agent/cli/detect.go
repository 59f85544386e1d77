// Package cli executes terminal tasks through a headless coding-agent
// CLI, promotes long-running dev servers into managed background
// processes, and validates localhost claims before reporting success.
package cli

import (
	"regexp"
	"strings"
)

// Commands that start a long-running dev server. Matched against
// lowercased input.
var serverLikePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bnpm\s+run\s+(dev|start|serve)\b`),
	regexp.MustCompile(`\bnpm\s+(start|serve)\b`),
	regexp.MustCompile(`\bpnpm\s+(dev|start|serve)\b`),
	regexp.MustCompile(`\byarn\s+(dev|start|serve)\b`),
	regexp.MustCompile(`\bnext\s+dev\b`),
	regexp.MustCompile(`\bvite\b`),
	regexp.MustCompile(`\bwebpack-dev-server\b`),
	regexp.MustCompile(`\buvicorn\b`),
	regexp.MustCompile(`\bflask\s+run\b`),
	regexp.MustCompile(`\bpython(?:3)?\s+-m\s+http\.server\b`),
	regexp.MustCompile(`\bnode\s+.+\b(server|dev)\b`),
	regexp.MustCompile(`\bgunicorn\b`),
}

var backgroundIntentMarkers = []string{
	"localhost", "port ", "dev server", "web server", "api server",
	"keep running", "background", "until i stop",
}

var serverIntentMarkers = []string{
	"localhost", "127.0.0.1", "local server", "dev server", "web server",
	"api server", "npm start", "npm run dev", "pnpm dev", "yarn dev",
	"uvicorn", "flask run",
}

var setupMarkers = []string{
	"clone", "git ", "install", "dependency", "dependencies", "setup",
	"set up", "bootstrap", "scaffold", "build", "compile", "create",
	"download", "npm ci", "pip install", "pnpm install", "yarn install",
}

// isServerLikeCommand reports whether a shell command (or task text)
// looks like it starts a dev server.
func isServerLikeCommand(text string) bool {
	lower := strings.ToLower(text)
	for _, re := range serverLikePatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// wantsBackground reports whether the task asks for a process that
// should outlive the CLI run.
func wantsBackground(task string) bool {
	lower := strings.ToLower(task)
	for _, marker := range backgroundIntentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return isServerLikeCommand(task)
}

// wantsServer reports whether the task is about getting a local server
// up at all.
func wantsServer(task string) bool {
	lower := strings.ToLower(task)
	for _, marker := range serverIntentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return isServerLikeCommand(task)
}

// isQuickLaunch reports whether the task only needs a server started,
// with no cloning, installing, or code generation first. Quick
// launches get a short CLI window before promotion takes over.
func isQuickLaunch(task string) bool {
	if !wantsServer(task) {
		return false
	}
	lower := strings.ToLower(task)
	for _, marker := range setupMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

var (
	backtickCommandRe = regexp.MustCompile("`([^`]+)`")
	labeledCommandRe  = regexp.MustCompile(`(?im)(?:^|\n)\s*command\s*:\s*(.+)$`)
	verbCommandRe     = regexp.MustCompile(`(?i)^(?:run|start|launch)\s+(.+)$`)
)

var runnerHints = []string{
	"npm ", "pnpm ", "yarn ", "python", "uvicorn", "node ", "flask",
}

// extractExplicitCommand pulls a literal shell command out of the task
// text when the user supplied one.
func extractExplicitCommand(task string) string {
	if m := backtickCommandRe.FindStringSubmatch(task); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := labeledCommandRe.FindStringSubmatch(task); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := verbCommandRe.FindStringSubmatch(strings.TrimSpace(task)); m != nil {
		candidate := strings.TrimSpace(m[1])
		lower := strings.ToLower(candidate)
		for _, hint := range runnerHints {
			if strings.Contains(lower, hint) {
				return candidate
			}
		}
	}
	return ""
}

// Responses where the model declined to act instead of using its
// tools. These trigger one retry with an explicit instruction.
var refusalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bi (?:am|do not have|don't have).{0,30}\b(?:ability|access|permission)\b`),
	regexp.MustCompile(`\bi cannot\b.{0,40}\b(?:run|execute|create|move|delete|modify)\b`),
	regexp.MustCompile(`\bi can (?:however )?provide (?:you )?with (?:the )?commands\b`),
	regexp.MustCompile(`\brun (?:the|this) command in your terminal\b`),
	regexp.MustCompile(`\bi(?:'m| am) unable to execute shell commands\b`),
}

// looksLikeRefusal reports whether the response text declines to
// execute rather than reporting work done.
func looksLikeRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, re := range refusalPatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

var localhostClaimWords = []string{"localhost", "127.0.0.1", "port "}

var runningClaimWords = []string{
	"running", "started", "listening", "serving", "available at",
}

// claimsLocalServer reports whether the response asserts that a local
// server is up. Such claims are verified against real ports before the
// task is allowed to succeed.
func claimsLocalServer(text string) bool {
	lower := strings.ToLower(text)
	hinted := false
	for _, w := range localhostClaimWords {
		if strings.Contains(lower, w) {
			hinted = true
			break
		}
	}
	if !hinted {
		return false
	}
	for _, w := range runningClaimWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
