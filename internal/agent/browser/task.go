// Package browser automates web tasks. A rich automation backend
// handles on-page interaction; a direct driver speaking the Chrome
// DevTools Protocol covers navigation when the rich backend cannot
// bootstrap. One backend stays active at a time.
package browser

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	httpURLRe    = regexp.MustCompile(`https?://[^\s]+`)
	bareDomainRe = regexp.MustCompile(`\b([a-zA-Z0-9-]+\.(?:com|org|edu|gov|net|io|ai|co))\b`)
	localhostRe  = regexp.MustCompile(`(?i)\b(localhost|127\.0\.0\.1)(?:\s*:\s*|\s+)?(\d{2,5})?([/\w\-.?=&%+]*)`)
)

// extractDirectURL finds a navigable URL in the task text: a full
// http(s) URL, a bare known-TLD domain, or a localhost reference with
// optional port and path.
func extractDirectURL(task string) string {
	task = strings.TrimSpace(task)
	if task == "" {
		return ""
	}

	if m := httpURLRe.FindString(task); m != "" {
		return strings.TrimRight(m, ".,);")
	}
	if m := bareDomainRe.FindStringSubmatch(task); m != nil {
		return "https://" + m[1]
	}
	if m := localhostRe.FindStringSubmatch(task); m != nil {
		url := "http://" + m[1]
		if m[2] != "" {
			url += ":" + m[2]
		}
		if path := strings.TrimRight(strings.TrimSpace(m[3]), ".,);"); path != "" {
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			url += path
		}
		return url
	}
	return ""
}

var (
	quotedTokenRe  = regexp.MustCompile(`['"]([^'"]+)['"]`)
	unquotedPathRe = regexp.MustCompile(`(?:^|[^\w])(~/[^\s,;]+|/[^\s,;]+)`)
)

// extractFilePaths scans the task for likely local file paths for the
// upload whitelist: quoted tokens plus unquoted absolute or
// home-relative paths, expanded and deduplicated.
func extractFilePaths(task string) []string {
	if task == "" {
		return nil
	}

	var candidates []string
	for _, m := range quotedTokenRe.FindAllStringSubmatch(task, -1) {
		if q := strings.TrimSpace(m[1]); q != "" {
			candidates = append(candidates, q)
		}
	}
	for _, m := range unquotedPathRe.FindAllStringSubmatch(task, -1) {
		if p := strings.TrimSpace(m[1]); p != "" {
			candidates = append(candidates, p)
		}
	}

	var resolved []string
	seen := make(map[string]struct{})
	add := func(value string) {
		p := strings.Trim(strings.TrimSpace(value), ".,;:()[]{}'\"`")
		if p == "" {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		resolved = append(resolved, p)
	}

	for _, candidate := range candidates {
		if !strings.ContainsAny(candidate, `/\~`) {
			continue
		}
		expanded := candidate
		if expanded == "~" || strings.HasPrefix(expanded, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
			}
		}
		expanded = os.ExpandEnv(expanded)
		absolute, err := filepath.Abs(expanded)
		if err != nil {
			absolute = expanded
		}

		add(expanded)
		add(absolute)
		add(candidate)
		if base := filepath.Base(expanded); base != "" && base != "." && base != "/" {
			add(base)
		}
	}
	return resolved
}

var newTabMarkers = []string{
	"open a new browser tab", "open new browser tab",
	"open a new tab", "open new tab", "new tab",
}

func isNewTabTask(task string) bool {
	lower := strings.ToLower(task)
	for _, marker := range newTabMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var currentTabMarkers = []string{
	"currently open", "current tab", "already open",
	"on the page", "on this page", "that is open",
}

func isCurrentTabTask(task string) bool {
	lower := strings.ToLower(task)
	for _, marker := range currentTabMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Site names that should always stick to an already-open tab instead
// of drifting into web search.
var stickySiteMarkers = []string{"scopegrade"}

func shouldReuseExistingPage(task string) bool {
	if isCurrentTabTask(task) {
		return true
	}
	lower := strings.ToLower(task)
	for _, marker := range stickySiteMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func wantsLocalhost(task string) bool {
	lower := strings.ToLower(task)
	if strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1") {
		return true
	}
	for _, marker := range stickySiteMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// mustAvoidSearch reports whether search fallback would drift away
// from the page the task is really about.
func mustAvoidSearch(task string) bool {
	return shouldReuseExistingPage(task) || wantsLocalhost(task)
}

const localSiteSteering = "HARD CONSTRAINT (LOCAL-SITE MODE):\n" +
	"- You MUST use the currently open local-server page/tab in this browser session.\n" +
	"- Do NOT perform web search.\n" +
	"- Do NOT type the full task sentence into the browser address/search bar.\n" +
	"- Do NOT navigate to unrelated public websites.\n" +
	"- If a navigation is required, only use local-server URLs (e.g. http://127.0.0.1:PORT).\n" +
	"- Prioritize interacting with the existing on-page UI to complete the task.\n\n" +
	"Task:\n"

const existingPageSteering = "IMPORTANT EXECUTION CONSTRAINTS:\n" +
	"- The target page is already open in the current browser session.\n" +
	"- Stay on the currently open relevant tab/page.\n" +
	"- Do NOT perform web search and do NOT navigate to unrelated sites.\n" +
	"- Do NOT type the full task sentence into the browser address/search bar.\n" +
	"- Only navigate if the task explicitly gives a direct URL.\n" +
	"- Prioritize interacting with existing on-page UI to complete the task.\n\n" +
	"Task:\n"

// steerTask prepends strict stay-on-page instructions when the task
// refers to an already-open page or a local server. Fresh sessions are
// never steered.
func steerTask(task string) string {
	local := wantsLocalhost(task)
	if !shouldReuseExistingPage(task) && !local {
		return task
	}
	if local {
		return localSiteSteering + task
	}
	return existingPageSteering + task
}

var bootstrapErrorMarkers = []string{
	"failed to import",
	"no module named",
	"cannot import name",
	"unsupported operand type(s) for |",
}

// isBootstrapError reports whether the rich backend failed to come up
// at all, in which case the direct driver takes over.
func isBootstrapError(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range bootstrapErrorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var navVerbRe = regexp.MustCompile(`(?i)\b(go to|open|visit)\b`)

// taskToSearchQuery builds the search-fallback query. Navigation verbs
// keep the task as-is; otherwise "official website" is appended to
// bias toward the canonical site.
func taskToSearchQuery(task string) string {
	cleaned := strings.Join(strings.Fields(task), " ")
	if cleaned == "" {
		return "official website"
	}
	if navVerbRe.MatchString(cleaned) {
		return cleaned
	}
	return cleaned + " official website"
}

// buildSummary composes the direct-driver completion message.
func buildSummary(finalURL, pageTitle string, usedSearch, usedHeadless bool, actionMode string) string {
	var modeText string
	switch actionMode {
	case "new_tab":
		modeText = "new-tab action"
	case "current_tab_context":
		modeText = "current-tab context fallback"
	default:
		if usedSearch {
			modeText = "search fallback"
		} else {
			modeText = "direct navigation fallback"
		}
	}
	if usedHeadless {
		modeText += " (headless)"
	}
	if title := strings.TrimSpace(pageTitle); title != "" {
		return "Browser task completed via " + modeText + ": " + title + " (" + finalURL + ")"
	}
	return "Browser task completed via " + modeText + ": " + finalURL
}
