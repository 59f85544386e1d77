package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	navigateTimeout   = 30 * time.Second
	resultLoadTimeout = 15 * time.Second
	launchProbeWindow = 8 * time.Second
)

// Result-link selectors on the search fallback page, most specific
// first.
var searchResultSelectors = []string{
	"a[data-testid='result-title-a']",
	"a.result__a",
}

// Browser executables probed after PATH lookups fail.
var knownExecutables = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
	"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

var pathChannels = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "msedge"}

type target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// driver owns one debug-mode browser process and the page connection
// the direct path acts on.
type driver struct {
	log      zerolog.Logger
	cmd      *exec.Cmd
	port     int
	dataDir  string
	headless bool
	page     *cdpClient
}

// launchDriver walks the launch ladder: the configured executable
// first, then PATH channels, then well-known install locations, each
// headed before headless. The first six launch errors are reported
// when everything fails.
func launchDriver(ctx context.Context, explicitPath string, log zerolog.Logger) (*driver, error) {
	var candidates []string
	if explicitPath != "" {
		candidates = append(candidates, explicitPath)
	}
	for _, name := range pathChannels {
		if resolved, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, resolved)
		}
	}
	for _, path := range knownExecutables {
		if _, err := os.Stat(path); err == nil {
			candidates = append(candidates, path)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no browser executable found for the direct driver")
	}

	var launchErrors []string
	for _, executable := range candidates {
		for _, headless := range []bool{false, true} {
			d, err := startBrowser(ctx, executable, headless, log)
			if err == nil {
				log.Info().Str("executable", executable).Bool("headless", headless).
					Int("port", d.port).Msg("direct-driver browser started")
				return d, nil
			}
			launchErrors = append(launchErrors, fmt.Sprintf("executable %s headless=%v: %v", executable, headless, err))
		}
	}
	if len(launchErrors) > 6 {
		launchErrors = launchErrors[:6]
	}
	return nil, fmt.Errorf("could not launch a browser for the direct driver, launch errors: %s",
		strings.Join(launchErrors, " | "))
}

func startBrowser(ctx context.Context, executable string, headless bool, log zerolog.Logger) (*driver, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	dataDir, err := os.MkdirTemp("", "clovis-browser-")
	if err != nil {
		return nil, err
	}

	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", port),
		"--user-data-dir=" + dataDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-crashpad",
		"--disable-crash-reporter",
	}
	if headless {
		args = append(args, "--headless=new")
	}
	args = append(args, "about:blank")

	cmd := exec.Command(executable, args...)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(dataDir)
		return nil, err
	}
	go func() { _ = cmd.Wait() }()

	d := &driver{log: log, cmd: cmd, port: port, dataDir: dataDir, headless: headless}
	if err := d.probeReady(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port, nil
}

func (d *driver) httpBase() string {
	return fmt.Sprintf("http://127.0.0.1:%d", d.port)
}

func (d *driver) probeReady(ctx context.Context) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(launchProbeWindow)
	for {
		resp, err := client.Get(d.httpBase() + "/json/version")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("debug endpoint never became ready on port %d", d.port)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (d *driver) listPages(ctx context.Context) ([]target, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.httpBase()+"/json/list", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var all []target
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, err
	}
	pages := all[:0]
	for _, t := range all {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// newPage opens a fresh tab and connects to it.
func (d *driver) newPage(ctx context.Context) (*cdpClient, error) {
	url := d.httpBase() + "/json/new?about:blank"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var t target
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("create tab: %w", err)
	}
	return d.connect(ctx, t)
}

func (d *driver) connect(ctx context.Context, t target) (*cdpClient, error) {
	if t.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("target %s has no debugger URL", t.ID)
	}
	page, err := dialPage(ctx, t.WebSocketDebuggerURL, d.log)
	if err != nil {
		return nil, err
	}
	if d.page != nil && d.page != page {
		d.page.Close()
	}
	d.page = page
	return page, nil
}

// activePage returns the current page connection, attaching to the
// first open tab (or a new one) when none is held.
func (d *driver) activePage(ctx context.Context) (*cdpClient, error) {
	if d.page != nil {
		return d.page, nil
	}
	pages, err := d.listPages(ctx)
	if err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		return d.connect(ctx, pages[0])
	}
	return d.newPage(ctx)
}

// selectRelevantPage finds an open tab matching the task's target
// keywords, or nil when nothing matches.
func (d *driver) selectRelevantPage(ctx context.Context, task string) (*cdpClient, error) {
	pages, err := d.listPages(ctx)
	if err != nil || len(pages) == 0 {
		return nil, err
	}
	lower := strings.ToLower(task)

	for _, marker := range stickySiteMarkers {
		if !strings.Contains(lower, marker) {
			continue
		}
		for _, t := range pages {
			title := strings.ToLower(t.Title)
			url := strings.ToLower(t.URL)
			if strings.Contains(title, marker) || strings.Contains(url, marker) {
				return d.connect(ctx, t)
			}
			if strings.Contains(url, "localhost") || strings.Contains(url, "127.0.0.1") {
				return d.connect(ctx, t)
			}
		}
	}

	if strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1") {
		for _, t := range pages {
			url := strings.ToLower(t.URL)
			if strings.Contains(url, "localhost") || strings.Contains(url, "127.0.0.1") {
				return d.connect(ctx, t)
			}
		}
	}
	return nil, nil
}

// openFirstSearchResult clicks the top result link on the search page.
func (d *driver) openFirstSearchResult(ctx context.Context, page *cdpClient) {
	for _, selector := range searchResultSelectors {
		loaded := page.expectEvent("Page.domContentEventFired")
		clicked, err := page.clickSelector(ctx, selector)
		if err != nil || !clicked {
			continue
		}
		if err := page.awaitEvent(ctx, loaded, resultLoadTimeout); err != nil {
			d.log.Debug().Err(err).Msg("search result load wait")
		}
		return
	}
}

// Close tears down the page connection, the browser process, and its
// profile directory.
func (d *driver) Close() {
	if d.page != nil {
		d.page.Close()
		d.page = nil
	}
	if d.cmd != nil && d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	if d.dataDir != "" {
		os.RemoveAll(d.dataDir)
	}
}
