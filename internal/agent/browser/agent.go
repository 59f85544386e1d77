package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/agent"
)

const (
	backendRich   = "rich"
	backendDirect = "direct"

	defaultRichTimeout = 4 * time.Minute
	postActionSettle   = time.Second
)

// Config controls the browser agent's backends.
type Config struct {
	// ModelName is passed to the rich automation runner.
	ModelName string
	// RichCommand is the rich automation runner executable. Empty
	// disables the rich backend and routes everything through the
	// direct driver.
	RichCommand string
	// RichArgs are prepended to every rich runner invocation.
	RichArgs []string
	// BrowserPath optionally pins the direct-driver executable.
	BrowserPath string
	// RichTimeout bounds one rich automation turn.
	RichTimeout time.Duration
}

// Agent executes web tasks. The first backend that succeeds stays
// active for the process lifetime so all browser actions share one
// session; Stop tears the session down.
type Agent struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	backend string
	rich    *richRunner
	drv     *driver
}

func New(cfg Config, log zerolog.Logger) *Agent {
	if cfg.RichTimeout <= 0 {
		cfg.RichTimeout = defaultRichTimeout
	}
	return &Agent{
		cfg: cfg,
		log: log.With().Str("component", "browser").Logger(),
	}
}

func (a *Agent) Name() string { return agent.SourceBrowser }

// Execute runs one web task. The direct URL is extracted from the
// original wording before any steering text is prepended, so steering
// can never produce false URL matches.
func (a *Agent) Execute(ctx context.Context, task string, status agent.StatusFunc) (agent.Result, error) {
	originalURL := extractDirectURL(task)

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.backend {
	case backendRich:
		// Only steer when a session exists that might already have the
		// target page open.
		return a.runRich(ctx, steerTask(task), status)
	case backendDirect:
		return a.runDirect(ctx, task, "", originalURL, status)
	}

	if a.cfg.RichCommand == "" {
		return a.runDirect(ctx, task, "", originalURL, status)
	}

	res, err := a.runRich(ctx, task, status)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, exec.ErrNotFound) && !isBootstrapError(err) {
		return agent.Result{Success: false, Message: err.Error(), Source: agent.SourceBrowser}, nil
	}

	a.log.Warn().Err(err).Msg("rich automation unavailable, falling back to direct driver")
	fallback, fallbackErr := a.runDirect(ctx, task, err.Error(), originalURL, status)
	if fallbackErr != nil {
		msg := fmt.Sprintf(
			"Browser task failed in both rich automation and the direct driver. bootstrap_error=%v; fallback_error=%v",
			err, fallbackErr)
		return agent.Result{Success: false, Message: msg, Source: agent.SourceBrowser}, nil
	}
	return fallback, nil
}

func (a *Agent) runRich(ctx context.Context, task string, status agent.StatusFunc) (agent.Result, error) {
	if a.rich == nil {
		rich, err := newRichRunner(a.cfg.RichCommand, a.cfg.RichArgs, a.cfg.ModelName, a.cfg.RichTimeout, a.log)
		if err != nil {
			return agent.Result{}, err
		}
		a.rich = rich
	}

	files := extractFilePaths(task)
	if len(files) > 0 {
		a.log.Info().Strs("files", files).Msg("upload whitelist extracted from task")
	}
	agent.Notify(status, "Running browser automation...")

	out, err := a.rich.run(ctx, task, files)
	if err != nil {
		if a.backend == backendRich {
			// An established session keeps the backend even when one
			// task fails.
			return agent.Result{Success: false, Message: err.Error(), Source: agent.SourceBrowser}, nil
		}
		return agent.Result{}, err
	}
	a.backend = backendRich
	return agent.Result{Success: true, Message: out, Source: agent.SourceBrowser}, nil
}

func (a *Agent) runDirect(ctx context.Context, task, bootstrapError, directURL string, status agent.StatusFunc) (agent.Result, error) {
	if a.drv == nil {
		agent.Notify(status, "Starting browser...")
		drv, err := launchDriver(ctx, a.cfg.BrowserPath, a.log)
		if err != nil {
			return agent.Result{}, err
		}
		a.drv = drv
		a.backend = backendDirect
	}
	drv := a.drv

	actionMode := "direct_navigation"
	usedSearch := false

	var page *cdpClient
	var err error
	if isNewTabTask(task) {
		page, err = drv.newPage(ctx)
		actionMode = "new_tab"
	} else {
		page, err = drv.activePage(ctx)
	}
	if err != nil {
		return agent.Result{}, err
	}

	needSearch := false
	switch {
	case actionMode == "new_tab":
	case directURL != "":
		agent.Notify(status, "Navigating to "+directURL)
		if err := page.navigate(ctx, directURL, navigateTimeout); err != nil {
			return agent.Result{}, err
		}
	case mustAvoidSearch(task):
		relevant, err := drv.selectRelevantPage(ctx, task)
		if err != nil {
			return agent.Result{}, err
		}
		if relevant != nil {
			page = relevant
			actionMode = "current_tab_context"
		} else {
			needSearch = true
		}
	default:
		needSearch = true
	}

	if needSearch {
		usedSearch = true
		actionMode = "search_fallback"
		query := taskToSearchQuery(task)
		agent.Notify(status, "Searching for "+query)
		searchURL := "https://duckduckgo.com/?q=" + url.QueryEscape(query)
		if err := page.navigate(ctx, searchURL, navigateTimeout); err != nil {
			return agent.Result{}, err
		}
		drv.openFirstSearchResult(ctx, page)
	}

	time.Sleep(postActionSettle)
	finalURL, err := page.pageURL(ctx)
	if err != nil {
		return agent.Result{}, err
	}
	title, err := page.pageTitle(ctx)
	if err != nil {
		title = ""
	}

	summary := buildSummary(finalURL, title, usedSearch, drv.headless, actionMode)
	if bootstrapError != "" {
		a.log.Debug().Str("bootstrap_error", bootstrapError).Msg("direct driver covered a rich bootstrap failure")
	}
	return agent.Result{Success: true, Message: summary, Source: agent.SourceBrowser}, nil
}

// Stop tears down whichever backend is active so the next task starts
// a fresh session.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.drv != nil {
		a.drv.Close()
		a.drv = nil
	}
	if a.rich != nil {
		a.rich.cleanup()
		a.rich = nil
	}
	a.backend = ""
}
