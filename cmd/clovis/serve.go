package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/clovis/internal/agent"
	"github.com/standardbeagle/clovis/internal/agent/annotate"
	"github.com/standardbeagle/clovis/internal/agent/browser"
	"github.com/standardbeagle/clovis/internal/agent/cli"
	"github.com/standardbeagle/clovis/internal/agent/vision"
	"github.com/standardbeagle/clovis/internal/audio"
	"github.com/standardbeagle/clovis/internal/config"
	"github.com/standardbeagle/clovis/internal/draw"
	"github.com/standardbeagle/clovis/internal/judge"
	"github.com/standardbeagle/clovis/internal/memory"
	"github.com/standardbeagle/clovis/internal/model"
	"github.com/standardbeagle/clovis/internal/orchestrator"
	"github.com/standardbeagle/clovis/internal/overlay"
	"github.com/standardbeagle/clovis/internal/process"
	"github.com/standardbeagle/clovis/internal/router"
	"github.com/standardbeagle/clovis/internal/theme"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the overlay orchestrator",
	Long: `Run the full assistant: overlay WebSocket transport, rapid-response
router, and the browser/CLI/vision/annotation agents. The overlay
renderer reads the shared settings file to find the listen address.`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().String("cli-path", os.Getenv("CLOVIS_CLI_PATH"),
		"Directory holding the built coding-agent CLI bundle")
	serveCmd.Flags().String("browser-runner", os.Getenv("CLOVIS_BROWSER_RUNNER"),
		"Rich browser automation runner executable (empty uses the direct driver)")
	serveCmd.Flags().Bool("cli-pty", true, "Run the coding-agent CLI under a pseudo-terminal")
}

func runServe(cmd *cobra.Command, args []string) {
	log := newLogger(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settingsPath, _ := cmd.Flags().GetString("settings")
	cfg, err := config.EnsureHostPort(settingsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load settings")
	}

	var overrides *config.Overrides
	if wd, err := os.Getwd(); err == nil {
		overrides, err = config.LoadOverrides(wd)
		if err != nil {
			log.Warn().Err(err).Msg("project overrides unreadable")
		}
	}
	overrides.Apply(cfg)

	screen, err := vision.NewExecScreen()
	if err != nil {
		log.Warn().Err(err).Msg("screen capture unavailable, vision and theming degrade")
	}
	capture := func() (image.Image, error) {
		if screen == nil {
			return nil, errors.New("screen capture unavailable")
		}
		img, _, err := screen.Capture()
		return img, err
	}

	if screen != nil {
		if img, _, err := screen.Capture(); err == nil {
			b := img.Bounds()
			cfg.ScreenWidth, cfg.ScreenHeight = b.Dx(), b.Dy()
			if err := config.SetScreenSize(settingsPath, b.Dx(), b.Dy()); err != nil {
				log.Warn().Err(err).Msg("persist screen size")
			}
		}
	}
	log.Info().
		Int("width", cfg.ScreenWidth).Int("height", cfg.ScreenHeight).
		Str("router_model", cfg.RouterModel).Str("annotate_model", cfg.AnnotateModel).
		Msg("settings resolved")

	sizes := newSizeState(cfg)
	sampler := theme.NewSampler(sizes.screen)

	// The orchestrator is built after the transport; callbacks bind late.
	var orch *orchestrator.Orchestrator
	server := overlay.NewServer(sampler, overlay.Callbacks{
		OnInput: func(text string) {
			if orch != nil {
				orch.HandleInput(text)
			}
		},
		OnCaptureScreenshot: func() image.Image {
			if orch == nil {
				return nil
			}
			return orch.CaptureScreenshot()
		},
		OnStopAll: func() {
			if orch != nil {
				orch.StopAll()
			}
		},
		OnViewport: func(w, h int) {
			sizes.setViewport(w, h)
			if err := config.SetViewportSize(settingsPath, w, h); err != nil {
				log.Warn().Err(err).Msg("persist viewport size")
			}
		},
	}, log)

	queue := draw.NewQueue(server, sizes.screen, sizes.viewport, log)
	defer queue.Close()

	routerInv, err := newLiveInvoker(ctx, cfg.RouterModel)
	if err != nil {
		log.Fatal().Err(err).Str("model", cfg.RouterModel).Msg("router model unavailable")
	}
	annotateInv, err := newLiveInvoker(ctx, cfg.AnnotateModel)
	if err != nil {
		log.Fatal().Err(err).Str("model", cfg.AnnotateModel).Msg("annotation model unavailable")
	}

	speaker := audio.New(ttsConfig(cfg, overrides), log)
	speak := vision.Speaker(func(ctx context.Context, text string) {
		if err := speaker.Speak(ctx, text); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("tts failed")
		}
	})

	procs := process.NewManager(log)

	agents := map[string]agent.Agent{}

	takeScreenshot := func() (image.Image, error) {
		if orch == nil {
			return nil, errors.New("not started")
		}
		if img := orch.Screenshots().Take(); img != nil {
			return img, nil
		}
		return nil, errors.New("no screenshot available")
	}
	agents[router.AgentClovis] = annotate.New(annotateInv, queue, takeScreenshot, nil, log)

	cliPath, _ := cmd.Flags().GetString("cli-path")
	cliPTY, _ := cmd.Flags().GetBool("cli-pty")
	if cliAgent, err := cli.New(cli.Config{CLIPath: cliPath, UsePTY: cliPTY}, procs, log); err != nil {
		log.Warn().Err(err).Msg("CLI agent unavailable")
	} else {
		agents[router.AgentCLI] = cliAgent
	}

	browserRunner, _ := cmd.Flags().GetString("browser-runner")
	agents[router.AgentBrowser] = browser.New(browser.Config{
		ModelName:   cfg.AnnotateModel,
		RichCommand: browserRunner,
	}, log)

	var visionAgent *vision.Agent
	input, err := vision.NewExecInput()
	if err != nil || screen == nil {
		log.Warn().Err(err).Msg("vision agent unavailable")
	} else {
		visionAgent = vision.New(annotateInv, routerInv, screen, input, server, speak, log)
		agents[router.AgentVision] = visionAgent
	}

	jd := judge.New(annotateInv, encodePNG, log)
	judgeFn := func(ctx context.Context, task, focus string) (judge.Context, error) {
		var shot image.Image
		if orch != nil {
			shot = orch.Screenshots().Take()
		}
		return jd.Generate(ctx, task, focus, shot)
	}

	rt := router.New(router.Config{
		Invoker:         routerInv,
		Agents:          agents,
		Judge:           judgeFn,
		Memory:          memory.NewRing(),
		Surface:         &spokenSurface{Queue: queue, speak: speak},
		Sink:            server,
		Personalization: cfg.Personalization,
	}, log)

	orch = orchestrator.New(orchestrator.Config{
		Run: rt.Run,
		StopVision: func() {
			if visionAgent != nil {
				visionAgent.Stop()
			}
		},
		Queue:   queue,
		Procs:   procs,
		Capture: capture,
	}, log)

	watcher := config.NewWatcher(settingsPath, log, func(routerName, annotateName string) {
		if err := routerInv.swap(ctx, routerName); err != nil {
			log.Warn().Err(err).Str("model", routerName).Msg("router model swap failed")
		}
		if err := annotateInv.swap(ctx, annotateName); err != nil {
			log.Warn().Err(err).Str("model", annotateName).Msg("annotation model swap failed")
		}
		queue.SetModelName(routerName)
	})
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("settings watch stopped")
		}
	}()

	if err := server.Start(cfg.Host, cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("start overlay transport")
	}
	log.Info().Str("addr", server.Addr()).Msg("waiting for overlay renderer")
	if err := server.WaitForClient(ctx); err == nil {
		queue.SetModelName(cfg.RouterModel)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	orch.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("overlay shutdown")
	}
}

// spokenSurface renders direct responses on the overlay and speaks
// them when TTS is configured.
type spokenSurface struct {
	*draw.Queue
	speak vision.Speaker
}

func (s *spokenSurface) DirectResponse(text string, opt draw.TextOptions) {
	s.Queue.DirectResponse(text, opt)
	if s.speak != nil {
		go s.speak(context.Background(), text)
	}
}

// liveInvoker is an invoker handle whose backing model can be swapped
// when the settings file changes.
type liveInvoker struct {
	mu  sync.Mutex
	inv model.Invoker
}

func newLiveInvoker(ctx context.Context, name string) (*liveInvoker, error) {
	inv, err := model.ForModel(ctx, name)
	if err != nil {
		return nil, err
	}
	return &liveInvoker{inv: inv}, nil
}

func (l *liveInvoker) current() model.Invoker {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inv
}

func (l *liveInvoker) swap(ctx context.Context, name string) error {
	inv, err := model.ForModel(ctx, name)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.inv = inv
	l.mu.Unlock()
	return nil
}

func (l *liveInvoker) Name() string  { return l.current().Name() }
func (l *liveInvoker) Model() string { return l.current().Model() }
func (l *liveInvoker) Invoke(ctx context.Context, req model.Request) (*model.Result, error) {
	return l.current().Invoke(ctx, req)
}

// sizeState serves screen and viewport dimensions to the draw queue
// and theme sampler; the viewport updates when the renderer reports.
type sizeState struct {
	mu               sync.Mutex
	screenW, screenH int
	viewW, viewH     int
}

func newSizeState(cfg *config.Settings) *sizeState {
	return &sizeState{
		screenW: cfg.ScreenWidth, screenH: cfg.ScreenHeight,
		viewW: cfg.ViewportWidth, viewH: cfg.ViewportHeight,
	}
}

func (s *sizeState) screen() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenW, s.screenH
}

func (s *sizeState) viewport() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewW, s.viewH
}

func (s *sizeState) setViewport(w, h int) {
	s.mu.Lock()
	s.viewW, s.viewH = w, h
	s.mu.Unlock()
}

func ttsConfig(cfg *config.Settings, overrides *config.Overrides) audio.Config {
	out := audio.Config{Enabled: cfg.TTS}
	if overrides != nil && overrides.TTS != nil {
		out.Endpoint = overrides.TTS.Endpoint
		out.APIKey = overrides.TTS.APIKey
		out.Voice = overrides.TTS.Voice
	}
	if out.Endpoint == "" {
		out.Endpoint = os.Getenv("CLOVIS_TTS_ENDPOINT")
	}
	if out.APIKey == "" {
		out.APIKey = os.Getenv("CLOVIS_TTS_API_KEY")
	}
	return out
}

func encodePNG(img image.Image) (model.Image, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return model.Image{}, err
	}
	return model.Image{MIME: "image/png", Data: buf.Bytes()}, nil
}
