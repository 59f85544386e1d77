// Package audio fires optional text-to-speech side effects against an
// ElevenLabs-style endpoint. Missing configuration or playback
// problems never fail the caller; speech is best effort.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultModelID = "eleven_monolingual_v1"
	requestTimeout = 30 * time.Second
)

// audioFile is where the synthesized clip lands before playback.
var audioFile = filepath.Join(os.TempDir(), "clovis_audio.mp3")

// Config describes the speech endpoint. Enabled false or an empty
// Endpoint/APIKey turns Speak into a logged no-op.
type Config struct {
	Enabled  bool
	Endpoint string
	APIKey   string
	// Voice, when set, is appended to the endpoint path.
	Voice string
}

// Speaker synthesizes and plays short spoken feedback.
type Speaker struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
	out    string
	play   func(ctx context.Context, path string) error
}

// New creates a speaker. The zero-value Config yields a silent one.
func New(cfg Config, log zerolog.Logger) *Speaker {
	return &Speaker{
		cfg:    cfg,
		client: &http.Client{Timeout: requestTimeout},
		log:    log.With().Str("component", "tts").Logger(),
		out:    audioFile,
		play:   playFile,
	}
}

// unescape resolves backslash sequences the model tends to emit in
// spoken text.
var unescape = strings.NewReplacer(
	`\\`, `\`,
	`\'`, `'`,
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\b`, "\b",
	`\f`, "\f",
)

// Speak synthesizes text and plays it. All failures are logged and
// swallowed; only context cancellation is returned.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if !s.cfg.Enabled {
		return nil
	}
	text = unescape.Replace(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s.log.Info().Str("text", text).Msg("speaking")

	if s.cfg.Endpoint == "" || s.cfg.APIKey == "" {
		s.log.Debug().Msg("speech endpoint not configured, skipping audio")
		return nil
	}

	if err := s.synthesize(ctx, text); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn().Err(err).Msg("speech synthesis failed")
		return nil
	}
	if err := s.play(ctx, s.out); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn().Err(err).Msg("audio playback failed")
	}
	return nil
}

func (s *Speaker) synthesize(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": defaultModelID,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.5,
		},
	})
	if err != nil {
		return err
	}

	endpoint := s.cfg.Endpoint
	if s.cfg.Voice != "" {
		if joined, err := url.JoinPath(endpoint, s.cfg.Voice); err == nil {
			endpoint = joined
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speech endpoint returned status %d", resp.StatusCode)
	}

	f, err := os.Create(s.out)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

// players are tried in order; the first one on PATH plays the clip.
var players = [][]string{
	{"afplay"},
	{"mpv", "--no-video", "--really-quiet"},
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
	{"cvlc", "--play-and-exit", "--intf", "dummy"},
}

func playFile(ctx context.Context, path string) error {
	for _, p := range players {
		bin, err := exec.LookPath(p[0])
		if err != nil {
			continue
		}
		args := append(append([]string{}, p[1:]...), path)
		return exec.CommandContext(ctx, bin, args...).Run()
	}
	return fmt.Errorf("no audio player found on PATH")
}
