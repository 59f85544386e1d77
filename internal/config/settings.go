// Package config loads and persists orchestrator settings.
//
// Settings live in a JSON file shared with the overlay renderer. The
// bootstrap path may rewrite host/port and screen dimensions back to disk
// so the renderer always reads the values the server actually bound.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

// Settings holds the shared orchestrator configuration.
type Settings struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ScreenWidth    int    `json:"screen_width"`
	ScreenHeight   int    `json:"screen_height"`
	ViewportWidth  int    `json:"viewport_width,omitempty"`
	ViewportHeight int    `json:"viewport_height,omitempty"`

	// RouterModel answers routing calls; AnnotateModel drives screen
	// annotation and screen-judge calls.
	RouterModel   string `json:"rapid_response_model"`
	AnnotateModel string `json:"clovis_model"`

	TTS             bool   `json:"tts"`
	Personalization string `json:"personalization,omitempty"`
}

// DefaultSettings returns the settings used when no file exists yet.
func DefaultSettings() *Settings {
	return &Settings{
		Host:          "127.0.0.1",
		Port:          8765,
		ScreenWidth:   1920,
		ScreenHeight:  1080,
		RouterModel:   "gemini-flash-lite-latest",
		AnnotateModel: "gemini-3-flash-preview",
	}
}

// Load reads settings from path. A missing file yields defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Save writes settings to path, creating the file if needed.
func (s *Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// EnsureHostPort resolves the listen address. If the configured port is
// taken it picks an ephemeral free port and persists the choice so the
// overlay renderer connects to the right place.
func EnsureHostPort(path string) (*Settings, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	if s.Host == "" {
		s.Host = "127.0.0.1"
	}
	if !portFree(s.Host, s.Port) {
		port, err := freePort(s.Host)
		if err != nil {
			return nil, fmt.Errorf("find free port: %w", err)
		}
		s.Port = port
	}

	if err := s.Save(path); err != nil {
		return nil, err
	}
	return s, nil
}

// SetScreenSize persists the detected screen dimensions.
func SetScreenSize(path string, width, height int) error {
	s, err := Load(path)
	if err != nil {
		return err
	}
	s.ScreenWidth = width
	s.ScreenHeight = height
	return s.Save(path)
}

// SetViewportSize persists the renderer-reported viewport dimensions.
func SetViewportSize(path string, width, height int) error {
	s, err := Load(path)
	if err != nil {
		return err
	}
	s.ViewportWidth = width
	s.ViewportHeight = height
	return s.Save(path)
}

func portFree(host string, port int) bool {
	if port <= 0 {
		return false
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

func freePort(host string) (int, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
