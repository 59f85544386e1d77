package theme

import (
	"image"
	"image/color"
	"testing"
)

func uniformImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// gray returns an image whose Rec.709 luminance equals the channel value.
func gray(v uint8) image.Image {
	return uniformImage(200, 200, color.RGBA{v, v, v, 255})
}

func TestForPointDarkScreenPrefersLightText(t *testing.T) {
	s := NewSampler(nil)
	s.SetScreenshot(gray(40))
	p := s.ForPoint(100, 100)
	if p.Mode != "light-on-dark" {
		t.Errorf("Mode = %q, want light-on-dark", p.Mode)
	}
}

func TestForPointLightScreenPrefersDarkText(t *testing.T) {
	s := NewSampler(nil)
	s.SetScreenshot(gray(200))
	p := s.ForPoint(100, 100)
	if p.Mode != "dark-on-light" {
		t.Errorf("Mode = %q, want dark-on-light", p.Mode)
	}
}

func TestThresholdStableUnderSmallPerturbation(t *testing.T) {
	s := NewSampler(nil)

	s.SetScreenshot(gray(uint8(DarkLuminanceThreshold - 2)))
	below := s.ForPoint(50, 50).Mode

	s.SetScreenshot(gray(uint8(DarkLuminanceThreshold - 1)))
	belowAgain := s.ForPoint(50, 50).Mode

	if below != belowAgain {
		t.Errorf("1-unit perturbation flipped theme: %q vs %q", below, belowAgain)
	}
	if below != "light-on-dark" {
		t.Errorf("below threshold should be light-on-dark, got %q", below)
	}

	s.SetScreenshot(gray(uint8(DarkLuminanceThreshold + 1)))
	if got := s.ForPoint(50, 50).Mode; got != "dark-on-light" {
		t.Errorf("above threshold should be dark-on-light, got %q", got)
	}
}

func TestForTextInvertsAgainstPanelThreshold(t *testing.T) {
	s := NewSampler(nil)

	// Medium-dark background: dark for the generic threshold (112) but
	// light for the inverted panel threshold (45), so the panel goes
	// light-on-dark.
	s.SetScreenshot(gray(80))
	if got := s.ForText(100, 100).Mode; got != "light-on-dark" {
		t.Errorf("ForText on 80-gray = %q, want light-on-dark", got)
	}

	// Truly dark background inverts: the panel provides its own light
	// surface, so it uses dark text.
	s.SetScreenshot(gray(20))
	if got := s.ForText(100, 100).Mode; got != "dark-on-light" {
		t.Errorf("ForText on 20-gray = %q, want dark-on-light", got)
	}
}

func TestForStatusUsesLenientThreshold(t *testing.T) {
	s := NewSampler(func() (int, int) { return 200, 200 })

	// 120 is above the generic threshold but below the status threshold
	// (132): counts as dark strip, so the inverted bubble uses dark text.
	s.SetScreenshot(gray(120))
	if got := s.ForStatus().Mode; got != "dark-on-light" {
		t.Errorf("ForStatus on 120-gray = %q, want dark-on-light", got)
	}

	s.SetScreenshot(gray(150))
	if got := s.ForStatus().Mode; got != "light-on-dark" {
		t.Errorf("ForStatus on 150-gray = %q, want light-on-dark", got)
	}
}

func TestInvalidCaptureRetainsLastDecision(t *testing.T) {
	s := NewSampler(nil)
	s.SetScreenshot(gray(30))
	first := s.ForPoint(10, 10).Mode

	// Near-black frame is rejected; decision must not change.
	s.SetScreenshot(uniformImage(100, 100, color.RGBA{1, 1, 1, 255}))
	second := s.ForPoint(10, 10).Mode

	if first != second {
		t.Errorf("invalid capture changed decision: %q -> %q", first, second)
	}
}

func TestNoScreenshotRetainsDefault(t *testing.T) {
	s := NewSampler(nil)
	// No screenshot at all: lastDark is false, so dark-on-light.
	if got := s.ForPoint(0, 0).Mode; got != "dark-on-light" {
		t.Errorf("default mode = %q, want dark-on-light", got)
	}
}

func TestLikelyInvalid(t *testing.T) {
	if !LikelyInvalid(nil) {
		t.Error("nil image must be invalid")
	}
	if !LikelyInvalid(uniformImage(60, 60, color.RGBA{2, 3, 4, 255})) {
		t.Error("near-black image must be invalid")
	}
	if LikelyInvalid(gray(128)) {
		t.Error("mid-gray image must be valid")
	}
	if LikelyInvalid(uniformImage(60, 60, color.RGBA{0, 0, 200, 255})) {
		t.Error("saturated blue is dark but not near-black")
	}
}

func TestCursorPalette(t *testing.T) {
	s := NewSampler(nil)
	s.SetScreenshot(gray(200))
	s.SetCursorPos(10, 10)
	// Light background, inverted pill: light-on-dark.
	if got := s.ForCursor().Mode; got != "light-on-dark" {
		t.Errorf("ForCursor = %q, want light-on-dark", got)
	}
}
