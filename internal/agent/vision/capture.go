package vision

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Frame records how the last captured image maps onto the screen:
// image pixel size, logical size of the captured region, its top-left
// screen offset, and the per-axis image-to-logical scale.
type Frame struct {
	Width         int
	Height        int
	LogicalWidth  int
	LogicalHeight int
	OffsetX       float64
	OffsetY       float64
	ScaleX        float64
	ScaleY        float64
	Mode          string
}

func (f Frame) valid() bool {
	return f.Width > 0 && f.Height > 0
}

// normalized fills defaults so downstream math never divides by zero.
func (f Frame) normalized() Frame {
	if f.LogicalWidth <= 0 {
		f.LogicalWidth = f.Width
	}
	if f.LogicalHeight <= 0 {
		f.LogicalHeight = f.Height
	}
	if f.ScaleX <= 0 {
		f.ScaleX = 1
	}
	if f.ScaleY <= 0 {
		f.ScaleY = 1
	}
	return f
}

// Screen captures what the user sees. The engine prefers the active
// window but any full-screen grab works; the Frame tells it which.
type Screen interface {
	// Capture grabs the active window, or the full screen when no
	// window bounds are available.
	Capture() (image.Image, Frame, error)
	// ActiveWindowTitle names the focused window for prompt context.
	// "Unknown" when unavailable.
	ActiveWindowTitle() string
}

// frameFor builds a full-screen Frame for an image with no window
// metadata: logical size equals image size, no offset, unit scale.
func frameFor(img image.Image, mode string) Frame {
	b := img.Bounds()
	return Frame{
		Width:         b.Dx(),
		Height:        b.Dy(),
		LogicalWidth:  b.Dx(),
		LogicalHeight: b.Dy(),
		ScaleX:        1,
		ScaleY:        1,
		Mode:          mode,
	}
}

// execScreen shells out to the platform screenshot tool and decodes
// the PNG it writes. Window-level capture is not attempted; the frame
// is always full_screen.
type execScreen struct {
	tool string
	args func(path string) []string
}

// NewExecScreen returns the exec-backed capturer, or an error when no
// screenshot tool is on PATH.
func NewExecScreen() (Screen, error) {
	if runtime.GOOS == "darwin" {
		tool, err := exec.LookPath("screencapture")
		if err != nil {
			return nil, fmt.Errorf("screen capture needs screencapture on PATH: %w", err)
		}
		return &execScreen{tool: tool, args: func(path string) []string {
			return []string{"-x", path}
		}}, nil
	}
	for _, name := range []string{"gnome-screenshot", "scrot"} {
		tool, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		if name == "gnome-screenshot" {
			return &execScreen{tool: tool, args: func(path string) []string {
				return []string{"-f", path}
			}}, nil
		}
		return &execScreen{tool: tool, args: func(path string) []string {
			return []string{"-o", path}
		}}, nil
	}
	return nil, fmt.Errorf("screen capture needs gnome-screenshot or scrot on PATH")
}

func (s *execScreen) Capture() (image.Image, Frame, error) {
	path := filepath.Join(os.TempDir(), "clovis_vision_capture.png")
	if err := exec.Command(s.tool, s.args(path)...).Run(); err != nil {
		return nil, Frame{}, fmt.Errorf("screen capture: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, Frame{}, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, Frame{}, fmt.Errorf("decode capture: %w", err)
	}
	return img, frameFor(img, "full_screen"), nil
}

func (s *execScreen) ActiveWindowTitle() string {
	tool, err := exec.LookPath("xdotool")
	if err != nil {
		return "Unknown"
	}
	out, err := exec.Command(tool, "getactivewindow", "getwindowname").Output()
	if err != nil {
		return "Unknown"
	}
	title := strings.TrimSpace(string(out))
	if title == "" {
		return "Unknown"
	}
	return title
}
