package vision

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Click types on the tool surface.
const (
	clickLeft   = "left click"
	clickDouble = "double left click"
	clickRight  = "right click"
)

// Input injects mouse and keyboard events. Implementations stay
// trivial; everything interesting happens in the engine.
type Input interface {
	MoveCursor(x, y float64) error
	ClickLeft() error
	ClickDoubleLeft() error
	ClickRight() error
	HoldLeft() error
	HoldRight() error
	ReleaseLeft() error
	ReleaseRight() error
	TypeString(text string, submit bool) error
	CtrlHotkey(key string) error
	AltHotkey(key string) error
	PressKeyForDuration(key string, seconds float64) error
	HoldKey(key string) error
	ReleaseKey(key string) error
}

// clickAs dispatches a normalized click type onto an Input.
func clickAs(in Input, clickType string) error {
	switch normalizeClickType(clickType) {
	case clickLeft:
		return in.ClickLeft()
	case clickDouble:
		return in.ClickDoubleLeft()
	case clickRight:
		return in.ClickRight()
	}
	return fmt.Errorf("unsupported click type: %s", clickType)
}

// normalizeClickType maps loose click-type spellings onto the three
// canonical types. Unknown input falls through unchanged so clickAs
// can report it.
func normalizeClickType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "left", "left click", "click":
		return clickLeft
	case "double", "double click", "double left click":
		return clickDouble
	case "right", "right click":
		return clickRight
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// unescapeTyped undoes backslash escape sequences the model sometimes
// leaves in typed strings.
var unescapeTyped = strings.NewReplacer(
	`\'`, `'`,
	`\\`, `\`,
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\b`, "\b",
	`\f`, "\f",
)

// execInput drives xdotool. It is the default Input on systems where
// xdotool is installed; tests substitute a fake.
type execInput struct {
	tool string
}

// NewExecInput returns the exec-backed input, or an error when no
// injection tool is on PATH.
func NewExecInput() (Input, error) {
	tool, err := exec.LookPath("xdotool")
	if err != nil {
		return nil, fmt.Errorf("input injection needs xdotool on PATH: %w", err)
	}
	return &execInput{tool: tool}, nil
}

func (e *execInput) run(args ...string) error {
	return exec.Command(e.tool, args...).Run()
}

func (e *execInput) MoveCursor(x, y float64) error {
	return e.run("mousemove", "--sync",
		strconv.Itoa(int(x)), strconv.Itoa(int(y)))
}

func (e *execInput) ClickLeft() error       { return e.run("click", "1") }
func (e *execInput) ClickRight() error      { return e.run("click", "3") }
func (e *execInput) ClickDoubleLeft() error { return e.run("click", "--repeat", "2", "1") }

func (e *execInput) HoldLeft() error     { return e.run("mousedown", "1") }
func (e *execInput) HoldRight() error    { return e.run("mousedown", "3") }
func (e *execInput) ReleaseLeft() error  { return e.run("mouseup", "1") }
func (e *execInput) ReleaseRight() error { return e.run("mouseup", "3") }

func (e *execInput) TypeString(text string, submit bool) error {
	if err := e.run("type", "--delay", "10", unescapeTyped.Replace(text)); err != nil {
		return err
	}
	if submit {
		return e.run("key", "Return")
	}
	return nil
}

// CtrlHotkey presses ctrl+key, mapped to command on macOS where
// launcher and app shortcuts live on the command key.
func (e *execInput) CtrlHotkey(key string) error {
	modifier := "ctrl"
	if runtime.GOOS == "darwin" {
		modifier = "super"
	}
	return e.run("key", modifier+"+"+key)
}

func (e *execInput) AltHotkey(key string) error {
	return e.run("key", "alt+"+key)
}

func (e *execInput) PressKeyForDuration(key string, seconds float64) error {
	if err := e.run("keydown", key); err != nil {
		return err
	}
	time.Sleep(time.Duration(seconds * float64(time.Second)))
	return e.run("keyup", key)
}

func (e *execInput) HoldKey(key string) error    { return e.run("keydown", key) }
func (e *execInput) ReleaseKey(key string) error { return e.run("keyup", key) }
