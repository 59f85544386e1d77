package vision

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/standardbeagle/clovis/internal/model"
)

// Arguments that steer the UI rather than the tool itself. They are
// stripped before execution and before repeat-signature hashing.
var toolMetadataKeys = map[string]struct{}{
	"status_text":        {},
	"target_description": {},
}

// Click tools and their spoken click types, both directions.
var clickToolToType = map[string]string{
	"click_left_click":        clickLeft,
	"click_double_left_click": clickDouble,
	"click_right_click":       clickRight,
}

var clickTypeToTool = map[string]string{
	clickLeft:   "click_left_click",
	clickDouble: "click_double_left_click",
	clickRight:  "click_right_click",
}

// Cursor-positioning tools; both take a bbox and a target description.
var positioningTools = map[string]struct{}{
	"go_to_element":   {},
	"crop_and_search": {},
}

func withStatusText(props map[string]any) map[string]any {
	enriched := make(map[string]any, len(props)+2)
	for k, v := range props {
		enriched[k] = v
	}
	enriched["status_text"] = map[string]any{
		"type":        "string",
		"description": "Short status text shown to the user while executing this action.",
	}
	return enriched
}

func withClickMetadata(props map[string]any) map[string]any {
	enriched := withStatusText(props)
	enriched["target_description"] = map[string]any{
		"type":        "string",
		"description": "Short description of the click target (for retry fallback).",
	}
	return enriched
}

func bboxProps() map[string]any {
	edge := func(side string) map[string]any {
		return map[string]any{
			"type":        "number",
			"description": side + " edge of target bounding box, normalized 0-1000 (or ratio 0-1).",
		}
	}
	return map[string]any{
		"ymin": edge("Top"),
		"xmin": edge("Left"),
		"ymax": edge("Bottom"),
		"xmax": edge("Right"),
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// visionTools declares the fixed tool set offered on every step.
func visionTools() []model.Tool {
	return []model.Tool{
		{
			Name:        "type_string",
			Description: "Types out a string in the currently focused input. Optionally submit with Enter.",
			Parameters: objectSchema(withStatusText(map[string]any{
				"string": map[string]any{"type": "string", "description": "The string to type out."},
				"submit": map[string]any{"type": "boolean", "description": "Set true to press Enter once after typing."},
			}), "string"),
		},
		{
			Name:        "press_ctrl_hotkey",
			Description: "Press a control-style hotkey. On macOS this maps to Command automatically; on other OSes it uses Control.",
			Parameters: objectSchema(withStatusText(map[string]any{
				"key": map[string]any{"type": "string", "description": "The key to press with control."},
			}), "key"),
		},
		{
			Name:        "press_alt_hotkey",
			Description: "Press a key along with the alt key to emulate a hotkey.",
			Parameters: objectSchema(withStatusText(map[string]any{
				"key": map[string]any{"type": "string", "description": "The key to press with alt."},
			}), "key"),
		},
		{
			Name:        "go_to_element",
			Description: "Move cursor to the center of a target bounding box.",
			Parameters: objectSchema(withClickMetadata(bboxProps()),
				"target_description", "ymin", "xmin", "ymax", "xmax"),
		},
		{
			Name:        "click_left_click",
			Description: "Emulates a mouse left click at the current cursor position.",
			Parameters:  objectSchema(withClickMetadata(map[string]any{})),
		},
		{
			Name:        "click_double_left_click",
			Description: "Emulates a mouse double left click at the current cursor position.",
			Parameters:  objectSchema(withClickMetadata(map[string]any{})),
		},
		{
			Name:        "click_right_click",
			Description: "Emulates a mouse right click at the current cursor position.",
			Parameters:  objectSchema(withClickMetadata(map[string]any{})),
		},
		{
			Name: "crop_and_search",
			Description: "Optional precision cursor positioning helper. Provide a best-effort bounding box around a likely target; " +
				"the tool pads the box, runs a second localization pass inside the crop, and moves cursor to the refined center.",
			Parameters: objectSchema(withClickMetadata(bboxProps()),
				"target_description", "ymin", "xmin", "ymax", "xmax"),
		},
		{
			Name:        "hold_down_left_click",
			Description: "Emulates holding down the left mouse button.",
			Parameters: objectSchema(withStatusText(map[string]any{
				"x": map[string]any{"type": "number", "description": "X coordinate on screen."},
				"y": map[string]any{"type": "number", "description": "Y coordinate on screen."},
			}), "x", "y"),
		},
		{
			Name:        "release_left_click",
			Description: "Emulates releasing the left mouse button.",
			Parameters: objectSchema(withStatusText(map[string]any{
				"x": map[string]any{"type": "number", "description": "X coordinate on screen."},
				"y": map[string]any{"type": "number", "description": "Y coordinate on screen."},
			}), "x", "y"),
		},
		{
			Name:        "press_key_for_duration",
			Description: "Holds down a key for a specified duration.",
			Parameters: objectSchema(withStatusText(map[string]any{
				"key":     map[string]any{"type": "string", "description": "The key to press."},
				"seconds": map[string]any{"type": "number", "description": "Duration in seconds."},
			}), "key", "seconds"),
		},
		{
			Name:        "hold_down_key",
			Description: "Press down a key indefinitely until release_held_key is called.",
			Parameters: objectSchema(withStatusText(map[string]any{
				"key": map[string]any{"type": "string", "description": "The key to hold down."},
			}), "key"),
		},
		{
			Name:        "release_held_key",
			Description: "Release a previously held down key.",
			Parameters: objectSchema(withStatusText(map[string]any{
				"key": map[string]any{"type": "string", "description": "The key to release."},
			}), "key"),
		},
		{
			Name:        "remember_information",
			Description: "Remember/memorize information for later use. Use this when the user asks you to remember something.",
			Parameters: objectSchema(map[string]any{
				"thing_to_remember": map[string]any{
					"type":        "string",
					"description": "The information to remember, detailed enough to reproduce later.",
				},
			}, "thing_to_remember"),
		},
		{
			Name:        "task_is_complete",
			Description: "Signal that the task is complete. This should be the final action.",
			Parameters: objectSchema(map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "Optional short completion message to speak.",
				},
			}),
		},
		{
			Name:        "tts_speak",
			Description: "Verbally speak to the user. Use this to give feedback or confirmation.",
			Parameters: objectSchema(map[string]any{
				"text": map[string]any{"type": "string", "description": "The text to speak to the user."},
			}, "text"),
		},
	}
}

// defaultStatusText supplies the status line when the model omits
// status_text.
func defaultStatusText(toolName string) string {
	switch toolName {
	case "type_string":
		return "Typing..."
	case "press_ctrl_hotkey", "press_alt_hotkey":
		return "Using shortcut..."
	case "go_to_element":
		return "Positioning cursor to target..."
	case "crop_and_search":
		return "Zooming in for a precision click..."
	case "tts_speak":
		return "Preparing response..."
	case "task_is_complete":
		return "Task complete"
	}
	if _, ok := clickToolToType[toolName]; ok {
		return "Clicking target..."
	}
	return "Working..."
}

// argString reads a string argument, tolerating absence.
func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// argFloat reads a numeric argument in whatever JSON shape the
// provider delivered it.
func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func argBool(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	return false
}

// argBBox reads the four bbox edges; all must be present.
func argBBox(args map[string]any) (bbox, error) {
	ymin, ok1 := argFloat(args, "ymin")
	xmin, ok2 := argFloat(args, "xmin")
	ymax, ok3 := argFloat(args, "ymax")
	xmax, ok4 := argFloat(args, "xmax")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return bbox{}, fmt.Errorf("bounding box arguments are incomplete")
	}
	return bbox{YMin: ymin, XMin: xmin, YMax: ymax, XMax: xmax}, nil
}
