package annotate

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/standardbeagle/clovis/internal/draw"
	"github.com/standardbeagle/clovis/internal/model"
)

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func timeProp() map[string]any {
	return prop("number", "Time offset in seconds for when to run this action.")
}

// annotationTools declares the full annotation tool surface.
func annotationTools() []model.Tool {
	return []model.Tool{
		{
			Name:        "draw_bounding_box",
			Description: "Draw a bounding box using (y_min, x_min, y_max, x_max) edge coordinates.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"time":          timeProp(),
					"y_min":         prop("integer", "Top edge coordinate in pixels."),
					"x_min":         prop("integer", "Left edge coordinate in pixels."),
					"y_max":         prop("integer", "Bottom edge coordinate in pixels."),
					"x_max":         prop("integer", "Right edge coordinate in pixels."),
					"box_id":        prop("string", "Optional unique ID for the box."),
					"stroke":        prop("string", "Stroke color hex code."),
					"stroke_width":  prop("integer", "Border width in pixels."),
					"opacity":       prop("number", "Opacity from 0 to 1."),
					"auto_contrast": prop("boolean", "Choose stroke color based on background contrast."),
					"fill":          prop("string", "Optional fill color (CSS color string)."),
				},
				"required": []string{"time", "y_min", "x_min", "y_max", "x_max"},
			},
		},
		{
			Name: "draw_pointer_to_object",
			Description: "Draw a dot at (x_pos, y_pos) pointing to an object, with a text label at " +
				"(text_x, text_y). A thin white line automatically connects the dot to the text bubble center.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"time":        timeProp(),
					"x_pos":       prop("integer", "X position of the dot in pixels."),
					"y_pos":       prop("integer", "Y position of the dot in pixels."),
					"text":        prop("string", "The label text to display."),
					"text_x":      prop("integer", "X position of the text label in pixels."),
					"text_y":      prop("integer", "Y position of the text label in pixels."),
					"point_id":    prop("string", "Optional unique ID for the pointer."),
					"dot_color":   prop("string", "Dot fill color."),
					"ring_color":  prop("string", "Ring color."),
					"ring_radius": prop("integer", "Optional ring radius in pixels."),
				},
				"required": []string{"time", "x_pos", "y_pos", "text", "text_x", "text_y"},
			},
		},
		{
			Name:        "create_text",
			Description: "Draw a text label at an (x, y) anchor point.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"time":        timeProp(),
					"x":           prop("integer", "X coordinate in pixels."),
					"y":           prop("integer", "Y coordinate in pixels."),
					"text":        prop("string", "Label text to render."),
					"font_size":   prop("integer", "Font size in pixels."),
					"font_family": prop("string", "Font family name."),
					"align":       prop("string", "Canvas textAlign value."),
					"baseline":    prop("string", "Canvas textBaseline value."),
					"text_id":     prop("string", "Optional unique ID for the text label."),
				},
				"required": []string{"time", "x", "y", "text"},
			},
		},
		{
			Name: "direct_response",
			Description: "Respond directly to the user, without any fancy UI display. " +
				"Meant for queries that do not involve screen annotations.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":        prop("string", "Response text to render."),
					"font_size":   prop("integer", "Font size in pixels."),
					"font_family": prop("string", "Font family name."),
				},
				"required": []string{"text"},
			},
		},
		{
			Name:        "create_text_for_box",
			Description: "Draw a text label relative to a bounding box.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"time": timeProp(),
					"box": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"x":      prop("integer", "Box left edge."),
							"y":      prop("integer", "Box top edge."),
							"width":  prop("integer", "Box width."),
							"height": prop("integer", "Box height."),
						},
						"required": []string{"x", "y", "width", "height"},
					},
					"text": prop("string", "Label text to render."),
					"position": map[string]any{
						"type":        "string",
						"enum":        []string{"top", "bottom", "left", "right"},
						"description": "Placement relative to the box.",
					},
					"font_size":   prop("integer", "Font size in pixels."),
					"font_family": prop("string", "Font family name."),
					"align":       prop("string", "Canvas textAlign value."),
					"padding":     prop("integer", "Pixels between text and box."),
				},
				"required": []string{"time", "box", "text"},
			},
		},
		{
			Name:        "clear_screen",
			Description: "Clear all visual elements on screen.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"time": timeProp(),
				},
				"required": []string{"time"},
			},
		},
		{
			Name:        "destroy_box",
			Description: "Remove a bounding box by ID.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"time":   timeProp(),
					"box_id": prop("string", "ID of the box to remove."),
				},
				"required": []string{"time", "box_id"},
			},
		},
		{
			Name:        "destroy_text",
			Description: "Remove a text label by ID.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"time":    timeProp(),
					"text_id": prop("string", "ID of the text to remove."),
				},
				"required": []string{"time", "text_id"},
			},
		},
	}
}

// dispatch maps one model call onto the overlay surface.
func (a *Agent) dispatch(c model.Call) error {
	args := c.Args
	switch c.Name {
	case "draw_bounding_box":
		t := argFloat(args, "time")
		yMin, okY0 := argFloatOK(args, "y_min")
		xMin, okX0 := argFloatOK(args, "x_min")
		yMax, okY1 := argFloatOK(args, "y_max")
		xMax, okX1 := argFloatOK(args, "x_max")
		if !okY0 || !okX0 || !okY1 || !okX1 {
			return fmt.Errorf("draw_bounding_box requires y_min, x_min, y_max, x_max")
		}
		a.surface.DrawBoundingBox(t, yMin, xMin, yMax, xMax, draw.BoxOptions{
			ID:           argString(args, "box_id"),
			Stroke:       argString(args, "stroke"),
			StrokeWidth:  argInt(args, "stroke_width"),
			Opacity:      argFloat(args, "opacity"),
			AutoContrast: argBool(args, "auto_contrast"),
			Fill:         argString(args, "fill"),
		})
		return nil

	case "draw_pointer_to_object":
		text := argString(args, "text")
		if text == "" {
			return fmt.Errorf("draw_pointer_to_object requires text")
		}
		a.surface.DrawPointerToObject(
			argFloat(args, "time"),
			argFloat(args, "x_pos"), argFloat(args, "y_pos"),
			text,
			argFloat(args, "text_x"), argFloat(args, "text_y"),
			draw.PointerOptions{
				ID:         argString(args, "point_id"),
				DotColor:   argString(args, "dot_color"),
				RingColor:  argString(args, "ring_color"),
				RingRadius: argInt(args, "ring_radius"),
			},
		)
		return nil

	case "create_text":
		text := argString(args, "text")
		if text == "" {
			return fmt.Errorf("create_text requires text")
		}
		a.surface.CreateText(
			argFloat(args, "time"),
			argFloat(args, "x"), argFloat(args, "y"),
			text,
			draw.TextOptions{
				ID:         argString(args, "text_id"),
				FontSize:   argInt(args, "font_size"),
				FontFamily: argString(args, "font_family"),
				Align:      argString(args, "align"),
				Baseline:   argString(args, "baseline"),
			},
		)
		return nil

	case "direct_response":
		text := argString(args, "text")
		if text == "" {
			return fmt.Errorf("direct_response requires text")
		}
		a.surface.DirectResponse(text, draw.TextOptions{
			FontSize:   argInt(args, "font_size"),
			FontFamily: argString(args, "font_family"),
		})
		return nil

	case "create_text_for_box":
		box, ok := argBox(args, "box")
		if !ok {
			return fmt.Errorf("create_text_for_box requires a box object")
		}
		text := argString(args, "text")
		if text == "" {
			return fmt.Errorf("create_text_for_box requires text")
		}
		position := argString(args, "position")
		if position == "" {
			position = "top"
		}
		return a.surface.CreateTextForBox(
			argFloat(args, "time"), box, text, position,
			draw.TextOptions{
				FontSize:   argInt(args, "font_size"),
				FontFamily: argString(args, "font_family"),
				Align:      argString(args, "align"),
			},
			argInt(args, "padding"),
		)

	case "clear_screen":
		a.surface.ClearScreen(argFloat(args, "time"))
		return nil

	case "destroy_box":
		id := argString(args, "box_id")
		if id == "" {
			return fmt.Errorf("destroy_box requires box_id")
		}
		a.surface.DestroyBox(argFloat(args, "time"), id)
		return nil

	case "destroy_text":
		id := argString(args, "text_id")
		if id == "" {
			return fmt.Errorf("destroy_text requires text_id")
		}
		a.surface.DestroyText(argFloat(args, "time"), id)
		return nil

	default:
		return fmt.Errorf("invalid tool: %s", c.Name)
	}
}

func argString(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}

func argFloat(args map[string]any, key string) float64 {
	v, _ := argFloatOK(args, key)
	return v
}

func argFloatOK(args map[string]any, key string) (float64, bool) {
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
	default:
		return 0, false
	}
}

func argInt(args map[string]any, key string) int {
	return int(argFloat(args, key))
}

func argBool(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func argBox(args map[string]any, key string) (draw.Box, bool) {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return draw.Box{}, false
	}
	x, okX := argFloatOK(raw, "x")
	y, okY := argFloatOK(raw, "y")
	w, okW := argFloatOK(raw, "width")
	h, okH := argFloatOK(raw, "height")
	if !okX || !okY || !okW || !okH {
		return draw.Box{}, false
	}
	return draw.Box{X: x, Y: y, Width: w, Height: h}, true
}
