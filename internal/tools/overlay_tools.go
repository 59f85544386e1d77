package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/clovis/internal/draw"
)

// Surface is the slice of the draw queue exposed to MCP clients.
type Surface interface {
	CreateText(timeS, x, y float64, text string, opt draw.TextOptions)
	DrawBoundingBox(timeS, yMin, xMin, yMax, xMax float64, opt draw.BoxOptions)
	ClearScreen(timeS float64)
}

const mcpSource = "mcp"

// DrawTextInput defines input for the draw_text tool.
type DrawTextInput struct {
	Text     string  `json:"text" jsonschema:"Text to render on the overlay"`
	X        float64 `json:"x" jsonschema:"Horizontal anchor, 0.0 (left) to 1.0 (right)"`
	Y        float64 `json:"y" jsonschema:"Vertical anchor, 0.0 (top) to 1.0 (bottom)"`
	TimeS    float64 `json:"time_s,omitempty" jsonschema:"Seconds to wait before drawing (default 0)"`
	FontSize int     `json:"font_size,omitempty" jsonschema:"Font size in pixels (default 28)"`
}

// DrawBoxInput defines input for the draw_box tool.
type DrawBoxInput struct {
	YMin  float64 `json:"y_min" jsonschema:"Top edge, 0.0 to 1.0"`
	XMin  float64 `json:"x_min" jsonschema:"Left edge, 0.0 to 1.0"`
	YMax  float64 `json:"y_max" jsonschema:"Bottom edge, 0.0 to 1.0"`
	XMax  float64 `json:"x_max" jsonschema:"Right edge, 0.0 to 1.0"`
	ID    string  `json:"id,omitempty" jsonschema:"Box ID for later removal (auto-generated if empty)"`
	TimeS float64 `json:"time_s,omitempty" jsonschema:"Seconds to wait before drawing (default 0)"`
}

// ClearInput defines input for the clear_overlay tool.
type ClearInput struct {
	TimeS float64 `json:"time_s,omitempty" jsonschema:"Seconds to wait before clearing (default 0)"`
}

// DrawOutput is the shared result shape for the overlay tools.
type DrawOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegisterOverlayTools adds overlay drawing MCP tools to the server.
func RegisterOverlayTools(server *mcp.Server, surface Surface) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "draw_text",
		Description: `Draw text on the screen overlay at a normalized position.
Example:
  draw_text {text: "Look here", x: 0.5, y: 0.2}`,
	}, makeDrawTextHandler(surface))

	mcp.AddTool(server, &mcp.Tool{
		Name: "draw_box",
		Description: `Draw a bounding box on the screen overlay using normalized edges.
Example:
  draw_box {y_min: 0.1, x_min: 0.2, y_max: 0.4, x_max: 0.8}`,
	}, makeDrawBoxHandler(surface))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_overlay",
		Description: "Remove every annotation currently on the screen overlay.",
	}, makeClearHandler(surface))
}

func makeDrawTextHandler(surface Surface) func(context.Context, *mcp.CallToolRequest, DrawTextInput) (*mcp.CallToolResult, DrawOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DrawTextInput) (*mcp.CallToolResult, DrawOutput, error) {
		if input.Text == "" {
			return errorResult("text required"), DrawOutput{}, nil
		}
		if err := checkUnit("x", input.X); err != nil {
			return errorResult(err.Error()), DrawOutput{}, nil
		}
		if err := checkUnit("y", input.Y); err != nil {
			return errorResult(err.Error()), DrawOutput{}, nil
		}

		surface.CreateText(input.TimeS, input.X, input.Y, input.Text, draw.TextOptions{
			FontSize: input.FontSize,
			Source:   mcpSource,
		})
		return nil, DrawOutput{
			Success: true,
			Message: fmt.Sprintf("Queued text at (%.2f, %.2f)", input.X, input.Y),
		}, nil
	}
}

func makeDrawBoxHandler(surface Surface) func(context.Context, *mcp.CallToolRequest, DrawBoxInput) (*mcp.CallToolResult, DrawOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DrawBoxInput) (*mcp.CallToolResult, DrawOutput, error) {
		for _, edge := range []struct {
			name  string
			value float64
		}{
			{"y_min", input.YMin},
			{"x_min", input.XMin},
			{"y_max", input.YMax},
			{"x_max", input.XMax},
		} {
			if err := checkUnit(edge.name, edge.value); err != nil {
				return errorResult(err.Error()), DrawOutput{}, nil
			}
		}
		if input.YMax <= input.YMin || input.XMax <= input.XMin {
			return errorResult("box edges must satisfy y_max > y_min and x_max > x_min"), DrawOutput{}, nil
		}

		surface.DrawBoundingBox(input.TimeS, input.YMin, input.XMin, input.YMax, input.XMax, draw.BoxOptions{
			ID: input.ID,
		})
		return nil, DrawOutput{
			Success: true,
			Message: "Queued bounding box",
		}, nil
	}
}

func makeClearHandler(surface Surface) func(context.Context, *mcp.CallToolRequest, ClearInput) (*mcp.CallToolResult, DrawOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ClearInput) (*mcp.CallToolResult, DrawOutput, error) {
		surface.ClearScreen(input.TimeS)
		return nil, DrawOutput{
			Success: true,
			Message: "Cleared overlay annotations",
		}, nil
	}
}

func checkUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0.0 and 1.0", name)
	}
	return nil
}
