package annotate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/standardbeagle/clovis/internal/model"
)

func TestDispatchPointerAndBoxLabel(t *testing.T) {
	inv := &stubInvoker{res: model.Result{Calls: []model.Call{
		call("draw_pointer_to_object",
			"time", 0.5, "x_pos", 150.0, "y_pos", 200.0,
			"text", "This is the sidebar", "text_x", 300.0, "text_y", 180.0),
		call("create_text_for_box",
			"time", 0.8,
			"box", map[string]any{"x": 180.0, "y": 120.0, "width": 440.0, "height": 300.0},
			"text", "Main content", "position", "bottom"),
		call("clear_screen", "time", 4.0),
	}}}
	rec := &recorder{}

	res, err := newTestAgent(inv, rec, nil).Execute(context.Background(), "explain the layout", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	want := []string{
		"pointer@0.5:This is the sidebar(150,200)->(300,180)",
		"textforbox@0.8:bottom:Main content",
		"clear@4.0",
	}
	for i := range want {
		if rec.ops[i] != want[i] {
			t.Errorf("op[%d] = %q, want %q", i, rec.ops[i], want[i])
		}
	}
}

func TestDispatchRequiresToolArguments(t *testing.T) {
	cases := []struct {
		name string
		c    model.Call
	}{
		{"bounding box without edges", call("draw_bounding_box", "time", 0.0)},
		{"text without content", call("create_text", "time", 0.0, "x", 1.0, "y", 1.0)},
		{"box label without box", call("create_text_for_box", "time", 0.0, "text", "hi")},
		{"destroy box without id", call("destroy_box", "time", 0.0)},
		{"destroy text without id", call("destroy_text", "time", 0.0)},
		{"pointer without text", call("draw_pointer_to_object", "time", 0.0, "x_pos", 1.0, "y_pos", 1.0)},
	}
	a := newTestAgent(&stubInvoker{}, &recorder{}, nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := a.dispatch(tc.c); err == nil {
				t.Error("expected an argument error")
			}
		})
	}
}

func TestArgFloatAcceptsNumericShapes(t *testing.T) {
	args := map[string]any{
		"f64": 1.5,
		"i":   int(2),
		"i64": int64(3),
		"num": json.Number("4.5"),
		"str": "5.5",
		"bad": "not a number",
	}
	for key, want := range map[string]float64{"f64": 1.5, "i": 2, "i64": 3, "num": 4.5, "str": 5.5} {
		if got, ok := argFloatOK(args, key); !ok || got != want {
			t.Errorf("argFloatOK(%q) = %v, %v", key, got, ok)
		}
	}
	if _, ok := argFloatOK(args, "bad"); ok {
		t.Error("non-numeric string parsed")
	}
	if _, ok := argFloatOK(args, "missing"); ok {
		t.Error("missing key parsed")
	}
}

func TestArgBox(t *testing.T) {
	box, ok := argBox(map[string]any{"box": map[string]any{
		"x": 10.0, "y": 20.0, "width": 30.0, "height": 40.0,
	}}, "box")
	if !ok || box.X != 10 || box.Y != 20 || box.Width != 30 || box.Height != 40 {
		t.Errorf("box = %+v, ok = %v", box, ok)
	}

	if _, ok := argBox(map[string]any{"box": map[string]any{"x": 1.0}}, "box"); ok {
		t.Error("partial box accepted")
	}
	if _, ok := argBox(map[string]any{}, "box"); ok {
		t.Error("missing box accepted")
	}
}

func TestAnnotationToolDeclarations(t *testing.T) {
	tools := annotationTools()
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
		if tool.Parameters["type"] != "object" {
			t.Errorf("%s: parameters are not an object schema", tool.Name)
		}
	}
	for _, want := range []string{
		"draw_bounding_box", "draw_pointer_to_object", "create_text",
		"direct_response", "create_text_for_box", "clear_screen",
		"destroy_box", "destroy_text",
	} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}
