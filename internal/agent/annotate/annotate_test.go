package annotate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/agent"
	"github.com/standardbeagle/clovis/internal/draw"
	"github.com/standardbeagle/clovis/internal/model"
)

// recorder captures surface calls as compact op strings.
type recorder struct {
	ops       []string
	modelName string
	boxErr    error
}

func (r *recorder) CreateText(timeS, x, y float64, text string, opt draw.TextOptions) {
	r.ops = append(r.ops, fmt.Sprintf("text@%.1f:%s(%.0f,%.0f)", timeS, text, x, y))
}

func (r *recorder) DirectResponse(text string, _ draw.TextOptions) {
	r.ops = append(r.ops, "direct:"+text)
}

func (r *recorder) CreateTextForBox(timeS float64, _ draw.Box, text, position string, _ draw.TextOptions, _ int) error {
	if r.boxErr != nil {
		return r.boxErr
	}
	r.ops = append(r.ops, fmt.Sprintf("textforbox@%.1f:%s:%s", timeS, position, text))
	return nil
}

func (r *recorder) DrawBoundingBox(timeS, yMin, xMin, yMax, xMax float64, opt draw.BoxOptions) {
	r.ops = append(r.ops, fmt.Sprintf("box@%.1f:%s(%.0f,%.0f,%.0f,%.0f)", timeS, opt.ID, yMin, xMin, yMax, xMax))
}

func (r *recorder) DrawPointerToObject(timeS, x, y float64, text string, textX, textY float64, _ draw.PointerOptions) {
	r.ops = append(r.ops, fmt.Sprintf("pointer@%.1f:%s(%.0f,%.0f)->(%.0f,%.0f)", timeS, text, x, y, textX, textY))
}

func (r *recorder) DestroyBox(timeS float64, boxID string) {
	r.ops = append(r.ops, fmt.Sprintf("rmbox@%.1f:%s", timeS, boxID))
}

func (r *recorder) DestroyText(timeS float64, textID string) {
	r.ops = append(r.ops, fmt.Sprintf("rmtext@%.1f:%s", timeS, textID))
}

func (r *recorder) ClearScreen(timeS float64) {
	r.ops = append(r.ops, fmt.Sprintf("clear@%.1f", timeS))
}

func (r *recorder) SetModelName(name string) { r.modelName = name }

// stubInvoker returns a fixed result and records the last request.
type stubInvoker struct {
	res  model.Result
	err  error
	last model.Request
}

func (s *stubInvoker) Name() string  { return "fake" }
func (s *stubInvoker) Model() string { return "fake-annotator" }
func (s *stubInvoker) Invoke(_ context.Context, req model.Request) (*model.Result, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &s.res, nil
}

func call(name string, kv ...any) model.Call {
	args := map[string]any{}
	for i := 0; i+1 < len(kv); i += 2 {
		args[kv[i].(string)] = kv[i+1]
	}
	return model.Call{Name: name, Args: args}
}

func newTestAgent(inv model.Invoker, rec *recorder, capture Screenshot) *Agent {
	return New(inv, rec, capture, nil, zerolog.Nop())
}

func TestExecuteDispatchesTimedAnnotations(t *testing.T) {
	inv := &stubInvoker{res: model.Result{Calls: []model.Call{
		call("draw_bounding_box", "time", 0.2, "y_min", 120.0, "x_min", 180.0, "y_max", 420.0, "x_max", 620.0, "box_id", "box_1"),
		call("create_text", "time", 0.2, "x", 180.0, "y", 110.0, "text", "Search bar"),
		call("destroy_box", "time", 2.3, "box_id", "box_1"),
	}}}
	rec := &recorder{}

	res, err := newTestAgent(inv, rec, nil).Execute(context.Background(), "what is this?", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Source != agent.SourceClovis {
		t.Errorf("result = %+v", res)
	}
	if res.Message != fallbackMessage {
		t.Errorf("message = %q", res.Message)
	}
	want := []string{
		"box@0.2:box_1(120,180,420,620)",
		"text@0.2:Search bar(180,110)",
		"rmbox@2.3:box_1",
	}
	if len(rec.ops) != len(want) {
		t.Fatalf("ops = %v", rec.ops)
	}
	for i := range want {
		if rec.ops[i] != want[i] {
			t.Errorf("op[%d] = %q, want %q", i, rec.ops[i], want[i])
		}
	}
	if rec.modelName != "fake-annotator" {
		t.Errorf("model name = %q", rec.modelName)
	}
}

func TestExecuteDirectResponseBecomesSummary(t *testing.T) {
	inv := &stubInvoker{res: model.Result{Calls: []model.Call{
		call("direct_response", "text", "Nothing on screen needs annotating."),
	}}}
	rec := &recorder{}

	res, err := newTestAgent(inv, rec, nil).Execute(context.Background(), "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != "Nothing on screen needs annotating." {
		t.Errorf("message = %q", res.Message)
	}
	if len(rec.ops) != 1 || rec.ops[0] != "direct:Nothing on screen needs annotating." {
		t.Errorf("ops = %v", rec.ops)
	}
}

func TestExecutePlainTextBecomesSummary(t *testing.T) {
	inv := &stubInvoker{res: model.Result{Text: "The page shows a login form."}}
	res, err := newTestAgent(inv, &recorder{}, nil).Execute(context.Background(), "explain", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Message != "The page shows a login form." {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteInvalidToolFails(t *testing.T) {
	inv := &stubInvoker{res: model.Result{Calls: []model.Call{
		call("launch_rocket", "time", 0.0),
	}}}
	res, err := newTestAgent(inv, &recorder{}, nil).Execute(context.Background(), "explain", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Error("expected a failed result")
	}
	if res.Message != "invalid tool: launch_rocket" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestExecuteModelErrorFailsResult(t *testing.T) {
	inv := &stubInvoker{err: errors.New("quota exceeded")}
	res, err := newTestAgent(inv, &recorder{}, nil).Execute(context.Background(), "explain", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Message != "quota exceeded" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteMapsCancellationToErrStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv := &stubInvoker{err: ctx.Err()}

	_, err := newTestAgent(inv, &recorder{}, nil).Execute(ctx, "explain", nil)
	if !errors.Is(err, agent.ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
}

func TestExecuteAttachesScreenshot(t *testing.T) {
	inv := &stubInvoker{res: model.Result{Text: "ok"}}
	capture := func() (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
	}

	if _, err := newTestAgent(inv, &recorder{}, capture).Execute(context.Background(), "explain", nil); err != nil {
		t.Fatal(err)
	}
	if len(inv.last.Images) != 1 || inv.last.Images[0].MIME != "image/png" {
		t.Errorf("images = %+v", inv.last.Images)
	}
	if inv.last.Prompt == "" || len(inv.last.Tools) != 8 {
		t.Errorf("prompt/tools not set: %d tools", len(inv.last.Tools))
	}
}

func TestExecuteToleratesCaptureFailure(t *testing.T) {
	inv := &stubInvoker{res: model.Result{Text: "ok"}}
	capture := func() (image.Image, error) { return nil, errors.New("no display") }

	res, err := newTestAgent(inv, &recorder{}, capture).Execute(context.Background(), "explain", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Errorf("result = %+v", res)
	}
	if len(inv.last.Images) != 0 {
		t.Errorf("images = %+v", inv.last.Images)
	}
}
