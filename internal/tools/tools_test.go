package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/clovis/internal/draw"
	"github.com/standardbeagle/clovis/internal/process"
)

type fakeTable struct {
	procs    []process.Managed
	started  []string
	startErr error
	stopped  []string
	stopErr  error
	flushed  int
}

func (f *fakeTable) Start(_ context.Context, command string, _ []string, workingDir, task string) (*process.Managed, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, command)
	return &process.Managed{
		ID:      "deadbeef",
		PID:     1234,
		Command: command,
		Cwd:     workingDir,
		Task:    task,
		LogPath: "/tmp/clovis_cli_bg_deadbeef.log",
	}, nil
}

func (f *fakeTable) List() []process.Managed { return f.procs }
func (f *fakeTable) Stop(id string) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, id)
	return nil
}
func (f *fakeTable) StopAll() int { return f.flushed }

type recorder struct {
	ops []string
}

func (r *recorder) CreateText(timeS, x, y float64, text string, opt draw.TextOptions) {
	r.ops = append(r.ops, fmt.Sprintf("text@%.1f:%s(%.2f,%.2f)", timeS, text, x, y))
}

func (r *recorder) DrawBoundingBox(timeS, yMin, xMin, yMax, xMax float64, opt draw.BoxOptions) {
	r.ops = append(r.ops, fmt.Sprintf("box@%.1f:%s(%.2f,%.2f,%.2f,%.2f)", timeS, opt.ID, yMin, xMin, yMax, xMax))
}

func (r *recorder) ClearScreen(timeS float64) {
	r.ops = append(r.ops, fmt.Sprintf("clear@%.1f", timeS))
}

func TestProcRun(t *testing.T) {
	table := &fakeTable{}
	handler := makeProcHandler(table)

	res, out, err := handler(context.Background(), nil, ProcInput{
		Action:  "run",
		Command: "npm run dev",
		Task:    "start the dev server on port 3000",
	})
	require.NoError(t, err)
	require.Nil(t, res)
	assert.True(t, out.Success)
	assert.Equal(t, "deadbeef", out.ProcessID)
	assert.Equal(t, 1234, out.PID)
	assert.Equal(t, []string{"npm run dev"}, table.started)
}

func TestProcRunRequiresCommand(t *testing.T) {
	handler := makeProcHandler(&fakeTable{})
	res, _, err := handler(context.Background(), nil, ProcInput{Action: "run"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}

func TestProcRunReportsStartFailure(t *testing.T) {
	handler := makeProcHandler(&fakeTable{startErr: errors.New("no shell")})
	res, _, err := handler(context.Background(), nil, ProcInput{Action: "run", Command: "npm run dev"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}

func TestProcList(t *testing.T) {
	table := &fakeTable{procs: []process.Managed{
		{
			ID:         "a1b2c3d4",
			PID:        4242,
			Command:    "npm run dev",
			Task:       "start the dev server",
			LogPath:    "/tmp/clovis_cli_bg_a1b2c3d4.log",
			ActivePort: 3000,
			StartedAt:  time.Now().Add(-90 * time.Second),
		},
	}}
	handler := makeProcHandler(table)

	res, out, err := handler(context.Background(), nil, ProcInput{Action: "list"})
	require.NoError(t, err)
	require.Nil(t, res)
	require.Equal(t, 1, out.Count)
	require.Len(t, out.Processes, 1)

	p := out.Processes[0]
	assert.Equal(t, "a1b2c3d4", p.ID)
	assert.Equal(t, 4242, p.PID)
	assert.Equal(t, 3000, p.ActivePort)
	assert.Equal(t, "1.5m", p.Runtime)
}

func TestProcStop(t *testing.T) {
	table := &fakeTable{}
	handler := makeProcHandler(table)

	res, out, err := handler(context.Background(), nil, ProcInput{Action: "stop", ProcessID: "a1b2c3d4"})
	require.NoError(t, err)
	require.Nil(t, res)
	assert.True(t, out.Success)
	assert.Equal(t, []string{"a1b2c3d4"}, table.stopped)
}

func TestProcStopRequiresID(t *testing.T) {
	handler := makeProcHandler(&fakeTable{})
	res, _, err := handler(context.Background(), nil, ProcInput{Action: "stop"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}

func TestProcStopUnknownProcess(t *testing.T) {
	handler := makeProcHandler(&fakeTable{stopErr: process.ErrProcessNotFound})
	res, _, err := handler(context.Background(), nil, ProcInput{Action: "stop", ProcessID: "missing"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}

func TestProcStopAll(t *testing.T) {
	handler := makeProcHandler(&fakeTable{flushed: 3})
	res, out, err := handler(context.Background(), nil, ProcInput{Action: "stop_all"})
	require.NoError(t, err)
	require.Nil(t, res)
	assert.True(t, out.Success)
	assert.Equal(t, 3, out.Stopped)
}

func TestProcUnknownAction(t *testing.T) {
	handler := makeProcHandler(&fakeTable{})
	res, _, err := handler(context.Background(), nil, ProcInput{Action: "restart"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}

func TestDrawText(t *testing.T) {
	rec := &recorder{}
	handler := makeDrawTextHandler(rec)

	res, out, err := handler(context.Background(), nil, DrawTextInput{
		Text: "Look here", X: 0.5, Y: 0.2, TimeS: 1.5,
	})
	require.NoError(t, err)
	require.Nil(t, res)
	assert.True(t, out.Success)
	assert.Equal(t, []string{"text@1.5:Look here(0.50,0.20)"}, rec.ops)
}

func TestDrawTextValidatesInput(t *testing.T) {
	rec := &recorder{}
	handler := makeDrawTextHandler(rec)

	cases := []DrawTextInput{
		{X: 0.5, Y: 0.5},
		{Text: "hi", X: 1.5, Y: 0.5},
		{Text: "hi", X: 0.5, Y: -0.1},
	}
	for i, input := range cases {
		res, _, err := handler(context.Background(), nil, input)
		require.NoError(t, err)
		require.NotNil(t, res, "case %d", i)
		assert.True(t, res.IsError, "case %d", i)
	}
	assert.Empty(t, rec.ops)
}

func TestDrawBox(t *testing.T) {
	rec := &recorder{}
	handler := makeDrawBoxHandler(rec)

	res, out, err := handler(context.Background(), nil, DrawBoxInput{
		YMin: 0.1, XMin: 0.2, YMax: 0.4, XMax: 0.8, ID: "box_1",
	})
	require.NoError(t, err)
	require.Nil(t, res)
	assert.True(t, out.Success)
	assert.Equal(t, []string{"box@0.0:box_1(0.10,0.20,0.40,0.80)"}, rec.ops)
}

func TestDrawBoxRejectsInvertedEdges(t *testing.T) {
	rec := &recorder{}
	handler := makeDrawBoxHandler(rec)

	res, _, err := handler(context.Background(), nil, DrawBoxInput{
		YMin: 0.4, XMin: 0.2, YMax: 0.1, XMax: 0.8,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
	assert.Empty(t, rec.ops)
}

func TestClearOverlay(t *testing.T) {
	rec := &recorder{}
	handler := makeClearHandler(rec)

	res, out, err := handler(context.Background(), nil, ClearInput{TimeS: 0.5})
	require.NoError(t, err)
	require.Nil(t, res)
	assert.True(t, out.Success)
	assert.Equal(t, []string{"clear@0.5"}, rec.ops)
}

func TestFormatRuntime(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{12 * time.Second, "12.0s"},
		{90 * time.Second, "1.5m"},
		{2 * time.Hour, "2.0h"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, formatRuntime(c.d))
	}
}
