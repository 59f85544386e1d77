package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/standardbeagle/clovis/internal/agent"
	"github.com/standardbeagle/clovis/internal/model"
)

func TestExecuteReportsCompletion(t *testing.T) {
	inv := &scriptedInvoker{steps: []model.Result{
		{Calls: []model.Call{call("task_is_complete", "text", "Done.")}},
	}}
	a := newTestAgent(inv, &fakeInput{})

	res, err := a.Execute(context.Background(), "check the screen", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Message != "Task completed" || res.Source != agent.SourceVision {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteMapsCancellationToErrStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newTestAgent(&scriptedInvoker{}, &fakeInput{})
	_, err := a.Execute(ctx, "anything", nil)
	if !errors.Is(err, agent.ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
}

func TestExecuteClearsPreviousStopRequest(t *testing.T) {
	inv := &scriptedInvoker{steps: []model.Result{
		{Calls: []model.Call{call("task_is_complete")}},
	}}
	a := newTestAgent(inv, &fakeInput{})
	a.Stop()

	res, err := a.Execute(context.Background(), "next task", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Errorf("result = %+v", res)
	}
}
