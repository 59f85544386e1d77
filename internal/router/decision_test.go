package router

import (
	"testing"

	"github.com/standardbeagle/clovis/internal/model"
)

func TestDecideMapsToolCalls(t *testing.T) {
	cases := []struct {
		name string
		call model.Call
		want Decision
	}{
		{
			"clovis query",
			model.Call{Name: "invoke_clovis", Args: map[string]any{"query": "what is this?"}},
			Decision{Agent: targetClovis, Task: "what is this?"},
		},
		{
			"browser task",
			model.Call{Name: "invoke_browser", Args: map[string]any{"task": "open example.com"}},
			Decision{Agent: targetBrowser, Task: "open example.com"},
		},
		{
			"cli task",
			model.Call{Name: "invoke_cua_cli", Args: map[string]any{"task": "mkdir demo"}},
			Decision{Agent: targetCLI, Task: "mkdir demo"},
		},
		{
			"vision task",
			model.Call{Name: "invoke_cua_vision", Args: map[string]any{"task": "click save"}},
			Decision{Agent: targetVision, Task: "click save"},
		},
		{
			"screen context with focus",
			model.Call{Name: "request_screen_context", Args: map[string]any{"task": "clone this repo", "focus": "repo URL"}},
			Decision{Agent: targetScreenContext, Task: "clone this repo", Focus: "repo URL"},
		},
		{
			"direct response",
			model.Call{Name: "direct_response", Args: map[string]any{"text": "4", "font_size": 20.0}},
			Decision{Agent: targetDirect, Text: "4", FontSize: 20},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decide(&model.Result{Calls: []model.Call{tc.call}})
			if got != tc.want {
				t.Errorf("decide = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecideNilResultIsInvalidShape(t *testing.T) {
	got := decide(nil)
	if got.Agent != targetDirect || got.Text != "Router returned an invalid response shape." {
		t.Errorf("decide(nil) = %+v", got)
	}
}

func TestDecideFallsBackToText(t *testing.T) {
	got := decide(&model.Result{Text: "plain answer"})
	if got.Agent != targetDirect || got.Text != "plain answer" {
		t.Errorf("decide = %+v", got)
	}
}

func TestDecideSkipsUnknownCalls(t *testing.T) {
	got := decide(&model.Result{Calls: []model.Call{
		{Name: "mystery_tool"},
		{Name: "invoke_cua_cli", Args: map[string]any{"task": "ls"}},
	}})
	if got.Agent != targetCLI || got.Task != "ls" {
		t.Errorf("decide = %+v", got)
	}
}

func TestRouterToolDeclarations(t *testing.T) {
	tools := routerTools()
	if len(tools) != 6 {
		t.Fatalf("tool count = %d", len(tools))
	}
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"direct_response", "invoke_clovis", "invoke_browser",
		"invoke_cua_cli", "invoke_cua_vision", "request_screen_context",
	} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}
