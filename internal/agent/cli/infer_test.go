package cli

import (
	"path/filepath"
	"testing"
)

func shellCall(command string) ToolCall {
	return ToolCall{
		Name:       "run_shell_command",
		Parameters: map[string]any{"command": command},
	}
}

func TestInferServerLaunchTracksCdChain(t *testing.T) {
	calls := []ToolCall{
		shellCall("git clone https://github.com/acme/site"),
		shellCall("cd site && npm install && npm run dev"),
	}
	launch, ok := inferServerLaunch(calls, "/work")
	if !ok {
		t.Fatal("expected a launch candidate")
	}
	if launch.Command != "npm run dev" {
		t.Errorf("command = %q, want the server segment only", launch.Command)
	}
	if launch.Cwd != filepath.Clean("/work/site") {
		t.Errorf("cwd = %q, want /work/site", launch.Cwd)
	}
}

func TestInferServerLaunchCdOnlyThenLaunch(t *testing.T) {
	calls := []ToolCall{
		shellCall("cd apps/web"),
		shellCall("pnpm dev"),
	}
	launch, ok := inferServerLaunch(calls, "/work")
	if !ok {
		t.Fatal("expected a launch candidate")
	}
	if launch.Cwd != filepath.Clean("/work/apps/web") {
		t.Errorf("cwd = %q", launch.Cwd)
	}
	if launch.Command != "pnpm dev" {
		t.Errorf("command = %q", launch.Command)
	}
}

func TestInferServerLaunchSkipsErroredCalls(t *testing.T) {
	calls := []ToolCall{
		{Name: "run_shell_command", Status: "error", Parameters: map[string]any{"command": "npm run dev"}},
	}
	if _, ok := inferServerLaunch(calls, "/work"); ok {
		t.Error("errored calls must not produce a candidate")
	}
}

func TestInferServerLaunchIgnoresNonShellTools(t *testing.T) {
	calls := []ToolCall{
		{Name: "write_file", Parameters: map[string]any{"command": "npm run dev"}},
	}
	if _, ok := inferServerLaunch(calls, "/work"); ok {
		t.Error("non-shell tools must not produce a candidate")
	}
}

func TestInferServerLaunchKeepsLastCandidate(t *testing.T) {
	calls := []ToolCall{
		shellCall("npm run dev"),
		shellCall("cd other && yarn dev"),
	}
	launch, ok := inferServerLaunch(calls, "/work")
	if !ok {
		t.Fatal("expected a launch candidate")
	}
	if launch.Command != "yarn dev" || launch.Cwd != filepath.Clean("/work/other") {
		t.Errorf("launch = %+v, want the later candidate", launch)
	}
}

func TestServerSegmentPicksLastServerLike(t *testing.T) {
	got := serverSegment("npm install && npm run build && npm run dev")
	if got != "npm run dev" {
		t.Errorf("serverSegment = %q", got)
	}
	if got := serverSegment("echo hi"); got != "echo hi" {
		t.Errorf("non-server fallback = %q", got)
	}
}

func TestResolvePath(t *testing.T) {
	if got := resolvePath("sub/dir", "/base"); got != filepath.Clean("/base/sub/dir") {
		t.Errorf("relative = %q", got)
	}
	if got := resolvePath("/abs/path", "/base"); got != filepath.Clean("/abs/path") {
		t.Errorf("absolute = %q", got)
	}
	if got := resolvePath(`"quoted"`, "/base"); got != filepath.Clean("/base/quoted") {
		t.Errorf("quoted = %q", got)
	}
}
