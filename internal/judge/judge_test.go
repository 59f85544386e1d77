package judge

import (
	"strings"
	"testing"
)

func TestParseStrictJSON(t *testing.T) {
	raw := `{"summary":"VS Code with a cloned repo open","repo_url":"https://github.com/acme/site",` +
		`"local_url":"","recommended_agent":"cua_cli","recommended_task":"run npm install","hints":"terminal visible"}`

	got := Parse(raw, "set up the project")
	if got.Summary != "VS Code with a cloned repo open" {
		t.Errorf("summary = %q", got.Summary)
	}
	if got.RecommendedAgent != "cua_cli" {
		t.Errorf("agent = %q", got.RecommendedAgent)
	}
	if got.RecommendedTask != "run npm install" {
		t.Errorf("task = %q", got.RecommendedTask)
	}
}

func TestParseExtractsFromProse(t *testing.T) {
	raw := "Here is the context:\n" +
		`{"summary":"Browser showing docs","recommended_agent":"browser"}` +
		"\nhope that helps"
	got := Parse(raw, "open the docs")
	if got.Summary != "Browser showing docs" {
		t.Errorf("summary = %q", got.Summary)
	}
}

func TestParseDropsUnknownAgent(t *testing.T) {
	raw := `{"summary":"desktop","recommended_agent":"teleport"}`
	if got := Parse(raw, "req"); got.RecommendedAgent != "" {
		t.Errorf("agent = %q, want empty", got.RecommendedAgent)
	}
}

func TestParseDefaultsTaskToUserRequest(t *testing.T) {
	raw := `{"summary":"desktop"}`
	if got := Parse(raw, "  open   spotify "); got.RecommendedTask != "open spotify" {
		t.Errorf("task = %q", got.RecommendedTask)
	}
}

func TestParseSynthesizesSummaryFromRawText(t *testing.T) {
	got := Parse("not json at all, just rambling", "req")
	if got.Summary != "not json at all, just rambling" {
		t.Errorf("summary = %q", got.Summary)
	}
}

func TestParseBoundsLongFields(t *testing.T) {
	long := strings.Repeat("a", 1000)
	raw := `{"summary":"` + long + `"}`
	got := Parse(raw, "req")
	if len(got.Summary) != 420 {
		t.Errorf("summary length = %d, want 420", len(got.Summary))
	}
	if !strings.HasSuffix(got.Summary, "...") {
		t.Error("truncated summary must end with ellipsis")
	}
}

func TestContextMessage(t *testing.T) {
	c := Context{
		Summary:          "Repo page open",
		RepoURL:          "https://github.com/acme/site",
		LocalURL:         "http://localhost:3000",
		RecommendedAgent: "cua_cli",
	}
	msg := c.Message()
	want := "Repo page open (repo=https://github.com/acme/site, local=http://localhost:3000, next=cua_cli)"
	if msg != want {
		t.Errorf("message = %q", msg)
	}

	bare := Context{}.Message()
	if bare != "Screen context captured." {
		t.Errorf("bare message = %q", bare)
	}
}
