package router

import "testing"

func TestFinalizeDirectTextPassthroughWithoutSteps(t *testing.T) {
	got := finalizeDirectText("hello", nil, "Hi there!")
	if got != "Hi there!" {
		t.Errorf("got %q", got)
	}
}

func TestFinalizeDirectTextReplacesRepeatArtifact(t *testing.T) {
	steps := []Step{
		{Success: true, Message: "Cloned the repository."},
		{Success: true, Message: "Started the dev server on port 3000."},
	}
	got := finalizeDirectText("clone and run the repo", steps,
		"The folder was already created. Is there anything else I can help you with?")
	want := "Task completed: Cloned the repository. Then: Started the dev server on port 3000."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFinalizeDirectTextKeepsArtifactWhenRepeatRequested(t *testing.T) {
	steps := []Step{{Success: true, Message: "Created the folder."}}
	text := "That task was already done."
	got := finalizeDirectText("do it again please", steps, text)
	if got != text {
		t.Errorf("got %q", got)
	}
}

func TestFinalizeDirectTextKeepsHonestSummaries(t *testing.T) {
	steps := []Step{{Success: true, Message: "Opened the settings page."}}
	got := finalizeDirectText("open settings", steps, "Settings are now open.")
	if got != "Settings are now open." {
		t.Errorf("got %q", got)
	}
}

func TestSummarizeCompletedSteps(t *testing.T) {
	if got := summarizeCompletedSteps(nil); got != "Task completed." {
		t.Errorf("empty = %q", got)
	}
	if got := summarizeCompletedSteps([]Step{{Success: false, Message: "boom"}}); got != "Task completed." {
		t.Errorf("failures only = %q", got)
	}
	one := []Step{{Success: true, Message: "Installed dependencies."}}
	if got := summarizeCompletedSteps(one); got != "Task completed: Installed dependencies." {
		t.Errorf("one = %q", got)
	}
	three := []Step{
		{Success: true, Message: "first"},
		{Success: true, Message: "second"},
		{Success: true, Message: "third"},
	}
	if got := summarizeCompletedSteps(three); got != "Task completed: second Then: third" {
		t.Errorf("three = %q", got)
	}
}

func TestUserRequestedRepeat(t *testing.T) {
	if !userRequestedRepeat("please rerun the build") {
		t.Error("rerun not detected")
	}
	if userRequestedRepeat("open the settings") {
		t.Error("false positive")
	}
}
