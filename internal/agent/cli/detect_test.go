package cli

import "testing"

func TestIsServerLikeCommand(t *testing.T) {
	serverLike := []string{
		"npm run dev",
		"npm start",
		"pnpm dev",
		"yarn serve",
		"next dev",
		"vite",
		"webpack-dev-server --hot",
		"uvicorn app:app --reload",
		"flask run",
		"python -m http.server 8000",
		"python3 -m http.server",
		"node scripts/server.js",
		"gunicorn app:app",
		"NPM RUN DEV",
	}
	for _, cmd := range serverLike {
		if !isServerLikeCommand(cmd) {
			t.Errorf("isServerLikeCommand(%q) = false, want true", cmd)
		}
	}

	notServerLike := []string{
		"npm install",
		"npm run build",
		"git clone https://github.com/acme/site",
		"ls -la",
		"python script.py",
	}
	for _, cmd := range notServerLike {
		if isServerLikeCommand(cmd) {
			t.Errorf("isServerLikeCommand(%q) = true, want false", cmd)
		}
	}
}

func TestWantsBackground(t *testing.T) {
	yes := []string{
		"start the app on localhost:3000",
		"keep running until I stop it",
		"launch the dev server",
		"run `npm run dev`",
	}
	for _, task := range yes {
		if !wantsBackground(task) {
			t.Errorf("wantsBackground(%q) = false", task)
		}
	}
	if wantsBackground("rename the file to notes.txt") {
		t.Error("plain file task must not read as background intent")
	}
}

func TestIsQuickLaunch(t *testing.T) {
	if !isQuickLaunch("start the dev server on port 3000") {
		t.Error("pure launch task must be a quick launch")
	}
	if isQuickLaunch("clone the repo, install dependencies and start the dev server") {
		t.Error("setup-heavy task must not be a quick launch")
	}
	if isQuickLaunch("rename the file") {
		t.Error("non-server task must not be a quick launch")
	}
}

func TestExtractExplicitCommand(t *testing.T) {
	cases := []struct {
		name string
		task string
		want string
	}{
		{"backtick", "please run `npm run dev` for me", "npm run dev"},
		{"labeled", "set it up\ncommand: uvicorn app:app --port 8000", "uvicorn app:app --port 8000"},
		{"run verb with hint", "run npm start", "npm start"},
		{"run verb without hint", "run the report generator", ""},
		{"no command", "summarize the screen", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractExplicitCommand(tc.task); got != tc.want {
				t.Errorf("extractExplicitCommand(%q) = %q, want %q", tc.task, got, tc.want)
			}
		})
	}
}

func TestLooksLikeRefusal(t *testing.T) {
	refusals := []string{
		"I do not have the ability to run programs on your machine.",
		"I cannot execute that for you, but here is how.",
		"I can however provide you with the commands to do this.",
		"Run this command in your terminal: npm start",
		"I'm unable to execute shell commands.",
	}
	for _, text := range refusals {
		if !looksLikeRefusal(text) {
			t.Errorf("looksLikeRefusal(%q) = false", text)
		}
	}
	if looksLikeRefusal("Created the file and started the server.") {
		t.Error("a completed report must not read as a refusal")
	}
}

func TestClaimsLocalServer(t *testing.T) {
	if !claimsLocalServer("The server is now running on http://localhost:3000") {
		t.Error("running-on-localhost must count as a claim")
	}
	if claimsLocalServer("You can reach localhost:3000 once you start it") {
		t.Error("localhost mention without a running word is not a claim")
	}
	if claimsLocalServer("The cron job is running hourly") {
		t.Error("running without a localhost hint is not a claim")
	}
}
