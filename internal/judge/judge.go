// Package judge runs one multimodal pass over a screenshot to extract
// routing context: what is on screen, any visible repo or local URLs,
// and which agent should act next.
package judge

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/memory"
	"github.com/standardbeagle/clovis/internal/model"
)

// Agents the judge may recommend. Anything else is dropped during
// normalization.
var allowedAgents = map[string]struct{}{
	"cua_cli":    {},
	"cua_vision": {},
	"browser":    {},
	"clovis":     {},
	"direct":     {},
}

// Context is the normalized screen context attached to a router
// session.
type Context struct {
	Summary          string `json:"summary"`
	RepoURL          string `json:"repo_url"`
	LocalURL         string `json:"local_url"`
	RecommendedAgent string `json:"recommended_agent"`
	RecommendedTask  string `json:"recommended_task"`
	Hints            string `json:"hints"`
	Model            string `json:"model"`
}

// Message renders the compact one-line summary recorded as the chain
// step outcome.
func (c Context) Message() string {
	summary := memory.Clean(c.Summary, "Screen context captured.", 260)
	var extras []string
	if repo := memory.Clean(c.RepoURL, "", 120); repo != "" {
		extras = append(extras, "repo="+repo)
	}
	if local := memory.Clean(c.LocalURL, "", 120); local != "" {
		extras = append(extras, "local="+local)
	}
	if agent := memory.Clean(c.RecommendedAgent, "", 40); agent != "" {
		extras = append(extras, "next="+agent)
	}
	if len(extras) == 0 {
		return summary
	}
	return fmt.Sprintf("%s (%s)", summary, strings.Join(extras, ", "))
}

// Judge extracts screen context with a single model call.
type Judge struct {
	invoker model.Invoker
	log     zerolog.Logger
	encode  func(image.Image) (model.Image, error)
}

// New creates a judge. encode converts a captured screenshot to a
// model image payload (PNG by default elsewhere).
func New(invoker model.Invoker, encode func(image.Image) (model.Image, error), log zerolog.Logger) *Judge {
	return &Judge{
		invoker: invoker,
		log:     log.With().Str("component", "judge").Logger(),
		encode:  encode,
	}
}

// Generate runs the judge pass. screenshot may be nil when no capture
// is available; the model then reasons from the prompt alone.
func (j *Judge) Generate(ctx context.Context, userRequest, focus string, screenshot image.Image) (Context, error) {
	j.log.Info().Str("focus", focus).Msg("capturing screen context")

	req := model.Request{Prompt: j.prompt(userRequest, focus)}
	if screenshot != nil {
		img, err := j.encode(screenshot)
		if err != nil {
			return Context{}, fmt.Errorf("encode screenshot: %w", err)
		}
		req.Images = []model.Image{img}
	}

	res, err := j.invoker.Invoke(ctx, req)
	if err != nil {
		return Context{}, fmt.Errorf("screen judge: %w", err)
	}

	out := Parse(res.Text, userRequest)
	out.Model = j.invoker.Model()
	return out, nil
}

func (j *Judge) prompt(userRequest, focus string) string {
	focusText := memory.Clean(focus, "", 200)
	if focusText == "" {
		focusText = "general execution context"
	}
	return "You are Screen Judge for a computer-use orchestrator.\n" +
		"Analyze the screenshot and extract only high-signal routing context.\n" +
		"Return JSON ONLY, no markdown.\n\n" +
		"Required JSON schema:\n" +
		"{\n" +
		"  \"summary\": \"short factual summary\",\n" +
		"  \"repo_url\": \"github/git url if visible else empty string\",\n" +
		"  \"local_url\": \"localhost/127.0.0.1 URL if visible else empty string\",\n" +
		"  \"recommended_agent\": \"cua_cli|cua_vision|browser|clovis|direct\",\n" +
		"  \"recommended_task\": \"single concrete next step task\",\n" +
		"  \"hints\": \"short extra details useful for routing\"\n" +
		"}\n\n" +
		"User request: " + userRequest + "\n" +
		"Extraction focus: " + focusText + "\n" +
		"Do not invent URLs. If uncertain, leave fields empty."
}

// Parse decodes and normalizes a raw judge response. A summary is
// always present: if the model supplied none, the raw text stands in.
func Parse(raw, userRequest string) Context {
	var payload Context
	// Best effort: a failed parse leaves the zero value and the raw
	// text becomes the summary below.
	_ = model.DecodeLooseJSON(raw, &payload)

	agent := strings.ToLower(strings.TrimSpace(payload.RecommendedAgent))
	if _, ok := allowedAgents[agent]; !ok {
		agent = ""
	}

	task := memory.Clean(payload.RecommendedTask, "", 420)
	if task == "" {
		task = memory.Clean(userRequest, "", 420)
	}

	out := Context{
		Summary:          memory.Clean(payload.Summary, "", 420),
		RepoURL:          memory.Clean(payload.RepoURL, "", 420),
		LocalURL:         memory.Clean(payload.LocalURL, "", 420),
		RecommendedAgent: agent,
		RecommendedTask:  task,
		Hints:            memory.Clean(payload.Hints, "", 420),
	}
	if out.Summary == "" {
		out.Summary = memory.Clean(raw, "Screen context captured.", 420)
	}
	return out
}
