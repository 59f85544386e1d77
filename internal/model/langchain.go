package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChain invokes Google and OpenAI models through langchaingo.
type LangChain struct {
	llm   llms.Model
	kind  string
	model string
}

// NewGoogle creates a Gemini invoker. The API key comes from
// GOOGLE_API_KEY or GEMINI_API_KEY.
func NewGoogle(ctx context.Context, model string) (*LangChain, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: google (tried GOOGLE_API_KEY, GEMINI_API_KEY)", ErrNoAPIKey)
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google LLM: %w", err)
	}
	return &LangChain{llm: llm, kind: KindGoogle, model: model}, nil
}

// NewOpenAI creates a GPT invoker. The API key comes from
// OPENAI_API_KEY or OPENAI_KEY.
func NewOpenAI(model string) (*LangChain, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai (tried OPENAI_API_KEY, OPENAI_KEY)", ErrNoAPIKey)
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai LLM: %w", err)
	}
	return &LangChain{llm: llm, kind: KindOpenAI, model: model}, nil
}

func (p *LangChain) Name() string  { return p.kind }
func (p *LangChain) Model() string { return p.model }

func (p *LangChain) Invoke(ctx context.Context, req Request) (*Result, error) {
	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}

	parts := make([]llms.ContentPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, llms.BinaryPart(img.MIME, img.Data))
	}
	if req.Prompt != "" {
		parts = append(parts, llms.TextPart(req.Prompt))
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: parts,
	})

	var opts []llms.CallOption
	if len(req.Tools) > 0 {
		tools := make([]llms.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		opts = append(opts, llms.WithTools(tools))
	}

	resp, err := p.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response choices", ErrProviderError)
	}

	choice := resp.Choices[0]
	res := &Result{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args := map[string]any{}
		if tc.FunctionCall.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%w: tool call args for %s: %v", ErrProviderError, tc.FunctionCall.Name, err)
			}
		}
		res.Calls = append(res.Calls, Call{Name: tc.FunctionCall.Name, Args: args})
	}
	return res, nil
}
