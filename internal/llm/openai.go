package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

// OpenAIArm adapts *openai.Client to the gateway's arm interface using
// function/tool calling to force a structured response, the same mechanism
// the teacher's llmtools package used to encode ToolSpec into openai.Tool.
type OpenAIArm struct {
	Client *openai.Client
}

// NewOpenAI builds an arm from API key and optional base URL, so the same
// arm type serves both api.openai.com and any OpenAI-wire-compatible
// endpoint (xAI's Grok repoints this way; see XAIArm).
func NewOpenAI(apiKey, baseURL string) *OpenAIArm {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIArm{Client: openai.NewClientWithConfig(cfg)}
}

func (a *OpenAIArm) GenerateStructured(ctx context.Context, modelID string, d schema.Descriptor, systemPrompt, userPrompt string, opts Options) ([]byte, budget.Usage, error) {
	req := openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  json.RawMessage(d.Schema),
			},
		}},
		ToolChoice: openai.ToolChoice{Type: openai.ToolTypeFunction, Function: openai.ToolFunction{Name: d.Name}},
	}
	if opts.MaxOutputTokens > 0 {
		req.MaxTokens = opts.MaxOutputTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}

	resp, err := a.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, budget.Usage{}, err
	}
	usage := budget.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, usage, fmt.Errorf("openai: no tool call returned for %s", d.Name)
	}
	call := resp.Choices[0].Message.ToolCalls[0]
	return []byte(call.Function.Arguments), usage, nil
}

// XAIArm reuses the OpenAI wire protocol: Grok is OpenAI-compatible, so the
// arm is just an OpenAIArm pointed at xAI's base URL, mirroring the
// teacher's own LLMBaseURL repoint pattern for OpenAI-compatible backends.
type XAIArm struct {
	*OpenAIArm
}

// NewXAI builds an arm against xAI's OpenAI-compatible endpoint.
func NewXAI(apiKey, baseURL string) *XAIArm {
	if baseURL == "" {
		baseURL = "https://api.x.ai/v1"
	}
	return &XAIArm{OpenAIArm: NewOpenAI(apiKey, baseURL)}
}
