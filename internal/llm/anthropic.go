package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

// AnthropicArm adapts *anthropic.Client to the gateway's arm interface,
// forcing a single tool-use response by passing ToolChoice with the
// descriptor's name, the same "one tool, mandatory choice" shape the OpenAI
// arm uses.
type AnthropicArm struct {
	Client anthropic.Client
}

// NewAnthropic builds an arm from an API key.
func NewAnthropic(apiKey string) *AnthropicArm {
	return &AnthropicArm{Client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (a *AnthropicArm) GenerateStructured(ctx context.Context, modelID string, d schema.Descriptor, systemPrompt, userPrompt string, opts Options) ([]byte, budget.Usage, error) {
	var schemaObj map[string]any
	if err := json.Unmarshal(d.Schema, &schemaObj); err != nil {
		return nil, budget.Usage{}, fmt.Errorf("anthropic: decode schema for %s: %w", d.Name, err)
	}

	maxTokens := int64(opts.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        d.Name,
					Description: anthropic.String(d.Description),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: schemaObj["properties"],
					},
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: d.Name},
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, budget.Usage{}, err
	}
	usage := budget.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	for _, block := range msg.Content {
		if toolUse := block.AsToolUse(); toolUse.Name == d.Name {
			raw, err := json.Marshal(toolUse.Input)
			if err != nil {
				return nil, usage, fmt.Errorf("anthropic: re-marshal tool input for %s: %w", d.Name, err)
			}
			return raw, usage, nil
		}
	}
	return nil, usage, fmt.Errorf("anthropic: no tool_use block returned for %s", d.Name)
}
