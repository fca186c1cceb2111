package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

// GoogleArm adapts *genai.Client to the gateway's arm interface using
// Gemini's native JSON response-schema mode rather than tool calling: the
// descriptor's schema is handed to GenerationConfig.ResponseSchema and the
// model is told to emit application/json directly.
type GoogleArm struct {
	Client *genai.Client
}

// NewGoogle builds an arm from an API key.
func NewGoogle(ctx context.Context, apiKey string) (*GoogleArm, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("google: new client: %w", err)
	}
	return &GoogleArm{Client: client}, nil
}

func (a *GoogleArm) GenerateStructured(ctx context.Context, modelID string, d schema.Descriptor, systemPrompt, userPrompt string, opts Options) ([]byte, budget.Usage, error) {
	// genai.Schema mirrors a subset of JSON schema; rebuild it from the raw
	// descriptor so callers still author schemas once, in the shared
	// internal/schema vocabulary.
	responseSchema := rawJSONSchemaToGenai(d.Schema)
	if responseSchema == nil {
		return nil, budget.Usage{}, fmt.Errorf("google: invalid schema for %s", d.Name)
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema,
	}
	if opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		cfg.Temperature = &t
	}

	resp, err := a.Client.Models.GenerateContent(ctx, modelID, genai.Text(userPrompt), cfg)
	if err != nil {
		return nil, budget.Usage{}, err
	}
	usage := budget.Usage{}
	if resp.UsageMetadata != nil {
		usage = budget.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	text := resp.Text()
	if text == "" {
		return nil, usage, fmt.Errorf("google: empty response for %s", d.Name)
	}
	return []byte(text), usage, nil
}

// rawJSONSchemaToGenai converts the shared JSON-schema descriptor shape
// (type/properties/required) into genai's native Schema struct. Unsupported
// keywords are dropped; the Model Gateway's schemas intentionally stay
// within this simple subset for exactly this reason.
func rawJSONSchemaToGenai(raw json.RawMessage) *genai.Schema {
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return convertSchemaNode(m)
}

func convertSchemaNode(m map[string]any) *genai.Schema {
	s := &genai.Schema{}
	switch m["type"] {
	case "object":
		s.Type = genai.TypeObject
		props, _ := m["properties"].(map[string]any)
		if len(props) > 0 {
			s.Properties = map[string]*genai.Schema{}
			for k, v := range props {
				if vm, ok := v.(map[string]any); ok {
					s.Properties[k] = convertSchemaNode(vm)
				}
			}
		}
		for _, r := range toStringSlice(m["required"]) {
			s.Required = append(s.Required, r)
		}
	case "array":
		s.Type = genai.TypeArray
		if items, ok := m["items"].(map[string]any); ok {
			s.Items = convertSchemaNode(items)
		}
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	}
	if desc, ok := m["description"].(string); ok {
		s.Description = desc
	}
	return s
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
