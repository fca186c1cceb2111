// Package llm is the model gateway: a single provider-agnostic entry point,
// GenerateStructured, that every research component calls to get a
// structured JSON object, decoded into the caller's Go type, back from
// whichever backend a "provider:modelId" string names.
//
// It generalizes the teacher's single OpenAI-only Client/ModelLister pair
// (provider.go) into a closed tagged union dispatched on a parsed model
// reference, with one arm per backend wire protocol.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/cache"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

// ErrConfig is returned (wrapped) when a provider arm is requested but was
// never configured with credentials.
var ErrConfig = errors.New("llm: provider not configured")

// ErrSchemaViolation is returned (wrapped) when a provider's structured
// response cannot be JSON-decoded into the caller's destination value.
var ErrSchemaViolation = errors.New("llm: response violates schema")

// Provider identifies which wire protocol a model reference dispatches to.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderXAI       Provider = "xai"
)

// ModelRef is a parsed "provider:modelId" reference, e.g. "anthropic:claude-3-5-sonnet".
type ModelRef struct {
	Provider Provider
	ModelID  string
}

// ParseModelRef splits a "provider:modelId" string. An unknown or missing
// provider prefix is an error: the gateway never guesses a backend.
func ParseModelRef(s string) (ModelRef, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return ModelRef{}, fmt.Errorf("llm: model reference %q must be \"provider:modelId\"", s)
	}
	p := Provider(strings.ToLower(strings.TrimSpace(parts[0])))
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderXAI:
	default:
		return ModelRef{}, fmt.Errorf("llm: unknown provider %q", parts[0])
	}
	return ModelRef{Provider: p, ModelID: strings.TrimSpace(parts[1])}, nil
}

// Options carries call-scoped knobs that do not belong in the schema.
type Options struct {
	MaxOutputTokens int
	Temperature     float64
}

// Gateway dispatches GenerateStructured calls across provider arms.
type Gateway struct {
	arms  map[Provider]Arm
	Cache *cache.LLMCache // optional; nil disables caching
}

// Arm mirrors the teacher's ChatClient interfaces (llmtools, synth, verify):
// the minimal surface a provider backend needs, exported so tests can supply
// a fake arm instead of a live SDK client.
type Arm interface {
	GenerateStructured(ctx context.Context, modelID string, d schema.Descriptor, systemPrompt, userPrompt string, opts Options) (rawJSON []byte, usage budget.Usage, err error)
}

// New builds a Gateway from whichever provider arms the caller has
// credentials for. Passing a nil arm for a provider disables it; calls
// against a disabled provider fail with a clear error rather than a panic.
func New(anthropic, openai, google, xai Arm) *Gateway {
	g := &Gateway{arms: make(map[Provider]Arm, 4)}
	if anthropic != nil {
		g.arms[ProviderAnthropic] = anthropic
	}
	if openai != nil {
		g.arms[ProviderOpenAI] = openai
	}
	if google != nil {
		g.arms[ProviderGoogle] = google
	}
	if xai != nil {
		g.arms[ProviderXAI] = xai
	}
	return g
}

// GenerateStructured resolves model, dispatches to the matching provider
// arm, decodes the structured result into dst (a pointer), and reports token
// usage for the caller to record against its budget.
func (g *Gateway) GenerateStructured(ctx context.Context, model string, d schema.Descriptor, systemPrompt, userPrompt string, opts Options, dst any) (budget.Usage, error) {
	ref, err := ParseModelRef(model)
	if err != nil {
		return budget.Usage{}, err
	}
	a, ok := g.arms[ref.Provider]
	if !ok {
		return budget.Usage{}, fmt.Errorf("%w: %q", ErrConfig, ref.Provider)
	}

	cacheKey := ""
	if g.Cache != nil {
		cacheKey = cache.KeyFrom(string(ref.Provider), ref.ModelID, systemPrompt+"\x00"+userPrompt)
		if raw, ok, _ := g.Cache.Get(ctx, cacheKey); ok {
			if err := schema.Decode(raw, dst); err == nil {
				return budget.Usage{}, nil
			}
		}
	}

	raw, usage, err := a.GenerateStructured(ctx, ref.ModelID, d, systemPrompt, userPrompt, opts)
	if err != nil {
		return usage, fmt.Errorf("llm: %s: generateStructured %s: %w", ref.Provider, d.Name, err)
	}
	if err := schema.Decode(raw, dst); err != nil {
		return usage, fmt.Errorf("%w: %s: %s: %v", ErrSchemaViolation, ref.Provider, d.Name, err)
	}
	if g.Cache != nil {
		_ = g.Cache.Save(ctx, cacheKey, normalizeJSON(raw))
	}
	return usage, nil
}

func normalizeJSON(raw []byte) []byte {
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return b
}
