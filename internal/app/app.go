package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/cache"
	"github.com/hyperifyio/deepresearch/internal/domain"
	"github.com/hyperifyio/deepresearch/internal/fetch"
	"github.com/hyperifyio/deepresearch/internal/governor"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/report"
	"github.com/hyperifyio/deepresearch/internal/research"
	"github.com/hyperifyio/deepresearch/internal/robots"
	"github.com/hyperifyio/deepresearch/internal/search"
)

// ErrMissingCredential is a ConfigError: the requested or default provider
// has no credential configured. It is fatal and surfaced before any
// network call, per §7's error taxonomy.
var ErrMissingCredential = errors.New("app: missing credential for provider")

// App wires the leaf components once per process and exposes the single
// deepResearch operation.
type App struct {
	cfg      Config
	gateway  *llm.Gateway
	search   search.Provider
	fetch    *fetch.Client
	governor *governor.Semaphore

	anthropicArm, openaiArm, googleArm, xaiArm llm.Arm
}

// New validates configuration and builds the wired App. It never makes a
// network call: a missing metasearch base URL, no provider credential at
// all, a malformed default model, or a default model whose provider has no
// credential fails fast with a ConfigError equivalent.
func New(ctx context.Context, cfg Config) (*App, error) {
	if strings.TrimSpace(cfg.SearxURL) == "" {
		return nil, errors.New("app: SEARX_URL is required")
	}

	var anthropicArm llm.Arm
	if cfg.AnthropicAPIKey != "" {
		anthropicArm = llm.NewAnthropic(cfg.AnthropicAPIKey)
	}
	var openaiArm llm.Arm
	if cfg.OpenAIAPIKey != "" {
		openaiArm = llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	}
	var googleArm llm.Arm
	if cfg.GoogleAPIKey != "" {
		g, err := llm.NewGoogle(ctx, cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("app: configuring google provider: %w", err)
		}
		googleArm = g
	}
	var xaiArm llm.Arm
	if cfg.XAIAPIKey != "" {
		xaiArm = llm.NewXAI(cfg.XAIAPIKey, cfg.XAIBaseURL)
	}
	if anthropicArm == nil && openaiArm == nil && googleArm == nil && xaiArm == nil {
		return nil, fmt.Errorf("%w: no provider credentials configured", ErrMissingCredential)
	}

	gw := llm.New(anthropicArm, openaiArm, googleArm, xaiArm)
	if cfg.LLMCacheDir != "" {
		gw.Cache = &cache.LLMCache{Dir: cfg.LLMCacheDir, StrictPerms: true}
	}

	if cfg.DefaultModel != "" {
		ref, err := llm.ParseModelRef(cfg.DefaultModel)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		if err := checkProviderConfigured(ref.Provider, anthropicArm, openaiArm, googleArm, xaiArm); err != nil {
			return nil, err
		}
	}

	sx := &search.SearxNG{
		BaseURL:    cfg.SearxURL,
		APIKey:     cfg.SearxKey,
		Engines:    cfg.SearxEngines,
		Categories: cfg.SearxCategories,
		UserAgent:  cfg.FetchUserAgent,
	}

	fc := &fetch.Client{
		UserAgent:         cfg.FetchUserAgent,
		MaxAttempts:       2,
		PerRequestTimeout: fetch.DefaultTimeout,
		AllowPrivateHosts: cfg.AllowPrivateHosts,
		Robots:            &robots.Manager{UserAgent: cfg.FetchUserAgent, AllowPrivateHosts: cfg.AllowPrivateHosts},
	}

	return &App{
		cfg:          cfg,
		gateway:      gw,
		search:       sx,
		fetch:        fc,
		governor:     governor.New(governorCapacity(cfg)),
		anthropicArm: anthropicArm,
		openaiArm:    openaiArm,
		googleArm:    googleArm,
		xaiArm:       xaiArm,
	}, nil
}

func checkProviderConfigured(provider llm.Provider, anthropic, openai, google, xai llm.Arm) error {
	switch provider {
	case llm.ProviderAnthropic:
		if anthropic == nil {
			return fmt.Errorf("%w: %s", ErrMissingCredential, provider)
		}
	case llm.ProviderOpenAI:
		if openai == nil {
			return fmt.Errorf("%w: %s", ErrMissingCredential, provider)
		}
	case llm.ProviderGoogle:
		if google == nil {
			return fmt.Errorf("%w: %s", ErrMissingCredential, provider)
		}
	case llm.ProviderXAI:
		if xai == nil {
			return fmt.Errorf("%w: %s", ErrMissingCredential, provider)
		}
	}
	return nil
}

// DeepResearchRequest mirrors the deepResearch tool's external parameters
// (§6).
type DeepResearchRequest struct {
	Query             string
	Depth             int
	Breadth           int
	Model             string
	TokenBudget       int
	SourcePreferences string
}

// Run performs one full deepResearch invocation: research, then report.
// Per the guiding principle in §7, a degraded research phase still
// produces a report — only request and configuration validation (blank
// query, missing credentials, malformed model id) or a failed report call
// returns an error.
func (a *App) Run(ctx context.Context, req DeepResearchRequest) (string, error) {
	if strings.TrimSpace(req.Query) == "" {
		return "", errors.New("app: query is required")
	}
	model := req.Model
	if model == "" {
		model = a.cfg.DefaultModel
	}
	if model == "" {
		return "", fmt.Errorf("%w: no model specified and no default configured", ErrMissingCredential)
	}
	ref, err := llm.ParseModelRef(model)
	if err != nil {
		return "", fmt.Errorf("app: %w", err)
	}
	if err := checkProviderConfigured(ref.Provider, a.anthropicArm, a.openaiArm, a.googleArm, a.xaiArm); err != nil {
		return "", err
	}

	depth := clampRange(req.Depth, 1, 5)
	breadth := clampRange(req.Breadth, 1, 5)

	deps := research.Deps{
		Gateway:  a.gateway,
		Search:   a.search,
		Fetch:    a.fetch,
		Governor: a.governor,
		Budget:   budget.NewState(req.TokenBudget),
		Model:    model,
	}

	result, err := research.Research(ctx, deps, domain.TopicRequest{
		Topic:             req.Query,
		Breadth:           breadth,
		Depth:             depth,
		Model:             model,
		TokenBudget:       req.TokenBudget,
		SourcePreferences: req.SourcePreferences,
	})
	if err != nil {
		return "", fmt.Errorf("app: research: %w", err)
	}

	markdown, _, err := report.Write(ctx, a.gateway, model, req.Query, result.Learnings, result.Sources)
	if err != nil {
		return "", fmt.Errorf("app: report: %w", err)
	}
	return markdown, nil
}

func clampRange(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
