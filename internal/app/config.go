// Package app wires the leaf components (gateway, search, fetch, governor,
// budget) into one Config/Run pair, generalizing the teacher's single
// OpenAI-only Config/New/Run triple into a multi-provider, env-first
// configuration surface per §6's recognized configuration keys.
package app

import (
	"os"
	"strconv"
	"strings"

	"github.com/hyperifyio/deepresearch/internal/governor"
)

// Config holds process-wide configuration for the research core.
type Config struct {
	// Concurrency governor capacity (CONCURRENCY).
	Concurrency int

	// Metasearch backend.
	SearxURL       string
	SearxKey       string
	SearxEngines   []string
	SearxCategories []string

	// Default model reference ("provider:modelId") when a request omits one.
	DefaultModel string

	// Per-provider credentials. Only configured providers are wired into
	// the gateway; a request naming an unconfigured provider fails with
	// ErrMissingCredential before any network call.
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GoogleAPIKey    string
	XAIAPIKey       string
	XAIBaseURL      string

	// LLMCacheDir, when set, enables the optional on-disk response cache.
	LLMCacheDir string

	// FetchUserAgent is sent on every page fetch and robots.txt lookup.
	FetchUserAgent string

	// AllowPrivateHosts disables the SSRF guard against loopback/private
	// hosts; only ever useful for local integration tests.
	AllowPrivateHosts bool
}

// ApplyEnv populates unset fields of cfg from environment variables.
// Explicit cfg values always take precedence over env, mirroring the
// teacher's ApplyEnvToConfig precedence rule.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Concurrency == 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("CONCURRENCY"))); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
	if cfg.SearxURL == "" {
		v := os.Getenv("SEARX_URL")
		if v == "" {
			v = os.Getenv("SEARXNG_URL")
		}
		cfg.SearxURL = v
	}
	if cfg.SearxKey == "" {
		v := os.Getenv("SEARX_KEY")
		if v == "" {
			v = os.Getenv("SEARXNG_KEY")
		}
		cfg.SearxKey = v
	}
	if len(cfg.SearxEngines) == 0 {
		cfg.SearxEngines = splitCommaEnv("SEARX_ENGINES")
	}
	if len(cfg.SearxCategories) == 0 {
		cfg.SearxCategories = splitCommaEnv("SEARX_CATEGORIES")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = os.Getenv("DEFAULT_MODEL")
	}
	if cfg.AnthropicAPIKey == "" {
		cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.GoogleAPIKey == "" {
		cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.XAIAPIKey == "" {
		cfg.XAIAPIKey = os.Getenv("XAI_API_KEY")
	}
	if cfg.XAIBaseURL == "" {
		cfg.XAIBaseURL = os.Getenv("XAI_BASE_URL")
	}
	if cfg.LLMCacheDir == "" {
		cfg.LLMCacheDir = os.Getenv("LLM_CACHE_DIR")
	}
	if cfg.FetchUserAgent == "" {
		cfg.FetchUserAgent = os.Getenv("FETCH_USER_AGENT")
	}
	if !cfg.AllowPrivateHosts {
		if s := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_PRIVATE_HOSTS"))); s == "1" || s == "true" || s == "yes" {
			cfg.AllowPrivateHosts = true
		}
	}
}

func splitCommaEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func governorCapacity(cfg Config) int {
	if cfg.Concurrency > 0 {
		return cfg.Concurrency
	}
	return governor.DefaultCapacity
}
