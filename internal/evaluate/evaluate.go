// Package evaluate is the Reliability Evaluator: one batched model call per
// SERP query that scores every fetched source's reliability and decides
// whether to use it at all. It generalizes the teacher's verify package —
// a single secondary model pass with a deterministic fallback guaranteeing
// progress — into a per-source scoring batch instead of a whole-report
// claim extraction.
package evaluate

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

// maxSnippetTokens bounds how much of each fetched source's body is shown to
// the evaluator, keeping one batch call's prompt bounded regardless of how
// large the underlying pages were.
const maxSnippetTokens = 3000

// fallbackReasoning is returned verbatim whenever the gateway call fails or
// returns a malformed batch, matching spec.md's exact degraded-mode wording.
const fallbackReasoning = "Evaluation failed"

// Source is one fetched page awaiting reliability evaluation.
type Source struct {
	URL     string
	Title   string
	Domain  string
	Snippet string // raw markdown body; trimmed to maxSnippetTokens before prompting
}

// Evaluation is the per-source reliability verdict.
type Evaluation struct {
	URL              string
	Score            float64
	Reasoning        string
	Use              bool
	PreferenceReason string
}

var batchSchema = schema.Object("reliabilityBatch",
	"Score the reliability of each numbered source and decide whether to use it.",
	map[string]any{
		"evaluations": schema.ArrayOf("one entry per source, in the same order as given", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"index":            schema.Integer("0-based index matching the source's position in the prompt"),
				"score":            schema.Number("reliability score from 0 (unreliable) to 1 (highly reliable)"),
				"reasoning":        schema.String("one or two sentences justifying the score"),
				"use":              schema.Boolean("whether this source should be used at all, independent of its score"),
				"preferenceReason": schema.String("if the user's source preferences affected this verdict, say how; empty otherwise"),
			},
			"required": []string{"index", "score", "reasoning", "use"},
		}),
	},
	[]string{"evaluations"},
)

type batchEntry struct {
	Index            int     `json:"index"`
	Score            float64 `json:"score"`
	Reasoning        string  `json:"reasoning"`
	Use              bool    `json:"use"`
	PreferenceReason string  `json:"preferenceReason"`
}

type batchResponse struct {
	Evaluations []batchEntry `json:"evaluations"`
}

// Batch scores every source fetched for one SERP query in a single gateway
// call. On any gateway or schema failure the whole batch falls back to
// score=0.5, use=true — the evaluator must never stall the research loop,
// so an unscorable batch is treated as uniformly marginal rather than
// dropped.
func Batch(ctx context.Context, gw *llm.Gateway, model string, query, researchGoal, sourcePreferences string, sources []Source) ([]Evaluation, budget.Usage) {
	if len(sources) == 0 {
		return nil, budget.Usage{}
	}

	sys := "You assess the reliability of sources gathered for a research query. Weigh primary sources, official statistics, peer-reviewed or well-established outlets above unattributed blogs, forums, or marketing pages. A source can be relevant yet unreliable, or reliable yet off-topic; score and use are independent judgments."
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)
	if strings.TrimSpace(researchGoal) != "" {
		fmt.Fprintf(&b, "Research goal: %s\n", researchGoal)
	}
	if strings.TrimSpace(sourcePreferences) != "" {
		fmt.Fprintf(&b, "User source preferences: %s\n", sourcePreferences)
	}
	b.WriteString("\nSources:\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n%s\n\n", i, s.Title, s.Domain, s.URL, budget.TrimToTokens(s.Snippet, maxSnippetTokens))
	}

	var resp batchResponse
	usage, err := gw.GenerateStructured(ctx, model, batchSchema, sys, b.String(), llm.Options{MaxOutputTokens: 4000}, &resp)
	if err != nil || len(resp.Evaluations) == 0 {
		return fallbackAll(sources), usage
	}

	out := make([]Evaluation, len(sources))
	seen := make([]bool, len(sources))
	for _, e := range resp.Evaluations {
		if e.Index < 0 || e.Index >= len(sources) {
			continue
		}
		score := e.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		out[e.Index] = Evaluation{
			URL:              sources[e.Index].URL,
			Score:            score,
			Reasoning:        e.Reasoning,
			Use:              e.Use,
			PreferenceReason: e.PreferenceReason,
		}
		seen[e.Index] = true
	}
	// Any source the model's batch omitted still needs a verdict: fall back
	// for that index alone rather than failing sources the model did score.
	for i, ok := range seen {
		if !ok {
			out[i] = fallbackOne(sources[i])
		}
	}
	return out, usage
}

func fallbackAll(sources []Source) []Evaluation {
	out := make([]Evaluation, len(sources))
	for i, s := range sources {
		out[i] = fallbackOne(s)
	}
	return out
}

func fallbackOne(s Source) Evaluation {
	return Evaluation{URL: s.URL, Score: 0.5, Reasoning: fallbackReasoning, Use: true}
}
