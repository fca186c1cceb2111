// Package extract is the Learning Extractor: one model call per SERP query
// over the sources that survived reliability evaluation, producing a small
// set of weighted learnings, follow-up research directions, and a source
// quality summary. It follows the teacher's synth package's call shape
// (single structured prompt built from numbered source excerpts) but
// targets bite-sized learnings and follow-ups rather than a whole report.
package extract

import (
	"fmt"
	"sort"
	"strings"

	"context"

	"time"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/domain"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

// maxBodyTokens bounds how much of each survivor's body is shown per
// source, keeping the extractor's single call bounded regardless of page size.
const maxBodyTokens = 25000

// DefaultTimeout is the extractor's wall-clock deadline. On expiry the
// orchestrator keeps the query's evaluated sources but takes no learnings
// or follow-ups from it, and does not abort siblings.
const DefaultTimeout = 60 * time.Second

// defaultNumLearnings is used when the caller does not override it.
const defaultNumLearnings = 3

// Survivor is one evaluated source that cleared the query's reliability
// threshold and is eligible for extraction.
type Survivor struct {
	URL         string
	Title       string
	Domain      string
	Body        string
	Reliability float64
}

// Result is the extractor's output for one SERP query.
type Result struct {
	Learnings     []domain.WeightedLearning
	FollowUps     []domain.ResearchDirection
	SourceSummary string
}

var extractSchema = schema.Object("learningExtraction",
	"Extract the most important learnings from these sources, propose follow-up research directions, and summarize source quality.",
	map[string]any{
		"learnings": schema.ArrayOf("the most important, most information-dense facts found, each standalone and verifiable", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content":           schema.String("a single self-contained factual statement"),
				"confidence":        schema.Number("confidence that this learning is accurate, from 0 to 1"),
				"supportingDomains": schema.ArrayOf("domains of the sources that support this learning", map[string]any{"type": "string"}),
			},
			"required": []string{"content", "confidence", "supportingDomains"},
		}),
		"followUps": schema.ArrayOf("open questions worth a deeper, more specific follow-up search", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question":     schema.String("a specific, narrower question a follow-up search could answer"),
				"priority":     schema.Integer("relative importance; higher runs first"),
				"justification": schema.String("why this follow-up matters given what was found"),
			},
			"required": []string{"question", "priority", "justification"},
		}),
		"sourceSummary": schema.String("one paragraph assessing the overall quality and diversity of the sources used"),
	},
	[]string{"learnings", "followUps", "sourceSummary"},
)

type learningJSON struct {
	Content           string   `json:"content"`
	Confidence        float64  `json:"confidence"`
	SupportingDomains []string `json:"supportingDomains"`
}

type followUpJSON struct {
	Question      string `json:"question"`
	Priority      int    `json:"priority"`
	Justification string `json:"justification"`
}

type responseJSON struct {
	Learnings     []learningJSON `json:"learnings"`
	FollowUps     []followUpJSON `json:"followUps"`
	SourceSummary string         `json:"sourceSummary"`
}

// Options configures one extraction call.
type Options struct {
	NumLearnings int // 0 means defaultNumLearnings
	MaxFollowUps int // 0 means no cap
	Goal         string
}

// Extract runs the learning extractor over survivors for one query. It
// pre-sorts survivors by descending reliability so a model that silently
// truncates long prompts still sees the strongest sources first. An empty
// survivors slice is a no-op (nothing cleared the threshold for this
// query), returning a zero Result without a gateway call.
func Extract(ctx context.Context, gw *llm.Gateway, model string, query string, opts Options, survivors []Survivor) (Result, budget.Usage, error) {
	if len(survivors) == 0 {
		return Result{}, budget.Usage{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	numLearnings := opts.NumLearnings
	if numLearnings <= 0 {
		numLearnings = defaultNumLearnings
	}

	sorted := make([]Survivor, len(survivors))
	copy(sorted, survivors)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Reliability > sorted[j].Reliability })

	sys := fmt.Sprintf("You extract learnings from research sources. Produce at most %d learnings, each a dense, standalone, verifiable statement — no filler, no hedging, no meta-commentary. Propose follow-up questions only when the sources leave a genuine gap.", numLearnings)

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)
	if strings.TrimSpace(opts.Goal) != "" {
		fmt.Fprintf(&b, "Research goal: %s\n", opts.Goal)
	}
	b.WriteString("\nSources:\n")
	for i, s := range sorted {
		fmt.Fprintf(&b, "[%d] %s (%s) reliability=%.2f\n%s\n\n", i, s.Title, s.Domain, s.Reliability, budget.TrimToTokens(s.Body, maxBodyTokens))
	}

	var resp responseJSON
	usage, err := gw.GenerateStructured(ctx, model, extractSchema, sys, b.String(), llm.Options{MaxOutputTokens: 4000}, &resp)
	if err != nil {
		return Result{}, usage, err
	}

	domainReliability := map[string]float64{}
	for _, s := range sorted {
		domainReliability[s.Domain] = s.Reliability
	}

	learnings := make([]domain.WeightedLearning, 0, len(resp.Learnings))
	for _, l := range resp.Learnings {
		rel := l.Confidence
		for _, d := range l.SupportingDomains {
			if r, ok := domainReliability[d]; ok && r > rel {
				rel = r
			}
		}
		if rel < 0 {
			rel = 0
		}
		if rel > 1 {
			rel = 1
		}
		learnings = append(learnings, domain.WeightedLearning{Content: l.Content, Reliability: rel})
	}

	followUps := make([]domain.ResearchDirection, 0, len(resp.FollowUps))
	for _, f := range resp.FollowUps {
		followUps = append(followUps, domain.ResearchDirection{Question: f.Question, Priority: f.Priority, ParentGoal: query})
	}
	sort.SliceStable(followUps, func(i, j int) bool { return followUps[i].Priority > followUps[j].Priority })
	if opts.MaxFollowUps > 0 && len(followUps) > opts.MaxFollowUps {
		followUps = followUps[:opts.MaxFollowUps]
	}

	return Result{Learnings: learnings, FollowUps: followUps, SourceSummary: resp.SourceSummary}, usage, nil
}
