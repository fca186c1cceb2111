// Package plan is the research orchestrator's planning step: one gateway
// call that turns a topic, its seeded learnings and directions, and the
// user's source preferences into a bounded list of SerpQuery objects. It
// generalizes the teacher's planner package — which produced a fixed
// queries+outline shape for a single-pass report brief — into a query
// planner that also carries a per-query reliability threshold and
// verification flag for the recursive research loop.
package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/domain"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

var planSchema = schema.Object("serpQueryPlan",
	"Propose search queries to advance this research topic.",
	map[string]any{
		"queries": schema.ArrayOf("up to the requested breadth, each a distinct, concise search query", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":                schema.String("the literal search engine query text"),
				"researchGoal":         schema.String("what this specific query is trying to learn"),
				"reliabilityThreshold": schema.Number("minimum source reliability (0 to 1) worth extracting learnings from for this query"),
				"isVerificationQuery":  schema.Boolean("true if this query exists to verify or cross-check an earlier low-reliability learning"),
			},
			"required": []string{"query", "researchGoal", "reliabilityThreshold", "isVerificationQuery"},
		}),
	},
	[]string{"queries"},
)

type queryJSON struct {
	Query                string  `json:"query"`
	ResearchGoal         string  `json:"researchGoal"`
	ReliabilityThreshold float64 `json:"reliabilityThreshold"`
	IsVerificationQuery  bool    `json:"isVerificationQuery"`
}

type planJSON struct {
	Queries []queryJSON `json:"queries"`
}

// Plan calls the gateway to generate up to breadth SerpQueries for one
// orchestrator node, per the prompt contents fixed by the research loop:
// the topic, seeded learnings (each carrying its reliability), prioritized
// directions, and optional source preferences.
func Plan(ctx context.Context, gw *llm.Gateway, model string, topic string, breadth int, seededLearnings []domain.WeightedLearning, directions []domain.ResearchDirection, sourcePreferences string) ([]domain.SerpQuery, budget.Usage, error) {
	if breadth <= 0 {
		breadth = 1
	}

	sys := fmt.Sprintf("You plan web searches for a research loop. Propose at most %d distinct, concrete search queries. For each, set a reliabilityThreshold reflecting how rigorous a source must be to trust for that query's goal; mark isVerificationQuery true only when the query exists to check or extend a previously seeded learning.", breadth)

	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", topic)

	if len(seededLearnings) > 0 {
		b.WriteString("\nSeeded learnings so far (verify low-reliability ones, extend high-reliability ones):\n")
		for _, l := range seededLearnings {
			fmt.Fprintf(&b, "- (reliability %.2f) %s\n", l.Reliability, l.Content)
		}
	}

	if len(directions) > 0 {
		sorted := make([]domain.ResearchDirection, len(directions))
		copy(sorted, directions)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
		b.WriteString("\nPrioritized follow-up directions (highest priority first):\n")
		for _, d := range sorted {
			fmt.Fprintf(&b, "- (priority %d, from goal %q) %s\n", d.Priority, d.ParentGoal, d.Question)
		}
	}

	if strings.TrimSpace(sourcePreferences) != "" {
		fmt.Fprintf(&b, "\nUser source preferences: %s\n", sourcePreferences)
	}

	var resp planJSON
	usage, err := gw.GenerateStructured(ctx, model, planSchema, sys, b.String(), llm.Options{MaxOutputTokens: 2000}, &resp)
	if err != nil {
		return nil, usage, err
	}

	out := make([]domain.SerpQuery, 0, len(resp.Queries))
	for i, q := range resp.Queries {
		if i >= breadth {
			break
		}
		sq := domain.SerpQuery{
			Query:                q.Query,
			ResearchGoal:         q.ResearchGoal,
			ReliabilityThreshold: q.ReliabilityThreshold,
			IsVerificationQuery:  q.IsVerificationQuery,
		}
		sq.ClampThreshold()
		out = append(out, sq)
	}
	return out, usage, nil
}
