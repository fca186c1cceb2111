// Package report is the Report Writer: the orchestrator's terminal step.
// One gateway call turns the accumulated learnings into long-form
// markdown; a deterministic, reliability-sorted Sources section is then
// appended in Go code, not by the model, so its ordering and content are
// exact regardless of model behavior. It follows the teacher's synth
// package's single-call-over-numbered-sources shape, retargeted from
// citation-annotated excerpts to tagged learnings.
package report

import (
	"fmt"
	"sort"
	"strings"

	"context"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/domain"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

// maxLearningsBlockTokens bounds the concatenated <learning> block shown to
// the writer, regardless of how many nodes contributed learnings.
const maxLearningsBlockTokens = 150000

var reportSchema = schema.Object("researchReport",
	"Write the final long-form research report.",
	map[string]any{
		"reportMarkdown": schema.String("the complete report body in markdown, as detailed as possible"),
	},
	[]string{"reportMarkdown"},
)

type reportJSON struct {
	ReportMarkdown string `json:"reportMarkdown"`
}

// Write renders the final deliverable: one gateway call over the learnings
// block, followed by a deterministically appended Sources section. The
// call is never budget-gated — per §4.2, the final report runs even after
// the cap is reached, since a degraded report still beats no report.
func Write(ctx context.Context, gw *llm.Gateway, model string, topic string, learnings []domain.WeightedLearning, sources []domain.SourceMetadata) (string, budget.Usage, error) {
	sys := "You are a research report writer. Using ONLY the tagged learnings provided, write a single cohesive, as-detailed-as-possible markdown report, aiming for 3 or more pages. Include every learning; do not invent facts beyond what is given. Do not include a sources or references section yourself — it is appended separately."

	var block strings.Builder
	for _, l := range learnings {
		fmt.Fprintf(&block, "<learning reliability=\"%.2f\">%s</learning>\n", l.Reliability, l.Content)
	}
	trimmedBlock := budget.TrimToTokens(block.String(), maxLearningsBlockTokens)

	user := fmt.Sprintf("Topic: %s\n\nLearnings:\n%s", topic, trimmedBlock)

	var resp reportJSON
	usage, err := gw.GenerateStructured(ctx, model, reportSchema, sys, user, llm.Options{MaxOutputTokens: 8000}, &resp)
	if err != nil {
		return "", usage, err
	}

	var out strings.Builder
	out.WriteString(strings.TrimSpace(resp.ReportMarkdown))
	out.WriteString("\n\n")
	out.WriteString(renderSources(sources))
	return out.String(), usage, nil
}

// renderSources builds the deterministic "## Sources" section,
// reliability-descending, per §4.9.
func renderSources(sources []domain.SourceMetadata) string {
	sorted := make([]domain.SourceMetadata, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ReliabilityScore > sorted[j].ReliabilityScore })

	var b strings.Builder
	b.WriteString("## Sources\n\n")
	for _, s := range sorted {
		fmt.Fprintf(&b, "- %s — Reliability: %.2f", s.URL, s.ReliabilityScore)
		if s.Title != "" {
			fmt.Fprintf(&b, " (%s)", s.Title)
		}
		if s.ReliabilityReasoning != "" {
			fmt.Fprintf(&b, ". %s", s.ReliabilityReasoning)
		}
		b.WriteString("\n")
	}
	return b.String()
}
