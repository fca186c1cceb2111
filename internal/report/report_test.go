package report

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/domain"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

type fakeArm struct {
	markdown string
}

func (f fakeArm) GenerateStructured(_ context.Context, _ string, _ schema.Descriptor, _, _ string, _ llm.Options) ([]byte, budget.Usage, error) {
	b, _ := json.Marshal(reportJSON{ReportMarkdown: f.markdown})
	return b, budget.Usage{TotalTokens: 100}, nil
}

func TestWrite_AppendsReliabilitySortedSources(t *testing.T) {
	arm := fakeArm{markdown: "# Report\n\nBody."}
	gw := llm.New(arm, arm, arm, arm)

	sources := []domain.SourceMetadata{
		{URL: "https://low.example", ReliabilityScore: 0.2},
		{URL: "https://high.example", ReliabilityScore: 0.9, Title: "High"},
	}
	out, usage, err := Write(context.Background(), gw, "openai:gpt-4o-mini", "topic", nil, sources)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.TotalTokens != 100 {
		t.Fatalf("expected usage recorded, got %+v", usage)
	}
	highIdx := strings.Index(out, "high.example")
	lowIdx := strings.Index(out, "low.example")
	if highIdx < 0 || lowIdx < 0 || highIdx > lowIdx {
		t.Fatalf("expected high.example before low.example in output:\n%s", out)
	}
}
