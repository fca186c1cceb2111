package extract

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

type fakeArm struct {
	resp responseJSON
}

func (f fakeArm) GenerateStructured(_ context.Context, _ string, _ schema.Descriptor, _, _ string, _ llm.Options) ([]byte, budget.Usage, error) {
	b, _ := json.Marshal(f.resp)
	return b, budget.Usage{TotalTokens: 7}, nil
}

func TestExtract_WeightsLearningsBySupportingDomainReliability(t *testing.T) {
	arm := fakeArm{resp: responseJSON{
		Learnings: []learningJSON{
			{Content: "Fact one", Confidence: 0.4, SupportingDomains: []string{"reliable.example"}},
		},
		FollowUps: []followUpJSON{
			{Question: "What about X?", Priority: 2, Justification: "gap"},
			{Question: "What about Y?", Priority: 5, Justification: "bigger gap"},
		},
		SourceSummary: "good sources",
	}}
	gw := llm.New(arm, arm, arm, arm)

	survivors := []Survivor{
		{URL: "https://reliable.example/a", Domain: "reliable.example", Title: "A", Body: "body", Reliability: 0.95},
	}

	res, usage, err := Extract(context.Background(), gw, "openai:gpt-4o-mini", "q", Options{}, survivors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.TotalTokens != 7 {
		t.Fatalf("expected usage recorded, got %+v", usage)
	}
	if len(res.Learnings) != 1 || res.Learnings[0].Reliability != 0.95 {
		t.Fatalf("expected learning reliability to take the max of confidence and supporting domain score, got %+v", res.Learnings)
	}
	if len(res.FollowUps) != 2 || res.FollowUps[0].Priority != 5 {
		t.Fatalf("expected follow-ups sorted by descending priority, got %+v", res.FollowUps)
	}
}

func TestExtract_NoSurvivorsIsNoOp(t *testing.T) {
	arm := fakeArm{}
	gw := llm.New(arm, arm, arm, arm)
	res, usage, err := Extract(context.Background(), gw, "openai:gpt-4o-mini", "q", Options{}, nil)
	if err != nil || usage.TotalTokens != 0 || len(res.Learnings) != 0 {
		t.Fatalf("expected no-op, got %+v %+v %v", res, usage, err)
	}
}
