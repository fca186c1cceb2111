package prefilter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/governor"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/schema"
	"github.com/hyperifyio/deepresearch/internal/search"
)

type fakeArm struct {
	decide func(userPrompt string) decision
}

func (f fakeArm) GenerateStructured(_ context.Context, _ string, _ schema.Descriptor, _, userPrompt string, _ llm.Options) ([]byte, budget.Usage, error) {
	d := f.decide(userPrompt)
	b, _ := json.Marshal(d)
	return b, budget.Usage{TotalTokens: 10}, nil
}

func TestFilter_KeepsOnlyShouldScrape(t *testing.T) {
	arm := fakeArm{decide: func(userPrompt string) decision {
		return decision{ShouldScrape: contains(userPrompt, "keep.example"), Reasoning: "test"}
	}}
	gw := llm.New(arm, arm, arm, arm)
	gov := governor.New(2)
	b := budget.NewState(10000)

	hits := []search.Result{
		{URL: "https://keep.example/a", Title: "Keep"},
		{URL: "https://drop.example/b", Title: "Drop"},
		{URL: "", Title: "Empty"},
	}

	out, err := Filter(context.Background(), gw, "openai:gpt-4o-mini", gov, b, "test query", "", hits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].URL != "https://keep.example/a" {
		t.Fatalf("expected only keep.example to survive, got %+v", out)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
