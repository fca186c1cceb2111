package evaluate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/schema"
)

type fakeArm struct {
	resp batchResponse
	err  error
}

func (f fakeArm) GenerateStructured(_ context.Context, _ string, _ schema.Descriptor, _, _ string, _ llm.Options) ([]byte, budget.Usage, error) {
	if f.err != nil {
		return nil, budget.Usage{}, f.err
	}
	b, _ := json.Marshal(f.resp)
	return b, budget.Usage{TotalTokens: 42}, nil
}

func TestBatch_AppliesModelScores(t *testing.T) {
	arm := fakeArm{resp: batchResponse{Evaluations: []batchEntry{
		{Index: 0, Score: 0.9, Reasoning: "primary source", Use: true},
		{Index: 1, Score: 0.1, Reasoning: "unreliable blog", Use: false},
	}}}
	gw := llm.New(arm, arm, arm, arm)
	sources := []Source{
		{URL: "https://a.example", Title: "A", Domain: "a.example", Snippet: "body a"},
		{URL: "https://b.example", Title: "B", Domain: "b.example", Snippet: "body b"},
	}

	out, usage := Batch(context.Background(), gw, "openai:gpt-4o-mini", "q", "goal", "", sources)
	if usage.TotalTokens != 42 {
		t.Fatalf("expected usage recorded, got %+v", usage)
	}
	if len(out) != 2 || out[0].Score != 0.9 || out[1].Use {
		t.Fatalf("unexpected evaluations: %+v", out)
	}
}

func TestBatch_FallsBackOnGatewayError(t *testing.T) {
	arm := fakeArm{err: errFake{}}
	gw := llm.New(arm, arm, arm, arm)
	sources := []Source{{URL: "https://a.example", Title: "A", Domain: "a.example"}}

	out, _ := Batch(context.Background(), gw, "openai:gpt-4o-mini", "q", "", "", sources)
	if len(out) != 1 || out[0].Score != 0.5 || !out[0].Use || out[0].Reasoning != fallbackReasoning {
		t.Fatalf("expected fallback evaluation, got %+v", out)
	}
}

func TestBatch_EmptySources(t *testing.T) {
	arm := fakeArm{}
	gw := llm.New(arm, arm, arm, arm)
	out, usage := Batch(context.Background(), gw, "openai:gpt-4o-mini", "q", "", "", nil)
	if out != nil || usage.TotalTokens != 0 {
		t.Fatalf("expected no-op on empty sources, got %+v %+v", out, usage)
	}
}

type errFake struct{}

func (errFake) Error() string { return "gateway down" }
