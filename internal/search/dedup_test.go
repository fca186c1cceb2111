package search

import "testing"

func TestMergeAndNormalize_DedupesAcrossGroups(t *testing.T) {
	groups := [][]Result{
		{{Title: "A", URL: "https://example.com/page?utm_source=x"}},
		{{Title: "A dup", URL: "https://example.com/page?gclid=y"}},
		{{Title: "B", URL: "https://other.com/"}},
	}
	out := MergeAndNormalize(groups)
	if len(out) != 2 {
		t.Fatalf("expected 2 deduped results, got %d: %+v", len(out), out)
	}
	if out[0].Title != "A" {
		t.Fatalf("expected first occurrence to win, got %q", out[0].Title)
	}
}

func TestPerDomainCap_BoundsPerHost(t *testing.T) {
	results := []Result{
		{URL: "https://example.com/a"},
		{URL: "https://example.com/b"},
		{URL: "https://example.com/c"},
		{URL: "https://other.com/a"},
	}
	out := PerDomainCap(results, 2)
	if len(out) != 3 {
		t.Fatalf("expected 3 results after capping, got %d", len(out))
	}
}
