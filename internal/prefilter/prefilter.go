// Package prefilter is the per-hit LLM gate that runs before fetching: for
// each search.Result it asks the model whether the page is worth scraping
// at all, given the query and the user's stated source preferences. It
// generalizes the teacher's heuristic, score-by-snippet-length selecter
// package into a model-driven decision, keeping the same "diversity before
// depth" goal but letting the model judge relevance instead of a length
// proxy.
package prefilter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/governor"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/schema"
	"github.com/hyperifyio/deepresearch/internal/search"
)

var gateSchema = schema.Object("shouldScrapeGate",
	"Decide whether this search result is worth fetching in full.",
	map[string]any{
		"shouldScrape": schema.Boolean("true if the page is worth fetching and reading in full"),
		"reasoning":    schema.String("one or two sentences explaining the decision"),
	},
	[]string{"shouldScrape", "reasoning"},
)

type decision struct {
	ShouldScrape bool   `json:"shouldScrape"`
	Reasoning    string `json:"reasoning"`
}

// Filter evaluates every hit concurrently (bounded by gov) and returns the
// urls judged worth fetching, in their original relative order. A hit with
// an empty URL is dropped without a model call. A gateway failure on a
// single hit drops that hit rather than failing the batch — prefiltering
// is advisory, and a model hiccup should never stall the whole query.
func Filter(ctx context.Context, gw *llm.Gateway, model string, gov *governor.Semaphore, b *budget.State, query string, sourcePreferences string, hits []search.Result) ([]search.Result, error) {
	kept := make([]bool, len(hits))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, h := range hits {
		if strings.TrimSpace(h.URL) == "" {
			continue
		}
		i, h := i, h
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Reached() {
				return
			}
			if err := gov.Acquire(ctx); err != nil {
				return
			}
			defer gov.Release()

			ok, usage, err := evaluateOne(ctx, gw, model, query, sourcePreferences, h)
			b.Record(usage)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			kept[i] = ok
		}()
	}
	wg.Wait()

	out := make([]search.Result, 0, len(hits))
	for i, h := range hits {
		if kept[i] {
			out = append(out, h)
		}
	}
	// firstErr is informational only: partial results are still useful, so
	// callers that want best-effort behavior can ignore a non-nil error.
	return out, firstErr
}

func evaluateOne(ctx context.Context, gw *llm.Gateway, model, query, sourcePreferences string, h search.Result) (bool, budget.Usage, error) {
	domain := h.URL
	if u, err := url.Parse(h.URL); err == nil && u.Host != "" {
		domain = u.Host
	}

	sys := "You gate search results before they are fetched. Be inclusive of primary sources, official documentation, and recent reporting; exclude spam, paywalled junk, and pages clearly off-topic for the query."
	user := fmt.Sprintf("Query: %s\nURL: %s\nDomain: %s\nTitle: %s\nDescription: %s\n",
		query, h.URL, domain, h.Title, h.Snippet)
	if strings.TrimSpace(sourcePreferences) != "" {
		user += fmt.Sprintf("User source preferences: %s\n", sourcePreferences)
	}

	var d decision
	usage, err := gw.GenerateStructured(ctx, model, gateSchema, sys, user, llm.Options{MaxOutputTokens: 300}, &d)
	if err != nil {
		return false, usage, err
	}
	return d.ShouldScrape, usage, nil
}
