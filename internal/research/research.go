// Package research is the Research Orchestrator: the recursive driver that
// composes the search, pre-filter, fetch, evaluate, and extract components
// into a bounded-fanout tree, merging partial results at every level. It
// generalizes the teacher's internal/app single-pass pipeline (search once,
// select once, fetch once, synthesize once) into a self-recursing tree
// whose breadth halves and whose depth decrements at every descent.
package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/deepresearch/internal/budget"
	"github.com/hyperifyio/deepresearch/internal/domain"
	"github.com/hyperifyio/deepresearch/internal/evaluate"
	"github.com/hyperifyio/deepresearch/internal/extract"
	"github.com/hyperifyio/deepresearch/internal/fetch"
	"github.com/hyperifyio/deepresearch/internal/governor"
	"github.com/hyperifyio/deepresearch/internal/llm"
	"github.com/hyperifyio/deepresearch/internal/plan"
	"github.com/hyperifyio/deepresearch/internal/prefilter"
	"github.com/hyperifyio/deepresearch/internal/search"
)

// defaultFollowUpPriority is assigned to a follow-up question the extractor
// did not prioritize, per §4.8 step 4.
const defaultFollowUpPriority = 3

// Deps bundles the leaf components an orchestrator node calls through. One
// Deps is built once per invocation and shared by every node in the tree —
// in particular Governor and Budget are the two pieces of state genuinely
// shared across the whole recursion.
type Deps struct {
	Gateway  *llm.Gateway
	Search   search.Provider
	Fetch    *fetch.Client
	Governor *governor.Semaphore
	Budget   *budget.State
	Model    string
}

// Research is the entry point: research(topic, B, D, ...) -> ResearchResult.
func Research(ctx context.Context, deps Deps, req domain.TopicRequest) (domain.ResearchResult, error) {
	seeded := domain.NewResult(deps.Budget)
	return researchNode(ctx, deps, req.Topic, req.Breadth, req.Depth, seeded, nil, req.SourcePreferences)
}

// researchNode implements the algorithm in §4.8 for one node: plan, fan out,
// merge, and (conditionally) descend — once per surviving SerpQuery, not
// once per node, so the tree's branching factor matches §2's
// B·(B/2)^(D-1) query count instead of collapsing every query's follow-ups
// into a single child call.
func researchNode(ctx context.Context, deps Deps, topic string, breadth, depth int, seeded domain.ResearchResult, directions []domain.ResearchDirection, sourcePreferences string) (domain.ResearchResult, error) {
	// 1. Plan.
	var queries []domain.SerpQuery
	var planUsage budget.Usage
	planErr := deps.Governor.Do(ctx, func(ctx context.Context) error {
		var err error
		queries, planUsage, err = plan.Plan(ctx, deps.Gateway, deps.Model, topic, breadth, seeded.Learnings, directions, sourcePreferences)
		return err
	})
	deps.Budget.Record(planUsage)
	if planErr != nil {
		log.Warn().Err(planErr).Str("topic", topic).Msg("research: planning failed, returning seeded accumulators unchanged")
		return seeded, nil
	}
	if len(queries) == 0 {
		return seeded, nil
	}

	// 2. Fan out: each SerpQuery runs the pipeline concurrently, keeping its
	// own follow-ups separate so each can seed its own child node.
	type queryOutcome struct {
		result    domain.ResearchResult
		followUps []domain.ResearchDirection
	}
	outcomes := make([]queryOutcome, len(queries))
	var wg sync.WaitGroup

	for i, q := range queries {
		i, q := i, q
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, followUps := runQuery(ctx, deps, q, sourcePreferences, breadth)
			sort.SliceStable(followUps, func(a, b int) bool { return followUps[a].Priority > followUps[b].Priority })
			outcomes[i] = queryOutcome{result: result, followUps: followUps}
		}()
	}
	wg.Wait()

	// 3. Merge this node's own contributions with the seeded accumulators.
	nodeResults := make([]domain.ResearchResult, len(outcomes))
	for i, o := range outcomes {
		nodeResults[i] = o.result
	}
	merged := domain.Merge(append([]domain.ResearchResult{seeded}, nodeResults...)...)
	merged.Budget = deps.Budget

	// 4. Descend, once per surviving SerpQuery. Recursion happens whenever
	// depth remains and the budget isn't reached, even if a query produced
	// no follow-ups — the model is free to re-plan from the seeded context
	// alone (§4.8 edge cases). Per §8 scenario 3, two SerpQueries produce
	// two independent child calls, each seeded only with that query's own
	// follow-ups sorted by priority desc.
	if depth <= 1 || deps.Budget.Reached() {
		return merged, nil
	}
	childBreadth := ceilHalf(breadth)
	childResults := make([]domain.ResearchResult, len(queries))
	var cwg sync.WaitGroup
	for i, q := range queries {
		i, q := i, q
		followUps := outcomes[i].followUps
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			if deps.Budget.Reached() {
				return
			}
			childTopic := synthesizeChildTopic(q.ResearchGoal, followUps)
			child, err := researchNode(ctx, deps, childTopic, childBreadth, depth-1, merged, followUps, sourcePreferences)
			if err != nil {
				log.Warn().Err(err).Str("topic", childTopic).Msg("research: child node failed, parent contributes alone")
				return
			}
			childResults[i] = child
		}()
	}
	cwg.Wait()

	// 5. Return the merged accumulators upward.
	final := domain.Merge(append([]domain.ResearchResult{merged}, childResults...)...)
	final.Budget = deps.Budget
	return final, nil
}

// runQuery executes §4.3 -> §4.5 -> §4.4 -> §4.6 -> §4.7 for one SerpQuery
// and returns this query's contribution plus any follow-up directions the
// extractor proposed.
func runQuery(ctx context.Context, deps Deps, q domain.SerpQuery, sourcePreferences string, breadth int) (domain.ResearchResult, []domain.ResearchDirection) {
	out := domain.NewResult(deps.Budget)

	hits, err := search.Run(ctx, deps.Governor, deps.Search, q.Query, q.IsVerificationQuery)
	if err != nil {
		log.Warn().Err(err).Str("query", q.Query).Msg("research: search failed for query, siblings unaffected")
		return out, nil
	}
	if len(hits) == 0 {
		return out, nil
	}

	kept, _ := prefilter.Filter(ctx, deps.Gateway, deps.Model, deps.Governor, deps.Budget, q.Query, sourcePreferences, hits)
	if len(kept) == 0 {
		return out, nil
	}

	urls := make([]string, len(kept))
	for i, h := range kept {
		urls[i] = h.URL
	}
	pages := deps.Fetch.BatchFetch(ctx, deps.Governor, urls)
	for _, p := range pages {
		out.VisitedURLs[p.URL] = struct{}{}
	}
	if len(pages) == 0 {
		return out, nil
	}

	hitByURL := make(map[string]search.Result, len(kept))
	for _, h := range kept {
		hitByURL[h.URL] = h
	}

	sources := make([]evaluate.Source, len(pages))
	for i, p := range pages {
		sources[i] = evaluate.Source{URL: p.URL, Title: p.Title, Domain: domainOf(p.URL), Snippet: p.Markdown}
	}
	var evals []evaluate.Evaluation
	var evalUsage budget.Usage
	if err := deps.Governor.Do(ctx, func(ctx context.Context) error {
		evals, evalUsage = evaluate.Batch(ctx, deps.Gateway, deps.Model, q.Query, q.ResearchGoal, sourcePreferences, sources)
		return nil
	}); err != nil {
		log.Warn().Err(err).Str("query", q.Query).Msg("research: governor unavailable for evaluation, node contributes no sources")
		return out, nil
	}
	deps.Budget.Record(evalUsage)

	for i, e := range evals {
		h := hitByURL[pages[i].URL]
		title := pages[i].Title
		if title == "" {
			title = h.Title
		}
		out.Sources = append(out.Sources, domain.SourceMetadata{
			URL:                  e.URL,
			Title:                title,
			Domain:               domainOf(e.URL),
			ReliabilityScore:     e.Score,
			ReliabilityReasoning: e.Reasoning,
		})
	}

	survivors := make([]extract.Survivor, 0, len(pages))
	for i, e := range evals {
		if !e.Use || e.Score < q.ReliabilityThreshold {
			continue
		}
		survivors = append(survivors, extract.Survivor{
			URL: pages[i].URL, Title: pages[i].Title, Domain: domainOf(pages[i].URL),
			Body: pages[i].Markdown, Reliability: e.Score,
		})
	}
	if len(survivors) == 0 {
		return out, nil
	}

	extractOpts := extract.Options{MaxFollowUps: ceilHalf(breadth), Goal: q.ResearchGoal}
	var extracted extract.Result
	var extractUsage budget.Usage
	err := deps.Governor.Do(ctx, func(ctx context.Context) error {
		var err error
		extracted, extractUsage, err = extract.Extract(ctx, deps.Gateway, deps.Model, q.Query, extractOpts, survivors)
		return err
	})
	deps.Budget.Record(extractUsage)
	if err != nil {
		log.Warn().Err(err).Str("query", q.Query).Msg("research: extraction failed or timed out, node contributes no learnings")
		return out, nil
	}
	out.Learnings = extracted.Learnings

	followUps := make([]domain.ResearchDirection, len(extracted.FollowUps))
	for i, f := range extracted.FollowUps {
		priority := f.Priority
		if priority == 0 {
			priority = defaultFollowUpPriority
		}
		followUps[i] = domain.ResearchDirection{Question: f.Question, Priority: priority, ParentGoal: q.ResearchGoal}
	}
	return out, followUps
}

func ceilHalf(b int) int {
	if b <= 1 {
		return 1
	}
	return (b + 1) / 2
}

func synthesizeChildTopic(goal string, followUps []domain.ResearchDirection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Previous research goal: %s\n", goal)
	b.WriteString("Follow-up research directions:\n")
	for _, f := range followUps {
		fmt.Fprintf(&b, "- %s\n", f.Question)
	}
	return b.String()
}

func domainOf(rawURL string) string {
	idx := strings.Index(rawURL, "://")
	rest := rawURL
	if idx >= 0 {
		rest = rawURL[idx+3:]
	}
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return strings.ToLower(strings.TrimPrefix(rest, "www."))
}
