// Package domain holds the research loop's shared entity types and their
// merge rules, kept separate from the orchestrator so that the planning,
// evaluation, and extraction packages can depend on the data model without
// importing the orchestrator that drives them.
package domain

import "github.com/hyperifyio/deepresearch/internal/budget"

// TopicRequest is the external operation's typed input.
type TopicRequest struct {
	Topic             string
	Breadth           int
	Depth             int
	Model             string
	TokenBudget       int
	SourcePreferences string
}

// ResearchDirection is a prioritized follow-up carried between depth levels.
type ResearchDirection struct {
	Question   string
	Priority   int // unrestricted; higher = more important, sort descending only
	ParentGoal string
}

// SerpQuery is one planned search, with its own reliability gate.
type SerpQuery struct {
	Query                string
	ResearchGoal         string
	ReliabilityThreshold float64 // clamped to [0,1]
	IsVerificationQuery  bool
	RelatedDirection     *ResearchDirection
}

// ClampThreshold clamps ReliabilityThreshold into [0,1] in place.
func (q *SerpQuery) ClampThreshold() {
	if q.ReliabilityThreshold < 0 {
		q.ReliabilityThreshold = 0
	}
	if q.ReliabilityThreshold > 1 {
		q.ReliabilityThreshold = 1
	}
}

// WeightedLearning is a single extracted fact with a corroboration weight.
type WeightedLearning struct {
	Content     string
	Reliability float64 // clamped to [0,1]
}

// SourceMetadata is the per-url reliability record surfaced in the final
// report's Sources section.
type SourceMetadata struct {
	URL                  string
	Title                string
	Domain               string
	ReliabilityScore     float64
	ReliabilityReasoning string
}

// ResearchResult is the accumulator returned by every node and merged up the
// recursion tree.
type ResearchResult struct {
	Learnings   []WeightedLearning
	Sources     []SourceMetadata
	VisitedURLs map[string]struct{}
	Budget      *budget.State
}

// NewResult builds an empty accumulator sharing the given budget state —
// the one object every node in an invocation's tree must share by pointer.
func NewResult(b *budget.State) ResearchResult {
	return ResearchResult{VisitedURLs: map[string]struct{}{}, Budget: b}
}
