package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperifyio/deepresearch/internal/governor"
)

// DefaultTimeout bounds one search call, per the research loop's per-
// operation deadlines.
const DefaultTimeout = 45 * time.Second

// DefaultLimit and VerificationLimit are the hit caps applied after
// deduplication: a verification query gets a wider net since it is
// specifically trying to corroborate or refute an existing learning.
const (
	DefaultLimit      = 5
	VerificationLimit = 8
)

// Run executes one query through the governor within DefaultTimeout,
// deduplicates hits by url, and caps the result to the appropriate limit.
// A provider failure (timeout or non-success) is returned to the caller,
// which logs and continues rather than aborting siblings.
func Run(ctx context.Context, gov *governor.Semaphore, p Provider, query string, isVerification bool) ([]Result, error) {
	if err := gov.Acquire(ctx); err != nil {
		return nil, err
	}
	defer gov.Release()

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	limit := DefaultLimit
	if isVerification {
		limit = VerificationLimit
	}

	hits, err := p.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %s: %w", p.Name(), err)
	}

	deduped := MergeAndNormalize([][]Result{hits})
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped, nil
}
