package fetch

import (
	"context"
	"sync"

	"github.com/hyperifyio/deepresearch/internal/governor"
)

// FetchedPage is one successfully retrieved and converted page.
type FetchedPage struct {
	URL      string
	Title    string
	Markdown string
}

// One fetches a single url within DefaultTimeout, returning nil on any
// failure — network error, non-HTML content type, empty body, or parse
// error are all data points rather than exceptions, per the Fetcher
// contract: a failed fetch never aborts the caller.
func (c *Client) One(ctx context.Context, gov *governor.Semaphore, url string) *FetchedPage {
	if err := gov.Acquire(ctx); err != nil {
		return nil
	}
	defer gov.Release()

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	body, _, err := c.Get(ctx, url)
	if err != nil || len(body) == 0 {
		return nil
	}
	page, err := ToMarkdown(body)
	if err != nil || page.Markdown == "" {
		return nil
	}
	return &FetchedPage{URL: url, Title: page.Title, Markdown: page.Markdown}
}

// BatchFetch concurrently fetches all urls through the governor and drops
// nulls, per §4.4's batchFetch contract.
func (c *Client) BatchFetch(ctx context.Context, gov *governor.Semaphore, urls []string) []FetchedPage {
	pages := make([]*FetchedPage, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		i, u := i, u
		wg.Add(1)
		go func() {
			defer wg.Done()
			pages[i] = c.One(ctx, gov, u)
		}()
	}
	wg.Wait()

	out := make([]FetchedPage, 0, len(urls))
	for _, p := range pages {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
