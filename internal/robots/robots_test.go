package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// When /robots.txt returns 404, proceed as allowed and cache the negative
// result in memory until expiry so we do not refetch within the window.
func TestMissingRobots404_ProceedAllowed_WithMemCache(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	m := &Manager{
		HTTPClient:        srv.Client(),
		UserAgent:         "deepresearch-test/1.0",
		EntryExpiry:       time.Minute,
		AllowPrivateHosts: true,
	}
	u := srv.URL + "/robots.txt"
	rules1, src1, err1 := m.Get(ctx, u)
	if err1 != nil {
		t.Fatalf("get 404 robots: %v", err1)
	}
	if src1 != SourceNetwork {
		t.Fatalf("expected SourceNetwork, got %v", src1)
	}
	if allowed := rules1.IsAllowed("deepresearch", "/any/path"); !allowed {
		t.Fatalf("expected allow with missing robots 404")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
	_, src2, err2 := m.Get(ctx, u)
	if err2 != nil {
		t.Fatalf("second get: %v", err2)
	}
	if src2 != SourceMemory {
		t.Fatalf("expected SourceMemory, got %v", src2)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected still 1 hit after memory reuse, got %d", hits)
	}
}

// When /robots.txt returns 5xx, treat the host as temporarily disallowed
// until the memory entry expires.
func TestMissingRobots_TemporaryDisallow_On5xx(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	m := &Manager{HTTPClient: srv.Client(), UserAgent: "deepresearch-test", EntryExpiry: time.Minute, AllowPrivateHosts: true}
	u := srv.URL + "/robots.txt"
	rules, src, err := m.Get(ctx, u)
	if err != nil {
		t.Fatalf("unexpected error on 5xx policy: %v", err)
	}
	if src != SourceNetwork {
		t.Fatalf("expected SourceNetwork, got %v", src)
	}
	if allowed := rules.IsAllowed("deepresearch", "/any"); allowed {
		t.Fatalf("expected disallow-all under temporary disallow (5xx)")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
	_, src2, err2 := m.Get(ctx, u)
	if err2 != nil {
		t.Fatalf("second get (mem): %v", err2)
	}
	if src2 != SourceMemory {
		t.Fatalf("expected SourceMemory, got %v", src2)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected still 1 hit, got %d", hits)
	}
}

func TestEvaluate_UAPrecedence_AndPathDecisions(t *testing.T) {
	t.Parallel()
	txt := `User-agent: deepresearch
Disallow: /private

User-agent: *
Allow: /
`
	rules := parseRobots(txt)

	if allowed := rules.IsAllowed("deepresearch", "/private/page"); allowed {
		t.Fatalf("expected disallow for deepresearch on /private/page")
	}
	if allowed := rules.IsAllowed("otheragent", "/private/page"); !allowed {
		t.Fatalf("expected allow for otheragent on /private/page via wildcard allow")
	}

	txt2 := `User-agent: deepresearch
Disallow: /private
Allow: /private/public
`
	rules2 := parseRobots(txt2)
	if allowed := rules2.IsAllowed("deepresearch", "/private/public/info"); !allowed {
		t.Fatalf("expected allow due to longer Allow rule")
	}
	if allowed := rules2.IsAllowed("deepresearch", "/private/else"); allowed {
		t.Fatalf("expected disallow for shorter path under disallow")
	}
}

func TestEvaluate_Wildcards_And_Anchors(t *testing.T) {
	t.Parallel()
	txt := `User-agent: deepresearch
Disallow: /*.zip$
Allow: /downloads/*.zip$
`
	rules := parseRobots(txt)

	if allowed := rules.IsAllowed("deepresearch", "/foo/file.zip"); allowed {
		t.Fatalf("expected disallow for generic *.zip")
	}
	if allowed := rules.IsAllowed("deepresearch", "/downloads/file.zip"); !allowed {
		t.Fatalf("expected allow for downloads/*.zip due to longer allow")
	}

	txt2 := `User-agent: *
Disallow: /*?session=
`
	rules2 := parseRobots(txt2)
	if allowed := rules2.IsAllowed("any", "/index.html?session=1"); allowed {
		t.Fatalf("expected disallow when pattern with wildcard matches query")
	}
}

func TestEvaluate_CrawlDelayForMatchedGroup(t *testing.T) {
	t.Parallel()
	txt := `User-agent: deepresearch
Crawl-delay: 2

User-agent: *
Crawl-delay: 7
`
	rules := parseRobots(txt)
	if d := rules.CrawlDelayFor("deepresearch"); d == nil || *d != 2*time.Second {
		t.Fatalf("expected 2s crawl delay for deepresearch, got %v", d)
	}
	if d := rules.CrawlDelayFor("other"); d == nil || *d != 7*time.Second {
		t.Fatalf("expected 7s crawl delay for wildcard, got %v", d)
	}
}
