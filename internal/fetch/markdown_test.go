package fetch

import "testing"

func TestToMarkdown_PrefersMainAndStripsChrome(t *testing.T) {
	html := []byte(`<html><head><title>Example</title></head><body>
<nav>site nav</nav>
<main><h1>Heading</h1><p>Body text.</p></main>
<footer>copyright</footer>
</body></html>`)

	page, err := ToMarkdown(html)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Title != "Example" {
		t.Fatalf("unexpected title: %q", page.Title)
	}
	if !contains(page.Markdown, "Heading") || !contains(page.Markdown, "Body text.") {
		t.Fatalf("expected main content in markdown, got %q", page.Markdown)
	}
	if contains(page.Markdown, "site nav") || contains(page.Markdown, "copyright") {
		t.Fatalf("expected nav/footer stripped, got %q", page.Markdown)
	}
}

func contains(haystack, needle string) bool {
	return len(needle) == 0 || (len(haystack) >= len(needle) && indexOfSubstr(haystack, needle) >= 0)
}

func indexOfSubstr(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
