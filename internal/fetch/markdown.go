package fetch

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
)

// contentRootSelectors are tried in order; the first that matches a node
// wins. Falling back to the whole document keeps pages without semantic
// markup working.
var contentRootSelectors = []string{"main", "article", "[role=main]", ".content", "#content"}

var chromeSelectors = []string{"script", "style", "noscript", "nav", "footer", "aside", "iframe", "header"}

// Page is a rendered document ready for the rest of the pipeline.
type Page struct {
	Title    string
	Markdown string
}

// ToMarkdown strips chrome from raw HTML, selects the most likely content
// root, and converts it to CommonMark Markdown with ATX headings and
// fenced code blocks. It generalizes the teacher's extract.FromHTML
// plain-text walker with a real Markdown renderer, since the rest of the
// pipeline (Learning Extractor, evidence quoting) benefits from structure
// the plain-text extraction discarded.
func ToMarkdown(html []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return Page{}, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	for _, sel := range chromeSelectors {
		doc.Find(sel).Remove()
	}
	removeBoilerplateContainers(doc)

	root := doc.Selection
	for _, sel := range contentRootSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			root = found
			break
		}
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)

	var md strings.Builder
	var convErr error
	root.Each(func(_ int, s *goquery.Selection) {
		if convErr != nil {
			return
		}
		for _, node := range s.Nodes {
			out, err := conv.ConvertNode(node)
			if err != nil {
				convErr = err
				return
			}
			md.Write(out)
			md.WriteString("\n")
		}
	})
	if convErr != nil {
		return Page{}, convErr
	}

	return Page{Title: title, Markdown: normalizeBlankLines(md.String())}, nil
}

// boilerplateHints are substrings checked against class/id attributes to
// drop cookie banners and consent dialogs that survive chrome stripping.
var boilerplateHints = []string{"cookie", "consent", "subscribe", "newsletter", "advert"}

func removeBoilerplateContainers(doc *goquery.Document) {
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		haystack := strings.ToLower(class + " " + id)
		for _, hint := range boilerplateHints {
			if strings.Contains(haystack, hint) {
				s.Remove()
				return
			}
		}
	})
}

func normalizeBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, l := range lines {
		trimmed := strings.TrimRight(l, " \t")
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
