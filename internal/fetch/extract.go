package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newscurator/internal/core"
)

// mainContentSelectors is tried in order; the first selector whose text
// clears the minimum content length wins.
var mainContentSelectors = []string{
	"article", "main",
	".main-content", ".entry-content", ".post-content", ".post-body", ".article-body",
	"[role='main']",
	".content", "#content",
}

// boilerplatePhrases marks pages that are not articles: error pages, paywall
// interstitials, cookie walls.
var boilerplatePhrases = []string{
	"404 not found",
	"page not found",
	"page you requested could not be found",
	"subscribe to continue reading",
	"subscribe to read",
	"sign in to continue",
	"to continue reading this article",
	"please enable javascript",
	"javascript is disabled",
	"we use cookies",
	"accept all cookies",
	"access denied",
}

// extractArticle parses the HTML and applies the content-quality gates.
// Returns nil when any gate fails; gate failures are expected, not errors.
func extractArticle(html string, candidate core.SearchResult, opts Options) *core.ExtractedArticle {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	// Remove common non-content elements
	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner").Remove()

	text := extractMainText(doc, opts.MinContentLen)
	if text == "" {
		return nil
	}

	if ratio := asciiRatio(text); ratio < opts.ASCIIRatio {
		return nil
	}

	words := strings.Fields(text)
	if len(words) < opts.MinWordCount {
		return nil
	}

	lower := strings.ToLower(text)
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			return nil
		}
	}

	title := extractTitle(doc)
	if title == "" {
		title = candidate.Title
	}

	published := candidate.PublishedDate
	if published == "" {
		published, _ = doc.Find("meta[property='article:published_time']").Attr("content")
	}

	author, _ := doc.Find("meta[name='author']").Attr("content")

	return &core.ExtractedArticle{
		URL:           candidate.URL,
		Title:         title,
		Snippet:       candidate.Snippet,
		Domain:        candidate.Domain,
		PublishedDate: published,
		ExtractedText: text,
		WordCount:     len(words),
		Author:        strings.TrimSpace(author),
		Topic:         candidate.Topic,
	}
}

// extractMainText walks the selector chain and falls back to full-body text
// when no structural candidate clears minContentLen.
func extractMainText(doc *goquery.Document, minContentLen int) string {
	for _, selector := range mainContentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			text := blockText(sel)
			if len(text) >= minContentLen {
				return text
			}
		}
	}

	text := blockText(doc.Find("body"))
	if len(text) >= minContentLen {
		return text
	}
	return ""
}

// blockText collects text from block-level elements, preserving paragraph
// breaks.
func blockText(sel *goquery.Selection) string {
	var builder strings.Builder
	sel.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
		text := strings.TrimSpace(item.Text())
		if text == "" {
			return
		}
		builder.WriteString(text)
		builder.WriteString("\n\n")
	})
	return strings.TrimSpace(builder.String())
}

// extractTitle tries the document title, then OpenGraph, then the first h1.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content"); ogTitle != "" {
		return strings.TrimSpace(ogTitle)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// asciiRatio is the language heuristic: the share of ASCII characters in the
// text. English trade coverage sits well above the threshold.
func asciiRatio(text string) float64 {
	if text == "" {
		return 0
	}
	ascii := 0
	total := 0
	for _, r := range text {
		total++
		if r < 128 {
			ascii++
		}
	}
	return float64(ascii) / float64(total)
}
