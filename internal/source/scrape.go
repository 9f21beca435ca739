package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fxwatch/internal/domain"
)

// Selector picks the single most relevant article link on a listing page.
// The returned URL may be relative; the adapter resolves it.
type Selector func(doc *goquery.Document) (domain.LatestItem, bool)

// ScrapeAdapter fetches an HTML listing page and applies a Selector to it.
type ScrapeAdapter struct {
	sourceID string
	pageURL  string
	selector Selector
	client   *http.Client
}

func NewScrapeAdapter(sourceID, pageURL string, selector Selector, client *http.Client) *ScrapeAdapter {
	if client == nil {
		client = NewHTTPClient(DefaultTimeout, "fxwatch/1.0")
	}
	return &ScrapeAdapter{sourceID: sourceID, pageURL: pageURL, selector: selector, client: client}
}

func (a *ScrapeAdapter) FetchLatest(ctx context.Context) (domain.LatestItem, error) {
	doc, err := fetchDocument(ctx, a.client, a.pageURL)
	if err != nil {
		return domain.LatestItem{}, &domain.FetchError{Source: a.sourceID, Err: err}
	}

	item, ok := a.selector(doc)
	if !ok {
		return domain.LatestItem{}, &domain.NoMatchError{Source: a.sourceID, Reason: "no candidate link passed the selection heuristic"}
	}

	abs, err := resolveURL(a.pageURL, item.URL)
	if err != nil {
		return domain.LatestItem{}, &domain.FetchError{Source: a.sourceID, Err: fmt.Errorf("bad article link %q: %w", item.URL, err)}
	}
	item.URL = abs
	return item, nil
}

func resolveURL(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}

// collapse normalizes all whitespace runs to single spaces.
func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

var sentenceEndRe = regexp.MustCompile(`[.!?]\s+`)

// linkTitle prefers a heading nested in the anchor, then its first 100 characters of text.
func linkTitle(a *goquery.Selection) string {
	if h := collapse(a.Find("h1, h2, h3, h4, h5, h6").First().Text()); h != "" {
		return h
	}
	return truncate(collapse(a.Text()), 100)
}

// linkTeaser returns the anchor text after its first sentence, up to 200 characters.
func linkTeaser(a *goquery.Selection) string {
	text := collapse(a.Text())
	loc := sentenceEndRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	return truncate(strings.TrimSpace(text[loc[1]:]), 200)
}
