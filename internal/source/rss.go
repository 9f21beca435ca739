package source

import (
	"context"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"fxwatch/internal/domain"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ItemFilter selects feed items. A nil filter accepts the first item.
type ItemFilter func(item *gofeed.Item) bool

// TitleContains accepts items whose title contains marker, ignoring case.
func TitleContains(marker string) ItemFilter {
	marker = strings.ToLower(marker)
	return func(item *gofeed.Item) bool {
		return strings.Contains(strings.ToLower(item.Title), marker)
	}
}

// RSSAdapter reports the first feed item accepted by its filter.
type RSSAdapter struct {
	sourceID string
	feedURL  string
	filter   ItemFilter
	client   *http.Client
}

// NewRSSAdapter creates an adapter for feedURL. filter may be nil.
func NewRSSAdapter(sourceID, feedURL string, filter ItemFilter, client *http.Client) *RSSAdapter {
	if client == nil {
		client = NewHTTPClient(DefaultTimeout, "fxwatch/1.0")
	}
	return &RSSAdapter{sourceID: sourceID, feedURL: feedURL, filter: filter, client: client}
}

func (a *RSSAdapter) FetchLatest(ctx context.Context) (domain.LatestItem, error) {
	fp := gofeed.NewParser()
	fp.Client = a.client
	feed, err := fp.ParseURLWithContext(a.feedURL, ctx)
	if err != nil {
		return domain.LatestItem{}, &domain.FetchError{Source: a.sourceID, Err: err}
	}
	if len(feed.Items) == 0 {
		return domain.LatestItem{}, &domain.NoMatchError{Source: a.sourceID, Reason: "feed is empty"}
	}

	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		if a.filter != nil && !a.filter(item) {
			continue
		}
		return domain.LatestItem{
			URL:           item.Link,
			Title:         strings.TrimSpace(item.Title),
			Description:   itemSnippet(item),
			PublishedTime: itemPublishedTime(item),
		}, nil
	}
	return domain.LatestItem{}, &domain.NoMatchError{Source: a.sourceID, Reason: "no item matched filter"}
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// itemSnippet prefers the full content and falls back to the description.
func itemSnippet(item *gofeed.Item) string {
	raw := item.Content
	if strings.TrimSpace(raw) == "" {
		raw = item.Description
	}
	return stripHTML(raw)
}

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
