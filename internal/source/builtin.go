package source

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fxwatch/internal/config"
	"fxwatch/internal/domain"
)

const (
	INGPageURL       = "https://think.ing.com/market/fx/"
	InvestingPageURL = "https://investinglive.com/live-feed/"
)

// INGSelector picks the newest "FX Daily" article on the ING Think FX page.
func INGSelector(doc *goquery.Document) (domain.LatestItem, bool) {
	var item domain.LatestItem
	found := false
	doc.Find(`a[href*="/articles/"], a[href*="/snaps/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if href == "" || len(collapse(a.Text())) < 10 {
			return true
		}
		title := linkTitle(a)
		if !strings.Contains(strings.ToLower(href), "fx-daily") &&
			!strings.Contains(strings.ToLower(title), "fx daily") {
			return true
		}
		item = domain.LatestItem{URL: href, Title: title, Description: linkTeaser(a)}
		found = true
		return false
	})
	return item, found
}

// InvestingSelector picks the top story of the InvestingLive feed. It tries
// the feed's article header first and falls back to the first link that
// looks like a full article slug in a market category.
func InvestingSelector(doc *goquery.Document) (domain.LatestItem, bool) {
	if a := doc.Find("a.article-slot-header__link").First(); a.Length() > 0 {
		if href, _ := a.Attr("href"); href != "" {
			title := collapse(a.Find(".article-slot-header__title").First().Text())
			if title == "" {
				title = collapse(a.Text())
			}
			return domain.LatestItem{URL: href, Title: title}, true
		}
	}

	var item domain.LatestItem
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		text := collapse(a.Text())
		if !inMarketCategory(href) || len(lastSegment(href)) <= 15 || len(text) <= 20 {
			return true
		}
		item = domain.LatestItem{URL: href, Title: text}
		found = true
		return false
	})
	return item, found
}

func inMarketCategory(href string) bool {
	for _, c := range []string{"/forex/", "/commodities/", "/news/"} {
		if strings.Contains(href, c) {
			return true
		}
	}
	return false
}

func lastSegment(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	parts := strings.FieldsFunc(href, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// Builtins returns the sources shipped with the application.
func Builtins(client *http.Client) []Source {
	return []Source{
		{
			ID:       "ing",
			Name:     "ING Think FX",
			Kind:     domain.KindFXDaily,
			FullPage: true,
			Adapter:  NewScrapeAdapter("ing", INGPageURL, INGSelector, client),
		},
		{
			ID:      "investing",
			Name:    "InvestingLive Feed",
			Kind:    domain.KindGeneralNews,
			Adapter: NewScrapeAdapter("investing", InvestingPageURL, InvestingSelector, client),
		},
	}
}

// FromConfig builds a source for a configured RSS feed.
func FromConfig(rc config.RSSSource, client *http.Client) Source {
	kind := domain.SourceKind(rc.Kind)
	if kind == "" {
		kind = domain.KindGeneralNews
	}
	var filter ItemFilter
	if rc.Match != "" {
		filter = TitleContains(rc.Match)
	}
	return Source{
		ID:       rc.ID,
		Name:     rc.Name,
		Kind:     kind,
		FullPage: kind == domain.KindFXDaily,
		Adapter:  NewRSSAdapter(rc.ID, rc.URL, filter, client),
	}
}

// DefaultRegistry registers the enabled built-in sources followed by the
// configured RSS feeds.
func DefaultRegistry(cfg config.Config) (*Registry, error) {
	client := NewHTTPClient(DefaultTimeout, cfg.Scraper.UserAgent)
	disabled := make(map[string]bool, len(cfg.Sources.Disabled))
	for _, id := range cfg.Sources.Disabled {
		disabled[id] = true
	}

	reg := NewRegistry()
	for _, src := range Builtins(client) {
		if disabled[src.ID] {
			continue
		}
		if err := reg.Register(src); err != nil {
			return nil, err
		}
	}
	for _, rc := range cfg.Sources.RSS {
		if err := reg.Register(FromConfig(rc, client)); err != nil {
			return nil, fmt.Errorf("sources.rss %s: %w", rc.ID, err)
		}
	}
	return reg, nil
}
