package scraper

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"fxwatch/internal/domain"
)

// ErrNoContent is returned when a page has no readable article text.
var ErrNoContent = errors.New("could not parse article content")

var spaceRe = regexp.MustCompile(`\s+`)

// contentRoots are tried in order; the first one holding text wins.
var contentRoots = []string{
	"article",
	"main",
	`[role="main"]`,
	".article-body",
	".article-content",
	".post-content",
	"body",
}

const noiseSelector = "script, style, noscript, nav, header, footer, aside, form, iframe, svg, figure"

// readable picks the main content block of doc and flattens it to text.
func readable(doc *goquery.Document, pageURL string) (domain.Article, error) {
	doc.Find(noiseSelector).Remove()

	var content string
	for _, sel := range contentRoots {
		root := doc.Find(sel).First()
		if root.Length() == 0 {
			continue
		}
		if content = blocksText(root); content != "" {
			break
		}
	}
	if content == "" {
		return domain.Article{}, ErrNoContent
	}

	return domain.Article{
		URL:           pageURL,
		Title:         pageTitle(doc),
		Content:       content,
		SiteName:      siteName(doc, pageURL),
		PublishedTime: publishedTime(doc),
	}, nil
}

// blocksText joins headings, paragraphs and list items one per line so that
// section headers such as "USD: Dollar firms" stay line-leading.
func blocksText(root *goquery.Selection) string {
	var lines []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are visited on their own.
		if s.Find("p, li").Length() > 0 {
			return
		}
		if line := clean(s.Text()); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		return clean(root.Text())
	}
	return strings.Join(lines, "\n")
}

func clean(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = clean(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func pageTitle(doc *goquery.Document) string {
	if t := metaContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`); t != "" {
		return t
	}
	if t := clean(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if t := clean(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return "Untitled"
}

func siteName(doc *goquery.Document, pageURL string) string {
	if s := metaContent(doc, `meta[property="og:site_name"]`); s != "" {
		return s
	}
	if u, err := url.Parse(pageURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return pageURL
}

func publishedTime(doc *goquery.Document) time.Time {
	raw := metaContent(doc, `meta[property="article:published_time"]`, `meta[name="date"]`)
	if raw == "" {
		raw, _ = doc.Find("time[datetime]").First().Attr("datetime")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
