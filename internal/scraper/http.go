package scraper

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
)

// HTTPExtractor fetches pages with a plain HTTP client. It is enough for
// server-rendered article pages.
type HTTPExtractor struct {
	client *http.Client
	log    logrus.FieldLogger
}

// NewHTTPExtractor uses client for every request; the client carries the
// timeout and User-Agent.
func NewHTTPExtractor(client *http.Client, logger logrus.FieldLogger) *HTTPExtractor {
	return &HTTPExtractor{
		client: client,
		log:    logger.WithField("component", "scraper"),
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, url string) (domain.Article, error) {
	log := e.log.WithField("url", url)
	log.Debug("Fetching article")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Article{}, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return domain.Article{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.Article{}, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return domain.Article{}, fmt.Errorf("parse %s: %w", url, err)
	}
	article, err := readable(doc, url)
	if err != nil {
		return domain.Article{}, fmt.Errorf("extract %s: %w", url, err)
	}

	log.WithField("title", article.Title).Info("Article extracted")
	return article, nil
}
