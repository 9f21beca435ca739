// Package scraper extracts the readable text of a full article page.
package scraper

import (
	"context"

	"fxwatch/internal/domain"
)

// Extractor fetches a page and returns its main article content.
type Extractor interface {
	// Extract returns the article at url. Content keeps one block
	// (heading, paragraph, list item) per line.
	Extract(ctx context.Context, url string) (domain.Article, error)
}
