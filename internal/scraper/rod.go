package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
)

// RodExtractor renders pages in a headless browser before extraction, for
// sources whose article body is built client-side.
type RodExtractor struct {
	log     logrus.FieldLogger
	timeout time.Duration
}

// NewRodExtractor creates an extractor that launches a browser per article.
func NewRodExtractor(timeout time.Duration, logger logrus.FieldLogger) *RodExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RodExtractor{
		log:     logger.WithField("component", "scraper"),
		timeout: timeout,
	}
}

// Extract loads url in a fresh browser and parses the rendered HTML.
func (s *RodExtractor) Extract(ctx context.Context, url string) (article domain.Article, err error) {
	log := s.log.WithField("url", url)
	log.Info("Rendering article with headless browser")

	if err := ctx.Err(); err != nil {
		return domain.Article{}, fmt.Errorf("render %s: %w", url, err)
	}
	pageCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// --- Browser Setup ---
	// A browser per article keeps the watcher free of long-lived processes;
	// extraction happens at most once per source per cycle.
	path, exists := launcher.LookPath()
	if !exists {
		log.Error("Cannot find browser executable for rod")
		return domain.Article{}, errors.New("rod browser dependency not found")
	}
	l := launcher.New().Context(pageCtx).Bin(path)
	controlURL, err := l.Launch()
	if err != nil {
		return domain.Article{}, renderError(pageCtx, url, fmt.Errorf("failed to launch browser: %w", err))
	}
	defer l.Kill()

	browser := rod.New().Context(pageCtx).ControlURL(controlURL)
	if err = browser.Connect(); err != nil {
		log.WithError(err).Error("Failed to connect to rod browser")
		return domain.Article{}, renderError(pageCtx, url, fmt.Errorf("failed to connect to browser: %w", err))
	}
	defer func() {
		// Closed outside pageCtx so a timed-out render still shuts the browser down.
		if closeErr := browser.Context(context.Background()).Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Error closing rod browser instance")
		}
	}()

	// --- Page Navigation ---
	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		log.WithError(err).Error("Failed to create rod page")
		return domain.Article{}, renderError(pageCtx, url, fmt.Errorf("failed to create page: %w", err))
	}
	page = page.Context(pageCtx)

	if err = page.WaitLoad(); err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			log.WithError(pageCtx.Err()).Warn("Rendering timed out")
		}
		return domain.Article{}, renderError(pageCtx, url, fmt.Errorf("failed waiting for page load: %w", err))
	}

	// --- Extraction ---
	html, err := page.HTML()
	if err != nil {
		return domain.Article{}, fmt.Errorf("failed to read rendered html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.Article{}, fmt.Errorf("parse %s: %w", url, err)
	}
	article, err = readable(doc, url)
	if err != nil {
		return domain.Article{}, fmt.Errorf("extract %s: %w", url, err)
	}

	log.WithField("title", article.Title).Info("Article extracted")
	return article, nil
}

// renderError prefers the context error when the render was cut short.
func renderError(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rendering %s: %w", url, ctxErr)
	}
	return err
}
