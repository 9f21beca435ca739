// Package summarize turns article text into a structured, per-currency summary.
package summarize

import (
	"context"

	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
)

// Summarizer produces a summary of an article.
type Summarizer interface {
	Summarize(ctx context.Context, article domain.Article, kind domain.SourceKind) (*domain.Summary, error)
}

// WithFallback tries primary and falls back to the extractive summarizer on
// any error. A nil primary means AI is not configured.
type WithFallback struct {
	primary Summarizer
	log     logrus.FieldLogger
}

func NewWithFallback(primary Summarizer, logger logrus.FieldLogger) *WithFallback {
	return &WithFallback{primary: primary, log: logger.WithField("component", "summarizer")}
}

// Summarize always returns a summary with tags; the error is always nil.
func (s *WithFallback) Summarize(ctx context.Context, article domain.Article, kind domain.SourceKind) (*domain.Summary, error) {
	log := s.log.WithField("url", article.URL)

	var summary *domain.Summary
	if s.primary != nil {
		var err error
		summary, err = s.primary.Summarize(ctx, article, kind)
		if err != nil {
			log.WithError(err).Warn("AI summary failed, using extractive fallback")
			summary = nil
		}
	}
	if summary == nil {
		summary = extractive(article)
	}

	summary.Tags = DeriveTags(summary)
	log.WithFields(logrus.Fields{
		"currencies": summary.CurrencyCodes(),
		"fallback":   summary.Fallback,
	}).Info("Summary generated")
	return summary, nil
}

// DeriveTags returns "#CODE" for each currency section followed by the
// summary's own tags, normalized and deduplicated ignoring case.
func DeriveTags(summary *domain.Summary) []string {
	var tags []string
	for _, code := range summary.CurrencyCodes() {
		tags = domain.MergeTags(tags, "#"+code)
	}
	for _, t := range summary.Tags {
		tags = domain.MergeTags(tags, domain.NormalizeTag(t))
	}
	if tags == nil {
		tags = []string{}
	}
	return tags
}
