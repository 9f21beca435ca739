package summarize

import (
	"context"
	"regexp"
	"strings"

	"fxwatch/internal/domain"
)

// Terminal punctuation followed by whitespace, or a line break. Decimals such
// as "1.19" stay intact and line-per-block headings become their own sentence.
var sentenceSplitRe = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)

const (
	minSentenceLen = 50
	maxSentenceLen = 300
)

// Extractive builds a summary from the article's own sentences. It needs no
// network access and never fails.
type Extractive struct{}

func (Extractive) Summarize(_ context.Context, article domain.Article, _ domain.SourceKind) (*domain.Summary, error) {
	return extractive(article), nil
}

func extractive(article domain.Article) *domain.Summary {
	mentioned := DetectCurrencies(article.Content)
	sentences := candidateSentences(article.Content)

	intro := joinSentences(firstN(sentences, 2))
	if intro == "" {
		intro = fallbackIntro(article)
	}

	currencies := make(map[string]domain.CurrencySection, len(mentioned))
	for _, code := range mentioned {
		var hits []string
		for _, s := range sentences {
			if mentions(s, code) {
				hits = append(hits, s)
				if len(hits) == 2 {
					break
				}
			}
		}
		text := joinSentences(hits)
		if text == "" {
			text = CurrencyNames[code] + " cité dans l'article, sans détail exploitable."
		}
		currencies[code] = domain.CurrencySection{
			Sentiment: domain.SentimentNeutral,
			Emoji:     sentimentEmoji(domain.SentimentNeutral),
			Summary:   text,
			Factors:   []string{"Analyse complète disponible avec la synthèse IA"},
		}
	}

	return &domain.Summary{
		Title:               article.Title,
		Introduction:        intro,
		Currencies:          currencies,
		Conclusion:          "Résumé automatique : configurez une clé API IA pour une analyse détaillée.",
		KeyTakeaway:         "Résumé extractif, sans interprétation du sentiment.",
		MentionedCurrencies: mentioned,
		Fallback:            true,
	}
}

// candidateSentences splits on terminal punctuation and keeps mid-length sentences.
func candidateSentences(content string) []string {
	var out []string
	for _, s := range sentenceSplitRe.Split(content, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if n := len([]rune(s)); n > minSentenceLen && n < maxSentenceLen {
			out = append(out, s)
		}
	}
	return out
}

func joinSentences(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return strings.Join(ss, ". ") + "."
}

func firstN(ss []string, n int) []string {
	if len(ss) > n {
		return ss[:n]
	}
	return ss
}

func fallbackIntro(article domain.Article) string {
	text := strings.Join(strings.Fields(article.Content), " ")
	if r := []rune(text); len(r) > maxSentenceLen {
		text = string(r[:maxSentenceLen]) + "…"
	}
	if text != "" {
		return text
	}
	if article.Title != "" {
		return article.Title
	}
	return "Aucun contenu disponible."
}

func sentimentEmoji(sentiment string) string {
	switch sentiment {
	case domain.SentimentBullish:
		return "📈"
	case domain.SentimentBearish:
		return "📉"
	default:
		return "➡️"
	}
}
