package domain

import (
	"sort"
	"time"
)

// Sentiment values as produced by the summarizer.
const (
	SentimentBullish = "haussier"
	SentimentBearish = "baissier"
	SentimentNeutral = "neutre"
)

// CurrencySection is the per-currency part of a summary.
type CurrencySection struct {
	Sentiment string          `json:"sentiment"`
	Emoji     string          `json:"emoji"`
	Summary   string          `json:"summary"`
	Factors   []string        `json:"factors"`
	Events    []CalendarEvent `json:"events,omitempty"`
}

// Summary is the structured digest of one article.
type Summary struct {
	Title               string                     `json:"title"`
	Introduction        string                     `json:"introduction"`
	Currencies          map[string]CurrencySection `json:"currencies"`
	Conclusion          string                     `json:"conclusion"`
	KeyTakeaway         string                     `json:"keyTakeaway"`
	MentionedCurrencies []string                   `json:"mentionedCurrencies"`
	Tags                []string                   `json:"tags"`

	// Fallback is set when the extractive summarizer produced this summary.
	Fallback bool `json:"fallback"`
}

// CurrencyCodes returns the codes that have a section, sorted.
func (s *Summary) CurrencyCodes() []string {
	codes := make([]string, 0, len(s.Currencies))
	for code := range s.Currencies {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Impact levels published by the calendar feed.
const (
	ImpactLow    = "Low"
	ImpactMedium = "Medium"
	ImpactHigh   = "High"
)

// CalendarEvent is one scheduled economic release.
type CalendarEvent struct {
	Title    string    `json:"title"`
	Currency string    `json:"currency"`
	Date     time.Time `json:"date"`
	Impact   string    `json:"impact"`
	Forecast string    `json:"forecast,omitempty"`
	Previous string    `json:"previous,omitempty"`
}
