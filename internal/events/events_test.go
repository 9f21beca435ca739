package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxwatch/internal/domain"
)

func TestNewArticleEvent(t *testing.T) {
	entry := domain.HistoryEntry{
		ID:          "6f1c",
		Date:        time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
		URL:         "https://think.ing.com/articles/fx-daily",
		Title:       "FX Daily",
		Tags:        []string{"#EUR", "#USD"},
		KeyTakeaway: "Vendre les rebonds.",
		Source:      "ing",
		SourceName:  "ING Think",
	}
	summary := &domain.Summary{
		Currencies: map[string]domain.CurrencySection{
			"USD": {Sentiment: domain.SentimentBearish},
			"EUR": {Sentiment: domain.SentimentBullish},
		},
		Fallback: true,
	}

	ev := NewArticleEvent(entry, summary, 3)
	assert.Equal(t, "ing", ev.Source)
	assert.Equal(t, 3, ev.Recipients)
	assert.True(t, ev.Fallback)
	assert.Equal(t, map[string]string{"USD": "baissier", "EUR": "haussier"}, ev.Currencies)

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"keyTakeaway":"Vendre les rebonds."`)
	assert.Contains(t, string(data), `"processedAt":"2026-03-04T08:00:00Z"`)
}
