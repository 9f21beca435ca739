package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxwatch/internal/domain"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>FX</title>
<item>
  <title>Oil slips on demand worries</title>
  <link>https://example.com/oil</link>
  <description>Brent fell.</description>
</item>
<item>
  <title>FX Daily: EUR firms</title>
  <link>https://example.com/fx-daily-eur</link>
  <description>&lt;p&gt;The &lt;b&gt;euro&lt;/b&gt; is firmer.&lt;/p&gt;</description>
  <pubDate>Mon, 02 Feb 2026 07:00:00 +0000</pubDate>
</item>
</channel></rss>`

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", contentType)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSAdapter_FirstItemWithoutFilter(t *testing.T) {
	srv := serve(t, "application/rss+xml", testFeed)

	item, err := NewRSSAdapter("fx", srv.URL, nil, nil).FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/oil", item.URL)
	assert.True(t, item.PublishedTime.IsZero())
}

func TestRSSAdapter_FilterSelectsFirstMatch(t *testing.T) {
	srv := serve(t, "application/rss+xml", testFeed)

	item, err := NewRSSAdapter("fx", srv.URL, TitleContains("fx daily"), nil).FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/fx-daily-eur", item.URL)
	assert.Equal(t, "FX Daily: EUR firms", item.Title)
	assert.Equal(t, "The euro is firmer.", item.Description)
	assert.Equal(t, 2026, item.PublishedTime.Year())
}

func TestRSSAdapter_NoMatch(t *testing.T) {
	srv := serve(t, "application/rss+xml", testFeed)

	_, err := NewRSSAdapter("fx", srv.URL, TitleContains("gold"), nil).FetchLatest(context.Background())
	var nm *domain.NoMatchError
	require.True(t, errors.As(err, &nm))
	assert.Equal(t, "no item matched filter", nm.Reason)
}

func TestRSSAdapter_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRSSAdapter("fx", srv.URL, nil, nil).FetchLatest(context.Background())
	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "fx", fe.Source)
}

const ingPage = `<html><body>
<a href="/market/fx/">FX</a>
<a href="/articles/short/">Too short</a>
<a href="/articles/rates-spark-bund-yields/"><h3>Rates Spark: Bund yields</h3> Bunds rallied.</a>
<a href="/articles/fx-daily-dollar-licks-its-wounds/">
  <h3>FX Daily: Dollar licks its wounds</h3>
  The dollar is weaker. Markets await payrolls. EUR/USD could test 1.19.
</a>
<a href="/articles/fx-daily-older/"><h3>FX Daily: older</h3> Older piece here.</a>
</body></html>`

func TestScrapeAdapter_INGSelector(t *testing.T) {
	srv := serve(t, "text/html", ingPage)

	item, err := NewScrapeAdapter("ing", srv.URL+"/market/fx/", INGSelector, nil).FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/articles/fx-daily-dollar-licks-its-wounds/", item.URL, "relative links are resolved")
	assert.Equal(t, "FX Daily: Dollar licks its wounds", item.Title)
	assert.Equal(t, "Markets await payrolls. EUR/USD could test 1.19.", item.Description)
}

func TestScrapeAdapter_NoCandidate(t *testing.T) {
	srv := serve(t, "text/html", `<html><body><a href="/articles/x/">Rates Spark: nothing here</a></body></html>`)

	_, err := NewScrapeAdapter("ing", srv.URL, INGSelector, nil).FetchLatest(context.Background())
	var nm *domain.NoMatchError
	assert.True(t, errors.As(err, &nm))
}

func TestInvestingSelector(t *testing.T) {
	t.Run("article header", func(t *testing.T) {
		srv := serve(t, "text/html", `<html><body>
<a class="article-slot-header__link" href="/forex/usdjpy-looks-poised-20260203/">
  <span class="article-slot-header__title">USD/JPY looks poised to break higher</span>
</a></body></html>`)

		item, err := NewScrapeAdapter("investing", srv.URL+"/live-feed/", InvestingSelector, nil).FetchLatest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/forex/usdjpy-looks-poised-20260203/", item.URL)
		assert.Equal(t, "USD/JPY looks poised to break higher", item.Title)
	})

	t.Run("slug heuristic", func(t *testing.T) {
		srv := serve(t, "text/html", `<html><body>
<a href="/forex/">Forex news and analysis today</a>
<a href="/news/short-slug/">A headline that is long enough</a>
<a href="https://investinglive.com/commodities/gold-rallies-to-record-20260203/">Gold rallies to a fresh record high</a>
</body></html>`)

		item, err := NewScrapeAdapter("investing", srv.URL, InvestingSelector, nil).FetchLatest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "https://investinglive.com/commodities/gold-rallies-to-record-20260203/", item.URL)
		assert.Equal(t, "Gold rallies to a fresh record high", item.Title)
	})
}
