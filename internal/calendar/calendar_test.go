package calendar

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxwatch/internal/domain"
)

const weekXML = `<?xml version="1.0" encoding="windows-1252"?>
<weeklyevents>
	<event>
		<title>Non-Farm Employment Change</title>
		<country>USD</country>
		<date><![CDATA[03-04-2026]]></date>
		<time><![CDATA[1:30pm]]></time>
		<impact><![CDATA[High]]></impact>
		<forecast><![CDATA[180K]]></forecast>
		<previous><![CDATA[151K]]></previous>
	</event>
	<event>
		<title>German Buba President Speaks</title>
		<country>EUR</country>
		<date><![CDATA[03-04-2026]]></date>
		<time><![CDATA[9:00am]]></time>
		<impact><![CDATA[Low]]></impact>
	</event>
	<event>
		<title>CPI Flash Estimate y/y</title>
		<country>EUR</country>
		<date><![CDATA[03-04-2026]]></date>
		<time><![CDATA[10:00am]]></time>
		<impact><![CDATA[Medium]]></impact>
		<forecast><![CDATA[2.3%]]></forecast>
	</event>
	<event>
		<title>Bank Holiday</title>
		<country>JPY</country>
		<date><![CDATA[03-04-2026]]></date>
		<time><![CDATA[All Day]]></time>
		<impact><![CDATA[High]]></impact>
	</event>
	<event>
		<title>Official Bank Rate</title>
		<country>GBP</country>
		<date><![CDATA[03-05-2026]]></date>
		<time><![CDATA[12:00pm]]></time>
		<impact><![CDATA[High]]></impact>
	</event>
	<event>
		<title>Broken</title>
		<country>USD</country>
		<date><![CDATA[not-a-date]]></date>
	</event>
</weeklyevents>`

func newTestClient(t *testing.T) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(weekXML))
	}))
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(srv.URL, srv.Client(), time.FixedZone("CET", 3600), logger), &hits
}

func TestEvents_FiltersDayAndImpact(t *testing.T) {
	c, _ := newTestClient(t)

	events, err := c.Events(context.Background(), time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "Non-Farm Employment Change", events[0].Title)
	assert.Equal(t, "USD", events[0].Currency)
	assert.Equal(t, domain.ImpactHigh, events[0].Impact)
	assert.Equal(t, "180K", events[0].Forecast)
	assert.Equal(t, 13, events[0].Date.Hour())
	assert.Equal(t, 30, events[0].Date.Minute())

	assert.Equal(t, "CPI Flash Estimate y/y", events[1].Title)
	assert.Equal(t, "Bank Holiday", events[2].Title)
	assert.Equal(t, 0, events[2].Date.Hour(), "all-day events map to midnight")
}

func TestEvents_DayFollowsLocation(t *testing.T) {
	c, _ := newTestClient(t)

	// 23:30 UTC on the 4th is already the 5th in CET.
	events, err := c.Events(context.Background(), time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "GBP", events[0].Currency)
}

func TestEventsForCurrencies(t *testing.T) {
	c, hits := newTestClient(t)
	ref := time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)

	byCode, err := c.EventsForCurrencies(context.Background(), []string{"EUR", "USD", "CHF"}, ref)
	require.NoError(t, err)
	assert.Len(t, byCode["EUR"], 1)
	assert.Len(t, byCode["USD"], 1)
	assert.NotNil(t, byCode["CHF"])
	assert.Empty(t, byCode["CHF"])
	assert.NotContains(t, byCode, "JPY")

	_, err = c.Events(context.Background(), ref)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits), "the weekly feed is cached")
}

func TestEvents_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	_, err := NewClient(srv.URL, srv.Client(), nil, logger).Events(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTradingEconomicsLink(t *testing.T) {
	assert.Equal(t, "https://tradingeconomics.com/euro-area/inflation-rate", TradingEconomicsLink("EUR", "CPI Flash Estimate y/y"))
	assert.Equal(t, "https://tradingeconomics.com/united-states/non-farm-payrolls", TradingEconomicsLink("usd", "Non-Farm Employment Change"))
	assert.Equal(t, "https://tradingeconomics.com/united-kingdom/interest-rate", TradingEconomicsLink("GBP", "Official Bank Rate"))
	assert.Equal(t, "https://tradingeconomics.com/search?q=japan+Bank+Holiday", TradingEconomicsLink("JPY", "Bank Holiday"))
	assert.Empty(t, TradingEconomicsLink("XAU", "Gold"))
}
