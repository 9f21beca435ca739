package calendar

import (
	"net/url"
	"strings"
)

var countrySlugs = map[string]string{
	"USD": "united-states",
	"EUR": "euro-area",
	"GBP": "united-kingdom",
	"JPY": "japan",
	"AUD": "australia",
	"NZD": "new-zealand",
	"CAD": "canada",
	"CHF": "switzerland",
	"CNY": "china",
}

// Checked in order; the first keyword found in the event title wins.
var indicatorSlugs = []struct {
	keywords []string
	slug     string
}{
	{[]string{"rate decision", "interest rate", "cash rate", "bank rate", "fomc"}, "interest-rate"},
	{[]string{"cpi", "inflation"}, "inflation-rate"},
	{[]string{"gdp"}, "gdp-growth-annual"},
	{[]string{"unemployment", "claimant"}, "unemployment-rate"},
	{[]string{"non-farm", "employment change"}, "non-farm-payrolls"},
	{[]string{"retail sales"}, "retail-sales"},
	{[]string{"manufacturing pmi"}, "manufacturing-pmi"},
	{[]string{"services pmi"}, "services-pmi"},
	{[]string{"trade balance"}, "balance-of-trade"},
	{[]string{"consumer confidence", "consumer sentiment"}, "consumer-confidence"},
	{[]string{"building permits"}, "building-permits"},
	{[]string{"ppi"}, "producer-prices"},
}

// TradingEconomicsLink points at the tradingeconomics.com page for an event.
// Known indicators get a direct page; anything else falls back to the site
// search. An unknown currency yields "".
func TradingEconomicsLink(currency, title string) string {
	country, ok := countrySlugs[strings.ToUpper(currency)]
	if !ok {
		return ""
	}
	lower := strings.ToLower(title)
	for _, ind := range indicatorSlugs {
		for _, kw := range ind.keywords {
			if strings.Contains(lower, kw) {
				return "https://tradingeconomics.com/" + country + "/" + ind.slug
			}
		}
	}
	return "https://tradingeconomics.com/search?q=" + url.QueryEscape(country+" "+title)
}
