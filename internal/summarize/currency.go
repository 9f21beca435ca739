package summarize

import (
	"fmt"
	"regexp"
)

// TrackedCurrencies are the codes the summarizer builds sections for.
var TrackedCurrencies = []string{"USD", "EUR", "GBP", "JPY", "CAD", "CHF", "AUD", "NZD", "CNY"}

// CurrencyNames are display names used in messages.
var CurrencyNames = map[string]string{
	"USD": "Dollar américain",
	"EUR": "Euro",
	"GBP": "Livre sterling",
	"JPY": "Yen japonais",
	"CAD": "Dollar canadien",
	"CHF": "Franc suisse",
	"AUD": "Dollar australien",
	"NZD": "Dollar néo-zélandais",
	"CNY": "Yuan chinois",
}

// minMentions is how often a code must appear to count without a section header.
const minMentions = 4

type currencyPattern struct {
	code   string
	header *regexp.Regexp
	word   *regexp.Regexp
}

var currencyPatterns = func() []currencyPattern {
	out := make([]currencyPattern, 0, len(TrackedCurrencies))
	for _, code := range TrackedCurrencies {
		out = append(out, currencyPattern{
			code:   code,
			header: regexp.MustCompile(fmt.Sprintf(`(?im)^\s*\b%s\b\s*:`, code)),
			word:   regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\b`, code)),
		})
	}
	return out
}()

// DetectCurrencies returns the tracked currencies that are a main topic of
// content: either a line starts with "CODE:" or the code occurs at least
// four times as a whole word. Order follows TrackedCurrencies.
func DetectCurrencies(content string) []string {
	var found []string
	for _, p := range currencyPatterns {
		if p.header.MatchString(content) || len(p.word.FindAllStringIndex(content, minMentions)) >= minMentions {
			found = append(found, p.code)
		}
	}
	return found
}

// mentions reports whether text names code as a whole word.
func mentions(text, code string) bool {
	for _, p := range currencyPatterns {
		if p.code == code {
			return p.word.MatchString(text)
		}
	}
	return false
}

func isTracked(code string) bool {
	for _, c := range TrackedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}
