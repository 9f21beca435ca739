package notify

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"fxwatch/internal/calendar"
	"fxwatch/internal/domain"
)

// Callback data prefix for the "search similar" article button.
const SearchCallbackPrefix = "search:"

// Telegram rejects callback data longer than 64 bytes.
const maxCallbackData = 64

// MaxMessageLen is Telegram's limit for one message text, in characters.
const MaxMessageLen = 4096

// maxIntroLen bounds the introduction so currency sections keep most of the room.
const maxIntroLen = 1000

// ArticleMessage renders a processed article as Telegram HTML with its inline
// buttons. loc is used for calendar event times. Currency sections that do not
// fit in MaxMessageLen are left out whole, so the markup stays balanced.
func ArticleMessage(summary *domain.Summary, articleURL, sourceName string, loc *time.Location) Message {
	if loc == nil {
		loc = time.UTC
	}
	var head strings.Builder
	if sourceName != "" {
		fmt.Fprintf(&head, "📰 <i>%s</i>\n", esc(sourceName))
	}
	fmt.Fprintf(&head, "<b>%s</b>\n\n", esc(truncateRunes(summary.Title, 200)))
	if summary.Introduction != "" {
		fmt.Fprintf(&head, "<i>%s</i>\n\n", esc(truncateRunes(summary.Introduction, maxIntroLen)))
	}

	codes := summary.CurrencyCodes()
	sections := make([]string, 0, len(codes))
	for _, code := range codes {
		sections = append(sections, currencySection(code, summary.Currencies[code], loc))
	}

	var tail strings.Builder
	if len(codes) == 0 && summary.Conclusion != "" {
		fmt.Fprintf(&tail, "<b>Analyse :</b>\n%s\n\n", esc(truncateRunes(summary.Conclusion, maxIntroLen)))
	}
	if summary.KeyTakeaway != "" {
		fmt.Fprintf(&tail, "💡 <b>À retenir :</b> %s\n\n", esc(truncateRunes(summary.KeyTakeaway, 500)))
	}
	if len(summary.Tags) > 0 {
		fmt.Fprintf(&tail, "%s\n\n", esc(strings.Join(summary.Tags, " ")))
	}
	fmt.Fprintf(&tail, `🔗 <a href="%s">Lire l'article original</a>`, esc(articleURL))

	var b strings.Builder
	b.WriteString(head.String())
	// Room for the omission note is kept aside so it always fits.
	budget := MaxMessageLen - runeLen(head.String()) - runeLen(tail.String()) - runeLen(omittedNote(len(sections)))
	for i, sec := range sections {
		if runeLen(sec) > budget {
			b.WriteString(omittedNote(len(sections) - i))
			break
		}
		b.WriteString(sec)
		budget -= runeLen(sec)
	}
	b.WriteString(tail.String())

	return Message{Text: b.String(), HTML: true, Buttons: articleButtons(articleURL, summary.Tags)}
}

// BriefingMessage wraps a plain-text morning briefing as Telegram HTML.
func BriefingMessage(text string) Message {
	const header = "☕ <b>Morning Briefing</b>\n\n"
	return Message{Text: header + escapeWithin(text, MaxMessageLen-runeLen(header)), HTML: true}
}

// escapeWithin escapes s, cutting it so that the result holds at most n
// characters. Entities are never split.
func escapeWithin(s string, n int) string {
	if full := esc(s); runeLen(full) <= n {
		return full
	}
	var b strings.Builder
	used := 0
	for _, r := range s {
		e := esc(string(r))
		if used+runeLen(e) > n-1 {
			break
		}
		b.WriteString(e)
		used += runeLen(e)
	}
	return b.String() + "…"
}

func currencySection(code string, sec domain.CurrencySection, loc *time.Location) string {
	var b strings.Builder
	emoji := sec.Emoji
	if emoji == "" {
		emoji = "➡️"
	}
	text := sec.Summary
	if text == "" {
		text = "Pas de détails."
	}
	fmt.Fprintf(&b, "%s <b>%s</b> (%s)\n%s\n", esc(emoji), code, esc(strings.ToUpper(sec.Sentiment)), esc(text))

	if len(sec.Events) > 0 {
		b.WriteString("\n📅 <i>Calendrier éco :</i>\n")
		for _, ev := range sec.Events {
			impact := "🟠"
			if ev.Impact == domain.ImpactHigh {
				impact = "🔴"
			}
			link := ""
			if te := calendar.TradingEconomicsLink(code, ev.Title); te != "" {
				link = fmt.Sprintf(` <a href="%s">[Graph ↗]</a>`, esc(te))
			}
			fmt.Fprintf(&b, "• %s %s %s%s\n", ev.Date.In(loc).Format("15:04"), impact, esc(ev.Title), link)
		}
	}
	b.WriteString("\n")
	return b.String()
}

func omittedNote(n int) string {
	return fmt.Sprintf("<i>… %d section(s) de plus dans l'article.</i>\n\n", n)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func articleButtons(articleURL string, tags []string) [][]Button {
	row := []Button{{Text: "📖 Lire l'original", URL: articleURL}}
	if len(tags) > 0 {
		data := SearchCallbackPrefix + strings.TrimPrefix(tags[0], "#")
		if len(data) <= maxCallbackData {
			row = append(row, Button{Text: "🔍 Articles similaires", Data: data})
		}
	}
	return [][]Button{row}
}

// HistoryList renders search or listing results as Telegram HTML.
func HistoryList(header string, entries []domain.HistoryEntry, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", esc(header))
	for _, e := range entries {
		fmt.Fprintf(&b, "• %s <a href=\"%s\">%s</a>", e.Date.In(loc).Format("02/01 15:04"), esc(e.URL), esc(e.Title))
		if len(e.Tags) > 0 {
			fmt.Fprintf(&b, " <i>%s</i>", esc(strings.Join(e.Tags, " ")))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func esc(s string) string {
	return html.EscapeString(s)
}
