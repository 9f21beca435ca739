package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"fxwatch/internal/domain"
)

type sentimentColors struct {
	Bg, Text, Border string
}

var colorsBySentiment = map[string]sentimentColors{
	domain.SentimentBullish: {"#dcfce7", "#166534", "#22c55e"},
	domain.SentimentBearish: {"#fee2e2", "#991b1b", "#ef4444"},
	domain.SentimentNeutral: {"#f3f4f6", "#374151", "#9ca3af"},
}

var newsletterTmpl = template.Must(template.New("newsletter").Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"><title>{{.Summary.Title}}</title></head>
<body style="margin:0;padding:24px;font-family:'Segoe UI',Tahoma,sans-serif;background:#f8fafc;">
<table role="presentation" style="max-width:600px;width:100%;margin:0 auto;background:#ffffff;border-radius:12px;">
<tr><td style="padding:24px 32px;background:#0f172a;border-radius:12px 12px 0 0;color:#f1f5f9;">
<h1 style="margin:0;font-size:20px;">📊 {{.Source}}</h1>
<p style="margin:6px 0 0 0;color:#94a3b8;font-size:13px;">{{.Date}}</p>
</td></tr>
<tr><td style="padding:24px 32px 8px 32px;"><h2 style="margin:0;color:#1e293b;font-size:20px;">{{.Summary.Title}}</h2></td></tr>
<tr><td style="padding:0 32px 16px 32px;"><p style="color:#475569;font-size:15px;line-height:1.7;border-left:3px solid #3b82f6;padding-left:16px;">{{.Summary.Introduction}}</p></td></tr>
{{range .Sections}}
<tr><td style="padding:0 32px 16px 32px;">
<div style="background:{{.Colors.Bg}};border-left:4px solid {{.Colors.Border}};padding:16px 20px;border-radius:0 12px 12px 0;">
<h4 style="margin:0;color:{{.Colors.Text}};font-size:16px;">{{.Emoji}} {{.Code}} - {{.Name}}</h4>
<span style="color:{{.Colors.Text}};font-size:12px;text-transform:uppercase;">{{.Sentiment}}</span>
<p style="color:#374151;font-size:14px;line-height:1.6;">{{.Summary}}</p>
{{range .Factors}}<span style="display:inline-block;background:#ffffffb3;color:#4b5563;padding:4px 10px;margin:2px;border-radius:16px;font-size:11px;">{{.}}</span>{{end}}
</div>
</td></tr>
{{else}}
<tr><td style="padding:0 32px 16px 32px;"><p style="color:#64748b;font-style:italic;">Aucune devise majeure spécifiquement analysée dans cet article.</p></td></tr>
{{end}}
{{if .Summary.KeyTakeaway}}
<tr><td style="padding:8px 32px 16px 32px;"><div style="background:#fef3c7;padding:20px;border-radius:12px;">
<h3 style="margin:0 0 8px 0;color:#92400e;font-size:14px;">💡 Point clé à retenir</h3>
<p style="margin:0;color:#78350f;font-size:14px;">{{.Summary.KeyTakeaway}}</p>
</div></td></tr>
{{end}}
{{if .Summary.Conclusion}}
<tr><td style="padding:0 32px 16px 32px;"><p style="color:#334155;font-size:14px;line-height:1.6;">{{.Summary.Conclusion}}</p></td></tr>
{{end}}
<tr><td style="padding:16px 32px 32px 32px;text-align:center;">
<a href="{{.URL}}" style="background:#3b82f6;color:#ffffff;padding:12px 24px;border-radius:8px;text-decoration:none;">Lire l'article complet</a>
</td></tr>
</table>
</body>
</html>`))

type newsletterSection struct {
	Code, Name, Emoji, Sentiment, Summary string
	Factors                               []string
	Colors                                sentimentColors
}

// NewsletterSubject is the email subject for a processed article.
func NewsletterSubject(summary *domain.Summary) string {
	return "📊 " + summary.Title
}

// NewsletterHTML renders the email version of a processed article. names maps
// currency codes to display names.
func NewsletterHTML(summary *domain.Summary, articleURL, sourceName string, names map[string]string, now time.Time) (string, error) {
	var sections []newsletterSection
	for _, code := range summary.CurrencyCodes() {
		sec := summary.Currencies[code]
		colors, ok := colorsBySentiment[sec.Sentiment]
		if !ok {
			colors = colorsBySentiment[domain.SentimentNeutral]
		}
		name := names[code]
		if name == "" {
			name = code
		}
		sections = append(sections, newsletterSection{
			Code:      code,
			Name:      name,
			Emoji:     sec.Emoji,
			Sentiment: sec.Sentiment,
			Summary:   sec.Summary,
			Factors:   sec.Factors,
			Colors:    colors,
		})
	}

	var buf bytes.Buffer
	err := newsletterTmpl.Execute(&buf, map[string]any{
		"Summary":  summary,
		"Sections": sections,
		"Source":   sourceName,
		"URL":      articleURL,
		"Date":     now.Format("02/01/2006"),
	})
	if err != nil {
		return "", fmt.Errorf("render newsletter: %w", err)
	}
	return buf.String(), nil
}
