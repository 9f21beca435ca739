package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fxwatch/internal/domain"
	"fxwatch/internal/llm"
)

const maxPromptContent = 25000

const systemPrompt = "You are a financial analyst that answers with a single valid JSON object and nothing else."

// AI summarizes articles with an LLM in JSON mode.
type AI struct {
	client llm.Client
}

func NewAI(client llm.Client) *AI {
	return &AI{client: client}
}

type aiSummary struct {
	Title        string                `json:"title"`
	Introduction string                `json:"introduction"`
	Currencies   map[string]aiCurrency `json:"currencies"`
	Conclusion   string                `json:"conclusion"`
	KeyTakeaway  string                `json:"keyTakeaway"`
	Tags         []string              `json:"tags"`
}

type aiCurrency struct {
	Sentiment string   `json:"sentiment"`
	Emoji     string   `json:"emoji"`
	Summary   string   `json:"summary"`
	Factors   []string `json:"factors"`
}

// Summarize returns a *domain.SummarizeError when the model fails or its
// answer lacks both an introduction and currency sections.
func (a *AI) Summarize(ctx context.Context, article domain.Article, kind domain.SourceKind) (*domain.Summary, error) {
	mentioned := DetectCurrencies(article.Content)

	var out aiSummary
	if err := a.client.GenerateJSON(ctx, llm.UserPrompt(systemPrompt, buildPrompt(article, kind, mentioned)), &out); err != nil {
		return nil, &domain.SummarizeError{Err: err}
	}

	currencies := make(map[string]domain.CurrencySection, len(out.Currencies))
	for code, c := range out.Currencies {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !isTracked(code) || (len(mentioned) > 0 && !contains(mentioned, code)) {
			continue
		}
		sentiment := normalizeSentiment(c.Sentiment)
		emoji := c.Emoji
		if emoji == "" {
			emoji = sentimentEmoji(sentiment)
		}
		currencies[code] = domain.CurrencySection{
			Sentiment: sentiment,
			Emoji:     emoji,
			Summary:   strings.TrimSpace(c.Summary),
			Factors:   c.Factors,
		}
	}

	if strings.TrimSpace(out.Introduction) == "" && len(currencies) == 0 {
		return nil, &domain.SummarizeError{Err: errors.New("model returned an empty summary")}
	}

	title := strings.TrimSpace(out.Title)
	if title == "" {
		title = article.Title
	}
	return &domain.Summary{
		Title:               title,
		Introduction:        strings.TrimSpace(out.Introduction),
		Currencies:          currencies,
		Conclusion:          strings.TrimSpace(out.Conclusion),
		KeyTakeaway:         strings.TrimSpace(out.KeyTakeaway),
		MentionedCurrencies: mentioned,
		Tags:                out.Tags,
	}, nil
}

func buildPrompt(article domain.Article, kind domain.SourceKind, mentioned []string) string {
	content := article.Content
	if r := []rune(content); len(r) > maxPromptContent {
		content = string(r[:maxPromptContent])
	}

	allowed := strings.Join(TrackedCurrencies, ", ") + ", uniquement si directement concernées"
	if len(mentioned) > 0 {
		allowed = strings.Join(mentioned, ", ")
	}

	var b strings.Builder
	switch kind {
	case domain.KindFXDaily:
		b.WriteString("Tu es stratège FX senior. Résume cette analyse quotidienne des devises pour des traders professionnels, en français.\n")
		b.WriteString("Reprends fidèlement l'opinion de la source pour chaque devise: cibles chiffrées, langage directionnel, marqueurs de sentiment explicites.\n")
		b.WriteString("Environ 80 mots par devise, avec la logique macro et les chiffres clés.\n")
	default:
		b.WriteString("Tu es analyste macro. Résume cette dépêche de marché en français, en quelques phrases factuelles.\n")
		b.WriteString("Ne crée une section devise que si la dépêche la concerne directement.\n")
	}
	fmt.Fprintf(&b, "Sections de devises autorisées: %s.\n\n", allowed)
	fmt.Fprintf(&b, "TITRE: %s\nCONTENU:\n%s\n\n", article.Title, content)
	b.WriteString(`Réponds avec ce JSON:
{
  "title": "titre en français",
  "introduction": "contexte global en 2 à 4 phrases",
  "currencies": {
    "CODE": {
      "sentiment": "haussier" | "baissier" | "neutre",
      "emoji": "📈" | "📉" | "➡️",
      "summary": "analyse de la devise",
      "factors": ["facteur 1", "facteur 2"]
    }
  },
  "conclusion": "direction probable des prochaines séances",
  "keyTakeaway": "l'idée la plus importante pour un trader",
  "tags": ["#Thème", "..."]
}`)
	return b.String()
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "haussier", "bullish", "hausse":
		return domain.SentimentBullish
	case "baissier", "bearish", "baisse":
		return domain.SentimentBearish
	default:
		return domain.SentimentNeutral
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
