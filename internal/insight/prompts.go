package insight

import (
	"fmt"
	"strings"

	"fxwatch/internal/domain"
)

func briefingPrompt(news []domain.HistoryEntry, events []domain.CalendarEvent, interests []string) string {
	var newsLines []string
	for _, n := range news {
		newsLines = append(newsLines, fmt.Sprintf("- [%s] %s (Tags: %s)", n.Source, n.Title, strings.Join(n.Tags, ", ")))
	}
	newsText := strings.Join(newsLines, "\n")
	if newsText == "" {
		newsText = "Aucune news majeure enregistrée."
	}

	var eventLines []string
	for _, e := range events {
		eventLines = append(eventLines, fmt.Sprintf("- %s [%s] %s : %s", e.Date.Format("15:04"), e.Impact, e.Currency, e.Title))
	}
	calendarText := strings.Join(eventLines, "\n")
	if calendarText == "" {
		calendarText = "Aucun événement majeur aujourd'hui."
	}

	interestsText := "L'utilisateur s'intéresse à l'ensemble du marché Forex sans filtre spécifique."
	if len(interests) > 0 {
		interestsText = "L'utilisateur s'intéresse particulièrement aux actifs suivants : " + strings.Join(interests, ", ") + "."
	}

	return fmt.Sprintf(`Tu es un analyste macro senior. Voici l'actualité des dernières 24h et le calendrier économique du jour pour les marchés Forex.

%s

ACTUALITÉ RÉCENTE :
%s

CALENDRIER ÉCO DU JOUR :
%s

Rédige un Morning Briefing personnalisé pour ce trader, orienté vers ses intérêts tout en gardant une vision macro globale.
Style professionnel, concis et direct.

Structure :
1. Rétrospective 24h : l'humeur du marché en 3 phrases.
2. Top news : les 3 faits les plus marquants pour ce profil.
3. Focus du jour : les actifs à surveiller selon le calendrier.
4. Sentiment global (ex : USD haussier, risk-off).

Réponds en français, en texte brut avec quelques emojis.`, interestsText, newsText, calendarText)
}

func askPrompt(entries []domain.HistoryEntry, question string) string {
	var blocks []string
	for _, n := range entries {
		blocks = append(blocks, fmt.Sprintf("[%s] SOURCE: %s\nTITRE: %s\nCLÉ: %s\nTAGS: %s",
			n.Date.Format("2006-01-02 15:04"), n.Source, n.Title, n.KeyTakeaway, strings.Join(n.Tags, ", ")))
	}

	return fmt.Sprintf(`Tu es un assistant expert en trading Forex. Réponds à la question en te basant UNIQUEMENT sur les articles récents des sources d'abonnement de l'utilisateur ci-dessous.

CONTEXTE :
%s

QUESTION : "%s"

Consignes :
- Parle de "vos sources d'abonnement", jamais de "mes sources".
- Si la réponse n'est pas dans le contexte, dis-le poliment et suggère d'ajouter des sources avec /subscribe.
- Cite les sources quand c'est possible.
- Réponse claire et actionnable, en français, avec quelques emojis.`, strings.Join(blocks, "\n\n---\n\n"), question)
}
