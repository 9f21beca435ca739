package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot/models"

	"fxwatch/internal/domain"
	"fxwatch/internal/notify"
)

// Callback data prefix of the "add tag filter" button.
const tagsCallbackPrefix = "tags:"

const maxSearchResults = 10

func plain(text string) notify.Message { return notify.Message{Text: text} }

func (h *Handler) start(ctx context.Context, user *models.User, _ string) notify.Message {
	name := strings.TrimSpace(user.FirstName)
	if _, _, err := h.deps.Users.RegisterUser(ctx, user.ID, name); err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("Failed to register user")
	}

	return plain(fmt.Sprintf("👋 Bonjour %s !\n\n"+
		"Je surveille les marchés et je vous envoie des analyses FX filtrées par IA.\n\n"+
		"📌 Commandes disponibles :\n"+
		"/sources - Voir les sources disponibles\n"+
		"/subscribe <source> [tags] - S'abonner (ex : /subscribe ing #USD)\n"+
		"/unsubscribe <source> [tags] - Se désabonner\n"+
		"/mysubs - Voir mes abonnements\n"+
		"/search <terme> - Chercher dans l'historique\n"+
		"/ask <question> - Interroger vos sources\n"+
		"/cancel - Annuler la saisie en cours", name))
}

func (h *Handler) sources() notify.Message {
	var b strings.Builder
	b.WriteString("📚 <b>Sources disponibles :</b>\n\n")
	for _, s := range h.deps.Sources.List() {
		fmt.Fprintf(&b, "🔹 <code>%s</code> : %s (%s)\n", html.EscapeString(s.ID), html.EscapeString(s.Name), s.Kind)
	}
	return notify.Message{Text: b.String(), HTML: true}
}

func (h *Handler) subscribe(ctx context.Context, user *models.User, args string) notify.Message {
	sourceID, rest, _ := strings.Cut(args, " ")
	if sourceID == "" {
		return plain("Usage : /subscribe <source> [tags]\nExemple : /subscribe ing #USD #EUR")
	}
	if msg, ok := h.checkSource(sourceID); !ok {
		return msg
	}
	tags, ok := tagArgs(rest)
	if !ok {
		return plain("Aucun tag valide dans la commande.\nUsage : /subscribe <source> [tags]\nExemple : /subscribe ing #USD #EUR")
	}
	if _, _, err := h.deps.Users.RegisterUser(ctx, user.ID, user.FirstName); err != nil {
		return h.failure(err, user.ID)
	}

	sub, err := h.deps.Users.Subscribe(ctx, user.ID, sourceID, tags)
	if err != nil {
		return h.failure(err, user.ID)
	}
	h.convs.Reset(user.ID)

	if sub.All() {
		return notify.Message{
			Text: fmt.Sprintf("✅ Abonnement confirmé pour %s (tout le contenu).", sourceID),
			Buttons: [][]notify.Button{{
				{Text: "🏷 Ajouter un filtre de tags", Data: tagsCallbackPrefix + sourceID},
			}},
		}
	}
	return plain(fmt.Sprintf("✅ Abonnement confirmé pour %s (filtres : %s).", sourceID, strings.Join(sub.Tags, ", ")))
}

func (h *Handler) unsubscribe(ctx context.Context, user *models.User, args string) notify.Message {
	sourceID, rest, _ := strings.Cut(args, " ")
	if sourceID == "" {
		return plain("Usage : /unsubscribe <source> [tags]")
	}
	tags, ok := tagArgs(rest)
	if !ok {
		return plain("Aucun tag valide dans la commande.\nUsage : /unsubscribe <source> [tags]")
	}
	err := h.deps.Users.Unsubscribe(ctx, user.ID, sourceID, tags)
	switch {
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrSubscriptionNotFound):
		return plain(fmt.Sprintf("Vous n'êtes pas abonné à %s.", sourceID))
	case err != nil:
		return h.failure(err, user.ID)
	}

	if len(tags) == 0 {
		return plain(fmt.Sprintf("🗑 Désabonné de %s.", sourceID))
	}
	u, err := h.deps.Users.GetUser(ctx, user.ID)
	if err != nil {
		return h.failure(err, user.ID)
	}
	sub, ok := u.Subscription(sourceID)
	switch {
	case !ok:
		return plain(fmt.Sprintf("🗑 Plus aucun tag : abonnement à %s supprimé.", sourceID))
	case sub.All():
		return plain(fmt.Sprintf("Votre abonnement à %s couvre tout le contenu, aucun tag à retirer.", sourceID))
	default:
		return plain(fmt.Sprintf("✂️ Filtres restants pour %s : %s", sourceID, strings.Join(sub.Tags, ", ")))
	}
}

func (h *Handler) mySubs(ctx context.Context, userID int64) notify.Message {
	u, err := h.deps.Users.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return h.failure(err, userID)
	}
	if len(u.Subscriptions) == 0 {
		return plain("📭 Aucun abonnement actif.")
	}

	var b strings.Builder
	b.WriteString("📋 Vos abonnements :\n\n")
	for i, sub := range u.Subscriptions {
		filter := "(tout)"
		if !sub.All() {
			filter = "(tags : " + strings.Join(sub.Tags, ", ") + ")"
		}
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, sub.Source, filter)
	}
	return plain(b.String())
}

func (h *Handler) search(ctx context.Context, term string) notify.Message {
	term = strings.TrimSpace(term)
	if term == "" {
		return plain("Usage : /search <terme>")
	}
	results, err := h.deps.History.Search(ctx, term)
	if err != nil {
		return h.failure(err, 0)
	}
	if len(results) == 0 {
		return plain(fmt.Sprintf("🔍 Aucun article trouvé pour « %s ».", term))
	}
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	header := fmt.Sprintf("🔍 Résultats pour « %s »", term)
	return notify.Message{Text: notify.HistoryList(header, results, h.deps.Location), HTML: true}
}

func (h *Handler) ask(ctx context.Context, userID int64, question string) notify.Message {
	question = strings.TrimSpace(question)
	if question == "" {
		return plain("Usage : /ask <question>\nExemple : /ask Que disent mes sources sur le yen ?")
	}
	if h.deps.Asker == nil {
		return plain("⚙️ Les questions nécessitent une clé API IA, non configurée.")
	}
	answer, err := h.deps.Asker.Ask(ctx, userID, question)
	var cfgErr *domain.ConfigError
	if errors.As(err, &cfgErr) {
		return plain("⚙️ Les questions nécessitent une clé API IA, non configurée.")
	}
	if err != nil {
		return h.failure(err, userID)
	}
	return plain(answer)
}

// tagArgs parses the optional tag list of a command. An argument that holds
// no valid tag is rejected rather than read as "no filter".
func tagArgs(rest string) ([]string, bool) {
	if strings.TrimSpace(rest) == "" {
		return nil, true
	}
	tags := domain.ParseTags(rest)
	return tags, len(tags) > 0
}

func (h *Handler) cancel(userID int64) notify.Message {
	if h.convs.Reset(userID) {
		return plain("Saisie annulée.")
	}
	return plain("Rien à annuler.")
}

// text handles a plain message. It reports false when no conversation expects
// input from the user.
func (h *Handler) text(ctx context.Context, userID int64, text string) (notify.Message, bool) {
	conv := h.convs.Get(userID)
	if conv.State != StateAwaitingTags {
		return notify.Message{}, false
	}

	tags := domain.ParseTags(text)
	if len(tags) == 0 {
		return plain("Aucun tag reconnu. Envoyez par exemple : #USD #EUR, ou /cancel."), true
	}
	sub, err := h.deps.Users.Subscribe(ctx, userID, conv.SourceID, tags)
	if err != nil {
		return h.failure(err, userID), true
	}
	h.convs.Reset(userID)
	return plain(fmt.Sprintf("✅ Filtres pour %s : %s", conv.SourceID, strings.Join(sub.Tags, ", "))), true
}

func (h *Handler) callback(ctx context.Context, userID int64, data string) notify.Message {
	switch {
	case strings.HasPrefix(data, tagsCallbackPrefix):
		sourceID := strings.TrimPrefix(data, tagsCallbackPrefix)
		if msg, ok := h.checkSource(sourceID); !ok {
			return msg
		}
		h.convs.AwaitTags(userID, sourceID)
		return plain(fmt.Sprintf("🏷 Envoyez les tags à suivre pour %s (ex : #USD #EUR). /cancel pour annuler.", sourceID))
	case strings.HasPrefix(data, notify.SearchCallbackPrefix):
		return h.search(ctx, strings.TrimPrefix(data, notify.SearchCallbackPrefix))
	default:
		h.log.WithField("data", data).Debug("Unknown callback data")
		return notify.Message{}
	}
}

func (h *Handler) checkSource(id string) (notify.Message, bool) {
	_, err := h.deps.Sources.Get(id)
	var notFound *domain.SourceNotFoundError
	if errors.As(err, &notFound) {
		return plain(fmt.Sprintf("❌ Source inconnue « %s ». Sources disponibles : %s", id, strings.Join(notFound.Valid, ", "))), false
	}
	if err != nil {
		return h.failure(err, 0), false
	}
	return notify.Message{}, true
}

func (h *Handler) failure(err error, userID int64) notify.Message {
	h.log.WithError(err).WithField("user_id", userID).Error("Command failed")
	return plain("❌ Une erreur est survenue, réessayez plus tard.")
}
