package bot

import (
	"context"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
	"fxwatch/internal/notify"
	"fxwatch/internal/source"
	"fxwatch/internal/storage"
)

// SourceCatalog is the read side of the source registry.
type SourceCatalog interface {
	List() []domain.SourceInfo
	Get(id string) (source.Source, error)
}

// Asker answers free-form questions from the user's history.
type Asker interface {
	Ask(ctx context.Context, userID int64, question string) (string, error)
}

// Deps are the collaborators of the bot. Asker may be nil.
type Deps struct {
	Sources  SourceCatalog
	Users    storage.UserRepository
	History  storage.HistoryRepository
	Asker    Asker
	Location *time.Location
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot   *tgbot.Bot
	deps  Deps
	convs *Conversations
	log   logrus.FieldLogger
}

// NewHandler wires the command handlers on b. A nil bot gives a handler whose
// commands can be driven directly.
func NewHandler(b *tgbot.Bot, deps Deps, logger logrus.FieldLogger) *Handler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	h := &Handler{
		bot:   b,
		deps:  deps,
		convs: NewConversations(DefaultConversationTTL),
		log:   logger.WithField("component", "bot_handler"),
	}
	if b != nil {
		h.registerHandlers()
	}
	h.log.Info("Telegram bot handler initialized")
	return h
}

// registerHandlers sets up the command, text and callback handlers.
func (h *Handler) registerHandlers() {
	commands := map[string]func(ctx context.Context, user *models.User, args string) notify.Message{
		"/start":       h.start,
		"/help":        h.start,
		"/sources":     func(context.Context, *models.User, string) notify.Message { return h.sources() },
		"/subscribe":   h.subscribe,
		"/unsubscribe": h.unsubscribe,
		"/mysubs":      func(ctx context.Context, u *models.User, _ string) notify.Message { return h.mySubs(ctx, u.ID) },
		"/search":      func(ctx context.Context, _ *models.User, args string) notify.Message { return h.search(ctx, args) },
		"/ask":         func(ctx context.Context, u *models.User, args string) notify.Message { return h.ask(ctx, u.ID, args) },
		"/cancel":      func(_ context.Context, u *models.User, _ string) notify.Message { return h.cancel(u.ID) },
	}
	for name, fn := range commands {
		h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, name, tgbot.MatchTypePrefix, h.command(name, fn))
	}
	h.bot.RegisterHandlerMatchFunc(isPlainText, h.textHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, "", tgbot.MatchTypePrefix, h.callbackHandler)
	h.log.WithField("commands", len(commands)).Info("Registered command handlers")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

func isPlainText(update *models.Update) bool {
	return update.Message != nil && update.Message.From != nil &&
		update.Message.Text != "" && !strings.HasPrefix(update.Message.Text, "/")
}

// command adapts a command function to a bot handler. Prefix matching also
// catches longer words such as "/startle", which are ignored.
func (h *Handler) command(name string, fn func(ctx context.Context, user *models.User, args string) notify.Message) tgbot.HandlerFunc {
	return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		cmd, args := parseCommand(update.Message.Text)
		if cmd != name {
			return
		}
		h.log.WithFields(logrus.Fields{
			"user_id": update.Message.From.ID,
			"command": name,
		}).Info("Received command")
		h.reply(ctx, update.Message.Chat.ID, fn(ctx, update.Message.From, args))
	}
}

func (h *Handler) textHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	msg := update.Message
	reply, ok := h.text(ctx, msg.From.ID, msg.Text)
	if !ok {
		h.log.WithField("user_id", msg.From.ID).Debug("Received unhandled message (default handler)")
		return
	}
	h.reply(ctx, msg.Chat.ID, reply)
}

func (h *Handler) callbackHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}
	if _, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{CallbackQueryID: cb.ID}); err != nil {
		h.log.WithError(err).Warn("Failed to answer callback query")
	}
	// Private chats share the user's id.
	h.reply(ctx, cb.From.ID, h.callback(ctx, cb.From.ID, cb.Data))
}

func (h *Handler) reply(ctx context.Context, chatID int64, msg notify.Message) {
	if msg.Text == "" {
		return
	}
	params := &tgbot.SendMessageParams{ChatID: chatID, Text: msg.Text}
	if msg.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	if kb := notify.InlineKeyboard(msg.Buttons); kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := h.bot.SendMessage(ctx, params); err != nil {
		h.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send reply")
	}
}

// parseCommand splits "/cmd@bot args" into "/cmd" and "args".
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	cmd, args, _ := strings.Cut(text, " ")
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}
