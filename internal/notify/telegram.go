package notify

import (
	"context"
	"strconv"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
)

// Telegram sends messages through the Bot API.
type Telegram struct {
	bot *tgbot.Bot
	log logrus.FieldLogger
}

func NewTelegram(b *tgbot.Bot, logger logrus.FieldLogger) *Telegram {
	return &Telegram{bot: b, log: logger.WithField("component", "telegram")}
}

func (t *Telegram) Send(ctx context.Context, chatID int64, msg Message) error {
	disabled := true
	params := &tgbot.SendMessageParams{
		ChatID:             chatID,
		Text:               msg.Text,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	}
	if msg.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	if kb := InlineKeyboard(msg.Buttons); kb != nil {
		params.ReplyMarkup = kb
	}

	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return &domain.DeliveryError{Channel: ChannelTelegram, Recipient: strconv.FormatInt(chatID, 10), Err: err}
	}
	t.log.WithField("chat_id", chatID).Debug("Message sent")
	return nil
}

// InlineKeyboard converts button rows to Telegram markup. It returns nil when
// there are no buttons.
func InlineKeyboard(rows [][]Button) *models.InlineKeyboardMarkup {
	var keyboard [][]models.InlineKeyboardButton
	for _, row := range rows {
		var out []models.InlineKeyboardButton
		for _, b := range row {
			out = append(out, models.InlineKeyboardButton{Text: b.Text, URL: b.URL, CallbackData: b.Data})
		}
		if len(out) > 0 {
			keyboard = append(keyboard, out)
		}
	}
	if len(keyboard) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}
