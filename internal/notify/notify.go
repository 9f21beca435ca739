// Package notify delivers processed articles and briefings to Telegram chats
// and email inboxes.
package notify

import "context"

const (
	ChannelTelegram = "telegram"
	ChannelEmail    = "email"
)

// Button is an inline keyboard button. Exactly one of URL or Data is set.
type Button struct {
	Text string
	URL  string
	Data string
}

// Message is a chat message. HTML selects Telegram's HTML parse mode; plain
// text is sent as-is.
type Message struct {
	Text    string
	HTML    bool
	Buttons [][]Button
}

// Messenger sends a message to one chat. Failures are *domain.DeliveryError.
type Messenger interface {
	Send(ctx context.Context, chatID int64, msg Message) error
}

// Mailer sends one HTML email to the configured recipients.
type Mailer interface {
	Send(ctx context.Context, subject, html string) error
}
