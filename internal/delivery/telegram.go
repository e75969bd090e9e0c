package delivery

import (
	"context"

	"smart-money-tracker/internal/telegram"
)

// TelegramAPI is the part of the Bot API client the sink uses.
type TelegramAPI interface {
	SendMessage(ctx context.Context, chatID, text string, opts telegram.SendOptions) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chatID string, image []byte, caption string, opts telegram.SendOptions) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID string, messageID int, text string, opts telegram.SendOptions) error
	DeleteMessage(ctx context.Context, chatID string, messageID int) error
}

var _ TelegramAPI = (*telegram.Client)(nil)

// TelegramSink delivers HTML messages to Telegram chats.
type TelegramSink struct {
	api TelegramAPI
}

// NewTelegramSink wraps a Bot API client.
func NewTelegramSink(api TelegramAPI) *TelegramSink {
	return &TelegramSink{api: api}
}

var _ Sink = (*TelegramSink)(nil)

func (s *TelegramSink) options(opts SendOptions) telegram.SendOptions {
	out := telegram.SendOptions{ParseMode: "HTML", ReplyTo: int(opts.ReplyTo), DisablePreview: true}
	if len(opts.Links) > 0 {
		row := make([]telegram.Button, 0, len(opts.Links))
		for _, l := range opts.Links {
			row = append(row, telegram.Button{Text: l.Label, URL: l.URL})
		}
		out.Buttons = [][]telegram.Button{row}
	}
	return out
}

// SendText sends a text message.
func (s *TelegramSink) SendText(ctx context.Context, channel, text string, opts SendOptions) (int64, error) {
	msg, err := s.api.SendMessage(ctx, channel, text, s.options(opts))
	if err != nil {
		return 0, err
	}
	return int64(msg.MessageID), nil
}

// SendImage sends a photo with a caption.
func (s *TelegramSink) SendImage(ctx context.Context, channel string, image []byte, caption string, opts SendOptions) (int64, error) {
	msg, err := s.api.SendPhoto(ctx, channel, image, caption, s.options(opts))
	if err != nil {
		return 0, err
	}
	return int64(msg.MessageID), nil
}

// Edit replaces a text message.
func (s *TelegramSink) Edit(ctx context.Context, channel string, handle int64, text string, opts SendOptions) error {
	return s.api.EditMessageText(ctx, channel, int(handle), text, s.options(opts))
}

// Delete removes a message.
func (s *TelegramSink) Delete(ctx context.Context, channel string, handle int64) error {
	return s.api.DeleteMessage(ctx, channel, int(handle))
}
