// Package telegram stores records as messages in Telegram channels, one
// channel per partition. The pinned message of each channel is its anchor.
package telegram

import (
	"context"
	"fmt"

	"smart-money-tracker/internal/storage"
	tg "smart-money-tracker/internal/telegram"
)

// DefaultMaxPayload is the Bot API text limit.
const DefaultMaxPayload = tg.MaxMessageLength

// API is the subset of the Bot API client the substrate needs.
type API interface {
	SendMessage(ctx context.Context, chatID, text string, opts tg.SendOptions) (*tg.Message, error)
	EditMessageText(ctx context.Context, chatID string, messageID int, text string, opts tg.SendOptions) error
	DeleteMessage(ctx context.Context, chatID string, messageID int) error
	PinChatMessage(ctx context.Context, chatID string, messageID int) error
	GetChat(ctx context.Context, chatID string) (*tg.Chat, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID string, messageID int) (*tg.Message, error)
}

// Substrate implements storage.Substrate over Telegram channels.
// Bots cannot fetch channel history, so Read forwards the message into a
// scratch chat, takes the text and deletes the copy.
type Substrate struct {
	api        API
	channels   map[string]string // partition -> chat id
	scratch    string
	maxPayload int
}

// NewSubstrate creates a Substrate. channels maps each partition name to its
// channel chat id; scratch is a chat the bot can post to and delete from.
func NewSubstrate(api API, channels map[string]string, scratch string, maxPayload int) *Substrate {
	if maxPayload <= 0 || maxPayload > DefaultMaxPayload {
		maxPayload = DefaultMaxPayload
	}
	cp := make(map[string]string, len(channels))
	for k, v := range channels {
		cp[k] = v
	}
	return &Substrate{api: api, channels: cp, scratch: scratch, maxPayload: maxPayload}
}

// Compile-time interface check.
var _ storage.Substrate = (*Substrate)(nil)

func (s *Substrate) chat(partition string) (string, error) {
	id, ok := s.channels[partition]
	if !ok || id == "" {
		return "", fmt.Errorf("%w: no channel for partition %q", storage.ErrInvalidInput, partition)
	}
	return id, nil
}

// Post sends the payload as a silent text message.
func (s *Substrate) Post(ctx context.Context, partition string, payload []byte) (storage.Handle, error) {
	chat, err := s.chat(partition)
	if err != nil {
		return 0, err
	}
	if len(payload) > s.maxPayload {
		return 0, storage.ErrPayloadTooLarge
	}

	msg, err := s.api.SendMessage(ctx, chat, string(payload), tg.SendOptions{DisableNotification: true, DisablePreview: true})
	if err != nil {
		return 0, translate(err)
	}
	return storage.Handle(msg.MessageID), nil
}

// Edit replaces the message text.
func (s *Substrate) Edit(ctx context.Context, partition string, h storage.Handle, payload []byte) error {
	chat, err := s.chat(partition)
	if err != nil {
		return err
	}
	if len(payload) > s.maxPayload {
		return storage.ErrPayloadTooLarge
	}
	return translate(s.api.EditMessageText(ctx, chat, int(h), string(payload), tg.SendOptions{DisablePreview: true}))
}

// Delete removes the message.
func (s *Substrate) Delete(ctx context.Context, partition string, h storage.Handle) error {
	chat, err := s.chat(partition)
	if err != nil {
		return err
	}
	return translate(s.api.DeleteMessage(ctx, chat, int(h)))
}

// Read forwards the message to the scratch chat and returns its text.
func (s *Substrate) Read(ctx context.Context, partition string, h storage.Handle) ([]byte, error) {
	chat, err := s.chat(partition)
	if err != nil {
		return nil, err
	}
	if s.scratch == "" {
		return nil, fmt.Errorf("%w: no scratch chat configured", storage.ErrInvalidInput)
	}

	msg, err := s.api.ForwardMessage(ctx, s.scratch, chat, int(h))
	if err != nil {
		return nil, translate(err)
	}
	// best effort; a leftover copy in the scratch chat is harmless
	_ = s.api.DeleteMessage(ctx, s.scratch, msg.MessageID)
	return []byte(msg.Text), nil
}

// Pin pins the message in the partition channel.
func (s *Substrate) Pin(ctx context.Context, partition string, h storage.Handle) error {
	chat, err := s.chat(partition)
	if err != nil {
		return err
	}
	return translate(s.api.PinChatMessage(ctx, chat, int(h)))
}

// Anchor returns the id of the channel's pinned message.
func (s *Substrate) Anchor(ctx context.Context, partition string) (storage.Handle, error) {
	chat, err := s.chat(partition)
	if err != nil {
		return 0, err
	}
	info, err := s.api.GetChat(ctx, chat)
	if err != nil {
		return 0, translate(err)
	}
	if info.PinnedMessage == nil || info.PinnedMessage.MessageID == 0 {
		return 0, storage.ErrNoAnchor
	}
	return storage.Handle(info.PinnedMessage.MessageID), nil
}

// MaxPayload returns the payload ceiling.
func (s *Substrate) MaxPayload() int {
	return s.maxPayload
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if tg.IsMessageGone(err) {
		return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	}
	if tg.IsTooLarge(err) {
		return fmt.Errorf("%w: %v", storage.ErrPayloadTooLarge, err)
	}
	return err
}
