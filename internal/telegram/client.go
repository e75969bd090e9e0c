// Package telegram is a minimal Bot API client covering the calls the record
// substrate and the delivery sinks need.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultBaseURL       = "https://api.telegram.org"
	DefaultTimeout       = 20 * time.Second
	DefaultMaxRetryAfter = 10 * time.Second

	// MaxMessageLength is the Bot API limit for message text, in characters.
	MaxMessageLength = 4096
	// MaxCaptionLength is the Bot API limit for photo captions.
	MaxCaptionLength = 1024
)

// Client calls the Bot API for one bot token.
type Client struct {
	baseURL       string
	token         string
	client        *http.Client
	limiter       *rate.Limiter
	maxRetryAfter time.Duration
	logger        zerolog.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithLimiter paces outgoing calls.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithMaxRetryAfter caps how long a flood-wait response is honored before
// the error is returned instead.
func WithMaxRetryAfter(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetryAfter = d
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Bot API client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		token:         token,
		client:        &http.Client{Timeout: DefaultTimeout},
		maxRetryAfter: DefaultMaxRetryAfter,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat is the subset of the Bot API Chat object used here.
type Chat struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title,omitempty"`
	PinnedMessage *Message `json:"pinned_message,omitempty"`
}

// Message is the subset of the Bot API Message object used here.
type Message struct {
	MessageID int    `json:"message_id"`
	Date      int64  `json:"date"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// Button is one inline keyboard URL button.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// SendOptions are optional parameters for send and edit calls.
type SendOptions struct {
	ParseMode           string     // "HTML" or ""
	ReplyTo             int        // message id to reply to, 0 for none
	Buttons             [][]Button // inline keyboard rows
	DisablePreview      bool
	DisableNotification bool
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]Button `json:"inline_keyboard"`
}

type replyParameters struct {
	MessageID                int  `json:"message_id"`
	AllowSendingWithoutReply bool `json:"allow_sending_without_reply"`
}

func (o SendOptions) apply(params map[string]interface{}) {
	if o.ParseMode != "" {
		params["parse_mode"] = o.ParseMode
	}
	if o.ReplyTo != 0 {
		params["reply_parameters"] = replyParameters{MessageID: o.ReplyTo, AllowSendingWithoutReply: true}
	}
	if len(o.Buttons) > 0 {
		params["reply_markup"] = replyMarkup{InlineKeyboard: o.Buttons}
	}
	if o.DisablePreview {
		params["link_preview_options"] = map[string]bool{"is_disabled": true}
	}
	if o.DisableNotification {
		params["disable_notification"] = true
	}
}

// SendMessage posts a text message.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, opts SendOptions) (*Message, error) {
	params := map[string]interface{}{"chat_id": chatID, "text": text}
	opts.apply(params)

	var msg Message
	if err := c.callJSON(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendPhoto uploads an image with an optional caption.
func (c *Client) SendPhoto(ctx context.Context, chatID string, image []byte, caption string, opts SendOptions) (*Message, error) {
	fields := map[string]interface{}{"chat_id": chatID}
	if caption != "" {
		fields["caption"] = caption
	}
	opts.apply(fields)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		val, err := formValue(v)
		if err != nil {
			return nil, err
		}
		if err := mw.WriteField(k, val); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	fw, err := mw.CreateFormFile("photo", "card.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(image); err != nil {
		return nil, fmt.Errorf("write photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var msg Message
	err = c.call(ctx, "sendPhoto", mw.FormDataContentType(), body.Bytes(), &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageText replaces the text of a message. An unchanged text is not an error.
func (c *Client) EditMessageText(ctx context.Context, chatID string, messageID int, text string, opts SendOptions) error {
	params := map[string]interface{}{"chat_id": chatID, "message_id": messageID, "text": text}
	opts.ReplyTo = 0
	opts.apply(params)

	err := c.callJSON(ctx, "editMessageText", params, nil)
	if IsNotModified(err) {
		return nil
	}
	return err
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, chatID string, messageID int) error {
	params := map[string]interface{}{"chat_id": chatID, "message_id": messageID}
	return c.callJSON(ctx, "deleteMessage", params, nil)
}

// PinChatMessage pins a message silently.
func (c *Client) PinChatMessage(ctx context.Context, chatID string, messageID int) error {
	params := map[string]interface{}{"chat_id": chatID, "message_id": messageID, "disable_notification": true}
	return c.callJSON(ctx, "pinChatMessage", params, nil)
}

// GetChat returns chat info including the pinned message, if any.
func (c *Client) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var chat Chat
	if err := c.callJSON(ctx, "getChat", map[string]interface{}{"chat_id": chatID}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// ForwardMessage copies a message into another chat, returning the forwarded copy.
// Bots cannot read channel history directly; forwarding is how a record is read back.
func (c *Client) ForwardMessage(ctx context.Context, toChatID, fromChatID string, messageID int) (*Message, error) {
	params := map[string]interface{}{
		"chat_id":              toChatID,
		"from_chat_id":         fromChatID,
		"message_id":           messageID,
		"disable_notification": true,
	}
	var msg Message
	if err := c.callJSON(ctx, "forwardMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func formValue(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", fmt.Errorf("marshal form value: %w", err)
		}
		return string(b), nil
	}
}

func (c *Client) callJSON(ctx context.Context, method string, params map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.call(ctx, method, "application/json", body, out)
}

// call performs one Bot API call, honoring a single bounded flood-wait retry.
func (c *Client) call(ctx context.Context, method, contentType string, body []byte, out interface{}) error {
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		err := c.do(ctx, method, contentType, body, out)
		apiErr, ok := err.(*APIError)
		if !ok || attempt > 0 || apiErr.RetryAfter <= 0 {
			return err
		}
		wait := time.Duration(apiErr.RetryAfter) * time.Second
		if wait > c.maxRetryAfter {
			return err
		}
		c.logger.Warn().Str("method", method).Dur("retry_after", wait).Msg("telegram flood wait")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) do(ctx context.Context, method, contentType string, body []byte, out interface{}) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return fmt.Errorf("telegram %s: unmarshal response (status %d): %w", method, resp.StatusCode, err)
	}
	if !ar.OK {
		apiErr := &APIError{Method: method, Code: ar.ErrorCode, Description: ar.Description}
		if ar.Parameters != nil {
			apiErr.RetryAfter = ar.Parameters.RetryAfter
		}
		return apiErr
	}
	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("telegram %s: unmarshal result: %w", method, err)
		}
	}
	return nil
}
