package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h func(method string, r *http.Request) string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/botTOKEN/")
		method := r.URL.Path[len("/botTOKEN/"):]
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, h(method, r))
	}))
	t.Cleanup(server.Close)
	return server
}

func decodeParams(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var params map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
	return params
}

func TestClient_SendMessage(t *testing.T) {
	server := newTestServer(t, func(method string, r *http.Request) string {
		assert.Equal(t, "sendMessage", method)
		params := decodeParams(t, r)
		assert.Equal(t, "-100123", params["chat_id"])
		assert.Equal(t, "hello", params["text"])
		assert.Equal(t, "HTML", params["parse_mode"])
		reply := params["reply_parameters"].(map[string]interface{})
		assert.Equal(t, float64(7), reply["message_id"])
		markup := params["reply_markup"].(map[string]interface{})
		assert.Len(t, markup["inline_keyboard"], 1)
		return `{"ok":true,"result":{"message_id":42,"date":1700000000,"chat":{"id":-100123},"text":"hello"}}`
	})

	c := NewClient("TOKEN", WithBaseURL(server.URL))
	msg, err := c.SendMessage(context.Background(), "-100123", "hello", SendOptions{
		ParseMode: "HTML",
		ReplyTo:   7,
		Buttons:   [][]Button{{{Text: "Chart", URL: "https://example.com"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, msg.MessageID)
	assert.Equal(t, int64(-100123), msg.Chat.ID)
}

func TestClient_SendPhotoMultipart(t *testing.T) {
	server := newTestServer(t, func(method string, r *http.Request) string {
		assert.Equal(t, "sendPhoto", method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "-1", r.FormValue("chat_id"))
		assert.Equal(t, "cap", r.FormValue("caption"))
		f, _, err := r.FormFile("photo")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
		return `{"ok":true,"result":{"message_id":9,"chat":{"id":-1}}}`
	})

	c := NewClient("TOKEN", WithBaseURL(server.URL))
	msg, err := c.SendPhoto(context.Background(), "-1", []byte{0x89, 'P', 'N', 'G'}, "cap", SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, 9, msg.MessageID)
}

func TestClient_EditNotModifiedIsSuccess(t *testing.T) {
	server := newTestServer(t, func(string, *http.Request) string {
		return `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`
	})

	c := NewClient("TOKEN", WithBaseURL(server.URL))
	require.NoError(t, c.EditMessageText(context.Background(), "-1", 5, "same", SendOptions{}))
}

func TestClient_DeleteGone(t *testing.T) {
	server := newTestServer(t, func(string, *http.Request) string {
		return `{"ok":false,"error_code":400,"description":"Bad Request: message to delete not found"}`
	})

	c := NewClient("TOKEN", WithBaseURL(server.URL))
	err := c.DeleteMessage(context.Background(), "-1", 5)
	require.Error(t, err)
	assert.True(t, IsMessageGone(err))
	assert.False(t, IsNotModified(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "deleteMessage", apiErr.Method)
}

func TestClient_GetChatPinned(t *testing.T) {
	server := newTestServer(t, func(method string, r *http.Request) string {
		assert.Equal(t, "getChat", method)
		return `{"ok":true,"result":{"id":-1,"pinned_message":{"message_id":77,"chat":{"id":-1},"text":"{\"v\":1}"}}}`
	})

	c := NewClient("TOKEN", WithBaseURL(server.URL))
	chat, err := c.GetChat(context.Background(), "-1")
	require.NoError(t, err)
	require.NotNil(t, chat.PinnedMessage)
	assert.Equal(t, 77, chat.PinnedMessage.MessageID)
	assert.Equal(t, `{"v":1}`, chat.PinnedMessage.Text)
}

func TestClient_FloodWaitRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, func(string, *http.Request) string {
		if calls.Add(1) == 1 {
			return `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`
		}
		return `{"ok":true,"result":true}`
	})

	c := NewClient("TOKEN", WithBaseURL(server.URL), WithMaxRetryAfter(2*time.Second))
	require.NoError(t, c.PinChatMessage(context.Background(), "-1", 3))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_FloodWaitTooLong(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, func(string, *http.Request) string {
		calls.Add(1)
		return `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 60","parameters":{"retry_after":60}}`
	})

	c := NewClient("TOKEN", WithBaseURL(server.URL))
	err := c.PinChatMessage(context.Background(), "-1", 3)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 60, apiErr.RetryAfter)
	assert.Equal(t, int32(1), calls.Load())
}
