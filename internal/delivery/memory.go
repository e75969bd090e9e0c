package delivery

import (
	"context"
	"fmt"
	"sync"
)

// Sent is one message recorded by a MemorySink.
type Sent struct {
	Channel string
	Handle  int64
	Text    string // text or caption
	Image   bool
	ReplyTo int64
	Links   int
}

// MemorySink records deliveries in memory. It backs dry runs and tests.
type MemorySink struct {
	mu        sync.Mutex
	next      int64
	sent      []Sent
	FailText  error // returned by SendText when set
	FailImage error // returned by SendImage when set
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

var _ Sink = (*MemorySink)(nil)

// SendText records a text message.
func (m *MemorySink) SendText(_ context.Context, channel, text string, opts SendOptions) (int64, error) {
	return m.record(channel, text, false, opts, m.FailText)
}

// SendImage records an image message.
func (m *MemorySink) SendImage(_ context.Context, channel string, _ []byte, caption string, opts SendOptions) (int64, error) {
	return m.record(channel, caption, true, opts, m.FailImage)
}

// Edit replaces a recorded message's text.
func (m *MemorySink) Edit(_ context.Context, _ string, handle int64, text string, _ SendOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sent {
		if m.sent[i].Handle == handle {
			m.sent[i].Text = text
			return nil
		}
	}
	return fmt.Errorf("message %d not found", handle)
}

// Delete removes a recorded message.
func (m *MemorySink) Delete(_ context.Context, _ string, handle int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sent {
		if m.sent[i].Handle == handle {
			m.sent = append(m.sent[:i], m.sent[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("message %d not found", handle)
}

// Sent returns a copy of the recorded messages in send order.
func (m *MemorySink) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

func (m *MemorySink) record(channel, text string, image bool, opts SendOptions, fail error) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fail != nil {
		return 0, fail
	}
	m.next++
	m.sent = append(m.sent, Sent{
		Channel: channel,
		Handle:  m.next,
		Text:    text,
		Image:   image,
		ReplyTo: opts.ReplyTo,
		Links:   len(opts.Links),
	})
	return m.next, nil
}
