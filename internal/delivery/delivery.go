// Package delivery sends rendered alerts to the primary and secondary sinks.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"smart-money-tracker/internal/format"
)

// Sink is an outbound message channel.
type Sink interface {
	SendText(ctx context.Context, channel, text string, opts SendOptions) (int64, error)
	SendImage(ctx context.Context, channel string, image []byte, caption string, opts SendOptions) (int64, error)
	Edit(ctx context.Context, channel string, handle int64, text string, opts SendOptions) error
	Delete(ctx context.Context, channel string, handle int64) error
}

// SendOptions are optional parameters for a send.
type SendOptions struct {
	ReplyTo int64 // message to thread under, 0 for none
	Links   []format.Link
}

// Renderer produces a card image for an alert.
type Renderer interface {
	Render(ctx context.Context, alert format.Alert) ([]byte, error)
}

// Variant selects which rendering a target receives.
type Variant string

const (
	VariantDetailed Variant = "detailed"
	VariantRedacted Variant = "redacted"
)

// Target is one configured sink and channel.
type Target struct {
	Name    string
	Sink    Sink
	Channel string
	Variant Variant
	Images  bool // send a rendered card when a renderer is configured
}

// Configured reports whether the target can be delivered to.
func (t Target) Configured() bool {
	return t.Sink != nil && t.Channel != ""
}

// Error is a failed delivery to one sink after every fallback was tried.
type Error struct {
	Sink string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("deliver to %s (%s): %v", e.Sink, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNoTarget is returned when the primary target is not configured.
var ErrNoTarget = errors.New("no delivery target configured")

// Receipt is the outcome of delivering to one target.
type Receipt struct {
	Sink   string
	Handle int64
	Image  bool  // delivered as image + caption
	Err    error // nil on success
}

// Result is the outcome of one Deliver call.
type Result struct {
	Primary   Receipt
	Secondary *Receipt // nil when no secondary target is configured
}

// Options configures a Dispatcher.
type Options struct {
	Primary   Target
	Secondary Target // optional
	Renderer  Renderer
	Logger    zerolog.Logger
}

// Dispatcher delivers alerts with image-to-text fallback.
type Dispatcher struct {
	primary   Target
	secondary Target
	renderer  Renderer
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{
		primary:   opts.Primary,
		secondary: opts.Secondary,
		renderer:  opts.Renderer,
		logger:    opts.Logger.With().Str("component", "delivery").Logger(),
	}
}

// Validate fails fast when there is nowhere to deliver.
func (d *Dispatcher) Validate() error {
	if d == nil || !d.primary.Configured() {
		return ErrNoTarget
	}
	return nil
}

// Targets returns the names of the configured targets, primary first.
func (d *Dispatcher) Targets() []string {
	names := []string{d.primary.Name}
	if d.secondary.Configured() {
		names = append(names, d.secondary.Name)
	}
	return names
}

// Deliver sends the alert to the primary target and then, best effort, to
// the secondary. replyTo maps target names to the message to thread under.
// The returned error is a *Error for the primary target only; a secondary
// failure is reported in its Receipt.
func (d *Dispatcher) Deliver(ctx context.Context, alert format.Alert, replyTo map[string]int64) (Result, error) {
	if err := d.Validate(); err != nil {
		return Result{}, err
	}

	var card []byte
	var cardErr error
	rendered := false
	image := func() ([]byte, error) {
		if !rendered {
			card, cardErr = d.renderer.Render(ctx, alert)
			rendered = true
		}
		return card, cardErr
	}

	res := Result{Primary: d.send(ctx, d.primary, alert, replyTo[d.primary.Name], image)}
	if d.secondary.Configured() {
		rec := d.send(ctx, d.secondary, alert, replyTo[d.secondary.Name], image)
		if rec.Err != nil {
			d.logger.Warn().Err(rec.Err).Str("sink", rec.Sink).Msg("secondary delivery failed")
		}
		res.Secondary = &rec
	}
	return res, res.Primary.Err
}

func (d *Dispatcher) send(ctx context.Context, t Target, alert format.Alert, replyTo int64, image func() ([]byte, error)) Receipt {
	msg := format.Detailed(alert)
	if t.Variant == VariantRedacted {
		msg = format.Redacted(alert)
	}
	opts := SendOptions{ReplyTo: replyTo, Links: msg.Links}
	rec := Receipt{Sink: t.Name}

	var imgErr error
	if t.Images && d.renderer != nil {
		card, err := image()
		if err == nil && len(card) > 0 {
			h, err := t.Sink.SendImage(ctx, t.Channel, card, msg.Caption, opts)
			if err == nil {
				rec.Handle, rec.Image = h, true
				return rec
			}
			imgErr = err
		} else if err != nil {
			imgErr = fmt.Errorf("render: %w", err)
		}
		d.logger.Debug().Err(imgErr).Str("sink", t.Name).Msg("image delivery failed, falling back to text")
	}

	h, err := t.Sink.SendText(ctx, t.Channel, msg.Text, opts)
	if err != nil {
		rec.Err = &Error{Sink: t.Name, Op: "text", Err: errors.Join(imgErr, err)}
		return rec
	}
	rec.Handle = h
	return rec
}
