package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-money-tracker/internal/domain"
	"smart-money-tracker/internal/format"
)

type stubRenderer struct {
	card  []byte
	err   error
	calls int
}

func (r *stubRenderer) Render(context.Context, format.Alert) ([]byte, error) {
	r.calls++
	return r.card, r.err
}

func testAlert() format.Alert {
	return format.Alert{
		Signal: domain.Signal{ChainID: "501", TokenAddress: "TokenMint111111111111111111111111", TokenSymbol: "ABC", PriceAtSignal: 0.01},
		Wallets: []domain.Participant{
			{WalletAddress: "WalletAAAA11111111111111111111111", EntryScore: 1, Scored: true},
		},
		MeanScore: 1,
		Scored:    1,
	}
}

func TestDispatcher_ValidateRequiresPrimary(t *testing.T) {
	var nilDispatcher *Dispatcher
	assert.ErrorIs(t, nilDispatcher.Validate(), ErrNoTarget)

	d := NewDispatcher(Options{Primary: Target{Name: "primary", Sink: NewMemorySink()}})
	assert.ErrorIs(t, d.Validate(), ErrNoTarget, "channel required")

	_, err := d.Deliver(context.Background(), testAlert(), nil)
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestDispatcher_TextVariants(t *testing.T) {
	primary, secondary := NewMemorySink(), NewMemorySink()
	d := NewDispatcher(Options{
		Primary:   Target{Name: "primary", Sink: primary, Channel: "-100", Variant: VariantDetailed},
		Secondary: Target{Name: "secondary", Sink: secondary, Channel: "-200", Variant: VariantRedacted},
	})

	res, err := d.Deliver(context.Background(), testAlert(), map[string]int64{"primary": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Primary.Handle)
	require.NotNil(t, res.Secondary)
	assert.NoError(t, res.Secondary.Err)
	assert.Equal(t, []string{"primary", "secondary"}, d.Targets())

	p := primary.Sent()
	require.Len(t, p, 1)
	assert.Contains(t, p[0].Text, "Wall…1111")
	assert.Equal(t, int64(7), p[0].ReplyTo)
	assert.Equal(t, 2, p[0].Links)

	s := secondary.Sent()
	require.Len(t, s, 1)
	assert.NotContains(t, s[0].Text, "Wall…1111")
	assert.Zero(t, s[0].ReplyTo)
}

func TestDispatcher_ImageThenFallback(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	renderer := &stubRenderer{card: []byte("png")}
	d := NewDispatcher(Options{
		Primary:   Target{Name: "primary", Sink: sink, Channel: "-100", Images: true},
		Secondary: Target{Name: "secondary", Sink: sink, Channel: "-200", Variant: VariantRedacted, Images: true},
		Renderer:  renderer,
	})

	res, err := d.Deliver(ctx, testAlert(), nil)
	require.NoError(t, err)
	assert.True(t, res.Primary.Image)
	assert.True(t, res.Secondary.Image)
	assert.Equal(t, 1, renderer.calls, "card rendered once per alert")

	sink.FailImage = errors.New("photo rejected")
	res, err = d.Deliver(ctx, testAlert(), nil)
	require.NoError(t, err)
	assert.False(t, res.Primary.Image, "fell back to text")
	assert.NotZero(t, res.Primary.Handle)

	sink.FailImage = nil
	renderer.err = errors.New("chart unavailable")
	res, err = d.Deliver(ctx, testAlert(), nil)
	require.NoError(t, err)
	assert.False(t, res.Primary.Image)
}

func TestDispatcher_PrimaryFailure(t *testing.T) {
	sink := NewMemorySink()
	sink.FailImage = errors.New("photo rejected")
	sink.FailText = errors.New("chat not found")
	d := NewDispatcher(Options{
		Primary:  Target{Name: "primary", Sink: sink, Channel: "-100", Images: true},
		Renderer: &stubRenderer{card: []byte("png")},
	})

	res, err := d.Deliver(context.Background(), testAlert(), nil)
	require.Error(t, err)

	var derr *Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "primary", derr.Sink)
	assert.ErrorIs(t, err, sink.FailText)
	assert.ErrorIs(t, err, sink.FailImage)
	assert.Nil(t, res.Secondary)
}

func TestDispatcher_SecondaryIsBestEffort(t *testing.T) {
	primary, secondary := NewMemorySink(), NewMemorySink()
	secondary.FailText = errors.New("flood wait")
	d := NewDispatcher(Options{
		Primary:   Target{Name: "primary", Sink: primary, Channel: "-100"},
		Secondary: Target{Name: "secondary", Sink: secondary, Channel: "-200"},
	})

	res, err := d.Deliver(context.Background(), testAlert(), nil)
	require.NoError(t, err)
	assert.Len(t, primary.Sent(), 1)
	require.NotNil(t, res.Secondary)
	assert.Error(t, res.Secondary.Err)
}
