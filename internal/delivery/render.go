package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smart-money-tracker/internal/format"
)

// maxCardBytes caps a rendered card; Telegram rejects larger photos.
const maxCardBytes = 10 << 20

// card is the JSON body posted to the render service. It carries aggregates
// only so one image serves both the detailed and the redacted target.
type card struct {
	Chain       string   `json:"chain"`
	Token       string   `json:"token"`
	Symbol      string   `json:"symbol"`
	Price       float64  `json:"price"`
	MarketCap   float64  `json:"market_cap"`
	FirstPrice  float64  `json:"first_price,omitempty"`
	SignalCount int      `json:"signal_count"`
	NewWallets  int      `json:"new_wallets"`
	Repeats     int      `json:"repeat_wallets"`
	Scored      int      `json:"scored_wallets"`
	MeanScore   float64  `json:"mean_score"`
	Security    string   `json:"security"`
	Flags       []string `json:"flags,omitempty"`
	EventTimeMs int64    `json:"event_time_ms"`
}

// HTTPRenderer renders alert cards by posting them to an image service that
// answers with PNG or JPEG bytes.
type HTTPRenderer struct {
	url    string
	client *http.Client
}

// NewHTTPRenderer creates a renderer for the service at url.
func NewHTTPRenderer(url string, timeout time.Duration) *HTTPRenderer {
	return &HTTPRenderer{url: url, client: &http.Client{Timeout: timeout}}
}

var _ Renderer = (*HTTPRenderer)(nil)

// Render returns the card image for the alert.
func (r *HTTPRenderer) Render(ctx context.Context, alert format.Alert) ([]byte, error) {
	s := alert.Signal
	body, err := json.Marshal(card{
		Chain:       s.ChainID,
		Token:       s.TokenAddress,
		Symbol:      s.TokenSymbol,
		Price:       s.PriceAtSignal,
		MarketCap:   s.McapAtSignal,
		FirstPrice:  alert.FirstPrice,
		SignalCount: alert.SignalCount,
		NewWallets:  len(alert.Wallets),
		Repeats:     alert.Repeats,
		Scored:      alert.Scored,
		MeanScore:   alert.MeanScore,
		Security:    alert.Security.Status.String(),
		Flags:       alert.Security.Flags,
		EventTimeMs: s.EventTimeMs,
	})
	if err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png, image/jpeg")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render service returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("render service returned %q, want an image", ct)
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, maxCardBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read card: %w", err)
	}
	if len(img) > maxCardBytes {
		return nil, fmt.Errorf("card exceeds %d bytes", maxCardBytes)
	}
	return img, nil
}
