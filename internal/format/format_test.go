package format

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"smart-money-tracker/internal/domain"
)

func TestNumbers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"price sub-cent", Price(0.0001234), "$0.0001234"},
		{"price rounds to 4 significant", Price(0.000123456), "$0.0001235"},
		{"price below one", Price(0.5), "$0.5"},
		{"price above one", Price(1234.5), "$1234.50"},
		{"price missing", Price(0), "n/a"},
		{"compact millions", Compact(1_234_567), "$1.23M"},
		{"compact billions", Compact(2.5e9), "$2.50B"},
		{"compact negative thousands", Compact(-12_300), "-$12.3K"},
		{"compact small", Compact(950), "$950.00"},
		{"percent positive", Percent(23.44), "+23.4%"},
		{"percent negative", Percent(-5), "-5%"},
		{"percent zero", Percent(0), "0%"},
		{"score fraction", Score(2.0 / 3), "+0.67"},
		{"score negative", Score(-1), "-1"},
		{"score zero", Score(0), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestChange(t *testing.T) {
	pct, ok := Change(1, 1.5)
	assert.True(t, ok)
	assert.InDelta(t, 50, pct, 1e-9)

	_, ok = Change(0, 1)
	assert.False(t, ok)
}

func sampleAlert() Alert {
	return Alert{
		Signal: domain.Signal{
			ChainID:       "501",
			TokenAddress:  "TokenMint1111111111111111111111111111111111",
			TokenSymbol:   "<PEPE>",
			PriceAtSignal: 0.00015,
			McapAtSignal:  1_500_000,
		},
		Wallets: []domain.Participant{
			{WalletAddress: "WalletAAAA1111111111111111111111111111111111", EntryScore: 2, Scored: true, ProviderPnL: 12_300, ProviderROI: 45, ProviderWinRate: 60},
			{WalletAddress: "WalletBBBB2222222222222222222222222222222222"},
		},
		Repeats:     1,
		MeanScore:   2,
		Scored:      1,
		Security:    domain.SecurityReport{Status: domain.SecurityRisk, RiskScore: 35, Flags: []string{"mintable"}},
		SignalCount: 2,
		FirstPrice:  0.0001,
		Ranks:       map[string]string{"WalletAAAA1111111111111111111111111111111111": "top 5%"},
	}
}

func TestDetailed(t *testing.T) {
	m := Detailed(sampleAlert())

	assert.Contains(t, m.Text, "<b>$&lt;PEPE&gt;</b>", "symbol escaped")
	assert.Contains(t, m.Text, "(signal #2)")
	assert.Contains(t, m.Text, "<code>TokenMint1111111111111111111111111111111111</code>")
	assert.Contains(t, m.Text, "Price: $0.00015 · MCap: $1.50M")
	assert.Contains(t, m.Text, "First seen: $0.0001 (+50%)")
	assert.Contains(t, m.Text, "Security: RISK (risk 35): mintable")
	assert.Contains(t, m.Text, "Entry score: <b>+2</b> (1 scored, 2 new, 1 repeat)")
	assert.Contains(t, m.Text, `<a href="https://solscan.io/account/WalletAAAA1111111111111111111111111111111111">Wall…1111</a> score +2`)
	assert.Contains(t, m.Text, "PnL $12.3K · ROI +45% · WR +60% · top 5%")
	assert.Contains(t, m.Text, "Wall…2222</a> unscored")

	assert.NotContains(t, m.Caption, "Wall…")
	assert.LessOrEqual(t, len(m.Caption), MaxCaptionLength)
	assert.Equal(t, []Link{
		{Label: "Chart", URL: "https://dexscreener.com/solana/TokenMint1111111111111111111111111111111111"},
		{Label: "Explorer", URL: "https://solscan.io/token/TokenMint1111111111111111111111111111111111"},
	}, m.Links)
}

func TestRedacted(t *testing.T) {
	m := Redacted(sampleAlert())

	assert.NotContains(t, m.Text, "Wall")
	assert.NotContains(t, m.Text, "<code>")
	assert.Contains(t, m.Text, "Entry score: <b>+2</b>")
	assert.Len(t, m.Links, 1)
}

func TestDetailed_Truncates(t *testing.T) {
	a := sampleAlert()
	a.Wallets = nil
	for i := 0; i < 200; i++ {
		a.Wallets = append(a.Wallets, domain.Participant{
			WalletAddress: fmt.Sprintf("Wallet%04d111111111111111111111111111111111", i),
			EntryScore:    1, Scored: true,
		})
	}

	m := Detailed(a)
	assert.LessOrEqual(t, len(m.Text), MaxTextLength)
	assert.Contains(t, m.Text, "more")
	assert.True(t, strings.HasPrefix(m.Text, "<b>$&lt;PEPE&gt;</b>"))
}

func TestUnknownChainHasNoLinks(t *testing.T) {
	a := sampleAlert()
	a.Signal.ChainID = "999"

	m := Detailed(a)
	assert.Empty(t, m.Links)
	assert.NotContains(t, m.Text, "<a href")
}
