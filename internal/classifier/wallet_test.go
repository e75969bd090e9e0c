package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-money-tracker/internal/domain"
)

type fakeMarket struct {
	pages      []domain.WalletHistoryPage
	pageErr    map[int]error
	candles    map[string][]domain.Candle
	candleErr  map[string]error
	historyLog []int
	candleLog  []string
}

func (f *fakeMarket) FetchWalletHistory(_ context.Context, _, _ string, offset, limit int) (domain.WalletHistoryPage, error) {
	page := offset / limit
	f.historyLog = append(f.historyLog, page)
	if err := f.pageErr[page]; err != nil {
		return domain.WalletHistoryPage{}, err
	}
	if page >= len(f.pages) {
		return domain.WalletHistoryPage{}, nil
	}
	return f.pages[page], nil
}

func (f *fakeMarket) FetchCandles(_ context.Context, _, token, _ string, _ int) ([]domain.Candle, error) {
	f.candleLog = append(f.candleLog, token)
	if err := f.candleErr[token]; err != nil {
		return nil, err
	}
	return f.candles[token], nil
}

var scoreNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// winningCandles produce a dumped_to/moon entry at a close of 1.0.
func winningCandles() []domain.Candle {
	t := scoreNow.Add(-48 * time.Hour).UnixMilli()
	return []domain.Candle{
		{TimestampMs: t - 4*hourMs, Low: 1.5, High: 2.0, Close: 1.8},
		{TimestampMs: t, Low: 1.0, High: 1.0, Close: 1.0},
		{TimestampMs: t + 2*hourMs, Low: 1.0, High: 1.5, Close: 1.4},
	}
}

func flatCandles() []domain.Candle {
	t := scoreNow.Add(-24 * time.Hour).UnixMilli()
	return []domain.Candle{{TimestampMs: t, Low: 1.0, High: 1.0, Close: 1.0}}
}

func newTestScorer(m MarketData) *Scorer {
	return NewScorer(ScorerOptions{
		Market:   m,
		PageSize: 2,
		MaxPages: 3,
		Now:      func() time.Time { return scoreNow },
	})
}

func activeMs(ago time.Duration) int64 {
	return scoreNow.Add(-ago).UnixMilli()
}

func TestScoreWallet_WeightedMean(t *testing.T) {
	m := &fakeMarket{
		pages: []domain.WalletHistoryPage{{
			Trades: []domain.WalletTokenTrade{
				{TokenAddress: "WIN", AvgBuyPrice: 1.0, BuyTxCount: 7, LastActiveMs: activeMs(time.Hour)},
				{TokenAddress: "FLAT", AvgBuyPrice: 1.0, BuyTxCount: 1, LastActiveMs: activeMs(2 * time.Hour)},
			},
		}},
		candles: map[string][]domain.Candle{"WIN": winningCandles(), "FLAT": flatCandles()},
	}

	got, err := newTestScorer(m).ScoreWallet(context.Background(), "w1", "501", 10)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Samples, "buy count capped at 5 plus one")
	assert.Equal(t, 2, got.Tokens)
	assert.InDelta(t, 10.0/6.0, got.Mean, 1e-9)
	assert.True(t, got.Scored())
}

func TestScoreWallet_SkipsStaleAndUnpriced(t *testing.T) {
	m := &fakeMarket{
		pages: []domain.WalletHistoryPage{{
			Trades: []domain.WalletTokenTrade{
				{TokenAddress: "OLD", AvgBuyPrice: 1.0, BuyTxCount: 3, LastActiveMs: activeMs(8 * 24 * time.Hour)},
				{TokenAddress: "ZERO", AvgBuyPrice: 0, BuyTxCount: 3, LastActiveMs: activeMs(time.Hour)},
			},
		}},
		candles: map[string][]domain.Candle{"OLD": winningCandles(), "ZERO": winningCandles()},
	}

	got, err := newTestScorer(m).ScoreWallet(context.Background(), "w1", "501", 10)
	require.NoError(t, err)
	assert.Equal(t, WalletScore{}, got)
	assert.False(t, got.Scored())
	assert.Empty(t, m.candleLog)
}

func TestScoreWallet_CandleFailureDropsToken(t *testing.T) {
	m := &fakeMarket{
		pages: []domain.WalletHistoryPage{{
			Trades: []domain.WalletTokenTrade{
				{TokenAddress: "BAD", AvgBuyPrice: 1.0, BuyTxCount: 5, LastActiveMs: activeMs(time.Hour)},
				{TokenAddress: "WIN", AvgBuyPrice: 1.0, BuyTxCount: 2, LastActiveMs: activeMs(2 * time.Hour)},
			},
		}},
		candles:   map[string][]domain.Candle{"WIN": winningCandles()},
		candleErr: map[string]error{"BAD": errors.New("boom")},
	}

	got, err := newTestScorer(m).ScoreWallet(context.Background(), "w1", "501", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Samples)
	assert.Equal(t, 1, got.Tokens)
	assert.InDelta(t, 2.0, got.Mean, 1e-9)
}

func TestScoreWallet_FirstPageErrorFails(t *testing.T) {
	m := &fakeMarket{pageErr: map[int]error{0: errors.New("down")}}

	_, err := newTestScorer(m).ScoreWallet(context.Background(), "w1", "501", 10)
	require.Error(t, err)
}

func TestScoreWallet_LaterPageErrorStopsPaging(t *testing.T) {
	m := &fakeMarket{
		pages: []domain.WalletHistoryPage{{
			Trades: []domain.WalletTokenTrade{
				{TokenAddress: "WIN", AvgBuyPrice: 1.0, BuyTxCount: 1, LastActiveMs: activeMs(time.Hour)},
			},
			HasMore: true,
		}},
		pageErr: map[int]error{1: errors.New("rate limited")},
		candles: map[string][]domain.Candle{"WIN": winningCandles()},
	}

	got, err := newTestScorer(m).ScoreWallet(context.Background(), "w1", "501", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, m.historyLog)
	assert.Equal(t, 1, got.Samples)
}

func TestScoreWallet_PagingIsBounded(t *testing.T) {
	page := domain.WalletHistoryPage{
		Trades:  []domain.WalletTokenTrade{{TokenAddress: "X", AvgBuyPrice: 1, LastActiveMs: activeMs(time.Hour)}},
		HasMore: true,
	}
	m := &fakeMarket{pages: []domain.WalletHistoryPage{page, page, page, page, page}}

	_, err := newTestScorer(m).ScoreWallet(context.Background(), "w1", "501", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, m.historyLog)
	assert.Equal(t, []string{"X"}, m.candleLog, "duplicate token summaries collapse")
}

func TestScoreWallet_MaxTokensMostRecentFirst(t *testing.T) {
	m := &fakeMarket{
		pages: []domain.WalletHistoryPage{{
			Trades: []domain.WalletTokenTrade{
				{TokenAddress: "A", AvgBuyPrice: 1, BuyTxCount: 1, LastActiveMs: activeMs(3 * time.Hour)},
				{TokenAddress: "B", AvgBuyPrice: 1, BuyTxCount: 1, LastActiveMs: activeMs(time.Hour)},
				{TokenAddress: "C", AvgBuyPrice: 1, BuyTxCount: 1, LastActiveMs: activeMs(2 * time.Hour)},
			},
		}},
		candles: map[string][]domain.Candle{},
	}

	_, err := newTestScorer(m).ScoreWallet(context.Background(), "w1", "501", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, m.candleLog)
}
