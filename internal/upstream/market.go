package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"smart-money-tracker/internal/domain"
)

// Provider paths.
const (
	pathActivity = "/api/v1/signals"
	pathDetail   = "/api/v1/signals/detail"
	pathWallet   = "/api/v1/wallets/%s/tokens"
	pathCandles  = "/api/v1/candles"
	pathSecurity = "/api/v1/security/%s/%s"
)

// FetchActivity returns the latest smart-money signals for a chain.
// trend selects the provider's activity filter (e.g. "1" = buys).
func (c *Client) FetchActivity(ctx context.Context, chainID, trend string, pageSize int) ([]domain.Signal, error) {
	q := url.Values{}
	q.Set("chainId", chainID)
	if trend != "" {
		q.Set("trend", trend)
	}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}

	var raw []wireSignal
	if err := c.get(ctx, "activity", pathActivity, q, &raw); err != nil {
		return nil, err
	}

	out := make([]domain.Signal, 0, len(raw))
	for _, r := range raw {
		if r.TokenAddress == "" || r.BatchID == "" {
			continue
		}
		chain := string(r.ChainID)
		if chain == "" {
			chain = chainID
		}
		out = append(out, domain.Signal{
			ChainID:          chain,
			TokenAddress:     r.TokenAddress,
			TokenSymbol:      r.TokenSymbol,
			BatchID:          string(r.BatchID),
			BatchIndex:       int(r.BatchIndex),
			EventTimeMs:      int64(r.Timestamp),
			PriceAtSignal:    float64(r.Price),
			McapAtSignal:     float64(r.MarketCap),
			Volume:           float64(r.Volume),
			ParticipantCount: int(r.WalletCount),
		})
	}
	return out, nil
}

// FetchDetail returns the participants of one signal. Scores are left unset.
func (c *Client) FetchDetail(ctx context.Context, chainID, token, batchID string, batchIndex int) ([]domain.Participant, error) {
	q := url.Values{}
	q.Set("chainId", chainID)
	q.Set("tokenAddress", token)
	q.Set("batchId", batchID)
	q.Set("batchIndex", strconv.Itoa(batchIndex))

	var raw wireDetail
	if err := c.get(ctx, "detail", pathDetail, q, &raw); err != nil {
		return nil, err
	}

	out := make([]domain.Participant, 0, len(raw.Wallets))
	for _, w := range raw.Wallets {
		if w.WalletAddress == "" {
			continue
		}
		out = append(out, domain.Participant{
			WalletAddress:   w.WalletAddress,
			ProviderPnL:     float64(w.PnL),
			ProviderROI:     float64(w.ROI),
			ProviderWinRate: float64(w.WinRate),
		})
	}
	return out, nil
}

// FetchWalletHistory returns one page of a wallet's per-token trade summaries.
func (c *Client) FetchWalletHistory(ctx context.Context, chainID, wallet string, offset, limit int) (domain.WalletHistoryPage, error) {
	q := url.Values{}
	q.Set("chainId", chainID)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var raw wireHistory
	if err := c.get(ctx, "wallet_history", fmt.Sprintf(pathWallet, url.PathEscape(wallet)), q, &raw); err != nil {
		return domain.WalletHistoryPage{}, err
	}

	page := domain.WalletHistoryPage{HasMore: raw.HasMore}
	for _, t := range raw.Tokens {
		page.Trades = append(page.Trades, domain.WalletTokenTrade{
			TokenAddress: t.TokenAddress,
			TokenSymbol:  t.TokenSymbol,
			AvgBuyPrice:  float64(t.AvgBuyPrice),
			BuyTxCount:   int(t.BuyTxCount),
			SellTxCount:  int(t.SellTxCount),
			LastActiveMs: int64(t.LastActiveTime),
			RealizedPnL:  float64(t.RealizedPnL),
		})
	}
	return page, nil
}

// FetchCandles returns OHLC bars for a token, oldest first. The provider sends
// rows as arrays of strings: [ts, open, high, low, close, ...].
func (c *Client) FetchCandles(ctx context.Context, chainID, token, bar string, limit int) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("chainId", chainID)
	q.Set("tokenAddress", token)
	q.Set("bar", bar)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var rows [][]flexFloat
	if err := c.get(ctx, "candles", pathCandles, q, &rows); err != nil {
		return nil, err
	}

	out := make([]domain.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 5 {
			continue
		}
		out = append(out, domain.Candle{
			TimestampMs: int64(r[0]),
			Open:        float64(r[1]),
			High:        float64(r[2]),
			Low:         float64(r[3]),
			Close:       float64(r[4]),
		})
	}
	// provider returns newest first
	if len(out) > 1 && out[0].TimestampMs > out[len(out)-1].TimestampMs {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// FetchSecurity returns the security verdict for a token.
func (c *Client) FetchSecurity(ctx context.Context, chainID, token string) (domain.SecurityReport, error) {
	var raw wireSecurity
	path := fmt.Sprintf(pathSecurity, url.PathEscape(chainID), url.PathEscape(token))
	if err := c.get(ctx, "security", path, nil, &raw); err != nil {
		return domain.SecurityReport{Status: domain.SecurityUnknown}, err
	}
	return domain.SecurityReport{
		Status:    domain.ParseSecurityStatus(raw.Status),
		RiskScore: float64(raw.RiskScore),
		Flags:     raw.Flags,
	}, nil
}
