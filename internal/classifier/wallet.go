package classifier

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"smart-money-tracker/internal/domain"
)

// Defaults for wallet scoring.
const (
	DefaultPageSize     = 50
	DefaultMaxPages     = 3
	DefaultCandleBar    = domain.Bar1Hour
	DefaultCandleLimit  = 300
	DefaultActiveWindow = 7 * 24 * time.Hour
	MaxScoredTokens     = 10
	MaxWeightPerToken   = 5
)

// MarketData is the subset of the market-data provider the scorer needs.
type MarketData interface {
	FetchWalletHistory(ctx context.Context, chainID, wallet string, offset, limit int) (domain.WalletHistoryPage, error)
	FetchCandles(ctx context.Context, chainID, token, bar string, limit int) ([]domain.Candle, error)
}

// ScorerOptions configures a Scorer.
type ScorerOptions struct {
	Market       MarketData
	Limiter      *rate.Limiter // paces every upstream request; nil disables pacing
	PageSize     int
	MaxPages     int
	CandleBar    string
	CandleLimit  int
	ActiveWindow time.Duration
	Now          func() time.Time
	Logger       zerolog.Logger
}

// Scorer computes wallet-level entry scores from trade history and candles.
type Scorer struct {
	opts ScorerOptions
}

// WalletScore is the result of scoring one wallet.
type WalletScore struct {
	Mean    float64 // mean of the sample pool; 0 when Samples == 0
	Samples int     // size of the weighted sample pool
	Tokens  int     // number of tokens that contributed
}

// Scored reports whether any sample contributed to the score.
func (s WalletScore) Scored() bool {
	return s.Samples > 0
}

// NewScorer creates a scorer, filling unset options with defaults.
func NewScorer(opts ScorerOptions) *Scorer {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.CandleBar == "" {
		opts.CandleBar = DefaultCandleBar
	}
	if opts.CandleLimit <= 0 {
		opts.CandleLimit = DefaultCandleLimit
	}
	if opts.ActiveWindow <= 0 {
		opts.ActiveWindow = DefaultActiveWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scorer{opts: opts}
}

// ScoreWallet scores a wallet's recent entries on the given chain.
// Only the first history page is required; later page failures stop paging.
// A candle failure for one token drops that token only.
func (s *Scorer) ScoreWallet(ctx context.Context, wallet, chainID string, maxTokens int) (WalletScore, error) {
	if s.opts.Market == nil {
		return WalletScore{}, fmt.Errorf("classifier: market data not configured")
	}
	log := s.opts.Logger.With().Str("wallet", wallet).Str("chain", chainID).Logger()

	trades, err := s.recentTrades(ctx, wallet, chainID)
	if err != nil {
		return WalletScore{}, err
	}

	limit := MaxScoredTokens
	if maxTokens > 0 && maxTokens < limit {
		limit = maxTokens
	}
	if len(trades) > limit {
		trades = trades[:limit]
	}

	var sum float64
	var samples, tokens int
	for _, tr := range trades {
		if err := s.wait(ctx); err != nil {
			return WalletScore{}, err
		}
		candles, err := s.opts.Market.FetchCandles(ctx, chainID, tr.TokenAddress, s.opts.CandleBar, s.opts.CandleLimit)
		if err != nil {
			log.Debug().Err(err).Str("token", tr.TokenAddress).Msg("candles unavailable, token dropped")
			continue
		}
		entry, ok := NearestClose(tr.AvgBuyPrice, candles)
		if !ok {
			continue
		}
		score := ClassifyEntry(tr.AvgBuyPrice, entry.TimestampMs, candles)

		weight := tr.BuyTxCount
		if weight > MaxWeightPerToken {
			weight = MaxWeightPerToken
		}
		if weight < 1 {
			weight = 1
		}
		sum += float64(score) * float64(weight)
		samples += weight
		tokens++
	}

	if samples == 0 {
		return WalletScore{}, nil
	}
	return WalletScore{Mean: sum / float64(samples), Samples: samples, Tokens: tokens}, nil
}

// recentTrades pages the wallet history and returns trades active within the
// active window with a usable average buy price, most recent first.
func (s *Scorer) recentTrades(ctx context.Context, wallet, chainID string) ([]domain.WalletTokenTrade, error) {
	cutoff := s.opts.Now().Add(-s.opts.ActiveWindow).UnixMilli()

	var out []domain.WalletTokenTrade
	for page := 0; page < s.opts.MaxPages; page++ {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		res, err := s.opts.Market.FetchWalletHistory(ctx, chainID, wallet, page*s.opts.PageSize, s.opts.PageSize)
		if err != nil {
			if page == 0 {
				return nil, fmt.Errorf("wallet history: %w", err)
			}
			s.opts.Logger.Debug().Err(err).Str("wallet", wallet).Int("page", page).Msg("history paging stopped")
			break
		}
		for _, tr := range res.Trades {
			if tr.LastActiveMs < cutoff || tr.AvgBuyPrice <= 0 || tr.TokenAddress == "" {
				continue
			}
			out = append(out, tr)
		}
		if !res.HasMore || len(res.Trades) == 0 {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActiveMs > out[j].LastActiveMs
	})
	return dedupeTokens(out), nil
}

// dedupeTokens keeps the first (most recent) trade summary per token.
func dedupeTokens(trades []domain.WalletTokenTrade) []domain.WalletTokenTrade {
	seen := make(map[string]struct{}, len(trades))
	out := trades[:0]
	for _, tr := range trades {
		if _, ok := seen[tr.TokenAddress]; ok {
			continue
		}
		seen[tr.TokenAddress] = struct{}{}
		out = append(out, tr)
	}
	return out
}

func (s *Scorer) wait(ctx context.Context) error {
	if s.opts.Limiter == nil {
		return nil
	}
	return s.opts.Limiter.Wait(ctx)
}
