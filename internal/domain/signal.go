package domain

// Signal is one reported smart-money activity event for a token on a chain.
// Identity is (BatchID, BatchIndex); it is unique per chain and never reused.
type Signal struct {
	ChainID          string  // provider chain identifier ("501" = Solana)
	TokenAddress     string  // token contract / mint address
	TokenSymbol      string  // ticker reported by the provider
	BatchID          string  // provider batch identifier
	BatchIndex       int     // position within the batch
	EventTimeMs      int64   // Unix timestamp in milliseconds
	PriceAtSignal    float64 // token price (USD) when the signal fired
	McapAtSignal     float64 // market cap (USD) when the signal fired
	Volume           float64 // aggregated buy volume (USD)
	ParticipantCount int     // number of wallets the provider attributes to the signal
}

// Participant is one wallet attached to a Signal together with its entry score.
// A wallet may recur across many signals; the score is computed per signal.
type Participant struct {
	WalletAddress   string
	EntryScore      float64 // in [-2, +2] when Scored
	Scored          bool    // false means "unscored" (scoring failed or no data)
	Samples         int     // sample count behind EntryScore
	ProviderPnL     float64 // realized PnL reported by the provider (USD)
	ProviderROI     float64 // ROI reported by the provider (percent)
	ProviderWinRate float64 // win rate reported by the provider (percent)
}

// ScoredMean returns the arithmetic mean of the scored participants and how many
// contributed. Unscored participants are ignored.
func ScoredMean(ps []Participant) (float64, int) {
	var sum float64
	n := 0
	for _, p := range ps {
		if !p.Scored {
			continue
		}
		sum += p.EntryScore
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
