package domain

// WalletTokenTrade summarizes a wallet's trading in one token as reported by
// the market-data provider's wallet history endpoint.
type WalletTokenTrade struct {
	TokenAddress string
	TokenSymbol  string
	AvgBuyPrice  float64 // volume-weighted average buy price (USD)
	BuyTxCount   int
	SellTxCount  int
	LastActiveMs int64   // last trade time, Unix milliseconds
	RealizedPnL  float64 // USD
}

// WalletHistoryPage is one page of a wallet's token trade history.
type WalletHistoryPage struct {
	Trades  []WalletTokenTrade
	HasMore bool
}
