package domain

// Candle is one OHLC bar produced by the market-data provider.
// Candles are transient: they are consumed by the classifier and never persisted.
type Candle struct {
	TimestampMs int64   // bar open time, Unix milliseconds
	Open        float64 // open price
	High        float64 // highest price in bar
	Low         float64 // lowest price in bar
	Close       float64 // close price
}

// Supported candle bars for the market-data provider.
const (
	Bar15Min = "15m"
	Bar1Hour = "1H"
	Bar4Hour = "4H"
)
