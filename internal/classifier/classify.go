package classifier

import (
	"math"

	"smart-money-tracker/internal/domain"
)

// Window sizes around an entry.
const (
	BeforeWindowMs int64 = 8 * 60 * 60 * 1000
	AfterWindowMs  int64 = 24 * 60 * 60 * 1000
)

// Classification is the full result of classifying one entry.
type Classification struct {
	Before  BeforeContext
	After   AfterContext
	RisePct float64 // (entry - beforeMin) / beforeMin * 100
	FallPct float64 // (beforeMax - entry) / beforeMax * 100
	UpPct   float64 // (afterMax - entry) / entry * 100
	DownPct float64 // (entry - afterMin) / entry * 100
	Score   Score
}

// ClassifyEntry scores an entry at entryPrice/entryTimeMs against the candles.
// Candles need not be sorted. The result is always in [MinScore, MaxScore].
func ClassifyEntry(entryPrice float64, entryTimeMs int64, candles []domain.Candle) Score {
	return Classify(entryPrice, entryTimeMs, candles).Score
}

// Classify is ClassifyEntry with the intermediate contexts exposed.
func Classify(entryPrice float64, entryTimeMs int64, candles []domain.Candle) Classification {
	var c Classification
	if entryPrice <= 0 || math.IsNaN(entryPrice) || math.IsInf(entryPrice, 0) {
		c.Before, c.After = BeforeFlat, AfterFlat
		return c
	}

	beforeMin, beforeMax := window(candles, entryPrice, entryTimeMs-BeforeWindowMs, entryTimeMs, false)
	afterMin, afterMax := window(candles, entryPrice, entryTimeMs, entryTimeMs+AfterWindowMs, true)

	if beforeMin > 0 {
		c.RisePct = (entryPrice - beforeMin) / beforeMin * 100
	}
	if beforeMax > 0 {
		c.FallPct = (beforeMax - entryPrice) / beforeMax * 100
	}
	c.UpPct = (afterMax - entryPrice) / entryPrice * 100
	c.DownPct = (entryPrice - afterMin) / entryPrice * 100

	c.Before = classifyBefore(c.RisePct, c.FallPct)
	c.After = classifyAfter(c.UpPct, c.DownPct)
	c.Score = clamp(Lookup(c.Before, c.After))
	return c
}

// window returns the min low and max high of candles in the time window.
// The before window is [start, end); the after window is (start, end].
// An empty window collapses to the entry price on both sides.
func window(candles []domain.Candle, entryPrice float64, start, end int64, after bool) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, k := range candles {
		ts := k.TimestampMs
		if after {
			if ts <= start || ts > end {
				continue
			}
		} else if ts < start || ts >= end {
			continue
		}
		low, high := barRange(k)
		if low <= 0 {
			continue
		}
		lo = math.Min(lo, low)
		hi = math.Max(hi, high)
	}
	if math.IsInf(lo, 1) {
		return entryPrice, entryPrice
	}
	return lo, hi
}

// barRange returns the usable low/high of a candle, falling back to the
// close when the provider omits the extremes.
func barRange(k domain.Candle) (float64, float64) {
	low, high := k.Low, k.High
	if low <= 0 {
		low = k.Close
	}
	if high <= 0 {
		high = k.Close
	}
	if high < low {
		low, high = high, low
	}
	return low, high
}

func clamp(s Score) Score {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

// NearestClose returns the candle whose close is nearest to price.
// Ties go to the earliest candle. Returns false when no candle has a positive close.
func NearestClose(price float64, candles []domain.Candle) (domain.Candle, bool) {
	var best domain.Candle
	bestDiff := math.Inf(1)
	found := false
	for _, k := range candles {
		if k.Close <= 0 {
			continue
		}
		d := math.Abs(k.Close - price)
		if d < bestDiff || (d == bestDiff && k.TimestampMs < best.TimestampMs) {
			best, bestDiff, found = k, d, true
		}
	}
	return best, found
}
