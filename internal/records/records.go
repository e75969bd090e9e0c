// Package records defines the durable record types kept in the record store
// (index, signal, token and wallet) together with their merge and retention rules.
package records

import (
	"time"

	"smart-money-tracker/internal/recordstore"
)

// Partition names.
const (
	PartitionIndex  = "index"
	PartitionSignal = "signal"
	PartitionToken  = "token"
	PartitionWallet = "wallet"
)

// Record format versions.
const (
	IndexVersion  = 1
	SignalVersion = 1
	TokenVersion  = 1
	WalletVersion = 1
)

// Ring capacities and list bounds.
const (
	SeenSignalCap     = 100
	KnownWalletCap    = 50
	RecentScoreCap    = 10
	MaxWalletEntries  = 20
	TopPerformerLimit = 10
	TopPerformerMin   = 3 // appearances required to rank
)

// Retention.
const (
	SignalRetention  = 7 * 24 * time.Hour
	ShortRetention   = 7 * 24 * time.Hour
	LongRetention    = 30 * 24 * time.Hour
	QualityThreshold = 0.5
)

// qualityExpiry keeps records whose average score is at least
// QualityThreshold for LongRetention, everything else for ShortRetention.
// Age is measured from the last update.
func qualityExpiry(updated time.Time, avg float64) time.Time {
	if avg >= QualityThreshold {
		return updated.Add(LongRetention)
	}
	return updated.Add(ShortRetention)
}

// IndexPolicy returns the partition policy for index records. Index records never expire.
func IndexPolicy() recordstore.Policy[IndexRecord] {
	return recordstore.Policy[IndexRecord]{
		Name:      PartitionIndex,
		Version:   IndexVersion,
		Merge:     MergeIndex,
		Clone:     IndexRecord.Clone,
		Normalize: (*IndexRecord).Normalize,
	}
}

// SignalPolicy returns the partition policy for signal records.
func SignalPolicy() recordstore.Policy[SignalRecord] {
	return recordstore.Policy[SignalRecord]{
		Name:    PartitionSignal,
		Version: SignalVersion,
		Merge:   MergeSignal,
		Clone:   SignalRecord.Clone,
		Expiry: func(e recordstore.Entry[SignalRecord]) (time.Time, bool) {
			return e.Meta.UpdatedAt.Add(SignalRetention), true
		},
	}
}

// TokenPolicy returns the partition policy for token aggregates.
func TokenPolicy() recordstore.Policy[TokenAggregate] {
	return recordstore.Policy[TokenAggregate]{
		Name:      PartitionToken,
		Version:   TokenVersion,
		Merge:     MergeToken,
		Clone:     TokenAggregate.Clone,
		Normalize: (*TokenAggregate).Normalize,
		Expiry: func(e recordstore.Entry[TokenAggregate]) (time.Time, bool) {
			return qualityExpiry(e.Meta.UpdatedAt, e.Data.AverageScore), true
		},
	}
}

// WalletPolicy returns the partition policy for wallet aggregates.
func WalletPolicy() recordstore.Policy[WalletAggregate] {
	return recordstore.Policy[WalletAggregate]{
		Name:      PartitionWallet,
		Version:   WalletVersion,
		Merge:     MergeWallet,
		Clone:     WalletAggregate.Clone,
		Normalize: (*WalletAggregate).Normalize,
		Expiry: func(e recordstore.Entry[WalletAggregate]) (time.Time, bool) {
			return qualityExpiry(e.Meta.UpdatedAt, e.Data.AverageScore), true
		},
	}
}

func minPositive(a, b float64) float64 {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	case b < a:
		return b
	default:
		return a
	}
}
