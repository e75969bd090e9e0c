package records

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"smart-money-tracker/internal/keys"
	"smart-money-tracker/internal/recordstore"
	"smart-money-tracker/internal/storage"
)

// Options configures a Ledger.
type Options struct {
	Substrate storage.Substrate
	Logger    zerolog.Logger
	Now       func() time.Time
	Observer  recordstore.Observer
}

// Ledger is the typed view over the four record partitions.
type Ledger struct {
	index   *recordstore.Partition[IndexRecord]
	signals *recordstore.Partition[SignalRecord]
	tokens  *recordstore.Partition[TokenAggregate]
	wallets *recordstore.Partition[WalletAggregate]
	store   *recordstore.Store
	logger  zerolog.Logger
}

// NewLedger creates a ledger over the substrate. Call Load before use.
func NewLedger(opts Options) *Ledger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ro := []recordstore.Option{
		recordstore.WithClock(opts.Now),
		recordstore.WithLogger(opts.Logger),
	}
	if opts.Observer != nil {
		ro = append(ro, recordstore.WithObserver(opts.Observer))
	}

	l := &Ledger{
		index:   recordstore.NewPartition(opts.Substrate, IndexPolicy(), ro...),
		signals: recordstore.NewPartition(opts.Substrate, SignalPolicy(), ro...),
		tokens:  recordstore.NewPartition(opts.Substrate, TokenPolicy(), ro...),
		wallets: recordstore.NewPartition(opts.Substrate, WalletPolicy(), ro...),
		logger:  opts.Logger.With().Str("component", "ledger").Logger(),
	}
	l.store = recordstore.NewStore(l.index, l.signals, l.tokens, l.wallets)
	return l
}

// Load bootstraps every partition from its anchor.
func (l *Ledger) Load(ctx context.Context) error {
	return l.store.Load(ctx)
}

// Available reports whether every partition loaded. Until then the ledger
// must not back the durable dedup tier or receive writes.
func (l *Ledger) Available() bool {
	return l.store.Loaded()
}

// Flush writes every staged record and rewrites the anchors.
func (l *Ledger) Flush(ctx context.Context) error {
	return l.store.Flush(ctx)
}

// Sweep applies the retention policies and returns removals per partition.
func (l *Ledger) Sweep(ctx context.Context, now time.Time) (map[string]int, error) {
	return l.store.Sweep(ctx, now)
}

// Pending returns the number of records staged for the next Flush.
func (l *Ledger) Pending() int {
	return l.index.Pending() + l.signals.Pending() + l.tokens.Pending() + l.wallets.Pending()
}

// Index returns the chain's index record, or an empty one.
func (l *Ledger) Index(chainID string) IndexRecord {
	if e, ok := l.index.Get(keys.Index(chainID)); ok {
		return e.Data
	}
	return NewIndexRecord(chainID)
}

// PutIndex stages an index record.
func (l *Ledger) PutIndex(rec IndexRecord) error {
	return putPruned(l.index, keys.Index(rec.ChainID), rec, l.logger)
}

// HasSeen reports whether the signal key is in the chain's seen ring.
func (l *Ledger) HasSeen(chainID, key string) bool {
	return l.Index(chainID).HasSeen(key)
}

// MarkSeen adds the signal key to the chain's seen ring.
func (l *Ledger) MarkSeen(chainID, key string) error {
	rec := l.Index(chainID)
	if !rec.MarkSeen(key) {
		return nil
	}
	return l.PutIndex(rec)
}

// UnmarkSeen drops the signal key from the chain's seen ring.
func (l *Ledger) UnmarkSeen(chainID, key string) error {
	rec := l.Index(chainID)
	if !rec.UnmarkSeen(key) {
		return nil
	}
	return l.PutIndex(rec)
}

// Signal returns a signal record.
func (l *Ledger) Signal(key string) (SignalRecord, bool) {
	e, ok := l.signals.Get(key)
	return e.Data, ok
}

// PutSignal stages a signal record.
func (l *Ledger) PutSignal(key string, rec SignalRecord) error {
	return l.signals.Put(key, rec)
}

// Token returns a token aggregate.
func (l *Ledger) Token(chainID, address string) (TokenAggregate, bool) {
	e, ok := l.tokens.Get(keys.Token(chainID, address))
	return e.Data, ok
}

// PutToken stages a token aggregate.
func (l *Ledger) PutToken(t TokenAggregate) error {
	return putPruned(l.tokens, keys.Token(t.ChainID, t.Address), t, l.logger)
}

// Wallet returns a wallet aggregate.
func (l *Ledger) Wallet(chainID, address string) (WalletAggregate, bool) {
	e, ok := l.wallets.Get(keys.Wallet(chainID, address))
	return e.Data, ok
}

// PutWallet stages a wallet aggregate.
func (l *Ledger) PutWallet(w WalletAggregate) error {
	return putPruned(l.wallets, keys.Wallet(w.ChainID, w.Address), w, l.logger)
}

// Wallets returns every cached wallet aggregate for a chain.
func (l *Ledger) Wallets(chainID string) []WalletAggregate {
	var out []WalletAggregate
	for _, e := range l.wallets.Entries() {
		if e.Data.ChainID == chainID {
			out = append(out, e.Data)
		}
	}
	return out
}

// RefreshTopPerformers re-ranks the chain's cached wallets into its index record.
func (l *Ledger) RefreshTopPerformers(chainID string) error {
	rec := l.Index(chainID)
	rec.TopPerformers = RankPerformers(l.Wallets(chainID))
	return l.PutIndex(rec)
}

type prunable[T any] interface {
	*T
	Prune() bool
	Clone() T
}

// putPruned stages v. If it exceeds the payload ceiling its bounded
// collections are pruned oldest first and the write is retried once.
func putPruned[T any, P prunable[T]](p *recordstore.Partition[T], key string, v T, logger zerolog.Logger) error {
	err := p.Put(key, v)
	if !errors.Is(err, recordstore.ErrRecordTooLarge) {
		return err
	}

	v = P(&v).Clone()
	if !P(&v).Prune() {
		logger.Error().Err(err).Str("partition", p.Name()).Str("key", key).Msg("record too large, write rejected")
		return err
	}
	if err := p.Put(key, v); err != nil {
		logger.Error().Err(err).Str("partition", p.Name()).Str("key", key).Msg("record too large after pruning, write rejected")
		return err
	}
	logger.Warn().Str("partition", p.Name()).Str("key", key).Msg("record pruned to fit payload ceiling")
	return nil
}
