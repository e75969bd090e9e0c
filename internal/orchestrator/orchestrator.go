// Package orchestrator runs one polling cycle per chain.
// It coordinates: fetch → dedup → score → filter → deliver → persist → flush
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"smart-money-tracker/internal/classifier"
	"smart-money-tracker/internal/dedup"
	"smart-money-tracker/internal/delivery"
	"smart-money-tracker/internal/domain"
	"smart-money-tracker/internal/observability"
	"smart-money-tracker/internal/records"
	"smart-money-tracker/internal/storage"
)

// ErrMissingDeliveryTarget is returned before any processing when there is
// nowhere to deliver alerts.
var ErrMissingDeliveryTarget = errors.New("missing delivery target")

// DefaultFlushTimeout bounds the end-of-cycle flush when Options.FlushTimeout is zero.
const DefaultFlushTimeout = 30 * time.Second

// Market is the market-data and security-scan provider.
type Market interface {
	FetchActivity(ctx context.Context, chainID, trend string, pageSize int) ([]domain.Signal, error)
	FetchDetail(ctx context.Context, chainID, token, batchID string, batchIndex int) ([]domain.Participant, error)
	FetchSecurity(ctx context.Context, chainID, token string) (domain.SecurityReport, error)
}

// WalletScorer scores a wallet's historical entry timing.
type WalletScorer interface {
	ScoreWallet(ctx context.Context, wallet, chainID string, maxTokens int) (classifier.WalletScore, error)
}

// WalletRanker labels a wallet for display (star rating, rank). The formula
// lives outside this package; an empty label is not shown.
type WalletRanker interface {
	Rank(w records.WalletAggregate) string
}

// Options for creating Orchestrator.
type Options struct {
	// Required collaborators
	Market   Market
	Scorer   WalletScorer
	Delivery *delivery.Dispatcher

	// Optional collaborators
	Ledger  *records.Ledger       // nil runs without durable state
	Warm    dedup.WarmTier        // short-lived dedup tier
	Archive storage.SignalArchive // append-only outcome log
	Ranker  WalletRanker
	Metrics *observability.Metrics
	Logger  zerolog.Logger

	// Candidate selection
	Trend      string
	PageSize   int
	MinWallets int     // fewer participants are dropped before detail fetch
	MinScore   float64 // mean entry score must be strictly greater
	MaxTokens  int     // per-wallet scoring depth, 0 = scorer default

	// Pacing between wallet scoring calls, 0 = none
	WalletPace time.Duration

	// TimeBudget bounds one cycle; remaining candidates are abandoned when
	// it runs out. 0 = unbounded.
	TimeBudget time.Duration

	// FlushTimeout bounds the end-of-cycle flush and archive, which run
	// even after the cycle context is done.
	FlushTimeout time.Duration

	Now func() time.Time
}

// Orchestrator coordinates polling cycles.
type Orchestrator struct {
	market   Market
	scorer   WalletScorer
	delivery *delivery.Dispatcher
	ledger   *records.Ledger
	warm     dedup.WarmTier
	archive  storage.SignalArchive
	ranker   WalletRanker
	metrics  *observability.Metrics
	logger   zerolog.Logger

	trend      string
	pageSize   int
	minWallets int
	minScore   float64
	maxTokens  int
	pace       *rate.Limiter
	budget     time.Duration
	flushAfter time.Duration
	now        func() time.Time

	mu     sync.Mutex
	chains map[string]*sync.Mutex
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = DefaultFlushTimeout
	}
	o := &Orchestrator{
		market:     opts.Market,
		scorer:     opts.Scorer,
		delivery:   opts.Delivery,
		ledger:     opts.Ledger,
		warm:       opts.Warm,
		archive:    opts.Archive,
		ranker:     opts.Ranker,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With().Str("component", "orchestrator").Logger(),
		trend:      opts.Trend,
		pageSize:   opts.PageSize,
		minWallets: opts.MinWallets,
		minScore:   opts.MinScore,
		maxTokens:  opts.MaxTokens,
		budget:     opts.TimeBudget,
		flushAfter: opts.FlushTimeout,
		now:        opts.Now,
		chains:     make(map[string]*sync.Mutex),
	}
	if opts.WalletPace > 0 {
		o.pace = rate.NewLimiter(rate.Every(opts.WalletPace), 1)
	}
	return o
}

// Summary is the result of one cycle. It is returned even on partial failure.
type Summary struct {
	CycleID          string        `json:"cycle_id"`
	ChainID          string        `json:"chain"`
	Fetched          int           `json:"fetched"`
	Duplicates       int           `json:"duplicates"`
	BelowThreshold   int           `json:"below_threshold"`
	Delivered        int           `json:"delivered"`
	Filtered         int           `json:"filtered"`
	Rejected         int           `json:"rejected"`
	Failed           int           `json:"failed"`
	Abandoned        int           `json:"abandoned"`
	DeliveryFailures int           `json:"delivery_failures"`
	Degraded         bool          `json:"degraded"`
	Duration         time.Duration `json:"-"`
	DurationMs       int64         `json:"duration_ms"`
	Errors           []string      `json:"errors,omitempty"`
}

// cycle is the state of one RunCycle call.
type cycle struct {
	id       string
	chainID  string
	guard    *dedup.Guard
	ledger   *records.Ledger // nil when degraded
	summary  *Summary
	logger   zerolog.Logger
	outcomes []*domain.SignalOutcome
}

func (c *cycle) errorf(format string, args ...interface{}) {
	c.summary.Errors = append(c.summary.Errors, fmt.Sprintf(format, args...))
}

// RunCycle runs one polling cycle for a chain.
// Phases:
//  1. Load the record store if it is not loaded yet (degrade on failure)
//  2. Fetch candidates, newest first
//  3. Process each candidate until the time budget runs out
//  4. Flush the record store and archive outcomes, even if ctx is done
func (o *Orchestrator) RunCycle(ctx context.Context, chainID string) (*Summary, error) {
	if err := o.delivery.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingDeliveryTarget, err)
	}

	lock := o.chainLock(chainID)
	lock.Lock()
	defer lock.Unlock()

	start := o.now()
	c := &cycle{
		id:      uuid.NewString(),
		chainID: chainID,
		summary: &Summary{ChainID: chainID},
	}
	c.summary.CycleID = c.id
	c.logger = o.logger.With().Str("cycle_id", c.id).Str("chain", chainID).Logger()

	// Phase 1: Record store
	c.ledger = o.loadLedger(ctx, c.logger)
	c.summary.Degraded = c.ledger == nil

	var durable dedup.DurableTier
	if c.ledger != nil {
		durable = c.ledger
	}
	c.guard = dedup.NewGuard(dedup.GuardOptions{
		ChainID: chainID,
		Warm:    o.warm,
		Durable: durable,
		Logger:  c.logger,
	})
	if err := c.guard.Prime(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("warm dedup tier unreadable")
	}

	// Phase 2: Fetch
	signals, err := o.market.FetchActivity(ctx, chainID, o.trend, o.pageSize)
	if err != nil {
		c.errorf("fetch activity: %v", err)
		o.finish(c, start, "failed")
		return c.summary, fmt.Errorf("fetch activity: %w", err)
	}
	c.summary.Fetched = len(signals)
	newestFirst(signals)
	c.logger.Debug().Int("candidates", len(signals)).Msg("fetched candidates")

	// Phase 3: Candidates
	work, cancel := o.budgetContext(ctx, start)
	defer cancel()
	for i, sig := range signals {
		if o.outOfTime(work, start) {
			c.summary.Abandoned += len(signals) - i
			c.logger.Warn().
				Int("abandoned", c.summary.Abandoned).
				Dur("elapsed", o.now().Sub(start)).
				Msg("time budget exhausted, leaving remaining candidates for the next cycle")
			break
		}
		if sig.ChainID == "" {
			sig.ChainID = chainID
		}
		o.process(ctx, work, c, sig)
	}

	// Phase 4: Flush
	fctx, fcancel := o.detached(ctx)
	defer fcancel()
	if c.ledger != nil {
		if err := c.ledger.RefreshTopPerformers(chainID); err != nil {
			c.errorf("top performers: %v", err)
		}
		if err := c.ledger.Flush(fctx); err != nil {
			c.errorf("flush: %v", err)
			c.logger.Error().Err(err).Msg("record store flush failed")
		}
		o.metrics.SetPending(c.ledger.Pending())
	}
	if o.archive != nil && len(c.outcomes) > 0 {
		if err := o.archive.InsertBulk(fctx, c.outcomes); err != nil {
			c.errorf("archive: %v", err)
			c.logger.Warn().Err(err).Int("outcomes", len(c.outcomes)).Msg("archive insert failed")
		}
	}

	status := "ok"
	if len(c.summary.Errors) > 0 {
		status = "partial"
	}
	o.finish(c, start, status)
	return c.summary, nil
}

// Sweep applies retention to the record store and flushes what remains.
func (o *Orchestrator) Sweep(ctx context.Context) (map[string]int, error) {
	if o.ledger == nil {
		return nil, nil
	}
	if err := o.ledger.Load(ctx); err != nil {
		return nil, err
	}
	removed, err := o.ledger.Sweep(ctx, o.now())
	o.metrics.RecordSweep(removed)
	if err != nil {
		return removed, err
	}
	return removed, o.ledger.Flush(ctx)
}

// StoreAvailable reports whether the record store is fully loaded.
func (o *Orchestrator) StoreAvailable() bool {
	return o.ledger != nil && o.ledger.Available()
}

func (o *Orchestrator) chainLock(chainID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.chains[chainID]
	if !ok {
		l = &sync.Mutex{}
		o.chains[chainID] = l
	}
	return l
}

// loadLedger returns the ledger once every partition is loaded, retrying a
// failed load each cycle. nil means the cycle runs degraded.
func (o *Orchestrator) loadLedger(ctx context.Context, logger zerolog.Logger) *records.Ledger {
	if o.ledger == nil {
		return nil
	}
	if !o.ledger.Available() {
		if err := o.ledger.Load(ctx); err != nil {
			logger.Warn().Err(err).Msg("record store unavailable, deduplicating with ephemeral and warm tiers only")
			return nil
		}
	}
	return o.ledger
}

// budgetContext returns a context that ends with the cycle's time budget.
func (o *Orchestrator) budgetContext(ctx context.Context, start time.Time) (context.Context, context.CancelFunc) {
	if o.budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.budget-o.now().Sub(start))
}

// detached returns a context that survives cancellation of ctx, bounded by
// the flush timeout.
func (o *Orchestrator) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.flushAfter)
}

func (o *Orchestrator) outOfTime(ctx context.Context, start time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return o.budget > 0 && o.now().Sub(start) >= o.budget
}

func (o *Orchestrator) finish(c *cycle, start time.Time, status string) {
	s := c.summary
	s.Duration = o.now().Sub(start)
	s.DurationMs = s.Duration.Milliseconds()
	o.metrics.RecordCycle(c.chainID, status, s.Duration)

	c.logger.Info().
		Str("status", status).
		Int("fetched", s.Fetched).
		Int("duplicates", s.Duplicates).
		Int("delivered", s.Delivered).
		Int("filtered", s.Filtered).
		Int("rejected", s.Rejected).
		Int("failed", s.Failed).
		Int("abandoned", s.Abandoned).
		Bool("degraded", s.Degraded).
		Dur("duration", s.Duration).
		Msg("cycle complete")
}

// newestFirst orders candidates by event time, then batch identity, descending.
func newestFirst(signals []domain.Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if a.EventTimeMs != b.EventTimeMs {
			return a.EventTimeMs > b.EventTimeMs
		}
		if a.BatchID != b.BatchID {
			return a.BatchID > b.BatchID
		}
		return a.BatchIndex > b.BatchIndex
	})
}
