package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"smart-money-tracker/internal/address"
	"smart-money-tracker/internal/delivery"
	"smart-money-tracker/internal/domain"
	"smart-money-tracker/internal/format"
	"smart-money-tracker/internal/keys"
	"smart-money-tracker/internal/records"
)

// Filter reasons recorded on signal records.
const (
	ReasonScam           = "security_scam"
	ReasonNoNewWallets   = "no_new_wallets"
	ReasonUnscored       = "no_scored_wallets"
	ReasonBelowMinScore  = "below_min_score"
	ReasonDeliveryFailed = "delivery_failed"
)

// Candidate outcomes reported to metrics in addition to domain.Outcome.
const (
	outcomeDuplicate      = "duplicate"
	outcomeBelowThreshold = "below_threshold"
	outcomeFailed         = "failed"
	outcomeAbandoned      = "abandoned"
)

// candidate carries one signal through the pipeline.
type candidate struct {
	key      string
	sig      domain.Signal
	token    records.TokenAggregate
	newToken bool
	fresh    []domain.Participant // wallets not yet known for the token
	record   records.SignalRecord
	logger   zerolog.Logger
}

// process takes one candidate to a terminal outcome. Upstream calls use work,
// which ends with the time budget; if it ends mid-candidate the key is
// released instead of settled.
func (o *Orchestrator) process(ctx, work context.Context, c *cycle, sig domain.Signal) {
	key := keys.Signal(sig.ChainID, sig.BatchID, sig.BatchIndex)
	logger := c.logger.With().Str("signal", key).Str("token", sig.TokenAddress).Logger()

	// Dedup: check, then mark every tier before any expensive work.
	if seen, tier := c.guard.CheckAndMark(ctx, key); seen {
		c.summary.Duplicates++
		o.metrics.RecordDedupHit(tier)
		o.metrics.RecordCandidate(c.chainID, outcomeDuplicate)
		logger.Debug().Str("tier", tier).Msg("duplicate signal")
		return
	}

	if sig.ParticipantCount < o.minWallets {
		o.belowThreshold(c, logger, sig.ParticipantCount)
		return
	}

	participants, err := o.market.FetchDetail(work, sig.ChainID, sig.TokenAddress, sig.BatchID, sig.BatchIndex)
	if err != nil && work.Err() != nil {
		o.abandon(ctx, c, key, logger)
		return
	}
	if err != nil {
		c.summary.Failed++
		c.errorf("signal %s: detail: %v", key, err)
		o.metrics.RecordCandidate(c.chainID, outcomeFailed)
		logger.Warn().Err(err).Msg("detail fetch failed")
		return
	}
	participants = wallets(sig.ChainID, participants)
	if len(participants) < o.minWallets {
		o.belowThreshold(c, logger, len(participants))
		return
	}

	cand := &candidate{key: key, sig: sig, logger: logger}
	cand.token, cand.newToken = c.token(sig)
	var repeats int
	cand.fresh, repeats = splitKnown(cand.token, participants)
	cand.record = records.NewSignalRecord(sig)
	cand.record.NewWallets = len(cand.fresh)
	cand.record.RepeatWallets = repeats

	report := o.security(work, sig, logger)
	if work.Err() != nil {
		o.abandon(ctx, c, key, logger)
		return
	}
	cand.token.Security = report.Status
	cand.record.Security = report.Status

	if report.Status == domain.SecurityScam {
		cand.token.Observe(sig, 0, false)
		o.settle(ctx, c, cand, domain.OutcomeRejected, ReasonScam, nil)
		return
	}
	if len(cand.fresh) == 0 {
		cand.token.Observe(sig, 0, false)
		o.settle(ctx, c, cand, domain.OutcomeFiltered, ReasonNoNewWallets, nil)
		return
	}

	ranks := o.ranks(c, cand.fresh)
	scored := o.score(work, cand)
	if work.Err() != nil {
		o.abandon(ctx, c, key, logger)
		return
	}
	mean, n := domain.ScoredMean(scored)
	cand.record.MeanScore = mean
	cand.record.ScoredWallets = n
	cand.token.Observe(sig, mean, n > 0)
	for _, p := range scored {
		cand.token.Remember(p.WalletAddress)
	}

	if n == 0 {
		o.settle(ctx, c, cand, domain.OutcomeFiltered, ReasonUnscored, scored)
		return
	}
	if mean <= o.minScore {
		o.settle(ctx, c, cand, domain.OutcomeFiltered, ReasonBelowMinScore, scored)
		return
	}

	alert := format.Alert{
		Signal:      sig,
		Wallets:     scored,
		Repeats:     repeats,
		MeanScore:   mean,
		Scored:      n,
		Security:    report,
		SignalCount: cand.token.SignalCount,
		FirstPrice:  cand.token.FirstPrice,
		Ranks:       ranks,
	}
	reason := ""
	if !o.deliver(ctx, c, cand, alert) {
		reason = ReasonDeliveryFailed
	}
	o.settle(ctx, c, cand, domain.OutcomeDelivered, reason, scored)
}

// abandon releases a candidate the time budget cut off so the next cycle
// evaluates it again. Nothing about it is persisted.
func (o *Orchestrator) abandon(ctx context.Context, c *cycle, key string, logger zerolog.Logger) {
	rctx, cancel := o.detached(ctx)
	defer cancel()
	c.guard.Release(rctx, key)

	c.summary.Abandoned++
	o.metrics.RecordCandidate(c.chainID, outcomeAbandoned)
	logger.Warn().Msg("time budget exhausted mid-candidate, released for the next cycle")
}

func (o *Orchestrator) belowThreshold(c *cycle, logger zerolog.Logger, n int) {
	c.summary.BelowThreshold++
	o.metrics.RecordCandidate(c.chainID, outcomeBelowThreshold)
	logger.Debug().Int("wallets", n).Int("min", o.minWallets).Msg("below wallet threshold")
}

// token returns the cached aggregate for the signal's token, or a new one.
func (c *cycle) token(sig domain.Signal) (records.TokenAggregate, bool) {
	if c.ledger != nil {
		if t, ok := c.ledger.Token(sig.ChainID, sig.TokenAddress); ok {
			return t, false
		}
	}
	return records.NewTokenAggregate(sig.ChainID, sig.TokenAddress), true
}

// wallets drops non-wallet addresses and duplicates, keeping provider order.
func wallets(chainID string, ps []domain.Participant) []domain.Participant {
	seen := make(map[string]struct{}, len(ps))
	out := make([]domain.Participant, 0, len(ps))
	for _, p := range ps {
		if !address.IsWallet(chainID, p.WalletAddress) {
			continue
		}
		k := keys.Prefix(p.WalletAddress)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

// splitKnown returns the participants the token has not counted yet and the
// number it already has.
func splitKnown(token records.TokenAggregate, ps []domain.Participant) ([]domain.Participant, int) {
	var fresh []domain.Participant
	repeats := 0
	for _, p := range ps {
		if token.Knows(p.WalletAddress) {
			repeats++
			continue
		}
		fresh = append(fresh, p)
	}
	return fresh, repeats
}

// security returns the token's scan report. Failures degrade to UNKNOWN.
func (o *Orchestrator) security(ctx context.Context, sig domain.Signal, logger zerolog.Logger) domain.SecurityReport {
	report, err := o.market.FetchSecurity(ctx, sig.ChainID, sig.TokenAddress)
	if err != nil {
		logger.Warn().Err(err).Msg("security check failed, treating as unknown")
		return domain.SecurityReport{Status: domain.SecurityUnknown}
	}
	if !report.Status.IsValid() {
		report.Status = domain.SecurityUnknown
	}
	return report
}

// score scores the candidate's new wallets one at a time. A failure leaves
// that wallet unscored.
func (o *Orchestrator) score(ctx context.Context, cand *candidate) []domain.Participant {
	out := make([]domain.Participant, len(cand.fresh))
	copy(out, cand.fresh)
	for i := range out {
		p := &out[i]
		p.Scored, p.EntryScore, p.Samples = false, 0, 0

		if o.pace != nil {
			if err := o.pace.Wait(ctx); err != nil {
				cand.logger.Debug().Err(err).Msg("scoring interrupted")
				break
			}
		}
		ws, err := o.scorer.ScoreWallet(ctx, p.WalletAddress, cand.sig.ChainID, o.maxTokens)
		if err != nil {
			cand.logger.Debug().Err(err).Str("wallet", p.WalletAddress).Msg("wallet scoring failed")
		} else if ws.Scored() {
			p.Scored, p.EntryScore, p.Samples = true, ws.Mean, ws.Samples
		}
		o.metrics.RecordWalletScore(p.Scored)
	}
	return out
}

// ranks labels wallets from their history before this signal.
func (o *Orchestrator) ranks(c *cycle, ps []domain.Participant) map[string]string {
	if o.ranker == nil || c.ledger == nil {
		return nil
	}
	out := make(map[string]string)
	for _, p := range ps {
		w, ok := c.ledger.Wallet(c.chainID, p.WalletAddress)
		if !ok {
			continue
		}
		if label := o.ranker.Rank(w); label != "" {
			out[p.WalletAddress] = label
		}
	}
	return out
}

// deliver sends the alert, threading under the token's previous messages.
// It reports whether the primary sink accepted it.
func (o *Orchestrator) deliver(ctx context.Context, c *cycle, cand *candidate, alert format.Alert) bool {
	res, err := o.delivery.Deliver(ctx, alert, cand.token.LastDelivered)

	receipts := []delivery.Receipt{res.Primary}
	if res.Secondary != nil {
		receipts = append(receipts, *res.Secondary)
	}
	for _, r := range receipts {
		if r.Sink == "" {
			continue
		}
		o.metrics.RecordDelivery(r.Sink, r.Image, r.Err)
		if r.Err != nil {
			continue
		}
		cand.token.SetDelivered(r.Sink, r.Handle)
		if cand.record.Delivered == nil {
			cand.record.Delivered = make(map[string]int64)
		}
		cand.record.Delivered[r.Sink] = r.Handle
	}

	if err != nil {
		c.summary.DeliveryFailures++
		c.errorf("signal %s: %v", cand.key, err)
		cand.logger.Error().Err(err).Msg("delivery failed")
		return false
	}
	return true
}
