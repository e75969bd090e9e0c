package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"smart-money-tracker/internal/domain"
	"smart-money-tracker/internal/records"
)

// settle records a terminal outcome: the signal key is committed to every
// dedup tier and the aggregates are staged for the end-of-cycle flush.
// wallets are the new participants counted toward the token.
func (o *Orchestrator) settle(ctx context.Context, c *cycle, cand *candidate, outcome domain.Outcome, reason string, wallets []domain.Participant) {
	c.guard.Commit(ctx, cand.key)

	cand.record.Outcome = outcome
	cand.record.Reason = reason

	switch outcome {
	case domain.OutcomeDelivered:
		if reason == "" {
			c.summary.Delivered++
		}
	case domain.OutcomeFiltered:
		c.summary.Filtered++
	case domain.OutcomeRejected:
		c.summary.Rejected++
	}
	o.metrics.RecordCandidate(c.chainID, outcome.String())

	logger := cand.logger.With().Str("outcome", outcome.String()).Logger()
	if reason != "" {
		logger = logger.With().Str("reason", reason).Logger()
	}
	logger.Info().
		Int("new_wallets", cand.record.NewWallets).
		Int("repeat_wallets", cand.record.RepeatWallets).
		Int("scored", cand.record.ScoredWallets).
		Float64("mean", cand.record.MeanScore).
		Str("security", cand.record.Security.String()).
		Msg("signal settled")

	if c.ledger != nil {
		o.stage(c, cand, wallets, logger)
	}
	c.outcomes = append(c.outcomes, &domain.SignalOutcome{
		CycleID:          c.id,
		SignalKey:        cand.key,
		ChainID:          cand.sig.ChainID,
		TokenAddress:     cand.sig.TokenAddress,
		TokenSymbol:      cand.sig.TokenSymbol,
		Outcome:          outcome,
		Reason:           reason,
		EventTimeMs:      cand.sig.EventTimeMs,
		PriceAtSignal:    cand.sig.PriceAtSignal,
		McapAtSignal:     cand.sig.McapAtSignal,
		ParticipantCount: cand.sig.ParticipantCount,
		NewWallets:       cand.record.NewWallets,
		RepeatWallets:    cand.record.RepeatWallets,
		ScoredWallets:    cand.record.ScoredWallets,
		MeanScore:        cand.record.MeanScore,
		SecurityStatus:   cand.record.Security,
		ProcessedAtMs:    o.now().UnixMilli(),
	})
}

// stage puts the wallet, token, signal and index records into the ledger
// cache. Failures are collected, never fatal.
func (o *Orchestrator) stage(c *cycle, cand *candidate, wallets []domain.Participant, logger zerolog.Logger) {
	led := c.ledger
	chainID := cand.sig.ChainID

	idx := led.Index(chainID)
	idx.TotalSignals++
	if cand.newToken {
		idx.TotalTokens++
	}

	at := cand.sig.EventTimeMs
	if at == 0 {
		at = o.now().UnixMilli()
	}
	for _, p := range wallets {
		w, ok := led.Wallet(chainID, p.WalletAddress)
		if !ok {
			w = records.NewWalletAggregate(chainID, p.WalletAddress)
			idx.TotalWallets++
		}
		w.Observe(cand.sig.TokenAddress, cand.sig.PriceAtSignal, p.EntryScore, p.Scored, at)
		if err := led.PutWallet(w); err != nil {
			c.errorf("signal %s: wallet %s: %v", cand.key, p.WalletAddress, err)
		}
	}

	if err := led.PutToken(cand.token); err != nil {
		c.errorf("signal %s: token: %v", cand.key, err)
		logger.Error().Err(err).Msg("token aggregate not staged")
	}
	if err := led.PutSignal(cand.key, cand.record); err != nil {
		c.errorf("signal %s: record: %v", cand.key, err)
	}
	if err := led.PutIndex(idx); err != nil {
		c.errorf("signal %s: index: %v", cand.key, err)
	}
}
