package clickhouse

import (
	"context"
	"fmt"

	"smart-money-tracker/internal/domain"
	"smart-money-tracker/internal/storage"
)

// SignalArchive implements storage.SignalArchive using ClickHouse.
type SignalArchive struct {
	conn *Conn
}

// NewSignalArchive creates a new SignalArchive.
func NewSignalArchive(conn *Conn) *SignalArchive {
	return &SignalArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.SignalArchive = (*SignalArchive)(nil)

// InsertBulk appends outcomes in one batch.
func (s *SignalArchive) InsertBulk(ctx context.Context, outcomes []*domain.SignalOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	for _, o := range outcomes {
		if o == nil || o.SignalKey == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO signal_outcomes (
			cycle_id, signal_key, chain_id, token_address, token_symbol,
			outcome, reason, event_time_ms, price_at_signal, mcap_at_signal,
			participant_count, new_wallets, repeat_wallets, scored_wallets,
			mean_score, security_status, processed_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range outcomes {
		err = batch.Append(
			o.CycleID, o.SignalKey, o.ChainID, o.TokenAddress, o.TokenSymbol,
			string(o.Outcome), o.Reason, o.EventTimeMs, o.PriceAtSignal, o.McapAtSignal,
			uint32(o.ParticipantCount), uint32(o.NewWallets), uint32(o.RepeatWallets), uint32(o.ScoredWallets),
			o.MeanScore, string(o.SecurityStatus), o.ProcessedAtMs,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByToken retrieves outcomes for a token, ordered by processed time ASC.
func (s *SignalArchive) GetByToken(ctx context.Context, chainID, tokenAddress string) ([]*domain.SignalOutcome, error) {
	query := `
		SELECT cycle_id, signal_key, chain_id, token_address, token_symbol,
			outcome, reason, event_time_ms, price_at_signal, mcap_at_signal,
			participant_count, new_wallets, repeat_wallets, scored_wallets,
			mean_score, security_status, processed_at_ms
		FROM signal_outcomes
		WHERE chain_id = ? AND token_address = ?
		ORDER BY processed_at_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, chainID, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	return scanSignalOutcomes(rows)
}

// chRows is the subset of driver.Rows used for scanning.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanSignalOutcomes(rows chRows) ([]*domain.SignalOutcome, error) {
	var out []*domain.SignalOutcome

	for rows.Next() {
		var o domain.SignalOutcome
		var outcome, security string
		var participants, newWallets, repeatWallets, scored uint32

		err := rows.Scan(
			&o.CycleID, &o.SignalKey, &o.ChainID, &o.TokenAddress, &o.TokenSymbol,
			&outcome, &o.Reason, &o.EventTimeMs, &o.PriceAtSignal, &o.McapAtSignal,
			&participants, &newWallets, &repeatWallets, &scored,
			&o.MeanScore, &security, &o.ProcessedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal outcome row: %w", err)
		}

		o.Outcome = domain.Outcome(outcome)
		o.SecurityStatus = domain.SecurityStatus(security)
		o.ParticipantCount = int(participants)
		o.NewWallets = int(newWallets)
		o.RepeatWallets = int(repeatWallets)
		o.ScoredWallets = int(scored)
		out = append(out, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal outcome rows: %w", err)
	}

	return out, nil
}
