package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-money-tracker/internal/domain"
	"smart-money-tracker/internal/storage"
)

func TestSignalArchive_InsertBulkAndGetByToken(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	archive := NewSignalArchive(conn)

	outcomes := []*domain.SignalOutcome{
		{
			CycleID: "c1", SignalKey: "501:b1:0", ChainID: "501", TokenAddress: "TokA", TokenSymbol: "AAA",
			Outcome: domain.OutcomeDelivered, EventTimeMs: 1700000000000, PriceAtSignal: 0.01,
			ParticipantCount: 3, NewWallets: 3, ScoredWallets: 3, MeanScore: 0.667,
			SecurityStatus: domain.SecuritySafe, ProcessedAtMs: 1700000005000,
		},
		{
			CycleID: "c2", SignalKey: "501:b2:1", ChainID: "501", TokenAddress: "TokA", TokenSymbol: "AAA",
			Outcome: domain.OutcomeFiltered, Reason: "no new wallets", ParticipantCount: 2, RepeatWallets: 2,
			SecurityStatus: domain.SecurityUnknown, ProcessedAtMs: 1700000001000,
		},
		{
			CycleID: "c2", SignalKey: "501:b3:0", ChainID: "501", TokenAddress: "TokB",
			Outcome: domain.OutcomeRejected, SecurityStatus: domain.SecurityScam, ProcessedAtMs: 1700000002000,
		},
	}

	require.NoError(t, archive.InsertBulk(ctx, outcomes))

	got, err := archive.GetByToken(ctx, "501", "TokA")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "501:b2:1", got[0].SignalKey, "ordered by processed time")
	assert.Equal(t, domain.OutcomeFiltered, got[0].Outcome)
	assert.Equal(t, 2, got[0].RepeatWallets)

	assert.Equal(t, domain.OutcomeDelivered, got[1].Outcome)
	assert.Equal(t, domain.SecuritySafe, got[1].SecurityStatus)
	assert.InDelta(t, 0.667, got[1].MeanScore, 1e-9)
	assert.Equal(t, 3, got[1].NewWallets)
}

func TestSignalArchive_InsertBulkValidation(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	archive := NewSignalArchive(conn)

	require.NoError(t, archive.InsertBulk(ctx, nil))
	assert.ErrorIs(t, archive.InsertBulk(ctx, []*domain.SignalOutcome{{ChainID: "501"}}), storage.ErrInvalidInput)
}
