package classifier

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-money-tracker/internal/domain"
)

const hourMs int64 = 60 * 60 * 1000

func TestClassifyEntry_DumpThenMoonScoresMax(t *testing.T) {
	entry := 100 * hourMs
	candles := []domain.Candle{
		{TimestampMs: entry - 4*hourMs, Low: 1.5, High: 2.0, Close: 1.8},
		{TimestampMs: entry + 2*hourMs, Low: 1.0, High: 1.5, Close: 1.4},
	}

	c := Classify(1.0, entry, candles)
	assert.Equal(t, BeforeDumpedTo, c.Before)
	assert.Equal(t, AfterMoon, c.After)
	assert.Equal(t, Score(2), c.Score)
	assert.Equal(t, Score(2), ClassifyEntry(1.0, entry, candles))
}

func TestClassifyEntry_PumpThenDumpScoresMin(t *testing.T) {
	entry := 100 * hourMs
	candles := []domain.Candle{
		{TimestampMs: entry - 2*hourMs, Low: 0.5, High: 0.9, Close: 0.9},
		{TimestampMs: entry + 6*hourMs, Low: 0.5, High: 1.0, Close: 0.6},
	}

	c := Classify(1.0, entry, candles)
	assert.Equal(t, BeforePumpedTo, c.Before)
	assert.Equal(t, AfterDump, c.After)
	assert.Equal(t, Score(-2), c.Score)
}

func TestClassifyEntry_EmptyWindowsAreFlat(t *testing.T) {
	entry := 100 * hourMs
	candles := []domain.Candle{
		{TimestampMs: entry - 9*hourMs, Low: 0.1, High: 10, Close: 5},
		{TimestampMs: entry, Low: 0.1, High: 10, Close: 5},
		{TimestampMs: entry + 25*hourMs, Low: 0.1, High: 10, Close: 5},
	}

	c := Classify(1.0, entry, candles)
	assert.Equal(t, BeforeFlat, c.Before)
	assert.Equal(t, AfterFlat, c.After)
	assert.Equal(t, Score(0), c.Score)

	c = Classify(1.0, entry, nil)
	assert.Equal(t, BeforeFlat, c.Before)
	assert.Equal(t, AfterFlat, c.After)
}

func TestClassifyEntry_WindowEdges(t *testing.T) {
	entry := 100 * hourMs
	// start of before window is inclusive, end of after window is inclusive
	candles := []domain.Candle{
		{TimestampMs: entry - 8*hourMs, Low: 2, High: 2, Close: 2},
		{TimestampMs: entry + 24*hourMs, Low: 2, High: 2, Close: 2},
	}

	c := Classify(1.0, entry, candles)
	assert.Equal(t, BeforeDumpedTo, c.Before)
	assert.Equal(t, AfterMoon, c.After)
}

func TestClassifyEntry_MildMoves(t *testing.T) {
	entry := 100 * hourMs
	candles := []domain.Candle{
		{TimestampMs: entry - hourMs, Low: 0.88, High: 1.0, Close: 0.95},
		{TimestampMs: entry + hourMs, Low: 0.88, High: 1.02, Close: 0.9},
	}

	c := Classify(1.0, entry, candles)
	assert.Equal(t, BeforeRoseTo, c.Before)
	assert.Equal(t, AfterDip, c.After)
	assert.Equal(t, Score(-1), c.Score)
}

func TestClassifyEntry_MissingExtremesUseClose(t *testing.T) {
	entry := 100 * hourMs
	candles := []domain.Candle{
		{TimestampMs: entry - hourMs, Close: 0.5},
		{TimestampMs: entry + hourMs, Close: 1.3},
	}

	c := Classify(1.0, entry, candles)
	assert.Equal(t, BeforePumpedTo, c.Before)
	assert.Equal(t, AfterMoon, c.After)
	assert.Equal(t, Score(0), c.Score)
}

func TestClassifyEntry_InvalidPrice(t *testing.T) {
	candles := []domain.Candle{{TimestampMs: 0, Low: 1, High: 1, Close: 1}}
	assert.Equal(t, Score(0), ClassifyEntry(0, hourMs, candles))
	assert.Equal(t, Score(0), ClassifyEntry(-3, hourMs, candles))
}

func TestClassifyEntry_AlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		entry := int64(rng.Intn(48)) * hourMs
		n := rng.Intn(40)
		candles := make([]domain.Candle, 0, n)
		for j := 0; j < n; j++ {
			lo := rng.Float64()*3 + 0.01
			candles = append(candles, domain.Candle{
				TimestampMs: int64(rng.Intn(96)) * hourMs,
				Low:         lo,
				High:        lo + rng.Float64(),
				Close:       lo,
			})
		}
		price := rng.Float64()*3 + 0.01

		s := ClassifyEntry(price, entry, candles)
		require.GreaterOrEqual(t, int(s), int(MinScore))
		require.LessOrEqual(t, int(s), int(MaxScore))
	}
}

func TestLookup_Matrix(t *testing.T) {
	tests := []struct {
		before BeforeContext
		after  AfterContext
		want   Score
	}{
		{BeforeDumpedTo, AfterMoon, 2},
		{BeforeFellTo, AfterMoon, 2},
		{BeforeFlat, AfterMoon, 2},
		{BeforeFlat, AfterPump, 1},
		{BeforeRoseTo, AfterMoon, 1},
		{BeforeRoseTo, AfterDump, -2},
		{BeforePumpedTo, AfterDump, -2},
		{BeforePumpedTo, AfterDip, -2},
		{BeforePumpedTo, AfterMoon, 0},
		{BeforeFlat, AfterFlat, 0},
		{BeforeContext("bogus"), AfterMoon, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.before)+"/"+string(tt.after), func(t *testing.T) {
			assert.Equal(t, tt.want, Lookup(tt.before, tt.after))
		})
	}
}

func TestNearestClose(t *testing.T) {
	candles := []domain.Candle{
		{TimestampMs: 3, Close: 1.2},
		{TimestampMs: 1, Close: 0.8},
		{TimestampMs: 2, Close: 5},
		{TimestampMs: 4, Close: 0},
	}

	got, ok := NearestClose(1.0, candles)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.TimestampMs, "tie goes to earliest")

	got, ok = NearestClose(4.0, candles)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.TimestampMs)

	_, ok = NearestClose(1.0, []domain.Candle{{Close: 0}})
	assert.False(t, ok)
}
