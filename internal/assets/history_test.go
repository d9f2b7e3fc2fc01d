package assets

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayarullin/finvizor/internal/contracts"
)

func TestHistory_RecordAndUpsert(t *testing.T) {
	history := NewValuationHistory()

	history.Record(day(1), 100)
	history.Record(day(1), 120) // re-valuation within the same day

	assert.Equal(t, 1, history.Len())

	latest, err := history.Latest()
	require.NoError(t, err)
	assert.Equal(t, 120.0, latest)
}

func TestHistory_SameDayProfitabilityIsZero(t *testing.T) {
	history := NewValuationHistory()
	history.Record(day(5), 104.5)

	got, err := history.RangeProfitability(day(5), day(5))
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestHistory_RangeProfitability(t *testing.T) {
	history := NewValuationHistory()
	history.Record(day(1), 100)
	history.Record(day(10), 150)

	got, err := history.RangeProfitability(day(1), day(10))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestHistory_WalksToNearestRecordedDates(t *testing.T) {
	// Weekend gap: from walks forward, to walks backward
	history := NewValuationHistory()
	history.Record(day(3), 100)
	history.Record(day(6), 130)

	got, err := history.RangeProfitability(day(1), day(9))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, got, 1e-9)
}

func TestHistory_WalkPastRangeFails(t *testing.T) {
	history := NewValuationHistory()
	history.Record(day(3), 100)

	_, err := history.RangeProfitability(day(5), day(9))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNoHistory))

	_, err = history.RangeProfitability(day(1), day(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNoHistory))
}

func TestHistory_NonUTCTimesKeyTheirOwnCalendarDay(t *testing.T) {
	history := NewValuationHistory()
	history.Record(day(2), 100)
	history.Record(day(3), 150)

	// 01:00 on day 3 in UTC+3 is still 22:00 on day 2 in UTC; the
	// range must be keyed by the times' own calendar days.
	early := time.Date(2026, 3, 3, 1, 0, 0, 0, time.FixedZone("MSK", 3*60*60))

	got, err := history.RangeProfitability(day(2), early)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestHistory_EmptyFails(t *testing.T) {
	history := NewValuationHistory()

	_, err := history.RangeProfitability(day(1), day(2))
	assert.True(t, errors.Is(err, contracts.ErrNoHistory))

	_, err = history.Latest()
	assert.True(t, errors.Is(err, contracts.ErrNoHistory))
}

func TestHistory_EntriesRoundTrip(t *testing.T) {
	history := NewValuationHistory()
	history.Record(day(1), 100)
	history.Record(day(2), 110)

	restored := FromEntries(history.Entries())

	assert.Equal(t, history.Entries(), restored.Entries())

	// The copy is detached from the original
	entries := history.Entries()
	entries["2030-01-01"] = 1
	assert.Equal(t, 2, history.Len())
}

func TestLedger_TotalProfitability(t *testing.T) {
	ledger := NewLedger(1000, testLogger())
	require.NoError(t, ledger.Buy("X", 10, 50, day(1)))

	got, err := ledger.TotalProfitability(fixedPrices(map[string]float64{"X": 75}))
	require.NoError(t, err)

	// 500 cash + 750 shares over 1000 initial
	assert.InDelta(t, 0.25, got, 1e-9)
}
