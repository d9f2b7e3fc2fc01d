package ranking

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayarullin/finvizor/internal/contracts"
	"github.com/ayarullin/finvizor/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWriter(io.Discard)
}

func fv(v float64) *float64 { return &v }

func samples(pairs ...interface{}) []contracts.MetricSample {
	out := make([]contracts.MetricSample, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, contracts.MetricSample{
			Ticker: pairs[i].(string),
			Rank:   pairs[i+1].(int),
		})
	}
	return out
}

func TestFuse_SummaryRankIsRankSum(t *testing.T) {
	fuser := NewFuser(testLogger())
	universe := map[string]bool{"AAA": true, "BBB": true}

	result := fuser.Fuse(
		samples("AAA", 1, "BBB", 2),
		samples("AAA", 2, "BBB", 1),
		universe, nil,
	)

	require.Len(t, result, 2)
	assert.Equal(t, 3, result["AAA"].SummaryRank)
	assert.Equal(t, 3, result["BBB"].SummaryRank)

	// Tie broken by ticker in canonical order
	rows := result.Ordered()
	assert.Equal(t, "AAA", rows[0].Ticker)
	assert.Equal(t, "BBB", rows[1].Ticker)
}

func TestFuse_RestrictsToUniverse(t *testing.T) {
	fuser := NewFuser(testLogger())
	universe := map[string]bool{"AAA": true}

	result := fuser.Fuse(
		samples("AAA", 1, "XXX", 2),
		samples("AAA", 1, "XXX", 2),
		universe, nil,
	)

	require.Len(t, result, 1)
	_, ok := result["XXX"]
	assert.False(t, ok, "off-universe ticker must be excluded")
}

func TestFuse_FirstOccurrenceWinsOnDuplicates(t *testing.T) {
	fuser := NewFuser(testLogger())
	universe := map[string]bool{"AAA": true, "BBB": true}

	// Page-boundary duplicate: AAA appears twice with different ranks
	result := fuser.Fuse(
		samples("AAA", 3, "AAA", 17, "BBB", 4),
		samples("AAA", 1, "BBB", 2),
		universe, nil,
	)

	assert.Equal(t, 3, result["AAA"].EPRank)
}

func TestFuse_CarryForwardFromPrevious(t *testing.T) {
	fuser := NewFuser(testLogger())
	universe := map[string]bool{"AAA": true, "BBB": true}

	previous := contracts.RankingTable{
		"BBB": {Ticker: "BBB", EPRank: 7, EPValue: fv(4.2), ROERank: 9, ROEValue: fv(11.0), SummaryRank: 16},
	}

	// BBB missing from this cycle's EP pull
	result := fuser.Fuse(
		samples("AAA", 1),
		samples("AAA", 2, "BBB", 3),
		universe, previous,
	)

	require.Contains(t, result, "BBB")
	row := result["BBB"]
	assert.Equal(t, 7, row.EPRank, "EP rank carried from previous cycle")
	require.NotNil(t, row.EPValue)
	assert.Equal(t, 4.2, *row.EPValue)
	assert.Equal(t, 3, row.ROERank, "fresh ROE rank wins over previous")
	assert.Equal(t, 10, row.SummaryRank)
}

func TestFuse_DropsTickerMissingEverywhere(t *testing.T) {
	fuser := NewFuser(testLogger())
	universe := map[string]bool{"AAA": true, "BBB": true}

	// BBB absent from both pulls and no previous data
	result := fuser.Fuse(
		samples("AAA", 1),
		samples("AAA", 1),
		universe, nil,
	)

	_, ok := result["BBB"]
	assert.False(t, ok)
	assert.Len(t, result, 1)
}

func TestFuse_TickerOnlyInPreviousSurvives(t *testing.T) {
	fuser := NewFuser(testLogger())
	universe := map[string]bool{"AAA": true, "BBB": true}

	previous := contracts.RankingTable{
		"BBB": {Ticker: "BBB", EPRank: 5, ROERank: 6, SummaryRank: 11},
	}

	// BBB missing from both pulls this cycle but fully carried forward
	result := fuser.Fuse(
		samples("AAA", 1),
		samples("AAA", 1),
		universe, previous,
	)

	require.Contains(t, result, "BBB")
	assert.Equal(t, 11, result["BBB"].SummaryRank)
}

func TestFuse_IdempotentOnUnchangedInputs(t *testing.T) {
	fuser := NewFuser(testLogger())
	universe := map[string]bool{"AAA": true, "BBB": true, "CCC": true}

	ep := samples("AAA", 1, "BBB", 2)
	roe := samples("AAA", 2, "CCC", 5)
	previous := contracts.RankingTable{
		"BBB": {Ticker: "BBB", EPRank: 9, ROERank: 4, SummaryRank: 13},
		"CCC": {Ticker: "CCC", EPRank: 6, ROERank: 8, SummaryRank: 14},
	}

	first := fuser.Fuse(ep, roe, universe, previous)
	second := fuser.Fuse(ep, roe, universe, first)

	assert.Equal(t, first, second, "re-running with its own output as history must be a no-op")
}
