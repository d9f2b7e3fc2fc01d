package ranking

import (
	"github.com/ayarullin/finvizor/internal/contracts"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// Fuser combines the two metric rankings into a composite table.
// It is pure with respect to its inputs: no clock, no I/O, so a
// re-run with identical inputs yields an identical table.
type Fuser struct {
	logger *logger.Logger
}

// NewFuser creates a new fuser
func NewFuser(log *logger.Logger) *Fuser {
	return &Fuser{logger: log}
}

// metricSide is one metric's view of the universe after dedup
type metricSide struct {
	rank  map[string]int
	value map[string]*float64
}

// collect restricts samples to the universe, first occurrence winning
// on duplicates. Screener pagination repeats rows at page boundaries,
// so dedup must follow scan order to stay deterministic.
func collect(samples []contracts.MetricSample, universe map[string]bool) metricSide {
	side := metricSide{
		rank:  make(map[string]int),
		value: make(map[string]*float64),
	}

	for _, s := range samples {
		if !universe[s.Ticker] {
			continue
		}
		if _, seen := side.rank[s.Ticker]; seen {
			continue
		}
		side.rank[s.Ticker] = s.Rank
		side.value[s.Ticker] = s.RawValue
	}

	return side
}

// Fuse builds the composite table for one cycle. Tickers missing from
// one metric pull inherit that metric's fields from the previous
// cycle's row (carry-forward, never invented); tickers missing from
// both pulls with no previous row are dropped for the cycle.
func (f *Fuser) Fuse(ep, roe []contracts.MetricSample, universe map[string]bool, previous contracts.RankingTable) contracts.RankingTable {
	epSide := collect(ep, universe)
	roeSide := collect(roe, universe)

	// Every ticker either metric saw this cycle
	candidates := make(map[string]bool, len(epSide.rank))
	for ticker := range epSide.rank {
		candidates[ticker] = true
	}
	for ticker := range roeSide.rank {
		candidates[ticker] = true
	}
	// Plus tickers only the previous table knows, so a universe member
	// absent from a flaky pull survives on carried-forward data
	for ticker := range previous {
		if universe[ticker] {
			candidates[ticker] = true
		}
	}

	result := make(contracts.RankingTable, len(candidates))
	dropped := 0

	for ticker := range candidates {
		row := contracts.CompositeRow{Ticker: ticker}
		prev, hasPrev := previous[ticker]

		if rank, ok := epSide.rank[ticker]; ok {
			row.EPRank = rank
			row.EPValue = epSide.value[ticker]
		} else if hasPrev && prev.EPRank > 0 {
			row.EPRank = prev.EPRank
			row.EPValue = prev.EPValue
		} else {
			dropped++
			continue
		}

		if rank, ok := roeSide.rank[ticker]; ok {
			row.ROERank = rank
			row.ROEValue = roeSide.value[ticker]
		} else if hasPrev && prev.ROERank > 0 {
			row.ROERank = prev.ROERank
			row.ROEValue = prev.ROEValue
		} else {
			dropped++
			continue
		}

		row.SummaryRank = row.EPRank + row.ROERank
		result[ticker] = row
	}

	if dropped > 0 {
		f.logger.WithFields(map[string]interface{}{
			"dropped": dropped,
			"kept":    len(result),
		}).Warn("Tickers dropped for incomplete metric data")
	}

	return result
}
