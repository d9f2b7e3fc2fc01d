package ranking

import "github.com/ayarullin/finvizor/internal/contracts"

// Merge augments composite ranking rows with analyst estimates,
// preserving the canonical composite order. Tickers whose estimate
// fetch failed stay in the output with a nil Estimate.
func Merge(composite contracts.RankingTable, estimates map[string]*contracts.Estimate) []contracts.EstimateRow {
	ordered := composite.Ordered()
	rows := make([]contracts.EstimateRow, 0, len(ordered))

	for _, row := range ordered {
		rows = append(rows, contracts.EstimateRow{
			CompositeRow: row,
			Estimate:     estimates[row.Ticker],
		})
	}

	return rows
}
