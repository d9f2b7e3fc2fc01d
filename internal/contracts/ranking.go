package contracts

import "sort"

// MetricSample is one parsed row of a screener metric table:
// the ticker's 1-based position in that metric's external ordering
// plus the raw metric value when the page carried one.
type MetricSample struct {
	Ticker   string   `json:"ticker"`
	Rank     int      `json:"rank"`
	RawValue *float64 `json:"raw_value,omitempty"`
}

// CompositeRow is a ticker's fused ranking across both metrics.
// SummaryRank = EPRank + ROERank; lower is better.
type CompositeRow struct {
	Ticker      string   `json:"ticker"`
	EPRank      int      `json:"ep_rank"`
	EPValue     *float64 `json:"ep_value,omitempty"`
	ROERank     int      `json:"roe_rank"`
	ROEValue    *float64 `json:"roe_value,omitempty"`
	SummaryRank int      `json:"summary_rank"`
}

// RankingTable is a composite ranking keyed by ticker
type RankingTable map[string]CompositeRow

// Ordered returns the table's rows sorted by summary rank ascending,
// ticker lexical order breaking ties. The ordering is the canonical
// one for everything downstream, so it must be deterministic.
func (t RankingTable) Ordered() []CompositeRow {
	rows := make([]CompositeRow, 0, len(t))
	for _, row := range t {
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SummaryRank != rows[j].SummaryRank {
			return rows[i].SummaryRank < rows[j].SummaryRank
		}
		return rows[i].Ticker < rows[j].Ticker
	})

	return rows
}

// Tickers returns the tickers in canonical order
func (t RankingTable) Tickers() []string {
	rows := t.Ordered()
	tickers := make([]string, len(rows))
	for i, row := range rows {
		tickers[i] = row.Ticker
	}
	return tickers
}
