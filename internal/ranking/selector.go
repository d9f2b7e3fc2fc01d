package ranking

import (
	"sort"

	"github.com/ayarullin/finvizor/internal/contracts"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// candidateWindow widens the summary-rank cut before the estimate
// filter so that missing-estimate and overvalued drop-outs still
// leave enough rows to fill the final selection.
const candidateWindow = 6

// CandidateWindow returns how many top-ranked rows are worth fetching
// estimates for when the final selection keeps n tickers.
func CandidateWindow(n int) int {
	return candidateWindow * n
}

// Selector derives the best-N candidate set from merged ranking rows
// and detects turnover versus the previous cycle's set.
type Selector struct {
	logger *logger.Logger
}

// NewSelector creates a new selector
func NewSelector(log *logger.Logger) *Selector {
	return &Selector{logger: log}
}

// Select filters to undervalued rows with complete estimates, takes
// the first 6n of them in summary-rank order, re-sorts that window
// ascending by analyst rating and truncates to n. changed is true
// when the selected ticker set differs from previous (set equality,
// order-insensitive).
func (s *Selector) Select(rows []contracts.EstimateRow, n int, previous []string) (selected []contracts.EstimateRow, changed bool) {
	filtered := make([]contracts.EstimateRow, 0, len(rows))
	incomplete := 0

	for _, row := range rows {
		if !row.Complete() {
			incomplete++
			continue
		}
		if !row.Undervalued() {
			continue
		}
		filtered = append(filtered, row)
		if len(filtered) == candidateWindow*n {
			break
		}
	}

	// Ascending rating: 1 is a strong buy on the analyst scale
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Estimate.Rating != filtered[j].Estimate.Rating {
			return filtered[i].Estimate.Rating < filtered[j].Estimate.Rating
		}
		return filtered[i].Ticker < filtered[j].Ticker
	})

	if len(filtered) > n {
		filtered = filtered[:n]
	}

	changed = !sameTickerSet(filtered, previous)

	s.logger.WithFields(map[string]interface{}{
		"selected":   len(filtered),
		"incomplete": incomplete,
		"changed":    changed,
	}).Info("Candidate selection completed")

	return filtered, changed
}

// sameTickerSet compares the selected rows against the previous
// cycle's tickers as sets
func sameTickerSet(selected []contracts.EstimateRow, previous []string) bool {
	if len(selected) != len(previous) {
		return false
	}

	prev := make(map[string]bool, len(previous))
	for _, ticker := range previous {
		prev[ticker] = true
	}

	for _, row := range selected {
		if !prev[row.Ticker] {
			return false
		}
	}

	return true
}
