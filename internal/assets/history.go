package assets

import (
	"fmt"
	"time"

	"github.com/ayarullin/finvizor/internal/contracts"
)

// DateKey is the day-granular key format for valuation history
const DateKey = "2006-01-02"

// ValuationHistory is the append-only record of net worth per day.
// Re-valuing the same day overwrites that day's entry.
type ValuationHistory struct {
	entries map[string]float64
}

// NewValuationHistory creates an empty history
func NewValuationHistory() *ValuationHistory {
	return &ValuationHistory{entries: make(map[string]float64)}
}

// FromEntries restores a history from its persisted form
func FromEntries(entries map[string]float64) *ValuationHistory {
	h := NewValuationHistory()
	for key, worth := range entries {
		h.entries[key] = worth
	}
	return h
}

// Entries returns a copy of the history's persistable form
func (h *ValuationHistory) Entries() map[string]float64 {
	out := make(map[string]float64, len(h.entries))
	for key, worth := range h.entries {
		out[key] = worth
	}
	return out
}

// Record upserts the net worth for a date
func (h *ValuationHistory) Record(date time.Time, netWorth float64) {
	h.entries[date.Format(DateKey)] = netWorth
}

// Len returns the number of recorded days
func (h *ValuationHistory) Len() int {
	return len(h.entries)
}

// bounds returns the earliest and latest recorded dates
func (h *ValuationHistory) bounds() (time.Time, time.Time, bool) {
	if len(h.entries) == 0 {
		return time.Time{}, time.Time{}, false
	}

	var min, max time.Time
	for key := range h.entries {
		d, err := time.Parse(DateKey, key)
		if err != nil {
			continue
		}
		if min.IsZero() || d.Before(min) {
			min = d
		}
		if max.IsZero() || d.After(max) {
			max = d
		}
	}
	return min, max, !min.IsZero()
}

// RangeProfitability returns the return between two recorded days:
// history[to]/history[from] - 1. A missing from walks forward and a
// missing to walks backward to the nearest recorded day; values are
// never interpolated. Walking past the recorded range fails with
// ErrNoHistory.
func (h *ValuationHistory) RangeProfitability(from, to time.Time) (float64, error) {
	min, max, ok := h.bounds()
	if !ok {
		return 0, fmt.Errorf("history is empty: %w", contracts.ErrNoHistory)
	}

	from = dayStart(from)
	to = dayStart(to)

	start, ok := h.walk(from, max, 24*time.Hour)
	if !ok {
		return 0, fmt.Errorf("no entry on or after %s: %w", from.Format(DateKey), contracts.ErrNoHistory)
	}

	end, ok := h.walk(to, min, -24*time.Hour)
	if !ok {
		return 0, fmt.Errorf("no entry on or before %s: %w", to.Format(DateKey), contracts.ErrNoHistory)
	}

	return h.entries[end.Format(DateKey)]/h.entries[start.Format(DateKey)] - 1.0, nil
}

// dayStart normalizes a time to midnight of its own calendar day.
// Truncating instead would snap to UTC day boundaries and shift
// non-UTC times onto the wrong key.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// walk steps from date toward bound until it hits a recorded day
func (h *ValuationHistory) walk(date, bound time.Time, step time.Duration) (time.Time, bool) {
	for {
		if _, ok := h.entries[date.Format(DateKey)]; ok {
			return date, true
		}
		if step > 0 && date.After(bound) {
			return time.Time{}, false
		}
		if step < 0 && date.Before(bound) {
			return time.Time{}, false
		}
		date = date.Add(step)
	}
}

// Latest returns the most recent recorded net worth
func (h *ValuationHistory) Latest() (float64, error) {
	_, max, ok := h.bounds()
	if !ok {
		return 0, fmt.Errorf("history is empty: %w", contracts.ErrNoHistory)
	}
	return h.entries[max.Format(DateKey)], nil
}
