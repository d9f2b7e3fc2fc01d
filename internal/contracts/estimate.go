package contracts

// Estimate carries the analyst point estimates for one ticker:
// consensus rating (1 strong buy .. 5 sell) and price targets.
type Estimate struct {
	Rating       float64 `json:"rating"`
	LowTarget    float64 `json:"low_target"`
	CurrentPrice float64 `json:"current_price"`
	AvgTarget    float64 `json:"avg_target"`
	HighTarget   float64 `json:"high_target"`
}

// EstimateRow is a composite ranking row augmented with analyst
// estimates. A nil Estimate means the fetch failed for this cycle;
// the row is kept so selection can filter it out explicitly rather
// than confusing "no data" with "data says don't buy".
type EstimateRow struct {
	CompositeRow
	Estimate *Estimate `json:"estimate,omitempty"`
}

// Complete reports whether the row has estimates to select on
func (r EstimateRow) Complete() bool {
	return r.Estimate != nil
}

// Undervalued reports whether analysts on average see upside
func (r EstimateRow) Undervalued() bool {
	return r.Estimate != nil && r.Estimate.CurrentPrice < r.Estimate.AvgTarget
}
