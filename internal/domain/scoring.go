package domain

import "sort"

// ScoreBand colours a composite score for display. It is never stored.
type ScoreBand string

const (
	BandHigh ScoreBand = "high"
	BandMid  ScoreBand = "mid"
	BandLow  ScoreBand = "low"
)

// BandFor classifies a composite score: >=80 high, 50..79 mid, below 50 low.
func BandFor(composite int) ScoreBand {
	switch {
	case composite >= 80:
		return BandHigh
	case composite >= 50:
		return BandMid
	default:
		return BandLow
	}
}

// SortedOptions returns a copy of opts ordered by label, independent of storage order.
func SortedOptions(opts []AnswerOption) []AnswerOption {
	out := make([]AnswerOption, len(opts))
	copy(out, opts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Label < out[j].Label
	})
	return out
}
