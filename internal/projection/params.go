package projection

import (
	"fmt"
	"strings"

	"debt-dashboard/internal/dataset"
)

// Normalization selects how the composition table is expressed.
type Normalization string

const (
	// Absolute passes component amounts through unchanged.
	Absolute Normalization = "absolute"
	// ShareOfTotal expresses each component as a percentage of the row total.
	ShareOfTotal Normalization = "share"
)

// ParseNormalization accepts the short names plus the dashboard labels.
func ParseNormalization(v string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "absolute", "absolute (bn)":
		return Absolute, nil
	case "share", "share of total", "share of total (%)", "percent":
		return ShareOfTotal, nil
	default:
		return "", fmt.Errorf("unknown normalization %q", v)
	}
}

// YearRange is an inclusive year interval.
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether year lies within the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Min && year <= r.Max
}

// Params are the user-selected view parameters for one interaction.
type Params struct {
	YearRange     YearRange     `json:"year_range"`
	MovingAverage bool          `json:"moving_average"`
	Normalization Normalization `json:"normalization"`
	Annotations   bool          `json:"annotations"`
}

// DefaultParams selects the whole dataset with every overlay enabled,
// matching the dashboard's initial control state.
func DefaultParams(ds dataset.Dataset) Params {
	min, max, _ := ds.YearSpan()
	return Params{
		YearRange:     YearRange{Min: min, Max: max},
		MovingAverage: true,
		Normalization: Absolute,
		Annotations:   true,
	}
}

// Clamp constrains the year range to the dataset's span. A range lying
// entirely outside the span is left untouched so filtering reports it as empty.
func (p Params) Clamp(ds dataset.Dataset) Params {
	min, max, ok := ds.YearSpan()
	if !ok || p.YearRange.Max < min || p.YearRange.Min > max {
		return p
	}
	if p.YearRange.Min < min {
		p.YearRange.Min = min
	}
	if p.YearRange.Max > max {
		p.YearRange.Max = max
	}
	return p
}
