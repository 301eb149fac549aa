package dataset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// RatioPlaces is the rounding applied to DebtToGDP.
const RatioPlaces int32 = 3

var (
	// ErrInvalidInput indicates raw observations that cannot be derived.
	ErrInvalidInput = errors.New("dataset: invalid input")
	// ErrEmptyDataset indicates a source that returned no rows.
	ErrEmptyDataset = errors.New("dataset: no observations")
)

// RawObservation is one year of source data before derivation.
type RawObservation struct {
	Year         int             `json:"year"`
	GDP          decimal.Decimal `json:"gdp"`
	ExternalDebt decimal.Decimal `json:"external_debt"`
	DomesticDebt decimal.Decimal `json:"domestic_debt"`
}

// Observation is a derived row.
type Observation struct {
	Year         int             `json:"year"`
	GDP          decimal.Decimal `json:"gdp"`
	ExternalDebt decimal.Decimal `json:"external_debt"`
	DomesticDebt decimal.Decimal `json:"domestic_debt"`
	TotalDebt    decimal.Decimal `json:"total_debt"`
	DebtToGDP    decimal.Decimal `json:"debt_to_gdp"`
}

// Dataset is an immutable, year-ordered sequence of derived observations.
type Dataset struct {
	rows []Observation
}

// Derive computes TotalDebt and DebtToGDP for every raw row.
func Derive(raw []RawObservation) (Dataset, error) {
	if len(raw) == 0 {
		return Dataset{}, ErrEmptyDataset
	}

	seen := make(map[int]struct{}, len(raw))
	rows := make([]Observation, 0, len(raw))
	for _, r := range raw {
		if _, dup := seen[r.Year]; dup {
			return Dataset{}, fmt.Errorf("%w: duplicate year %d", ErrInvalidInput, r.Year)
		}
		seen[r.Year] = struct{}{}

		if !r.GDP.IsPositive() {
			return Dataset{}, fmt.Errorf("%w: year %d: gdp must be positive, got %s", ErrInvalidInput, r.Year, r.GDP)
		}
		if r.ExternalDebt.IsNegative() || r.DomesticDebt.IsNegative() {
			return Dataset{}, fmt.Errorf("%w: year %d: debt components cannot be negative", ErrInvalidInput, r.Year)
		}

		total := r.ExternalDebt.Add(r.DomesticDebt)
		rows = append(rows, Observation{
			Year:         r.Year,
			GDP:          r.GDP,
			ExternalDebt: r.ExternalDebt,
			DomesticDebt: r.DomesticDebt,
			TotalDebt:    total,
			DebtToGDP:    total.Div(r.GDP).Round(RatioPlaces),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })
	return Dataset{rows: rows}, nil
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.rows)
}

// Rows returns a copy of the ordered rows.
func (d Dataset) Rows() []Observation {
	cp := make([]Observation, len(d.rows))
	copy(cp, d.rows)
	return cp
}

// At returns the i-th row in year order.
func (d Dataset) At(i int) Observation {
	return d.rows[i]
}

// YearSpan returns the first and last year. ok is false for an empty dataset.
func (d Dataset) YearSpan() (min, max int, ok bool) {
	if len(d.rows) == 0 {
		return 0, 0, false
	}
	return d.rows[0].Year, d.rows[len(d.rows)-1].Year, true
}

// Gaps lists the years missing between the first and last observation.
func (d Dataset) Gaps() []int {
	var gaps []int
	for i := 1; i < len(d.rows); i++ {
		for y := d.rows[i-1].Year + 1; y < d.rows[i].Year; y++ {
			gaps = append(gaps, y)
		}
	}
	return gaps
}

// Between returns the rows with min <= year <= max as a new dataset.
func (d Dataset) Between(min, max int) Dataset {
	out := make([]Observation, 0, len(d.rows))
	for _, row := range d.rows {
		if row.Year >= min && row.Year <= max {
			out = append(out, row)
		}
	}
	return Dataset{rows: out}
}
