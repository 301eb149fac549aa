package projection

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"debt-dashboard/internal/dataset"
)

const (
	// RollingWindow is the trailing window of the moving average.
	RollingWindow = 3
	// SharePlaces is the rounding applied to composition shares.
	SharePlaces int32 = 2
)

// ErrEmptyRange indicates a year selection with no rows.
var ErrEmptyRange = errors.New("projection: selected year range contains no observations")

var hundred = decimal.NewFromInt(100)

// Section names a sub-result of a view.
type Section string

const (
	SectionFilter      Section = "filter"
	SectionKPI         Section = "kpi"
	SectionComposition Section = "composition"
	SectionDeltas      Section = "deltas"
	SectionRolling     Section = "rolling"
	SectionWaterfall   Section = "waterfall"
	SectionAnnotations Section = "annotations"
)

// KPI compares the latest row of the selection with the one before it.
type KPI struct {
	LatestYear int             `json:"latest_year"`
	TotalDebt  decimal.Decimal `json:"total_debt"`
	DebtDelta  decimal.Decimal `json:"debt_delta"`
	DebtToGDP  decimal.Decimal `json:"debt_to_gdp"`
	RatioDelta decimal.Decimal `json:"ratio_delta"`
	GDP        decimal.Decimal `json:"gdp"`
}

// CompositionRow splits one year's total debt into its components.
type CompositionRow struct {
	Year         int             `json:"year"`
	ExternalDebt decimal.Decimal `json:"external_debt"`
	DomesticDebt decimal.Decimal `json:"domestic_debt"`
	TotalDebt    decimal.Decimal `json:"total_debt"`
}

// DeltaRow holds year-over-year changes.
type DeltaRow struct {
	Year         int             `json:"year"`
	ExternalDebt decimal.Decimal `json:"external_debt"`
	DomesticDebt decimal.Decimal `json:"domestic_debt"`
	TotalDebt    decimal.Decimal `json:"total_debt"`
	DebtToGDP    decimal.Decimal `json:"debt_to_gdp"`
}

// RollingRow holds trailing moving averages.
type RollingRow struct {
	Year         int             `json:"year"`
	ExternalDebt decimal.Decimal `json:"external_debt"`
	DomesticDebt decimal.Decimal `json:"domestic_debt"`
	DebtToGDP    decimal.Decimal `json:"debt_to_gdp"`
}

// Measure labels a waterfall step for the renderer.
type Measure string

const (
	MeasureAbsolute Measure = "absolute"
	MeasureRelative Measure = "relative"
)

// WaterfallStep is one bar of the total-debt waterfall.
type WaterfallStep struct {
	Year    int             `json:"year"`
	Value   decimal.Decimal `json:"value"`
	Measure Measure         `json:"measure"`
}

// Annotation marks a notable point on the debt/GDP scatter.
type Annotation struct {
	Year      int             `json:"year"`
	GDP       decimal.Decimal `json:"gdp"`
	TotalDebt decimal.Decimal `json:"total_debt"`
	Text      string          `json:"text"`
}

// View bundles every result derived from one parameter set.
type View struct {
	Params      Params                `json:"params"`
	Rows        []dataset.Observation `json:"rows"`
	KPI         *KPI                  `json:"kpi,omitempty"`
	Composition []CompositionRow      `json:"composition"`
	Deltas      []DeltaRow            `json:"deltas"`
	Rolling     []RollingRow          `json:"rolling,omitempty"`
	Waterfall   []WaterfallStep       `json:"waterfall"`
	Annotations []Annotation          `json:"annotations,omitempty"`
	Failures    map[Section]error     `json:"-"`
}

// Err joins the failures of every section, or returns nil.
func (v View) Err() error {
	if len(v.Failures) == 0 {
		return nil
	}
	order := []Section{SectionFilter, SectionKPI, SectionComposition, SectionDeltas, SectionRolling, SectionWaterfall, SectionAnnotations}
	errs := make([]error, 0, len(v.Failures))
	for _, s := range order {
		if err, ok := v.Failures[s]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// Failed reports whether the given section failed.
func (v View) Failed(s Section) bool {
	_, ok := v.Failures[s]
	return ok
}

// Project computes the full view. Each section is computed independently;
// failures are recorded on the view instead of aborting it.
func Project(ds dataset.Dataset, params Params) View {
	view := View{Params: params, Failures: make(map[Section]error)}

	filtered, err := Filter(ds, params.YearRange)
	if err != nil {
		view.Failures[SectionFilter] = err
	}
	view.Rows = filtered.Rows()

	if kpi, err := ComputeKPI(filtered); err != nil {
		view.Failures[SectionKPI] = err
	} else {
		view.KPI = &kpi
	}

	if comp, err := Composition(filtered, params.Normalization); err != nil {
		view.Failures[SectionComposition] = err
	} else {
		view.Composition = comp
	}

	view.Deltas = Deltas(filtered)

	if params.MovingAverage {
		view.Rolling = Rolling(filtered, RollingWindow)
	}

	view.Waterfall = Waterfall(filtered)

	if params.Annotations {
		if ann, err := LatestAnnotation(filtered); err != nil {
			view.Failures[SectionAnnotations] = err
		} else {
			view.Annotations = []Annotation{ann}
		}
	}

	return view
}

// Filter keeps the rows inside the inclusive range.
func Filter(ds dataset.Dataset, r YearRange) (dataset.Dataset, error) {
	if r.Min > r.Max {
		return dataset.Dataset{}, fmt.Errorf("%w: %d > %d", ErrEmptyRange, r.Min, r.Max)
	}
	out := ds.Between(r.Min, r.Max)
	if out.Len() == 0 {
		return out, fmt.Errorf("%w: %d-%d", ErrEmptyRange, r.Min, r.Max)
	}
	return out, nil
}

// ComputeKPI compares the last row with the one before it. A single row is
// compared with itself, so both deltas are zero.
func ComputeKPI(ds dataset.Dataset) (KPI, error) {
	n := ds.Len()
	if n == 0 {
		return KPI{}, ErrEmptyRange
	}
	latest := ds.At(n - 1)
	prev := latest
	if n > 1 {
		prev = ds.At(n - 2)
	}
	return KPI{
		LatestYear: latest.Year,
		TotalDebt:  latest.TotalDebt,
		DebtDelta:  latest.TotalDebt.Sub(prev.TotalDebt),
		DebtToGDP:  latest.DebtToGDP,
		RatioDelta: latest.DebtToGDP.Sub(prev.DebtToGDP),
		GDP:        latest.GDP,
	}, nil
}

// Composition splits each row's total. In ShareOfTotal mode the components
// become percentages rounded to two places; a zero total yields zero shares.
func Composition(ds dataset.Dataset, mode Normalization) ([]CompositionRow, error) {
	if mode == "" {
		mode = Absolute
	}
	if mode != Absolute && mode != ShareOfTotal {
		return nil, fmt.Errorf("unknown normalization %q", mode)
	}

	out := make([]CompositionRow, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		row := ds.At(i)
		c := CompositionRow{
			Year:         row.Year,
			ExternalDebt: row.ExternalDebt,
			DomesticDebt: row.DomesticDebt,
			TotalDebt:    row.TotalDebt,
		}
		if mode == ShareOfTotal {
			c.ExternalDebt = share(row.ExternalDebt, row.TotalDebt)
			c.DomesticDebt = share(row.DomesticDebt, row.TotalDebt)
		}
		out = append(out, c)
	}
	return out, nil
}

func share(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(total).Round(SharePlaces)
}

// Deltas returns value[i]-value[i-1] per column, with zero for the first row.
func Deltas(ds dataset.Dataset) []DeltaRow {
	out := make([]DeltaRow, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		row := ds.At(i)
		d := DeltaRow{
			Year:         row.Year,
			ExternalDebt: decimal.Zero,
			DomesticDebt: decimal.Zero,
			TotalDebt:    decimal.Zero,
			DebtToGDP:    decimal.Zero,
		}
		if i > 0 {
			prev := ds.At(i - 1)
			d.ExternalDebt = row.ExternalDebt.Sub(prev.ExternalDebt)
			d.DomesticDebt = row.DomesticDebt.Sub(prev.DomesticDebt)
			d.TotalDebt = row.TotalDebt.Sub(prev.TotalDebt)
			d.DebtToGDP = row.DebtToGDP.Sub(prev.DebtToGDP)
		}
		out = append(out, d)
	}
	return out
}

// Rolling returns trailing means over up to window rows, using fewer rows
// at the start of the series.
func Rolling(ds dataset.Dataset, window int) []RollingRow {
	if window <= 0 {
		window = RollingWindow
	}
	out := make([]RollingRow, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		var ext, dom, ratio decimal.Decimal
		for j := start; j <= i; j++ {
			row := ds.At(j)
			ext = ext.Add(row.ExternalDebt)
			dom = dom.Add(row.DomesticDebt)
			ratio = ratio.Add(row.DebtToGDP)
		}
		n := decimal.NewFromInt(int64(i - start + 1))
		out = append(out, RollingRow{
			Year:         ds.At(i).Year,
			ExternalDebt: ext.Div(n),
			DomesticDebt: dom.Div(n),
			DebtToGDP:    ratio.Div(n),
		})
	}
	return out
}

// Waterfall returns the total-debt deltas. The values equal Deltas; only the
// first step is labelled absolute so the renderer treats it as the baseline.
func Waterfall(ds dataset.Dataset) []WaterfallStep {
	deltas := Deltas(ds)
	out := make([]WaterfallStep, 0, len(deltas))
	for i, d := range deltas {
		step := WaterfallStep{Year: d.Year, Value: d.TotalDebt, Measure: MeasureRelative}
		if i == 0 {
			step.Measure = MeasureAbsolute
		}
		out = append(out, step)
	}
	return out
}

// LatestAnnotation labels the most recent point of the selection.
func LatestAnnotation(ds dataset.Dataset) (Annotation, error) {
	if ds.Len() == 0 {
		return Annotation{}, ErrEmptyRange
	}
	last := ds.At(ds.Len() - 1)
	return Annotation{
		Year:      last.Year,
		GDP:       last.GDP,
		TotalDebt: last.TotalDebt,
		Text:      fmt.Sprintf("%d (latest)", last.Year),
	}, nil
}
