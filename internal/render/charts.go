package render

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/projection"
)

// Kind identifies a dashboard chart.
type Kind string

const (
	KindTreemap     Kind = "treemap"
	KindScatter     Kind = "scatter"
	KindComposition Kind = "composition"
	KindHeatmap     Kind = "heatmap"
	KindWaterfall   Kind = "waterfall"
	KindTrends      Kind = "trends"
)

// Kinds lists every chart in dashboard order.
var Kinds = []Kind{KindTreemap, KindScatter, KindComposition, KindHeatmap, KindWaterfall, KindTrends}

// Dashboard is the render-ready payload for one view.
type Dashboard struct {
	KPIs   []Tile  `json:"kpis"`
	Charts []Chart `json:"charts"`
}

// Tile is a KPI summary tile.
type Tile struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Delta string `json:"delta,omitempty"`
}

// Chart is a frontend-agnostic chart description.
type Chart struct {
	Kind        Kind         `json:"kind"`
	Title       string       `json:"title"`
	XAxis       string       `json:"x_axis,omitempty"`
	YAxis       string       `json:"y_axis,omitempty"`
	Stacked     bool         `json:"stacked,omitempty"`
	ColorScale  string       `json:"color_scale,omitempty"`
	Series      []Series     `json:"series,omitempty"`
	Heatmap     *Heatmap     `json:"heatmap,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Series is a named sequence of points.
type Series struct {
	Name   string  `json:"name"`
	Dashed bool    `json:"dashed,omitempty"`
	Points []Point `json:"points"`
}

// Point is one datum. Size and Color carry the treemap/scatter encodings,
// Measure the waterfall step type.
type Point struct {
	Label   string  `json:"label"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Size    float64 `json:"size,omitempty"`
	Color   float64 `json:"color,omitempty"`
	Measure string  `json:"measure,omitempty"`
	Text    string  `json:"text,omitempty"`
}

// Heatmap is a metric-by-year matrix.
type Heatmap struct {
	Rows    []string    `json:"rows"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Annotation is a labelled arrow on a chart.
type Annotation struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

// Build converts a view into dashboard payloads. Charts for sections that
// failed are omitted; the rest are always present.
func Build(view projection.View) Dashboard {
	d := Dashboard{KPIs: kpiTiles(view.KPI)}
	if view.Failed(projection.SectionFilter) {
		return d
	}

	d.Charts = append(d.Charts, treemap(view.Rows), scatter(view))
	if !view.Failed(projection.SectionComposition) {
		d.Charts = append(d.Charts, composition(view))
	}
	d.Charts = append(d.Charts, heatmap(view.Deltas), waterfall(view.Waterfall), trends(view))
	return d
}

// Find returns the chart of the given kind.
func (d Dashboard) Find(kind Kind) (Chart, bool) {
	for _, c := range d.Charts {
		if c.Kind == kind {
			return c, true
		}
	}
	return Chart{}, false
}

func kpiTiles(kpi *projection.KPI) []Tile {
	if kpi == nil {
		return nil
	}
	return []Tile{
		{Label: "Latest Year", Value: strconv.Itoa(kpi.LatestYear)},
		{Label: "Total Debt (bn)", Value: kpi.TotalDebt.StringFixed(0), Delta: signed(kpi.DebtDelta, 0) + " vs prev"},
		{Label: "Debt-to-GDP", Value: kpi.DebtToGDP.StringFixed(2), Delta: signed(kpi.RatioDelta, 2)},
		{Label: "GDP (bn)", Value: kpi.GDP.StringFixed(0)},
	}
}

func treemap(rows []dataset.Observation) Chart {
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		points = append(points, Point{
			Label: strconv.Itoa(row.Year),
			Size:  f(row.TotalDebt),
			Color: f(row.DebtToGDP),
		})
	}
	return Chart{
		Kind:       KindTreemap,
		Title:      "Treemap of Total Debt and Debt-to-GDP Ratio",
		ColorScale: "viridis",
		Series:     []Series{{Name: "Total Debt", Points: points}},
	}
}

func scatter(view projection.View) Chart {
	points := make([]Point, 0, len(view.Rows))
	for _, row := range view.Rows {
		points = append(points, Point{
			Label: strconv.Itoa(row.Year),
			X:     f(row.GDP),
			Y:     f(row.TotalDebt),
			Size:  f(row.DebtToGDP),
			Color: float64(row.Year),
		})
	}
	c := Chart{
		Kind:       KindScatter,
		Title:      "Debt vs GDP with Debt-to-GDP Indicator",
		XAxis:      "GDP (bn)",
		YAxis:      "Total Debt (bn)",
		ColorScale: "plasma",
		Series:     []Series{{Name: "Debt vs GDP", Points: points}},
	}
	for _, ann := range view.Annotations {
		c.Annotations = append(c.Annotations, Annotation{X: f(ann.GDP), Y: f(ann.TotalDebt), Text: ann.Text})
	}
	return c
}

func composition(view projection.View) Chart {
	external := make([]Point, 0, len(view.Composition))
	domestic := make([]Point, 0, len(view.Composition))
	for _, row := range view.Composition {
		label := strconv.Itoa(row.Year)
		external = append(external, Point{Label: label, X: float64(row.Year), Y: f(row.ExternalDebt)})
		domestic = append(domestic, Point{Label: label, X: float64(row.Year), Y: f(row.DomesticDebt)})
	}
	yAxis := "Amount (bn)"
	if view.Params.Normalization == projection.ShareOfTotal {
		yAxis = "Share (%)"
	}
	return Chart{
		Kind:    KindComposition,
		Title:   "Debt Composition",
		XAxis:   "Year",
		YAxis:   yAxis,
		Stacked: true,
		Series: []Series{
			{Name: "ExternalDebt", Points: external},
			{Name: "DomesticDebt", Points: domestic},
		},
	}
}

func heatmap(deltas []projection.DeltaRow) Chart {
	h := &Heatmap{
		Rows:   []string{"ExternalDebt", "DomesticDebt", "TotalDebt", "DebtToGDP"},
		Values: make([][]float64, 4),
	}
	for _, d := range deltas {
		h.Columns = append(h.Columns, strconv.Itoa(d.Year))
		h.Values[0] = append(h.Values[0], f(d.ExternalDebt))
		h.Values[1] = append(h.Values[1], f(d.DomesticDebt))
		h.Values[2] = append(h.Values[2], f(d.TotalDebt))
		h.Values[3] = append(h.Values[3], f(d.DebtToGDP))
	}
	return Chart{
		Kind:       KindHeatmap,
		Title:      "Year-over-Year Changes",
		ColorScale: "rdbu",
		Heatmap:    h,
	}
}

func waterfall(steps []projection.WaterfallStep) Chart {
	points := make([]Point, 0, len(steps))
	for _, s := range steps {
		points = append(points, Point{
			Label:   strconv.Itoa(s.Year),
			X:       float64(s.Year),
			Y:       f(s.Value),
			Measure: string(s.Measure),
			Text:    s.Value.StringFixed(0),
		})
	}
	return Chart{
		Kind:   KindWaterfall,
		Title:  "Waterfall: Annual Contributions to Total Debt Growth",
		XAxis:  "Year",
		YAxis:  "Change (bn)",
		Series: []Series{{Name: "Delta", Points: points}},
	}
}

type trendColumn struct {
	name  string
	value func(dataset.Observation) decimal.Decimal
	ma    func(projection.RollingRow) decimal.Decimal
}

var trendColumns = []trendColumn{
	{
		name:  "External Debt",
		value: func(o dataset.Observation) decimal.Decimal { return o.ExternalDebt },
		ma:    func(r projection.RollingRow) decimal.Decimal { return r.ExternalDebt },
	},
	{
		name:  "Domestic Debt",
		value: func(o dataset.Observation) decimal.Decimal { return o.DomesticDebt },
		ma:    func(r projection.RollingRow) decimal.Decimal { return r.DomesticDebt },
	},
	{
		name:  "Debt-to-GDP",
		value: func(o dataset.Observation) decimal.Decimal { return o.DebtToGDP },
		ma:    func(r projection.RollingRow) decimal.Decimal { return r.DebtToGDP },
	},
}

func trends(view projection.View) Chart {
	c := Chart{
		Kind:  KindTrends,
		Title: "Debt Dynamics Over Time",
		XAxis: "Year",
		YAxis: "Amount / Ratio",
	}
	for _, col := range trendColumns {
		points := make([]Point, 0, len(view.Rows))
		for _, row := range view.Rows {
			points = append(points, Point{Label: strconv.Itoa(row.Year), X: float64(row.Year), Y: f(col.value(row))})
		}
		c.Series = append(c.Series, Series{Name: col.name, Points: points})

		if view.Rolling == nil {
			continue
		}
		ma := make([]Point, 0, len(view.Rolling))
		for _, r := range view.Rolling {
			ma = append(ma, Point{Label: strconv.Itoa(r.Year), X: float64(r.Year), Y: f(col.ma(r))})
		}
		c.Series = append(c.Series, Series{Name: fmt.Sprintf("%s 3Y MA", col.name), Dashed: true, Points: ma})
	}
	return c
}

func f(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func signed(d decimal.Decimal, places int32) string {
	if d.Sign() >= 0 {
		return "+" + d.StringFixed(places)
	}
	return d.StringFixed(places)
}
