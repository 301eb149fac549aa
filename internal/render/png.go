package render

import (
	"errors"
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"debt-dashboard/internal/projection"
)

var (
	// ErrTooFewPoints is returned when a view has fewer than two rows to plot.
	ErrTooFewPoints = errors.New("render: at least two rows are required")
	// ErrUnsupportedKind is returned for charts that have no PNG rendition.
	ErrUnsupportedKind = errors.New("render: chart kind has no png rendition")
)

// PNGKinds lists the charts RenderPNG can draw.
var PNGKinds = []Kind{KindTrends, KindComposition, KindWaterfall, KindScatter}

var (
	colorRise    = drawing.ColorFromHex("2ca02c")
	colorFall    = drawing.ColorFromHex("d62728")
	colorStart   = drawing.ColorFromHex("7f7f7f")
	colorExt     = drawing.ColorFromHex("1f77b4")
	colorDom     = drawing.ColorFromHex("ff7f0e")
	colorRatio   = drawing.ColorFromHex("9467bd")
	dashedStroke = []float64{5.0, 5.0}
)

// RenderPNG draws one chart of the view as a PNG image.
func RenderPNG(w io.Writer, kind Kind, view projection.View, width, height int) error {
	if view.Failed(projection.SectionFilter) {
		return view.Failures[projection.SectionFilter]
	}
	if len(view.Rows) < 2 {
		return fmt.Errorf("%s: %w", kind, ErrTooFewPoints)
	}

	switch kind {
	case KindTrends:
		return renderTrends(w, view, width, height)
	case KindComposition:
		if err := view.Failures[projection.SectionComposition]; err != nil {
			return err
		}
		return renderComposition(w, view, width, height)
	case KindWaterfall:
		return renderWaterfall(w, view, width, height)
	case KindScatter:
		return renderScatter(w, view, width, height)
	default:
		return fmt.Errorf("%s: %w", kind, ErrUnsupportedKind)
	}
}

func yearFormatter(v interface{}) string {
	return chart.FloatValueFormatterWithFormat(v, "%.0f")
}

func amountFormatter(v interface{}) string {
	return chart.FloatValueFormatterWithFormat(v, "%.0f")
}

func ratioFormatter(v interface{}) string {
	return chart.FloatValueFormatterWithFormat(v, "%.2f")
}

func renderTrends(w io.Writer, view projection.View, width, height int) error {
	years := make([]float64, len(view.Rows))
	ext := make([]float64, len(view.Rows))
	dom := make([]float64, len(view.Rows))
	ratio := make([]float64, len(view.Rows))
	for i, row := range view.Rows {
		years[i] = float64(row.Year)
		ext[i] = f(row.ExternalDebt)
		dom[i] = f(row.DomesticDebt)
		ratio[i] = f(row.DebtToGDP)
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "External Debt",
			XValues: years,
			YValues: ext,
			Style:   chart.Style{StrokeColor: colorExt, StrokeWidth: 2, DotWidth: 3, DotColor: colorExt},
		},
		chart.ContinuousSeries{
			Name:    "Domestic Debt",
			XValues: years,
			YValues: dom,
			Style:   chart.Style{StrokeColor: colorDom, StrokeWidth: 2, DotWidth: 3, DotColor: colorDom},
		},
		chart.ContinuousSeries{
			Name:    "Debt-to-GDP",
			XValues: years,
			YValues: ratio,
			YAxis:   chart.YAxisSecondary,
			Style:   chart.Style{StrokeColor: colorRatio, StrokeWidth: 2, DotWidth: 3, DotColor: colorRatio},
		},
	}

	if len(view.Rolling) > 0 {
		maYears := make([]float64, len(view.Rolling))
		maExt := make([]float64, len(view.Rolling))
		maDom := make([]float64, len(view.Rolling))
		maRatio := make([]float64, len(view.Rolling))
		for i, r := range view.Rolling {
			maYears[i] = float64(r.Year)
			maExt[i] = f(r.ExternalDebt)
			maDom[i] = f(r.DomesticDebt)
			maRatio[i] = f(r.DebtToGDP)
		}
		series = append(series,
			chart.ContinuousSeries{
				Name:    "External Debt 3Y MA",
				XValues: maYears,
				YValues: maExt,
				Style:   chart.Style{StrokeColor: colorExt, StrokeWidth: 1, StrokeDashArray: dashedStroke},
			},
			chart.ContinuousSeries{
				Name:    "Domestic Debt 3Y MA",
				XValues: maYears,
				YValues: maDom,
				Style:   chart.Style{StrokeColor: colorDom, StrokeWidth: 1, StrokeDashArray: dashedStroke},
			},
			chart.ContinuousSeries{
				Name:    "Debt-to-GDP 3Y MA",
				XValues: maYears,
				YValues: maRatio,
				YAxis:   chart.YAxisSecondary,
				Style:   chart.Style{StrokeColor: colorRatio, StrokeWidth: 1, StrokeDashArray: dashedStroke},
			},
		)
	}

	graph := chart.Chart{
		Title:  "Debt Dynamics Over Time",
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		XAxis: chart.XAxis{
			Name:           "Year",
			ValueFormatter: yearFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Debt (bn)",
			ValueFormatter: amountFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Debt-to-GDP",
			ValueFormatter: ratioFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

func renderComposition(w io.Writer, view projection.View, width, height int) error {
	bars := make([]chart.StackedBar, 0, len(view.Composition))
	for _, row := range view.Composition {
		bars = append(bars, chart.StackedBar{
			Name: fmt.Sprintf("%d", row.Year),
			Values: []chart.Value{
				{Label: "External", Value: f(row.ExternalDebt), Style: chart.Style{FillColor: colorExt, StrokeColor: colorExt}},
				{Label: "Domestic", Value: f(row.DomesticDebt), Style: chart.Style{FillColor: colorDom, StrokeColor: colorDom}},
			},
		})
	}

	title := "Debt Composition (bn)"
	if view.Params.Normalization == projection.ShareOfTotal {
		title = "Debt Composition (% of total)"
	}
	graph := chart.StackedBarChart{
		Title:  title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}

func renderWaterfall(w io.Writer, view projection.View, width, height int) error {
	bars := make([]chart.Value, 0, len(view.Waterfall))
	for _, step := range view.Waterfall {
		color := colorRise
		switch {
		case step.Measure == projection.MeasureAbsolute:
			color = colorStart
		case step.Value.Sign() < 0:
			color = colorFall
		}
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%d", step.Year),
			Value: f(step.Value),
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
	}

	graph := chart.BarChart{
		Title:  "Annual Contributions to Total Debt Growth",
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			ValueFormatter: amountFormatter,
		},
		UseBaseValue: true,
		BaseValue:    0,
		Bars:         bars,
	}
	return graph.Render(chart.PNG, w)
}

func renderScatter(w io.Writer, view projection.View, width, height int) error {
	gdp := make([]float64, len(view.Rows))
	debt := make([]float64, len(view.Rows))
	years := make([]float64, len(view.Rows))
	for i, row := range view.Rows {
		gdp[i] = f(row.GDP)
		debt[i] = f(row.TotalDebt)
		years[i] = float64(row.Year)
	}
	minYear, maxYear := years[0], years[len(years)-1]

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Debt vs GDP",
			XValues: gdp,
			YValues: debt,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    6,
				DotColorProvider: func(xr, yr chart.Range, index int, x, y float64) drawing.Color {
					return chart.Viridis(years[index], minYear, maxYear)
				},
			},
		},
	}

	if len(view.Annotations) > 0 {
		ann := chart.AnnotationSeries{}
		for _, a := range view.Annotations {
			ann.Annotations = append(ann.Annotations, chart.Value2{
				XValue: f(a.GDP),
				YValue: f(a.TotalDebt),
				Label:  a.Text,
			})
		}
		series = append(series, ann)
	}

	graph := chart.Chart{
		Title:  "Debt vs GDP",
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		XAxis: chart.XAxis{
			Name:           "GDP (bn)",
			ValueFormatter: amountFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Total Debt (bn)",
			ValueFormatter: amountFormatter,
		},
		Series: series,
	}
	return graph.Render(chart.PNG, w)
}
