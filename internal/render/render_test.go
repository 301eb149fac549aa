package render

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/projection"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func builtinView(t *testing.T, params func(p *projection.Params)) projection.View {
	t.Helper()
	ds, err := dataset.Derive(dataset.Builtin())
	require.NoError(t, err)
	p := projection.DefaultParams(ds)
	if params != nil {
		params(&p)
	}
	return projection.Project(ds, p)
}

func TestBuildKPITiles(t *testing.T) {
	d := Build(builtinView(t, nil))

	require.Len(t, d.KPIs, 4)
	assert.Equal(t, Tile{Label: "Latest Year", Value: "2020"}, d.KPIs[0])
	assert.Equal(t, Tile{Label: "Total Debt (bn)", Value: "300", Delta: "+15 vs prev"}, d.KPIs[1])
	assert.Equal(t, Tile{Label: "Debt-to-GDP", Value: "0.43", Delta: "+0.01"}, d.KPIs[2])
	assert.Equal(t, Tile{Label: "GDP (bn)", Value: "700"}, d.KPIs[3])
}

func TestBuildAllCharts(t *testing.T) {
	d := Build(builtinView(t, nil))

	require.Len(t, d.Charts, len(Kinds))
	for i, kind := range Kinds {
		assert.Equal(t, kind, d.Charts[i].Kind)
	}

	tm, ok := d.Find(KindTreemap)
	require.True(t, ok)
	require.Len(t, tm.Series[0].Points, 11)
	assert.Equal(t, "2010", tm.Series[0].Points[0].Label)
	assert.Equal(t, 150.0, tm.Series[0].Points[0].Size)
	assert.Equal(t, 0.3, tm.Series[0].Points[0].Color)

	sc, _ := d.Find(KindScatter)
	require.Len(t, sc.Annotations, 1)
	assert.Equal(t, Annotation{X: 700, Y: 300, Text: "2020 (latest)"}, sc.Annotations[0])

	hm, _ := d.Find(KindHeatmap)
	require.NotNil(t, hm.Heatmap)
	assert.Len(t, hm.Heatmap.Columns, 11)
	assert.Equal(t, 0.0, hm.Heatmap.Values[2][0])
	assert.Equal(t, 15.0, hm.Heatmap.Values[2][1])

	wf, _ := d.Find(KindWaterfall)
	points := wf.Series[0].Points
	assert.Equal(t, "absolute", points[0].Measure)
	assert.Equal(t, "relative", points[1].Measure)
	assert.Equal(t, "15", points[1].Text)
}

func TestBuildTrendsMovingAverageToggle(t *testing.T) {
	with, _ := Build(builtinView(t, nil)).Find(KindTrends)
	assert.Len(t, with.Series, 6)
	assert.Equal(t, "External Debt 3Y MA", with.Series[1].Name)
	assert.True(t, with.Series[1].Dashed)

	without, _ := Build(builtinView(t, func(p *projection.Params) { p.MovingAverage = false })).Find(KindTrends)
	assert.Len(t, without.Series, 3)
	for _, s := range without.Series {
		assert.False(t, s.Dashed)
	}
}

func TestBuildCompositionShareAxis(t *testing.T) {
	c, ok := Build(builtinView(t, func(p *projection.Params) { p.Normalization = projection.ShareOfTotal })).Find(KindComposition)
	require.True(t, ok)
	assert.Equal(t, "Share (%)", c.YAxis)
	assert.True(t, c.Stacked)
	ext, dom := c.Series[0].Points[0].Y, c.Series[1].Points[0].Y
	assert.InDelta(t, 100, ext+dom, 0.011)
}

func TestBuildEmptyRange(t *testing.T) {
	d := Build(builtinView(t, func(p *projection.Params) { p.YearRange = projection.YearRange{Min: 1990, Max: 1995} }))
	assert.Empty(t, d.KPIs)
	assert.Empty(t, d.Charts)
}

func TestRenderPNGKinds(t *testing.T) {
	view := builtinView(t, nil)
	for _, kind := range PNGKinds {
		t.Run(string(kind), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderPNG(&buf, kind, view, 800, 600))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic), "not a png")
		})
	}
}

func TestRenderPNGShareComposition(t *testing.T) {
	view := builtinView(t, func(p *projection.Params) { p.Normalization = projection.ShareOfTotal })
	var buf bytes.Buffer
	require.NoError(t, RenderPNG(&buf, KindComposition, view, 640, 480))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderPNGErrors(t *testing.T) {
	var buf bytes.Buffer

	single := builtinView(t, func(p *projection.Params) { p.YearRange = projection.YearRange{Min: 2015, Max: 2015} })
	err := RenderPNG(&buf, KindTrends, single, 640, 480)
	assert.True(t, errors.Is(err, ErrTooFewPoints), "got %v", err)

	full := builtinView(t, nil)
	err = RenderPNG(&buf, KindHeatmap, full, 640, 480)
	assert.True(t, errors.Is(err, ErrUnsupportedKind), "got %v", err)

	empty := builtinView(t, func(p *projection.Params) { p.YearRange = projection.YearRange{Min: 2030, Max: 2040} })
	err = RenderPNG(&buf, KindTrends, empty, 640, 480)
	assert.True(t, errors.Is(err, projection.ErrEmptyRange), "got %v", err)
}
