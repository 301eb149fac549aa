package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debt-dashboard/internal/config"
	"debt-dashboard/internal/metrics"
	"debt-dashboard/internal/scheduler"
	"debt-dashboard/internal/service"
	"debt-dashboard/internal/source"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MetricsEnabled: true},
		View:   config.ViewConfig{MovingAverage: true, Normalization: "absolute", Annotations: true},
		Export: config.ExportConfig{ChartWidth: 640, ChartHeight: 480},
	}
}

func newTestServer(t *testing.T, load bool) (*httptest.Server, *metrics.Collector) {
	t.Helper()
	cfg := testConfig()
	collector := metrics.NewCollector("debtdash")
	sched := scheduler.New(scheduler.Options{}, zerolog.Nop())
	svc := service.New(cfg, source.Static{}, nil, sched, collector, nil, nil, zerolog.Nop())
	if load {
		_, err := svc.Refresh(context.Background())
		require.NoError(t, err)
	}
	ts := httptest.NewServer(New(cfg, svc, collector, zerolog.Nop()).Handler())
	t.Cleanup(ts.Close)
	return ts, collector
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	loading, _ := newTestServer(t, false)
	var body map[string]interface{}
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, loading.URL+"/health", &body))
	assert.Equal(t, "loading", body["status"])

	ready, _ := newTestServer(t, true)
	assert.Equal(t, http.StatusOK, getJSON(t, ready.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 11.0, body["rows"])
}

func TestDatasetEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, true)

	var body struct {
		Source string `json:"source"`
		From   int    `json:"from"`
		To     int    `json:"to"`
		Gaps   []int  `json:"gaps"`
		Rows   []struct {
			Year      int    `json:"year"`
			DebtToGDP string `json:"debt_to_gdp"`
		} `json:"rows"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/dataset", &body))
	assert.Equal(t, "static", body.Source)
	assert.Equal(t, 2010, body.From)
	assert.Equal(t, 2020, body.To)
	assert.Empty(t, body.Gaps)
	require.Len(t, body.Rows, 11)
	assert.Equal(t, "0.3", body.Rows[0].DebtToGDP)
}

func TestViewEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, true)

	var body struct {
		View struct {
			Params struct {
				YearRange struct {
					Min int `json:"min"`
					Max int `json:"max"`
				} `json:"year_range"`
				Normalization string `json:"normalization"`
			} `json:"params"`
			Rows []json.RawMessage `json:"rows"`
		} `json:"view"`
		Dashboard struct {
			KPIs   []map[string]string `json:"kpis"`
			Charts []struct {
				Kind string `json:"kind"`
			} `json:"charts"`
		} `json:"dashboard"`
		Insights []string `json:"insights"`
	}
	status := getJSON(t, ts.URL+"/api/view?from=2013&to=2016&norm=share&ma=false", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2013, body.View.Params.YearRange.Min)
	assert.Equal(t, 2016, body.View.Params.YearRange.Max)
	assert.Equal(t, "share", body.View.Params.Normalization)
	assert.Len(t, body.View.Rows, 4)
	assert.Equal(t, "2016", body.Dashboard.KPIs[0]["value"])
	assert.Len(t, body.Dashboard.Charts, 6)
	assert.NotEmpty(t, body.Insights)
}

func TestViewEmptyRange(t *testing.T) {
	ts, _ := newTestServer(t, true)

	var body struct {
		Error   string `json:"error"`
		Partial struct {
			Failures map[string]string `json:"failures"`
			Insights []string          `json:"insights"`
		} `json:"partial"`
	}
	status := getJSON(t, ts.URL+"/api/view?from=2016&to=2013", &body)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "select at least one year", body.Error)
	assert.Contains(t, body.Partial.Failures, "filter")
	assert.Len(t, body.Partial.Insights, 1)
}

func TestViewValidation(t *testing.T) {
	ts, _ := newTestServer(t, true)

	cases := map[string]string{
		"non-numeric year": "/api/view?from=abc",
		"year too small":   "/api/view?from=12",
		"bad norm":         "/api/view?norm=log",
		"bad bool":         "/api/view?ma=maybe",
		"chart too narrow": "/charts/trends.png?width=10",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			var body map[string]string
			assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+path, &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAlertsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, true)

	var alerts []alertResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/alerts", &alerts))
	assert.Empty(t, alerts)

	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/alerts?limit=0", &body))
	assert.Equal(t, "limit must be at least 1", body["error"])
}

func TestViewNotLoaded(t *testing.T) {
	ts, _ := newTestServer(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/view", nil))
}

func TestChartEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, true)

	resp, err := http.Get(ts.URL + "/charts/trends.png?from=2012&to=2018")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/charts/treemap.png", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, ts.URL+"/charts/scatter.png?from=2015&to=2015", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, ts.URL+"/charts/waterfall.png?from=2030&to=2031", nil))
}

func TestRefreshAndMetrics(t *testing.T) {
	ts, collector := newTestServer(t, true)

	resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	getJSON(t, ts.URL+"/api/view", nil)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(collector.HTTPRequests.WithLabelValues(http.MethodGet, "/api/view", "200")) == 1
	}, time.Second, 10*time.Millisecond)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	text := buf.String()
	assert.True(t, strings.Contains(text, `debtdash_http_requests_total{method="GET",route="/api/view",status="200"} 1`), text)
	assert.True(t, strings.Contains(text, "debtdash_dataset_rows 11"), text)
}
