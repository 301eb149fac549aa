package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debt-dashboard/internal/config"
)

func testApp(t *testing.T, mutate func(cfg *config.Config)) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		Source: config.SourceConfig{Kind: "static"},
		View:   config.ViewConfig{MovingAverage: true, Normalization: "absolute", Annotations: true},
		Export: config.ExportConfig{ChartWidth: 640, ChartHeight: 480},
	}
	if mutate != nil {
		mutate(cfg)
	}
	var out bytes.Buffer
	a := NewApp(cfg, zerolog.Nop())
	a.Out = &out
	return a, &out
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func TestShowPrintsTableAndInsights(t *testing.T) {
	a, out := testApp(t, nil)

	err := a.Show(context.Background(), ShowOptions{View: ViewOptions{From: intPtr(2018), To: intPtr(2020), Normalization: "share"}})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Year")
	assert.Contains(t, text, "Ext %")
	assert.Contains(t, text, "Ratio MA")
	assert.Contains(t, text, "2019")
	assert.Contains(t, text, "Latest 2020: total debt 300 bn (+15 vs prev), Debt-to-GDP 0.43 (+0.01), GDP 700 bn")
	assert.Contains(t, text, "What to notice:")
	assert.NotContains(t, text, "2017")
}

func TestShowEmptyRange(t *testing.T) {
	a, _ := testApp(t, nil)
	err := a.Show(context.Background(), ShowOptions{View: ViewOptions{From: intPtr(2030), To: intPtr(2031)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select at least one year")
}

func TestExportCSVAndPNG(t *testing.T) {
	a, _ := testApp(t, nil)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "view.csv")
	pngDir := filepath.Join(dir, "charts")

	err := a.Export(context.Background(), ExportOptions{
		View:    ViewOptions{MovingAverage: boolPtr(false)},
		CSVPath: csvPath,
		PNGDir:  pngDir,
	})
	require.NoError(t, err)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 12)
	assert.Equal(t, "year", records[0][0])
	assert.Len(t, records[0], 10)
	assert.Equal(t, []string{"2011", "520", "60", "105", "165", "0.317", "15", "0.017", "60", "105"}, records[2])

	for _, name := range []string{"trends.png", "composition.png", "waterfall.png", "scatter.png"} {
		info, err := os.Stat(filepath.Join(pngDir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestExportRequiresTarget(t *testing.T) {
	a, _ := testApp(t, nil)
	require.Error(t, a.Export(context.Background(), ExportOptions{}))
}

func TestImportDryRunFromCSV(t *testing.T) {
	a, out := testApp(t, nil)
	path := filepath.Join(t.TempDir(), "debt.csv")
	require.NoError(t, os.WriteFile(path, []byte("year,gdp,external_debt,domestic_debt\n2000,100,10,20\n2001,110,12,21\n"), 0o600))

	err := a.Import(context.Background(), ImportOptions{Kind: "csv", Path: path, DryRun: true})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "2001")
}

func TestImportRejectsInvalidRows(t *testing.T) {
	a, _ := testApp(t, nil)
	path := filepath.Join(t.TempDir(), "debt.csv")
	require.NoError(t, os.WriteFile(path, []byte("year,gdp,external_debt,domestic_debt\n2000,0,10,20\n"), 0o600))

	err := a.Import(context.Background(), ImportOptions{Kind: "csv", Path: path, DryRun: true})
	require.Error(t, err)
}

func TestImportRequiresDatabase(t *testing.T) {
	a, _ := testApp(t, nil)
	err := a.Import(context.Background(), ImportOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")

	err = a.Import(context.Background(), ImportOptions{Kind: "postgres"})
	require.Error(t, err)
}

func TestSimulateAlertTelegram(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	a, _ := testApp(t, func(cfg *config.Config) {
		cfg.Alerting = config.AlertingConfig{
			Enabled:        true,
			RatioThreshold: 0.6,
			Channels:       []string{"telegram"},
			Telegram: config.TelegramConfig{
				Enabled:  true,
				BotToken: "token",
				ChatID:   "chat",
				APIBase:  srv.URL,
			},
		}
	})

	require.NoError(t, a.SimulateAlert(context.Background(), 2030, decimal.RequireFromString("0.75")))
	assert.Equal(t, "chat", payload["chat_id"])
	assert.True(t, strings.Contains(payload["text"], "Year: 2030"), payload["text"])
	assert.True(t, strings.Contains(payload["text"], "Debt-to-GDP: 0.750 (threshold 0.600)"), payload["text"])
	assert.True(t, strings.Contains(payload["text"], "Change vs prev: +0.150"), payload["text"])
}

func TestSimulateAlertBelowThreshold(t *testing.T) {
	a, _ := testApp(t, func(cfg *config.Config) {
		cfg.Alerting = config.AlertingConfig{Enabled: true, RatioThreshold: 0.6, Channels: []string{"log"}}
	})
	err := a.SimulateAlert(context.Background(), 2030, decimal.RequireFromString("0.5"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exceed")
}

func TestSimulateAlertDisabled(t *testing.T) {
	a, _ := testApp(t, nil)
	require.Error(t, a.SimulateAlert(context.Background(), 2030, decimal.RequireFromString("0.9")))
}
