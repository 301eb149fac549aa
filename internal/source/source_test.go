package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"debt-dashboard/internal/config"
	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/storage"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNewSelectsKind(t *testing.T) {
	src, err := New(config.SourceConfig{Kind: "static"}, nil, noopLogger())
	if err != nil || src.Name() != "static" {
		t.Fatalf("static source: %v %v", src, err)
	}

	src, err = New(config.SourceConfig{Kind: "CSV", Path: "x.csv"}, nil, noopLogger())
	if err != nil || src.Name() != "csv:x.csv" {
		t.Fatalf("csv source: %v %v", src, err)
	}

	if _, err := New(config.SourceConfig{Kind: "postgres"}, nil, noopLogger()); !errors.Is(err, storage.ErrNotConfigured) {
		t.Fatalf("postgres without store should fail, got %v", err)
	}

	if _, err := New(config.SourceConfig{Kind: "ftp"}, nil, noopLogger()); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown kind should fail, got %v", err)
	}
}

func TestStaticLoadsBuiltin(t *testing.T) {
	rows, err := Static{}.Load(context.Background())
	if err != nil {
		t.Fatalf("static load: %v", err)
	}
	if len(rows) != 11 || rows[0].Year != 2010 || rows[10].Year != 2020 {
		t.Fatalf("unexpected builtin rows: %d", len(rows))
	}
}

func TestParseCSV(t *testing.T) {
	body := "Year,DomesticDebt,GDP,ExternalDebt\n2010,100,500,50\n2011, 105 ,520,60\n"
	rows, err := ParseCSV(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].Year != 2011 || rows[1].DomesticDebt.IntPart() != 105 || rows[1].ExternalDebt.IntPart() != 60 || rows[1].GDP.IntPart() != 520 {
		t.Fatalf("columns mapped incorrectly: %+v", rows[1])
	}
}

func TestParseCSVErrors(t *testing.T) {
	cases := map[string]string{
		"missing column": "year,gdp,external_debt\n2010,500,50\n",
		"bad year":       "year,gdp,external_debt,domestic_debt\nabc,500,50,100\n",
		"bad number":     "year,gdp,external_debt,domestic_debt\n2010,five,50,100\n",
		"ragged":         "year,gdp,external_debt,domestic_debt\n2010,500,50\n",
		"empty":          "",
	}
	for name, body := range cases {
		if _, err := ParseCSV(strings.NewReader(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestCSVFileLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debt.csv")
	if err := os.WriteFile(path, []byte("year,gdp,external_debt,domestic_debt\n2010,500,50,100\n"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	rows, err := NewCSVFile(path).Load(context.Background())
	if err != nil || len(rows) != 1 {
		t.Fatalf("load csv: rows=%d err=%v", len(rows), err)
	}

	if _, err := NewCSVFile(filepath.Join(t.TempDir(), "missing.csv")).Load(context.Background()); err == nil {
		t.Fatal("missing file should fail")
	}
}

func TestHTTPLoadArrayAndEnvelope(t *testing.T) {
	rows := []map[string]any{
		{"year": 2010, "gdp": 500, "external_debt": 50, "domestic_debt": 100},
		{"year": 2011, "gdp": "520", "external_debt": "60", "domestic_debt": "105"},
	}
	for _, wrap := range []bool{false, true} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") != "test-agent" {
				t.Errorf("user agent not forwarded: %q", r.Header.Get("User-Agent"))
			}
			w.Header().Set("Content-Type", "application/json")
			if wrap {
				_ = json.NewEncoder(w).Encode(map[string]any{"observations": rows})
				return
			}
			_ = json.NewEncoder(w).Encode(rows)
		}))

		src := NewHTTP(HTTPOptions{URL: srv.URL, Timeout: time.Second, UserAgent: "test-agent"}, noopLogger())
		got, err := src.Load(context.Background())
		srv.Close()
		if err != nil {
			t.Fatalf("wrap=%v: load: %v", wrap, err)
		}
		if len(got) != 2 || got[1].GDP.IntPart() != 520 {
			t.Fatalf("wrap=%v: unexpected rows %+v", wrap, got)
		}
		if _, err := dataset.Derive(got); err != nil {
			t.Fatalf("wrap=%v: fetched rows should derive: %v", wrap, err)
		}
	}
}

func TestHTTPLoadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "maintenance"})
	}))
	defer srv.Close()

	_, err := NewHTTP(HTTPOptions{URL: srv.URL}, noopLogger()).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "maintenance") {
		t.Fatalf("error body should surface, got %v", err)
	}

	if _, err := NewHTTP(HTTPOptions{}, noopLogger()).Load(context.Background()); err == nil {
		t.Fatal("missing url should fail")
	}
}

type fakeObservationStore struct {
	records []storage.ObservationRecord
	err     error
}

func (f *fakeObservationStore) UpsertObservations(ctx context.Context, records []storage.ObservationRecord) (int, error) {
	f.records = append(f.records, records...)
	return len(records), f.err
}

func (f *fakeObservationStore) ListObservations(ctx context.Context) ([]storage.ObservationRecord, error) {
	return f.records, f.err
}

func (f *fakeObservationStore) CountObservations(ctx context.Context) (int64, error) {
	return int64(len(f.records)), f.err
}

func TestPostgresRoundTrip(t *testing.T) {
	store := &fakeObservationStore{records: ToRecords(dataset.Builtin(), "static")}
	src, err := New(config.SourceConfig{Kind: "postgres"}, store, noopLogger())
	if err != nil {
		t.Fatalf("new postgres source: %v", err)
	}
	rows, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 11 || !rows[3].ExternalDebt.Equal(dataset.Builtin()[3].ExternalDebt) {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if store.records[0].Source != "static" {
		t.Fatalf("origin not recorded: %+v", store.records[0])
	}

	store.err = errors.New("boom")
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatal("store error should propagate")
	}
}
