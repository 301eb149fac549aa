package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"debt-dashboard/internal/dataset"
)

var csvColumns = []string{"year", "gdp", "external_debt", "domestic_debt"}

// CSVFile reads observations from a CSV file with a header row.
type CSVFile struct {
	path string
}

// NewCSVFile builds a CSV source for path.
func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path}
}

// Name implements Source.
func (c *CSVFile) Name() string { return "csv:" + c.path }

// Load implements Source.
func (c *CSVFile) Load(ctx context.Context) ([]dataset.RawObservation, error) {
	if c.path == "" {
		return nil, errors.New("csv source path not configured")
	}
	file, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open csv source: %w", err)
	}
	defer file.Close()
	return ParseCSV(file)
}

// ParseCSV decodes observations. Headers are matched case-insensitively and
// may appear in any order; "ExternalDebt" and "external_debt" are equivalent.
func ParseCSV(r io.Reader) ([]dataset.RawObservation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[normalizeHeader(name)] = i
	}
	cols := make([]int, len(csvColumns))
	for i, name := range csvColumns {
		pos, ok := index[normalizeHeader(name)]
		if !ok {
			return nil, fmt.Errorf("csv header missing column %q", name)
		}
		cols[i] = pos
	}

	var out []dataset.RawObservation
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		year, err := strconv.Atoi(strings.TrimSpace(record[cols[0]]))
		if err != nil {
			return nil, fmt.Errorf("csv line %d: parse year: %w", line, err)
		}
		values := make([]decimal.Decimal, 3)
		for i := range values {
			raw := strings.TrimSpace(record[cols[i+1]])
			values[i], err = decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: parse %s: %w", line, csvColumns[i+1], err)
			}
		}
		out = append(out, dataset.RawObservation{
			Year:         year,
			GDP:          values[0],
			ExternalDebt: values[1],
			DomesticDebt: values[2],
		})
	}
	return out, nil
}

func normalizeHeader(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(v)
}

var _ Source = (*CSVFile)(nil)
