package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"debt-dashboard/internal/projection"
	"debt-dashboard/internal/render"
)

// Export writes the projected view as CSV and/or one PNG per chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGDir == "" {
		return errors.New("at least one of --csv or --png-dir must be provided")
	}

	view, err := a.projectView(ctx, opts.View)
	if err != nil {
		return err
	}
	if err := view.Err(); err != nil {
		a.Logger.Warn().Err(err).Msg("view has failed sections; exporting the rest")
	}

	if opts.CSVPath != "" {
		if err := writeViewCSV(opts.CSVPath, view); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Int("rows", len(view.Rows)).Msg("csv exported")
	}

	if opts.PNGDir != "" {
		width, height := a.Config.ResolveChartSize(opts.Width, opts.Height)
		written, err := writeViewPNGs(opts.PNGDir, view, width, height)
		if err != nil {
			return err
		}
		a.Logger.Info().Str("dir", opts.PNGDir).Strs("charts", written).Msg("charts exported")
	}

	return nil
}

func writeViewCSV(path string, view projection.View) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	withMA := len(view.Rolling) == len(view.Rows) && len(view.Rolling) > 0
	header := []string{
		"year", "gdp", "external_debt", "domestic_debt", "total_debt", "debt_to_gdp",
		"delta_total_debt", "delta_debt_to_gdp", "composition_external", "composition_domestic",
	}
	if withMA {
		header = append(header, "ma_external_debt", "ma_domestic_debt", "ma_debt_to_gdp")
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, row := range view.Rows {
		record := []string{
			strconv.Itoa(row.Year),
			row.GDP.String(),
			row.ExternalDebt.String(),
			row.DomesticDebt.String(),
			row.TotalDebt.String(),
			row.DebtToGDP.StringFixed(3),
			view.Deltas[i].TotalDebt.String(),
			view.Deltas[i].DebtToGDP.StringFixed(3),
		}
		if i < len(view.Composition) {
			record = append(record, view.Composition[i].ExternalDebt.String(), view.Composition[i].DomesticDebt.String())
		} else {
			record = append(record, "", "")
		}
		if withMA {
			ma := view.Rolling[i]
			record = append(record, ma.ExternalDebt.StringFixed(3), ma.DomesticDebt.StringFixed(3), ma.DebtToGDP.StringFixed(3))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeViewPNGs renders every chart with a PNG rendition. Charts that cannot
// be drawn for this selection are skipped.
func writeViewPNGs(dir string, view projection.View, width, height int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	for _, kind := range render.PNGKinds {
		path := filepath.Join(dir, string(kind)+".png")
		if err := writeChartPNG(path, kind, view, width, height); err != nil {
			if errors.Is(err, render.ErrTooFewPoints) {
				continue
			}
			return written, fmt.Errorf("render %s: %w", kind, err)
		}
		written = append(written, path)
	}
	if len(written) == 0 {
		return nil, fmt.Errorf("no charts rendered: %w", render.ErrTooFewPoints)
	}
	return written, nil
}

func writeChartPNG(path string, kind render.Kind, view projection.View, width, height int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.RenderPNG(file, kind, view, width, height); err != nil {
		file.Close()
		_ = os.Remove(path)
		return err
	}
	return file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
