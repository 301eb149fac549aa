package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"debt-dashboard/internal/narrative"
	"debt-dashboard/internal/projection"
)

// Show prints the projected view as a table followed by the KPI line and
// the insights.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	view, err := a.projectView(ctx, opts.View)
	if err != nil {
		return err
	}
	return writeViewTable(a.Out, view)
}

func writeViewTable(out io.Writer, view projection.View) error {
	share := view.Params.Normalization == projection.ShareOfTotal
	withMA := len(view.Rolling) == len(view.Rows) && len(view.Rolling) > 0

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"Year", "GDP", "External", "Domestic", "Total", "Debt/GDP", "dTotal", "dRatio"}
	if withMA {
		header = append(header, "Ext MA", "Dom MA", "Ratio MA")
	}
	if share {
		header = append(header, "Ext %", "Dom %")
	}
	fmt.Fprintln(writer, strings.Join(header, "\t"))

	for i, row := range view.Rows {
		cells := []string{
			fmt.Sprintf("%d", row.Year),
			formatDecimal(row.GDP, 0),
			formatDecimal(row.ExternalDebt, 0),
			formatDecimal(row.DomesticDebt, 0),
			formatDecimal(row.TotalDebt, 0),
			formatDecimal(row.DebtToGDP, 3),
			signed(view.Deltas[i].TotalDebt, 0),
			signed(view.Deltas[i].DebtToGDP, 3),
		}
		if withMA {
			ma := view.Rolling[i]
			cells = append(cells, formatDecimal(ma.ExternalDebt, 1), formatDecimal(ma.DomesticDebt, 1), formatDecimal(ma.DebtToGDP, 3))
		}
		if share && i < len(view.Composition) {
			comp := view.Composition[i]
			cells = append(cells, formatDecimal(comp.ExternalDebt, 2), formatDecimal(comp.DomesticDebt, 2))
		}
		fmt.Fprintln(writer, strings.Join(cells, "\t"))
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if kpi := view.KPI; kpi != nil {
		fmt.Fprintf(out, "\nLatest %d: total debt %s bn (%s vs prev), Debt-to-GDP %s (%s), GDP %s bn\n",
			kpi.LatestYear,
			formatDecimal(kpi.TotalDebt, 0), signed(kpi.DebtDelta, 0),
			formatDecimal(kpi.DebtToGDP, 2), signed(kpi.RatioDelta, 2),
			formatDecimal(kpi.GDP, 0))
	}

	fmt.Fprintln(out, "\nWhat to notice:")
	for _, line := range narrative.Insights(view) {
		fmt.Fprintf(out, "  - %s\n", line)
	}
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func signed(d decimal.Decimal, places int32) string {
	if d.Sign() >= 0 {
		return "+" + d.StringFixed(places)
	}
	return d.StringFixed(places)
}
