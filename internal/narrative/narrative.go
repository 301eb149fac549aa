// Package narrative turns a projected view into the dashboard's
// "What to notice" bullets.
package narrative

import (
	"fmt"

	"github.com/shopspring/decimal"

	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/projection"
)

// Tip is appended to every set of insights.
const Tip = "Tip: All charts react to the year range and overlay settings. Hover on points for exact values and use the legend to toggle series."

const (
	efficiencyLens = "Efficiency lens: use the Debt vs GDP scatter to check whether higher-debt years coincide with stronger GDP; ratio bubbles reveal leverage risk."
	volatilityOn   = "Volatility check: the 3-year moving averages smooth noise so medium-term trend breaks stand out."
	volatilityOff  = "Volatility check: turn on the 3-year moving averages to smooth noise and spot medium-term trend breaks."
	scenario       = "Scenario analysis: narrow the year range to a sub-period to see how composition and growth dynamics change."
)

// Insights describes the selected rows. A view whose range selected nothing
// yields only the tip.
func Insights(view projection.View) []string {
	if len(view.Rows) == 0 {
		return []string{Tip}
	}

	out := []string{leverage(view.Rows), mixShift(view.Rows), efficiencyLens}
	if view.Params.MovingAverage {
		out = append(out, volatilityOn)
	} else {
		out = append(out, volatilityOff)
	}
	return append(out, scenario, Tip)
}

func leverage(rows []dataset.Observation) string {
	first, last := rows[0], rows[len(rows)-1]
	if len(rows) == 1 {
		return fmt.Sprintf("Single year: %d has total debt of %s bn and a Debt-to-GDP ratio of %s; widen the range to see growth dynamics.",
			last.Year, last.TotalDebt.StringFixed(0), last.DebtToGDP.StringFixed(2))
	}

	years := decimal.NewFromInt(int64(last.Year - first.Year))
	perYear := last.TotalDebt.Sub(first.TotalDebt).Div(years)

	verb := "rises"
	if perYear.Sign() < 0 {
		verb = "falls"
	}

	var reading string
	switch last.DebtToGDP.Cmp(first.DebtToGDP) {
	case 1:
		reading = "indicating debt growing faster than GDP"
	case -1:
		reading = "indicating GDP outpacing debt"
	default:
		reading = "indicating debt growing in line with GDP"
	}

	return fmt.Sprintf("Leverage: total debt %s about %s bn per year between %d and %d; the Debt-to-GDP ratio moves from %s to %s, %s.",
		verb, perYear.Abs().StringFixed(0), first.Year, last.Year,
		first.DebtToGDP.StringFixed(2), last.DebtToGDP.StringFixed(2), reading)
}

func mixShift(rows []dataset.Observation) string {
	var ext, dom decimal.Decimal
	for _, row := range rows {
		ext = ext.Add(row.ExternalDebt)
		dom = dom.Add(row.DomesticDebt)
	}

	larger, smaller := "Domestic", "external"
	if ext.GreaterThan(dom) {
		larger, smaller = "External", "domestic"
	}
	if ext.Equal(dom) {
		return "Mix: external and domestic debt carry equal weight over the selected years."
	}
	if len(rows) < 2 {
		return fmt.Sprintf("Mix: %s debt is the larger share.", larger)
	}

	first, last := rows[0], rows[len(rows)-1]
	extGrowth, extOK := growth(first.ExternalDebt, last.ExternalDebt)
	domGrowth, domOK := growth(first.DomesticDebt, last.DomesticDebt)
	if !extOK || !domOK {
		return fmt.Sprintf("Mix: %s debt remains the larger share.", larger)
	}

	largerGrowth, smallerGrowth := domGrowth, extGrowth
	if larger == "External" {
		largerGrowth, smallerGrowth = extGrowth, domGrowth
	}

	switch {
	case smallerGrowth.GreaterThan(largerGrowth):
		return fmt.Sprintf("Mix shift: %s debt remains the larger share, but %s debt grows faster (%s%% vs %s%%), narrowing the gap.",
			larger, smaller, smallerGrowth.StringFixed(0), largerGrowth.StringFixed(0))
	case smallerGrowth.LessThan(largerGrowth):
		return fmt.Sprintf("Mix shift: %s debt remains the larger share and grows faster (%s%% vs %s%%), widening the gap.",
			larger, largerGrowth.StringFixed(0), smallerGrowth.StringFixed(0))
	default:
		return fmt.Sprintf("Mix: %s debt remains the larger share; both components grow at the same pace.", larger)
	}
}

// growth is the percentage change from a to b; undefined when a is zero.
func growth(a, b decimal.Decimal) (decimal.Decimal, bool) {
	if a.IsZero() {
		return decimal.Zero, false
	}
	return b.Sub(a).Mul(decimal.NewFromInt(100)).Div(a), true
}
