package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/service"
)

var simulatedGDP = decimal.NewFromInt(1000)

// SimulateAlert pushes a leverage alert for a synthetic year whose
// Debt-to-GDP ratio is the given value. The preceding year sits at the
// threshold so the alert reports the change against it.
func (a *App) SimulateAlert(ctx context.Context, year int, ratio decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	threshold := decimal.NewFromFloat(a.Config.Alerting.RatioThreshold)
	ds, err := dataset.Derive([]dataset.RawObservation{
		syntheticObservation(year-1, threshold),
		syntheticObservation(year, ratio),
	})
	if err != nil {
		return err
	}

	svc := service.New(a.Config, nil, nil, nil, nil, nil, notifier, a.Logger)
	sent, err := svc.CheckLeverage(ctx, ds)
	if err != nil {
		return err
	}
	if !sent {
		return fmt.Errorf("ratio %s does not exceed threshold %s", ratio.StringFixed(3), threshold.StringFixed(3))
	}
	a.Logger.Info().Int("year", year).Str("debt_to_gdp", ratio.StringFixed(3)).Msg("simulated alert sent")
	return nil
}

// syntheticObservation splits ratio*GDP evenly between the two components.
func syntheticObservation(year int, ratio decimal.Decimal) dataset.RawObservation {
	half := ratio.Mul(simulatedGDP).Div(decimal.NewFromInt(2))
	return dataset.RawObservation{
		Year:         year,
		GDP:          simulatedGDP,
		ExternalDebt: half,
		DomesticDebt: half,
	}
}
