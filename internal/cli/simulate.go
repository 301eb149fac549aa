package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateYear  int
	simulateRatio float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Push a synthetic debt-to-GDP alert through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateYear <= 0 {
			return errors.New("--year must be greater than 0")
		}
		if simulateRatio <= 0 {
			return errors.New("--ratio must be greater than 0")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateYear, decimal.NewFromFloat(simulateRatio))
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateYear, "year", 0, "Year to report")
	simulateCmd.Flags().Float64Var(&simulateRatio, "ratio", 0, "Debt-to-GDP ratio to report")
}
