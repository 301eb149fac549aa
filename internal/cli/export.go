package cli

import (
	"github.com/spf13/cobra"

	"debt-dashboard/internal/app"
)

var (
	exportView    viewFlags
	exportCSVPath string
	exportPNGDir  string
	exportWidth   int
	exportHeight  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the projected view as CSV and/or PNG charts",
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := exportView.options(cmd)
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			View:    view,
			CSVPath: exportCSVPath,
			PNGDir:  exportPNGDir,
			Width:   exportWidth,
			Height:  exportHeight,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportView.register(exportCmd)
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportPNGDir, "png-dir", "", "Directory to write PNG charts")
	exportCmd.Flags().IntVar(&exportWidth, "width", 0, "Chart width in pixels (defaults to config)")
	exportCmd.Flags().IntVar(&exportHeight, "height", 0, "Chart height in pixels (defaults to config)")
}
