package cli

import (
	"github.com/spf13/cobra"

	"debt-dashboard/internal/app"
)

var (
	importKind   string
	importPath   string
	importURL    string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load observations from a CSV file or HTTP endpoint into postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ImportOptions{
			Kind:   importKind,
			Path:   importPath,
			URL:    importURL,
			DryRun: importDryRun,
		}
		return getApp().Import(cmd.Context(), opts)
	},
}

func init() {
	importCmd.Flags().StringVar(&importKind, "kind", "", "Source kind: static, csv or http (defaults to source.kind)")
	importCmd.Flags().StringVar(&importPath, "path", "", "CSV file path")
	importCmd.Flags().StringVar(&importURL, "url", "", "HTTP endpoint returning observations as JSON")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate and print without writing to storage")
}
