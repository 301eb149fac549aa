package cli

import (
	"github.com/spf13/cobra"

	"debt-dashboard/internal/app"
)

var showView viewFlags

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the projected view as a table with KPIs and insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := showView.options(cmd)
		if err != nil {
			return err
		}
		return getApp().Show(cmd.Context(), app.ShowOptions{View: view})
	},
}

func init() {
	showView.register(showCmd)
}
