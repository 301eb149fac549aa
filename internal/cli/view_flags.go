package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"debt-dashboard/internal/app"
)

// viewFlags mirror the dashboard controls. Unset flags keep the configured
// defaults.
type viewFlags struct {
	from          int
	to            int
	movingAverage bool
	normalization string
	annotations   bool
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.from, "from", 0, "First year of the range (defaults to the dataset start)")
	cmd.Flags().IntVar(&f.to, "to", 0, "Last year of the range (defaults to the dataset end)")
	cmd.Flags().BoolVar(&f.movingAverage, "ma", true, "Include 3-year moving averages")
	cmd.Flags().StringVar(&f.normalization, "norm", "", "Composition normalization: absolute or share")
	cmd.Flags().BoolVar(&f.annotations, "annotate", true, "Annotate the latest year")
}

func (f *viewFlags) options(cmd *cobra.Command) (app.ViewOptions, error) {
	var opts app.ViewOptions
	flags := cmd.Flags()
	if flags.Changed("from") {
		opts.From = &f.from
	}
	if flags.Changed("to") {
		opts.To = &f.to
	}
	if opts.From != nil && opts.To != nil && *opts.From > *opts.To {
		return opts, fmt.Errorf("--from must not be after --to")
	}
	if flags.Changed("ma") {
		opts.MovingAverage = &f.movingAverage
	}
	if flags.Changed("annotate") {
		opts.Annotations = &f.annotations
	}
	opts.Normalization = f.normalization
	return opts, nil
}
