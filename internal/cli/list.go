package cli

import (
	"fmt"
	"text/tabwriter"

	"datahouse.com/internal/plugins"
	"github.com/spf13/cobra"
)

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var jobs bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered recorders, or configured jobs with --jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			if !jobs {
				fmt.Fprintln(w, "RECORDER\tDESCRIPTION")
				for _, name := range plugins.Names() {
					f, _ := plugins.Lookup(name)
					fmt.Fprintf(w, "%s\t%s\n", name, f.Description)
				}
				return nil
			}

			cfg, _, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "JOB\tRECORDER\tCRON")
			for _, j := range cfg.Jobs {
				spec := j.Cron
				if spec == "" {
					spec = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", j.ID(), j.Recorder, spec)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jobs, "jobs", false, "list jobs from the config file")
	return cmd
}
