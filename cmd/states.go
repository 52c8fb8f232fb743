package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/acs-tracts/internal/statecodes"
)

var statesOut string

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "Download the state code lookup table",
	Long:  "Fetches state names and FIPS codes from the Census API and writes them as name,state_code CSV.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("states"); err != nil {
			return err
		}

		rows, err := newCensusClient(nil).StateNames(ctx)
		if err != nil {
			return eris.Wrap(err, "states")
		}
		tbl, err := statecodes.FromAPIRows(rows)
		if err != nil {
			return err
		}

		path := statesOut
		if path == "" {
			path = cfg.States.Path
		}
		if err := tbl.Save(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d states to %s\n", tbl.Len(), path)
		return nil
	},
}

func init() {
	statesCmd.Flags().StringVar(&statesOut, "out", "", "output path (default states.path from config)")
	rootCmd.AddCommand(statesCmd)
}
