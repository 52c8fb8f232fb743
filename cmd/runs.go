package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/acs-tracts/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored tract runs",
	Long:  "Lists and shows runs saved with --format sqlite or --format postgres.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		driver, _ := cmd.Flags().GetString("store")
		if driver == "" {
			driver = defaultStoreDriver()
		}
		st, err := openStore(ctx, driver)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		year, _ := cmd.Flags().GetInt("year")
		profile, _ := cmd.Flags().GetString("profile")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Year:    year,
			Profile: strings.ToUpper(profile),
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
			return nil
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		driver, _ := cmd.Flags().GetString("store")
		if driver == "" {
			driver = defaultStoreDriver()
		}
		st, err := openStore(ctx, driver)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run:      %s\n", run.ID)
		fmt.Fprintf(w, "Dataset:  %s %d\n", run.Profile, run.Year)
		fmt.Fprintf(w, "States:   %s\n", strings.Join(run.States, ", "))
		fmt.Fprintf(w, "Tracts:   %d\n", run.Tracts)
		fmt.Fprintf(w, "Records:  %d\n", run.Records)
		fmt.Fprintf(w, "Excluded: %d\n", run.Excluded)
		fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "Elapsed:  %s\n", run.Elapsed)
		return nil
	},
}

func printRuns(w io.Writer, runs []store.Run) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Run", "Year", "Profile", "States", "Tracts", "Records", "Started", "Elapsed"})
	for _, r := range runs {
		table.Append([]string{
			r.ID,
			strconv.Itoa(r.Year),
			r.Profile,
			strconv.Itoa(len(r.States)),
			strconv.Itoa(r.Tracts),
			strconv.Itoa(r.Records),
			r.StartedAt.Format(time.DateTime),
			r.Elapsed.Round(time.Millisecond).String(),
		})
	}
	table.Render()
}

func init() {
	for _, c := range []*cobra.Command{runsListCmd, runsShowCmd} {
		c.Flags().String("store", "", "run store: sqlite or postgres (default postgres when store.database_url is set)")
	}
	runsListCmd.Flags().Int("year", 0, "filter by ACS year")
	runsListCmd.Flags().String("profile", "", "filter by profile")
	runsListCmd.Flags().Int("limit", 20, "maximum runs to list")

	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
