package main

import (
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/acs-tracts/internal/acs"
	"github.com/sells-group/acs-tracts/internal/monitoring"
)

var (
	tractsStates []string
	tractsFormat string
	tractsOut    string
)

var tractsCmd = &cobra.Command{
	Use:   "tracts <year> [profile]",
	Short: "Build the long-format tract table for an ACS5 year",
	Long: "Fetches the profile group (default DP02) for every tract in the selected states, " +
		"resolves variable labels, classifies them, and writes census_tract_<year> in the chosen format.",
	Example: "  acs-tracts tracts 2020\n  acs-tracts tracts 2022 DP03 --states 01,06 --format parquet",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year, profile, err := parseTractArgs(args)
		if err != nil {
			return err
		}
		if tractsFormat != "" {
			cfg.Output.Format = tractsFormat
		}
		if tractsOut != "" {
			cfg.Output.Dir = tractsOut
		}
		if err := cfg.Validate("tracts"); err != nil {
			return err
		}

		metrics := monitoring.NewMetrics(prometheus.NewRegistry())
		env, err := initTractEnv(metrics)
		if err != nil {
			return err
		}

		states, err := env.States.Filter(tractsStates)
		if err != nil {
			return err
		}

		res, err := env.Pipeline.Run(ctx, acs.Request{
			Year:       year,
			Profile:    profile,
			States:     states,
			StateNames: env.States.Names(),
		})
		if err != nil {
			return eris.Wrapf(err, "tracts %d %s", year, profile)
		}

		exp, release, err := newExporter(ctx, cfg.Output.Format, cfg.Output.Dir)
		if err != nil {
			return err
		}
		defer release()

		dest, err := exp.Export(ctx, res)
		if err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), res, dest)
		return nil
	},
}

// parseTractArgs reads `<year> [profile]`.
func parseTractArgs(args []string) (int, string, error) {
	year, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || year < 2009 {
		return 0, "", eris.Errorf("invalid year %q: ACS5 starts in 2009", args[0])
	}
	profile := acs.DefaultProfile
	if len(args) > 1 {
		profile = strings.ToUpper(strings.TrimSpace(args[1]))
	}
	if profile == "" {
		return 0, "", eris.New("profile must not be empty")
	}
	return year, profile, nil
}

// printSummary writes a per-state table and the run totals.
func printSummary(w io.Writer, res *acs.Result, dest string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"State", "Name", "Tracts", "Records"})
	for _, s := range res.States {
		table.Append([]string{s.Code, s.Name, strconv.Itoa(s.Tracts), strconv.Itoa(s.Records)})
	}
	table.SetFooter([]string{"", "Total", strconv.Itoa(res.Tracts), strconv.Itoa(len(res.Records))})
	table.Render()

	fmt.Fprintf(w, "Run %s: %s %d, %d variables\n", res.RunID, res.Profile, res.Year, res.Variables)
	if n := len(res.Issues); n > 0 {
		fmt.Fprintf(w, "Excluded %d rows with malformed variable labels\n", n)
	}
	if n := res.Join.Dropped(); n > 0 {
		fmt.Fprintf(w, "Excluded %d rows without a geography or state match\n", n)
	}
	if n := res.Melt.Missing + res.Melt.NonNumeric; n > 0 {
		fmt.Fprintf(w, "Coerced %d missing or non-numeric values to 0\n", n)
	}
	fmt.Fprintf(w, "Wrote %d records to %s\n", len(res.Records), dest)
	fmt.Fprintf(w, "Elapsed: %s\n", res.Elapsed.Round(time.Millisecond))
}

func init() {
	tractsCmd.Flags().StringSliceVar(&tractsStates, "states", nil, "state codes to fetch (default all in the state table)")
	tractsCmd.Flags().StringVar(&tractsFormat, "format", "", "output format: csv, xlsx, parquet, sqlite, postgres (default from config)")
	tractsCmd.Flags().StringVar(&tractsOut, "out", "", "output directory for file formats (default from config)")
	rootCmd.AddCommand(tractsCmd)
}
