package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/socialhub-cli/internal/analysis"
	"github.com/KaramelBytes/socialhub-cli/internal/ingest"
	"github.com/KaramelBytes/socialhub-cli/internal/utils"
)

var (
	edaOutput     string
	edaGroupBy    []string
	edaJSON       bool
	edaClean      bool
	edaMaxRows    int
	edaSampleRows int
	edaNoCorr     bool
	edaCorrGroups bool
	edaOutlierThr float64
)

var edaCmd = &cobra.Command{
	Use:   "eda <file.csv>",
	Short: "Profile a CSV export: column kinds, stats, correlations and outliers",
	Example: `  socialhub eda posts.csv
  socialhub eda posts.csv --group-by platform --output report.md
  socialhub eda posts.csv --clean --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := ingest.IngestFile(args[0])
		if err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		ds := t.Dataset()
		if edaClean {
			var sum analysis.CleanSummary
			ds, sum = analysis.Clean(ds)
			cmd.PrintErrf("✓ Cleaned: %d rows before, %d after, %d removed\n", sum.RowsBefore, sum.RowsAfter, sum.RowsRemoved)
		}

		var out []byte
		if edaJSON {
			if out, err = utils.PrettyJSON(analysis.ComputeEDA(ds)); err != nil {
				return err
			}
			out = append(out, '\n')
		} else {
			opt := analysis.DefaultOptions()
			if edaMaxRows > 0 {
				opt.MaxRows = edaMaxRows
			}
			if cmd.Flags().Changed("sample-rows") {
				opt.SampleRows = edaSampleRows
			}
			opt.GroupBy = edaGroupBy
			opt.Correlations = !edaNoCorr
			opt.CorrPerGroup = edaCorrGroups
			if edaOutlierThr > 0 {
				opt.OutlierThreshold = edaOutlierThr
			}
			out = []byte(analysis.Analyze(t.Name, ds, opt).Markdown())
		}

		if edaOutput == "" {
			_, err := cmd.OutOrStdout().Write(out)
			return err
		}
		if err := utils.SafeWriteFile(edaOutput, out, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Report written to %s\n", edaOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(edaCmd)
	edaCmd.Flags().StringVarP(&edaOutput, "output", "o", "", "write the report to a file instead of stdout")
	edaCmd.Flags().StringSliceVar(&edaGroupBy, "group-by", nil, "columns to group by (repeatable or comma-separated)")
	edaCmd.Flags().BoolVar(&edaJSON, "json", false, "print the REST eda payload (correlation, distributions, summary stats) as JSON")
	edaCmd.Flags().BoolVar(&edaClean, "clean", false, "fill missing values, normalize dates and drop duplicates first")
	edaCmd.Flags().IntVar(&edaMaxRows, "max-rows", 0, "limit rows processed (0 keeps the default)")
	edaCmd.Flags().IntVar(&edaSampleRows, "sample-rows", 5, "number of sample rows in the report")
	edaCmd.Flags().BoolVar(&edaNoCorr, "no-corr", false, "skip the correlation matrix")
	edaCmd.Flags().BoolVar(&edaCorrGroups, "corr-per-group", false, "compute correlations inside each group")
	edaCmd.Flags().Float64Var(&edaOutlierThr, "outlier-threshold", 0, "robust z-score threshold for outliers (default 3.5)")
}
