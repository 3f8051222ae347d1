package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/ingest"
	"github.com/KaramelBytes/socialhub-cli/internal/utils"
	"github.com/KaramelBytes/socialhub-cli/internal/views"
)

var (
	kpiPlatform string
	kpiJSON     bool
	kpiChart    bool
)

var kpisCmd = &cobra.Command{
	Use:   "kpis <file.csv>",
	Short: "Compute engagement KPIs, optionally for one platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := ingest.IngestFile(args[0])
		if err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		ds := t.Dataset()
		k := views.ComputeKPIs(ds, kpiPlatform)
		out := cmd.OutOrStdout()
		if kpiJSON {
			payload := map[string]any{"kpis": k, "platforms": views.PlatformDomain(ds)}
			if kpiChart {
				payload["chart"] = views.ChartSeries(ds, kpiPlatform, views.ChartLimit)
			}
			b, err := utils.PrettyJSON(payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		cards := k.Cards()
		if len(cards) == 0 {
			fmt.Fprintf(out, "No records for platform %q\n", kpiPlatform)
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, c := range cards {
			fmt.Fprintf(tw, "%s\t%s\n", c.Title, c.Value)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if kpiChart {
			fmt.Fprintln(out)
			tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Name\tEngagement\tReach\tLikes\tShares\tComments\tSentiment")
			for _, p := range views.ChartSeries(ds, kpiPlatform, views.ChartLimit) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", p.Name,
					dataset.FormatNumber(p.Engagement), dataset.FormatNumber(p.Reach),
					dataset.FormatNumber(p.Likes), dataset.FormatNumber(p.Shares),
					dataset.FormatNumber(p.Comments), dataset.FormatNumber(p.Sentiment))
			}
			return tw.Flush()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kpisCmd)
	kpisCmd.Flags().StringVar(&kpiPlatform, "platform", views.AllPlatforms, "platform filter")
	kpisCmd.Flags().BoolVar(&kpiJSON, "json", false, "print KPIs as JSON")
	kpisCmd.Flags().BoolVar(&kpiChart, "chart", false, "include the engagement chart series")
}
