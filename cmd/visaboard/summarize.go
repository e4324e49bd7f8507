package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visaboard/visaboard/internal/aggregate"
	"github.com/visaboard/visaboard/internal/app"
	"github.com/visaboard/visaboard/internal/config"
)

var (
	summaryMetric    string
	summaryThreshold float64
	summaryTop       int
	summaryTimeout   time.Duration
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Print the employer table for one metric and threshold",
	Long: `Load the dataset once and print the employers whose rows pass
metric >= threshold, largest first. Without --threshold the configured
slider default is used.`,
	Example: `  visaboard summarize --data data/h-1b-data-export.csv
  visaboard summarize --metric denial --threshold 5 --top 10`,
	RunE: runSummarize,
}

func init() {
	f := summarizeCmd.Flags()
	f.StringVar(&summaryMetric, "metric", "approval", "Metric to filter on: approval or denial")
	f.Float64Var(&summaryThreshold, "threshold", 0, "Minimum per-row metric value")
	f.IntVar(&summaryTop, "top", 20, "Number of employers to print (0 = all)")
	f.DurationVar(&summaryTimeout, "timeout", 2*time.Minute, "Maximum time to load the dataset")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	metric, err := aggregate.ParseMetric(summaryMetric)
	if err != nil {
		return err
	}
	threshold := sliderFor(cfg, metric).Default
	if cmd.Flags().Changed("threshold") {
		threshold = summaryThreshold
	}

	cfg.Resolve()
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), summaryTimeout)
	defer cancel()

	store, err := app.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	loader, err := app.NewLoader(cfg, store, zap.NewNop())
	if err != nil {
		return err
	}
	defer loader.Close()

	return summarize(ctx, cmd.OutOrStdout(), aggregate.NewEngine(loader), metric, threshold, summaryTop)
}

func sliderFor(cfg *config.Config, metric aggregate.Metric) config.SliderConfig {
	if metric == aggregate.MetricDenial {
		return cfg.View.Denial
	}
	return cfg.View.Approval
}

// summarize writes the totals line and the top employers for metric at
// threshold. Each employer is one line summing its surviving rows.
func summarize(ctx context.Context, out io.Writer, engine *aggregate.Engine, metric aggregate.Metric, threshold float64, top int) error {
	ds, err := engine.Dataset(ctx)
	if err != nil {
		return err
	}
	rows, err := engine.AggregateAndFilter(ctx, metric, threshold)
	if err != nil {
		return err
	}
	employers := aggregate.RollupByEmployer(rows)

	totals := aggregate.ComputeTotals(ds)
	fmt.Fprintf(out, "%s: %d records, %d employers, %d zip codes\n",
		ds.Info().Source, totals.Records, totals.Employers, totals.Zips)
	fmt.Fprintf(out, "%s >= %v: %d rows from %d employers\n\n",
		metric.Column(), threshold, len(rows), len(employers))

	shown := employers
	if top > 0 && len(shown) > top {
		shown = shown[:top]
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "EMPLOYER\t%s\tROWS\tRECORDS\t\n", metric.Column())
	for _, e := range shown {
		fmt.Fprintf(tw, "%s\t%.0f\t%d\t%d\t\n", e.Employer, e.Total, e.Rows, e.RecordCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(shown) < len(employers) {
		fmt.Fprintf(out, "... %d more employers\n", len(employers)-len(shown))
	}
	return nil
}
