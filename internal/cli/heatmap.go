package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/sahayata-dashboard/internal/config"
	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/hazard"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

var (
	heatmapSource string
	outputJSON    bool
	oneShotWait   time.Duration
)

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Collect the hazard heat layer once and print it",
	Long: `Fetch the selected hazard sources through the relief backend, normalize
them into heat points inside India, and print the per-source status.

Example:
  sahayata heatmap
  sahayata heatmap --source USGS --json`,
	Args: cobra.NoArgs,
	RunE: runHeatmap,
}

func init() {
	rootCmd.AddCommand(heatmapCmd)
	heatmapCmd.Flags().StringVar(&heatmapSource, "source", "", "NASA, USGS, GDACS or ALL (default DEFAULT_SOURCE)")
	addOneShotFlags(heatmapCmd)
}

func addOneShotFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&outputJSON, "json", false, "print JSON instead of text")
	cmd.Flags().DurationVar(&oneShotWait, "timeout", 30*time.Second, "overall timeout")
}

// oneShotEnv is what commands that run once and exit share: config, a
// stderr logger, and metrics nobody scrapes.
type oneShotEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func oneShot(cmd *cobra.Command) (context.Context, context.CancelFunc, oneShotEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, oneShotEnv{}, err
	}
	env := oneShotEnv{
		cfg:     cfg,
		logger:  observability.NewLoggerTo(cmd.ErrOrStderr(), cfg),
		metrics: observability.NewDetachedMetrics(),
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), oneShotWait)
	return ctx, cancel, env, nil
}

func runHeatmap(cmd *cobra.Command, _ []string) error {
	ctx, cancel, env, err := oneShot(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	src := env.cfg.DefaultSource
	if heatmapSource != "" {
		if src, err = domain.ParseSource(heatmapSource); err != nil {
			return err
		}
	}

	_, feed := newFeed(env.cfg, env.logger, env.metrics)
	snap := hazard.NewAggregator(feed, env.logger, env.metrics).Collect(ctx, src)

	if outputJSON {
		return writeJSONTo(cmd.OutOrStdout(), snap)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d points, %s)\n", src.Label(), len(snap.Points), snap.LastUpdate.Format(time.RFC3339))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range src.Expand() {
		fmt.Fprintf(tw, "  %s\t%s\n", s.Label(), snap.Status[s.Key()])
	}
	return tw.Flush()
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

