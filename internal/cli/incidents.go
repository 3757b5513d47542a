package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/sahayata-dashboard/internal/incident"
)

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "Load the critical incidents panel once and print it",
	Args:  cobra.NoArgs,
	RunE:  runIncidents,
}

func init() {
	rootCmd.AddCommand(incidentsCmd)
	addOneShotFlags(incidentsCmd)
}

func runIncidents(cmd *cobra.Command, _ []string) error {
	ctx, cancel, env, err := oneShot(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	client, _ := newFeed(env.cfg, env.logger, env.metrics)
	sum := incident.NewPanel(client, env.cfg.IncidentRefreshInterval, env.logger, env.metrics).Refresh(ctx)

	if outputJSON {
		return writeJSONTo(cmd.OutOrStdout(), sum)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total incidents: %d  Active fires: %d  Earthquakes: %d\n", sum.Total, sum.Fires, sum.Earthquakes)
	for _, s := range sum.Severity {
		fmt.Fprintf(out, "  %-8s %d\n", s.Name, s.Value)
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tSEVERITY\tLOCATION")
	for _, inc := range sum.Incidents {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", inc.Type, inc.Severity, inc.Location)
	}
	return tw.Flush()
}
