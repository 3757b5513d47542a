package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect LAT LNG",
	Short: "Show the disaster proneness score for a point",
	Long: `Compute the map inspector's disaster proneness score for a coordinate.
Points outside India are reported as such.

Example:
  sahayata inspect 19.07 72.87`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q: %w", args[0], err)
		}
		lng, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q: %w", args[1], err)
		}

		result := domain.Inspect(lat, lng)
		if outputJSON {
			return writeJSONTo(cmd.OutOrStdout(), result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&outputJSON, "json", false, "print JSON instead of text")
}
