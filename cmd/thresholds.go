package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/calibration"
	"github.com/kozaktomas/face-auth/internal/config"
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds <report.json>...",
	Short: "Re-evaluate saved calibration reports at other thresholds",
	Long: `Load reports written by "calibrate --output" and recompute the confusion
matrix of every dataset at the given thresholds from the stored similarities.`,
	Example: `  face-auth thresholds calibration.json --threshold 0.25 --threshold 0.3`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runThresholds,
}

func init() {
	rootCmd.AddCommand(thresholdsCmd)

	thresholdsCmd.Flags().Float64Slice("threshold", nil, "Thresholds to evaluate (default from calibration config)")
}

func runThresholds(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	thresholds := thresholdsOr(cmd, cfg.Calibration.Thresholds)

	var reports []calibration.Report
	for _, path := range args {
		loaded, err := calibration.LoadReports(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		reports = append(reports, loaded...)
	}

	return calibration.WriteComparison(os.Stdout, reports, thresholds)
}
