package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/calibration"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/dataset"
	"github.com/kozaktomas/face-auth/internal/embedder"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <dataset>...",
	Short: "Measure genuine and impostor similarities and recommend a threshold",
	Long: `Embed every image of each dataset directory (<dataset>/<person>/<image>),
sample same-person and different-person pairs, and evaluate accuracy,
precision, recall and F1 at each candidate threshold.

Calibration counts a pair as accepted when similarity >= threshold, while the
login endpoint accepts only similarity > threshold. Pairs sitting exactly on the
recommended threshold are reported.`,
	Example: `  face-auth calibrate dataset1 dataset2 --pairs 100 --seed 42 --output calibration.json`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)

	calibrateCmd.Flags().Int("pairs", 0, "Positive and negative pairs to sample per dataset (default from calibration config)")
	calibrateCmd.Flags().Int64("seed", 0, "Random seed (default from calibration config)")
	calibrateCmd.Flags().Float64Slice("threshold", nil, "Thresholds to evaluate (default from calibration config)")
	calibrateCmd.Flags().Int("concurrency", 4, "Parallel embedding requests")
	calibrateCmd.Flags().String("output", "", "Write reports as JSON to this file")
	calibrateCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
}

func countImages(dir string) (int, error) {
	persons, err := dataset.ListPersons([]string{dir})
	if err != nil {
		return 0, err
	}
	total := 0
	for _, p := range persons {
		total += len(p.Images)
	}
	return total, nil
}

func newEmbeddingBar(total int, name string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Embedding "+name),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	seed := cfg.Calibration.Seed
	if cmd.Flags().Changed("seed") {
		seed = mustGetInt64(cmd, "seed")
	}
	params := calibration.Params{
		Thresholds: thresholdsOr(cmd, cfg.Calibration.Thresholds),
		NumPairs:   intOr(cmd, "pairs", cfg.Calibration.Pairs),
		Seed:       seed,
	}
	if err := params.Validate(); err != nil {
		return err
	}

	concurrency := mustGetInt(cmd, "concurrency")
	showProgress := !mustGetBool(cmd, "no-progress")
	output := mustGetString(cmd, "output")

	ctx, stop := commandContext()
	defer stop()

	client := embedder.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim, cfg.Embedding.Timeout)
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("embedding service at %s: %w", client.BaseURL(), err)
	}

	reports := make([]calibration.Report, 0, len(args))
	for _, dir := range args {
		name := filepath.Base(filepath.Clean(dir))

		total, err := countImages(dir)
		if err != nil {
			return fmt.Errorf("reading dataset %s: %w", dir, err)
		}

		var progress func()
		var bar *progressbar.ProgressBar
		if showProgress {
			bar = newEmbeddingBar(total, name)
			progress = func() { bar.Add(1) }
		}

		corpus, stats, err := dataset.LoadCorpus(ctx, dir, client, concurrency, progress)
		if bar != nil {
			bar.Finish()
			fmt.Println()
		}
		if err != nil {
			return fmt.Errorf("loading dataset %s: %w", dir, err)
		}
		if n := len(stats.FailedImages); n > 0 {
			fmt.Printf("%s: %d image(s) skipped (unreadable or no face)\n", name, n)
		}

		report, err := calibration.Calibrate(corpus, params)
		if err != nil {
			return fmt.Errorf("calibrating %s: %w", name, err)
		}
		report.Dataset = name
		report.FailedImages = len(stats.FailedImages)
		reports = append(reports, *report)
	}

	if err := calibration.WriteSummary(os.Stdout, reports); err != nil {
		return err
	}

	if output != "" {
		if err := calibration.SaveReports(output, reports); err != nil {
			return fmt.Errorf("saving reports: %w", err)
		}
		fmt.Printf("Reports saved to %s\n", output)
	}
	return nil
}
