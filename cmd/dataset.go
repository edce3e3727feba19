package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/dataset"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Build and inspect labelled face datasets",
}

var datasetCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Sample persons and images from source trees into a dataset directory",
	Long: `Sample persons from one or more source trees laid out as <source>/<person>/<image>
and copy a fixed number of their images into <output>/<person>/.
Persons with the same folder name in several sources are merged.
The output directory is replaced.`,
	Example: `  face-auth dataset create --source lfw/train --source lfw/val --output dataset1 --seed 42`,
	Args:    cobra.NoArgs,
	RunE:    runDatasetCreate,
}

var datasetStatsCmd = &cobra.Command{
	Use:   "stats <dir>...",
	Short: "Show person and image counts of dataset directories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDatasetStats,
}

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetCreateCmd)
	datasetCmd.AddCommand(datasetStatsCmd)

	datasetCreateCmd.Flags().StringSlice("source", []string{"train", "val"}, "Source directories (repeatable)")
	datasetCreateCmd.Flags().String("output", "", "Output directory (required)")
	datasetCreateCmd.Flags().Int("persons", 0, "Number of persons to sample (default from calibration config)")
	datasetCreateCmd.Flags().Int("images", 0, "Images per person (default from calibration config)")
	datasetCreateCmd.Flags().Int64("seed", 0, "Random seed (default from calibration config)")
	datasetCreateCmd.MarkFlagRequired("output")
}

func runDatasetCreate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	seed := cfg.Calibration.Seed
	if cmd.Flags().Changed("seed") {
		seed = mustGetInt64(cmd, "seed")
	}

	opts := dataset.CreateOptions{
		Sources:         mustGetStringSlice(cmd, "source"),
		Output:          mustGetString(cmd, "output"),
		NumPersons:      intOr(cmd, "persons", cfg.Calibration.Persons),
		ImagesPerPerson: intOr(cmd, "images", cfg.Calibration.ImagesPerPerson),
		Seed:            seed,
	}

	result, err := dataset.Create(opts)
	if err != nil {
		return fmt.Errorf("creating dataset: %w", err)
	}

	fmt.Printf("Found %d persons, %d with at least %d images\n", result.Available, result.Eligible, opts.ImagesPerPerson)
	if result.Short {
		fmt.Printf("Warning: only %d eligible persons, wanted %d\n", result.Eligible, opts.NumPersons)
	}
	fmt.Printf("Dataset %s: %d persons, %d images (seed %d)\n", opts.Output, result.Persons, result.Images, opts.Seed)
	return nil
}

func runDatasetStats(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATASET\tPERSONS\tIMAGES\tMIN/PERSON\tMAX/PERSON")
	fmt.Fprintln(w, "-------\t-------\t------\t----------\t----------")

	for _, dir := range args {
		persons, err := dataset.ListPersons([]string{dir})
		if err != nil {
			return fmt.Errorf("reading %s: %w", dir, err)
		}

		images, minImages, maxImages := 0, 0, 0
		for i, p := range persons {
			n := len(p.Images)
			images += n
			if i == 0 || n < minImages {
				minImages = n
			}
			maxImages = max(maxImages, n)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", dir, len(persons), images, minImages, maxImages)
	}
	return w.Flush()
}
