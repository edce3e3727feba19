package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/embedder"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/imageutil"
)

var compareCmd = &cobra.Command{
	Use:   "compare <image1> <image2>",
	Short: "Print the similarity between the faces in two images",
	Long: `Embed the first face found in each image and print their cosine similarity,
together with the decision the login endpoint would make at the configured threshold.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Float64("threshold", 0, "Threshold to decide at (default FACE_THRESHOLD)")
}

func embedImageFile(ctx context.Context, detector embedder.FaceDetector, path string) (facematch.Embedding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	prepared, err := imageutil.Prepare(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	faces, err := detector.DetectFaces(ctx, prepared.JPEG)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	face, err := embedder.First(faces)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return face.Embedding, nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx, stop := commandContext()
	defer stop()

	threshold := cfg.Verification.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = mustGetFloat64(cmd, "threshold")
	}

	client := embedder.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim, cfg.Embedding.Timeout)

	a, err := embedImageFile(ctx, client, args[0])
	if err != nil {
		return err
	}
	b, err := embedImageFile(ctx, client, args[1])
	if err != nil {
		return err
	}

	sim, err := facematch.CosineSimilarity(a, b)
	if err != nil {
		return fmt.Errorf("comparing embeddings: %w", err)
	}

	decision := "DIFFERENT PERSON"
	if facematch.MatchesAt(sim, threshold) {
		decision = "SAME PERSON"
	}

	fmt.Printf("Similarity: %.4f\n", sim)
	fmt.Printf("Threshold:  %.4f\n", threshold)
	fmt.Printf("Decision:   %s\n", decision)
	return nil
}
