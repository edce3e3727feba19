package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "face-auth",
	Short: "Face registration and login service with threshold calibration tools",
	Long: `Face Auth registers users by a photo of their face and logs them in by
comparing a new photo against everyone registered. Embeddings come from an
InsightFace embedding server.

The calibration commands build labelled datasets, measure genuine and
impostor similarities and recommend the acceptance threshold.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	for _, w := range cfg.Warnings {
		log.Warn().Err(w).Msg("Ignoring invalid configuration value")
	}
}
